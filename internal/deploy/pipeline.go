// ==============================================
// File: internal/deploy/pipeline.go
// ==============================================
// Package deploy runs the token provisioning pipeline and the withheld-fee
// claim workflow on top of the ledger client.
package deploy

import (
	"context"
	"fmt"
	"math"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"go.uber.org/zap"

	"github.com/nikola43/SPLTokenDeployer/internal/blockchain"
	"github.com/nikola43/SPLTokenDeployer/internal/content"
	"github.com/nikola43/SPLTokenDeployer/internal/metadata"
	"github.com/nikola43/SPLTokenDeployer/internal/token2022"
	"github.com/nikola43/SPLTokenDeployer/internal/wallet"
)

// Decimals is fixed for every token this bot deploys.
const Decimals = 9

// BaseUnitsPerToken converts a whole-token supply into mint base units.
const BaseUnitsPerToken = 1_000_000_000

// Pipeline stage names, in execution order.
const (
	StageUploadMetadata = "metadata-upload"
	StageCreateMint     = "create-mint"
	StageTokenAccount   = "token-account"
	StageMintSupply     = "mint-supply"
)

// StageError reports which pipeline stage failed. Earlier stages have
// completed and their on-chain effects remain in place.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Params describes the token to deploy.
type Params struct {
	Name        string
	Symbol      string
	Description string
	Supply      uint64 // whole tokens
	TaxPercent  float64
	LogoURI     string

	MetadataProgramID solana.PublicKey

	// OnStage, when non-nil, is invoked with the stage name right before
	// the stage starts. May be used to supersede a progress notice.
	OnStage func(stage string)
}

// Result carries the addresses created by a successful run.
type Result struct {
	Mint         solana.PublicKey
	TokenAccount solana.PublicKey
	MetadataURI  string
	Signatures   []solana.Signature
}

// Pipeline deploys tokens. Stages run strictly in order, each confirmed
// before the next starts; a failed stage is not retried and nothing is
// rolled back.
type Pipeline struct {
	client  blockchain.Client
	content *content.Store
	logger  *zap.Logger
}

func NewPipeline(client blockchain.Client, store *content.Store, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		client:  client,
		content: store,
		logger:  logger.Named("deploy"),
	}
}

// Deploy provisions the token with signer as payer, mint authority, fee
// authority and supply recipient. On failure the returned error is a
// *StageError naming the failed stage; the draft stays valid for a retry.
func (p *Pipeline) Deploy(ctx context.Context, params Params, signer *wallet.Wallet) (*Result, error) {
	if err := validateParams(params); err != nil {
		return nil, err
	}

	payer := signer.PublicKey
	baseUnits := params.Supply * BaseUnitsPerToken
	feeBasisPoints := uint16(math.Round(params.TaxPercent * 100))

	result := &Result{}
	logger := p.logger.With(
		zap.String("symbol", params.Symbol),
		zap.String("payer", payer.String()))

	stages := []struct {
		name string
		run  func(ctx context.Context) error
	}{
		{
			name: StageUploadMetadata,
			run: func(ctx context.Context) error {
				uri, err := p.content.UploadTokenMetadata(ctx, content.TokenMetadata{
					Name:                 params.Name,
					Symbol:               params.Symbol,
					Description:          params.Description,
					SellerFeeBasisPoints: feeBasisPoints,
					Image:                params.LogoURI,
				})
				if err != nil {
					return err
				}
				result.MetadataURI = uri
				return nil
			},
		},
		{
			name: StageCreateMint,
			run: func(ctx context.Context) error {
				mint, err := wallet.Generate()
				if err != nil {
					return fmt.Errorf("failed to generate mint keypair: %w", err)
				}

				rent, err := p.client.GetMinimumBalanceForRentExemption(ctx, token2022.MintLenWithTransferFee)
				if err != nil {
					return err
				}

				metadataIx, err := metadata.CreateMetadataAccountV3(
					params.MetadataProgramID, mint.PublicKey, payer,
					metadata.DataV2{
						Name:   params.Name,
						Symbol: params.Symbol,
						URI:    result.MetadataURI,
					})
				if err != nil {
					return err
				}

				instructions := []solana.Instruction{
					system.NewCreateAccountInstruction(
						rent,
						token2022.MintLenWithTransferFee,
						token2022.ProgramID,
						payer,
						mint.PublicKey,
					).Build(),
					// maxFee equals the full supply so the rate alone
					// caps every transfer's fee.
					token2022.InitializeTransferFeeConfig(mint.PublicKey, payer, payer, feeBasisPoints, baseUnits),
					token2022.InitializeMint(mint.PublicKey, Decimals, payer),
					metadataIx,
				}

				sig, err := p.client.SendAndConfirm(ctx, instructions, payer, func(tx *solana.Transaction) error {
					return signer.SignTransaction(tx, mint.PrivateKey)
				})
				if err != nil {
					return err
				}
				result.Mint = mint.PublicKey
				result.Signatures = append(result.Signatures, sig)
				return nil
			},
		},
		{
			name: StageTokenAccount,
			run: func(ctx context.Context) error {
				ix, ata, err := token2022.CreateAssociatedTokenAccountIdempotent(payer, payer, result.Mint)
				if err != nil {
					return err
				}
				sig, err := p.client.SendAndConfirm(ctx, []solana.Instruction{ix}, payer, func(tx *solana.Transaction) error {
					return signer.SignTransaction(tx)
				})
				if err != nil {
					return err
				}
				result.TokenAccount = ata
				result.Signatures = append(result.Signatures, sig)
				return nil
			},
		},
		{
			name: StageMintSupply,
			run: func(ctx context.Context) error {
				ix := token2022.MintTo(result.Mint, result.TokenAccount, payer, baseUnits)
				sig, err := p.client.SendAndConfirm(ctx, []solana.Instruction{ix}, payer, func(tx *solana.Transaction) error {
					return signer.SignTransaction(tx)
				})
				if err != nil {
					return err
				}
				result.Signatures = append(result.Signatures, sig)
				return nil
			},
		},
	}

	for _, stage := range stages {
		if params.OnStage != nil {
			params.OnStage(stage.name)
		}
		logger.Info("Pipeline stage starting", zap.String("stage", stage.name))
		if err := stage.run(ctx); err != nil {
			logger.Error("Pipeline stage failed", zap.String("stage", stage.name), zap.Error(err))
			return nil, &StageError{Stage: stage.name, Err: err}
		}
	}

	logger.Info("Token deployed",
		zap.String("mint", result.Mint.String()),
		zap.Uint64("supply", params.Supply))
	return result, nil
}

func validateParams(params Params) error {
	if params.Symbol == "" || params.Name == "" {
		return fmt.Errorf("symbol and name are required")
	}
	if params.Supply == 0 {
		return fmt.Errorf("supply must be nonzero")
	}
	if params.Supply > math.MaxUint64/BaseUnitsPerToken {
		return fmt.Errorf("supply %d exceeds the mintable maximum", params.Supply)
	}
	if params.TaxPercent < 0 || params.TaxPercent > 100 {
		return fmt.Errorf("tax percent %v out of range", params.TaxPercent)
	}
	if params.MetadataProgramID.IsZero() {
		return fmt.Errorf("metadata program id is required")
	}
	return nil
}
