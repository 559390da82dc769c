// ==============================================
// File: internal/deploy/fees.go
// ==============================================
package deploy

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/nikola43/SPLTokenDeployer/internal/blockchain"
	"github.com/nikola43/SPLTokenDeployer/internal/token2022"
	"github.com/nikola43/SPLTokenDeployer/internal/wallet"
)

// WithheldAccount is one token account holding withheld transfer fees.
type WithheldAccount struct {
	Address solana.PublicKey
	Amount  uint64
}

// WithheldReport sums the withheld fees accumulated across a mint's token
// accounts.
type WithheldReport struct {
	Accounts []WithheldAccount
	Total    uint64
}

// Addresses returns the account addresses, in scan order.
func (r *WithheldReport) Addresses() []solana.PublicKey {
	out := make([]solana.PublicKey, len(r.Accounts))
	for i, acc := range r.Accounts {
		out[i] = acc.Address
	}
	return out
}

// Fees scans and claims withheld transfer fees for deployed mints.
type Fees struct {
	client blockchain.Client
	logger *zap.Logger
}

func NewFees(client blockchain.Client, logger *zap.Logger) *Fees {
	return &Fees{client: client, logger: logger.Named("fees")}
}

// ScanWithheld walks every Token-2022 account of the mint and reports the
// ones holding withheld fees. Accounts that fail to decode are skipped; a
// partial view beats a failed scan here.
func (f *Fees) ScanWithheld(ctx context.Context, mint solana.PublicKey) (*WithheldReport, error) {
	accounts, err := f.client.GetProgramAccountsByMint(ctx, token2022.ProgramID, mint)
	if err != nil {
		return nil, err
	}

	report := &WithheldReport{}
	for _, acc := range accounts {
		decoded, err := token2022.UnpackAccount(acc.Data)
		if err != nil {
			f.logger.Debug("Skipping undecodable token account",
				zap.String("account", acc.Pubkey.String()),
				zap.Error(err))
			continue
		}
		if decoded.Withheld == 0 {
			continue
		}
		report.Accounts = append(report.Accounts, WithheldAccount{
			Address: acc.Pubkey,
			Amount:  decoded.Withheld,
		})
		report.Total += decoded.Withheld
	}
	return report, nil
}

// Claim withdraws the withheld balances of the given token accounts into
// the authority's own ATA under the mint, creating it if needed, in a
// single transaction. An empty account list is a no-op.
func (f *Fees) Claim(
	ctx context.Context,
	mint solana.PublicKey,
	authority *wallet.Wallet,
	accounts []solana.PublicKey,
) (solana.Signature, error) {
	if len(accounts) == 0 {
		f.logger.Info("No withheld fees to claim", zap.String("mint", mint.String()))
		return solana.Signature{}, nil
	}

	ataIx, vault, err := token2022.CreateAssociatedTokenAccountIdempotent(
		authority.PublicKey, authority.PublicKey, mint)
	if err != nil {
		return solana.Signature{}, err
	}

	withdrawIx, err := token2022.WithdrawWithheldTokensFromAccounts(
		mint, vault, authority.PublicKey, accounts)
	if err != nil {
		return solana.Signature{}, err
	}

	sig, err := f.client.SendAndConfirm(ctx,
		[]solana.Instruction{ataIx, withdrawIx},
		authority.PublicKey,
		func(tx *solana.Transaction) error {
			return authority.SignTransaction(tx)
		},
	)
	if err != nil {
		return solana.Signature{}, err
	}

	f.logger.Info("Withheld fees claimed",
		zap.String("mint", mint.String()),
		zap.Int("accounts", len(accounts)),
		zap.String("signature", sig.String()))
	return sig, nil
}
