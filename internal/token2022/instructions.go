// ==============================================
// File: internal/token2022/instructions.go
// ==============================================
// Package token2022 builds raw instructions for the Token-2022 program and
// unpacks its account layouts. Only the surface this bot needs is covered:
// mint initialization with a transfer-fee extension, minting, idempotent
// ATA creation and withheld-fee withdrawal.
package token2022

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/nikola43/SPLTokenDeployer/internal/wallet"
)

// ProgramID is the Token-2022 (token extensions) program.
var ProgramID = solana.MustPublicKeyFromBase58("TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb")

// Token-2022 instruction opcodes.
const (
	ixInitializeMint       = 0
	ixMintTo               = 7
	ixTransferFeeExtension = 26

	// TransferFeeExtension sub-instructions.
	feeIxInitializeConfig     = 0
	feeIxWithdrawFromAccounts = 3
)

// MintLenWithTransferFee is the account size of a mint carrying the
// transfer-fee-config extension: 165-byte padded base, 1 account-type byte,
// 4-byte TLV header, 108-byte config.
const MintLenWithTransferFee = 165 + 1 + 4 + 108

// InitializeTransferFeeConfig sets the fee terms on a not-yet-initialized
// mint. Must precede InitializeMint in the same transaction.
func InitializeTransferFeeConfig(
	mint, configAuthority, withdrawAuthority solana.PublicKey,
	feeBasisPoints uint16,
	maxFee uint64,
) solana.Instruction {
	data := []byte{ixTransferFeeExtension, feeIxInitializeConfig}
	data = append(data, 1) // COption::Some
	data = append(data, configAuthority.Bytes()...)
	data = append(data, 1) // COption::Some
	data = append(data, withdrawAuthority.Bytes()...)
	data = binary.LittleEndian.AppendUint16(data, feeBasisPoints)
	data = binary.LittleEndian.AppendUint64(data, maxFee)

	return solana.NewInstruction(ProgramID, []*solana.AccountMeta{
		{PublicKey: mint, IsSigner: false, IsWritable: true},
	}, data)
}

// InitializeMint initializes the mint with the given decimals and mint
// authority and no freeze authority.
func InitializeMint(mint solana.PublicKey, decimals uint8, mintAuthority solana.PublicKey) solana.Instruction {
	data := []byte{ixInitializeMint, decimals}
	data = append(data, mintAuthority.Bytes()...)
	data = append(data, 0) // COption::None for freeze authority

	return solana.NewInstruction(ProgramID, []*solana.AccountMeta{
		{PublicKey: mint, IsSigner: false, IsWritable: true},
		{PublicKey: solana.SysVarRentPubkey, IsSigner: false, IsWritable: false},
	}, data)
}

// MintTo mints amount base units to a token account.
func MintTo(mint, destination, authority solana.PublicKey, amount uint64) solana.Instruction {
	data := []byte{ixMintTo}
	data = binary.LittleEndian.AppendUint64(data, amount)

	return solana.NewInstruction(ProgramID, []*solana.AccountMeta{
		{PublicKey: mint, IsSigner: false, IsWritable: true},
		{PublicKey: destination, IsSigner: false, IsWritable: true},
		{PublicKey: authority, IsSigner: true, IsWritable: false},
	}, data)
}

// CreateAssociatedTokenAccountIdempotent returns the instruction creating
// the owner's ATA under the mint, plus the derived address. The instruction
// succeeds without effect when the account already exists.
func CreateAssociatedTokenAccountIdempotent(payer, owner, mint solana.PublicKey) (solana.Instruction, solana.PublicKey, error) {
	ata, err := wallet.AssociatedTokenAddress(owner, mint)
	if err != nil {
		return nil, solana.PublicKey{}, err
	}

	ix := solana.NewInstruction(wallet.AssociatedTokenProgramID(), []*solana.AccountMeta{
		{PublicKey: payer, IsSigner: true, IsWritable: true},
		{PublicKey: ata, IsSigner: false, IsWritable: true},
		{PublicKey: owner, IsSigner: false, IsWritable: false},
		{PublicKey: mint, IsSigner: false, IsWritable: false},
		{PublicKey: solana.SystemProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: ProgramID, IsSigner: false, IsWritable: false},
	}, []byte{1}) // instruction 1: create idempotent

	return ix, ata, nil
}

// WithdrawWithheldTokensFromAccounts moves accumulated withheld fees from
// the source token accounts into destination, authorized by the withdraw
// withheld authority.
func WithdrawWithheldTokensFromAccounts(
	mint, destination, authority solana.PublicKey,
	sources []solana.PublicKey,
) (solana.Instruction, error) {
	if len(sources) > 255 {
		return nil, fmt.Errorf("too many source accounts: %d", len(sources))
	}

	data := []byte{ixTransferFeeExtension, feeIxWithdrawFromAccounts, byte(len(sources))}

	accounts := []*solana.AccountMeta{
		{PublicKey: mint, IsSigner: false, IsWritable: true},
		{PublicKey: destination, IsSigner: false, IsWritable: true},
		{PublicKey: authority, IsSigner: true, IsWritable: false},
	}
	for _, src := range sources {
		accounts = append(accounts, &solana.AccountMeta{PublicKey: src, IsSigner: false, IsWritable: true})
	}

	return solana.NewInstruction(ProgramID, accounts, data), nil
}
