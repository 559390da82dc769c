// ==============================================
// File: internal/blockchain/types.go
// ==============================================
package blockchain

import (
	"context"

	"github.com/gagliardetto/solana-go"
)

// Transfer is one system-program transfer extracted from a transaction, in
// message order.
type Transfer struct {
	Source      solana.PublicKey
	Destination solana.PublicKey
	Lamports    uint64
}

// ProgramAccount is a raw account returned by a program scan.
type ProgramAccount struct {
	Pubkey solana.PublicKey
	Data   []byte
}

// Subscription is a live account-change subscription. Unsubscribe is safe
// to call more than once.
type Subscription interface {
	Unsubscribe()
}

// Client is the ledger-client surface the watcher, pipeline and pages
// consume. Implementations must be safe for concurrent use.
type Client interface {
	// GetBalance returns the lamport balance of an account.
	GetBalance(ctx context.Context, pubkey solana.PublicKey) (uint64, error)
	// GetLatestSignature returns the single most recent confirmed
	// signature for an address; ok is false when the address has none.
	GetLatestSignature(ctx context.Context, address solana.PublicKey) (solana.Signature, bool, error)
	// GetTransfers fetches a confirmed transaction and extracts its
	// system-program transfers.
	GetTransfers(ctx context.Context, signature solana.Signature) ([]Transfer, error)
	// GetMinimumBalanceForRentExemption returns the rent-exempt reserve
	// for an account of the given size.
	GetMinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error)
	// GetProgramAccountsByMint scans a token program for accounts whose
	// first field (the mint) matches.
	GetProgramAccountsByMint(ctx context.Context, programID, mint solana.PublicKey) ([]ProgramAccount, error)
	// SendAndConfirm builds a transaction from the instructions, has the
	// caller sign it, submits it and blocks until it is confirmed.
	SendAndConfirm(ctx context.Context, instructions []solana.Instruction, payer solana.PublicKey, sign func(*solana.Transaction) error) (solana.Signature, error)
	// SubscribeAccount registers a callback invoked on every
	// account-change notification for the address.
	SubscribeAccount(ctx context.Context, pubkey solana.PublicKey, onChange func()) (Subscription, error)
}

// LamportsPerSOL is the base-unit scale of the native token.
const LamportsPerSOL = 1_000_000_000
