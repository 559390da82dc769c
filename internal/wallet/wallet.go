// ==================================
// File: internal/wallet/wallet.go
// ==================================
package wallet

import (
	"fmt"
	"regexp"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// Token2022ProgramID is the program that owns every mint this bot deploys.
var Token2022ProgramID = solana.MustPublicKeyFromBase58("TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb")

var associatedTokenProgramID = solana.MustPublicKeyFromBase58("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")

var base58KeyPattern = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{86,90}$`)

// Wallet holds the keypair a session signs with. Keys live in process
// memory only; nothing is ever written to disk.
type Wallet struct {
	PrivateKey solana.PrivateKey
	PublicKey  solana.PublicKey

	mu       sync.Mutex
	ataCache map[string]solana.PublicKey
}

// New creates a wallet from a base58-encoded private key.
func New(privateKeyBase58 string) (*Wallet, error) {
	if !base58KeyPattern.MatchString(privateKeyBase58) {
		return nil, fmt.Errorf("invalid private key format")
	}
	privateKeyBytes, err := base58.Decode(privateKeyBase58)
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key: %w", err)
	}
	if len(privateKeyBytes) != 64 {
		return nil, fmt.Errorf("invalid private key length: expected 64 bytes, got %d", len(privateKeyBytes))
	}
	privateKey := solana.PrivateKey(privateKeyBytes)
	return &Wallet{
		PrivateKey: privateKey,
		PublicKey:  privateKey.PublicKey(),
		ataCache:   make(map[string]solana.PublicKey),
	}, nil
}

// Generate creates a wallet with a fresh random keypair.
func Generate() (*Wallet, error) {
	account := solana.NewWallet()
	return &Wallet{
		PrivateKey: account.PrivateKey,
		PublicKey:  account.PublicKey(),
		ataCache:   make(map[string]solana.PublicKey),
	}, nil
}

// ExportBase58 returns the private key in base58, for the one-time reveal
// after key generation.
func (w *Wallet) ExportBase58() string {
	return base58.Encode(w.PrivateKey)
}

// SignTransaction signs every input the wallet's key is responsible for.
// Additional signers (e.g. a fresh mint keypair) may be passed alongside.
func (w *Wallet) SignTransaction(tx *solana.Transaction, extra ...solana.PrivateKey) error {
	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(w.PublicKey) {
			return &w.PrivateKey
		}
		for i := range extra {
			if key.Equals(extra[i].PublicKey()) {
				return &extra[i]
			}
		}
		return nil
	})
	return err
}

// ATA returns the associated token account address for a Token-2022 mint
// under this wallet, caching computed addresses.
func (w *Wallet) ATA(mint solana.PublicKey) (solana.PublicKey, error) {
	return w.ataFor(w.PublicKey, mint)
}

func (w *Wallet) ataFor(owner, mint solana.PublicKey) (solana.PublicKey, error) {
	cacheKey := owner.String() + ":" + mint.String()
	w.mu.Lock()
	defer w.mu.Unlock()
	if ata, ok := w.ataCache[cacheKey]; ok {
		return ata, nil
	}
	ata, err := AssociatedTokenAddress(owner, mint)
	if err != nil {
		return solana.PublicKey{}, err
	}
	w.ataCache[cacheKey] = ata
	return ata, nil
}

// AssociatedTokenAddress derives the Token-2022 ATA for (owner, mint).
// solana.FindAssociatedTokenAddress bakes in the legacy token program, so
// the derivation is spelled out here.
func AssociatedTokenAddress(owner, mint solana.PublicKey) (solana.PublicKey, error) {
	ata, _, err := solana.FindProgramAddress(
		[][]byte{owner.Bytes(), Token2022ProgramID.Bytes(), mint.Bytes()},
		associatedTokenProgramID,
	)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive associated token address: %w", err)
	}
	return ata, nil
}

// AssociatedTokenProgramID exposes the ATA program for instruction builders.
func AssociatedTokenProgramID() solana.PublicKey {
	return associatedTokenProgramID
}

// String returns the wallet's public key.
func (w *Wallet) String() string {
	return w.PublicKey.String()
}
