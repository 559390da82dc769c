// ====================================
// File: internal/registry/registry.go
// ====================================
// Package registry persists deployed-token records, one JSON array file per
// chat. Files are read and rewritten wholesale on every mutation; a single
// chat issues its mutations serially from its own event stream, so there is
// no cross-process locking.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Token is one deployed-token record. Records are created once per
// successful pipeline run and never deleted.
type Token struct {
	Address     string  `json:"address"`
	Chain       int64   `json:"chain"`
	Deployer    string  `json:"deployer"`
	Name        string  `json:"name,omitempty"`
	Symbol      string  `json:"symbol,omitempty"`
	Supply      uint64  `json:"supply,omitempty"`
	TaxPercent  float64 `json:"taxes,omitempty"`
	Description string  `json:"description,omitempty"`
	LogoRef     string  `json:"logo,omitempty"`
}

// Update carries the fields of an update-by-address; nil fields are left
// as stored.
type Update struct {
	Name        *string
	Symbol      *string
	Supply      *uint64
	TaxPercent  *float64
	Description *string
	LogoRef     *string
}

// ErrDuplicate is returned when appending a (chain, address) pair the
// chat's ledger already holds.
var ErrDuplicate = errors.New("token already recorded for this chain")

// ErrNotFound is returned by Update/Find when no record matches.
var ErrNotFound = errors.New("token not found")

// Ledger reads and writes per-chat token files under a data directory.
type Ledger struct {
	dir    string
	logger *zap.Logger
}

func NewLedger(dir string, logger *zap.Logger) *Ledger {
	return &Ledger{dir: dir, logger: logger.Named("registry")}
}

func (l *Ledger) path(chatID int64) string {
	return filepath.Join(l.dir, fmt.Sprintf("tokens-%d.json", chatID))
}

func (l *Ledger) read(chatID int64) ([]Token, error) {
	data, err := os.ReadFile(l.path(chatID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger file: %w", err)
	}
	var tokens []Token
	if err := json.Unmarshal(data, &tokens); err != nil {
		return nil, fmt.Errorf("failed to parse ledger file: %w", err)
	}
	return tokens, nil
}

func (l *Ledger) write(chatID int64, tokens []Token) error {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	data, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("failed to encode ledger: %w", err)
	}
	if err := os.WriteFile(l.path(chatID), data, 0o644); err != nil {
		return fmt.Errorf("failed to write ledger file: %w", err)
	}
	return nil
}

// List returns the chat's tokens on the given chain deployed by the given
// wallet.
func (l *Ledger) List(chatID, chain int64, deployer string) ([]Token, error) {
	tokens, err := l.read(chatID)
	if err != nil {
		return nil, err
	}
	var out []Token
	for _, t := range tokens {
		if t.Chain == chain && t.Deployer == deployer {
			out = append(out, t)
		}
	}
	return out, nil
}

// Find looks up a record by (chain, address).
func (l *Ledger) Find(chatID, chain int64, address string) (Token, error) {
	tokens, err := l.read(chatID)
	if err != nil {
		return Token{}, err
	}
	for _, t := range tokens {
		if t.Chain == chain && t.Address == address {
			return t, nil
		}
	}
	return Token{}, ErrNotFound
}

// Append records a newly deployed token. (chain, address) must be unique
// within the chat's file.
func (l *Ledger) Append(chatID int64, token Token) error {
	tokens, err := l.read(chatID)
	if err != nil {
		return err
	}
	for _, t := range tokens {
		if t.Chain == token.Chain && t.Address == token.Address {
			return ErrDuplicate
		}
	}
	l.logger.Info("Recording deployed token",
		zap.Int64("chat_id", chatID),
		zap.Int64("chain", token.Chain),
		zap.String("address", token.Address))
	return l.write(chatID, append(tokens, token))
}

// UpdateByAddress merges the update into the record matching
// (chain, address). Fields the update does not mention keep their stored
// values. No chat handler edits records today; the operation backs
// out-of-band ledger maintenance and a later token edit page.
func (l *Ledger) UpdateByAddress(chatID, chain int64, address string, update Update) error {
	tokens, err := l.read(chatID)
	if err != nil {
		return err
	}
	found := false
	for i := range tokens {
		if tokens[i].Chain != chain || tokens[i].Address != address {
			continue
		}
		found = true
		if update.Name != nil {
			tokens[i].Name = *update.Name
		}
		if update.Symbol != nil {
			tokens[i].Symbol = *update.Symbol
		}
		if update.Supply != nil {
			tokens[i].Supply = *update.Supply
		}
		if update.TaxPercent != nil {
			tokens[i].TaxPercent = *update.TaxPercent
		}
		if update.Description != nil {
			tokens[i].Description = *update.Description
		}
		if update.LogoRef != nil {
			tokens[i].LogoRef = *update.LogoRef
		}
	}
	if !found {
		return ErrNotFound
	}
	return l.write(chatID, tokens)
}
