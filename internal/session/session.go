// ==================================
// File: internal/session/session.go
// ==================================
// Package session holds per-chat conversational state. Sessions are an
// in-memory cache: a process restart clears them, and callers must not
// treat them as durable storage.
package session

import (
	"sync"

	"github.com/nikola43/SPLTokenDeployer/internal/wallet"
)

// DefaultLockTime is the lock time a fresh token draft starts with.
const DefaultLockTime = 30

// Field identifies which draft field the next free-text message populates.
type Field string

const (
	FieldPrivateKey  Field = "pvkey"
	FieldSymbol      Field = "symbol"
	FieldName        Field = "name"
	FieldSupply      Field = "supply"
	FieldTaxes       Field = "taxes"
	FieldDescription Field = "description"
	FieldLogo        Field = "logo"
)

// TokenDraft accumulates token parameters across wizard turns.
type TokenDraft struct {
	Symbol      string
	Name        string
	Supply      uint64
	TaxPercent  float64
	Description string
	LogoRef     string
	LockTime    int
}

// InputFocus marks the pending free-text input: the field it populates,
// the page to return to afterwards, and the prompt message to clean up.
type InputFocus struct {
	Field      Field
	ReturnPage string
	PromptID   int
}

// Session is the per-chat state snapshot.
type Session struct {
	NetworkID     int64
	Wallet        *wallet.Wallet
	Draft         TokenDraft
	Input         *InputFocus
	MixerStatus   bool
	MixerAmount   float64
	MixerReceiver string
}

// Opt is a tri-state field for Partial: the zero value leaves the stored
// field untouched, while Some(v) overwrites it. Some(nil) on a pointer
// field clears the stored value rather than no-opping; disconnect depends
// on that, clearing the wallet is Some[*wallet.Wallet](nil).
type Opt[T any] struct {
	set   bool
	value T
}

// Some wraps a value to be applied by a merge.
func Some[T any](v T) Opt[T] {
	return Opt[T]{set: true, value: v}
}

// Get reports the value and whether it was set.
func (o Opt[T]) Get() (T, bool) {
	return o.value, o.set
}

// Partial is a shallow merge payload: only set fields are applied.
type Partial struct {
	NetworkID     Opt[int64]
	Wallet        Opt[*wallet.Wallet]
	Draft         Opt[TokenDraft]
	Input         Opt[*InputFocus]
	MixerStatus   Opt[bool]
	MixerAmount   Opt[float64]
	MixerReceiver Opt[string]
}

// Store keeps one Session per chat id. Writes from chat handlers and
// watcher callbacks may interleave; every write merges a fresh snapshot
// under the lock, so last-write-wins applies per field.
type Store struct {
	mu        sync.RWMutex
	sessions  map[int64]Session
	defaultFn func() Session
}

// NewStore creates a store whose missing sessions read as defaults on the
// given network.
func NewStore(defaultNetworkID int64) *Store {
	return &Store{
		sessions: make(map[int64]Session),
		defaultFn: func() Session {
			return Session{
				NetworkID: defaultNetworkID,
				Draft:     TokenDraft{LockTime: DefaultLockTime},
			}
		},
	}
}

// Get returns the current session merged with defaults. It never fails; a
// chat never seen before yields the defaults.
func (s *Store) Get(chatID int64) Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sess, ok := s.sessions[chatID]; ok {
		return sess
	}
	return s.defaultFn()
}

// Apply shallow-merges the partial into the stored session. Fields not set
// in the partial are left untouched.
func (s *Store) Apply(chatID int64, p Partial) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[chatID]
	if !ok {
		sess = s.defaultFn()
	}

	if v, set := p.NetworkID.Get(); set {
		sess.NetworkID = v
	}
	if v, set := p.Wallet.Get(); set {
		sess.Wallet = v
	}
	if v, set := p.Draft.Get(); set {
		sess.Draft = v
	}
	if v, set := p.Input.Get(); set {
		sess.Input = v
	}
	if v, set := p.MixerStatus.Get(); set {
		sess.MixerStatus = v
	}
	if v, set := p.MixerAmount.Get(); set {
		sess.MixerAmount = v
	}
	if v, set := p.MixerReceiver.Get(); set {
		sess.MixerReceiver = v
	}

	s.sessions[chatID] = sess
}
