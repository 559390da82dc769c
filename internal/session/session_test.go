package session_test

import (
	"sync"
	"testing"

	"github.com/nikola43/SPLTokenDeployer/internal/session"
	"github.com/nikola43/SPLTokenDeployer/internal/wallet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const devnetID = int64(999999999)

func TestGetMissingSessionYieldsDefaults(t *testing.T) {
	store := session.NewStore(devnetID)

	sess := store.Get(42)
	assert.Equal(t, devnetID, sess.NetworkID)
	assert.Nil(t, sess.Wallet)
	assert.Equal(t, session.DefaultLockTime, sess.Draft.LockTime)
}

func TestApplyMergesInCallOrder(t *testing.T) {
	store := session.NewStore(devnetID)

	w, err := wallet.Generate()
	require.NoError(t, err)

	store.Apply(1, session.Partial{Wallet: session.Some(w)})
	store.Apply(1, session.Partial{NetworkID: session.Some(int64(7))})

	draft := store.Get(1).Draft
	draft.Symbol = "TT"
	store.Apply(1, session.Partial{Draft: session.Some(draft)})

	draft = store.Get(1).Draft
	draft.Name = "Test Token"
	store.Apply(1, session.Partial{Draft: session.Some(draft)})

	sess := store.Get(1)
	assert.Equal(t, int64(7), sess.NetworkID)
	assert.Same(t, w, sess.Wallet)
	assert.Equal(t, "TT", sess.Draft.Symbol, "earlier draft fields survive later merges")
	assert.Equal(t, "Test Token", sess.Draft.Name)
	assert.Equal(t, session.DefaultLockTime, sess.Draft.LockTime)
}

func TestApplyExplicitNilClearsWallet(t *testing.T) {
	store := session.NewStore(devnetID)

	w, err := wallet.Generate()
	require.NoError(t, err)
	store.Apply(1, session.Partial{Wallet: session.Some(w)})
	require.NotNil(t, store.Get(1).Wallet)

	// Disconnect: setting the field to an explicit nil must clear it,
	// not silently no-op.
	store.Apply(1, session.Partial{Wallet: session.Some[*wallet.Wallet](nil)})
	assert.Nil(t, store.Get(1).Wallet)
}

func TestApplyUnsetFieldLeavesValueUntouched(t *testing.T) {
	store := session.NewStore(devnetID)

	w, err := wallet.Generate()
	require.NoError(t, err)
	store.Apply(1, session.Partial{Wallet: session.Some(w)})

	// A partial that never mentions the wallet leaves it alone.
	store.Apply(1, session.Partial{MixerStatus: session.Some(true)})
	sess := store.Get(1)
	assert.Same(t, w, sess.Wallet)
	assert.True(t, sess.MixerStatus)
}

func TestInputFocusSupersession(t *testing.T) {
	store := session.NewStore(devnetID)

	store.Apply(1, session.Partial{Input: session.Some(&session.InputFocus{
		Field: session.FieldSymbol, ReturnPage: "deploy", PromptID: 10,
	})})
	store.Apply(1, session.Partial{Input: session.Some(&session.InputFocus{
		Field: session.FieldName, ReturnPage: "deploy", PromptID: 11,
	})})

	focus := store.Get(1).Input
	require.NotNil(t, focus)
	assert.Equal(t, session.FieldName, focus.Field)
	assert.Equal(t, 11, focus.PromptID)

	store.Apply(1, session.Partial{Input: session.Some[*session.InputFocus](nil)})
	assert.Nil(t, store.Get(1).Input)
}

func TestSessionsArePartitionedByChat(t *testing.T) {
	store := session.NewStore(devnetID)

	store.Apply(1, session.Partial{NetworkID: session.Some(int64(1))})
	store.Apply(2, session.Partial{NetworkID: session.Some(int64(2))})

	assert.Equal(t, int64(1), store.Get(1).NetworkID)
	assert.Equal(t, int64(2), store.Get(2).NetworkID)
	assert.Equal(t, devnetID, store.Get(3).NetworkID)
}

func TestConcurrentAppliesDoNotRace(t *testing.T) {
	store := session.NewStore(devnetID)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			store.Apply(1, session.Partial{MixerStatus: session.Some(true)})
		}()
		go func() {
			defer wg.Done()
			_ = store.Get(1)
		}()
	}
	wg.Wait()

	assert.True(t, store.Get(1).MixerStatus)
}
