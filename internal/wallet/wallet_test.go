package wallet_test

import (
	"testing"

	"github.com/nikola43/SPLTokenDeployer/internal/wallet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndReimport(t *testing.T) {
	w, err := wallet.Generate()
	require.NoError(t, err)
	require.Len(t, []byte(w.PrivateKey), 64)

	reimported, err := wallet.New(w.ExportBase58())
	require.NoError(t, err)
	assert.Equal(t, w.PublicKey, reimported.PublicKey)
}

func TestNewRejectsMalformedKeys(t *testing.T) {
	cases := []string{
		"",
		"short",
		"0OIl+/not-base58-at-all-0OIl+/not-base58-at-all-0OIl+/not-base58-at-all-0OIl+/not-base58",
	}
	for _, c := range cases {
		_, err := wallet.New(c)
		assert.Error(t, err, "key %q should be rejected", c)
	}
}

func TestATAIsDeterministicAndCached(t *testing.T) {
	w, err := wallet.Generate()
	require.NoError(t, err)

	mint, err := wallet.Generate()
	require.NoError(t, err)

	first, err := w.ATA(mint.PublicKey)
	require.NoError(t, err)
	second, err := w.ATA(mint.PublicKey)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	derived, err := wallet.AssociatedTokenAddress(w.PublicKey, mint.PublicKey)
	require.NoError(t, err)
	assert.Equal(t, derived, first)

	// A different owner derives a different account.
	other, err := wallet.Generate()
	require.NoError(t, err)
	otherATA, err := other.ATA(mint.PublicKey)
	require.NoError(t, err)
	assert.NotEqual(t, first, otherATA)
}
