package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nikola43/SPLTokenDeployer/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
telegram_token: "12345:token"
storage_api_key: "nft-storage-key"
debug_logging: true
`)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "12345:token", cfg.TelegramToken)
	assert.Equal(t, "nft-storage-key", cfg.StorageAPIKey)
	assert.True(t, cfg.DebugLogging)
	assert.Equal(t, config.DefaultDataDir, cfg.DataDir)
	assert.True(t, cfg.TestnetShow)
}

func TestLoadConfigMissingToken(t *testing.T) {
	path := writeConfig(t, `
storage_api_key: "nft-storage-key"
`)

	_, err := config.LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram_token")
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("TOKENBOT_TELEGRAM_TOKEN", "env:token")

	path := writeConfig(t, `
telegram_token: "file:token"
storage_api_key: "nft-storage-key"
`)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "env:token", cfg.TelegramToken)
}

func TestNetworksHideTestnets(t *testing.T) {
	cfg := &config.Config{TestnetShow: false}
	for _, n := range cfg.Networks() {
		assert.False(t, n.Testnet, "testnet %s should be hidden", n.Name)
	}

	cfg.TestnetShow = true
	var hasTestnet bool
	for _, n := range cfg.Networks() {
		if n.Testnet {
			hasTestnet = true
		}
	}
	assert.True(t, hasTestnet)
}

func TestNetworkByID(t *testing.T) {
	cfg := &config.Config{TestnetShow: true}

	devnet, ok := cfg.NetworkByID(999999999)
	require.True(t, ok)
	assert.Equal(t, "Solana Devnet", devnet.Name)
	assert.Equal(t, config.MetadataProgramDevnet, devnet.MetadataProgramID)
	assert.InDelta(t, 0.1, devnet.DepositLimitSOL, 1e-9)

	_, ok = cfg.NetworkByID(42)
	assert.False(t, ok)
}

func TestDefaultNetwork(t *testing.T) {
	cfg := &config.Config{TestnetShow: false}
	assert.False(t, cfg.DefaultNetwork().Testnet)
}
