// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"strings"

	"github.com/spf13/viper"
)

// Network describes one supported ledger environment. The table is static:
// endpoints and deposit thresholds are fixed per network and consumed by
// the deployment pipeline and the deposit watcher. The deposit limit is
// the only charge; no separate service fee is collected.
type Network struct {
	ID                int64
	Name              string
	Symbol            string
	Endpoint          string
	WSEndpoint        string
	Testnet           bool
	DepositLimitSOL   float64 // minimum deposit that releases a pending deployment
	MetadataProgramID string
}

// Metadata program ids differ between devnet and production.
const (
	MetadataProgramMainnet = "META4s4fSmpkTbZoUsgC1oBnWB31vQcmnN8giPw51Zu"
	MetadataProgramDevnet  = "M1tgEZCz7fHqRAR3G5RLxU6c6ceQiZyFK7tzzy4Rof4"
)

var networks = []Network{
	{
		ID:                999999999,
		Name:              "Solana Devnet",
		Symbol:            "SOL",
		Endpoint:          "https://api.devnet.solana.com",
		WSEndpoint:        "wss://api.devnet.solana.com",
		Testnet:           true,
		DepositLimitSOL:   0.1,
		MetadataProgramID: MetadataProgramDevnet,
	},
	{
		ID:                9999999991,
		Name:              "Solana Mainnet",
		Symbol:            "SOL",
		Endpoint:          "https://api.mainnet-beta.solana.com",
		WSEndpoint:        "wss://api.mainnet-beta.solana.com",
		Testnet:           false,
		DepositLimitSOL:   0.1,
		MetadataProgramID: MetadataProgramMainnet,
	},
}

type Config struct {
	TelegramToken string `mapstructure:"telegram_token"`
	StorageAPIKey string `mapstructure:"storage_api_key"`
	DataDir       string `mapstructure:"data_dir"`
	LogFile       string `mapstructure:"log_file"`
	DebugLogging  bool   `mapstructure:"debug_logging"`
	TestnetShow   bool   `mapstructure:"testnet_show"`
}

const (
	DefaultDataDir = "data"
	DefaultLogFile = "bot.log"
)

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	defaults := map[string]interface{}{
		"data_dir":     DefaultDataDir,
		"log_file":     DefaultLogFile,
		"testnet_show": true,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	loadEnvironmentVariables(v, &cfg)

	return &cfg, validateConfig(&cfg)
}

func validateConfig(cfg *Config) error {
	if cfg.TelegramToken == "" {
		return errors.New("missing telegram_token in configuration")
	}
	if cfg.StorageAPIKey == "" {
		return errors.New("missing storage_api_key in configuration")
	}
	if cfg.DataDir == "" {
		return errors.New("invalid data_dir")
	}
	return nil
}

func loadEnvironmentVariables(v *viper.Viper, cfg *Config) {
	v.AutomaticEnv()
	v.SetEnvPrefix("TOKENBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if token := v.GetString("TELEGRAM_TOKEN"); token != "" {
		cfg.TelegramToken = token
	}
	if key := v.GetString("STORAGE_API_KEY"); key != "" {
		cfg.StorageAPIKey = key
	}
}

// Networks returns the supported networks. Testnets are hidden unless
// testnet_show is enabled.
func (c *Config) Networks() []Network {
	if c.TestnetShow {
		return networks
	}
	var visible []Network
	for _, n := range networks {
		if !n.Testnet {
			visible = append(visible, n)
		}
	}
	return visible
}

// NetworkByID looks up a network in the visible set.
func (c *Config) NetworkByID(id int64) (Network, bool) {
	for _, n := range c.Networks() {
		if n.ID == id {
			return n, true
		}
	}
	return Network{}, false
}

// DefaultNetwork returns the network a fresh session starts on.
func (c *Config) DefaultNetwork() Network {
	visible := c.Networks()
	return visible[0]
}
