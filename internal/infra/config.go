package infra

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"tradesim/internal/domain"
)

// Config holds the full application configuration, loaded from YAML with
// environment-variable overrides applied afterwards.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Feed struct {
		WSURL       string `yaml:"ws_url"`
		Exchange    string `yaml:"exchange"`
		Symbol      string `yaml:"symbol"`
		MaxAttempts int    `yaml:"max_attempts"`
		BaseDelayMS int    `yaml:"base_delay_ms"`
		MaxDelayMS  int    `yaml:"max_delay_ms"`
	} `yaml:"feed"`

	Simulation struct {
		OrderType     string          `yaml:"order_type"`
		QuantityUSD   decimal.Decimal `yaml:"quantity_usd"`
		VolatilityPct decimal.Decimal `yaml:"volatility_pct"`
		FeeTier       string          `yaml:"fee_tier"`
	} `yaml:"simulation"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrConfigNotFound, path)
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if c.Feed.WSURL == "" || (!strings.HasPrefix(c.Feed.WSURL, "ws://") && !strings.HasPrefix(c.Feed.WSURL, "wss://")) {
		return fmt.Errorf("invalid feed WS URL: %s", c.Feed.WSURL)
	}
	if c.Feed.Symbol == "" {
		return fmt.Errorf("feed symbol is required")
	}
	if c.Feed.MaxAttempts < 0 {
		return fmt.Errorf("max attempts must not be negative")
	}
	if !c.Simulation.QuantityUSD.IsPositive() {
		return fmt.Errorf("quantity must be positive")
	}
	return nil
}

// overrideWithEnv overrides configuration values from the environment when
// present. Lets a deployment point the simulator at another endpoint
// without editing the file.
func overrideWithEnv(cfg *Config) {
	if url := os.Getenv("TRADESIM_FEED_URL"); url != "" {
		cfg.Feed.WSURL = url
	}
	if symbol := os.Getenv("TRADESIM_SYMBOL"); symbol != "" {
		cfg.Feed.Symbol = symbol
	}
	if level := os.Getenv("TRADESIM_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
}
