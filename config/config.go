package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rustyeddy/margin/risk"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config is the complete engine configuration
type Config struct {
	Account  AccountConfig  `json:"account" yaml:"account"`
	Risk     RiskConfig     `json:"risk" yaml:"risk"`
	AutoRisk AutoRiskConfig `json:"autorisk" yaml:"autorisk"`
	Journal  JournalConfig  `json:"journal" yaml:"journal"`
	Feed     FeedConfig     `json:"feed" yaml:"feed"`
	Log      LogConfig      `json:"log" yaml:"log"`
	Metrics  MetricsConfig  `json:"metrics" yaml:"metrics"`
}

// AccountConfig contains account initialization parameters
type AccountConfig struct {
	ID      string  `json:"id" yaml:"id"`
	Balance float64 `json:"balance" yaml:"balance"`
}

// RiskConfig holds the exchange-wide rates
type RiskConfig struct {
	FeeRate               float64 `json:"fee_rate" yaml:"fee_rate"`
	MaintenanceMarginRate float64 `json:"maintenance_margin_rate" yaml:"maintenance_margin_rate"`
	MaxLeverage           int     `json:"max_leverage" yaml:"max_leverage"`
}

// AutoRiskConfig selects where the scalper policy is persisted
type AutoRiskConfig struct {
	Store string `json:"store" yaml:"store"` // "memory", "file" or "sqlite"
	Path  string `json:"path,omitempty" yaml:"path,omitempty"`
}

// JournalConfig contains journaling parameters
type JournalConfig struct {
	Type          string `json:"type" yaml:"type"` // "csv", "sqlite" or "none"
	PositionsFile string `json:"positions_file,omitempty" yaml:"positions_file,omitempty"`
	AccountFile   string `json:"account_file,omitempty" yaml:"account_file,omitempty"`
	DBPath        string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

type FeedConfig struct {
	URL           string `json:"url,omitempty" yaml:"url,omitempty"`
	ReconnectWait string `json:"reconnect_wait,omitempty" yaml:"reconnect_wait,omitempty"` // e.g. "5s"
}

// ReconnectDuration parses ReconnectWait; empty means the feed default.
func (f FeedConfig) ReconnectDuration() (time.Duration, error) {
	if f.ReconnectWait == "" {
		return 0, nil
	}
	return time.ParseDuration(f.ReconnectWait)
}

type LogConfig struct {
	Level string `json:"level" yaml:"level"`
}

type MetricsConfig struct {
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"` // e.g. ":9102"; empty disables
}

// Params converts the risk section into calculator parameters.
func (r RiskConfig) Params() risk.Params {
	p := risk.DefaultParams()
	p.FeeRate = decimal.NewFromFloat(r.FeeRate)
	p.MaintenanceMarginRate = decimal.NewFromFloat(r.MaintenanceMarginRate)
	if r.MaxLeverage > 0 {
		p.MaxLeverage = r.MaxLeverage
	}
	return p
}

// LoadFromFile loads configuration from a file (YAML or JSON)
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Account.Balance <= 0 {
		return fmt.Errorf("account.balance must be positive")
	}
	if c.Risk.FeeRate < 0 || c.Risk.FeeRate >= 1 {
		return fmt.Errorf("risk.fee_rate must be in [0, 1)")
	}
	if c.Risk.MaintenanceMarginRate < 0 || c.Risk.MaintenanceMarginRate >= 1 {
		return fmt.Errorf("risk.maintenance_margin_rate must be in [0, 1)")
	}
	if c.Risk.MaxLeverage < 0 {
		return fmt.Errorf("risk.max_leverage must not be negative")
	}

	switch c.AutoRisk.Store {
	case "", "memory":
	case "file", "sqlite":
		if c.AutoRisk.Path == "" {
			return fmt.Errorf("autorisk.path required for %s store", c.AutoRisk.Store)
		}
	default:
		return fmt.Errorf("autorisk.store must be 'memory', 'file' or 'sqlite'")
	}

	switch c.Journal.Type {
	case "none":
	case "csv":
		if c.Journal.PositionsFile == "" || c.Journal.AccountFile == "" {
			return fmt.Errorf("journal positions_file and account_file required for CSV type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for SQLite type")
		}
	default:
		return fmt.Errorf("journal.type must be 'csv', 'sqlite' or 'none'")
	}

	if _, err := c.Feed.ReconnectDuration(); err != nil {
		return fmt.Errorf("feed.reconnect_wait: %w", err)
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error")
	}
	return nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			ID:      "PAPER-001",
			Balance: 10000,
		},
		Risk: RiskConfig{
			FeeRate:               0.0004,
			MaintenanceMarginRate: 0.004,
			MaxLeverage:           125,
		},
		AutoRisk: AutoRiskConfig{
			Store: "file",
			Path:  "./autorisk.yaml",
		},
		Journal: JournalConfig{
			Type:          "csv",
			PositionsFile: "./positions.csv",
			AccountFile:   "./account.csv",
		},
		Feed: FeedConfig{
			ReconnectWait: "5s",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
