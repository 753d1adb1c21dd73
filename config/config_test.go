package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rustyeddy/margin/autorisk"
	"github.com/rustyeddy/margin/journal"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	t.Parallel()
	cfg := Default()
	assert.Equal(t, 10000.0, cfg.Account.Balance)
	assert.Equal(t, "csv", cfg.Journal.Type)
	assert.NoError(t, cfg.Validate())

	p := cfg.Risk.Params()
	assert.True(t, decimal.RequireFromString("0.0004").Equal(p.FeeRate))
	assert.True(t, decimal.RequireFromString("0.004").Equal(p.MaintenanceMarginRate))
	assert.Equal(t, 125, p.MaxLeverage)
	assert.NoError(t, p.Validate())
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		modify func(*Config)
		errMsg string
	}{
		{"valid config", func(*Config) {}, ""},
		{"negative balance", func(c *Config) { c.Account.Balance = -1 }, "account.balance must be positive"},
		{"fee rate too high", func(c *Config) { c.Risk.FeeRate = 1 }, "risk.fee_rate"},
		{"negative mmr", func(c *Config) { c.Risk.MaintenanceMarginRate = -0.1 }, "risk.maintenance_margin_rate"},
		{"negative leverage", func(c *Config) { c.Risk.MaxLeverage = -5 }, "risk.max_leverage"},
		{"unknown store", func(c *Config) { c.AutoRisk.Store = "redis" }, "autorisk.store"},
		{"sqlite store without path", func(c *Config) { c.AutoRisk = AutoRiskConfig{Store: "sqlite"} }, "autorisk.path"},
		{"memory store", func(c *Config) { c.AutoRisk = AutoRiskConfig{Store: "memory"} }, ""},
		{"unknown journal", func(c *Config) { c.Journal.Type = "parquet" }, "journal.type"},
		{"csv files missing", func(c *Config) { c.Journal.AccountFile = "" }, "positions_file and account_file"},
		{"sqlite journal without path", func(c *Config) { c.Journal = JournalConfig{Type: "sqlite"} }, "db_path"},
		{"no journal", func(c *Config) { c.Journal = JournalConfig{Type: "none"} }, ""},
		{"bad reconnect wait", func(c *Config) { c.Feed.ReconnectWait = "soon" }, "feed.reconnect_wait"},
		{"bad log level", func(c *Config) { c.Log.Level = "chatty" }, "log.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"config.yaml", "config.json"} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), name)

			cfg := Default()
			cfg.Account.ID = "ACC-9"
			cfg.Feed.URL = "ws://localhost:9000/prices"
			require.NoError(t, cfg.SaveToFile(path))

			loaded, err := LoadFromFile(path)
			require.NoError(t, err)
			assert.Equal(t, cfg, loaded)
		})
	}
}

func TestLoadFromFileErrors(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	_, err := LoadFromFile(filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "read config file")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("account: [unterminated"), 0644))
	_, err = LoadFromFile(bad)
	assert.ErrorContains(t, err, "parse config")

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("account:\n  balance: 0\njournal:\n  type: none\n"), 0644))
	_, err = LoadFromFile(invalid)
	assert.ErrorContains(t, err, "invalid config")
}

func TestReconnectDuration(t *testing.T) {
	t.Parallel()
	d, err := FeedConfig{}.ReconnectDuration()
	require.NoError(t, err)
	assert.Zero(t, d)

	d, err = FeedConfig{ReconnectWait: "250ms"}.ReconnectDuration()
	require.NoError(t, err)
	assert.Equal(t, int64(250), d.Milliseconds())
}

func TestOpenJournalAndStore(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	cfg := Default()
	cfg.Journal = JournalConfig{Type: "sqlite", DBPath: filepath.Join(dir, "journal.db")}
	cfg.AutoRisk = AutoRiskConfig{Store: "sqlite", Path: filepath.Join(dir, "settings.db")}

	j, err := cfg.OpenJournal()
	require.NoError(t, err)
	assert.IsType(t, &journal.SQLite{}, j)
	require.NoError(t, j.Close())

	store, closeStore, err := cfg.OpenAutoRiskStore()
	require.NoError(t, err)
	defer closeStore()
	assert.IsType(t, &autorisk.SQLiteStore{}, store)

	cfg.Journal = JournalConfig{Type: "none"}
	j, err = cfg.OpenJournal()
	require.NoError(t, err)
	assert.Equal(t, journal.Nop{}, j)

	cfg.AutoRisk = AutoRiskConfig{Store: "file", Path: filepath.Join(dir, "autorisk.yaml")}
	store, _, err = cfg.OpenAutoRiskStore()
	require.NoError(t, err)
	assert.IsType(t, &autorisk.FileStore{}, store)
}
