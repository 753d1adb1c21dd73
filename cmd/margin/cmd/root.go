package cmd

import (
	"fmt"

	"github.com/rustyeddy/margin/config"
	"github.com/rustyeddy/margin/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:   "margin",
	Short: "Margin trading risk and order evaluation engine",
	Long: `Margin prices leveraged orders, tracks their liquidation price and PnL,
and evaluates resting limit orders against a live or recorded price feed.

It provides tools for:
  - Previewing order cost, fee, liquidation price and maximum size
  - Managing the automatic stop-loss / take-profit policy
  - Replaying recorded ticks and scripted orders through the engine
  - Streaming a websocket price feed with Prometheus metrics
  - Querying the position journal`,
	SilenceUsage: true,
}

var (
	configPath string
	logLevel   string
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (defaults are used when empty)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level from the config")
}

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *zap.Logger {
	level := cfg.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	return logging.New(level)
}
