package cmd

import (
	"fmt"

	"github.com/rustyeddy/margin/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Generate or validate configuration files",
	Long: `Manage engine configuration files.

Subcommands:
  init     - Generate a default configuration file
  validate - Validate an existing configuration file

Examples:
  margin config init -o margin.yaml
  margin config validate -f margin.yaml`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a default configuration file",
	RunE:  runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	RunE:  runConfigValidate,
}

var (
	configInitOutput   string
	configValidatePath string
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)

	configInitCmd.Flags().StringVarP(&configInitOutput, "output", "o", "margin.yaml", "output config file path")
	configValidateCmd.Flags().StringVarP(&configValidatePath, "file", "f", "", "path to config file (required)")
	configValidateCmd.MarkFlagRequired("file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if err := cfg.SaveToFile(configInitOutput); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Printf("✓ Created default configuration: %s\n", configInitOutput)
	fmt.Println("\nEdit the file and run with:")
	fmt.Printf("  margin replay -c %s -t ticks.csv\n", configInitOutput)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(configValidatePath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	fmt.Printf("✓ Configuration valid: %s\n", configValidatePath)
	fmt.Printf("  Account: %s (%.2f)\n", cfg.Account.ID, cfg.Account.Balance)
	fmt.Printf("  Risk: fee %.4f%%, maintenance %.3f%%, max leverage %dx\n",
		cfg.Risk.FeeRate*100, cfg.Risk.MaintenanceMarginRate*100, cfg.Risk.Params().MaxLeverage)
	fmt.Printf("  Auto-risk store: %s\n", cfg.AutoRisk.Store)
	fmt.Printf("  Journal: %s\n", cfg.Journal.Type)
	return nil
}
