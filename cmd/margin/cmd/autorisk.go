package cmd

import (
	"context"
	"fmt"

	"github.com/rustyeddy/margin/autorisk"
	"github.com/rustyeddy/margin/market"
	"github.com/spf13/cobra"
)

var autoriskCmd = &cobra.Command{
	Use:   "autorisk",
	Short: "Show or change the automatic stop-loss / take-profit policy",
	Long: `The auto-risk policy derives stop-loss and take-profit prices from
percentages of an order's reference price. It is stored under the key
margin.autorisk.v1 in the store selected by the autorisk config section.

Examples:
  margin autorisk show
  margin autorisk set --enabled --sl 2.5 --tp 5
  margin autorisk derive --side short --price 3200`,
}

var autoriskShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the stored policy",
	Args:  cobra.NoArgs,
	RunE:  runAutoriskShow,
}

var autoriskSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change the stored policy",
	Args:  cobra.NoArgs,
	RunE:  runAutoriskSet,
}

var autoriskDeriveCmd = &cobra.Command{
	Use:   "derive",
	Short: "Print the triggers the policy would attach to an order",
	Args:  cobra.NoArgs,
	RunE:  runAutoriskDerive,
}

var (
	autoriskEnabled bool
	autoriskSL      float64
	autoriskTP      float64
	autoriskSide    string
	autoriskPrice   string
)

func init() {
	rootCmd.AddCommand(autoriskCmd)
	autoriskCmd.AddCommand(autoriskShowCmd)
	autoriskCmd.AddCommand(autoriskSetCmd)
	autoriskCmd.AddCommand(autoriskDeriveCmd)

	autoriskSetCmd.Flags().BoolVar(&autoriskEnabled, "enabled", false, "enable the policy")
	autoriskSetCmd.Flags().Float64Var(&autoriskSL, "sl", 0, "stop-loss percent")
	autoriskSetCmd.Flags().Float64Var(&autoriskTP, "tp", 0, "take-profit percent")

	autoriskDeriveCmd.Flags().StringVar(&autoriskSide, "side", "long", "long or short")
	autoriskDeriveCmd.Flags().StringVar(&autoriskPrice, "price", "", "reference price (required)")
	autoriskDeriveCmd.MarkFlagRequired("price")
}

func openPolicy(ctx context.Context) (*autorisk.Policy, func() error, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	store, closeStore, err := cfg.OpenAutoRiskStore()
	if err != nil {
		return nil, nil, fmt.Errorf("open autorisk store: %w", err)
	}
	policy, err := autorisk.NewPolicy(ctx, store, newLogger(cfg))
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	return policy, closeStore, nil
}

func printPolicy(c autorisk.Config) {
	state := "disabled"
	if c.Enabled {
		state = "enabled"
	}
	fmt.Printf("Auto-risk: %s\n", state)
	fmt.Printf("  Stop loss:   %.2f%%\n", c.StopLossPercent)
	fmt.Printf("  Take profit: %.2f%%\n", c.TakeProfitPercent)
}

func runAutoriskShow(cmd *cobra.Command, args []string) error {
	policy, closeStore, err := openPolicy(cmd.Context())
	if err != nil {
		return err
	}
	defer closeStore()

	printPolicy(policy.Current())
	return nil
}

func runAutoriskSet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	policy, closeStore, err := openPolicy(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	next := policy.Current()
	if cmd.Flags().Changed("enabled") {
		next.Enabled = autoriskEnabled
	}
	if cmd.Flags().Changed("sl") {
		next.StopLossPercent = autoriskSL
	}
	if cmd.Flags().Changed("tp") {
		next.TakeProfitPercent = autoriskTP
	}

	if err := policy.Update(ctx, next); err != nil {
		return fmt.Errorf("update policy: %w", err)
	}
	fmt.Println("✓ Policy saved")
	printPolicy(policy.Current())
	return nil
}

func runAutoriskDerive(cmd *cobra.Command, args []string) error {
	side, err := market.ParseSide(autoriskSide)
	if err != nil {
		return err
	}
	ref, err := parseDecimal("price", autoriskPrice)
	if err != nil {
		return err
	}

	policy, closeStore, err := openPolicy(cmd.Context())
	if err != nil {
		return err
	}
	defer closeStore()

	tr, ok := autorisk.DeriveTriggers(ref, side, policy.Current())
	if !ok {
		fmt.Println("Auto-risk is disabled; no triggers derived")
		return nil
	}
	fmt.Printf("%s @ %s\n", side, ref)
	fmt.Printf("  Stop loss:   %s\n", tr.StopLoss.StringFixed(8))
	fmt.Printf("  Take profit: %s\n", tr.TakeProfit.StringFixed(8))
	return nil
}
