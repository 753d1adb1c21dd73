package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rustyeddy/margin/autorisk"
	"github.com/rustyeddy/margin/market"
	"github.com/rustyeddy/margin/risk"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Price an order without placing it",
	Long: `Compute margin, fee, total cost, liquidation price and the largest
affordable quantity for an order, and list every check it fails.

Examples:
  margin preview -s BTCUSDT --side long -q 0.5 -l 20 --price 65000
  margin preview -s ETHUSDT --side short --type limit -q 2 -l 10 --limit 3200 --auto`,
	RunE: runPreview,
}

var (
	previewSymbol    string
	previewSide      string
	previewType      string
	previewQty       string
	previewLeverage  int
	previewPrice     string
	previewLimit     string
	previewStop      string
	previewTake      string
	previewAvailable string
	previewAuto      bool
)

func init() {
	rootCmd.AddCommand(previewCmd)

	f := previewCmd.Flags()
	f.StringVarP(&previewSymbol, "symbol", "s", "", "symbol (required)")
	f.StringVar(&previewSide, "side", "long", "long or short")
	f.StringVar(&previewType, "type", "market", "market or limit")
	f.StringVarP(&previewQty, "qty", "q", "", "quantity before leverage (required)")
	f.IntVarP(&previewLeverage, "leverage", "l", 1, "leverage multiplier")
	f.StringVar(&previewPrice, "price", "", "current price, used for market orders")
	f.StringVar(&previewLimit, "limit", "", "limit price, used for limit orders")
	f.StringVar(&previewStop, "sl", "", "stop-loss trigger price")
	f.StringVar(&previewTake, "tp", "", "take-profit trigger price")
	f.StringVar(&previewAvailable, "available", "", "available balance (defaults to account.balance)")
	f.BoolVar(&previewAuto, "auto", false, "fill missing stop-loss/take-profit from the auto-risk policy")
	previewCmd.MarkFlagRequired("symbol")
	previewCmd.MarkFlagRequired("qty")
}

func runPreview(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	side, err := market.ParseSide(previewSide)
	if err != nil {
		return err
	}
	typ, err := market.ParseOrderType(previewType)
	if err != nil {
		return err
	}
	qty, err := parseDecimal("qty", previewQty)
	if err != nil {
		return err
	}

	req := market.OrderRequest{
		Symbol:   previewSymbol,
		Side:     side,
		Type:     typ,
		Quantity: qty,
		Leverage: previewLeverage,
	}
	if previewLimit != "" {
		if req.LimitPrice, err = parseDecimal("limit", previewLimit); err != nil {
			return err
		}
	}
	if req.StopLoss, err = parseOptionalDecimal("sl", previewStop); err != nil {
		return err
	}
	if req.TakeProfit, err = parseOptionalDecimal("tp", previewTake); err != nil {
		return err
	}

	ref := req.LimitPrice
	if typ == market.Market {
		if ref, err = parseDecimal("price", previewPrice); err != nil {
			return fmt.Errorf("market orders need --price: %w", err)
		}
	}

	available := decimal.NewFromFloat(cfg.Account.Balance)
	if previewAvailable != "" {
		if available, err = parseDecimal("available", previewAvailable); err != nil {
			return err
		}
	}

	if previewAuto {
		ctx := context.Background()
		store, closeStore, err := cfg.OpenAutoRiskStore()
		if err != nil {
			return fmt.Errorf("open autorisk store: %w", err)
		}
		defer closeStore()
		policy, err := autorisk.NewPolicy(ctx, store, newLogger(cfg))
		if err != nil {
			return err
		}
		req = policy.Apply(req, ref)
	}

	dec := risk.Evaluate(cfg.Risk.Params(), req, ref, available)
	printDecision(req, dec)
	return dec.Err()
}

func printDecision(req market.OrderRequest, dec risk.Decision) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Order\t%s %s %s x%d %s\n", req.Type, req.Side, req.Quantity, req.Leverage, req.Symbol)
	fmt.Fprintf(w, "Reference price\t%s\n", dec.ReferencePrice)
	fmt.Fprintf(w, "Position value\t%s\n", dec.Cost.PositionValue)
	fmt.Fprintf(w, "Required margin\t%s\n", dec.Cost.RequiredMargin)
	fmt.Fprintf(w, "Fee\t%s\n", dec.Cost.Fee)
	fmt.Fprintf(w, "Total cost\t%s\n", dec.Cost.TotalCost)
	fmt.Fprintf(w, "Liquidation price\t%s\n", dec.LiquidationPrice.StringFixed(8))
	fmt.Fprintf(w, "Max quantity\t%s\n", dec.MaxQuantity)
	if req.StopLoss != nil {
		fmt.Fprintf(w, "Stop loss\t%s\n", req.StopLoss.StringFixed(8))
	}
	if req.TakeProfit != nil {
		fmt.Fprintf(w, "Take profit\t%s\n", req.TakeProfit.StringFixed(8))
	}
	w.Flush()

	if dec.Allowed {
		fmt.Println("\n✓ Order allowed")
		return
	}
	fmt.Println("\n✗ Order refused")
	for _, v := range dec.Violations {
		fmt.Printf("  %s: %s\n", v.Code, v.Msg)
	}
}

func parseDecimal(name, s string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("bad --%s %q: %w", name, s, err)
	}
	return v, nil
}

func parseOptionalDecimal(name, s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	v, err := parseDecimal(name, s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
