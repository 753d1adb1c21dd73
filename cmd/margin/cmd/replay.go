package cmd

import (
	"fmt"

	"github.com/rustyeddy/margin/autorisk"
	"github.com/rustyeddy/margin/broker"
	"github.com/rustyeddy/margin/internal/replay"
	"github.com/rustyeddy/margin/sim"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay recorded ticks and scripted orders from CSV",
	Long: `Replay tick data through the engine. Rows are time,symbol,price and may
carry a scripted event (OPEN, LIMIT, CANCEL, CLOSE, CLOSE_ALL).

Examples:
  margin replay -t data/btc.csv
  margin replay -c margin.yaml -t data/btc.csv --auto`,
	RunE: runReplay,
}

var (
	replayTicksPath  string
	replayCloseEnd   bool
	replayEventFirst bool
	replayAuto       bool
)

func init() {
	rootCmd.AddCommand(replayCmd)

	replayCmd.Flags().StringVarP(&replayTicksPath, "ticks", "t", "", "CSV file of ticks and events (required)")
	replayCmd.Flags().BoolVar(&replayCloseEnd, "close-end", true, "close all open positions at end")
	replayCmd.Flags().BoolVar(&replayEventFirst, "event-first", false, "apply each row's event before its tick")
	replayCmd.Flags().BoolVar(&replayAuto, "auto", false, "apply the auto-risk policy to scripted orders")
	replayCmd.MarkFlagRequired("ticks")
}

func runReplay(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)
	defer log.Sync()

	j, err := cfg.OpenJournal()
	if err != nil {
		return fmt.Errorf("create journal: %w", err)
	}
	defer j.Close()

	opts := replay.Options{TickThenEvent: !replayEventFirst, Log: log}
	if replayAuto {
		store, closeStore, err := cfg.OpenAutoRiskStore()
		if err != nil {
			return fmt.Errorf("open autorisk store: %w", err)
		}
		defer closeStore()
		if opts.Policy, err = autorisk.NewPolicy(ctx, store, log); err != nil {
			return err
		}
	}

	balance := decimal.NewFromFloat(cfg.Account.Balance)
	engine := sim.NewEngine(broker.Account{ID: cfg.Account.ID, Balance: balance}, cfg.Risk.Params(), j, log)

	fmt.Printf("Replaying ticks from: %s\n", replayTicksPath)
	res, err := replay.CSV(ctx, replayTicksPath, engine, opts)
	if err != nil {
		return fmt.Errorf("replay error: %w", err)
	}

	if replayCloseEnd {
		if err := engine.CloseAll(ctx, "EndOfReplay"); err != nil {
			return fmt.Errorf("close all: %w", err)
		}
	}

	acct := engine.Account()
	fmt.Printf("\nReplay complete!\n")
	fmt.Printf("  Rows: %d (ticks %d, stale %d)\n", res.Rows, res.Ticks, res.Stale)
	fmt.Printf("  Fills: %d, refused orders: %d, alerts: %d\n", res.Fills, res.Rejected, len(res.Alerts))
	fmt.Printf("  Balance: %s\n", acct.Balance.StringFixed(2))
	fmt.Printf("  Available: %s\n", acct.Available.StringFixed(2))
	fmt.Printf("  Margin Used: %s\n", acct.MarginUsed.StringFixed(2))
	fmt.Printf("  Profit/Loss: %s\n", acct.Balance.Sub(balance).StringFixed(2))
	return nil
}
