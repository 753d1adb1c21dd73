package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rustyeddy/margin/broker"
	"github.com/rustyeddy/margin/feed"
	"github.com/rustyeddy/margin/metrics"
	"github.com/rustyeddy/margin/sim"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Mark positions against a live websocket price feed",
	Long: `Connect to the websocket feed in feed.url, apply every price batch to the
engine and log fills and trigger alerts. Prometheus metrics are served on
metrics.addr when set.

Example:
  margin stream -c margin.yaml --url ws://localhost:9000/prices`,
	RunE: runStream,
}

var (
	streamURL         string
	streamMetricsAddr string
)

func init() {
	rootCmd.AddCommand(streamCmd)

	streamCmd.Flags().StringVar(&streamURL, "url", "", "override feed.url")
	streamCmd.Flags().StringVar(&streamMetricsAddr, "metrics-addr", "", "override metrics.addr")
}

type alertLogger struct {
	log *zap.Logger
}

func (l alertLogger) OnUpdate(u sim.Update) {
	for _, id := range u.Filled {
		l.log.Info("fill", zap.String("symbol", u.Symbol), zap.String("id", id), zap.Stringer("price", u.Price))
	}
	for _, a := range u.Alerts {
		l.log.Warn("trigger crossed",
			zap.String("kind", string(a.Kind)),
			zap.String("id", a.PositionID),
			zap.Stringer("price", a.Price))
	}
}

func runStream(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if streamURL != "" {
		cfg.Feed.URL = streamURL
	}
	if streamMetricsAddr != "" {
		cfg.Metrics.Addr = streamMetricsAddr
	}
	if cfg.Feed.URL == "" {
		return fmt.Errorf("feed.url (or --url) is required")
	}
	wait, err := cfg.Feed.ReconnectDuration()
	if err != nil {
		return err
	}

	log := newLogger(cfg)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	j, err := cfg.OpenJournal()
	if err != nil {
		return fmt.Errorf("create journal: %w", err)
	}
	defer j.Close()

	engine := sim.NewEngine(broker.Account{
		ID:      cfg.Account.ID,
		Balance: decimal.NewFromFloat(cfg.Account.Balance),
	}, cfg.Risk.Params(), j, log)
	engine.SetListener(alertLogger{log: log})

	if cfg.Metrics.Addr != "" {
		srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		log.Info("metrics listening", zap.String("addr", cfg.Metrics.Addr))
	}

	events := make(chan sim.Event, 256)
	client := feed.NewClient(cfg.Feed.URL, wait, log)
	go func() {
		_ = client.Run(ctx, func(m feed.Message) {
			select {
			case events <- sim.PricesEvent{Prices: m.Prices, Seq: m.Seq, Time: m.Time}:
			case <-ctx.Done():
			}
		})
	}()

	err = engine.Run(ctx, events)
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	acct := engine.Account()
	log.Info("stream stopped",
		zap.Stringer("balance", acct.Balance),
		zap.Stringer("available", acct.Available),
		zap.Stringer("unrealized", acct.UnrealizedPnl))
	return err
}
