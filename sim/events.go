package sim

import (
	"context"
	"fmt"
	"time"

	"github.com/rustyeddy/margin/broker"
	"github.com/rustyeddy/margin/market"
	"github.com/rustyeddy/margin/risk"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type AlertKind string

const (
	AlertStopLoss    AlertKind = "STOP_LOSS"
	AlertTakeProfit  AlertKind = "TAKE_PROFIT"
	AlertLiquidation AlertKind = "LIQUIDATION"
)

// Alert reports that a trigger price was crossed. Closing the position is
// left to the caller.
type Alert struct {
	PositionID string
	Kind       AlertKind
	Price      decimal.Decimal
}

// Update is the outcome of one applied tick.
type Update struct {
	Symbol    string
	Price     decimal.Decimal
	Stale     bool
	Filled    []string // positions opened by this tick
	Snapshots map[string]risk.PnL
	Alerts    []Alert
	Account   broker.Account
}

// Event is anything that arrives from outside the engine: prices, verdicts
// from the authority, account refreshes.
type Event interface {
	isEvent()
}

type TickEvent struct {
	Tick market.Tick
}

type PricesEvent struct {
	Prices map[string]decimal.Decimal
	Seq    uint64
	Time   time.Time
}

type SubmissionEvent struct {
	Result broker.SubmissionResult
}

type AccountEvent struct {
	Account broker.Account
}

func (TickEvent) isEvent()       {}
func (PricesEvent) isEvent()     {}
func (SubmissionEvent) isEvent() {}
func (AccountEvent) isEvent()    {}

// Apply runs a single event to completion.
func (e *Engine) Apply(ev Event) error {
	switch ev := ev.(type) {
	case TickEvent:
		e.ApplyTick(ev.Tick)
	case PricesEvent:
		e.ApplyPrices(ev.Prices, ev.Seq, ev.Time)
	case SubmissionEvent:
		return e.ApplySubmission(ev.Result)
	case AccountEvent:
		e.SyncAccount(ev.Account)
	default:
		return fmt.Errorf("sim: unknown event %T", ev)
	}
	return nil
}

// Run drains events one at a time until the channel closes or ctx is done.
// A failing event is logged and does not stop the loop.
func (e *Engine) Run(ctx context.Context, events <-chan Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := e.Apply(ev); err != nil {
				e.log.Warn("event failed", zap.String("event", fmt.Sprintf("%T", ev)), zap.Error(err))
			}
		}
	}
}
