package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rustyeddy/margin/broker"
	"github.com/rustyeddy/margin/journal"
	"github.com/rustyeddy/margin/logging"
	"github.com/rustyeddy/margin/market"
	"github.com/rustyeddy/margin/metrics"
	"github.com/rustyeddy/margin/pkg/id"
	"github.com/rustyeddy/margin/risk"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrNotFound          = errors.New("position not found")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Listener is notified after every applied tick, outside the engine lock.
type Listener interface {
	OnUpdate(Update)
}

// Engine owns one account and its positions. Every operation that touches
// the account runs under a single mutex, so margin reservation, release and
// settlement never interleave.
type Engine struct {
	mu        sync.Mutex
	params    risk.Params
	acct      broker.Account
	ticks     *market.TickStore
	positions map[string]*broker.Position
	order     []string // insertion order of positions
	journal   journal.Journal
	log       *zap.Logger
	listener  Listener
	now       func() time.Time
}

func NewEngine(acct broker.Account, params risk.Params, j journal.Journal, log *zap.Logger) *Engine {
	if j == nil {
		j = journal.Nop{}
	}
	e := &Engine{
		params:    params,
		acct:      acct,
		ticks:     market.NewTickStore(),
		positions: make(map[string]*broker.Position),
		journal:   j,
		log:       logging.OrNop(log),
		now:       time.Now,
	}
	e.recomputeLocked()
	return e
}

// SetListener sets an optional listener for tick updates.
func (e *Engine) SetListener(l Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listener = l
}

func (e *Engine) Params() risk.Params { return e.params }

func (e *Engine) Account() broker.Account {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.acct
}

func (e *Engine) LastTick(symbol string) (market.Tick, error) {
	return e.ticks.Get(symbol)
}

func (e *Engine) Position(id string) (broker.Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.positions[id]
	if !ok {
		return broker.Position{}, fmt.Errorf("%q: %w", id, ErrNotFound)
	}
	return clonePosition(p), nil
}

// Positions returns copies of the positions in placement order, optionally
// filtered by status.
func (e *Engine) Positions(statuses ...market.Status) []broker.Position {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]broker.Position, 0, len(e.order))
	for _, pid := range e.order {
		p := e.positions[pid]
		if len(statuses) > 0 && !hasStatus(p.Status, statuses) {
			continue
		}
		out = append(out, clonePosition(p))
	}
	return out
}

// Preview prices req without changing any state.
func (e *Engine) Preview(req market.OrderRequest) (risk.Decision, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ref, err := e.referencePriceLocked(req)
	if err != nil {
		return risk.Decision{}, err
	}
	return risk.Evaluate(e.params, req, ref, e.acct.Available), nil
}

// DistanceToFill reports how far the latest price is from a pending
// order's limit, in percent.
func (e *Engine) DistanceToFill(positionID string) (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.positions[positionID]
	if !ok {
		return decimal.Zero, fmt.Errorf("%q: %w", positionID, ErrNotFound)
	}
	if p.Status != market.Pending {
		return decimal.Zero, fmt.Errorf("%q is %s: %w", positionID, p.Status, ErrInvalidTransition)
	}
	t, err := e.ticks.Get(p.Symbol)
	if err != nil {
		return decimal.Zero, fmt.Errorf("distance %s: %w", p.Symbol, err)
	}
	return risk.DistanceToFill(p.Side, p.EntryPrice, t.Price), nil
}

// PlaceOrder validates req, reserves its margin and records the position.
// Market orders open at the latest feed price. Limit orders rest at their
// limit price and fill immediately only if the latest applied tick already
// satisfies the fill predicate.
func (e *Engine) PlaceOrder(_ context.Context, req market.OrderRequest) (broker.Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ref, err := e.referencePriceLocked(req)
	if err != nil {
		metrics.OrdersRejected.WithLabelValues("local").Inc()
		return broker.Position{}, fmt.Errorf("place order: %w", err)
	}

	dec := risk.Evaluate(e.params, req, ref, e.acct.Available)
	if err := dec.Err(); err != nil {
		metrics.OrdersRejected.WithLabelValues("local").Inc()
		e.log.Info("order refused",
			zap.String("symbol", req.Symbol),
			zap.String("side", string(req.Side)),
			zap.Error(err))
		return broker.Position{}, fmt.Errorf("place order: %w", err)
	}

	now := e.now()
	p := &broker.Position{
		ID:               id.New(),
		Symbol:           req.Symbol,
		Side:             req.Side,
		Type:             req.Type,
		Quantity:         req.Quantity,
		Leverage:         req.Leverage,
		EntryPrice:       dec.ReferencePrice,
		Margin:           dec.Cost.RequiredMargin,
		Fee:              dec.Cost.Fee,
		LiquidationPrice: dec.LiquidationPrice,
		StopLoss:         cloneDecimal(req.StopLoss),
		TakeProfit:       cloneDecimal(req.TakeProfit),
		Status:           market.Pending,
		CreatedAt:        now,
	}

	// The fee is charged when the order is accepted and refunded if a
	// resting order is cancelled or the authority rejects it.
	e.acct.Balance = e.acct.Balance.Sub(p.Fee)

	if req.Type == market.Market {
		p.Status = market.Open
		p.OpenedAt = now
		e.markLocked(p, ref)
	} else if ref.IsPositive() && risk.Fillable(p.Side, p.EntryPrice, ref) {
		e.fillLocked(p, ref, now)
	}

	e.positions[p.ID] = p
	e.order = append(e.order, p.ID)
	e.recomputeLocked()
	e.recordAccountLocked(now)

	metrics.OrdersPlaced.WithLabelValues(string(p.Side), string(p.Type)).Inc()
	e.log.Info("order placed",
		zap.String("id", p.ID),
		zap.String("symbol", p.Symbol),
		zap.String("side", string(p.Side)),
		zap.String("status", string(p.Status)),
		zap.Stringer("entry", p.EntryPrice),
		zap.Stringer("margin", p.Margin),
		zap.Stringer("liquidation", p.LiquidationPrice))

	return clonePosition(p), nil
}

// ApplyTick applies one price update. Stale ticks are dropped and reported
// through Update.Stale. Only positions of the tick's symbol are touched.
func (e *Engine) ApplyTick(t market.Tick) Update {
	start := time.Now()

	e.mu.Lock()

	if t.Symbol == "" || !t.Price.IsPositive() || !e.ticks.Apply(t) {
		e.mu.Unlock()
		metrics.TicksStale.WithLabelValues(t.Symbol).Inc()
		e.log.Debug("tick dropped",
			zap.String("symbol", t.Symbol),
			zap.Uint64("seq", t.Seq),
			zap.Stringer("price", t.Price))
		return Update{Symbol: t.Symbol, Price: t.Price, Stale: true}
	}

	at := e.tickTime(t)

	u := Update{
		Symbol:    t.Symbol,
		Price:     t.Price,
		Snapshots: make(map[string]risk.PnL),
	}

	for _, pid := range e.order {
		p := e.positions[pid]
		if p.Symbol != t.Symbol {
			continue
		}
		if p.Status == market.Pending && risk.Fillable(p.Side, p.EntryPrice, t.Price) {
			e.fillLocked(p, t.Price, at)
			u.Filled = append(u.Filled, p.ID)
		}
		if p.Status != market.Open {
			continue
		}

		u.Snapshots[p.ID] = e.markLocked(p, t.Price)
		u.Alerts = append(u.Alerts, alertsFor(p, t.Price)...)
	}

	e.recomputeLocked()
	e.recordAccountLocked(at)
	u.Account = e.acct
	listener := e.listener

	e.mu.Unlock()

	metrics.TicksApplied.WithLabelValues(t.Symbol).Inc()
	metrics.TickLatency.Observe(time.Since(start).Seconds())
	for _, a := range u.Alerts {
		metrics.Alerts.WithLabelValues(string(a.Kind)).Inc()
	}

	if listener != nil {
		listener.OnUpdate(u)
	}
	return u
}

// ApplyPrices applies an unordered batch. Symbols absent from the batch
// are left alone.
func (e *Engine) ApplyPrices(prices map[string]decimal.Decimal, seq uint64, at time.Time) []Update {
	ticks := market.Batch(prices, seq, at)
	out := make([]Update, 0, len(ticks))
	for _, t := range ticks {
		out = append(out, e.ApplyTick(t))
	}
	return out
}

// Cancel moves a resting order to CANCELLED and releases its margin. It
// takes effect immediately: later ticks no longer consider the order.
func (e *Engine) Cancel(_ context.Context, positionID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.positions[positionID]
	if !ok {
		return fmt.Errorf("cancel: %q: %w", positionID, ErrNotFound)
	}
	if p.Status != market.Pending {
		return fmt.Errorf("cancel: %q is %s: %w", positionID, p.Status, ErrInvalidTransition)
	}

	now := e.now()
	p.Status = market.Cancelled
	p.ClosedAt = now
	p.Reason = "Cancelled"
	e.acct.Balance = e.acct.Balance.Add(p.Fee)

	e.recomputeLocked()
	e.recordPositionLocked(p)
	e.recordAccountLocked(now)
	metrics.PositionsClosed.WithLabelValues(string(market.Cancelled)).Inc()
	e.log.Info("order cancelled", zap.String("id", p.ID), zap.String("symbol", p.Symbol))
	return nil
}

// Close settles an open position at the latest price of its symbol. The
// realized loss is capped at the position's margin.
func (e *Engine) Close(_ context.Context, positionID, reason string) error {
	if reason == "" {
		reason = "ManualClose"
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.positions[positionID]
	if !ok {
		return fmt.Errorf("close: %q: %w", positionID, ErrNotFound)
	}
	if p.Status != market.Open {
		return fmt.Errorf("close: %q is %s: %w", positionID, p.Status, ErrInvalidTransition)
	}
	t, err := e.ticks.Get(p.Symbol)
	if err != nil {
		return fmt.Errorf("close: no price for %q: %w", p.Symbol, err)
	}

	at := e.tickTime(t)
	e.closeLocked(p, t.Price, at, reason)
	e.recomputeLocked()
	e.recordAccountLocked(at)
	return nil
}

// CloseAll closes every open position at its symbol's latest price. It
// checks that every price is available before closing anything.
func (e *Engine) CloseAll(_ context.Context, reason string) error {
	if reason == "" {
		reason = "ManualClose"
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var open []*broker.Position
	for _, pid := range e.order {
		if p := e.positions[pid]; p.Status == market.Open {
			open = append(open, p)
		}
	}
	for _, p := range open {
		if _, err := e.ticks.Get(p.Symbol); err != nil {
			return fmt.Errorf("close all: no price for %q: %w", p.Symbol, err)
		}
	}
	if len(open) == 0 {
		return nil
	}

	var last time.Time
	for _, p := range open {
		t, _ := e.ticks.Get(p.Symbol)
		at := e.tickTime(t)
		if at.After(last) {
			last = at
		}
		e.closeLocked(p, t.Price, at, reason)
	}
	e.recomputeLocked()
	e.recordAccountLocked(last)
	return nil
}

// RejectedReason marks journal records of positions the authority refused
// after they had already been settled locally.
const RejectedReason = "AuthorityRejected"

// ApplySubmission folds the authority's verdict into local state. A
// rejection rolls the optimistic position back entirely.
func (e *Engine) ApplySubmission(res broker.SubmissionResult) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.positions[res.PositionID]
	if !ok {
		return fmt.Errorf("submission: %q: %w", res.PositionID, ErrNotFound)
	}
	if res.Accepted {
		p.Confirmed = true
		return nil
	}

	journaled := p.Status == market.Closed || p.Status == market.Cancelled
	switch p.Status {
	case market.Pending, market.Open:
		e.acct.Balance = e.acct.Balance.Add(p.Fee)
	case market.Closed:
		e.acct.Balance = e.acct.Balance.Sub(p.RealizedPnl).Add(p.Fee)
	}

	// The journal already holds a settled record for this position; it is
	// rewritten as a cancellation with nothing realized.
	if journaled {
		p.Status = market.Cancelled
		p.RealizedPnl = decimal.Zero
		p.Reason = RejectedReason
		if p.ClosedAt.IsZero() {
			p.ClosedAt = e.now()
		}
		e.recordPositionLocked(p)
	}

	delete(e.positions, p.ID)
	for i, pid := range e.order {
		if pid == p.ID {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}

	e.recomputeLocked()
	e.recordAccountLocked(e.now())
	metrics.OrdersRejected.WithLabelValues("authority").Inc()
	e.log.Warn("order rejected by authority, rolled back",
		zap.String("id", p.ID),
		zap.String("symbol", p.Symbol),
		zap.String("reason", res.Reason))
	return nil
}

// SyncAccount takes the authority's balance as final and re-derives the
// rest locally.
func (e *Engine) SyncAccount(a broker.Account) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if a.ID != "" {
		e.acct.ID = a.ID
	}
	e.acct.Balance = a.Balance
	e.recomputeLocked()

	if !a.Available.Equal(e.acct.Available) {
		e.log.Debug("available balance differs from authority",
			zap.Stringer("local", e.acct.Available),
			zap.Stringer("authority", a.Available))
	}
	e.recordAccountLocked(e.now())
}

// tickTime is the tick's own timestamp, or the clock when it has none.
func (e *Engine) tickTime(t market.Tick) time.Time {
	if t.Time.IsZero() {
		return e.now()
	}
	return t.Time
}

func (e *Engine) referencePriceLocked(req market.OrderRequest) (decimal.Decimal, error) {
	t, err := e.ticks.Get(req.Symbol)
	if err == nil {
		return t.Price, nil
	}
	if req.Type == market.Market {
		return decimal.Zero, fmt.Errorf("%q: %w", req.Symbol, err)
	}
	return decimal.Zero, nil
}

// fillLocked opens a resting order at its limit price. The tick price is
// only used to mark it.
func (e *Engine) fillLocked(p *broker.Position, price decimal.Decimal, at time.Time) {
	p.Status = market.Open
	p.OpenedAt = at
	e.markLocked(p, price)
	metrics.Fills.WithLabelValues(p.Symbol).Inc()
	e.log.Info("limit order filled",
		zap.String("id", p.ID),
		zap.String("symbol", p.Symbol),
		zap.Stringer("entry", p.EntryPrice),
		zap.Stringer("tick", price))
}

func (e *Engine) markLocked(p *broker.Position, price decimal.Decimal) risk.PnL {
	pnl := risk.Snapshot(p.Exposure(), price)
	p.LastPrice = price
	p.UnrealizedPnl = pnl.UnrealizedPnl
	p.ROE = pnl.ROE
	return pnl
}

func (e *Engine) closeLocked(p *broker.Position, price decimal.Decimal, at time.Time, reason string) {
	pnl := risk.Snapshot(p.Exposure(), price).UnrealizedPnl
	realized := decimal.Max(pnl, p.Margin.Neg())

	p.Status = market.Closed
	p.LastPrice = price
	p.ExitPrice = price
	p.RealizedPnl = realized
	p.UnrealizedPnl = decimal.Zero
	p.ClosedAt = at
	p.Reason = reason
	e.acct.Balance = e.acct.Balance.Add(realized)

	e.recordPositionLocked(p)
	metrics.PositionsClosed.WithLabelValues(string(market.Closed)).Inc()
	e.log.Info("position closed",
		zap.String("id", p.ID),
		zap.String("symbol", p.Symbol),
		zap.Stringer("exit", price),
		zap.Stringer("realized", realized),
		zap.String("reason", reason))
}

func (e *Engine) recomputeLocked() {
	used := decimal.Zero
	upnl := decimal.Zero
	for _, p := range e.positions {
		used = used.Add(p.Reserved())
		if p.Status == market.Open {
			upnl = upnl.Add(p.UnrealizedPnl)
		}
	}
	e.acct.MarginUsed = used
	e.acct.UnrealizedPnl = upnl
	e.acct.Available = decimal.Max(decimal.Zero, e.acct.Balance.Sub(used))
	metrics.AvailableBalance.Set(e.acct.Available.InexactFloat64())
}

func (e *Engine) recordPositionLocked(p *broker.Position) {
	err := e.journal.RecordPosition(journal.PositionRecord{
		PositionID:  p.ID,
		Symbol:      p.Symbol,
		Side:        p.Side,
		Type:        p.Type,
		Quantity:    p.Quantity,
		Leverage:    p.Leverage,
		EntryPrice:  p.EntryPrice,
		ExitPrice:   p.ExitPrice,
		Margin:      p.Margin,
		Fee:         p.Fee,
		RealizedPnl: p.RealizedPnl,
		Status:      p.Status,
		OpenTime:    p.OpenedAt,
		CloseTime:   p.ClosedAt,
		Reason:      p.Reason,
	})
	if err != nil {
		e.log.Error("journal position", zap.String("id", p.ID), zap.Error(err))
	}
}

func (e *Engine) recordAccountLocked(at time.Time) {
	err := e.journal.RecordAccount(journal.AccountSnapshot{
		Time:          at,
		Balance:       e.acct.Balance,
		Available:     e.acct.Available,
		MarginUsed:    e.acct.MarginUsed,
		UnrealizedPnl: e.acct.UnrealizedPnl,
	})
	if err != nil {
		e.log.Error("journal account", zap.Error(err))
	}
}

func alertsFor(p *broker.Position, price decimal.Decimal) []Alert {
	var out []Alert
	if risk.StopLossHit(p.Side, p.StopLoss, price) {
		out = append(out, Alert{PositionID: p.ID, Kind: AlertStopLoss, Price: price})
	}
	if risk.TakeProfitHit(p.Side, p.TakeProfit, price) {
		out = append(out, Alert{PositionID: p.ID, Kind: AlertTakeProfit, Price: price})
	}
	if risk.Liquidated(p.Side, p.LiquidationPrice, price) {
		out = append(out, Alert{PositionID: p.ID, Kind: AlertLiquidation, Price: price})
	}
	return out
}

func hasStatus(s market.Status, set []market.Status) bool {
	for _, x := range set {
		if s == x {
			return true
		}
	}
	return false
}

func cloneDecimal(v *decimal.Decimal) *decimal.Decimal {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func clonePosition(p *broker.Position) broker.Position {
	c := *p
	c.StopLoss = cloneDecimal(p.StopLoss)
	c.TakeProfit = cloneDecimal(p.TakeProfit)
	return c
}
