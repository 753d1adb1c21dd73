package autorisk

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rustyeddy/margin/market"
	"github.com/rustyeddy/margin/risk"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Staged holds triggers derived for the order ticket that has not been
// submitted yet.
type Staged struct {
	Side           market.Side
	ReferencePrice decimal.Decimal
	Triggers       Triggers
}

// Policy is the process-wide scalper configuration. It is passed
// explicitly to whoever builds orders; the store is its only durable state.
type Policy struct {
	mu     sync.RWMutex
	cfg    Config
	staged *Staged
	store  Store
	log    *zap.Logger
}

// NewPolicy loads the stored configuration. Corrupt data is replaced by
// defaults and logged; it never fails construction.
func NewPolicy(ctx context.Context, store Store, log *zap.Logger) (*Policy, error) {
	if log == nil {
		log = zap.NewNop()
	}
	cfg, err := store.Load(ctx)
	switch {
	case err == nil:
	case errors.Is(err, risk.ErrPersistenceCorrupt):
		log.Warn("autorisk config corrupt, using defaults", zap.String("key", Key), zap.Error(err))
		cfg = Default()
	default:
		return nil, fmt.Errorf("load autorisk config: %w", err)
	}
	return &Policy{cfg: cfg, store: store, log: log}, nil
}

func (p *Policy) Current() Config {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg
}

// Update validates, persists and then replaces the whole configuration. A
// failed save keeps the previous value. Disabling clears staged triggers;
// enabling re-derives them from the new percentages.
func (p *Policy) Update(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.store.Save(ctx, cfg); err != nil {
		return fmt.Errorf("save autorisk config: %w", err)
	}
	p.cfg = cfg

	if p.staged != nil {
		if tr, ok := DeriveTriggers(p.staged.ReferencePrice, p.staged.Side, cfg); ok {
			p.staged.Triggers = tr
		} else {
			p.staged = nil
		}
	}

	p.log.Info("autorisk config updated",
		zap.Bool("enabled", cfg.Enabled),
		zap.Float64("stop_loss_pct", cfg.StopLossPercent),
		zap.Float64("take_profit_pct", cfg.TakeProfitPercent))
	return nil
}

// Stage derives triggers for the order being built. It stages nothing and
// returns false when the policy is disabled.
func (p *Policy) Stage(side market.Side, ref decimal.Decimal) (Triggers, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tr, ok := DeriveTriggers(ref, side, p.cfg)
	if !ok {
		p.staged = nil
		return Triggers{}, false
	}
	p.staged = &Staged{Side: side, ReferencePrice: ref, Triggers: tr}
	return tr, true
}

func (p *Policy) Staged() (Staged, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.staged == nil {
		return Staged{}, false
	}
	return *p.staged, true
}

func (p *Policy) ClearStaged() {
	p.mu.Lock()
	p.staged = nil
	p.mu.Unlock()
}

// Apply fills in stop-loss and take-profit for a request that carries
// neither. Requests with explicit triggers are returned unchanged.
func (p *Policy) Apply(req market.OrderRequest, ref decimal.Decimal) market.OrderRequest {
	if req.StopLoss != nil || req.TakeProfit != nil {
		return req
	}
	tr, ok := DeriveTriggers(ref, req.Side, p.Current())
	if !ok {
		return req
	}
	sl, tp := tr.StopLoss, tr.TakeProfit
	req.StopLoss = &sl
	req.TakeProfit = &tp
	return req
}
