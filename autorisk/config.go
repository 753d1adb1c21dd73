// Package autorisk derives stop-loss and take-profit trigger prices from
// percentages of an order's reference price.
package autorisk

import (
	"fmt"
	"math"

	"github.com/rustyeddy/margin/market"
	"github.com/rustyeddy/margin/risk"
	"github.com/shopspring/decimal"
)

// Key is the namespaced identifier the configuration is persisted under.
const Key = "margin.autorisk.v1"

type Config struct {
	Enabled           bool    `json:"enabled" yaml:"enabled"`
	StopLossPercent   float64 `json:"stopLossPercent" yaml:"stopLossPercent"`
	TakeProfitPercent float64 `json:"takeProfitPercent" yaml:"takeProfitPercent"`
}

func Default() Config {
	return Config{
		Enabled:           false,
		StopLossPercent:   3,
		TakeProfitPercent: 6,
	}
}

func (c Config) Validate() error {
	if !percentInRange(c.StopLossPercent) {
		return fmt.Errorf("stopLossPercent %v must be in (0,100): %w", c.StopLossPercent, risk.ErrInvalidInput)
	}
	if !percentInRange(c.TakeProfitPercent) {
		return fmt.Errorf("takeProfitPercent %v must be in (0,100): %w", c.TakeProfitPercent, risk.ErrInvalidInput)
	}
	return nil
}

// percentInRange is false for NaN and the infinities.
func percentInRange(v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	return v > 0 && v < 100
}

type Triggers struct {
	StopLoss   decimal.Decimal
	TakeProfit decimal.Decimal
}

// DeriveTriggers returns ok=false when cfg is disabled or the reference
// price is not positive.
func DeriveTriggers(ref decimal.Decimal, side market.Side, cfg Config) (Triggers, bool) {
	if !cfg.Enabled || !ref.IsPositive() {
		return Triggers{}, false
	}

	hundred := decimal.NewFromInt(100)
	sl := decimal.NewFromFloat(cfg.StopLossPercent).Div(hundred)
	tp := decimal.NewFromFloat(cfg.TakeProfitPercent).Div(hundred)
	one := decimal.NewFromInt(1)

	if side == market.Short {
		return Triggers{
			StopLoss:   ref.Mul(one.Add(sl)),
			TakeProfit: ref.Mul(one.Sub(tp)),
		}, true
	}
	return Triggers{
		StopLoss:   ref.Mul(one.Sub(sl)),
		TakeProfit: ref.Mul(one.Add(tp)),
	}, true
}
