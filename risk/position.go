package risk

import (
	"github.com/rustyeddy/margin/market"
	"github.com/shopspring/decimal"
)

// Exposure is the part of a position the PnL math needs.
type Exposure struct {
	Side       market.Side
	EntryPrice decimal.Decimal
	Quantity   decimal.Decimal // pre-leverage units
	Leverage   int
	Margin     decimal.Decimal
}

type PnL struct {
	UnrealizedPnl decimal.Decimal
	ROE           decimal.Decimal // percent of margin
}

// Snapshot values an exposure at price. It is pure: the same inputs always
// give the same output.
func Snapshot(e Exposure, price decimal.Decimal) PnL {
	move := price.Sub(e.EntryPrice)
	if e.Side == market.Short {
		move = move.Neg()
	}
	pnl := move.Mul(e.Quantity).Mul(decimal.NewFromInt(int64(e.Leverage)))

	roe := decimal.Zero
	if e.Margin.IsPositive() {
		roe = pnl.Div(e.Margin).Mul(hundred)
	}
	return PnL{UnrealizedPnl: pnl, ROE: roe}
}

// Fillable is the resting order fill predicate: a long fills at or below
// its limit, a short at or above.
func Fillable(side market.Side, limit, current decimal.Decimal) bool {
	if !current.IsPositive() {
		return false
	}
	if side == market.Short {
		return current.GreaterThanOrEqual(limit)
	}
	return current.LessThanOrEqual(limit)
}

// DistanceToFill is |current − limit| / current × 100, positive while the
// price still has to move toward the limit and zero or negative once the
// order is fillable. It is informational only.
func DistanceToFill(side market.Side, limit, current decimal.Decimal) decimal.Decimal {
	if !current.IsPositive() {
		return decimal.Zero
	}
	diff := current.Sub(limit)
	if side == market.Short {
		diff = diff.Neg()
	}
	return diff.Div(current).Mul(hundred)
}

func StopLossHit(side market.Side, stop *decimal.Decimal, price decimal.Decimal) bool {
	if stop == nil {
		return false
	}
	if side == market.Short {
		return price.GreaterThanOrEqual(*stop)
	}
	return price.LessThanOrEqual(*stop)
}

func TakeProfitHit(side market.Side, take *decimal.Decimal, price decimal.Decimal) bool {
	if take == nil {
		return false
	}
	if side == market.Short {
		return price.LessThanOrEqual(*take)
	}
	return price.GreaterThanOrEqual(*take)
}

// Liquidated reports whether price has crossed the liquidation price.
func Liquidated(side market.Side, liquidation, price decimal.Decimal) bool {
	if side == market.Short {
		return price.GreaterThanOrEqual(liquidation)
	}
	return liquidation.IsPositive() && price.LessThanOrEqual(liquidation)
}
