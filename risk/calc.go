package risk

import (
	"fmt"

	"github.com/rustyeddy/margin/market"
	"github.com/shopspring/decimal"
)

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

type Cost struct {
	PositionValue  decimal.Decimal // quantity × leverage × price
	RequiredMargin decimal.Decimal // quantity × price, leverage cancels
	Fee            decimal.Decimal // PositionValue × feeRate
	TotalCost      decimal.Decimal // RequiredMargin + Fee
}

// ComputeCost prices an order. Margin scales with notional at 1x while the
// fee scales with leveraged notional.
func ComputeCost(price, quantity decimal.Decimal, leverage int, feeRate decimal.Decimal) (Cost, error) {
	if !price.IsPositive() {
		return Cost{}, fmt.Errorf("price %s must be positive: %w", price, ErrInvalidInput)
	}
	if !quantity.IsPositive() {
		return Cost{}, fmt.Errorf("quantity %s must be positive: %w", quantity, ErrInvalidInput)
	}
	if leverage < 1 {
		return Cost{}, fmt.Errorf("leverage %d must be at least 1: %w", leverage, ErrInvalidInput)
	}

	lev := decimal.NewFromInt(int64(leverage))
	value := quantity.Mul(lev).Mul(price)
	margin := quantity.Mul(price)
	fee := value.Mul(feeRate)

	return Cost{
		PositionValue:  value,
		RequiredMargin: margin,
		Fee:            fee,
		TotalCost:      margin.Add(fee),
	}, nil
}

// Affordable returns ErrInsufficientBalance when the cost exceeds available.
func (c Cost) Affordable(available decimal.Decimal) error {
	if c.TotalCost.GreaterThan(available) {
		return fmt.Errorf("total cost %s exceeds available %s: %w", c.TotalCost, available, ErrInsufficientBalance)
	}
	return nil
}

// MaxAffordableQuantity solves TotalCost(q) = available for q:
//
//	q = available / (price × (1 + leverage × feeRate))
//
// The result is rounded toward zero so feeding it back into ComputeCost
// never exceeds available.
func MaxAffordableQuantity(available, price decimal.Decimal, leverage int, feeRate decimal.Decimal) (decimal.Decimal, error) {
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("price %s must be positive: %w", price, ErrInvalidInput)
	}
	if leverage < 1 {
		return decimal.Zero, fmt.Errorf("leverage %d must be at least 1: %w", leverage, ErrInvalidInput)
	}
	if !available.IsPositive() {
		return decimal.Zero, nil
	}

	lev := decimal.NewFromInt(int64(leverage))
	perUnit := price.Mul(one.Add(lev.Mul(feeRate)))

	q := available.DivRound(perUnit, QuantityPlaces+4).RoundFloor(QuantityPlaces)
	step := decimal.New(1, -QuantityPlaces)
	for q.IsPositive() && q.Mul(perUnit).GreaterThan(available) {
		q = q.Sub(step)
	}
	if q.IsNegative() {
		q = decimal.Zero
	}
	return q, nil
}

// LiquidationPrice uses the maintenance margin model:
//
//	long:  entry × (1 − 1/leverage + mmr)
//	short: entry × (1 + 1/leverage − mmr)
//
// clamped at zero.
func LiquidationPrice(entry decimal.Decimal, leverage int, side market.Side, mmr decimal.Decimal) (decimal.Decimal, error) {
	if !entry.IsPositive() {
		return decimal.Zero, fmt.Errorf("entry price %s must be positive: %w", entry, ErrInvalidInput)
	}
	if leverage < 1 {
		return decimal.Zero, fmt.Errorf("leverage %d must be at least 1: %w", leverage, ErrInvalidInput)
	}

	inv := one.Div(decimal.NewFromInt(int64(leverage)))

	var factor decimal.Decimal
	switch side {
	case market.Long:
		factor = one.Sub(inv).Add(mmr)
	case market.Short:
		factor = one.Add(inv).Sub(mmr)
	default:
		return decimal.Zero, fmt.Errorf("side %q: %w", side, ErrInvalidInput)
	}

	liq := entry.Mul(factor)
	if liq.IsNegative() {
		return decimal.Zero, nil
	}
	return liq, nil
}
