package risk

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// QuantityPlaces is the precision used when a quantity is derived from a
// balance rather than entered by the user.
const QuantityPlaces int32 = 8

type Params struct {
	FeeRate               decimal.Decimal // 0.0004, charged once at entry on leveraged notional
	MaintenanceMarginRate decimal.Decimal // 0.004
	MinLeverage           int             // 1
	MaxLeverage           int             // 125
}

func DefaultParams() Params {
	return Params{
		FeeRate:               decimal.RequireFromString("0.0004"),
		MaintenanceMarginRate: decimal.RequireFromString("0.004"),
		MinLeverage:           1,
		MaxLeverage:           125,
	}
}

func (p Params) Validate() error {
	if p.FeeRate.IsNegative() || p.FeeRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("fee rate %s out of range [0,1): %w", p.FeeRate, ErrInvalidInput)
	}
	if p.MaintenanceMarginRate.IsNegative() || p.MaintenanceMarginRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("maintenance margin rate %s out of range [0,1): %w", p.MaintenanceMarginRate, ErrInvalidInput)
	}
	if p.MinLeverage < 1 || p.MaxLeverage < p.MinLeverage {
		return fmt.Errorf("leverage bounds %d..%d invalid: %w", p.MinLeverage, p.MaxLeverage, ErrInvalidInput)
	}
	return nil
}

func (p Params) LeverageAllowed(l int) bool {
	return l >= p.MinLeverage && l <= p.MaxLeverage
}
