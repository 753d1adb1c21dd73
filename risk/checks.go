package risk

import (
	"fmt"

	"github.com/rustyeddy/margin/market"
	"github.com/shopspring/decimal"
)

const (
	CodeInvalidSymbol       = "INVALID_SYMBOL"
	CodeInvalidSide         = "INVALID_SIDE"
	CodeInvalidType         = "INVALID_TYPE"
	CodeInvalidPrice        = "INVALID_PRICE"
	CodeInvalidQuantity     = "INVALID_QUANTITY"
	CodeInvalidLeverage     = "INVALID_LEVERAGE"
	CodeMissingLimitPrice   = "MISSING_LIMIT_PRICE"
	CodeInvalidStopLoss     = "INVALID_STOP_LOSS"
	CodeInvalidTakeProfit   = "INVALID_TAKE_PROFIT"
	CodeInsufficientBalance = "INSUFFICIENT_BALANCE"
)

type Violation struct {
	Code string
	Msg  string
}

// Decision is the preview of an order: its cost figures and every reason it
// would be refused.
type Decision struct {
	Allowed    bool
	Violations []Violation

	ReferencePrice   decimal.Decimal
	Cost             Cost
	LiquidationPrice decimal.Decimal
	MaxQuantity      decimal.Decimal
}

func (d *Decision) add(code, msg string) {
	d.Violations = append(d.Violations, Violation{Code: code, Msg: msg})
	d.Allowed = false
}

func (d Decision) Has(code string) bool {
	for _, v := range d.Violations {
		if v.Code == code {
			return true
		}
	}
	return false
}

// Err maps the violations onto the error taxonomy. Input problems are
// reported ahead of balance problems.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	for _, v := range d.Violations {
		if v.Code != CodeInsufficientBalance {
			return fmt.Errorf("%s: %w", v.Msg, ErrInvalidInput)
		}
	}
	return fmt.Errorf("%s: %w", d.Violations[0].Msg, ErrInsufficientBalance)
}

// Evaluate previews req against the available balance. referencePrice is
// the price the order would enter at: the limit price for limit orders, the
// latest feed price for market orders.
func Evaluate(p Params, req market.OrderRequest, referencePrice, available decimal.Decimal) Decision {
	d := Decision{Allowed: true, ReferencePrice: referencePrice}

	if req.Symbol == "" {
		d.add(CodeInvalidSymbol, "symbol is required")
		return d
	}
	if req.Side != market.Long && req.Side != market.Short {
		d.add(CodeInvalidSide, fmt.Sprintf("side %q must be %s or %s", req.Side, market.Long, market.Short))
		return d
	}
	if req.Type != market.Market && req.Type != market.Limit {
		d.add(CodeInvalidType, fmt.Sprintf("order type %q must be %s or %s", req.Type, market.Market, market.Limit))
		return d
	}

	if req.Type == market.Limit {
		if !req.LimitPrice.IsPositive() {
			d.add(CodeMissingLimitPrice, "limit order requires a positive limit price")
			return d
		}
		referencePrice = req.LimitPrice
		d.ReferencePrice = referencePrice
	}
	if !referencePrice.IsPositive() {
		d.add(CodeInvalidPrice, fmt.Sprintf("price %s must be positive", referencePrice))
		return d
	}
	if !req.Quantity.IsPositive() {
		d.add(CodeInvalidQuantity, fmt.Sprintf("quantity %s must be positive", req.Quantity))
	}
	if !p.LeverageAllowed(req.Leverage) {
		d.add(CodeInvalidLeverage,
			fmt.Sprintf("leverage %d outside %d..%d", req.Leverage, p.MinLeverage, p.MaxLeverage))
	}
	if req.StopLoss != nil && !stopOnLossSide(req.Side, *req.StopLoss, referencePrice) {
		d.add(CodeInvalidStopLoss,
			fmt.Sprintf("stop loss %s is on the wrong side of %s for %s", req.StopLoss, referencePrice, req.Side))
	}
	if req.TakeProfit != nil && !stopOnLossSide(req.Side.Opposite(), *req.TakeProfit, referencePrice) {
		d.add(CodeInvalidTakeProfit,
			fmt.Sprintf("take profit %s is on the wrong side of %s for %s", req.TakeProfit, referencePrice, req.Side))
	}
	if !d.Allowed {
		return d
	}

	cost, err := ComputeCost(referencePrice, req.Quantity, req.Leverage, p.FeeRate)
	if err != nil {
		d.add(CodeInvalidQuantity, err.Error())
		return d
	}
	d.Cost = cost
	liq, err := LiquidationPrice(referencePrice, req.Leverage, req.Side, p.MaintenanceMarginRate)
	if err != nil {
		d.add(CodeInvalidSide, err.Error())
		return d
	}
	d.LiquidationPrice = liq
	d.MaxQuantity, _ = MaxAffordableQuantity(available, referencePrice, req.Leverage, p.FeeRate)

	if cost.Affordable(available) != nil {
		d.add(CodeInsufficientBalance,
			fmt.Sprintf("total cost %s exceeds available balance %s", cost.TotalCost, available))
	}
	return d
}

func stopOnLossSide(side market.Side, trigger, ref decimal.Decimal) bool {
	if !trigger.IsPositive() {
		return false
	}
	if side == market.Short {
		return trigger.GreaterThan(ref)
	}
	return trigger.LessThan(ref)
}
