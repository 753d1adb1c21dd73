package broker

import (
	"time"

	"github.com/rustyeddy/margin/market"
	"github.com/rustyeddy/margin/risk"
	"github.com/shopspring/decimal"
)

// Position is created from an accepted order. EntryPrice never changes
// after creation; only the status and the derived PnL fields do.
type Position struct {
	ID       string
	Symbol   string
	Side     market.Side
	Type     market.OrderType
	Quantity decimal.Decimal
	Leverage int

	EntryPrice       decimal.Decimal
	Margin           decimal.Decimal
	Fee              decimal.Decimal
	LiquidationPrice decimal.Decimal
	StopLoss         *decimal.Decimal
	TakeProfit       *decimal.Decimal

	Status    market.Status
	Confirmed bool // accepted by the authority

	LastPrice     decimal.Decimal
	UnrealizedPnl decimal.Decimal
	ROE           decimal.Decimal
	RealizedPnl   decimal.Decimal
	ExitPrice     decimal.Decimal

	CreatedAt time.Time
	OpenedAt  time.Time
	ClosedAt  time.Time
	Reason    string
}

func (p Position) Exposure() risk.Exposure {
	return risk.Exposure{
		Side:       p.Side,
		EntryPrice: p.EntryPrice,
		Quantity:   p.Quantity,
		Leverage:   p.Leverage,
		Margin:     p.Margin,
	}
}

// Reserved is the margin the position holds against the account.
func (p Position) Reserved() decimal.Decimal {
	switch p.Status {
	case market.Pending, market.Open:
		return p.Margin
	}
	return decimal.Zero
}

func (p Position) Active() bool {
	return p.Status == market.Pending || p.Status == market.Open
}

func (p Position) Submission() Submission {
	return Submission{
		PositionID: p.ID,
		Symbol:     p.Symbol,
		Side:       p.Side,
		Type:       p.Type,
		Quantity:   p.Quantity,
		Leverage:   p.Leverage,
		Price:      p.EntryPrice,
		StopLoss:   p.StopLoss,
		TakeProfit: p.TakeProfit,
	}
}
