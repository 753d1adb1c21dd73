package broker

import (
	"context"

	"github.com/rustyeddy/margin/market"
	"github.com/shopspring/decimal"
)

// Authority is the remote system that is the final arbiter of balances and
// fills. The engine never calls it directly; a Session does, and feeds the
// results back as events.
type Authority interface {
	SubmitOrder(ctx context.Context, s Submission) (SubmissionResult, error)
	CancelOrder(ctx context.Context, positionID string) error
	ClosePosition(ctx context.Context, positionID string, exitPrice decimal.Decimal) error
	GetAccount(ctx context.Context) (Account, error)
}

// Account mirrors the authority's account query. Available is always
// Balance − MarginUsed, floored at zero.
type Account struct {
	ID            string
	Balance       decimal.Decimal
	Available     decimal.Decimal
	MarginUsed    decimal.Decimal
	UnrealizedPnl decimal.Decimal
}

type Submission struct {
	PositionID string
	Symbol     string
	Side       market.Side
	Type       market.OrderType
	Quantity   decimal.Decimal
	Leverage   int
	Price      decimal.Decimal // limit price, or the feed price a market order was priced at
	StopLoss   *decimal.Decimal
	TakeProfit *decimal.Decimal
}

type SubmissionResult struct {
	PositionID string
	Accepted   bool
	Reason     string
}
