// Package journal records finished positions and account snapshots.
package journal

import (
	"time"

	"github.com/rustyeddy/margin/market"
	"github.com/shopspring/decimal"
)

// PositionRecord is written once, when a position closes or is cancelled.
type PositionRecord struct {
	PositionID  string
	Symbol      string
	Side        market.Side
	Type        market.OrderType
	Quantity    decimal.Decimal
	Leverage    int
	EntryPrice  decimal.Decimal
	ExitPrice   decimal.Decimal
	Margin      decimal.Decimal
	Fee         decimal.Decimal
	RealizedPnl decimal.Decimal
	Status      market.Status
	OpenTime    time.Time
	CloseTime   time.Time
	Reason      string
}

type AccountSnapshot struct {
	Time          time.Time
	Balance       decimal.Decimal
	Available     decimal.Decimal
	MarginUsed    decimal.Decimal
	UnrealizedPnl decimal.Decimal
}

type Journal interface {
	RecordPosition(PositionRecord) error
	RecordAccount(AccountSnapshot) error
	Close() error
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordPosition(PositionRecord) error { return nil }
func (Nop) RecordAccount(AccountSnapshot) error { return nil }
func (Nop) Close() error                        { return nil }
