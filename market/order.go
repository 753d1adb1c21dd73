package market

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type Side string

const (
	Long  Side = "LONG"
	Short Side = "SHORT"
)

func ParseSide(s string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LONG", "BUY":
		return Long, nil
	case "SHORT", "SELL":
		return Short, nil
	}
	return "", fmt.Errorf("unknown side %q", s)
}

// Sign is +1 for longs and -1 for shorts.
func (s Side) Sign() int64 {
	if s == Short {
		return -1
	}
	return 1
}

func (s Side) Opposite() Side {
	if s == Short {
		return Long
	}
	return Short
}

type OrderType string

const (
	Market OrderType = "MARKET"
	Limit  OrderType = "LIMIT"
)

func ParseOrderType(s string) (OrderType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "MARKET":
		return Market, nil
	case "LIMIT":
		return Limit, nil
	}
	return "", fmt.Errorf("unknown order type %q", s)
}

type Status string

const (
	Pending   Status = "PENDING"
	Open      Status = "OPEN"
	Closed    Status = "CLOSED"
	Cancelled Status = "CANCELLED"
)

// OrderRequest is an order as entered by the user. Quantity is in base
// units before leverage. LimitPrice is required iff Type is Limit.
type OrderRequest struct {
	Symbol     string
	Side       Side
	Type       OrderType
	Quantity   decimal.Decimal
	Leverage   int
	LimitPrice decimal.Decimal
	StopLoss   *decimal.Decimal
	TakeProfit *decimal.Decimal
}
