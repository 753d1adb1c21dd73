package broker

import (
	"context"
	"fmt"
	"sync"

	"github.com/rustyeddy/margin/risk"
	"github.com/shopspring/decimal"
)

type paperOrder struct {
	sub  Submission
	cost risk.Cost
}

// Paper is an in-process Authority. It re-runs the same calculators the
// client uses so previews and the authoritative check agree.
type Paper struct {
	mu         sync.Mutex
	id         string
	params     risk.Params
	balance    decimal.Decimal
	orders     map[string]paperOrder
	rejectNext string
}

func NewPaper(id string, balance decimal.Decimal, params risk.Params) *Paper {
	return &Paper{
		id:      id,
		params:  params,
		balance: balance,
		orders:  make(map[string]paperOrder),
	}
}

// RejectNext makes the next submission fail with reason.
func (p *Paper) RejectNext(reason string) {
	p.mu.Lock()
	p.rejectNext = reason
	p.mu.Unlock()
}

func (p *Paper) SubmitOrder(ctx context.Context, s Submission) (SubmissionResult, error) {
	if err := ctx.Err(); err != nil {
		return SubmissionResult{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	reject := func(reason string) (SubmissionResult, error) {
		return SubmissionResult{PositionID: s.PositionID, Reason: reason}, nil
	}

	if p.rejectNext != "" {
		reason := p.rejectNext
		p.rejectNext = ""
		return reject(reason)
	}
	if _, dup := p.orders[s.PositionID]; dup {
		return reject("duplicate position id")
	}
	if !p.params.LeverageAllowed(s.Leverage) {
		return reject(fmt.Sprintf("leverage %d not allowed", s.Leverage))
	}

	cost, err := risk.ComputeCost(s.Price, s.Quantity, s.Leverage, p.params.FeeRate)
	if err != nil {
		return reject(err.Error())
	}
	if err := cost.Affordable(p.availableLocked()); err != nil {
		return reject(err.Error())
	}

	p.balance = p.balance.Sub(cost.Fee)
	p.orders[s.PositionID] = paperOrder{sub: s, cost: cost}
	return SubmissionResult{PositionID: s.PositionID, Accepted: true}, nil
}

func (p *Paper) CancelOrder(_ context.Context, positionID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	o, ok := p.orders[positionID]
	if !ok {
		return fmt.Errorf("cancel: position %q not found", positionID)
	}
	p.balance = p.balance.Add(o.cost.Fee)
	delete(p.orders, positionID)
	return nil
}

func (p *Paper) ClosePosition(_ context.Context, positionID string, exit decimal.Decimal) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	o, ok := p.orders[positionID]
	if !ok {
		return fmt.Errorf("close: position %q not found", positionID)
	}
	pnl := risk.Snapshot(risk.Exposure{
		Side:       o.sub.Side,
		EntryPrice: o.sub.Price,
		Quantity:   o.sub.Quantity,
		Leverage:   o.sub.Leverage,
		Margin:     o.cost.RequiredMargin,
	}, exit).UnrealizedPnl
	p.balance = p.balance.Add(decimal.Max(pnl, o.cost.RequiredMargin.Neg()))
	delete(p.orders, positionID)
	return nil
}

func (p *Paper) GetAccount(ctx context.Context) (Account, error) {
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return Account{
		ID:         p.id,
		Balance:    p.balance,
		Available:  p.availableLocked(),
		MarginUsed: p.usedLocked(),
	}, nil
}

func (p *Paper) usedLocked() decimal.Decimal {
	used := decimal.Zero
	for _, o := range p.orders {
		used = used.Add(o.cost.RequiredMargin)
	}
	return used
}

func (p *Paper) availableLocked() decimal.Decimal {
	return decimal.Max(decimal.Zero, p.balance.Sub(p.usedLocked()))
}
