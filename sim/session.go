package sim

import (
	"context"
	"fmt"
	"sync"

	"github.com/rustyeddy/margin/autorisk"
	"github.com/rustyeddy/margin/broker"
	"github.com/rustyeddy/margin/logging"
	"github.com/rustyeddy/margin/market"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Session couples the engine to an external authority. Local state changes
// first; the authority's answers come back as events on the engine's
// channel.
//
// Cancels and closes of a position whose submission is still unanswered
// are held back and sent only after the authority accepts it.
type Session struct {
	engine    *Engine
	authority broker.Authority
	policy    *autorisk.Policy
	events    chan<- Event
	log       *zap.Logger
	wg        sync.WaitGroup

	mu       sync.Mutex
	inflight map[string][]func(context.Context)

	done     chan struct{}
	stopOnce sync.Once
}

// NewSession wires engine to authority. policy may be nil.
func NewSession(engine *Engine, authority broker.Authority, events chan<- Event, policy *autorisk.Policy, log *zap.Logger) *Session {
	return &Session{
		engine:    engine,
		authority: authority,
		policy:    policy,
		events:    events,
		log:       logging.OrNop(log),
		inflight:  make(map[string][]func(context.Context)),
		done:      make(chan struct{}),
	}
}

func (s *Session) Engine() *Engine { return s.engine }

// Submit places req locally and sends it to the authority. A transport
// error is treated as a rejection so the optimistic position is rolled
// back.
func (s *Session) Submit(ctx context.Context, req market.OrderRequest) (broker.Position, error) {
	if s.policy != nil {
		req = s.policy.Apply(req, s.referencePrice(req))
	}

	pos, err := s.engine.PlaceOrder(ctx, req)
	if err != nil {
		return broker.Position{}, err
	}
	if s.policy != nil {
		s.policy.ClearStaged()
	}

	sub := pos.Submission()
	s.mu.Lock()
	s.inflight[sub.PositionID] = nil
	s.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		res, err := s.authority.SubmitOrder(ctx, sub)
		if err != nil {
			res = broker.SubmissionResult{PositionID: sub.PositionID, Reason: err.Error()}
		}

		s.mu.Lock()
		held := s.inflight[sub.PositionID]
		delete(s.inflight, sub.PositionID)
		s.mu.Unlock()

		s.send(SubmissionEvent{Result: res})

		// A rejected order never existed at the authority, so there is
		// nothing to cancel or close there.
		if !res.Accepted {
			return
		}
		for _, call := range held {
			call(ctx)
		}
	}()
	return pos, nil
}

// Cancel cancels locally, then tells the authority.
func (s *Session) Cancel(ctx context.Context, positionID string) error {
	if err := s.engine.Cancel(ctx, positionID); err != nil {
		return err
	}

	s.mirror(ctx, positionID, func(ctx context.Context) {
		if err := s.authority.CancelOrder(ctx, positionID); err != nil {
			s.log.Warn("authority cancel failed", zap.String("id", positionID), zap.Error(err))
		}
	})
	return nil
}

// Close settles locally at the latest price, then tells the authority and
// refreshes the account from it.
func (s *Session) Close(ctx context.Context, positionID, reason string) error {
	if err := s.engine.Close(ctx, positionID, reason); err != nil {
		return err
	}
	pos, err := s.engine.Position(positionID)
	if err != nil {
		return err
	}

	s.mirror(ctx, positionID, func(ctx context.Context) {
		if err := s.authority.ClosePosition(ctx, positionID, pos.ExitPrice); err != nil {
			s.log.Warn("authority close failed", zap.String("id", positionID), zap.Error(err))
			return
		}
		s.refresh(ctx)
	})
	return nil
}

// mirror runs call against the authority in the background, or holds it
// until the position's submission has been answered.
func (s *Session) mirror(ctx context.Context, positionID string, call func(context.Context)) {
	s.mu.Lock()
	if held, ok := s.inflight[positionID]; ok {
		s.inflight[positionID] = append(held, call)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		call(ctx)
	}()
}

// RefreshAccount fetches the authority's account and queues it for the
// engine.
func (s *Session) RefreshAccount(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.refresh(ctx)
	}()
}

// Wait blocks until every outstanding authority call has been answered.
// Call Stop first when nothing reads the event channel any more.
func (s *Session) Wait() {
	s.wg.Wait()
}

// Stop releases background calls blocked on the event channel. Their
// events are dropped. Stop is safe to call more than once.
func (s *Session) Stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

func (s *Session) refresh(ctx context.Context) {
	acct, err := s.authority.GetAccount(ctx)
	if err != nil {
		s.log.Warn("authority account failed", zap.Error(err))
		return
	}
	s.send(AccountEvent{Account: acct})
}

func (s *Session) send(ev Event) {
	select {
	case s.events <- ev:
	case <-s.done:
		s.log.Warn("session stopped, event dropped", zap.String("event", fmt.Sprintf("%T", ev)))
	}
}

func (s *Session) referencePrice(req market.OrderRequest) decimal.Decimal {
	if req.Type == market.Limit {
		return req.LimitPrice
	}
	t, err := s.engine.LastTick(req.Symbol)
	if err != nil {
		return decimal.Zero
	}
	return t.Price
}
