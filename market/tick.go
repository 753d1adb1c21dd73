package market

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

var ErrNoPrice = errors.New("price not found")

type TickSource interface {
	GetTick(ctx context.Context, symbol string) (Tick, error)
}

// Tick is a single price update for one symbol. Seq is optional; when both
// ticks of a comparison carry one it decides ordering, otherwise Time does.
type Tick struct {
	Symbol string
	Price  decimal.Decimal
	Seq    uint64
	Time   time.Time
}

// After reports whether t should replace prev.
func (t Tick) After(prev Tick) bool {
	if t.Seq > 0 && prev.Seq > 0 {
		return t.Seq > prev.Seq
	}
	if !t.Time.IsZero() && !prev.Time.IsZero() {
		return !t.Time.Before(prev.Time)
	}
	return true
}

// TickStore holds the latest applied tick per symbol.
type TickStore struct {
	mu    sync.RWMutex
	ticks map[string]Tick
}

func NewTickStore() *TickStore {
	return &TickStore{ticks: make(map[string]Tick)}
}

// Apply stores t unless a newer tick for the same symbol was already
// applied. It returns false for stale ticks.
func (ts *TickStore) Apply(t Tick) bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if prev, ok := ts.ticks[t.Symbol]; ok && !t.After(prev) {
		return false
	}
	ts.ticks[t.Symbol] = t
	return true
}

func (ts *TickStore) Get(symbol string) (Tick, error) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	t, ok := ts.ticks[symbol]
	if !ok {
		return Tick{}, ErrNoPrice
	}
	return t, nil
}

func (ts *TickStore) GetTick(_ context.Context, symbol string) (Tick, error) {
	return ts.Get(symbol)
}

// Batch turns an unordered symbol->price mapping into ticks sorted by
// symbol. Non-positive prices are skipped: a missing or bogus value means
// "no update", never a price of zero.
func Batch(prices map[string]decimal.Decimal, seq uint64, at time.Time) []Tick {
	ticks := make([]Tick, 0, len(prices))
	for sym, p := range prices {
		if sym == "" || !p.IsPositive() {
			continue
		}
		ticks = append(ticks, Tick{Symbol: sym, Price: p, Seq: seq, Time: at})
	}
	sort.Slice(ticks, func(i, j int) bool { return ticks[i].Symbol < ticks[j].Symbol })
	return ticks
}
