package market

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestTickStore_ApplyGet(t *testing.T) {
	t.Parallel()

	ts := NewTickStore()
	tk := Tick{Symbol: "BTCUSDT", Price: d("65000.5"), Seq: 1}

	assert.True(t, ts.Apply(tk))

	got, err := ts.Get("BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, tk, got)
}

func TestTickStore_GetMissing(t *testing.T) {
	t.Parallel()

	ts := NewTickStore()
	got, err := ts.Get("NO_SUCH")
	assert.ErrorIs(t, err, ErrNoPrice)
	assert.Equal(t, Tick{}, got)
}

func TestTickStore_DropsStale(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		first Tick
		next  Tick
		want  bool
	}{
		{"newer seq", Tick{Seq: 2}, Tick{Seq: 3}, true},
		{"older seq", Tick{Seq: 5}, Tick{Seq: 4}, false},
		{"duplicate seq", Tick{Seq: 5}, Tick{Seq: 5}, false},
		{"seq wins over time", Tick{Seq: 5, Time: t0}, Tick{Seq: 6, Time: t0.Add(-time.Hour)}, true},
		{"newer time", Tick{Time: t0}, Tick{Time: t0.Add(time.Second)}, true},
		{"older time", Tick{Time: t0}, Tick{Time: t0.Add(-time.Second)}, false},
		{"same time", Tick{Time: t0}, Tick{Time: t0}, true},
		{"unordered", Tick{}, Tick{}, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ts := NewTickStore()
			tt.first.Symbol, tt.first.Price = "ETHUSDT", d("100")
			tt.next.Symbol, tt.next.Price = "ETHUSDT", d("101")

			require.True(t, ts.Apply(tt.first))
			assert.Equal(t, tt.want, ts.Apply(tt.next))

			got, err := ts.Get("ETHUSDT")
			require.NoError(t, err)
			if tt.want {
				assert.True(t, got.Price.Equal(d("101")))
			} else {
				assert.True(t, got.Price.Equal(d("100")))
			}
		})
	}
}

func TestTickStore_SymbolsIndependent(t *testing.T) {
	t.Parallel()

	ts := NewTickStore()
	require.True(t, ts.Apply(Tick{Symbol: "A", Price: d("1"), Seq: 10}))
	assert.True(t, ts.Apply(Tick{Symbol: "B", Price: d("2"), Seq: 1}))
}

func TestBatch(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ticks := Batch(map[string]decimal.Decimal{
		"SOLUSDT": d("150"),
		"BTCUSDT": d("65000"),
		"BAD":     decimal.Zero,
		"":        d("1"),
	}, 7, at)

	require.Len(t, ticks, 2)
	assert.Equal(t, "BTCUSDT", ticks[0].Symbol)
	assert.Equal(t, "SOLUSDT", ticks[1].Symbol)
	assert.Equal(t, uint64(7), ticks[0].Seq)
	assert.Equal(t, at, ticks[1].Time)
}

func TestParseSideAndType(t *testing.T) {
	t.Parallel()

	s, err := ParseSide("long")
	require.NoError(t, err)
	assert.Equal(t, Long, s)

	s, err = ParseSide("Sell")
	require.NoError(t, err)
	assert.Equal(t, Short, s)

	_, err = ParseSide("sideways")
	assert.Error(t, err)

	ot, err := ParseOrderType("limit")
	require.NoError(t, err)
	assert.Equal(t, Limit, ot)

	_, err = ParseOrderType("stop")
	assert.Error(t, err)
}
