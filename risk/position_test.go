package risk

import (
	"testing"

	"github.com/rustyeddy/margin/market"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestSnapshot(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		side    market.Side
		price   string
		wantPnl string
		wantROE string
	}{
		{"long_profit", market.Long, "105", "50", "50"},
		{"long_loss", market.Long, "95", "-50", "-50"},
		{"short_profit", market.Short, "95", "50", "50"},
		{"short_loss", market.Short, "110", "-100", "-100"},
		{"flat", market.Long, "100", "0", "0"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := Exposure{
				Side:       tt.side,
				EntryPrice: d("100"),
				Quantity:   d("1"),
				Leverage:   10,
				Margin:     d("100"),
			}
			got := Snapshot(e, d(tt.price))
			assertDecimal(t, tt.wantPnl, got.UnrealizedPnl)
			assertDecimal(t, tt.wantROE, got.ROE)
		})
	}
}

func TestSnapshot_Idempotent(t *testing.T) {
	t.Parallel()

	e := Exposure{Side: market.Short, EntryPrice: d("65000.5"), Quantity: d("0.013"), Leverage: 37, Margin: d("845.0065")}
	a := Snapshot(e, d("64321.12"))
	b := Snapshot(e, d("64321.12"))

	assert.Equal(t, a.UnrealizedPnl.String(), b.UnrealizedPnl.String())
	assert.Equal(t, a.ROE.String(), b.ROE.String())
}

func TestSnapshot_ZeroMargin(t *testing.T) {
	t.Parallel()

	got := Snapshot(Exposure{Side: market.Long, EntryPrice: d("1"), Quantity: d("1"), Leverage: 1}, d("2"))
	assertDecimal(t, "1", got.UnrealizedPnl)
	assert.True(t, got.ROE.IsZero())
}

func TestFillable(t *testing.T) {
	t.Parallel()

	limit := d("100")
	tests := []struct {
		side  market.Side
		price string
		want  bool
	}{
		{market.Long, "100", true},
		{market.Long, "99.99", true},
		{market.Long, "100.01", false},
		{market.Long, "150", false},
		{market.Short, "100", true},
		{market.Short, "100.01", true},
		{market.Short, "99.99", false},
		{market.Short, "50", false},
		{market.Long, "0", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Fillable(tt.side, limit, d(tt.price)), "%s at %s", tt.side, tt.price)
	}
}

func TestDistanceToFill(t *testing.T) {
	t.Parallel()

	assertDecimal(t, "20", DistanceToFill(market.Long, d("80"), d("100")))
	assertDecimal(t, "-10", DistanceToFill(market.Long, d("110"), d("100")))
	assertDecimal(t, "20", DistanceToFill(market.Short, d("120"), d("100")))
	assertDecimal(t, "-10", DistanceToFill(market.Short, d("90"), d("100")))
	assert.True(t, DistanceToFill(market.Long, d("100"), d("100")).IsZero())
	assert.True(t, DistanceToFill(market.Long, d("100"), decimal.Zero).IsZero())
}

func TestTriggers(t *testing.T) {
	t.Parallel()

	sl, tp := d("95"), d("110")
	assert.True(t, StopLossHit(market.Long, &sl, d("95")))
	assert.False(t, StopLossHit(market.Long, &sl, d("95.01")))
	assert.True(t, TakeProfitHit(market.Long, &tp, d("110")))
	assert.False(t, TakeProfitHit(market.Long, nil, d("1000")))

	ssl, stp := d("105"), d("90")
	assert.True(t, StopLossHit(market.Short, &ssl, d("106")))
	assert.True(t, TakeProfitHit(market.Short, &stp, d("89")))
	assert.False(t, StopLossHit(market.Short, nil, d("1000")))

	assert.True(t, Liquidated(market.Long, d("90.4"), d("90.4")))
	assert.False(t, Liquidated(market.Long, d("90.4"), d("90.5")))
	assert.False(t, Liquidated(market.Long, decimal.Zero, d("0.0001")))
	assert.True(t, Liquidated(market.Short, d("109.6"), d("110")))
	assert.False(t, Liquidated(market.Short, d("109.6"), d("109")))
}
