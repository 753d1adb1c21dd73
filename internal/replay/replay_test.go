package replay

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rustyeddy/margin/autorisk"
	"github.com/rustyeddy/margin/broker"
	"github.com/rustyeddy/margin/journal"
	"github.com/rustyeddy/margin/market"
	"github.com/rustyeddy/margin/risk"
	"github.com/rustyeddy/margin/sim"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newEngine(t *testing.T, j journal.Journal) *sim.Engine {
	t.Helper()
	return sim.NewEngine(broker.Account{ID: "replay", Balance: d("1000")}, risk.DefaultParams(), j, nil)
}

const scenario = `time,symbol,price,event,arg1,arg2,arg3,arg4,arg5,arg6
2026-01-24T09:30:00Z,BTC,100,OPEN,a,LONG,1,10,97,106
2026-01-24T09:30:05Z,BTC,103
2026-01-24T09:30:10Z,ETH,50,LIMIT,b,SHORT,2,5,52
2026-01-24T09:30:15Z,ETH,51
2026-01-24T09:30:20Z,ETH,52.5
2026-01-24T09:30:25Z,BTC,106,CLOSE,a,TakeProfit
2026-01-24T09:30:30Z,SOL,20,LIMIT,c,LONG,1,2,18
2026-01-24T09:30:35Z,SOL,19,CANCEL,c
2026-01-24T09:30:40Z,SOL,17
2026-01-24T09:30:45Z,BTC,100,OPEN,big,LONG,100,10
2026-01-24T09:30:50Z,ETH,52,CLOSE_ALL,EndOfDay
`

func TestReplayScenarioJournalsPositions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tmp := t.TempDir()
	csvPath := filepath.Join(tmp, "ticks.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(scenario), 0644))

	j, err := journal.NewSQLite(filepath.Join(tmp, "margin.sqlite"))
	require.NoError(t, err)
	defer j.Close()

	e := newEngine(t, j)
	res, err := CSV(ctx, csvPath, e, Options{TickThenEvent: true})
	require.NoError(t, err)

	assert.Equal(t, 11, res.Rows)
	assert.Equal(t, 11, res.Ticks)
	assert.Zero(t, res.Stale)
	assert.Equal(t, 1, res.Fills)
	assert.Equal(t, 1, res.Rejected)
	require.Len(t, res.Alerts, 1)
	assert.Equal(t, sim.AlertTakeProfit, res.Alerts[0].Kind)
	assert.Len(t, res.Labels, 3)

	acct := e.Account()
	assert.True(t, d("1059.392").Equal(acct.Balance), "balance %s", acct.Balance)
	assert.True(t, acct.MarginUsed.IsZero())

	a, err := j.GetPosition(res.Labels["a"])
	require.NoError(t, err)
	assert.Equal(t, market.Closed, a.Status)
	assert.Equal(t, "TakeProfit", a.Reason)
	assert.True(t, d("60").Equal(a.RealizedPnl))
	assert.Equal(t, time.Date(2026, 1, 24, 9, 30, 25, 0, time.UTC), a.CloseTime.UTC())

	b, err := j.GetPosition(res.Labels["b"])
	require.NoError(t, err)
	assert.Equal(t, "EndOfDay", b.Reason)
	assert.True(t, d("52").Equal(b.EntryPrice))
	assert.True(t, b.RealizedPnl.IsZero())

	c, err := j.GetPosition(res.Labels["c"])
	require.NoError(t, err)
	assert.Equal(t, market.Cancelled, c.Status)
}

func TestReplayEventOrder(t *testing.T) {
	t.Parallel()

	rows := "2026-01-24T09:30:00Z,BTC,100\n" +
		"2026-01-24T09:30:05Z,BTC,90,OPEN,a,LONG,1,10\n"

	tests := []struct {
		name      string
		tickFirst bool
		wantEntry string
	}{
		{"tick then event", true, "90"},
		{"event then tick", false, "100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := newEngine(t, nil)
			res, err := Read(context.Background(), strings.NewReader(rows), e, Options{TickThenEvent: tt.tickFirst})
			require.NoError(t, err)

			p, err := e.Position(res.Labels["a"])
			require.NoError(t, err)
			assert.True(t, d(tt.wantEntry).Equal(p.EntryPrice), "entry %s", p.EntryPrice)
		})
	}
}

func TestReplayAppliesPolicy(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	policy, err := autorisk.NewPolicy(ctx, autorisk.NewMemoryStore(), nil)
	require.NoError(t, err)
	require.NoError(t, policy.Update(ctx, autorisk.Config{Enabled: true, StopLossPercent: 3, TakeProfitPercent: 6}))

	rows := "2026-01-24T09:30:00Z,BTC,100,OPEN,a,LONG,1,10\n" +
		"2026-01-24T09:30:05Z,BTC,96.5\n"

	e := newEngine(t, nil)
	res, err := Read(ctx, strings.NewReader(rows), e, Options{TickThenEvent: true, Policy: policy})
	require.NoError(t, err)

	p, err := e.Position(res.Labels["a"])
	require.NoError(t, err)
	require.NotNil(t, p.StopLoss)
	assert.True(t, d("97").Equal(*p.StopLoss))
	require.Len(t, res.Alerts, 1)
	assert.Equal(t, sim.AlertStopLoss, res.Alerts[0].Kind)
}

func TestReplayErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rows string
		want string
	}{
		{"short row", "2026-01-24T09:30:00Z,BTC\n", "need at least 3 cols"},
		{"bad time", "yesterday,BTC,100\n", "bad time"},
		{"bad price", "2026-01-24T09:30:00Z,BTC,abc\n", "bad price"},
		{"unknown event", "2026-01-24T09:30:00Z,BTC,100,HODL\n", "unknown event"},
		{"bad side", "2026-01-24T09:30:00Z,BTC,100,OPEN,a,UP,1,10\n", "unknown side"},
		{"missing limit", "2026-01-24T09:30:00Z,BTC,100,LIMIT,a,LONG,1,10\n", "need label side quantity leverage limit"},
		{"unknown label", "2026-01-24T09:30:00Z,BTC,100,CANCEL,nope\n", "unknown label"},
		{"duplicate label", "2026-01-24T09:30:00Z,BTC,100,OPEN,a,LONG,1,1\n2026-01-24T09:30:01Z,BTC,100,OPEN,a,LONG,1,1\n", "already used"},
		{"close pending", "2026-01-24T09:30:00Z,BTC,100,LIMIT,a,LONG,1,1,90\n2026-01-24T09:30:01Z,BTC,100,CLOSE,a\n", "invalid status transition"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Read(context.Background(), strings.NewReader(tt.rows), newEngine(t, nil), Options{TickThenEvent: true})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestReplayMissingFile(t *testing.T) {
	t.Parallel()
	_, err := CSV(context.Background(), filepath.Join(t.TempDir(), "nope.csv"), newEngine(t, nil), Options{})
	assert.Error(t, err)
}
