package journal

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSVJournalHeaders(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	positionsPath := filepath.Join(dir, "positions.csv")
	accountPath := filepath.Join(dir, "account.csv")

	j, err := NewCSV(positionsPath, accountPath)
	require.NoError(t, err)
	require.NoError(t, j.Close())

	pos := readCSV(t, positionsPath)
	acct := readCSV(t, accountPath)
	require.Len(t, pos, 1)
	require.Len(t, acct, 1)

	assert.Equal(t, []string{"position_id", "symbol", "side", "order_type", "quantity", "leverage",
		"entry_price", "exit_price", "margin", "fee", "realized_pnl", "status", "open_time", "close_time", "reason"}, pos[0])
	assert.Equal(t, []string{"time", "balance", "available", "margin_used", "unrealized_pnl"}, acct[0])
}

func TestCSVJournalRecords(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	positionsPath := filepath.Join(dir, "positions.csv")
	accountPath := filepath.Join(dir, "account.csv")

	j, err := NewCSV(positionsPath, accountPath)
	require.NoError(t, err)

	closeT := time.Date(2024, 1, 2, 4, 5, 6, 0, time.UTC)
	require.NoError(t, j.RecordPosition(samplePosition("P1", closeT)))
	require.NoError(t, j.RecordAccount(AccountSnapshot{
		Time:          closeT,
		Balance:       d("1000"),
		Available:     d("899.6"),
		MarginUsed:    d("100"),
		UnrealizedPnl: d("0"),
	}))
	require.NoError(t, j.Close())

	pos := readCSV(t, positionsPath)
	require.Len(t, pos, 2)
	row := pos[1]
	assert.Equal(t, "P1", row[0])
	assert.Equal(t, "LONG", row[2])
	assert.Equal(t, "LIMIT", row[3])
	assert.Equal(t, "0.123456789", row[4])
	assert.Equal(t, "25", row[5])
	assert.Equal(t, "65000.12345678", row[6])
	assert.Equal(t, "-12.5", row[10])
	assert.Equal(t, "CLOSED", row[11])
	assert.Equal(t, "2024-01-02T04:05:06Z", row[13])

	acct := readCSV(t, accountPath)
	require.Len(t, acct, 2)
	assert.Equal(t, []string{"2024-01-02T04:05:06Z", "1000", "899.6", "100", "0"}, acct[1])
}

func TestNopJournal(t *testing.T) {
	t.Parallel()

	var j Journal = Nop{}
	assert.NoError(t, j.RecordPosition(PositionRecord{}))
	assert.NoError(t, j.RecordAccount(AccountSnapshot{}))
	assert.NoError(t, j.Close())
}
