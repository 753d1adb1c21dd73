package journal

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

// Decimals are stored as TEXT so no precision is lost.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordPosition(p PositionRecord) error {
	_, err := j.db.Exec(`
		INSERT OR REPLACE INTO positions
		(position_id, symbol, side, order_type, quantity, leverage, entry_price, exit_price,
		 margin, fee, realized_pnl, status, open_time, close_time, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.PositionID, p.Symbol, string(p.Side), string(p.Type), p.Quantity, p.Leverage,
		p.EntryPrice, p.ExitPrice, p.Margin, p.Fee, p.RealizedPnl, string(p.Status),
		p.OpenTime, p.CloseTime, p.Reason,
	)
	return err
}

func (j *SQLite) RecordAccount(a AccountSnapshot) error {
	_, err := j.db.Exec(`
		INSERT INTO account
		(time, balance, available, margin_used, unrealized_pnl)
		VALUES (?, ?, ?, ?, ?)`,
		a.Time, a.Balance, a.Available, a.MarginUsed, a.UnrealizedPnl,
	)
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
