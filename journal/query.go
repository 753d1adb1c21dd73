package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rustyeddy/margin/market"
)

const positionColumns = `position_id, symbol, side, order_type, quantity, leverage, entry_price, exit_price,
	margin, fee, realized_pnl, status, open_time, close_time, reason`

type scanner interface {
	Scan(dest ...any) error
}

func scanPosition(s scanner) (PositionRecord, error) {
	var rec PositionRecord
	var side, typ, status string
	err := s.Scan(
		&rec.PositionID,
		&rec.Symbol,
		&side,
		&typ,
		&rec.Quantity,
		&rec.Leverage,
		&rec.EntryPrice,
		&rec.ExitPrice,
		&rec.Margin,
		&rec.Fee,
		&rec.RealizedPnl,
		&status,
		&rec.OpenTime,
		&rec.CloseTime,
		&rec.Reason,
	)
	rec.Side = market.Side(side)
	rec.Type = market.OrderType(typ)
	rec.Status = market.Status(status)
	return rec, err
}

// GetPosition returns a single position record by ID.
func (j *SQLite) GetPosition(positionID string) (PositionRecord, error) {
	row := j.db.QueryRow(`SELECT `+positionColumns+` FROM positions WHERE position_id = ?`, positionID)
	rec, err := scanPosition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return PositionRecord{}, fmt.Errorf("position %q not found", positionID)
	}
	if err != nil {
		return PositionRecord{}, err
	}
	return rec, nil
}

// ListPositionsClosedBetween returns positions whose close_time is within [start, end).
func (j *SQLite) ListPositionsClosedBetween(start, end time.Time) ([]PositionRecord, error) {
	rows, err := j.db.Query(`
		SELECT `+positionColumns+`
		FROM positions
		WHERE close_time >= ? AND close_time < ?
		ORDER BY close_time ASC`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PositionRecord
	for rows.Next() {
		rec, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListPositionsClosedOnDay returns positions closed on the given day in loc.
func (j *SQLite) ListPositionsClosedOnDay(day time.Time, loc *time.Location) ([]PositionRecord, error) {
	if loc == nil {
		loc = time.Local
	}
	d := day.In(loc)
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
	return j.ListPositionsClosedBetween(start.UTC(), start.AddDate(0, 0, 1).UTC())
}
