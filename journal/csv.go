package journal

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"
)

type CSV struct {
	positions *csv.Writer
	account   *csv.Writer
	pf, af    *os.File
}

func NewCSV(positionsPath, accountPath string) (*CSV, error) {
	pf, err := os.Create(positionsPath)
	if err != nil {
		return nil, err
	}
	af, err := os.Create(accountPath)
	if err != nil {
		pf.Close()
		return nil, err
	}

	pw := csv.NewWriter(pf)
	aw := csv.NewWriter(af)

	if err := pw.Write([]string{"position_id", "symbol", "side", "order_type", "quantity", "leverage",
		"entry_price", "exit_price", "margin", "fee", "realized_pnl", "status", "open_time", "close_time", "reason"}); err != nil {
		return nil, err
	}
	if err := aw.Write([]string{"time", "balance", "available", "margin_used", "unrealized_pnl"}); err != nil {
		return nil, err
	}

	pw.Flush()
	if err := pw.Error(); err != nil {
		return nil, err
	}
	aw.Flush()
	if err := aw.Error(); err != nil {
		return nil, err
	}

	return &CSV{pw, aw, pf, af}, nil
}

func (j *CSV) RecordPosition(p PositionRecord) error {
	err := j.positions.Write([]string{
		p.PositionID,
		p.Symbol,
		string(p.Side),
		string(p.Type),
		p.Quantity.String(),
		strconv.Itoa(p.Leverage),
		p.EntryPrice.String(),
		p.ExitPrice.String(),
		p.Margin.String(),
		p.Fee.String(),
		p.RealizedPnl.String(),
		string(p.Status),
		ts(p.OpenTime),
		ts(p.CloseTime),
		p.Reason,
	})
	if err != nil {
		return err
	}
	j.positions.Flush()
	return j.positions.Error()
}

func (j *CSV) RecordAccount(a AccountSnapshot) error {
	err := j.account.Write([]string{
		ts(a.Time),
		a.Balance.String(),
		a.Available.String(),
		a.MarginUsed.String(),
		a.UnrealizedPnl.String(),
	})
	if err != nil {
		return err
	}

	j.account.Flush()
	return j.account.Error()
}

func (j *CSV) Close() error {
	j.positions.Flush()
	if err := j.positions.Error(); err != nil {
		return err
	}
	j.account.Flush()
	if err := j.account.Error(); err != nil {
		return err
	}

	if err := j.pf.Close(); err != nil {
		return err
	}
	return j.af.Close()
}

func ts(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
