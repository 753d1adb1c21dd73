package replay

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rustyeddy/margin/autorisk"
	"github.com/rustyeddy/margin/broker"
	"github.com/rustyeddy/margin/logging"
	"github.com/rustyeddy/margin/market"
	"github.com/rustyeddy/margin/risk"
	"github.com/rustyeddy/margin/sim"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Target is what a replay drives. *sim.Engine satisfies it.
type Target interface {
	ApplyTick(market.Tick) sim.Update
	LastTick(symbol string) (market.Tick, error)
	PlaceOrder(ctx context.Context, req market.OrderRequest) (broker.Position, error)
	Cancel(ctx context.Context, positionID string) error
	Close(ctx context.Context, positionID, reason string) error
	CloseAll(ctx context.Context, reason string) error
}

// Options controls how replay behaves.
type Options struct {
	// If true: apply the row's tick first, then its event. OPEN then enters
	// at that row's price and CLOSE settles at it.
	TickThenEvent bool

	// Policy, when set, adds stop-loss and take-profit to orders that
	// carry neither.
	Policy *autorisk.Policy

	Log *zap.Logger
}

// Result summarizes a replay.
type Result struct {
	Rows     int
	Ticks    int
	Stale    int
	Fills    int
	Alerts   []sim.Alert
	Rejected int

	// Labels maps script labels to the position ids they were given.
	Labels map[string]string
}

// CSV replays ticks from a CSV file and applies optional scripted events.
//
// Row format:
//
//	time,symbol,price[,event,arg1,arg2,...]
//
// Events (case-insensitive). Labels name positions within the script.
//
//	OPEN:      label side quantity leverage [stopLoss takeProfit]   market order
//	LIMIT:     label side quantity leverage limit [stopLoss takeProfit]
//	CANCEL:    label
//	CLOSE:     label [reason]
//	CLOSE_ALL: [reason]
//
// Orders refused by the risk checks are counted in Result.Rejected and do
// not stop the replay.
func CSV(ctx context.Context, csvPath string, target Target, opts Options) (*Result, error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(ctx, f, target, opts)
}

func Read(ctx context.Context, in io.Reader, target Target, opts Options) (*Result, error) {
	p := &player{
		target: target,
		opts:   opts,
		log:    logging.OrNop(opts.Log),
		res:    &Result{Labels: make(map[string]string)},
	}

	r := csv.NewReader(in)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	line := 0
	for {
		row, err := r.Read()
		if err == io.EOF {
			return p.res, nil
		}
		if err != nil {
			return p.res, err
		}
		line++
		if len(row) == 0 || (line == 1 && strings.EqualFold(strings.TrimSpace(row[0]), "time")) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return p.res, err
		}
		if err := p.row(ctx, uint64(line), row); err != nil {
			return p.res, fmt.Errorf("line %d: %w", line, err)
		}
	}
}

type player struct {
	target Target
	opts   Options
	log    *zap.Logger
	res    *Result
}

func (p *player) row(ctx context.Context, seq uint64, row []string) error {
	if len(row) < 3 {
		return fmt.Errorf("bad row (need at least 3 cols time,symbol,price): %v", row)
	}
	p.res.Rows++

	t, err := time.Parse(time.RFC3339, strings.TrimSpace(row[0]))
	if err != nil {
		return fmt.Errorf("bad time %q: %w", row[0], err)
	}
	symbol := strings.TrimSpace(row[1])
	price, err := decimal.NewFromString(strings.TrimSpace(row[2]))
	if err != nil {
		return fmt.Errorf("bad price %q: %w", row[2], err)
	}
	tick := market.Tick{Symbol: symbol, Price: price, Seq: seq, Time: t}

	event := ""
	var args []string
	if len(row) >= 4 {
		event = strings.TrimSpace(row[3])
	}
	if len(row) >= 5 {
		args = row[4:]
		for i := range args {
			args[i] = strings.TrimSpace(args[i])
		}
	}

	if p.opts.TickThenEvent {
		p.tick(tick)
		if event != "" {
			return p.event(ctx, symbol, event, args)
		}
		return nil
	}

	if event != "" {
		if err := p.event(ctx, symbol, event, args); err != nil {
			return err
		}
	}
	p.tick(tick)
	return nil
}

func (p *player) tick(t market.Tick) {
	u := p.target.ApplyTick(t)
	if u.Stale {
		p.res.Stale++
		return
	}
	p.res.Ticks++
	p.res.Fills += len(u.Filled)
	p.res.Alerts = append(p.res.Alerts, u.Alerts...)
}

func (p *player) event(ctx context.Context, symbol, event string, args []string) error {
	switch strings.ToUpper(event) {
	case "OPEN":
		// OPEN,btc1,LONG,0.5,10,95,110
		label, req, err := parseOrderArgs(symbol, market.Market, args)
		if err != nil {
			return fmt.Errorf("OPEN: %w", err)
		}
		return p.place(ctx, label, req)

	case "LIMIT":
		// LIMIT,btc2,SHORT,1,5,105
		label, req, err := parseOrderArgs(symbol, market.Limit, args)
		if err != nil {
			return fmt.Errorf("LIMIT: %w", err)
		}
		return p.place(ctx, label, req)

	case "CANCEL":
		id, err := p.lookup(args)
		if err != nil {
			return fmt.Errorf("CANCEL: %w", err)
		}
		return p.target.Cancel(ctx, id)

	case "CLOSE":
		id, err := p.lookup(args)
		if err != nil {
			return fmt.Errorf("CLOSE: %w", err)
		}
		return p.target.Close(ctx, id, argOr(args, 1, "ManualClose"))

	case "CLOSE_ALL":
		return p.target.CloseAll(ctx, argOr(args, 0, "ManualClose"))

	default:
		return fmt.Errorf("unknown event %q", event)
	}
}

func (p *player) place(ctx context.Context, label string, req market.OrderRequest) error {
	if _, dup := p.res.Labels[label]; dup {
		return fmt.Errorf("label %q already used", label)
	}
	if p.opts.Policy != nil {
		ref := req.LimitPrice
		if req.Type == market.Market {
			if t, err := p.target.LastTick(req.Symbol); err == nil {
				ref = t.Price
			}
		}
		req = p.opts.Policy.Apply(req, ref)
	}

	pos, err := p.target.PlaceOrder(ctx, req)
	if errors.Is(err, risk.ErrInvalidInput) || errors.Is(err, risk.ErrInsufficientBalance) {
		p.res.Rejected++
		p.log.Info("scripted order refused", zap.String("label", label), zap.Error(err))
		return nil
	}
	if err != nil {
		return err
	}
	p.res.Labels[label] = pos.ID
	return nil
}

func (p *player) lookup(args []string) (string, error) {
	if len(args) < 1 || args[0] == "" {
		return "", fmt.Errorf("missing label")
	}
	id, ok := p.res.Labels[args[0]]
	if !ok {
		return "", fmt.Errorf("unknown label %q", args[0])
	}
	return id, nil
}

func argOr(args []string, i int, def string) string {
	if len(args) > i && args[i] != "" {
		return args[i]
	}
	return def
}

func parseOrderArgs(symbol string, typ market.OrderType, args []string) (string, market.OrderRequest, error) {
	need := 4
	usage := "need label side quantity leverage [stopLoss takeProfit]"
	if typ == market.Limit {
		need = 5
		usage = "need label side quantity leverage limit [stopLoss takeProfit]"
	}
	if len(args) < need {
		return "", market.OrderRequest{}, errors.New(usage)
	}

	label := args[0]
	if label == "" {
		return "", market.OrderRequest{}, fmt.Errorf("label is empty")
	}
	side, err := market.ParseSide(args[1])
	if err != nil {
		return "", market.OrderRequest{}, err
	}
	qty, err := decimal.NewFromString(args[2])
	if err != nil {
		return "", market.OrderRequest{}, fmt.Errorf("bad quantity %q: %w", args[2], err)
	}
	lev, err := strconv.Atoi(args[3])
	if err != nil {
		return "", market.OrderRequest{}, fmt.Errorf("bad leverage %q: %w", args[3], err)
	}

	req := market.OrderRequest{
		Symbol:   symbol,
		Side:     side,
		Type:     typ,
		Quantity: qty,
		Leverage: lev,
	}
	if typ == market.Limit {
		req.LimitPrice, err = decimal.NewFromString(args[4])
		if err != nil {
			return "", market.OrderRequest{}, fmt.Errorf("bad limit %q: %w", args[4], err)
		}
	}

	rest := args[need:]
	if len(rest) >= 1 && rest[0] != "" {
		sl, err := decimal.NewFromString(rest[0])
		if err != nil {
			return "", market.OrderRequest{}, fmt.Errorf("bad stopLoss %q: %w", rest[0], err)
		}
		req.StopLoss = &sl
	}
	if len(rest) >= 2 && rest[1] != "" {
		tp, err := decimal.NewFromString(rest[1])
		if err != nil {
			return "", market.OrderRequest{}, fmt.Errorf("bad takeProfit %q: %w", rest[1], err)
		}
		req.TakeProfit = &tp
	}
	return label, req, nil
}
