// Package feed streams price batches from a websocket endpoint.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rustyeddy/margin/logging"
	"github.com/rustyeddy/margin/market"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Message is one batch from the feed. Prices is an unordered mapping of
// symbol to price; symbols absent from it are not updated.
type Message struct {
	Seq    uint64                     `json:"seq"`
	Time   time.Time                  `json:"time"`
	Prices map[string]decimal.Decimal `json:"prices"`
}

// Ticks converts the batch into per-symbol ticks.
func (m Message) Ticks() []market.Tick {
	return market.Batch(m.Prices, m.Seq, m.Time)
}

func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("decode feed message: %w", err)
	}
	return m, nil
}

type Handler func(Message)

// Client keeps a websocket connection open, reconnecting after failures,
// and hands every decoded message to the handler.
type Client struct {
	url           string
	reconnectWait time.Duration
	pongWait      time.Duration
	dialer        *websocket.Dialer
	log           *zap.Logger

	mu          sync.Mutex
	conn        *websocket.Conn
	onConnected func(*websocket.Conn) error
}

func NewClient(url string, reconnectWait time.Duration, log *zap.Logger) *Client {
	if reconnectWait <= 0 {
		reconnectWait = 5 * time.Second
	}
	return &Client{
		url:           url,
		reconnectWait: reconnectWait,
		pongWait:      60 * time.Second,
		dialer:        websocket.DefaultDialer,
		log:           logging.OrNop(log),
	}
}

// SetOnConnected registers a callback run after every successful dial,
// typically to send a subscription.
func (c *Client) SetOnConnected(cb func(*websocket.Conn) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnected = cb
}

// Run reads until ctx is done. Connection failures are logged and retried
// after the reconnect wait.
func (c *Client) Run(ctx context.Context, handle Handler) error {
	for {
		err := c.session(ctx, handle)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn("feed disconnected", zap.String("url", c.url), zap.Error(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.reconnectWait):
		}
	}
}

func (c *Client) session(ctx context.Context, handle Handler) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.url, err)
	}
	c.mu.Lock()
	c.conn = conn
	onConnected := c.onConnected
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		conn.Close()
	}()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	})
	defer stop()

	if onConnected != nil {
		if err := onConnected(conn); err != nil {
			return fmt.Errorf("on connected: %w", err)
		}
	}
	c.log.Info("feed connected", zap.String("url", c.url))

	_ = conn.SetReadDeadline(time.Now().Add(c.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return errors.New("closed by server")
			}
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(c.pongWait))

		msg, err := Decode(data)
		if err != nil {
			c.log.Warn("feed message dropped", zap.Error(err))
			continue
		}
		handle(msg)
	}
}

// Connected reports whether a connection is currently open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}
