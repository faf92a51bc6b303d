package coinbase

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// State is the connection lifecycle of the feed client.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateSubscribed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	default:
		return "disconnected"
	}
}

// Client maintains a persistent ticker subscription against the Coinbase
// websocket feed. On error or unexpected close it schedules exactly one
// reconnect attempt after a fixed delay; a pending timer is always cancelled
// before a new one is armed and on explicit teardown.
type Client struct {
	url            string
	reconnectDelay time.Duration
	handler        func([]byte)
	logger         *zap.Logger

	// dial is swapped in tests.
	dial func(url string) (*websocket.Conn, *http.Response, error)

	mu             sync.Mutex
	state          State
	conn           *websocket.Conn
	productIDs     []string
	reconnectTimer *time.Timer
	closed         bool
	gen            int // bumped per dial; stale read loops see a mismatch and exit
}

func NewClient(url string, reconnectDelay time.Duration, logger *zap.Logger) *Client {
	return &Client{
		url:            url,
		reconnectDelay: reconnectDelay,
		logger:         logger,
		dial: func(url string) (*websocket.Conn, *http.Response, error) {
			return websocket.DefaultDialer.Dial(url, nil)
		},
	}
}

// SetMessageHandler sets the function invoked for every raw frame received.
// Must be called before Connect.
func (c *Client) SetMessageHandler(h func([]byte)) {
	c.handler = h
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect opens the feed and subscribes to ticker updates for the given
// instruments. A failed dial arms the reconnect timer rather than giving up.
func (c *Client) Connect(productIDs []string) error {
	c.mu.Lock()
	c.closed = false
	c.productIDs = append([]string(nil), productIDs...)
	c.mu.Unlock()

	return c.establish()
}

// Resubscribe tears the connection down and reopens it with a new instrument
// set. The feed offers no incremental subscribe contract.
func (c *Client) Resubscribe(productIDs []string) error {
	c.Disconnect()
	return c.Connect(productIDs)
}

// Disconnect closes the connection and cancels any pending reconnect timer.
// Idempotent.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	c.cancelReconnectLocked()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.state = StateDisconnected
}

// establish dials, subscribes and starts the read loop.
func (c *Client) establish() error {
	c.mu.Lock()
	if c.closed || c.state != StateDisconnected {
		c.mu.Unlock()
		return nil
	}
	c.cancelReconnectLocked()
	c.state = StateConnecting
	ids := append([]string(nil), c.productIDs...)
	c.mu.Unlock()

	conn, _, err := c.dial(c.url)
	if err != nil {
		c.logger.Error("failed to connect to feed", zap.String("url", c.url), zap.Error(err))
		c.setDisconnected()
		c.scheduleReconnect()
		return err
	}

	sub := subscribeMessage{
		Type: "subscribe",
		Channels: []channel{
			{Name: "ticker", ProductIDs: ids},
		},
	}
	if err := conn.WriteJSON(sub); err != nil {
		_ = conn.Close()
		c.logger.Error("failed to send subscription", zap.Error(err))
		c.setDisconnected()
		c.scheduleReconnect()
		return fmt.Errorf("feed subscribe failed: %w", err)
	}

	c.mu.Lock()
	if c.closed {
		// Torn down while dialing; drop the fresh connection.
		c.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	c.conn = conn
	c.state = StateSubscribed
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	c.logger.Info("feed subscribed",
		zap.String("url", c.url),
		zap.Int("instruments", len(ids)),
	)

	go c.readLoop(conn, gen)
	return nil
}

// readLoop delivers frames to the handler until the connection dies, then
// hands off to the reconnect path. Ticks are applied in receive order.
func (c *Client) readLoop(conn *websocket.Conn, gen int) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			c.handleDisconnect(gen, err)
			return
		}
		if c.handler != nil {
			c.handler(msg)
		}
	}
}

// handleDisconnect arms a single reconnect attempt for the failed connection.
// A close event for an already-replaced or already-disconnected connection is
// ignored so two close events never stack two timers.
func (c *Client) handleDisconnect(gen int, cause error) {
	c.mu.Lock()
	if c.closed || gen != c.gen || c.state == StateDisconnected {
		c.mu.Unlock()
		return
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.state = StateDisconnected
	c.mu.Unlock()

	c.logger.Warn("feed disconnected", zap.Error(cause))
	c.scheduleReconnect()
}

// scheduleReconnect arms the fixed-delay reconnect timer, replacing any
// pending one. Repeated failures keep retrying on the same fixed interval.
func (c *Client) scheduleReconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.cancelReconnectLocked()
	c.reconnectTimer = time.AfterFunc(c.reconnectDelay, func() {
		if err := c.establish(); err != nil {
			c.logger.Warn("feed reconnect failed", zap.Error(err))
		}
	})
}

func (c *Client) setDisconnected() {
	c.mu.Lock()
	c.state = StateDisconnected
	c.mu.Unlock()
}

func (c *Client) cancelReconnectLocked() {
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
}
