// Package events adapts a blockchain log subscription into the typed
// PoolInit / Swap events the rest of the pipeline consumes. The adapter
// owns reconnection and enrichment; aggregation never sees a socket.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// LogNotification is one raw subscription message: a transaction
// signature plus its program log lines.
type LogNotification struct {
	Signature string
	Logs      []string
	Slot      int64
	Failed    bool // transaction errored on-chain
}

// WSConfig configures the subscription client.
type WSConfig struct {
	ReconnectDelay    time.Duration // initial redial delay
	MaxReconnectDelay time.Duration // redial delay ceiling
	PingInterval      time.Duration // keepalive ping spacing
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	HandshakeTimeout  time.Duration
	Buffer            int // notification channel capacity
}

// DefaultWSConfig returns the stock subscription settings.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		HandshakeTimeout:  10 * time.Second,
		Buffer:            10000,
	}
}

// WSClient maintains a log subscription for a fixed set of program
// addresses over one websocket connection. All matching notifications
// land on a single channel; on connection loss the client redials with
// capped backoff and resubscribes every program.
type WSClient struct {
	endpoint string
	programs []string
	cfg      WSConfig
	logger   *log.Logger

	conn      *websocket.Conn
	connMu    sync.Mutex
	closed    atomic.Bool
	requestID atomic.Uint64

	notifs chan LogNotification
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewWSClient connects, subscribes to logs mentioning each program and
// starts the read and keepalive loops.
func NewWSClient(ctx context.Context, endpoint string, programs []string, cfg *WSConfig, logger *log.Logger) (*WSClient, error) {
	conf := DefaultWSConfig()
	if cfg != nil {
		conf = *cfg
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[ws] ", log.LstdFlags)
	}

	c := &WSClient{
		endpoint: endpoint,
		programs: programs,
		cfg:      conf,
		logger:   logger,
		notifs:   make(chan LogNotification, conf.Buffer),
		done:     make(chan struct{}),
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}
	if err := c.subscribeAll(); err != nil {
		c.Close()
		return nil, err
	}

	c.wg.Add(2)
	go c.readLoop()
	go c.pingLoop()

	return c, nil
}

// Notifications returns the inbound stream. Sends block rather than
// drop; the channel closes on Close.
func (c *WSClient) Notifications() <-chan LogNotification {
	return c.notifs
}

// Close shuts the connection down and closes the notification channel.
func (c *WSClient) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()

	c.wg.Wait()
	close(c.notifs)
	return nil
}

func (c *WSClient) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
	return nil
}

// subscribeAll sends one logsSubscribe per program. Confirmations are
// handled asynchronously in the read loop; a missing ack just means no
// notifications, which the read timeout turns into a reconnect.
func (c *WSClient) subscribeAll() error {
	for _, program := range c.programs {
		req := subRequest{
			JSONRPC: "2.0",
			ID:      c.requestID.Add(1),
			Method:  "logsSubscribe",
			Params: []interface{}{
				map[string]interface{}{"mentions": []string{program}},
				map[string]string{"commitment": "confirmed"},
			},
		}
		if err := c.writeJSON(req); err != nil {
			return fmt.Errorf("subscribe %s: %w", program, err)
		}
	}
	return nil
}

func (c *WSClient) writeJSON(v interface{}) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("not connected")
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return c.conn.WriteJSON(v)
}

// readLoop reads until Close, redialing with capped exponential backoff
// on any read error and resubscribing after each successful redial.
func (c *WSClient) readLoop() {
	defer c.wg.Done()

	delay := c.cfg.ReconnectDelay

	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}
			c.logger.Printf("read failed, reconnecting in %v: %v", delay, err)
			if !c.redial(delay) {
				return
			}
			delay *= 2
			if delay > c.cfg.MaxReconnectDelay {
				delay = c.cfg.MaxReconnectDelay
			}
			continue
		}

		delay = c.cfg.ReconnectDelay
		c.dispatch(message)
	}
}

// redial waits, reconnects and resubscribes. Returns false when the
// client was closed while waiting.
func (c *WSClient) redial(delay time.Duration) bool {
	select {
	case <-c.done:
		return false
	case <-time.After(delay):
	}

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
	}
	c.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.connect(ctx); err != nil {
		c.logger.Printf("redial failed: %v", err)
		return !c.closed.Load()
	}
	if err := c.subscribeAll(); err != nil {
		c.logger.Printf("resubscribe failed: %v", err)
	}
	return true
}

// dispatch parses one inbound frame and forwards log notifications.
// Subscription acks and unknown frames are dropped.
func (c *WSClient) dispatch(message []byte) {
	var notif subNotification
	if err := json.Unmarshal(message, &notif); err != nil || notif.Method != "logsNotification" || notif.Params == nil {
		return
	}

	value := notif.Params.Result.Value
	out := LogNotification{
		Signature: value.Signature,
		Logs:      value.Logs,
		Failed:    value.Err != nil,
	}
	if notif.Params.Result.Context != nil {
		out.Slot = notif.Params.Result.Context.Slot
	}

	// Block rather than drop; the buffer absorbs bursts.
	select {
	case c.notifs <- out:
	case <-c.done:
	}
}

// pingLoop keeps the connection alive between notifications.
func (c *WSClient) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
				// Write errors surface in the read loop as a reconnect.
				c.conn.WriteMessage(websocket.PingMessage, nil)
			}
			c.connMu.Unlock()
		}
	}
}

// Wire types for the subscription protocol.

type subRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type subNotification struct {
	Method string     `json:"method"`
	Params *subParams `json:"params"`
}

type subParams struct {
	Subscription int64     `json:"subscription"`
	Result       subResult `json:"result"`
}

type subResult struct {
	Context *subContext `json:"context"`
	Value   subValue    `json:"value"`
}

type subContext struct {
	Slot int64 `json:"slot"`
}

type subValue struct {
	Signature string      `json:"signature"`
	Logs      []string    `json:"logs"`
	Err       interface{} `json:"err"`
}
