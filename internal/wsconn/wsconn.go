// Package wsconn connects conversation sessions to the evaluation service
// over gorilla/websocket.
package wsconn

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/spigell/talento-chat/internal/session"
)

const (
	defaultWriteWait   = 10 * time.Second
	defaultDialTimeout = 15 * time.Second
	maxFrameSize       = 8 << 20
)

// ErrNotConnected is returned by Send before the handshake completes or after Close.
var ErrNotConnected = errors.New("websocket is not connected")

// Dialer implements session.Dialer.
type Dialer struct {
	Dialer *websocket.Dialer
	Header http.Header
	// Keepalive sends a ping frame at this interval. Zero disables it.
	Keepalive   time.Duration
	WriteWait   time.Duration
	DialTimeout time.Duration
	Logger      *zap.Logger
}

func NewDialer(logger *zap.Logger, keepalive time.Duration) *Dialer {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Dialer{
		Dialer:      websocket.DefaultDialer,
		Keepalive:   keepalive,
		WriteWait:   defaultWriteWait,
		DialTimeout: defaultDialTimeout,
		Logger:      logger,
	}
}

// Dial starts the handshake in the background and returns the handle at once.
func (d *Dialer) Dial(target string, events session.ConnEvents) session.Conn {
	ctx, cancel := context.WithCancel(context.Background())

	c := &conn{
		dialer: d,
		target: target,
		events: events,
		ctx:    ctx,
		cancel: cancel,
		logger: d.logger().With(zap.String("target", target)),
	}

	go c.run()

	return c
}

func (d *Dialer) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

type conn struct {
	dialer *Dialer
	target string
	events session.ConnEvents
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger

	mu     sync.Mutex
	ws     *websocket.Conn
	closed bool
}

func (c *conn) run() {
	ws, err := c.dial()
	if err != nil {
		if c.isClosed() {
			return
		}
		c.logger.Warn("dial failed", zap.Error(err))
		c.events.Failed(err)
		c.events.Closed()
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		ws.Close()
		return
	}
	c.ws = ws
	c.mu.Unlock()

	ws.SetReadLimit(maxFrameSize)
	c.events.Opened()

	if c.dialer.Keepalive > 0 {
		go c.keepalive(c.dialer.Keepalive)
	}

	c.readLoop(ws)
}

func (c *conn) dial() (*websocket.Conn, error) {
	dialer := c.dialer.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	ctx := c.ctx
	if c.dialer.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.dialer.DialTimeout)
		defer cancel()
	}

	ws, resp, err := dialer.DialContext(ctx, c.target, c.dialer.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %s)", c.target, err, resp.Status)
		}
		return nil, fmt.Errorf("dial %s: %w", c.target, err)
	}

	return ws, nil
}

func (c *conn) readLoop(ws *websocket.Conn) {
	defer c.cancel()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if c.isClosed() {
				return
			}

			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("read failed", zap.Error(err))
				c.events.Failed(err)
			}
			c.events.Closed()
			return
		}

		c.events.Received(data)
	}
}

func (c *conn) keepalive(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ping := session.EncodePing()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if err := c.Send(ping); err != nil {
				c.logger.Debug("keepalive stopped", zap.Error(err))
				return
			}
		}
	}
}

func (c *conn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.ws == nil {
		return ErrNotConnected
	}

	if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeWait())); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}

	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write message: %w", err)
	}

	return nil
}

// Close ends the connection. Events are not reported after Close.
func (c *conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.cancel()

	if c.ws == nil {
		return nil
	}

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.writeWait()))

	return c.ws.Close()
}

func (c *conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *conn) writeWait() time.Duration {
	if c.dialer.WriteWait > 0 {
		return c.dialer.WriteWait
	}
	return defaultWriteWait
}
