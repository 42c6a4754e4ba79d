// Package transport carries newline-delimited text between the bridge and
// the engine over two independent TCP sockets: Conn writes commands out,
// Listener accepts the engine's connections and reads replies in.
package transport

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/m4xw311/bachmcp/logging"
	"github.com/m4xw311/bachmcp/metrics"
)

// DialFunc opens the outbound connection. net.Dialer.DialContext satisfies it.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

type ConnOption func(*Conn)

// WithDialFunc replaces the network dialer.
func WithDialFunc(fn DialFunc) ConnOption {
	return func(c *Conn) { c.dial = fn }
}

// WithDialTimeout bounds each connect attempt.
func WithDialTimeout(d time.Duration) ConnOption {
	return func(c *Conn) { c.dialTimeout = d }
}

// WithWriteTimeout bounds each write so a stalled engine cannot block a
// caller forever.
func WithWriteTimeout(d time.Duration) ConnOption {
	return func(c *Conn) { c.writeTimeout = d }
}

func WithConnLogger(l *slog.Logger) ConnOption {
	return func(c *Conn) {
		if l != nil {
			c.log = l
		}
	}
}

func WithConnMetrics(m *metrics.Metrics) ConnOption {
	return func(c *Conn) { c.metrics = m }
}

// Conn is the outbound sender. It connects lazily, and after any I/O failure
// it marks itself disconnected so the next Send makes one fresh attempt.
// Failed sends are not queued or retried; callers re-send if they must.
type Conn struct {
	addr         string
	dial         DialFunc
	dialTimeout  time.Duration
	writeTimeout time.Duration
	log          *slog.Logger
	metrics      *metrics.Metrics

	mu        sync.Mutex
	conn      net.Conn
	connected bool
}

// NewConn returns a sender for addr (host:port). No connection is made
// until the first Send.
func NewConn(addr string, opts ...ConnOption) *Conn {
	d := &net.Dialer{}
	c := &Conn{
		addr:         addr,
		dial:         d.DialContext,
		dialTimeout:  2 * time.Second,
		writeTimeout: 5 * time.Second,
		log:          logging.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Addr returns the engine address this sender targets.
func (c *Conn) Addr() string { return c.addr }

// Connected reports the current connection flag.
func (c *Conn) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Send writes text followed by a newline. It never returns an error: a
// failed connect or write yields false and leaves the sender disconnected.
func (c *Conn) Send(text string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		if !c.connectLocked() {
			c.metrics.SendFailed()
			return false
		}
	}

	if c.writeTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	if _, err := c.conn.Write([]byte(text + "\n")); err != nil {
		c.log.Warn("write failed, marking disconnected", "addr", c.addr, "error", err)
		c.dropLocked()
		c.metrics.SendFailed()
		return false
	}
	c.metrics.Sent()
	return true
}

// Close releases the socket. It is safe to call more than once.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		c.connected = false
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.connected = false
	return err
}

func (c *Conn) connectLocked() bool {
	if c.conn != nil {
		c.dropLocked()
	}
	ctx, cancel := context.Background(), context.CancelFunc(func() {})
	if c.dialTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, c.dialTimeout)
	}
	defer cancel()

	conn, err := c.dial(ctx, "tcp", c.addr)
	c.metrics.Dialed(err == nil)
	if err != nil {
		c.log.Debug("connect failed", "addr", c.addr, "error", err)
		return false
	}
	c.conn = conn
	c.connected = true
	c.log.Info("connected to engine", "addr", c.addr)
	return true
}

func (c *Conn) dropLocked() {
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.conn = nil
	c.connected = false
}
