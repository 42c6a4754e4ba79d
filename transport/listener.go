package transport

import (
	"bufio"
	"errors"
	"log/slog"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	berrors "github.com/m4xw311/bachmcp/errors"
	"github.com/m4xw311/bachmcp/logging"
	"github.com/m4xw311/bachmcp/metrics"
)

// Handler receives one non-empty, trimmed inbound line.
type Handler func(line string)

// DefaultMaxLineBytes bounds a single inbound line.
const DefaultMaxLineBytes = 4 << 20

type ListenerOption func(*Listener)

func WithListenerLogger(l *slog.Logger) ListenerOption {
	return func(ln *Listener) {
		if l != nil {
			ln.log = l
		}
	}
}

func WithListenerMetrics(m *metrics.Metrics) ListenerOption {
	return func(ln *Listener) { ln.metrics = m }
}

// WithMaxLineBytes caps the length of one line; a longer line ends that
// connection.
func WithMaxLineBytes(n int) ListenerOption {
	return func(ln *Listener) {
		if n > 0 {
			ln.maxLine = n
		}
	}
}

// Listener accepts engine connections and feeds every line to a single
// handler. Each connection is read on its own goroutine and its lines are
// delivered synchronously, in order. Lines from different connections
// interleave in arrival order; their origin is not tracked.
type Listener struct {
	addr    string
	maxLine int
	log     *slog.Logger
	metrics *metrics.Metrics

	handler atomic.Pointer[Handler]

	mu      sync.Mutex
	ln      net.Listener
	conns   map[net.Conn]struct{}
	closed  bool
	wg      sync.WaitGroup
	running atomic.Bool
}

// NewListener returns a listener for addr (host:port). Port 0 picks a free
// port; read it back with Addr after Start.
func NewListener(addr string, opts ...ListenerOption) *Listener {
	l := &Listener{
		addr:    addr,
		maxLine: DefaultMaxLineBytes,
		log:     logging.Discard(),
		conns:   make(map[net.Conn]struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// SetHandler replaces the line handler. Lines arriving with no handler set
// are dropped.
func (l *Listener) SetHandler(h Handler) {
	l.handler.Store(&h)
}

// Start binds the socket and runs the accept loop on its own goroutine.
// Bind errors are returned; everything after that is logged.
func (l *Listener) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln != nil {
		return nil
	}
	ln, err := net.Listen("tcp", l.addr)
	if err != nil {
		return berrors.Wrapf(err, "could not listen on %s", l.addr)
	}
	l.ln = ln
	l.closed = false
	l.running.Store(true)
	l.log.Info("listening for engine", "addr", ln.Addr().String())

	l.wg.Add(1)
	go l.acceptLoop(ln)
	return nil
}

// Addr returns the bound address, or nil before Start.
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}

// Running reports whether the accept loop is live.
func (l *Listener) Running() bool { return l.running.Load() }

// Stop closes the listening socket and every open engine connection, then
// waits for their readers to return. It is safe to call more than once.
func (l *Listener) Stop() error {
	l.mu.Lock()
	if l.ln == nil {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	err := l.ln.Close()
	l.ln = nil
	for c := range l.conns {
		_ = c.Close()
	}
	l.mu.Unlock()

	l.wg.Wait()
	l.running.Store(false)
	return err
}

// Accept failures (EMFILE and the like) back off from minAcceptDelay up to
// maxAcceptDelay, doubling each time, and reset after a success.
const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

func (l *Listener) acceptLoop(ln net.Listener) {
	defer l.wg.Done()
	var delay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || l.isClosed() {
				l.log.Info("listener closed, stopping accept loop")
				l.running.Store(false)
				return
			}
			if delay == 0 {
				delay = minAcceptDelay
			} else {
				delay = min(2*delay, maxAcceptDelay)
			}
			l.log.Warn("accept error, retrying", "error", err, "delay", delay)
			time.Sleep(delay)
			continue
		}
		delay = 0
		if !l.track(conn) {
			_ = conn.Close()
			return
		}
		l.wg.Add(1)
		go l.readLoop(conn)
	}
}

func (l *Listener) readLoop(conn net.Conn) {
	defer l.wg.Done()
	defer l.untrack(conn)

	remote := conn.RemoteAddr().String()
	l.log.Info("engine connected", "remote", remote)
	l.metrics.ConnOpened()
	defer l.metrics.ConnClosed()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, min(64*1024, l.maxLine)), l.maxLine)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if h := l.handler.Load(); h != nil && *h != nil {
			(*h)(line)
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		l.log.Warn("engine read error", "remote", remote, "error", err)
	}
	l.log.Info("engine disconnected", "remote", remote)
}

func (l *Listener) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

func (l *Listener) track(conn net.Conn) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return false
	}
	l.conns[conn] = struct{}{}
	return true
}

func (l *Listener) untrack(conn net.Conn) {
	l.mu.Lock()
	delete(l.conns, conn)
	l.mu.Unlock()
	_ = conn.Close()
}
