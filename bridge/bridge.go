// Package bridge connects an agent to the engine over two TCP channels and
// turns the engine's uncorrelated replies into something a synchronous
// caller can wait on.
//
// # Correlation contract
//
// The wire protocol carries no request identifiers. The only link between a
// query and its reply is temporal adjacency: the next message to arrive after
// a send is taken to be the answer. That holds only while at most one query
// is in flight per bridge. The bridge does not enforce this. Callers that
// share a bridge must
//
//   - serialize their queries (one SendAndWait at a time), and
//   - call FlushBeforeQuery immediately before each query, so a late reply to
//     an abandoned query is not mistaken for the new one.
//
// Flushing narrows the race but cannot close it: a reply still in flight
// when the flush runs will be taken as the answer to the next query.
package bridge

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/m4xw311/bachmcp/config"
	"github.com/m4xw311/bachmcp/logging"
	"github.com/m4xw311/bachmcp/message"
	"github.com/m4xw311/bachmcp/metrics"
	"github.com/m4xw311/bachmcp/queue"
	"github.com/m4xw311/bachmcp/transport"
)

type Option func(*Bridge)

func WithLogger(l *slog.Logger) Option {
	return func(b *Bridge) {
		if l != nil {
			b.log = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Bridge) { b.metrics = m }
}

// WithConnOptions passes extra options to the outbound sender, e.g. a test
// dialer.
func WithConnOptions(opts ...transport.ConnOption) Option {
	return func(b *Bridge) { b.connOpts = append(b.connOpts, opts...) }
}

// Bridge composes the outbound sender, the inbound listener, the classifier
// and the inbound queue. Each instance owns its state, so several bridges can
// run side by side on different ports.
type Bridge struct {
	id           string
	cfg          config.Config
	log          *slog.Logger
	metrics      *metrics.Metrics
	connOpts     []transport.ConnOption
	classifier   message.Classifier
	pollInterval time.Duration

	conn     *transport.Conn
	listener *transport.Listener
	queue    *queue.Queue

	mu      sync.Mutex
	running bool
}

// New builds a bridge from cfg. Nothing touches the network until Start
// (inbound) or the first send (outbound).
func New(cfg *config.Config, opts ...Option) *Bridge {
	b := &Bridge{
		id:           uuid.NewString(),
		cfg:          *cfg,
		log:          logging.Discard(),
		classifier:   message.NewClassifier(cfg.ListPrefixes...),
		pollInterval: cfg.PollInterval,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.pollInterval <= 0 {
		b.pollInterval = 250 * time.Millisecond
	}
	b.log = b.log.With("bridge_id", b.id)

	b.queue = queue.New(cfg.QueueCapacity, queue.WithEvictFunc(func(m message.Message) {
		b.metrics.Evicted()
		b.log.Warn("inbound queue full, dropped oldest message", "type", m.Kind, "capacity", cfg.QueueCapacity)
	}))
	connOpts := append([]transport.ConnOption{
		transport.WithDialTimeout(cfg.DialTimeout),
		transport.WithWriteTimeout(cfg.WriteTimeout),
		transport.WithConnLogger(b.log.With("component", "sender")),
		transport.WithConnMetrics(b.metrics),
	}, b.connOpts...)
	b.conn = transport.NewConn(cfg.Outgoing.Addr(), connOpts...)
	b.listener = transport.NewListener(cfg.Incoming.Addr(),
		transport.WithMaxLineBytes(cfg.MaxLineBytes),
		transport.WithListenerLogger(b.log.With("component", "listener")),
		transport.WithListenerMetrics(b.metrics),
	)
	b.listener.SetHandler(b.handleIncoming)
	return b
}

// ID identifies this instance in logs.
func (b *Bridge) ID() string { return b.id }

// Start binds the inbound listener. Calling it on a running bridge is a
// no-op.
func (b *Bridge) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return nil
	}
	if err := b.listener.Start(); err != nil {
		return err
	}
	b.running = true
	b.log.Info("bridge ready",
		"incoming", b.listener.Addr().String(),
		"outgoing", b.conn.Addr(),
		"queue_capacity", b.queue.Capacity())
	return nil
}

// Stop closes both channels. Queued messages are kept. Safe to call more
// than once.
func (b *Bridge) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.running {
		return b.conn.Close()
	}
	b.running = false
	connErr := b.conn.Close()
	lnErr := b.listener.Stop()
	b.log.Info("bridge stopped")
	if lnErr != nil {
		return lnErr
	}
	return connErr
}

// Run starts the bridge and blocks until ctx is done, then stops it.
func (b *Bridge) Run(ctx context.Context) error {
	if err := b.Start(); err != nil {
		return err
	}
	defer b.Stop()

	ticker := time.NewTicker(b.idleInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			b.metrics.Depth(b.queue.Size())
		}
	}
}

// IncomingAddr returns the bound inbound address, or "" before Start.
func (b *Bridge) IncomingAddr() string {
	if a := b.listener.Addr(); a != nil {
		return a.String()
	}
	return ""
}

// Connected reports whether the outbound channel is currently open.
func (b *Bridge) Connected() bool { return b.conn.Connected() }

// SendCommand writes one command line to the engine and expects no reply.
// It returns false if the engine is unreachable or the write fails.
func (b *Bridge) SendCommand(text string) bool {
	ok := b.conn.Send(text)
	if ok {
		b.log.Debug("sent command", "command", text)
	} else {
		b.log.Warn("failed to send command", "addr", b.conn.Addr())
	}
	return ok
}

// SendAndWait sends text and waits up to timeout for the next queued message
// matching kind (message.KindAny for any). If the send fails it returns
// immediately without waiting. A timeout or a cancelled ctx yields false; a
// late reply then stays queued for the next consumer.
//
// See the package documentation for the single-query-in-flight contract.
func (b *Bridge) SendAndWait(ctx context.Context, text string, timeout time.Duration, kind message.Kind) (message.Message, bool) {
	if !b.SendCommand(text) {
		return message.Message{}, false
	}
	return b.WaitForIncoming(ctx, timeout, kind)
}

// WaitForIncoming is the consuming half of SendAndWait. It polls the queue,
// and between polls blocks until the next push or one poll interval,
// whichever comes first, so the deadline is checked with bounded latency.
func (b *Bridge) WaitForIncoming(ctx context.Context, timeout time.Duration, kind message.Kind) (message.Message, bool) {
	start := time.Now()
	deadline := start.Add(max(timeout, 0))
	for {
		msg, ok, pushed := b.queue.PopOrNotify(kind)
		if ok {
			b.metrics.Waited(time.Since(start).Seconds(), false)
			b.metrics.Depth(b.queue.Size())
			return msg, true
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			b.metrics.Waited(time.Since(start).Seconds(), true)
			b.log.Debug("wait timed out", "timeout", timeout, "type", kind)
			return message.Message{}, false
		}
		wake := pushed
		if kind == message.KindAny {
			// Anything queued matches, so the availability signal is the
			// wake-up; it stays set while other consumers leave messages.
			wake = b.queue.Available()
		}
		timer := time.NewTimer(min(remaining, b.pollInterval))
		select {
		case <-wake:
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			b.metrics.Waited(time.Since(start).Seconds(), true)
			return message.Message{}, false
		}
		timer.Stop()
	}
}

// PopNext removes and returns the oldest queued message matching kind
// without blocking.
func (b *Bridge) PopNext(kind message.Kind) (message.Message, bool) {
	msg, ok := b.queue.Pop(kind)
	if ok {
		b.metrics.Depth(b.queue.Size())
	}
	return msg, ok
}

// PeekLatest returns the newest queued message matching kind without
// consuming it.
func (b *Bridge) PeekLatest(kind message.Kind) (message.Message, bool) {
	return b.queue.PeekLatest(kind)
}

// FlushBeforeQuery discards everything queued and returns how many messages
// were dropped. Call it right before SendAndWait.
func (b *Bridge) FlushBeforeQuery() int {
	n := b.queue.Flush()
	b.metrics.Flushed(n, 0)
	if n > 0 {
		b.log.Debug("flushed stale inbound messages", "count", n)
	}
	return n
}

// QueueSize returns the number of queued inbound messages.
func (b *Bridge) QueueSize() int { return b.queue.Size() }

func (b *Bridge) handleIncoming(line string) {
	msg := b.classifier.Classify(line)
	msg.ReceivedAt = time.Now()
	b.queue.Push(msg)
	size := b.queue.Size()
	b.metrics.Received(string(msg.Kind), size)
	b.log.Debug("queued incoming message", "type", msg.Kind, "queue_size", size)
}

func (b *Bridge) idleInterval() time.Duration {
	if b.cfg.IdleInterval > 0 {
		return b.cfg.IdleInterval
	}
	return 200 * time.Millisecond
}
