package tools

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/m4xw311/bachmcp/config"
	"github.com/m4xw311/bachmcp/errors"
	"github.com/m4xw311/bachmcp/message"
	"golang.org/x/sync/semaphore"
)

// Bridge is the slice of the bridge façade the tools drive. *bridge.Bridge
// satisfies it.
type Bridge interface {
	SendCommand(text string) bool
	SendAndWait(ctx context.Context, text string, timeout time.Duration, kind message.Kind) (message.Message, bool)
	WaitForIncoming(ctx context.Context, timeout time.Duration, kind message.Kind) (message.Message, bool)
	PopNext(kind message.Kind) (message.Message, bool)
	PeekLatest(kind message.Kind) (message.Message, bool)
	FlushBeforeQuery() int
	QueueSize() int
}

// engine wraps a Bridge with the two calling conventions every encoder uses:
// fire-and-forget sends and serialized queries.
type engine struct {
	bridge       Bridge
	queryTimeout time.Duration
	stepDelay    time.Duration
	log          *slog.Logger

	// queries admits one flush-send-wait sequence at a time; replies carry
	// no ids, so two overlapping queries could swap answers.
	queries *semaphore.Weighted
}

func newEngine(b Bridge, cfg *config.Config, log *slog.Logger) *engine {
	return &engine{
		bridge:       b,
		queryTimeout: cfg.QueryTimeout,
		stepDelay:    cfg.StepDelay,
		log:          log.With("component", "tools"),
		queries:      semaphore.NewWeighted(1),
	}
}

// send trims and writes one command. The returned text is what the agent
// sees on success.
func (e *engine) send(command string) (string, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return "", errors.Wrapf(errors.ErrEmptyCommand, "rejected empty process message")
	}
	if !e.bridge.SendCommand(command) {
		return "", errors.Wrapf(errors.ErrNotConnected, "failed to send %q", command)
	}
	return "Sent: " + command, nil
}

// query flushes stale input, sends command and waits for the next message of
// any kind. ok is false on timeout; the payload is then empty.
func (e *engine) query(ctx context.Context, command string, timeout time.Duration) (string, bool, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return "", false, errors.Wrapf(errors.ErrEmptyCommand, "rejected empty query")
	}
	if timeout <= 0 {
		return "", false, errors.New("timeout_seconds must be > 0")
	}
	if err := e.queries.Acquire(ctx, 1); err != nil {
		return "", false, errors.Wrapf(err, "waiting for the previous query")
	}
	defer e.queries.Release(1)

	if n := e.bridge.FlushBeforeQuery(); n > 0 {
		e.log.Debug("discarded stale messages before query", "count", n, "command", command)
	}
	msg, ok := e.bridge.SendAndWait(ctx, command, timeout, message.KindAny)
	if !ok {
		return "", false, nil
	}
	return msg.Payload, true, nil
}

// sleep waits d or until ctx is done.
func (e *engine) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
