package tools

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/m4xw311/bachmcp/config"
	"github.com/m4xw311/bachmcp/errors"
	"github.com/m4xw311/bachmcp/message"
)

var kindParam = Param{
	Name:        "kind",
	Type:        String,
	Description: "Filter: structured (llll), plain (info), or empty for any.",
}

// inboundTool inspects the inbound queue without sending anything.
type inboundTool struct {
	name        string
	description string
	params      []Param
	run         func(ctx context.Context, a args) (string, error)
}

func (t *inboundTool) Name() string        { return t.name }
func (t *inboundTool) Description() string { return t.description }
func (t *inboundTool) Params() []Param     { return t.params }
func (t *inboundTool) Execute(ctx context.Context, raw map[string]any) (string, error) {
	return t.run(ctx, args(raw))
}

func inboundTools(b Bridge, cfg *config.Config) []Tool {
	return []Tool{
		&inboundTool{
			name:        "pop_incoming",
			description: "Remove and return the oldest queued message from the patch, optionally of one kind.",
			params:      []Param{kindParam},
			run: func(_ context.Context, a args) (string, error) {
				kind, err := kindArg(a)
				if err != nil {
					return "", err
				}
				msg, ok := b.PopNext(kind)
				return renderMessage(msg, ok)
			},
		},
		&inboundTool{
			name:        "peek_incoming",
			description: "Return the newest queued message without removing it, optionally of one kind.",
			params:      []Param{kindParam},
			run: func(_ context.Context, a args) (string, error) {
				kind, err := kindArg(a)
				if err != nil {
					return "", err
				}
				msg, ok := b.PeekLatest(kind)
				return renderMessage(msg, ok)
			},
		},
		&inboundTool{
			name:        "wait_for_incoming",
			description: "Wait for the next queued message without sending anything first.",
			params:      []Param{timeoutParam, kindParam},
			run: func(ctx context.Context, a args) (string, error) {
				kind, err := kindArg(a)
				if err != nil {
					return "", err
				}
				timeout, err := a.seconds("timeout_seconds", cfg.QueryTimeout)
				if err != nil {
					return "", err
				}
				msg, ok := b.WaitForIncoming(ctx, timeout, kind)
				return renderMessage(msg, ok)
			},
		},
		&inboundTool{
			name:        "flush_incoming",
			description: "Discard every queued message and report how many were dropped.",
			run: func(context.Context, args) (string, error) {
				return "Flushed " + strconv.Itoa(b.FlushBeforeQuery()) + " message(s).", nil
			},
		},
		&inboundTool{
			name:        "incoming_queue_size",
			description: "Return the number of queued messages.",
			run: func(context.Context, args) (string, error) {
				return strconv.Itoa(b.QueueSize()), nil
			},
		},
	}
}

func kindArg(a args) (message.Kind, error) {
	s, err := a.str("kind", "")
	if err != nil {
		return message.KindAny, err
	}
	kind, ok := message.ParseKind(s)
	if !ok {
		return message.KindAny, errors.New("unknown kind %q; use structured, plain or leave empty", s)
	}
	return kind, nil
}

func renderMessage(msg message.Message, ok bool) (string, error) {
	if !ok {
		return "No message.", nil
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return "", errors.Wrapf(err, "failed to encode message")
	}
	return string(data), nil
}
