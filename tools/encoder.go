package tools

import (
	"context"
	"fmt"
	"time"
)

// commandTool is a fire-and-forget encoder: build assembles one command
// line from the arguments and the line is sent as is.
type commandTool struct {
	name        string
	description string
	params      []Param
	build       func(a args) (string, error)
	engine      *engine
}

func (t *commandTool) Name() string        { return t.name }
func (t *commandTool) Description() string { return t.description }
func (t *commandTool) Params() []Param     { return t.params }

func (t *commandTool) Execute(ctx context.Context, raw map[string]any) (string, error) {
	command, err := t.build(args(raw))
	if err != nil {
		return "", err
	}
	return t.engine.send(command)
}

var timeoutParam = Param{Name: "timeout_seconds", Type: Number, Description: "How long to wait for the reply."}

// queryTool sends a request and returns the engine's reply payload. All
// query tools share one lock, so only one request is ever outstanding.
type queryTool struct {
	name        string
	description string
	params      []Param
	build       func(a args) (string, error)
	// timeout overrides the configured query timeout when positive.
	timeout time.Duration
	engine  *engine
}

func (t *queryTool) Name() string        { return t.name }
func (t *queryTool) Description() string { return t.description }
func (t *queryTool) Params() []Param     { return append(append([]Param(nil), t.params...), timeoutParam) }

func (t *queryTool) Execute(ctx context.Context, raw map[string]any) (string, error) {
	a := args(raw)
	command, err := t.build(a)
	if err != nil {
		return "", err
	}
	def := t.engine.queryTimeout
	if t.timeout > 0 {
		def = t.timeout
	}
	timeout, err := a.seconds("timeout_seconds", def)
	if err != nil {
		return "", err
	}
	payload, ok, err := t.engine.query(ctx, command, timeout)
	if err != nil {
		return "", err
	}
	if !ok {
		return fmt.Sprintf("No reply to %q within %s.", command, timeout), nil
	}
	return payload, nil
}

// fixed returns a builder that ignores its arguments.
func fixed(command string) func(args) (string, error) {
	return func(args) (string, error) { return command, nil }
}
