package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/m4xw311/bachmcp/errors"
)

// ProcessMessageTool sends a raw command that has no dedicated tool.
type ProcessMessageTool struct {
	engine          *engine
	allowedCommands []string
	log             *slog.Logger
}

func (t *ProcessMessageTool) Name() string { return "send_process_message_to_max" }
func (t *ProcessMessageTool) Description() string {
	desc := "Escape hatch: send a raw command line to the patch when no dedicated tool exists. " +
		"Prefer the dedicated tools. Args: message (string)."
	if len(t.allowedCommands) == 0 {
		return desc
	}
	var b strings.Builder
	b.WriteString(desc)
	b.WriteString("\nAllowed command patterns:\n")
	for _, cmd := range t.allowedCommands {
		fmt.Fprintf(&b, "- %s\n", cmd)
	}
	return b.String()
}

func (t *ProcessMessageTool) Params() []Param {
	return []Param{{Name: "message", Type: String, Description: "The command line to send.", Required: true}}
}

func (t *ProcessMessageTool) Execute(ctx context.Context, raw map[string]any) (string, error) {
	msg, err := args(raw).str("message", "")
	if err != nil {
		return "", err
	}
	if msg == "" {
		return "", errors.Wrapf(errors.ErrEmptyCommand, "rejected empty process message")
	}
	if !isCommandAllowed(msg, t.allowedCommands, t.log) {
		return "", errors.New("command '%s' is not in the list of allowed commands", msg)
	}
	return t.engine.send(msg)
}
