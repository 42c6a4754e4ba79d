package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/m4xw311/bachmcp/errors"
)

// defaultScoreSteps resets the score to one treble voice on a white page,
// in this order.
var defaultScoreSteps = []struct{ key, command string }{
	{"clear", "clear"},
	{"numvoices", "numvoices 1"},
	{"clefs", "clefs G"},
	{"stafflines", "stafflines 5"},
	{"numparts", "numparts 1"},
	{"bgcolor", "bgcolor 1.0 1.0 1.0 1.0"},
	{"notecolor", "notecolor 0.0 0.0 0.0 1.0"},
	{"staffcolor", "staffcolor 0.0 0.0 0.0 1.0"},
	{"voicenames", "voicenames"},
	{"domain", "domain 10000.0"},
}

// NewDefaultScoreTool sends the reset sequence with a short pause between
// steps so the patch can apply each one. Every step is attempted even if an
// earlier one failed.
type NewDefaultScoreTool struct {
	engine *engine
}

func (t *NewDefaultScoreTool) Name() string { return "new_default_score" }
func (t *NewDefaultScoreTool) Description() string {
	return "Reset to a blank default score: one voice, treble clef, 5 staff lines, white background, " +
		"black notes and staff, no voice names, 10 s visible. Run before writing a new piece."
}
func (t *NewDefaultScoreTool) Params() []Param { return nil }

func (t *NewDefaultScoreTool) Execute(ctx context.Context, _ map[string]any) (string, error) {
	var (
		b      strings.Builder
		failed int
	)
	for i, step := range defaultScoreSteps {
		if i > 0 {
			if err := t.engine.sleep(ctx, t.engine.stepDelay); err != nil {
				return b.String(), errors.Wrapf(err, "default score interrupted before %s", step.key)
			}
		}
		if _, err := t.engine.send(step.command); err != nil {
			failed++
			fmt.Fprintf(&b, "%s: failed\n", step.key)
			continue
		}
		fmt.Fprintf(&b, "%s: ok\n", step.key)
	}
	if failed > 0 {
		return "", errors.Wrapf(errors.ErrNotConnected, "default score initialised with %d failed step(s):\n%s", failed, b.String())
	}
	b.WriteString("Default score initialised.")
	return b.String(), nil
}
