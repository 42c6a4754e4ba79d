package tools

import (
	"fmt"
	"strings"

	"github.com/m4xw311/bachmcp/errors"
	"github.com/m4xw311/bachmcp/message"
)

func scoreTools(e *engine) []Tool {
	return []Tool{
		&commandTool{
			name: "send_score_to_max",
			description: "Send a bracketed score list to the notation object. Primary tool for writing notes, chords " +
				"or several voices. Starts with \"roll\" followed by one list per voice, e.g. " +
				"\"roll [ [ 0. [ 6000. 500. 100 0 ] 0 ] 0 ]\". Brackets are checked before sending.",
			params: []Param{{Name: "score_llll", Type: String, Description: "The score, e.g. \"roll [ ... ]\".", Required: true}},
			build:  buildScore,
			engine: e,
		},
		&commandTool{
			name: "add_single_note",
			description: "Send one note as a complete single-voice score. Convenience for quick tests; " +
				"use send_score_to_max for real content.",
			params: []Param{
				{Name: "onset_ms", Type: Number, Description: "Note start in milliseconds (default 0)."},
				{Name: "pitch_cents", Type: Number, Description: "Pitch in midicents, middle C = 6000 (default 6000)."},
				{Name: "duration_ms", Type: Number, Description: "Duration in milliseconds, > 0 (default 1000)."},
				{Name: "velocity", Type: Integer, Description: "MIDI velocity 0-127 (default 100)."},
				{Name: "voice", Type: Integer, Description: "Target voice, 1-based (default 1)."},
				{Name: "slots", Type: String, Description: "Slot list, e.g. \"[slots [20 ff]]\"."},
				{Name: "breakpoints", Type: String, Description: "Breakpoint list, e.g. \"[breakpoints [0 0 0] [1 200 0]]\"."},
				{Name: "name", Type: String, Description: "Note name(s)."},
				{Name: "note_flag", Type: Integer, Description: "0 normal, 1 locked, 2 muted, 4 solo (summable)."},
			},
			build:  buildSingleNote,
			engine: e,
		},
		&commandTool{
			name: "send_bell_to_eval",
			description: "Send a bell-language program to the evaluator in the patch. Only when bell code " +
				"was explicitly asked for.",
			params: []Param{{Name: "bell_code", Type: String, Description: "The program text.", Required: true}},
			build: func(a args) (string, error) {
				code, err := a.str("bell_code", "")
				if err != nil {
					return "", err
				}
				if code == "" {
					return "", errors.Wrapf(errors.ErrEmptyCommand, "rejected empty bell code")
				}
				return "bell " + code, nil
			},
			engine: e,
		},
	}
}

func buildScore(a args) (string, error) {
	score, err := a.str("score_llll", "")
	if err != nil {
		return "", err
	}
	if score == "" {
		return "", errors.Wrapf(errors.ErrEmptyCommand, "rejected empty score")
	}
	if err := message.ValidateBrackets(message.StripListPrefix(score, "roll")); err != nil {
		return "", errors.Wrapf(err, "rejected score")
	}
	return score, nil
}

func buildSingleNote(a args) (string, error) {
	onset, err := a.number("onset_ms", 0)
	if err != nil {
		return "", err
	}
	pitch, err := a.number("pitch_cents", 6000)
	if err != nil {
		return "", err
	}
	duration, err := a.number("duration_ms", 1000)
	if err != nil {
		return "", err
	}
	velocity, err := a.integer("velocity", 100)
	if err != nil {
		return "", err
	}
	voice, err := a.integer("voice", 1)
	if err != nil {
		return "", err
	}
	flag, err := a.integer("note_flag", 0)
	if err != nil {
		return "", err
	}
	if duration <= 0 {
		return "", errors.New("duration_ms must be > 0")
	}
	if velocity < 0 || velocity > 127 {
		return "", errors.New("velocity must be between 0 and 127")
	}
	if voice <= 0 {
		return "", errors.New("voice must be > 0")
	}

	var specs []string
	for _, field := range []string{"breakpoints", "slots"} {
		v, err := a.str(field, "")
		if err != nil {
			return "", err
		}
		if v == "" {
			continue
		}
		if err := message.ValidateBrackets(v); err != nil {
			return "", errors.Wrapf(err, "invalid %s", field)
		}
		specs = append(specs, v)
	}
	name, err := a.str("name", "")
	if err != nil {
		return "", err
	}
	if name != "" {
		specs = append(specs, "[name "+name+"]")
	}
	extra := ""
	if len(specs) > 0 {
		extra = " " + strings.Join(specs, " ")
	}

	note := fmt.Sprintf("[ %.3f %.3f %d%s %d ]", pitch, duration, velocity, extra, flag)
	chord := fmt.Sprintf("[ %.3f %s 0 ]", onset, note)
	voices := make([]string, 0, voice)
	for range voice - 1 {
		voices = append(voices, "[ 0 ]")
	}
	voices = append(voices, "[ "+chord+" 0 ]")
	return "roll " + strings.Join(voices, " "), nil
}
