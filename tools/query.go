package tools

import (
	"strings"
	"time"
)

func queryTools(e *engine) []Tool {
	labelled := func(name, desc string) Tool {
		return &queryTool{
			name:        name,
			description: desc,
			params:      []Param{{Name: "query_label", Type: String, Description: "Optional label echoed back as [label X]."}},
			build: func(a args) (string, error) {
				label, err := a.str("query_label", "")
				if err != nil || label == "" {
					return name, err
				}
				return name + " [label " + label + "]", nil
			},
			engine: e,
		}
	}

	return []Tool{
		&queryTool{
			name: "dump",
			description: "Ask the notation object to output its state and return the raw reply. " +
				"mode picks a part (e.g. body, keys, clefs, markers); selection dumps only the selection.",
			params: []Param{
				{Name: "selection", Type: Boolean, Description: "Dump only selected items."},
				{Name: "mode", Type: String, Description: "What to dump, e.g. \"body\"."},
				{Name: "dump_options", Type: String, Description: "Extra words appended verbatim."},
			},
			build:  buildDump,
			engine: e,
		},
		&queryTool{
			name:        "get_length",
			description: "Return the total score length in milliseconds.",
			build:       fixed("getlength"),
			timeout:     10 * time.Second,
			engine:      e,
		},
		&queryTool{
			name:        "get_marker",
			description: "Return marker information: all markers, or only the named ones.",
			params: []Param{
				{Name: "names", Type: String, Description: "Marker name(s) to query."},
				{Name: "name_first", Type: Boolean, Description: "Put the name before the position in the reply."},
			},
			build: func(a args) (string, error) {
				parts := []string{"getmarker"}
				first, err := a.boolean("name_first", false)
				if err != nil {
					return "", err
				}
				if first {
					parts = append(parts, "@namefirst 1")
				}
				names, err := a.str("names", "")
				if err != nil {
					return "", err
				}
				if names != "" {
					parts = append(parts, names)
				}
				return strings.Join(parts, " "), nil
			},
			timeout: 10 * time.Second,
			engine:  e,
		},
		&queryTool{
			name:        "getcurrentchord",
			description: "Return the chord under the play cursor.",
			build:       fixed("getcurrentchord"),
			engine:      e,
		},
		labelled("getnumchords", "Return the number of chords per voice."),
		labelled("getnumnotes", "Return the number of notes per chord per voice."),
		labelled("getnumvoices", "Return the number of voices."),
		&queryTool{
			name:        "subroll",
			description: "Return a portion of the score (voices and time span) as a bracketed list.",
			params: []Param{
				{Name: "voices", Type: String, Description: "Voice list, \"[]\" for all (default)."},
				{Name: "time_lapse", Type: String, Description: "[start end] in ms, \"[]\" for all (default)."},
				{Name: "selective_options", Type: String, Description: "Extra selective options appended verbatim."},
				{Name: "onset_only", Type: Boolean, Description: "Only take chords whose onset lies in the span."},
			},
			build:  buildSubroll,
			engine: e,
		},
	}
}

func buildDump(a args) (string, error) {
	parts := []string{"dump"}
	sel, err := a.boolean("selection", false)
	if err != nil {
		return "", err
	}
	if sel {
		parts = append(parts, "selection")
	}
	for _, name := range []string{"mode", "dump_options"} {
		v, err := a.str(name, "")
		if err != nil {
			return "", err
		}
		if v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " "), nil
}

func buildSubroll(a args) (string, error) {
	parts := []string{"subroll"}
	onset, err := a.boolean("onset_only", false)
	if err != nil {
		return "", err
	}
	if onset {
		parts = append(parts, "onset")
	}
	voices, err := a.str("voices", "[]")
	if err != nil {
		return "", err
	}
	span, err := a.str("time_lapse", "[]")
	if err != nil {
		return "", err
	}
	if voices == "" {
		voices = "[]"
	}
	if span == "" {
		span = "[]"
	}
	parts = append(parts, voices, span)
	opts, err := a.str("selective_options", "")
	if err != nil {
		return "", err
	}
	if opts != "" {
		parts = append(parts, opts)
	}
	return strings.Join(parts, " "), nil
}
