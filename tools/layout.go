package tools

import (
	"strconv"
	"strings"

	"github.com/m4xw311/bachmcp/errors"
)

func layoutTools(e *engine) []Tool {
	// withValue sends "<command> <value>" and rejects an empty value. A
	// non-empty def makes the argument optional.
	withValue := func(command, param, def, desc, paramDesc string) Tool {
		return &commandTool{
			name:        command,
			description: desc,
			params:      []Param{{Name: param, Type: String, Description: paramDesc, Required: def == ""}},
			build: func(a args) (string, error) {
				v, err := a.str(param, def)
				if err != nil {
					return "", err
				}
				if v == "" {
					return "", errors.New("%s cannot be empty", param)
				}
				return command + " " + v, nil
			},
			engine: e,
		}
	}
	bare := func(command, desc string) Tool {
		return &commandTool{name: command, description: desc, build: fixed(command), engine: e}
	}

	return []Tool{
		withValue("clefs", "clefs_list", "G",
			"Set the clef of each voice, one symbol per voice (G, F, FG, FGG, C, Alto, Perc, None...).",
			"Space-separated clef symbols, default \"G\"."),
		&commandTool{
			name:        "numvoices",
			description: "Set the number of voices. Voices are musical lines; see numparts for staff grouping.",
			params:      []Param{{Name: "count", Type: Integer, Description: "Number of voices, > 0.", Required: true}},
			build:       positiveInt("numvoices", "count"),
			engine:      e,
		},
		withValue("numparts", "parts", "1",
			"Group voices onto shared staves: one integer per staff giving how many voices it holds.",
			"Space-separated part sizes, default \"1\"."),
		withValue("voicenames", "value", "",
			"Set the voice names, one per voice, e.g. \"Flute [Violin I] Cello\".", "The names."),
		withValue("stafflines", "value", "",
			"Set the number of staff lines per voice, or explicit line positions as lists.", "Lines per voice."),
		&commandTool{
			name:        "addmarker",
			description: "Add a marker at a position in ms (or \"cursor\"/\"end\") with a name and optional role and content.",
			params: []Param{
				{Name: "position", Type: String, Description: "Position in ms, cursor or end.", Required: true},
				{Name: "name_or_names", Type: String, Description: "Marker name or [names].", Required: true},
				{Name: "role", Type: String, Description: "Optional role, e.g. tempo or barline."},
				{Name: "content", Type: String, Description: "Role content; ignored without a role."},
			},
			build:  buildAddMarker,
			engine: e,
		},
		withValue("deletemarker", "marker_names", "", "Delete markers by name.", "Marker name(s)."),
		&commandTool{
			name:        "deletevoice",
			description: "Delete a voice by number.",
			params:      []Param{{Name: "voice_number", Type: Integer, Description: "Voice to delete, > 0.", Required: true}},
			build:       positiveInt("deletevoice", "voice_number"),
			engine:      e,
		},
		&commandTool{
			name:        "insertvoice",
			description: "Insert a new voice at a position, optionally copying a reference voice or filling it with content.",
			params: []Param{
				{Name: "voice_number", Type: Integer, Description: "Where to insert, > 0.", Required: true},
				{Name: "voice_or_ref", Type: String, Description: "Reference voice number or voice content."},
			},
			build: func(a args) (string, error) {
				cmd, err := positiveInt("insertvoice", "voice_number")(a)
				if err != nil {
					return "", err
				}
				ref, err := a.str("voice_or_ref", "")
				if err != nil || ref == "" {
					return cmd, err
				}
				return cmd + " " + ref, nil
			},
			engine: e,
		},
		&commandTool{
			name:        "explodechords",
			description: "Split overlapping chords into separate notes, for the whole score or the selection.",
			params:      []Param{{Name: "selection", Type: Boolean, Description: "Only the selection."}},
			build: func(a args) (string, error) {
				sel, err := a.boolean("selection", false)
				if err != nil {
					return "", err
				}
				if sel {
					return "explodechords selection", nil
				}
				return "explodechords", nil
			},
			engine: e,
		},
		&commandTool{
			name:        "legato",
			description: "Make the selection (or everything) legato. trim only shortens, extend only lengthens.",
			params:      []Param{{Name: "trim_or_extend", Type: String, Description: "\"\", trim or extend."}},
			build: func(a args) (string, error) {
				mode, err := trimOrExtend(a)
				if err != nil || mode == "" {
					return "legato", err
				}
				return "legato " + mode, nil
			},
			engine: e,
		},
		&commandTool{
			name:        "glissando",
			description: "Turn the selection into glissandi ending on the next note.",
			params: []Param{
				{Name: "trim_or_extend", Type: String, Description: "\"\", trim or extend."},
				{Name: "slope", Type: Number, Description: "Curve slope in [-1, 1], 0 is linear."},
			},
			build:  buildGlissando,
			engine: e,
		},
		&commandTool{
			name:        "play",
			description: "Start playback, optionally offline, from start_ms, up to end_ms.",
			params: []Param{
				{Name: "scheduling_mode", Type: String, Description: "Optional mode, e.g. offline."},
				{Name: "start_ms", Type: Number, Description: "Start position."},
				{Name: "end_ms", Type: Number, Description: "End position."},
			},
			build:  buildPlay,
			engine: e,
		},
		bare("stop", "Stop playback."),
		bare("clear", "Delete all notes and markers from the score."),
		bare("clearselection", "Deselect everything."),
		withValue("sel", "arguments", "",
			"Select items: a time/pitch box (\"100 1000 6000 7200\"), all, or items by category "+
				"(notes, chords, markers, breakpoints) and optional conditions.",
			"Selection arguments."),
		&commandTool{
			name:        "domain",
			description: "Set the visible time span: a duration from the start, or start and end, plus optional padding.",
			params: []Param{
				{Name: "start_or_duration_ms", Type: Number, Description: "Duration, or start when end_ms is set.", Required: true},
				{Name: "end_ms", Type: Number, Description: "End of the visible span."},
				{Name: "pad_pixels", Type: Number, Description: "Padding in pixels."},
			},
			build:  buildDomain,
			engine: e,
		},
		&commandTool{
			name: "set_appearance",
			description: "Set a display attribute: sends \"<attribute> <value>\". Colors are \"r g b a\" in 0-1, toggles are 0/1. " +
				"Examples: bgcolor, notecolor, staffcolor, ruler, showdurations, showvelocity, zoom.",
			params: []Param{
				{Name: "attribute", Type: String, Description: "Attribute name, a single word.", Required: true},
				{Name: "value", Type: String, Description: "Attribute value.", Required: true},
			},
			build: func(a args) (string, error) {
				attr, err := a.requiredStr("attribute")
				if err != nil {
					return "", err
				}
				if strings.ContainsAny(attr, " \t[]") {
					return "", errors.New("attribute must be a single word, got %q", attr)
				}
				value, err := a.requiredStr("value")
				if err != nil {
					return "", err
				}
				return attr + " " + value, nil
			},
			engine: e,
		},
	}
}

func positiveInt(command, param string) func(args) (string, error) {
	return func(a args) (string, error) {
		if !a.has(param) {
			return "", errors.New("%s is required", param)
		}
		n, err := a.integer(param, 0)
		if err != nil {
			return "", err
		}
		if n <= 0 {
			return "", errors.New("%s must be > 0", param)
		}
		return command + " " + strconv.Itoa(n), nil
	}
}

func trimOrExtend(a args) (string, error) {
	mode, err := a.str("trim_or_extend", "")
	if err != nil {
		return "", err
	}
	switch mode {
	case "", "trim", "extend":
		return mode, nil
	default:
		return "", errors.New("trim_or_extend must be \"\", \"trim\" or \"extend\", got %q", mode)
	}
}

func buildAddMarker(a args) (string, error) {
	pos, err := a.requiredStr("position")
	if err != nil {
		return "", err
	}
	names, err := a.requiredStr("name_or_names")
	if err != nil {
		return "", err
	}
	cmd := "addmarker " + pos + " " + names
	role, err := a.str("role", "")
	if err != nil || role == "" {
		return cmd, err
	}
	cmd += " " + role
	content, err := a.str("content", "")
	if err != nil || content == "" {
		return cmd, err
	}
	return cmd + " " + content, nil
}

func buildGlissando(a args) (string, error) {
	parts := []string{"glissando"}
	mode, err := trimOrExtend(a)
	if err != nil {
		return "", err
	}
	if mode != "" {
		parts = append(parts, mode)
	}
	slope, err := a.number("slope", 0)
	if err != nil {
		return "", err
	}
	if slope < -1 || slope > 1 {
		return "", errors.New("slope must be between -1 and 1")
	}
	return strings.Join(append(parts, formatFloat(slope)), " "), nil
}

func buildPlay(a args) (string, error) {
	parts := []string{"play"}
	mode, err := a.str("scheduling_mode", "")
	if err != nil {
		return "", err
	}
	if mode != "" {
		parts = append(parts, mode)
	}
	for _, name := range []string{"start_ms", "end_ms"} {
		if !a.has(name) {
			continue
		}
		v, err := a.number(name, 0)
		if err != nil {
			return "", err
		}
		parts = append(parts, formatFloat(v))
	}
	return strings.Join(parts, " "), nil
}

func buildDomain(a args) (string, error) {
	if !a.has("start_or_duration_ms") {
		return "", errors.New("start_or_duration_ms is required")
	}
	parts := []string{"domain"}
	for _, name := range []string{"start_or_duration_ms", "end_ms", "pad_pixels"} {
		if !a.has(name) {
			continue
		}
		v, err := a.number(name, 0)
		if err != nil {
			return "", err
		}
		parts = append(parts, formatFloat(v))
	}
	return strings.Join(parts, " "), nil
}
