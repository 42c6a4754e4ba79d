package tools

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/m4xw311/bachmcp/errors"
)

// args wraps the decoded JSON arguments of one call. Values arrive as
// float64, bool or string from JSON, but the CLI passes everything as
// strings, so each accessor accepts both.
type args map[string]any

// has reports whether name was given a non-blank value.
func (a args) has(name string) bool {
	v, ok := a[name]
	if !ok || v == nil {
		return false
	}
	if s, isStr := v.(string); isStr {
		return strings.TrimSpace(s) != ""
	}
	return true
}

// str returns the trimmed string argument, or def when absent.
func (a args) str(name, def string) (string, error) {
	v, ok := a[name]
	if !ok || v == nil {
		return def, nil
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), nil
	case float64:
		return formatFloat(t), nil
	case json.Number:
		return t.String(), nil
	case bool:
		return strconv.FormatBool(t), nil
	default:
		return "", errors.New("argument '%s' must be a string", name)
	}
}

// requiredStr is str with an empty result rejected.
func (a args) requiredStr(name string) (string, error) {
	s, err := a.str(name, "")
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", errors.New("%s cannot be empty", name)
	}
	return s, nil
}

func (a args) number(name string, def float64) (float64, error) {
	v, ok := a[name]
	if !ok || v == nil {
		return def, nil
	}
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return 0, errors.New("argument '%s' must be a number", name)
		}
		f = parsed
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return def, nil
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, errors.New("argument '%s' must be a number, got %q", name, t)
		}
		f = parsed
	default:
		return 0, errors.New("argument '%s' must be a number", name)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errors.New("argument '%s' must be finite", name)
	}
	return f, nil
}

func (a args) integer(name string, def int) (int, error) {
	f, err := a.number(name, float64(def))
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, errors.New("argument '%s' must be an integer, got %s", name, formatFloat(f))
	}
	return int(f), nil
}

// maxWait caps timeout arguments so the conversion to time.Duration cannot
// overflow.
const maxWait = 24 * time.Hour

// seconds reads a non-negative duration given in seconds, clamped to maxWait.
func (a args) seconds(name string, def time.Duration) (time.Duration, error) {
	secs, err := a.number(name, def.Seconds())
	if err != nil {
		return 0, err
	}
	if secs < 0 {
		return 0, errors.New("%s must not be negative", name)
	}
	if secs >= maxWait.Seconds() {
		return maxWait, nil
	}
	return time.Duration(secs * float64(time.Second)), nil
}

func (a args) boolean(name string, def bool) (bool, error) {
	v, ok := a[name]
	if !ok || v == nil {
		return def, nil
	}
	switch t := v.(type) {
	case bool:
		return t, nil
	case float64:
		return t != 0, nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return def, nil
		}
		b, err := strconv.ParseBool(s)
		if err != nil {
			return false, errors.New("argument '%s' must be a boolean, got %q", name, t)
		}
		return b, nil
	default:
		return false, errors.New("argument '%s' must be a boolean", name)
	}
}

// formatFloat renders f the way the engine's own examples do: shortest
// form, always with a decimal point ("10000.0", "0.5").
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
