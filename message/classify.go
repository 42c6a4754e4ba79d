package message

import (
	"encoding/json"
	"strings"
)

// DefaultListPrefixes are the keywords that may precede a bracketed list,
// as in "roll [ ... ]".
var DefaultListPrefixes = []string{"roll"}

// Classifier tags raw lines. The zero value uses DefaultListPrefixes.
// It holds no mutable state and is safe for concurrent use.
type Classifier struct {
	prefixes []string
}

// NewClassifier returns a classifier recognising the given list-prefix
// keywords (case-insensitive). With no prefixes it uses DefaultListPrefixes.
func NewClassifier(prefixes ...string) Classifier {
	var ps []string
	for _, p := range prefixes {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			ps = append(ps, p)
		}
	}
	return Classifier{prefixes: ps}
}

// Classify is Classifier{}.Classify.
func Classify(line string) Message {
	return Classifier{}.Classify(line)
}

// Classify returns the message for one raw line. ReceivedAt is left zero;
// the caller stamps it so that classification stays a pure function.
func (c Classifier) Classify(line string) Message {
	text := strings.TrimSpace(line)
	msg := Message{Kind: KindPlain, Payload: text, Raw: line}
	if c.looksStructured(text) {
		msg.Kind = KindStructured
	}

	if !strings.HasPrefix(text, "{") || !strings.HasSuffix(text, "}") {
		return msg
	}
	var env map[string]any
	if err := json.Unmarshal([]byte(text), &env); err != nil {
		return msg
	}
	if t, ok := env["type"].(string); ok {
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "structured", "llll":
			msg.Kind = KindStructured
			msg.Payload = stringify(env["data"])
			return msg
		case "plain", "info":
			msg.Kind = KindPlain
			msg.Payload = stringify(env["data"])
			return msg
		}
	}
	if v, ok := env["message"]; ok {
		msg.Kind = KindPlain
		msg.Payload = stringify(v)
	}
	return msg
}

func (c Classifier) looksStructured(text string) bool {
	if !strings.HasSuffix(text, "]") {
		return false
	}
	if strings.HasPrefix(text, "[") {
		return true
	}
	prefixes := c.prefixes
	if len(prefixes) == 0 {
		prefixes = DefaultListPrefixes
	}
	lower := strings.ToLower(text)
	for _, p := range prefixes {
		rest, ok := strings.CutPrefix(lower, p)
		if !ok || rest == "" {
			continue
		}
		// The keyword must be a whole token: "roll [" but not "rollback [".
		if rest[0] != ' ' && rest[0] != '\t' && rest[0] != '[' {
			continue
		}
		if strings.HasPrefix(strings.TrimLeft(rest, " \t"), "[") {
			return true
		}
	}
	return false
}

// stringify renders an envelope value as payload text. Strings pass through;
// null becomes empty; anything else is re-encoded as compact JSON.
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
