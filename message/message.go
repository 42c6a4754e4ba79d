// Package message defines the unit stored in the inbound queue and the
// classifier that turns raw engine lines into it.
package message

import (
	"strings"
	"time"
)

// Kind tags an inbound message as a bracketed list payload or free text.
type Kind string

const (
	// KindAny is the empty filter: it matches every message.
	KindAny        Kind = ""
	KindStructured Kind = "structured"
	KindPlain      Kind = "plain"
)

// ParseKind maps a filter name to a Kind. The engine-side names "llll" and
// "info" are accepted as aliases. Unknown names report false.
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "any", "all":
		return KindAny, true
	case "structured", "llll":
		return KindStructured, true
	case "plain", "info":
		return KindPlain, true
	default:
		return KindAny, false
	}
}

// Matches reports whether a message of kind k passes filter.
func (k Kind) Matches(filter Kind) bool {
	return filter == KindAny || k == filter
}

// Message is a classified inbound line.
type Message struct {
	Kind Kind `json:"type"`
	// Payload is the envelope's inner value, or the trimmed line itself.
	Payload string `json:"data"`
	// Raw is the line as received, kept for diagnostics.
	Raw string `json:"raw"`
	// ReceivedAt is for observability only; queue order is authoritative.
	ReceivedAt time.Time `json:"received_at"`
}
