package message

import (
	"strings"
	"unicode/utf8"

	"github.com/m4xw311/bachmcp/errors"
)

// ValidateBrackets checks that s is a structurally sound bracketed list:
// square brackets balance, depth never goes negative and no curly braces
// appear. It says nothing about whether the content makes sense to the engine.
func ValidateBrackets(s string) error {
	depth := 0
	for i, ch := range s {
		switch ch {
		case '[':
			depth++
		case ']':
			depth--
			if depth < 0 {
				return errors.Wrapf(errors.ErrUnbalanced,
					"unexpected closing bracket ']' at position %d (depth went negative). Context: '...%s...'",
					i, snippet(s, i))
			}
		}
	}
	if depth != 0 {
		return errors.Wrapf(errors.ErrUnbalanced,
			"%d unclosed bracket(s) '[' remain at end of string; every '[' must have a matching ']'", depth)
	}
	if strings.ContainsAny(s, "{}") {
		return errors.Wrapf(errors.ErrUnbalanced,
			"illegal character(s) '{' or '}' found; only square brackets [ ] group lists")
	}
	return nil
}

// StripListPrefix removes a leading keyword such as "roll" so the remaining
// body can be bracket-checked.
func StripListPrefix(s, keyword string) string {
	trimmed := strings.TrimSpace(s)
	if len(trimmed) >= len(keyword) && strings.EqualFold(trimmed[:len(keyword)], keyword) {
		return strings.TrimSpace(trimmed[len(keyword):])
	}
	return trimmed
}

// snippet returns about 20 bytes either side of byte offset i, widened or
// narrowed to rune boundaries.
func snippet(s string, i int) string {
	lo, hi := max(0, i-20), min(len(s), i+20)
	for lo > 0 && !utf8.RuneStart(s[lo]) {
		lo--
	}
	for hi < len(s) && !utf8.RuneStart(s[hi]) {
		hi++
	}
	return strings.ReplaceAll(s[lo:hi], "\n", " ")
}
