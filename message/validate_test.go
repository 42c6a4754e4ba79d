package message

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/m4xw311/bachmcp/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateBrackets(t *testing.T) {
	require.NoError(t, ValidateBrackets("[ [ 0. [ 6000. 500. 100 0 ] 0 ] 0 ]"))
	require.NoError(t, ValidateBrackets("[slots [22 staccato] [20 p<]]"))
	require.NoError(t, ValidateBrackets(""))

	err := ValidateBrackets("[1 2]] 3")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnbalanced))
	assert.Contains(t, err.Error(), "position 5")

	err = ValidateBrackets("[[1 2]")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 unclosed")

	err = ValidateBrackets("[1 {2}]")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "illegal")
}

func TestValidateBracketsContextKeepsRunes(t *testing.T) {
	// Multi-byte runes straddle the ±20 byte window on both sides.
	s := strings.Repeat("é", 15) + "]" + strings.Repeat("ü", 15)
	err := ValidateBrackets(s)
	require.Error(t, err)
	assert.True(t, utf8.ValidString(err.Error()))
	assert.Contains(t, err.Error(), "éé]üü")

	for i := range len(s) {
		assert.True(t, utf8.ValidString(snippet(s, i)), "offset %d", i)
	}
}

func TestStripListPrefix(t *testing.T) {
	assert.Equal(t, "[1] [2]", StripListPrefix("  roll [1] [2] ", "roll"))
	assert.Equal(t, "[1]", StripListPrefix("ROLL [1]", "roll"))
	assert.Equal(t, "[1]", StripListPrefix("[1]", "roll"))
}
