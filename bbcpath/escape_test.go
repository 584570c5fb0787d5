package bbcpath

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscapeRoundTrip(t *testing.T) {
	for _, name := range []string{
		"HELLO",
		"hello world",
		"a.b.c",
		"weird*name#here",
		"slash/in/name",
		"",
		"CON",
		"con.txt",
		"PRN",
		"NORMAL",
	} {
		got := Unescape(Escape(name))
		assert.Equal(t, name, got, "round trip for %q", name)
	}
}

func TestEscapeLeavesAllowedBytesAlone(t *testing.T) {
	assert.Equal(t, "HELLO", Escape("HELLO"))
	assert.Equal(t, "a-b_c", Escape("a-b_c"))
}

func TestEscapeHexEscapesReservedAndOutOfRange(t *testing.T) {
	assert.Equal(t, "a#20b", Escape("a b"))
	assert.Equal(t, "a#2Eb", Escape("a.b"))
	assert.Equal(t, "a#2Fb", Escape("a/b"))
	assert.Equal(t, "a#00b", Escape("a\x00b"))
}

func TestEscapeReservedStem(t *testing.T) {
	got := Escape("CON")
	assert.NotEqual(t, "CON", got)
	assert.Equal(t, "CON", Unescape(got))

	// non-reserved stems pass straight through
	assert.Equal(t, "CONTACT", Escape("CONTACT"))
}

func TestMatchWildcard(t *testing.T) {
	for _, tc := range []struct {
		pattern, name string
		want          bool
	}{
		{"*", "ANYTHING", true},
		{"", "", true},
		{"", "X", false},
		{"A#C", "ABC", true},
		{"A#C", "ABBC", false},
		{"A*C", "ABBBBC", true},
		{"A*C", "AC", true},
		{"A*C", "AB", false},
		{"DOC?", "DOC1", false}, // '?' is not a BBC wildcard, only literal
		{"DOC#", "DOC1", true},
		{"doc*", "DOCUMENT", true},
	} {
		assert.Equal(t, tc.want, MatchWildcard(tc.pattern, tc.name), "pattern=%q name=%q", tc.pattern, tc.name)
	}
}

func TestIsWildcard(t *testing.T) {
	assert.True(t, IsWildcard("A*"))
	assert.True(t, IsWildcard("A#B"))
	assert.False(t, IsWildcard("PLAIN"))
}
