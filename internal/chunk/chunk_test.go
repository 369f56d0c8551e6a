package chunk

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertChunks(t *testing.T, text string, n int, chunks []string) {
	t.Helper()

	assert.Equal(t, text, strings.Join(chunks, ""))
	for _, c := range chunks {
		assert.True(t, utf8.ValidString(c), "chunk %q is not valid UTF-8", c)
		assert.LessOrEqual(t, utf8.RuneCountInString(c), n)
		assert.NotEmpty(t, c)
	}

	runes := utf8.RuneCountInString(text)
	assert.Equal(t, (runes+n-1)/n, len(chunks))
}

func TestSplitEmpty(t *testing.T) {
	assert.Empty(t, Split("", 1800))
	assert.Nil(t, Split("", 5))
}

func TestSplitExactlyN(t *testing.T) {
	text := strings.Repeat("a", 1800)
	chunks := Split(text, 1800)
	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0])
}

func TestSplitOneOverN(t *testing.T) {
	text := strings.Repeat("a", 1801)
	chunks := Split(text, 1800)
	require.Len(t, chunks, 2)
	assert.Equal(t, "a", chunks[1])
}

func TestSplitProperties(t *testing.T) {
	testCases := []struct {
		name string
		text string
		n    int
	}{
		{name: "ascii", text: "the quick brown fox jumps over the lazy dog", n: 7},
		{name: "n of one", text: "héllo", n: 1},
		{name: "two byte runes", text: strings.Repeat("é", 25), n: 4},
		{name: "three byte runes", text: strings.Repeat("日本語", 11), n: 5},
		{name: "four byte runes", text: strings.Repeat("😀a", 13), n: 3},
		{name: "longer than text", text: "short", n: 1800},
		{name: "mixed", text: "Answer: 你好, world! ✓ → ñ " + strings.Repeat("ü", 40), n: 9},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assertChunks(t, tc.text, tc.n, Split(tc.text, tc.n))
		})
	}
}

func TestSplitMultiByteAtBoundary(t *testing.T) {
	// Rune number n (0-based) is multi-byte, so a byte-based cut at n would split it.
	n := 10
	text := strings.Repeat("a", n-1) + "€" + "€" + strings.Repeat("b", n)

	chunks := Split(text, n)
	require.Len(t, chunks, 3)
	assert.Equal(t, strings.Repeat("a", n-1)+"€", chunks[0])
	assert.Equal(t, "€"+strings.Repeat("b", n-1), chunks[1])
	assert.Equal(t, "b", chunks[2])
	assertChunks(t, text, n, chunks)
}

func TestSplitNonPositiveSize(t *testing.T) {
	assert.Equal(t, []string{"abc"}, Split("abc", 0))
	assert.Equal(t, []string{"abc"}, Split("abc", -3))
}

func TestLabel(t *testing.T) {
	chunks := []string{"one", "two", "three"}

	assert.Equal(t, []string{"Answer: one", "two", "three"}, Label(chunks, "Answer: ", false))
	assert.Equal(t, []string{"Answer: one", "Answer: two", "Answer: three"}, Label(chunks, "Answer: ", true))
	assert.Empty(t, Label(nil, "Answer: ", false))
	assert.Equal(t, []string{"one", "two", "three"}, chunks)
}
