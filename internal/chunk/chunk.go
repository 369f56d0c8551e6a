// Package chunk splits long answers into platform-sized messages.
package chunk

import "unicode/utf8"

// Split cuts text into consecutive pieces of at most n characters (runes).
// Cuts never fall inside a multi-byte character and the pieces concatenate
// back to text. An empty text yields no chunks; n <= 0 yields text whole.
func Split(text string, n int) []string {
	if text == "" {
		return nil
	}
	if n <= 0 {
		return []string{text}
	}

	chunks := make([]string, 0, utf8.RuneCountInString(text)/n+1)
	start, count := 0, 0
	for i := range text {
		if count == n {
			chunks = append(chunks, text[start:i])
			start, count = i, 0
		}
		count++
	}

	return append(chunks, text[start:])
}

// Label prepends prefix to the first chunk, or to every chunk when everyChunk is set
func Label(chunks []string, prefix string, everyChunk bool) []string {
	labeled := make([]string, len(chunks))
	for i, c := range chunks {
		if i == 0 || everyChunk {
			c = prefix + c
		}
		labeled[i] = c
	}
	return labeled
}
