package chunker

import (
	"strings"
	"unicode"
)

// splitSentences breaks text on sentence terminators, keeping the terminator
// with the sentence. Abbreviation handling is intentionally minimal; the
// downstream budget logic tolerates occasional over-splits.
func splitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var out []string
	var b strings.Builder
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			// Terminator only ends a sentence when, after any spaces, the next
			// rune is uppercase or a newline, or the text ends.
			j := i + 1
			for j < len(runes) && runes[j] == ' ' {
				j++
			}
			if j >= len(runes) || unicode.IsUpper(runes[j]) || runes[j] == '\n' {
				s := strings.TrimSpace(b.String())
				if s != "" {
					out = append(out, s)
				}
				b.Reset()
			}
		}
		if r == '\n' {
			s := strings.TrimSpace(b.String())
			if s != "" {
				out = append(out, s)
			}
			b.Reset()
		}
	}
	if s := strings.TrimSpace(b.String()); s != "" {
		out = append(out, s)
	}
	return out
}
