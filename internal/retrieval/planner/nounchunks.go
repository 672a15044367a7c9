package planner

import (
	"strings"
	"unicode"
)

// nounChunks pulls candidate entity phrases from a query: consecutive words
// of the same capitalization class, split at stopwords and punctuation. A
// cheap stand-in for a real noun-phrase chunker that works on short queries.
func nounChunks(query string) []string {
	words := strings.Fields(query)
	var out []string
	var cur []string
	curCap := false

	flush := func() {
		if len(cur) > 0 {
			out = append(out, strings.Join(cur, " "))
			cur = nil
		}
	}

	for _, w := range words {
		trimmed := strings.TrimFunc(w, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		punctuated := w != trimmed && endsWithPunct(w)
		if trimmed == "" || queryStopword(strings.ToLower(trimmed)) {
			flush()
			continue
		}
		capitalized := unicode.IsUpper([]rune(trimmed)[0])
		if len(cur) > 0 && capitalized != curCap {
			// A case-class change separates a proper noun from the
			// surrounding lowercase phrase.
			flush()
		}
		curCap = capitalized
		cur = append(cur, trimmed)
		if punctuated {
			flush()
		}
	}
	flush()

	filtered := out[:0]
	for _, c := range out {
		if !strings.Contains(c, " ") && len(c) <= 3 {
			continue
		}
		filtered = append(filtered, c)
	}
	return filtered
}

func endsWithPunct(w string) bool {
	r := []rune(w)
	last := r[len(r)-1]
	return !unicode.IsLetter(last) && !unicode.IsDigit(last)
}

func queryStopword(w string) bool {
	switch w {
	case "a", "an", "and", "are", "be", "between", "but", "by", "can", "cause",
		"caused", "causes", "compare", "comparison", "connect", "connects",
		"difference", "differ", "do", "does", "did", "for", "from", "happen",
		"happened", "how", "in", "is", "it", "link", "links", "located", "of",
		"on", "or", "relate", "related", "relates", "situated", "step", "steps",
		"than", "the", "their", "to", "versus", "vs", "what", "when", "where",
		"which", "who", "why", "will", "with", "was", "were":
		return true
	}
	return false
}
