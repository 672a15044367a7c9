package chunker

import (
	"regexp"
	"strings"
)

// section is a contiguous run of text under one header path.
type section struct {
	path      []string
	sentences []string
}

var (
	mdHeaderRe  = regexp.MustCompile(`^(#{1,6})\s+(.+?)\s*#*\s*$`)
	numHeaderRe = regexp.MustCompile(`^(\d+(?:\.\d+)*)[.)]?\s+(\S.{0,120})$`)
)

// splitSections walks the document line by line, tracking the header
// hierarchy. Text before any header lands in an unlabelled root section.
func splitSections(text string) []section {
	lines := strings.Split(text, "\n")

	var out []section
	cur := section{}
	var pathStack []string

	flush := func() {
		if len(cur.sentences) > 0 {
			out = append(out, cur)
		}
		cur = section{path: append([]string(nil), pathStack...)}
	}

	var buf strings.Builder
	flushParagraph := func() {
		if buf.Len() == 0 {
			return
		}
		cur.sentences = append(cur.sentences, splitSentences(buf.String())...)
		buf.Reset()
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		if m := mdHeaderRe.FindStringSubmatch(trimmed); m != nil {
			flushParagraph()
			flush()
			level := len(m[1])
			if level <= len(pathStack) {
				pathStack = pathStack[:level-1]
			}
			pathStack = append(pathStack, strings.TrimSpace(m[2]))
			cur.path = append([]string(nil), pathStack...)
			continue
		}
		if m := numHeaderRe.FindStringSubmatch(trimmed); m != nil && looksLikeHeading(m[2]) {
			flushParagraph()
			flush()
			depth := strings.Count(m[1], ".") + 1
			if depth <= len(pathStack) {
				pathStack = pathStack[:depth-1]
			}
			pathStack = append(pathStack, strings.TrimSpace(m[2]))
			cur.path = append([]string(nil), pathStack...)
			continue
		}

		if trimmed == "" {
			flushParagraph()
			continue
		}
		if buf.Len() > 0 {
			buf.WriteString(" ")
		}
		buf.WriteString(trimmed)
	}
	flushParagraph()
	flush()
	return out
}

// looksLikeHeading filters numbered-list false positives: headings are short
// and do not end with sentence punctuation.
func looksLikeHeading(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) == 0 || len(s) > 80 {
		return false
	}
	last := s[len(s)-1]
	return last != '.' && last != ',' && last != ';'
}

// structuralPieces groups sentences within each section up to the token
// budget, carrying OverlapSentences sentences into the next chunk. Overlap
// never crosses a section boundary.
func (c *Chunker) structuralPieces(sections []section) []piece {
	budget := c.cfg.TokenBudget + c.cfg.TokenBudgetSlack

	var out []piece
	for _, sec := range sections {
		if len(sec.sentences) == 0 {
			continue
		}
		i := 0
		for i < len(sec.sentences) {
			start := i
			tokens := 0
			for i < len(sec.sentences) {
				t := countTokens(sec.sentences[i])
				if tokens > 0 && tokens+t > budget {
					break
				}
				tokens += t
				i++
			}
			out = append(out, piece{
				text:    strings.Join(sec.sentences[start:i], " "),
				section: sec.path,
			})
			if i < len(sec.sentences) && c.cfg.OverlapSentences > 0 {
				back := c.cfg.OverlapSentences
				if back > i-start-1 {
					back = i - start - 1
				}
				if back > 0 {
					i -= back
				}
			}
		}
	}
	return out
}
