package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/alecKarfonta/graphrag/internal/domain"
	"github.com/alecKarfonta/graphrag/internal/retrieval/hybrid"
)

const answerSystemPrompt = `You answer questions strictly from the provided context passages and
knowledge-graph paths. Cite nothing outside them. If the context does not
contain the answer, say so.`

const maxContextChunks = 10

// synthesize produces the final answer from the fused context. When the LLM
// collaborator is unavailable or fails, the fused context itself becomes the
// answer body and the response is flagged degraded.
func (s *QueryService) synthesize(ctx context.Context, query string, chunks []hybrid.ScoredChunk, paths []domain.ReasoningPath) (string, bool) {
	if s.llm == nil || s.disableLLM {
		return contextFallback(chunks), true
	}

	var b strings.Builder
	b.WriteString("Question: ")
	b.WriteString(query)
	b.WriteString("\n\nContext passages:\n")
	for i, c := range chunks {
		if i >= maxContextChunks {
			break
		}
		fmt.Fprintf(&b, "[%d] %s\n", i+1, c.Chunk.Text)
	}
	if len(paths) > 0 {
		b.WriteString("\nKnowledge-graph paths:\n")
		for _, p := range paths {
			b.WriteString("- ")
			b.WriteString(describePath(p))
			b.WriteString("\n")
		}
	}

	answer, err := s.llm.GenerateText(ctx, answerSystemPrompt, b.String())
	if err != nil {
		s.log.Warn("answer synthesis failed, returning fused context", "error", err)
		return contextFallback(chunks), true
	}
	return answer, false
}

func contextFallback(chunks []hybrid.ScoredChunk) string {
	var b strings.Builder
	for i, c := range chunks {
		if i >= maxContextChunks {
			break
		}
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(c.Chunk.Text)
	}
	return b.String()
}

func describePath(p domain.ReasoningPath) string {
	var parts []string
	for i, ent := range p.Entities {
		parts = append(parts, ent.Name)
		if i < len(p.Edges) {
			parts = append(parts, "--"+p.Edges[i].Type+"-->")
		}
	}
	return fmt.Sprintf("%s (confidence %.2f)", strings.Join(parts, " "), p.Confidence)
}
