package chunker

import (
	"context"
	"fmt"
	"math"
	"strings"
)

// semanticPieces embeds every sentence and starts a new chunk when the
// cosine distance to the running centroid exceeds the threshold or the token
// budget trips. Section boundaries always start a new chunk.
func (c *Chunker) semanticPieces(ctx context.Context, sections []section) ([]piece, error) {
	var out []piece
	budget := c.cfg.TokenBudget + c.cfg.TokenBudgetSlack

	for _, sec := range sections {
		if len(sec.sentences) == 0 {
			continue
		}
		vecs, err := c.embedder.Embed(ctx, sec.sentences)
		if err != nil {
			return nil, err
		}
		if len(vecs) != len(sec.sentences) {
			return nil, fmt.Errorf("embedder returned %d vectors for %d sentences", len(vecs), len(sec.sentences))
		}

		var cur []string
		var centroid []float64
		tokens := 0

		flush := func() {
			if len(cur) == 0 {
				return
			}
			out = append(out, piece{
				text:    strings.Join(cur, " "),
				section: sec.path,
			})
			cur = nil
			centroid = nil
			tokens = 0
		}

		for i, sentence := range sec.sentences {
			t := countTokens(sentence)
			if len(cur) > 0 {
				dist := 1 - cosine(centroid, vecs[i])
				if dist > c.cfg.SemanticThreshold || tokens+t > budget {
					flush()
				}
			}
			cur = append(cur, sentence)
			tokens += t
			centroid = updateCentroid(centroid, vecs[i], len(cur))
		}
		flush()
	}
	return out, nil
}

// updateCentroid folds vec into the running mean of n members.
func updateCentroid(centroid []float64, vec []float32, n int) []float64 {
	if centroid == nil {
		out := make([]float64, len(vec))
		for i, v := range vec {
			out[i] = float64(v)
		}
		return out
	}
	for i := range centroid {
		if i < len(vec) {
			centroid[i] += (float64(vec[i]) - centroid[i]) / float64(n)
		}
	}
	return centroid
}

func cosine(a []float64, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += a[i] * float64(b[i])
		na += a[i] * a[i]
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
