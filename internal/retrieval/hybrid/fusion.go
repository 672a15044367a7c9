package hybrid

import (
	"sort"

	"github.com/alecKarfonta/graphrag/internal/domain"
)

const rrfK = 60.0

// strategyList is one strategy's ranked output. Hits are ordered best-first;
// Score carries the strategy's raw score for normalization and tie-breaks.
type strategyList struct {
	kind   domain.StrategyKind
	weight float64
	hits   []strategyHit
}

type strategyHit struct {
	chunk domain.Chunk
	score float64
}

// ScoredChunk is one fused result.
type ScoredChunk struct {
	Chunk      domain.Chunk `json:"chunk"`
	Score      float64      `json:"score"`
	Strategies []string     `json:"strategies"`
	BestNorm   float64      `json:"best_normalized_score"`
}

// fuse applies weighted reciprocal rank fusion across the strategy lists.
// Only strategies in which a chunk appears contribute. Ties break by
// strategy count, then max normalized per-strategy score, then chunk id,
// which makes the output deterministic and permutation-invariant with
// respect to strategy order.
func fuse(lists []strategyList, topN int) []ScoredChunk {
	type acc struct {
		chunk    domain.Chunk
		score    float64
		count    int
		bestNorm float64
		kinds    []string
	}
	byID := map[string]*acc{}

	for _, list := range lists {
		norms := normalize(list.hits)
		for rank, hit := range list.hits {
			a := byID[hit.chunk.ID]
			if a == nil {
				a = &acc{chunk: hit.chunk}
				byID[hit.chunk.ID] = a
			}
			a.score += list.weight / (rrfK + float64(rank+1))
			a.count++
			if norms[rank] > a.bestNorm {
				a.bestNorm = norms[rank]
			}
			a.kinds = append(a.kinds, string(list.kind))
		}
	}

	out := make([]ScoredChunk, 0, len(byID))
	for _, a := range byID {
		sort.Strings(a.kinds)
		out = append(out, ScoredChunk{
			Chunk:      a.chunk,
			Score:      a.score,
			Strategies: a.kinds,
			BestNorm:   a.bestNorm,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if len(out[i].Strategies) != len(out[j].Strategies) {
			return len(out[i].Strategies) > len(out[j].Strategies)
		}
		if out[i].BestNorm != out[j].BestNorm {
			return out[i].BestNorm > out[j].BestNorm
		}
		return out[i].Chunk.ID < out[j].Chunk.ID
	})
	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	return out
}

// normalize min-max scales a strategy's scores to [0,1] over its returned
// set. Degenerate sets (single element or zero variance) keep their raw
// scores clipped to [0,1].
func normalize(hits []strategyHit) []float64 {
	out := make([]float64, len(hits))
	if len(hits) == 0 {
		return out
	}
	min, max := hits[0].score, hits[0].score
	for _, h := range hits[1:] {
		if h.score < min {
			min = h.score
		}
		if h.score > max {
			max = h.score
		}
	}
	if len(hits) == 1 || max == min {
		for i, h := range hits {
			out[i] = clip01(h.score)
		}
		return out
	}
	for i, h := range hits {
		out[i] = (h.score - min) / (max - min)
	}
	return out
}

func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
