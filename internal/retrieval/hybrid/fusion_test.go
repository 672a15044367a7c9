package hybrid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alecKarfonta/graphrag/internal/domain"
)

func chunk(id string) domain.Chunk {
	return domain.Chunk{ID: id, DocumentID: "d", Text: "text " + id}
}

func TestFusePermutationInvariant(t *testing.T) {
	vector := strategyList{kind: domain.StrategyVector, weight: 0.6, hits: []strategyHit{
		{chunk: chunk("a"), score: 0.9},
		{chunk: chunk("b"), score: 0.8},
		{chunk: chunk("c"), score: 0.2},
	}}
	keyword := strategyList{kind: domain.StrategyKeyword, weight: 0.4, hits: []strategyHit{
		{chunk: chunk("b"), score: 3.2},
		{chunk: chunk("d"), score: 1.1},
	}}

	forward := fuse([]strategyList{vector, keyword}, 10)
	backward := fuse([]strategyList{keyword, vector}, 10)
	require.Equal(t, forward, backward)
}

func TestFuseWeightedRRF(t *testing.T) {
	vector := strategyList{kind: domain.StrategyVector, weight: 0.6, hits: []strategyHit{
		{chunk: chunk("a"), score: 0.9},
		{chunk: chunk("b"), score: 0.8},
	}}
	keyword := strategyList{kind: domain.StrategyKeyword, weight: 0.4, hits: []strategyHit{
		{chunk: chunk("b"), score: 3.2},
		{chunk: chunk("a"), score: 1.1},
	}}

	fused := fuse([]strategyList{vector, keyword}, 10)
	require.Len(t, fused, 2)

	// a: 0.6/61 + 0.4/62; b: 0.6/62 + 0.4/61.
	wantA := 0.6/61 + 0.4/62
	wantB := 0.6/62 + 0.4/61
	assert.Equal(t, "a", fused[0].Chunk.ID)
	assert.InDelta(t, wantA, fused[0].Score, 1e-12)
	assert.InDelta(t, wantB, fused[1].Score, 1e-12)
}

func TestFuseOnlyPresentStrategiesContribute(t *testing.T) {
	vector := strategyList{kind: domain.StrategyVector, weight: 0.5, hits: []strategyHit{
		{chunk: chunk("a"), score: 0.9},
	}}
	keyword := strategyList{kind: domain.StrategyKeyword, weight: 0.5, hits: []strategyHit{
		{chunk: chunk("b"), score: 1.0},
	}}
	fused := fuse([]strategyList{vector, keyword}, 10)
	require.Len(t, fused, 2)
	for _, f := range fused {
		assert.InDelta(t, 0.5/61, f.Score, 1e-12)
		assert.Len(t, f.Strategies, 1)
	}
}

func TestFuseTieBreakByStrategyCount(t *testing.T) {
	// a and b tie on RRF score; a appears in two strategies.
	vector := strategyList{kind: domain.StrategyVector, weight: 0.5, hits: []strategyHit{
		{chunk: chunk("a"), score: 0.4},
	}}
	keyword := strategyList{kind: domain.StrategyKeyword, weight: 0.5, hits: []strategyHit{
		{chunk: chunk("a"), score: 0.1},
	}}
	graph := strategyList{kind: domain.StrategyGraph, weight: 1.0, hits: []strategyHit{
		{chunk: chunk("b"), score: 0.7},
	}}
	fused := fuse([]strategyList{vector, keyword, graph}, 10)
	require.Len(t, fused, 2)
	assert.Equal(t, "a", fused[0].Chunk.ID)
	assert.Equal(t, "b", fused[1].Chunk.ID)
}

func TestFuseTieBreakByChunkID(t *testing.T) {
	vector := strategyList{kind: domain.StrategyVector, weight: 0.5, hits: []strategyHit{
		{chunk: chunk("z"), score: 0.5},
	}}
	keyword := strategyList{kind: domain.StrategyKeyword, weight: 0.5, hits: []strategyHit{
		{chunk: chunk("m"), score: 0.5},
	}}
	fused := fuse([]strategyList{vector, keyword}, 10)
	require.Len(t, fused, 2)
	assert.Equal(t, "m", fused[0].Chunk.ID)
}

func TestFuseTopN(t *testing.T) {
	var hits []strategyHit
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		hits = append(hits, strategyHit{chunk: chunk(id), score: 1})
	}
	fused := fuse([]strategyList{{kind: domain.StrategyVector, weight: 1, hits: hits}}, 3)
	assert.Len(t, fused, 3)
}

func TestNormalizeMinMax(t *testing.T) {
	norms := normalize([]strategyHit{
		{score: 2}, {score: 6}, {score: 4},
	})
	assert.Equal(t, []float64{0, 1, 0.5}, norms)
}

func TestNormalizeDegenerate(t *testing.T) {
	assert.Equal(t, []float64{0.7}, normalize([]strategyHit{{score: 0.7}}))
	assert.Equal(t, []float64{1, 1}, normalize([]strategyHit{{score: 3.5}, {score: 3.5}}), "zero variance clips raw scores")
	assert.Empty(t, normalize(nil))
}
