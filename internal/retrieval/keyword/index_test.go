package keyword

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alecKarfonta/graphrag/internal/domain"
)

func corpus() []domain.Chunk {
	return []domain.Chunk{
		{ID: "c1", DocumentID: "d1", Text: "Acme is headquartered in Paris near the river."},
		{ID: "c2", DocumentID: "d1", Text: "Alice works for Acme as an engineer."},
		{ID: "c3", DocumentID: "d2", Text: "Berlin has many startups and engineers.", Domain: "tech"},
		{ID: "c4", DocumentID: "d2", Text: "Paris Paris Paris fashion week drew crowds.", Domain: "fashion"},
	}
}

func TestSearchRanksByRelevance(t *testing.T) {
	ix := NewIndex()
	ix.Add(corpus())

	results := ix.Search("Where is Acme headquartered", 10, "")
	require.NotEmpty(t, results)
	assert.Equal(t, "c1", results[0].Chunk.ID, "chunk matching both terms ranks first")
}

func TestSearchTermFrequencyMatters(t *testing.T) {
	ix := NewIndex()
	ix.Add(corpus())

	results := ix.Search("Paris", 10, "")
	require.Len(t, results, 2)
	assert.Equal(t, "c4", results[0].Chunk.ID, "higher tf wins")
}

func TestSearchDomainFilter(t *testing.T) {
	ix := NewIndex()
	ix.Add(corpus())

	results := ix.Search("Paris", 10, "fashion")
	require.Len(t, results, 1)
	assert.Equal(t, "c4", results[0].Chunk.ID)
}

func TestSearchNoMatches(t *testing.T) {
	ix := NewIndex()
	ix.Add(corpus())
	assert.Empty(t, ix.Search("zebra quantum", 10, ""))
	assert.Empty(t, ix.Search("the of and", 10, ""), "stopword-only query")
}

func TestRemoveDocument(t *testing.T) {
	ix := NewIndex()
	ix.Add(corpus())
	require.Equal(t, 4, ix.Size())

	ix.RemoveDocument("d1")
	assert.Equal(t, 2, ix.Size())
	assert.Empty(t, ix.Search("Acme", 10, ""))
}

func TestAddIsIdempotentPerChunk(t *testing.T) {
	ix := NewIndex()
	ix.Add(corpus())
	ix.Add(corpus())
	assert.Equal(t, 4, ix.Size())

	results := ix.Search("Acme", 10, "")
	assert.Len(t, results, 2)
}

func TestSearchDeterministicTieBreak(t *testing.T) {
	ix := NewIndex()
	ix.Add([]domain.Chunk{
		{ID: "b", DocumentID: "d", Text: "identical content here"},
		{ID: "a", DocumentID: "d", Text: "identical content here"},
	})
	results := ix.Search("identical content", 10, "")
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].Chunk.ID)
	assert.Equal(t, "b", results[1].Chunk.ID)
}

func TestTokenize(t *testing.T) {
	terms := Tokenize("Where is the Acme Corp headquartered?")
	assert.Equal(t, []string{"acme", "corp", "headquartered"}, terms)
}
