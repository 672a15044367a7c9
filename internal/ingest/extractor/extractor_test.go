package extractor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alecKarfonta/graphrag/internal/domain"
	"github.com/alecKarfonta/graphrag/internal/platform/logger"
	"github.com/alecKarfonta/graphrag/internal/platform/ner"
)

type stubNER struct {
	spans []ner.Span
	err   error
}

func (s stubNER) Extract(ctx context.Context, text string) ([]ner.Span, error) {
	return s.spans, s.err
}

func TestExtractWithNERCollaborator(t *testing.T) {
	e := New(logger.NewNop(), stubNER{spans: []ner.Span{
		{Text: "Alice", Label: "PERSON", Confidence: 0.95},
		{Text: "Acme", Label: "ORG", Confidence: 0.9},
		{Text: "Acme", Label: "ORG", Confidence: 0.8},
	}}, nil, true)

	result, err := e.Extract(context.Background(), domain.Chunk{
		ID:   "c1",
		Text: "Alice works for Acme.",
	})
	require.NoError(t, err)
	require.Len(t, result.Entities, 2, "duplicate spans deduplicate")
	assert.Equal(t, "person", result.Entities[0].Type)
}

func TestExtractHeuristicEntities(t *testing.T) {
	e := New(logger.NewNop(), nil, nil, true)
	result, err := e.Extract(context.Background(), domain.Chunk{
		ID:   "c1",
		Text: "Alice works for Acme. Acme is headquartered in Paris.",
	})
	require.NoError(t, err)

	names := map[string]bool{}
	for _, ent := range result.Entities {
		names[ent.Name] = true
	}
	assert.True(t, names["Alice"])
	assert.True(t, names["Acme"])
	assert.True(t, names["Paris"])
}

func TestExtractCooccurrenceRelations(t *testing.T) {
	e := New(logger.NewNop(), nil, nil, true)
	result, err := e.Extract(context.Background(), domain.Chunk{
		ID:   "c1",
		Text: "Alice works for Acme. Acme is headquartered in Paris.",
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.Relations)

	pairs := map[[2]string]bool{}
	for _, rel := range result.Relations {
		pairs[[2]string{rel.SourceName, rel.TargetName}] = true
		assert.Equal(t, "related_to", rel.Type)
		assert.NotEmpty(t, rel.Evidence)
	}
	assert.True(t, pairs[[2]string{"Alice", "Acme"}])
	assert.True(t, pairs[[2]string{"Acme", "Paris"}])
}

func TestExtractDeterministic(t *testing.T) {
	e := New(logger.NewNop(), nil, nil, true)
	chunk := domain.Chunk{ID: "c1", Text: "Alice works for Acme. Acme is headquartered in Paris."}

	first, err := e.Extract(context.Background(), chunk)
	require.NoError(t, err)
	second, err := e.Extract(context.Background(), chunk)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
