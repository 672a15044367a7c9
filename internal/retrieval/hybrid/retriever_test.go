package hybrid

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alecKarfonta/graphrag/internal/domain"
	"github.com/alecKarfonta/graphrag/internal/graph/graphtest"
	"github.com/alecKarfonta/graphrag/internal/platform/apierr"
	"github.com/alecKarfonta/graphrag/internal/platform/logger"
	"github.com/alecKarfonta/graphrag/internal/platform/qdrant"
	"github.com/alecKarfonta/graphrag/internal/retrieval/keyword"
)

type fakeVec struct {
	matches []qdrant.Match
	err     error
}

func (f fakeVec) Upsert(ctx context.Context, points []qdrant.Point) error { return f.err }
func (f fakeVec) Query(ctx context.Context, vector []float32, topK int, filter map[string]any) ([]qdrant.Match, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.matches) > topK {
		return f.matches[:topK], nil
	}
	return f.matches, nil
}
func (f fakeVec) DeleteByFilter(ctx context.Context, filter map[string]any) error { return f.err }
func (f fakeVec) DocumentIDs(ctx context.Context) ([]string, error)               { return nil, f.err }
func (f fakeVec) Count(ctx context.Context, filter map[string]any) (int, error)   { return 0, f.err }
func (f fakeVec) Clear(ctx context.Context) error                                 { return f.err }

type fakeEmbedder struct {
	err error
}

func (f fakeEmbedder) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(inputs))
	for i := range inputs {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func hybridPlan(known ...domain.QueryEntity) domain.QueryPlan {
	return domain.QueryPlan{
		Query:    "Where is Acme headquartered?",
		Intent:   domain.IntentFactual,
		Entities: known,
		MaxHops:  2,
		Strategies: []domain.StrategyComponent{
			{Kind: domain.StrategyVector, Weight: 0.6},
			{Kind: domain.StrategyGraph, Weight: 0.25},
			{Kind: domain.StrategyKeyword, Weight: 0.15},
		},
	}
}

func vecMatch(id, text string, score float64) qdrant.Match {
	return qdrant.Match{ID: id, Score: score, Payload: map[string]any{
		"document_id": "d1",
		"text":        text,
	}}
}

func seedGraph(t *testing.T, fake *graphtest.Fake) domain.QueryEntity {
	t.Helper()
	ctx := context.Background()
	acmeID := domain.EntityID("Acme", "org")
	parisID := domain.EntityID("Paris", "location")
	require.NoError(t, fake.UpsertEntities(ctx, []domain.Entity{
		{ID: acmeID, Name: "Acme", Type: "org", Occurrence: 2, Confidence: 0.9},
		{ID: parisID, Name: "Paris", Type: "location", Occurrence: 1, Confidence: 0.8},
	}))
	require.NoError(t, fake.UpsertChunks(ctx, []domain.Chunk{
		{ID: "c1", DocumentID: "d1", Ordinal: 0, Text: "Acme is headquartered in Paris."},
	}))
	require.NoError(t, fake.UpsertRelations(ctx, []domain.Relation{
		{SourceID: acmeID, TargetID: parisID, Type: "located_in", Confidence: 0.9, Weight: 1},
	}))
	require.NoError(t, fake.UpsertMentions(ctx, []domain.Mention{
		{EntityID: acmeID, ChunkID: "c1"},
		{EntityID: parisID, ChunkID: "c1"},
	}))
	return domain.QueryEntity{Name: "Acme", EntityID: acmeID, Known: true}
}

func newKeywordIndex() *keyword.Index {
	ix := keyword.NewIndex()
	ix.Add([]domain.Chunk{
		{ID: "c1", DocumentID: "d1", Text: "Acme is headquartered in Paris."},
		{ID: "c2", DocumentID: "d1", Text: "Alice is an engineer."},
	})
	return ix
}

func TestRetrieveFusesAllStrategies(t *testing.T) {
	fake := graphtest.New()
	acme := seedGraph(t, fake)

	r := New(logger.NewNop(), DefaultConfig(), fake,
		fakeVec{matches: []qdrant.Match{vecMatch("c1", "Acme is headquartered in Paris.", 0.95)}},
		fakeEmbedder{}, newKeywordIndex(), nil, nil)

	result, err := r.Retrieve(context.Background(), hybridPlan(acme), Options{TopK: 3})
	require.NoError(t, err)
	assert.False(t, result.Partial)
	assert.Empty(t, result.DegradedStrategies)
	require.NotEmpty(t, result.Chunks)
	assert.Equal(t, "c1", result.Chunks[0].Chunk.ID)
	assert.Contains(t, result.Chunks[0].Chunk.Text, "Paris")
	assert.Len(t, result.Chunks[0].Strategies, 3, "chunk found by all three strategies")
	assert.InDelta(t, 1.0, result.Confidence, 1e-9)
}

func TestRetrieveDegradesWhenGraphFails(t *testing.T) {
	fake := graphtest.New()
	acme := seedGraph(t, fake)
	fake.Err = apierr.Transient("neo4j_down", nil)

	r := New(logger.NewNop(), DefaultConfig(), fake,
		fakeVec{matches: []qdrant.Match{vecMatch("c1", "Acme is headquartered in Paris.", 0.95)}},
		fakeEmbedder{}, newKeywordIndex(), nil, nil)

	result, err := r.Retrieve(context.Background(), hybridPlan(acme), Options{TopK: 3})
	require.NoError(t, err)
	assert.True(t, result.Partial)
	assert.Equal(t, []string{"graph"}, result.DegradedStrategies)
	require.NotEmpty(t, result.Chunks, "vector and keyword still serve")
	assert.InDelta(t, 0.75, result.Confidence, 1e-9, "confidence discounted by the graph weight")
}

func TestRetrieveDegradesWhenEmbedderFails(t *testing.T) {
	fake := graphtest.New()
	acme := seedGraph(t, fake)

	r := New(logger.NewNop(), DefaultConfig(), fake,
		fakeVec{}, fakeEmbedder{err: apierr.Timeout("embed_timeout", nil)},
		newKeywordIndex(), nil, nil)

	result, err := r.Retrieve(context.Background(), hybridPlan(acme), Options{TopK: 3})
	require.NoError(t, err)
	assert.Contains(t, result.DegradedStrategies, "vector")
	require.NotEmpty(t, result.Chunks)
}

func TestRetrieveSingleStrategyOverride(t *testing.T) {
	fake := graphtest.New()
	acme := seedGraph(t, fake)

	r := New(logger.NewNop(), DefaultConfig(), fake, fakeVec{}, fakeEmbedder{}, newKeywordIndex(), nil, nil)
	result, err := r.Retrieve(context.Background(), hybridPlan(acme), Options{TopK: 3, Only: domain.StrategyKeyword})
	require.NoError(t, err)
	require.NotEmpty(t, result.Chunks)
	for _, c := range result.Chunks {
		assert.Equal(t, []string{"keyword"}, c.Strategies)
	}
}

func TestRetrieveDeterministic(t *testing.T) {
	fake := graphtest.New()
	acme := seedGraph(t, fake)
	vec := fakeVec{matches: []qdrant.Match{
		vecMatch("c1", "Acme is headquartered in Paris.", 0.95),
		vecMatch("c2", "Alice is an engineer.", 0.5),
	}}

	r := New(logger.NewNop(), DefaultConfig(), fake, vec, fakeEmbedder{}, newKeywordIndex(), nil, nil)
	first, err := r.Retrieve(context.Background(), hybridPlan(acme), Options{TopK: 5})
	require.NoError(t, err)
	second, err := r.Retrieve(context.Background(), hybridPlan(acme), Options{TopK: 5})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRetrieveEmptyPlanStrategies(t *testing.T) {
	r := New(logger.NewNop(), DefaultConfig(), nil, nil, nil, nil, nil, nil)
	result, err := r.Retrieve(context.Background(), domain.QueryPlan{Query: "q"}, Options{})
	require.NoError(t, err)
	assert.True(t, result.Partial)
	assert.Empty(t, result.Chunks)
}
