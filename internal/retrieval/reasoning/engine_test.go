package reasoning

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alecKarfonta/graphrag/internal/domain"
	"github.com/alecKarfonta/graphrag/internal/graph/graphtest"
	"github.com/alecKarfonta/graphrag/internal/platform/apierr"
	"github.com/alecKarfonta/graphrag/internal/platform/logger"
	"github.com/alecKarfonta/graphrag/internal/retrieval/hybrid"
)

var causalTypes = []string{"causes", "leads_to", "results_in"}

func causalGraph(t *testing.T) (*graphtest.Fake, domain.QueryPlan) {
	t.Helper()
	fake := graphtest.New()
	ctx := context.Background()

	smoking := domain.EntityID("smoking", "concept")
	pollution := domain.EntityID("air pollution", "concept")
	cancer := domain.EntityID("lung cancer", "condition")
	require.NoError(t, fake.UpsertEntities(ctx, []domain.Entity{
		{ID: smoking, Name: "smoking", Type: "concept", Occurrence: 5, Confidence: 0.9},
		{ID: pollution, Name: "air pollution", Type: "concept", Occurrence: 3, Confidence: 0.8},
		{ID: cancer, Name: "lung cancer", Type: "condition", Occurrence: 4, Confidence: 0.9},
	}))
	require.NoError(t, fake.UpsertRelations(ctx, []domain.Relation{
		{SourceID: smoking, TargetID: cancer, Type: "causes", Confidence: 0.9, Weight: 1},
		{SourceID: pollution, TargetID: cancer, Type: "causes", Confidence: 0.7, Weight: 1},
	}))

	plan := domain.QueryPlan{
		Query:     "What causes lung cancer?",
		Intent:    domain.IntentCausal,
		Reasoning: domain.ReasoningCausal,
		MaxHops:   2,
		Entities: []domain.QueryEntity{
			{Name: "lung cancer", EntityID: cancer, Known: true},
		},
	}
	return fake, plan
}

func TestCausalChainsRankedByConfidence(t *testing.T) {
	fake, plan := causalGraph(t)
	e := New(logger.NewNop(), fake, causalTypes)

	paths, err := e.CausalChains(context.Background(), plan)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(paths), 2)

	top := paths[0]
	names := map[string]bool{}
	for _, ent := range top.Entities {
		names[ent.Name] = true
	}
	assert.True(t, names["smoking"], "highest-confidence chain includes smoking")
	assert.Greater(t, paths[0].Confidence, paths[1].Confidence)
	for _, p := range paths {
		assert.Equal(t, domain.ReasoningCausal, p.Kind)
		for _, edge := range p.Edges {
			assert.Equal(t, "causes", edge.Type)
		}
	}
}

func TestCausalIgnoresNonCausalEdges(t *testing.T) {
	fake, plan := causalGraph(t)
	ctx := context.Background()
	cancer := plan.Entities[0].EntityID
	hospital := domain.EntityID("hospital", "org")
	require.NoError(t, fake.UpsertEntities(ctx, []domain.Entity{
		{ID: hospital, Name: "hospital", Type: "org", Occurrence: 1, Confidence: 0.9},
	}))
	require.NoError(t, fake.UpsertRelations(ctx, []domain.Relation{
		{SourceID: cancer, TargetID: hospital, Type: "treated_at", Confidence: 0.95, Weight: 1},
	}))

	e := New(logger.NewNop(), fake, causalTypes)
	paths, err := e.CausalChains(ctx, plan)
	require.NoError(t, err)
	for _, p := range paths {
		for _, ent := range p.Entities {
			assert.NotEqual(t, "hospital", ent.Name)
		}
	}
}

func TestDirectPathsBetweenKnownEntities(t *testing.T) {
	fake, plan := causalGraph(t)
	smoking := domain.EntityID("smoking", "concept")
	plan.Entities = append(plan.Entities, domain.QueryEntity{Name: "smoking", EntityID: smoking, Known: true})

	e := New(logger.NewNop(), fake, causalTypes)
	paths, err := e.DirectPaths(context.Background(), plan)
	require.NoError(t, err)
	require.NotEmpty(t, paths)
	assert.Equal(t, domain.ReasoningDirect, paths[0].Kind)
	assert.Len(t, paths[0].Edges, 1, "shortest path is the direct edge")
}

func TestComparativeOverlap(t *testing.T) {
	fake, plan := causalGraph(t)
	smoking := domain.EntityID("smoking", "concept")
	pollution := domain.EntityID("air pollution", "concept")
	plan.Entities = []domain.QueryEntity{
		{Name: "smoking", EntityID: smoking, Known: true},
		{Name: "air pollution", EntityID: pollution, Known: true},
	}

	e := New(logger.NewNop(), fake, causalTypes)
	paths, err := e.Comparative(context.Background(), plan)
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, domain.ReasoningComparative, paths[0].Kind)
	assert.Greater(t, paths[0].Confidence, 0.3, "shared lung cancer neighbor raises overlap")
}

func TestMultiHopBeam(t *testing.T) {
	fake, plan := causalGraph(t)
	plan.Reasoning = domain.ReasoningMultiHop

	e := New(logger.NewNop(), fake, causalTypes)
	paths, err := e.MultiHop(context.Background(), plan)
	require.NoError(t, err)
	require.NotEmpty(t, paths)
	for _, p := range paths {
		assert.Equal(t, domain.ReasoningMultiHop, p.Kind)
		assert.LessOrEqual(t, len(p.Edges), plan.MaxHops)
	}
}

func TestFallbackToCooccurrence(t *testing.T) {
	fake, plan := causalGraph(t)
	fake.Err = apierr.Transient("neo4j_down", nil)
	plan.Entities = []domain.QueryEntity{
		{Name: "smoking", Known: false},
		{Name: "lung cancer", Known: false},
	}

	e := New(logger.NewNop(), fake, causalTypes)
	fused := []hybrid.ScoredChunk{
		{Chunk: domain.Chunk{ID: "c1", Text: "Smoking is a leading cause of lung cancer."}},
	}
	paths := e.Paths(context.Background(), plan, fused)
	require.NotEmpty(t, paths)
	assert.Equal(t, []string{"c1"}, paths[0].Evidence)
}

func TestNoReasoningKind(t *testing.T) {
	e := New(logger.NewNop(), graphtest.New(), causalTypes)
	assert.Empty(t, e.Paths(context.Background(), domain.QueryPlan{Reasoning: domain.ReasoningNone}, nil))
}
