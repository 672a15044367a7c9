package planner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alecKarfonta/graphrag/internal/config"
	"github.com/alecKarfonta/graphrag/internal/domain"
	"github.com/alecKarfonta/graphrag/internal/graph/graphtest"
	"github.com/alecKarfonta/graphrag/internal/platform/logger"
)

func newTestPlanner(t *testing.T, fake *graphtest.Fake) *Planner {
	t.Helper()
	p, err := New(logger.NewNop(), config.DefaultVocabulary(), fake, nil, nil, nil, true)
	require.NoError(t, err)
	return p
}

func seedEntities(t *testing.T, fake *graphtest.Fake, names ...string) {
	t.Helper()
	var entities []domain.Entity
	for _, name := range names {
		entities = append(entities, domain.Entity{
			ID:         domain.EntityID(name, "concept"),
			Name:       name,
			Type:       "concept",
			Occurrence: 1,
			Confidence: 0.8,
		})
	}
	require.NoError(t, fake.UpsertEntities(context.Background(), entities))
}

func TestPlanIntentClassification(t *testing.T) {
	p := newTestPlanner(t, graphtest.New())
	tests := []struct {
		query string
		want  domain.Intent
	}{
		{"Compare supervised and unsupervised learning", domain.IntentComparative},
		{"Why does smoking cause lung cancer?", domain.IntentCausal},
		{"How to configure the cluster step by step", domain.IntentProcedural},
		{"When did the merger happen?", domain.IntentTemporal},
		{"What is the capital of France?", domain.IntentFactual},
	}
	for _, tt := range tests {
		plan, err := p.Plan(context.Background(), tt.query)
		require.NoError(t, err)
		assert.Equal(t, tt.want, plan.Intent, "query %q", tt.query)
	}
}

func TestPlanWeightsSumToOne(t *testing.T) {
	fake := graphtest.New()
	seedEntities(t, fake, "supervised learning", "unsupervised learning")
	p := newTestPlanner(t, fake)

	plan, err := p.Plan(context.Background(), "Compare supervised learning and unsupervised learning")
	require.NoError(t, err)

	sum := 0.0
	for _, comp := range plan.Strategies {
		sum += comp.Weight
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestPlanComparativeFavorsGraph(t *testing.T) {
	fake := graphtest.New()
	seedEntities(t, fake, "supervised learning", "unsupervised learning")
	p := newTestPlanner(t, fake)

	plan, err := p.Plan(context.Background(), "Compare supervised learning and unsupervised learning")
	require.NoError(t, err)
	require.Equal(t, domain.IntentComparative, plan.Intent)
	assert.Equal(t, domain.ReasoningComparative, plan.Reasoning)

	weights := map[domain.StrategyKind]float64{}
	for _, comp := range plan.Strategies {
		weights[comp.Kind] = comp.Weight
	}
	assert.GreaterOrEqual(t, weights[domain.StrategyGraph], weights[domain.StrategyVector])

	names := map[string]bool{}
	known := 0
	for _, e := range plan.Entities {
		names[domain.NormalizeName(e.Name)] = true
		if e.Known {
			known++
		}
	}
	assert.True(t, names["supervised learning"])
	assert.True(t, names["unsupervised learning"])
	assert.GreaterOrEqual(t, known, 2)
}

func TestPlanNoKnownEntitiesZeroesGraph(t *testing.T) {
	p := newTestPlanner(t, graphtest.New())

	plan, err := p.Plan(context.Background(), "Why does smoking cause lung cancer?")
	require.NoError(t, err)
	require.Equal(t, domain.IntentCausal, plan.Intent)

	sum := 0.0
	for _, comp := range plan.Strategies {
		assert.NotEqual(t, domain.StrategyGraph, comp.Kind, "graph weight redistributes when nothing is known")
		sum += comp.Weight
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestPlanTwoKnownEntitiesShiftToGraph(t *testing.T) {
	fake := graphtest.New()
	seedEntities(t, fake, "smoking", "lung cancer")
	p := newTestPlanner(t, fake)

	plan, err := p.Plan(context.Background(), "What links smoking with lung cancer?")
	require.NoError(t, err)

	weights := map[domain.StrategyKind]float64{}
	for _, comp := range plan.Strategies {
		weights[comp.Kind] = comp.Weight
	}
	base := weightTable[plan.Intent]
	assert.InDelta(t, base.graphW+0.1, weights[domain.StrategyGraph], 1e-9)
	assert.InDelta(t, base.vector-0.1, weights[domain.StrategyVector], 1e-9)
}

func TestPlanComplexity(t *testing.T) {
	fake := graphtest.New()
	seedEntities(t, fake, "alpha system", "beta system", "gamma system")
	p := newTestPlanner(t, fake)

	low, err := p.Plan(context.Background(), "What now?")
	require.NoError(t, err)
	assert.Equal(t, domain.ComplexityLow, low.Complexity)
	assert.Equal(t, 1, low.MaxHops)

	high, err := p.Plan(context.Background(), "What connects alpha system, beta system, gamma system?")
	require.NoError(t, err)
	assert.Equal(t, domain.ComplexityHigh, high.Complexity)
	assert.Equal(t, 3, high.MaxHops)
}

func TestPlanPureFunctionOfQuery(t *testing.T) {
	fake := graphtest.New()
	seedEntities(t, fake, "acme")
	p := newTestPlanner(t, fake)

	first, err := p.Plan(context.Background(), "Where is Acme headquartered?")
	require.NoError(t, err)
	second, err := p.Plan(context.Background(), "Where is Acme headquartered?")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestPlanEmptyQuery(t *testing.T) {
	p := newTestPlanner(t, graphtest.New())
	plan, err := p.Plan(context.Background(), "   ")
	require.NoError(t, err)
	assert.Equal(t, domain.IntentFactual, plan.Intent)
	assert.Equal(t, domain.ComplexityLow, plan.Complexity)
}
