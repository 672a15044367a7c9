package graphtest

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alecKarfonta/graphrag/internal/domain"
)

func seedLargeGraph(t *testing.T, f *Fake, entities int) {
	t.Helper()
	ctx := context.Background()
	var batch []domain.Entity
	for i := 0; i < entities; i++ {
		batch = append(batch, domain.Entity{
			ID:         fmt.Sprintf("e%04d", i),
			Name:       fmt.Sprintf("entity %d", i),
			Type:       "concept",
			Domain:     "general",
			Occurrence: 1 + i%10,
			Confidence: 0.5,
		})
	}
	require.NoError(t, f.UpsertEntities(ctx, batch))

	var relations []domain.Relation
	for i := 0; i+1 < entities; i++ {
		relations = append(relations, domain.Relation{
			SourceID:   fmt.Sprintf("e%04d", i),
			TargetID:   fmt.Sprintf("e%04d", i+1),
			Type:       "related_to",
			Domain:     "general",
			Confidence: 0.5,
			Weight:     1 + i%5,
		})
	}
	require.NoError(t, f.UpsertRelations(ctx, relations))
}

func TestFilteredProjectionCaps(t *testing.T) {
	f := New()
	seedLargeGraph(t, f, 1200)

	projection, err := f.FilteredProjection(context.Background(), domain.GraphFilter{
		MaxEntities:   50,
		MaxRelations:  100,
		MinOccurrence: 3,
		SortBy:        "occurrence",
		SortOrder:     "desc",
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(projection.Entities), 50)
	assert.LessOrEqual(t, len(projection.Relations), 100)
	assert.Equal(t, 1200, projection.TotalsBefore.Entities)

	inSet := map[string]bool{}
	for _, e := range projection.Entities {
		inSet[e.ID] = true
		assert.GreaterOrEqual(t, e.Occurrence, 3)
	}
	for _, r := range projection.Relations {
		assert.True(t, inSet[r.SourceID], "relation endpoints stay inside the entity set")
		assert.True(t, inSet[r.TargetID])
	}
}

func TestFilteredProjectionSortOrder(t *testing.T) {
	f := New()
	seedLargeGraph(t, f, 100)

	projection, err := f.FilteredProjection(context.Background(), domain.GraphFilter{
		MaxEntities: 10,
		SortBy:      "occurrence",
		SortOrder:   "desc",
	})
	require.NoError(t, err)
	require.NotEmpty(t, projection.Entities)
	for i := 1; i < len(projection.Entities); i++ {
		assert.GreaterOrEqual(t, projection.Entities[i-1].Occurrence, projection.Entities[i].Occurrence)
	}
}

func TestFilteredProjectionOverAsk(t *testing.T) {
	f := New()
	seedLargeGraph(t, f, 37)

	projection, err := f.FilteredProjection(context.Background(), domain.GraphFilter{
		MaxEntities:  10000,
		MaxRelations: 10000,
	})
	require.NoError(t, err)
	assert.Len(t, projection.Entities, 37, "asking beyond the population returns what exists")
}

func TestFilteredProjectionRejectsBadFilter(t *testing.T) {
	f := New()
	_, err := f.FilteredProjection(context.Background(), domain.GraphFilter{SortBy: "nope"})
	require.Error(t, err)
}

func TestNeighborsHopBound(t *testing.T) {
	f := New()
	seedLargeGraph(t, f, 6)

	paths, err := f.Neighbors(context.Background(), "e0000", 2, nil)
	require.NoError(t, err)
	require.NotEmpty(t, paths)
	for _, p := range paths {
		assert.LessOrEqual(t, len(p.Edges), 2)
	}
}
