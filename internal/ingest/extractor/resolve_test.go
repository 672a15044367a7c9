package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alecKarfonta/graphrag/internal/domain"
)

func TestResolverMergesExactNormalizedMatch(t *testing.T) {
	r := NewResolver()
	a := r.Resolve(domain.Entity{Name: "Acme Corp", Type: "org", Confidence: 0.8}, "c1")
	b := r.Resolve(domain.Entity{Name: "acme   corp.", Type: "org", Confidence: 0.9}, "c2")
	require.Equal(t, a, b)

	entities := r.Entities()
	require.Len(t, entities, 1)
	assert.Equal(t, 2, entities[0].Occurrence)
	assert.Equal(t, 0.9, entities[0].Confidence)
}

func TestResolverMergesFuzzyMatch(t *testing.T) {
	r := NewResolver()
	a := r.Resolve(domain.Entity{Name: "Mitochondria", Type: "concept", Confidence: 0.7}, "c1")
	b := r.Resolve(domain.Entity{Name: "Mitochondrias", Type: "concept", Confidence: 0.6}, "c2")
	require.Equal(t, a, b, "ratio above 0.92 merges")

	entities := r.Entities()
	require.Len(t, entities, 1)
	assert.Contains(t, entities[0].Aliases, "Mitochondrias")
}

func TestResolverKeepsDistinctTypesApart(t *testing.T) {
	r := NewResolver()
	a := r.Resolve(domain.Entity{Name: "Mercury", Type: "planet"}, "c1")
	b := r.Resolve(domain.Entity{Name: "Mercury", Type: "element"}, "c1")
	require.NotEqual(t, a, b)
	require.Len(t, r.Entities(), 2)
}

func TestResolverObservedOnceOccurrence(t *testing.T) {
	r := NewResolver()
	r.Resolve(domain.Entity{Name: "Acme", Type: "org"}, "c1")
	r.Resolve(domain.Entity{Name: "Acme", Type: "org"}, "c1")
	r.Resolve(domain.Entity{Name: "Acme", Type: "org"}, "c2")

	entities := r.Entities()
	require.Len(t, entities, 1)
	assert.Equal(t, 2, entities[0].Occurrence, "same (chunk, entity) pair counts once")

	mentions := r.Mentions()
	require.Len(t, mentions, 2)
}

func TestResolverDeterministicIDs(t *testing.T) {
	r1 := NewResolver()
	r2 := NewResolver()
	id1 := r1.Resolve(domain.Entity{Name: "Acme", Type: "org"}, "c1")
	id2 := r2.Resolve(domain.Entity{Name: "Acme", Type: "org"}, "c9")
	assert.Equal(t, id1, id2)
	assert.Equal(t, domain.EntityID("Acme", "org"), id1)
}

func TestRelationSetMerge(t *testing.T) {
	s := NewRelationSet()
	rel := domain.Relation{SourceID: "a", TargetID: "b", Type: "causes", Confidence: 0.7}
	s.Add(rel, "ev1")
	rel.Confidence = 0.9
	s.Add(rel, "ev2")

	relations := s.Relations()
	require.Len(t, relations, 1)
	assert.Equal(t, 2, relations[0].Weight)
	assert.Equal(t, 0.9, relations[0].Confidence)
	assert.Contains(t, relations[0].Context, "ev1")
	assert.Contains(t, relations[0].Context, "ev2")
}

func TestRelationSetEvidenceCap(t *testing.T) {
	s := NewRelationSet()
	for i := 0; i < 10; i++ {
		s.Add(domain.Relation{SourceID: "a", TargetID: "b", Type: "causes", Confidence: 0.5}, "evidence")
	}
	relations := s.Relations()
	require.Len(t, relations, 1)
	assert.Equal(t, 10, relations[0].Weight)
	assert.LessOrEqual(t, len(splitPipe(relations[0].Context)), 5)
}

func TestRelationSetDropsSelfEdges(t *testing.T) {
	s := NewRelationSet()
	s.Add(domain.Relation{SourceID: "a", TargetID: "a", Type: "causes"}, "")
	assert.Empty(t, s.Relations())
}

func TestFuzzyRatio(t *testing.T) {
	assert.Equal(t, 1.0, fuzzyRatio("acme", "acme"))
	assert.InDelta(t, 0.8, fuzzyRatio("acme", "acmes"), 0.001)
	assert.Equal(t, 0.0, fuzzyRatio("", "acme"))
}

func splitPipe(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i+2 < len(s); i++ {
		if s[i:i+3] == " | " {
			out = append(out, s[start:i])
			start = i + 3
		}
	}
	out = append(out, s[start:])
	return out
}
