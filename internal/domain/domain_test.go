package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  Acme   Corp. ", "acme corp"},
		{"ACME", "acme"},
		{"lung-cancer", "lungcancer"},
		{"Foo  \t Bar", "foo bar"},
		{"", ""},
		{"...", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeName(tt.in), "input %q", tt.in)
	}
}

func TestEntityIDDeterministic(t *testing.T) {
	a := EntityID("Acme Corp", "organization")
	b := EntityID("acme   corp.", "ORGANIZATION")
	require.Equal(t, a, b, "normalized forms must share an id")

	c := EntityID("Acme Corp", "person")
	require.NotEqual(t, a, c, "type participates in the id")
}

func TestChunkIDStable(t *testing.T) {
	require.Equal(t, ChunkID("doc-1", 0), ChunkID("doc-1", 0))
	require.NotEqual(t, ChunkID("doc-1", 0), ChunkID("doc-1", 1))
	require.NotEqual(t, ChunkID("doc-1", 0), ChunkID("doc-2", 0))
}

func TestGraphFilterNormalizeDefaults(t *testing.T) {
	f := GraphFilter{}
	require.True(t, f.Normalize())
	assert.Equal(t, 500, f.MaxEntities)
	assert.Equal(t, 500, f.MaxRelations)
	assert.Equal(t, 1, f.MinOccurrence)
	assert.Equal(t, "occurrence", f.SortBy)
	assert.Equal(t, "desc", f.SortOrder)
}

func TestGraphFilterNormalizeCaps(t *testing.T) {
	f := GraphFilter{MaxEntities: 99999, MaxRelations: 99999}
	require.True(t, f.Normalize())
	assert.Equal(t, MaxEntitiesCap, f.MaxEntities)
	assert.Equal(t, MaxRelationsCap, f.MaxRelations)
}

func TestGraphFilterNormalizeRejectsInvalid(t *testing.T) {
	for _, f := range []GraphFilter{
		{MaxEntities: -1},
		{MinConfidence: 1.5},
		{SortBy: "weight"},
		{SortOrder: "sideways"},
	} {
		f := f
		assert.False(t, f.Normalize())
	}
}
