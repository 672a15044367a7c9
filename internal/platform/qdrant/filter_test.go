package qdrant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslateFilterEmpty(t *testing.T) {
	assert.Nil(t, translateFilter(nil))
	assert.Nil(t, translateFilter(map[string]any{}))
	assert.Nil(t, translateFilter(map[string]any{"": "x", "key": nil}))
}

func TestTranslateFilterEquality(t *testing.T) {
	out := translateFilter(map[string]any{"domain": "general"})
	require.NotNil(t, out)
	must, ok := out["must"].([]any)
	require.True(t, ok)
	require.Len(t, must, 1)
	cond := must[0].(map[string]any)
	assert.Equal(t, "domain", cond["key"])
	assert.Equal(t, map[string]any{"value": "general"}, cond["match"])
}

func TestPointIDDeterministic(t *testing.T) {
	assert.Equal(t, pointID("chunk-1"), pointID("chunk-1"))
	assert.NotEqual(t, pointID("chunk-1"), pointID("chunk-2"))
}

func TestValidateConfig(t *testing.T) {
	assert.NoError(t, ValidateConfig(Config{URL: "http://localhost:6333", Collection: "chunks", VectorDim: 8}))
	assert.Error(t, ValidateConfig(Config{Collection: "chunks", VectorDim: 8}))
	assert.Error(t, ValidateConfig(Config{URL: "http://x", VectorDim: 8}))
	assert.Error(t, ValidateConfig(Config{URL: "http://x", Collection: "c", VectorDim: 0}))
}

func TestClampScore(t *testing.T) {
	assert.Equal(t, 0.0, clampScore(-0.5))
	assert.Equal(t, 1.0, clampScore(1.5))
	assert.Equal(t, 0.42, clampScore(0.42))
}
