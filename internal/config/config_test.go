package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8000", cfg.HTTPAddr)
	assert.Equal(t, 8, cfg.IngestChunkConcurrency)
	assert.Equal(t, 32, cfg.IngestGlobalConcurrency)
	assert.NotEmpty(t, cfg.Vocabulary.CausalRelationTypes)
	assert.NotEmpty(t, cfg.Vocabulary.IntentPatterns)
}

func TestLoadVocabularyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "graphrag.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
causal_relation_types:
  - provokes
  - induces
intent_patterns:
  - intent: CAUSAL
    pattern: '(?i)\bprovokes\b'
    confidence: 0.8
`), 0o600))
	t.Setenv("GRAPHRAG_CONFIG_PATH", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"provokes", "induces"}, cfg.Vocabulary.CausalRelationTypes)
	require.Len(t, cfg.Vocabulary.IntentPatterns, 1)
	assert.Equal(t, "CAUSAL", cfg.Vocabulary.IntentPatterns[0].Intent)
}

func TestLoadBadVocabularyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("causal_relation_types: {not: a list}"), 0o600))
	t.Setenv("GRAPHRAG_CONFIG_PATH", path)

	_, err := Load()
	require.Error(t, err)
}

func TestDefaultVocabularyPatternsCompile(t *testing.T) {
	for _, p := range DefaultVocabulary().IntentPatterns {
		assert.NotEmpty(t, p.Intent)
		assert.NotEmpty(t, p.Pattern)
	}
}
