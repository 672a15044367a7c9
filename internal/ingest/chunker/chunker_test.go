package chunker

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alecKarfonta/graphrag/internal/platform/logger"
)

func newTestChunker(cfg Config) *Chunker {
	return New(logger.NewNop(), cfg, nil)
}

func TestChunkSingleSentence(t *testing.T) {
	c := newTestChunker(DefaultConfig())
	chunks, err := c.Chunk(context.Background(), Input{
		DocumentID: "doc-1",
		Name:       "note.txt",
		Domain:     "general",
		Text:       "Alice works for Acme.",
	})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Ordinal)
	assert.Equal(t, "Alice works for Acme.", chunks[0].Text)
	assert.Equal(t, "doc-1", chunks[0].DocumentID)
	assert.Equal(t, "general", chunks[0].Domain)
}

func TestChunkEmptyDocument(t *testing.T) {
	c := newTestChunker(DefaultConfig())
	_, err := c.Chunk(context.Background(), Input{DocumentID: "d", Name: "x", Text: "   \n  "})
	require.Error(t, err)
}

func TestChunkOrdinalsDense(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TokenBudget = 20
	cfg.TokenBudgetSlack = 0
	cfg.OverlapSentences = 1
	c := newTestChunker(cfg)

	var b strings.Builder
	for i := 0; i < 40; i++ {
		b.WriteString("The quick brown fox jumps over the lazy dog near the river. ")
	}
	chunks, err := c.Chunk(context.Background(), Input{DocumentID: "d", Name: "x", Text: b.String()})
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	for i, ch := range chunks {
		assert.Equal(t, i, ch.Ordinal)
		assert.NotEmpty(t, ch.Text)
	}
}

func TestChunkCoversInput(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TokenBudget = 30
	cfg.TokenBudgetSlack = 0
	cfg.OverlapSentences = 0
	c := newTestChunker(cfg)

	text := "First sentence of the document. Second sentence goes here. Third sentence follows. Fourth sentence ends it."
	chunks, err := c.Chunk(context.Background(), Input{DocumentID: "d", Name: "x", Text: text})
	require.NoError(t, err)

	joined := ""
	for _, ch := range chunks {
		joined += " " + ch.Text
	}
	for _, sentence := range []string{
		"First sentence of the document.",
		"Second sentence goes here.",
		"Third sentence follows.",
		"Fourth sentence ends it.",
	} {
		assert.Contains(t, joined, sentence)
	}
}

func TestChunkSectionPaths(t *testing.T) {
	c := newTestChunker(DefaultConfig())
	text := "# Intro\nSome introduction text here.\n\n## Details\nDeeper detail text follows here.\n"
	chunks, err := c.Chunk(context.Background(), Input{DocumentID: "d", Name: "x.md", Format: "md", Text: text})
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, []string{"Intro"}, chunks[0].SectionPath)
	assert.Equal(t, []string{"Intro", "Details"}, chunks[1].SectionPath)
}

func TestOverlapStaysWithinSection(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TokenBudget = 10
	cfg.TokenBudgetSlack = 0
	cfg.OverlapSentences = 2
	c := newTestChunker(cfg)

	text := "# A\nAlpha one is the first sentence here. Alpha two is the second sentence here.\n# B\nBeta one is the first sentence here. Beta two is the second sentence here.\n"
	chunks, err := c.Chunk(context.Background(), Input{DocumentID: "d", Name: "x", Text: text})
	require.NoError(t, err)
	for _, ch := range chunks {
		if len(ch.SectionPath) > 0 && ch.SectionPath[0] == "A" {
			assert.NotContains(t, ch.Text, "Beta")
		}
		if len(ch.SectionPath) > 0 && ch.SectionPath[0] == "B" {
			assert.NotContains(t, ch.Text, "Alpha")
		}
	}
}

func TestChunkCSVRowPerChunk(t *testing.T) {
	c := newTestChunker(DefaultConfig())
	text := "name,city\nAlice,Paris\nBob,Berlin\n"
	chunks, err := c.Chunk(context.Background(), Input{DocumentID: "d", Name: "x.csv", Format: "csv", Text: text})
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Contains(t, chunks[0].Text, "name: Alice")
	assert.Contains(t, chunks[0].Text, "city: Paris")
	assert.Contains(t, chunks[1].Text, "name: Bob")
}

func TestChunkJSONRecordPerChunk(t *testing.T) {
	c := newTestChunker(DefaultConfig())
	text := `[{"name":"Alice","city":"Paris"},{"name":"Bob","city":"Berlin"}]`
	chunks, err := c.Chunk(context.Background(), Input{DocumentID: "d", Name: "x.json", Format: "json", Text: text})
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Contains(t, chunks[0].Text, "name: Alice")
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	return nil, assert.AnError
}

func TestSemanticDegradesToStructural(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Strategy = StrategySemantic
	c := New(logger.NewNop(), cfg, failingEmbedder{})

	chunks, err := c.Chunk(context.Background(), Input{DocumentID: "d", Name: "x", Text: "One sentence. Another sentence."})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
}

type stubEmbedder struct {
	vecs map[string][]float32
}

func (s stubEmbedder) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	out := make([][]float32, len(inputs))
	for i, in := range inputs {
		if v, ok := s.vecs[in]; ok {
			out[i] = v
		} else {
			out[i] = []float32{1, 0}
		}
	}
	return out, nil
}

func TestSemanticSplitsOnTopicShift(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Strategy = StrategySemantic
	emb := stubEmbedder{vecs: map[string][]float32{
		"Cats are small mammals.":     {1, 0},
		"Cats enjoy sleeping all day.": {0.95, 0.05},
		"Quantum physics is strange.": {0, 1},
	}}
	c := New(logger.NewNop(), cfg, emb)

	text := "Cats are small mammals. Cats enjoy sleeping all day. Quantum physics is strange."
	chunks, err := c.Chunk(context.Background(), Input{DocumentID: "d", Name: "x", Text: text})
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Contains(t, chunks[0].Text, "Cats")
	assert.Contains(t, chunks[1].Text, "Quantum")
}
