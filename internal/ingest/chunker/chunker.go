package chunker

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/alecKarfonta/graphrag/internal/domain"
	"github.com/alecKarfonta/graphrag/internal/platform/apierr"
	"github.com/alecKarfonta/graphrag/internal/platform/logger"
)

// Strategy selects how free text is chunked. Tabular formats always chunk
// one record per chunk regardless of strategy.
type Strategy string

const (
	StrategyStructural Strategy = "structural"
	StrategySemantic   Strategy = "semantic"
)

// Embedder is the subset of the embedding client the semantic strategy needs.
type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

type Config struct {
	Strategy          Strategy
	TokenBudget       int     // soft budget per chunk
	TokenBudgetSlack  int     // budget tolerance
	OverlapSentences  int     // K sentences of overlap between adjacent chunks
	SemanticThreshold float64 // cosine distance from running centroid
}

func DefaultConfig() Config {
	return Config{
		Strategy:          StrategyStructural,
		TokenBudget:       800,
		TokenBudgetSlack:  200,
		OverlapSentences:  2,
		SemanticThreshold: 0.35,
	}
}

// Input is one raw document handed to the chunker.
type Input struct {
	DocumentID string
	Name       string
	Domain     string
	Format     string // txt | md | csv | json
	Text       string
}

type Chunker struct {
	log      *logger.Logger
	cfg      Config
	embedder Embedder
}

func New(log *logger.Logger, cfg Config, embedder Embedder) *Chunker {
	if cfg.TokenBudget <= 0 {
		cfg.TokenBudget = 800
	}
	if cfg.OverlapSentences < 0 {
		cfg.OverlapSentences = 0
	}
	if cfg.SemanticThreshold <= 0 {
		cfg.SemanticThreshold = 0.35
	}
	return &Chunker{
		log:      log.With("service", "Chunker"),
		cfg:      cfg,
		embedder: embedder,
	}
}

// Chunk splits a document into ordered chunks with dense ordinals from 0.
func (c *Chunker) Chunk(ctx context.Context, in Input) ([]domain.Chunk, error) {
	if strings.TrimSpace(in.Text) == "" {
		return nil, apierr.Invalid("empty_document", fmt.Errorf("document %q has no text", in.Name))
	}

	var pieces []piece
	var err error
	switch strings.ToLower(in.Format) {
	case "csv":
		pieces, err = csvPieces(in.Text)
	case "json":
		pieces, err = jsonPieces(in.Text)
	default:
		pieces, err = c.textPieces(ctx, in)
	}
	if err != nil {
		return nil, err
	}

	out := make([]domain.Chunk, 0, len(pieces))
	for _, p := range pieces {
		text := strings.TrimSpace(p.text)
		if text == "" {
			continue
		}
		ordinal := len(out)
		out = append(out, domain.Chunk{
			ID:          domain.ChunkID(in.DocumentID, ordinal),
			DocumentID:  in.DocumentID,
			Ordinal:     ordinal,
			Text:        text,
			SectionPath: p.section,
			Domain:      in.Domain,
			Extra:       p.extra,
		})
	}
	if len(out) == 0 {
		return nil, apierr.Invalid("empty_document", fmt.Errorf("document %q produced no chunks", in.Name))
	}
	return out, nil
}

type piece struct {
	text    string
	section []string
	extra   map[string]string
}

func (c *Chunker) textPieces(ctx context.Context, in Input) ([]piece, error) {
	sections := splitSections(in.Text)

	if c.cfg.Strategy == StrategySemantic && c.embedder != nil {
		pieces, err := c.semanticPieces(ctx, sections)
		if err == nil {
			return pieces, nil
		}
		c.log.Warn("semantic chunking degraded to structural", "document", in.Name, "error", err)
	}
	return c.structuralPieces(sections), nil
}

// csvPieces emits one chunk per row, labelled with the header.
func csvPieces(text string) ([]piece, error) {
	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, apierr.Invalid("bad_csv", err)
	}
	if len(records) == 0 {
		return nil, apierr.Invalid("empty_document", fmt.Errorf("csv has no rows"))
	}

	header := records[0]
	rows := records[1:]
	if len(rows) == 0 {
		// Headerless single-row file: treat the only row as data.
		rows = records
		header = nil
	}

	out := make([]piece, 0, len(rows))
	for i, row := range rows {
		var b strings.Builder
		for j, cell := range row {
			if strings.TrimSpace(cell) == "" {
				continue
			}
			if b.Len() > 0 {
				b.WriteString("; ")
			}
			if header != nil && j < len(header) && strings.TrimSpace(header[j]) != "" {
				b.WriteString(strings.TrimSpace(header[j]))
				b.WriteString(": ")
			}
			b.WriteString(strings.TrimSpace(cell))
		}
		if b.Len() == 0 {
			continue
		}
		out = append(out, piece{
			text:  b.String(),
			extra: map[string]string{"row": fmt.Sprintf("%d", i)},
		})
	}
	return out, nil
}

// jsonPieces emits one chunk per top-level array element, or a single chunk
// for a lone object.
func jsonPieces(text string) ([]piece, error) {
	trimmed := strings.TrimSpace(text)
	var records []json.RawMessage
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal([]byte(trimmed), &records); err != nil {
			return nil, apierr.Invalid("bad_json", err)
		}
	} else {
		if !json.Valid([]byte(trimmed)) {
			return nil, apierr.Invalid("bad_json", fmt.Errorf("not valid json"))
		}
		records = []json.RawMessage{json.RawMessage(trimmed)}
	}

	out := make([]piece, 0, len(records))
	for i, rec := range records {
		flat := flattenJSON(rec)
		if flat == "" {
			continue
		}
		out = append(out, piece{
			text:  flat,
			extra: map[string]string{"record": fmt.Sprintf("%d", i)},
		})
	}
	return out, nil
}

func flattenJSON(raw json.RawMessage) string {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err == nil {
		parts := make([]string, 0, len(obj))
		for k, v := range obj {
			parts = append(parts, fmt.Sprintf("%s: %v", k, scalarString(v)))
		}
		sort.Strings(parts)
		return strings.Join(parts, "; ")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	}
}

