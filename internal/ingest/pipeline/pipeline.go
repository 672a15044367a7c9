package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/alecKarfonta/graphrag/internal/domain"
	"github.com/alecKarfonta/graphrag/internal/graph"
	"github.com/alecKarfonta/graphrag/internal/ingest/chunker"
	"github.com/alecKarfonta/graphrag/internal/ingest/extractor"
	"github.com/alecKarfonta/graphrag/internal/platform/apierr"
	"github.com/alecKarfonta/graphrag/internal/platform/logger"
	"github.com/alecKarfonta/graphrag/internal/platform/qdrant"
	"github.com/alecKarfonta/graphrag/internal/retrieval/keyword"
)

// Embedder is the slice of the LLM client the pipeline embeds with.
type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// GenerationBumper invalidates retrieval caches after any store write.
type GenerationBumper interface {
	BumpGeneration(ctx context.Context)
}

type Config struct {
	ChunkConcurrency  int           // B: concurrent chunk extractions per document
	GlobalConcurrency int           // cap across documents
	ExtractTimeout    time.Duration // T_extract per chunk
	EmbedBatchSize    int
}

func DefaultConfig() Config {
	return Config{
		ChunkConcurrency:  8,
		GlobalConcurrency: 32,
		ExtractTimeout:    30 * time.Second,
		EmbedBatchSize:    64,
	}
}

type Deps struct {
	Log       *logger.Logger
	Chunker   *chunker.Chunker
	Extractor *extractor.Extractor
	Graph     graph.Store
	Vec       qdrant.Store
	Embedder  Embedder
	Keyword   *keyword.Index
	Cache     GenerationBumper
}

// Pipeline owns all writes to the graph and vector stores.
type Pipeline struct {
	log       *logger.Logger
	cfg       Config
	deps      Deps
	globalSem *semaphore.Weighted
}

func New(deps Deps, cfg Config) (*Pipeline, error) {
	if deps.Log == nil || deps.Chunker == nil || deps.Extractor == nil {
		return nil, fmt.Errorf("pipeline: missing deps")
	}
	if cfg.ChunkConcurrency < 1 {
		cfg.ChunkConcurrency = 8
	}
	if cfg.GlobalConcurrency < 1 {
		cfg.GlobalConcurrency = 32
	}
	if cfg.ExtractTimeout <= 0 {
		cfg.ExtractTimeout = 30 * time.Second
	}
	if cfg.EmbedBatchSize < 1 {
		cfg.EmbedBatchSize = 64
	}
	return &Pipeline{
		log:       deps.Log.With("service", "IngestPipeline"),
		cfg:       cfg,
		deps:      deps,
		globalSem: semaphore.NewWeighted(int64(cfg.GlobalConcurrency)),
	}, nil
}

// Input is one document to ingest.
type Input struct {
	Name    string
	Domain  string
	Format  string
	Text    string
	BuildKG bool
}

// Output is the per-document accounting returned to the caller.
type Output struct {
	DocumentID   string                `json:"document_id"`
	Name         string                `json:"name"`
	Status       domain.DocumentStatus `json:"status"`
	Chunks       int                   `json:"chunks"`
	Entities     int                   `json:"entities"`
	Relations    int                   `json:"relations"`
	FailedChunks int                   `json:"failed_chunks,omitempty"`
	VectorsSkipped bool                `json:"vectors_skipped,omitempty"`
}

// IngestDocument runs the full received→chunked→indexed flow. Chunk-level
// extraction failures degrade the document to partial; they never fail it.
func (p *Pipeline) IngestDocument(ctx context.Context, in Input) (Output, error) {
	out := Output{Name: in.Name}
	if strings.TrimSpace(in.Name) == "" {
		return out, apierr.Invalid("document_name_required", nil)
	}

	docID := domain.DocumentID(in.Name)
	out.DocumentID = docID
	doc := domain.Document{
		ID:     docID,
		Name:   in.Name,
		Domain: in.Domain,
		Status: domain.DocumentReceived,
	}
	if p.deps.Graph != nil {
		if err := withRetry(ctx, func(ctx context.Context) error {
			return p.deps.Graph.UpsertDocument(ctx, doc)
		}); err != nil {
			return out, err
		}
	}

	chunks, err := p.deps.Chunker.Chunk(ctx, chunker.Input{
		DocumentID: docID,
		Name:       in.Name,
		Domain:     in.Domain,
		Format:     in.Format,
		Text:       in.Text,
	})
	if err != nil {
		p.markStatus(ctx, docID, domain.DocumentPartial)
		return out, err
	}
	out.Chunks = len(chunks)

	if p.deps.Graph != nil {
		if err := withRetry(ctx, func(ctx context.Context) error {
			return p.deps.Graph.UpsertChunks(ctx, chunks)
		}); err != nil {
			p.markStatus(ctx, docID, domain.DocumentPartial)
			return out, err
		}
		p.markStatus(ctx, docID, domain.DocumentChunked)
	}

	// Graph and vector writes for a chunk are independent; both sides retry
	// until success or abandonment, with no cross-store transaction.
	g, gctx := errgroup.WithContext(ctx)

	var embedFailed bool
	g.Go(func() error {
		if p.deps.Vec == nil || p.deps.Embedder == nil {
			out.VectorsSkipped = true
			return nil
		}
		if err := p.embedChunks(gctx, chunks); err != nil {
			p.log.Warn("embedding failed, document degraded", "document", in.Name, "error", err)
			embedFailed = true
		}
		return nil
	})

	var failedChunks int
	var entities, relations int
	g.Go(func() error {
		if !in.BuildKG || p.deps.Graph == nil {
			return nil
		}
		var err error
		entities, relations, failedChunks, err = p.extractChunks(gctx, in, chunks)
		return err
	})

	if err := g.Wait(); err != nil {
		p.markStatus(ctx, docID, domain.DocumentPartial)
		return out, err
	}
	out.Entities = entities
	out.Relations = relations
	out.FailedChunks = failedChunks

	if p.deps.Keyword != nil {
		p.deps.Keyword.Add(chunks)
	}
	if p.deps.Cache != nil {
		p.deps.Cache.BumpGeneration(ctx)
	}

	status := domain.DocumentIndexed
	if failedChunks > 0 || embedFailed {
		status = domain.DocumentPartial
	}
	out.Status = status
	p.markStatus(ctx, docID, status)

	p.log.Info("document ingested",
		"document", in.Name,
		"chunks", out.Chunks,
		"entities", out.Entities,
		"relations", out.Relations,
		"failed_chunks", failedChunks,
		"status", status,
	)
	return out, nil
}

func (p *Pipeline) embedChunks(ctx context.Context, chunks []domain.Chunk) error {
	for start := 0; start < len(chunks); start += p.cfg.EmbedBatchSize {
		end := start + p.cfg.EmbedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}
		var vectors [][]float32
		if err := withRetry(ctx, func(ctx context.Context) error {
			var err error
			vectors, err = p.deps.Embedder.Embed(ctx, texts)
			return err
		}); err != nil {
			return err
		}
		if len(vectors) != len(batch) {
			return apierr.Integrity("embedding_count_mismatch", fmt.Errorf(
				"embedded %d of %d chunks", len(vectors), len(batch)))
		}

		points := make([]qdrant.Point, len(batch))
		for i, c := range batch {
			points[i] = qdrant.Point{
				ID:     c.ID,
				Vector: vectors[i],
				Payload: map[string]any{
					"document_id":  c.DocumentID,
					"domain":       c.Domain,
					"ordinal":      c.Ordinal,
					"section_path": c.SectionPath,
					"text":         c.Text,
				},
			}
		}
		if err := withRetry(ctx, func(ctx context.Context) error {
			return p.deps.Vec.Upsert(ctx, points)
		}); err != nil {
			return err
		}
	}
	return nil
}

// extractChunks fans extraction out over B workers under the global
// semaphore. Each chunk gets a hard deadline and retry; terminal failures
// are counted, not fatal.
func (p *Pipeline) extractChunks(ctx context.Context, in Input, chunks []domain.Chunk) (entities, relations, failed int, err error) {
	resolver := extractor.NewResolver()
	relationSet := extractor.NewRelationSet()

	var mu sync.Mutex
	nameToID := map[string]string{}
	var failedCount int

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.ChunkConcurrency)

	for _, c := range chunks {
		c := c
		g.Go(func() error {
			if err := p.globalSem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer p.globalSem.Release(1)

			var result extractor.Result
			extractErr := withRetry(gctx, func(ctx context.Context) error {
				cctx, cancel := context.WithTimeout(ctx, p.cfg.ExtractTimeout)
				defer cancel()
				var err error
				result, err = p.deps.Extractor.Extract(cctx, c)
				return err
			})
			if extractErr != nil {
				p.log.Warn("chunk extraction failed",
					"document", in.Name,
					"chunk_id", c.ID,
					"error", extractErr,
				)
				mu.Lock()
				failedCount++
				mu.Unlock()
				return nil
			}

			mu.Lock()
			defer mu.Unlock()
			for _, ent := range result.Entities {
				ent.Domain = in.Domain
				id := resolver.Resolve(ent, c.ID)
				if id != "" {
					nameToID[domain.NormalizeName(ent.Name)] = id
				}
			}
			for _, rel := range result.Relations {
				sourceID := nameToID[domain.NormalizeName(rel.SourceName)]
				targetID := nameToID[domain.NormalizeName(rel.TargetName)]
				if sourceID == "" || targetID == "" {
					continue
				}
				relationSet.Add(domain.Relation{
					SourceID:   sourceID,
					TargetID:   targetID,
					Type:       rel.Type,
					Confidence: rel.Confidence,
					Domain:     in.Domain,
				}, rel.Evidence)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, 0, failedCount, err
	}

	resolved := resolver.Entities()
	merged := relationSet.Relations()
	mentions := resolver.Mentions()

	if err := withRetry(ctx, func(ctx context.Context) error {
		return p.deps.Graph.UpsertEntities(ctx, resolved)
	}); err != nil {
		return 0, 0, failedCount, err
	}
	if err := withRetry(ctx, func(ctx context.Context) error {
		return p.deps.Graph.UpsertRelations(ctx, merged)
	}); err != nil {
		return 0, 0, failedCount, err
	}
	if err := withRetry(ctx, func(ctx context.Context) error {
		return p.deps.Graph.UpsertMentions(ctx, mentions)
	}); err != nil {
		return 0, 0, failedCount, err
	}
	return len(resolved), len(merged), failedCount, nil
}

// DeleteDocument co-deletes every asset of a document across both stores.
func (p *Pipeline) DeleteDocument(ctx context.Context, name string) error {
	docID := domain.DocumentID(name)

	if p.deps.Vec != nil {
		if err := withRetry(ctx, func(ctx context.Context) error {
			return p.deps.Vec.DeleteByFilter(ctx, map[string]any{"document_id": docID})
		}); err != nil && apierr.KindOf(err) != apierr.KindNotFound {
			return err
		}
	}
	if p.deps.Graph != nil {
		if err := withRetry(ctx, func(ctx context.Context) error {
			return p.deps.Graph.DeleteDocument(ctx, docID)
		}); err != nil {
			return err
		}
	}
	if p.deps.Keyword != nil {
		p.deps.Keyword.RemoveDocument(docID)
	}
	if p.deps.Cache != nil {
		p.deps.Cache.BumpGeneration(ctx)
	}
	return nil
}

// Clear wipes both stores and the keyword index.
func (p *Pipeline) Clear(ctx context.Context) error {
	if p.deps.Vec != nil {
		if err := p.deps.Vec.Clear(ctx); err != nil {
			return err
		}
	}
	if p.deps.Graph != nil {
		if err := p.deps.Graph.Clear(ctx); err != nil {
			return err
		}
	}
	if p.deps.Keyword != nil {
		p.deps.Keyword.Reset(nil)
	}
	if p.deps.Cache != nil {
		p.deps.Cache.BumpGeneration(ctx)
	}
	return nil
}

func (p *Pipeline) markStatus(ctx context.Context, docID string, status domain.DocumentStatus) {
	if p.deps.Graph == nil {
		return
	}
	if err := p.deps.Graph.SetDocumentStatus(ctx, docID, status); err != nil {
		p.log.Warn("status update failed", "document_id", docID, "status", status, "error", err)
	}
}
