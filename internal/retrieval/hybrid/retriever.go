package hybrid

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alecKarfonta/graphrag/internal/domain"
	"github.com/alecKarfonta/graphrag/internal/graph"
	"github.com/alecKarfonta/graphrag/internal/observability"
	"github.com/alecKarfonta/graphrag/internal/platform/cache"
	"github.com/alecKarfonta/graphrag/internal/platform/logger"
	"github.com/alecKarfonta/graphrag/internal/platform/qdrant"
	"github.com/alecKarfonta/graphrag/internal/retrieval/keyword"
)

const overFetchFactor = 4

// Embedder is the slice of the LLM client the vector strategy embeds with.
type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

type Config struct {
	GlobalTimeout   time.Duration
	StrategyTimeout time.Duration
	CacheTTL        time.Duration
	TopK            int
}

func DefaultConfig() Config {
	return Config{
		GlobalTimeout:   3 * time.Second,
		StrategyTimeout: 2 * time.Second,
		CacheTTL:        60 * time.Second,
		TopK:            10,
	}
}

// Retriever fans the plan's strategy components out concurrently and fuses
// their rankings. Read-only against the stores.
type Retriever struct {
	log      *logger.Logger
	cfg      Config
	graph    graph.Store
	vec      qdrant.Store
	embedder Embedder
	keyword  *keyword.Index
	cache    *cache.Cache
	metrics  *observability.Metrics
}

func New(log *logger.Logger, cfg Config, graphStore graph.Store, vec qdrant.Store, embedder Embedder, kw *keyword.Index, c *cache.Cache, metrics *observability.Metrics) *Retriever {
	if cfg.GlobalTimeout <= 0 {
		cfg.GlobalTimeout = 3 * time.Second
	}
	if cfg.StrategyTimeout <= 0 {
		cfg.StrategyTimeout = 2 * time.Second
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 10
	}
	return &Retriever{
		log:      log.With("service", "HybridRetriever"),
		cfg:      cfg,
		graph:    graphStore,
		vec:      vec,
		embedder: embedder,
		keyword:  kw,
		cache:    c,
		metrics:  metrics,
	}
}

// Options tune a single retrieval call.
type Options struct {
	TopK   int
	Domain string
	// Only, when set, restricts execution to a single strategy regardless of
	// the plan (the search-advanced vector/graph/keyword modes).
	Only domain.StrategyKind
}

// Result is the fused retrieval context.
type Result struct {
	Chunks             []ScoredChunk   `json:"chunks"`
	Entities           []domain.Entity `json:"entities,omitempty"`
	DegradedStrategies []string        `json:"degraded_strategies,omitempty"`
	Partial            bool            `json:"partial"`
	Confidence         float64         `json:"confidence"`
	FromCache          bool            `json:"from_cache,omitempty"`
}

// Retrieve executes the plan. Strategy failures and timeouts degrade the
// fusion to the surviving strategies; cancellation of ctx aborts all
// in-flight strategy work.
func (r *Retriever) Retrieve(ctx context.Context, plan domain.QueryPlan, opts Options) (Result, error) {
	topK := opts.TopK
	if topK <= 0 {
		topK = r.cfg.TopK
	}

	components := r.activeComponents(plan, opts)
	if len(components) == 0 {
		return Result{Partial: true}, nil
	}

	cacheKey := r.cacheKey(ctx, plan, opts, topK)
	if cacheKey != "" {
		var cached Result
		if r.cache.GetJSON(ctx, cacheKey, &cached) {
			cached.FromCache = true
			return cached, nil
		}
	}

	gctx, cancel := context.WithTimeout(ctx, r.cfg.GlobalTimeout)
	defer cancel()

	var mu sync.Mutex
	lists := make([]strategyList, 0, len(components))
	var degraded []string
	var graphEntities []domain.Entity
	degradedWeight := 0.0

	g, sctx := errgroup.WithContext(gctx)
	for _, comp := range components {
		comp := comp
		g.Go(func() error {
			cctx, ccancel := context.WithTimeout(sctx, r.cfg.StrategyTimeout)
			defer ccancel()
			start := time.Now()

			var hits []strategyHit
			var entities []domain.Entity
			var err error
			switch comp.Kind {
			case domain.StrategyVector:
				hits, err = r.vectorStrategy(cctx, plan, opts, topK)
			case domain.StrategyGraph:
				hits, entities, err = r.graphStrategy(cctx, plan, topK)
			case domain.StrategyKeyword:
				hits, err = r.keywordStrategy(cctx, plan, opts, topK)
			default:
				return nil
			}
			r.metrics.ObserveStrategy(string(comp.Kind), time.Since(start), err != nil)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				r.log.Warn("strategy degraded", "strategy", comp.Kind, "error", err)
				degraded = append(degraded, string(comp.Kind))
				degradedWeight += comp.Weight
				return nil
			}
			lists = append(lists, strategyList{kind: comp.Kind, weight: comp.Weight, hits: hits})
			graphEntities = append(graphEntities, entities...)
			return nil
		})
	}
	_ = g.Wait()

	// Fusion must not depend on strategy completion order.
	sort.Slice(lists, func(i, j int) bool { return lists[i].kind < lists[j].kind })
	sort.Strings(degraded)

	result := Result{
		Chunks:             fuse(lists, topK),
		Entities:           dedupeEntities(graphEntities),
		DegradedStrategies: degraded,
		Partial:            len(degraded) > 0,
		Confidence:         clip01(1 - degradedWeight),
	}

	if cacheKey != "" && !result.Partial {
		r.cache.SetJSON(ctx, cacheKey, result, r.cfg.CacheTTL)
	}
	return result, nil
}

func (r *Retriever) activeComponents(plan domain.QueryPlan, opts Options) []domain.StrategyComponent {
	candidates := plan.Strategies
	if opts.Only != "" {
		candidates = []domain.StrategyComponent{{Kind: opts.Only, Weight: 1}}
	}
	var out []domain.StrategyComponent
	for _, comp := range candidates {
		if comp.Weight <= 0 {
			continue
		}
		switch comp.Kind {
		case domain.StrategyVector:
			if r.vec == nil || r.embedder == nil {
				continue
			}
		case domain.StrategyGraph:
			if r.graph == nil {
				continue
			}
		case domain.StrategyKeyword:
			if r.keyword == nil {
				continue
			}
		}
		out = append(out, comp)
	}
	return out
}

func (r *Retriever) vectorStrategy(ctx context.Context, plan domain.QueryPlan, opts Options, topK int) ([]strategyHit, error) {
	vectors, err := r.embedder.Embed(ctx, []string{plan.Query})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("expected one query vector, got %d", len(vectors))
	}

	var filter map[string]any
	if opts.Domain != "" {
		filter = map[string]any{"domain": opts.Domain}
	}
	matches, err := r.vec.Query(ctx, vectors[0], topK*overFetchFactor, filter)
	if err != nil {
		return nil, err
	}

	hits := make([]strategyHit, 0, len(matches))
	for _, m := range matches {
		hits = append(hits, strategyHit{chunk: chunkFromPayload(m), score: m.Score})
	}
	return hits, nil
}

// graphStrategy walks out from the plan's known entities, pivots to chunks
// through mentions and scores each chunk by Σ 1/(1+hops) × edge confidence.
func (r *Retriever) graphStrategy(ctx context.Context, plan domain.QueryPlan, topK int) ([]strategyHit, []domain.Entity, error) {
	entityHops := map[string]int{}
	entityConf := map[string]float64{}
	var seedIDs []string
	for _, qe := range plan.Entities {
		if qe.Known && qe.EntityID != "" {
			seedIDs = append(seedIDs, qe.EntityID)
			entityHops[qe.EntityID] = 0
			entityConf[qe.EntityID] = 1
		}
	}
	if len(seedIDs) == 0 {
		return nil, nil, nil
	}
	sort.Strings(seedIDs)

	maxHops := plan.MaxHops
	if maxHops < 1 {
		maxHops = 1
	}
	for _, seed := range seedIDs {
		paths, err := r.graph.Neighbors(ctx, seed, maxHops, nil)
		if err != nil {
			return nil, nil, err
		}
		for _, path := range paths {
			conf := 1.0
			for i, ent := range path.Entities {
				if i > 0 && i-1 < len(path.Edges) {
					conf *= path.Edges[i-1].Confidence
				}
				prior, seen := entityHops[ent.ID]
				if !seen || i < prior {
					entityHops[ent.ID] = i
					entityConf[ent.ID] = conf
				}
			}
		}
	}

	mentions, err := r.graph.ChunksMentioning(ctx, entityHops)
	if err != nil {
		return nil, nil, err
	}

	chunkScores := map[string]float64{}
	chunks := map[string]domain.Chunk{}
	for _, m := range mentions {
		conf := entityConf[m.EntityID]
		if conf == 0 {
			conf = 1
		}
		chunkScores[m.Chunk.ID] += 1 / (1 + float64(m.Hops)) * conf
		chunks[m.Chunk.ID] = m.Chunk
	}

	hits := make([]strategyHit, 0, len(chunkScores))
	for id, score := range chunkScores {
		hits = append(hits, strategyHit{chunk: chunks[id], score: score})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score == hits[j].score {
			return hits[i].chunk.ID < hits[j].chunk.ID
		}
		return hits[i].score > hits[j].score
	})
	if len(hits) > topK*overFetchFactor {
		hits = hits[:topK*overFetchFactor]
	}

	entityIDs := make([]string, 0, len(entityHops))
	for id := range entityHops {
		entityIDs = append(entityIDs, id)
	}
	sort.Strings(entityIDs)
	entities, err := r.graph.EntitiesByIDs(ctx, entityIDs)
	if err != nil {
		r.log.Warn("entity hydration failed", "error", err)
		entities = nil
	}
	return hits, entities, nil
}

func (r *Retriever) keywordStrategy(ctx context.Context, plan domain.QueryPlan, opts Options, topK int) ([]strategyHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	query := plan.Query
	if len(plan.Expansion) > 0 {
		query = query + " " + strings.Join(plan.Expansion, " ")
	}
	results := r.keyword.Search(query, topK*overFetchFactor, opts.Domain)
	hits := make([]strategyHit, 0, len(results))
	for _, res := range results {
		hits = append(hits, strategyHit{chunk: res.Chunk, score: res.Score})
	}
	return hits, nil
}

func (r *Retriever) cacheKey(ctx context.Context, plan domain.QueryPlan, opts Options, topK int) string {
	if r.cache == nil {
		return ""
	}
	gen := r.cache.Generation(ctx)
	planRaw, err := json.Marshal(plan)
	if err != nil {
		return ""
	}
	h := sha256.New()
	h.Write([]byte(plan.Query))
	h.Write([]byte{0})
	h.Write(planRaw)
	h.Write([]byte(fmt.Sprintf("|%s|%s|%d|%d", opts.Domain, opts.Only, topK, gen)))
	return "graphrag:retrieval:" + hex.EncodeToString(h.Sum(nil))[:32]
}

func chunkFromPayload(m qdrant.Match) domain.Chunk {
	c := domain.Chunk{ID: m.ID}
	if m.Payload == nil {
		return c
	}
	c.DocumentID, _ = m.Payload["document_id"].(string)
	c.Domain, _ = m.Payload["domain"].(string)
	c.Text, _ = m.Payload["text"].(string)
	if f, ok := m.Payload["ordinal"].(float64); ok {
		c.Ordinal = int(f)
	}
	if sp, ok := m.Payload["section_path"].([]any); ok {
		for _, s := range sp {
			if str, ok := s.(string); ok {
				c.SectionPath = append(c.SectionPath, str)
			}
		}
	}
	return c
}

func dedupeEntities(entities []domain.Entity) []domain.Entity {
	seen := map[string]bool{}
	out := make([]domain.Entity, 0, len(entities))
	for _, e := range entities {
		if e.ID == "" || seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
