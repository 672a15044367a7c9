package planner

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/alecKarfonta/graphrag/internal/config"
	"github.com/alecKarfonta/graphrag/internal/domain"
	"github.com/alecKarfonta/graphrag/internal/graph"
	"github.com/alecKarfonta/graphrag/internal/platform/llm"
	"github.com/alecKarfonta/graphrag/internal/platform/logger"
	"github.com/alecKarfonta/graphrag/internal/platform/ner"
)

const (
	llmFallbackThreshold = 0.6
	knownFuzzyRatio      = 0.9
)

// GenerationReader exposes the store generation so the cached entity index
// refreshes after ingests and deletes.
type GenerationReader interface {
	Generation(ctx context.Context) int64
}

// Planner classifies query intent and emits weighted strategy components.
// Pure with respect to the stores: the only side effect is the entity-index
// cache refresh.
type Planner struct {
	log        *logger.Logger
	graph      graph.Store
	ner        ner.Client
	llm        llm.Client
	gen        GenerationReader
	disableLLM bool

	patterns []compiledPattern

	mu         sync.Mutex
	indexGen   int64
	indexFresh bool
	index      []graph.EntityRef
}

type compiledPattern struct {
	intent     domain.Intent
	re         *regexp.Regexp
	confidence float64
}

func New(log *logger.Logger, vocab config.Vocabulary, graphStore graph.Store, nerClient ner.Client, llmClient llm.Client, gen GenerationReader, disableLLM bool) (*Planner, error) {
	p := &Planner{
		log:        log.With("service", "QueryPlanner"),
		graph:      graphStore,
		ner:        nerClient,
		llm:        llmClient,
		gen:        gen,
		disableLLM: disableLLM,
	}
	for _, pat := range vocab.IntentPatterns {
		re, err := regexp.Compile(pat.Pattern)
		if err != nil {
			return nil, err
		}
		p.patterns = append(p.patterns, compiledPattern{
			intent:     domain.Intent(strings.ToUpper(pat.Intent)),
			re:         re,
			confidence: pat.Confidence,
		})
	}
	return p, nil
}

// Plan classifies the query and selects strategy weights. Pure function of
// the query and the current entity vocabulary.
func (p *Planner) Plan(ctx context.Context, query string) (domain.QueryPlan, error) {
	plan := domain.QueryPlan{Query: query}
	query = strings.TrimSpace(query)
	if query == "" {
		plan.Intent = domain.IntentFactual
		plan.Complexity = domain.ComplexityLow
		plan.MaxHops = 1
		plan.Strategies = weightTable[domain.IntentFactual].components(0)
		return plan, nil
	}

	intent, confidence, patternHits := p.classify(ctx, query)
	plan.Intent = intent
	plan.Confidence = confidence

	entities := p.queryEntities(ctx, query)
	plan.Entities = entities

	known := 0
	for _, e := range entities {
		if e.Known {
			known++
		}
	}

	row := weightTable[intent]
	plan.Strategies = row.components(known)
	plan.Reasoning = row.reasoning

	plan.Complexity, plan.MaxHops = complexity(known, patternHits, row.reasoning)
	plan.Expansion = p.expandTerms(ctx, entities)
	return plan, nil
}

// classify is rule-first; the LLM collaborator only breaks low-confidence
// ties and is skipped entirely when disabled.
func (p *Planner) classify(ctx context.Context, query string) (domain.Intent, float64, int) {
	best := domain.IntentFactual
	bestConf := 0.0
	hits := 0
	for _, pat := range p.patterns {
		if pat.re.MatchString(query) {
			hits++
			if pat.confidence > bestConf {
				bestConf = pat.confidence
				best = pat.intent
			}
		}
	}
	if bestConf >= llmFallbackThreshold || p.llm == nil || p.disableLLM {
		if bestConf == 0 {
			bestConf = 0.5
		}
		return best, bestConf, hits
	}

	intent, conf, err := p.llmClassify(ctx, query)
	if err != nil {
		p.log.Warn("llm intent classification failed, using rules", "error", err)
		if bestConf == 0 {
			bestConf = 0.5
		}
		return best, bestConf, hits
	}
	return intent, conf, hits
}

var intentSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"intent": map[string]any{
			"type": "string",
			"enum": []string{"FACTUAL", "COMPARATIVE", "CAUSAL", "ANALYTICAL", "TEMPORAL", "PROCEDURAL"},
		},
		"confidence": map[string]any{"type": "number"},
	},
	"required":             []string{"intent", "confidence"},
	"additionalProperties": false,
}

func (p *Planner) llmClassify(ctx context.Context, query string) (domain.Intent, float64, error) {
	raw, err := p.llm.GenerateJSON(ctx,
		"Classify the retrieval intent of the question.",
		query, "intent", intentSchema)
	if err != nil {
		return domain.IntentFactual, 0, err
	}
	intent, _ := raw["intent"].(string)
	conf, _ := raw["confidence"].(float64)
	switch domain.Intent(intent) {
	case domain.IntentFactual, domain.IntentComparative, domain.IntentCausal,
		domain.IntentAnalytical, domain.IntentTemporal, domain.IntentProcedural:
		return domain.Intent(intent), conf, nil
	default:
		return domain.IntentFactual, 0.5, nil
	}
}

// queryEntities merges NER spans with a noun-chunk heuristic and promotes
// matches against the graph entity index to known.
func (p *Planner) queryEntities(ctx context.Context, query string) []domain.QueryEntity {
	names := map[string]string{} // normalized -> surface

	if p.ner != nil {
		if spans, err := p.ner.Extract(ctx, query); err == nil {
			for _, span := range spans {
				norm := domain.NormalizeName(span.Text)
				if norm != "" {
					names[norm] = strings.TrimSpace(span.Text)
				}
			}
		} else {
			p.log.Warn("query ner failed, heuristics only", "error", err)
		}
	}
	for _, chunk := range nounChunks(query) {
		norm := domain.NormalizeName(chunk)
		if norm != "" {
			if _, ok := names[norm]; !ok {
				names[norm] = chunk
			}
		}
	}
	if len(names) == 0 {
		return nil
	}

	index := p.entityIndex(ctx)
	var out []domain.QueryEntity
	for norm, surface := range names {
		qe := domain.QueryEntity{Name: surface}
		if ref := matchIndex(index, norm); ref != nil {
			qe.Known = true
			qe.EntityID = ref.ID
		}
		out = append(out, qe)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func matchIndex(index []graph.EntityRef, norm string) *graph.EntityRef {
	for i := range index {
		ref := &index[i]
		if domain.NormalizeName(ref.Name) == norm {
			return ref
		}
		for _, alias := range ref.Aliases {
			if domain.NormalizeName(alias) == norm {
				return ref
			}
		}
	}
	// Fuzzy pass second so exact matches always win.
	for i := range index {
		ref := &index[i]
		if fuzzyRatio(domain.NormalizeName(ref.Name), norm) >= knownFuzzyRatio {
			return ref
		}
	}
	return nil
}

// entityIndex caches the graph's entity vocabulary, refreshed whenever the
// store generation moves. Without a generation source there is nothing to
// observe invalidation with, so the index reloads on every plan.
func (p *Planner) entityIndex(ctx context.Context) []graph.EntityRef {
	if p.graph == nil {
		return nil
	}
	gen := int64(-1)
	if p.gen != nil {
		gen = p.gen.Generation(ctx)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.indexFresh && gen >= 0 && gen == p.indexGen {
		return p.index
	}
	index, err := p.graph.EntityIndex(ctx)
	if err != nil {
		p.log.Warn("entity index load failed", "error", err)
		return p.index
	}
	p.index = index
	p.indexGen = gen
	p.indexFresh = true
	return p.index
}

// expandTerms adds aliases and 1-hop related entity names for the keyword
// strategy.
func (p *Planner) expandTerms(ctx context.Context, entities []domain.QueryEntity) []string {
	if p.graph == nil {
		return nil
	}
	seen := map[string]bool{}
	var out []string
	add := func(term string) {
		norm := domain.NormalizeName(term)
		if norm == "" || seen[norm] {
			return
		}
		seen[norm] = true
		out = append(out, term)
	}

	for _, qe := range entities {
		if !qe.Known {
			continue
		}
		refs, err := p.graph.EntitiesByIDs(ctx, []string{qe.EntityID})
		if err != nil || len(refs) == 0 {
			continue
		}
		for _, alias := range refs[0].Aliases {
			add(alias)
		}
		paths, err := p.graph.Neighbors(ctx, qe.EntityID, 1, nil)
		if err != nil {
			continue
		}
		for _, path := range paths {
			for _, ent := range path.Entities {
				if ent.ID != qe.EntityID {
					add(ent.Name)
				}
			}
		}
	}
	sort.Strings(out)
	return out
}
