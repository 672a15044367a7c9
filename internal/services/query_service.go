package services

import (
	"context"
	"strings"

	"github.com/alecKarfonta/graphrag/internal/domain"
	"github.com/alecKarfonta/graphrag/internal/platform/apierr"
	"github.com/alecKarfonta/graphrag/internal/platform/llm"
	"github.com/alecKarfonta/graphrag/internal/platform/logger"
	"github.com/alecKarfonta/graphrag/internal/retrieval/hybrid"
	"github.com/alecKarfonta/graphrag/internal/retrieval/planner"
	"github.com/alecKarfonta/graphrag/internal/retrieval/reasoning"
)

// QueryService wires planner, retriever, reasoning and answer synthesis into
// the query-side operations the API exposes.
type QueryService struct {
	log        *logger.Logger
	planner    *planner.Planner
	retriever  *hybrid.Retriever
	reasoner   *reasoning.Engine
	llm        llm.Client
	disableLLM bool
}

func NewQueryService(log *logger.Logger, p *planner.Planner, r *hybrid.Retriever, e *reasoning.Engine, llmClient llm.Client, disableLLM bool) *QueryService {
	return &QueryService{
		log:        log.With("service", "QueryService"),
		planner:    p,
		retriever:  r,
		reasoner:   e,
		llm:        llmClient,
		disableLLM: disableLLM,
	}
}

// SearchResult is the response body shared by the search endpoints.
type SearchResult struct {
	Status             string               `json:"status"`
	Query              string               `json:"query"`
	SearchType         string               `json:"search_type"`
	Results            []hybrid.ScoredChunk `json:"results"`
	Entities           []domain.Entity      `json:"entities,omitempty"`
	QueryAnalysis      domain.QueryPlan     `json:"query_analysis"`
	DegradedStrategies []string             `json:"degraded_strategies,omitempty"`
	Partial            bool                 `json:"partial"`
}

// Search runs the hybrid (or single-strategy) retrieval path.
func (s *QueryService) Search(ctx context.Context, query, searchType, domainTag string, topK int) (SearchResult, error) {
	out := SearchResult{Query: query, SearchType: searchType}
	if strings.TrimSpace(query) == "" {
		return out, apierr.Invalid("query_required", nil)
	}

	plan, err := s.planner.Plan(ctx, query)
	if err != nil {
		return out, err
	}
	out.QueryAnalysis = plan

	opts := hybrid.Options{TopK: topK, Domain: domainTag}
	switch searchType {
	case "", "hybrid":
		out.SearchType = "hybrid"
	case "vector":
		opts.Only = domain.StrategyVector
	case "graph":
		opts.Only = domain.StrategyGraph
	case "keyword":
		opts.Only = domain.StrategyKeyword
	default:
		return out, apierr.Invalid("bad_search_type", nil)
	}

	result, err := s.retriever.Retrieve(ctx, plan, opts)
	if err != nil {
		return out, err
	}
	out.Results = result.Chunks
	out.Entities = result.Entities
	out.DegradedStrategies = result.DegradedStrategies
	out.Partial = result.Partial
	out.Status = statusOf(result.Partial)
	return out, nil
}

// EnhancedResult is the full plan + retrieve + reason + answer response.
type EnhancedResult struct {
	Status             string                 `json:"status"`
	Query              string                 `json:"query"`
	Answer             string                 `json:"answer"`
	Chunks             []hybrid.ScoredChunk   `json:"chunks"`
	Entities           []domain.Entity        `json:"entities,omitempty"`
	Paths              []domain.ReasoningPath `json:"paths,omitempty"`
	QueryAnalysis      domain.QueryPlan       `json:"query_analysis"`
	DegradedStrategies []string               `json:"degraded_strategies,omitempty"`
	Degraded           bool                   `json:"degraded"`
	Partial            bool                   `json:"partial"`
}

// EnhancedQuery plans, retrieves, reasons and synthesizes an answer. An
// empty corpus or a failed synthesizer degrades rather than errors.
func (s *QueryService) EnhancedQuery(ctx context.Context, query string) (EnhancedResult, error) {
	out := EnhancedResult{Query: query}
	if strings.TrimSpace(query) == "" {
		return out, apierr.Invalid("query_required", nil)
	}

	plan, err := s.planner.Plan(ctx, query)
	if err != nil {
		return out, err
	}
	out.QueryAnalysis = plan

	retrieved, err := s.retriever.Retrieve(ctx, plan, hybrid.Options{})
	if err != nil {
		return out, err
	}
	out.Chunks = retrieved.Chunks
	out.Entities = retrieved.Entities
	out.DegradedStrategies = retrieved.DegradedStrategies
	out.Partial = retrieved.Partial

	if s.reasoner != nil {
		out.Paths = s.reasoner.Paths(ctx, plan, retrieved.Chunks)
	}

	if len(out.Chunks) == 0 {
		out.Degraded = true
		out.Status = statusOf(out.Partial)
		return out, nil
	}

	answer, degraded := s.synthesize(ctx, query, out.Chunks, out.Paths)
	out.Answer = answer
	out.Degraded = out.Degraded || degraded
	out.Status = statusOf(out.Partial)
	return out, nil
}

// ReasoningResult carries the path-centric endpoints' payload.
type ReasoningResult struct {
	Status        string                 `json:"status"`
	Query         string                 `json:"query"`
	Kind          domain.ReasoningKind   `json:"kind"`
	Paths         []domain.ReasoningPath `json:"paths"`
	QueryAnalysis domain.QueryPlan       `json:"query_analysis"`
	Degraded      bool                   `json:"degraded"`
}

// Reasoning runs one specific reasoning kind regardless of what the planner
// would pick.
func (s *QueryService) Reasoning(ctx context.Context, query string, kind domain.ReasoningKind, maxHops int) (ReasoningResult, error) {
	out := ReasoningResult{Query: query, Kind: kind}
	if strings.TrimSpace(query) == "" {
		return out, apierr.Invalid("query_required", nil)
	}

	plan, err := s.planner.Plan(ctx, query)
	if err != nil {
		return out, err
	}
	if maxHops >= 1 && maxHops <= 4 {
		plan.MaxHops = maxHops
	}
	plan.Reasoning = kind
	out.QueryAnalysis = plan

	var paths []domain.ReasoningPath
	var rerr error
	switch kind {
	case domain.ReasoningCausal:
		paths, rerr = s.reasoner.CausalChains(ctx, plan)
	case domain.ReasoningComparative:
		paths, rerr = s.reasoner.Comparative(ctx, plan)
	case domain.ReasoningMultiHop:
		paths, rerr = s.reasoner.MultiHop(ctx, plan)
	default:
		paths, rerr = s.reasoner.DirectPaths(ctx, plan)
	}
	if rerr != nil {
		// Degrade to the retrieval-backed fallback path builder.
		retrieved, err := s.retriever.Retrieve(ctx, plan, hybrid.Options{})
		if err != nil {
			return out, rerr
		}
		paths = s.reasoner.Paths(ctx, plan, retrieved.Chunks)
		out.Degraded = true
	}
	out.Paths = paths
	out.Status = statusOf(out.Degraded)
	return out, nil
}

// AnalyzeIntent exposes the planner's decision for a query.
func (s *QueryService) AnalyzeIntent(ctx context.Context, query string) (domain.QueryPlan, error) {
	if strings.TrimSpace(query) == "" {
		return domain.QueryPlan{}, apierr.Invalid("query_required", nil)
	}
	return s.planner.Plan(ctx, query)
}

func statusOf(partial bool) string {
	if partial {
		return "partial"
	}
	return "success"
}
