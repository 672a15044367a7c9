package reasoning

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/alecKarfonta/graphrag/internal/domain"
	"github.com/alecKarfonta/graphrag/internal/graph"
	"github.com/alecKarfonta/graphrag/internal/platform/logger"
	"github.com/alecKarfonta/graphrag/internal/retrieval/hybrid"
)

const (
	maxPaths  = 5
	beamWidth = 4
)

// Engine builds explainable paths over the knowledge graph to accompany
// retrieved chunks. Graph failures fall back to co-occurrence reasoning over
// the fused chunks, so answers degrade instead of disappearing.
type Engine struct {
	log         *logger.Logger
	graph       graph.Store
	causalTypes map[string]bool
}

func New(log *logger.Logger, graphStore graph.Store, causalTypes []string) *Engine {
	set := make(map[string]bool, len(causalTypes))
	for _, t := range causalTypes {
		set[strings.ToLower(strings.TrimSpace(t))] = true
	}
	return &Engine{
		log:         log.With("service", "ReasoningEngine"),
		graph:       graphStore,
		causalTypes: set,
	}
}

// Paths produces up to five reasoning paths for the plan's kind. The fused
// chunks provide evidence and the co-occurrence fallback.
func (e *Engine) Paths(ctx context.Context, plan domain.QueryPlan, fused []hybrid.ScoredChunk) []domain.ReasoningPath {
	if plan.Reasoning == domain.ReasoningNone {
		return nil
	}

	var out []domain.ReasoningPath
	var err error
	if e.graph != nil {
		switch plan.Reasoning {
		case domain.ReasoningCausal:
			out, err = e.causalPaths(ctx, plan)
		case domain.ReasoningComparative:
			out, err = e.comparativePaths(ctx, plan)
		case domain.ReasoningMultiHop:
			out, err = e.multiHopPaths(ctx, plan)
		default:
			out, err = e.directPaths(ctx, plan)
		}
	}
	if err != nil {
		e.log.Warn("graph reasoning failed, using chunk co-occurrence", "kind", plan.Reasoning, "error", err)
		out = nil
	}
	if len(out) == 0 {
		out = e.cooccurrencePaths(plan, fused)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	if len(out) > maxPaths {
		out = out[:maxPaths]
	}
	return out
}

// DirectPaths exposes pairwise shortest paths for the advanced-reasoning
// endpoint.
func (e *Engine) DirectPaths(ctx context.Context, plan domain.QueryPlan) ([]domain.ReasoningPath, error) {
	return ranked(e.directPaths(ctx, plan))
}

// CausalChains walks only causal edge types from the plan's entities,
// in both directions so "what causes X" finds incoming chains.
func (e *Engine) CausalChains(ctx context.Context, plan domain.QueryPlan) ([]domain.ReasoningPath, error) {
	return ranked(e.causalPaths(ctx, plan))
}

// Comparative builds the neighborhood-overlap comparison for entity pairs.
func (e *Engine) Comparative(ctx context.Context, plan domain.QueryPlan) ([]domain.ReasoningPath, error) {
	return ranked(e.comparativePaths(ctx, plan))
}

// MultiHop runs the beam search from each known entity.
func (e *Engine) MultiHop(ctx context.Context, plan domain.QueryPlan) ([]domain.ReasoningPath, error) {
	return ranked(e.multiHopPaths(ctx, plan))
}

func ranked(paths []domain.ReasoningPath, err error) ([]domain.ReasoningPath, error) {
	if err != nil {
		return nil, err
	}
	sort.SliceStable(paths, func(i, j int) bool { return paths[i].Confidence > paths[j].Confidence })
	return paths, nil
}

func (e *Engine) directPaths(ctx context.Context, plan domain.QueryPlan) ([]domain.ReasoningPath, error) {
	known := knownIDs(plan)
	if len(known) < 2 {
		return nil, nil
	}

	var out []domain.ReasoningPath
	for i := 0; i < len(known); i++ {
		for j := 0; j < len(known); j++ {
			if i == j {
				continue
			}
			paths, err := e.graph.Neighbors(ctx, known[i], plan.MaxHops, nil)
			if err != nil {
				return nil, err
			}
			best := shortestTo(paths, known[j])
			if best == nil {
				continue
			}
			out = append(out, pathWithConfidence(domain.ReasoningDirect, *best))
		}
	}
	return out, nil
}

func (e *Engine) causalPaths(ctx context.Context, plan domain.QueryPlan) ([]domain.ReasoningPath, error) {
	known := knownIDs(plan)
	if len(known) == 0 {
		return nil, nil
	}
	types := make([]string, 0, len(e.causalTypes))
	for t := range e.causalTypes {
		types = append(types, t)
	}
	sort.Strings(types)

	var out []domain.ReasoningPath
	for _, id := range known {
		paths, err := e.graph.Neighbors(ctx, id, plan.MaxHops, types)
		if err != nil {
			return nil, err
		}
		for _, p := range paths {
			if len(p.Edges) == 0 {
				continue
			}
			out = append(out, pathWithConfidence(domain.ReasoningCausal, p))
		}
	}
	return dedupePaths(out), nil
}

// comparativePaths collects hop-1 neighborhoods for each known pair and
// scores the overlap. Evidence is the chunks mentioning both entities.
func (e *Engine) comparativePaths(ctx context.Context, plan domain.QueryPlan) ([]domain.ReasoningPath, error) {
	known := knownIDs(plan)
	if len(known) < 2 {
		return nil, nil
	}

	neighborhoods := map[string]map[string]domain.Relation{}
	for _, id := range known {
		paths, err := e.graph.Neighbors(ctx, id, 1, nil)
		if err != nil {
			return nil, err
		}
		hood := map[string]domain.Relation{}
		for _, p := range paths {
			if len(p.Entities) < 2 || len(p.Edges) == 0 {
				continue
			}
			hood[p.Entities[1].ID] = p.Edges[0]
		}
		neighborhoods[id] = hood
	}

	var out []domain.ReasoningPath
	for i := 0; i < len(known); i++ {
		for j := i + 1; j < len(known); j++ {
			a, b := known[i], known[j]
			shared := sharedKeys(neighborhoods[a], neighborhoods[b])

			entities, err := e.graph.EntitiesByIDs(ctx, append([]string{a, b}, shared...))
			if err != nil {
				return nil, err
			}

			hopsA := map[string]int{a: 0, b: 0}
			mentionsA, err := e.graph.ChunksMentioning(ctx, hopsA)
			if err != nil {
				return nil, err
			}
			evidence := chunksMentioningBoth(mentionsA, a, b)

			overlap := 0.0
			denom := len(neighborhoods[a]) + len(neighborhoods[b]) - len(shared)
			if denom > 0 {
				overlap = float64(len(shared)) / float64(denom)
			}

			var edges []domain.Relation
			for _, id := range shared {
				edges = append(edges, neighborhoods[a][id], neighborhoods[b][id])
			}
			out = append(out, domain.ReasoningPath{
				Kind:       domain.ReasoningComparative,
				Entities:   entities,
				Edges:      edges,
				Evidence:   evidence,
				Confidence: clip01(0.3 + 0.7*overlap),
			})
		}
	}
	return out, nil
}

// multiHopPaths beam-searches outward, scoring frontier nodes by
// edge confidence × occurrence^0.25.
func (e *Engine) multiHopPaths(ctx context.Context, plan domain.QueryPlan) ([]domain.ReasoningPath, error) {
	known := knownIDs(plan)
	if len(known) == 0 {
		return nil, nil
	}
	maxHops := plan.MaxHops
	if maxHops < 1 {
		maxHops = 2
	}

	var out []domain.ReasoningPath
	for _, seed := range known {
		type beamState struct {
			path  graph.Path
			score float64
			seen  map[string]bool
		}
		seedEnts, err := e.graph.EntitiesByIDs(ctx, []string{seed})
		if err != nil || len(seedEnts) == 0 {
			if err != nil {
				return nil, err
			}
			continue
		}
		beam := []beamState{{
			path:  graph.Path{Entities: []domain.Entity{seedEnts[0]}},
			score: 1,
			seen:  map[string]bool{seed: true},
		}}

		for hop := 0; hop < maxHops; hop++ {
			var next []beamState
			for _, state := range beam {
				tip := state.path.Entities[len(state.path.Entities)-1]
				steps, err := e.graph.Neighbors(ctx, tip.ID, 1, nil)
				if err != nil {
					return nil, err
				}
				for _, step := range steps {
					if len(step.Entities) < 2 || len(step.Edges) == 0 {
						continue
					}
					nextEnt := step.Entities[1]
					if state.seen[nextEnt.ID] {
						continue
					}
					edge := step.Edges[0]
					score := state.score * edge.Confidence * math.Pow(float64(maxInt(nextEnt.Occurrence, 1)), 0.25)

					seen := make(map[string]bool, len(state.seen)+1)
					for k := range state.seen {
						seen[k] = true
					}
					seen[nextEnt.ID] = true
					next = append(next, beamState{
						path: graph.Path{
							Entities: append(append([]domain.Entity{}, state.path.Entities...), nextEnt),
							Edges:    append(append([]domain.Relation{}, state.path.Edges...), edge),
						},
						score: score,
						seen:  seen,
					})
				}
			}
			if len(next) == 0 {
				break
			}
			sort.SliceStable(next, func(i, j int) bool {
				if next[i].score == next[j].score {
					return lastID(next[i].path) < lastID(next[j].path)
				}
				return next[i].score > next[j].score
			})
			if len(next) > beamWidth {
				next = next[:beamWidth]
			}
			beam = next
		}

		for _, state := range beam {
			if len(state.path.Edges) == 0 {
				continue
			}
			out = append(out, pathWithConfidence(domain.ReasoningMultiHop, state.path))
		}
	}
	return dedupePaths(out), nil
}

// cooccurrencePaths derives weak paths from entities co-mentioned within the
// fused chunks. The offline fallback when the graph store is down.
func (e *Engine) cooccurrencePaths(plan domain.QueryPlan, fused []hybrid.ScoredChunk) []domain.ReasoningPath {
	names := make([]string, 0, len(plan.Entities))
	for _, qe := range plan.Entities {
		names = append(names, qe.Name)
	}
	if len(names) < 2 {
		return nil
	}

	var out []domain.ReasoningPath
	for _, chunk := range fused {
		lower := strings.ToLower(chunk.Chunk.Text)
		var present []string
		for _, name := range names {
			if strings.Contains(lower, strings.ToLower(name)) {
				present = append(present, name)
			}
		}
		if len(present) < 2 {
			continue
		}
		entities := make([]domain.Entity, 0, len(present))
		for _, name := range present {
			entities = append(entities, domain.Entity{Name: name, Type: "concept"})
		}
		out = append(out, domain.ReasoningPath{
			Kind:       plan.Reasoning,
			Entities:   entities,
			Evidence:   []string{chunk.Chunk.ID},
			Confidence: 0.3,
		})
		if len(out) >= maxPaths {
			break
		}
	}
	return out
}

// pathWithConfidence scores a path as the product of edge confidences
// damped by path length.
func pathWithConfidence(kind domain.ReasoningKind, p graph.Path) domain.ReasoningPath {
	conf := 1.0
	for _, edge := range p.Edges {
		conf *= edge.Confidence
	}
	if n := len(p.Edges); n > 0 {
		conf *= 1 / float64(n)
	}
	return domain.ReasoningPath{
		Kind:       kind,
		Entities:   p.Entities,
		Edges:      p.Edges,
		Confidence: clip01(conf),
	}
}

func shortestTo(paths []graph.Path, targetID string) *graph.Path {
	var best *graph.Path
	for i := range paths {
		p := &paths[i]
		if lastID(*p) != targetID {
			continue
		}
		if best == nil || len(p.Edges) < len(best.Edges) {
			best = p
		}
	}
	return best
}

func knownIDs(plan domain.QueryPlan) []string {
	var out []string
	for _, qe := range plan.Entities {
		if qe.Known && qe.EntityID != "" {
			out = append(out, qe.EntityID)
		}
	}
	sort.Strings(out)
	return out
}

func lastID(p graph.Path) string {
	if len(p.Entities) == 0 {
		return ""
	}
	return p.Entities[len(p.Entities)-1].ID
}

func sharedKeys(a, b map[string]domain.Relation) []string {
	var out []string
	for k := range a {
		if _, ok := b[k]; ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func chunksMentioningBoth(mentions []graph.ChunkMention, a, b string) []string {
	byChunk := map[string]map[string]bool{}
	for _, m := range mentions {
		set := byChunk[m.Chunk.ID]
		if set == nil {
			set = map[string]bool{}
			byChunk[m.Chunk.ID] = set
		}
		set[m.EntityID] = true
	}
	var out []string
	for chunkID, set := range byChunk {
		if set[a] && set[b] {
			out = append(out, chunkID)
		}
	}
	sort.Strings(out)
	return out
}

func dedupePaths(paths []domain.ReasoningPath) []domain.ReasoningPath {
	seen := map[string]bool{}
	out := make([]domain.ReasoningPath, 0, len(paths))
	for _, p := range paths {
		var ids []string
		for _, ent := range p.Entities {
			ids = append(ids, ent.ID)
		}
		key := strings.Join(ids, ">")
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
