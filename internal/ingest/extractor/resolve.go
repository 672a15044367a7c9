package extractor

import (
	"sort"
	"strings"
	"sync"

	"github.com/alecKarfonta/graphrag/internal/domain"
)

const (
	blockingPrefixLen = 4
	mergeRatio        = 0.92
)

// Resolver canonicalizes extracted entities across the chunks of a corpus.
// Safe for concurrent use; the pipeline shares one resolver across the
// extraction workers of a document batch.
type Resolver struct {
	mu       sync.Mutex
	byID     map[string]*domain.Entity
	byBlock  map[blockKey][]string // blocking key -> entity ids
	mentions map[string]map[string]bool // entity id -> chunk ids observed
}

type blockKey struct {
	prefix string
	typ    string
}

func NewResolver() *Resolver {
	return &Resolver{
		byID:     map[string]*domain.Entity{},
		byBlock:  map[blockKey][]string{},
		mentions: map[string]map[string]bool{},
	}
}

// Resolve merges a raw extraction into the canonical set and returns the
// canonical entity id. Merging unions aliases, sums occurrence once per
// (chunk, entity) pair and keeps the max confidence.
func (r *Resolver) Resolve(raw domain.Entity, chunkID string) string {
	norm := domain.NormalizeName(raw.Name)
	if norm == "" {
		return ""
	}
	typ := strings.ToLower(strings.TrimSpace(raw.Type))
	key := blockKey{prefix: blockPrefix(norm), typ: typ}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range r.byBlock[key] {
		candidate := r.byID[id]
		candNorm := domain.NormalizeName(candidate.Name)
		if candNorm == norm || fuzzyRatio(candNorm, norm) >= mergeRatio {
			r.merge(candidate, raw, chunkID)
			return candidate.ID
		}
	}

	id := domain.EntityID(raw.Name, typ)
	ent := &domain.Entity{
		ID:          id,
		Name:        raw.Name,
		Type:        typ,
		Description: raw.Description,
		Domain:      raw.Domain,
		Occurrence:  0,
		Confidence:  raw.Confidence,
	}
	r.byID[id] = ent
	r.byBlock[key] = append(r.byBlock[key], id)
	r.noteMention(ent, raw, chunkID)
	return id
}

func (r *Resolver) merge(dst *domain.Entity, raw domain.Entity, chunkID string) {
	if raw.Confidence > dst.Confidence {
		dst.Confidence = raw.Confidence
	}
	if dst.Description == "" {
		dst.Description = raw.Description
	}
	if domain.NormalizeName(raw.Name) != domain.NormalizeName(dst.Name) {
		dst.Aliases = unionAlias(dst.Aliases, raw.Name)
	}
	r.noteMention(dst, raw, chunkID)
}

// noteMention counts occurrence under observed-once semantics: the same
// (chunk, entity) pair increments exactly once.
func (r *Resolver) noteMention(dst *domain.Entity, raw domain.Entity, chunkID string) {
	seen := r.mentions[dst.ID]
	if seen == nil {
		seen = map[string]bool{}
		r.mentions[dst.ID] = seen
	}
	if chunkID != "" && seen[chunkID] {
		return
	}
	if chunkID != "" {
		seen[chunkID] = true
	}
	dst.Occurrence++
	for _, a := range raw.Aliases {
		dst.Aliases = unionAlias(dst.Aliases, a)
	}
}

// Entities returns the canonical set sorted by id for deterministic output.
func (r *Resolver) Entities() []domain.Entity {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Entity, 0, len(r.byID))
	for _, e := range r.byID {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Mentions returns the observed (entity, chunk) pairs sorted for determinism.
func (r *Resolver) Mentions() []domain.Mention {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Mention
	for entityID, chunks := range r.mentions {
		for chunkID := range chunks {
			out = append(out, domain.Mention{EntityID: entityID, ChunkID: chunkID})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EntityID != out[j].EntityID {
			return out[i].EntityID < out[j].EntityID
		}
		return out[i].ChunkID < out[j].ChunkID
	})
	return out
}

func blockPrefix(norm string) string {
	runes := []rune(norm)
	if len(runes) <= blockingPrefixLen {
		return norm
	}
	return string(runes[:blockingPrefixLen])
}

func unionAlias(aliases []string, alias string) []string {
	alias = strings.TrimSpace(alias)
	if alias == "" {
		return aliases
	}
	for _, a := range aliases {
		if strings.EqualFold(a, alias) {
			return aliases
		}
	}
	out := append(aliases, alias)
	sort.Strings(out)
	return out
}
