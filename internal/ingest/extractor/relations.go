package extractor

import (
	"sort"
	"strings"
	"sync"

	"github.com/alecKarfonta/graphrag/internal/domain"
)

const evidenceCap = 5

// RelationSet accumulates typed edges across chunks. Duplicate
// (source, target, type) observations merge: weight increments, evidence
// appends up to the cap, confidence keeps the max.
type RelationSet struct {
	mu    sync.Mutex
	edges map[relationKey]*accumulatedRelation
}

type relationKey struct {
	source, target, typ string
}

type accumulatedRelation struct {
	relation domain.Relation
	evidence []string
}

func NewRelationSet() *RelationSet {
	return &RelationSet{edges: map[relationKey]*accumulatedRelation{}}
}

// Add records one observed edge. Self-edges are dropped.
func (s *RelationSet) Add(rel domain.Relation, evidence string) {
	if rel.SourceID == "" || rel.TargetID == "" || rel.SourceID == rel.TargetID {
		return
	}
	typ := strings.ToLower(strings.TrimSpace(rel.Type))
	if typ == "" {
		typ = "related_to"
	}
	key := relationKey{source: rel.SourceID, target: rel.TargetID, typ: typ}

	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.edges[key]
	if !ok {
		rel.Type = typ
		rel.Weight = 1
		acc = &accumulatedRelation{relation: rel}
		if evidence != "" {
			acc.evidence = append(acc.evidence, evidence)
		}
		acc.relation.Context = strings.Join(acc.evidence, " | ")
		s.edges[key] = acc
		return
	}
	acc.relation.Weight++
	if rel.Confidence > acc.relation.Confidence {
		acc.relation.Confidence = rel.Confidence
	}
	if evidence != "" && len(acc.evidence) < evidenceCap {
		acc.evidence = append(acc.evidence, evidence)
		acc.relation.Context = strings.Join(acc.evidence, " | ")
	}
}

// Relations returns merged edges sorted by (source, target, type).
func (s *RelationSet) Relations() []domain.Relation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Relation, 0, len(s.edges))
	for _, acc := range s.edges {
		out = append(out, acc.relation)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SourceID != out[j].SourceID {
			return out[i].SourceID < out[j].SourceID
		}
		if out[i].TargetID != out[j].TargetID {
			return out[i].TargetID < out[j].TargetID
		}
		return out[i].Type < out[j].Type
	})
	return out
}
