package domain

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// DocumentStatus is the lifecycle state persisted on the Document node.
type DocumentStatus string

const (
	DocumentReceived DocumentStatus = "received"
	DocumentChunked  DocumentStatus = "chunked"
	DocumentIndexed  DocumentStatus = "indexed"
	DocumentPartial  DocumentStatus = "partial"
	DocumentDeleting DocumentStatus = "deleting"
)

type Document struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Domain   string         `json:"domain"`
	Status   DocumentStatus `json:"status"`
	Chunks   int            `json:"chunks"`
	Entities int            `json:"entities"`
}

// Chunk is the atomic retrieval target.
type Chunk struct {
	ID          string            `json:"id"`
	DocumentID  string            `json:"document_id"`
	Ordinal     int               `json:"ordinal"`
	Text        string            `json:"text"`
	SectionPath []string          `json:"section_path,omitempty"`
	Page        int               `json:"page,omitempty"`
	Domain      string            `json:"domain,omitempty"`
	Extra       map[string]string `json:"extra,omitempty"`
}

type Entity struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Aliases     []string `json:"aliases,omitempty"`
	Domain      string   `json:"domain,omitempty"`
	Occurrence  int      `json:"occurrence"`
	Confidence  float64  `json:"confidence"`
}

type Relation struct {
	SourceID   string  `json:"source_entity_id"`
	TargetID   string  `json:"target_entity_id"`
	Type       string  `json:"type"`
	Context    string  `json:"context,omitempty"`
	Confidence float64 `json:"confidence"`
	Weight     int     `json:"weight"`
	Domain     string  `json:"domain,omitempty"`
}

type Mention struct {
	EntityID string `json:"entity_id"`
	ChunkID  string `json:"chunk_id"`
	Start    int    `json:"start,omitempty"`
	End      int    `json:"end,omitempty"`
}

// Intent is the planner's query classification.
type Intent string

const (
	IntentFactual     Intent = "FACTUAL"
	IntentComparative Intent = "COMPARATIVE"
	IntentCausal      Intent = "CAUSAL"
	IntentAnalytical  Intent = "ANALYTICAL"
	IntentTemporal    Intent = "TEMPORAL"
	IntentProcedural  Intent = "PROCEDURAL"
)

type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// StrategyKind names one retrieval strategy component.
type StrategyKind string

const (
	StrategyVector  StrategyKind = "vector"
	StrategyGraph   StrategyKind = "graph"
	StrategyKeyword StrategyKind = "keyword"
)

type StrategyComponent struct {
	Kind   StrategyKind `json:"kind"`
	Weight float64      `json:"weight"`
}

// ReasoningKind selects the reasoning path builder, when any.
type ReasoningKind string

const (
	ReasoningNone        ReasoningKind = ""
	ReasoningDirect      ReasoningKind = "direct"
	ReasoningCausal      ReasoningKind = "causal"
	ReasoningComparative ReasoningKind = "comparative"
	ReasoningMultiHop    ReasoningKind = "multi_hop"
)

// QueryEntity is an entity surfaced from the query text. Known entities are
// those matched against the knowledge-graph entity index.
type QueryEntity struct {
	Name     string `json:"name"`
	EntityID string `json:"entity_id,omitempty"`
	Known    bool   `json:"known"`
}

type QueryPlan struct {
	Query      string              `json:"query"`
	Intent     Intent              `json:"intent"`
	Confidence float64             `json:"confidence"`
	Complexity Complexity          `json:"complexity"`
	Entities   []QueryEntity       `json:"entities"`
	Strategies []StrategyComponent `json:"strategy_components"`
	Reasoning  ReasoningKind       `json:"reasoning,omitempty"`
	MaxHops    int                 `json:"max_hops"`
	Expansion  []string            `json:"expansion,omitempty"`
}

// ReasoningPath is a scored path over the knowledge graph.
type ReasoningPath struct {
	Kind       ReasoningKind `json:"kind"`
	Entities   []Entity      `json:"entities"`
	Edges      []Relation    `json:"edges"`
	Evidence   []string      `json:"evidence_chunks,omitempty"`
	Confidence float64       `json:"confidence"`
}

// GraphFilter bounds a projection query.
type GraphFilter struct {
	Domain        string   `json:"domain,omitempty"`
	MaxEntities   int      `json:"max_entities"`
	MaxRelations  int      `json:"max_relations"`
	MinOccurrence int      `json:"min_occurrence"`
	MinConfidence float64  `json:"min_confidence"`
	EntityTypes   []string `json:"entity_types,omitempty"`
	RelationTypes []string `json:"relation_types,omitempty"`
	SortBy        string   `json:"sort_by"`
	SortOrder     string   `json:"sort_order"`
}

const (
	MaxEntitiesCap  = 5000
	MaxRelationsCap = 10000
)

// Normalize applies defaults and hard caps. Returns false when a supplied
// value is invalid rather than merely above a cap.
func (f *GraphFilter) Normalize() bool {
	if f.MaxEntities == 0 {
		f.MaxEntities = 500
	}
	if f.MaxRelations == 0 {
		f.MaxRelations = 500
	}
	if f.MinOccurrence == 0 {
		f.MinOccurrence = 1
	}
	if f.MaxEntities < 0 || f.MaxRelations < 0 || f.MinOccurrence < 0 {
		return false
	}
	if f.MinConfidence < 0 || f.MinConfidence > 1 {
		return false
	}
	if f.MaxEntities > MaxEntitiesCap {
		f.MaxEntities = MaxEntitiesCap
	}
	if f.MaxRelations > MaxRelationsCap {
		f.MaxRelations = MaxRelationsCap
	}
	switch f.SortBy {
	case "":
		f.SortBy = "occurrence"
	case "occurrence", "confidence", "name":
	default:
		return false
	}
	switch f.SortOrder {
	case "":
		f.SortOrder = "desc"
	case "asc", "desc":
	default:
		return false
	}
	return true
}

// Projection is a bounded subgraph returned to the UI.
type Projection struct {
	Entities      []Entity         `json:"entities"`
	Relations     []Relation       `json:"relations"`
	TotalsBefore  ProjectionTotals `json:"totals_before_filter"`
	AppliedFilter GraphFilter      `json:"applied_filter"`
}

type ProjectionTotals struct {
	Entities  int `json:"entities"`
	Relations int `json:"relations"`
}

// GraphStats summarizes the graph for one domain or the whole corpus.
type GraphStats struct {
	Entities      int            `json:"entities"`
	Relations     int            `json:"relations"`
	Documents     int            `json:"documents"`
	Chunks        int            `json:"chunks"`
	EntityTypes   map[string]int `json:"entity_types"`
	RelationTypes map[string]int `json:"relation_types"`
	Density       float64        `json:"density"`
}

var idNamespace = uuid.MustParse("3e6f4c21-8a9b-4d0e-bb5c-9f2a51e07d83")

// NormalizeName lowercases, folds whitespace and strips punctuation so the
// same surface form always resolves to the same canonical key.
func NormalizeName(name string) string {
	var b strings.Builder
	lastSpace := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r):
			if !lastSpace && b.Len() > 0 {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// EntityID derives the deterministic id from (normalized name, type).
func EntityID(name, entityType string) string {
	key := NormalizeName(name) + "|" + strings.ToLower(strings.TrimSpace(entityType))
	return uuid.NewSHA1(idNamespace, []byte("entity:"+key)).String()
}

// ChunkID derives a stable chunk id from its document and ordinal.
func ChunkID(documentID string, ordinal int) string {
	return uuid.NewSHA1(idNamespace, []byte("chunk:"+documentID+"|"+strconv.Itoa(ordinal))).String()
}

// DocumentID derives a stable document id from its name.
func DocumentID(name string) string {
	return uuid.NewSHA1(idNamespace, []byte("document:"+strings.TrimSpace(name))).String()
}
