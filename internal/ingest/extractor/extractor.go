package extractor

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/alecKarfonta/graphrag/internal/domain"
	"github.com/alecKarfonta/graphrag/internal/platform/llm"
	"github.com/alecKarfonta/graphrag/internal/platform/logger"
	"github.com/alecKarfonta/graphrag/internal/platform/ner"
)

// Extractor turns chunk text into entities and relations using the NER and
// relation collaborators, with rule-based fallbacks that work offline.
type Extractor struct {
	log        *logger.Logger
	ner        ner.Client
	llm        llm.Client
	disableLLM bool
}

// Result is the extraction output for one chunk before cross-chunk
// resolution.
type Result struct {
	Entities  []domain.Entity
	Relations []rawRelation
	Claims    []string
}

// rawRelation references entities by surface name; the pipeline resolves
// names to canonical ids after the resolver has seen the chunk's entities.
type rawRelation struct {
	SourceName string
	TargetName string
	Type       string
	Confidence float64
	Evidence   string
}

func New(log *logger.Logger, nerClient ner.Client, llmClient llm.Client, disableLLM bool) *Extractor {
	return &Extractor{
		log:        log.With("service", "Extractor"),
		ner:        nerClient,
		llm:        llmClient,
		disableLLM: disableLLM,
	}
}

// Extract runs NER and relation extraction on one chunk. Collaborator
// failures propagate; the pipeline owns retries and deadlines.
func (e *Extractor) Extract(ctx context.Context, chunk domain.Chunk) (Result, error) {
	var out Result

	entities, err := e.extractEntities(ctx, chunk)
	if err != nil {
		return out, err
	}
	out.Entities = entities
	if len(entities) == 0 {
		return out, nil
	}

	relations, claims, err := e.extractRelations(ctx, chunk, entities)
	if err != nil {
		return out, err
	}
	out.Relations = relations
	out.Claims = claims
	return out, nil
}

func (e *Extractor) extractEntities(ctx context.Context, chunk domain.Chunk) ([]domain.Entity, error) {
	if e.ner != nil {
		spans, err := e.ner.Extract(ctx, chunk.Text)
		if err != nil {
			return nil, err
		}
		out := make([]domain.Entity, 0, len(spans))
		seen := map[string]bool{}
		for _, span := range spans {
			name := strings.TrimSpace(span.Text)
			if name == "" {
				continue
			}
			key := domain.NormalizeName(name) + "|" + strings.ToLower(span.Label)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, domain.Entity{
				Name:       name,
				Type:       normalizeLabel(span.Label),
				Domain:     chunk.Domain,
				Confidence: clamp01(span.Confidence),
			})
		}
		return out, nil
	}
	return heuristicEntities(chunk), nil
}

var properNounRe = regexp.MustCompile(`\b[A-Z][a-zA-Z0-9]*(?:\s+[A-Z][a-zA-Z0-9]*){0,3}\b`)

// heuristicEntities approximates NER with capitalized noun phrases, skipping
// sentence-initial words that are common lowercase vocabulary elsewhere.
func heuristicEntities(chunk domain.Chunk) []domain.Entity {
	matches := properNounRe.FindAllStringIndex(chunk.Text, -1)
	out := make([]domain.Entity, 0, len(matches))
	seen := map[string]bool{}
	for _, m := range matches {
		name := strings.TrimSpace(chunk.Text[m[0]:m[1]])
		if len(name) < 2 {
			continue
		}
		if m[0] == 0 || chunk.Text[m[0]-1] == '\n' || isSentenceStart(chunk.Text, m[0]) {
			// Sentence-initial capitalization alone is weak evidence unless
			// the same form never appears lowercased mid-sentence.
			if strings.Contains(chunk.Text, " "+strings.ToLower(name)+" ") {
				continue
			}
		}
		norm := domain.NormalizeName(name)
		if norm == "" || seen[norm] {
			continue
		}
		seen[norm] = true
		out = append(out, domain.Entity{
			Name:       name,
			Type:       "concept",
			Domain:     chunk.Domain,
			Confidence: 0.5,
		})
	}
	return out
}

func isSentenceStart(text string, pos int) bool {
	for i := pos - 1; i >= 0; i-- {
		switch text[i] {
		case ' ', '\t':
			continue
		case '.', '!', '?', '\n':
			return true
		default:
			return false
		}
	}
	return true
}

var relationSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"relations": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"source":     map[string]any{"type": "string"},
					"target":     map[string]any{"type": "string"},
					"type":       map[string]any{"type": "string"},
					"confidence": map[string]any{"type": "number"},
					"claim":      map[string]any{"type": "string"},
				},
				"required":             []string{"source", "target", "type", "confidence", "claim"},
				"additionalProperties": false,
			},
		},
	},
	"required":             []string{"relations"},
	"additionalProperties": false,
}

const relationSystemPrompt = `You extract typed relations between the provided entities from a passage.
Only use entities from the provided list. Types are short snake_case verbs
such as works_for, located_in, causes, part_of, related_to. The claim field
quotes or closely paraphrases the evidencing sentence.`

func (e *Extractor) extractRelations(ctx context.Context, chunk domain.Chunk, entities []domain.Entity) ([]rawRelation, []string, error) {
	if e.llm != nil && !e.disableLLM {
		rels, claims, err := e.llmRelations(ctx, chunk, entities)
		if err == nil {
			return rels, claims, nil
		}
		e.log.Warn("relation collaborator failed, using co-occurrence", "chunk_id", chunk.ID, "error", err)
	}
	rels := cooccurrenceRelations(chunk, entities)
	return rels, nil, nil
}

func (e *Extractor) llmRelations(ctx context.Context, chunk domain.Chunk, entities []domain.Entity) ([]rawRelation, []string, error) {
	names := make([]string, 0, len(entities))
	for _, ent := range entities {
		names = append(names, ent.Name)
	}
	user := fmt.Sprintf("Entities: %s\n\nPassage:\n%s", strings.Join(names, ", "), chunk.Text)

	raw, err := e.llm.GenerateJSON(ctx, relationSystemPrompt, user, "relations", relationSchema)
	if err != nil {
		return nil, nil, err
	}

	items, _ := raw["relations"].([]any)
	valid := map[string]bool{}
	for _, n := range names {
		valid[domain.NormalizeName(n)] = true
	}

	var rels []rawRelation
	var claims []string
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		source, _ := obj["source"].(string)
		target, _ := obj["target"].(string)
		typ, _ := obj["type"].(string)
		conf, _ := obj["confidence"].(float64)
		claim, _ := obj["claim"].(string)
		if !valid[domain.NormalizeName(source)] || !valid[domain.NormalizeName(target)] {
			continue
		}
		rels = append(rels, rawRelation{
			SourceName: source,
			TargetName: target,
			Type:       typ,
			Confidence: clamp01(conf),
			Evidence:   strings.TrimSpace(claim),
		})
		if strings.TrimSpace(claim) != "" {
			claims = append(claims, strings.TrimSpace(claim))
		}
	}
	return rels, claims, nil
}

// cooccurrenceRelations links entity pairs appearing in the same sentence
// with a generic related_to edge. Works entirely offline.
func cooccurrenceRelations(chunk domain.Chunk, entities []domain.Entity) []rawRelation {
	sentences := splitSentencesLoose(chunk.Text)
	var out []rawRelation
	for _, sentence := range sentences {
		lower := strings.ToLower(sentence)
		var present []domain.Entity
		for _, ent := range entities {
			if strings.Contains(lower, strings.ToLower(ent.Name)) {
				present = append(present, ent)
			}
		}
		for i := 0; i < len(present); i++ {
			for j := i + 1; j < len(present); j++ {
				out = append(out, rawRelation{
					SourceName: present[i].Name,
					TargetName: present[j].Name,
					Type:       "related_to",
					Confidence: 0.4,
					Evidence:   strings.TrimSpace(sentence),
				})
			}
		}
	}
	return out
}

func splitSentencesLoose(text string) []string {
	var out []string
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?', '\n':
			if s := strings.TrimSpace(text[start : i+1]); s != "" {
				out = append(out, s)
			}
			start = i + 1
		}
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

func normalizeLabel(label string) string {
	label = strings.ToLower(strings.TrimSpace(label))
	if label == "" {
		return "concept"
	}
	return label
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
