// Package graphtest provides an in-memory Store implementation mirroring the
// neo4j adapter's merge semantics, for tests that need a live-ish graph.
package graphtest

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/alecKarfonta/graphrag/internal/domain"
	"github.com/alecKarfonta/graphrag/internal/graph"
	"github.com/alecKarfonta/graphrag/internal/platform/apierr"
)

type relKey struct {
	Source, Target, Type string
}

// Fake is a thread-safe in-memory graph.Store. Err, when set, is returned
// from every operation to simulate an unavailable store.
type Fake struct {
	mu        sync.Mutex
	Err       error
	documents map[string]domain.Document
	chunks    map[string]domain.Chunk
	entities  map[string]domain.Entity
	relations map[relKey]domain.Relation
	mentions  map[string]map[string]bool // chunk id -> entity ids
}

func New() *Fake {
	return &Fake{
		documents: map[string]domain.Document{},
		chunks:    map[string]domain.Chunk{},
		entities:  map[string]domain.Entity{},
		relations: map[relKey]domain.Relation{},
		mentions:  map[string]map[string]bool{},
	}
}

var _ graph.Store = (*Fake)(nil)

func (f *Fake) UpsertDocument(ctx context.Context, doc domain.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	existing, ok := f.documents[doc.ID]
	if ok {
		existing.Name = doc.Name
		existing.Domain = doc.Domain
		existing.Status = doc.Status
		f.documents[doc.ID] = existing
		return nil
	}
	f.documents[doc.ID] = doc
	return nil
}

func (f *Fake) SetDocumentStatus(ctx context.Context, documentID string, status domain.DocumentStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	if doc, ok := f.documents[documentID]; ok {
		doc.Status = status
		f.documents[documentID] = doc
	}
	return nil
}

func (f *Fake) UpsertChunks(ctx context.Context, chunks []domain.Chunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	for _, c := range chunks {
		f.chunks[c.ID] = c
	}
	return nil
}

func (f *Fake) UpsertEntities(ctx context.Context, entities []domain.Entity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	for _, e := range entities {
		existing, ok := f.entities[e.ID]
		if !ok {
			f.entities[e.ID] = e
			continue
		}
		existing.Occurrence += e.Occurrence
		if e.Confidence > existing.Confidence {
			existing.Confidence = e.Confidence
		}
		if existing.Description == "" {
			existing.Description = e.Description
		}
		existing.Aliases = unionStrings(existing.Aliases, e.Aliases)
		f.entities[e.ID] = existing
	}
	return nil
}

func (f *Fake) UpsertRelations(ctx context.Context, relations []domain.Relation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	for _, r := range relations {
		key := relKey{Source: r.SourceID, Target: r.TargetID, Type: r.Type}
		existing, ok := f.relations[key]
		if !ok {
			f.relations[key] = r
			continue
		}
		existing.Weight += r.Weight
		if r.Confidence > existing.Confidence {
			existing.Confidence = r.Confidence
		}
		f.relations[key] = existing
	}
	return nil
}

func (f *Fake) UpsertMentions(ctx context.Context, mentions []domain.Mention) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	for _, m := range mentions {
		set := f.mentions[m.ChunkID]
		if set == nil {
			set = map[string]bool{}
			f.mentions[m.ChunkID] = set
		}
		set[m.EntityID] = true
	}
	return nil
}

func (f *Fake) Neighbors(ctx context.Context, entityID string, maxHops int, relationTypes []string) ([]graph.Path, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	if maxHops < 1 {
		maxHops = 1
	}
	typeSet := map[string]bool{}
	for _, t := range relationTypes {
		typeSet[strings.ToLower(t)] = true
	}

	var out []graph.Path
	var walk func(path graph.Path, seen map[string]bool)
	walk = func(path graph.Path, seen map[string]bool) {
		if len(path.Edges) >= maxHops {
			return
		}
		tip := path.Entities[len(path.Entities)-1].ID
		for key, rel := range f.relations {
			if len(typeSet) > 0 && !typeSet[strings.ToLower(rel.Type)] {
				continue
			}
			var nextID string
			switch tip {
			case key.Source:
				nextID = key.Target
			case key.Target:
				nextID = key.Source
			default:
				continue
			}
			if seen[nextID] {
				continue
			}
			next, ok := f.entities[nextID]
			if !ok {
				continue
			}
			extended := graph.Path{
				Entities: append(append([]domain.Entity{}, path.Entities...), next),
				Edges:    append(append([]domain.Relation{}, path.Edges...), rel),
			}
			out = append(out, extended)
			nextSeen := map[string]bool{}
			for k := range seen {
				nextSeen[k] = true
			}
			nextSeen[nextID] = true
			walk(extended, nextSeen)
		}
	}

	seed, ok := f.entities[entityID]
	if !ok {
		return nil, nil
	}
	walk(graph.Path{Entities: []domain.Entity{seed}}, map[string]bool{entityID: true})

	sort.SliceStable(out, func(i, j int) bool {
		if len(out[i].Edges) != len(out[j].Edges) {
			return len(out[i].Edges) < len(out[j].Edges)
		}
		return lastID(out[i]) < lastID(out[j])
	})
	return out, nil
}

func (f *Fake) ChunksMentioning(ctx context.Context, entityHops map[string]int) ([]graph.ChunkMention, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	var out []graph.ChunkMention
	for chunkID, entitySet := range f.mentions {
		for entityID := range entitySet {
			if hops, ok := entityHops[entityID]; ok {
				out = append(out, graph.ChunkMention{
					Chunk:    f.chunks[chunkID],
					EntityID: entityID,
					Hops:     hops,
				})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Chunk.ID != out[j].Chunk.ID {
			return out[i].Chunk.ID < out[j].Chunk.ID
		}
		return out[i].EntityID < out[j].EntityID
	})
	return out, nil
}

func (f *Fake) ChunksByIDs(ctx context.Context, ids []string) ([]domain.Chunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	var out []domain.Chunk
	for _, id := range ids {
		if c, ok := f.chunks[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *Fake) AllChunks(ctx context.Context, domainTag string) ([]domain.Chunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	var out []domain.Chunk
	for _, c := range f.chunks {
		if domainTag == "" || c.Domain == domainTag {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *Fake) EntityIndex(ctx context.Context) ([]graph.EntityRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	var out []graph.EntityRef
	for _, e := range f.entities {
		out = append(out, graph.EntityRef{ID: e.ID, Name: e.Name, Aliases: e.Aliases})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *Fake) EntitiesByIDs(ctx context.Context, ids []string) ([]domain.Entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	var out []domain.Entity
	for _, id := range ids {
		if e, ok := f.entities[id]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *Fake) FilteredProjection(ctx context.Context, filter domain.GraphFilter) (domain.Projection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := domain.Projection{}
	if f.Err != nil {
		return out, f.Err
	}
	if !filter.Normalize() {
		return out, apierr.Invalid("bad_filter", nil)
	}
	out.AppliedFilter = filter

	for _, e := range f.entities {
		if filter.Domain == "" || e.Domain == filter.Domain {
			out.TotalsBefore.Entities++
		}
	}
	for _, r := range f.relations {
		if filter.Domain == "" || r.Domain == filter.Domain {
			out.TotalsBefore.Relations++
		}
	}

	typeSet := map[string]bool{}
	for _, t := range filter.EntityTypes {
		typeSet[t] = true
	}
	var entities []domain.Entity
	for _, e := range f.entities {
		if filter.Domain != "" && e.Domain != filter.Domain {
			continue
		}
		if len(typeSet) > 0 && !typeSet[e.Type] {
			continue
		}
		if e.Occurrence < filter.MinOccurrence || e.Confidence < filter.MinConfidence {
			continue
		}
		entities = append(entities, e)
	}
	sort.SliceStable(entities, func(i, j int) bool {
		less := false
		switch filter.SortBy {
		case "confidence":
			if entities[i].Confidence != entities[j].Confidence {
				less = entities[i].Confidence < entities[j].Confidence
			} else {
				less = entities[i].ID < entities[j].ID
			}
		case "name":
			less = entities[i].Name < entities[j].Name
		default:
			if entities[i].Occurrence != entities[j].Occurrence {
				less = entities[i].Occurrence < entities[j].Occurrence
			} else {
				less = entities[i].ID < entities[j].ID
			}
		}
		if filter.SortOrder == "desc" {
			return !less
		}
		return less
	})
	if len(entities) > filter.MaxEntities {
		entities = entities[:filter.MaxEntities]
	}
	out.Entities = entities

	inSet := map[string]bool{}
	for _, e := range entities {
		inSet[e.ID] = true
	}
	relTypeSet := map[string]bool{}
	for _, t := range filter.RelationTypes {
		relTypeSet[t] = true
	}
	var relations []domain.Relation
	for _, r := range f.relations {
		if !inSet[r.SourceID] || !inSet[r.TargetID] {
			continue
		}
		if len(relTypeSet) > 0 && !relTypeSet[r.Type] {
			continue
		}
		if r.Weight < filter.MinOccurrence {
			continue
		}
		relations = append(relations, r)
	}
	sort.SliceStable(relations, func(i, j int) bool {
		if relations[i].Weight != relations[j].Weight {
			return relations[i].Weight > relations[j].Weight
		}
		if relations[i].SourceID != relations[j].SourceID {
			return relations[i].SourceID < relations[j].SourceID
		}
		return relations[i].TargetID < relations[j].TargetID
	})
	if len(relations) > filter.MaxRelations {
		relations = relations[:filter.MaxRelations]
	}
	out.Relations = relations
	return out, nil
}

func (f *Fake) TopEntities(ctx context.Context, domainTag, entityType string, limit, minOccurrence int) ([]domain.Entity, error) {
	filter := domain.GraphFilter{
		Domain:        domainTag,
		MaxEntities:   limit,
		MinOccurrence: minOccurrence,
	}
	if entityType != "" {
		filter.EntityTypes = []string{entityType}
	}
	projection, err := f.FilteredProjection(ctx, filter)
	if err != nil {
		return nil, err
	}
	return projection.Entities, nil
}

func (f *Fake) TopRelations(ctx context.Context, domainTag, relationType string, limit, minWeight int) ([]domain.Relation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	var out []domain.Relation
	for _, r := range f.relations {
		if domainTag != "" && r.Domain != domainTag {
			continue
		}
		if relationType != "" && r.Type != relationType {
			continue
		}
		if r.Weight < minWeight {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		return out[i].SourceID < out[j].SourceID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *Fake) Stats(ctx context.Context, domainTag string) (domain.GraphStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := domain.GraphStats{EntityTypes: map[string]int{}, RelationTypes: map[string]int{}}
	if f.Err != nil {
		return stats, f.Err
	}
	docSet := map[string]bool{}
	for _, c := range f.chunks {
		if domainTag != "" && c.Domain != domainTag {
			continue
		}
		stats.Chunks++
		docSet[c.DocumentID] = true
	}
	stats.Documents = len(docSet)
	for _, e := range f.entities {
		if domainTag != "" && e.Domain != domainTag {
			continue
		}
		stats.Entities++
		stats.EntityTypes[e.Type]++
	}
	for _, r := range f.relations {
		if domainTag != "" && r.Domain != domainTag {
			continue
		}
		stats.Relations++
		stats.RelationTypes[r.Type]++
	}
	if stats.Entities > 1 {
		stats.Density = float64(stats.Relations) / (float64(stats.Entities) * float64(stats.Entities-1))
	}
	return stats, nil
}

func (f *Fake) Domains(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	set := map[string]bool{}
	for _, e := range f.entities {
		if e.Domain != "" {
			set[e.Domain] = true
		}
	}
	var out []string
	for d := range set {
		out = append(out, d)
	}
	sort.Strings(out)
	return out, nil
}

func (f *Fake) Documents(ctx context.Context) ([]domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	var out []domain.Document
	for _, d := range f.documents {
		for _, c := range f.chunks {
			if c.DocumentID == d.ID {
				d.Chunks++
			}
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *Fake) DocumentByName(ctx context.Context, name string) (domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return domain.Document{}, f.Err
	}
	for _, d := range f.documents {
		if d.Name == name {
			return d, nil
		}
	}
	return domain.Document{}, apierr.NotFound("document_not_found", nil)
}

func (f *Fake) DeleteDocument(ctx context.Context, documentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	for chunkID, c := range f.chunks {
		if c.DocumentID != documentID {
			continue
		}
		for entityID := range f.mentions[chunkID] {
			if e, ok := f.entities[entityID]; ok {
				e.Occurrence--
				f.entities[entityID] = e
			}
		}
		delete(f.mentions, chunkID)
		delete(f.chunks, chunkID)
	}
	for id, e := range f.entities {
		if e.Occurrence <= 0 {
			delete(f.entities, id)
			for key := range f.relations {
				if key.Source == id || key.Target == id {
					delete(f.relations, key)
				}
			}
		}
	}
	delete(f.documents, documentID)
	return nil
}

func (f *Fake) Clear(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.documents = map[string]domain.Document{}
	f.chunks = map[string]domain.Chunk{}
	f.entities = map[string]domain.Entity{}
	f.relations = map[relKey]domain.Relation{}
	f.mentions = map[string]map[string]bool{}
	return nil
}

func lastID(p graph.Path) string {
	if len(p.Entities) == 0 {
		return ""
	}
	return p.Entities[len(p.Entities)-1].ID
}

func unionStrings(a, b []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range append(append([]string{}, a...), b...) {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
