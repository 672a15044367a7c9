package graph

import (
	"context"
	"sort"

	"github.com/alecKarfonta/graphrag/internal/domain"
)

// Neighbors returns up to 200 paths from the entity out to maxHops (clamped
// to 1..4), optionally restricted to an edge-type set. Paths are ordered by length then by the
// terminal entity id so output is deterministic.
func (s *store) Neighbors(ctx context.Context, entityID string, maxHops int, relationTypes []string) ([]Path, error) {
	if maxHops < 1 {
		maxHops = 1
	}
	if maxHops > 4 {
		maxHops = 4
	}

	params := map[string]any{
		"id":    entityID,
		"types": relationTypes,
	}
	// Variable-length patterns cannot take a parameterized bound, so the
	// query is selected by hop count. Type filtering applies to every edge
	// on the path.
	query := `
		MATCH path = (a:Entity {id: $id})-[:RELATES*1..` + hopBound(maxHops) + `]-(b:Entity)
		WHERE ($types IS NULL OR size($types) = 0 OR all(r IN relationships(path) WHERE r.type IN $types))
		RETURN [n IN nodes(path) | n {.*}] AS nodes,
		       [r IN relationships(path) | r {.*,
		           source: startNode(r).id, target: endNode(r).id}] AS rels
		LIMIT 200
	`
	records, err := s.read(ctx, query, params)
	if err != nil {
		return nil, err
	}

	out := make([]Path, 0, len(records))
	for _, rec := range records {
		nodesVal, _ := rec.Get("nodes")
		relsVal, _ := rec.Get("rels")
		path := Path{}
		for _, nv := range asSlice(nodesVal) {
			path.Entities = append(path.Entities, entityFromProps(asMap(nv)))
		}
		for _, rv := range asSlice(relsVal) {
			path.Edges = append(path.Edges, relationFromProps(asMap(rv)))
		}
		if len(path.Entities) == 0 {
			continue
		}
		out = append(out, path)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if len(out[i].Edges) != len(out[j].Edges) {
			return len(out[i].Edges) < len(out[j].Edges)
		}
		return lastEntityID(out[i]) < lastEntityID(out[j])
	})
	return out, nil
}

// ChunksMentioning pulls chunks that mention any of the given entities,
// tagged with the entity and its hop distance so the retriever can score
// them.
func (s *store) ChunksMentioning(ctx context.Context, entityHops map[string]int) ([]ChunkMention, error) {
	if len(entityHops) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(entityHops))
	for id := range entityHops {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	records, err := s.read(ctx, `
		MATCH (c:Chunk)-[:MENTIONS]->(e:Entity)
		WHERE e.id IN $ids
		RETURN c {.*} AS chunk, e.id AS entity_id
	`, map[string]any{"ids": ids})
	if err != nil {
		return nil, err
	}

	out := make([]ChunkMention, 0, len(records))
	for _, rec := range records {
		chunkVal, _ := rec.Get("chunk")
		entityVal, _ := rec.Get("entity_id")
		entityID, _ := entityVal.(string)
		out = append(out, ChunkMention{
			Chunk:    chunkFromProps(asMap(chunkVal)),
			EntityID: entityID,
			Hops:     entityHops[entityID],
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Chunk.ID != out[j].Chunk.ID {
			return out[i].Chunk.ID < out[j].Chunk.ID
		}
		return out[i].EntityID < out[j].EntityID
	})
	return out, nil
}

func (s *store) ChunksByIDs(ctx context.Context, ids []string) ([]domain.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	records, err := s.read(ctx, `
		MATCH (c:Chunk)
		WHERE c.id IN $ids
		RETURN c {.*} AS chunk
	`, map[string]any{"ids": ids})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Chunk, 0, len(records))
	for _, rec := range records {
		chunkVal, _ := rec.Get("chunk")
		out = append(out, chunkFromProps(asMap(chunkVal)))
	}
	return out, nil
}

// AllChunks streams the chunk corpus, optionally scoped to a domain. Used to
// build the in-process keyword index.
func (s *store) AllChunks(ctx context.Context, domainTag string) ([]domain.Chunk, error) {
	query := `MATCH (c:Chunk) RETURN c {.*} AS chunk ORDER BY c.document_id, c.ordinal`
	params := map[string]any{}
	if domainTag != "" {
		query = `MATCH (c:Chunk) WHERE c.domain = $domain RETURN c {.*} AS chunk ORDER BY c.document_id, c.ordinal`
		params["domain"] = domainTag
	}
	records, err := s.read(ctx, query, params)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Chunk, 0, len(records))
	for _, rec := range records {
		chunkVal, _ := rec.Get("chunk")
		out = append(out, chunkFromProps(asMap(chunkVal)))
	}
	return out, nil
}

// EntityIndex returns id/name/alias triples for query-entity promotion.
func (s *store) EntityIndex(ctx context.Context) ([]EntityRef, error) {
	records, err := s.read(ctx, `
		MATCH (e:Entity)
		RETURN e.id AS id, e.name AS name, e.aliases AS aliases
		ORDER BY e.id
	`, nil)
	if err != nil {
		return nil, err
	}
	out := make([]EntityRef, 0, len(records))
	for _, rec := range records {
		idVal, _ := rec.Get("id")
		nameVal, _ := rec.Get("name")
		aliasVal, _ := rec.Get("aliases")
		ref := EntityRef{}
		ref.ID, _ = idVal.(string)
		ref.Name, _ = nameVal.(string)
		for _, a := range asSlice(aliasVal) {
			if s, ok := a.(string); ok {
				ref.Aliases = append(ref.Aliases, s)
			}
		}
		out = append(out, ref)
	}
	return out, nil
}

func (s *store) EntitiesByIDs(ctx context.Context, ids []string) ([]domain.Entity, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	records, err := s.read(ctx, `
		MATCH (e:Entity)
		WHERE e.id IN $ids
		RETURN e {.*} AS entity
	`, map[string]any{"ids": ids})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Entity, 0, len(records))
	for _, rec := range records {
		entVal, _ := rec.Get("entity")
		out = append(out, entityFromProps(asMap(entVal)))
	}
	return out, nil
}

func hopBound(maxHops int) string {
	switch maxHops {
	case 1:
		return "1"
	case 2:
		return "2"
	case 3:
		return "3"
	default:
		return "4"
	}
}

func lastEntityID(p Path) string {
	if len(p.Entities) == 0 {
		return ""
	}
	return p.Entities[len(p.Entities)-1].ID
}

func asSlice(v any) []any {
	if s, ok := v.([]any); ok {
		return s
	}
	return nil
}

func asMap(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return nil
}

func entityFromProps(props map[string]any) domain.Entity {
	e := domain.Entity{}
	e.ID, _ = props["id"].(string)
	e.Name, _ = props["name"].(string)
	e.Type, _ = props["type"].(string)
	e.Description, _ = props["description"].(string)
	e.Domain, _ = props["domain"].(string)
	e.Occurrence = intProp(props["occurrence"])
	e.Confidence = floatProp(props["confidence"])
	for _, a := range asSlice(props["aliases"]) {
		if s, ok := a.(string); ok {
			e.Aliases = append(e.Aliases, s)
		}
	}
	return e
}

func relationFromProps(props map[string]any) domain.Relation {
	r := domain.Relation{}
	r.SourceID, _ = props["source"].(string)
	r.TargetID, _ = props["target"].(string)
	r.Type, _ = props["type"].(string)
	r.Context, _ = props["context"].(string)
	r.Domain, _ = props["domain"].(string)
	r.Confidence = floatProp(props["confidence"])
	r.Weight = intProp(props["weight"])
	return r
}

func chunkFromProps(props map[string]any) domain.Chunk {
	c := domain.Chunk{}
	c.ID, _ = props["id"].(string)
	c.DocumentID, _ = props["document_id"].(string)
	c.Text, _ = props["text"].(string)
	c.Domain, _ = props["domain"].(string)
	c.Ordinal = intProp(props["ordinal"])
	c.Page = intProp(props["page"])
	for _, sp := range asSlice(props["section_path"]) {
		if s, ok := sp.(string); ok {
			c.SectionPath = append(c.SectionPath, s)
		}
	}
	return c
}

func intProp(v any) int {
	switch t := v.(type) {
	case int64:
		return int(t)
	case int:
		return t
	case float64:
		return int(t)
	default:
		return 0
	}
}

func floatProp(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int64:
		return float64(t)
	default:
		return 0
	}
}
