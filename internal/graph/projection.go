package graph

import (
	"context"
	"strings"

	"github.com/alecKarfonta/graphrag/internal/domain"
	"github.com/alecKarfonta/graphrag/internal/platform/apierr"
)

// FilteredProjection selects entities under the filter, then relations whose
// both endpoints survived, and reports the unfiltered totals. Server-side so
// the UI never loads an unbounded graph.
func (s *store) FilteredProjection(ctx context.Context, filter domain.GraphFilter) (domain.Projection, error) {
	out := domain.Projection{}
	if !filter.Normalize() {
		return out, apierr.Invalid("bad_filter", nil)
	}
	out.AppliedFilter = filter

	totals, err := s.totals(ctx, filter.Domain)
	if err != nil {
		return out, err
	}
	out.TotalsBefore = totals

	entities, err := s.selectEntities(ctx, filter)
	if err != nil {
		return out, err
	}
	out.Entities = entities

	relations, err := s.selectRelations(ctx, filter, entities)
	if err != nil {
		return out, err
	}
	out.Relations = relations
	return out, nil
}

func (s *store) totals(ctx context.Context, domainTag string) (domain.ProjectionTotals, error) {
	t := domain.ProjectionTotals{}
	entityWhere, relWhere := "", ""
	params := map[string]any{}
	if domainTag != "" {
		entityWhere = "WHERE e.domain = $domain"
		relWhere = "WHERE r.domain = $domain"
		params["domain"] = domainTag
	}
	records, err := s.read(ctx, `MATCH (e:Entity) `+entityWhere+` RETURN count(e) AS n`, params)
	if err != nil {
		return t, err
	}
	if len(records) > 0 {
		nv, _ := records[0].Get("n")
		t.Entities = intProp(nv)
	}
	records, err = s.read(ctx, `MATCH (:Entity)-[r:RELATES]->(:Entity) `+relWhere+` RETURN count(r) AS n`, params)
	if err != nil {
		return t, err
	}
	if len(records) > 0 {
		nv, _ := records[0].Get("n")
		t.Relations = intProp(nv)
	}
	return t, nil
}

func (s *store) selectEntities(ctx context.Context, filter domain.GraphFilter) ([]domain.Entity, error) {
	var where []string
	params := map[string]any{
		"min_occurrence": filter.MinOccurrence,
		"min_confidence": filter.MinConfidence,
		"limit":          filter.MaxEntities,
	}
	where = append(where, "e.occurrence >= $min_occurrence", "e.confidence >= $min_confidence")
	if filter.Domain != "" {
		where = append(where, "e.domain = $domain")
		params["domain"] = filter.Domain
	}
	if len(filter.EntityTypes) > 0 {
		where = append(where, "e.type IN $types")
		params["types"] = filter.EntityTypes
	}

	records, err := s.read(ctx, `
		MATCH (e:Entity)
		WHERE `+strings.Join(where, " AND ")+`
		RETURN e {.*} AS entity
		ORDER BY `+entityOrderClause(filter)+`, e.id ASC
		LIMIT $limit
	`, params)
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

func (s *store) selectRelations(ctx context.Context, filter domain.GraphFilter, entities []domain.Entity) ([]domain.Relation, error) {
	if len(entities) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(entities))
	for _, e := range entities {
		ids = append(ids, e.ID)
	}

	params := map[string]any{
		"ids":        ids,
		"min_weight": filter.MinOccurrence,
		"limit":      filter.MaxRelations,
	}
	typeClause := ""
	if len(filter.RelationTypes) > 0 {
		typeClause = "AND r.type IN $types"
		params["types"] = filter.RelationTypes
	}

	records, err := s.read(ctx, `
		MATCH (a:Entity)-[r:RELATES]->(b:Entity)
		WHERE a.id IN $ids AND b.id IN $ids AND r.weight >= $min_weight `+typeClause+`
		RETURN r {.*, source: a.id, target: b.id} AS relation
		ORDER BY r.weight DESC, a.id ASC, b.id ASC, r.type ASC
		LIMIT $limit
	`, params)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Relation, 0, len(records))
	for _, rec := range records {
		relVal, _ := rec.Get("relation")
		out = append(out, relationFromProps(asMap(relVal)))
	}
	return out, nil
}

func entityOrderClause(filter domain.GraphFilter) string {
	dir := "DESC"
	if filter.SortOrder == "asc" {
		dir = "ASC"
	}
	switch filter.SortBy {
	case "confidence":
		return "e.confidence " + dir
	case "name":
		return "e.name " + dir
	default:
		return "e.occurrence " + dir
	}
}

func (s *store) TopEntities(ctx context.Context, domainTag, entityType string, limit, minOccurrence int) ([]domain.Entity, error) {
	if limit <= 0 {
		limit = 20
	}
	if minOccurrence < 1 {
		minOccurrence = 1
	}
	filter := domain.GraphFilter{
		Domain:        domainTag,
		MaxEntities:   limit,
		MinOccurrence: minOccurrence,
		SortBy:        "occurrence",
		SortOrder:     "desc",
	}
	if entityType != "" {
		filter.EntityTypes = []string{entityType}
	}
	if !filter.Normalize() {
		return nil, apierr.Invalid("bad_filter", nil)
	}
	return s.selectEntities(ctx, filter)
}

func (s *store) TopRelations(ctx context.Context, domainTag, relationType string, limit, minWeight int) ([]domain.Relation, error) {
	if limit <= 0 {
		limit = 20
	}
	if minWeight < 1 {
		minWeight = 1
	}
	params := map[string]any{
		"min_weight": minWeight,
		"limit":      limit,
	}
	var where []string
	where = append(where, "r.weight >= $min_weight")
	if domainTag != "" {
		where = append(where, "r.domain = $domain")
		params["domain"] = domainTag
	}
	if relationType != "" {
		where = append(where, "r.type = $type")
		params["type"] = relationType
	}

	records, err := s.read(ctx, `
		MATCH (a:Entity)-[r:RELATES]->(b:Entity)
		WHERE `+strings.Join(where, " AND ")+`
		RETURN r {.*, source: a.id, target: b.id} AS relation
		ORDER BY r.weight DESC, a.id ASC, b.id ASC, r.type ASC
		LIMIT $limit
	`, params)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Relation, 0, len(records))
	for _, rec := range records {
		relVal, _ := rec.Get("relation")
		out = append(out, relationFromProps(asMap(relVal)))
	}
	return out, nil
}

func (s *store) Stats(ctx context.Context, domainTag string) (domain.GraphStats, error) {
	stats := domain.GraphStats{
		EntityTypes:   map[string]int{},
		RelationTypes: map[string]int{},
	}

	entityWhere := ""
	params := map[string]any{}
	if domainTag != "" {
		entityWhere = "WHERE e.domain = $domain"
		params["domain"] = domainTag
	}

	records, err := s.read(ctx, `
		MATCH (e:Entity) `+entityWhere+`
		RETURN e.type AS type, count(e) AS n
	`, params)
	if err != nil {
		return stats, err
	}
	for _, rec := range records {
		tv, _ := rec.Get("type")
		nv, _ := rec.Get("n")
		typ, _ := tv.(string)
		stats.EntityTypes[typ] += intProp(nv)
		stats.Entities += intProp(nv)
	}

	relWhere := ""
	if domainTag != "" {
		relWhere = "WHERE r.domain = $domain"
	}
	records, err = s.read(ctx, `
		MATCH (:Entity)-[r:RELATES]->(:Entity) `+relWhere+`
		RETURN r.type AS type, count(r) AS n
	`, params)
	if err != nil {
		return stats, err
	}
	for _, rec := range records {
		tv, _ := rec.Get("type")
		nv, _ := rec.Get("n")
		typ, _ := tv.(string)
		stats.RelationTypes[typ] += intProp(nv)
		stats.Relations += intProp(nv)
	}

	chunkWhere := ""
	if domainTag != "" {
		chunkWhere = "WHERE c.domain = $domain"
	}
	records, err = s.read(ctx, `
		MATCH (c:Chunk) `+chunkWhere+`
		RETURN count(c) AS chunks, count(DISTINCT c.document_id) AS documents
	`, params)
	if err != nil {
		return stats, err
	}
	if len(records) > 0 {
		cv, _ := records[0].Get("chunks")
		dv, _ := records[0].Get("documents")
		stats.Chunks = intProp(cv)
		stats.Documents = intProp(dv)
	}

	if stats.Entities > 1 {
		maxEdges := float64(stats.Entities) * float64(stats.Entities-1)
		stats.Density = float64(stats.Relations) / maxEdges
	}
	return stats, nil
}

func (s *store) Domains(ctx context.Context) ([]string, error) {
	records, err := s.read(ctx, `
		MATCH (e:Entity)
		WHERE e.domain IS NOT NULL AND e.domain <> ''
		RETURN DISTINCT e.domain AS domain
		ORDER BY domain
	`, nil)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(records))
	for _, rec := range records {
		dv, _ := rec.Get("domain")
		if d, ok := dv.(string); ok && d != "" {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *store) Documents(ctx context.Context) ([]domain.Document, error) {
	records, err := s.read(ctx, `
		MATCH (d:Document)
		OPTIONAL MATCH (d)-[:HAS_CHUNK]->(c:Chunk)
		RETURN d {.*} AS doc, count(c) AS chunks
		ORDER BY d.name
	`, nil)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Document, 0, len(records))
	for _, rec := range records {
		docVal, _ := rec.Get("doc")
		chunksVal, _ := rec.Get("chunks")
		doc := documentFromProps(asMap(docVal))
		doc.Chunks = intProp(chunksVal)
		out = append(out, doc)
	}
	return out, nil
}

func (s *store) DocumentByName(ctx context.Context, name string) (domain.Document, error) {
	records, err := s.read(ctx, `
		MATCH (d:Document {name: $name})
		OPTIONAL MATCH (d)-[:HAS_CHUNK]->(c:Chunk)
		RETURN d {.*} AS doc, count(c) AS chunks
	`, map[string]any{"name": name})
	if err != nil {
		return domain.Document{}, err
	}
	if len(records) == 0 {
		return domain.Document{}, apierr.NotFound("document_not_found", nil)
	}
	docVal, _ := records[0].Get("doc")
	chunksVal, _ := records[0].Get("chunks")
	doc := documentFromProps(asMap(docVal))
	doc.Chunks = intProp(chunksVal)
	return doc, nil
}

func documentFromProps(props map[string]any) domain.Document {
	d := domain.Document{}
	d.ID, _ = props["id"].(string)
	d.Name, _ = props["name"].(string)
	d.Domain, _ = props["domain"].(string)
	if s, ok := props["status"].(string); ok {
		d.Status = domain.DocumentStatus(s)
	}
	return d
}
