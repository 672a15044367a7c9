package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/alecKarfonta/graphrag/internal/domain"
	"github.com/alecKarfonta/graphrag/internal/platform/apierr"
	"github.com/alecKarfonta/graphrag/internal/platform/ctxutil"
	"github.com/alecKarfonta/graphrag/internal/platform/logger"
	"github.com/alecKarfonta/graphrag/internal/platform/neo4jdb"
)

// EntityRef is the planner-facing slice of an entity: enough to promote
// query terms to known graph entities.
type EntityRef struct {
	ID      string
	Name    string
	Aliases []string
}

// Path is a traversal result: entities visited in order and the edges
// between them.
type Path struct {
	Entities []domain.Entity
	Edges    []domain.Relation
}

// ChunkMention pairs a chunk with the entity whose mention led to it and the
// hop distance of that entity from the query seed.
type ChunkMention struct {
	Chunk    domain.Chunk
	EntityID string
	Hops     int
}

// Store is the graph-store surface. Retrieval and reasoning consume this
// interface; tests substitute fakes.
type Store interface {
	UpsertDocument(ctx context.Context, doc domain.Document) error
	SetDocumentStatus(ctx context.Context, documentID string, status domain.DocumentStatus) error
	UpsertChunks(ctx context.Context, chunks []domain.Chunk) error
	UpsertEntities(ctx context.Context, entities []domain.Entity) error
	UpsertRelations(ctx context.Context, relations []domain.Relation) error
	UpsertMentions(ctx context.Context, mentions []domain.Mention) error

	Neighbors(ctx context.Context, entityID string, maxHops int, relationTypes []string) ([]Path, error)
	ChunksMentioning(ctx context.Context, entityHops map[string]int) ([]ChunkMention, error)
	ChunksByIDs(ctx context.Context, ids []string) ([]domain.Chunk, error)
	AllChunks(ctx context.Context, domainTag string) ([]domain.Chunk, error)
	EntityIndex(ctx context.Context) ([]EntityRef, error)
	EntitiesByIDs(ctx context.Context, ids []string) ([]domain.Entity, error)

	FilteredProjection(ctx context.Context, filter domain.GraphFilter) (domain.Projection, error)
	TopEntities(ctx context.Context, domainTag, entityType string, limit, minOccurrence int) ([]domain.Entity, error)
	TopRelations(ctx context.Context, domainTag, relationType string, limit, minWeight int) ([]domain.Relation, error)
	Stats(ctx context.Context, domainTag string) (domain.GraphStats, error)
	Domains(ctx context.Context) ([]string, error)

	Documents(ctx context.Context) ([]domain.Document, error)
	DocumentByName(ctx context.Context, name string) (domain.Document, error)
	DeleteDocument(ctx context.Context, documentID string) error
	Clear(ctx context.Context) error
}

type store struct {
	log    *logger.Logger
	client *neo4jdb.Client
}

// New wraps a connected neo4j client. Constraint setup is best-effort: a
// store without admin rights still works, just without uniqueness
// enforcement at the database level.
func New(log *logger.Logger, client *neo4jdb.Client) (Store, error) {
	if log == nil {
		return nil, fmt.Errorf("graph: logger required")
	}
	if client == nil || client.Driver == nil {
		return nil, fmt.Errorf("graph: neo4j client required")
	}
	s := &store{
		log:    log.With("service", "GraphStore"),
		client: client,
	}
	s.ensureConstraints(context.Background())
	return s, nil
}

func (s *store) ensureConstraints(ctx context.Context) {
	statements := []string{
		"CREATE CONSTRAINT entity_id IF NOT EXISTS FOR (e:Entity) REQUIRE e.id IS UNIQUE",
		"CREATE CONSTRAINT chunk_id IF NOT EXISTS FOR (c:Chunk) REQUIRE c.id IS UNIQUE",
		"CREATE CONSTRAINT document_id IF NOT EXISTS FOR (d:Document) REQUIRE d.id IS UNIQUE",
		"CREATE INDEX entity_name_norm IF NOT EXISTS FOR (e:Entity) ON (e.name_norm)",
		"CREATE INDEX chunk_document IF NOT EXISTS FOR (c:Chunk) ON (c.document_id)",
	}
	for _, stmt := range statements {
		if err := s.write(ctx, stmt, nil); err != nil {
			s.log.Warn("constraint setup skipped", "error", err)
			return
		}
	}
}

func (s *store) UpsertDocument(ctx context.Context, doc domain.Document) error {
	return s.write(ctx, `
		MERGE (d:Document {id: $id})
		SET d.name = $name, d.domain = $domain, d.status = $status
	`, map[string]any{
		"id":     doc.ID,
		"name":   doc.Name,
		"domain": doc.Domain,
		"status": string(doc.Status),
	})
}

func (s *store) SetDocumentStatus(ctx context.Context, documentID string, status domain.DocumentStatus) error {
	return s.write(ctx, `
		MATCH (d:Document {id: $id})
		SET d.status = $status
	`, map[string]any{"id": documentID, "status": string(status)})
}

func (s *store) UpsertChunks(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	rows := make([]map[string]any, 0, len(chunks))
	for _, c := range chunks {
		rows = append(rows, map[string]any{
			"id":           c.ID,
			"document_id":  c.DocumentID,
			"ordinal":      c.Ordinal,
			"text":         c.Text,
			"section_path": c.SectionPath,
			"page":         c.Page,
			"domain":       c.Domain,
		})
	}
	return s.write(ctx, `
		UNWIND $rows AS row
		MERGE (c:Chunk {id: row.id})
		SET c.document_id = row.document_id,
		    c.ordinal = row.ordinal,
		    c.text = row.text,
		    c.section_path = row.section_path,
		    c.page = row.page,
		    c.domain = row.domain
		WITH c, row
		MATCH (d:Document {id: row.document_id})
		MERGE (d)-[:HAS_CHUNK]->(c)
	`, map[string]any{"rows": rows})
}

// UpsertEntities merges by id: occurrences add, aliases union, confidence
// keeps the max. Re-running the same batch over a fresh document is additive;
// the pipeline guarantees one batch per (document, entity).
func (s *store) UpsertEntities(ctx context.Context, entities []domain.Entity) error {
	if len(entities) == 0 {
		return nil
	}
	rows := make([]map[string]any, 0, len(entities))
	for _, e := range entities {
		rows = append(rows, map[string]any{
			"id":          e.ID,
			"name":        e.Name,
			"name_norm":   domain.NormalizeName(e.Name),
			"type":        e.Type,
			"description": e.Description,
			"aliases":     e.Aliases,
			"domain":      e.Domain,
			"occurrence":  e.Occurrence,
			"confidence":  e.Confidence,
		})
	}
	return s.write(ctx, `
		UNWIND $rows AS row
		MERGE (e:Entity {id: row.id})
		ON CREATE SET
			e.name = row.name,
			e.name_norm = row.name_norm,
			e.type = row.type,
			e.description = row.description,
			e.aliases = row.aliases,
			e.domain = row.domain,
			e.occurrence = row.occurrence,
			e.confidence = row.confidence
		ON MATCH SET
			e.occurrence = e.occurrence + row.occurrence,
			e.confidence = CASE WHEN row.confidence > e.confidence THEN row.confidence ELSE e.confidence END,
			e.description = CASE WHEN e.description = '' THEN row.description ELSE e.description END,
			e.aliases = [a IN e.aliases WHERE NOT a IN row.aliases] + row.aliases
	`, map[string]any{"rows": rows})
}

func (s *store) UpsertRelations(ctx context.Context, relations []domain.Relation) error {
	if len(relations) == 0 {
		return nil
	}
	rows := make([]map[string]any, 0, len(relations))
	for _, r := range relations {
		rows = append(rows, map[string]any{
			"source":     r.SourceID,
			"target":     r.TargetID,
			"type":       r.Type,
			"context":    r.Context,
			"confidence": r.Confidence,
			"weight":     r.Weight,
			"domain":     r.Domain,
		})
	}
	return s.write(ctx, `
		UNWIND $rows AS row
		MATCH (a:Entity {id: row.source})
		MATCH (b:Entity {id: row.target})
		MERGE (a)-[r:RELATES {type: row.type}]->(b)
		ON CREATE SET
			r.context = row.context,
			r.confidence = row.confidence,
			r.weight = row.weight,
			r.domain = row.domain
		ON MATCH SET
			r.weight = r.weight + row.weight,
			r.confidence = CASE WHEN row.confidence > r.confidence THEN row.confidence ELSE r.confidence END,
			r.context = CASE WHEN r.context = '' THEN row.context ELSE r.context END
	`, map[string]any{"rows": rows})
}

func (s *store) UpsertMentions(ctx context.Context, mentions []domain.Mention) error {
	if len(mentions) == 0 {
		return nil
	}
	rows := make([]map[string]any, 0, len(mentions))
	for _, m := range mentions {
		rows = append(rows, map[string]any{
			"entity_id": m.EntityID,
			"chunk_id":  m.ChunkID,
		})
	}
	return s.write(ctx, `
		UNWIND $rows AS row
		MATCH (c:Chunk {id: row.chunk_id})
		MATCH (e:Entity {id: row.entity_id})
		MERGE (c)-[:MENTIONS]->(e)
	`, map[string]any{"rows": rows})
}

// DeleteDocument removes the document's chunks and mentions, decrements the
// occurrence of every entity those chunks mentioned and garbage-collects
// entities that reach zero. Idempotent: a missing document is a no-op.
func (s *store) DeleteDocument(ctx context.Context, documentID string) error {
	ctx = ctxutil.Default(ctx)
	session := s.client.Session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if _, err := tx.Run(ctx, `
			MATCH (d:Document {id: $id})
			SET d.status = 'deleting'
		`, map[string]any{"id": documentID}); err != nil {
			return nil, err
		}

		// Decrement occurrence once per mention edge from this document.
		if _, err := tx.Run(ctx, `
			MATCH (d:Document {id: $id})-[:HAS_CHUNK]->(c:Chunk)-[m:MENTIONS]->(e:Entity)
			WITH e, count(m) AS mentions
			SET e.occurrence = e.occurrence - mentions
		`, map[string]any{"id": documentID}); err != nil {
			return nil, err
		}

		if _, err := tx.Run(ctx, `
			MATCH (d:Document {id: $id})-[:HAS_CHUNK]->(c:Chunk)
			DETACH DELETE c
		`, map[string]any{"id": documentID}); err != nil {
			return nil, err
		}

		if _, err := tx.Run(ctx, `
			MATCH (e:Entity)
			WHERE e.occurrence <= 0
			DETACH DELETE e
		`, nil); err != nil {
			return nil, err
		}

		if _, err := tx.Run(ctx, `
			MATCH (d:Document {id: $id})
			DETACH DELETE d
		`, map[string]any{"id": documentID}); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		return classifyNeo4jError(err)
	}
	return nil
}

func (s *store) Clear(ctx context.Context) error {
	return s.write(ctx, `MATCH (n) DETACH DELETE n`, nil)
}

func (s *store) write(ctx context.Context, query string, params map[string]any) error {
	ctx = ctxutil.Default(ctx)
	session := s.client.Session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return nil, result.Err()
	})
	if err != nil {
		return classifyNeo4jError(err)
	}
	return nil
}

func (s *store) read(ctx context.Context, query string, params map[string]any) ([]*neo4j.Record, error) {
	ctx = ctxutil.Default(ctx)
	session := s.client.Session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	records, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return result.Collect(ctx)
	})
	if err != nil {
		return nil, classifyNeo4jError(err)
	}
	out, _ := records.([]*neo4j.Record)
	return out, nil
}

func classifyNeo4jError(err error) error {
	if err == nil {
		return nil
	}
	if neo4j.IsConnectivityError(err) {
		return apierr.Transient("neo4j_connectivity", err)
	}
	if neo4j.IsNeo4jError(err) {
		ne := err.(*neo4j.Neo4jError)
		switch {
		case strings.HasPrefix(ne.Code, "Neo.ClientError.Security"):
			return apierr.Permanent("neo4j_auth", err)
		case strings.HasPrefix(ne.Code, "Neo.TransientError"):
			return apierr.Transient("neo4j_transient", err)
		default:
			return apierr.Permanent("neo4j_query", err)
		}
	}
	return apierr.New(apierr.KindOf(err), "neo4j", err)
}
