package services

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/alecKarfonta/graphrag/internal/domain"
	"github.com/alecKarfonta/graphrag/internal/graph"
	"github.com/alecKarfonta/graphrag/internal/ingest/pipeline"
	"github.com/alecKarfonta/graphrag/internal/observability"
	"github.com/alecKarfonta/graphrag/internal/platform/apierr"
	"github.com/alecKarfonta/graphrag/internal/platform/logger"
	"github.com/alecKarfonta/graphrag/internal/platform/qdrant"
)

// DocumentService owns document lifecycle: ingest, listing, deletion and
// store-wide clears.
type DocumentService struct {
	log      *logger.Logger
	pipeline *pipeline.Pipeline
	graph    graph.Store
	vec      qdrant.Store
	metrics  *observability.Metrics
}

func NewDocumentService(log *logger.Logger, p *pipeline.Pipeline, graphStore graph.Store, vec qdrant.Store, metrics *observability.Metrics) *DocumentService {
	return &DocumentService{
		log:      log.With("service", "DocumentService"),
		pipeline: p,
		graph:    graphStore,
		vec:      vec,
		metrics:  metrics,
	}
}

// FileInput is one uploaded file.
type FileInput struct {
	Name string
	Text string
}

// IngestResult is the batch accounting for one upload request.
type IngestResult struct {
	Status    string            `json:"status"`
	Files     []pipeline.Output `json:"files"`
	Failed    int               `json:"failed"`
	Succeeded int               `json:"succeeded"`
	Reason    string            `json:"reason,omitempty"`
}

// IngestFiles processes every file; individual failures degrade the batch to
// partial rather than aborting it.
func (s *DocumentService) IngestFiles(ctx context.Context, files []FileInput, domainTag string, buildKG bool) (IngestResult, error) {
	out := IngestResult{}
	if len(files) == 0 {
		return out, apierr.Invalid("no_files", nil)
	}
	if domainTag == "" {
		domainTag = "general"
	}

	chunksIngested := 0
	for _, f := range files {
		result, err := s.pipeline.IngestDocument(ctx, pipeline.Input{
			Name:    f.Name,
			Domain:  domainTag,
			Format:  formatFromName(f.Name),
			Text:    f.Text,
			BuildKG: buildKG,
		})
		if err != nil {
			s.log.Warn("file ingest failed", "file", f.Name, "error", err)
			result.Name = f.Name
			result.Status = domain.DocumentPartial
			out.Failed++
		} else {
			out.Succeeded++
			chunksIngested += result.Chunks
		}
		out.Files = append(out.Files, result)
	}
	s.metrics.ObserveIngest(out.Succeeded, chunksIngested)

	switch {
	case out.Failed == 0:
		out.Status = "success"
	case out.Succeeded == 0:
		out.Status = "error"
		out.Reason = "all files failed to ingest"
	default:
		out.Status = "partial"
		out.Reason = "some files failed to ingest"
	}
	return out, nil
}

// DocumentList reconciles the graph and vector store inventories.
type DocumentList struct {
	Documents               []domain.Document `json:"documents"`
	TotalDocuments          int               `json:"total_documents"`
	VectorStoreDocuments    int               `json:"vector_store_documents"`
	KnowledgeGraphDocuments int               `json:"knowledge_graph_documents"`
}

func (s *DocumentService) List(ctx context.Context) (DocumentList, error) {
	out := DocumentList{Documents: []domain.Document{}}

	if s.graph != nil {
		docs, err := s.graph.Documents(ctx)
		if err != nil {
			return out, err
		}
		out.Documents = docs
		out.KnowledgeGraphDocuments = len(docs)
	}
	if s.vec != nil {
		ids, err := s.vec.DocumentIDs(ctx)
		if err != nil {
			s.log.Warn("vector store listing failed", "error", err)
		} else {
			out.VectorStoreDocuments = len(ids)
		}
	}
	out.TotalDocuments = len(out.Documents)
	return out, nil
}

// Delete removes every asset of the named document. Idempotent: deleting a
// missing document succeeds.
func (s *DocumentService) Delete(ctx context.Context, name string) error {
	if strings.TrimSpace(name) == "" {
		return apierr.Invalid("document_name_required", nil)
	}
	return s.pipeline.DeleteDocument(ctx, name)
}

// ClearAll wipes both stores. Idempotent.
func (s *DocumentService) ClearAll(ctx context.Context) error {
	return s.pipeline.Clear(ctx)
}

// SupportedFormats reports accepted ingest formats and feature flags.
type SupportedFormats struct {
	Formats  []string        `json:"formats"`
	Features map[string]bool `json:"features"`
}

func (s *DocumentService) SupportedFormats() SupportedFormats {
	return SupportedFormats{
		Formats: []string{"txt", "md", "csv", "json"},
		Features: map[string]bool{
			"knowledge_graph":   s.graph != nil,
			"vector_search":     s.vec != nil,
			"semantic_chunking": true,
		},
	}
}

func formatFromName(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return "csv"
	case ".json":
		return "json"
	case ".md", ".markdown":
		return "md"
	default:
		return "txt"
	}
}
