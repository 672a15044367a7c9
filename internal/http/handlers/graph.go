package handlers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/alecKarfonta/graphrag/internal/domain"
	"github.com/alecKarfonta/graphrag/internal/graph"
	"github.com/alecKarfonta/graphrag/internal/http/response"
	"github.com/alecKarfonta/graphrag/internal/platform/apierr"
)

// GraphHandler serves the knowledge-graph projection and stats endpoints.
// Every dump is filtered and capped server-side.
type GraphHandler struct {
	graph graph.Store
}

func NewGraphHandler(graphStore graph.Store) *GraphHandler {
	return &GraphHandler{graph: graphStore}
}

func (h *GraphHandler) available(c *gin.Context) bool {
	if h.graph == nil {
		response.RespondError(c, apierr.Transient("graph_store_unavailable", nil))
		return false
	}
	return true
}

// Filtered is the POST projection endpoint; the body is the filter object.
func (h *GraphHandler) Filtered(c *gin.Context) {
	if !h.available(c) {
		return
	}
	var filter domain.GraphFilter
	if err := c.ShouldBindJSON(&filter); err != nil {
		response.RespondError(c, apierr.Invalid("bad_filter", err))
		return
	}
	projection, err := h.graph.FilteredProjection(c.Request.Context(), filter)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"status": "success", "entities": projection.Entities,
		"relations": projection.Relations, "totals_before_filter": projection.TotalsBefore,
		"applied_filter": projection.AppliedFilter})
}

// Export is the GET variant with query-string bounds.
func (h *GraphHandler) Export(c *gin.Context) {
	if !h.available(c) {
		return
	}
	if format := c.DefaultQuery("format", "json"); format != "json" {
		response.RespondError(c, apierr.Invalid("bad_format", nil))
		return
	}
	filter := domain.GraphFilter{
		Domain:        strings.TrimSpace(c.Query("domain")),
		MaxEntities:   intQuery(c, "max_entities", 0),
		MaxRelations:  intQuery(c, "max_relations", 0),
		MinOccurrence: intQuery(c, "min_occurrence", 0),
	}
	projection, err := h.graph.FilteredProjection(c.Request.Context(), filter)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"status": "success", "entities": projection.Entities,
		"relations": projection.Relations, "totals_before_filter": projection.TotalsBefore,
		"applied_filter": projection.AppliedFilter})
}

func (h *GraphHandler) TopEntities(c *gin.Context) {
	if !h.available(c) {
		return
	}
	entities, err := h.graph.TopEntities(c.Request.Context(),
		strings.TrimSpace(c.Query("domain")),
		strings.TrimSpace(c.Query("type")),
		intQuery(c, "limit", 20),
		intQuery(c, "min_occurrence", 1),
	)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"status": "success", "entities": entities, "count": len(entities)})
}

func (h *GraphHandler) TopRelations(c *gin.Context) {
	if !h.available(c) {
		return
	}
	relations, err := h.graph.TopRelations(c.Request.Context(),
		strings.TrimSpace(c.Query("domain")),
		strings.TrimSpace(c.Query("type")),
		intQuery(c, "limit", 20),
		intQuery(c, "min_weight", 1),
	)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"status": "success", "relations": relations, "count": len(relations)})
}

func (h *GraphHandler) Stats(c *gin.Context) {
	if !h.available(c) {
		return
	}
	stats, err := h.graph.Stats(c.Request.Context(), strings.TrimSpace(c.Query("domain")))
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"status": "success", "stats": stats})
}

func (h *GraphHandler) Domains(c *gin.Context) {
	if !h.available(c) {
		return
	}
	domains, err := h.graph.Domains(c.Request.Context())
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"status": "success", "domains": domains, "count": len(domains)})
}

// DomainStats reports per-domain graph stats.
func (h *GraphHandler) DomainStats(c *gin.Context) {
	if !h.available(c) {
		return
	}
	domains, err := h.graph.Domains(c.Request.Context())
	if err != nil {
		response.RespondError(c, err)
		return
	}
	out := map[string]domain.GraphStats{}
	for _, d := range domains {
		stats, err := h.graph.Stats(c.Request.Context(), d)
		if err != nil {
			response.RespondError(c, err)
			return
		}
		out[d] = stats
	}
	response.RespondOK(c, gin.H{"status": "success", "domain_stats": out})
}

func intQuery(c *gin.Context, name string, def int) int {
	v := strings.TrimSpace(c.Query(name))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}
