package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/alecKarfonta/graphrag/internal/http/response"
	"github.com/alecKarfonta/graphrag/internal/platform/apierr"
	"github.com/alecKarfonta/graphrag/internal/services"
)

type SearchHandler struct {
	query *services.QueryService
}

func NewSearchHandler(query *services.QueryService) *SearchHandler {
	return &SearchHandler{query: query}
}

type searchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

// Search is the basic hybrid path.
func (h *SearchHandler) Search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, apierr.Invalid("bad_body", err))
		return
	}
	result, err := h.query.Search(c.Request.Context(), req.Query, "hybrid", "", req.TopK)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, result)
}

type searchAdvancedRequest struct {
	Query      string `json:"query"`
	SearchType string `json:"search_type"`
	TopK       int    `json:"top_k"`
	Domain     string `json:"domain"`
}

func (h *SearchHandler) SearchAdvanced(c *gin.Context) {
	var req searchAdvancedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, apierr.Invalid("bad_body", err))
		return
	}
	result, err := h.query.Search(c.Request.Context(), req.Query, req.SearchType, req.Domain, req.TopK)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, result)
}

type queryRequest struct {
	Query string `json:"query"`
}

func (h *SearchHandler) EnhancedQuery(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, apierr.Invalid("bad_body", err))
		return
	}
	result, err := h.query.EnhancedQuery(c.Request.Context(), req.Query)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, result)
}

func (h *SearchHandler) AnalyzeIntent(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, apierr.Invalid("bad_body", err))
		return
	}
	plan, err := h.query.AnalyzeIntent(c.Request.Context(), req.Query)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, gin.H{
		"status":             "success",
		"query":              plan.Query,
		"intent_type":        plan.Intent,
		"confidence":         plan.Confidence,
		"entities":           plan.Entities,
		"strategy":           plan.Strategies,
		"complexity":         plan.Complexity,
		"max_hops":           plan.MaxHops,
		"reasoning_required": plan.Reasoning != "",
		"reasoning_type":     plan.Reasoning,
	})
}
