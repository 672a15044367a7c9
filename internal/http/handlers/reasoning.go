package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/alecKarfonta/graphrag/internal/domain"
	"github.com/alecKarfonta/graphrag/internal/http/response"
	"github.com/alecKarfonta/graphrag/internal/platform/apierr"
	"github.com/alecKarfonta/graphrag/internal/services"
)

type ReasoningHandler struct {
	query *services.QueryService
}

func NewReasoningHandler(query *services.QueryService) *ReasoningHandler {
	return &ReasoningHandler{query: query}
}

type reasoningRequest struct {
	Query   string `json:"query"`
	MaxHops int    `json:"max_hops"`
}

func (h *ReasoningHandler) Advanced(c *gin.Context) {
	h.run(c, domain.ReasoningDirect)
}

func (h *ReasoningHandler) Causal(c *gin.Context) {
	h.run(c, domain.ReasoningCausal)
}

func (h *ReasoningHandler) Comparative(c *gin.Context) {
	h.run(c, domain.ReasoningComparative)
}

func (h *ReasoningHandler) MultiHop(c *gin.Context) {
	h.run(c, domain.ReasoningMultiHop)
}

func (h *ReasoningHandler) run(c *gin.Context, kind domain.ReasoningKind) {
	var req reasoningRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, apierr.Invalid("bad_body", err))
		return
	}
	result, err := h.query.Reasoning(c.Request.Context(), req.Query, kind, req.MaxHops)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, result)
}
