package handlers

import (
	"io"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/alecKarfonta/graphrag/internal/http/response"
	"github.com/alecKarfonta/graphrag/internal/platform/apierr"
	"github.com/alecKarfonta/graphrag/internal/services"
)

const maxUploadBytes = 64 << 20

type DocumentHandler struct {
	docs *services.DocumentService
}

func NewDocumentHandler(docs *services.DocumentService) *DocumentHandler {
	return &DocumentHandler{docs: docs}
}

// Ingest accepts a multipart upload and ingests every file.
func (h *DocumentHandler) Ingest(c *gin.Context) {
	domainTag := strings.TrimSpace(c.Query("domain"))
	buildKG := true
	if v := strings.TrimSpace(c.Query("build_knowledge_graph")); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			response.RespondError(c, apierr.Invalid("bad_build_knowledge_graph", err))
			return
		}
		buildKG = parsed
	}

	form, err := c.MultipartForm()
	if err != nil {
		response.RespondError(c, apierr.Invalid("bad_multipart", err))
		return
	}
	var files []services.FileInput
	for _, headers := range form.File {
		for _, header := range headers {
			f, err := header.Open()
			if err != nil {
				response.RespondError(c, apierr.Invalid("bad_file", err))
				return
			}
			raw, err := io.ReadAll(io.LimitReader(f, maxUploadBytes))
			_ = f.Close()
			if err != nil {
				response.RespondError(c, apierr.Invalid("bad_file", err))
				return
			}
			files = append(files, services.FileInput{Name: header.Filename, Text: string(raw)})
		}
	}

	result, err := h.docs.IngestFiles(c.Request.Context(), files, domainTag, buildKG)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, result)
}

func (h *DocumentHandler) List(c *gin.Context) {
	result, err := h.docs.List(c.Request.Context())
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, result)
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	name := c.Param("name")
	if err := h.docs.Delete(c.Request.Context(), name); err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"status": "success", "deleted": name})
}

func (h *DocumentHandler) ClearAll(c *gin.Context) {
	if err := h.docs.ClearAll(c.Request.Context()); err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"status": "success"})
}

func (h *DocumentHandler) SupportedFormats(c *gin.Context) {
	response.RespondOK(c, h.docs.SupportedFormats())
}
