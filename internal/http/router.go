package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpH "github.com/alecKarfonta/graphrag/internal/http/handlers"
	httpMW "github.com/alecKarfonta/graphrag/internal/http/middleware"
	"github.com/alecKarfonta/graphrag/internal/observability"
	"github.com/alecKarfonta/graphrag/internal/platform/logger"
)

type RouterConfig struct {
	Log     *logger.Logger
	Metrics *observability.Metrics

	HealthHandler    *httpH.HealthHandler
	DocumentHandler  *httpH.DocumentHandler
	SearchHandler    *httpH.SearchHandler
	ReasoningHandler *httpH.ReasoningHandler
	GraphHandler     *httpH.GraphHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpMW.AttachRequestContext())
	r.Use(httpMW.CORS())
	r.Use(httpMW.RequestLog(cfg.Log, cfg.Metrics))

	if cfg.HealthHandler != nil {
		r.GET("/health", cfg.HealthHandler.Health)
	}
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if cfg.DocumentHandler != nil {
		r.POST("/ingest-documents", cfg.DocumentHandler.Ingest)
		r.GET("/documents/list", cfg.DocumentHandler.List)
		r.DELETE("/documents/:name", cfg.DocumentHandler.Delete)
		r.DELETE("/clear-all", cfg.DocumentHandler.ClearAll)
		r.GET("/supported-formats", cfg.DocumentHandler.SupportedFormats)
	}

	if cfg.SearchHandler != nil {
		r.POST("/search", cfg.SearchHandler.Search)
		r.POST("/search-advanced", cfg.SearchHandler.SearchAdvanced)
		r.POST("/enhanced-query", cfg.SearchHandler.EnhancedQuery)
		r.POST("/analyze-query-intent", cfg.SearchHandler.AnalyzeIntent)
	}

	if cfg.ReasoningHandler != nil {
		r.POST("/advanced-reasoning", cfg.ReasoningHandler.Advanced)
		r.POST("/causal-reasoning", cfg.ReasoningHandler.Causal)
		r.POST("/comparative-reasoning", cfg.ReasoningHandler.Comparative)
		r.POST("/multi-hop-reasoning", cfg.ReasoningHandler.MultiHop)
	}

	if cfg.GraphHandler != nil {
		kg := r.Group("/knowledge-graph")
		{
			kg.GET("/export", cfg.GraphHandler.Export)
			kg.POST("/filtered", cfg.GraphHandler.Filtered)
			kg.GET("/top-entities", cfg.GraphHandler.TopEntities)
			kg.GET("/top-relations", cfg.GraphHandler.TopRelations)
			kg.GET("/stats", cfg.GraphHandler.Stats)
			kg.GET("/domains", cfg.GraphHandler.Domains)
			kg.GET("/domain-stats", cfg.GraphHandler.DomainStats)
		}
	}

	return r
}
