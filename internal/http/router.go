package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/diveops-backend/internal/http/handlers"
	httpMW "github.com/yungbote/diveops-backend/internal/http/middleware"
	"github.com/yungbote/diveops-backend/internal/observability"
	"github.com/yungbote/diveops-backend/internal/pkg/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	ServiceName string
	CORSOrigins []string
	// Metrics enables request instrumentation and GET /metrics when non-nil.
	Metrics *observability.Metrics

	ContentHandler   *httpH.ContentHandler
	IntegrityHandler *httpH.IntegrityHandler
	HealthHandler    *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api")
	{
		// Content generation
		if cfg.ContentHandler != nil {
			api.POST("/lessons/:id/pdf", cfg.ContentHandler.GeneratePDF)
			api.POST("/lessons/:id/podcast", cfg.ContentHandler.GeneratePodcast)
			api.GET("/lessons/:id/generation-logs", cfg.ContentHandler.ListGenerationLogs)
			api.POST("/pdf/batch", cfg.ContentHandler.GeneratePDFBatch)
		}

		// Integrity
		if cfg.IntegrityHandler != nil {
			api.POST("/integrity/audit", cfg.IntegrityHandler.RunAudit)
			api.GET("/integrity/audit/last", cfg.IntegrityHandler.LastAudit)
		}
	}

	return r
}
