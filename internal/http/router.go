package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/classroom-backend/internal/http/handlers"
	httpMW "github.com/yungbote/classroom-backend/internal/http/middleware"
	"github.com/yungbote/classroom-backend/internal/observability"
	"github.com/yungbote/classroom-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	Metrics        *observability.Metrics
	AllowedOrigins []string
	// TracingService enables otelgin spans when non-empty.
	TracingService string

	ProvisionHandler *httpH.ProvisionHandler
	JobHandler       *httpH.JobHandler
	RepoLinkHandler  *httpH.RepoLinkHandler
	RealtimeHandler  *httpH.RealtimeHandler
	HealthHandler    *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.TracingService != "" {
		r.Use(otelgin.Middleware(cfg.TracingService))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.AllowedOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	api := r.Group("/api")
	{
		// Provisioning
		if cfg.ProvisionHandler != nil {
			api.POST("/assignments/:id/provision", cfg.ProvisionHandler.Enqueue)
			api.POST("/invite-statuses/:id/retry", cfg.ProvisionHandler.Retry)
			api.GET("/invitations/:id/progress", cfg.ProvisionHandler.Progress)
		}

		// Job
		if cfg.JobHandler != nil {
			api.GET("/jobs/:id", cfg.JobHandler.GetJob)
		}

		// Repo links
		if cfg.RepoLinkHandler != nil {
			api.GET("/repo-links/:id", cfg.RepoLinkHandler.GetRepoLink)
			api.PUT("/repo-links/:id/submission", cfg.RepoLinkHandler.SetSubmission)
			api.GET("/assignments/:id/repo-links", cfg.RepoLinkHandler.ListForAssignment)
		}

		// Realtime (SSE)
		if cfg.RealtimeHandler != nil {
			api.GET("/sse/stream", cfg.RealtimeHandler.SSEStream)
		}
	}

	return r
}
