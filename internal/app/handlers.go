package app

import (
	"gorm.io/gorm"

	httpx "github.com/yungbote/classroom-backend/internal/http"
	httpH "github.com/yungbote/classroom-backend/internal/http/handlers"
	"github.com/yungbote/classroom-backend/internal/observability"
	"github.com/yungbote/classroom-backend/internal/platform/logger"
	"github.com/yungbote/classroom-backend/internal/realtime"
)

type Handlers struct {
	Provision *httpH.ProvisionHandler
	Job       *httpH.JobHandler
	RepoLink  *httpH.RepoLinkHandler
	Realtime  *httpH.RealtimeHandler
	Health    *httpH.HealthHandler
}

func wireHandlers(db *gorm.DB, log *logger.Logger, repos Repos, svcs Services, hub *realtime.SSEHub) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Provision: httpH.NewProvisionHandler(log, svcs.JobService),
		Job:       httpH.NewJobHandler(svcs.JobService),
		RepoLink:  httpH.NewRepoLinkHandler(repos.RepoLink, svcs.Provisioning),
		Realtime:  httpH.NewRealtimeHandler(log, hub),
		Health:    httpH.NewHealthHandler(db),
	}
}

func wireRouterConfig(log *logger.Logger, cfg Config, h Handlers, metrics *observability.Metrics) httpx.RouterConfig {
	tracing := ""
	if cfg.Otel.Enabled {
		tracing = cfg.Otel.ServiceName
	}
	return httpx.RouterConfig{
		Log:              log,
		Metrics:          metrics,
		AllowedOrigins:   cfg.AllowedOrigins,
		TracingService:   tracing,
		ProvisionHandler: h.Provision,
		JobHandler:       h.Job,
		RepoLinkHandler:  h.RepoLink,
		RealtimeHandler:  h.Realtime,
		HealthHandler:    h.Health,
	}
}
