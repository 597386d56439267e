package app

import (
	"strings"

	"github.com/yungbote/classroom-backend/internal/data/db"
	"github.com/yungbote/classroom-backend/internal/jobs/worker"
	"github.com/yungbote/classroom-backend/internal/observability"
	"github.com/yungbote/classroom-backend/internal/platform/envutil"
	"github.com/yungbote/classroom-backend/internal/platform/github"
	"github.com/yungbote/classroom-backend/internal/platform/logger"
	"github.com/yungbote/classroom-backend/internal/realtime/bus"
	"github.com/yungbote/classroom-backend/internal/temporalx"
)

type Config struct {
	Port           string
	AllowedOrigins []string

	// RunServer and RunWorker select which halves of the process start.
	RunServer bool
	RunWorker bool

	DB       db.Config
	GitHub   github.Config
	Redis    bus.Config
	Metrics  observability.Config
	Otel     observability.OtelConfig
	Temporal temporalx.Config
	Worker   worker.Config
}

func LoadConfig(log *logger.Logger) Config {
	return Config{
		Port:           envutil.String("PORT", "8080", log),
		AllowedOrigins: splitList(envutil.String("CORS_ALLOWED_ORIGINS", "", log)),
		RunServer:      envutil.Bool("RUN_SERVER", true, log),
		RunWorker:      envutil.Bool("RUN_WORKER", true, log),

		DB:       db.LoadConfig(log),
		GitHub:   github.LoadConfig(log),
		Redis:    bus.LoadConfig(log),
		Metrics:  observability.LoadConfig(log),
		Otel:     observability.LoadOtelConfig(log),
		Temporal: temporalx.LoadConfig(log),
		Worker:   worker.LoadConfig(log),
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
