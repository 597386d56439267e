package app

import (
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"
	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/yungbote/classroom-backend/internal/platform/github"
	"github.com/yungbote/classroom-backend/internal/platform/logger"
	"github.com/yungbote/classroom-backend/internal/realtime/bus"
	"github.com/yungbote/classroom-backend/internal/temporalx"
)

type Clients struct {
	GitHub   *github.Client
	SSEBus   bus.Bus
	Temporal temporalsdkclient.Client
}

func wireClients(cfg Config, log *logger.Logger) (Clients, error) {
	log.Info("Wiring clients...")

	gh, err := github.NewClient(cfg.GitHub, log)
	if err != nil {
		return Clients{}, fmt.Errorf("init github client: %w", err)
	}
	if strings.TrimSpace(cfg.GitHub.Token) == "" {
		log.Warn("GITHUB_TOKEN not set; remote calls will be unauthenticated")
	}

	var sseBus bus.Bus
	if cfg.Redis.Enabled() {
		b, err := bus.NewRedisBus(cfg.Redis, log)
		if err != nil {
			return Clients{}, fmt.Errorf("init redis SSE bus: %w", err)
		}
		sseBus = b
	} else {
		log.Warn("REDIS_ADDR and REDIS_URL not set; progress events stay in this process")
	}

	tc, err := temporalx.NewClient(cfg.Temporal, log)
	if err != nil {
		if sseBus != nil {
			_ = sseBus.Close()
		}
		return Clients{}, fmt.Errorf("init temporal client: %w", err)
	}

	return Clients{
		GitHub:   gh,
		SSEBus:   sseBus,
		Temporal: tc,
	}, nil
}

// redisClient exposes the bus connection to the metrics collector.
func (c *Clients) redisClient() goredis.UniversalClient {
	if c == nil || c.SSEBus == nil {
		return nil
	}
	if rc, ok := c.SSEBus.(interface{ Client() goredis.UniversalClient }); ok {
		return rc.Client()
	}
	return nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.SSEBus != nil {
		_ = c.SSEBus.Close()
	}
	if c.Temporal != nil {
		c.Temporal.Close()
	}
}
