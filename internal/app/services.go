package app

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/classroom-backend/internal/jobs/pipeline/repo_provision"
	jobrt "github.com/yungbote/classroom-backend/internal/jobs/runtime"
	"github.com/yungbote/classroom-backend/internal/jobs/worker"
	"github.com/yungbote/classroom-backend/internal/observability"
	"github.com/yungbote/classroom-backend/internal/platform/logger"
	"github.com/yungbote/classroom-backend/internal/provisioning"
	"github.com/yungbote/classroom-backend/internal/realtime"
	"github.com/yungbote/classroom-backend/internal/services"
	"github.com/yungbote/classroom-backend/internal/temporalx/temporalworker"
)

type Services struct {
	Emitter      realtime.Emitter
	JobNotifier  services.JobNotifier
	JobService   services.JobService
	JobRegistry  *jobrt.Registry
	Provisioning *provisioning.Service
	Resolver     *provisioning.Resolver

	// Exactly one of these runs jobs: the polling worker when Temporal is
	// not configured, the Temporal runner otherwise.
	JobWorker      *worker.Worker
	TemporalWorker *temporalworker.Runner
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, repos Repos, hub *realtime.SSEHub, clients Clients, metrics *observability.Metrics) (Services, error) {
	log.Info("Wiring services...")

	var emitter realtime.Emitter = &realtime.HubEmitter{Hub: hub}
	if clients.SSEBus != nil {
		emitter = &realtime.BusEmitter{Bus: clients.SSEBus, Fallback: hub}
	}
	jobNotifier := services.NewJobNotifier(emitter)

	var sink provisioning.MetricsSink = provisioning.NopMetrics{}
	if metrics != nil {
		sink = metrics
	}
	provisioner := provisioning.NewService(provisioning.Deps{
		Links:       repos.RepoLink,
		Statuses:    repos.InviteStatus,
		Client:      clients.GitHub,
		Broadcaster: provisioning.NewRealtimeBroadcaster(emitter),
		Metrics:     sink,
		Reporter:    provisioning.NewErrorReporter(log),
		Log:         log,
		Now:         time.Now,
	})
	resolver := provisioning.NewResolver(provisioning.ResolverDeps{
		Organizations: repos.Organization,
		Users:         repos.User,
		Groups:        repos.Group,
		Assignments:   repos.Assignment,
		Invitations:   repos.Invitation,
		Statuses:      repos.InviteStatus,
	})

	registry := jobrt.NewRegistry()
	if err := registry.Register(repo_provision.New(log, resolver, provisioner)); err != nil {
		return Services{}, fmt.Errorf("register repo_provision: %w", err)
	}

	jobService := services.NewJobService(services.JobServiceDeps{
		DB:          db,
		Log:         log,
		Jobs:        repos.JobRun,
		Invitations: repos.Invitation,
		Statuses:    repos.InviteStatus,
		Reopener:    provisioner,
		Notify:      jobNotifier,
		Temporal:    clients.Temporal,
		TaskQueue:   cfg.Temporal.TaskQueue,
		MaxAttempts: cfg.Worker.MaxAttempts,
	})

	out := Services{
		Emitter:      emitter,
		JobNotifier:  jobNotifier,
		JobService:   jobService,
		JobRegistry:  registry,
		Provisioning: provisioner,
		Resolver:     resolver,
	}

	if !cfg.RunWorker {
		return out, nil
	}
	if clients.Temporal != nil {
		runner, err := temporalworker.NewRunner(cfg.Temporal, log, clients.Temporal, db, repos.JobRun, registry, jobNotifier)
		if err != nil {
			return Services{}, fmt.Errorf("init temporal worker: %w", err)
		}
		out.TemporalWorker = runner
	} else {
		out.JobWorker = worker.NewWorker(db, log, repos.JobRun, registry, jobNotifier, metrics, cfg.Worker)
	}
	return out, nil
}
