package worker

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/classroom-backend/internal/data/repos"
	types "github.com/yungbote/classroom-backend/internal/domain"
	"github.com/yungbote/classroom-backend/internal/jobs/runtime"
	"github.com/yungbote/classroom-backend/internal/platform/dbctx"
	"github.com/yungbote/classroom-backend/internal/platform/envutil"
	"github.com/yungbote/classroom-backend/internal/platform/logger"
	"github.com/yungbote/classroom-backend/internal/services"
)

type Config struct {
	Concurrency   int
	PollInterval  time.Duration
	MaxAttempts   int
	RetryDelay    time.Duration
	StaleRunning  time.Duration
	HeartbeatEach time.Duration
}

func LoadConfig(log *logger.Logger) Config {
	cfg := Config{
		Concurrency:   envutil.Int("WORKER_CONCURRENCY", 4, log),
		PollInterval:  envutil.Duration("WORKER_POLL_INTERVAL", time.Second, log),
		MaxAttempts:   envutil.Int("WORKER_MAX_ATTEMPTS", 5, log),
		RetryDelay:    envutil.Duration("WORKER_RETRY_DELAY", 30*time.Second, log),
		StaleRunning:  envutil.Duration("WORKER_STALE_RUNNING", 5*time.Minute, log),
		HeartbeatEach: envutil.Duration("WORKER_HEARTBEAT_INTERVAL", 30*time.Second, log),
	}
	return cfg.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.Concurrency < 1 {
		c.Concurrency = 1
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 1
	}
	if c.HeartbeatEach <= 0 {
		c.HeartbeatEach = 30 * time.Second
	}
	if c.StaleRunning <= c.HeartbeatEach {
		c.StaleRunning = 4 * c.HeartbeatEach
	}
	return c
}

// JobObserver records per-run outcomes; *observability.Metrics satisfies it.
type JobObserver interface {
	ObserveJob(jobType, status string, dur time.Duration)
}

type Worker struct {
	db       *gorm.DB
	log      *logger.Logger
	repo     repos.JobRunRepo
	registry *runtime.Registry
	notify   services.JobNotifier
	observe  JobObserver
	cfg      Config
}

func NewWorker(db *gorm.DB, baseLog *logger.Logger, repo repos.JobRunRepo, registry *runtime.Registry, notify services.JobNotifier, observe JobObserver, cfg Config) *Worker {
	return &Worker{
		db:       db,
		log:      baseLog.With("component", "JobWorker"),
		repo:     repo,
		registry: registry,
		notify:   notify,
		observe:  observe,
		cfg:      cfg.withDefaults(),
	}
}

// Start launches the polling loops and returns immediately. The loops exit
// when ctx is done.
func (w *Worker) Start(ctx context.Context) {
	w.log.Info("Starting job worker pool", "concurrency", w.cfg.Concurrency, "job_types", w.registry.Types())
	for i := 0; i < w.cfg.Concurrency; i++ {
		go w.runLoop(ctx, i+1)
	}
}

func (w *Worker) runLoop(ctx context.Context, workerID int) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		case <-ticker.C:
			for w.RunOnce(ctx) {
				if ctx.Err() != nil {
					return
				}
			}
		}
	}
}

// RunOnce claims and runs at most one job and reports whether it found one.
func (w *Worker) RunOnce(ctx context.Context) bool {
	job, err := w.repo.ClaimNextRunnable(dbctx.Context{Ctx: ctx}, w.cfg.MaxAttempts, w.cfg.RetryDelay, w.cfg.StaleRunning)
	if err != nil {
		w.log.Warn("ClaimNextRunnable failed", "error", err)
		return false
	}
	if job == nil {
		return false
	}
	w.execute(ctx, job)
	return true
}

func (w *Worker) execute(ctx context.Context, job *types.JobRun) {
	start := time.Now()
	jc := runtime.NewContext(ctx, w.db, job, w.repo, w.notify)
	log := w.log.With("job_id", job.ID, "job_type", job.JobType, "attempt", job.Attempts, "reclaimed", job.Reclaimed)

	h, ok := w.registry.Get(job.JobType)
	if !ok {
		log.Warn("No handler registered for job_type")
		jc.Fail("dispatch", runtime.Permanent(&missingHandlerError{JobType: job.JobType}))
		w.record(job, start)
		return
	}

	stopHB := w.startHeartbeat(ctx, job)
	defer stopHB()

	func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("Job handler panic", "panic", r)
				jc.Fail("panic", errFromRecover(r))
			}
		}()
		if runErr := h.Run(jc); runErr != nil {
			// Most pipelines call jc.Fail themselves; this is a safety net.
			jc.Fail("run", runErr)
		}
	}()
	if job.Status == types.JobStatusRunning {
		log.Warn("Job handler returned without terminal status; marking succeeded", "stage", job.Stage)
		jc.Succeed("done", nil)
	}
	w.record(job, start)
}

func (w *Worker) record(job *types.JobRun, start time.Time) {
	if w.observe != nil {
		w.observe.ObserveJob(job.JobType, job.Status, time.Since(start))
	}
}

func (w *Worker) startHeartbeat(ctx context.Context, job *types.JobRun) func() {
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(w.cfg.HeartbeatEach)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-t.C:
				if err := w.repo.Heartbeat(dbctx.Context{Ctx: ctx}, job.ID); err != nil {
					w.log.Warn("Job heartbeat failed", "job_id", job.ID, "error", err)
				}
			}
		}
	}()
	return func() { close(done) }
}

type missingHandlerError struct{ JobType string }

func (e *missingHandlerError) Error() string { return "no handler registered for job_type=" + e.JobType }

func errFromRecover(v any) error { return &panicError{Val: v} }

type panicError struct{ Val any }

func (e *panicError) Error() string { return fmt.Sprintf("panic: %v", e.Val) }
