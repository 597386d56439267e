package observability

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	types "github.com/yungbote/classroom-backend/internal/domain"
	"github.com/yungbote/classroom-backend/internal/platform/envutil"
	"github.com/yungbote/classroom-backend/internal/platform/logger"
)

type Config struct {
	Enabled        bool
	Addr           string
	ScrapeInterval time.Duration
}

func LoadConfig(log *logger.Logger) Config {
	cfg := Config{
		Enabled:        envutil.Bool("METRICS_ENABLED", false, log),
		Addr:           envutil.String("METRICS_ADDR", ":9090", log),
		ScrapeInterval: envutil.Duration("METRICS_SCRAPE_INTERVAL", 15*time.Second, log),
	}
	if cfg.ScrapeInterval <= 0 {
		cfg.ScrapeInterval = 15 * time.Second
	}
	return cfg
}

var errMetricName = errors.New("metric name is empty")

// Metrics holds every series the service exports. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	cfg Config

	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *Gauge

	provisionEvents *CounterVec
	provisionTiming *HistogramVec

	jobRuns     *CounterVec
	jobDuration *HistogramVec
	queueDepth  *GaugeVec

	pgStats   *GaugeVec
	redisUp   *Gauge
	redisPing *Gauge
}

func New(cfg Config) *Metrics {
	if cfg.ScrapeInterval <= 0 {
		cfg.ScrapeInterval = 15 * time.Second
	}
	return &Metrics{
		cfg: cfg,

		apiRequests: NewCounterVec("classroom_api_requests_total", "Total API requests", []string{"method", "route", "status"}),
		apiLatency:  NewHistogramVec("classroom_api_request_duration_seconds", "API request latency", []string{"method", "route"}, nil),
		apiInflight: NewGauge("classroom_api_inflight_requests", "In-flight API requests"),

		provisionEvents: NewCounterVec("classroom_provision_events_total", "Repository provisioning events", []string{"event"}),
		provisionTiming: NewHistogramVec("classroom_provision_duration_seconds", "Repository provisioning attempt duration", []string{"event"},
			[]float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120, 300}),

		jobRuns:     NewCounterVec("classroom_job_runs_total", "Background job runs by outcome", []string{"job_type", "status"}),
		jobDuration: NewHistogramVec("classroom_job_duration_seconds", "Background job run duration", []string{"job_type"}, nil),
		queueDepth:  NewGaugeVec("classroom_job_queue_depth", "Jobs by status", []string{"status"}),

		pgStats:   NewGaugeVec("classroom_postgres_pool", "database/sql pool stats", []string{"stat"}),
		redisUp:   NewGauge("classroom_redis_up", "Redis reachability (1 up, 0 down)"),
		redisPing: NewGauge("classroom_redis_ping_seconds", "Redis ping latency"),
	}
}

// Init returns nil when metrics are disabled.
func Init(cfg Config, log *logger.Logger) *Metrics {
	if !cfg.Enabled {
		if log != nil {
			log.Info("metrics disabled")
		}
		return nil
	}
	return New(cfg)
}

func (m *Metrics) collectors() []collector {
	return []collector{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.provisionEvents, m.provisionTiming,
		m.jobRuns, m.jobDuration, m.queueDepth,
		m.pgStats, m.redisUp, m.redisPing,
	}
}

func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger) {
	if m == nil {
		return
	}
	addr := strings.TrimSpace(m.cfg.Addr)
	if addr == "" {
		return
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           http.HandlerFunc(m.WriteHTTP),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			if log != nil {
				log.Error("metrics server failed", "error", err, "addr", addr)
			}
		}
	}()
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, c := range m.collectors() {
		if err := c.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

// Increment counts one provisioning event, e.g. "assignment.repo_creation.success".
func (m *Metrics) Increment(name string) error {
	if m == nil {
		return nil
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return errMetricName
	}
	m.provisionEvents.Inc(name)
	return nil
}

func (m *Metrics) Timing(name string, d time.Duration) error {
	if m == nil {
		return nil
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return errMetricName
	}
	m.provisionTiming.Observe(d.Seconds(), name)
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.apiRequests.Inc(strings.ToUpper(method), route, status)
	m.apiLatency.Observe(dur.Seconds(), strings.ToUpper(method), route)
}

func (m *Metrics) ApiInflightInc() {
	if m != nil {
		m.apiInflight.Inc()
	}
}

func (m *Metrics) ApiInflightDec() {
	if m != nil {
		m.apiInflight.Dec()
	}
}

func (m *Metrics) ObserveJob(jobType, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.jobRuns.Inc(jobType, status)
	m.jobDuration.Observe(dur.Seconds(), jobType)
}

func (m *Metrics) StartPostgresCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	m.every(ctx, func() {
		sqlDB, err := db.DB()
		if err != nil {
			if log != nil {
				log.Warn("metrics: postgres stats unavailable", "error", err)
			}
			return
		}
		stats := sqlDB.Stats()
		m.pgStats.Set(float64(stats.OpenConnections), "open_connections")
		m.pgStats.Set(float64(stats.InUse), "in_use")
		m.pgStats.Set(float64(stats.Idle), "idle")
		m.pgStats.Set(float64(stats.WaitCount), "wait_count")
		m.pgStats.Set(stats.WaitDuration.Seconds(), "wait_duration_seconds")
		m.pgStats.Set(float64(stats.MaxOpenConnections), "max_open_connections")
	})
}

// StartRedisCollector pings rdb on every scrape tick. The caller owns rdb.
func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb redis.UniversalClient) {
	if m == nil || rdb == nil {
		return
	}
	m.every(ctx, func() {
		start := time.Now()
		if err := rdb.Ping(ctx).Err(); err != nil {
			m.redisUp.Set(0)
			if log != nil {
				log.Warn("metrics: redis ping failed", "error", err)
			}
			return
		}
		m.redisUp.Set(1)
		m.redisPing.Set(time.Since(start).Seconds())
	})
}

func (m *Metrics) StartJobQueueCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	m.every(ctx, func() {
		if err := m.collectQueueDepth(ctx, db); err != nil && log != nil {
			log.Warn("metrics: job queue depth query failed", "error", err)
		}
	})
}

func (m *Metrics) collectQueueDepth(ctx context.Context, db *gorm.DB) error {
	var rows []struct {
		Status string
		Count  int64
	}
	if err := db.WithContext(ctx).
		Model(&types.JobRun{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return err
	}
	for _, s := range []string{
		types.JobStatusQueued,
		types.JobStatusRunning,
		types.JobStatusSucceeded,
		types.JobStatusFailed,
		types.JobStatusCanceled,
	} {
		m.queueDepth.Set(0, s)
	}
	for _, row := range rows {
		status := strings.TrimSpace(row.Status)
		if status == "" {
			status = "unknown"
		}
		m.queueDepth.Set(float64(row.Count), status)
	}
	return nil
}

func (m *Metrics) every(ctx context.Context, fn func()) {
	go func() {
		ticker := time.NewTicker(m.cfg.ScrapeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
}
