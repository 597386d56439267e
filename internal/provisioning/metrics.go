package provisioning

import (
	"time"

	"github.com/yungbote/classroom-backend/internal/platform/logger"
)

// MetricsSink records named counters and timings. It is injected at
// construction; provisioning never reaches for a global.
type MetricsSink interface {
	Increment(name string) error
	Timing(name string, d time.Duration) error
}

type NopMetrics struct{}

func (NopMetrics) Increment(name string) error               { return nil }
func (NopMetrics) Timing(name string, d time.Duration) error { return nil }

// StatsSender names metrics after the exercise type and swallows sink
// failures.
type StatsSender struct {
	sink   MetricsSink
	prefix string
	log    *logger.Logger
}

func NewStatsSender(sink MetricsSink, ex *Exercise, log *logger.Logger) *StatsSender {
	if sink == nil {
		sink = NopMetrics{}
	}
	return &StatsSender{sink: sink, prefix: ex.StatsPrefix(), log: log}
}

// ReportWithExercisePrefix increments "<prefix>.repo_creation.<event>".
func (s *StatsSender) ReportWithExercisePrefix(event string) {
	s.increment(s.prefix + ".repo_creation." + event)
}

// ReportDefault increments "repo_creation.<event>".
func (s *StatsSender) ReportDefault(event string) {
	s.increment("repo_creation." + event)
}

func (s *StatsSender) Timing(start, end time.Time) {
	name := s.prefix + ".repo_creation.timing"
	if err := s.sink.Timing(name, end.Sub(start)); err != nil {
		s.log.Warn("Metrics timing failed", "metric", name, "error", err)
	}
}

func (s *StatsSender) increment(name string) {
	if err := s.sink.Increment(name); err != nil {
		s.log.Warn("Metrics increment failed", "metric", name, "error", err)
	}
}
