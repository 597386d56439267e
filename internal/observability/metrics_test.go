package observability

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/yungbote/classroom-backend/internal/data/repos/testutil"
	types "github.com/yungbote/classroom-backend/internal/domain"
)

func TestIncrementAndTimingExport(t *testing.T) {
	m := New(Config{})
	if err := m.Increment("assignment.repo_creation.success"); err != nil {
		t.Fatalf("Increment: %v", err)
	}
	_ = m.Increment("assignment.repo_creation.success")
	if err := m.Timing("assignment.repo_creation.timing", 1500*time.Millisecond); err != nil {
		t.Fatalf("Timing: %v", err)
	}
	if got := m.provisionEvents.Value("assignment.repo_creation.success"); got != 2 {
		t.Fatalf("event count: want=2 got=%v", got)
	}
	if got := m.provisionTiming.Count("assignment.repo_creation.timing"); got != 1 {
		t.Fatalf("timing count: want=1 got=%d", got)
	}

	var buf bytes.Buffer
	if err := m.WritePrometheus(&buf); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		`classroom_provision_events_total{event="assignment.repo_creation.success"} 2`,
		`classroom_provision_duration_seconds_bucket{event="assignment.repo_creation.timing",le="2"} 1`,
		`classroom_provision_duration_seconds_bucket{event="assignment.repo_creation.timing",le="1"} 0`,
		`classroom_provision_duration_seconds_count{event="assignment.repo_creation.timing"} 1`,
		"# TYPE classroom_api_inflight_requests gauge",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("exposition missing %q:\n%s", want, out)
		}
	}
}

func TestEmptyNameRejected(t *testing.T) {
	m := New(Config{})
	if err := m.Increment("  "); err == nil {
		t.Fatalf("Increment: want error for empty name")
	}
	if err := m.Timing("", time.Second); err == nil {
		t.Fatalf("Timing: want error for empty name")
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	if err := m.Increment("x"); err != nil {
		t.Fatalf("nil Increment: %v", err)
	}
	m.ObserveAPI("GET", "/x", "200", time.Millisecond)
	m.ApiInflightInc()
	m.ObserveJob("repo_provision", "succeeded", time.Second)
	if Init(Config{Enabled: false}, nil) != nil {
		t.Fatalf("Init: want nil when disabled")
	}
}

func TestSeriesAreSorted(t *testing.T) {
	m := New(Config{})
	m.ObserveAPI("post", "/b", "201", time.Millisecond)
	m.ObserveAPI("get", "/a", "200", time.Millisecond)
	var buf bytes.Buffer
	if err := m.apiRequests.WritePrometheus(&buf); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := buf.String()
	a := strings.Index(out, `route="/a"`)
	b := strings.Index(out, `route="/b"`)
	if a < 0 || b < 0 || a > b {
		t.Fatalf("series order: want /a before /b got:\n%s", out)
	}
	if !strings.Contains(out, `method="GET"`) {
		t.Fatalf("method: want upper-cased got:\n%s", out)
	}
}

func TestLabelEscaping(t *testing.T) {
	got := labelString([]string{"a", "b"}, []string{"x\"y\\z\n"})
	want := `{a="x\"y\\z\n",b="unknown"}`
	if got != want {
		t.Fatalf("labelString: want=%s got=%s", want, got)
	}
	if got := withLe("", "+Inf"); got != `{le="+Inf"}` {
		t.Fatalf("withLe empty: got=%s", got)
	}
}

func TestCollectQueueDepth(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	for _, status := range []string{types.JobStatusQueued, types.JobStatusQueued, types.JobStatusFailed} {
		if err := db.WithContext(ctx).Create(&types.JobRun{JobType: "repo_provision", Status: status}).Error; err != nil {
			t.Fatalf("seed job: %v", err)
		}
	}
	m := New(Config{})
	if err := m.collectQueueDepth(ctx, db); err != nil {
		t.Fatalf("collectQueueDepth: %v", err)
	}
	if got := m.queueDepth.Value(types.JobStatusQueued); got != 2 {
		t.Fatalf("queued: want=2 got=%v", got)
	}
	if got := m.queueDepth.Value(types.JobStatusRunning); got != 0 {
		t.Fatalf("running: want=0 got=%v", got)
	}
	if got := m.queueDepth.Value(types.JobStatusFailed); got != 1 {
		t.Fatalf("failed: want=1 got=%v", got)
	}
}

func TestParseHeaders(t *testing.T) {
	h := parseHeaders("x-api-key=abc, bad, y = z ")
	if len(h) != 2 || h["x-api-key"] != "abc" || h["y"] != "z" {
		t.Fatalf("parseHeaders: got=%v", h)
	}
	if parseHeaders("") != nil {
		t.Fatalf("parseHeaders empty: want nil")
	}
}
