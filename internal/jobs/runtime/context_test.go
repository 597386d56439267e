package runtime

import (
	"context"
	"errors"
	"sync"
	"testing"

	"gorm.io/datatypes"

	"github.com/yungbote/classroom-backend/internal/data/repos"
	"github.com/yungbote/classroom-backend/internal/data/repos/testutil"
	types "github.com/yungbote/classroom-backend/internal/domain"
	"github.com/yungbote/classroom-backend/internal/platform/ctxutil"
	"github.com/yungbote/classroom-backend/internal/platform/dbctx"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) add(ev string) {
	n.mu.Lock()
	n.events = append(n.events, ev)
	n.mu.Unlock()
}

func (n *recordingNotifier) JobCreated(ctx context.Context, job *types.JobRun) { n.add("created") }
func (n *recordingNotifier) JobProgress(ctx context.Context, job *types.JobRun, stage string, progress int, message string) {
	n.add("progress:" + stage)
}
func (n *recordingNotifier) JobFailed(ctx context.Context, job *types.JobRun, stage string, errorMessage string) {
	n.add("failed:" + stage)
}
func (n *recordingNotifier) JobDone(ctx context.Context, job *types.JobRun) { n.add("done") }

func seedJob(t *testing.T, repo repos.JobRunRepo, payload string) *types.JobRun {
	t.Helper()
	job := &types.JobRun{JobType: "test_job", Status: types.JobStatusRunning, Payload: datatypes.JSON([]byte(payload))}
	if _, err := repo.Create(dbctx.Context{Ctx: context.Background()}, []*types.JobRun{job}); err != nil {
		t.Fatalf("create job: %v", err)
	}
	return job
}

func TestContextLifecycle(t *testing.T) {
	db := testutil.DB(t)
	repo := repos.NewJobRunRepo(db, testutil.Logger(t))
	notify := &recordingNotifier{}
	job := seedJob(t, repo, `{"invite_status_id":"8c0a1f9e-3a55-4c8e-9d55-7a1f0f6e2b10","trace_id":"t-1"}`)

	jc := NewContext(context.Background(), db, job, repo, notify)
	if id, ok := jc.PayloadUUID("invite_status_id"); !ok || id.String() != "8c0a1f9e-3a55-4c8e-9d55-7a1f0f6e2b10" {
		t.Fatalf("PayloadUUID: got=%v ok=%v", id, ok)
	}
	if _, ok := jc.PayloadUUID("missing"); ok {
		t.Fatalf("PayloadUUID missing: want ok=false")
	}
	if td := ctxutil.GetTraceData(jc.Ctx); td == nil || td.TraceID != "t-1" {
		t.Fatalf("trace data: got=%+v", td)
	}

	jc.Progress("provision", 20, "Creating repository")
	jc.Succeed("done", map[string]any{"ok": true})

	stored, err := repo.GetByID(dbctx.Context{Ctx: context.Background()}, job.ID)
	if err != nil || stored == nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.Status != types.JobStatusSucceeded || stored.Progress != 100 || stored.Stage != "done" {
		t.Fatalf("stored: got status=%s progress=%d stage=%s", stored.Status, stored.Progress, stored.Stage)
	}
	want := []string{"progress:provision", "done"}
	if len(notify.events) != len(want) || notify.events[0] != want[0] || notify.events[1] != want[1] {
		t.Fatalf("events: want=%v got=%v", want, notify.events)
	}
}

func TestContextFailPermanent(t *testing.T) {
	db := testutil.DB(t)
	repo := repos.NewJobRunRepo(db, testutil.Logger(t))
	job := seedJob(t, repo, `{}`)
	jc := NewContext(context.Background(), db, job, repo, nil)

	jc.Fail("provision", Permanent(errors.New("quota exceeded")))
	stored, _ := repo.GetByID(dbctx.Context{Ctx: context.Background()}, job.ID)
	if stored.Status != types.JobStatusFailed || !stored.NoRetry || stored.Error != "quota exceeded" {
		t.Fatalf("stored: got status=%s no_retry=%v error=%q", stored.Status, stored.NoRetry, stored.Error)
	}
}

func TestContextRespectsCancel(t *testing.T) {
	db := testutil.DB(t)
	repo := repos.NewJobRunRepo(db, testutil.Logger(t))
	notify := &recordingNotifier{}
	job := seedJob(t, repo, `{}`)
	if err := repo.UpdateFields(dbctx.Context{Ctx: context.Background()}, job.ID, map[string]interface{}{"status": types.JobStatusCanceled}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	jc := NewContext(context.Background(), db, job, repo, notify)
	jc.Succeed("done", nil)
	if len(notify.events) != 0 {
		t.Fatalf("events: want none for canceled job got=%v", notify.events)
	}
	stored, _ := repo.GetByID(dbctx.Context{Ctx: context.Background()}, job.ID)
	if stored.Status != types.JobStatusCanceled {
		t.Fatalf("status: want=canceled got=%s", stored.Status)
	}
}

func TestPermanentWrapping(t *testing.T) {
	base := errors.New("x")
	if IsPermanent(base) {
		t.Fatalf("plain error reported permanent")
	}
	wrapped := Permanent(base)
	if !IsPermanent(wrapped) || !errors.Is(wrapped, base) {
		t.Fatalf("Permanent: want permanent wrapping base got=%v", wrapped)
	}
	if Permanent(nil) != nil {
		t.Fatalf("Permanent(nil): want nil")
	}
}

type namedHandler string

func (h namedHandler) Type() string { return string(h) }
func (h namedHandler) Run(ctx *Context) error { return nil }

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(namedHandler("b")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	_ = r.Register(namedHandler("a"))
	if err := r.Register(namedHandler("a")); err == nil {
		t.Fatalf("duplicate Register: want error")
	}
	if err := r.Register(namedHandler("")); err == nil {
		t.Fatalf("empty Type: want error")
	}
	if got := r.Types(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("Types: got=%v", got)
	}
}
