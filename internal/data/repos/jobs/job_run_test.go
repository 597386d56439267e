package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/classroom-backend/internal/data/repos/testutil"
	types "github.com/yungbote/classroom-backend/internal/domain"
	"github.com/yungbote/classroom-backend/internal/platform/dbctx"
)

func TestJobRunRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewJobRunRepo(db, testutil.Logger(t))

	now := time.Now().UTC()

	queued := &types.JobRun{
		ID:         uuid.New(),
		JobType:    "test_job",
		EntityType: "invite_status",
		EntityID:   ptrUUID(uuid.New()),
		Status:     "queued",
		Stage:      "queued",
		Payload:    datatypes.JSON([]byte("{}")),
		Result:     datatypes.JSON([]byte("{}")),
		CreatedAt:  now.Add(-3 * time.Hour),
		UpdatedAt:  now.Add(-3 * time.Hour),
	}
	failed := &types.JobRun{
		ID:          uuid.New(),
		JobType:     "test_job",
		EntityType:  "invite_status",
		EntityID:    ptrUUID(uuid.New()),
		Status:      "failed",
		Stage:       "failed",
		LastErrorAt: ptrTime(now.Add(-2 * time.Hour)),
		Payload:     datatypes.JSON([]byte("{}")),
		Result:      datatypes.JSON([]byte("{}")),
		CreatedAt:   now.Add(-2 * time.Hour),
		UpdatedAt:   now.Add(-2 * time.Hour),
	}
	staleRunning := &types.JobRun{
		ID:          uuid.New(),
		JobType:     "test_job",
		EntityType:  "invite_status",
		EntityID:    ptrUUID(uuid.New()),
		Status:      "running",
		Stage:       "running",
		HeartbeatAt: ptrTime(now.Add(-10 * time.Hour)),
		Payload:     datatypes.JSON([]byte("{}")),
		Result:      datatypes.JSON([]byte("{}")),
		CreatedAt:   now.Add(-1 * time.Hour),
		UpdatedAt:   now.Add(-1 * time.Hour),
	}
	exhausted := &types.JobRun{
		ID:          uuid.New(),
		JobType:     "test_job",
		Status:      "failed",
		Stage:       "failed",
		Attempts:    5,
		LastErrorAt: ptrTime(now.Add(-5 * time.Hour)),
		Payload:     datatypes.JSON([]byte("{}")),
		Result:      datatypes.JSON([]byte("{}")),
		CreatedAt:   now.Add(-4 * time.Hour),
		UpdatedAt:   now.Add(-4 * time.Hour),
	}
	permanent := &types.JobRun{
		ID:          uuid.New(),
		JobType:     "test_job",
		Status:      "failed",
		Stage:       "failed",
		NoRetry:     true,
		LastErrorAt: ptrTime(now.Add(-6 * time.Hour)),
		Payload:     datatypes.JSON([]byte("{}")),
		Result:      datatypes.JSON([]byte("{}")),
		CreatedAt:   now.Add(-6 * time.Hour),
		UpdatedAt:   now.Add(-6 * time.Hour),
	}

	created, err := repo.Create(dbc, []*types.JobRun{queued, failed, staleRunning, exhausted, permanent})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(created) != 5 {
		t.Fatalf("Create: want=5 got=%d", len(created))
	}

	if rows, err := repo.GetByIDs(dbc, []uuid.UUID{queued.ID, failed.ID, staleRunning.ID}); err != nil || len(rows) != 3 {
		t.Fatalf("GetByIDs: err=%v len=%d", err, len(rows))
	}

	// ClaimNextRunnable walks the runnable set in created_at ASC order and
	// never returns a job that has used up its attempts or opted out of retry.
	wantOrder := []uuid.UUID{queued.ID, failed.ID, staleRunning.ID}
	for i, want := range wantOrder {
		job, err := repo.ClaimNextRunnable(dbc, 5, time.Minute, 30*time.Minute)
		if err != nil {
			t.Fatalf("ClaimNextRunnable[%d]: %v", i, err)
		}
		if job == nil || job.ID != want {
			t.Fatalf("ClaimNextRunnable[%d]: want=%v got=%v", i, want, job)
		}
		if job.Status != "running" {
			t.Fatalf("ClaimNextRunnable[%d]: status want=running got=%s", i, job.Status)
		}
		if want := job.ID == staleRunning.ID; job.Reclaimed != want {
			t.Fatalf("ClaimNextRunnable[%d]: reclaimed want=%v got=%v", i, want, job.Reclaimed)
		}
	}
	if job, err := repo.ClaimNextRunnable(dbc, 5, time.Minute, 30*time.Minute); err != nil || (job != nil && job.JobType == "test_job") {
		t.Fatalf("ClaimNextRunnable drained: want no test_job got=%v err=%v", job, err)
	}

	// A canceled job is not overwritten by guarded updates.
	if err := repo.UpdateFields(dbc, queued.ID, map[string]interface{}{"status": "canceled"}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	ok, err := repo.UpdateFieldsUnlessStatus(dbc, queued.ID, []string{"canceled"}, map[string]interface{}{"stage": "late"})
	if err != nil || ok {
		t.Fatalf("UpdateFieldsUnlessStatus: want ok=false got ok=%v err=%v", ok, err)
	}
}

func TestJobRunRepoEntityQueries(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewJobRunRepo(db, testutil.Logger(t))

	now := time.Now().UTC()
	entityID := uuid.New()
	older := &types.JobRun{
		JobType:    "repo_provision",
		EntityType: "invite_status",
		EntityID:   &entityID,
		Status:     "failed",
		Stage:      "failed",
		CreatedAt:  now.Add(-5 * time.Hour),
		UpdatedAt:  now.Add(-5 * time.Hour),
	}
	newer := &types.JobRun{
		JobType:    "repo_provision",
		EntityType: "invite_status",
		EntityID:   &entityID,
		Status:     "queued",
		Stage:      "queued",
		CreatedAt:  now.Add(-4 * time.Hour),
		UpdatedAt:  now.Add(-4 * time.Hour),
	}
	if _, err := repo.Create(dbc, []*types.JobRun{older, newer}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	latest, err := repo.GetLatestByEntity(dbc, "invite_status", entityID, "repo_provision")
	if err != nil {
		t.Fatalf("GetLatestByEntity: %v", err)
	}
	if latest == nil || latest.ID != newer.ID {
		t.Fatalf("GetLatestByEntity: want=%v got=%v", newer.ID, latest)
	}
	has, err := repo.HasRunnableForEntity(dbc, "invite_status", entityID, "repo_provision")
	if err != nil || !has {
		t.Fatalf("HasRunnableForEntity: want=true got=%v err=%v", has, err)
	}
	has, err = repo.HasRunnableForEntity(dbc, "invite_status", uuid.New(), "repo_provision")
	if err != nil || has {
		t.Fatalf("HasRunnableForEntity other: want=false got=%v err=%v", has, err)
	}
}

func ptrUUID(id uuid.UUID) *uuid.UUID { return &id }

func ptrTime(t time.Time) *time.Time { return &t }
