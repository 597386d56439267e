package classroom

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/classroom-backend/internal/data/db"
	"github.com/yungbote/classroom-backend/internal/data/repos/testutil"
	types "github.com/yungbote/classroom-backend/internal/domain"
	"github.com/yungbote/classroom-backend/internal/platform/dbctx"
)

func TestRepoLinkUniqueness(t *testing.T) {
	gdb := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	repo := NewRepoLinkRepo(gdb, testutil.Logger(t))
	room := testutil.SeedClassroom(t, ctx, gdb, nil)

	repoID := int64(900000 + room.Org.GitHubID%1000)
	first := &types.RepoLink{GitHubRepoID: repoID, AssignmentID: room.Assignment.ID, UserID: &room.User.ID}
	if err := repo.Create(dbc, first); err != nil {
		t.Fatalf("Create: %v", err)
	}

	sameRepo := &types.RepoLink{GitHubRepoID: repoID, AssignmentID: uuid.New(), UserID: &room.User.ID}
	err := repo.Create(dbc, sameRepo)
	if !db.IsUniqueViolation(err) {
		t.Fatalf("duplicate github_repo_id: want unique violation got=%v", err)
	}

	samePair := &types.RepoLink{GitHubRepoID: repoID + 1, AssignmentID: room.Assignment.ID, UserID: &room.User.ID}
	err = repo.Create(dbc, samePair)
	if !db.IsUniqueViolation(err) {
		t.Fatalf("duplicate (assignment,user): want unique violation got=%v", err)
	}

	groupLink := &types.RepoLink{GitHubRepoID: repoID + 2, AssignmentID: room.Assignment.ID, GroupID: &room.Group.ID}
	if err := repo.Create(dbc, groupLink); err != nil {
		t.Fatalf("group link on same assignment: %v", err)
	}

	got, err := repo.GetForCollaborator(dbc, room.Assignment.ID, &room.User.ID, nil)
	if err != nil || got == nil || got.ID != first.ID {
		t.Fatalf("GetForCollaborator: err=%v got=%v", err, got)
	}

	links, err := repo.ListByAssignment(dbc, room.Assignment.ID)
	if err != nil || len(links) != 2 {
		t.Fatalf("ListByAssignment: err=%v len=%d", err, len(links))
	}

	if err := repo.DeleteByID(dbc, first.ID); err != nil {
		t.Fatalf("DeleteByID: %v", err)
	}
	if err := repo.DeleteByID(dbc, first.ID); err != nil {
		t.Fatalf("DeleteByID twice: %v", err)
	}
	again := &types.RepoLink{GitHubRepoID: repoID, AssignmentID: room.Assignment.ID, UserID: &room.User.ID}
	if err := repo.Create(dbc, again); err != nil {
		t.Fatalf("Create after delete: %v", err)
	}
}

func TestRepoLinkRequiresExactlyOneCollaborator(t *testing.T) {
	gdb := testutil.DB(t)
	ctx := context.Background()
	repo := NewRepoLinkRepo(gdb, testutil.Logger(t))
	room := testutil.SeedClassroom(t, ctx, gdb, nil)

	both := &types.RepoLink{GitHubRepoID: 77, AssignmentID: room.Assignment.ID, UserID: &room.User.ID, GroupID: &room.Group.ID}
	if err := repo.Create(dbctx.Context{Ctx: ctx}, both); err == nil {
		t.Fatalf("Create with both refs: want error")
	}
	neither := &types.RepoLink{GitHubRepoID: 78, AssignmentID: room.Assignment.ID}
	if err := repo.Create(dbctx.Context{Ctx: ctx}, neither); err == nil {
		t.Fatalf("Create with no refs: want error")
	}
}

func TestRepoLinkCacheAndSubmission(t *testing.T) {
	gdb := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	repo := NewRepoLinkRepo(gdb, testutil.Logger(t))
	room := testutil.SeedClassroom(t, ctx, gdb, nil)

	link := &types.RepoLink{GitHubRepoID: 4242, AssignmentID: room.Assignment.ID, UserID: &room.User.ID}
	if err := repo.Create(dbc, link); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.UpdateCache(dbc, link.ID, RepoCache{Name: "intro-octocat", FullName: "acme/intro-octocat", HTMLURL: "https://github.com/acme/intro-octocat"}); err != nil {
		t.Fatalf("UpdateCache: %v", err)
	}
	if err := repo.SetSubmissionSHA(dbc, link.ID, "abc123"); err != nil {
		t.Fatalf("SetSubmissionSHA: %v", err)
	}
	got, err := repo.GetByID(dbc, link.ID)
	if err != nil || got == nil {
		t.Fatalf("GetByID: err=%v got=%v", err, got)
	}
	if got.GitHubFullName != "acme/intro-octocat" || got.CachedAt == nil {
		t.Fatalf("cache: got full_name=%q cached_at=%v", got.GitHubFullName, got.CachedAt)
	}
	if got.SubmissionSHA == nil || *got.SubmissionSHA != "abc123" {
		t.Fatalf("submission sha: got=%v", got.SubmissionSHA)
	}
}
