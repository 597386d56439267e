package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/classroom-backend/internal/data/repos"
	"github.com/yungbote/classroom-backend/internal/data/repos/testutil"
	types "github.com/yungbote/classroom-backend/internal/domain"
	"github.com/yungbote/classroom-backend/internal/platform/apierr"
	"github.com/yungbote/classroom-backend/internal/platform/dbctx"
	"github.com/yungbote/classroom-backend/internal/platform/github"
	"github.com/yungbote/classroom-backend/internal/platform/logger"
	"github.com/yungbote/classroom-backend/internal/realtime"
	"github.com/yungbote/classroom-backend/internal/services"
)

type fakeJobs struct {
	services.JobService

	lastTarget services.ProvisionTarget
	enqueueErr error
	retried    uuid.UUID
	state      types.ProgressState
	stateUser  *uuid.UUID
	stateGroup *uuid.UUID
	job        *types.JobRun
}

func (f *fakeJobs) EnqueueProvision(_ dbctx.Context, target services.ProvisionTarget) (*services.ProvisionEnqueued, error) {
	f.lastTarget = target
	if f.enqueueErr != nil {
		return nil, f.enqueueErr
	}
	id := uuid.New()
	return &services.ProvisionEnqueued{
		Job:          &types.JobRun{ID: uuid.New(), JobType: types.JobTypeRepoProvision, Status: types.JobStatusQueued},
		InviteStatus: &types.InviteStatus{ID: id, Status: types.StateAccepted},
		AttemptKey:   "provision:" + id.String(),
	}, nil
}

func (f *fakeJobs) RetryProvision(_ dbctx.Context, id uuid.UUID) (*services.ProvisionEnqueued, error) {
	f.retried = id
	return &services.ProvisionEnqueued{AttemptKey: "provision:" + id.String()}, nil
}

func (f *fakeJobs) ProgressState(_ dbctx.Context, _ uuid.UUID, userID, groupID *uuid.UUID) (types.ProgressState, error) {
	f.stateUser, f.stateGroup = userID, groupID
	return f.state, nil
}

func (f *fakeJobs) GetJob(_ dbctx.Context, id uuid.UUID) (*types.JobRun, error) {
	if f.job == nil || f.job.ID != id {
		return nil, apierr.NotFound("job_not_found", "job %s not found", id)
	}
	return f.job, nil
}

func engine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func do(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v body=%s", err, rec.Body.String())
	}
	return out
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	env, _ := decode(t, rec)["error"].(map[string]any)
	code, _ := env["code"].(string)
	return code
}

func provisionRouter(jobs services.JobService) *gin.Engine {
	r := engine()
	h := NewProvisionHandler(logger.Nop(), jobs)
	r.POST("/api/assignments/:id/provision", h.Enqueue)
	r.POST("/api/invite-statuses/:id/retry", h.Retry)
	r.GET("/api/invitations/:id/progress", h.Progress)
	return r
}

func TestProvisionEnqueueAccepted(t *testing.T) {
	jobs := &fakeJobs{}
	r := provisionRouter(jobs)
	assignmentID, invitationID, userID := uuid.New(), uuid.New(), uuid.New()

	rec := do(r, http.MethodPost, "/api/assignments/"+assignmentID.String()+"/provision", map[string]string{
		"invitation_id": invitationID.String(),
		"user_id":       userID.String(),
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status: want=%d got=%d body=%s", http.StatusAccepted, rec.Code, rec.Body.String())
	}
	got := jobs.lastTarget
	if got.AssignmentID != assignmentID || got.InvitationID != invitationID || got.UserID == nil || *got.UserID != userID || got.GroupID != nil {
		t.Fatalf("target: got=%+v", got)
	}
	body := decode(t, rec)
	if key, _ := body["attempt_key"].(string); !strings.HasPrefix(key, "provision:") {
		t.Fatalf("attempt_key: got=%v", body["attempt_key"])
	}
}

func TestProvisionEnqueueRejectsBadInput(t *testing.T) {
	r := provisionRouter(&fakeJobs{})
	inv := uuid.NewString()

	cases := []struct {
		name string
		path string
		body map[string]string
		code string
	}{
		{"bad assignment", "/api/assignments/nope/provision", map[string]string{"invitation_id": inv, "user_id": uuid.NewString()}, "invalid_assignment_id"},
		{"bad invitation", "/api/assignments/" + uuid.NewString() + "/provision", map[string]string{"invitation_id": "x", "user_id": uuid.NewString()}, "invalid_invitation_id"},
		{"no collaborator", "/api/assignments/" + uuid.NewString() + "/provision", map[string]string{"invitation_id": inv}, "invalid_collaborator"},
		{"both collaborators", "/api/assignments/" + uuid.NewString() + "/provision", map[string]string{"invitation_id": inv, "user_id": uuid.NewString(), "group_id": uuid.NewString()}, "invalid_collaborator"},
		{"bad group", "/api/assignments/" + uuid.NewString() + "/provision", map[string]string{"invitation_id": inv, "group_id": "g"}, "invalid_collaborator"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(r, http.MethodPost, tc.path, tc.body)
			if rec.Code != http.StatusBadRequest || errorCode(t, rec) != tc.code {
				t.Fatalf("want 400 %s got=%d %s", tc.code, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestProvisionEnqueueMapsServiceErrors(t *testing.T) {
	jobs := &fakeJobs{enqueueErr: apierr.Conflict("provision_errored", "previous attempt errored")}
	r := provisionRouter(jobs)
	rec := do(r, http.MethodPost, "/api/assignments/"+uuid.NewString()+"/provision", map[string]string{
		"invitation_id": uuid.NewString(),
		"group_id":      uuid.NewString(),
	})
	if rec.Code != http.StatusConflict || errorCode(t, rec) != "provision_errored" {
		t.Fatalf("want 409 provision_errored got=%d %s", rec.Code, rec.Body.String())
	}
}

func TestProvisionRetry(t *testing.T) {
	jobs := &fakeJobs{}
	r := provisionRouter(jobs)
	id := uuid.New()
	rec := do(r, http.MethodPost, "/api/invite-statuses/"+id.String()+"/retry", nil)
	if rec.Code != http.StatusAccepted || jobs.retried != id {
		t.Fatalf("retry: got=%d retried=%s", rec.Code, jobs.retried)
	}
}

func TestProvisionProgress(t *testing.T) {
	jobs := &fakeJobs{state: types.StateCreatingRepo}
	r := provisionRouter(jobs)
	gid := uuid.New()

	rec := do(r, http.MethodGet, fmt.Sprintf("/api/invitations/%s/progress?group_id=%s", uuid.NewString(), gid), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: want=200 got=%d", rec.Code)
	}
	if got := decode(t, rec)["status"]; got != string(types.StateCreatingRepo) {
		t.Fatalf("progress: want=%s got=%v", types.StateCreatingRepo, got)
	}
	if jobs.stateGroup == nil || *jobs.stateGroup != gid || jobs.stateUser != nil {
		t.Fatalf("collaborator: user=%v group=%v", jobs.stateUser, jobs.stateGroup)
	}

	rec = do(r, http.MethodGet, "/api/invitations/"+uuid.NewString()+"/progress", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing collaborator: want=400 got=%d", rec.Code)
	}
}

func TestGetJob(t *testing.T) {
	job := &types.JobRun{ID: uuid.New(), JobType: types.JobTypeRepoProvision, Status: types.JobStatusRunning}
	r := engine()
	r.GET("/api/jobs/:id", NewJobHandler(&fakeJobs{job: job}).GetJob)

	rec := do(r, http.MethodGet, "/api/jobs/"+job.ID.String(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: want=200 got=%d", rec.Code)
	}
	got, _ := decode(t, rec)["job"].(map[string]any)
	if got["id"] != job.ID.String() || got["status"] != types.JobStatusRunning {
		t.Fatalf("job: got=%v", got)
	}

	if rec := do(r, http.MethodGet, "/api/jobs/"+uuid.NewString(), nil); rec.Code != http.StatusNotFound {
		t.Fatalf("missing job: want=404 got=%d", rec.Code)
	}
	if rec := do(r, http.MethodGet, "/api/jobs/nope", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id: want=400 got=%d", rec.Code)
	}
}

type fakeDetailer struct {
	useCache []bool
	err      error
}

func (f *fakeDetailer) RepositoryDetails(_ context.Context, link *types.RepoLink, useCache bool) (*github.Repository, error) {
	f.useCache = append(f.useCache, useCache)
	if f.err != nil {
		return nil, f.err
	}
	return &github.Repository{ID: link.GitHubRepoID, Name: "intro-octocat", FullName: "acme/intro-octocat"}, nil
}

func seedLink(t *testing.T) (repos.RepoLinkRepo, *types.RepoLink) {
	t.Helper()
	db := testutil.DB(t)
	ctx := context.Background()
	room := testutil.SeedClassroom(t, ctx, db, nil)
	uid := room.User.ID
	link := &types.RepoLink{GitHubRepoID: 42, AssignmentID: room.Assignment.ID, UserID: &uid}
	links := repos.NewRepoLinkRepo(db, testutil.Logger(t))
	if err := links.Create(dbctx.Context{Ctx: ctx}, link); err != nil {
		t.Fatalf("create link: %v", err)
	}
	return links, link
}

func TestGetRepoLinkUseCache(t *testing.T) {
	links, link := seedLink(t)
	details := &fakeDetailer{}
	r := engine()
	r.GET("/api/repo-links/:id", NewRepoLinkHandler(links, details).GetRepoLink)

	rec := do(r, http.MethodGet, "/api/repo-links/"+link.ID.String(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: want=200 got=%d body=%s", rec.Code, rec.Body.String())
	}
	repo, _ := decode(t, rec)["repository"].(map[string]any)
	if repo["full_name"] != "acme/intro-octocat" {
		t.Fatalf("repository: got=%v", repo)
	}

	do(r, http.MethodGet, "/api/repo-links/"+link.ID.String()+"?use_cache=false", nil)
	if len(details.useCache) != 2 || !details.useCache[0] || details.useCache[1] {
		t.Fatalf("use_cache flags: got=%v", details.useCache)
	}

	if rec := do(r, http.MethodGet, "/api/repo-links/"+link.ID.String()+"?use_cache=maybe", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad use_cache: want=400 got=%d", rec.Code)
	}
	if rec := do(r, http.MethodGet, "/api/repo-links/"+uuid.NewString(), nil); rec.Code != http.StatusNotFound {
		t.Fatalf("missing link: want=404 got=%d", rec.Code)
	}
}

func TestGetRepoLinkRemoteErrors(t *testing.T) {
	links, link := seedLink(t)
	r := engine()
	notFound := &github.RemoteError{Op: "get_repository", Status: http.StatusNotFound, Category: github.CategoryNotFound}
	r.GET("/gone/:id", NewRepoLinkHandler(links, &fakeDetailer{err: notFound}).GetRepoLink)
	r.GET("/down/:id", NewRepoLinkHandler(links, &fakeDetailer{err: &github.RemoteError{Op: "get_repository", Status: 502, Category: github.CategoryServer}}).GetRepoLink)

	if rec := do(r, http.MethodGet, "/gone/"+link.ID.String()+"?use_cache=false", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("remote 404: want=404 got=%d", rec.Code)
	}
	if rec := do(r, http.MethodGet, "/down/"+link.ID.String()+"?use_cache=false", nil); rec.Code != http.StatusBadGateway {
		t.Fatalf("remote 5xx: want=502 got=%d", rec.Code)
	}
}

func TestListRepoLinksForAssignment(t *testing.T) {
	links, link := seedLink(t)
	r := engine()
	r.GET("/api/assignments/:id/repo-links", NewRepoLinkHandler(links, &fakeDetailer{}).ListForAssignment)

	rec := do(r, http.MethodGet, "/api/assignments/"+link.AssignmentID.String()+"/repo-links", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: want=200 got=%d body=%s", rec.Code, rec.Body.String())
	}
	got, _ := decode(t, rec)["repo_links"].([]any)
	if len(got) != 1 {
		t.Fatalf("repo links: want=1 got=%v", got)
	}
	if first, _ := got[0].(map[string]any); first["id"] != link.ID.String() {
		t.Fatalf("repo link id: want=%s got=%v", link.ID, first["id"])
	}

	rec = do(r, http.MethodGet, "/api/assignments/"+uuid.NewString()+"/repo-links", nil)
	if got, _ := decode(t, rec)["repo_links"].([]any); rec.Code != http.StatusOK || len(got) != 0 {
		t.Fatalf("other assignment: want=200 empty got=%d %v", rec.Code, got)
	}
	if rec := do(r, http.MethodGet, "/api/assignments/nope/repo-links", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id: want=400 got=%d", rec.Code)
	}
}

func TestSetSubmissionSHA(t *testing.T) {
	links, link := seedLink(t)
	r := engine()
	r.PUT("/api/repo-links/:id/submission", NewRepoLinkHandler(links, &fakeDetailer{}).SetSubmission)

	sha := strings.Repeat("ab", 20)
	rec := do(r, http.MethodPut, "/api/repo-links/"+link.ID.String()+"/submission", map[string]string{"sha": strings.ToUpper(sha)})
	if rec.Code != http.StatusOK {
		t.Fatalf("status: want=200 got=%d body=%s", rec.Code, rec.Body.String())
	}
	stored, err := links.GetByID(dbctx.Context{Ctx: context.Background()}, link.ID)
	if err != nil || stored == nil || stored.SubmissionSHA == nil || *stored.SubmissionSHA != sha {
		t.Fatalf("stored sha: want=%s got=%+v err=%v", sha, stored, err)
	}

	for _, bad := range []string{"", "abc123", strings.Repeat("z", 40)} {
		if rec := do(r, http.MethodPut, "/api/repo-links/"+link.ID.String()+"/submission", map[string]string{"sha": bad}); rec.Code != http.StatusBadRequest {
			t.Fatalf("sha %q: want=400 got=%d", bad, rec.Code)
		}
	}
	if rec := do(r, http.MethodPut, "/api/repo-links/"+uuid.NewString()+"/submission", map[string]string{"sha": sha}); rec.Code != http.StatusNotFound {
		t.Fatalf("missing link: want=404 got=%d", rec.Code)
	}
}

func TestSSEStreamRequiresAttemptChannel(t *testing.T) {
	hub := realtime.NewSSEHub(logger.Nop())
	r := engine()
	r.GET("/api/sse/stream", NewRealtimeHandler(logger.Nop(), hub).SSEStream)

	for _, q := range []string{"", "?channel=other", "?channel=provision:"} {
		if rec := do(r, http.MethodGet, "/api/sse/stream"+q, nil); rec.Code != http.StatusBadRequest {
			t.Fatalf("channel %q: want=400 got=%d", q, rec.Code)
		}
	}
}

func TestSSEStreamDeliversProgress(t *testing.T) {
	hub := realtime.NewSSEHub(logger.Nop())
	r := engine()
	r.GET("/api/sse/stream", NewRealtimeHandler(logger.Nop(), hub).SSEStream)

	channel := "provision:" + uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/sse/stream?channel="+channel, nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		r.ServeHTTP(rec, req)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers(channel) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	hub.Broadcast(realtime.SSEMessage{Channel: channel, Event: realtime.SSEEventProvisionProgress, Data: map[string]any{"stage": "create_repo"}})
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	if !strings.Contains(rec.Body.String(), `"stage":"create_repo"`) {
		t.Fatalf("stream body: got=%q", rec.Body.String())
	}
	if hub.Subscribers(channel) != 0 {
		t.Fatalf("subscribers after close: want=0 got=%d", hub.Subscribers(channel))
	}
}

func TestHealthCheck(t *testing.T) {
	r := engine()
	r.GET("/healthcheck", NewHealthHandler(testutil.DB(t)).HealthCheck)
	rec := do(r, http.MethodGet, "/healthcheck", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthcheck: got=%d %q", rec.Code, rec.Body.String())
	}
}
