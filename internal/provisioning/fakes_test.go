package provisioning

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/yungbote/classroom-backend/internal/platform/github"
)

type fakeClient struct {
	mu sync.Mutex

	nextRepoID int64
	plan       *github.Plan

	planErr       error
	createErr     error
	templateErr   error
	inviteErr     error
	acceptErr     error
	teamErr       error
	pushErr       error
	deleteErr     error
	getErr        error
	getRepository *github.Repository

	// onCreate runs inside CreateRepository before the repository is returned.
	onCreate func()

	createCalls   []string
	templateCalls []int64
	deleteCalls   []int64
	inviteCalls   []string
	acceptTokens  []string
	teamCalls     []int64
	pushCalls     [][2]int64
	planCalls     int
	getCalls      int
}

func newFakeClient() *fakeClient {
	return &fakeClient{nextRepoID: 42, plan: &github.Plan{OwnedPrivateRepos: 1, PrivateRepos: 10}}
}

func (f *fakeClient) newRepo(name string, private bool) *github.Repository {
	id := f.nextRepoID
	f.nextRepoID++
	return &github.Repository{
		ID:       id,
		Name:     name,
		FullName: "acme/" + name,
		Owner:    "acme",
		HTMLURL:  "https://github.com/acme/" + name,
		Private:  private,
	}
}

func (f *fakeClient) CreateRepository(ctx context.Context, org, name string, opts github.CreateOptions) (*github.Repository, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls = append(f.createCalls, name)
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.onCreate != nil {
		f.onCreate()
	}
	return f.newRepo(name, opts.Private), nil
}

func (f *fakeClient) CreateRepositoryFromTemplate(ctx context.Context, templateID int64, name string, opts github.TemplateOptions) (*github.Repository, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.templateCalls = append(f.templateCalls, templateID)
	if f.templateErr != nil {
		return nil, f.templateErr
	}
	return f.newRepo(name, opts.Private), nil
}

func (f *fakeClient) DeleteRepository(ctx context.Context, repoID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls = append(f.deleteCalls, repoID)
	return f.deleteErr
}

func (f *fakeClient) GetRepository(ctx context.Context, repoID int64) (*github.Repository, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.getRepository != nil {
		return f.getRepository, nil
	}
	return &github.Repository{ID: repoID, Name: "renamed", FullName: "acme/renamed", Owner: "acme", HTMLURL: "https://github.com/acme/renamed"}, nil
}

func (f *fakeClient) InviteUser(ctx context.Context, repo *github.Repository, login string, perm github.Permission) (*github.Invitation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inviteCalls = append(f.inviteCalls, login+":"+string(perm))
	if f.inviteErr != nil {
		return nil, f.inviteErr
	}
	return &github.Invitation{ID: 7, RepoFullName: repo.FullName, Invitee: login}, nil
}

func (f *fakeClient) AcceptInvitation(ctx context.Context, userToken string, inv *github.Invitation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acceptTokens = append(f.acceptTokens, userToken)
	return f.acceptErr
}

func (f *fakeClient) AddTeamToRepository(ctx context.Context, orgID, teamID int64, repo *github.Repository, perm github.Permission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.teamCalls = append(f.teamCalls, teamID)
	return f.teamErr
}

func (f *fakeClient) GetOrganizationPlan(ctx context.Context, org string) (*github.Plan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.planCalls++
	if f.planErr != nil {
		return nil, f.planErr
	}
	return f.plan, nil
}

func (f *fakeClient) PushStarterCode(ctx context.Context, fromRepoID int64, to *github.Repository) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushCalls = append(f.pushCalls, [2]int64{fromRepoID, to.ID})
	return f.pushErr
}

type publishedStage struct {
	key     string
	stage   Stage
	message string
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	err    error
	stages []publishedStage
}

func (b *fakeBroadcaster) Publish(ctx context.Context, attemptKey string, stage Stage, message string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stages = append(b.stages, publishedStage{key: attemptKey, stage: stage, message: message})
	return b.err
}

func (b *fakeBroadcaster) stageNames() []Stage {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Stage, 0, len(b.stages))
	for _, s := range b.stages {
		out = append(out, s.stage)
	}
	return out
}

type fakeMetrics struct {
	mu       sync.Mutex
	err      error
	counters map[string]int
	timings  map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{counters: map[string]int{}, timings: map[string]int{}}
}

func (m *fakeMetrics) Increment(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name]++
	return m.err
}

func (m *fakeMetrics) Timing(name string, d time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timings[name]++
	return m.err
}

type fakeReporter struct {
	mu   sync.Mutex
	errs []error
}

func (r *fakeReporter) Report(ctx context.Context, err error, fields map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

var errBoom = errors.New("boom")

func remoteErr(op string, status int, cat github.Category) error {
	return &github.RemoteError{Op: op, Status: status, Category: cat, Err: errBoom}
}
