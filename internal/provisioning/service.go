package provisioning

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/classroom-backend/internal/data/db"
	"github.com/yungbote/classroom-backend/internal/data/repos"
	types "github.com/yungbote/classroom-backend/internal/domain"
	"github.com/yungbote/classroom-backend/internal/platform/ctxutil"
	"github.com/yungbote/classroom-backend/internal/platform/dbctx"
	"github.com/yungbote/classroom-backend/internal/platform/github"
	"github.com/yungbote/classroom-backend/internal/platform/logger"
)

const rollbackTimeout = 30 * time.Second

type Deps struct {
	Links       repos.RepoLinkRepo
	Statuses    repos.InviteStatusRepo
	Client      RemoteRepositoryClient
	Broadcaster Broadcaster
	Metrics     MetricsSink
	Reporter    ErrorReporter
	Log         *logger.Logger
	Now         func() time.Time
}

// Service turns "give this collaborator their repository" into the sequence
// of remote calls, local writes and progress transitions that implement it.
type Service struct {
	links       repos.RepoLinkRepo
	statuses    repos.InviteStatusRepo
	client      RemoteRepositoryClient
	broadcaster Broadcaster
	metrics     MetricsSink
	reporter    ErrorReporter
	log         *logger.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

func NewService(d Deps) *Service {
	log := d.Log
	if log == nil {
		log = logger.Nop()
	}
	s := &Service{
		links:       d.Links,
		statuses:    d.Statuses,
		client:      d.Client,
		broadcaster: d.Broadcaster,
		metrics:     d.Metrics,
		reporter:    d.Reporter,
		log:         log.With("service", "ProvisioningService"),
		tracer:      otel.Tracer("classroom/provisioning"),
		now:         d.Now,
	}
	if s.broadcaster == nil {
		s.broadcaster = NopBroadcaster{}
	}
	if s.metrics == nil {
		s.metrics = NopMetrics{}
	}
	if s.reporter == nil {
		s.reporter = NewErrorReporter(log)
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

type ProvisionRequest struct {
	Assignment   *types.Assignment
	Organization *types.Organization
	Collaborator Collaborator
	// InviteStatus is the progress row of this (invitation, collaborator)
	// pair.
	InviteStatus *types.InviteStatus
}

func (r ProvisionRequest) validate() error {
	switch {
	case r.Assignment == nil:
		return errors.New("provision: assignment required")
	case r.Organization == nil:
		return errors.New("provision: organization required")
	case r.Collaborator == nil:
		return errors.New("provision: collaborator required")
	case r.InviteStatus == nil:
		return errors.New("provision: invite status required")
	}
	return nil
}

// attempt carries the per-invocation state of one Provision call.
type attempt struct {
	ex      *Exercise
	tracker *ProgressTracker
	stats   *StatsSender
	log     *logger.Logger
	start   time.Time
	repo    *github.Repository
	link    *types.RepoLink
	// owned is set once this attempt moved the row into creating_repo.
	owned bool
}

// Provision creates the collaborator's repository. Remote and storage
// failures come back as a failed Outcome; the returned error is reserved for
// malformed requests.
func (s *Service) Provision(ctx context.Context, req ProvisionRequest) (*Outcome, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	ex := NewExercise(req.Assignment, req.Organization, req.Collaborator, req.InviteStatus.ID)

	td := ctxutil.TraceData{}
	if prev := ctxutil.GetTraceData(ctx); prev != nil {
		td = *prev
	}
	td.AttemptKey = ex.AttemptKey()
	ctx = ctxutil.WithTraceData(ctx, &td)
	ctx, span := s.tracer.Start(ctx, "provisioning.Provision", trace.WithAttributes(
		attribute.String("assignment.id", ex.Assignment.ID.String()),
		attribute.String("assignment.type", ex.AssignmentType()),
		attribute.String("attempt.key", ex.AttemptKey()),
	))
	defer span.End()

	log := s.log.With(ctxutil.LogFields(ctx)...).With("assignment_id", ex.Assignment.ID, "collaborator", ex.Humanize())
	a := &attempt{
		ex:      ex,
		tracker: NewProgressTracker(s.statuses, req.InviteStatus, s.log),
		stats:   NewStatsSender(s.metrics, ex, log),
		log:     log,
		start:   s.now(),
	}
	return s.run(ctx, a), nil
}

func (s *Service) run(ctx context.Context, a *attempt) *Outcome {
	ex := a.ex

	if a.tracker.State() == types.StatePending {
		if err := a.tracker.AdvanceTo(ctx, types.StateAccepted); err != nil && a.tracker.State() != types.StateAccepted {
			return s.refuse(ctx, a, newError(ex, KindInvalidProgressState, "cannot accept invitation", err))
		}
	}
	if err := a.tracker.AdvanceTo(ctx, types.StateCreatingRepo); err != nil {
		return s.refuse(ctx, a, newError(ex, KindInvalidProgressState, "cannot start repository creation", err))
	}
	a.owned = true
	s.broadcast(ctx, a, StageCreateRepo, fmt.Sprintf("Creating GitHub repository for your %s.", ex.AssignmentType()))

	existing, perr := s.existingRepoLink(ctx, a)
	if perr != nil {
		return s.fail(ctx, a, perr)
	}
	if existing != nil {
		return s.reuse(ctx, a, existing)
	}

	if perr := s.verifyPrivateRepoQuota(ctx, a); perr != nil {
		return s.fail(ctx, a, perr)
	}

	repo, perr := s.createRepository(ctx, a)
	if perr != nil {
		return s.fail(ctx, a, perr)
	}
	a.repo = repo

	if perr := s.createRepoLink(ctx, a); perr != nil {
		return s.rollback(ctx, a, perr)
	}

	if err := ex.Collaborator.grantAccess(ctx, s.client, ex.Organization, repo, ex.Permission()); err != nil {
		return s.rollback(ctx, a, newError(ex, KindCollaboratorAdditionFailed, "grant repository access", err))
	}

	if ex.Assignment.UseImporter() {
		if err := a.tracker.AdvanceTo(ctx, types.StateImportingStarterCode); err != nil {
			return s.rollback(ctx, a, newError(ex, KindInvalidProgressState, "cannot start starter code import", err))
		}
		s.broadcast(ctx, a, StageImportingStarterCode, "Importing starter code into "+repo.HTMLURL)
		a.stats.ReportWithExercisePrefix("import_started")
		if err := s.client.PushStarterCode(ctx, *ex.Assignment.StarterCodeRepoID, repo); err != nil {
			return s.rollback(ctx, a, newError(ex, KindStarterCodeImportFailed, "push starter code", err))
		}
	}

	if err := a.tracker.AdvanceTo(ctx, types.StateCompleted); err != nil {
		return s.rollback(ctx, a, newError(ex, KindInvalidProgressState, "cannot complete provisioning", err))
	}
	s.broadcast(ctx, a, StageRepositoryCreationComplete, "Your GitHub repository was created.")

	a.stats.Timing(a.start, s.now())
	a.stats.ReportDefault("success")
	a.log.Info("Repository provisioned", "github_repo_id", repo.ID, "repo", repo.FullName)
	return Succeeded(a.link)
}

// refuse ends an attempt whose row belongs to another attempt or is already
// settled. The row is left as found.
func (s *Service) refuse(ctx context.Context, a *attempt, perr *Error) *Outcome {
	a.log.Warn("Provision refused by progress state", "state", a.tracker.State(), "error", perr)
	a.stats.ReportDefault("failure")
	trace.SpanFromContext(ctx).SetStatus(codes.Error, string(perr.Kind))
	return Failed(perr)
}

// existingRepoLink looks for a link left by an earlier attempt. A link whose
// remote repository is gone is deleted so a new one can be created.
func (s *Service) existingRepoLink(ctx context.Context, a *attempt) (*types.RepoLink, *Error) {
	ex := a.ex
	dbc := dbctx.Context{Ctx: ctx}
	link, err := s.links.GetForCollaborator(dbc, ex.Assignment.ID, ex.Collaborator.UserID(), ex.Collaborator.GroupID())
	if err != nil {
		return nil, newError(ex, KindLinkPersistFailed, "load existing repository link", err)
	}
	if link == nil {
		return nil, nil
	}
	if _, err := s.client.GetRepository(ctx, link.GitHubRepoID); err != nil {
		if !errors.Is(err, github.ErrNotFound) {
			return nil, newError(ex, KindLinkPersistFailed, "verify existing repository link", err)
		}
		if err := s.links.DeleteByID(dbc, link.ID); err != nil {
			return nil, newError(ex, KindLinkPersistFailed, "delete stale repository link", err)
		}
		a.log.Info("Removed repository link to deleted repository", "repo_link_id", link.ID, "github_repo_id", link.GitHubRepoID)
		a.stats.ReportWithExercisePrefix("stale_link_removed")
		return nil, nil
	}
	return link, nil
}

// reuse completes an attempt whose collaborator already has a live
// repository. Nothing is created remotely.
func (s *Service) reuse(ctx context.Context, a *attempt, link *types.RepoLink) *Outcome {
	if err := a.tracker.AdvanceTo(ctx, types.StateCompleted); err != nil {
		return s.fail(ctx, a, newError(a.ex, KindInvalidProgressState, "cannot complete provisioning", err))
	}
	a.link = link
	s.broadcast(ctx, a, StageRepositoryCreationComplete, "Your GitHub repository was created.")
	a.stats.ReportWithExercisePrefix("existing_link_reused")
	a.stats.ReportDefault("success")
	a.log.Info("Repository already provisioned", "github_repo_id", link.GitHubRepoID, "repo_link_id", link.ID)
	return Succeeded(link)
}

func (s *Service) verifyPrivateRepoQuota(ctx context.Context, a *attempt) *Error {
	ex := a.ex
	if !ex.Assignment.Private() {
		return nil
	}
	plan, err := s.client.GetOrganizationPlan(ctx, ex.Organization.Login)
	a.stats.ReportWithExercisePrefix("private_repo_quota_checked")
	if err != nil {
		return newError(ex, KindQuotaCheckFailed, "read organization plan", err)
	}
	if plan.PrivateQuotaExhausted() {
		perr := newError(ex, KindQuotaExceeded,
			fmt.Sprintf("owned_private_repos=%d private_repos=%d", plan.OwnedPrivateRepos, plan.PrivateRepos), nil)
		perr.privateRepos = plan.PrivateRepos
		return perr
	}
	return nil
}

func (s *Service) createRepository(ctx context.Context, a *attempt) (*github.Repository, *Error) {
	ex := a.ex
	name := ex.RepoName()

	if !ex.Assignment.UseTemplateRepos() {
		repo, err := s.client.CreateRepository(ctx, ex.Organization.Login, name, github.CreateOptions{
			Private:     ex.Assignment.Private(),
			Description: ex.Description(),
		})
		if err != nil {
			return nil, newError(ex, KindRepositoryCreationFailed, "create repository "+name, err)
		}
		return repo, nil
	}

	a.stats.ReportWithExercisePrefix("import_with_templates_started")
	opts := github.TemplateOptions{
		Owner:              ex.Organization.Login,
		Private:            ex.Assignment.Private(),
		Description:        ex.Description(),
		IncludeAllBranches: true,
	}
	templateID := *ex.Assignment.StarterCodeRepoID
	repo, err := s.client.CreateRepositoryFromTemplate(ctx, templateID, name, opts)
	if err != nil {
		if errors.Is(err, github.ErrNotFound) {
			return nil, newError(ex, KindTemplateNotFound, "template repository not found", err)
		}
		s.reporter.Report(ctx, err, map[string]any{
			"starter_code_repo_id": templateID,
			"organization_id":      ex.Organization.ID,
			"new_repo_name":        name,
			"user_id":              ex.Collaborator.UserID(),
			"group_id":             ex.Collaborator.GroupID(),
		})
		return nil, newError(ex, KindTemplateRepositoryCreationFailed, "create repository from template", err)
	}
	a.stats.ReportWithExercisePrefix("import_with_templates_success")
	return repo, nil
}

func (s *Service) createRepoLink(ctx context.Context, a *attempt) *Error {
	now := s.now()
	link := &types.RepoLink{
		GitHubRepoID:   a.repo.ID,
		GitHubName:     a.repo.Name,
		GitHubFullName: a.repo.FullName,
		GitHubHTMLURL:  a.repo.HTMLURL,
		CachedAt:       &now,
	}
	a.ex.stamp(link)
	if err := s.links.Create(dbctx.Context{Ctx: ctx}, link); err != nil {
		msg := "persist repository link"
		if db.IsUniqueViolation(err) {
			msg = "repository link already exists for collaborator"
		}
		return newError(a.ex, KindLinkPersistFailed, msg, err)
	}
	a.link = link
	return nil
}

// rollback removes whatever this attempt created, then fails it. Cleanup
// failures are reported and never replace perr.
func (s *Service) rollback(ctx context.Context, a *attempt, perr *Error) *Outcome {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()

	if a.repo != nil {
		if err := s.client.DeleteRepository(cleanupCtx, a.repo.ID); err != nil {
			s.reporter.Report(ctx, err, map[string]any{
				"op":             "rollback_delete_repository",
				"github_repo_id": a.repo.ID,
				"attempt_key":    a.ex.AttemptKey(),
			})
		} else {
			a.log.Info("Rolled back remote repository", "github_repo_id", a.repo.ID)
		}
	}
	if a.link != nil {
		if err := s.links.DeleteByID(dbctx.Context{Ctx: cleanupCtx}, a.link.ID); err != nil {
			s.reporter.Report(ctx, err, map[string]any{
				"op":           "rollback_delete_repo_link",
				"repo_link_id": a.link.ID,
				"attempt_key":  a.ex.AttemptKey(),
			})
		}
		a.link = nil
	}
	return s.fail(cleanupCtx, a, perr)
}

func (s *Service) fail(ctx context.Context, a *attempt, perr *Error) *Outcome {
	if a.owned {
		if err := a.tracker.MarkError(ctx, perr.Kind); err != nil {
			a.log.Error("Could not record provisioning failure", "kind", perr.Kind, "error", err)
		}
	}
	s.broadcast(ctx, a, StageErrored, perr.UserMessage())

	switch perr.Kind {
	case KindQuotaExceeded, KindQuotaCheckFailed, KindRepositoryCreationFailed,
		KindTemplateRepositoryCreationFailed, KindTemplateNotFound, KindLinkPersistFailed,
		KindCollaboratorAdditionFailed, KindStarterCodeImportFailed:
		a.stats.ReportWithExercisePrefix(string(perr.Kind))
	default:
		a.stats.ReportDefault("failure")
	}
	a.stats.Timing(a.start, s.now())

	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attribute.String("provisioning.error_kind", string(perr.Kind)))
	span.SetStatus(codes.Error, string(perr.Kind))

	a.log.Warn("Provisioning failed", "kind", perr.Kind, "state", a.tracker.State(), "error", perr)
	return Failed(perr)
}

// Reopen moves an errored row back to accepted so a new attempt may run.
func (s *Service) Reopen(ctx context.Context, row *types.InviteStatus) error {
	if row == nil {
		return errors.New("reopen: invite status required")
	}
	return NewProgressTracker(s.statuses, row, s.log).Restart(ctx)
}

// Recover clears an attempt that stopped between remote calls, for example
// when its worker died. Whatever the attempt left behind is removed and the
// row is reopened. Rows that are not in progress are left untouched.
func (s *Service) Recover(ctx context.Context, req ProvisionRequest) error {
	if err := req.validate(); err != nil {
		return err
	}
	ex := NewExercise(req.Assignment, req.Organization, req.Collaborator, req.InviteStatus.ID)
	tracker := NewProgressTracker(s.statuses, req.InviteStatus, s.log)
	state, err := tracker.CurrentState(ctx)
	if err != nil {
		return err
	}
	if !state.IsInProgress() {
		return nil
	}
	log := s.log.With("attempt_key", ex.AttemptKey(), "state", state)

	link, err := s.links.GetForCollaborator(dbctx.Context{Ctx: ctx}, ex.Assignment.ID, ex.Collaborator.UserID(), ex.Collaborator.GroupID())
	if err != nil {
		return fmt.Errorf("recover: load repo link: %w", err)
	}
	if link != nil {
		if err := s.client.DeleteRepository(ctx, link.GitHubRepoID); err != nil {
			s.reporter.Report(ctx, err, map[string]any{
				"op":             "recover_delete_repository",
				"github_repo_id": link.GitHubRepoID,
				"attempt_key":    ex.AttemptKey(),
			})
		}
		if err := s.links.DeleteByID(dbctx.Context{Ctx: ctx}, link.ID); err != nil {
			return fmt.Errorf("recover: delete repo link: %w", err)
		}
	}

	kind := KindRepositoryCreationFailed
	if state == types.StateImportingStarterCode {
		kind = KindStarterCodeImportFailed
	}
	if err := tracker.MarkError(ctx, kind); err != nil {
		return fmt.Errorf("recover: %w", err)
	}
	if err := tracker.Restart(ctx); err != nil {
		return fmt.Errorf("recover: %w", err)
	}
	log.Info("Recovered abandoned provisioning attempt", "removed_link", link != nil)
	return nil
}

func (s *Service) broadcast(ctx context.Context, a *attempt, stage Stage, message string) {
	if err := s.broadcaster.Publish(ctx, a.ex.AttemptKey(), stage, message); err != nil {
		a.log.Warn("Progress broadcast failed", "stage", stage, "error", err)
	}
}

// RepositoryDetails returns the remote attributes of link. With useCache the
// stored copy is returned when present; otherwise the provider is asked and
// the cache refreshed.
func (s *Service) RepositoryDetails(ctx context.Context, link *types.RepoLink, useCache bool) (*github.Repository, error) {
	if link == nil {
		return nil, errors.New("repository details: link required")
	}
	if useCache && link.CachedAt != nil && link.GitHubFullName != "" {
		return cachedRepository(link), nil
	}
	repo, err := s.client.GetRepository(ctx, link.GitHubRepoID)
	if err != nil {
		return nil, err
	}
	cache := repos.RepoCache{Name: repo.Name, FullName: repo.FullName, HTMLURL: repo.HTMLURL}
	if err := s.links.UpdateCache(dbctx.Context{Ctx: ctx}, link.ID, cache); err != nil {
		s.log.Warn("Repo link cache refresh failed", "repo_link_id", link.ID, "error", err)
	} else {
		now := s.now()
		link.GitHubName, link.GitHubFullName, link.GitHubHTMLURL, link.CachedAt = repo.Name, repo.FullName, repo.HTMLURL, &now
	}
	return repo, nil
}

func cachedRepository(link *types.RepoLink) *github.Repository {
	out := &github.Repository{
		ID:       link.GitHubRepoID,
		Name:     link.GitHubName,
		FullName: link.GitHubFullName,
		HTMLURL:  link.GitHubHTMLURL,
	}
	if i := len(link.GitHubFullName) - len(link.GitHubName) - 1; i > 0 {
		out.Owner = link.GitHubFullName[:i]
	}
	return out
}
