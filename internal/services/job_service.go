package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	temporalsdkclient "go.temporal.io/sdk/client"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/classroom-backend/internal/data/db"
	"github.com/yungbote/classroom-backend/internal/data/repos"
	types "github.com/yungbote/classroom-backend/internal/domain"
	"github.com/yungbote/classroom-backend/internal/platform/apierr"
	"github.com/yungbote/classroom-backend/internal/platform/ctxutil"
	"github.com/yungbote/classroom-backend/internal/platform/dbctx"
	"github.com/yungbote/classroom-backend/internal/platform/logger"
	"github.com/yungbote/classroom-backend/internal/provisioning"
)

// Keep literal to avoid import cycle with jobrun.
const jobRunWorkflowName = "job_run"

// ProvisionTarget names the (assignment, collaborator) pair a provisioning
// job works on. Exactly one of UserID and GroupID is set.
type ProvisionTarget struct {
	AssignmentID uuid.UUID  `json:"assignment_id"`
	InvitationID uuid.UUID  `json:"invitation_id"`
	UserID       *uuid.UUID `json:"user_id,omitempty"`
	GroupID      *uuid.UUID `json:"group_id,omitempty"`
}

func (t ProvisionTarget) validate() error {
	if t.AssignmentID == uuid.Nil {
		return apierr.BadRequest("missing_assignment_id", "assignment_id is required")
	}
	if t.InvitationID == uuid.Nil {
		return apierr.BadRequest("missing_invitation_id", "invitation_id is required")
	}
	if (t.UserID == nil) == (t.GroupID == nil) {
		return apierr.BadRequest("invalid_collaborator", "exactly one of user_id and group_id is required")
	}
	return nil
}

// ProvisionEnqueued describes a queued (or already queued) provisioning job.
type ProvisionEnqueued struct {
	Job          *types.JobRun       `json:"job"`
	InviteStatus *types.InviteStatus `json:"invite_status"`
	AttemptKey   string              `json:"attempt_key"`
	Deduplicated bool                `json:"deduplicated"`
}

// ProvisionReopener moves an errored invite status back to accepted.
type ProvisionReopener interface {
	Reopen(ctx context.Context, row *types.InviteStatus) error
}

type JobService interface {
	Enqueue(dbc dbctx.Context, jobType string, entityType string, entityID *uuid.UUID, channelKey string, payload map[string]any) (*types.JobRun, error)
	Dispatch(dbc dbctx.Context, jobID uuid.UUID) error
	EnqueueProvision(dbc dbctx.Context, target ProvisionTarget) (*ProvisionEnqueued, error)
	RetryProvision(dbc dbctx.Context, inviteStatusID uuid.UUID) (*ProvisionEnqueued, error)
	ProgressState(dbc dbctx.Context, invitationID uuid.UUID, userID, groupID *uuid.UUID) (types.ProgressState, error)
	GetJob(dbc dbctx.Context, jobID uuid.UUID) (*types.JobRun, error)
}

type JobServiceDeps struct {
	DB          *gorm.DB
	Log         *logger.Logger
	Jobs        repos.JobRunRepo
	Invitations repos.InvitationRepo
	Statuses    repos.InviteStatusRepo
	Reopener    ProvisionReopener
	Notify      JobNotifier

	// Temporal is optional. Without it queued rows are claimed by the
	// polling worker.
	Temporal    temporalsdkclient.Client
	TaskQueue   string
	MaxAttempts int
}

type jobService struct {
	db          *gorm.DB
	log         *logger.Logger
	repo        repos.JobRunRepo
	invitations repos.InvitationRepo
	statuses    repos.InviteStatusRepo
	reopener    ProvisionReopener
	notify      JobNotifier

	temporal          temporalsdkclient.Client
	temporalTaskQueue string
	maxAttempts       int
}

func NewJobService(d JobServiceDeps) JobService {
	maxAttempts := d.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	notify := d.Notify
	if notify == nil {
		notify = NewJobNotifier(nil)
	}
	return &jobService{
		db:                d.DB,
		log:               d.Log.With("service", "JobService"),
		repo:              d.Jobs,
		invitations:       d.Invitations,
		statuses:          d.Statuses,
		reopener:          d.Reopener,
		notify:            notify,
		temporal:          d.Temporal,
		temporalTaskQueue: strings.TrimSpace(d.TaskQueue),
		maxAttempts:       maxAttempts,
	}
}

func (s *jobService) Enqueue(dbc dbctx.Context, jobType string, entityType string, entityID *uuid.UUID, channelKey string, payload map[string]any) (*types.JobRun, error) {
	if jobType == "" {
		return nil, fmt.Errorf("missing job_type")
	}
	if payload == nil {
		payload = map[string]any{}
	}
	if td := ctxutil.GetTraceData(dbc.Ctx); td != nil {
		if td.TraceID != "" {
			if _, ok := payload["trace_id"]; !ok {
				payload["trace_id"] = td.TraceID
			}
		}
		if td.RequestID != "" {
			if _, ok := payload["request_id"]; !ok {
				payload["request_id"] = td.RequestID
			}
		}
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	transaction := dbc.Tx
	if transaction == nil {
		transaction = s.db
	}
	job := &types.JobRun{
		ID:         uuid.New(),
		JobType:    jobType,
		EntityType: entityType,
		EntityID:   entityID,
		ChannelKey: channelKey,
		Status:     types.JobStatusQueued,
		Stage:      types.JobStatusQueued,
		Message:    "Queued",
		Payload:    datatypes.JSON(b),
		Result:     datatypes.JSON([]byte(`{}`)),
	}
	if _, err := s.repo.Create(dbctx.Context{Ctx: dbc.Ctx, Tx: transaction}, []*types.JobRun{job}); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	s.notify.JobCreated(dbc.Ctx, job)

	// Inside a real transaction the workflow must not start before commit;
	// callers invoke Dispatch afterwards.
	if isDBTransaction(dbc.Tx) {
		s.log.Debug("Job enqueued inside transaction; awaiting dispatch after commit", "job_id", job.ID, "job_type", job.JobType)
		return job, nil
	}
	if err := s.Dispatch(dbctx.Context{Ctx: dbc.Ctx}, job.ID); err != nil {
		return job, err
	}
	return job, nil
}

type txCommitter interface {
	Commit() error
	Rollback() error
}

func isDBTransaction(g *gorm.DB) bool {
	if g == nil || g.Statement == nil || g.Statement.ConnPool == nil {
		return false
	}
	_, ok := g.Statement.ConnPool.(txCommitter)
	return ok
}

// Dispatch starts the job's workflow when Temporal is configured. Without
// Temporal it is a no-op and the row stays queued for the polling worker.
func (s *jobService) Dispatch(dbc dbctx.Context, jobID uuid.UUID) error {
	if jobID == uuid.Nil {
		return fmt.Errorf("missing job id")
	}
	if s.temporal == nil {
		return nil
	}
	ctx := dbc.Ctx
	if ctx == nil {
		ctx = context.Background()
	}

	_, err := s.temporal.ExecuteWorkflow(ctx, temporalsdkclient.StartWorkflowOptions{
		ID:                    jobID.String(),
		TaskQueue:             s.temporalTaskQueue,
		WorkflowIDReusePolicy: enums.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
	}, jobRunWorkflowName, s.maxAttempts)
	if err == nil {
		return nil
	}
	var started *serviceerror.WorkflowExecutionAlreadyStarted
	if errors.As(err, &started) {
		return nil
	}

	now := time.Now().UTC()
	_ = s.repo.UpdateFields(dbctx.Context{Ctx: ctx}, jobID, map[string]interface{}{
		"status":        types.JobStatusFailed,
		"stage":         "dispatch",
		"message":       "",
		"error":         err.Error(),
		"last_error_at": now,
		"locked_at":     nil,
	})
	if j, rerr := s.repo.GetByID(dbctx.Context{Ctx: ctx}, jobID); rerr == nil && j != nil {
		s.notify.JobFailed(ctx, j, "dispatch", err.Error())
	}
	s.log.Error("Job dispatch failed", "job_id", jobID, "error", err)
	return fmt.Errorf("start temporal workflow: %w", err)
}

// EnqueueProvision lazily creates the invite status for the target, accepts
// it and queues a provisioning job unless one is already queued or running.
func (s *jobService) EnqueueProvision(dbc dbctx.Context, target ProvisionTarget) (*ProvisionEnqueued, error) {
	if err := target.validate(); err != nil {
		return nil, err
	}
	inv, err := s.invitations.GetByID(dbc, target.InvitationID)
	if err != nil {
		return nil, err
	}
	if inv == nil || inv.AssignmentID != target.AssignmentID {
		return nil, apierr.NotFound("invitation_not_found", "invitation %s not found for assignment %s", target.InvitationID, target.AssignmentID)
	}

	row, err := s.statuses.FindOrCreate(dbc, inv.ID, target.UserID, target.GroupID)
	if err != nil {
		return nil, fmt.Errorf("find invite status: %w", err)
	}
	if row.Status.IsError() {
		return nil, apierr.Conflict("provision_errored", "previous attempt ended in %s; retry it explicitly", row.Status)
	}
	if row.Status == types.StatePending {
		if _, err := s.statuses.CompareAndSetStatus(dbc, row.ID, types.StatePending, types.StateAccepted); err != nil {
			return nil, fmt.Errorf("accept invite status: %w", err)
		}
		row.Status = types.StateAccepted
	}
	return s.enqueueForStatus(dbc, row)
}

// RetryProvision reopens an errored invite status and queues a new attempt.
func (s *jobService) RetryProvision(dbc dbctx.Context, inviteStatusID uuid.UUID) (*ProvisionEnqueued, error) {
	row, err := s.statuses.GetByID(dbc, inviteStatusID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, apierr.NotFound("invite_status_not_found", "invite status %s not found", inviteStatusID)
	}
	if !row.Status.IsError() {
		return nil, apierr.Conflict("not_errored", "invite status is %s; only errored attempts can be retried", row.Status)
	}
	if s.reopener == nil {
		return nil, fmt.Errorf("retry: reopener not configured")
	}
	if err := s.reopener.Reopen(dbc.Ctx, row); err != nil {
		return nil, fmt.Errorf("reopen: %w", err)
	}
	row.Status = types.StateAccepted
	return s.enqueueForStatus(dbc, row)
}

func (s *jobService) enqueueForStatus(dbc dbctx.Context, row *types.InviteStatus) (*ProvisionEnqueued, error) {
	key := provisioning.AttemptKey(row.ID)
	has, err := s.repo.HasRunnableForEntity(dbc, types.JobEntityInviteStatus, row.ID, types.JobTypeRepoProvision)
	if err != nil {
		return nil, err
	}
	if has {
		job, err := s.repo.GetLatestByEntity(dbc, types.JobEntityInviteStatus, row.ID, types.JobTypeRepoProvision)
		if err != nil {
			return nil, err
		}
		return &ProvisionEnqueued{Job: job, InviteStatus: row, AttemptKey: key, Deduplicated: true}, nil
	}

	ctx := dbc.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	td := ctxutil.TraceData{}
	if prev := ctxutil.GetTraceData(ctx); prev != nil {
		td = *prev
	}
	td.AttemptKey = key
	dbc.Ctx = ctxutil.WithTraceData(ctx, &td)

	entityID := row.ID
	job, err := s.Enqueue(dbc, types.JobTypeRepoProvision, types.JobEntityInviteStatus, &entityID, key, map[string]any{
		"invite_status_id": row.ID.String(),
	})
	if db.IsUniqueViolation(err) {
		// Lost the race to a concurrent enqueue for the same row.
		existing, gerr := s.repo.GetLatestByEntity(dbc, types.JobEntityInviteStatus, row.ID, types.JobTypeRepoProvision)
		if gerr != nil {
			return nil, gerr
		}
		return &ProvisionEnqueued{Job: existing, InviteStatus: row, AttemptKey: key, Deduplicated: true}, nil
	}
	if err != nil {
		return nil, err
	}
	s.log.Info("Provisioning job enqueued", append([]interface{}{"job_id", job.ID, "invite_status_id", row.ID}, ctxutil.LogFields(dbc.Ctx)...)...)
	return &ProvisionEnqueued{Job: job, InviteStatus: row, AttemptKey: key}, nil
}

// ProgressState reads the tracker for a pair. A pair that has no row yet
// has never been accepted and reads as pending.
func (s *jobService) ProgressState(dbc dbctx.Context, invitationID uuid.UUID, userID, groupID *uuid.UUID) (types.ProgressState, error) {
	if (userID == nil) == (groupID == nil) {
		return "", apierr.BadRequest("invalid_collaborator", "exactly one of user_id and group_id is required")
	}
	row, err := s.statuses.GetForCollaborator(dbc, invitationID, userID, groupID)
	if err != nil {
		return "", err
	}
	if row == nil {
		return types.StatePending, nil
	}
	return row.Status, nil
}

func (s *jobService) GetJob(dbc dbctx.Context, jobID uuid.UUID) (*types.JobRun, error) {
	if jobID == uuid.Nil {
		return nil, apierr.BadRequest("invalid_job_id", "job id is required")
	}
	job, err := s.repo.GetByID(dbc, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, apierr.NotFound("job_not_found", "job %s not found", jobID)
	}
	return job, nil
}
