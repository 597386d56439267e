package provisioning

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/yungbote/classroom-backend/internal/data/repos"
	types "github.com/yungbote/classroom-backend/internal/domain"
	"github.com/yungbote/classroom-backend/internal/platform/dbctx"
	"github.com/yungbote/classroom-backend/internal/platform/logger"
)

var ErrInvalidTransition = errors.New("invalid progress transition")

type TransitionError struct {
	From types.ProgressState
	To   types.ProgressState
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid progress transition %s -> %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

const maxTransitionRetries = 4

// ProgressTracker persists the progress of one invite status row. Every
// transition is written outside any transaction so pollers observe it before
// the next remote call is made.
type ProgressTracker struct {
	statuses repos.InviteStatusRepo
	id       uuid.UUID
	state    types.ProgressState
	log      *logger.Logger
}

func NewProgressTracker(statuses repos.InviteStatusRepo, row *types.InviteStatus, baseLog *logger.Logger) *ProgressTracker {
	return &ProgressTracker{
		statuses: statuses,
		id:       row.ID,
		state:    row.Status,
		log:      baseLog.With("component", "ProgressTracker", "invite_status_id", row.ID),
	}
}

func (t *ProgressTracker) ID() uuid.UUID { return t.id }

// State is the last state this tracker wrote or observed.
func (t *ProgressTracker) State() types.ProgressState { return t.state }

func (t *ProgressTracker) CurrentState(ctx context.Context) (types.ProgressState, error) {
	row, err := t.statuses.GetByID(dbctx.Context{Ctx: ctx}, t.id)
	if err != nil {
		return "", err
	}
	if row == nil {
		return "", fmt.Errorf("invite status %s not found", t.id)
	}
	t.state = row.Status
	return row.Status, nil
}

// AdvanceTo moves the row to `to` if that is the allowed next state, or an
// error state, from the row's current state.
func (t *ProgressTracker) AdvanceTo(ctx context.Context, to types.ProgressState) error {
	return t.transition(ctx, to)
}

// MarkError moves the row into the error state matching kind from any
// non-terminal state.
func (t *ProgressTracker) MarkError(ctx context.Context, kind Kind) error {
	return t.transition(ctx, ErrorStateFor(kind))
}

// Restart reopens an errored row so a new attempt can run. It is only used by
// explicit retries; the orchestrator never calls it.
func (t *ProgressTracker) Restart(ctx context.Context) error {
	from, err := t.CurrentState(ctx)
	if err != nil {
		return err
	}
	if !from.IsError() {
		return &TransitionError{From: from, To: types.StateAccepted}
	}
	ok, err := t.statuses.CompareAndSetStatus(dbctx.Context{Ctx: ctx}, t.id, from, types.StateAccepted)
	if err != nil {
		return err
	}
	if !ok {
		return &TransitionError{From: from, To: types.StateAccepted}
	}
	t.state = types.StateAccepted
	t.log.Info("Progress restarted", "from", from)
	return nil
}

func (t *ProgressTracker) transition(ctx context.Context, to types.ProgressState) error {
	from := t.state
	fresh := false
	for i := 0; i < maxTransitionRetries; i++ {
		if !types.CanAdvance(from, to) {
			if fresh {
				return &TransitionError{From: from, To: to}
			}
			// A cached snapshot can lag behind the row; only reject on a fresh read.
			var err error
			if from, err = t.CurrentState(ctx); err != nil {
				return err
			}
			fresh = true
			continue
		}
		ok, err := t.statuses.CompareAndSetStatus(dbctx.Context{Ctx: ctx}, t.id, from, to)
		if err != nil {
			return fmt.Errorf("persist progress %s -> %s: %w", from, to, err)
		}
		if ok {
			t.state = to
			t.log.Debug("Progress advanced", "from", from, "to", to)
			return nil
		}
		// The stored state moved underneath us; re-read and re-validate.
		if from, err = t.CurrentState(ctx); err != nil {
			return err
		}
		fresh = true
	}
	return &TransitionError{From: from, To: to}
}

// ErrorStateFor maps a failure kind to the terminal state it leaves behind.
func ErrorStateFor(kind Kind) types.ProgressState {
	if kind == KindStarterCodeImportFailed {
		return types.StateErroredImportingStarterCode
	}
	return types.StateErroredCreatingRepo
}
