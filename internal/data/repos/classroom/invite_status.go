package classroom

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/classroom-backend/internal/data/db"
	types "github.com/yungbote/classroom-backend/internal/domain"
	"github.com/yungbote/classroom-backend/internal/platform/dbctx"
	"github.com/yungbote/classroom-backend/internal/platform/logger"
)

type InviteStatusRepo interface {
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.InviteStatus, error)
	GetForCollaborator(dbc dbctx.Context, invitationID uuid.UUID, userID, groupID *uuid.UUID) (*types.InviteStatus, error)
	// FindOrCreate lazily creates the pending row for a pair. A concurrent
	// creator losing the unique-index race reads the winner's row.
	FindOrCreate(dbc dbctx.Context, invitationID uuid.UUID, userID, groupID *uuid.UUID) (*types.InviteStatus, error)
	// CompareAndSetStatus moves id from `from` to `to` only if the stored
	// status still equals `from`. It reports whether the row was updated.
	CompareAndSetStatus(dbc dbctx.Context, id uuid.UUID, from, to types.ProgressState) (bool, error)
}

type inviteStatusRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewInviteStatusRepo(db *gorm.DB, baseLog *logger.Logger) InviteStatusRepo {
	return &inviteStatusRepo{db: db, log: baseLog.With("repo", "InviteStatusRepo")}
}

func (r *inviteStatusRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.InviteStatus, error) {
	var out types.InviteStatus
	return firstByID(dbc.DB(r.db), id, &out)
}

func (r *inviteStatusRepo) GetForCollaborator(dbc dbctx.Context, invitationID uuid.UUID, userID, groupID *uuid.UUID) (*types.InviteStatus, error) {
	if invitationID == uuid.Nil {
		return nil, nil
	}
	q := dbc.DB(r.db).Where("invitation_id = ?", invitationID)
	switch {
	case userID != nil:
		q = q.Where("user_id = ?", *userID)
	case groupID != nil:
		q = q.Where("group_id = ?", *groupID)
	default:
		return nil, types.ErrCollaboratorRef
	}
	var out types.InviteStatus
	if err := q.Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if out.ID == uuid.Nil {
		return nil, nil
	}
	return &out, nil
}

func (r *inviteStatusRepo) FindOrCreate(dbc dbctx.Context, invitationID uuid.UUID, userID, groupID *uuid.UUID) (*types.InviteStatus, error) {
	existing, err := r.GetForCollaborator(dbc, invitationID, userID, groupID)
	if err != nil || existing != nil {
		return existing, err
	}
	row := &types.InviteStatus{
		InvitationID: invitationID,
		UserID:       userID,
		GroupID:      groupID,
		Status:       types.StatePending,
	}
	if err := dbc.DB(r.db).Create(row).Error; err != nil {
		if db.IsUniqueViolation(err) {
			r.log.Debug("InviteStatus create lost race; reloading", "invitation_id", invitationID)
			return r.GetForCollaborator(dbc, invitationID, userID, groupID)
		}
		return nil, err
	}
	return row, nil
}

func (r *inviteStatusRepo) CompareAndSetStatus(dbc dbctx.Context, id uuid.UUID, from, to types.ProgressState) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	res := dbc.DB(r.db).
		Model(&types.InviteStatus{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
