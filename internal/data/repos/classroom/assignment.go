package classroom

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/classroom-backend/internal/domain"
	"github.com/yungbote/classroom-backend/internal/platform/dbctx"
	"github.com/yungbote/classroom-backend/internal/platform/logger"
)

type AssignmentRepo interface {
	Create(dbc dbctx.Context, a *types.Assignment) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Assignment, error)
}

type assignmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAssignmentRepo(db *gorm.DB, baseLog *logger.Logger) AssignmentRepo {
	return &assignmentRepo{db: db, log: baseLog.With("repo", "AssignmentRepo")}
}

func (r *assignmentRepo) Create(dbc dbctx.Context, a *types.Assignment) error {
	return dbc.DB(r.db).Create(a).Error
}

func (r *assignmentRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Assignment, error) {
	var out types.Assignment
	return firstByID(dbc.DB(r.db), id, &out)
}

type InvitationRepo interface {
	Create(dbc dbctx.Context, inv *types.Invitation) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Invitation, error)
	GetByKey(dbc dbctx.Context, key string) (*types.Invitation, error)
}

type invitationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewInvitationRepo(db *gorm.DB, baseLog *logger.Logger) InvitationRepo {
	return &invitationRepo{db: db, log: baseLog.With("repo", "InvitationRepo")}
}

func (r *invitationRepo) Create(dbc dbctx.Context, inv *types.Invitation) error {
	return dbc.DB(r.db).Create(inv).Error
}

func (r *invitationRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Invitation, error) {
	var out types.Invitation
	return firstByID(dbc.DB(r.db), id, &out)
}

func (r *invitationRepo) GetByKey(dbc dbctx.Context, key string) (*types.Invitation, error) {
	if key == "" {
		return nil, nil
	}
	var out types.Invitation
	err := dbc.DB(r.db).Where(map[string]any{"key": key}).Limit(1).Find(&out).Error
	if err != nil {
		return nil, err
	}
	if out.ID == uuid.Nil {
		return nil, nil
	}
	return &out, nil
}
