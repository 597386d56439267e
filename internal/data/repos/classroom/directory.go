package classroom

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/classroom-backend/internal/domain"
	"github.com/yungbote/classroom-backend/internal/platform/dbctx"
	"github.com/yungbote/classroom-backend/internal/platform/logger"
)

// Organizations, users and groups are owned by other parts of the product;
// provisioning only needs to create fixtures and read them back by id.

type OrganizationRepo interface {
	Create(dbc dbctx.Context, org *types.Organization) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Organization, error)
}

type UserRepo interface {
	Create(dbc dbctx.Context, user *types.User) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.User, error)
}

type GroupRepo interface {
	Create(dbc dbctx.Context, group *types.Group) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Group, error)
}

type organizationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewOrganizationRepo(db *gorm.DB, baseLog *logger.Logger) OrganizationRepo {
	return &organizationRepo{db: db, log: baseLog.With("repo", "OrganizationRepo")}
}

func (r *organizationRepo) Create(dbc dbctx.Context, org *types.Organization) error {
	return dbc.DB(r.db).Create(org).Error
}

func (r *organizationRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Organization, error) {
	var out types.Organization
	return firstByID(dbc.DB(r.db), id, &out)
}

type userRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo {
	return &userRepo{db: db, log: baseLog.With("repo", "UserRepo")}
}

func (r *userRepo) Create(dbc dbctx.Context, user *types.User) error {
	return dbc.DB(r.db).Create(user).Error
}

func (r *userRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.User, error) {
	var out types.User
	return firstByID(dbc.DB(r.db), id, &out)
}

type groupRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGroupRepo(db *gorm.DB, baseLog *logger.Logger) GroupRepo {
	return &groupRepo{db: db, log: baseLog.With("repo", "GroupRepo")}
}

func (r *groupRepo) Create(dbc dbctx.Context, group *types.Group) error {
	return dbc.DB(r.db).Create(group).Error
}

func (r *groupRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Group, error) {
	var out types.Group
	return firstByID(dbc.DB(r.db), id, &out)
}

// firstByID returns (nil, nil) when the row does not exist.
func firstByID[T any](tx *gorm.DB, id uuid.UUID, out *T) (*T, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	err := tx.Where("id = ?", id).First(out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}
