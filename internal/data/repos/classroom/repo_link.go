package classroom

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/classroom-backend/internal/domain"
	"github.com/yungbote/classroom-backend/internal/platform/dbctx"
	"github.com/yungbote/classroom-backend/internal/platform/logger"
)

// RepoCache is the subset of remote repository attributes stored on a link.
type RepoCache struct {
	Name     string
	FullName string
	HTMLURL  string
}

type RepoLinkRepo interface {
	// Create inserts a link. Unique index violations are returned unwrapped so
	// callers can classify them with db.IsUniqueViolation.
	Create(dbc dbctx.Context, link *types.RepoLink) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.RepoLink, error)
	GetForCollaborator(dbc dbctx.Context, assignmentID uuid.UUID, userID, groupID *uuid.UUID) (*types.RepoLink, error)
	ListByAssignment(dbc dbctx.Context, assignmentID uuid.UUID) ([]*types.RepoLink, error)
	UpdateCache(dbc dbctx.Context, id uuid.UUID, cache RepoCache) error
	SetSubmissionSHA(dbc dbctx.Context, id uuid.UUID, sha string) error
	// DeleteByID hard-deletes the row. Deleting a missing row is not an error.
	DeleteByID(dbc dbctx.Context, id uuid.UUID) error
}

type repoLinkRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRepoLinkRepo(db *gorm.DB, baseLog *logger.Logger) RepoLinkRepo {
	return &repoLinkRepo{db: db, log: baseLog.With("repo", "RepoLinkRepo")}
}

func (r *repoLinkRepo) Create(dbc dbctx.Context, link *types.RepoLink) error {
	return dbc.DB(r.db).Create(link).Error
}

func (r *repoLinkRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.RepoLink, error) {
	var out types.RepoLink
	return firstByID(dbc.DB(r.db), id, &out)
}

func (r *repoLinkRepo) GetForCollaborator(dbc dbctx.Context, assignmentID uuid.UUID, userID, groupID *uuid.UUID) (*types.RepoLink, error) {
	if assignmentID == uuid.Nil {
		return nil, nil
	}
	q := dbc.DB(r.db).Where("assignment_id = ?", assignmentID)
	switch {
	case userID != nil:
		q = q.Where("user_id = ?", *userID)
	case groupID != nil:
		q = q.Where("group_id = ?", *groupID)
	default:
		return nil, types.ErrCollaboratorRef
	}
	var out types.RepoLink
	if err := q.Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if out.ID == uuid.Nil {
		return nil, nil
	}
	return &out, nil
}

func (r *repoLinkRepo) ListByAssignment(dbc dbctx.Context, assignmentID uuid.UUID) ([]*types.RepoLink, error) {
	var out []*types.RepoLink
	if assignmentID == uuid.Nil {
		return out, nil
	}
	err := dbc.DB(r.db).
		Where("assignment_id = ?", assignmentID).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repoLinkRepo) UpdateCache(dbc dbctx.Context, id uuid.UUID, cache RepoCache) error {
	if id == uuid.Nil {
		return nil
	}
	now := time.Now()
	return dbc.DB(r.db).
		Model(&types.RepoLink{}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"github_name":      cache.Name,
			"github_full_name": cache.FullName,
			"github_html_url":  cache.HTMLURL,
			"cached_at":        now,
			"updated_at":       now,
		}).Error
}

func (r *repoLinkRepo) SetSubmissionSHA(dbc dbctx.Context, id uuid.UUID, sha string) error {
	if id == uuid.Nil {
		return nil
	}
	return dbc.DB(r.db).
		Model(&types.RepoLink{}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"submission_sha": sha,
			"updated_at":     time.Now(),
		}).Error
}

func (r *repoLinkRepo) DeleteByID(dbc dbctx.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return nil
	}
	return dbc.DB(r.db).Where("id = ?", id).Delete(&types.RepoLink{}).Error
}
