package classroom

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ConfigurationState is kept for rows written before starter code moved to
// template cloning. New rows leave it nil.
type ConfigurationState string

const (
	ConfigurationNotConfigured ConfigurationState = "not_configured"
	ConfigurationConfiguring   ConfigurationState = "configuring"
	ConfigurationConfigured    ConfigurationState = "configured"
)

var ErrCollaboratorRef = errors.New("exactly one of user_id or group_id must be set")

// RepoLink records that a collaborator owns a repository for an assignment.
// GitHubRepoID is unique; (assignment_id, user_id) and (assignment_id,
// group_id) are unique through partial indexes created at migration time.
//
// The GitHub* attributes are a cache of the remote repository, refreshed by
// an explicit fetch.
type RepoLink struct {
	ID                 uuid.UUID           `gorm:"type:uuid;primaryKey" json:"id"`
	GitHubRepoID       int64               `gorm:"column:github_repo_id;not null;uniqueIndex" json:"github_repo_id"`
	AssignmentID       uuid.UUID           `gorm:"type:uuid;not null;index" json:"assignment_id"`
	UserID             *uuid.UUID          `gorm:"type:uuid;index" json:"user_id,omitempty"`
	GroupID            *uuid.UUID          `gorm:"type:uuid;index" json:"group_id,omitempty"`
	SubmissionSHA      *string             `gorm:"column:submission_sha" json:"submission_sha,omitempty"`
	ConfigurationState *ConfigurationState `gorm:"column:configuration_state" json:"configuration_state,omitempty"`
	GitHubName         string              `gorm:"column:github_name" json:"github_name,omitempty"`
	GitHubFullName     string              `gorm:"column:github_full_name" json:"github_full_name,omitempty"`
	GitHubHTMLURL      string              `gorm:"column:github_html_url" json:"github_html_url,omitempty"`
	CachedAt           *time.Time          `gorm:"column:cached_at" json:"cached_at,omitempty"`
	CreatedAt          time.Time           `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time           `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (RepoLink) TableName() string { return "repo_link" }

func (l *RepoLink) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

func (l *RepoLink) BeforeSave(tx *gorm.DB) error {
	return validateCollaboratorRef(l.UserID, l.GroupID)
}

func validateCollaboratorRef(userID, groupID *uuid.UUID) error {
	hasUser := userID != nil && *userID != uuid.Nil
	hasGroup := groupID != nil && *groupID != uuid.Nil
	if hasUser == hasGroup {
		return ErrCollaboratorRef
	}
	return nil
}
