package classroom

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AssignmentKind string

const (
	AssignmentKindIndividual AssignmentKind = "individual"
	AssignmentKindGroup      AssignmentKind = "group"
)

// Assignment carries everything provisioning needs to know about how a
// collaborator's repository should look.
//
// StarterCodeRepoID points at a repository on the hosting provider. When
// TemplateReposEnabled is set it is cloned as a template, otherwise its
// branches are pushed into the fresh repository.
type Assignment struct {
	ID                    uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	OrganizationID        uuid.UUID      `gorm:"type:uuid;not null;index" json:"organization_id"`
	Kind                  AssignmentKind `gorm:"column:kind;not null;default:individual" json:"kind"`
	Title                 string         `gorm:"column:title;not null" json:"title"`
	Slug                  string         `gorm:"column:slug;not null;index" json:"slug"`
	PublicRepo            bool           `gorm:"column:public_repo;not null" json:"public_repo"`
	StudentsAreRepoAdmins bool           `gorm:"column:students_are_repo_admins;not null;default:false" json:"students_are_repo_admins"`
	StarterCodeRepoID     *int64         `gorm:"column:starter_code_repo_id" json:"starter_code_repo_id,omitempty"`
	TemplateReposEnabled  bool           `gorm:"column:template_repos_enabled;not null;default:false" json:"template_repos_enabled"`
	RepoNameTemplate      string         `gorm:"column:repo_name_template" json:"repo_name_template,omitempty"`
	CreatedAt             time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time      `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (Assignment) TableName() string { return "assignment" }

func (a *Assignment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Kind == "" {
		a.Kind = AssignmentKindIndividual
	}
	return nil
}

func (a *Assignment) Private() bool { return !a.PublicRepo }

func (a *Assignment) IsGroup() bool { return a.Kind == AssignmentKindGroup }

func (a *Assignment) HasStarterCode() bool {
	return a.StarterCodeRepoID != nil && *a.StarterCodeRepoID > 0
}

func (a *Assignment) UseTemplateRepos() bool {
	return a.HasStarterCode() && a.TemplateReposEnabled
}

func (a *Assignment) UseImporter() bool {
	return a.HasStarterCode() && !a.TemplateReposEnabled
}
