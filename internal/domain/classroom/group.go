package classroom

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Group maps one-to-one onto a team in the hosting organization.
type Group struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OrganizationID uuid.UUID `gorm:"type:uuid;not null;index" json:"organization_id"`
	GitHubTeamID   int64     `gorm:"column:github_team_id;not null;uniqueIndex" json:"github_team_id"`
	Title          string    `gorm:"column:title;not null" json:"title"`
	Slug           string    `gorm:"column:slug;not null" json:"slug"`
	CreatedAt      time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (Group) TableName() string { return "group" }

func (g *Group) BeforeCreate(tx *gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}
