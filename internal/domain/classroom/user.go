package classroom

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a student (or instructor) known to the hosting provider. AccessToken is
// the user's own OAuth token, used only to accept repository invitations on
// their behalf.
type User struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	GitHubUID   int64     `gorm:"column:github_uid;not null;uniqueIndex" json:"github_uid"`
	GitHubLogin string    `gorm:"column:github_login;not null" json:"github_login"`
	AccessToken string    `gorm:"column:access_token" json:"-"`
	CreatedAt   time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string { return "user" }

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
