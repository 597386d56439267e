package classroom

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InviteStatus is the durable progress record for one (invitation,
// collaborator) pair. Exactly one of UserID and GroupID is set; partial
// unique indexes keep one row per pair.
type InviteStatus struct {
	ID           uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	InvitationID uuid.UUID     `gorm:"type:uuid;not null;index" json:"invitation_id"`
	UserID       *uuid.UUID    `gorm:"type:uuid;index" json:"user_id,omitempty"`
	GroupID      *uuid.UUID    `gorm:"type:uuid;index" json:"group_id,omitempty"`
	Status       ProgressState `gorm:"column:status;not null;default:pending;index" json:"status"`
	CreatedAt    time.Time     `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time     `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (InviteStatus) TableName() string { return "invite_status" }

func (s *InviteStatus) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Status == "" {
		s.Status = StatePending
	}
	return validateCollaboratorRef(s.UserID, s.GroupID)
}
