package db

import (
	"fmt"

	types "github.com/yungbote/classroom-backend/internal/domain"
	"gorm.io/gorm"
)

// Partial unique indexes hold the one-row-per-collaborator invariants. Both
// postgres and sqlite accept this syntax.
var collaboratorIndexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_repo_link_assignment_user ON repo_link (assignment_id, user_id) WHERE user_id IS NOT NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_repo_link_assignment_group ON repo_link (assignment_id, group_id) WHERE group_id IS NOT NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_invite_status_invitation_user ON invite_status (invitation_id, user_id) WHERE user_id IS NOT NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_invite_status_invitation_group ON invite_status (invitation_id, group_id) WHERE group_id IS NOT NULL`,
}

// At most one queued or running job per entity and job type. Enqueue relies
// on this to deduplicate concurrent requests.
var jobIndexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_job_run_runnable_entity ON job_run (entity_type, entity_id, job_type) WHERE entity_id IS NOT NULL AND status IN ('queued', 'running')`,
}

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(types.Models()...); err != nil {
		return err
	}
	for _, stmt := range append(collaboratorIndexes, jobIndexes...) {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}
