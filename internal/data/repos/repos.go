package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/classroom-backend/internal/data/repos/classroom"
	"github.com/yungbote/classroom-backend/internal/data/repos/jobs"
	"github.com/yungbote/classroom-backend/internal/platform/logger"
)

type OrganizationRepo = classroom.OrganizationRepo
type UserRepo = classroom.UserRepo
type GroupRepo = classroom.GroupRepo
type AssignmentRepo = classroom.AssignmentRepo
type InvitationRepo = classroom.InvitationRepo
type InviteStatusRepo = classroom.InviteStatusRepo
type RepoLinkRepo = classroom.RepoLinkRepo
type RepoCache = classroom.RepoCache

type JobRunRepo = jobs.JobRunRepo

func NewOrganizationRepo(db *gorm.DB, baseLog *logger.Logger) OrganizationRepo {
	return classroom.NewOrganizationRepo(db, baseLog)
}

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo {
	return classroom.NewUserRepo(db, baseLog)
}

func NewGroupRepo(db *gorm.DB, baseLog *logger.Logger) GroupRepo {
	return classroom.NewGroupRepo(db, baseLog)
}

func NewAssignmentRepo(db *gorm.DB, baseLog *logger.Logger) AssignmentRepo {
	return classroom.NewAssignmentRepo(db, baseLog)
}

func NewInvitationRepo(db *gorm.DB, baseLog *logger.Logger) InvitationRepo {
	return classroom.NewInvitationRepo(db, baseLog)
}

func NewInviteStatusRepo(db *gorm.DB, baseLog *logger.Logger) InviteStatusRepo {
	return classroom.NewInviteStatusRepo(db, baseLog)
}

func NewRepoLinkRepo(db *gorm.DB, baseLog *logger.Logger) RepoLinkRepo {
	return classroom.NewRepoLinkRepo(db, baseLog)
}

func NewJobRunRepo(db *gorm.DB, baseLog *logger.Logger) JobRunRepo {
	return jobs.NewJobRunRepo(db, baseLog)
}
