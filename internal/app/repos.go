package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/classroom-backend/internal/data/repos"
	"github.com/yungbote/classroom-backend/internal/platform/logger"
)

type Repos struct {
	Organization repos.OrganizationRepo
	User         repos.UserRepo
	Group        repos.GroupRepo
	Assignment   repos.AssignmentRepo
	Invitation   repos.InvitationRepo
	InviteStatus repos.InviteStatusRepo
	RepoLink     repos.RepoLinkRepo
	JobRun       repos.JobRunRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Organization: repos.NewOrganizationRepo(db, log),
		User:         repos.NewUserRepo(db, log),
		Group:        repos.NewGroupRepo(db, log),
		Assignment:   repos.NewAssignmentRepo(db, log),
		Invitation:   repos.NewInvitationRepo(db, log),
		InviteStatus: repos.NewInviteStatusRepo(db, log),
		RepoLink:     repos.NewRepoLinkRepo(db, log),
		JobRun:       repos.NewJobRunRepo(db, log),
	}
}
