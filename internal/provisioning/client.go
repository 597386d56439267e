package provisioning

import (
	"context"

	"github.com/yungbote/classroom-backend/internal/platform/github"
)

// RemoteRepositoryClient is the hosting-provider surface the orchestrator
// drives. *github.Client satisfies it.
type RemoteRepositoryClient interface {
	CreateRepository(ctx context.Context, org, name string, opts github.CreateOptions) (*github.Repository, error)
	CreateRepositoryFromTemplate(ctx context.Context, templateID int64, name string, opts github.TemplateOptions) (*github.Repository, error)
	DeleteRepository(ctx context.Context, repoID int64) error
	GetRepository(ctx context.Context, repoID int64) (*github.Repository, error)
	InviteUser(ctx context.Context, repo *github.Repository, login string, perm github.Permission) (*github.Invitation, error)
	AcceptInvitation(ctx context.Context, userToken string, inv *github.Invitation) error
	AddTeamToRepository(ctx context.Context, orgID, teamID int64, repo *github.Repository, perm github.Permission) error
	GetOrganizationPlan(ctx context.Context, org string) (*github.Plan, error)
	PushStarterCode(ctx context.Context, fromRepoID int64, to *github.Repository) error
}

var _ RemoteRepositoryClient = (*github.Client)(nil)
