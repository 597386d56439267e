package provisioning

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	types "github.com/yungbote/classroom-backend/internal/domain"
	"github.com/yungbote/classroom-backend/internal/platform/github"
)

// Collaborator is the receiver of a provisioned repository: either an
// Individual or a Team. The interface is sealed.
type Collaborator interface {
	// Name is the login or team slug used in repository names.
	Name() string
	// Humanize returns "user" or "group".
	Humanize() string
	UserID() *uuid.UUID
	GroupID() *uuid.UUID

	grantAccess(ctx context.Context, client RemoteRepositoryClient, org *types.Organization, repo *github.Repository, perm github.Permission) error
}

type Individual struct {
	User *types.User
}

func (c Individual) Name() string     { return c.User.GitHubLogin }
func (c Individual) Humanize() string { return "user" }
func (c Individual) UserID() *uuid.UUID {
	id := c.User.ID
	return &id
}
func (c Individual) GroupID() *uuid.UUID { return nil }

// grantAccess invites the user and accepts the invitation with their own
// token so the repository is usable immediately.
func (c Individual) grantAccess(ctx context.Context, client RemoteRepositoryClient, org *types.Organization, repo *github.Repository, perm github.Permission) error {
	inv, err := client.InviteUser(ctx, repo, c.User.GitHubLogin, perm)
	if err != nil {
		return err
	}
	return client.AcceptInvitation(ctx, c.User.AccessToken, inv)
}

type Team struct {
	Group *types.Group
}

func (c Team) Name() string {
	if c.Group.Slug != "" {
		return c.Group.Slug
	}
	return c.Group.Title
}
func (c Team) Humanize() string   { return "group" }
func (c Team) UserID() *uuid.UUID { return nil }
func (c Team) GroupID() *uuid.UUID {
	id := c.Group.ID
	return &id
}

func (c Team) grantAccess(ctx context.Context, client RemoteRepositoryClient, org *types.Organization, repo *github.Repository, perm github.Permission) error {
	return client.AddTeamToRepository(ctx, org.GitHubID, c.Group.GitHubTeamID, repo, perm)
}

// NewCollaborator builds the variant matching whichever of user or group is
// set. Exactly one must be non-nil.
func NewCollaborator(user *types.User, group *types.Group) (Collaborator, error) {
	switch {
	case user != nil && group == nil:
		return Individual{User: user}, nil
	case group != nil && user == nil:
		return Team{Group: group}, nil
	}
	return nil, fmt.Errorf("collaborator: %w", types.ErrCollaboratorRef)
}
