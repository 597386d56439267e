package provisioning

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/yungbote/classroom-backend/internal/data/repos"
	"github.com/yungbote/classroom-backend/internal/platform/dbctx"
)

// ErrUnresolvable means a referenced row is gone; retrying will not help.
var ErrUnresolvable = errors.New("provision request cannot be resolved")

type ResolverDeps struct {
	Organizations repos.OrganizationRepo
	Users         repos.UserRepo
	Groups        repos.GroupRepo
	Assignments   repos.AssignmentRepo
	Invitations   repos.InvitationRepo
	Statuses      repos.InviteStatusRepo
}

// Resolver loads everything a ProvisionRequest needs from an invite status id.
type Resolver struct {
	d ResolverDeps
}

func NewResolver(d ResolverDeps) *Resolver { return &Resolver{d: d} }

func (r *Resolver) Resolve(ctx context.Context, inviteStatusID uuid.UUID) (ProvisionRequest, error) {
	dbc := dbctx.Context{Ctx: ctx}
	var req ProvisionRequest

	row, err := r.d.Statuses.GetByID(dbc, inviteStatusID)
	if err != nil {
		return req, err
	}
	if row == nil {
		return req, fmt.Errorf("%w: invite status %s", ErrUnresolvable, inviteStatusID)
	}
	inv, err := r.d.Invitations.GetByID(dbc, row.InvitationID)
	if err != nil {
		return req, err
	}
	if inv == nil {
		return req, fmt.Errorf("%w: invitation %s", ErrUnresolvable, row.InvitationID)
	}
	assignment, err := r.d.Assignments.GetByID(dbc, inv.AssignmentID)
	if err != nil {
		return req, err
	}
	if assignment == nil {
		return req, fmt.Errorf("%w: assignment %s", ErrUnresolvable, inv.AssignmentID)
	}
	org, err := r.d.Organizations.GetByID(dbc, assignment.OrganizationID)
	if err != nil {
		return req, err
	}
	if org == nil {
		return req, fmt.Errorf("%w: organization %s", ErrUnresolvable, assignment.OrganizationID)
	}
	collaborator, err := r.collaborator(dbc, row.UserID, row.GroupID)
	if err != nil {
		return req, err
	}
	return ProvisionRequest{
		Assignment:   assignment,
		Organization: org,
		Collaborator: collaborator,
		InviteStatus: row,
	}, nil
}

func (r *Resolver) collaborator(dbc dbctx.Context, userID, groupID *uuid.UUID) (Collaborator, error) {
	switch {
	case userID != nil && groupID == nil:
		user, err := r.d.Users.GetByID(dbc, *userID)
		if err != nil {
			return nil, err
		}
		if user == nil {
			return nil, fmt.Errorf("%w: user %s", ErrUnresolvable, *userID)
		}
		return Individual{User: user}, nil
	case groupID != nil && userID == nil:
		group, err := r.d.Groups.GetByID(dbc, *groupID)
		if err != nil {
			return nil, err
		}
		if group == nil {
			return nil, fmt.Errorf("%w: group %s", ErrUnresolvable, *groupID)
		}
		return Team{Group: group}, nil
	}
	return nil, fmt.Errorf("%w: invite status must name exactly one collaborator", ErrUnresolvable)
}
