package provisioning

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	types "github.com/yungbote/classroom-backend/internal/domain"
	"github.com/yungbote/classroom-backend/internal/platform/github"
)

const (
	DefaultRepoNameTemplate = "{assignment}-{collaborator}"
	maxRepoNameLength       = 100
)

// Exercise pairs an assignment with the collaborator it is being provisioned
// for. It is built per attempt and never persisted.
type Exercise struct {
	Assignment     *types.Assignment
	Organization   *types.Organization
	Collaborator   Collaborator
	InviteStatusID uuid.UUID
}

func NewExercise(assignment *types.Assignment, org *types.Organization, collaborator Collaborator, inviteStatusID uuid.UUID) *Exercise {
	return &Exercise{
		Assignment:     assignment,
		Organization:   org,
		Collaborator:   collaborator,
		InviteStatusID: inviteStatusID,
	}
}

var invalidRepoNameChars = regexp.MustCompile(`[^a-z0-9._-]+`)

func (e *Exercise) RepoName() string {
	tmpl := strings.TrimSpace(e.Assignment.RepoNameTemplate)
	if tmpl == "" {
		tmpl = DefaultRepoNameTemplate
	}
	name := strings.NewReplacer(
		"{assignment}", e.Assignment.Slug,
		"{collaborator}", e.Collaborator.Name(),
		"{org}", e.Organization.Login,
	).Replace(tmpl)

	name = invalidRepoNameChars.ReplaceAllString(strings.ToLower(name), "-")
	for strings.Contains(name, "--") {
		name = strings.ReplaceAll(name, "--", "-")
	}
	name = strings.Trim(name, "-.")
	if len(name) > maxRepoNameLength {
		name = strings.TrimRight(name[:maxRepoNameLength], "-.")
	}
	return name
}

func (e *Exercise) Description() string {
	return e.RepoName() + " created by GitHub Classroom"
}

func (e *Exercise) Humanize() string { return e.Collaborator.Humanize() }

func (e *Exercise) AssignmentType() string {
	if e.Assignment.IsGroup() {
		return "group assignment"
	}
	return "assignment"
}

func (e *Exercise) StatsPrefix() string {
	if e.Assignment.IsGroup() {
		return "group_assignment"
	}
	return "assignment"
}

func (e *Exercise) Permission() github.Permission {
	if e.Assignment.StudentsAreRepoAdmins {
		return github.PermissionAdmin
	}
	return github.PermissionPush
}

func (e *Exercise) AttemptKey() string { return AttemptKey(e.InviteStatusID) }

// AttemptKey names the live-update channel of the attempt tracked by the
// given invite status.
func AttemptKey(inviteStatusID uuid.UUID) string {
	return "provision:" + inviteStatusID.String()
}

func (e *Exercise) stamp(link *types.RepoLink) {
	link.AssignmentID = e.Assignment.ID
	link.UserID = e.Collaborator.UserID()
	link.GroupID = e.Collaborator.GroupID()
}
