package domain

import (
	"github.com/yungbote/classroom-backend/internal/domain/classroom"
	"github.com/yungbote/classroom-backend/internal/domain/jobs"
)

type Organization = classroom.Organization
type User = classroom.User
type Group = classroom.Group
type Assignment = classroom.Assignment
type AssignmentKind = classroom.AssignmentKind
type Invitation = classroom.Invitation
type InviteStatus = classroom.InviteStatus
type RepoLink = classroom.RepoLink
type ConfigurationState = classroom.ConfigurationState
type ProgressState = classroom.ProgressState

type JobRun = jobs.JobRun

const (
	AssignmentKindIndividual = classroom.AssignmentKindIndividual
	AssignmentKindGroup      = classroom.AssignmentKindGroup

	StatePending                     = classroom.StatePending
	StateAccepted                    = classroom.StateAccepted
	StateCreatingRepo                = classroom.StateCreatingRepo
	StateImportingStarterCode        = classroom.StateImportingStarterCode
	StateCompleted                   = classroom.StateCompleted
	StateErroredCreatingRepo         = classroom.StateErroredCreatingRepo
	StateErroredImportingStarterCode = classroom.StateErroredImportingStarterCode

	JobStatusQueued    = jobs.StatusQueued
	JobStatusRunning   = jobs.StatusRunning
	JobStatusSucceeded = jobs.StatusSucceeded
	JobStatusFailed    = jobs.StatusFailed
	JobStatusCanceled  = jobs.StatusCanceled

	JobTypeRepoProvision  = jobs.TypeRepoProvision
	JobEntityInviteStatus = jobs.EntityInviteStatus
)

var CanAdvance = classroom.CanAdvance

var ErrCollaboratorRef = classroom.ErrCollaboratorRef

// Models returns every persisted model in migration order.
func Models() []any {
	return []any{
		&Organization{},
		&User{},
		&Group{},
		&Assignment{},
		&Invitation{},
		&InviteStatus{},
		&RepoLink{},
		&JobRun{},
	}
}
