package provisioning

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies why a provisioning attempt failed.
type Kind string

const (
	KindQuotaExceeded                    Kind = "quota_exceeded"
	KindQuotaCheckFailed                 Kind = "quota_check_failed"
	KindRepositoryCreationFailed         Kind = "repository_creation_failed"
	KindTemplateNotFound                 Kind = "template_repository_not_found"
	KindTemplateRepositoryCreationFailed Kind = "template_repository_creation_failed"
	KindLinkPersistFailed                Kind = "link_persist_failed"
	KindCollaboratorAdditionFailed       Kind = "collaborator_addition_failed"
	KindStarterCodeImportFailed          Kind = "starter_code_import_failed"
	KindInvalidProgressState             Kind = "invalid_progress_state"
)

// Error is the only error shape Provision surfaces for a failed attempt.
// Cause keeps the provider or storage error for logs; it is never shown to
// the collaborator.
type Error struct {
	Kind    Kind
	Message string
	Cause   error

	assignmentType string
	collaborator   string
	privateRepos   int64
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := strings.TrimSpace(e.Message)
	switch {
	case msg != "" && e.Cause != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, msg, e.Cause)
	case e.Cause != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	case msg != "":
		return fmt.Sprintf("%s: %s", e.Kind, msg)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

// UserMessage renders a message fit for the collaborator.
func (e *Error) UserMessage() string {
	if e == nil {
		return ""
	}
	assignmentType := e.assignmentType
	if assignmentType == "" {
		assignmentType = "assignment"
	}
	switch e.Kind {
	case KindRepositoryCreationFailed:
		return "GitHub repository could not be created, please try again."
	case KindTemplateRepositoryCreationFailed:
		return "GitHub repository could not be created from template, please try again."
	case KindTemplateNotFound:
		return "Starter code template repository was not found. The repository might be deleted, " +
			"or the organization that owns the repository has restrictions on third-party access."
	case KindStarterCodeImportFailed:
		return fmt.Sprintf("We were not able to import you the starter code to your %s, please try again.", assignmentType)
	case KindCollaboratorAdditionFailed:
		collaborator := e.collaborator
		if collaborator == "" {
			collaborator = "user"
		}
		return fmt.Sprintf("We were not able to add the %s to the %s, please try again.", collaborator, assignmentType)
	case KindQuotaExceeded:
		noun := "repositories"
		if e.privateRepos == 1 {
			noun = "repository"
		}
		return fmt.Sprintf("Cannot make this private assignment, your limit of %d %s has been reached. "+
			"You can request a larger plan for free at https://education.github.com/discount", e.privateRepos, noun)
	default:
		return capitalize(assignmentType) + " could not be created, please try again."
	}
}

func newError(ex *Exercise, kind Kind, message string, cause error) *Error {
	e := &Error{Kind: kind, Message: message, Cause: cause}
	if ex != nil {
		e.assignmentType = ex.AssignmentType()
		if ex.Collaborator != nil {
			e.collaborator = ex.Humanize()
		}
	}
	return e
}

// KindOf returns the Kind of a provisioning Error anywhere in err's chain.
func KindOf(err error) Kind {
	var pe *Error
	if !errors.As(err, &pe) {
		return ""
	}
	return pe.Kind
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
