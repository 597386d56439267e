package provisioning

import (
	types "github.com/yungbote/classroom-backend/internal/domain"
)

type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeFailed  OutcomeStatus = "failed"
	OutcomePending OutcomeStatus = "pending"
)

// Outcome is what one provisioning attempt reports to its caller. Exactly one
// of RepoLink and Err is set unless the status is pending.
type Outcome struct {
	Status   OutcomeStatus
	RepoLink *types.RepoLink
	Err      *Error
}

func Succeeded(link *types.RepoLink) *Outcome {
	return &Outcome{Status: OutcomeSuccess, RepoLink: link}
}

func Failed(err *Error) *Outcome {
	return &Outcome{Status: OutcomeFailed, Err: err}
}

func Pending() *Outcome {
	return &Outcome{Status: OutcomePending}
}

func (o *Outcome) Success() bool   { return o != nil && o.Status == OutcomeSuccess }
func (o *Outcome) IsFailed() bool  { return o != nil && o.Status == OutcomeFailed }
func (o *Outcome) IsPending() bool { return o != nil && o.Status == OutcomePending }
