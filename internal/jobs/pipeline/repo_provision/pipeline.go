package repo_provision

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	types "github.com/yungbote/classroom-backend/internal/domain"
	jobrt "github.com/yungbote/classroom-backend/internal/jobs/runtime"
	"github.com/yungbote/classroom-backend/internal/provisioning"
)

// Result is stored on the job row once provisioning settles.
type Result struct {
	InviteStatusID uuid.UUID           `json:"invite_status_id"`
	State          types.ProgressState `json:"state"`
	RepoLinkID     uuid.UUID           `json:"repo_link_id,omitempty"`
	GitHubRepoID   int64               `json:"github_repo_id,omitempty"`
	FullName       string              `json:"full_name,omitempty"`
	HTMLURL        string              `json:"html_url,omitempty"`
}

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	statusID, ok := jc.PayloadUUID("invite_status_id")
	if !ok {
		jc.Fail("validate", jobrt.Permanent(fmt.Errorf("missing invite_status_id")))
		return nil
	}

	jc.Progress("resolve", 5, "Loading assignment")
	req, err := p.resolver.Resolve(jc.Ctx, statusID)
	if err != nil {
		if errors.Is(err, provisioning.ErrUnresolvable) {
			err = jobrt.Permanent(err)
		}
		jc.Fail("resolve", err)
		return nil
	}

	if req.InviteStatus.Status.IsInProgress() && jc.Reclaimed() {
		p.log.Warn("Recovering abandoned attempt", "invite_status_id", statusID, "state", req.InviteStatus.Status, "attempt", jc.Job.Attempts)
		jc.Progress("recover", 10, "Cleaning up an interrupted attempt")
		if err := p.svc.Recover(jc.Ctx, req); err != nil {
			jc.Fail("recover", err)
			return nil
		}
		if req, err = p.resolver.Resolve(jc.Ctx, statusID); err != nil {
			jc.Fail("resolve", err)
			return nil
		}
	}

	if req.InviteStatus.Status == types.StateCompleted {
		jc.Succeed("done", Result{InviteStatusID: statusID, State: types.StateCompleted})
		return nil
	}

	jc.Progress("provision", 20, "Creating repository")
	out, err := p.svc.Provision(jc.Ctx, req)
	if err != nil {
		jc.Fail("provision", jobrt.Permanent(err))
		return nil
	}
	if out.IsFailed() {
		// Provisioning already recorded the error state and rolled back; a
		// blind retry would be refused, so only an explicit retry reopens it.
		jc.Fail(string(out.Err.Kind), jobrt.Permanent(fmt.Errorf("%s: %s", out.Err.Kind, out.Err.UserMessage())))
		return nil
	}

	res := Result{InviteStatusID: statusID, State: types.StateCompleted}
	if link := out.RepoLink; link != nil {
		res.RepoLinkID = link.ID
		res.GitHubRepoID = link.GitHubRepoID
		res.FullName = link.GitHubFullName
		res.HTMLURL = link.GitHubHTMLURL
	}
	jc.Succeed("done", res)
	return nil
}
