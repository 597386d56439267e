package github

// Permission is the access level granted to a collaborator on a repository.
type Permission string

const (
	PermissionAdmin Permission = "admin"
	PermissionPush  Permission = "push"
)

// Repository is the statically declared view of a remote repository that the
// rest of the service relies on.
type Repository struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	FullName      string `json:"full_name"`
	Owner         string `json:"owner"`
	HTMLURL       string `json:"html_url"`
	CloneURL      string `json:"clone_url"`
	DefaultBranch string `json:"default_branch,omitempty"`
	Private       bool   `json:"private"`
}

// Invitation is a pending collaborator invitation. ID is zero when the user
// already had access and no invitation was issued.
type Invitation struct {
	ID           int64  `json:"id"`
	RepoFullName string `json:"repo_full_name,omitempty"`
	Invitee      string `json:"invitee,omitempty"`
}

// Plan is the billing plan of an organization.
type Plan struct {
	Name              string `json:"name"`
	OwnedPrivateRepos int64  `json:"owned_private_repos"`
	PrivateRepos      int64  `json:"private_repos"`
}

// PrivateQuotaExhausted reports whether another private repository would
// exceed the plan.
func (p *Plan) PrivateQuotaExhausted() bool {
	return p != nil && p.OwnedPrivateRepos >= p.PrivateRepos
}

type CreateOptions struct {
	Private     bool
	Description string
}

type TemplateOptions struct {
	Owner              string
	Private            bool
	Description        string
	IncludeAllBranches bool
}
