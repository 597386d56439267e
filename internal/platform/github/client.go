package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v72/github"

	"github.com/yungbote/classroom-backend/internal/platform/envutil"
	"github.com/yungbote/classroom-backend/internal/platform/logger"
)

type Config struct {
	Token       string
	BaseURL     string
	HTTPTimeout time.Duration
}

func LoadConfig(log *logger.Logger) Config {
	return Config{
		Token:       envutil.String("GITHUB_TOKEN", "", log),
		BaseURL:     envutil.String("GITHUB_API_URL", "", log),
		HTTPTimeout: envutil.Duration("GITHUB_HTTP_TIMEOUT", 30*time.Second, log),
	}
}

// Client talks to the hosting provider with the organization's credentials.
// Collaborator-side calls (accepting an invitation) build a short-lived client
// with the user's own token.
type Client struct {
	gh         *gh.Client
	httpClient *http.Client
	baseURL    *url.URL
	token      string
	pusher     StarterCodePusher
	log        *logger.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the transport used for API calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithPusher replaces the git-backed starter code importer.
func WithPusher(p StarterCodePusher) Option {
	return func(c *Client) { c.pusher = p }
}

func NewClient(cfg Config, log *logger.Logger, opts ...Option) (*Client, error) {
	c := &Client{
		token: strings.TrimSpace(cfg.Token),
		log:   log.With("client", "GitHubClient"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		timeout := cfg.HTTPTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		c.httpClient = &http.Client{Timeout: timeout}
	}
	if raw := strings.TrimSpace(cfg.BaseURL); raw != "" {
		if !strings.HasSuffix(raw, "/") {
			raw += "/"
		}
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse GITHUB_API_URL: %w", err)
		}
		c.baseURL = u
	}
	c.gh = c.newAPIClient(c.token)
	if c.pusher == nil {
		c.pusher = NewGitPusher(c.token, c.log)
	}
	return c, nil
}

func (c *Client) newAPIClient(token string) *gh.Client {
	client := gh.NewClient(c.httpClient)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	if c.baseURL != nil {
		client.BaseURL = c.baseURL
	}
	return client
}

func (c *Client) CreateRepository(ctx context.Context, org, name string, opts CreateOptions) (*Repository, error) {
	repo, resp, err := c.gh.Repositories.Create(ctx, org, &gh.Repository{
		Name:        gh.Ptr(name),
		Private:     gh.Ptr(opts.Private),
		Description: gh.Ptr(opts.Description),
		HasWiki:     gh.Ptr(false),
	})
	if err != nil {
		return nil, classify("create_repository", resp, err)
	}
	c.log.Debug("Repository created", "repo", repo.GetFullName(), "github_repo_id", repo.GetID())
	return toRepository(repo), nil
}

// CreateRepositoryFromTemplate generates name from the template repository
// identified by templateID. A missing template surfaces as ErrNotFound.
func (c *Client) CreateRepositoryFromTemplate(ctx context.Context, templateID int64, name string, opts TemplateOptions) (*Repository, error) {
	tmpl, resp, err := c.gh.Repositories.GetByID(ctx, templateID)
	if err != nil {
		return nil, classify("get_template_repository", resp, err)
	}
	repo, resp, err := c.gh.Repositories.CreateFromTemplate(ctx, tmpl.GetOwner().GetLogin(), tmpl.GetName(), &gh.TemplateRepoRequest{
		Name:               gh.Ptr(name),
		Owner:              gh.Ptr(opts.Owner),
		Description:        gh.Ptr(opts.Description),
		IncludeAllBranches: gh.Ptr(opts.IncludeAllBranches),
		Private:            gh.Ptr(opts.Private),
	})
	if err != nil {
		return nil, classify("create_repository_from_template", resp, err)
	}
	c.log.Debug("Repository generated from template", "repo", repo.GetFullName(), "template", tmpl.GetFullName())
	return toRepository(repo), nil
}

// DeleteRepository is idempotent: a repository that no longer exists counts
// as deleted.
func (c *Client) DeleteRepository(ctx context.Context, repoID int64) error {
	repo, resp, err := c.gh.Repositories.GetByID(ctx, repoID)
	if err != nil {
		err = classify("delete_repository", resp, err)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	resp, err = c.gh.Repositories.Delete(ctx, repo.GetOwner().GetLogin(), repo.GetName())
	if err != nil {
		err = classify("delete_repository", resp, err)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	c.log.Debug("Repository deleted", "github_repo_id", repoID)
	return nil
}

func (c *Client) GetRepository(ctx context.Context, repoID int64) (*Repository, error) {
	repo, resp, err := c.gh.Repositories.GetByID(ctx, repoID)
	if err != nil {
		return nil, classify("get_repository", resp, err)
	}
	return toRepository(repo), nil
}

func (c *Client) InviteUser(ctx context.Context, repo *Repository, login string, perm Permission) (*Invitation, error) {
	inv, resp, err := c.gh.Repositories.AddCollaborator(ctx, repo.Owner, repo.Name, login, &gh.RepositoryAddCollaboratorOptions{
		Permission: string(perm),
	})
	if err != nil {
		return nil, classify("invite_user", resp, err)
	}
	out := &Invitation{RepoFullName: repo.FullName, Invitee: login}
	if inv != nil {
		out.ID = inv.GetID()
	}
	return out, nil
}

// AcceptInvitation accepts inv on behalf of the invitee using their token.
func (c *Client) AcceptInvitation(ctx context.Context, userToken string, inv *Invitation) error {
	if inv == nil || inv.ID == 0 {
		return nil
	}
	if strings.TrimSpace(userToken) == "" {
		return &RemoteError{Op: "accept_invitation", Category: CategoryUnauthorized, Err: errors.New("missing user token")}
	}
	resp, err := c.newAPIClient(userToken).Users.AcceptInvitation(ctx, inv.ID)
	if err != nil {
		return classify("accept_invitation", resp, err)
	}
	return nil
}

func (c *Client) AddTeamToRepository(ctx context.Context, orgID, teamID int64, repo *Repository, perm Permission) error {
	resp, err := c.gh.Teams.AddTeamRepoByID(ctx, orgID, teamID, repo.Owner, repo.Name, &gh.TeamAddTeamRepoOptions{
		Permission: string(perm),
	})
	if err != nil {
		return classify("add_team_to_repository", resp, err)
	}
	return nil
}

func (c *Client) GetOrganizationPlan(ctx context.Context, org string) (*Plan, error) {
	o, resp, err := c.gh.Organizations.Get(ctx, org)
	if err != nil {
		return nil, classify("get_organization_plan", resp, err)
	}
	plan := o.GetPlan()
	return &Plan{
		Name:              plan.GetName(),
		OwnedPrivateRepos: o.GetOwnedPrivateRepos(),
		PrivateRepos:      plan.GetPrivateRepos(),
	}, nil
}

// PushStarterCode copies every branch and tag of the repository identified by
// fromRepoID into to.
func (c *Client) PushStarterCode(ctx context.Context, fromRepoID int64, to *Repository) error {
	from, err := c.GetRepository(ctx, fromRepoID)
	if err != nil {
		return err
	}
	return c.pusher.Push(ctx, from, to)
}

func toRepository(r *gh.Repository) *Repository {
	if r == nil {
		return nil
	}
	return &Repository{
		ID:            r.GetID(),
		Name:          r.GetName(),
		FullName:      r.GetFullName(),
		Owner:         r.GetOwner().GetLogin(),
		HTMLURL:       r.GetHTMLURL(),
		CloneURL:      r.GetCloneURL(),
		DefaultBranch: r.GetDefaultBranch(),
		Private:       r.GetPrivate(),
	}
}
