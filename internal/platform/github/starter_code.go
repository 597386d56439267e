package github

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/config"
	"github.com/go-git/go-git/v6/plumbing/transport"
	"github.com/go-git/go-git/v6/plumbing/transport/http"
	"github.com/go-git/go-git/v6/storage/memory"

	"github.com/yungbote/classroom-backend/internal/platform/logger"
)

type StarterCodePusher interface {
	Push(ctx context.Context, from, to *Repository) error
}

const destinationRemote = "destination"

var mirrorRefSpecs = []config.RefSpec{
	"+refs/heads/*:refs/heads/*",
	"+refs/tags/*:refs/tags/*",
}

type gitPusher struct {
	token string
	log   *logger.Logger
}

// NewGitPusher mirrors repositories through an in-memory clone.
func NewGitPusher(token string, log *logger.Logger) StarterCodePusher {
	return &gitPusher{token: token, log: log.With("component", "GitPusher")}
}

func (p *gitPusher) auth() *http.BasicAuth {
	return &http.BasicAuth{Username: "x-access-token", Password: p.token}
}

func (p *gitPusher) Push(ctx context.Context, from, to *Repository) error {
	if from == nil || to == nil {
		return fmt.Errorf("push starter code: missing repository")
	}
	src, err := git.CloneContext(ctx, memory.NewStorage(), nil, &git.CloneOptions{
		URL:    from.CloneURL,
		Auth:   p.auth(),
		Mirror: true,
	})
	if err != nil {
		if errors.Is(err, transport.ErrEmptyRemoteRepository) {
			p.log.Info("Starter code repository is empty, nothing to import", "from", from.FullName)
			return nil
		}
		return &RemoteError{Op: "clone_starter_code", Category: CategoryNetwork, Err: err}
	}
	if _, err := src.CreateRemote(&config.RemoteConfig{
		Name: destinationRemote,
		URLs: []string{to.CloneURL},
	}); err != nil {
		return fmt.Errorf("push starter code: add remote: %w", err)
	}
	err = src.PushContext(ctx, &git.PushOptions{
		RemoteName: destinationRemote,
		RefSpecs:   mirrorRefSpecs,
		Auth:       p.auth(),
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return &RemoteError{Op: "push_starter_code", Category: CategoryNetwork, Err: err}
	}
	p.log.Debug("Starter code pushed", "from", from.FullName, "to", to.FullName)
	return nil
}
