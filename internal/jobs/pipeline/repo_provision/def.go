package repo_provision

import (
	types "github.com/yungbote/classroom-backend/internal/domain"
	"github.com/yungbote/classroom-backend/internal/platform/logger"
	"github.com/yungbote/classroom-backend/internal/provisioning"
)

type Pipeline struct {
	log      *logger.Logger
	resolver *provisioning.Resolver
	svc      *provisioning.Service
}

func New(baseLog *logger.Logger, resolver *provisioning.Resolver, svc *provisioning.Service) *Pipeline {
	return &Pipeline{
		log:      baseLog.With("job", types.JobTypeRepoProvision),
		resolver: resolver,
		svc:      svc,
	}
}

func (p *Pipeline) Type() string { return types.JobTypeRepoProvision }
