package handlers

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/classroom-backend/internal/data/repos"
	types "github.com/yungbote/classroom-backend/internal/domain"
	"github.com/yungbote/classroom-backend/internal/http/response"
	"github.com/yungbote/classroom-backend/internal/platform/dbctx"
	"github.com/yungbote/classroom-backend/internal/platform/github"
)

// RepositoryDetailer reads remote repository attributes for a link.
type RepositoryDetailer interface {
	RepositoryDetails(ctx context.Context, link *types.RepoLink, useCache bool) (*github.Repository, error)
}

type RepoLinkHandler struct {
	links   repos.RepoLinkRepo
	details RepositoryDetailer
}

func NewRepoLinkHandler(links repos.RepoLinkRepo, details RepositoryDetailer) *RepoLinkHandler {
	return &RepoLinkHandler{links: links, details: details}
}

// GET /api/repo-links/:id?use_cache=true|false
func (h *RepoLinkHandler) GetRepoLink(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_repo_link_id", err)
		return
	}
	useCache := true
	if raw := c.Query("use_cache"); raw != "" {
		useCache, err = strconv.ParseBool(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_use_cache", err)
			return
		}
	}

	link, err := h.links.GetByID(dbctx.Context{Ctx: c.Request.Context()}, id)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	if link == nil {
		response.RespondError(c, http.StatusNotFound, "repo_link_not_found", errors.New("repo link not found"))
		return
	}
	repo, err := h.details.RepositoryDetails(c.Request.Context(), link, useCache)
	if err != nil {
		if errors.Is(err, github.ErrNotFound) {
			response.RespondError(c, http.StatusNotFound, "repository_not_found", err)
			return
		}
		_ = c.Error(err)
		response.RespondError(c, http.StatusBadGateway, "repository_fetch_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"repo_link": link, "repository": repo})
}

// GET /api/assignments/:id/repo-links
func (h *RepoLinkHandler) ListForAssignment(c *gin.Context) {
	assignmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_assignment_id", err)
		return
	}
	links, err := h.links.ListByAssignment(dbctx.Context{Ctx: c.Request.Context()}, assignmentID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"repo_links": links})
}

var commitSHA = regexp.MustCompile(`^[0-9a-f]{40}$`)

type submissionRequest struct {
	SHA string `json:"sha"`
}

// PUT /api/repo-links/:id/submission
func (h *RepoLinkHandler) SetSubmission(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_repo_link_id", err)
		return
	}
	var req submissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	sha := strings.ToLower(strings.TrimSpace(req.SHA))
	if !commitSHA.MatchString(sha) {
		response.RespondError(c, http.StatusBadRequest, "invalid_sha", errors.New("sha must be a full 40 character commit hash"))
		return
	}

	dbc := dbctx.Context{Ctx: c.Request.Context()}
	link, err := h.links.GetByID(dbc, id)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	if link == nil {
		response.RespondError(c, http.StatusNotFound, "repo_link_not_found", errors.New("repo link not found"))
		return
	}
	if err := h.links.SetSubmissionSHA(dbc, link.ID, sha); err != nil {
		response.RespondServiceError(c, err)
		return
	}
	link.SubmissionSHA = &sha
	response.RespondOK(c, gin.H{"repo_link": link})
}
