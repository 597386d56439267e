package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/classroom-backend/internal/http/response"
	"github.com/yungbote/classroom-backend/internal/platform/dbctx"
	"github.com/yungbote/classroom-backend/internal/platform/logger"
	"github.com/yungbote/classroom-backend/internal/services"
)

type ProvisionHandler struct {
	log  *logger.Logger
	jobs services.JobService
}

func NewProvisionHandler(log *logger.Logger, jobs services.JobService) *ProvisionHandler {
	return &ProvisionHandler{log: log.With("handler", "ProvisionHandler"), jobs: jobs}
}

type provisionRequest struct {
	InvitationID string `json:"invitation_id"`
	UserID       string `json:"user_id"`
	GroupID      string `json:"group_id"`
}

// POST /api/assignments/:id/provision
func (h *ProvisionHandler) Enqueue(c *gin.Context) {
	assignmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_assignment_id", err)
		return
	}
	var req provisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	invitationID, err := uuid.Parse(strings.TrimSpace(req.InvitationID))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_invitation_id", err)
		return
	}
	userID, groupID, err := parseCollaborator(req.UserID, req.GroupID)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_collaborator", err)
		return
	}

	out, err := h.jobs.EnqueueProvision(dbctx.Context{Ctx: c.Request.Context()}, services.ProvisionTarget{
		AssignmentID: assignmentID,
		InvitationID: invitationID,
		UserID:       userID,
		GroupID:      groupID,
	})
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondAccepted(c, out)
}

// POST /api/invite-statuses/:id/retry
func (h *ProvisionHandler) Retry(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_invite_status_id", err)
		return
	}
	out, err := h.jobs.RetryProvision(dbctx.Context{Ctx: c.Request.Context()}, id)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondAccepted(c, out)
}

// GET /api/invitations/:id/progress?user_id=|group_id=
func (h *ProvisionHandler) Progress(c *gin.Context) {
	invitationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_invitation_id", err)
		return
	}
	userID, groupID, err := parseCollaborator(c.Query("user_id"), c.Query("group_id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_collaborator", err)
		return
	}
	state, err := h.jobs.ProgressState(dbctx.Context{Ctx: c.Request.Context()}, invitationID, userID, groupID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"status": state})
}

func parseCollaborator(rawUser, rawGroup string) (*uuid.UUID, *uuid.UUID, error) {
	rawUser, rawGroup = strings.TrimSpace(rawUser), strings.TrimSpace(rawGroup)
	if (rawUser == "") == (rawGroup == "") {
		return nil, nil, fmt.Errorf("exactly one of user_id and group_id is required")
	}
	raw, field := rawUser, "user_id"
	if rawGroup != "" {
		raw, field = rawGroup, "group_id"
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid %s: %w", field, err)
	}
	if field == "user_id" {
		return &id, nil, nil
	}
	return nil, &id, nil
}
