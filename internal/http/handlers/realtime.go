package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/classroom-backend/internal/http/response"
	"github.com/yungbote/classroom-backend/internal/platform/logger"
	"github.com/yungbote/classroom-backend/internal/realtime"
)

const provisionChannelPrefix = "provision:"

type RealtimeHandler struct {
	log *logger.Logger
	hub *realtime.SSEHub
}

func NewRealtimeHandler(log *logger.Logger, hub *realtime.SSEHub) *RealtimeHandler {
	return &RealtimeHandler{log: log.With("handler", "RealtimeHandler"), hub: hub}
}

// GET /api/sse/stream?channel=provision:<invite_status_id>
//
// Streams live progress for one provisioning attempt until the client
// disconnects.
func (h *RealtimeHandler) SSEStream(c *gin.Context) {
	channel := strings.TrimSpace(c.Query("channel"))
	if !strings.HasPrefix(channel, provisionChannelPrefix) || len(channel) == len(provisionChannelPrefix) {
		response.RespondError(c, http.StatusBadRequest, "invalid_channel", errors.New("channel must be a provisioning attempt key"))
		return
	}

	client := h.hub.NewSSEClient()
	h.hub.AddChannel(client, channel)
	h.log.Debug("SSE stream open", "client_id", client.ID, "channel", channel)

	h.hub.ServeHTTP(c.Writer, c.Request, client)

	h.hub.CloseClient(client)
	h.log.Debug("SSE stream closed", "client_id", client.ID, "channel", channel)
}
