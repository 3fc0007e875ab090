package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/studyroomhq/studyroom-chat/internal/domain"
	"github.com/studyroomhq/studyroom-chat/internal/service"
	"github.com/studyroomhq/studyroom-chat/pkg/log"
	"github.com/studyroomhq/studyroom-chat/pkg/response"
)

// HTTPHandler serves the REST surface: history reads and liveness checks.
type HTTPHandler struct {
	history service.HistoryService
}

func NewHTTPHandler(history service.HistoryService) *HTTPHandler {
	return &HTTPHandler{history: history}
}

// Messages handles GET /api/v1/rooms/:room_id/messages, returning the
// room's non-deleted history oldest first.
func (h *HTTPHandler) Messages(c *gin.Context) {
	room := c.Param("room_id")

	messages, err := h.history.GetHistory(c.Request.Context(), room)
	if err != nil {
		log.Ctx(c.Request.Context()).Error().Err(err).Str(log.FieldRoom, room).Msg("history query failed")
		response.InternalError(c, "failed to load room history")
		return
	}

	frames := make([]domain.ChatFrame, len(messages))
	for i := range messages {
		frames[i] = domain.ToChatFrame(messages[i])
	}

	response.Success(c, gin.H{
		"room":     room,
		"messages": frames,
		"count":    len(frames),
	})
}

// Health handles GET /health.
func (h *HTTPHandler) Health(c *gin.Context) {
	response.Success(c, gin.H{"status": "ok"})
}

// Root handles GET /, a small banner for humans poking at the port.
func (h *HTTPHandler) Root(c *gin.Context) {
	response.Success(c, gin.H{
		"service": "studyroom-chat",
		"message": "connect to /chat/ws/:room_id to join a room",
	})
}
