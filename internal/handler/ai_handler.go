package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/studyroomhq/studyroom-chat/internal/assistant"
	"github.com/studyroomhq/studyroom-chat/pkg/log"
	"github.com/studyroomhq/studyroom-chat/pkg/response"
)

// AIHandler exposes the study assistant over plain HTTP, outside any room.
type AIHandler struct {
	helper assistant.Assistant
}

func NewAIHandler(helper assistant.Assistant) *AIHandler {
	return &AIHandler{helper: helper}
}

type helperRequest struct {
	Message string `json:"message" binding:"required"`
}

// Helper handles POST /ai/helper.
func (h *AIHandler) Helper(c *gin.Context) {
	if h.helper == nil || !h.helper.Enabled() {
		response.Error(c, http.StatusServiceUnavailable, "ASSISTANT_DISABLED", "the study assistant is not configured")
		return
	}

	var req helperRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "a 'message' field is required")
		return
	}

	reply, err := h.helper.Complete(c.Request.Context(), req.Message)
	if err != nil {
		log.Ctx(c.Request.Context()).Warn().Err(err).Msg("assistant completion failed")
		response.Error(c, http.StatusBadGateway, "ASSISTANT_UNAVAILABLE", "the study assistant is unavailable")
		return
	}

	response.Success(c, gin.H{"reply": reply, "model": h.helper.Model()})
}

// Health handles GET /ai/health.
func (h *AIHandler) Health(c *gin.Context) {
	enabled := h.helper != nil && h.helper.Enabled()
	data := gin.H{"enabled": enabled}
	if enabled {
		data["model"] = h.helper.Model()
	}
	response.Success(c, data)
}
