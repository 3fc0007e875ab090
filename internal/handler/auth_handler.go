package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/studyroomhq/studyroom-chat/internal/audit"
	"github.com/studyroomhq/studyroom-chat/internal/auth"
	"github.com/studyroomhq/studyroom-chat/internal/domain"
	"github.com/studyroomhq/studyroom-chat/pkg/response"
)

// AuthHandler serves registration and login.
type AuthHandler struct {
	svc *auth.Service
}

func NewAuthHandler(svc *auth.Service) *AuthHandler {
	return &AuthHandler{svc: svc}
}

type credentialsRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "username and password are required")
		return
	}
	if req.Username == domain.Anonymous || req.Username == domain.AssistantUsername {
		response.BadRequest(c, "username is reserved")
		return
	}

	if err := h.svc.Register(c.Request.Context(), req.Username, req.Password); err != nil {
		if errors.Is(err, auth.ErrUsernameTaken) {
			response.Conflict(c, "username is already taken")
			return
		}
		response.InternalError(c, "registration failed")
		return
	}

	audit.Log(c.Request.Context(), audit.ActionRegister, "", req.Username, "user registered")
	response.Created(c, gin.H{"username": req.Username})
}

// Login handles POST /auth/login and returns a bearer token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "username and password are required")
		return
	}

	token, err := h.svc.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			response.Unauthorized(c, "invalid username or password")
			return
		}
		response.InternalError(c, "login failed")
		return
	}

	audit.Log(c.Request.Context(), audit.ActionLogin, "", req.Username, "user logged in")
	response.Success(c, gin.H{"token": token, "username": req.Username})
}
