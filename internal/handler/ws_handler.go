package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/studyroomhq/studyroom-chat/internal/auth"
	"github.com/studyroomhq/studyroom-chat/internal/config"
	"github.com/studyroomhq/studyroom-chat/internal/domain"
	"github.com/studyroomhq/studyroom-chat/internal/hub"
	"github.com/studyroomhq/studyroom-chat/internal/service"
	"github.com/studyroomhq/studyroom-chat/pkg/log"
)

// WSHandler upgrades room connections and runs their read/write pumps.
type WSHandler struct {
	chat     service.ChatService
	auth     *auth.Service
	cfg      config.WebSocketConfig
	upgrader websocket.Upgrader
}

func NewWSHandler(chat service.ChatService, authSvc *auth.Service, cfg config.WebSocketConfig) *WSHandler {
	return &WSHandler{
		chat: chat,
		auth: authSvc,
		cfg:  cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Serve handles GET /chat/ws/:room_id. The username comes from the query
// string and defaults to Anonymous; a valid token overrides it with the
// authenticated identity.
func (h *WSHandler) Serve(c *gin.Context) {
	room := c.Param("room_id")
	username := c.DefaultQuery("username", domain.Anonymous)
	if username == "" {
		username = domain.Anonymous
	}
	if token := c.Query("token"); token != "" {
		if name := h.auth.UsernameFromToken(token); name != "" {
			username = name
		}
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Ctx(c.Request.Context()).Warn().Err(err).Str(log.FieldRoom, room).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(uuid.NewString(), conn, room, username, h.cfg)

	// The gin request context ends with the handshake response; the session
	// gets its own context carrying a connection-scoped logger.
	ctx := log.WithLogger(context.Background(), log.L().With().
		Str(log.FieldRoom, room).
		Str(log.FieldUsername, username).
		Str(log.FieldConnID, client.ID()).
		Logger())

	h.chat.HandleConnect(ctx, client, room, username)

	go client.WritePump()
	client.ReadPump(
		func(raw []byte) { h.chat.HandleFrame(ctx, client, room, username, raw) },
		func() { h.chat.HandleDisconnect(ctx, client, room, username) },
	)
}
