// Package service implements the room session protocol: registration,
// history replay, frame handling, moderation, and broadcast.
package service

import (
	"context"

	"github.com/studyroomhq/studyroom-chat/internal/domain"
	"github.com/studyroomhq/studyroom-chat/internal/registry"
)

// ChatService is the per-connection protocol handler. The transport layer
// calls HandleConnect once when a connection enters the room, HandleFrame
// for every inbound frame in order, and HandleDisconnect exactly once when
// the connection closes.
type ChatService interface {
	HandleConnect(ctx context.Context, conn registry.Conn, room, username string)
	HandleFrame(ctx context.Context, conn registry.Conn, room, username string, raw []byte)
	HandleDisconnect(ctx context.Context, conn registry.Conn, room, username string)
}

// HistoryService serves the ordered non-deleted history of a room, caching
// results until the room changes.
type HistoryService interface {
	GetHistory(ctx context.Context, room string) ([]domain.Message, error)
}
