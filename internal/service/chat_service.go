package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/studyroomhq/studyroom-chat/internal/assistant"
	"github.com/studyroomhq/studyroom-chat/internal/audit"
	"github.com/studyroomhq/studyroom-chat/internal/cache"
	"github.com/studyroomhq/studyroom-chat/internal/domain"
	"github.com/studyroomhq/studyroom-chat/internal/moderation"
	"github.com/studyroomhq/studyroom-chat/internal/registry"
	"github.com/studyroomhq/studyroom-chat/internal/repository"
	"github.com/studyroomhq/studyroom-chat/pkg/log"
)

type chatService struct {
	registry  *registry.Registry
	mod       *moderation.State
	repo      repository.Repository
	history   HistoryService
	msgCache  cache.MessageCache
	assistant assistant.Assistant
}

// NewChatService wires the session protocol handler. The registry and
// moderation state are the only shared mutable structures; repository and
// assistant calls are blocking I/O made outside their locks.
func NewChatService(
	reg *registry.Registry,
	mod *moderation.State,
	repo repository.Repository,
	history HistoryService,
	msgCache cache.MessageCache,
	helper assistant.Assistant,
) ChatService {
	return &chatService{
		registry:  reg,
		mod:       mod,
		repo:      repo,
		history:   history,
		msgCache:  msgCache,
		assistant: helper,
	}
}

// HandleConnect moves a connection into ACTIVE: register, promote the first
// non-anonymous user to admin, replay history privately, then announce the
// join. Join broadcasts are suppressed entirely for Anonymous.
func (s *chatService) HandleConnect(ctx context.Context, conn registry.Conn, room, username string) {
	l := log.Ctx(ctx)

	// Durable-store writes happen before touching shared state; a failure
	// here never blocks the in-memory session (the broadcast path still
	// works, history is just best-effort).
	if _, err := s.repo.FindOrCreateRoom(ctx, room); err != nil {
		l.Error().Err(err).Str(log.FieldRoom, room).Msg("failed to ensure room")
	}
	if username != domain.Anonymous {
		if _, err := s.repo.FindOrCreateUser(ctx, username); err != nil {
			l.Error().Err(err).Str(log.FieldUsername, username).Msg("failed to ensure user")
		}
	}
	s.seedModeration(ctx, room)

	res := s.registry.Register(conn, room, username)

	if s.mod.PromoteIfVacant(room, username) {
		if err := s.repo.SetAdmin(ctx, room, username); err != nil {
			l.Error().Err(err).Str(log.FieldRoom, room).Msg("failed to persist admin promotion")
		}
		s.broadcast(room, domain.SystemFrame{
			Type:      domain.FrameSystem,
			Message:   fmt.Sprintf("%s is now the admin of room %s", username, room),
			Timestamp: time.Now().UTC(),
		})
	}

	s.replayHistory(ctx, conn, room)

	if s.mod.IsAdmin(room, username) {
		s.registry.Send(conn, domain.AdminStatusFrame{Type: domain.FrameAdminStatus, IsAdmin: true})
	}

	// Presence snapshot always goes to the new connection; the room-wide
	// announcements only fire when a non-anonymous username came online.
	s.registry.Send(conn, domain.OnlineUsersFrame{Type: domain.FrameOnlineUsers, Users: res.Online})

	if username != domain.Anonymous && res.NewPresence {
		s.broadcast(room, domain.PresenceFrame{Type: domain.FrameUserJoined, Username: username})
		s.broadcast(room, domain.OnlineUsersFrame{Type: domain.FrameOnlineUsers, Users: res.Online})
		s.broadcast(room, domain.SystemFrame{
			Type:      domain.FrameSystem,
			Message:   fmt.Sprintf("📢 %s joined room %s", username, room),
			Timestamp: time.Now().UTC(),
		})
	}

	audit.Log(ctx, audit.ActionJoin, room, username, "user connected")
}

// HandleFrame classifies one inbound frame. Input that fails to parse is a
// plain-text chat from the connection's handshake username, not an error.
// The username claimed inside a frame is authoritative for that frame.
func (s *chatService) HandleFrame(ctx context.Context, conn registry.Conn, room, username string, raw []byte) {
	var frame domain.Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		frame = domain.Frame{Type: domain.FrameChat, Message: string(raw)}
	}

	sender := frame.Username
	if sender == "" {
		sender = username
	}

	switch frame.Type {
	case domain.FrameTyping, domain.FrameStopTyping:
		s.broadcast(room, domain.TypingFrame{Type: frame.Type, Username: sender})

	case domain.FrameMuteUser:
		s.handleMute(ctx, room, sender, frame.TargetUsername)

	case domain.FrameUnmuteUser:
		s.handleUnmute(ctx, room, sender, frame.TargetUsername)

	case domain.FrameDeleteMsg:
		s.handleDelete(ctx, room, sender, frame.MessageID)

	default:
		s.handleChat(ctx, conn, room, sender, frame)
	}
}

// HandleDisconnect moves the connection to CLOSED and announces the
// departure when the username's last connection went away.
func (s *chatService) HandleDisconnect(ctx context.Context, conn registry.Conn, room, username string) {
	res := s.registry.Unregister(conn, room, username)

	if username != domain.Anonymous && res.LeftPresence {
		s.broadcast(room, domain.PresenceFrame{Type: domain.FrameUserLeft, Username: username})
		s.broadcast(room, domain.OnlineUsersFrame{Type: domain.FrameOnlineUsers, Users: res.Online})
		s.broadcast(room, domain.SystemFrame{
			Type:      domain.FrameSystem,
			Message:   fmt.Sprintf("❌ %s left room %s", username, room),
			Timestamp: time.Now().UTC(),
		})
	}

	audit.Log(ctx, audit.ActionLeave, room, username, "user disconnected")
}

// broadcast fans payload out and announces any users whose last connection
// was pruned mid-delivery, keeping the survivors' presence view consistent.
// The loop terminates because the live connection set only shrinks.
func (s *chatService) broadcast(room string, payload interface{}) {
	departed := s.registry.Broadcast(room, payload).Departed
	for len(departed) > 0 {
		var next []string
		for _, username := range departed {
			r := s.registry.Broadcast(room, domain.PresenceFrame{Type: domain.FrameUserLeft, Username: username})
			next = append(next, r.Departed...)
			r = s.registry.Broadcast(room, domain.OnlineUsersFrame{Type: domain.FrameOnlineUsers, Users: r.Online})
			next = append(next, r.Departed...)
			r = s.registry.Broadcast(room, domain.SystemFrame{
				Type:      domain.FrameSystem,
				Message:   fmt.Sprintf("❌ %s left room %s", username, room),
				Timestamp: time.Now().UTC(),
			})
			next = append(next, r.Departed...)
		}
		departed = next
	}
}

func (s *chatService) seedModeration(ctx context.Context, room string) {
	if s.mod.Seeded(room) {
		return
	}
	l := log.Ctx(ctx)

	admin, err := s.repo.GetAdmin(ctx, room)
	if err != nil {
		l.Error().Err(err).Str(log.FieldRoom, room).Msg("failed to load room admin")
	}
	muted, err := s.repo.ListMutes(ctx, room)
	if err != nil {
		l.Error().Err(err).Str(log.FieldRoom, room).Msg("failed to load mute records")
	}
	s.mod.Seed(room, admin, muted)
}

func (s *chatService) replayHistory(ctx context.Context, conn registry.Conn, room string) {
	messages, err := s.history.GetHistory(ctx, room)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str(log.FieldRoom, room).Msg("history replay failed")
		return
	}

	frames := make([]domain.ChatFrame, len(messages))
	for i := range messages {
		frames[i] = domain.ToChatFrame(messages[i])
	}
	s.registry.Send(conn, domain.HistoryFrame{Type: domain.FrameHistory, Messages: frames})
}

// handleMute applies an admin mute. Non-admin attempts are dropped silently;
// muting an already-muted target reports success without a duplicate record.
func (s *chatService) handleMute(ctx context.Context, room, sender, target string) {
	if target == "" || target == domain.Anonymous {
		return
	}

	changed, err := s.mod.Mute(room, sender, target)
	if err != nil {
		// Unauthorized: drop without a client-visible error so the admin
		// identity boundary does not leak.
		log.Ctx(ctx).Debug().Str(log.FieldRoom, room).Str(log.FieldUsername, sender).Msg("unauthorized mute attempt dropped")
		return
	}

	if changed {
		if err := s.repo.AddMute(ctx, room, target, sender); err != nil {
			log.Ctx(ctx).Error().Err(err).Str(log.FieldRoom, room).Msg("failed to persist mute")
		}
	}

	s.broadcast(room, domain.ModerationFrame{Type: domain.FrameUserMuted, Username: target, By: sender})
	audit.LogWithTarget(ctx, audit.ActionMute, room, sender, target, "user muted")
}

// handleUnmute clears a mute. Unmuting a never-muted target is a silent
// no-op, matching the NotFound policy.
func (s *chatService) handleUnmute(ctx context.Context, room, sender, target string) {
	changed, err := s.mod.Unmute(room, sender, target)
	if err != nil {
		log.Ctx(ctx).Debug().Str(log.FieldRoom, room).Str(log.FieldUsername, sender).Msg("unauthorized unmute attempt dropped")
		return
	}
	if !changed {
		return
	}

	if err := s.repo.RemoveMute(ctx, room, target); err != nil {
		log.Ctx(ctx).Error().Err(err).Str(log.FieldRoom, room).Msg("failed to remove mute record")
	}

	s.broadcast(room, domain.ModerationFrame{Type: domain.FrameUserUnmuted, Username: target, By: sender})
	audit.LogWithTarget(ctx, audit.ActionUnmute, room, sender, target, "user unmuted")
}

// handleDelete soft-deletes a message. A missing message is a silent no-op;
// any other persistence failure still broadcasts the deletion so connected
// clients converge.
func (s *chatService) handleDelete(ctx context.Context, room, sender string, messageID uint) {
	if !s.mod.IsAdmin(room, sender) {
		log.Ctx(ctx).Debug().Str(log.FieldRoom, room).Str(log.FieldUsername, sender).Msg("unauthorized delete attempt dropped")
		return
	}
	if messageID == 0 {
		return
	}

	err := s.repo.SoftDeleteMessage(ctx, messageID, sender)
	if errors.Is(err, repository.ErrMessageNotFound) {
		return
	}
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Uint(log.FieldMessageID, messageID).Msg("failed to soft-delete message")
	}

	if err := s.msgCache.Invalidate(ctx, room); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str(log.FieldRoom, room).Msg("history cache invalidation failed")
	}

	s.broadcast(room, domain.MessageDeletedFrame{
		Type:      domain.FrameMsgDeleted,
		MessageID: messageID,
		DeletedBy: sender,
	})
	audit.LogWithTarget(ctx, audit.ActionDeleteMessage, room, sender, fmt.Sprintf("message:%d", messageID), "message deleted")
}

// handleChat persists and broadcasts a chat message. A muted sender gets
// exactly one private error frame and nothing else. Persistence failure
// still broadcasts, without a durable id.
func (s *chatService) handleChat(ctx context.Context, conn registry.Conn, room, sender string, frame domain.Frame) {
	if s.mod.IsMuted(room, sender) {
		s.registry.Send(conn, domain.NewErrorFrame("You are muted in this room and cannot send messages"))
		return
	}

	msg := domain.Message{
		Room:     room,
		Username: sender,
		Content:  frame.Message,
		Attachment: domain.Attachment{
			URL:      frame.FileURL,
			Name:     frame.FileName,
			MimeType: frame.FileType,
			Size:     frame.FileSize,
		},
		Mentions:  domain.ExtractMentions(frame.Message),
		CreatedAt: time.Now().UTC(),
	}

	if _, err := s.repo.SaveMessage(ctx, &msg); err != nil {
		// Availability over durability: the room still sees the message,
		// just without an assigned id.
		log.Ctx(ctx).Error().Err(err).Str(log.FieldRoom, room).Msg("failed to persist chat message")
		msg.ID = 0
	}

	if err := s.msgCache.Invalidate(ctx, room); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str(log.FieldRoom, room).Msg("history cache invalidation failed")
	}

	s.broadcast(room, domain.ToChatFrame(msg))
	audit.Log(ctx, audit.ActionMessage, room, sender, "chat message")

	if prompt, ok := domain.IsAssistantPrompt(frame.Message); ok {
		s.answerAssistant(ctx, conn, room, prompt)
	}
}

// answerAssistant invokes the study assistant synchronously and posts its
// reply into the room as a regular chat message.
func (s *chatService) answerAssistant(ctx context.Context, conn registry.Conn, room, prompt string) {
	if s.assistant == nil || !s.assistant.Enabled() {
		return
	}

	reply, err := s.assistant.Complete(ctx, prompt)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str(log.FieldRoom, room).Msg("assistant completion failed")
		s.registry.Send(conn, domain.NewErrorFrame("The study assistant is unavailable right now"))
		return
	}

	botMsg := domain.Message{
		Room:      room,
		Username:  domain.AssistantUsername,
		Content:   reply,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := s.repo.SaveMessage(ctx, &botMsg); err != nil {
		log.Ctx(ctx).Error().Err(err).Str(log.FieldRoom, room).Msg("failed to persist assistant reply")
		botMsg.ID = 0
	}

	if err := s.msgCache.Invalidate(ctx, room); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str(log.FieldRoom, room).Msg("history cache invalidation failed")
	}

	s.broadcast(room, domain.ToChatFrame(botMsg))
}
