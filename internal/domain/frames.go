package domain

import "time"

// Inbound frame types. An absent or unknown type is treated as chat;
// unparseable input degrades to a plain-text chat frame rather than being
// rejected.
const (
	FrameChat       = "chat"
	FrameTyping     = "typing"
	FrameStopTyping = "stop_typing"
	FrameMuteUser   = "mute_user"
	FrameUnmuteUser = "unmute_user"
	FrameDeleteMsg  = "delete_message"
)

// Outbound frame types.
const (
	FrameSystem      = "system"
	FrameUserJoined  = "user_joined"
	FrameUserLeft    = "user_left"
	FrameOnlineUsers = "online_users"
	FrameAdminStatus = "admin_status"
	FrameUserMuted   = "user_muted"
	FrameUserUnmuted = "user_unmuted"
	FrameMsgDeleted  = "message_deleted"
	FrameHistory     = "history"
	FrameError       = "error"
)

// Frame is the inbound client frame. Every field is optional; the username
// claimed here overrides the connection's handshake identity for the frame
// it appears in.
type Frame struct {
	Type           string `json:"type"`
	Username       string `json:"username"`
	Message        string `json:"message"`
	TargetUsername string `json:"target_username"`
	MessageID      uint   `json:"message_id"`
	FileURL        string `json:"file_url"`
	FileName       string `json:"filename"`
	FileType       string `json:"file_type"`
	FileSize       int64  `json:"file_size"`
}

// SystemFrame is a broadcast room notice.
type SystemFrame struct {
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatFrame is a broadcast chat message. ID is omitted when persistence
// failed and no durable id was assigned.
type ChatFrame struct {
	Type      string    `json:"type"`
	ID        *uint     `json:"id,omitempty"`
	Username  string    `json:"username"`
	Message   string    `json:"message"`
	FileURL   string    `json:"file_url,omitempty"`
	FileName  string    `json:"filename,omitempty"`
	FileType  string    `json:"file_type,omitempty"`
	FileSize  int64     `json:"file_size,omitempty"`
	Mentions  []string  `json:"mentions,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// TypingFrame carries a typing / stop_typing indicator. Never persisted.
type TypingFrame struct {
	Type     string `json:"type"`
	Username string `json:"username"`
}

// PresenceFrame announces a user_joined or user_left event.
type PresenceFrame struct {
	Type     string `json:"type"`
	Username string `json:"username"`
}

// OnlineUsersFrame is the presence snapshot for a room.
type OnlineUsersFrame struct {
	Type  string   `json:"type"`
	Users []string `json:"users"`
}

// AdminStatusFrame is sent privately to a connection that holds admin.
type AdminStatusFrame struct {
	Type    string `json:"type"`
	IsAdmin bool   `json:"is_admin"`
}

// ModerationFrame announces a user_muted or user_unmuted outcome.
type ModerationFrame struct {
	Type     string `json:"type"`
	Username string `json:"username"`
	By       string `json:"by"`
}

// MessageDeletedFrame announces a soft-deleted message.
type MessageDeletedFrame struct {
	Type      string `json:"type"`
	MessageID uint   `json:"message_id"`
	DeletedBy string `json:"deleted_by"`
}

// HistoryFrame replays prior messages to a joining connection, oldest first.
type HistoryFrame struct {
	Type     string      `json:"type"`
	Messages []ChatFrame `json:"messages"`
}

// ErrorFrame is a private error sent to a single connection.
type ErrorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// NewErrorFrame builds a private error frame.
func NewErrorFrame(message string) ErrorFrame {
	return ErrorFrame{Type: FrameError, Message: message}
}

// ToChatFrame renders a persisted message for broadcast or history replay.
func ToChatFrame(m Message) ChatFrame {
	f := ChatFrame{
		Type:      FrameChat,
		Username:  m.Username,
		Message:   m.Content,
		FileURL:   m.Attachment.URL,
		FileName:  m.Attachment.Name,
		FileType:  m.Attachment.MimeType,
		FileSize:  m.Attachment.Size,
		Mentions:  m.Mentions,
		Timestamp: m.CreatedAt,
	}
	if m.ID != 0 {
		id := m.ID
		f.ID = &id
	}
	return f
}
