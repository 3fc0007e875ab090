// Package domain holds the chat data model and the wire frame types.
package domain

import "time"

// Anonymous is the sentinel username for connections that never identified
// themselves. Anonymous connections are never added to presence and are not
// eligible for admin promotion or muting.
const Anonymous = "Anonymous"

// AssistantUsername is the author name the AI study assistant replies under.
const AssistantUsername = "StudyBot"

// User is a registered account. The chat core only needs the username; the
// password hash belongs to the auth endpoints.
type User struct {
	ID           uint
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Room is a named channel grouping connections, presence, and messages.
// AdminUsername is empty until the first non-anonymous user joins.
type Room struct {
	ID            uint
	Name          string
	AdminUsername string
	CreatedAt     time.Time
}

// Attachment describes an optional file carried by a message. URL points
// into the blob store; the chat core treats it as opaque.
type Attachment struct {
	URL      string
	Name     string
	MimeType string
	Size     int64
}

// Message is one chat message. Soft-deleted messages keep their row but are
// excluded from history queries.
type Message struct {
	ID         uint
	Room       string
	Username   string
	Content    string
	Attachment Attachment
	Mentions   []string
	Deleted    bool
	DeletedBy  string
	CreatedAt  time.Time
}

// MuteRecord marks a username as muted in a room. Existence of a record for
// (room, username) is the sole mute predicate.
type MuteRecord struct {
	ID        uint
	Room      string
	Username  string
	MutedBy   string
	CreatedAt time.Time
}

// HasAttachment reports whether the message carries a file.
func (m *Message) HasAttachment() bool {
	return m.Attachment.URL != ""
}
