package domain

import (
	"time"

	"github.com/studyroomhq/studyroom-chat/pkg/database"
)

// UserModel is the GORM model for the users table.
type UserModel struct {
	ID           uint      `gorm:"primaryKey"`
	Username     string    `gorm:"type:varchar(50);uniqueIndex;not null"`
	PasswordHash string    `gorm:"type:varchar(100)"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
}

func (UserModel) TableName() string {
	return "users"
}

func (m *UserModel) ToDomain() *User {
	return &User{
		ID:           m.ID,
		Username:     m.Username,
		PasswordHash: m.PasswordHash,
		CreatedAt:    m.CreatedAt,
	}
}

// RoomModel is the GORM model for the rooms table. Rooms are created lazily
// on first connection or lookup and never deleted.
type RoomModel struct {
	ID            uint      `gorm:"primaryKey"`
	Name          string    `gorm:"type:varchar(100);uniqueIndex;not null"`
	AdminUsername string    `gorm:"type:varchar(50)"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
}

func (RoomModel) TableName() string {
	return "rooms"
}

func (m *RoomModel) ToDomain() *Room {
	return &Room{
		ID:            m.ID,
		Name:          m.Name,
		AdminUsername: m.AdminUsername,
		CreatedAt:     m.CreatedAt,
	}
}

// MessageModel is the GORM model for the messages table. Deleted rows stay
// in storage with the flag set.
type MessageModel struct {
	ID        uint   `gorm:"primaryKey"`
	RoomID    uint   `gorm:"index;not null"`
	Username  string `gorm:"type:varchar(50);not null"`
	Content   string `gorm:"type:text"`
	FileURL   string `gorm:"type:text"`
	FileName  string `gorm:"type:varchar(255)"`
	FileType  string `gorm:"type:varchar(100)"`
	FileSize  int64
	Mentions  database.StringArray `gorm:"type:text"`
	Deleted   bool                 `gorm:"index;default:false"`
	DeletedBy string               `gorm:"type:varchar(50)"`
	CreatedAt time.Time            `gorm:"autoCreateTime;index"`
}

func (MessageModel) TableName() string {
	return "messages"
}

func (m *MessageModel) ToDomain(roomName string) Message {
	return Message{
		ID:       m.ID,
		Room:     roomName,
		Username: m.Username,
		Content:  m.Content,
		Attachment: Attachment{
			URL:      m.FileURL,
			Name:     m.FileName,
			MimeType: m.FileType,
			Size:     m.FileSize,
		},
		Mentions:  []string(m.Mentions),
		Deleted:   m.Deleted,
		DeletedBy: m.DeletedBy,
		CreatedAt: m.CreatedAt,
	}
}

// MessageToModel converts a domain Message for persistence.
func MessageToModel(msg *Message, roomID uint) *MessageModel {
	return &MessageModel{
		RoomID:   roomID,
		Username: msg.Username,
		Content:  msg.Content,
		FileURL:  msg.Attachment.URL,
		FileName: msg.Attachment.Name,
		FileType: msg.Attachment.MimeType,
		FileSize: msg.Attachment.Size,
		Mentions: database.StringArray(msg.Mentions),
	}
}

// MuteModel is the GORM model for the mutes table. The (room_id, username)
// pair is unique so re-muting never duplicates records.
type MuteModel struct {
	ID        uint      `gorm:"primaryKey"`
	RoomID    uint      `gorm:"uniqueIndex:idx_room_muted;not null"`
	Username  string    `gorm:"type:varchar(50);uniqueIndex:idx_room_muted;not null"`
	MutedBy   string    `gorm:"type:varchar(50);not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (MuteModel) TableName() string {
	return "mutes"
}
