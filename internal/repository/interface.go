// Package repository persists users, rooms, messages, and mute records. The
// chat core consumes this interface only; GORM is an implementation detail.
package repository

import (
	"context"
	"errors"

	"github.com/studyroomhq/studyroom-chat/internal/domain"
)

var (
	ErrMessageNotFound = errors.New("message not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrUsernameTaken   = errors.New("username already exists")
)

// Repository is the durable store behind the room session core.
type Repository interface {
	// Users
	FindOrCreateUser(ctx context.Context, username string) (*domain.User, error)
	CreateUser(ctx context.Context, username, passwordHash string) (*domain.User, error)
	GetUser(ctx context.Context, username string) (*domain.User, error)

	// Rooms
	FindOrCreateRoom(ctx context.Context, name string) (*domain.Room, error)
	GetAdmin(ctx context.Context, room string) (string, error)
	SetAdmin(ctx context.Context, room, username string) error

	// Messages
	SaveMessage(ctx context.Context, msg *domain.Message) (uint, error)
	SoftDeleteMessage(ctx context.Context, id uint, deletedBy string) error
	// ListMessages returns non-deleted messages for the room in ascending
	// creation-time order.
	ListMessages(ctx context.Context, room string) ([]domain.Message, error)

	// Mutes
	AddMute(ctx context.Context, room, username, mutedBy string) error
	RemoveMute(ctx context.Context, room, username string) error
	ListMutes(ctx context.Context, room string) ([]string, error)
}
