// Package cache holds the room-history cache used by the REST history
// endpoint and join-time replay. Redis for multi-worker deployments, the
// in-memory implementation for single-box installs and tests.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/studyroomhq/studyroom-chat/internal/domain"
)

// ErrCacheMiss is returned when no cached history exists for a room.
var ErrCacheMiss = errors.New("cache miss")

// MessageCache caches the ordered non-deleted history of a room. Entries are
// invalidated whenever the room gains or soft-deletes a message.
type MessageCache interface {
	Get(ctx context.Context, room string) ([]domain.Message, error)
	Set(ctx context.Context, room string, messages []domain.Message, ttl time.Duration) error
	Invalidate(ctx context.Context, room string) error
	Close() error
}
