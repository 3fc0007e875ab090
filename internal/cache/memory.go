package cache

import (
	"context"
	"sync"
	"time"

	"github.com/studyroomhq/studyroom-chat/internal/domain"
)

type memoryEntry struct {
	messages  []domain.Message
	expiresAt time.Time
}

// MemoryMessageCache is a process-local MessageCache.
type MemoryMessageCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

// NewMemoryMessageCache creates an empty in-memory cache.
func NewMemoryMessageCache() *MemoryMessageCache {
	return &MemoryMessageCache{entries: make(map[string]memoryEntry)}
}

func (c *MemoryMessageCache) Get(ctx context.Context, room string) ([]domain.Message, error) {
	c.mu.RLock()
	entry, ok := c.entries[room]
	c.mu.RUnlock()

	if !ok || time.Now().After(entry.expiresAt) {
		return nil, ErrCacheMiss
	}

	// Copy so callers cannot mutate the cached slice.
	out := make([]domain.Message, len(entry.messages))
	copy(out, entry.messages)
	return out, nil
}

func (c *MemoryMessageCache) Set(ctx context.Context, room string, messages []domain.Message, ttl time.Duration) error {
	stored := make([]domain.Message, len(messages))
	copy(stored, messages)

	c.mu.Lock()
	c.entries[room] = memoryEntry{
		messages:  stored,
		expiresAt: time.Now().Add(ttl),
	}
	c.mu.Unlock()
	return nil
}

func (c *MemoryMessageCache) Invalidate(ctx context.Context, room string) error {
	c.mu.Lock()
	delete(c.entries, room)
	c.mu.Unlock()
	return nil
}

func (c *MemoryMessageCache) Close() error {
	return nil
}
