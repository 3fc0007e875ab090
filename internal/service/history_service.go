package service

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/studyroomhq/studyroom-chat/internal/cache"
	"github.com/studyroomhq/studyroom-chat/internal/domain"
	"github.com/studyroomhq/studyroom-chat/internal/repository"
	"github.com/studyroomhq/studyroom-chat/pkg/log"
)

type historyService struct {
	repo     repository.Repository
	msgCache cache.MessageCache
	ttl      time.Duration
	sf       singleflight.Group
}

// NewHistoryService returns a read-through history service. Concurrent
// misses for the same room collapse into a single repository query.
func NewHistoryService(repo repository.Repository, msgCache cache.MessageCache, ttl time.Duration) HistoryService {
	return &historyService{repo: repo, msgCache: msgCache, ttl: ttl}
}

func (s *historyService) GetHistory(ctx context.Context, room string) ([]domain.Message, error) {
	cached, err := s.msgCache.Get(ctx, room)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		log.Ctx(ctx).Warn().Err(err).Str(log.FieldRoom, room).Msg("history cache read failed")
	}

	v, err, _ := s.sf.Do(room, func() (interface{}, error) {
		messages, err := s.repo.ListMessages(ctx, room)
		if err != nil {
			return nil, err
		}
		if err := s.msgCache.Set(ctx, room, messages, s.ttl); err != nil {
			log.Ctx(ctx).Warn().Err(err).Str(log.FieldRoom, room).Msg("history cache write failed")
		}
		return messages, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.Message), nil
}
