package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/studyroomhq/studyroom-chat/internal/domain"
)

// RedisConfig holds the redis connection settings for the history cache.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// RedisMessageCache implements MessageCache on redis.
type RedisMessageCache struct {
	client *redis.Client
	prefix string
}

// NewRedisMessageCache connects to redis and verifies the connection.
func NewRedisMessageCache(cfg RedisConfig, prefix string) (*RedisMessageCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisMessageCache{client: client, prefix: prefix}, nil
}

func (c *RedisMessageCache) key(room string) string {
	return fmt.Sprintf("%s:history:%s", c.prefix, room)
}

func (c *RedisMessageCache) Get(ctx context.Context, room string) ([]domain.Message, error) {
	data, err := c.client.Get(ctx, c.key(room)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var messages []domain.Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached history: %w", err)
	}
	return messages, nil
}

func (c *RedisMessageCache) Set(ctx context.Context, room string, messages []domain.Message, ttl time.Duration) error {
	data, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	if err := c.client.Set(ctx, c.key(room), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set in redis: %w", err)
	}
	return nil
}

func (c *RedisMessageCache) Invalidate(ctx context.Context, room string) error {
	if err := c.client.Del(ctx, c.key(room)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate in redis: %w", err)
	}
	return nil
}

func (c *RedisMessageCache) Close() error {
	return c.client.Close()
}
