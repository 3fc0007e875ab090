// Package config assembles the service configuration from an optional yaml
// file plus environment variables.
package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/studyroomhq/studyroom-chat/pkg/config"
	"github.com/studyroomhq/studyroom-chat/pkg/database"
	"github.com/studyroomhq/studyroom-chat/pkg/log"
	"github.com/studyroomhq/studyroom-chat/pkg/storage"
)

type Config struct {
	Server    ServerConfig
	Database  database.Config
	WebSocket WebSocketConfig
	History   HistoryConfig
	Cache     CacheConfig
	Auth      AuthConfig
	Storage   StorageConfig
	Assistant AssistantConfig
	Log       log.Config
}

type ServerConfig struct {
	Host string
	Port int
}

type WebSocketConfig struct {
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	SendBuffer     int           `mapstructure:"send_buffer"`
}

type HistoryConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type CacheConfig struct {
	// Driver is "memory" or "redis".
	Driver string `mapstructure:"driver"`
	Prefix string `mapstructure:"prefix"`
	Redis  RedisConfig
}

type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

type AuthConfig struct {
	// Secret signs HS256 access tokens issued by /auth/login.
	Secret   string        `mapstructure:"secret"`
	TokenTTL time.Duration `mapstructure:"token_ttl"`
	Issuer   string        `mapstructure:"issuer"`
}

type StorageConfig struct {
	// Driver is "local" or "s3".
	Driver string `mapstructure:"driver"`
	Local  storage.LocalConfig
	S3     storage.S3Config
	// URLTTL bounds presigned attachment URLs (s3 driver only).
	URLTTL time.Duration `mapstructure:"url_ttl"`
}

type AssistantConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	APIKey    string        `mapstructure:"api_key"`
	Model     string        `mapstructure:"model"`
	MaxTokens int           `mapstructure:"max_tokens"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// Load reads configuration with defaults suited to a single-box deployment:
// sqlite database, in-memory cache, local file storage.
func Load() (*Config, error) {
	v, err := config.Load("./config", "config")
	if err != nil {
		return nil, err
	}

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "studyroom")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.file_path", "./data/studyroom.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", 60)
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 8192)
	v.SetDefault("websocket.send_buffer", 256)
	v.SetDefault("history.cache_ttl", "30s")
	v.SetDefault("cache.driver", "memory")
	v.SetDefault("cache.prefix", "studyroom")
	v.SetDefault("cache.redis.address", "localhost:6379")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.token_ttl", "24h")
	v.SetDefault("auth.issuer", "studyroom-chat")
	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.local.base_path", "./data/uploads")
	v.SetDefault("storage.local.url_prefix", "/files")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.url_ttl", "24h")
	v.SetDefault("assistant.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("assistant.api_key", "")
	v.SetDefault("assistant.model", "openai/gpt-oss-20b:free")
	v.SetDefault("assistant.max_tokens", 500)
	v.SetDefault("assistant.timeout", "15s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.BindEnv("server.port", "PORT")
	v.BindEnv("database.driver", "DB_DRIVER")
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.port", "DB_PORT")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("database.dbname", "DB_NAME")
	v.BindEnv("database.file_path", "DB_FILE_PATH")
	v.BindEnv("cache.driver", "CACHE_DRIVER")
	v.BindEnv("cache.redis.address", "REDIS_ADDRESS")
	v.BindEnv("cache.redis.password", "REDIS_PASSWORD")
	v.BindEnv("auth.secret", "AUTH_SECRET")
	v.BindEnv("storage.driver", "STORAGE_DRIVER")
	v.BindEnv("storage.s3.endpoint", "S3_ENDPOINT")
	v.BindEnv("storage.s3.bucket", "S3_BUCKET")
	v.BindEnv("storage.s3.access_key_id", "S3_ACCESS_KEY_ID")
	v.BindEnv("storage.s3.secret_access_key", "S3_SECRET_ACCESS_KEY")
	v.BindEnv("assistant.api_key", "OPENROUTER_API_KEY")
	v.BindEnv("assistant.model", "ASSISTANT_MODEL")
	v.BindEnv("log.level", "LOG_LEVEL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.WebSocket.PingInterval = parseDuration(v, "websocket.ping_interval", 30*time.Second)
	cfg.WebSocket.PongWait = parseDuration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = parseDuration(v, "websocket.write_wait", 10*time.Second)
	cfg.History.CacheTTL = parseDuration(v, "history.cache_ttl", 30*time.Second)
	cfg.Auth.TokenTTL = parseDuration(v, "auth.token_ttl", 24*time.Hour)
	cfg.Storage.URLTTL = parseDuration(v, "storage.url_ttl", 24*time.Hour)
	cfg.Assistant.Timeout = parseDuration(v, "assistant.timeout", 15*time.Second)

	return &cfg, nil
}

func parseDuration(v *viper.Viper, key string, defaultVal time.Duration) time.Duration {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		return defaultVal
	}
	return d
}
