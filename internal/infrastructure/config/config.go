package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port      string `env:"PORT,      default=8080"`
	Env       string `env:"ENV,       default=development"`
	JWTSecret string `env:"JWT_SECRET"`
	LogLevel  string `env:"LOG_LEVEL, default=info"`

	TokenTTL time.Duration `env:"TOKEN_TTL, default=24h"`

	Mongo  MongoConfig
	Redis  RedisConfig
	Notify NotifyConfig
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=taskstream"`
}

type RedisConfig struct {
	Addr string `env:"REDIS_ADDR, default=localhost:6379"`
	DB   int    `env:"REDIS_DB,   default=0"`
}

type NotifyConfig struct {
	Channel           string        `env:"NOTIFY_CHANNEL,   default=taskstream:notifications"`
	HeartbeatInterval time.Duration `env:"SSE_HEARTBEAT,    default=30s"`
}

// ClientConfig holds everything the client-side components need.
type ClientConfig struct {
	APIBaseURL     string        `env:"API_BASE_URL,       default=http://localhost:8080"`
	StreamURL      string        `env:"SSE_URL,            default=http://localhost:8080/notifications/stream"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT,    default=10s"`
	CheckInterval  time.Duration `env:"TOKEN_CHECK_INTERVAL, default=30s"`
	RefreshWithin  time.Duration `env:"TOKEN_REFRESH_THRESHOLD, default=5m"`
	ReconnectDelay time.Duration `env:"SSE_RECONNECT_DELAY, default=5s"`
	SessionFile    string        `env:"SESSION_FILE,       default=session.json"`
	LogLevel       string        `env:"LOG_LEVEL,          default=info"`
}

// Load reads server configuration from environment variables using go-envconfig.
func Load() *Config {
	var cfg Config
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return &cfg
}

// LoadClient reads client configuration from environment variables.
func LoadClient() *ClientConfig {
	var cfg ClientConfig
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return &cfg
}
