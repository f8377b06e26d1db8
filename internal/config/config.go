// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/hitoshi/pumpbook/internal/security"
)

// ストレージドライバー
const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"

	// SessionStoreRedis はセッションのみをRedisに保存することを示す。
	SessionStoreRedis = "redis"
)

var (
	// ErrParsingConfig は環境変数の解析に失敗したことを示す。
	ErrParsingConfig = errors.New("failed to parse config")
	// ErrInvalidConfig は設定値の組み合わせが不正であることを示す。
	ErrInvalidConfig = errors.New("invalid config")
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Storage
	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"postgres"`
	SessionStore  string `env:"SESSION_STORE"`

	// Postgres
	DatabaseURL string `env:"DATABASE_URL"`

	// MongoDB
	MongoURL            string        `env:"MONGO_URL"`
	MongoDatabase       string        `env:"DB_NAME"`
	MongoConnectTimeout time.Duration `env:"MONGO_CONNECT_TIMEOUT" envDefault:"10s"`
	MongoMaxPoolSize    uint64        `env:"MONGO_MAX_POOL_SIZE" envDefault:"100"`
	MongoRetryAttempts  int           `env:"MONGO_RETRY_ATTEMPTS" envDefault:"3"`
	MongoRetryInterval  time.Duration `env:"MONGO_RETRY_INTERVAL" envDefault:"2s"`

	// Redis
	RedisURL string `env:"REDIS_URL"`

	// Identity provider
	ProviderSessionURL   string        `env:"PROVIDER_SESSION_URL" envDefault:"https://demobackend.emergentagent.com/auth/v1/env/oauth/session-data"`
	ProviderTimeout      time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"10s"`
	ProviderAllowPrivate bool          `env:"PROVIDER_ALLOW_PRIVATE" envDefault:"false"`

	// Session
	SessionTTL   time.Duration `env:"SESSION_TTL" envDefault:"168h"`
	CookieDomain string        `env:"COOKIE_DOMAIN"`

	// CORS
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`

	// Server
	ServerPort string `env:"SERVER_PORT" envDefault:"8001"`
	TrustProxy bool   `env:"TRUST_PROXY" envDefault:"false"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Rate Limit (req/min)
	RateLimitGeneral int `env:"RATE_LIMIT_GENERAL" envDefault:"120"`
	RateLimitLogin   int `env:"RATE_LIMIT_LOGIN" envDefault:"10"`
}

// Load はカレントディレクトリの.envを読み込んだ後、環境変数からConfigを読み込む。
// .envが存在しない場合は無視する。既に設定済みの環境変数は.envで上書きしない。
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.Join(ErrParsingConfig, err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.StorageDriver = strings.ToLower(strings.TrimSpace(c.StorageDriver))
	c.SessionStore = strings.ToLower(strings.TrimSpace(c.SessionStore))

	origins := c.CORSOrigins[:0]
	for _, o := range c.CORSOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	c.CORSOrigins = origins
}

// Validate はドライバーごとの必須項目と値の範囲を検証する。
func (c *Config) Validate() error {
	var problems []string

	switch c.StorageDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			problems = append(problems, "DATABASE_URL is required for postgres")
		}
	case DriverMongo:
		if c.MongoURL == "" {
			problems = append(problems, "MONGO_URL is required for mongo")
		}
		if c.MongoDatabase == "" {
			problems = append(problems, "DB_NAME is required for mongo")
		}
	case DriverMemory:
	default:
		problems = append(problems, fmt.Sprintf("unsupported STORAGE_DRIVER %q", c.StorageDriver))
	}

	switch c.SessionStore {
	case "", c.StorageDriver:
	case SessionStoreRedis:
		if c.RedisURL == "" {
			problems = append(problems, "REDIS_URL is required when SESSION_STORE=redis")
		}
	default:
		problems = append(problems, fmt.Sprintf("unsupported SESSION_STORE %q", c.SessionStore))
	}

	if !c.ProviderAllowPrivate {
		if err := security.ValidateURL(c.ProviderSessionURL); err != nil {
			problems = append(problems, fmt.Sprintf("PROVIDER_SESSION_URL: %v", err))
		}
	}
	if c.ProviderTimeout <= 0 {
		problems = append(problems, "PROVIDER_TIMEOUT must be positive")
	}
	if c.SessionTTL <= 0 {
		problems = append(problems, "SESSION_TTL must be positive")
	}
	if c.RateLimitGeneral <= 0 || c.RateLimitLogin <= 0 {
		problems = append(problems, "RATE_LIMIT_GENERAL and RATE_LIMIT_LOGIN must be positive")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		problems = append(problems, fmt.Sprintf("LOG_LEVEL: %v", err))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// UsesRedisSessions はセッションをRedisに保存する設定かを返す。
func (c *Config) UsesRedisSessions() bool {
	return c.SessionStore == SessionStoreRedis
}

// SlogLevel はLOG_LEVELに対応するslogのレベルを返す。不正な値の場合はInfo。
func (c *Config) SlogLevel() slog.Level {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, err
	}
	return level, nil
}
