package config

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Vault        VaultConfig
	Gateway      GatewayConfig
	OTP          OTPConfig
	FeatureFlags FeatureFlagsConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if _, err := cfg.Vault.KeyBytes(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"VENDORA_APP_ENV" required:"true"`
	Port         string `envconfig:"VENDORA_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"VENDORA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"VENDORA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"VENDORA_DB_DSN" required:"true"`
	Driver string `envconfig:"VENDORA_DB_DRIVER" default:"postgres"`

	MaxOpenConns    int           `envconfig:"VENDORA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"VENDORA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"VENDORA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"VENDORA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"VENDORA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"VENDORA_REDIS_ADDR"`
	Password     string        `envconfig:"VENDORA_REDIS_PASSWORD"`
	DB           int           `envconfig:"VENDORA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"VENDORA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"VENDORA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"VENDORA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"VENDORA_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"VENDORA_REDIS_WRITE_TIMEOUT" default:"3s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"VENDORA_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"VENDORA_JWT_ISSUER" default:"vendora"`
	ExpirationMinutes int    `envconfig:"VENDORA_JWT_EXPIRATION_MINUTES" default:"60"`
}

// VaultConfig carries the process-wide symmetric key protecting vendor
// gateway credentials at rest. The key is never rotated at runtime.
type VaultConfig struct {
	Key string `envconfig:"VENDORA_VAULT_KEY" required:"true"`
}

// KeyBytes decodes and validates the configured vault key.
func (v VaultConfig) KeyBytes() ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(v.Key))
	if err != nil {
		return nil, fmt.Errorf("vault key must be base64: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("vault key must decode to 32 bytes, got %d", len(raw))
	}
	return raw, nil
}

// GatewayConfig holds the platform-owned gateway credentials plus the
// platform-wide webhook signing secret (distinct from any vendor pair).
type GatewayConfig struct {
	BaseURL       string        `envconfig:"VENDORA_GATEWAY_BASE_URL" required:"true"`
	KeyID         string        `envconfig:"VENDORA_GATEWAY_KEY_ID"`
	KeySecret     string        `envconfig:"VENDORA_GATEWAY_KEY_SECRET"`
	WebhookSecret string        `envconfig:"VENDORA_GATEWAY_WEBHOOK_SECRET" required:"true"`
	Timeout       time.Duration `envconfig:"VENDORA_GATEWAY_TIMEOUT" default:"15s"`
	RetryMax      int           `envconfig:"VENDORA_GATEWAY_RETRY_MAX" default:"2"`

	WebhookWindow  time.Duration `envconfig:"VENDORA_GATEWAY_WEBHOOK_WINDOW" default:"1m"`
	WebhookIPLimit int           `envconfig:"VENDORA_GATEWAY_WEBHOOK_IP_LIMIT" default:"120"`
}

type OTPConfig struct {
	TTL            time.Duration `envconfig:"VENDORA_OTP_TTL" default:"30m"`
	GenerateLimit  int64         `envconfig:"VENDORA_OTP_GENERATE_LIMIT" default:"5"`
	GenerateWindow time.Duration `envconfig:"VENDORA_OTP_GENERATE_WINDOW" default:"1h"`
	VerifyLimit    int64         `envconfig:"VENDORA_OTP_VERIFY_LIMIT" default:"5"`
	VerifyWindow   time.Duration `envconfig:"VENDORA_OTP_VERIFY_WINDOW" default:"15m"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"VENDORA_FEATURE_AUTO_MIGRATE" default:"false"`
}

type PubSubConfig struct {
	ProjectID   string `envconfig:"VENDORA_PUBSUB_PROJECT_ID"`
	DomainTopic string `envconfig:"VENDORA_PUBSUB_DOMAIN_TOPIC" default:"vendora-domain-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"VENDORA_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"VENDORA_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"VENDORA_OUTBOX_MAX_ATTEMPTS" default:"10"`
}
