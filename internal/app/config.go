package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"

	"github.com/xenking/coupon-engine/internal/domain/coupon"
)

const defaultAddr = "0.0.0.0:8080"

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverBolt     = "bolt"
)

// Config holds the complete application configuration, loadable from
// environment variables (COUPON_ prefix), flags, or YAML config files.
type Config struct {
	Addr      string `default:"0.0.0.0:8080" usage:"API server listen address"`
	Storage   StorageConfig
	Redis     RedisConfig
	Usage     UsageConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Graceful  GracefulConfig
}

// StorageConfig selects the coupon store and usage ledger backend.
type StorageConfig struct {
	Driver      string `default:"memory" usage:"Storage driver: memory, postgres or bolt"`
	DatabaseURL string `usage:"PostgreSQL connection URL (COUPON_STORAGE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	BoltPath    string `default:"coupons.db" usage:"Bolt database file" flag:"bolt-path"`
}

// RedisConfig enables the coupon list cache when URL is set.
type RedisConfig struct {
	URL string        `usage:"Redis URL for the active coupon cache (COUPON_REDIS_URL or REDIS_URL)" flag:"redis-url"`
	TTL time.Duration `default:"30s" usage:"Cached coupon list lifetime" flag:"redis-ttl"`
}

// UsageConfig controls how per-user usage limits are counted.
type UsageConfig struct {
	Scope string `default:"coupon" usage:"Usage limit scope: coupon (per user and coupon) or user (per user, all coupons)" flag:"usage-scope"`
}

// RateLimitConfig controls the per-client token bucket rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "COUPON",
		Files:     []string{"config.yaml", "/etc/coupon-engine/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults(os.Getenv)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's COUPON_-prefixed configuration.
func (c *Config) applyPlatformDefaults(getenv func(string) string) {
	if c.Storage.DatabaseURL == "" {
		c.Storage.DatabaseURL = getenv("DATABASE_URL")
	}
	if c.Redis.URL == "" {
		c.Redis.URL = getenv("REDIS_URL")
	}
	if port := getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Storage.DatabaseURL == "" {
			return errors.New("database URL is required for postgres storage: set COUPON_STORAGE_DATABASE_URL or DATABASE_URL")
		}
	case DriverBolt:
		if c.Storage.BoltPath == "" {
			return errors.New("bolt path is required for bolt storage")
		}
	default:
		return errors.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if _, err := coupon.ParseUsageScope(c.Usage.Scope); err != nil {
		return errors.Wrap(err, "usage scope")
	}
	if c.RateLimit.Max <= 0 || c.RateLimit.Window <= 0 {
		return errors.New("rate limit max and window must be positive")
	}
	return nil
}
