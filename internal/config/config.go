// Package config содержит логику чтения конфигурации маркетплейса.
package config

import (
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// ErrMissingJWTSecret возвращается, если ключ подписи токенов не задан.
var ErrMissingJWTSecret = errors.New("JWT secret is required (-s or JWT_SECRET)")

// Config содержит параметры конфигурации маркетплейса.
type Config struct {
	RunAddress   string `env:"RUN_ADDRESS"`
	DatabaseURI  string `env:"DATABASE_URI"`
	JWTSecret    string `env:"JWT_SECRET"`
	RedisAddress string `env:"REDIS_ADDRESS"`
	AMQPURL      string `env:"AMQP_URL"`

	TokenTTL          time.Duration `env:"TOKEN_TTL" envDefault:"24h"`
	LoginRateLimit    int           `env:"LOGIN_RATE_LIMIT" envDefault:"5"`
	CheckoutRateLimit int           `env:"CHECKOUT_RATE_LIMIT" envDefault:"3"`
	RateLimitWindow   time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"60s"`
	RateLimitSweep    string        `env:"RATE_LIMIT_SWEEP" envDefault:"@every 1m"`

	AllowOverdraftPayouts bool     `env:"ALLOW_OVERDRAFT_PAYOUTS" envDefault:"false"`
	TrustProxyHeaders     bool     `env:"TRUST_PROXY_HEADERS" envDefault:"false"`
	CORSOrigins           []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`

	AdminEmail    string `env:"ADMIN_EMAIL"`
	AdminPassword string `env:"ADMIN_PASSWORD"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envJWTSecret := cfg.JWTSecret
	envRedisAddress := cfg.RedisAddress
	envAMQPURL := cfg.AMQPURL

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI, empty selects the in-memory store")
	flag.StringVar(&cfg.JWTSecret, "s", "", "HMAC key for session tokens")
	flag.StringVar(&cfg.RedisAddress, "r", "", "redis address for shared rate limits")
	flag.StringVar(&cfg.AMQPURL, "q", "", "AMQP URL for notification fan-out")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envJWTSecret != "" {
		cfg.JWTSecret = envJWTSecret
	}
	if envRedisAddress != "" {
		cfg.RedisAddress = envRedisAddress
	}
	if envAMQPURL != "" {
		cfg.AMQPURL = envAMQPURL
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return ErrMissingJWTSecret
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive, got %s", c.TokenTTL)
	}
	if c.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive, got %s", c.RateLimitWindow)
	}
	if c.LoginRateLimit < 0 || c.CheckoutRateLimit < 0 {
		return errors.New("rate limits must not be negative")
	}
	return nil
}
