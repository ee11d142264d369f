package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

const EnvProduction = "production"

type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`
	// PublicURL prefixes links the API hands out, e.g. stored image URLs.
	PublicURL string `env:"PUBLIC_URL, default=http://localhost:8080"`

	JWT       JWTConfig
	Mongo     MongoConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Email     EmailConfig
	Payment   PaymentConfig
	Images    ImageConfig
}

type JWTConfig struct {
	Secret    string        `env:"JWT_SECRET, required"`
	ExpiresIn time.Duration `env:"JWT_EXPIRES_IN, default=2160h"`
	// CookieExpiresIn is in days.
	CookieExpiresIn int `env:"JWT_COOKIE_EXPIRES_IN, default=90"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=natours"`
}

// RedisConfig is optional: without an address the rate limiter is kept in
// process memory.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB, default=0"`
}

type RateLimitConfig struct {
	Max    int           `env:"RATE_LIMIT_MAX,    default=100"`
	Window time.Duration `env:"RATE_LIMIT_WINDOW, default=1h"`
}

type EmailConfig struct {
	Host     string `env:"EMAIL_HOST, default=localhost"`
	Port     int    `env:"EMAIL_PORT, default=25"`
	Username string `env:"EMAIL_USERNAME"`
	Password string `env:"EMAIL_PASSWORD"`
	From     string `env:"EMAIL_FROM, default=Natours <hello@natours.io>"`
}

type PaymentConfig struct {
	APIURL        string `env:"PAYMENT_API_URL, default=https://api.stripe.com"`
	SecretKey     string `env:"PAYMENT_SECRET"`
	WebhookSecret string `env:"PAYMENT_WEBHOOK_SECRET"`
	Currency      string `env:"PAYMENT_CURRENCY, default=eur"`
}

type ImageConfig struct {
	// Store is "disk" or "s3".
	Store string `env:"IMAGE_STORE, default=disk"`
	Dir   string `env:"IMAGE_DIR,   default=public/img"`

	S3Bucket    string `env:"S3_BUCKET"`
	S3Region    string `env:"S3_REGION, default=us-east-1"`
	S3Endpoint  string `env:"S3_ENDPOINT"`
	S3AccessKey string `env:"S3_ACCESS_KEY"`
	S3SecretKey string `env:"S3_SECRET_KEY"`
	S3Prefix    string `env:"S3_PREFIX"`
	S3PublicURL string `env:"S3_PUBLIC_URL"`
}

// Production reports whether the service runs in production mode.
func (c *Config) Production() bool {
	return c.Env == EnvProduction
}

// CookieTTL is the jwt cookie lifetime.
func (c *Config) CookieTTL() time.Duration {
	return time.Duration(c.JWT.CookieExpiresIn) * 24 * time.Hour
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	switch c.Images.Store {
	case "disk":
	case "s3":
		if c.Images.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when IMAGE_STORE=s3")
		}
	default:
		return fmt.Errorf("IMAGE_STORE must be disk or s3, got %q", c.Images.Store)
	}
	if c.RateLimit.Max <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("RATE_LIMIT_MAX and RATE_LIMIT_WINDOW must be positive")
	}
	return nil
}
