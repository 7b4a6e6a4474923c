package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds every environment-driven setting of the checkout service.
type Config struct {
	Env      string `env:"APP_ENV" envDefault:"production"`
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8084"`

	DBHost     string `env:"DB_HOST" envDefault:"localhost"`
	DBPort     string `env:"DB_PORT" envDefault:"5432"`
	DBUser     string `env:"DB_USER" envDefault:"postgres"`
	DBPassword string `env:"DB_PASSWORD" envDefault:"postgres"`
	DBName     string `env:"DB_NAME" envDefault:"marketdb"`

	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     string `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	KafkaBrokers      []string `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	NotificationTopic string   `env:"KAFKA_NOTIFICATION_TOPIC" envDefault:"notification_events"`
	SettlementTopic   string   `env:"KAFKA_SETTLEMENT_TOPIC" envDefault:"settlement_events"`

	StripeSecretKey     string `env:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
	Currency            string `env:"CHECKOUT_CURRENCY" envDefault:"usd"`

	IdentityURL        string        `env:"IDENTITY_PROVIDER_URL"`
	IdentityServiceKey string        `env:"IDENTITY_SERVICE_KEY"`
	JWTSecret          string        `env:"JWT_SECRET" envDefault:"your-secret-key-change-in-production"`
	UpstreamTimeout    time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"10s"`

	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`

	GuestCheckoutRPS   int `env:"GUEST_CHECKOUT_RPS" envDefault:"2"`
	GuestCheckoutBurst int `env:"GUEST_CHECKOUT_BURST" envDefault:"5"`

	JaegerEndpoint string `env:"JAEGER_ENDPOINT" envDefault:"http://localhost:14268/api/traces"`
}

// Load parses the process environment into a Config.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}

// Development reports whether internal error detail may be exposed to clients.
func (c *Config) Development() bool {
	return c.Env == "development"
}

// PostgresDSN builds the lib/pq connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName)
}

// RedisAddr returns host:port for the redis client.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}
