package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Config is read from the environment, optionally seeded from a .env file.
type Config struct {
	AppEnv          string        `envconfig:"APP_ENV" default:"development"`
	Port            string        `envconfig:"PORT" default:"8080"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`

	DatabaseURL string `envconfig:"DATABASE_URL"`
	DBUser      string `envconfig:"DB_USER"`
	DBPassword  string `envconfig:"DB_PASSWORD"`
	DBHost      string `envconfig:"DB_HOST" default:"localhost"`
	DBPort      string `envconfig:"DB_PORT" default:"5432"`
	DBName      string `envconfig:"DB_NAME"`

	AMQPURL         string `envconfig:"AMQP_URL"`
	EventsTopic     string `envconfig:"EVENTS_TOPIC" default:"fundraiser_events"`
	QueueMaxRetries int    `envconfig:"QUEUE_MAX_RETRIES" default:"3"`

	// EventLogSize bounds the in-process event log served on /events.
	EventLogSize int `envconfig:"EVENT_LOG_SIZE" default:"10000"`
}

// Load reads .env when present and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, relying on OS environment variables")
	}

	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}
	if cfg.QueueMaxRetries < 0 {
		return nil, fmt.Errorf("QUEUE_MAX_RETRIES must not be negative, got %d", cfg.QueueMaxRetries)
	}
	if cfg.EventLogSize <= 0 {
		return nil, fmt.Errorf("EVENT_LOG_SIZE must be positive, got %d", cfg.EventLogSize)
	}
	return cfg, nil
}

// DSN returns the Postgres connection string, or "" when no database is
// configured. DATABASE_URL wins over the individual DB_* variables.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	if c.DBName == "" {
		return ""
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     c.DBHost + ":" + c.DBPort,
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// IsDevelopment selects console logging at debug level.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}
