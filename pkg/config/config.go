package config

import (
	"fmt"
	"time"
)

// Config holds the runtime configuration for the CRM agent.
type Config struct {
	AppEnv string `mapstructure:"-"`

	HTTP     HTTPConfig     `mapstructure:"http" validate:"required"`
	Logger   LoggerConfig   `mapstructure:"logger" validate:"required"`
	Sentry   SentryConfig   `mapstructure:"sentry"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Redis    RedisConfig    `mapstructure:"redis" validate:"required"`
	LLM      LLMConfig      `mapstructure:"llm" validate:"required"`
	Business BusinessConfig `mapstructure:"business" validate:"required"`
	Session  SessionConfig  `mapstructure:"session"`
	Limits   LimitsConfig   `mapstructure:"limits"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
}

type HTTPConfig struct {
	Port            string        `mapstructure:"port" validate:"required"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LoggerConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
	File   string `mapstructure:"file"`
}

type SentryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host" validate:"required"`
	Port     string `mapstructure:"port" validate:"required"`
	User     string `mapstructure:"user" validate:"required"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name" validate:"required"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr" validate:"required"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// LLMConfig configures the text-understanding collaborator.
type LLMConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model" validate:"required"`
	Timeout     time.Duration `mapstructure:"timeout" validate:"required"`
	Temperature float32       `mapstructure:"temperature"`
}

// BusinessConfig fixes the calendar policy: a single business timezone and
// meeting duration. Business windows themselves are compiled in (9-12, 14-18).
type BusinessConfig struct {
	Timezone        string `mapstructure:"timezone" validate:"required"`
	MeetingMinutes  int    `mapstructure:"meeting_minutes" validate:"required,min=10"`
	DocsDir         string `mapstructure:"docs_dir"`
	MessagesDir     string `mapstructure:"messages_dir"`
	OptimisticOffer bool   `mapstructure:"optimistic_offer"`
}

type SessionConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// RateRule pairs a request budget with its sliding window ("1m", "30s").
type RateRule struct {
	Limit  int    `mapstructure:"limit"`
	Window string `mapstructure:"window"`
}

type LimitsConfig struct {
	PerSession      RateRule      `mapstructure:"per_session"`
	Global          RateRule      `mapstructure:"global"`
	Whitelist       []string      `mapstructure:"whitelist"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// JobsConfig tunes the background worker pool.
type JobsConfig struct {
	Concurrency       int           `mapstructure:"concurrency"`
	CompleteElapsedAt string        `mapstructure:"complete_elapsed_cron"`
	IdempotencyTTL    time.Duration `mapstructure:"idempotency_ttl"`
}

// DSN returns the PostgreSQL connection string.
func (c DatabaseConfig) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, sslMode,
	)
}
