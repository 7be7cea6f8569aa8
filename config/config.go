package config

import (
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

// Config is parsed once at process startup from the environment. It backs
// cmd/runner; cmd/seed reads only DATABASE_URL, directly from the environment.
type Config struct {
	Env string `env:"ENV" envDefault:"local" validate:"required,oneof=local staging production"`

	DatabaseURL string `env:"DATABASE_URL,required" validate:"required"`

	RunnerConcurrency     int    `env:"RUNNER_CONCURRENCY" envDefault:"10" validate:"min=1,max=500"`
	RunnerLabel           string `env:"RUNNER_LABEL" envDefault:"chang-tasks"`
	RunnerQueue           string `env:"RUNNER_QUEUE" envDefault:"default"`
	RunnerQueueStrategy   string `env:"RUNNER_QUEUE_STRATEGY" envDefault:"fcfs" validate:"required,oneof=fcfs priority"`
	RunnerQueueLimit      int    `env:"RUNNER_QUEUE_LIMIT" envDefault:"10" validate:"min=1,max=500"`
	RunnerQueueIntervalMS int    `env:"RUNNER_QUEUE_INTERVAL_MS" envDefault:"500" validate:"min=10,max=60000"`

	AdminPort   string `env:"ADMIN_PORT" envDefault:"8080"`
	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info" validate:"required,oneof=debug info warn error"`

	JWTSecret     string `env:"JWT_SECRET" validate:"required_if=Env production,required_if=Env staging"`
	ResendAPIKey  string `env:"RESEND_API_KEY" validate:"required_if=Env production,required_if=Env staging"`
	ResendFrom    string `env:"RESEND_FROM" validate:"required_if=Env production,required_if=Env staging"`
	MagicLinkBase string `env:"MAGIC_LINK_BASE_URL" envDefault:"http://localhost:8080"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SlogLevel converts the LOG_LEVEL string to a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
