// Package config loads sessionmesh settings from environment variables.
package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/hupe1980/sessionmesh/core"
	"github.com/hupe1980/sessionmesh/logging"
)

// Config controls registry sizing, store selection, logging and tracing.
type Config struct {
	InitialUsers int `env:"SESSIONMESH_INITIAL_USERS" envDefault:"3"`
	// MaxUsers caps AddUser at the façade; 0 means unlimited.
	MaxUsers int `env:"SESSIONMESH_MAX_USERS" envDefault:"0"`

	StoreBackend string        `env:"SESSIONMESH_STORE_BACKEND" envDefault:"memory"`
	StorePath    string        `env:"SESSIONMESH_STORE_PATH"`
	StoreTimeout time.Duration `env:"SESSIONMESH_STORE_TIMEOUT" envDefault:"5s"`
	StoreRetries uint          `env:"SESSIONMESH_STORE_RETRIES" envDefault:"0"`

	LogLevel  string `env:"SESSIONMESH_LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"SESSIONMESH_LOG_FORMAT" envDefault:"text"`

	// OTelEndpoint enables OTLP/HTTP trace export when set.
	OTelEndpoint string `env:"SESSIONMESH_OTEL_ENDPOINT"`
	ServiceName  string `env:"SESSIONMESH_SERVICE_NAME" envDefault:"sessionmesh"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.InitialUsers < 0 {
		return fmt.Errorf("%w: initial users must be >= 0", core.ErrInvalidArgument)
	}
	if c.MaxUsers < 0 {
		return fmt.Errorf("%w: max users must be >= 0", core.ErrInvalidArgument)
	}
	if c.MaxUsers > 0 && c.InitialUsers > c.MaxUsers {
		return fmt.Errorf("%w: initial users %d exceed max users %d", core.ErrInvalidArgument, c.InitialUsers, c.MaxUsers)
	}
	switch c.backend() {
	case "memory":
	case "sqlite", "bolt":
		if strings.TrimSpace(c.StorePath) == "" {
			return fmt.Errorf("%w: store path is required for %s backend", core.ErrInvalidArgument, c.StoreBackend)
		}
	default:
		return fmt.Errorf("%w: unknown store backend %q", core.ErrInvalidArgument, c.StoreBackend)
	}
	if c.StoreTimeout < 0 {
		return fmt.Errorf("%w: store timeout must be >= 0", core.ErrInvalidArgument)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", core.ErrInvalidArgument, err)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log format must be text or json", core.ErrInvalidArgument)
	}
	return nil
}

// Logger builds the SessionLogger described by the config, writing to
// stdout. Call Validate first.
func (c Config) Logger() *logging.SessionLogger {
	return c.LoggerTo(os.Stdout)
}

// LoggerTo is Logger with an explicit output. Every entry is tagged with the
// configured store backend.
func (c Config) LoggerTo(w io.Writer) *logging.SessionLogger {
	level, err := logging.ParseLevel(c.LogLevel)
	if err != nil {
		level = logging.LogLevelInfo
	}
	lc := logging.DefaultLoggerConfig()
	lc.Level = level
	lc.Output = w
	if c.LogFormat != "" {
		lc.Format = c.LogFormat
	}
	return logging.NewLogger(lc).WithContext("store_backend", c.backend())
}

func (c Config) backend() string {
	b := strings.ToLower(strings.TrimSpace(c.StoreBackend))
	if b == "" {
		return "memory"
	}
	return b
}
