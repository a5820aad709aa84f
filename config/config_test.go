package config

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/sessionmesh/core"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.InitialUsers)
	assert.Equal(t, 0, cfg.MaxUsers)
	assert.Equal(t, "memory", cfg.StoreBackend)
	assert.Equal(t, 5*time.Second, cfg.StoreTimeout)
	assert.Equal(t, uint(0), cfg.StoreRetries)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Empty(t, cfg.OTelEndpoint)
	assert.Equal(t, "sessionmesh", cfg.ServiceName)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("SESSIONMESH_INITIAL_USERS", "5")
	t.Setenv("SESSIONMESH_MAX_USERS", "10")
	t.Setenv("SESSIONMESH_STORE_BACKEND", "sqlite")
	t.Setenv("SESSIONMESH_STORE_PATH", "/tmp/docs.sqlite")
	t.Setenv("SESSIONMESH_STORE_TIMEOUT", "250ms")
	t.Setenv("SESSIONMESH_STORE_RETRIES", "4")
	t.Setenv("SESSIONMESH_LOG_LEVEL", "debug")
	t.Setenv("SESSIONMESH_LOG_FORMAT", "json")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.InitialUsers)
	assert.Equal(t, 10, cfg.MaxUsers)
	assert.Equal(t, "sqlite", cfg.StoreBackend)
	assert.Equal(t, "/tmp/docs.sqlite", cfg.StorePath)
	assert.Equal(t, 250*time.Millisecond, cfg.StoreTimeout)
	assert.Equal(t, uint(4), cfg.StoreRetries)
	assert.NotNil(t, cfg.Logger())
}

func TestLoad_ParseError(t *testing.T) {
	t.Setenv("SESSIONMESH_INITIAL_USERS", "three")
	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{InitialUsers: 3, StoreBackend: "memory", LogLevel: "info", LogFormat: "text"}
	}
	require.NoError(t, base().Validate())

	cases := map[string]func(c *Config){
		"negative users":   func(c *Config) { c.InitialUsers = -1 },
		"negative max":     func(c *Config) { c.MaxUsers = -1 },
		"initial over max": func(c *Config) { c.MaxUsers = 2 },
		"unknown backend":  func(c *Config) { c.StoreBackend = "mongo" },
		"missing path":     func(c *Config) { c.StoreBackend = "bolt" },
		"negative timeout": func(c *Config) { c.StoreTimeout = -time.Second },
		"bad level":        func(c *Config) { c.LogLevel = "loud" },
		"bad format":       func(c *Config) { c.LogFormat = "xml" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := base()
			mutate(&c)
			assert.ErrorIs(t, c.Validate(), core.ErrInvalidArgument)
		})
	}
}

func TestValidate_BackendNamesMatchStoreOpen(t *testing.T) {
	for _, backend := range []string{"", "memory", " Memory "} {
		c := Config{StoreBackend: backend, LogLevel: "info", LogFormat: "text"}
		assert.NoError(t, c.Validate(), "backend %q", backend)
	}

	c := Config{StoreBackend: " SQLite ", StorePath: "docs.sqlite", LogLevel: "info", LogFormat: "text"}
	assert.NoError(t, c.Validate())
}

func TestLoggerTo_TagsStoreBackend(t *testing.T) {
	buf := &bytes.Buffer{}
	c := Config{StoreBackend: " Bolt ", StorePath: "docs.db", LogLevel: "warn", LogFormat: "json"}

	logger := c.LoggerTo(buf)
	logger.Info("filtered")
	logger.Warn("kept")

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "kept", line["msg"])
	assert.Equal(t, "bolt", line["store_backend"])
}
