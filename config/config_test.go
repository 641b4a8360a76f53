package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "looped.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigYAMLAndEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("SEARCH_LIMIT", "")
	t.Setenv("BACKEND", "")
	t.Setenv("RATE_LIMIT", "7")
	t.Setenv("SESSION_IDLE_TTL", "not-a-number")

	path := writeConfig(t, `
backend: memory
jwt_secret: from-file
search_limit: 42
realtime:
  driver: local
sessions:
  idle_ttl: 5
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, BackendMemory, cfg.Backend)
	assert.Equal(t, "from-file", cfg.JWTSecret)
	assert.Equal(t, 42, cfg.SearchLimit)
	assert.Equal(t, 7, cfg.RateLimit)
	assert.Equal(t, 5*time.Minute, cfg.GetIdleTTL())
	assert.Equal(t, "looped.changes", cfg.Realtime.SubjectPrefix)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		c := defaults()
		c.JWTSecret = "s"
		c.DatabaseURL = "postgres://localhost/looped"
		return c
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults with secret and dsn", mutate: func(*Config) {}},
		{name: "memory needs no dsn", mutate: func(c *Config) { c.Backend = BackendMemory; c.DatabaseURL = "" }},
		{name: "missing secret", mutate: func(c *Config) { c.JWTSecret = "" }, wantErr: "jwt_secret"},
		{name: "postgres without dsn", mutate: func(c *Config) { c.DatabaseURL = "" }, wantErr: "database_url"},
		{name: "unknown backend", mutate: func(c *Config) { c.Backend = "sqlite" }, wantErr: "unknown backend"},
		{name: "nats without url", mutate: func(c *Config) { c.Realtime.Driver = RealtimeNATS }, wantErr: "nats_url"},
		{name: "unknown realtime", mutate: func(c *Config) { c.Realtime.Driver = "kafka" }, wantErr: "unknown realtime"},
		{name: "zero idle ttl", mutate: func(c *Config) { c.Sessions.IdleTTL = 0 }, wantErr: "idle_ttl"},
		{name: "zero rate limit", mutate: func(c *Config) { c.RateLimit = 0 }, wantErr: "rate_limit"},
		{name: "negative rate limit", mutate: func(c *Config) { c.RateLimit = -5 }, wantErr: "rate_limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
