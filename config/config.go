package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"

	RealtimePostgres = "postgres"
	RealtimeNATS     = "nats"
	RealtimeLocal    = "local"
)

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

type RealtimeConfig struct {
	Driver        string `yaml:"driver"` // postgres, nats or local
	NATSURL       string `yaml:"nats_url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

type SessionsConfig struct {
	IdleTTL int `yaml:"idle_ttl"` // minutes
}

type Config struct {
	Port        string         `yaml:"port"`
	GRPCPort    string         `yaml:"grpc_port"`
	Backend     string         `yaml:"backend"`
	DatabaseURL string         `yaml:"database_url"`
	JWTSecret   string         `yaml:"jwt_secret"`
	RateLimit   int            `yaml:"rate_limit"` // requests per second
	SearchLimit int            `yaml:"search_limit"`
	Log         LogConfig      `yaml:"log"`
	Realtime    RealtimeConfig `yaml:"realtime"`
	Sessions    SessionsConfig `yaml:"sessions"`
}

func defaults() Config {
	return Config{
		Port:        "8443",
		GRPCPort:    "9443",
		Backend:     BackendPostgres,
		RateLimit:   20,
		SearchLimit: 500,
		Log:         LogConfig{Level: "info", Format: "text"},
		Realtime: RealtimeConfig{
			Driver:        RealtimePostgres,
			SubjectPrefix: "looped.changes",
		},
		Sessions: SessionsConfig{IdleTTL: 30},
	}
}

// LoadConfig reads .env (if present), then the YAML file at path (if path is
// not empty), then lets environment variables override both.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		log.Printf("[CONFIG] Loaded configuration from %s", path)
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Port, "PORT")
	setString(&cfg.GRPCPort, "GRPC_PORT")
	setString(&cfg.Backend, "BACKEND")
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.JWTSecret, "JWT_SECRET")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Log.Format, "LOG_FORMAT")
	setString(&cfg.Realtime.Driver, "REALTIME_DRIVER")
	setString(&cfg.Realtime.NATSURL, "NATS_URL")
	setString(&cfg.Realtime.SubjectPrefix, "REALTIME_SUBJECT_PREFIX")
	setInt(&cfg.RateLimit, "RATE_LIMIT")
	setInt(&cfg.SearchLimit, "SEARCH_LIMIT")
	setInt(&cfg.Sessions.IdleTTL, "SESSION_IDLE_TTL")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[CONFIG] Ignoring %s=%q: %v", key, v, err)
		return
	}
	*dst = n
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("jwt_secret is required")
	}
	switch c.Backend {
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return errors.New("database_url is required for the postgres backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	switch c.Realtime.Driver {
	case RealtimePostgres, RealtimeLocal:
	case RealtimeNATS:
		if c.Realtime.NATSURL == "" {
			return errors.New("realtime.nats_url is required for the nats driver")
		}
	default:
		return fmt.Errorf("unknown realtime driver %q", c.Realtime.Driver)
	}
	if c.Sessions.IdleTTL <= 0 {
		return errors.New("sessions.idle_ttl must be positive")
	}
	if c.RateLimit <= 0 {
		return errors.New("rate_limit must be positive")
	}
	return nil
}

func (c *Config) JWTKey() []byte {
	return []byte(c.JWTSecret)
}

// GetIdleTTL returns how long an unused session is kept open
func (c *Config) GetIdleTTL() time.Duration {
	return time.Duration(c.Sessions.IdleTTL) * time.Minute
}
