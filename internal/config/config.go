// Package config loads .lounge/config.yaml, the project .env file and
// LOUNGE_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/monsters-club/lounge/internal/core"
	"gopkg.in/yaml.v3"
)

const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config is the project configuration.
type Config struct {
	Store StoreConfig `yaml:"store"`
	Log   LogConfig   `yaml:"log"`
	HTTP  HTTPConfig  `yaml:"http"`
	Chat  ChatConfig  `yaml:"chat"`
}

type StoreConfig struct {
	Backend      string   `yaml:"backend"`
	SQLitePath   string   `yaml:"sqlite_path"`
	RedisURL     string   `yaml:"redis_url,omitempty"`
	PollInterval Duration `yaml:"poll_interval"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

type HTTPConfig struct {
	Addr           string   `yaml:"addr"`
	RateLimit      float64  `yaml:"rate_limit"`
	RateBurst      int      `yaml:"rate_burst"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type ChatConfig struct {
	AtomicReactions bool   `yaml:"atomic_reactions"`
	FallbackName    string `yaml:"fallback_name"`
}

// Duration is a time.Duration written as "1s" in YAML.
type Duration time.Duration

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", node.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Store: StoreConfig{
			Backend:      BackendSQLite,
			SQLitePath:   core.DBFile,
			PollInterval: Duration(time.Second),
		},
		Log: LogConfig{Level: "warn"},
		HTTP: HTTPConfig{
			Addr:           "127.0.0.1:8080",
			RateLimit:      20,
			RateBurst:      40,
			AllowedOrigins: []string{"*"},
		},
		Chat: ChatConfig{FallbackName: "Monster"},
	}
}

// Marshal renders cfg as YAML.
func Marshal(cfg Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}

// Parse decodes YAML over the defaults.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Load reads the project's config file and .env, applies LOUNGE_*
// environment overrides and validates the result. A relative SQLite path
// is resolved against the project directory.
func Load(project core.Project) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(project.ConfigPath())
	switch {
	case err == nil:
		if cfg, err = Parse(data); err != nil {
			return Config{}, err
		}
	case !errors.Is(err, os.ErrNotExist):
		return Config{}, err
	}

	envPath := filepath.Join(project.Root, ".env")
	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", envPath, err)
	}
	if err := ApplyEnv(&cfg, os.Getenv); err != nil {
		return Config{}, err
	}

	if cfg.Store.SQLitePath != ":memory:" && !filepath.IsAbs(cfg.Store.SQLitePath) {
		cfg.Store.SQLitePath = filepath.Join(project.Dir, cfg.Store.SQLitePath)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides cfg from LOUNGE_* variables read through getenv.
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	if v := getenv("LOUNGE_STORE"); v != "" {
		cfg.Store.Backend = strings.ToLower(v)
	}
	if v := getenv("LOUNGE_SQLITE_PATH"); v != "" {
		cfg.Store.SQLitePath = v
	}
	if v := getenv("LOUNGE_REDIS_URL"); v != "" {
		cfg.Store.RedisURL = v
	}
	if v := getenv("LOUNGE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := getenv("LOUNGE_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := getenv("LOUNGE_ATOMIC_REACTIONS"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("LOUNGE_ATOMIC_REACTIONS: %w", err)
		}
		cfg.Chat.AtomicReactions = enabled
	}
	return nil
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case BackendSQLite:
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("store.sqlite_path is required for the sqlite backend")
		}
	case BackendRedis:
		if c.Store.RedisURL == "" {
			return fmt.Errorf("store.redis_url is required for the redis backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown store.backend %q (want sqlite, memory or redis)", c.Store.Backend)
	}
	if c.Store.PollInterval < 0 {
		return fmt.Errorf("store.poll_interval must not be negative")
	}
	if c.HTTP.RateLimit < 0 || c.HTTP.RateBurst < 0 {
		return fmt.Errorf("http.rate_limit and http.rate_burst must not be negative")
	}
	return nil
}
