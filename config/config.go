// Package config reads nodeflow settings from the environment and an
// optional .env file, and turns them into processor options, node settings
// and a result store.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/smallnest/nodeflow/graph"
	"github.com/smallnest/nodeflow/log"
	"github.com/smallnest/nodeflow/node"
	"github.com/smallnest/nodeflow/nodes"
	"github.com/smallnest/nodeflow/store"
	"github.com/smallnest/nodeflow/store/file"
	"github.com/smallnest/nodeflow/store/memory"
	"github.com/smallnest/nodeflow/store/postgres"
	"github.com/smallnest/nodeflow/store/redis"
	"github.com/smallnest/nodeflow/store/sqlite"
)

// Prefix is prepended to every environment variable name.
const Prefix = "NODEFLOW_"

// Store backends.
const (
	StoreNone     = ""
	StoreMemory   = "memory"
	StoreFile     = "file"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
	StoreSqlite   = "sqlite"
)

// ErrInvalidConfig is wrapped by every error returned from Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds everything needed to run graphs from the CLI or the server.
type Config struct {
	LogLevel    string
	EventBuffer int
	FailFast    bool
	Trace       bool
	Retry       RetryConfig
	Store       StoreConfig
	Server      ServerConfig
	OpenAI      OpenAIConfig
}

type RetryConfig struct {
	Attempts int
	Delay    time.Duration
	MaxDelay time.Duration
}

type StoreConfig struct {
	Backend string
	// Path is the directory of the file store or the database file of sqlite.
	Path string
	// DSN is the redis address or the postgres connection string.
	DSN           string
	Table         string
	RedisPassword string
	RedisDB       int
	TTL           time.Duration
}

type ServerConfig struct {
	Addr string
	// Retention is how long a settled run stays queryable. Zero keeps runs
	// until they are deleted.
	Retention time.Duration
}

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Load reads the given .env files, or ./.env when none are given, and then
// the process environment. A missing default .env is not an error.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		_ = godotenv.Load()
	} else if err := godotenv.Load(files...); err != nil {
		return nil, fmt.Errorf("failed to load env files: %w", err)
	}

	cfg := &Config{
		LogLevel:    getEnvWithDefault("LOG_LEVEL", "info"),
		EventBuffer: getEnvAsInt("EVENT_BUFFER", graph.DefaultEventBuffer),
		FailFast:    getEnvAsBool("FAIL_FAST", false),
		Trace:       getEnvAsBool("TRACE", false),
		Retry: RetryConfig{
			Attempts: getEnvAsInt("RETRY_ATTEMPTS", 0),
			Delay:    getEnvAsDuration("RETRY_DELAY", 100*time.Millisecond),
			MaxDelay: getEnvAsDuration("RETRY_MAX_DELAY", 5*time.Second),
		},
		Store: StoreConfig{
			Backend:       strings.ToLower(getEnvWithDefault("STORE", StoreNone)),
			Path:          getEnvWithDefault("STORE_PATH", ""),
			DSN:           getEnvWithDefault("STORE_DSN", ""),
			Table:         getEnvWithDefault("STORE_TABLE", "node_results"),
			RedisPassword: getEnvWithDefault("REDIS_PASSWORD", ""),
			RedisDB:       getEnvAsInt("REDIS_DB", 0),
			TTL:           getEnvAsDuration("STORE_TTL", 0),
		},
		Server: ServerConfig{
			Addr:      getEnvWithDefault("ADDR", ":8080"),
			Retention: getEnvAsDuration("RUN_RETENTION", 15*time.Minute),
		},
		OpenAI: OpenAIConfig{
			APIKey:  getEnvWithDefault("OPENAI_API_KEY", os.Getenv("OPENAI_API_KEY")),
			BaseURL: getEnvWithDefault("OPENAI_BASE_URL", ""),
			Model:   getEnvWithDefault("OPENAI_MODEL", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.EventBuffer < 0 {
		return fmt.Errorf("%w: event buffer must not be negative", ErrInvalidConfig)
	}
	if c.Retry.Attempts < 0 {
		return fmt.Errorf("%w: retry attempts must not be negative", ErrInvalidConfig)
	}
	if c.Server.Retention < 0 {
		return fmt.Errorf("%w: run retention must not be negative", ErrInvalidConfig)
	}

	switch c.Store.Backend {
	case StoreNone, StoreMemory:
	case StoreFile, StoreSqlite:
		if c.Store.Path == "" {
			return fmt.Errorf("%w: %sSTORE_PATH is required for the %s store", ErrInvalidConfig, Prefix, c.Store.Backend)
		}
	case StoreRedis, StorePostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("%w: %sSTORE_DSN is required for the %s store", ErrInvalidConfig, Prefix, c.Store.Backend)
		}
	default:
		return fmt.Errorf("%w: unknown store %q", ErrInvalidConfig, c.Store.Backend)
	}
	return nil
}

// Logger builds a golog backed logger at the configured level.
func (c *Config) Logger() log.Logger {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		level = log.LogLevelInfo
	}
	return log.New(level)
}

// ProcessorOptions translates the configuration into processor options.
// The store is not included; see OpenStore.
func (c *Config) ProcessorOptions(logger log.Logger) []graph.Option {
	opts := []graph.Option{graph.WithEventBuffer(c.EventBuffer)}
	if logger != nil {
		opts = append(opts, graph.WithLogger(logger))
	}
	if c.FailFast {
		opts = append(opts, graph.WithFailFast())
	}
	if c.Trace {
		opts = append(opts, graph.WithTrace())
	}
	if c.Retry.Attempts > 1 {
		retry := graph.DefaultRetryConfig()
		retry.MaxAttempts = c.Retry.Attempts
		retry.InitialDelay = c.Retry.Delay
		retry.MaxDelay = c.Retry.MaxDelay
		retry.RetryableErrors = func(err error) bool {
			return !errors.Is(err, nodes.ErrRejected)
		}
		opts = append(opts, graph.WithRetry(retry))
	}
	return opts
}

// Settings returns the node settings shared by every run.
func (c *Config) Settings() node.Settings {
	s := node.Settings{}
	if c.OpenAI.APIKey != "" {
		s[nodes.SettingOpenAIKey] = c.OpenAI.APIKey
	}
	if c.OpenAI.BaseURL != "" {
		s[nodes.SettingOpenAIBaseURL] = c.OpenAI.BaseURL
	}
	if c.OpenAI.Model != "" {
		s[nodes.SettingOpenAIModel] = c.OpenAI.Model
	}
	return s
}

// OpenStore opens the configured result store. The returned close function
// is never nil. A nil store means results are not persisted.
func (c *Config) OpenStore(ctx context.Context) (store.ResultStore, func() error, error) {
	noop := func() error { return nil }

	switch c.Store.Backend {
	case StoreNone:
		return nil, noop, nil
	case StoreMemory:
		return memory.NewMemoryResultStore(), noop, nil
	case StoreFile:
		s, err := file.NewFileResultStore(c.Store.Path)
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil
	case StoreRedis:
		s := redis.NewRedisResultStore(redis.RedisOptions{
			Addr:     c.Store.DSN,
			Password: c.Store.RedisPassword,
			DB:       c.Store.RedisDB,
			TTL:      c.Store.TTL,
		})
		return s, s.Close, nil
	case StorePostgres:
		s, err := postgres.NewPostgresResultStore(ctx, postgres.PostgresOptions{
			ConnString: c.Store.DSN,
			TableName:  c.Store.Table,
		})
		if err != nil {
			return nil, noop, err
		}
		if err := s.InitSchema(ctx); err != nil {
			s.Close()
			return nil, noop, err
		}
		return s, func() error { s.Close(); return nil }, nil
	case StoreSqlite:
		s, err := sqlite.NewSqliteResultStore(sqlite.SqliteOptions{
			Path:      c.Store.Path,
			TableName: c.Store.Table,
		})
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	}
	return nil, noop, fmt.Errorf("%w: unknown store %q", ErrInvalidConfig, c.Store.Backend)
}

func getEnvWithDefault(key, defaultValue string) string {
	if value, ok := os.LookupEnv(Prefix + key); ok {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, ok := os.LookupEnv(Prefix + key); ok {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, ok := os.LookupEnv(Prefix + key); ok {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, ok := os.LookupEnv(Prefix + key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
