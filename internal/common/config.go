// Package common provides shared utilities for the media queue.
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for the media queue.
type Config struct {
	Environment string        `toml:"environment"`
	Server      ServerConfig  `toml:"server"`
	Mongo       MongoConfig   `toml:"mongo"`
	Redis       RedisConfig   `toml:"redis"`
	Engine      EngineConfig  `toml:"engine"`
	Logging     LoggingConfig `toml:"logging"`
}

// ServerConfig holds the HTTP API server configuration.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// MongoConfig holds document-store connection settings.
type MongoConfig struct {
	URI        string `toml:"uri"`
	Database   string `toml:"database"`
	Collection string `toml:"collection"` // default "tasks"
	Timeout    string `toml:"timeout"`
}

// GetTimeout parses and returns the Mongo operation timeout.
func (c *MongoConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// RedisConfig holds queue + pub/sub connection settings.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// EngineConfig holds worker-engine tunables, corresponding to the timing
// constants spec.md §4.2/§4.3/§5 names explicitly.
type EngineConfig struct {
	// EmptyQueueSleep is how long the dequeue loop sleeps after an empty pop
	// before retrying. spec.md §4.2: "sleep 2 s and retry".
	EmptyQueueSleep string `toml:"empty_queue_sleep"`

	// DequeueErrorBackoff is the sleep after a transient dequeue error.
	// spec.md §4.2/§7: "log, sleep 5 s, retry".
	DequeueErrorBackoff string `toml:"dequeue_error_backoff"`

	// CancelGrace is how long the engine waits after setting the cancel
	// flag for the processor to observe it and exit. spec.md §4.2: "~500ms".
	CancelGrace string `toml:"cancel_grace"`

	// ProcessorTickInterval paces each processor's simulated compute loop.
	ProcessorTickInterval string `toml:"processor_tick_interval"`

	// ProcessorTicks is the number of progress steps a processor takes to
	// go from 0 to 1.0.
	ProcessorTicks int `toml:"processor_ticks"`

	// DefaultMaxRetries seeds Task.MaxRetries for submissions that don't
	// specify one.
	DefaultMaxRetries uint `toml:"default_max_retries"`
}

func (c *EngineConfig) dur(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// GetEmptyQueueSleep returns the parsed empty-queue sleep, defaulting to 2s.
func (c *EngineConfig) GetEmptyQueueSleep() time.Duration {
	return c.dur(c.EmptyQueueSleep, 2*time.Second)
}

// GetDequeueErrorBackoff returns the parsed dequeue-error backoff, defaulting to 5s.
func (c *EngineConfig) GetDequeueErrorBackoff() time.Duration {
	return c.dur(c.DequeueErrorBackoff, 5*time.Second)
}

// GetCancelGrace returns the parsed cancel grace period, defaulting to 500ms.
func (c *EngineConfig) GetCancelGrace() time.Duration {
	return c.dur(c.CancelGrace, 500*time.Millisecond)
}

// GetProcessorTickInterval returns the parsed per-tick pace, defaulting to 200ms.
func (c *EngineConfig) GetProcessorTickInterval() time.Duration {
	return c.dur(c.ProcessorTickInterval, 200*time.Millisecond)
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level   string   `toml:"level"`
	Format  string   `toml:"format"`
	Outputs []string `toml:"outputs"`
}

// NewDefaultConfig returns a Config with sensible defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Mongo: MongoConfig{
			URI:        "mongodb://localhost:27017",
			Database:   "mediaqueue",
			Collection: "tasks",
			Timeout:    "10s",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
			DB:   0,
		},
		Engine: EngineConfig{
			EmptyQueueSleep:       "2s",
			DequeueErrorBackoff:   "5s",
			CancelGrace:           "500ms",
			ProcessorTickInterval: "200ms",
			ProcessorTicks:        10,
			DefaultMaxRetries:     3,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Format:  "json",
			Outputs: []string{"console"},
		},
	}
}

// LoadConfig loads configuration from files with environment overrides.
// Later paths override earlier ones; missing files are skipped.
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for _, path := range paths {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)
	return config, nil
}

func applyEnvOverrides(config *Config) {
	if env := os.Getenv("MEDIAQUEUE_ENV"); env != "" {
		config.Environment = env
	}
	if host := os.Getenv("MEDIAQUEUE_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("MEDIAQUEUE_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if uri := os.Getenv("MEDIAQUEUE_MONGO_URI"); uri != "" {
		config.Mongo.URI = uri
	}
	if db := os.Getenv("MEDIAQUEUE_MONGO_DATABASE"); db != "" {
		config.Mongo.Database = db
	}
	if addr := os.Getenv("MEDIAQUEUE_REDIS_ADDR"); addr != "" {
		config.Redis.Addr = addr
	}
	if pass := os.Getenv("MEDIAQUEUE_REDIS_PASSWORD"); pass != "" {
		config.Redis.Password = pass
	}
	if level := os.Getenv("MEDIAQUEUE_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
