// Package config loads server settings. Values start from Default, are
// overlaid by an optional YAML file, then by a .env file and finally by the
// process environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/mcdev12/focusflow/go/internal/dbconfig"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Store drivers
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// Config is the full server configuration
type Config struct {
	Port      string          `yaml:"port" env:"PORT"`
	Log       LogConfig       `yaml:"log" envPrefix:"LOG_"`
	Store     StoreConfig     `yaml:"store" envPrefix:"STORE_"`
	DB        dbconfig.Config `yaml:"db" envPrefix:"DB_"`
	NATS      NATSConfig      `yaml:"nats" envPrefix:"NATS_"`
	Auth      AuthConfig      `yaml:"auth" envPrefix:"JWT_"`
	Retry     RetryConfig     `yaml:"retry" envPrefix:"RETRY_"`
	WebSocket WebSocketConfig `yaml:"websocket" envPrefix:"WS_"`
	TipsFile  string          `yaml:"tips_file" env:"TIPS_FILE"`
}

// LogConfig selects log level and output format
type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"` // console or json
}

// StoreConfig selects the session, user and activity storage
type StoreConfig struct {
	Driver        string `yaml:"driver" env:"DRIVER"`
	SQLitePath    string `yaml:"sqlite_path" env:"SQLITE_PATH"`
	CodeCacheSize int    `yaml:"code_cache_size" env:"CODE_CACHE_SIZE"`
}

// NATSConfig enables the cross-instance hub relay and the activity stream
type NATSConfig struct {
	URL            string `yaml:"url" env:"URL"`
	Relay          bool   `yaml:"relay" env:"RELAY"`
	RelayPrefix    string `yaml:"relay_prefix" env:"RELAY_PREFIX"`
	ActivityStream bool   `yaml:"activity_stream" env:"ACTIVITY_STREAM"`
	StreamName     string `yaml:"stream_name" env:"STREAM_NAME"`
	SubjectPrefix  string `yaml:"subject_prefix" env:"SUBJECT_PREFIX"`
}

// Enabled reports whether anything needs a NATS connection
func (c NATSConfig) Enabled() bool {
	return c.Relay || c.ActivityStream
}

// AuthConfig holds bearer token settings. An empty secret enables demo mode.
type AuthConfig struct {
	Secret   string `yaml:"secret" env:"SECRET"`
	Issuer   string `yaml:"issuer" env:"ISSUER"`
	Audience string `yaml:"audience" env:"AUDIENCE"`
}

// RetryConfig bounds retries of transient store failures
type RetryConfig struct {
	Attempts uint64        `yaml:"attempts" env:"ATTEMPTS"`
	Base     time.Duration `yaml:"base" env:"BASE"`
}

// WebSocketConfig holds connection timeouts and buffer sizes
type WebSocketConfig struct {
	WriteTimeout     time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ReadTimeout      time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	PingInterval     time.Duration `yaml:"ping_interval" env:"PING_INTERVAL"`
	MaxMessageSize   int64         `yaml:"max_message_size" env:"MAX_MESSAGE_SIZE"`
	SubscriberBuffer int           `yaml:"subscriber_buffer" env:"SUBSCRIBER_BUFFER"`
}

// Default returns the settings used when nothing overrides them
func Default() Config {
	return Config{
		Port: "8080",
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Store: StoreConfig{
			Driver:        StoreMemory,
			SQLitePath:    "focusflow.db",
			CodeCacheSize: 1024,
		},
		DB: dbconfig.Default(),
		NATS: NATSConfig{
			URL:           "nats://localhost:4222",
			RelayPrefix:   "focusflow.hub",
			StreamName:    "FOCUSFLOW_ACTIVITY",
			SubjectPrefix: "focusflow.activity",
		},
		Retry: RetryConfig{
			Attempts: 3,
			Base:     50 * time.Millisecond,
		},
		WebSocket: WebSocketConfig{
			WriteTimeout:     10 * time.Second,
			ReadTimeout:      60 * time.Second,
			PingInterval:     30 * time.Second,
			MaxMessageSize:   1024,
			SubscriberBuffer: 256,
		},
	}
}

// Load builds the configuration. path may be empty to skip the YAML file.
// Missing .env files are ignored.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that cannot be defaulted
func (c *Config) Validate() error {
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	switch c.Store.Driver {
	case StoreMemory, StorePostgres:
	case StoreSQLite:
		if strings.TrimSpace(c.Store.SQLitePath) == "" {
			return errors.New("store.sqlite_path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}

	if _, err := c.LogLevel(); err != nil {
		return err
	}
	if c.Retry.Base <= 0 {
		return errors.New("retry.base must be positive")
	}
	if c.WebSocket.PingInterval >= c.WebSocket.ReadTimeout {
		return errors.New("websocket.ping_interval must be shorter than websocket.read_timeout")
	}
	return nil
}

// LogLevel parses the configured zerolog level
func (c *Config) LogLevel() (zerolog.Level, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q: %w", c.Log.Level, err)
	}
	return level, nil
}

// DemoMode reports whether callers are never authenticated
func (c *Config) DemoMode() bool {
	return c.Auth.Secret == ""
}
