package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Queue backends.
const (
	QueueBackendMemory = "memory"
	QueueBackendRedis  = "redis"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	SQLite   SQLiteConfig      `yaml:"sqlite"`
	Auth     AuthConfig        `yaml:"auth"`
	Resolver ResolverConfig    `yaml:"resolver"`
	Queue    QueueConfig       `yaml:"queue"`
	Events   EventsConfig      `yaml:"events"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Resolver.Validate(); err != nil {
		return fmt.Errorf("resolver: %w", err)
	}
	if err := c.Queue.Validate(); err != nil {
		return fmt.Errorf("queue: %w", err)
	}
	return c.Events.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// ResolverConfig tunes wiki-link resolution.
//
// Dedupe and Prune together keep exactly one edge per referenced target;
// both false gives append-only edges.
type ResolverConfig struct {
	Workers     int           `yaml:"workers"`
	Concurrency int           `yaml:"concurrency"`
	Timeout     time.Duration `yaml:"timeout"`
	Dedupe      bool          `yaml:"dedupe"`
	Prune       bool          `yaml:"prune"`
}

// Validate validates the resolver configuration.
func (c *ResolverConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Workers, validation.Required, validation.Min(1), validation.Max(64)),
		validation.Field(&c.Concurrency, validation.Required, validation.Min(1), validation.Max(64)),
		validation.Field(&c.Timeout, validation.Required, validation.Min(100*time.Millisecond)),
	)
}

// QueueConfig selects the resolution job queue.
type QueueConfig struct {
	Backend string      `yaml:"backend"`
	Size    int         `yaml:"size"`
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig addresses the Redis list used by the redis backend.
type RedisConfig struct {
	URL string `yaml:"url"`
	Key string `yaml:"key"`
}

// Validate validates the queue configuration.
func (c *QueueConfig) Validate() error {
	if c.Backend == "" {
		c.Backend = QueueBackendMemory
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.In(QueueBackendMemory, QueueBackendRedis)),
		validation.Field(&c.Size, validation.When(c.Backend == QueueBackendMemory, validation.Required, validation.Min(1))),
	); err != nil {
		return err
	}
	return validation.ValidateStruct(&c.Redis,
		validation.Field(&c.Redis.URL, validation.When(c.Backend == QueueBackendRedis, validation.Required)),
	)
}

// EventsConfig configures the SSE change stream.
type EventsConfig struct {
	GraphThrottle time.Duration `yaml:"graph_throttle"`
}

// Validate validates the events configuration.
func (c *EventsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.GraphThrottle, validation.Min(time.Duration(0))),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		SQLite: SQLiteConfig{
			Path: "./learnlog.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Resolver: ResolverConfig{
			Workers:     2,
			Concurrency: 4,
			Timeout:     30 * time.Second,
			Dedupe:      true,
			Prune:       true,
		},
		Queue: QueueConfig{
			Backend: QueueBackendMemory,
			Size:    256,
		},
		Events: EventsConfig{
			GraphThrottle: 2 * time.Second,
		},
	}
}
