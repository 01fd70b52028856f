// Package config loads client configuration from a YAML file.
//
// The file is named by the --config flag or the CDP_CLIENT_CONFIG
// environment variable. Without either, Default is used. Values set on the
// command line are applied by the caller after loading.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/FreePeak/golang-cdp-client/internal/infrastructure/logging"
	"github.com/FreePeak/golang-cdp-client/internal/usecases"
)

// EnvVar names the environment variable holding the config file path.
const EnvVar = "CDP_CLIENT_CONFIG"

// Config is the client configuration.
type Config struct {
	// Host is the debugging peer's host.
	// Default: localhost
	Host string `yaml:"host"`

	// Port is the debugging peer's port.
	// Default: 9222
	Port int `yaml:"port"`

	// Scheme is the discovery endpoint scheme, "http" or "https".
	Scheme string `yaml:"scheme"`

	// SuppressOrigin omits the Origin header from the socket handshake, for
	// peers that reject unexpected origins.
	SuppressOrigin bool `yaml:"suppress_origin"`

	// CommandTimeout bounds commands issued without a deadline. Zero waits
	// without bound.
	// Default: 30s
	CommandTimeout time.Duration `yaml:"command_timeout"`

	// HandshakeTimeout bounds the socket opening handshake.
	// Default: 45s
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`

	// Queue configures the pull-side message queue.
	Queue QueueConfig `yaml:"queue"`

	// Log configures logging.
	Log LogConfig `yaml:"log"`
}

// QueueConfig configures the message queue.
type QueueConfig struct {
	// Mode is "events", "all" or "none".
	Mode string `yaml:"mode"`

	// Capacity bounds the queue, dropping the oldest message when full.
	// Zero is unbounded.
	Capacity int `yaml:"capacity"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Development switches to human-readable console output.
	Development bool `yaml:"development"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Host:             "localhost",
		Port:             9222,
		Scheme:           "http",
		CommandTimeout:   30 * time.Second,
		HandshakeTimeout: 45 * time.Second,
		Queue: QueueConfig{
			Mode: string(usecases.QueueEvents),
		},
		Log: LogConfig{
			Level: string(logging.InfoLevel),
		},
	}
}

// Load reads the file named by CDP_CLIENT_CONFIG, or returns Default when
// the variable is unset.
func Load() (*Config, error) {
	path := os.Getenv(EnvVar)
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile reads path over the defaults and validates the result.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var err error

	if strings.TrimSpace(c.Host) == "" {
		err = multierr.Append(err, fmt.Errorf("host is required"))
	}
	if c.Port < 1 || c.Port > 65535 {
		err = multierr.Append(err, fmt.Errorf("port must be between 1 and 65535, got %d", c.Port))
	}
	if c.Scheme != "http" && c.Scheme != "https" {
		err = multierr.Append(err, fmt.Errorf("scheme must be http or https, got %q", c.Scheme))
	}
	if c.CommandTimeout < 0 {
		err = multierr.Append(err, fmt.Errorf("command_timeout must not be negative"))
	}
	if c.HandshakeTimeout < 0 {
		err = multierr.Append(err, fmt.Errorf("handshake_timeout must not be negative"))
	}
	if _, qerr := usecases.ParseQueueMode(c.Queue.Mode); qerr != nil {
		err = multierr.Append(err, fmt.Errorf("queue.mode: %w", qerr))
	}
	if c.Queue.Capacity < 0 {
		err = multierr.Append(err, fmt.Errorf("queue.capacity must not be negative"))
	}
	if _, lerr := logging.ParseLevel(c.Log.Level); lerr != nil {
		err = multierr.Append(err, fmt.Errorf("log.level: %w", lerr))
	}
	return err
}

// QueueMode returns the parsed queue mode. Call after Validate.
func (c *Config) QueueMode() usecases.QueueMode {
	mode, err := usecases.ParseQueueMode(c.Queue.Mode)
	if err != nil {
		return usecases.QueueEvents
	}
	return mode
}

// LoggerConfig converts the log section to a logging.Config.
func (c *Config) LoggerConfig() logging.Config {
	lc := logging.DefaultConfig()
	if c.Log.Development {
		lc = logging.DevelopmentConfig()
	}
	if level, err := logging.ParseLevel(c.Log.Level); err == nil && c.Log.Level != "" {
		lc.Level = level
	}
	return lc
}
