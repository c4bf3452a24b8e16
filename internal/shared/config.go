package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

//go:embed config.example.toml
var exampleConf []byte

// EnvPrefix prefixes every environment override, e.g. RECORDKIT_DATABASE_DSN.
const EnvPrefix = "RECORDKIT_"

// Config represents the application configuration loaded from a TOML or YAML file.
type Config struct {
	Database  DatabaseConfig  `toml:"database" yaml:"database" envPrefix:"DATABASE_"`
	Server    ServerConfig    `toml:"server" yaml:"server" envPrefix:"SERVER_"`
	Retention RetentionConfig `toml:"retention" yaml:"retention" envPrefix:"RETENTION_"`
	Log       LogConfig       `toml:"log" yaml:"log" envPrefix:"LOG_"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Driver         string `toml:"driver" yaml:"driver" env:"DRIVER"`
	DSN            string `toml:"dsn" yaml:"dsn" env:"DSN"`
	MaxOpenConns   int    `toml:"max_open_conns" yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns   int    `toml:"max_idle_conns" yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	OperatingQueue string `toml:"operating_queue" yaml:"operating_queue" env:"OPERATING_QUEUE"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host      string  `toml:"host" yaml:"host" env:"HOST"`
	Port      int     `toml:"port" yaml:"port" env:"PORT"`
	RateLimit float64 `toml:"rate_limit" yaml:"rate_limit" env:"RATE_LIMIT"` // requests per second, 0 disables limiting
	Burst     int     `toml:"burst" yaml:"burst" env:"BURST"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RetentionConfig controls the scheduled purge of old notes.
type RetentionConfig struct {
	Schedule   string        `toml:"schedule" yaml:"schedule" env:"SCHEDULE"` // cron spec, empty disables the job
	MaxAge     time.Duration `toml:"max_age" yaml:"max_age" env:"MAX_AGE"`
	KeepPinned bool          `toml:"keep_pinned" yaml:"keep_pinned" env:"KEEP_PINNED"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `toml:"level" yaml:"level" env:"LEVEL"`
	File  string `toml:"file" yaml:"file" env:"FILE"` // File receives logs while the TUI runs
}

// LoadConfig reads a configuration file on top of the defaults and applies environment overrides.
// Files ending in .yaml or .yml are parsed as YAML, anything else as TOML.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if isYAML(path) {
		err = yaml.Unmarshal(data, config)
	} else {
		err = toml.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadConfigOrDefault loads path when it exists and falls back to the defaults with
// environment overrides otherwise.
func LoadConfigOrDefault(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return LoadConfig(path)
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
	}

	config := DefaultConfig()
	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// ApplyEnv overrides fields from RECORDKIT_* environment variables.
func (c *Config) ApplyEnv() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("%w: failed to parse environment: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Validate checks the configuration for values the application cannot run with.
func (c *Config) Validate() error {
	if !slices.Contains(Drivers, c.Database.Driver) {
		return fmt.Errorf("%w: unsupported database driver %q", ErrInvalidConfig, c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("%w: database dsn is required", ErrInvalidConfig)
	}
	switch strings.ToLower(c.Database.OperatingQueue) {
	case "", "main", "background":
	default:
		return fmt.Errorf("%w: operating_queue must be main or background, got %q", ErrInvalidConfig, c.Database.OperatingQueue)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: invalid server port %d", ErrInvalidConfig, c.Server.Port)
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("%w: rate_limit cannot be negative", ErrInvalidConfig)
	}
	if c.Retention.MaxAge < 0 {
		return fmt.Errorf("%w: retention max_age cannot be negative", ErrInvalidConfig)
	}
	if c.Retention.Schedule != "" {
		if _, err := cron.ParseStandard(c.Retention.Schedule); err != nil {
			return fmt.Errorf("%w: invalid retention schedule %q: %v", ErrInvalidConfig, c.Retention.Schedule, err)
		}
	}
	if _, err := ParseLogLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile writes the default configuration to path, as YAML for .yaml/.yml paths and
// as the embedded example TOML otherwise.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	data := exampleConf
	if isYAML(path) {
		out, err := yaml.Marshal(DefaultConfig())
		if err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
		data = out
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ParseLogLevel parses a level name, defaulting to info for an empty string.
func ParseLogLevel(level string) (log.Level, error) {
	if level == "" {
		return log.InfoLevel, nil
	}
	l, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		return log.InfoLevel, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return l, nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}
