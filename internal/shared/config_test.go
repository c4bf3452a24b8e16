package shared

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Driver != "sqlite3" {
			t.Errorf("expected driver sqlite3, got %s", config.Database.Driver)
		}

		if config.Database.DSN != "./recordkit.db" {
			t.Errorf("expected database dsn ./recordkit.db, got %s", config.Database.DSN)
		}

		if config.Server.Port != 3000 {
			t.Errorf("expected server port 3000, got %d", config.Server.Port)
		}

		if config.Retention.MaxAge != 720*time.Hour {
			t.Errorf("expected retention max age 720h, got %v", config.Retention.MaxAge)
		}

		if !config.Retention.KeepPinned {
			t.Error("expected keep_pinned to default to true")
		}

		if err := config.Validate(); err != nil {
			t.Errorf("default config should be valid: %v", err)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		defaultConfig := DefaultConfig()
		if config.Database.DSN != defaultConfig.Database.DSN {
			t.Errorf("created config database dsn doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("CreateConfigFile YAML", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "nested", "config.yaml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create yaml config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load yaml config: %v", err)
		}

		if config.Retention.MaxAge != 720*time.Hour {
			t.Errorf("expected max age to survive yaml round trip, got %v", config.Retention.MaxAge)
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[database]
driver = "sqlite"
dsn = "/custom/path.db"
max_open_conns = 20
operating_queue = "main"

[server]
host = "0.0.0.0"
port = 8080

[retention]
max_age = "48h"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Database.Driver != "sqlite" {
			t.Errorf("expected driver sqlite, got %s", config.Database.Driver)
		}

		if config.Database.DSN != "/custom/path.db" {
			t.Errorf("expected database dsn /custom/path.db, got %s", config.Database.DSN)
		}

		if config.Server.Port != 8080 {
			t.Errorf("expected server port 8080, got %d", config.Server.Port)
		}

		if config.Database.MaxIdleConns != 5 {
			t.Errorf("expected unset max_idle_conns to keep default 5, got %d", config.Database.MaxIdleConns)
		}

		if config.Retention.MaxAge != 48*time.Hour {
			t.Errorf("expected max age 48h, got %v", config.Retention.MaxAge)
		}
	})

	t.Run("LoadConfig YAML", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.yml")
		testConfig := `database:
  driver: postgres
  dsn: postgres://localhost/recordkit?sslmode=disable
server:
  port: 9090
log:
  level: debug
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Database.Driver != "postgres" {
			t.Errorf("expected driver postgres, got %s", config.Database.Driver)
		}
		if config.Server.Port != 9090 {
			t.Errorf("expected port 9090, got %d", config.Server.Port)
		}
		if config.Log.Level != "debug" {
			t.Errorf("expected log level debug, got %s", config.Log.Level)
		}
	})

	t.Run("Environment overrides", func(t *testing.T) {
		t.Setenv("RECORDKIT_DATABASE_DSN", ":memory:")
		t.Setenv("RECORDKIT_SERVER_PORT", "4100")
		t.Setenv("RECORDKIT_RETENTION_KEEP_PINNED", "false")
		t.Setenv("RECORDKIT_RETENTION_MAX_AGE", "1h")

		config, err := LoadConfigOrDefault(filepath.Join(t.TempDir(), "missing.toml"))
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Database.DSN != ":memory:" {
			t.Errorf("expected dsn :memory:, got %s", config.Database.DSN)
		}
		if config.Server.Port != 4100 {
			t.Errorf("expected port 4100, got %d", config.Server.Port)
		}
		if config.Retention.KeepPinned {
			t.Error("expected keep_pinned override to false")
		}
		if config.Retention.MaxAge != time.Hour {
			t.Errorf("expected max age 1h, got %v", config.Retention.MaxAge)
		}
		if config.Database.Driver != "sqlite3" {
			t.Errorf("expected untouched driver sqlite3, got %s", config.Database.Driver)
		}
	})

	t.Run("Validate", func(t *testing.T) {
		tests := []struct {
			name   string
			mutate func(*Config)
		}{
			{"unknown driver", func(c *Config) { c.Database.Driver = "oracle" }},
			{"empty dsn", func(c *Config) { c.Database.DSN = "" }},
			{"bad queue", func(c *Config) { c.Database.OperatingQueue = "sideways" }},
			{"bad port", func(c *Config) { c.Server.Port = 70000 }},
			{"negative rate", func(c *Config) { c.Server.RateLimit = -1 }},
			{"negative max age", func(c *Config) { c.Retention.MaxAge = -time.Hour }},
			{"bad level", func(c *Config) { c.Log.Level = "loud" }},
			{"bad schedule", func(c *Config) { c.Retention.Schedule = "every tuesday" }},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				config := DefaultConfig()
				tt.mutate(config)
				if err := config.Validate(); err == nil {
					t.Error("expected validation error")
				}
			})
		}
	})

	t.Run("ParseLogLevel", func(t *testing.T) {
		l, err := ParseLogLevel("")
		if err != nil || l != log.InfoLevel {
			t.Errorf("expected info level for empty string, got %v (%v)", l, err)
		}

		l, err = ParseLogLevel("DEBUG")
		if err != nil || l != log.DebugLevel {
			t.Errorf("expected debug level, got %v (%v)", l, err)
		}
	})

	t.Run("ServerConfig Addr", func(t *testing.T) {
		s := ServerConfig{Host: "127.0.0.1", Port: 3000}
		if s.Addr() != "127.0.0.1:3000" {
			t.Errorf("unexpected addr %s", s.Addr())
		}
	})
}
