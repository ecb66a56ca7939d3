// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML loading, env var expansion, defaults, and duration parsing

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
server:
  http_addr: "0.0.0.0:8080"
  grpc_addr: "0.0.0.0:50051"

database:
  path: "./test.db"

auth:
  jwt_secret: "s3cret"

session:
  welcome_message: "Hello there"
  request_timeout: "3s"

events:
  enabled: true
  url: "amqp://localhost:5672/"
  exchange: "acme.events"

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "0.0.0.0:8080" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "0.0.0.0:8080")
	}
	if cfg.Server.GRPCAddr != "0.0.0.0:50051" {
		t.Errorf("Server.GRPCAddr = %q, want %q", cfg.Server.GRPCAddr, "0.0.0.0:50051")
	}
	if cfg.Database.Path != "./test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "./test.db")
	}
	if cfg.Auth.JWTSecret != "s3cret" {
		t.Errorf("Auth.JWTSecret = %q, want %q", cfg.Auth.JWTSecret, "s3cret")
	}
	if cfg.Session.WelcomeMessage != "Hello there" {
		t.Errorf("Session.WelcomeMessage = %q, want %q", cfg.Session.WelcomeMessage, "Hello there")
	}
	if cfg.Session.RequestTimeout != 3*time.Second {
		t.Errorf("Session.RequestTimeout = %v, want %v", cfg.Session.RequestTimeout, 3*time.Second)
	}
	if !cfg.Events.Enabled || cfg.Events.URL != "amqp://localhost:5672/" || cfg.Events.Exchange != "acme.events" {
		t.Errorf("Events = %+v, unexpected", cfg.Events)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v, unexpected", cfg.Logging)
	}
}

func TestLoad_Defaults(t *testing.T) {
	configPath := writeConfig(t, `
database:
  path: "./test.db"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != DefaultHTTPAddr {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, DefaultHTTPAddr)
	}
	if cfg.Server.GRPCAddr != "" {
		t.Errorf("Server.GRPCAddr = %q, want empty", cfg.Server.GRPCAddr)
	}
	if cfg.Session.WelcomeMessage != "Hi, how may I help you?" {
		t.Errorf("Session.WelcomeMessage = %q", cfg.Session.WelcomeMessage)
	}
	if cfg.Session.RequestTimeout != DefaultRequestTimeout {
		t.Errorf("Session.RequestTimeout = %v, want %v", cfg.Session.RequestTimeout, DefaultRequestTimeout)
	}
	if cfg.Events.Enabled {
		t.Error("Events.Enabled should default to false")
	}
	if cfg.Events.Exchange != DefaultEventsExchange {
		t.Errorf("Events.Exchange = %q, want %q", cfg.Events.Exchange, DefaultEventsExchange)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("Logging = %+v, want info/text", cfg.Logging)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_CONNECT_SECRET", "from-env")
	t.Setenv("TEST_CONNECT_DB", "/tmp/env.db")

	configPath := writeConfig(t, `
database:
  path: "${TEST_CONNECT_DB}"
auth:
  jwt_secret: "${TEST_CONNECT_SECRET}"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/tmp/env.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/env.db")
	}
	if cfg.Auth.JWTSecret != "from-env" {
		t.Errorf("Auth.JWTSecret = %q, want %q", cfg.Auth.JWTSecret, "from-env")
	}
}

func TestLoad_DBPathOverride(t *testing.T) {
	t.Setenv("COVEN_CONNECT_DB_PATH", "/override/connect.db")

	cfg, err := Load(writeConfig(t, "database:\n  path: \"./file.db\"\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Path != "/override/connect.db" {
		t.Errorf("Database.Path = %q, want override", cfg.Database.Path)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "server: [unclosed"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	_, err := Load(writeConfig(t, `
database:
  path: "./test.db"
session:
  request_timeout: "soon"
`))
	if err == nil {
		t.Fatal("Load() expected error for invalid duration")
	}
	if !strings.Contains(err.Error(), "request_timeout") {
		t.Errorf("error = %v, want mention of request_timeout", err)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{Database: DatabaseConfig{Path: "x.db"}}
		cfg.applyDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing database path", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: "database.path"},
		{name: "missing http addr", mutate: func(c *Config) { c.Server.HTTPAddr = "" }, wantErr: "server.http_addr"},
		{name: "negative timeout", mutate: func(c *Config) { c.Session.RequestTimeout = -time.Second }, wantErr: "request_timeout"},
		{name: "events without url", mutate: func(c *Config) { c.Events.Enabled = true }, wantErr: "events.url"},
		{name: "bad log level", mutate: func(c *Config) { c.Logging.Level = "loud" }, wantErr: "logging.level"},
		{name: "bad log format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_EXPAND_A", "alpha")

	tests := []struct {
		in   string
		want string
	}{
		{"${TEST_EXPAND_A}", "alpha"},
		{"pre-${TEST_EXPAND_A}-post", "pre-alpha-post"},
		{"${TEST_EXPAND_UNSET_VAR}", ""},
		{"no vars", "no vars"},
		{"$TEST_EXPAND_A", "$TEST_EXPAND_A"},
	}

	for _, tt := range tests {
		if got := expandEnvVars(tt.in); got != tt.want {
			t.Errorf("expandEnvVars(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParse_DefaultYAML(t *testing.T) {
	t.Setenv("HOME", "/home/test")
	t.Setenv("COVEN_CONNECT_JWT_SECRET", "")
	t.Setenv("COVEN_CONNECT_DB_PATH", "")

	cfg, err := Parse([]byte(DefaultYAML))
	if err != nil {
		t.Fatalf("Parse(DefaultYAML) error = %v", err)
	}
	if cfg.Database.Path != "/home/test/.local/share/coven/connect.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
}
