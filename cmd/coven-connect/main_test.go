package main

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-connect/internal/auth"
	"github.com/2389/coven-connect/internal/config"
	"github.com/2389/coven-connect/internal/store"
)

const testSecret = "test-secret-that-is-at-least-32-bytes-long"

// writeTestConfig points COVEN_CONNECT_CONFIG at a fresh config file and
// returns the database path it uses.
func writeTestConfig(t *testing.T, httpAddr, secret string) string {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "data", "connect.db")
	content := "server:\n" +
		"  http_addr: \"" + httpAddr + "\"\n" +
		"database:\n" +
		"  path: \"" + dbPath + "\"\n" +
		"auth:\n" +
		"  jwt_secret: \"" + secret + "\"\n" +
		"logging:\n" +
		"  level: \"error\"\n"
	path := filepath.Join(dir, "connect.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	t.Setenv("COVEN_CONNECT_CONFIG", path)
	t.Setenv("COVEN_CONNECT_DB_PATH", "")
	return dbPath
}

func TestGetConfigPath(t *testing.T) {
	t.Run("env override", func(t *testing.T) {
		t.Setenv("COVEN_CONNECT_CONFIG", "/etc/coven/connect.yaml")
		assert.Equal(t, "/etc/coven/connect.yaml", getConfigPath())
	})

	t.Run("xdg config home", func(t *testing.T) {
		t.Setenv("COVEN_CONNECT_CONFIG", "")
		t.Setenv("XDG_CONFIG_HOME", "/xdg")
		assert.Equal(t, filepath.Join("/xdg", "coven", "connect.yaml"), getConfigPath())
	})

	t.Run("home fallback", func(t *testing.T) {
		t.Setenv("COVEN_CONNECT_CONFIG", "")
		t.Setenv("XDG_CONFIG_HOME", "")
		t.Setenv("HOME", "/home/tester")
		assert.Equal(t, filepath.Join("/home/tester", ".config", "coven", "connect.yaml"), getConfigPath())
	})
}

func TestRunInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "connect.yaml")
	t.Setenv("COVEN_CONNECT_CONFIG", path)

	var out bytes.Buffer
	require.NoError(t, runInit(nil, &out))
	assert.Contains(t, out.String(), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultYAML, string(data))

	err = runInit(nil, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	require.NoError(t, runInit([]string{"--force"}, &out))
}

func TestRunInit_RejectsUnknownFlag(t *testing.T) {
	t.Setenv("COVEN_CONNECT_CONFIG", filepath.Join(t.TempDir(), "connect.yaml"))
	assert.Error(t, runInit([]string{"--bogus"}, &bytes.Buffer{}))
}

func TestRunSeed(t *testing.T) {
	dbPath := writeTestConfig(t, "127.0.0.1:0", "")

	seedPath := filepath.Join(t.TempDir(), "seed.toml")
	require.NoError(t, os.WriteFile(seedPath, []byte(`
[[companies]]
name = "Acme"
public_key = "acme"

  [[companies.agents]]
  name = "Ada"
  available = true
`), 0644))

	ctx := context.Background()
	var out bytes.Buffer
	require.NoError(t, runSeed(ctx, []string{"--file", seedPath}, &out))
	assert.Contains(t, out.String(), "Seeded 1 of 1")

	out.Reset()
	require.NoError(t, runSeed(ctx, []string{"--file=" + seedPath}, &out))
	assert.Contains(t, out.String(), "Seeded 0 of 1")

	s, err := store.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	company, err := s.FindCompanyByKey(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, company.Agents, 1)
	assert.Equal(t, "Ada", company.Agents[0].Name)
}

func TestRunSeed_RequiresFile(t *testing.T) {
	err := runSeed(context.Background(), nil, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--file")
}

func TestRunToken(t *testing.T) {
	writeTestConfig(t, "127.0.0.1:0", testSecret)

	var out bytes.Buffer
	require.NoError(t, runToken([]string{"--subject", "ops", "--ttl", "1h"}, &out))

	verifier, err := auth.NewJWTVerifier([]byte(testSecret))
	require.NoError(t, err)
	subject, err := verifier.Verify(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, "ops", subject)
}

func TestRunToken_Errors(t *testing.T) {
	t.Run("missing subject", func(t *testing.T) {
		writeTestConfig(t, "127.0.0.1:0", testSecret)
		err := runToken(nil, &bytes.Buffer{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--subject")
	})

	t.Run("no secret configured", func(t *testing.T) {
		writeTestConfig(t, "127.0.0.1:0", "")
		err := runToken([]string{"--subject", "ops"}, &bytes.Buffer{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "jwt_secret")
	})

	t.Run("weak secret", func(t *testing.T) {
		writeTestConfig(t, "127.0.0.1:0", "short")
		err := runToken([]string{"--subject", "ops"}, &bytes.Buffer{})
		assert.ErrorIs(t, err, auth.ErrWeakSecret)
	})
}

func TestRunHealth(t *testing.T) {
	status := http.StatusOK
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health/ready", r.URL.Path)
		w.WriteHeader(status)
	}))
	defer srv.Close()

	writeTestConfig(t, strings.TrimPrefix(srv.URL, "http://"), "")

	var out bytes.Buffer
	require.NoError(t, runHealth(context.Background(), &out))
	assert.Equal(t, "healthy\n", out.String())

	status = http.StatusServiceUnavailable
	err := runHealth(context.Background(), &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("WARN"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel(""))
}

func TestColorHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newHandler(config.LoggingConfig{Level: "info", Format: "text"}, &buf))

	logger.Debug("hidden")
	logger.With("component", "session").WithGroup("req").Info("session ready", "company", "acme")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "session ready")
	assert.Contains(t, out, "component=")
	assert.Contains(t, out, "req.company=")
	assert.Contains(t, out, "acme")
}

func TestJSONHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newHandler(config.LoggingConfig{Level: "warn", Format: "json"}, &buf))

	logger.Info("skipped")
	logger.Warn("kept", "k", "v")

	assert.NotContains(t, buf.String(), "skipped")
	assert.Contains(t, buf.String(), `"msg":"kept"`)
	assert.Contains(t, buf.String(), `"k":"v"`)
}
