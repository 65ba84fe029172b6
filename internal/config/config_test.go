package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Sternrassler/modelzoo-client/pkg/aggregate"
	"github.com/Sternrassler/modelzoo-client/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"ZOO_BASE_URL", "ZOO_WORKSPACE", "ZOO_COLLECTION", "USER_AGENT",
	"PAGE_SIZE", "MAX_PAGES", "REQUEST_TIMEOUT", "RATE_LIMIT", "RATE_BURST",
	"REDIS_URL", "PORT", "LOG_LEVEL", "LOG_PRETTY", "TOP_SCOPE", "TOP_LIMIT",
	"SNAPSHOT_PATH",
}

// clearEnv blanks every variable Load reads; getEnv treats "" as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://hypha.aicell.io", cfg.BaseURL)
	assert.Equal(t, "bioimage-io", cfg.Workspace)
	assert.Equal(t, "bioimage.io", cfg.Collection)
	assert.Equal(t, 12, cfg.PageSize)
	assert.Equal(t, 500, cfg.MaxPages)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 10.0, cfg.RateLimit)
	assert.Empty(t, cfg.RedisURL)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, logging.LevelInfo, cfg.LogLevel)
	assert.False(t, cfg.LogPretty)
	assert.Equal(t, aggregate.ScopeModels, cfg.TopScope)
	assert.Equal(t, aggregate.DefaultLimit, cfg.TopLimit)
	assert.Empty(t, cfg.SnapshotPath)
}

func TestLoad_FromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("ZOO_BASE_URL", "http://localhost:9527")
	t.Setenv("ZOO_WORKSPACE", "ws")
	t.Setenv("PAGE_SIZE", "24")
	t.Setenv("REQUEST_TIMEOUT", "5s")
	t.Setenv("RATE_LIMIT", "0")
	t.Setenv("LOG_LEVEL", "warning")
	t.Setenv("LOG_PRETTY", "true")
	t.Setenv("TOP_SCOPE", "all")
	t.Setenv("PORT", "9000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9527", cfg.BaseURL)
	assert.Equal(t, "ws", cfg.Workspace)
	assert.Equal(t, 24, cfg.PageSize)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Zero(t, cfg.RateLimit)
	assert.Equal(t, logging.LevelWarn, cfg.LogLevel)
	assert.True(t, cfg.LogPretty)
	assert.Equal(t, aggregate.ScopeAllKinds, cfg.TopScope)
	assert.Equal(t, ":9000", cfg.Addr())
}

func TestLoad_EnvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("ZOO_COLLECTION=sandbox\nMAX_PAGES=3\n"), 0o644))

	// godotenv sets the variables with os.Setenv; restore them afterwards
	t.Setenv("ZOO_COLLECTION", "")
	t.Setenv("MAX_PAGES", "")
	require.NoError(t, os.Unsetenv("ZOO_COLLECTION"))
	require.NoError(t, os.Unsetenv("MAX_PAGES"))

	cfg, err := Load(path, filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "sandbox", cfg.Collection)
	assert.Equal(t, 3, cfg.MaxPages)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"page size not a number", "PAGE_SIZE", "twelve"},
		{"page size zero", "PAGE_SIZE", "0"},
		{"max pages negative", "MAX_PAGES", "-1"},
		{"bad duration", "REQUEST_TIMEOUT", "soon"},
		{"negative rate", "RATE_LIMIT", "-2"},
		{"bad rate", "RATE_LIMIT", "fast"},
		{"bad log level", "LOG_LEVEL", "verbose"},
		{"bad pretty flag", "LOG_PRETTY", "maybe"},
		{"bad scope", "TOP_SCOPE", "datasets"},
		{"bad base url", "ZOO_BASE_URL", "not a url"},
		{"bad port", "PORT", "http"},
		{"port out of range", "PORT", "70000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	err := Config{}.Validate()
	require.Error(t, err)
	for _, key := range []string{"ZOO_BASE_URL", "ZOO_WORKSPACE", "ZOO_COLLECTION", "PAGE_SIZE", "PORT"} {
		assert.Contains(t, err.Error(), key)
	}
}
