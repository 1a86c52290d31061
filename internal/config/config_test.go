package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "strata.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeFile(t, `
store = "redis"
log_level = "debug"

[redis]
addr = "cache:6379"
ttl = "24h"

[mcp]
port = 9000
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, StoreRedis, cfg.Store)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
	assert.Equal(t, 9000, cfg.MCP.Port)
	assert.Empty(t, cfg.Dir, "defaults are applied separately")

	ttl, err := cfg.RedisTTL()
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, ttl)
	assert.NoError(t, cfg.WithDefaults().Validate())
}

func TestLoad_Missing(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err, "the default file is optional")
	assert.Equal(t, Config{}, cfg)

	_, err = Load("nope.toml")
	assert.Error(t, err, "an explicit file must exist")
}

func TestLoad_Malformed(t *testing.T) {
	_, err := Load(writeFile(t, `store = [`))
	assert.Error(t, err)
}

func TestWithDefaults(t *testing.T) {
	cfg := Config{Store: StoreSQLite}.WithDefaults()
	assert.Equal(t, StoreSQLite, cfg.Store)
	assert.Equal(t, filepath.Join(".strata", "pipelines"), cfg.Dir)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 50, cfg.HistoryLimit)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"unknown store", func(c *Config) { c.Store = "postgres" }, true},
		{"unknown level", func(c *Config) { c.LogLevel = "chatty" }, true},
		{"port out of range", func(c *Config) { c.MCP.Port = 70000 }, true},
		{"bad ttl", func(c *Config) { c.Redis.TTL = "soon" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{}.WithDefaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
