// Package config loads the CLI settings from strata.toml.
//
// Values come from three places. The file is read first, command line flags
// that were set explicitly override it, and defaults fill whatever is left.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

// DefaultFile is looked up in the working directory when no --config is given.
const DefaultFile = "strata.toml"

// Store backends.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
	StoreLoam   = "loam"
)

type Config struct {
	Store        string `toml:"store" validate:"oneof=memory file redis sqlite loam"`
	Dir          string `toml:"dir"`
	Registry     string `toml:"registry"`
	LogLevel     string `toml:"log_level" validate:"omitempty,oneof=debug info warn warning error"`
	HistoryLimit int    `toml:"history_limit" validate:"gte=0"`

	Redis  RedisConfig  `toml:"redis"`
	SQLite SQLiteConfig `toml:"sqlite"`
	HTTP   HTTPConfig   `toml:"http"`
	MCP    MCPConfig    `toml:"mcp"`
}

type RedisConfig struct {
	Addr   string `toml:"addr"`
	Prefix string `toml:"prefix"`
	TTL    string `toml:"ttl"`
}

type SQLiteConfig struct {
	Path string `toml:"path"`
}

type HTTPConfig struct {
	Addr string `toml:"addr"`
}

type MCPConfig struct {
	Port int `toml:"port" validate:"gte=0,lte=65535"`
}

// Load reads path. When path is empty DefaultFile is tried and may be absent;
// an explicit path must exist.
func Load(path string) (Config, error) {
	var cfg Config
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// WithDefaults fills every unset field.
func (c Config) WithDefaults() Config {
	if c.Store == "" {
		c.Store = StoreFile
	}
	if c.Dir == "" {
		c.Dir = filepath.Join(".strata", "pipelines")
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.HistoryLimit == 0 {
		c.HistoryLimit = 50
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.SQLite.Path == "" {
		c.SQLite.Path = filepath.Join(".strata", "strata.db")
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.MCP.Port == 0 {
		c.MCP.Port = 8081
	}
	return c
}

// Validate checks field values and the redis ttl.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s=%v fails %q", fe.Namespace(), fe.Value(), fe.Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.RedisTTL(); err != nil {
		return err
	}
	return nil
}

// RedisTTL parses Redis.TTL. Empty means no expiry.
func (c Config) RedisTTL() (time.Duration, error) {
	if c.Redis.TTL == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Redis.TTL)
	if err != nil {
		return 0, fmt.Errorf("invalid config: redis.ttl: %w", err)
	}
	return d, nil
}
