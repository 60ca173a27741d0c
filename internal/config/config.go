package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v10"
	"github.com/redis/go-redis/v9"

	"github.com/roach88/moneymap/internal/canvas"
	"github.com/roach88/moneymap/internal/graph"
	"github.com/roach88/moneymap/internal/history"
	"github.com/roach88/moneymap/internal/store"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "MONEYMAP_"

// Config holds all moneymap configuration.
type Config struct {
	Server   ServerConfig   `toml:"server" envPrefix:"SERVER_"`
	Log      LogConfig      `toml:"log" envPrefix:"LOG_"`
	Database DatabaseConfig `toml:"database" envPrefix:"DB_"`
	Redis    RedisConfig    `toml:"redis" envPrefix:"REDIS_"`
	Editor   EditorConfig   `toml:"editor" envPrefix:"EDITOR_"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	HTTPPort        int           `toml:"http_port" env:"HTTP_PORT"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level string `toml:"level" env:"LEVEL"`
}

// DatabaseConfig selects the SQLite driver and file.
type DatabaseConfig struct {
	Driver string `toml:"driver" env:"DRIVER"` // "sqlite3" (cgo) or "sqlite" (pure Go)
	Path   string `toml:"path" env:"PATH"`
}

// RedisConfig configures audit event fan-out to Redis Streams.
type RedisConfig struct {
	Enabled     bool          `toml:"enabled" env:"ENABLED"`
	Addr        string        `toml:"addr" env:"ADDR"`
	Password    string        `toml:"password" env:"PASSWORD"`
	DB          int           `toml:"db" env:"DB"`
	Stream      string        `toml:"stream" env:"STREAM"`
	MaxLen      int64         `toml:"max_len" env:"MAX_LEN"`
	DialTimeout time.Duration `toml:"dial_timeout" env:"DIAL_TIMEOUT"`
}

// EditorConfig sets editor history depth and canvas geometry.
type EditorConfig struct {
	HistoryLimit int     `toml:"history_limit" env:"HISTORY_LIMIT"`
	GridSize     float64 `toml:"grid_size" env:"GRID_SIZE"`
	CardWidth    float64 `toml:"card_width" env:"CARD_WIDTH"`
	CardHeight   float64 `toml:"card_height" env:"CARD_HEIGHT"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:        8080,
			ShutdownTimeout: 30 * time.Second,
		},
		Log: LogConfig{Level: "info"},
		Database: DatabaseConfig{
			Driver: store.DriverCGo,
			Path:   "moneymap.db",
		},
		Redis: RedisConfig{
			Addr:        "localhost:6379",
			Stream:      "moneymap:events",
			MaxLen:      10000,
			DialTimeout: 5 * time.Second,
		},
		Editor: EditorConfig{
			HistoryLimit: history.DefaultLimit,
			GridSize:     graph.DefaultGridSize,
			CardWidth:    graph.DefaultCardWidth,
			CardHeight:   graph.DefaultCardHeight,
		},
	}
}

// Load builds the configuration from defaults, the TOML file at path (if
// path is non-empty) and the environment. Unknown keys in the file are an
// error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.decodeFile(path); err != nil {
			return nil, err
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) decodeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	md, err := toml.Decode(string(data), c)
	if err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return fmt.Errorf("parse config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks the configuration and returns every problem found.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.HTTPPort < 1 || c.Server.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort))
	}
	if c.Server.ShutdownTimeout < 0 {
		errs = append(errs, fmt.Errorf("shutdown timeout must not be negative"))
	}
	if !validLogLevels[c.Log.Level] {
		errs = append(errs, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level))
	}
	if c.Database.Driver != store.DriverCGo && c.Database.Driver != store.DriverPure {
		errs = append(errs, fmt.Errorf("unsupported database driver: %q (must be %q or %q)",
			c.Database.Driver, store.DriverCGo, store.DriverPure))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database path is required"))
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis address is required when redis is enabled"))
	}
	if c.Redis.MaxLen < 0 {
		errs = append(errs, errors.New("redis max_len must not be negative"))
	}
	if c.Editor.HistoryLimit < 1 {
		errs = append(errs, errors.New("editor history limit must be at least 1"))
	}
	if c.Editor.GridSize <= 0 || c.Editor.CardWidth <= 0 || c.Editor.CardHeight <= 0 {
		errs = append(errs, errors.New("editor grid and card sizes must be positive"))
	}

	return errors.Join(errs...)
}

// HTTPAddr returns the listen address.
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.Server.HTTPPort)
}

// EditorOptions returns canvas options for the configured geometry.
func (c *Config) EditorOptions() canvas.Options {
	opts := canvas.DefaultOptions()
	opts.HistoryLimit = c.Editor.HistoryLimit
	opts.GridSize = c.Editor.GridSize
	opts.CardWidth = c.Editor.CardWidth
	opts.CardHeight = c.Editor.CardHeight
	return opts
}

// RedisOptions returns client options for the configured server.
func (c *Config) RedisOptions() *redis.Options {
	return &redis.Options{
		Addr:        c.Redis.Addr,
		Password:    c.Redis.Password,
		DB:          c.Redis.DB,
		DialTimeout: c.Redis.DialTimeout,
	}
}
