package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/moneymap/internal/store"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "moneymap.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 50, cfg.Editor.HistoryLimit)
	assert.Equal(t, 28.0, cfg.Editor.GridSize)
	assert.Equal(t, 220.0, cfg.Editor.CardWidth)
	assert.Equal(t, 84.0, cfg.Editor.CardHeight)
	assert.Equal(t, ":8080", cfg.HTTPAddr())
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
[server]
http_port = 9000
shutdown_timeout = "5s"

[database]
driver = "sqlite"
path = "/var/lib/moneymap.db"

[redis]
enabled = true
addr = "redis:6379"

[editor]
grid_size = 14
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.HTTPPort)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, store.DriverPure, cfg.Database.Driver)
	assert.Equal(t, "/var/lib/moneymap.db", cfg.Database.Path)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis:6379", cfg.RedisOptions().Addr)
	assert.Equal(t, 14.0, cfg.EditorOptions().GridSize)
	// Untouched keys keep their defaults.
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 220.0, cfg.Editor.CardWidth)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "[server]\nhttp_port = 9000\n")
	t.Setenv("MONEYMAP_SERVER_HTTP_PORT", "9100")
	t.Setenv("MONEYMAP_LOG_LEVEL", "debug")
	t.Setenv("MONEYMAP_EDITOR_HISTORY_LIMIT", "10")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.HTTPPort)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 10, cfg.EditorOptions().HistoryLimit)
}

func TestLoad_UnknownKey(t *testing.T) {
	path := writeFile(t, "[server]\nhttp_prot = 9000\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.http_prot")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("MONEYMAP_LOG_LEVEL", "loud")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestValidate_CollectsAll(t *testing.T) {
	cfg := Default()
	cfg.Server.HTTPPort = 0
	cfg.Database.Driver = "postgres"
	cfg.Redis.Enabled = true
	cfg.Redis.Addr = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid HTTP port")
	assert.Contains(t, err.Error(), "unsupported database driver")
	assert.Contains(t, err.Error(), "redis address is required")
}
