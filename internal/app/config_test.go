package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, "info", cfg.Server.LogLevel)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.True(t, cfg.Board.PresenceSweep.Enabled)
	require.Equal(t, "@every 1m", cfg.Board.PresenceSweep.Schedule)
	require.True(t, cfg.Monitoring.Prometheus.Enabled)
	require.Equal(t, "/metrics", cfg.Monitoring.Prometheus.Endpoint)
}

func TestLoadConfigReadsFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte(`
server:
  port: 9100
  log_level: debug
database:
  driver: postgres
  postgres:
    host: db.internal
    port: 5433
    database: retro
    username: retro
board:
  presence_sweep:
    enabled: false
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), content, 0o600))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	require.Equal(t, 9100, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)
	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Equal(t, "db.internal", cfg.Database.Postgres.Host)
	require.Equal(t, 5433, cfg.Database.Postgres.Port)
	require.False(t, cfg.Board.PresenceSweep.Enabled)
}

func TestDatabaseSettingsMapsDriverFields(t *testing.T) {
	cfg := DatabaseConfig{
		Driver: "postgres",
		Postgres: DBAuthConfig{
			Host:     "db.internal",
			Port:     5433,
			Database: "retro",
			Username: "retro",
			Password: "secret",
		},
	}

	settings := cfg.DatabaseSettings()
	require.Equal(t, "postgres", settings.Driver)
	require.Equal(t, "db.internal", settings.Host)
	require.Equal(t, 5433, settings.Port)
	require.Equal(t, "retro", settings.Name)
	require.Equal(t, "retro", settings.User)
	require.Equal(t, "secret", settings.Password)

	sqlite := DatabaseConfig{Driver: "sqlite", Path: "./data/retro.sqlite"}
	require.Equal(t, "./data/retro.sqlite", sqlite.DatabaseSettings().Path)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("RETROBOARD_SERVER_PORT", "9200")
	t.Setenv("RETROBOARD_DATABASE_DRIVER", "mysql")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 9200, cfg.Server.Port)
	require.Equal(t, "mysql", cfg.Database.Driver)
}
