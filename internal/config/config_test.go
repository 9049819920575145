package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 4, cfg.MaxPlayers)
	assert.Equal(t, 90*time.Second, cfg.MatchDuration())
	assert.Equal(t, time.Second/60, cfg.TickInterval())
	assert.Empty(t, cfg.ConsulAddr)
	assert.Equal(t, "ws://localhost:8080/ws", cfg.ServerURL)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("POIPOI_ADDR", ":9000")
	t.Setenv("POIPOI_MATCH_SECONDS", "30")
	t.Setenv("POIPOI_LOG_DEV", "true")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, 30*time.Second, cfg.MatchDuration())
	assert.True(t, cfg.LogDev)
}

func TestLoad_DotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("POIPOI_NATS_URL=nats://example:4222\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("POIPOI_NATS_URL") })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "nats://example:4222", cfg.NATSURL)
}

func TestLoad_BadValue(t *testing.T) {
	t.Setenv("POIPOI_MAX_PLAYERS", "lots")
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env:")
}
