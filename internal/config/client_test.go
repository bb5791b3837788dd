package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadClientDefaults(t *testing.T) {
	cfg, err := LoadClient([]string{"-endpoint", "ws://localhost:8080/ws"})
	require.NoError(t, err)
	assert.Equal(t, 500.0, cfg.SyncRadiusMeters)
	assert.Equal(t, 2*time.Second, cfg.PublishInterval)
	assert.Equal(t, 30*time.Second, cfg.StaleAfter)
	assert.Equal(t, 5, cfg.MaxReconnectAttempts)
}

func TestLoadClientRequiresSomeEndpoint(t *testing.T) {
	_, err := LoadClient(nil)
	assert.Error(t, err)

	_, err = LoadClient([]string{"-discover"})
	assert.NoError(t, err, "discovery substitutes for an explicit endpoint")
}

func TestLoadClientFromFile(t *testing.T) {
	path := writeConfigFile(t, `{
		"endpoint": "ws://relay.lan:8080/ws",
		"sync_radius_meters": 250,
		"publish_interval_ms": 500,
		"max_reconnect_attempts": 3,
		"flag_db": "/tmp/flags.db",
		"debug": true
	}`)

	cfg, err := LoadClient([]string{"-config", path})
	require.NoError(t, err)
	assert.Equal(t, "ws://relay.lan:8080/ws", cfg.Endpoint)
	assert.Equal(t, 250.0, cfg.SyncRadiusMeters)
	assert.Equal(t, 500*time.Millisecond, cfg.PublishInterval)
	assert.Equal(t, 3, cfg.MaxReconnectAttempts)
	assert.Equal(t, "/tmp/flags.db", cfg.FlagDBPath)
	assert.True(t, cfg.Log.Debug)
	// Untouched fields keep their defaults.
	assert.Equal(t, 30*time.Second, cfg.StaleAfter)
}

func TestFlagsOverrideFile(t *testing.T) {
	path := writeConfigFile(t, `{"endpoint": "ws://from-file:8080/ws", "sync_radius_meters": 250}`)

	cfg, err := LoadClient([]string{"-config", path, "-endpoint", "ws://from-flag:8080/ws", "-radius", "100"})
	require.NoError(t, err)
	assert.Equal(t, "ws://from-flag:8080/ws", cfg.Endpoint)
	assert.Equal(t, 100.0, cfg.SyncRadiusMeters)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `{"endpoint": "ws://from-file:8080/ws"}`)
	t.Setenv("ELDRITCH_ENDPOINT", "ws://from-env:8080/ws")

	cfg, err := LoadClient([]string{"-config", path})
	require.NoError(t, err)
	assert.Equal(t, "ws://from-env:8080/ws", cfg.Endpoint)
}

func TestConfigPathFromEnv(t *testing.T) {
	path := writeConfigFile(t, `{"origin": "https://game.example.com"}`)
	t.Setenv("ELDRITCH_CONFIG", path)

	cfg, err := LoadClient(nil)
	require.NoError(t, err)
	assert.Equal(t, "https://game.example.com", cfg.Origin)
}

func TestLoadClientRejectsBadFile(t *testing.T) {
	path := writeConfigFile(t, `{not json`)
	_, err := LoadClient([]string{"-config", path})
	assert.Error(t, err)

	_, err = LoadClient([]string{"-config", filepath.Join(t.TempDir(), "missing.json")})
	assert.Error(t, err)
}

func TestLoadRelayDefaultsAndFlags(t *testing.T) {
	cfg, err := LoadRelay(nil)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 30*time.Second, cfg.HeartbeatWindow)
	assert.Equal(t, "eldritch-relay", cfg.Instance)
	assert.False(t, cfg.Advertise)

	cfg, err = LoadRelay([]string{"-addr", ":9000", "-heartbeat-window", "10s", "-advertise"})
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, 10*time.Second, cfg.HeartbeatWindow)
	assert.True(t, cfg.Advertise)
}

func TestLoadRelayAddrFromEnv(t *testing.T) {
	t.Setenv("ELDRITCH_RELAY_ADDR", ":7070")
	cfg, err := LoadRelay(nil)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Addr)
}
