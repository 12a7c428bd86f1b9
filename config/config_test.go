package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.Server.HTTPAddr)
	assert.Contains(t, cfg.Server.AllowOrigins, "http://localhost:3000")
	assert.Equal(t, 120*time.Second, cfg.Agent.Timeout.Std())
	assert.True(t, cfg.Monitor.Enabled)
	assert.False(t, cfg.Relay.Enabled)
	assert.Equal(t, "forge:events", cfg.Relay.Channel)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  http_addr: ":9000"
  allow_origins:
    - "https://forge.example.com"
  timeout: 10s
agent:
  endpoint: "http://agents:8100/process"
  api_key: "yaml-key"
relay:
  enabled: true
  addr: "redis:6379"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.HTTPAddr)
	assert.Equal(t, []string{"https://forge.example.com"}, cfg.Server.AllowOrigins)
	assert.Equal(t, 10*time.Second, cfg.Server.Timeout.Std())
	assert.Equal(t, "http://agents:8100/process", cfg.Agent.Endpoint)
	assert.Equal(t, "yaml-key", cfg.Agent.APIKey)
	assert.True(t, cfg.Relay.Enabled)
	assert.Equal(t, "redis:6379", cfg.Relay.Addr)
	// 未覆盖的段保持默认值
	assert.Equal(t, ":9091", cfg.Monitor.Addr)
}

func TestLoadAPIKeyEnvFallback(t *testing.T) {
	t.Setenv("FORGE_AGENT_API_KEY", "env-key")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("agent:\n  endpoint: \"http://x/process\"\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.Agent.APIKey)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
