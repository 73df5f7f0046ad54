package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
app:
  name: souschef
  prompts_dir: ./prompts
robot:
  addr: 192.168.1.40:5000
  actions_to_execute: 120
  use_angle_stop: true
  simulation: false
  max_retries: 3
providers:
  openai:
    api_key: sk-test
    model: gpt-4o
    streaming: true
    enabled: true
gateways:
  telegram:
    token: 123:abc
    enabled: true
memory:
  path: /tmp/souschef.db
strict_mode: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "192.168.1.40:5000", cfg.Robot.Addr)
	assert.Equal(t, 120, cfg.Robot.ActionsToExecute)
	assert.False(t, cfg.Robot.Simulation)
	assert.True(t, cfg.StrictMode)

	name, provider := cfg.GetDefaultProvider()
	assert.Equal(t, "openai", name)
	assert.Equal(t, "gpt-4o", provider.Model)
	assert.True(t, provider.Streaming)

	tg, ok := cfg.GetTelegramConfig()
	require.True(t, ok)
	assert.Equal(t, "123:abc", tg.Token)
}

func TestLoadFillsDefaults(t *testing.T) {
	path := writeConfig(t, `
app:
  name: souschef
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:5000", cfg.Robot.Addr)
	assert.Equal(t, 150, cfg.Robot.ActionsToExecute)
	assert.True(t, cfg.Robot.Simulation, "defaults run in simulation")
	assert.Equal(t, "souschef.db", cfg.Memory.Path)
	assert.False(t, cfg.StrictMode)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestTelegramDisabled(t *testing.T) {
	path := writeConfig(t, `
gateways:
  telegram:
    token: 123:abc
    enabled: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	_, ok := cfg.GetTelegramConfig()
	assert.False(t, ok)
}
