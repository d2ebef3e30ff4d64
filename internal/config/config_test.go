package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15, cfg.Panel.CommandHistoryMax)
	assert.Equal(t, 10, cfg.Panel.ScriptHistoryMax)
	assert.Equal(t, []int{3, 9, 10, 11}, cfg.Panel.VSetPins)
	assert.Equal(t, []int{0, 1, 2, 3}, cfg.Panel.VReadPins)
	assert.Equal(t, 2*time.Second, cfg.Panel.FlashTimeout)
	require.NoError(t, Validate(cfg))
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `
server:
  port: 9000
device:
  base_url: http://arduino.local:8081
  status_interval: 0s
panel:
  command_history_max: 20
  script_history_max: 5
  grid:
    right: 3
    top: 9
    left: 10
    bottom: 11
    settling: 200
    resolution: 10
    autosend: true
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.ConfigPath)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host, "unset keys keep defaults")
	assert.Equal(t, "http://arduino.local:8081", cfg.Device.BaseURL)
	assert.Zero(t, cfg.Device.StatusInterval)
	assert.Equal(t, 20, cfg.Panel.CommandHistoryMax)
	assert.Equal(t, 5, cfg.Panel.ScriptHistoryMax)
	assert.Equal(t, 200, cfg.Panel.Grid.Settling)
	assert.True(t, cfg.Panel.Grid.Autosend)
}

func TestLoadExplicitMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [1, 2"), 0644))
	_, err := Load(path)
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ARDUINO_CONTROL_PORT", "9100")
	t.Setenv("ARDUINO_CONTROL_BACKEND_URL", "http://10.0.0.5:8081/")
	t.Setenv("ARDUINO_CONTROL_LOG_LEVEL", "debug")
	t.Setenv("ARDUINO_CONTROL_STATUS_INTERVAL", "1s")

	cfg := Default()
	ApplyEnvOverrides(cfg)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "http://10.0.0.5:8081", cfg.Device.BaseURL)
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, time.Second, cfg.Device.StatusInterval)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"empty url", func(c *Config) { c.Device.BaseURL = "" }},
		{"bad scheme", func(c *Config) { c.Device.BaseURL = "ftp://host" }},
		{"zero history", func(c *Config) { c.Panel.CommandHistoryMax = 0 }},
		{"zero script history", func(c *Config) { c.Panel.ScriptHistoryMax = 0 }},
		{"grid pin not output", func(c *Config) { c.Panel.Grid.Right = 5 }},
		{"zero resolution", func(c *Config) { c.Panel.Grid.Resolution = 0 }},
		{"bad log format", func(c *Config) { c.Logger.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, Validate(cfg))
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := Default()
	cfg.Panel.CommandHistoryMax = 12
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 12, loaded.Panel.CommandHistoryMax)
}
