package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eltechnic0/arduino-control/internal/config"
)

func TestRunInitWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, runInit(path))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.Default().Device.BaseURL, cfg.Device.BaseURL)
	assert.Equal(t, config.Default().Panel.CommandHistoryMax, cfg.Panel.CommandHistoryMax)

	err = runInit(path)
	assert.ErrorContains(t, err, "already exists")
}
