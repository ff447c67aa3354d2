package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLogLevel(t *testing.T) {
	assert.Equal(t, "info", Default().LogLevel)
}

func TestLoadAppliesYAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "lcod.yaml"), []byte("log_level: debug\ncache_dir: /tmp/yaml-cache\n"), 0o644)
	require.NoError(t, err)

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/tmp/yaml-cache", cfg.CacheDir)

	t.Setenv("LCOD_LOG_LEVEL", "error")
	cfg, err = Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.LogLevel)
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
}
