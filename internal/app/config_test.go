package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigValidation(t *testing.T) {
	t.Run("script path is required", func(t *testing.T) {
		_, err := NewConfig(Config{})
		assert.ErrorContains(t, err, "ScriptPath is a required configuration field")
	})

	t.Run("defaults applied", func(t *testing.T) {
		cfg, err := NewConfig(Config{ScriptPath: "scenes/"})
		require.NoError(t, err)
		assert.Equal(t, 60, cfg.FrameRate)
		assert.Equal(t, int64(1), cfg.Seed)
		assert.Equal(t, 0.0, cfg.MaxSeconds, "zero means uncapped")
	})

	t.Run("negative cap rejected", func(t *testing.T) {
		_, err := NewConfig(Config{ScriptPath: "scenes/", MaxSeconds: -5})
		assert.ErrorContains(t, err, "must not be negative")
	})
}

func TestNewConfigEnvOverrides(t *testing.T) {
	t.Setenv("STAGECUE_LOG_LEVEL", "debug")
	t.Setenv("STAGECUE_LOG_FORMAT", "json")
	t.Setenv("STAGECUE_REMOTE_URL", "http://localhost:3000")
	t.Setenv("STAGECUE_WORLD", "env-world.yaml")

	cfg, err := NewConfig(Config{
		ScriptPath: "scenes/",
		LogLevel:   "info",
		LogFormat:  "text",
	})
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "http://localhost:3000", cfg.RemoteURL)
	assert.Equal(t, "env-world.yaml", cfg.WorldPath)
}
