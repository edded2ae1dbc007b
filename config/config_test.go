package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hookrelay/hookrelay/config"
	"github.com/hookrelay/hookrelay/replay"
)

func TestGetConfig(t *testing.T) {
	t.Run("defaults produce the reference replay policy", func(t *testing.T) {
		cfg, err := config.GetConfig()
		require.NoError(t, err)

		assert.Equal(t, "8080", cfg.Port)
		assert.Equal(t, "GitHub", cfg.Provider)
		assert.Equal(t, replay.DefaultOptions(), cfg.ReplayOptions())
	})

	t.Run("environment overrides the defaults", func(t *testing.T) {
		t.Setenv("WEBHOOK_PROVIDER", "Gitea")
		t.Setenv("WEBHOOK_SECRET", "s3cr3t")
		t.Setenv("REPLAY_MAX_BACKOFF_SECONDS", "600")

		cfg, err := config.GetConfig()
		require.NoError(t, err)

		assert.Equal(t, "Gitea", cfg.Provider)
		assert.Equal(t, "s3cr3t", cfg.WebhookSecret)
		assert.Equal(t, 10*time.Minute, cfg.ReplayOptions().MaxBackoff)
	})

	t.Run("invalid replay policy fails at load time", func(t *testing.T) {
		t.Setenv("REPLAY_MAX_RETRY_ATTEMPTS", "0")

		_, err := config.GetConfig()
		require.Error(t, err)
	})
}
