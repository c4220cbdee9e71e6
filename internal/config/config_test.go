package config

import (
	"testing"
	"time"

	"geofeed-assist/internal/constants"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("defaults apply when nothing is set", func(t *testing.T) {
		t.Setenv("SITE_BASE_URL", "")
		t.Setenv("HEADLESS", "")
		t.Setenv("RENDER_POLL_TIMEOUT", "")

		cfg, err := Load(zerolog.Nop())
		require.NoError(t, err)

		assert.Equal(t, "https://www.geocaching.com", cfg.SiteBaseURL)
		assert.Equal(t, "https://coord.info", cfg.LinkBaseURL)
		assert.True(t, cfg.Headless)
		assert.Equal(t, constants.RenderPollInterval, cfg.PollInterval)
		assert.Equal(t, constants.RenderPollTimeout, cfg.PollTimeout)
	})

	t.Run("environment overrides defaults", func(t *testing.T) {
		t.Setenv("SITE_BASE_URL", "http://localhost:8080")
		t.Setenv("BROWSER_CONTROL_URL", "ws://localhost:9222")
		t.Setenv("HEADLESS", "false")
		t.Setenv("RENDER_POLL_TIMEOUT", "2s")

		cfg, err := Load(zerolog.Nop())
		require.NoError(t, err)

		assert.Equal(t, "http://localhost:8080", cfg.SiteBaseURL)
		assert.Equal(t, "ws://localhost:9222", cfg.BrowserControlURL)
		assert.False(t, cfg.Headless)
		assert.Equal(t, 2*time.Second, cfg.PollTimeout)
	})

	t.Run("malformed values fall back", func(t *testing.T) {
		t.Setenv("HEADLESS", "sideways")
		t.Setenv("RENDER_POLL_INTERVAL", "soon")

		cfg, err := Load(zerolog.Nop())
		require.NoError(t, err)

		assert.True(t, cfg.Headless)
		assert.Equal(t, constants.RenderPollInterval, cfg.PollInterval)
	})
}
