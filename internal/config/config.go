package config

import (
	"os"
	"strconv"
	"time"

	"geofeed-assist/internal/constants"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

type Config struct {
	// SiteBaseURL is the origin the leaderboard, typeahead, detail and
	// logbook endpoints live under.
	SiteBaseURL string
	// LinkBaseURL is the short-link origin used for cache links.
	LinkBaseURL string
	// FeedURL is the page the live browser session navigates to.
	FeedURL string
	// BrowserControlURL attaches to an already-running (and already
	// authenticated) browser via CDP. Empty launches a fresh one.
	BrowserControlURL string
	Headless          bool
	LogLevel          string
	PollInterval      time.Duration
	PollTimeout       time.Duration
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg := &Config{
		SiteBaseURL:       getEnv("SITE_BASE_URL", "https://www.geocaching.com"),
		LinkBaseURL:       getEnv("LINK_BASE_URL", "https://coord.info"),
		FeedURL:           getEnv("FEED_URL", "https://www.geocaching.com/account/dashboard"),
		BrowserControlURL: getEnv("BROWSER_CONTROL_URL", ""),
		Headless:          getEnvBool("HEADLESS", true),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		PollInterval:      getEnvDuration("RENDER_POLL_INTERVAL", constants.RenderPollInterval),
		PollTimeout:       getEnvDuration("RENDER_POLL_TIMEOUT", constants.RenderPollTimeout),
	}

	logger.Info().
		Str("site_base_url", cfg.SiteBaseURL).
		Str("feed_url", cfg.FeedURL).
		Str("log_level", cfg.LogLevel).
		Dur("poll_interval", cfg.PollInterval).
		Dur("poll_timeout", cfg.PollTimeout).
		Msg("configuration loaded")

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

var Module = fx.Provide(Load)
