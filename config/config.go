// Package config loads environment variables and provides a typed Config used across the service.
// It applies sensible defaults so the binary can run locally with minimal setup.
// Source credentials are checked separately; use ValidateSourceReady before connecting.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/onnwee/chat-echo/buffer"
	"github.com/onnwee/chat-echo/chat"
	"github.com/onnwee/chat-echo/twitch"
)

// Source names accepted in CHAT_SOURCE.
const (
	SourceYouTube = "youtube"
	SourceTwitch  = "twitch"
)

type Config struct {
	// Source selection
	Source   string // "youtube" or "twitch"
	StreamID string // optional stream to start monitoring at boot

	// Polling
	PollInterval   time.Duration
	PollMaxRetries int
	BufferCapacity int

	// Live checks
	ValidateTTL time.Duration // how long resolve verdicts are cached
	LiveRecheck time.Duration // Twitch only: end-of-stream probe cadence

	// YouTube credentials
	YouTubeAPIKey      string
	YouTubeAccessToken string

	// Twitch credentials
	TwitchClientID     string
	TwitchClientSecret string

	// HTTP
	HTTPAddr string
}

// Load reads environment variables and applies defaults. It doesn't fail if source creds are
// missing; use ValidateSourceReady() when you require a live connection. Malformed numeric
// values are rejected rather than silently defaulted.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Source = os.Getenv("CHAT_SOURCE")
	if cfg.Source == "" {
		cfg.Source = SourceYouTube
	}
	if cfg.Source != SourceYouTube && cfg.Source != SourceTwitch {
		return nil, fmt.Errorf("invalid CHAT_SOURCE %q: want %q or %q", cfg.Source, SourceYouTube, SourceTwitch)
	}

	cfg.StreamID = os.Getenv("STREAM_ID")
	if cfg.StreamID == "" {
		cfg.StreamID = os.Getenv("STREAM_URL")
	}

	intervalMS, err := envInt("POLL_INTERVAL_MS", int(chat.DefaultInterval/time.Millisecond))
	if err != nil {
		return nil, err
	}
	cfg.PollInterval = time.Duration(intervalMS) * time.Millisecond

	cfg.PollMaxRetries, err = envInt("POLL_MAX_RETRIES", chat.DefaultMaxRetries)
	if err != nil {
		return nil, err
	}

	cfg.BufferCapacity, err = envInt("BUFFER_CAPACITY", buffer.DefaultCapacity)
	if err != nil {
		return nil, err
	}

	ttlS, err := envInt("LIVE_CHECK_TTL_S", int(chat.DefaultValidateTTL/time.Second))
	if err != nil {
		return nil, err
	}
	cfg.ValidateTTL = time.Duration(ttlS) * time.Second

	recheckS, err := envInt("TWITCH_LIVE_RECHECK_S", int(twitch.DefaultLiveRecheck/time.Second))
	if err != nil {
		return nil, err
	}
	cfg.LiveRecheck = time.Duration(recheckS) * time.Second

	// YouTube
	cfg.YouTubeAPIKey = os.Getenv("YOUTUBE_API_KEY")
	cfg.YouTubeAccessToken = os.Getenv("YOUTUBE_ACCESS_TOKEN")

	// Twitch
	cfg.TwitchClientID = os.Getenv("TWITCH_CLIENT_ID")
	cfg.TwitchClientSecret = os.Getenv("TWITCH_CLIENT_SECRET")

	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	return cfg, nil
}

// envInt reads an integer variable, falling back to def when unset. Zero and
// negative values are rejected; every tunable here is a count or a duration.
func envInt(name string, def int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, v, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be positive", name, v)
	}
	return n, nil
}

// ValidateYouTubeReady checks required fields when the YouTube source is selected.
func (c *Config) ValidateYouTubeReady() error {
	if c.YouTubeAPIKey == "" && c.YouTubeAccessToken == "" {
		return fmt.Errorf("missing youtube env: require YOUTUBE_API_KEY or YOUTUBE_ACCESS_TOKEN")
	}
	return nil
}

// ValidateTwitchReady checks required fields when the Twitch source is selected.
func (c *Config) ValidateTwitchReady() error {
	if c.TwitchClientID == "" || c.TwitchClientSecret == "" {
		return fmt.Errorf("missing twitch env: require TWITCH_CLIENT_ID, TWITCH_CLIENT_SECRET")
	}
	return nil
}

// ValidateSourceReady checks the credentials for the configured source.
func (c *Config) ValidateSourceReady() error {
	if c.Source == SourceTwitch {
		return c.ValidateTwitchReady()
	}
	return c.ValidateYouTubeReady()
}
