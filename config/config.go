package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
)

// TokenEnvVar is the environment variable consulted when no token is
// configured.
const TokenEnvVar = "FRAMELINK_TOKEN"

// Config holds initialized configuration.
type Config struct {
	Store
}

// Parse parses a config definition and returns an initialized config.
func (s Store) Parse() (*Config, error) {
	return s.parse(false)
}

// MakeTestConfig parses and returns the given config store with
// loosened checks. If anything fails, it panics.
func MakeTestConfig(s Store) *Config {
	c, err := s.parse(true)
	if err != nil {
		panic("test config invalid: " + err.Error())
	}
	return c
}

func (s Store) parse(test bool) (*Config, error) {
	c := &Config{
		Store: s,
	}

	// Service endpoint.
	if c.Service.Endpoint == "" {
		return nil, errors.New("service.endpoint is required")
	}
	u, err := url.Parse(c.Service.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("service.endpoint is invalid: %w", err)
	}
	switch u.Scheme {
	case "wss":
	case "ws":
		// Unencrypted endpoints are only for local testing.
	default:
		return nil, fmt.Errorf("service.endpoint must be a ws:// or wss:// URL, got %q", u.Scheme)
	}

	// Token, with environment fallback.
	if c.Service.Token == "" {
		c.Service.Token = os.Getenv(TokenEnvVar)
	}
	if !test && c.Service.Token == "" {
		return nil, fmt.Errorf("service.token is required (or set %s)", TokenEnvVar)
	}

	// Stream settings.
	if c.Stream.FrameRate == 0 {
		c.Stream.FrameRate = DefaultFrameRate
	}
	if c.Stream.FrameRate < 0 {
		return nil, fmt.Errorf("stream.frameRate must be positive, got %d", c.Stream.FrameRate)
	}
	if c.Stream.Quality == 0 {
		c.Stream.Quality = DefaultQuality
	}
	if c.Stream.Quality < 1 || c.Stream.Quality > 100 {
		return nil, fmt.Errorf("stream.quality must be within 1-100, got %d", c.Stream.Quality)
	}
	if c.Stream.Width == 0 {
		c.Stream.Width = DefaultFrameWidth
	}
	if c.Stream.Height == 0 {
		c.Stream.Height = DefaultFrameHeight
	}
	if c.Stream.Width < 0 || c.Stream.Height < 0 {
		return nil, fmt.Errorf(
			"stream frame size must be positive, got %dx%d",
			c.Stream.Width, c.Stream.Height,
		)
	}

	return c, nil
}
