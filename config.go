package fleetclient

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/joeshaw/envdecode"
)

// Config holds every tunable of the client. Configure it before Build and
// treat it as immutable afterwards.
type Config struct {
	API     APIConfig
	Storage StorageConfig
	Refetch RefetchConfig
	Events  EventsConfig
	Metrics MetricsConfig
}

/*
====================================
API CONFIG
====================================
*/

// APIConfig describes how to reach the fleet backend.
type APIConfig struct {
	// BaseURL is the absolute URL of the API root, including the /api
	// path segment.
	BaseURL string `env:"FLEET_API_URL"`

	// Timeout bounds a single HTTP round trip.
	Timeout time.Duration `env:"FLEET_API_TIMEOUT"`

	// UserAgent is sent on every request unless a context carries an
	// override.
	UserAgent string `env:"FLEET_USER_AGENT"`
}

/*
====================================
STORAGE CONFIG
====================================
*/

// StorageConfig controls where the persistent token slot lives when the
// builder has to construct a store itself.
type StorageConfig struct {
	// TokenPath is the file the token slot is persisted to. Empty means
	// the builder requires an explicit store.
	TokenPath string `env:"FLEET_TOKEN_PATH"`
}

/*
====================================
REFETCH CONFIG
====================================
*/

// RefetchConfig sets the background refresh interval per data family. Zero
// disables the timer for that family; invalidation still triggers refetches.
type RefetchConfig struct {
	Printers      time.Duration
	PrinterDetail time.Duration
	Alerts        time.Duration
	AlertRules    time.Duration
	Statistics    time.Duration
}

/*
====================================
EVENTS CONFIG
====================================
*/

// EventsConfig controls the async session event dispatcher.
type EventsConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig toggles the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

func defaultConfig() Config {
	return Config{
		API: APIConfig{
			BaseURL:   "http://localhost:8000/api",
			Timeout:   30 * time.Second,
			UserAgent: "fleetclient",
		},
		Refetch: RefetchConfig{
			Printers:      30 * time.Second,
			PrinterDetail: 10 * time.Second,
			Alerts:        30 * time.Second,
			AlertRules:    60 * time.Second,
			Statistics:    60 * time.Second,
		},
		Events: EventsConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// DefaultConfig returns the baseline configuration: a local backend, the
// refresh intervals the dashboard uses, events and metrics on.
func DefaultConfig() Config {
	return defaultConfig()
}

// ConfigFromEnv layers FLEET_* environment variables over the defaults.
func ConfigFromEnv() (Config, error) {
	cfg := defaultConfig()
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("decode environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first configuration problem found.
func (c Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || !u.IsAbs() {
		return fmt.Errorf("api base url %q must be absolute", c.API.BaseURL)
	}
	if c.API.Timeout < 0 {
		return errors.New("api timeout must not be negative")
	}
	if c.Events.Enabled && c.Events.BufferSize <= 0 {
		return errors.New("events buffer size must be positive when events are enabled")
	}
	for _, d := range []time.Duration{
		c.Refetch.Printers,
		c.Refetch.PrinterDetail,
		c.Refetch.Alerts,
		c.Refetch.AlertRules,
		c.Refetch.Statistics,
	} {
		if d < 0 {
			return errors.New("refetch intervals must not be negative")
		}
	}
	return nil
}
