package fleetclient

import (
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config must validate, got %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"relative base url", func(c *Config) { c.API.BaseURL = "/api" }},
		{"empty base url", func(c *Config) { c.API.BaseURL = "" }},
		{"negative timeout", func(c *Config) { c.API.Timeout = -time.Second }},
		{"zero event buffer", func(c *Config) { c.Events.BufferSize = 0 }},
		{"negative refetch interval", func(c *Config) { c.Refetch.Alerts = -time.Second }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestConfigFromEnvOverridesDefaults(t *testing.T) {
	t.Setenv("FLEET_API_URL", "https://fleet.example.com/api")
	t.Setenv("FLEET_API_TIMEOUT", "5s")
	t.Setenv("FLEET_TOKEN_PATH", "/tmp/fleet-token.json")

	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv failed: %v", err)
	}
	if cfg.API.BaseURL != "https://fleet.example.com/api" {
		t.Fatalf("base url not taken from env, got %q", cfg.API.BaseURL)
	}
	if cfg.API.Timeout != 5*time.Second {
		t.Fatalf("timeout not taken from env, got %v", cfg.API.Timeout)
	}
	if cfg.Storage.TokenPath != "/tmp/fleet-token.json" {
		t.Fatalf("token path not taken from env, got %q", cfg.Storage.TokenPath)
	}
	// Untouched sections keep their defaults.
	if cfg.Refetch.Printers != 30*time.Second {
		t.Fatalf("unexpected printers interval %v", cfg.Refetch.Printers)
	}
}

func TestConfigFromEnvRejectsInvalidOverride(t *testing.T) {
	t.Setenv("FLEET_API_URL", "not a url")
	if _, err := ConfigFromEnv(); err == nil {
		t.Fatal("expected an invalid base url to be rejected")
	}
}
