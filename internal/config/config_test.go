package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.Timezone != "America/Chicago" {
		t.Errorf("expected default timezone America/Chicago, got %s", cfg.Timezone)
	}
	if cfg.SlotCacheTTL != 5*time.Minute {
		t.Errorf("expected default slot cache TTL 5m, got %s", cfg.SlotCacheTTL)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("PROVIDER_TIMEZONE", "America/New_York")
	t.Setenv("REDIS_TLS", "true")
	t.Setenv("SLOT_CACHE_TTL", "30s")

	cfg := Load()

	if cfg.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Port)
	}
	if cfg.Timezone != "America/New_York" {
		t.Errorf("expected timezone America/New_York, got %s", cfg.Timezone)
	}
	if !cfg.RedisTLS {
		t.Error("expected RedisTLS true")
	}
	if cfg.SlotCacheTTL != 30*time.Second {
		t.Errorf("expected TTL 30s, got %s", cfg.SlotCacheTTL)
	}
}

func TestLocation(t *testing.T) {
	cfg := &Config{Timezone: "America/Chicago"}
	loc, err := cfg.Location()
	if err != nil {
		t.Fatalf("Location returned error: %v", err)
	}
	if loc.String() != "America/Chicago" {
		t.Errorf("unexpected location %s", loc)
	}

	cfg.Timezone = "Not/AZone"
	if _, err := cfg.Location(); err == nil {
		t.Error("expected error for bogus timezone")
	}
}
