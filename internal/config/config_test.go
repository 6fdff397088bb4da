package config

import (
	"testing"
	"time"
)

func TestLoadServerAppliesDefaults(t *testing.T) {
	configViper := NewViper()
	configViper.Set("auth.signing_secret", "secret")

	cfg, err := LoadServer(configViper)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPAddress != "0.0.0.0:8080" {
		t.Fatalf("unexpected http address %s", cfg.HTTPAddress)
	}
	if cfg.DatabasePath != "terra-api.db" {
		t.Fatalf("unexpected database path %s", cfg.DatabasePath)
	}
	if cfg.TokenTTL != 12*time.Hour {
		t.Fatalf("unexpected token ttl %s", cfg.TokenTTL)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("unexpected log level %s", cfg.LogLevel)
	}
}

func TestLoadServerRequiresSigningSecret(t *testing.T) {
	if _, err := LoadServer(NewViper()); err == nil {
		t.Fatalf("expected error without signing secret")
	}
}

func TestLoadAgentAppliesDefaults(t *testing.T) {
	configViper := NewViper()
	configViper.Set("agent.user_id", "user-1")

	cfg, err := LoadAgent(configViper)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.APIBaseURL != "http://127.0.0.1:8080" {
		t.Fatalf("unexpected api base url %s", cfg.APIBaseURL)
	}
	if cfg.SyncInterval != 5*time.Minute {
		t.Fatalf("unexpected sync interval %s", cfg.SyncInterval)
	}
	if cfg.MaxAttempts != 5 {
		t.Fatalf("unexpected attempt budget %d", cfg.MaxAttempts)
	}
	if cfg.BackoffBase != time.Second || cfg.BackoffMax != 2*time.Minute {
		t.Fatalf("unexpected backoff bounds %s / %s", cfg.BackoffBase, cfg.BackoffMax)
	}
}

func TestLoadAgentRequiresUserID(t *testing.T) {
	if _, err := LoadAgent(NewViper()); err == nil {
		t.Fatalf("expected error without agent user id")
	}
}

func TestLoadAgentRejectsNonPositiveAttemptBudget(t *testing.T) {
	configViper := NewViper()
	configViper.Set("agent.user_id", "user-1")
	configViper.Set("sync.max_attempts", 0)

	if _, err := LoadAgent(configViper); err == nil {
		t.Fatalf("expected error for a zero attempt budget")
	}
}
