package config

import (
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("STORAGE_MODE", "")
	t.Setenv("JWT_SECRET", "")
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.StorageMode != "memory" {
		t.Fatalf("expected memory storage, got %q", cfg.StorageMode)
	}
	if cfg.JWTSecret != devJWTSecret {
		t.Fatalf("expected dev secret fallback, got %q", cfg.JWTSecret)
	}
	if cfg.SessionTTL != 24*time.Hour {
		t.Fatalf("expected 24h session ttl, got %v", cfg.SessionTTL)
	}
	if len(cfg.RetryBackoff) != 3 {
		t.Fatalf("expected 3 retry steps, got %v", cfg.RetryBackoff)
	}
}

func TestFromEnvRequiresSecretOutsideDev(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "")
	if _, err := FromEnv(); err == nil {
		t.Fatalf("expected error without JWT_SECRET in production")
	}
}

func TestFromEnvDurableModeNeedsBackends(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("STORAGE_MODE", "durable")
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("POSTGRES_DSN", "")
	if _, err := FromEnv(); err == nil {
		t.Fatalf("expected error without POSTGRES_DSN")
	}
	t.Setenv("POSTGRES_DSN", "postgres://localhost/autoparc")
	t.Setenv("SCYLLA_HOSTS", "127.0.0.1, 127.0.0.2")
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.ScyllaHosts) != 2 || cfg.ScyllaHosts[1] != "127.0.0.2" {
		t.Fatalf("expected two trimmed hosts, got %v", cfg.ScyllaHosts)
	}
}

func TestFromEnvRejectsBadDuration(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("SESSION_TTL", "soon")
	if _, err := FromEnv(); err == nil {
		t.Fatalf("expected duration parse error")
	}
}
