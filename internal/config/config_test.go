package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.Port)
	}
	if !cfg.MultiTenantMode {
		t.Fatalf("expected multi-tenant mode on by default")
	}
	if cfg.SessionTTL != 15*time.Minute {
		t.Fatalf("expected default session TTL of 15m, got %s", cfg.SessionTTL)
	}
	if cfg.CallLockTimeout != 2*time.Second {
		t.Fatalf("expected default call lock timeout of 2s, got %s", cfg.CallLockTimeout)
	}
}

func TestLoadMultiTenantModeDisabled(t *testing.T) {
	t.Setenv("MULTI_TENANT_MODE", "false")

	cfg := Load()
	if cfg.MultiTenantMode {
		t.Fatalf("expected multi-tenant mode to be disabled")
	}
}

func TestLoadCORSOrigins(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg := Load()
	if len(cfg.CORSAllowedOrigins) != 2 {
		t.Fatalf("expected 2 CORS origins, got %d: %v", len(cfg.CORSAllowedOrigins), cfg.CORSAllowedOrigins)
	}
}
