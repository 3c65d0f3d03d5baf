package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("DEACTIVATION_TAGS", "")
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if !cfg.SellerEnabled {
		t.Fatalf("expected seller bot enabled by default")
	}
	if cfg.BuyerEnabled || cfg.LeadEnabled {
		t.Fatalf("expected buyer/lead bots disabled by default")
	}
	if cfg.WorkflowDedupTTL != 30*24*time.Hour {
		t.Fatalf("expected 30d workflow dedup TTL, got %s", cfg.WorkflowDedupTTL)
	}
	if cfg.CanonicalMappingMode != "fail_open" {
		t.Fatalf("expected fail_open mapping mode, got %s", cfg.CanonicalMappingMode)
	}
	if len(cfg.DeactivationTags) != 3 {
		t.Fatalf("expected default deactivation tags, got %v", cfg.DeactivationTags)
	}
	if cfg.VoiceRetryAttempts != 3 || cfg.VoiceRetryBaseDelay != time.Second {
		t.Fatalf("unexpected voice retry defaults: %d %s", cfg.VoiceRetryAttempts, cfg.VoiceRetryBaseDelay)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("BUYER_BOT_ENABLED", "true")
	t.Setenv("BUYER_ACTIVATION_TAG", "Investor-Lead")
	t.Setenv("DEACTIVATION_TAGS", "AI-Off, Closed-Won ,")
	t.Setenv("WORKFLOW_HOT_LEAD_ID", "wf_hot_123")
	t.Setenv("WORKFLOW_DEDUP_TTL", "168h")
	t.Setenv("CACHE_ATOMIC_DEDUP", "true")
	t.Setenv("CANONICAL_MAPPING_MODE", "FAIL_CLOSED")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if !cfg.BuyerEnabled {
		t.Fatalf("expected buyer bot enabled")
	}
	if cfg.BuyerTag != "Investor-Lead" {
		t.Fatalf("expected buyer tag override, got %s", cfg.BuyerTag)
	}
	if len(cfg.DeactivationTags) != 2 || cfg.DeactivationTags[1] != "Closed-Won" {
		t.Fatalf("expected trimmed deactivation tags, got %v", cfg.DeactivationTags)
	}
	if cfg.WorkflowHotLeadID != "wf_hot_123" {
		t.Fatalf("expected workflow id override, got %s", cfg.WorkflowHotLeadID)
	}
	if cfg.WorkflowDedupTTL != 168*time.Hour {
		t.Fatalf("expected TTL override, got %s", cfg.WorkflowDedupTTL)
	}
	if !cfg.CacheAtomicDedup {
		t.Fatalf("expected atomic dedup enabled")
	}
	if cfg.CanonicalMappingMode != "fail_closed" {
		t.Fatalf("expected lowercased mapping mode, got %s", cfg.CanonicalMappingMode)
	}
}
