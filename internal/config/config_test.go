package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("port = %q, want 8080", cfg.Port)
	}
	if cfg.ExpansionCap != 365 {
		t.Errorf("expansion cap = %d, want 365", cfg.ExpansionCap)
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "familyapp.yaml")
	data := strings.Join([]string{
		"port: \"9090\"",
		"timezone: Europe/Stockholm",
		"expansion_cap: 100",
		"token_ttl: 24h",
	}, "\n")
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("port = %q, want 9090", cfg.Port)
	}
	if cfg.Timezone != "Europe/Stockholm" {
		t.Errorf("timezone = %q", cfg.Timezone)
	}
	if cfg.ExpansionCap != 100 {
		t.Errorf("expansion cap = %d, want 100", cfg.ExpansionCap)
	}
	if cfg.TokenTTL != 24*time.Hour {
		t.Errorf("token ttl = %v, want 24h", cfg.TokenTTL)
	}
	// Unset fields still get defaults.
	if cfg.FeedPageDays != 14 {
		t.Errorf("feed page days = %d, want 14", cfg.FeedPageDays)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("port: [unclosed"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	env := map[string]string{
		"FAMILYAPP_PORT":          "7000",
		"FAMILYAPP_EXPANSION_CAP": "50",
		"FAMILYAPP_TOKEN_TTL":     "1h",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	if err := cfg.applyEnv(lookup); err != nil {
		t.Fatalf("apply env: %v", err)
	}
	if cfg.Port != "7000" {
		t.Errorf("port = %q, want 7000", cfg.Port)
	}
	if cfg.ExpansionCap != 50 {
		t.Errorf("expansion cap = %d, want 50", cfg.ExpansionCap)
	}
	if cfg.TokenTTL != time.Hour {
		t.Errorf("token ttl = %v, want 1h", cfg.TokenTTL)
	}
}

func TestApplyEnvRejectsBadNumber(t *testing.T) {
	lookup := func(k string) (string, bool) {
		if k == "FAMILYAPP_EXPANSION_CAP" {
			return "lots", true
		}
		return "", false
	}
	cfg := Default()
	if err := cfg.applyEnv(lookup); err == nil {
		t.Error("expected error for non-numeric cap")
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err == nil {
		t.Error("expected error without token secret")
	}

	cfg.TokenSecret = strings.Repeat("s", 32)
	if err := cfg.Validate(); err != nil {
		t.Errorf("validate: %v", err)
	}

	cfg.Timezone = "Mars/Olympus"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown timezone")
	}
}
