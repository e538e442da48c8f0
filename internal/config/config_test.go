package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"fluxrescue/internal/config"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if cfg.Recovery.MaxRevolutions != 5 {
		t.Fatalf("unexpected max_revolutions default: %d", cfg.Recovery.MaxRevolutions)
	}
	if cfg.Recovery.Workers <= 0 {
		t.Fatalf("workers should normalize to a positive count, got %d", cfg.Recovery.Workers)
	}
	if cfg.Recovery.FillByte != 0xE5 {
		t.Fatalf("unexpected fill byte default: %#x", cfg.Recovery.FillByte)
	}
	if cfg.Results.Enabled {
		t.Fatal("results db should be disabled by default")
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
log_level = "debug"

[recovery]
strict_mode = true
max_revolutions = 9
min_confidence = 0.9
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be found")
	}
	if !cfg.Recovery.StrictMode {
		t.Fatal("strict_mode override not applied")
	}
	if cfg.Recovery.MaxRevolutions != 9 {
		t.Fatalf("max_revolutions override not applied: %d", cfg.Recovery.MaxRevolutions)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("log_level override not applied: %q", cfg.LogLevel)
	}
	// untouched values keep their defaults
	if cfg.Recovery.WeakBitBudget != 16 {
		t.Fatalf("weak_bit_budget default lost: %d", cfg.Recovery.WeakBitBudget)
	}
}

func TestValidateRejectsBadWindow(t *testing.T) {
	cfg := config.Default()
	cfg.Decode.WindowLow = 1.4
	cfg.Decode.WindowHigh = 1.2
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected inverted decode window to be rejected")
	}
}

func TestValidateRejectsExcessWeakBitBudget(t *testing.T) {
	cfg := config.Default()
	cfg.Recovery.WeakBitBudget = 40
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected oversized weak bit budget to be rejected")
	}
}

func TestWriteSampleRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.toml")
	if err := config.WriteSample(path); err != nil {
		t.Fatalf("WriteSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("sample config should exist")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("sample config should validate: %v", err)
	}
}
