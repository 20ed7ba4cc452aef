package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("explicit missing config file should error")
	}

	cfg, err = Load("")
	if err != nil {
		t.Fatalf("defaults should load without a file: %v", err)
	}
	if cfg.Engine.Mode != "auto" {
		t.Fatalf("default engine mode should be auto, got %q", cfg.Engine.Mode)
	}
	if cfg.Engine.JumpThresholdPct != 3.0 {
		t.Fatalf("default jump threshold should be 3.0, got %f", cfg.Engine.JumpThresholdPct)
	}
	if len(cfg.Symbols) == 0 {
		t.Fatal("default symbols should not be empty")
	}
	if cfg.Rules.FuzzyDistance != 1 {
		t.Fatalf("default fuzzy distance should be 1, got %d", cfg.Rules.FuzzyDistance)
	}
	if !cfg.Feeds.Synthetic.Enabled {
		t.Fatal("synthetic feed should default on")
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
engine:
  mode: dataflow
  workers: 8
symbols:
  - NVDA
server:
  webhook_token: s3cret
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Engine.Mode != "dataflow" || cfg.Engine.Workers != 8 {
		t.Fatalf("engine settings not applied: %+v", cfg.Engine)
	}
	if len(cfg.Symbols) != 1 || cfg.Symbols[0] != "NVDA" {
		t.Fatalf("symbols not applied: %v", cfg.Symbols)
	}
	if cfg.Server.WebhookToken != "s3cret" {
		t.Fatalf("token not applied: %q", cfg.Server.WebhookToken)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := func(t *testing.T) *Config {
		t.Helper()
		cfg, err := Load("")
		if err != nil {
			t.Fatalf("load defaults: %v", err)
		}
		return cfg
	}

	cfg := base(t)
	cfg.Engine.Mode = "turbo"
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown mode should fail validation")
	}

	cfg = base(t)
	cfg.Engine.Mode = "dataflow"
	cfg.Engine.Workers = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("dataflow without workers should fail validation")
	}

	cfg = base(t)
	cfg.Symbols = nil
	if err := cfg.Validate(); err == nil {
		t.Fatal("empty symbols should fail validation")
	}

	cfg = base(t)
	cfg.Feeds.Chain.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Fatal("chain feed without rpc url should fail validation")
	}

	cfg = base(t)
	cfg.Notify.Telegram.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Fatal("telegram without credentials should fail validation")
	}
}

func TestResolveMaxPoints(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if got := cfg.ResolveMaxPoints(0); got != cfg.Export.MaxDataPoints {
		t.Fatalf("zero override should use config default, got %d", got)
	}
	if got := cfg.ResolveMaxPoints(42); got != 42 {
		t.Fatalf("positive override should win, got %d", got)
	}
}
