package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Detector.VolSpikeThreshold != 3.0 || cfg.Detector.RSIOversold != 35 {
		t.Errorf("detector defaults wrong: %+v", cfg.Detector)
	}
	if cfg.Notifier.MaxImpactPct != 0.02 {
		t.Errorf("MaxImpactPct = %v, want 0.02", cfg.Notifier.MaxImpactPct)
	}
	if cfg.MarketMinInterval() != 7*time.Second {
		t.Errorf("MarketMinInterval = %v, want 7s", cfg.MarketMinInterval())
	}
	if len(cfg.Events.Programs) == 0 {
		t.Error("default program list must not be empty")
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
http_addr = ":9090"

[storage]
use_memory = true

[detector]
vol_spike_threshold = 5.0

[notifier]
max_impact_pct = 0.01
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q, want :9090", cfg.HTTPAddr)
	}
	if !cfg.Storage.UseMemory {
		t.Error("use_memory not applied")
	}
	if cfg.Detector.VolSpikeThreshold != 5.0 {
		t.Errorf("VolSpikeThreshold = %v, want 5.0", cfg.Detector.VolSpikeThreshold)
	}
	if cfg.Notifier.MaxImpactPct != 0.01 {
		t.Errorf("MaxImpactPct = %v, want 0.01", cfg.Notifier.MaxImpactPct)
	}
	// Untouched sections keep their defaults.
	if cfg.Quote.SlippageBps != 100 {
		t.Errorf("SlippageBps = %d, want default 100", cfg.Quote.SlippageBps)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
[events]
rpc_endpoint = "https://from-file.example"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("RPC_ENDPOINT", "https://from-env.example")
	t.Setenv("TELEGRAM_BOT_TOKEN", "secret-token")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Events.RPCEndpoint != "https://from-env.example" {
		t.Errorf("RPCEndpoint = %q, env must win over the file", cfg.Events.RPCEndpoint)
	}
	if cfg.Telegram.BotToken != "secret-token" {
		t.Errorf("BotToken = %q, want env value", cfg.Telegram.BotToken)
	}
}

func TestLoad_Validation(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{
			name: "missing database url",
			body: "[storage]\ndatabase_url = \"\"\n",
		},
		{
			name: "no programs",
			body: "[events]\nprograms = []\n",
		},
		{
			name: "impact out of range",
			body: "[notifier]\nmax_impact_pct = 2.0\n",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tc.body), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			if _, err := Load(path); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}
