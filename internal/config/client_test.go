package config

import (
	"testing"
	"time"
)

func TestLoadClientDefaults(t *testing.T) {
	cfg, err := LoadClient()
	if err != nil {
		t.Fatalf("LoadClient() error = %v", err)
	}
	if cfg.ServerURL != "http://localhost:8080" {
		t.Fatalf("ServerURL = %q, want http://localhost:8080", cfg.ServerURL)
	}
	if cfg.Timeout != 10*time.Second {
		t.Fatalf("Timeout = %v, want 10s", cfg.Timeout)
	}
}

func TestLoadClientOverrides(t *testing.T) {
	t.Setenv("CHIPTALLY_SERVER", "http://10.0.0.2:9000")
	t.Setenv("CHIPTALLY_TIMEOUT", "3s")

	cfg, err := LoadClient()
	if err != nil {
		t.Fatalf("LoadClient() error = %v", err)
	}
	if cfg.ServerURL != "http://10.0.0.2:9000" || cfg.Timeout != 3*time.Second {
		t.Fatalf("unexpected client config: %+v", cfg)
	}
}
