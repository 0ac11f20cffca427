package config

import (
	"strings"
	"testing"
	"time"
)

type envTestConfig struct {
	Port  int           `env:"VENDING_MACHINE_TEST_PORT" envDefault:"8000"`
	Dwell time.Duration `env:"VENDING_MACHINE_TEST_DWELL" envDefault:"3300ms"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg envTestConfig

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Port != 8000 {
		t.Fatalf("expected default port 8000, got %d", cfg.Port)
	}
	if cfg.Dwell != 3300*time.Millisecond {
		t.Fatalf("expected default dwell 3300ms, got %s", cfg.Dwell)
	}
}

func TestParseEnvOverrides(t *testing.T) {
	t.Setenv("VENDING_MACHINE_TEST_DWELL", "2s")

	var cfg envTestConfig
	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Dwell != 2*time.Second {
		t.Fatalf("expected dwell 2s, got %s", cfg.Dwell)
	}
}

func TestParseEnvError(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("VENDING_MACHINE_TEST_PORT", "not-an-int")

	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}
