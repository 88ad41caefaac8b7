package config

import (
	"strings"
	"testing"
	"time"
)

type envTestConfig struct {
	EngineDir   string        `env:"TEST_ENGINE_DIR" envDefault:"PathOfBuilding"`
	HTTPTimeout time.Duration `env:"TEST_HTTP_TIMEOUT" envDefault:"60s"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg envTestConfig

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.EngineDir != "PathOfBuilding" {
		t.Fatalf("engine dir = %q, want %q", cfg.EngineDir, "PathOfBuilding")
	}
	if cfg.HTTPTimeout != time.Minute {
		t.Fatalf("http timeout = %v, want %v", cfg.HTTPTimeout, time.Minute)
	}
}

func TestParseEnvUsesPrefix(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("TEST_ENGINE_DIR", "unprefixed")
	t.Setenv("GOPOB_TEST_ENGINE_DIR", "/opt/pob")

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.EngineDir != "/opt/pob" {
		t.Fatalf("engine dir = %q, want %q", cfg.EngineDir, "/opt/pob")
	}
}

func TestParseEnvError(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("GOPOB_TEST_HTTP_TIMEOUT", "soon")

	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}
