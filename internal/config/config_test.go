package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Provider.Provider != "mock" {
		t.Errorf("default provider = %q", cfg.Provider.Provider)
	}
	if cfg.Agent.MaxRetries != 3 {
		t.Errorf("default max retries = %d, want 3", cfg.Agent.MaxRetries)
	}
	if cfg.Agent.TimeoutMs != 300000 {
		t.Errorf("default timeout = %d, want 300000", cfg.Agent.TimeoutMs)
	}
	if !cfg.Agent.EnableLearning || !cfg.Agent.EnableQualityChecks || !cfg.Agent.EnableErrorRecovery {
		t.Errorf("default gates = %+v", cfg.Agent)
	}
	if cfg.Logging.Enabled {
		t.Error("logging enabled by default")
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider.Provider != "mock" {
		t.Errorf("provider = %q", cfg.Provider.Provider)
	}
}

func TestLoadFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
name: test-pilot
provider:
  provider: openai
  model: gpt-4o
  fallback:
    provider: gemini
    model: gemini-2.0-flash
agent:
  max_retries: 5
  enable_learning: false
logging:
  enabled: true
  dir: /tmp/pilot-logs
  level: debug
  categories: [agent, execution]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Name != "test-pilot" {
		t.Errorf("name = %q", cfg.Name)
	}
	if cfg.Provider.Provider != "openai" || cfg.Provider.Model != "gpt-4o" {
		t.Errorf("provider = %+v", cfg.Provider)
	}
	if cfg.Provider.Fallback == nil || cfg.Provider.Fallback.Provider != "gemini" {
		t.Errorf("fallback = %+v", cfg.Provider.Fallback)
	}
	if cfg.Agent.MaxRetries != 5 {
		t.Errorf("max retries = %d", cfg.Agent.MaxRetries)
	}
	if cfg.Agent.EnableLearning {
		t.Error("enable_learning override lost")
	}

	opts := cfg.Logging.Options()
	if !opts.Enabled || opts.Dir != "/tmp/pilot-logs" || opts.Level != "debug" {
		t.Errorf("logging options = %+v", opts)
	}
	if !opts.Categories["agent"] || opts.Categories["quality"] {
		t.Errorf("categories = %v", opts.Categories)
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("provider: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("provider:\n  provider: carrier-pigeon\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PILOT_PROVIDER", "openai")
	t.Setenv("PILOT_MODEL", "gpt-4o-mini")
	t.Setenv("OPENAI_API_KEY", "sk-test-123")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider.Provider != "openai" {
		t.Errorf("provider = %q", cfg.Provider.Provider)
	}
	if cfg.Provider.Model != "gpt-4o-mini" {
		t.Errorf("model = %q", cfg.Provider.Model)
	}
	if cfg.Provider.APIKey != "sk-test-123" {
		t.Errorf("api key not taken from environment")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	cfg := DefaultConfig()
	cfg.Name = "saved"
	cfg.Agent.MaxRetries = 7

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Name != "saved" || loaded.Agent.MaxRetries != 7 {
		t.Errorf("round trip = %+v", loaded)
	}
}

func TestLoadRejectsZeroTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("agent:\n  timeout_ms: 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for timeout_ms: 0")
	}

	if err := os.WriteFile(path, []byte("agent:\n  timeout_ms: -5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for negative timeout_ms")
	}
}
