package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, _, exists, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for missing file")
	}
	if cfg.Engine.BatchSize != defaultBatchSize {
		t.Fatalf("batch size = %d, want %d", cfg.Engine.BatchSize, defaultBatchSize)
	}
	if cfg.DefaultBackend != defaultBackendID {
		t.Fatalf("default backend = %q, want %q", cfg.DefaultBackend, defaultBackendID)
	}
}

func TestLoadOverridesAndNormalizes(t *testing.T) {
	path := writeConfig(t, `
default_backend = "hosted"

[engine]
batch_size = 3
workers = 2

[[backends]]
id = "hosted"
kind = "OpenAI"
base_url = "https://api.example.com/v1/"
model = "demo"
api_key = "sk-test"
`)
	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists=true")
	}
	backend, err := cfg.BackendByID("hosted")
	if err != nil {
		t.Fatalf("BackendByID: %v", err)
	}
	if backend.Kind != "openai" {
		t.Fatalf("kind = %q, want lowercased openai", backend.Kind)
	}
	if strings.HasSuffix(backend.BaseURL, "/") {
		t.Fatalf("base url not trimmed: %q", backend.BaseURL)
	}
	if backend.TimeoutSeconds != defaultTimeoutSeconds {
		t.Fatalf("timeout = %d, want default %d", backend.TimeoutSeconds, defaultTimeoutSeconds)
	}
	if cfg.Engine.BatchSize != 3 || cfg.Engine.Workers != 2 {
		t.Fatalf("engine overrides not applied: %+v", cfg.Engine)
	}
}

func TestLoadResolvesEnvCredential(t *testing.T) {
	t.Setenv("GLOSSER_TEST_KEY", "resolved-secret")
	path := writeConfig(t, `
default_backend = "hosted"

[[backends]]
id = "hosted"
kind = "openai"
base_url = "https://api.example.com/v1"
model = "demo"
api_key = "${GLOSSER_TEST_KEY}"
`)
	cfg, _, _, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	backend, err := cfg.BackendByID("")
	if err != nil {
		t.Fatalf("BackendByID: %v", err)
	}
	if backend.APIKey != "resolved-secret" {
		t.Fatalf("api key = %q, want env value", backend.APIKey)
	}
}

func TestValidateRejectsBadKind(t *testing.T) {
	path := writeConfig(t, `
[[backends]]
id = "bad"
kind = "grpc"
base_url = "http://localhost"
model = "m"
`)
	if _, _, _, err := Load(path); err == nil {
		t.Fatal("expected error for unsupported backend kind")
	}
}

func TestValidateRequiresAPIKeyForHostedKinds(t *testing.T) {
	path := writeConfig(t, `
default_backend = "hosted"

[[backends]]
id = "hosted"
kind = "openai"
base_url = "https://api.example.com/v1"
model = "demo"
`)
	if _, _, _, err := Load(path); err == nil {
		t.Fatal("expected error for missing api key")
	}
}

func TestValidateRejectsUnknownDefaultBackend(t *testing.T) {
	path := writeConfig(t, `
default_backend = "nope"

[[backends]]
id = "local"
kind = "ollama"
base_url = "http://localhost:11434"
model = "qwen3:4b"
`)
	if _, _, _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown default backend")
	}
}

func TestCreateSampleRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	if err := CreateSample(path); err == nil {
		t.Fatal("expected error when file exists")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[[backends]]") {
		t.Fatal("sample config missing backends table")
	}
}
