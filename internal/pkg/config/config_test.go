package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFile_Defaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("port = %v, want 8080", cfg.Server.Port)
	}
	if cfg.Storage.Type != "memory" {
		t.Errorf("storage type = %q, want memory", cfg.Storage.Type)
	}
	if !cfg.Workflow.SimulateDispatchDefault {
		t.Error("simulate_dispatch_default = false, want true")
	}
	if got := MustDuration(cfg.Dispatch.Timeout, 0); got != 20*time.Second {
		t.Errorf("dispatch timeout = %v, want 20s", got)
	}
	if got := MustDuration(cfg.Server.RequestTimeout, 0); got != 90*time.Second {
		t.Errorf("request timeout = %v, want 90s", got)
	}
}

func TestLoadFile_YAMLAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  port: 9001
storage:
  type: sqlite
  sqlite:
    path: /tmp/helpdesk-test.db
reasoning:
  base_url: https://example.openai.azure.com
  api_key: ${HELPDESK_TEST_KEY}
  azure: true
dispatch:
  url: https://logic.example.com/ticket
  headers:
    x-api-key: ${HELPDESK_TEST_KEY}
workflow:
  force_simulate: true
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("HELPDESK_TEST_KEY", "secret")
	t.Setenv("HELPDESK_SERVER__PORT", "9100")
	t.Setenv("HELPDESK_WORKFLOW__CLASSIFY_TIMEOUT", "3s")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if cfg.Server.Port != 9100 {
		t.Errorf("port = %v, want 9100 (env override)", cfg.Server.Port)
	}
	if cfg.Storage.Type != "sqlite" || cfg.Storage.SQLite.Path != "/tmp/helpdesk-test.db" {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if cfg.Reasoning.APIKey != "secret" {
		t.Errorf("api key = %q, want substituted value", cfg.Reasoning.APIKey)
	}
	if !cfg.Reasoning.Azure {
		t.Error("azure = false, want true")
	}
	if cfg.Dispatch.Headers["x-api-key"] != "secret" {
		t.Errorf("dispatch header = %q", cfg.Dispatch.Headers["x-api-key"])
	}
	if !cfg.Workflow.ForceSimulate {
		t.Error("force_simulate = false, want true")
	}
	if got := MustDuration(cfg.Workflow.ClassifyTimeout, 0); got != 3*time.Second {
		t.Errorf("classify timeout = %v, want 3s", got)
	}
}

func TestLoadFile_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{
			name: "bad duration",
			env:  map[string]string{"HELPDESK_DISPATCH__TIMEOUT": "soon"},
		},
		{
			name: "negative duration",
			env:  map[string]string{"HELPDESK_WORKFLOW__EXTRACT_TIMEOUT": "-1s"},
		},
		{
			name: "request timeout below stage timeouts",
			env:  map[string]string{"HELPDESK_SERVER__REQUEST_TIMEOUT": "60s"},
		},
		{
			name: "unknown storage",
			env:  map[string]string{"HELPDESK_STORAGE__TYPE": "postgres"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := LoadFile(""); err == nil {
				t.Error("LoadFile() error = nil, want error")
			}
		})
	}
}

func TestValidate_RequestBudget(t *testing.T) {
	cfg := &Config{
		Server:   ServerConfig{RequestTimeout: "10s"},
		Storage:  StorageConfig{Type: "memory"},
		Workflow: WorkflowConfig{ExtractTimeout: "1s", ClassifyTimeout: "2s", HistorianTimeout: "3s"},
		Dispatch: DispatchConfig{Timeout: "4s"},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v, want nil for 10s >= 10s", err)
	}

	cfg.Dispatch.Timeout = "5s"
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() error = nil, want error when stages exceed the request timeout")
	}
}

func TestParseDuration(t *testing.T) {
	d, err := ParseDuration("", 5*time.Second)
	if err != nil || d != 5*time.Second {
		t.Errorf("ParseDuration(\"\") = %v, %v; want default", d, err)
	}

	d, err = ParseDuration("250ms", time.Second)
	if err != nil || d != 250*time.Millisecond {
		t.Errorf("ParseDuration(250ms) = %v, %v", d, err)
	}

	if _, err := ParseDuration("0s", time.Second); err == nil {
		t.Error("ParseDuration(0s) error = nil, want error")
	}
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR", "test-value")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "simple substitution",
			input: "${TEST_VAR}",
			want:  "test-value",
		},
		{
			name:  "substitution in string",
			input: "prefix-${TEST_VAR}-suffix",
			want:  "prefix-test-value-suffix",
		},
		{
			name:  "no substitution",
			input: "plain-string",
			want:  "plain-string",
		},
		{
			name:  "undefined var",
			input: "${UNDEFINED_VAR}",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := substituteEnvVars(tt.input); got != tt.want {
				t.Errorf("substituteEnvVars(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
