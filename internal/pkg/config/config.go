package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultPath is the config file read by Load.
const DefaultPath = "config.yaml"

// EnvPrefix prefixes environment overrides, e.g. HELPDESK_SERVER__PORT=9000.
const EnvPrefix = "HELPDESK_"

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Storage   StorageConfig   `koanf:"storage"`
	Reasoning ReasoningConfig `koanf:"reasoning"`
	Workflow  WorkflowConfig  `koanf:"workflow"`
	Dispatch  DispatchConfig  `koanf:"dispatch"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

type ServerConfig struct {
	Port           int            `koanf:"port"`
	RequestTimeout string         `koanf:"request_timeout"`
	APIKeys        []APIKeyConfig `koanf:"api_keys"`
}

type APIKeyConfig struct {
	KeyHash     string `koanf:"key_hash"`
	Description string `koanf:"description"`
}

type StorageConfig struct {
	Type   string       `koanf:"type"` // memory, sqlite
	SQLite SQLiteConfig `koanf:"sqlite"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

// ReasoningConfig configures the chat-completions service used for
// extraction, classification and historian answers.
type ReasoningConfig struct {
	BaseURL         string `koanf:"base_url"`
	APIKey          string `koanf:"api_key"`
	Model           string `koanf:"model"`
	Azure           bool   `koanf:"azure"`       // Azure OpenAI deployment URL layout and api-key header
	APIVersion      string `koanf:"api_version"` // Azure only
	MaxPromptTokens int    `koanf:"max_prompt_tokens"`
	// Seed overrides the built-in sampling seed when non-zero.
	Seed int `koanf:"seed"`
}

type WorkflowConfig struct {
	ExtractTimeout          string `koanf:"extract_timeout"`
	ClassifyTimeout         string `koanf:"classify_timeout"`
	HistorianTimeout        string `koanf:"historian_timeout"`
	MaxMessageChars         int    `koanf:"max_message_chars"`
	SimulateDispatchDefault bool   `koanf:"simulate_dispatch_default"`
	ForceSimulate           bool   `koanf:"force_simulate"` // ignore client requests for real dispatch
}

type DispatchConfig struct {
	URL                  string            `koanf:"url"`
	Timeout              string            `koanf:"timeout"`
	BlockPrivateNetworks bool              `koanf:"block_private_networks"`
	Headers              map[string]string `koanf:"headers"`
}

type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	ServiceName string `koanf:"service_name"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

var defaults = map[string]any{
	"server.port":                        8080,
	"server.request_timeout":             "90s",
	"storage.type":                       "memory",
	"storage.sqlite.path":                "./data/helpdesk.db",
	"reasoning.model":                    "gpt-4o-mini",
	"reasoning.api_version":              "2024-06-01",
	"reasoning.max_prompt_tokens":        2000,
	"workflow.extract_timeout":           "10s",
	"workflow.classify_timeout":          "15s",
	"workflow.historian_timeout":         "30s",
	"workflow.max_message_chars":         8000,
	"workflow.simulate_dispatch_default": true,
	"dispatch.timeout":                   "20s",
	"telemetry.service_name":             "helpdesk-router",
}

// Load reads DefaultPath (if present) and HELPDESK_ environment overrides.
func Load() (*Config, error) {
	return LoadFile(DefaultPath)
}

// LoadFile reads the given YAML file (if present) and HELPDESK_ environment overrides.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	// Try to load from the config file first
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			// File not found is OK, we'll use env vars
			if !os.IsNotExist(err) {
				return nil, err
			}
		}
	}

	// Load environment variables (can override file config)
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	// Default values
	for key, value := range defaults {
		if !k.Exists(key) {
			k.Set(key, value)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	// Substitute environment variables in secrets and endpoints
	cfg.Reasoning.APIKey = substituteEnvVars(cfg.Reasoning.APIKey)
	cfg.Reasoning.BaseURL = substituteEnvVars(cfg.Reasoning.BaseURL)
	cfg.Dispatch.URL = substituteEnvVars(cfg.Dispatch.URL)
	for name, value := range cfg.Dispatch.Headers {
		cfg.Dispatch.Headers[name] = substituteEnvVars(value)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values that would otherwise fail at first use.
func (c *Config) Validate() error {
	for name, value := range map[string]string{
		"server.request_timeout":     c.Server.RequestTimeout,
		"workflow.extract_timeout":   c.Workflow.ExtractTimeout,
		"workflow.classify_timeout":  c.Workflow.ClassifyTimeout,
		"workflow.historian_timeout": c.Workflow.HistorianTimeout,
		"dispatch.timeout":           c.Dispatch.Timeout,
	} {
		if _, err := ParseDuration(value, time.Second); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	if err := c.checkRequestBudget(); err != nil {
		return err
	}

	switch c.Storage.Type {
	case "memory":
	case "sqlite":
		if c.Storage.SQLite.Path == "" {
			return fmt.Errorf("storage.sqlite.path is required for sqlite storage")
		}
	default:
		return fmt.Errorf("storage.type: unsupported value %q (must be 'memory' or 'sqlite')", c.Storage.Type)
	}

	return nil
}

// checkRequestBudget rejects a request timeout shorter than one turn's
// external calls: extraction, classification, historian and dispatch.
func (c *Config) checkRequestBudget() error {
	request := MustDuration(c.Server.RequestTimeout, 90*time.Second)
	budget := MustDuration(c.Workflow.ExtractTimeout, 10*time.Second) +
		MustDuration(c.Workflow.ClassifyTimeout, 15*time.Second) +
		MustDuration(c.Workflow.HistorianTimeout, 30*time.Second) +
		MustDuration(c.Dispatch.Timeout, 20*time.Second)
	if request < budget {
		return fmt.Errorf("server.request_timeout %s is shorter than the workflow stage timeouts combined (%s)", request, budget)
	}
	return nil
}

// ParseDuration parses a duration string, returning def for an empty value.
func ParseDuration(value string, def time.Duration) (time.Duration, error) {
	if value == "" {
		return def, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", value, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid duration %q: must be positive", value)
	}
	return d, nil
}

// MustDuration parses a value already checked by Validate.
func MustDuration(value string, def time.Duration) time.Duration {
	d, err := ParseDuration(value, def)
	if err != nil {
		return def
	}
	return d
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
