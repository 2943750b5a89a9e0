package provider

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// BackendConfig holds the connection settings for one delivery backend.
type BackendConfig struct {
	// Name identifies the backend in logs, metrics, and webhook paths.
	Name string `yaml:"name"`

	// Endpoint is the backend's HTTP API base URL.
	Endpoint string `yaml:"endpoint"`

	// APIKey authenticates outbound calls. Prefer setting it through the
	// APIKeyEnv indirection so the YAML file stays secret-free.
	APIKey    string `yaml:"api_key"`
	APIKeyEnv string `yaml:"api_key_env"`

	// WebhookSecret signs inbound delivery events from this backend. Like
	// the API key it can be loaded from the environment instead.
	WebhookSecret    string `yaml:"webhook_secret"`
	WebhookSecretEnv string `yaml:"webhook_secret_env"`

	// RatePerSecond and Burst configure the outbound token bucket.
	RatePerSecond float64 `yaml:"rate_per_second"`
	Burst         int     `yaml:"burst"`

	// Timeout bounds each backend call. Defaults to 10s.
	Timeout time.Duration `yaml:"timeout"`

	// SupportsReceipts declares whether the backend posts delivery webhooks.
	SupportsReceipts bool `yaml:"supports_receipts"`
}

// Config is the full providers file: one backend per channel. A nil entry
// disables that channel's backend (the noop provider is used instead).
type Config struct {
	Email *BackendConfig `yaml:"email"`
	Push  *BackendConfig `yaml:"push"`
	SMS   *BackendConfig `yaml:"sms"`
	Chat  *BackendConfig `yaml:"chat"`
}

// LoadConfig reads and validates the providers YAML file.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("LoadConfig: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("LoadConfig: parse %s: %w", path, err)
	}

	for channel, backend := range map[string]*BackendConfig{
		"email": cfg.Email, "push": cfg.Push, "sms": cfg.SMS, "chat": cfg.Chat,
	} {
		if backend == nil {
			continue
		}
		if err := backend.resolve(); err != nil {
			return nil, fmt.Errorf("LoadConfig: %s: %w", channel, err)
		}
	}
	return &cfg, nil
}

// WebhookSecrets maps backend name to its inbound signing secret for every
// configured backend that has one.
func (c *Config) WebhookSecrets() map[string]string {
	secrets := make(map[string]string)
	for _, b := range []*BackendConfig{c.Email, c.Push, c.SMS, c.Chat} {
		if b == nil || b.WebhookSecret == "" {
			continue
		}
		secrets[b.Name] = b.WebhookSecret
	}
	return secrets
}

// resolve fills secrets from the environment and applies defaults.
func (b *BackendConfig) resolve() error {
	if b.Name == "" {
		return fmt.Errorf("name is required")
	}
	if b.Endpoint == "" {
		return fmt.Errorf("endpoint is required")
	}
	if b.APIKeyEnv != "" {
		if v := os.Getenv(b.APIKeyEnv); v != "" {
			b.APIKey = v
		}
	}
	if b.WebhookSecretEnv != "" {
		if v := os.Getenv(b.WebhookSecretEnv); v != "" {
			b.WebhookSecret = v
		}
	}
	if b.RatePerSecond <= 0 {
		b.RatePerSecond = 1
	}
	if b.Burst <= 0 {
		b.Burst = 1
	}
	if b.Timeout <= 0 {
		b.Timeout = 10 * time.Second
	}
	return nil
}

func (b *BackendConfig) newLimiter() *RateLimiter {
	return NewRateLimiter(b.RatePerSecond, b.Burst)
}
