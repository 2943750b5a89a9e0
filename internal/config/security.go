// Package config loads the optional security policy file named by
// SECURITY_CONFIG.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SecurityConfig is the YAML password policy for the env credential provider.
//
//	security:
//	  auth:
//	    provider: basic
//	    basic:
//	      min_password_length: 16
//	      weak_passwords: [password, admin]
type SecurityConfig struct {
	Security struct {
		Auth struct {
			Provider string `yaml:"provider"`
			Basic    struct {
				MinPasswordLength int      `yaml:"min_password_length"`
				WeakPasswords     []string `yaml:"weak_passwords"`
			} `yaml:"basic"`
		} `yaml:"auth"`
	} `yaml:"security"`
}

// LoadSecurityConfig reads and validates the policy file. The path comes
// from the operator's environment, not request input.
func LoadSecurityConfig(path string) (*SecurityConfig, error) {
	// #nosec G304 -- path is operator-supplied configuration
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config SecurityConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &config, nil
}

func (c *SecurityConfig) validate() error {
	auth := c.Security.Auth
	if auth.Provider == "" {
		return fmt.Errorf("auth provider is required")
	}
	if auth.Provider == "basic" && auth.Basic.MinPasswordLength < 8 {
		return fmt.Errorf("min_password_length must be at least 8")
	}
	return nil
}

// GetMinPasswordLength returns the configured minimum password length.
func (c *SecurityConfig) GetMinPasswordLength() int {
	return c.Security.Auth.Basic.MinPasswordLength
}

// GetWeakPasswords returns passwords the provider must reject outright.
func (c *SecurityConfig) GetWeakPasswords() []string {
	return c.Security.Auth.Basic.WeakPasswords
}
