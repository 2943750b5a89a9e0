package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "security.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadSecurityConfig_Valid(t *testing.T) {
	path := writeConfig(t, `
security:
  auth:
    provider: basic
    basic:
      min_password_length: 16
      weak_passwords:
        - password
        - letmein
`)

	cfg, err := LoadSecurityConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.GetMinPasswordLength())
	assert.Equal(t, []string{"password", "letmein"}, cfg.GetWeakPasswords())
}

func TestLoadSecurityConfig_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing provider",
			yaml:    "security:\n  auth: {}\n",
			wantErr: "auth provider is required",
		},
		{
			name: "password length too short",
			yaml: `
security:
  auth:
    provider: basic
    basic:
      min_password_length: 6
`,
			wantErr: "min_password_length must be at least 8",
		},
		{
			name:    "malformed yaml",
			yaml:    "security: [not a mapping",
			wantErr: "failed to parse config",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadSecurityConfig(writeConfig(t, tt.yaml))
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLoadSecurityConfig_MissingFile(t *testing.T) {
	_, err := LoadSecurityConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestLoadSecurityConfig_NonBasicProviderSkipsPasswordPolicy(t *testing.T) {
	path := writeConfig(t, `
security:
  auth:
    provider: oidc
`)

	cfg, err := LoadSecurityConfig(path)
	require.NoError(t, err)
	assert.Zero(t, cfg.GetMinPasswordLength())
}
