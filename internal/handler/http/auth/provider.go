package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"os"
	"strings"

	authservice "learnloop/internal/service/auth"
)

// EnvAuthProvider authenticates the two principal kinds the notification API
// knows about against environment-configured credentials: the admin operator
// (ADMIN_USER / ADMIN_USER_PASSWORD) and a shared service account for
// backend callers (SERVICE_USER / SERVICE_USER_PASSWORD).
type EnvAuthProvider struct {
	minPasswordLength int
	weakPasswords     []string
}

// NewEnvAuthProvider creates a new environment-based auth provider.
func NewEnvAuthProvider(minPasswordLength int, weakPasswords []string) *EnvAuthProvider {
	return &EnvAuthProvider{
		minPasswordLength: minPasswordLength,
		weakPasswords:     weakPasswords,
	}
}

// ValidateCredentials validates credentials against environment variables.
func (p *EnvAuthProvider) ValidateCredentials(ctx context.Context, creds authservice.Credentials) error {
	if creds.Username == "" || creds.Password == "" {
		return fmt.Errorf("credentials must not be empty")
	}
	if len(creds.Password) < p.minPasswordLength {
		return fmt.Errorf("password must be at least %d characters", p.minPasswordLength)
	}
	for _, weak := range p.weakPasswords {
		if creds.Password == weak || strings.HasPrefix(creds.Password, weak) {
			return fmt.Errorf("weak password detected")
		}
	}

	if matchEnv(creds.Username, creds.Password, "ADMIN_USER", "ADMIN_USER_PASSWORD") {
		return nil
	}
	if matchEnv(creds.Username, creds.Password, "SERVICE_USER", "SERVICE_USER_PASSWORD") {
		return nil
	}
	return fmt.Errorf("invalid credentials")
}

// IdentifyRole returns the role for a username.
func (p *EnvAuthProvider) IdentifyRole(ctx context.Context, username string) (string, error) {
	if username == "" {
		return "", fmt.Errorf("username must not be empty")
	}
	if subtle.ConstantTimeCompare([]byte(username), []byte(os.Getenv("ADMIN_USER"))) == 1 {
		return RoleAdmin, nil
	}
	if subtle.ConstantTimeCompare([]byte(username), []byte(os.Getenv("SERVICE_USER"))) == 1 {
		return RoleService, nil
	}
	return "", fmt.Errorf("user not found")
}

// GetRequirements returns the password requirements.
func (p *EnvAuthProvider) GetRequirements() authservice.CredentialRequirements {
	return authservice.CredentialRequirements{
		MinPasswordLength: p.minPasswordLength,
		WeakPasswords:     p.weakPasswords,
		RequiredEnvVars: []string{
			"ADMIN_USER", "ADMIN_USER_PASSWORD",
			"SERVICE_USER", "SERVICE_USER_PASSWORD",
		},
	}
}

// Name returns the provider name.
func (p *EnvAuthProvider) Name() string {
	return "env"
}

// matchEnv compares both credential halves in constant time. An unset
// environment pair never matches.
func matchEnv(username, password, userKey, passKey string) bool {
	wantUser := os.Getenv(userKey)
	wantPass := os.Getenv(passKey)
	if wantUser == "" || wantPass == "" {
		return false
	}
	userMatch := subtle.ConstantTimeCompare([]byte(username), []byte(wantUser)) == 1
	passMatch := subtle.ConstantTimeCompare([]byte(password), []byte(wantPass)) == 1
	return userMatch && passMatch
}
