// Package auth validates API caller credentials through a pluggable provider.
package auth

import "context"

// Credentials is a username/password pair presented at token issuance.
type Credentials struct {
	Username string
	Password string
}

// CredentialRequirements describes a provider's password policy and the
// environment variables it needs at startup.
type CredentialRequirements struct {
	MinPasswordLength int
	WeakPasswords     []string

	// RequiredEnvVars lists the environment variables that must be set for
	// the provider to authenticate anyone. Callers fail fast when one is
	// missing.
	RequiredEnvVars []string
}

// AuthProvider authenticates callers and maps them to roles. Implementations
// range from env-var credential stores to external identity services.
type AuthProvider interface {
	ValidateCredentials(ctx context.Context, creds Credentials) error
	IdentifyRole(ctx context.Context, username string) (string, error)
	GetRequirements() CredentialRequirements
	Name() string
}

// AuthService fronts the configured provider so handlers never depend on a
// concrete implementation.
type AuthService struct {
	provider AuthProvider
}

func NewAuthService(provider AuthProvider) *AuthService {
	return &AuthService{provider: provider}
}

func (s *AuthService) ValidateCredentials(ctx context.Context, creds Credentials) error {
	return s.provider.ValidateCredentials(ctx, creds)
}

func (s *AuthService) IdentifyRole(ctx context.Context, username string) (string, error) {
	return s.provider.IdentifyRole(ctx, username)
}

func (s *AuthService) GetProvider() AuthProvider {
	return s.provider
}
