package secrets

import (
	"context"
	"errors"
	"os"
)

// Common errors
var (
	ErrSecretNotFound = errors.New("secret not found")
)

// Manager provides access to secrets from various sources
type Manager interface {
	// GetSecret retrieves a secret by key
	GetSecret(ctx context.Context, key string) (string, error)

	// GetSecretWithDefault retrieves a secret with a default value if not found
	GetSecretWithDefault(ctx context.Context, key, defaultValue string) string
}

// EnvManager reads secrets from environment variables. It is the fallback
// when Vault integration is disabled.
type EnvManager struct{}

// NewEnvManager creates an environment-backed secrets manager
func NewEnvManager() *EnvManager {
	return &EnvManager{}
}

// GetSecret retrieves a secret from the environment
func (m *EnvManager) GetSecret(_ context.Context, key string) (string, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return "", ErrSecretNotFound
	}
	return value, nil
}

// GetSecretWithDefault retrieves a secret with a default value if not found
func (m *EnvManager) GetSecretWithDefault(ctx context.Context, key, defaultValue string) string {
	value, err := m.GetSecret(ctx, key)
	if err != nil {
		return defaultValue
	}
	return value
}

// NewManager returns the Vault-backed manager when VAULT_ADDR is configured,
// otherwise the environment-backed one.
func NewManager() Manager {
	if os.Getenv("VAULT_ADDR") != "" && os.Getenv("VAULT_ENABLED") != "false" {
		if manager, err := NewVaultManager(); err == nil {
			return manager
		}
	}
	return NewEnvManager()
}
