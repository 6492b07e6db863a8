package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	vault "github.com/hashicorp/vault/api"
)

// Vault configuration errors
var (
	ErrNoVaultToken   = errors.New("no vault token provided")
	ErrNoVaultAddress = errors.New("no vault address provided")
)

// VaultConfig holds configuration for the Vault client
type VaultConfig struct {
	Address     string
	Token       string
	Namespace   string
	SecretsPath string
	Timeout     time.Duration
}

// VaultManager manages secrets with HashiCorp Vault. Secrets read once are
// cached for the life of the process; the keys used here (API credentials)
// do not rotate mid-run.
type VaultManager struct {
	client *vault.Client
	config VaultConfig
	cache  map[string]string
	mu     sync.RWMutex
}

// NewVaultManager creates a new Vault manager from environment configuration
func NewVaultManager() (*VaultManager, error) {
	config := VaultConfig{
		Address:     os.Getenv("VAULT_ADDR"),
		Token:       os.Getenv("VAULT_TOKEN"),
		Namespace:   os.Getenv("VAULT_NAMESPACE"),
		SecretsPath: os.Getenv("VAULT_SECRETS_PATH"),
		Timeout:     10 * time.Second,
	}

	if config.Address == "" {
		return nil, ErrNoVaultAddress
	}
	if config.Token == "" {
		return nil, ErrNoVaultToken
	}
	if config.SecretsPath == "" {
		config.SecretsPath = "secret/data/chat-brain"
	}

	vaultConfig := vault.DefaultConfig()
	vaultConfig.Address = config.Address
	vaultConfig.Timeout = config.Timeout

	client, err := vault.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	client.SetToken(config.Token)
	if config.Namespace != "" {
		client.SetNamespace(config.Namespace)
	}

	return &VaultManager{
		client: client,
		config: config,
		cache:  make(map[string]string),
	}, nil
}

// GetSecret retrieves a secret by key from the configured secrets path
func (m *VaultManager) GetSecret(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	if value, ok := m.cache[key]; ok {
		m.mu.RUnlock()
		return value, nil
	}
	m.mu.RUnlock()

	secret, err := m.client.Logical().ReadWithContext(ctx, m.config.SecretsPath)
	if err != nil {
		return "", fmt.Errorf("failed to read vault path %s: %w", m.config.SecretsPath, err)
	}
	if secret == nil || secret.Data == nil {
		return "", ErrSecretNotFound
	}

	// KV v2 nests the payload under "data"
	data := secret.Data
	if nested, ok := secret.Data["data"].(map[string]interface{}); ok {
		data = nested
	}

	raw, ok := data[key]
	if !ok {
		return "", ErrSecretNotFound
	}

	value, ok := raw.(string)
	if !ok || value == "" {
		return "", ErrSecretNotFound
	}

	m.mu.Lock()
	m.cache[key] = value
	m.mu.Unlock()

	return value, nil
}

// GetSecretWithDefault retrieves a secret with a default value if not found
func (m *VaultManager) GetSecretWithDefault(ctx context.Context, key, defaultValue string) string {
	value, err := m.GetSecret(ctx, key)
	if err != nil {
		return defaultValue
	}
	return value
}
