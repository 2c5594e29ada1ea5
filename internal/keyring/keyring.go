package keyring

import (
	"errors"
	"fmt"
	"os"

	gokeyring "github.com/zalando/go-keyring"

	"github.com/jonandersen/tokenctl/internal/auth"
)

const (
	// ServiceName is the keyring service name for storing secrets.
	// Uses reverse domain notation for proper namespacing.
	ServiceName = "com.jonandersen.tokenctl"

	KeyClientID     = "client_id"
	KeyClientSecret = "client_secret"
	KeyRefreshToken = "refresh_token"

	EnvClientID     = "TOKENCTL_CLIENT_ID"
	EnvClientSecret = "TOKENCTL_CLIENT_SECRET"
	EnvRefreshToken = "TOKENCTL_REFRESH_TOKEN"
)

// envOverrides maps keyring keys to the environment variables that take
// precedence over them.
var envOverrides = map[string]string{
	KeyClientID:     EnvClientID,
	KeyClientSecret: EnvClientSecret,
	KeyRefreshToken: EnvRefreshToken,
}

// ErrNotFound is returned when a secret is not found in the keyring.
var ErrNotFound = errors.New("secret not found")

// Store provides an interface for secure secret storage.
type Store interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

// SystemStore implements Store using the system keyring.
type SystemStore struct{}

// NewSystemStore creates a new system keyring store.
func NewSystemStore() *SystemStore {
	return &SystemStore{}
}

// Get retrieves a secret from the system keyring.
func (s *SystemStore) Get(service, key string) (string, error) {
	secret, err := gokeyring.Get(service, key)
	if err != nil {
		if errors.Is(err, gokeyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	return secret, nil
}

// Set stores a secret in the system keyring.
func (s *SystemStore) Set(service, key, value string) error {
	return gokeyring.Set(service, key, value)
}

// Delete removes a secret from the system keyring.
func (s *SystemStore) Delete(service, key string) error {
	err := gokeyring.Delete(service, key)
	if err != nil && errors.Is(err, gokeyring.ErrNotFound) {
		return nil // Deleting non-existent key is not an error
	}
	return err
}

// EnvStore wraps another Store and checks environment variables first.
// This enables CI/headless environments to provide credentials via env vars.
type EnvStore struct {
	underlying Store
}

// NewEnvStore creates a new EnvStore wrapping the given store.
func NewEnvStore(underlying Store) *EnvStore {
	return &EnvStore{underlying: underlying}
}

// Get retrieves a secret, preferring the matching TOKENCTL_* variable.
func (e *EnvStore) Get(service, key string) (string, error) {
	if name, ok := envOverrides[key]; ok {
		if envVal := os.Getenv(name); envVal != "" {
			return envVal, nil
		}
	}
	return e.underlying.Get(service, key)
}

// Set stores a secret in the underlying store.
func (e *EnvStore) Set(service, key, value string) error {
	return e.underlying.Set(service, key, value)
}

// Delete removes a secret from the underlying store.
func (e *EnvStore) Delete(service, key string) error {
	return e.underlying.Delete(service, key)
}

// LoadClientCredentials reads the client ID, client secret and refresh
// token from store.
func LoadClientCredentials(store Store) (auth.ClientCredentials, error) {
	var creds auth.ClientCredentials
	fields := []struct {
		key string
		dst *string
	}{
		{KeyClientID, &creds.ClientID},
		{KeyClientSecret, &creds.ClientSecret},
		{KeyRefreshToken, &creds.RefreshToken},
	}

	for _, f := range fields {
		v, err := store.Get(ServiceName, f.key)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return auth.ClientCredentials{}, fmt.Errorf("%s not configured. Run: tokenctl configure\nOr set %s environment variable", f.key, envOverrides[f.key])
			}
			return auth.ClientCredentials{}, fmt.Errorf("failed to retrieve %s: %w", f.key, err)
		}
		*f.dst = v
	}
	return creds, nil
}

// SaveClientCredentials stores every field of creds.
func SaveClientCredentials(store Store, creds auth.ClientCredentials) error {
	values := map[string]string{
		KeyClientID:     creds.ClientID,
		KeyClientSecret: creds.ClientSecret,
		KeyRefreshToken: creds.RefreshToken,
	}
	for _, key := range []string{KeyClientID, KeyClientSecret, KeyRefreshToken} {
		if err := store.Set(ServiceName, key, values[key]); err != nil {
			return fmt.Errorf("failed to store %s: %w", key, err)
		}
	}
	return nil
}

// DeleteClientCredentials removes every stored field.
func DeleteClientCredentials(store Store) error {
	for _, key := range []string{KeyClientID, KeyClientSecret, KeyRefreshToken} {
		if err := store.Delete(ServiceName, key); err != nil {
			return fmt.Errorf("failed to delete %s: %w", key, err)
		}
	}
	return nil
}
