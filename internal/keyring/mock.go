package keyring

import "sync"

// MockStore implements Store for testing. It stores secrets in memory
// and can be configured to return errors for testing error handling.
type MockStore struct {
	mu     sync.Mutex
	data   map[string]string
	getErr error
	setErr error
	delErr error
}

// NewMockStore creates a new mock keyring store for testing.
func NewMockStore() *MockStore {
	return &MockStore{
		data: make(map[string]string),
	}
}

func mockKey(service, key string) string {
	return service + ":" + key
}

// Get retrieves a secret from the mock store.
func (m *MockStore) Get(service, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", m.getErr
	}
	v, ok := m.data[mockKey(service, key)]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// Set stores a secret in the mock store.
func (m *MockStore) Set(service, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.data[mockKey(service, key)] = value
	return nil
}

// Delete removes a secret from the mock store.
func (m *MockStore) Delete(service, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.delErr != nil {
		return m.delErr
	}
	delete(m.data, mockKey(service, key))
	return nil
}

// WithGetError configures the mock to return an error on Get calls.
func (m *MockStore) WithGetError(err error) *MockStore {
	m.getErr = err
	return m
}

// WithSetError configures the mock to return an error on Set calls.
func (m *MockStore) WithSetError(err error) *MockStore {
	m.setErr = err
	return m
}

// WithDeleteError configures the mock to return an error on Delete calls.
func (m *MockStore) WithDeleteError(err error) *MockStore {
	m.delErr = err
	return m
}

// WithData pre-populates the mock store with a secret.
func (m *MockStore) WithData(service, key, value string) *MockStore {
	m.data[mockKey(service, key)] = value
	return m
}

// WithClientCredentials pre-populates all three client credential fields.
func (m *MockStore) WithClientCredentials(clientID, clientSecret, refreshToken string) *MockStore {
	return m.WithData(ServiceName, KeyClientID, clientID).
		WithData(ServiceName, KeyClientSecret, clientSecret).
		WithData(ServiceName, KeyRefreshToken, refreshToken)
}
