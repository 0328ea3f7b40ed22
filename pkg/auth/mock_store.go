package auth

import (
	"sync"
)

// MockStore implements CredentialStore in memory for tests
type MockStore struct {
	creds map[string]*Credential
	mu    sync.RWMutex

	// Error injection for testing
	StoreError    error
	RetrieveError error
	ListError     error
	DeleteError   error

	retrievals int
}

// NewMockStore creates a new mock credential store
func NewMockStore() *MockStore {
	return &MockStore{
		creds: make(map[string]*Credential),
	}
}

// Store saves a copy of cred
func (m *MockStore) Store(cred *Credential) error {
	if m.StoreError != nil {
		return m.StoreError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if cred == nil || cred.Host == "" {
		return ErrInvalidCredentials
	}

	c := *cred
	m.creds[cred.Host] = &c
	return nil
}

// Retrieve returns a copy of the credential for host
func (m *MockStore) Retrieve(host string) (*Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retrievals++

	if m.RetrieveError != nil {
		return nil, m.RetrieveError
	}
	if host == "" {
		return nil, ErrInvalidCredentials
	}

	cred, ok := m.creds[host]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	c := *cred
	return &c, nil
}

// List returns copies of all credentials
func (m *MockStore) List() ([]*Credential, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Credential
	for _, cred := range m.creds {
		c := *cred
		result = append(result, &c)
	}
	return result, nil
}

// Delete removes the credential for host
func (m *MockStore) Delete(host string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if host == "" {
		return ErrInvalidCredentials
	}
	if _, ok := m.creds[host]; !ok {
		return ErrCredentialsNotFound
	}

	delete(m.creds, host)
	return nil
}

// Exists checks if a credential exists for host
func (m *MockStore) Exists(host string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.creds[host]
	return ok
}

// Count returns the number of stored credentials
func (m *MockStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.creds)
}

// Retrievals returns how many times Retrieve was called
func (m *MockStore) Retrievals() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.retrievals
}

// NewMockManager creates a Manager backed by a single mock store
func NewMockManager() (*Manager, *MockStore) {
	store := NewMockStore()
	return NewManagerWithStores(store), store
}
