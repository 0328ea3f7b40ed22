package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"
)

// Credential is what gets attached to requests for one host
type Credential struct {
	Host         string    `json:"host"`
	Cookie       string    `json:"cookie"`
	UserAgent    string    `json:"user_agent,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// CredentialStore is the interface for storing and retrieving credentials
type CredentialStore interface {
	// Store saves the credential for its host
	Store(cred *Credential) error

	// Retrieve gets the credential for a host
	Retrieve(host string) (*Credential, error)

	// List returns all stored credentials
	List() ([]*Credential, error)

	// Delete removes the credential for a host
	Delete(host string) error

	// Exists checks if a credential exists for a host
	Exists(host string) bool
}

// Manager handles credential storage with fallback mechanisms
type Manager struct {
	stores []CredentialStore

	mu    sync.Mutex
	cache map[string]*Credential
}

// NewManager creates a new credential manager with appropriate storage backends
func NewManager() (*Manager, error) {
	var stores []CredentialStore

	// System keychain first
	keyringStore, err := NewKeyringStore()
	if err == nil {
		stores = append(stores, keyringStore)
	}

	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "credentials.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)

	stores = append(stores, NewEnvironmentStore())

	return NewManagerWithStores(stores...), nil
}

// NewManagerWithStores creates a Manager that consults stores in order
func NewManagerWithStores(stores ...CredentialStore) *Manager {
	return &Manager{
		stores: stores,
		cache:  make(map[string]*Credential),
	}
}

// Store saves the credential using the first store that accepts it
func (m *Manager) Store(cred *Credential) error {
	if cred == nil || cred.Host == "" {
		return errors.New("host is required")
	}
	if cred.Cookie == "" {
		return errors.New("cookie is required")
	}

	cred.Host = NormalizeHost(cred.Host)
	cred.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		if err := store.Store(cred); err == nil {
			m.forget()
			return nil
		} else {
			lastErr = err
		}
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store credentials: %w", lastErr)
	}
	return errors.New("no available credential stores")
}

// Retrieve gets the credential for host from the first store that has it
func (m *Manager) Retrieve(host string) (*Credential, error) {
	host = NormalizeHost(host)
	for _, store := range m.stores {
		if cred, err := store.Retrieve(host); err == nil && cred != nil {
			return cred, nil
		}
	}
	return nil, fmt.Errorf("%w for host: %s", ErrCredentialsNotFound, host)
}

// ForHost returns the cookie and User-Agent override for host. A credential
// stored for a parent domain applies to its subdomains. Lookups are cached
// for the lifetime of the Manager.
func (m *Manager) ForHost(host string) (string, string) {
	host = NormalizeHost(host)

	m.mu.Lock()
	cred, ok := m.cache[host]
	m.mu.Unlock()

	if !ok {
		cred = m.lookup(host)
		m.mu.Lock()
		m.cache[host] = cred
		m.mu.Unlock()
	}

	if cred == nil {
		return "", ""
	}
	return cred.Cookie, cred.UserAgent
}

// lookup walks from host up to its registrable parents, stopping before
// bare top-level labels
func (m *Manager) lookup(host string) *Credential {
	for candidate := host; strings.Contains(candidate, "."); {
		if cred, err := m.Retrieve(candidate); err == nil {
			return cred
		}
		_, parent, _ := strings.Cut(candidate, ".")
		candidate = parent
	}
	if !strings.Contains(host, ".") {
		if cred, err := m.Retrieve(host); err == nil {
			return cred
		}
	}
	return nil
}

// List returns credentials from all stores, sorted by host
func (m *Manager) List() ([]*Credential, error) {
	byHost := make(map[string]*Credential)

	for _, store := range m.stores {
		creds, err := store.List()
		if err != nil {
			continue
		}
		for _, cred := range creds {
			// Use the most recently modified version
			if existing, ok := byHost[cred.Host]; !ok || cred.LastModified.After(existing.LastModified) {
				byHost[cred.Host] = cred
			}
		}
	}

	result := make([]*Credential, 0, len(byHost))
	for _, cred := range byHost {
		result = append(result, cred)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Host < result[j].Host })

	return result, nil
}

// Delete removes the credential for host from all stores
func (m *Manager) Delete(host string) error {
	host = NormalizeHost(host)
	var deleted bool
	var lastErr error

	for _, store := range m.stores {
		if err := store.Delete(host); err == nil {
			deleted = true
		} else {
			lastErr = err
		}
	}
	m.forget()

	if !deleted && lastErr != nil {
		return fmt.Errorf("failed to delete credentials: %w", lastErr)
	}
	if !deleted {
		return fmt.Errorf("%w for host: %s", ErrCredentialsNotFound, host)
	}

	return nil
}

func (m *Manager) forget() {
	m.mu.Lock()
	m.cache = make(map[string]*Credential)
	m.mu.Unlock()
}

// NormalizeHost lowercases host and strips a port and trailing dot
func NormalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, ok := strings.Cut(host, ":"); ok && !strings.Contains(host, "]") {
		host = h
	}
	return strings.TrimSuffix(host, ".")
}

// getConfigDir returns the configuration directory path
func getConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "chaincrawl")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "chaincrawl")
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "chaincrawl")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "chaincrawl")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// SanitizeCredential creates a copy of cred with the cookie masked
func SanitizeCredential(cred *Credential) *Credential {
	if cred == nil {
		return nil
	}

	return &Credential{
		Host:         cred.Host,
		Cookie:       maskString(cred.Cookie),
		UserAgent:    cred.UserAgent,
		LastModified: cred.LastModified,
	}
}

// maskString masks all but the first 4 and last 4 characters of a string
func maskString(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// Errors
var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)
