package auth

import (
	"os"
	"strings"
	"time"
	"unicode"
)

const (
	cookieEnvPrefix    = "CHAINCRAWL_COOKIE_"
	userAgentEnvPrefix = "CHAINCRAWL_USER_AGENT_"
)

// EnvironmentStore implements CredentialStore over CHAINCRAWL_COOKIE_<HOST>
// and CHAINCRAWL_USER_AGENT_<HOST> variables. It is read-only.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// EnvKey returns the variable suffix for host: uppercased, with every
// character other than a letter or digit replaced by "_"
func EnvKey(host string) string {
	return strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return unicode.ToUpper(r)
		}
		return '_'
	}, NormalizeHost(host))
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(cred *Credential) error {
	return ErrStoreUnavailable
}

// Retrieve reads the credential for host from the environment
func (e *EnvironmentStore) Retrieve(host string) (*Credential, error) {
	if host == "" {
		return nil, ErrInvalidCredentials
	}

	key := EnvKey(host)
	cookie := os.Getenv(cookieEnvPrefix + key)
	if cookie == "" {
		return nil, ErrCredentialsNotFound
	}

	return &Credential{
		Host:         NormalizeHost(host),
		Cookie:       cookie,
		UserAgent:    os.Getenv(userAgentEnvPrefix + key),
		LastModified: time.Now(),
	}, nil
}

// List returns nothing: variable names do not round-trip to host names
func (e *EnvironmentStore) List() ([]*Credential, error) {
	return []*Credential{}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(host string) error {
	return ErrStoreUnavailable
}

// Exists checks if a cookie variable is set for host
func (e *EnvironmentStore) Exists(host string) bool {
	return host != "" && os.Getenv(cookieEnvPrefix+EnvKey(host)) != ""
}
