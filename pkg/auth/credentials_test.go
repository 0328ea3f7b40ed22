package auth

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zalando/go-keyring"
)

func TestCredentialManager(t *testing.T) {
	manager, mockStore := NewMockManager()

	cred := &Credential{
		Host:      "Comics.Example.com:443",
		Cookie:    "session=abcdef0123456789; theme=dark",
		UserAgent: "TestAgent/1.0",
	}

	if err := manager.Store(cred); err != nil {
		t.Fatalf("Failed to store credential: %v", err)
	}
	if cred.LastModified.IsZero() {
		t.Error("Store should stamp LastModified")
	}

	retrieved, err := manager.Retrieve("comics.example.com")
	if err != nil {
		t.Fatalf("Failed to retrieve credential: %v", err)
	}
	if retrieved.Host != "comics.example.com" {
		t.Errorf("Host not normalized: got %s", retrieved.Host)
	}
	if retrieved.Cookie != cred.Cookie {
		t.Errorf("Cookie mismatch: got %s, want %s", retrieved.Cookie, cred.Cookie)
	}

	creds, err := manager.List()
	if err != nil {
		t.Errorf("Failed to list credentials: %v", err)
	}
	if len(creds) != 1 {
		t.Errorf("Expected 1 credential in list, got %d", len(creds))
	}

	if err := manager.Delete("comics.example.com"); err != nil {
		t.Errorf("Failed to delete credential: %v", err)
	}
	if _, err := manager.Retrieve("comics.example.com"); !errors.Is(err, ErrCredentialsNotFound) {
		t.Errorf("Expected ErrCredentialsNotFound after delete, got %v", err)
	}
	if mockStore.Count() != 0 {
		t.Errorf("Expected 0 credentials after deletion, got %d", mockStore.Count())
	}
}

func TestManagerStoreValidation(t *testing.T) {
	manager, _ := NewMockManager()

	if err := manager.Store(&Credential{Cookie: "a=b"}); err == nil {
		t.Error("Expected error for missing host")
	}
	if err := manager.Store(&Credential{Host: "example.com"}); err == nil {
		t.Error("Expected error for missing cookie")
	}
}

func TestManagerForHost(t *testing.T) {
	manager, store := NewMockManager()
	_ = store.Store(&Credential{Host: "example.com", Cookie: "parent=1", UserAgent: "ParentAgent"})
	_ = store.Store(&Credential{Host: "cdn.example.com", Cookie: "cdn=1"})
	_ = store.Store(&Credential{Host: "localhost", Cookie: "local=1"})

	tests := []struct {
		host       string
		wantCookie string
		wantAgent  string
	}{
		{"example.com", "parent=1", "ParentAgent"},
		{"www.example.com", "parent=1", "ParentAgent"},
		{"cdn.example.com", "cdn=1", ""},
		{"img.cdn.example.com", "cdn=1", ""},
		{"EXAMPLE.COM:8080", "parent=1", "ParentAgent"},
		{"localhost:3000", "local=1", ""},
		{"other.org", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			cookie, agent := manager.ForHost(tt.host)
			if cookie != tt.wantCookie {
				t.Errorf("cookie = %q, want %q", cookie, tt.wantCookie)
			}
			if agent != tt.wantAgent {
				t.Errorf("user agent = %q, want %q", agent, tt.wantAgent)
			}
		})
	}
}

func TestManagerForHostCaches(t *testing.T) {
	manager, store := NewMockManager()
	_ = store.Store(&Credential{Host: "example.com", Cookie: "a=1"})

	manager.ForHost("example.com")
	before := store.Retrievals()
	for i := 0; i < 5; i++ {
		manager.ForHost("example.com")
	}
	if store.Retrievals() != before {
		t.Errorf("Expected cached lookups, store was hit %d more times", store.Retrievals()-before)
	}

	// Storing through the manager invalidates the cache
	if err := manager.Store(&Credential{Host: "example.com", Cookie: "a=2"}); err != nil {
		t.Fatal(err)
	}
	if cookie, _ := manager.ForHost("example.com"); cookie != "a=2" {
		t.Errorf("Expected refreshed cookie, got %q", cookie)
	}
}

func TestManagerFallsThroughStores(t *testing.T) {
	broken := NewMockStore()
	broken.StoreError = fmt.Errorf("keychain locked")
	broken.RetrieveError = fmt.Errorf("keychain locked")
	backup := NewMockStore()

	manager := NewManagerWithStores(broken, backup)
	if err := manager.Store(&Credential{Host: "example.com", Cookie: "a=1"}); err != nil {
		t.Fatalf("Expected fallback store to accept credential: %v", err)
	}
	if backup.Count() != 1 {
		t.Errorf("Expected credential in backup store, got %d", backup.Count())
	}
	if cookie, _ := manager.ForHost("example.com"); cookie != "a=1" {
		t.Errorf("Expected cookie from backup store, got %q", cookie)
	}
}

func TestManagerListPrefersNewest(t *testing.T) {
	older := NewMockStore()
	newer := NewMockStore()
	_ = older.Store(&Credential{Host: "b.example", Cookie: "old", LastModified: time.Now().Add(-time.Hour)})
	_ = newer.Store(&Credential{Host: "b.example", Cookie: "new", LastModified: time.Now()})
	_ = newer.Store(&Credential{Host: "a.example", Cookie: "a"})

	creds, err := NewManagerWithStores(older, newer).List()
	if err != nil {
		t.Fatal(err)
	}
	if len(creds) != 2 {
		t.Fatalf("Expected 2 credentials, got %d", len(creds))
	}
	if creds[0].Host != "a.example" || creds[1].Host != "b.example" {
		t.Errorf("Expected sorted hosts, got %s, %s", creds[0].Host, creds[1].Host)
	}
	if creds[1].Cookie != "new" {
		t.Errorf("Expected newest cookie, got %q", creds[1].Cookie)
	}
}

func TestEncryptedFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.enc")
	t.Setenv(PassphraseEnv, "test_passphrase_123")

	store, err := NewEncryptedFileStore(path)
	if err != nil {
		t.Fatalf("Failed to create encrypted store: %v", err)
	}

	cred := &Credential{Host: "example.com", Cookie: "encrypted_session_cookie"}
	if err := store.Store(cred); err != nil {
		t.Fatalf("Failed to store in encrypted file: %v", err)
	}

	retrieved, err := store.Retrieve("example.com")
	if err != nil {
		t.Fatalf("Failed to retrieve from encrypted file: %v", err)
	}
	if retrieved.Cookie != cred.Cookie {
		t.Errorf("Cookie mismatch after encryption/decryption")
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(content, []byte("encrypted_session_cookie")) {
		t.Error("File contains plaintext cookie")
	}

	// A second store with another passphrase cannot read the file
	t.Setenv(PassphraseEnv, "wrong_passphrase")
	other, err := NewEncryptedFileStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := other.Retrieve("example.com"); err == nil {
		t.Error("Expected decryption failure with the wrong passphrase")
	}

	if err := store.Delete("example.com"); err != nil {
		t.Errorf("Failed to delete: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Expected file removed after deleting the last credential")
	}
}

func TestEncryptedFileStoreKeepsSaltAcrossWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.enc")
	t.Setenv(PassphraseEnv, "salty")

	store, err := NewEncryptedFileStore(path)
	if err != nil {
		t.Fatal(err)
	}
	_ = store.Store(&Credential{Host: "a.example", Cookie: "a=1"})
	_ = store.Store(&Credential{Host: "b.example", Cookie: "b=1"})

	creds, err := store.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(creds) != 2 {
		t.Errorf("Expected 2 credentials, got %d", len(creds))
	}
	if !store.Exists("a.example") || store.Exists("c.example") {
		t.Error("Exists reported the wrong hosts")
	}
}

func TestEnvironmentStore(t *testing.T) {
	t.Setenv("CHAINCRAWL_COOKIE_COMICS_EXAMPLE_COM", "env=1")
	t.Setenv("CHAINCRAWL_USER_AGENT_COMICS_EXAMPLE_COM", "EnvAgent")

	store := NewEnvironmentStore()

	cred, err := store.Retrieve("comics.example.com")
	if err != nil {
		t.Fatalf("Failed to retrieve from environment: %v", err)
	}
	if cred.Cookie != "env=1" || cred.UserAgent != "EnvAgent" {
		t.Errorf("Unexpected credential: %+v", cred)
	}
	if !store.Exists("comics.example.com") {
		t.Error("Expected Exists to see the variable")
	}

	if _, err := store.Retrieve("other.example.com"); !errors.Is(err, ErrCredentialsNotFound) {
		t.Errorf("Expected ErrCredentialsNotFound, got %v", err)
	}
	if err := store.Store(&Credential{Host: "x"}); err != ErrStoreUnavailable {
		t.Error("Expected ErrStoreUnavailable for environment store")
	}
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"example.com":       "EXAMPLE_COM",
		"my-site.io:8080":   "MY_SITE_IO",
		"Sub.Domain.Org.":   "SUB_DOMAIN_ORG",
		"xn--bcher-kva.com": "XN__BCHER_KVA_COM",
	}
	for host, want := range tests {
		if got := EnvKey(host); got != want {
			t.Errorf("EnvKey(%q) = %q, want %q", host, got, want)
		}
	}
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()

	store, err := NewKeyringStore()
	if err != nil {
		t.Fatalf("Failed to create keyring store: %v", err)
	}

	if err := store.Store(&Credential{Host: "example.com", Cookie: "k=1"}); err != nil {
		t.Fatalf("Failed to store in keyring: %v", err)
	}
	cred, err := store.Retrieve("example.com")
	if err != nil {
		t.Fatalf("Failed to retrieve from keyring: %v", err)
	}
	if cred.Cookie != "k=1" {
		t.Errorf("Cookie mismatch: got %s", cred.Cookie)
	}
	if !store.Exists("example.com") {
		t.Error("Expected credential to exist")
	}

	if err := store.Delete("example.com"); err != nil {
		t.Errorf("Failed to delete: %v", err)
	}
	if _, err := store.Retrieve("example.com"); !errors.Is(err, ErrCredentialsNotFound) {
		t.Errorf("Expected ErrCredentialsNotFound, got %v", err)
	}
}

func TestKeyringUnavailable(t *testing.T) {
	keyring.MockInitWithError(errors.New("no secret service"))
	t.Cleanup(keyring.MockInit)

	if _, err := NewKeyringStore(); err == nil {
		t.Error("Expected error when the keychain is unavailable")
	}
}

func TestSanitizeCredential(t *testing.T) {
	cred := &Credential{Host: "example.com", Cookie: "session=abcdef0123456789"}
	sanitized := SanitizeCredential(cred)

	if sanitized.Cookie == cred.Cookie {
		t.Error("Cookie should be masked")
	}
	if sanitized.Cookie != "sess...6789" {
		t.Errorf("Unexpected mask: %s", sanitized.Cookie)
	}
	if sanitized.Host != cred.Host {
		t.Error("Host should not be masked")
	}
	if SanitizeCredential(&Credential{Cookie: "short"}).Cookie != "********" {
		t.Error("Short cookies should be fully masked")
	}
}

func TestShowCookieGuide(t *testing.T) {
	var buf bytes.Buffer
	ShowCookieGuide(&buf, "comics.example.com")

	out := buf.String()
	if !strings.Contains(out, "https://comics.example.com") {
		t.Error("Guide should link to the host")
	}
	if !strings.Contains(out, "CHAINCRAWL_COOKIE_COMICS_EXAMPLE_COM") {
		t.Error("Guide should name the environment variable")
	}
}
