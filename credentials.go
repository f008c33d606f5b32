package eduapi

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Storage keys mirror the browser-local storage layout used by the web
// clients; a file-backed Storage persists the same keys on disk.
const (
	storageKeyAccessToken  = "auth_token"
	storageKeyRefreshToken = "refresh_token"
	storageKeyUser         = "user"
)

// Credential is an access/refresh token pair authorizing API calls.
type Credential struct {
	AccessToken  string
	RefreshToken string
}

// Storage is the persistence backend for the credential store.
// Implementations must be safe for concurrent use.
type Storage interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Delete(key string) error
}

// CredentialStore holds the current credential. It is the only writer of
// credential state: login and refresh go through Set, logout and failed
// refresh go through Clear. Safe for concurrent use.
type CredentialStore struct {
	mu      sync.RWMutex
	storage Storage
}

// NewCredentialStore creates a store on the given backend. A nil backend
// falls back to in-memory storage.
func NewCredentialStore(storage Storage) *CredentialStore {
	if storage == nil {
		storage = NewMemoryStorage()
	}
	return &CredentialStore{storage: storage}
}

// Get returns the current credential, if any.
func (s *CredentialStore) Get() (Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	access, ok := s.storage.Get(storageKeyAccessToken)
	if !ok || access == "" {
		return Credential{}, false
	}
	refresh, _ := s.storage.Get(storageKeyRefreshToken)
	return Credential{AccessToken: access, RefreshToken: refresh}, true
}

// Set atomically replaces the current credential.
func (s *CredentialStore) Set(cred Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.storage.Set(storageKeyAccessToken, cred.AccessToken); err != nil {
		return fmt.Errorf("eduapi: persist access token: %w", err)
	}
	if cred.RefreshToken != "" {
		if err := s.storage.Set(storageKeyRefreshToken, cred.RefreshToken); err != nil {
			return fmt.Errorf("eduapi: persist refresh token: %w", err)
		}
	}
	return nil
}

// Clear removes the credential and the cached user profile. Idempotent:
// clearing an empty store is a no-op.
func (s *CredentialStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range []string{storageKeyAccessToken, storageKeyRefreshToken, storageKeyUser} {
		if err := s.storage.Delete(key); err != nil {
			return fmt.Errorf("eduapi: clear %s: %w", key, err)
		}
	}
	return nil
}

// SetUser caches the serialized user profile alongside the credential.
func (s *CredentialStore) SetUser(serialized string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storage.Set(storageKeyUser, serialized)
}

// User returns the cached user profile, if any.
func (s *CredentialStore) User() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.storage.Get(storageKeyUser)
}

// ExpiresAt inspects the access token's exp claim without verifying the
// signature. Returns false when no credential exists or the token is not a
// JWT with an expiry.
func (s *CredentialStore) ExpiresAt() (time.Time, bool) {
	cred, ok := s.Get()
	if !ok {
		return time.Time{}, false
	}
	token, _, err := jwt.NewParser().ParseUnverified(cred.AccessToken, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	exp, err := token.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// Expired reports whether the access token expires within the leeway
// window. Tokens without a readable expiry are never considered expired;
// the 401 path handles them.
func (s *CredentialStore) Expired(leeway time.Duration) bool {
	exp, ok := s.ExpiresAt()
	if !ok {
		return false
	}
	return time.Until(exp) <= leeway
}

// MemoryStorage is a map-backed Storage for tests and short-lived processes.
type MemoryStorage struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryStorage creates an empty in-memory storage backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: make(map[string]string)}
}

func (m *MemoryStorage) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.data[key]
	return value, ok
}

func (m *MemoryStorage) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MemoryStorage) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// FileStorage persists keys as a JSON object in a single file, the desktop
// analog of browser-local storage. Writes go through a temp file rename.
type FileStorage struct {
	mu   sync.Mutex
	path string
}

// NewFileStorage creates a file-backed storage at path. The file is created
// on first write with 0600 permissions.
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

func (f *FileStorage) Get(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.load()
	if err != nil {
		return "", false
	}
	value, ok := data[key]
	return value, ok
}

func (f *FileStorage) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.load()
	if err != nil {
		return err
	}
	data[key] = value
	return f.save(data)
}

func (f *FileStorage) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := data[key]; !ok {
		return nil
	}
	delete(data, key)
	return f.save(data)
}

func (f *FileStorage) load() (map[string]string, error) {
	raw, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	data := map[string]string{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, err
		}
	}
	return data, nil
}

func (f *FileStorage) save(data map[string]string) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}
