package eduapi

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unsignedJWT builds a token with the given exp claim; the store never
// verifies signatures so an empty one is fine.
func unsignedJWT(t *testing.T, exp time.Time) string {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
	claims, err := json.Marshal(map[string]any{"sub": "student-1", "exp": exp.Unix()})
	require.NoError(t, err)
	payload := base64.RawURLEncoding.EncodeToString(claims)
	return fmt.Sprintf("%s.%s.", header, payload)
}

func TestCredentialStoreSetGet(t *testing.T) {
	store := NewCredentialStore(nil)

	_, ok := store.Get()
	assert.False(t, ok, "empty store has no credential")

	require.NoError(t, store.Set(Credential{AccessToken: "a1", RefreshToken: "r1"}))
	cred, ok := store.Get()
	require.True(t, ok)
	assert.Equal(t, "a1", cred.AccessToken)
	assert.Equal(t, "r1", cred.RefreshToken)
}

func TestCredentialStoreSetKeepsRefreshToken(t *testing.T) {
	store := NewCredentialStore(nil)
	require.NoError(t, store.Set(Credential{AccessToken: "a1", RefreshToken: "r1"}))

	// Token rotation replaces only the access token.
	require.NoError(t, store.Set(Credential{AccessToken: "a2"}))
	cred, ok := store.Get()
	require.True(t, ok)
	assert.Equal(t, "a2", cred.AccessToken)
	assert.Equal(t, "r1", cred.RefreshToken)
}

func TestCredentialStoreClearIdempotent(t *testing.T) {
	store := NewCredentialStore(nil)
	require.NoError(t, store.Set(Credential{AccessToken: "a1", RefreshToken: "r1"}))
	require.NoError(t, store.SetUser(`{"name":"Sari"}`))

	require.NoError(t, store.Clear())
	_, ok := store.Get()
	assert.False(t, ok)
	_, ok = store.User()
	assert.False(t, ok, "clear removes the cached user too")

	// Clearing again must not fail.
	require.NoError(t, store.Clear())
}

func TestCredentialStoreUser(t *testing.T) {
	store := NewCredentialStore(nil)
	require.NoError(t, store.SetUser(`{"name":"Sari"}`))
	user, ok := store.User()
	require.True(t, ok)
	assert.JSONEq(t, `{"name":"Sari"}`, user)
}

func TestCredentialStoreExpiresAt(t *testing.T) {
	store := NewCredentialStore(nil)

	_, ok := store.ExpiresAt()
	assert.False(t, ok, "no credential, no expiry")

	require.NoError(t, store.Set(Credential{AccessToken: "not-a-jwt"}))
	_, ok = store.ExpiresAt()
	assert.False(t, ok, "opaque tokens have no readable expiry")
	assert.False(t, store.Expired(time.Minute), "opaque tokens are never considered expired")

	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	require.NoError(t, store.Set(Credential{AccessToken: unsignedJWT(t, exp)}))
	got, ok := store.ExpiresAt()
	require.True(t, ok)
	assert.True(t, got.Equal(exp), "got %v want %v", got, exp)
	assert.False(t, store.Expired(time.Minute))
	assert.True(t, store.Expired(2*time.Hour), "expiry inside the leeway window")
}

func TestCredentialStoreConcurrent(t *testing.T) {
	store := NewCredentialStore(nil)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = store.Set(Credential{AccessToken: fmt.Sprintf("tok-%d", i), RefreshToken: "r"})
			store.Get()
		}(i)
	}
	wg.Wait()

	_, ok := store.Get()
	assert.True(t, ok)
}

func TestFileStoragePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")

	store := NewCredentialStore(NewFileStorage(path))
	require.NoError(t, store.Set(Credential{AccessToken: "a1", RefreshToken: "r1"}))

	// A fresh store over the same file sees the persisted credential.
	reopened := NewCredentialStore(NewFileStorage(path))
	cred, ok := reopened.Get()
	require.True(t, ok)
	assert.Equal(t, "a1", cred.AccessToken)
	assert.Equal(t, "r1", cred.RefreshToken)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var data map[string]string
	require.NoError(t, json.Unmarshal(raw, &data))
	assert.Equal(t, "a1", data["auth_token"])
	assert.Equal(t, "r1", data["refresh_token"])
}

func TestFileStorageDeleteMissingKey(t *testing.T) {
	fs := NewFileStorage(filepath.Join(t.TempDir(), "credentials.json"))
	assert.NoError(t, fs.Delete("auth_token"))
}

func TestFileStoragePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	fs := NewFileStorage(path)
	require.NoError(t, fs.Set("auth_token", "a1"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
