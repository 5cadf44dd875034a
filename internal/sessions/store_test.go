package sessions

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SamiESK/insta-scrapper/internal/models"
)

func testCookies() []models.Cookie {
	return []models.Cookie{
		{Name: "sessionid", Value: "abc123", Domain: ".instagram.com", Path: "/", Expires: time.Now().Add(24 * time.Hour), HTTPOnly: true, Secure: true},
		{Name: "csrftoken", Value: "tok", Domain: ".instagram.com", Path: "/"},
	}
}

func TestSaveLoadRoundtrip(t *testing.T) {
	store := NewStore(t.TempDir(), nil)

	require.NoError(t, store.Save(7, testCookies()))
	assert.True(t, store.Exists(7))

	blob, err := store.Load(7)
	require.NoError(t, err)
	assert.Equal(t, 7, blob.AccountID)
	require.Len(t, blob.Cookies, 2)
	assert.Equal(t, "sessionid", blob.Cookies[0].Name)
	assert.Equal(t, "abc123", blob.Cookies[0].Value)
}

func TestLoadMissingReturnsNotFound(t *testing.T) {
	store := NewStore(t.TempDir(), nil)

	_, err := store.Load(42)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, store.Exists(42))
}

func TestLoadCorruptFileReturnsNotFound(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, nil)

	require.NoError(t, os.WriteFile(store.Path(9), []byte("{not json"), 0600))

	// Corrupt session should trigger re-login, not crash the run
	_, err := store.Load(9)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveOverwrites(t *testing.T) {
	store := NewStore(t.TempDir(), nil)

	require.NoError(t, store.Save(3, testCookies()))
	require.NoError(t, store.Save(3, []models.Cookie{{Name: "only", Value: "one"}}))

	blob, err := store.Load(3)
	require.NoError(t, err)
	require.Len(t, blob.Cookies, 1)
	assert.Equal(t, "only", blob.Cookies[0].Name)
}

func TestDeleteIsIdempotent(t *testing.T) {
	store := NewStore(t.TempDir(), nil)

	require.NoError(t, store.Save(5, testCookies()))
	require.NoError(t, store.Delete(5))
	require.NoError(t, store.Delete(5))
	assert.False(t, store.Exists(5))
}
