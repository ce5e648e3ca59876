package secrets

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeSecrets(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "secrets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestStore_FileKeys(t *testing.T) {
	path := writeSecrets(t, "tomtom_api_key: tt-from-file\nhere_api_key: here-from-file\n")
	store := NewStore(path, "", "", discardLogger())

	assert.Equal(t, "tt-from-file", store.TomTomKey())
	assert.Equal(t, "here-from-file", store.HereKey())
}

func TestStore_EnvFallback(t *testing.T) {
	t.Run("no file configured", func(t *testing.T) {
		store := NewStore("", "tt-env", "here-env", discardLogger())

		assert.Equal(t, "tt-env", store.TomTomKey())
		assert.Equal(t, "here-env", store.HereKey())
	})

	t.Run("file missing a key", func(t *testing.T) {
		path := writeSecrets(t, "tomtom_api_key: tt-from-file\n")
		store := NewStore(path, "tt-env", "here-env", discardLogger())

		assert.Equal(t, "tt-from-file", store.TomTomKey())
		assert.Equal(t, "here-env", store.HereKey())
	})

	t.Run("unreadable file", func(t *testing.T) {
		store := NewStore(filepath.Join(t.TempDir(), "missing.yaml"), "tt-env", "", discardLogger())

		assert.Equal(t, "tt-env", store.TomTomKey())
	})
}

func TestStore_RotationWithoutRestart(t *testing.T) {
	path := writeSecrets(t, "tomtom_api_key: old-key\n")
	store := NewStore(path, "", "", discardLogger())

	assert.Equal(t, "old-key", store.TomTomKey())

	require.NoError(t, os.WriteFile(path, []byte("tomtom_api_key: new-key\n"), 0o600))
	assert.Equal(t, "new-key", store.TomTomKey())
}

func TestStore_AbsentKeysAreEmpty(t *testing.T) {
	store := NewStore("", "", "", discardLogger())

	assert.Empty(t, store.TomTomKey())
	assert.Empty(t, store.HereKey())
}
