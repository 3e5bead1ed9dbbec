package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "credential")
	s := NewCredentialStore(path)
	assert.Equal(t, path, s.Path())

	key, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, key)

	require.Error(t, s.Save("  "))
	require.NoError(t, s.Save("sk-first"))
	require.NoError(t, s.Save("sk-second"))

	key, err = s.Load()
	require.NoError(t, err)
	assert.Equal(t, "sk-second", key)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	require.NoError(t, s.Reset())
	require.NoError(t, s.Reset())
	key, err = s.Load()
	require.NoError(t, err)
	assert.Empty(t, key)
}
