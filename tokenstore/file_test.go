package tokenstore

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ambiyansyah-risyal/tutorapi"
)

func TestFileStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tokens.json")

	f, err := OpenFile(path)
	require.NoError(t, err)
	require.NoError(t, f.Set("auth_token", "abc"))
	require.NoError(t, f.Set("refresh_token", "def"))
	require.NoError(t, f.Delete("refresh_token"))

	reopened, err := OpenFile(path)
	require.NoError(t, err)

	v, err := reopened.Get("auth_token")
	require.NoError(t, err)
	assert.Equal(t, "abc", v)

	v, err = reopened.Get("refresh_token")
	require.NoError(t, err)
	assert.Empty(t, v)

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}
}

func TestFileStoreMissingAndEmptyFile(t *testing.T) {
	dir := t.TempDir()

	f, err := OpenFile(filepath.Join(dir, "absent.json"))
	require.NoError(t, err)
	v, _ := f.Get("anything")
	assert.Empty(t, v)

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))
	_, err = OpenFile(empty)
	assert.NoError(t, err)
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := OpenFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse token file")
}

func TestFileStoreBacksTokenStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	f, err := OpenFile(path)
	require.NoError(t, err)

	store, err := tutorapi.NewTokenStore(f)
	require.NoError(t, err)
	require.NoError(t, store.Save("A", "R"))

	again, err := OpenFile(path)
	require.NoError(t, err)
	restored, err := tutorapi.NewTokenStore(again)
	require.NoError(t, err)

	access, refresh := restored.Tokens()
	assert.Equal(t, "A", access)
	assert.Equal(t, "R", refresh)
}

func TestDefaultPath(t *testing.T) {
	p, err := DefaultPath("")
	if err != nil {
		t.Skipf("no config directory on this machine: %v", err)
	}
	assert.Equal(t, "tokens.json", filepath.Base(p))
	assert.Equal(t, ServiceName, filepath.Base(filepath.Dir(p)))
}
