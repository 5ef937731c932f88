package state

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreMissingFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	fs, err := NewFileStore(path)
	require.NoError(t, err)
	assert.False(t, fs.IsEnabled("svc"))
	assert.Empty(t, fs.EnabledNames())
}

func TestFileStoreEnableDisablePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	fs, err := NewFileStore(path)
	require.NoError(t, err)

	require.NoError(t, fs.Enable("svc-a"))
	require.NoError(t, fs.Enable("svc-b"))
	assert.True(t, fs.IsEnabled("svc-a"))
	assert.True(t, fs.IsEnabled("svc-b"))

	require.NoError(t, fs.Disable("svc-a"))
	assert.False(t, fs.IsEnabled("svc-a"))
	assert.True(t, fs.IsEnabled("svc-b"))

	_, err = os.Stat(path)
	require.NoError(t, err, "enabling a service must create the state file")

	reloaded, err := NewFileStore(path)
	require.NoError(t, err)
	assert.False(t, reloaded.IsEnabled("svc-a"))
	assert.True(t, reloaded.IsEnabled("svc-b"))
}

func TestFileStoreEnableIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	fs, err := NewFileStore(path)
	require.NoError(t, err)

	require.NoError(t, fs.Enable("svc"))
	require.NoError(t, fs.Enable("svc"))
	assert.Equal(t, []string{"svc"}, fs.EnabledNames())
}

func TestDummyStoreAlwaysEnabledAndNeverPersists(t *testing.T) {
	var d DummyStore
	assert.True(t, d.IsEnabled("anything"))
	assert.NoError(t, d.Enable("anything"))
	assert.NoError(t, d.Disable("anything"))
	assert.Nil(t, d.EnabledNames())
}
