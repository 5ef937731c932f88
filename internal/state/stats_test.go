package state

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStatsStore(t *testing.T) *StatsStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stats.db")
	store, err := NewStatsStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStatsStoreGetUnknownServiceReturnsZeroValue(t *testing.T) {
	store := newTestStatsStore(t)
	st, err := store.Get("never-seen")
	require.NoError(t, err)
	assert.Equal(t, "never-seen", st.Name)
	assert.Zero(t, st.TotalStarts)
}

func TestStatsStoreRecordStartAndExitAccumulate(t *testing.T) {
	store := newTestStatsStore(t)

	require.NoError(t, store.RecordStart("svc", false))
	require.NoError(t, store.RecordStart("svc", true))
	require.NoError(t, store.RecordExit("svc", 1, "boom", true))

	st, err := store.Get("svc")
	require.NoError(t, err)
	assert.EqualValues(t, 2, st.TotalStarts)
	assert.EqualValues(t, 1, st.TotalRestarts)
	assert.EqualValues(t, 1, st.TotalFailures)
	assert.Equal(t, 1, st.LastExitCode)
	assert.Equal(t, "boom", st.LastExitMessage)
}

func TestStatsStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.db")
	store, err := NewStatsStore(path)
	require.NoError(t, err)
	require.NoError(t, store.RecordStart("svc", false))
	require.NoError(t, store.Close())

	reopened, err := NewStatsStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	st, err := reopened.Get("svc")
	require.NoError(t, err)
	assert.EqualValues(t, 1, st.TotalStarts)
}
