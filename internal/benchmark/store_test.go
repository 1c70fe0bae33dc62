package benchmark

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "nested", "runs.json")
	store, err := NewFileStore(path)
	require.NoError(t, err)
	defer store.Close()

	runs, err := store.LoadAll()
	assert.NoError(t, err)
	assert.Empty(t, runs)

	latest, err := store.LoadLatest()
	assert.NoError(t, err)
	assert.Nil(t, latest)

	run1 := Run{
		ID:        "aaaa-1111",
		Timestamp: time.Now().Add(-1 * time.Hour),
		Commit:    "abc",
		Results: []Result{
			okResult("Insert/Fixed/8", 100, true),
		},
	}
	require.NoError(t, store.Save(run1))

	latest, err = store.LoadLatest()
	require.NoError(t, err)
	assert.Equal(t, "abc", latest.Commit)

	unstable := okResult("Insert/Fixed/8", 110, false)
	unstable.Warning = &InstabilityWarning{Reason: ReasonHighVariation, CV: 0.09, Threshold: 0.05}
	run2 := Run{
		ID:        "bbbb-2222",
		Timestamp: time.Now(),
		Commit:    "def",
		Results:   []Result{unstable},
	}
	require.NoError(t, store.Save(run2))

	runs, err = store.LoadAll()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "abc", runs[0].Commit)
	assert.Equal(t, "def", runs[1].Commit)

	// Instability survives persistence.
	got := runs[1].Results[0]
	assert.False(t, got.Stable)
	require.NotNil(t, got.Warning)
	assert.Equal(t, ReasonHighVariation, got.Warning.Reason)
	assert.InDelta(t, 110.0, got.NsPerOp(), 1e-9)
}

func TestFileStoreLoad(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "runs.json"))
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, store.Save(Run{ID: "abc-1", Timestamp: now}))
	require.NoError(t, store.Save(Run{ID: "abd-2", Timestamp: now.Add(time.Second)}))

	run, err := store.Load("abc-1")
	require.NoError(t, err)
	assert.Equal(t, "abc-1", run.ID)

	run, err = store.Load("abd")
	require.NoError(t, err)
	assert.Equal(t, "abd-2", run.ID)

	_, err = store.Load("ab")
	assert.ErrorContains(t, err, "ambiguous")

	_, err = store.Load("zzz")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestFileStoreRejectsDuplicateAndEmptyIDs(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "runs.json"))
	require.NoError(t, err)

	require.NoError(t, store.Save(Run{ID: "abc-1", Timestamp: time.Now()}))
	assert.ErrorContains(t, store.Save(Run{ID: "abc-1", Timestamp: time.Now()}), "already stored")
	assert.Error(t, store.Save(Run{Timestamp: time.Now()}))

	runs, err := store.LoadAll()
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestFileStoreReadsBareArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.json")
	legacy := `[{"id":"old-1","suite":"branch","timestamp":"2024-01-02T03:04:05Z","results":[]}]`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0644))

	store, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Save(Run{ID: "new-1", Timestamp: time.Now()}))

	runs, err := store.LoadAll()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "old-1", runs[0].ID)
	assert.Equal(t, "new-1", runs[1].ID)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"version": 1`)
}

func TestFileStoreRejectsNewerVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version": 99, "runs": []}`), 0644))

	store, err := NewFileStore(path)
	require.NoError(t, err)
	_, err = store.LoadAll()
	assert.ErrorContains(t, err, "version 99")
}
