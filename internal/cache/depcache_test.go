package cache

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/tokenforge/internal/deps"
)

func newSnapshotStrategy(t *testing.T) deps.Strategy {
	t.Helper()
	s, err := deps.DefaultRegistry().New(deps.StrategySnapshot, nil)
	require.NoError(t, err)
	return s
}

func depSnapshot(entries ...deps.Entry) *deps.Snapshot {
	return &deps.Snapshot{Version: deps.SnapshotVersion, Entries: entries}
}

func TestDependencyCacheFirstBuildAllChanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dependencies.json")
	c := NewDependencyCache(path, newSnapshotStrategy(t))

	next := depSnapshot(deps.Entry{Pointer: "/a", Hash: "h1"})
	diff, err := c.Evaluate(context.Background(), next)
	require.NoError(t, err)
	assert.True(t, diff.IsChanged("/a"))
}

func TestDependencyCacheCommitThenEvaluate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dependencies.json")
	c := NewDependencyCache(path, newSnapshotStrategy(t))

	committed := depSnapshot(deps.Entry{Pointer: "/a", Hash: "h1", Dependencies: []string{}})
	require.NoError(t, c.Commit(context.Background(), committed))

	next := depSnapshot(deps.Entry{Pointer: "/a", Hash: "h2", Dependencies: []string{}})
	diff, err := c.Evaluate(context.Background(), next)
	require.NoError(t, err)

	assert.True(t, diff.IsChanged("/a"))
	assert.Equal(t, 1, diff.ChangedCount())
	assert.Empty(t, diff.Removed)
}

func TestDependencyCachePersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dependencies.json")

	first := NewDependencyCache(path, newSnapshotStrategy(t))
	require.NoError(t, first.Commit(context.Background(), depSnapshot(
		deps.Entry{Pointer: "/a", Hash: "h1"},
		deps.Entry{Pointer: "/b", Hash: "h2"},
	)))

	second := NewDependencyCache(path, newSnapshotStrategy(t))
	diff, err := second.Evaluate(context.Background(), depSnapshot(
		deps.Entry{Pointer: "/a", Hash: "h1"},
		deps.Entry{Pointer: "/b", Hash: "h2x"},
	))
	require.NoError(t, err)
	assert.False(t, diff.IsChanged("/a"))
	assert.True(t, diff.IsChanged("/b"))
}

func TestDependencyCacheVersionMismatchIsMiss(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dependencies.json")

	stale, err := json.Marshal(map[string]any{
		"version":  DependencyCacheVersion + 1,
		"snapshot": depSnapshot(deps.Entry{Pointer: "/a", Hash: "h1"}),
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, stale, 0644))

	c := NewDependencyCache(path, newSnapshotStrategy(t))
	diff, err := c.Evaluate(context.Background(), depSnapshot(deps.Entry{Pointer: "/a", Hash: "h1"}))
	require.NoError(t, err)
	assert.True(t, diff.IsChanged("/a"), "stale format must behave like a first build")
}

func TestDependencyCacheCorruptFilePropagates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dependencies.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	c := NewDependencyCache(path, newSnapshotStrategy(t))
	_, err := c.Evaluate(context.Background(), depSnapshot())
	assert.Error(t, err)
}

func TestDependencyCacheCommitWritesVersionedPayload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dependencies.json")
	c := NewDependencyCache(path, newSnapshotStrategy(t))

	require.NoError(t, c.Commit(context.Background(), depSnapshot(deps.Entry{Pointer: "/a", Hash: "h1"})))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var payload struct {
		Version  int            `json:"version"`
		Snapshot *deps.Snapshot `json:"snapshot"`
	}
	require.NoError(t, json.Unmarshal(data, &payload))
	assert.Equal(t, DependencyCacheVersion, payload.Version)
	require.NotNil(t, payload.Snapshot)
	assert.Len(t, payload.Snapshot.Entries, 1)
}
