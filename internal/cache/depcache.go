// Package cache persists dependency snapshots and parsed document artifacts
// across build invocations. Both caches share the same fail-safe policy: a
// payload whose format version does not match the current one is a cache
// miss, never an error, so format upgrades trigger a one-time full rebuild
// instead of crashing.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"git.home.luguber.info/inful/tokenforge/internal/deps"
	"git.home.luguber.info/inful/tokenforge/internal/logfields"
)

// DependencyCacheVersion is the current on-disk payload format version.
const DependencyCacheVersion = 1

// dependencyPayload is the persisted cache file shape.
type dependencyPayload struct {
	Version  int            `json:"version"`
	Snapshot *deps.Snapshot `json:"snapshot"`
}

// DependencyCache persists the latest dependency snapshot and evaluates new
// snapshots against it using the configured diff strategy. The prior
// snapshot is loaded lazily, once per cache instance.
type DependencyCache struct {
	path     string
	strategy deps.Strategy
	logger   *slog.Logger

	mu     sync.Mutex
	loaded bool
	prev   *deps.Snapshot
}

// NewDependencyCache creates a dependency cache backed by a JSON file.
func NewDependencyCache(path string, strategy deps.Strategy) *DependencyCache {
	return &DependencyCache{path: path, strategy: strategy, logger: slog.Default()}
}

// WithLogger sets a custom logger.
func (c *DependencyCache) WithLogger(logger *slog.Logger) *DependencyCache {
	c.logger = logger
	return c
}

// Evaluate diffs the new snapshot against the persisted baseline.
func (c *DependencyCache) Evaluate(ctx context.Context, next *deps.Snapshot) (*deps.Diff, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.loadLocked(); err != nil {
		return nil, err
	}
	return c.strategy.Diff(c.prev, next)
}

// Commit writes the snapshot to durable storage and updates the in-memory
// baseline. The write goes through a temp file and rename so readers never
// observe a partial snapshot.
func (c *DependencyCache) Commit(ctx context.Context, snap *deps.Snapshot) error {
	data, err := json.MarshalIndent(dependencyPayload{
		Version:  DependencyCacheVersion,
		Snapshot: snap,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize dependency snapshot: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := writeFileAtomic(c.path, data); err != nil {
		return fmt.Errorf("failed to write dependency cache: %w", err)
	}
	c.prev = snap
	c.loaded = true

	c.logger.Debug("Committed dependency snapshot",
		logfields.Path(c.path), logfields.Tokens(len(snap.Entries)))
	return nil
}

// loadLocked reads the persisted snapshot on first use. "Not found" means
// first build; a version mismatch is a deliberate cache miss; everything
// else propagates.
func (c *DependencyCache) loadLocked() error {
	if c.loaded {
		return nil
	}
	c.loaded = true

	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			c.prev = nil
			return nil
		}
		return fmt.Errorf("failed to read dependency cache: %w", err)
	}

	var payload dependencyPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("failed to parse dependency cache: %w", err)
	}
	if payload.Version != DependencyCacheVersion {
		c.logger.Info("Dependency cache version mismatch, treating as absent",
			slog.Int("found", payload.Version),
			slog.Int("want", DependencyCacheVersion))
		c.prev = nil
		return nil
	}
	c.prev = payload.Snapshot
	return nil
}

// writeFileAtomic writes via a temp file in the target directory followed
// by a rename.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
