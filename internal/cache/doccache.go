package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"git.home.luguber.info/inful/tokenforge/internal/logfields"
	"git.home.luguber.info/inful/tokenforge/internal/token"
)

// DocumentCacheVersion is the current document payload format version.
const DocumentCacheVersion = 1

// DocumentKey identifies one cached document artifact. Keys are compared by
// a canonical serialization of their fields, never by object identity, so a
// new process still hits entries written by a previous one.
type DocumentKey struct {
	Document token.SourceDocument `json:"document"`
	Variant  string               `json:"variant,omitempty"`
}

// Canonical returns the canonical JSON string for the key. Struct field
// order is fixed by the type declarations, which keeps the serialization
// stable across processes.
func (k DocumentKey) Canonical() (string, error) {
	data, err := json.Marshal(k)
	if err != nil {
		return "", fmt.Errorf("failed to serialize document key: %w", err)
	}
	return string(data), nil
}

// DocumentArtifact holds the structured per-document data that lets
// subsequent runs skip re-parsing an unchanged document. Tokens carries the
// full resolved snapshots so a hit reconstructs the parse result outright;
// the indexes give per-pointer lookup without scanning the token list.
type DocumentArtifact struct {
	Tokens          []token.Snapshot                   `json:"tokens,omitempty"`
	MetadataIndex   map[string]*token.Metadata         `json:"metadataIndex,omitempty"`
	ResolutionIndex map[string]*token.ResolutionRecord `json:"resolutionIndex,omitempty"`
	Diagnostics     []token.Issue                      `json:"diagnostics,omitempty"`
}

// documentPayload is the persisted per-entry file shape.
type documentPayload struct {
	Version  int               `json:"version"`
	Key      string            `json:"key"`
	Document *DocumentArtifact `json:"document"`
}

// DocumentCache is a file-system backed cache of parsed document artifacts,
// keyed by document URI, content type, and optional variant.
type DocumentCache struct {
	dir    string
	logger *slog.Logger
	mu     sync.RWMutex
}

// NewDocumentCache creates a document cache rooted at dir.
func NewDocumentCache(dir string) (*DocumentCache, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create document cache directory: %w", err)
	}
	return &DocumentCache{dir: dir, logger: slog.Default()}, nil
}

// WithLogger sets a custom logger.
func (c *DocumentCache) WithLogger(logger *slog.Logger) *DocumentCache {
	c.logger = logger
	return c
}

// Get returns the cached artifact for the key. Missing entries and version
// mismatches both report a miss; any other read or parse failure propagates.
func (c *DocumentCache) Get(ctx context.Context, key DocumentKey) (*DocumentArtifact, bool, error) {
	path, err := c.entryPath(key)
	if err != nil {
		return nil, false, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read document cache entry: %w", err)
	}

	var payload documentPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, false, fmt.Errorf("failed to parse document cache entry: %w", err)
	}
	if payload.Version != DocumentCacheVersion {
		c.logger.Debug("Document cache version mismatch, treating as miss",
			logfields.Document(key.Document.URI),
			slog.Int("found", payload.Version),
			slog.Int("want", DocumentCacheVersion))
		return nil, false, nil
	}
	return payload.Document, true, nil
}

// Put stores the artifact under the key, replacing any previous entry.
func (c *DocumentCache) Put(ctx context.Context, key DocumentKey, artifact *DocumentArtifact) error {
	canonical, err := key.Canonical()
	if err != nil {
		return err
	}
	path, err := c.entryPath(key)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(documentPayload{
		Version:  DocumentCacheVersion,
		Key:      canonical,
		Document: artifact,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize document cache entry: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := writeFileAtomic(path, data); err != nil {
		return fmt.Errorf("failed to write document cache entry: %w", err)
	}
	c.logger.Debug("Cached document artifact", logfields.Document(key.Document.URI))
	return nil
}

// entryPath derives the on-disk path from the canonical key hash.
func (c *DocumentCache) entryPath(key DocumentKey) (string, error) {
	canonical, err := key.Canonical()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(canonical))
	name := hex.EncodeToString(sum[:])
	return filepath.Join(c.dir, name[:2], name[2:]+".json"), nil
}
