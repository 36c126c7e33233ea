package cache

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/tokenforge/internal/token"
)

func docKey(uri string) DocumentKey {
	return DocumentKey{
		Document: token.SourceDocument{URI: uri, ContentType: "application/json"},
		Variant:  "base",
	}
}

func TestDocumentCachePutGetRoundtrip(t *testing.T) {
	c, err := NewDocumentCache(t.TempDir())
	require.NoError(t, err)

	artifact := &DocumentArtifact{
		MetadataIndex: map[string]*token.Metadata{
			"/color/primary": {Description: "brand color", Tags: []string{"brand"}},
		},
		ResolutionIndex: map[string]*token.ResolutionRecord{
			"/color/primary": {ResolvedValue: "#336699"},
		},
	}
	key := docKey("tokens/core.json")
	require.NoError(t, c.Put(context.Background(), key, artifact))

	got, ok, err := c.Get(context.Background(), key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "brand color", got.MetadataIndex["/color/primary"].Description)
	assert.Equal(t, "#336699", got.ResolutionIndex["/color/primary"].ResolvedValue)
}

func TestDocumentCacheMissOnUnknownKey(t *testing.T) {
	c, err := NewDocumentCache(t.TempDir())
	require.NoError(t, err)

	_, ok, err := c.Get(context.Background(), docKey("never/stored.json"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDocumentCacheKeyedByCanonicalFields(t *testing.T) {
	c, err := NewDocumentCache(t.TempDir())
	require.NoError(t, err)

	key := docKey("tokens/core.json")
	require.NoError(t, c.Put(context.Background(), key, &DocumentArtifact{}))

	// Equal field values in a fresh key struct must hit the same entry.
	_, ok, err := c.Get(context.Background(), docKey("tokens/core.json"))
	require.NoError(t, err)
	assert.True(t, ok)

	// Different variant is a different entry.
	other := key
	other.Variant = "dark"
	_, ok, err = c.Get(context.Background(), other)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDocumentCacheVersionMismatchIsMiss(t *testing.T) {
	dir := t.TempDir()
	c, err := NewDocumentCache(dir)
	require.NoError(t, err)

	key := docKey("tokens/core.json")
	require.NoError(t, c.Put(context.Background(), key, &DocumentArtifact{}))

	// Rewrite the stored entry with a future format version.
	path, err := c.entryPath(key)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(data, &payload))
	payload["version"] = DocumentCacheVersion + 1
	stale, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, stale, 0644))

	_, ok, err := c.Get(context.Background(), key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDocumentKeyCanonicalStable(t *testing.T) {
	a, err := docKey("tokens/core.json").Canonical()
	require.NoError(t, err)
	b, err := docKey("tokens/core.json").Canonical()
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
