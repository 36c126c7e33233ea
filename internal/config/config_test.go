package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tokenforge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
sources:
  - name: core
    patterns:
      - tokens/*.json
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, "./dist", cfg.Output.Directory)
	assert.Equal(t, ".tokenforge-cache", cfg.Dependencies.CacheDir)
	assert.Equal(t, "snapshot", cfg.Dependencies.Strategy.Name)
	assert.Equal(t, 250*time.Millisecond, cfg.Watch.Debounce)
	assert.Equal(t, "application/json", cfg.Sources[0].ContentType)
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
version: 1
sources:
  - name: core
    patterns:
      - tokens/*.json
    layer: base
  - name: overrides
    virtual:
      virtual://brand.json: '{"color":{"brand":{"$value":"#f00"}}}'
output:
  directory: ./out
  clean: true
dependencies:
  cache_dir: .cache
  strategy:
    name: graph
    options:
      maxDepth: 3
      transitive: true
watch:
  debounce: 500ms
  rebuild_interval: 1h
events:
  store_path: .cache/events.db
  nats:
    enabled: true
    url: nats://localhost:4222
metrics:
  enabled: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "graph", cfg.Dependencies.Strategy.Name)
	assert.Equal(t, 3, cfg.Dependencies.Strategy.Options["maxDepth"])
	assert.Equal(t, time.Hour, cfg.Watch.RebuildInterval)
	assert.Equal(t, "tokenforge.build.events", cfg.Events.NATS.Subject, "default subject applied")
	assert.True(t, cfg.Metrics.Enabled)
	assert.Contains(t, cfg.Sources[1].Virtual, "virtual://brand.json")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidateErrors(t *testing.T) {
	cases := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "unsupported version",
			content: "version: 2\nsources:\n  - name: core\n    patterns: [a.json]\n",
			wantErr: "version",
		},
		{
			name:    "no sources",
			content: "version: 1\nsources: []\n",
			wantErr: "source",
		},
		{
			name:    "missing source name",
			content: "sources:\n  - patterns: [a.json]\n",
			wantErr: "name",
		},
		{
			name:    "duplicate source name",
			content: "sources:\n  - name: core\n    patterns: [a.json]\n  - name: core\n    patterns: [b.json]\n",
			wantErr: "duplicate",
		},
		{
			name:    "source without patterns or virtual",
			content: "sources:\n  - name: core\n",
			wantErr: "neither",
		},
		{
			name:    "negative debounce",
			content: "sources:\n  - name: core\n    patterns: [a.json]\nwatch:\n  debounce: -1s\n",
			wantErr: "debounce",
		},
		{
			name:    "nats enabled without url",
			content: "sources:\n  - name: core\n    patterns: [a.json]\nevents:\n  nats:\n    enabled: true\n",
			wantErr: "nats",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
