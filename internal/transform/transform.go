// Package transform runs named per-token transforms over resolved token
// snapshots, producing (pointer, transform) -> output results tagged with a
// cache status.
package transform

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"git.home.luguber.info/inful/tokenforge/internal/selector"
	"git.home.luguber.info/inful/tokenforge/internal/token"
)

// CacheStatus reports whether a result was recomputed or reused.
type CacheStatus string

const (
	CacheHit  CacheStatus = "hit"
	CacheMiss CacheStatus = "miss"
)

// Context is the execution context a transform handler sees: the tokens
// that matched its selector (sorted by pointer) and the outputs of
// previously executed transforms, grouped by pointer.
type Context struct {
	BuildID string
	Tokens  []token.Snapshot
	Prior   map[token.Pointer]map[string]any
}

// Handler computes outputs for the matched tokens. The returned map may
// omit tokens the transform chooses not to produce output for.
type Handler func(ctx context.Context, tc *Context) (map[token.Pointer]any, error)

// Definition is a named transform with its selection criteria.
type Definition struct {
	Name     string
	Group    string
	Selector selector.Selector
	Options  map[string]any
	Handler  Handler
}

// Validate checks the definition is runnable.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("transform name is required")
	}
	if d.Handler == nil {
		return fmt.Errorf("transform %q has no handler", d.Name)
	}
	return nil
}

// OptionsHash returns a stable hash of the definition's options, recorded
// on every result so cached outputs can be invalidated when options change.
func (d *Definition) OptionsHash() (string, error) {
	if len(d.Options) == 0 {
		return "", nil
	}
	data, err := json.Marshal(d.Options)
	if err != nil {
		return "", fmt.Errorf("failed to serialize options for transform %q: %w", d.Name, err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Result is one transform output for one token.
type Result struct {
	Pointer     token.Pointer `json:"pointer"`
	Transform   string        `json:"transform"`
	Output      any           `json:"output"`
	Group       string        `json:"group,omitempty"`
	OptionsHash string        `json:"optionsHash,omitempty"`
	CacheStatus CacheStatus   `json:"cacheStatus"`
}
