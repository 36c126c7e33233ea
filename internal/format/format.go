// Package format runs registered formatters over transform results and
// collects deterministically ordered file artifacts.
package format

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/tokenforge/internal/selector"
	"git.home.luguber.info/inful/tokenforge/internal/token"
)

// Token is the merged view a formatter sees for one token: the resolved
// snapshot fields plus a read-only map of transform-name -> output.
type Token struct {
	Pointer    token.Pointer
	Type       string
	Value      any
	Raw        any
	Metadata   *token.Metadata
	Transforms map[string]any
}

// Context is the execution context a formatter handler receives.
type Context struct {
	BuildID string
	Tokens  []Token
}

// Handler produces file artifacts from the matched tokens.
type Handler func(ctx context.Context, fc *Context) ([]token.FileArtifact, error)

// Definition is a named formatter with its selection criteria. The
// selector's Transforms clause excludes tokens missing any of the named
// transform outputs.
type Definition struct {
	Name     string
	Selector selector.Selector
	Handler  Handler
}

// Validate checks the definition is runnable.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("formatter name is required")
	}
	if d.Handler == nil {
		return fmt.Errorf("formatter %q has no handler", d.Name)
	}
	return nil
}
