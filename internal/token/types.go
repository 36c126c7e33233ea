// Package token defines the core data model shared by the build engine:
// resolved token snapshots, source documents, and generated artifacts.
package token

import "time"

// Pointer is a hierarchical address identifying a single token within a
// resolved document tree, e.g. "/color/background/primary".
type Pointer string

// Ref addresses a token in a specific document. It serializes as
// "<uri>#<pointer>" in dependency lists.
type Ref struct {
	URI     string  `json:"uri"`
	Pointer Pointer `json:"pointer"`
}

// String renders the canonical "<uri>#<pointer>" form.
func (r Ref) String() string { return r.URI + "#" + string(r.Pointer) }

// Metadata carries optional per-token annotations supplied by the source
// document or the resolver.
type Metadata struct {
	Description string         `json:"description,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	Deprecated  bool           `json:"deprecated,omitempty"`
	Extensions  map[string]any `json:"extensions,omitempty"`
}

// ResolutionRecord describes how a token's final value was derived.
type ResolutionRecord struct {
	ResolvedValue  any     `json:"resolvedValue"`
	References     []Ref   `json:"references,omitempty"`
	AppliedAliases []Ref   `json:"appliedAliases,omitempty"`
	ResolutionPath []Ref   `json:"resolutionPath,omitempty"`
	Depth          int     `json:"depth,omitempty"`
	Warnings       []Issue `json:"warnings,omitempty"`
}

// Provenance identifies where a token came from.
type Provenance struct {
	SourceID    string `json:"sourceId"`
	Layer       string `json:"layer,omitempty"`
	LayerIndex  int    `json:"layerIndex"`
	DocumentURI string `json:"documentUri"`
}

// Snapshot is a resolved token at a pointer. Snapshots are produced by the
// external parser and are immutable once handed to the build engine.
type Snapshot struct {
	Pointer    Pointer          `json:"pointer"`
	Type       string           `json:"type,omitempty"`
	Value      any              `json:"value"`
	Raw        any              `json:"raw,omitempty"`
	Metadata   *Metadata        `json:"metadata,omitempty"`
	Resolution ResolutionRecord `json:"resolution"`
	Provenance Provenance       `json:"provenance"`
}

// SourceDocument identifies one concrete token document.
type SourceDocument struct {
	URI         string `json:"uri"`
	ContentType string `json:"contentType"`
	Description string `json:"description,omitempty"`
}

// Severity classifies diagnostics and validation issues.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Issue is a single diagnostic or validation finding.
type Issue struct {
	Severity Severity `json:"severity"`
	Path     string   `json:"path,omitempty"`
	Message  string   `json:"message"`
}

// ParseMetrics reports incremental-parse effectiveness from the parser port.
type ParseMetrics struct {
	Hits   int `json:"hits"`
	Misses int `json:"misses"`
	Skips  int `json:"skips"`
}

// SourceEntry pairs a document with the tokens resolved from it.
type SourceEntry struct {
	Document SourceDocument `json:"document"`
	Tokens   []Snapshot     `json:"tokens"`
}

// ResolvedPlan is the parser port's output for one build cycle: every source
// entry with its resolved tokens, plus diagnostics and optional metrics.
type ResolvedPlan struct {
	Entries     []SourceEntry `json:"entries"`
	Diagnostics []Issue       `json:"diagnostics,omitempty"`
	Metrics     *ParseMetrics `json:"metrics,omitempty"`
	ResolvedAt  time.Time     `json:"resolvedAt"`
}

// TokenCount returns the total number of tokens across all entries.
func (p *ResolvedPlan) TokenCount() int {
	n := 0
	for _, e := range p.Entries {
		n += len(e.Tokens)
	}
	return n
}
