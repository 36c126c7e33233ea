package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"git.home.luguber.info/inful/tokenforge/internal/cache"
	"git.home.luguber.info/inful/tokenforge/internal/config"
	"git.home.luguber.info/inful/tokenforge/internal/logfields"
	"git.home.luguber.info/inful/tokenforge/internal/pipeline"
	"git.home.luguber.info/inful/tokenforge/internal/token"
)

// Reader is a minimal JSON document reader behind the parser port. It
// flattens nested JSON objects into token snapshots; nodes carrying a
// "$value" key become typed tokens, other leaves become untyped ones.
// Reference/alias resolution is a richer parser's job and stays out of this
// reader.
type Reader struct {
	docCache *cache.DocumentCache
	logger   *slog.Logger
}

// NewReader creates a document reader. docCache may be nil to disable the
// per-document resolution cache.
func NewReader(docCache *cache.DocumentCache) *Reader {
	return &Reader{docCache: docCache, logger: slog.Default()}
}

// WithLogger sets a custom logger.
func (r *Reader) WithLogger(logger *slog.Logger) *Reader {
	r.logger = logger
	return r
}

// Parse reads every planned document and resolves it into token snapshots.
// Unchanged documents are served from the document cache by content digest,
// skipping the flatten entirely; hit/miss counts are reported through
// ParseMetrics.
func (r *Reader) Parse(ctx context.Context, plan *pipeline.BuildPlan) (*token.ResolvedPlan, error) {
	resolved := &token.ResolvedPlan{ResolvedAt: time.Now().UTC()}
	metrics := &token.ParseMetrics{}

	for _, doc := range plan.Sources {
		contents, err := r.readDocument(plan.Config, doc)
		if err != nil {
			return nil, err
		}

		tokens, ok := r.lookupCached(ctx, doc, contents, metrics)
		if !ok {
			tokens, err = flattenDocument(doc, contents)
			if err != nil {
				return nil, fmt.Errorf("document %s: %w", doc.URI, err)
			}
			r.storeArtifact(ctx, doc, contents, tokens)
		}

		resolved.Entries = append(resolved.Entries, token.SourceEntry{
			Document: doc,
			Tokens:   tokens,
		})
	}

	resolved.Metrics = metrics
	r.logger.Debug("Parsed documents",
		logfields.Tokens(resolved.TokenCount()),
		slog.Int("documents", len(resolved.Entries)))
	return resolved, nil
}

// readDocument returns the raw document contents, from the virtual source
// declaration when one exists for the URI, otherwise from disk.
func (r *Reader) readDocument(cfg *config.Config, doc token.SourceDocument) ([]byte, error) {
	if cfg != nil {
		for _, src := range cfg.Sources {
			if content, ok := src.Virtual[doc.URI]; ok {
				return []byte(content), nil
			}
		}
	}
	data, err := os.ReadFile(doc.URI)
	if err != nil {
		return nil, fmt.Errorf("failed to read document %s: %w", doc.URI, err)
	}
	return data, nil
}

// documentKey keys cache entries by the document plus a digest of its
// contents, so an edited document misses and an unchanged one hits.
func documentKey(doc token.SourceDocument, contents []byte) cache.DocumentKey {
	digest := sha256.Sum256(contents)
	return cache.DocumentKey{Document: doc, Variant: hex.EncodeToString(digest[:8])}
}

// lookupCached returns the stored snapshots for an unchanged document. A
// hit skips flattening entirely; read failures are logged and degrade to a
// miss, never fail the parse.
func (r *Reader) lookupCached(ctx context.Context, doc token.SourceDocument, contents []byte, metrics *token.ParseMetrics) ([]token.Snapshot, bool) {
	if r.docCache == nil {
		metrics.Skips++
		return nil, false
	}

	artifact, ok, err := r.docCache.Get(ctx, documentKey(doc, contents))
	if err != nil {
		r.logger.Warn("Document cache read failed", logfields.Document(doc.URI), logfields.Error(err))
		metrics.Misses++
		return nil, false
	}
	if !ok || artifact == nil || artifact.Tokens == nil {
		metrics.Misses++
		return nil, false
	}
	metrics.Hits++
	return artifact.Tokens, true
}

// storeArtifact records the flattened snapshots and their per-pointer
// indexes under the document's content digest. Write failures are logged
// and never fail the parse.
func (r *Reader) storeArtifact(ctx context.Context, doc token.SourceDocument, contents []byte, tokens []token.Snapshot) {
	if r.docCache == nil {
		return
	}

	artifact := &cache.DocumentArtifact{
		Tokens:          tokens,
		MetadataIndex:   make(map[string]*token.Metadata),
		ResolutionIndex: make(map[string]*token.ResolutionRecord),
	}
	for i := range tokens {
		p := string(tokens[i].Pointer)
		if tokens[i].Metadata != nil {
			artifact.MetadataIndex[p] = tokens[i].Metadata
		}
		res := tokens[i].Resolution
		artifact.ResolutionIndex[p] = &res
	}
	if err := r.docCache.Put(ctx, documentKey(doc, contents), artifact); err != nil {
		r.logger.Warn("Document cache write failed", logfields.Document(doc.URI), logfields.Error(err))
	}
}

// flattenDocument walks the JSON tree and emits one snapshot per token,
// sorted by pointer.
func flattenDocument(doc token.SourceDocument, contents []byte) ([]token.Snapshot, error) {
	var root map[string]any
	if err := json.Unmarshal(contents, &root); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	var tokens []token.Snapshot
	walkTokens("", root, func(pointer string, node any) {
		tokens = append(tokens, makeSnapshot(doc, pointer, node))
	})

	sort.Slice(tokens, func(i, j int) bool { return tokens[i].Pointer < tokens[j].Pointer })
	return tokens, nil
}

// walkTokens visits every token node. An object with a "$value" key is one
// token; any other object is a group; any other value is a bare token.
func walkTokens(prefix string, node any, visit func(pointer string, node any)) {
	obj, ok := node.(map[string]any)
	if !ok {
		visit(prefix, node)
		return
	}
	if _, hasValue := obj["$value"]; hasValue {
		visit(prefix, obj)
		return
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		walkTokens(prefix+"/"+k, obj[k], visit)
	}
}

func makeSnapshot(doc token.SourceDocument, pointer string, node any) token.Snapshot {
	snap := token.Snapshot{
		Pointer: token.Pointer(pointer),
		Value:   node,
		Provenance: token.Provenance{
			SourceID:    doc.Description,
			DocumentURI: doc.URI,
		},
	}

	if obj, ok := node.(map[string]any); ok {
		snap.Raw = obj
		snap.Value = obj["$value"]
		if t, ok := obj["$type"].(string); ok {
			snap.Type = t
		}
		meta := &token.Metadata{}
		hasMeta := false
		if d, ok := obj["$description"].(string); ok {
			meta.Description = d
			hasMeta = true
		}
		if dep, ok := obj["$deprecated"].(bool); ok {
			meta.Deprecated = dep
			hasMeta = true
		}
		if tags, ok := obj["$tags"].([]any); ok {
			for _, t := range tags {
				if s, ok := t.(string); ok {
					meta.Tags = append(meta.Tags, s)
				}
			}
			hasMeta = true
		}
		if hasMeta {
			snap.Metadata = meta
		}
	}

	snap.Resolution = token.ResolutionRecord{ResolvedValue: snap.Value}
	return snap
}
