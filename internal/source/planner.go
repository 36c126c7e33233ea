// Package source enumerates concrete token documents from declared source
// configuration.
package source

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"

	"git.home.luguber.info/inful/tokenforge/internal/config"
	"git.home.luguber.info/inful/tokenforge/internal/logfields"
	"git.home.luguber.info/inful/tokenforge/internal/token"
)

// Planner expands source glob patterns and virtual documents into the
// concrete document list a build operates on. Validation findings are
// returned as a typed issue list; callers abort the build when it is
// non-empty.
type Planner struct {
	logger *slog.Logger
}

// NewPlanner creates a source planner.
func NewPlanner() *Planner {
	return &Planner{logger: slog.Default()}
}

// WithLogger sets a custom logger.
func (p *Planner) WithLogger(logger *slog.Logger) *Planner {
	p.logger = logger
	return p
}

// PlanSources enumerates documents for every configured source. Documents
// are returned sorted by URI; issues cover malformed patterns, sources that
// match nothing, and duplicate document URIs.
func (p *Planner) PlanSources(ctx context.Context, cfg *config.Config) ([]token.SourceDocument, []token.Issue, error) {
	var documents []token.SourceDocument
	var issues []token.Issue
	seen := make(map[string]string) // uri -> source name

	for _, src := range cfg.Sources {
		matched := 0

		for _, pattern := range src.Patterns {
			paths, err := filepath.Glob(pattern)
			if err != nil {
				issues = append(issues, token.Issue{
					Severity: token.SeverityError,
					Path:     pattern,
					Message:  fmt.Sprintf("source %q: malformed pattern: %v", src.Name, err),
				})
				continue
			}
			sort.Strings(paths)
			for _, path := range paths {
				uri := filepath.ToSlash(path)
				if prev, dup := seen[uri]; dup {
					issues = append(issues, token.Issue{
						Severity: token.SeverityError,
						Path:     uri,
						Message:  fmt.Sprintf("document matched by both source %q and source %q", prev, src.Name),
					})
					continue
				}
				seen[uri] = src.Name
				documents = append(documents, token.SourceDocument{
					URI:         uri,
					ContentType: src.ContentType,
					Description: src.Name,
				})
				matched++
			}
		}

		for uri := range src.Virtual {
			if prev, dup := seen[uri]; dup {
				issues = append(issues, token.Issue{
					Severity: token.SeverityError,
					Path:     uri,
					Message:  fmt.Sprintf("virtual document also matched by source %q", prev),
				})
				continue
			}
			seen[uri] = src.Name
			documents = append(documents, token.SourceDocument{
				URI:         uri,
				ContentType: src.ContentType,
				Description: src.Name,
			})
			matched++
		}

		if matched == 0 {
			issues = append(issues, token.Issue{
				Severity: token.SeverityError,
				Path:     src.Name,
				Message:  fmt.Sprintf("source %q matched no documents", src.Name),
			})
		}
	}

	sort.Slice(documents, func(i, j int) bool { return documents[i].URI < documents[j].URI })

	p.logger.Debug("Planned sources",
		logfields.Tokens(len(documents)),
		slog.Int("issues", len(issues)))
	return documents, issues, nil
}
