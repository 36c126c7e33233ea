package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"git.home.luguber.info/inful/tokenforge/internal/token"
)

// fsWriter writes artifacts under a root directory. With clean enabled the
// root is emptied once, before the first write of the session, so repeated
// incremental builds do not wipe each other's output.
type fsWriter struct {
	root      string
	clean     bool
	cleanOnce sync.Once
}

func newFSWriter(root string, clean bool) *fsWriter {
	return &fsWriter{root: root, clean: clean}
}

func (w *fsWriter) Write(ctx context.Context, artifacts []token.FileArtifact) error {
	var cleanErr error
	w.cleanOnce.Do(func() {
		if w.clean {
			cleanErr = os.RemoveAll(w.root)
		}
	})
	if cleanErr != nil {
		return fmt.Errorf("failed to clean output directory: %w", cleanErr)
	}

	for _, a := range artifacts {
		if err := ctx.Err(); err != nil {
			return err
		}
		path := filepath.Join(w.root, filepath.FromSlash(a.Path))
		if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
			return fmt.Errorf("failed to create artifact directory: %w", err)
		}
		if err := os.WriteFile(path, a.Contents, 0644); err != nil {
			return fmt.Errorf("failed to write artifact %s: %w", a.Path, err)
		}
		slog.Debug("Wrote artifact", "path", path, "bytes", len(a.Contents))
	}
	return nil
}
