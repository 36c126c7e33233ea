// Package watch drives continuous rebuilds from file-system change events.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/tokenforge/internal/logfields"
)

// EventType classifies a change notification.
type EventType string

const (
	EventCreated EventType = "created"
	EventUpdated EventType = "updated"
	EventDeleted EventType = "deleted"
)

// Event is an abstract change notification delivered to watch hooks.
type Event struct {
	Type      EventType
	Path      string
	RequestID string
}

// Request names one resource to watch. Path may be a file or a directory.
type Request struct {
	ID   string
	Path string
}

// Hooks receive events and errors for one subscription. Both callbacks are
// invoked from the watcher's own goroutine.
type Hooks struct {
	OnEvent func(Event)
	OnError func(error)
}

// Subscription is a disposable watch handle.
type Subscription interface {
	Close() error
}

// Watcher opens subscriptions on change-notification sources. One request
// per watched resource.
type Watcher interface {
	Watch(ctx context.Context, req Request, hooks Hooks) (Subscription, error)
}

// FSWatcher implements Watcher on top of fsnotify. Each subscription owns
// its own underlying fsnotify watcher so Close never affects siblings.
type FSWatcher struct {
	logger *slog.Logger
}

// NewFSWatcher creates a file-system watcher factory.
func NewFSWatcher() *FSWatcher {
	return &FSWatcher{logger: slog.Default()}
}

// WithLogger sets a custom logger.
func (w *FSWatcher) WithLogger(logger *slog.Logger) *FSWatcher {
	w.logger = logger
	return w
}

// Watch starts watching the requested path. For a file path the containing
// directory is watched and events are filtered to the file, which survives
// editors that replace files via rename.
func (w *FSWatcher) Watch(ctx context.Context, req Request, hooks Hooks) (Subscription, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	absPath, err := filepath.Abs(req.Path)
	if err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to resolve watch path: %w", err)
	}

	watchDir := absPath
	filterFile := ""
	if info, err := os.Stat(absPath); err == nil && !info.IsDir() {
		watchDir = filepath.Dir(absPath)
		filterFile = filepath.Base(absPath)
	}

	if err := fsw.Add(watchDir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", watchDir, err)
	}

	sub := &fsSubscription{watcher: fsw}
	go w.loop(ctx, fsw, req, filterFile, hooks, sub)

	w.logger.Debug("Watch subscription opened",
		"request_id", req.ID, logfields.Path(watchDir))
	return sub, nil
}

func (w *FSWatcher) loop(ctx context.Context, fsw *fsnotify.Watcher, req Request, filterFile string, hooks Hooks, sub *fsSubscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.closed():
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filterFile != "" && filepath.Base(ev.Name) != filterFile {
				continue
			}
			et, relevant := classify(ev.Op)
			if !relevant {
				continue
			}
			if hooks.OnEvent != nil {
				hooks.OnEvent(Event{Type: et, Path: filepath.ToSlash(ev.Name), RequestID: req.ID})
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			if hooks.OnError != nil {
				hooks.OnError(err)
			}
		}
	}
}

func classify(op fsnotify.Op) (EventType, bool) {
	switch {
	case op.Has(fsnotify.Create):
		return EventCreated, true
	case op.Has(fsnotify.Write):
		return EventUpdated, true
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return EventDeleted, true
	default:
		return "", false
	}
}

type fsSubscription struct {
	watcher *fsnotify.Watcher
	once    sync.Once
	done    chan struct{}
	doneMu  sync.Mutex
	err     error
}

func (s *fsSubscription) closed() <-chan struct{} {
	s.doneMu.Lock()
	defer s.doneMu.Unlock()
	if s.done == nil {
		s.done = make(chan struct{})
	}
	return s.done
}

// Close stops the subscription. Safe to call multiple times.
func (s *fsSubscription) Close() error {
	s.once.Do(func() {
		s.doneMu.Lock()
		if s.done == nil {
			s.done = make(chan struct{})
		}
		close(s.done)
		s.doneMu.Unlock()
		s.err = s.watcher.Close()
	})
	return s.err
}

// globBase returns the literal directory prefix of a glob pattern, the part
// that can be registered with a directory watcher.
func globBase(pattern string) string {
	if i := strings.IndexAny(pattern, "*?["); i >= 0 {
		dir := filepath.Dir(pattern[:i+1])
		if dir == "" {
			return "."
		}
		return dir
	}
	return filepath.Dir(pattern)
}
