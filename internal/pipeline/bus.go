package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
)

// EventStore defines the interface for persisting events.
// This is a subset of eventstore.Store to avoid circular dependencies.
type EventStore interface {
	Append(ctx context.Context, buildID, eventType, stage string, payload []byte) error
}

// Handler processes an Event; return error to signal failure.
type Handler func(Event) error

// Bus is a simple synchronous pub/sub event bus.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]Handler
	eventStore  EventStore // optional event store for persistence
	logger      *slog.Logger
}

func NewBus() *Bus {
	return &Bus{subscribers: map[string][]Handler{}, logger: slog.Default()}
}

// NewBusWithEventStore creates a bus that persists events to the store.
func NewBusWithEventStore(store EventStore) *Bus {
	b := NewBus()
	b.eventStore = store
	return b
}

// WithLogger sets a custom logger.
func (b *Bus) WithLogger(logger *slog.Logger) *Bus {
	b.logger = logger
	return b
}

// Subscribe registers a handler for a given event name.
func (b *Bus) Subscribe(event string, h Handler) {
	if h == nil {
		return
	}
	b.mu.Lock()
	b.subscribers[event] = append(b.subscribers[event], h)
	b.mu.Unlock()
}

// SubscribeStages registers a handler for all stage lifecycle event names.
func (b *Bus) SubscribeStages(h Handler) {
	for _, name := range []string{EventStageStart, EventStageComplete, EventStageError} {
		b.Subscribe(name, h)
	}
}

// Publish delivers an event to all handlers synchronously.
// If an event store is configured, the event is persisted before being
// delivered to handlers; persistence failures are logged, never returned.
func (b *Bus) Publish(e Event) error {
	if b.eventStore != nil {
		b.persist(e)
	}

	b.mu.RLock()
	hs := append([]Handler(nil), b.subscribers[e.Name()]...)
	b.mu.RUnlock()
	for _, h := range hs {
		if err := h(e); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bus) persist(e Event) {
	buildID := "unknown"
	if be, ok := e.(interface{ GetBuildID() string }); ok {
		buildID = be.GetBuildID()
	}
	stage := ""
	var payload []byte
	if se, ok := e.(StageEvent); ok {
		stage = se.Stage
		if se.Attributes != nil {
			payload, _ = json.Marshal(se.Attributes)
		}
		if se.Err != nil {
			payload, _ = json.Marshal(map[string]string{"error": se.Err.Error()})
		}
	}
	if err := b.eventStore.Append(context.Background(), buildID, e.Name(), stage, payload); err != nil {
		b.logger.Warn("Failed to persist stage event", "event", e.Name(), "build_id", buildID, "error", err)
	}
}
