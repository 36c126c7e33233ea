// Package eventstore persists build stage events for post-hoc inspection.
package eventstore

import (
	"context"
	"time"
)

// Event is one persisted stage event.
type Event struct {
	ID        int64     `json:"id"`
	BuildID   string    `json:"build_id"`
	Type      string    `json:"type"`
	Stage     string    `json:"stage"`
	Timestamp time.Time `json:"timestamp"`
	Payload   []byte    `json:"payload,omitempty"`
}

// Store defines the interface for persisting and retrieving stage events.
type Store interface {
	// Append adds a new event to the store.
	Append(ctx context.Context, buildID, eventType, stage string, payload []byte) error

	// GetByBuildID retrieves all events for a specific build, in append order.
	GetByBuildID(ctx context.Context, buildID string) ([]Event, error)

	// GetRange retrieves events within a time range.
	GetRange(ctx context.Context, start, end time.Time) ([]Event, error)

	// Close closes the store and releases resources.
	Close() error
}
