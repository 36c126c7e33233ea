// Package notify forwards build stage events to external subscribers.
package notify

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/tokenforge/internal/logfields"
	"git.home.luguber.info/inful/tokenforge/internal/pipeline"
)

// NATSPublisher publishes stage events to a NATS subject. It is optional
// infrastructure: publish failures are logged and never fail a build.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
	logger  *slog.Logger
}

// NewNATSPublisher connects to NATS and returns a publisher.
func NewNATSPublisher(url, subject string) (*NATSPublisher, error) {
	if url == "" {
		return nil, fmt.Errorf("NATS URL is required")
	}
	if subject == "" {
		return nil, fmt.Errorf("NATS subject is required")
	}

	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	p := &NATSPublisher{conn: conn, subject: subject, logger: slog.Default()}
	p.logger.Info("NATS stage event publisher initialized", "url", url, "subject", subject)
	return p, nil
}

// WithLogger sets a custom logger.
func (p *NATSPublisher) WithLogger(logger *slog.Logger) *NATSPublisher {
	p.logger = logger
	return p
}

// Attach subscribes the publisher to all stage events on the bus.
func (p *NATSPublisher) Attach(bus *pipeline.Bus) {
	bus.SubscribeStages(func(e pipeline.Event) error {
		p.publish(e)
		return nil
	})
}

func (p *NATSPublisher) publish(e pipeline.Event) {
	se, ok := e.(pipeline.StageEvent)
	if !ok {
		return
	}

	payload := map[string]any{
		"type":      se.Type,
		"stage":     se.Stage,
		"buildId":   se.BuildID,
		"timestamp": se.Timestamp,
	}
	if se.Attributes != nil {
		payload["attributes"] = se.Attributes
	}
	if se.Err != nil {
		payload["error"] = se.Err.Error()
	}

	data, err := json.Marshal(payload)
	if err != nil {
		p.logger.Warn("Failed to serialize stage event", logfields.Error(err))
		return
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		p.logger.Warn("Failed to publish stage event",
			logfields.Stage(se.Stage), logfields.Error(err))
	}
}

// Close drains and closes the connection.
func (p *NATSPublisher) Close() error {
	if p.conn == nil {
		return nil
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
		return fmt.Errorf("failed to drain NATS connection: %w", err)
	}
	return nil
}
