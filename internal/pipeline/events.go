package pipeline

import "time"

// Event is a domain event published by stages and consumed by handlers.
type Event interface{ Name() string }

// Event names used across the build pipeline.
const (
	EventStageStart    = "stage:start"
	EventStageComplete = "stage:complete"
	EventStageError    = "stage:error"
)

// Stage names published on the bus.
const (
	StagePlanning     = "planning"
	StageParsing      = "parsing"
	StageDependencies = "dependency-tracking"
	StageTransforms   = "transforms"
	StageFormatters   = "formatters"
	StageArtifacts    = "artifact-write"
	StageCommit       = "dependency-commit"
)

// StageEvent is the uniform lifecycle event emitted by every build stage.
// Attributes carry stage-specific counters (changed tokens, artifact counts);
// Err is set only on stage:error events.
type StageEvent struct {
	Type       string         `json:"type"`
	Stage      string         `json:"stage"`
	BuildID    string         `json:"buildId"`
	Timestamp  time.Time      `json:"timestamp"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Err        error          `json:"-"`
}

// Name implements Event.
func (e StageEvent) Name() string { return e.Type }

// GetBuildID exposes the owning build for event persistence.
func (e StageEvent) GetBuildID() string { return e.BuildID }

// StageStart constructs a stage:start event.
func StageStart(buildID, stage string, attrs map[string]any) StageEvent {
	return StageEvent{Type: EventStageStart, Stage: stage, BuildID: buildID, Timestamp: time.Now(), Attributes: attrs}
}

// StageComplete constructs a stage:complete event.
func StageComplete(buildID, stage string, attrs map[string]any) StageEvent {
	return StageEvent{Type: EventStageComplete, Stage: stage, BuildID: buildID, Timestamp: time.Now(), Attributes: attrs}
}

// StageError constructs a stage:error event.
func StageError(buildID, stage string, err error) StageEvent {
	return StageEvent{Type: EventStageError, Stage: stage, BuildID: buildID, Timestamp: time.Now(), Err: err}
}
