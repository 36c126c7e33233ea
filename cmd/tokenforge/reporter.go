package main

import (
	"log/slog"

	"git.home.luguber.info/inful/tokenforge/internal/logfields"
	"git.home.luguber.info/inful/tokenforge/internal/pipeline"
)

// slogReporter logs build lifecycle notifications.
type slogReporter struct {
	logger *slog.Logger
}

func newSlogReporter() *slogReporter {
	return &slogReporter{logger: slog.Default()}
}

func (r *slogReporter) BuildSucceeded(summary pipeline.BuildSummary) {
	r.logger.Info("Build succeeded",
		logfields.BuildID(summary.BuildID),
		logfields.Reason(summary.Reason),
		logfields.Tokens(summary.Tokens),
		logfields.Changed(summary.Changed),
		logfields.Artifacts(summary.Artifacts),
		logfields.DurationMS(float64(summary.Duration.Milliseconds())))
}

func (r *slogReporter) BuildFailed(reason string, err error) {
	r.logger.Error("Build failed",
		logfields.Reason(reason),
		logfields.Error(err))
}

func (r *slogReporter) WatcherWarning(err error) {
	r.logger.Warn("Watcher warning", logfields.Error(err))
}
