package pipeline

import (
	"fmt"

	"git.home.luguber.info/inful/tokenforge/internal/token"
)

// PlanningError aggregates source validation issues into a single error.
// The raw issues are preserved so reporters can render them individually.
type PlanningError struct {
	Issues []token.Issue
}

func (e *PlanningError) Error() string {
	if len(e.Issues) == 1 {
		return fmt.Sprintf("source planning failed: %s", e.Issues[0].Message)
	}
	return fmt.Sprintf("source planning failed with %d issues", len(e.Issues))
}

// Diagnostics converts the raw issues into reporter-facing diagnostics.
func (e *PlanningError) Diagnostics() []token.Issue {
	out := make([]token.Issue, len(e.Issues))
	copy(out, e.Issues)
	return out
}

// NewPlanningError wraps a non-empty issue list. Returns nil for no issues.
func NewPlanningError(issues []token.Issue) error {
	if len(issues) == 0 {
		return nil
	}
	return &PlanningError{Issues: issues}
}
