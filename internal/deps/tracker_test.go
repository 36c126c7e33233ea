package deps

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/tokenforge/internal/pipeline"
	"git.home.luguber.info/inful/tokenforge/internal/token"
)

type fakeCache struct {
	diff      *Diff
	evalErr   error
	committed *Snapshot
	commitErr error
}

func (f *fakeCache) Evaluate(ctx context.Context, next *Snapshot) (*Diff, error) {
	if f.evalErr != nil {
		return nil, f.evalErr
	}
	if f.diff != nil {
		return f.diff, nil
	}
	return NewDiff(next), nil
}

func (f *fakeCache) Commit(ctx context.Context, snap *Snapshot) error {
	if f.commitErr != nil {
		return f.commitErr
	}
	f.committed = snap
	return nil
}

func trackerPlan() *token.ResolvedPlan {
	return &token.ResolvedPlan{
		Entries: []token.SourceEntry{{
			Document: token.SourceDocument{URI: "core.json"},
			Tokens: []token.Snapshot{
				{Pointer: "/a", Value: 1},
				{Pointer: "/b", Value: 2},
			},
		}},
		ResolvedAt: time.Now().UTC(),
	}
}

func collectStageEvents(bus *pipeline.Bus) *[]pipeline.StageEvent {
	var events []pipeline.StageEvent
	bus.SubscribeStages(func(e pipeline.Event) error {
		if se, ok := e.(pipeline.StageEvent); ok {
			events = append(events, se)
		}
		return nil
	})
	return &events
}

func TestTrackingServiceNoCacheFailsOpen(t *testing.T) {
	bus := pipeline.NewBus()
	events := collectStageEvents(bus)

	svc := NewTrackingService(nil, bus)
	snap, diff, err := svc.Evaluate(context.Background(), "b1", trackerPlan())
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, 2, diff.ChangedCount())

	require.Len(t, *events, 2)
	assert.Equal(t, pipeline.EventStageStart, (*events)[0].Type)
	assert.Equal(t, pipeline.EventStageComplete, (*events)[1].Type)
	assert.Equal(t, pipeline.StageDependencies, (*events)[1].Stage)
	assert.Equal(t, 2, (*events)[1].Attributes["changedCount"])
}

func TestTrackingServiceEvaluateUsesCache(t *testing.T) {
	cache := &fakeCache{}
	svc := NewTrackingService(cache, nil)

	snap, diff, err := svc.Evaluate(context.Background(), "b1", trackerPlan())
	require.NoError(t, err)
	assert.Len(t, snap.Entries, 2)
	assert.Equal(t, 0, diff.ChangedCount())
}

func TestTrackingServiceEvaluateErrorPublishesStageError(t *testing.T) {
	bus := pipeline.NewBus()
	events := collectStageEvents(bus)

	cache := &fakeCache{evalErr: errors.New("disk on fire")}
	svc := NewTrackingService(cache, bus)

	_, _, err := svc.Evaluate(context.Background(), "b1", trackerPlan())
	require.Error(t, err)

	last := (*events)[len(*events)-1]
	assert.Equal(t, pipeline.EventStageError, last.Type)
	assert.Error(t, last.Err)
}

func TestTrackingServiceCommit(t *testing.T) {
	cache := &fakeCache{}
	svc := NewTrackingService(cache, nil)

	snap := snapWith(Entry{Pointer: "/a", Hash: "h1"})
	require.NoError(t, svc.Commit(context.Background(), "b1", snap))
	assert.Equal(t, snap, cache.committed)
}

func TestTrackingServiceCommitNoCacheIsNoop(t *testing.T) {
	svc := NewTrackingService(nil, nil)
	assert.NoError(t, svc.Commit(context.Background(), "b1", snapWith()))
}
