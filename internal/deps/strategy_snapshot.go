package deps

// StrategySnapshot is the default direct-equality diff strategy.
const StrategySnapshot = "snapshot"

// snapshotStrategy marks a pointer changed when it is absent from the
// previous snapshot or its hash differs, and removed (hence also changed)
// when it only exists in the previous snapshot.
type snapshotStrategy struct{}

func newSnapshotStrategy(options map[string]any) (Strategy, error) {
	if err := rejectUnknownOptions(StrategySnapshot, options); err != nil {
		return nil, err
	}
	return snapshotStrategy{}, nil
}

func (snapshotStrategy) Name() string { return StrategySnapshot }

func (snapshotStrategy) Diff(prev, next *Snapshot) (*Diff, error) {
	if prev == nil {
		return AllChanged(next), nil
	}

	diff := NewDiff(next)
	prevIdx := entryIndex(prev)
	nextIdx := entryIndex(next)

	for _, e := range next.Entries {
		old, ok := prevIdx[e.Pointer]
		if !ok || old.Hash != e.Hash {
			diff.Changed[e.Pointer] = struct{}{}
		}
	}
	for _, e := range prev.Entries {
		if _, ok := nextIdx[e.Pointer]; !ok {
			diff.Removed[e.Pointer] = struct{}{}
			diff.Changed[e.Pointer] = struct{}{}
		}
	}
	return diff, nil
}
