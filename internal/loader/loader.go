// Package loader combines the journal, state cache, and snapshot store
// into bounded-cost state reconstruction: return the cache when fresh,
// replay the journal tail on top of the cache or latest snapshot when
// stale, and fold from empty only when neither exists.
package loader

import (
	"time"

	"github.com/misty-step/tsq/internal/config"
	"github.com/misty-step/tsq/internal/events"
	"github.com/misty-step/tsq/internal/journal"
	"github.com/misty-step/tsq/internal/paths"
	"github.com/misty-step/tsq/internal/projector"
	"github.com/misty-step/tsq/internal/snapshot"
	"github.com/misty-step/tsq/internal/statecache"
)

// Result is the outcome of LoadProjectedState: the reconstructed state plus
// any non-fatal warning surfaced along the way (a torn journal tail, or
// invalid snapshot candidates skipped).
type Result struct {
	State   *projector.State
	Warning string
}

// LoadProjectedState computes the current projected state with bounded
// work. It performs no locking and is safe to call concurrently with
// writers; it observes a consistent prefix of the journal at the instant it
// reads it.
func LoadProjectedState(p paths.Dir) (Result, error) {
	recs, warning, err := journal.Read(p.EventsFile())
	if err != nil {
		return Result{}, err
	}

	if cached, ok, err := statecache.Load(p.StateFile()); err != nil {
		return Result{}, err
	} else if ok && cached.AppliedEvents <= len(recs) {
		if cached.AppliedEvents == len(recs) {
			return Result{State: cached, Warning: warning}, nil
		}
		next, err := applyTail(cached, recs, cached.AppliedEvents)
		if err != nil {
			return Result{}, err
		}
		return Result{State: next, Warning: warning}, nil
	}

	base := projector.Empty()
	startOffset := 0
	if snap, snapWarning, err := snapshot.LoadLatest(p.SnapshotsDir()); err != nil {
		return Result{}, err
	} else if snap != nil {
		base = snap.State
		startOffset = snap.EventCount
		if startOffset > len(recs) {
			startOffset = len(recs)
		}
		if snapWarning != "" {
			warning = combineWarnings(warning, snapWarning)
		}
	}

	next, err := applyTail(base, recs, startOffset)
	if err != nil {
		return Result{}, err
	}
	return Result{State: next, Warning: warning}, nil
}

func applyTail(base *projector.State, recs []events.Record, offset int) (*projector.State, error) {
	next, err := projector.ApplyEvents(base, recs[offset:])
	if err != nil {
		return nil, err
	}
	next.AppliedEvents = len(recs)
	return next, nil
}

func combineWarnings(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + "; " + b
	}
}

// PersistProjection writes the state cache for state (whose AppliedEvents
// must equal eventCount) and, if a snapshot-interval boundary is crossed,
// also writes a snapshot. Must be called only while the write lock is held.
func PersistProjection(p paths.Dir, state *projector.State, eventCount int, now time.Time) error {
	state.AppliedEvents = eventCount
	if err := statecache.Save(p.StateFile(), state); err != nil {
		return err
	}

	cfg, err := config.Load(p.ConfigFile())
	if err != nil {
		return err
	}
	if cfg.SnapshotEvery > 0 && eventCount > 0 && eventCount%cfg.SnapshotEvery == 0 {
		return snapshot.Write(p.SnapshotsDir(), snapshot.Snapshot{
			TakenAt:    now,
			EventCount: eventCount,
			State:      state,
		})
	}
	return nil
}
