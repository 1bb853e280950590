// Package repair implements the plan/apply reconciliation pass: detect
// state that has drifted from what the journal and invariants would produce
// (orphan edges left by hand-edited files, stray temp files, a held lock,
// snapshots beyond retention) and, under --fix, correct it. The read-only
// plan is kept separate from the gated, lock-scoped apply so operators can
// always inspect before mutating.
package repair

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/misty-step/tsq/internal/events"
	"github.com/misty-step/tsq/internal/ids"
	"github.com/misty-step/tsq/internal/journal"
	"github.com/misty-step/tsq/internal/lock"
	"github.com/misty-step/tsq/internal/loader"
	"github.com/misty-step/tsq/internal/paths"
	"github.com/misty-step/tsq/internal/projector"
	"github.com/misty-step/tsq/internal/snapshot"
	"github.com/misty-step/tsq/internal/tsqerr"
)

// OrphanDep is a dependency edge whose child or blocker is missing from
// tasks. TaskExists reports whether the child itself survived; an edge
// cannot be repaired via a synthetic dep.removed event when it did not,
// since the projector requires the source task to exist — such an edge is
// reported but left for operator judgement.
type OrphanDep struct {
	TaskID     string
	Blocker    string
	DepType    events.DepType
	TaskExists bool
}

// OrphanLink is a relation edge whose source or target is missing.
type OrphanLink struct {
	SourceID   string
	Type       events.LinkType
	Target     string
	TaskExists bool
}

// Plan is a read-only snapshot of reconcilable drift.
type Plan struct {
	OrphanDeps      []OrphanDep
	OrphanLinks     []OrphanLink
	StaleTempFiles  []string
	LockPresent     bool
	ExcessSnapshots []string
}

// Empty reports whether the plan found nothing to reconcile.
func (p Plan) Empty() bool {
	return len(p.OrphanDeps) == 0 && len(p.OrphanLinks) == 0 &&
		len(p.StaleTempFiles) == 0 && !p.LockPresent && len(p.ExcessSnapshots) == 0
}

// BuildPlan inspects the repository at p against freshly loaded state and
// enumerates everything apply() could reconcile.
func BuildPlan(p paths.Dir, state *projector.State) (Plan, error) {
	var plan Plan

	for childID, edges := range state.Deps {
		childTask := state.Tasks[childID]
		for _, e := range edges {
			if childTask != nil && state.Tasks[e.Blocker] != nil {
				continue
			}
			plan.OrphanDeps = append(plan.OrphanDeps, OrphanDep{
				TaskID: childID, Blocker: e.Blocker, DepType: e.DepType, TaskExists: childTask != nil,
			})
		}
	}

	for sourceID, byType := range state.Links {
		sourceTask := state.Tasks[sourceID]
		for linkType, targets := range byType {
			for _, target := range targets {
				if sourceTask != nil && state.Tasks[target] != nil {
					continue
				}
				plan.OrphanLinks = append(plan.OrphanLinks, OrphanLink{
					SourceID: sourceID, Type: linkType, Target: target, TaskExists: sourceTask != nil,
				})
			}
		}
	}
	sortOrphans(&plan)

	entries, err := os.ReadDir(p.Root())
	if err != nil && !os.IsNotExist(err) {
		return Plan{}, tsqerr.Wrap(tsqerr.CodeIO, "repair: list repository directory", err)
	}
	for _, e := range entries {
		if !e.IsDir() && strings.Contains(e.Name(), ".tmp") {
			plan.StaleTempFiles = append(plan.StaleTempFiles, filepath.Join(p.Root(), e.Name()))
		}
	}

	if _, err := os.Stat(p.LockFile()); err == nil {
		plan.LockPresent = true
	}

	snaps, err := os.ReadDir(p.SnapshotsDir())
	if err == nil {
		var names []string
		for _, e := range snaps {
			if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)
		if len(names) > snapshot.Retention {
			for _, name := range names[:len(names)-snapshot.Retention] {
				plan.ExcessSnapshots = append(plan.ExcessSnapshots, filepath.Join(p.SnapshotsDir(), name))
			}
		}
	} else if !os.IsNotExist(err) {
		return Plan{}, tsqerr.Wrap(tsqerr.CodeIO, "repair: list snapshots directory", err)
	}

	return plan, nil
}

func sortOrphans(plan *Plan) {
	sort.Slice(plan.OrphanDeps, func(i, j int) bool {
		if plan.OrphanDeps[i].TaskID != plan.OrphanDeps[j].TaskID {
			return plan.OrphanDeps[i].TaskID < plan.OrphanDeps[j].TaskID
		}
		return plan.OrphanDeps[i].Blocker < plan.OrphanDeps[j].Blocker
	})
	sort.Slice(plan.OrphanLinks, func(i, j int) bool {
		if plan.OrphanLinks[i].SourceID != plan.OrphanLinks[j].SourceID {
			return plan.OrphanLinks[i].SourceID < plan.OrphanLinks[j].SourceID
		}
		return plan.OrphanLinks[i].Target < plan.OrphanLinks[j].Target
	})
}

// Options configures Apply.
type Options struct {
	// Fix must be true or Apply is a no-op (the default is plan-only/dry-run).
	Fix bool
	// ForceUnlock removes the lock file before re-acquiring it, for
	// operator-initiated recovery from a stuck writer.
	ForceUnlock bool
	Actor       string
	Now         func() time.Time
	LockTimeout time.Duration
}

// Result reports what Apply actually did.
type Result struct {
	ForceUnlocked    bool
	RemovedDeps      int
	RemovedLinks     int
	SkippedOrphans   int
	RemovedTempFiles []string
	RemovedSnapshots []string
}

// Apply reconciles plan under opts. With Fix unset it is a no-op returning
// a zero Result. Orphan removal happens under the write lock as synthetic
// dep.removed/link.removed events; temp file and excess snapshot cleanup
// happens outside the lock since neither is part of the event-sourced
// model.
func Apply(p paths.Dir, plan Plan, opts Options) (Result, error) {
	var result Result
	if !opts.Fix {
		return result, nil
	}

	if opts.ForceUnlock {
		if err := lock.ForceRemove(p.LockFile()); err != nil {
			return Result{}, err
		}
		result.ForceUnlocked = true
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	actor := opts.Actor
	if actor == "" {
		actor = "repair"
	}

	err := lock.WithWriteLock(p.LockFile(), opts.LockTimeout, func() error {
		loaded, err := loader.LoadProjectedState(p)
		if err != nil {
			return err
		}
		state := loaded.State

		var recs []events.Record
		for _, od := range plan.OrphanDeps {
			if !od.TaskExists {
				result.SkippedOrphans++
				continue
			}
			ts := now().UTC()
			rec, err := events.New(ids.EventID(ts), ts, actor, events.TypeDepRemoved, od.TaskID,
				&events.DepRemovedPayload{Blocker: od.Blocker, DepType: od.DepType})
			if err != nil {
				return err
			}
			recs = append(recs, rec)
		}
		for _, ol := range plan.OrphanLinks {
			if !ol.TaskExists {
				result.SkippedOrphans++
				continue
			}
			ts := now().UTC()
			rec, err := events.New(ids.EventID(ts), ts, actor, events.TypeLinkRemoved, ol.SourceID,
				&events.LinkRemovedPayload{Type: ol.Type, Target: ol.Target})
			if err != nil {
				return err
			}
			recs = append(recs, rec)
		}

		if len(recs) == 0 {
			return nil
		}
		next, err := projector.ApplyEvents(state, recs)
		if err != nil {
			return err
		}
		if err := journal.Append(p.EventsFile(), recs); err != nil {
			return err
		}
		if err := loader.PersistProjection(p, next, next.AppliedEvents, now()); err != nil {
			return err
		}
		result.RemovedDeps = len(plan.OrphanDeps) - countUnfixable(plan.OrphanDeps)
		result.RemovedLinks = len(plan.OrphanLinks) - countUnfixableLinks(plan.OrphanLinks)
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	for _, f := range plan.StaleTempFiles {
		if err := os.Remove(f); err == nil {
			result.RemovedTempFiles = append(result.RemovedTempFiles, f)
		}
	}
	for _, s := range plan.ExcessSnapshots {
		if err := os.Remove(s); err == nil {
			result.RemovedSnapshots = append(result.RemovedSnapshots, s)
		}
	}
	return result, nil
}

func countUnfixable(deps []OrphanDep) int {
	n := 0
	for _, d := range deps {
		if !d.TaskExists {
			n++
		}
	}
	return n
}

func countUnfixableLinks(links []OrphanLink) int {
	n := 0
	for _, l := range links {
		if !l.TaskExists {
			n++
		}
	}
	return n
}
