// Package service implements command-level orchestration over the core
// event-sourced subsystem: the write template (lock, load, resolve IDs,
// validate, project, append, persist, unlock) and the derived read-only
// queries. Service is a struct carrying its dependencies (logger, clock,
// actor); every method returns a result or a categorized error, never a
// bare one.
package service

import (
	"log/slog"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/misty-step/tsq/internal/config"
	"github.com/misty-step/tsq/internal/events"
	"github.com/misty-step/tsq/internal/ids"
	"github.com/misty-step/tsq/internal/journal"
	"github.com/misty-step/tsq/internal/lock"
	"github.com/misty-step/tsq/internal/loader"
	"github.com/misty-step/tsq/internal/paths"
	"github.com/misty-step/tsq/internal/projector"
	"github.com/misty-step/tsq/internal/tsqerr"
)

// maxIDCollisionRetries bounds RootID regeneration attempts before a
// create fails with ID_COLLISION (Design Notes: "retry up to 10 times").
const maxIDCollisionRetries = 10

// Service orchestrates reads and writes against one repository. Actor and
// Now are explicit so tests can drive deterministic sequences; the
// projector itself never reads either.
type Service struct {
	Paths       paths.Dir
	Logger      *slog.Logger
	Actor       string
	Now         func() time.Time
	LockTimeout time.Duration
}

// New constructs a Service. A nil logger defaults to slog.Default(); a nil
// clock defaults to time.Now.
func New(p paths.Dir, logger *slog.Logger, actor string, now func() time.Time) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &Service{Paths: p, Logger: logger, Actor: actor, Now: now}
}

// ActorOrEnv resolves the actor to record on new events: explicit actor if
// non-empty, else TSQ_ACTOR, else "unknown".
func ActorOrEnv(actor string) string {
	if actor != "" {
		return actor
	}
	if v := os.Getenv("TSQ_ACTOR"); v != "" {
		return v
	}
	return "unknown"
}

// LockTimeoutOrEnv resolves the lock acquisition deadline: explicit value
// if positive, else TSQ_LOCK_TIMEOUT_MS, else lock.DefaultTimeout.
func LockTimeoutOrEnv(explicit time.Duration) time.Duration {
	if explicit > 0 {
		return explicit
	}
	if v := os.Getenv("TSQ_LOCK_TIMEOUT_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return lock.DefaultTimeout
}

func (s *Service) lockTimeout() time.Duration {
	return LockTimeoutOrEnv(s.LockTimeout)
}

// Init creates the repository directory and a default config document if
// absent. It writes no event; the journal file itself is created lazily by
// the first append.
func (s *Service) Init() error {
	if err := os.MkdirAll(s.Paths.Root(), 0o755); err != nil {
		return tsqerr.Wrap(tsqerr.CodeIO, "create repository directory", err)
	}
	if _, err := os.Stat(s.Paths.ConfigFile()); err == nil {
		return nil
	}
	return config.Save(s.Paths.ConfigFile(), config.Default())
}

// Load returns the current projected state without taking the lock.
func (s *Service) Load() (loader.Result, error) {
	result, err := loader.LoadProjectedState(s.Paths)
	if err == nil && result.Warning != "" {
		s.Logger.Warn("state loaded with warning", "warning", result.Warning)
	}
	return result, err
}

// mutate runs build under the write lock against freshly loaded state.
// build returns the events to apply/append, or an error that aborts the
// whole operation before anything is written. An empty event slice is a
// successful no-op that still returns the loaded state.
func (s *Service) mutate(build func(state *projector.State) ([]events.Record, error)) (*projector.State, error) {
	var result *projector.State
	err := lock.WithWriteLock(s.Paths.LockFile(), s.lockTimeout(), func() error {
		loaded, err := loader.LoadProjectedState(s.Paths)
		if err != nil {
			return err
		}
		if loaded.Warning != "" {
			s.Logger.Warn("state loaded with warning", "warning", loaded.Warning)
		}
		state := loaded.State

		recs, err := build(state)
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			result = state
			return nil
		}

		next, err := projector.ApplyEvents(state, recs)
		if err != nil {
			return err
		}
		if err := journal.Append(s.Paths.EventsFile(), recs); err != nil {
			return err
		}
		if err := loader.PersistProjection(s.Paths, next, next.AppliedEvents, s.Now()); err != nil {
			return err
		}
		result = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// newEvent builds a validated Record for taskID stamped with the current
// clock and actor, and a freshly minted event ID.
func (s *Service) newEvent(taskID string, typ events.Type, payload events.Payload) (events.Record, error) {
	ts := s.Now().UTC()
	return events.New(ids.EventID(ts), ts, ActorOrEnv(s.Actor), typ, taskID, payload)
}

// nextTaskID mints a fresh root ID (retrying on collision) or, for a
// child, the deterministic next suffix under parentID.
func (s *Service) nextTaskID(state *projector.State, parentID string) (string, error) {
	if parentID == "" {
		for i := 0; i < maxIDCollisionRetries; i++ {
			id, err := ids.RootID()
			if err != nil {
				return "", tsqerr.Wrap(tsqerr.CodeInternal, "generate root task id", err)
			}
			if _, exists := state.Tasks[id]; !exists {
				return id, nil
			}
		}
		return "", tsqerr.New(tsqerr.CodeIDCollision, "exhausted retries generating a unique root task id")
	}
	return ids.ChildID(parentID, state.ChildCounters[parentID]), nil
}

// ResolveID maps ref (a full task ID, or — unless exact is set — any
// prefix that uniquely matches one) to a canonical task ID.
func ResolveID(state *projector.State, ref string, exact bool) (string, error) {
	if ref == "" {
		return "", tsqerr.New(tsqerr.CodeTaskNotFound, "task reference must not be empty")
	}
	if _, ok := state.Tasks[ref]; ok {
		return ref, nil
	}
	if exact {
		return "", tsqerr.Newf(tsqerr.CodeTaskNotFound, "task %q not found", ref)
	}

	var matches []string
	for id := range state.Tasks {
		if len(id) >= len(ref) && id[:len(ref)] == ref {
			matches = append(matches, id)
		}
	}
	sort.Strings(matches)
	switch len(matches) {
	case 0:
		return "", tsqerr.Newf(tsqerr.CodeTaskNotFound, "no task matches %q", ref)
	case 1:
		return matches[0], nil
	default:
		return "", tsqerr.Newf(tsqerr.CodeTaskIDAmbiguous, "%q matches %d tasks", ref, len(matches)).
			WithDetails(map[string]any{"matches": matches})
	}
}

func (s *Service) resolve(state *projector.State, ref string, exact bool) (string, *projector.Task, error) {
	id, err := ResolveID(state, ref, exact)
	if err != nil {
		return "", nil, err
	}
	return id, state.Tasks[id], nil
}
