package service

import (
	"fmt"

	"github.com/misty-step/tsq/internal/events"
	"github.com/misty-step/tsq/internal/projector"
	"github.com/misty-step/tsq/internal/tsqerr"
)

// CreateOptions configures Create beyond the required kind and title.
type CreateOptions struct {
	ParentID    string
	ExactParent bool
	Priority    *int
	Labels      []string
	Description string
	Assignee    string
}

// Create appends a task.created event and returns the new task.
func (s *Service) Create(kind, title string, opts CreateOptions) (*projector.Task, error) {
	var newID string
	next, err := s.mutate(func(state *projector.State) ([]events.Record, error) {
		parentID := ""
		if opts.ParentID != "" {
			resolved, err := ResolveID(state, opts.ParentID, opts.ExactParent)
			if err != nil {
				return nil, err
			}
			parentID = resolved
		}
		id, err := s.nextTaskID(state, parentID)
		if err != nil {
			return nil, err
		}
		newID = id

		payload := &events.TaskCreatedPayload{
			Title:       title,
			Kind:        kind,
			ParentID:    parentID,
			Priority:    opts.Priority,
			Labels:      opts.Labels,
			Description: opts.Description,
			Assignee:    opts.Assignee,
		}
		rec, err := s.newEvent(id, events.TypeTaskCreated, payload)
		if err != nil {
			return nil, err
		}
		return []events.Record{rec}, nil
	})
	if err != nil {
		return nil, err
	}
	return next.Tasks[newID], nil
}

// UpdatePatch mirrors events.TaskUpdatedPayload; nil/nil-slice fields are
// left unchanged.
type UpdatePatch = events.TaskUpdatedPayload

// Update applies a partial mutation to the task identified by ref.
func (s *Service) Update(ref string, exact bool, patch UpdatePatch) (*projector.Task, error) {
	var id string
	next, err := s.mutate(func(state *projector.State) ([]events.Record, error) {
		resolved, err := ResolveID(state, ref, exact)
		if err != nil {
			return nil, err
		}
		id = resolved
		rec, err := s.newEvent(id, events.TypeTaskUpdated, &patch)
		if err != nil {
			return nil, err
		}
		return []events.Record{rec}, nil
	})
	if err != nil {
		return nil, err
	}
	return next.Tasks[id], nil
}

// SetStatus transitions ref to status. Closing an already-closed task is
// rejected here rather than in the projector, so that replaying a journal
// containing an explicit re-close (e.g. merge's superseded+closed pair)
// stays valid.
func (s *Service) SetStatus(ref string, exact bool, status string) (*projector.Task, error) {
	var id string
	next, err := s.mutate(func(state *projector.State) ([]events.Record, error) {
		resolved, task, err := s.resolve(state, ref, exact)
		if err != nil {
			return nil, err
		}
		id = resolved
		if status == "closed" && task.Status == "closed" {
			return nil, tsqerr.Newf(tsqerr.CodeInvalidTransition, "task %q is already closed", id)
		}
		rec, err := s.newEvent(id, events.TypeTaskStatusSet, &events.TaskStatusSetPayload{Status: status})
		if err != nil {
			return nil, err
		}
		return []events.Record{rec}, nil
	})
	if err != nil {
		return nil, err
	}
	return next.Tasks[id], nil
}

// Claim assigns ref to assignee (defaulting to the service actor),
// rejecting a task whose assignee is already set.
func (s *Service) Claim(ref string, exact bool, assignee string) (*projector.Task, error) {
	var id string
	next, err := s.mutate(func(state *projector.State) ([]events.Record, error) {
		resolvedID, task, err := s.resolve(state, ref, exact)
		if err != nil {
			return nil, err
		}
		id = resolvedID

		if task.Assignee != "" {
			return nil, tsqerr.Newf(tsqerr.CodeClaimConflict, "task %q is already claimed by %q", id, task.Assignee)
		}

		rec, err := s.newEvent(id, events.TypeTaskClaimed, &events.TaskClaimedPayload{Assignee: assignee})
		if err != nil {
			return nil, err
		}
		return []events.Record{rec}, nil
	})
	if err != nil {
		return nil, err
	}
	return next.Tasks[id], nil
}

// Note appends an immutable note to ref.
func (s *Service) Note(ref string, exact bool, text string) (*projector.Task, error) {
	var id string
	next, err := s.mutate(func(state *projector.State) ([]events.Record, error) {
		resolved, err := ResolveID(state, ref, exact)
		if err != nil {
			return nil, err
		}
		id = resolved
		rec, err := s.newEvent(id, events.TypeTaskNoted, &events.TaskNotedPayload{Text: text})
		if err != nil {
			return nil, err
		}
		return []events.Record{rec}, nil
	})
	if err != nil {
		return nil, err
	}
	return next.Tasks[id], nil
}

// AttachSpec records a spec file's path and fingerprint on ref. force
// overrides a SPEC_CONFLICT that would otherwise fire on a fingerprint
// mismatch against the task's currently recorded spec.
func (s *Service) AttachSpec(ref string, exact bool, specPath, fingerprint string, force bool) (*projector.Task, error) {
	var id string
	next, err := s.mutate(func(state *projector.State) ([]events.Record, error) {
		resolved, err := ResolveID(state, ref, exact)
		if err != nil {
			return nil, err
		}
		id = resolved
		rec, err := s.newEvent(id, events.TypeTaskSpecAttached, &events.TaskSpecAttachedPayload{
			SpecPath:        specPath,
			SpecFingerprint: fingerprint,
			Force:           force,
		})
		if err != nil {
			return nil, err
		}
		return []events.Record{rec}, nil
	})
	if err != nil {
		return nil, err
	}
	return next.Tasks[id], nil
}

// Supersede closes ref and marks it superseded_by withRef.
func (s *Service) Supersede(ref string, exact bool, withRef string, exactWith bool) (*projector.Task, error) {
	var id string
	next, err := s.mutate(func(state *projector.State) ([]events.Record, error) {
		resolved, err := ResolveID(state, ref, exact)
		if err != nil {
			return nil, err
		}
		id = resolved
		withID, err := ResolveID(state, withRef, exactWith)
		if err != nil {
			return nil, err
		}
		rec, err := s.newEvent(id, events.TypeTaskSuperseded, &events.TaskSupersededPayload{With: withID})
		if err != nil {
			return nil, err
		}
		return []events.Record{rec}, nil
	})
	if err != nil {
		return nil, err
	}
	return next.Tasks[id], nil
}

// AddDep adds a dependency edge: childRef depends on (is blocked by)
// blockerRef.
func (s *Service) AddDep(childRef string, exactChild bool, blockerRef string, exactBlocker bool, depType events.DepType) (*projector.Task, error) {
	var id string
	next, err := s.mutate(func(state *projector.State) ([]events.Record, error) {
		resolved, err := ResolveID(state, childRef, exactChild)
		if err != nil {
			return nil, err
		}
		id = resolved
		blockerID, err := ResolveID(state, blockerRef, exactBlocker)
		if err != nil {
			return nil, err
		}
		rec, err := s.newEvent(id, events.TypeDepAdded, &events.DepAddedPayload{Blocker: blockerID, DepType: depType})
		if err != nil {
			return nil, err
		}
		return []events.Record{rec}, nil
	})
	if err != nil {
		return nil, err
	}
	return next.Tasks[id], nil
}

// RemoveDep removes a dependency edge if present.
func (s *Service) RemoveDep(childRef string, exactChild bool, blockerRef string, exactBlocker bool, depType events.DepType) (*projector.Task, error) {
	var id string
	next, err := s.mutate(func(state *projector.State) ([]events.Record, error) {
		resolved, err := ResolveID(state, childRef, exactChild)
		if err != nil {
			return nil, err
		}
		id = resolved
		blockerID, err := ResolveID(state, blockerRef, exactBlocker)
		if err != nil {
			return nil, err
		}
		rec, err := s.newEvent(id, events.TypeDepRemoved, &events.DepRemovedPayload{Blocker: blockerID, DepType: depType})
		if err != nil {
			return nil, err
		}
		return []events.Record{rec}, nil
	})
	if err != nil {
		return nil, err
	}
	return next.Tasks[id], nil
}

// AddLink adds a directed relation edge from sourceRef to targetRef.
func (s *Service) AddLink(sourceRef string, exactSource bool, linkType events.LinkType, targetRef string, exactTarget bool) (*projector.Task, error) {
	var id string
	next, err := s.mutate(func(state *projector.State) ([]events.Record, error) {
		resolved, err := ResolveID(state, sourceRef, exactSource)
		if err != nil {
			return nil, err
		}
		id = resolved
		targetID, err := ResolveID(state, targetRef, exactTarget)
		if err != nil {
			return nil, err
		}
		rec, err := s.newEvent(id, events.TypeLinkAdded, &events.LinkAddedPayload{Type: linkType, Target: targetID})
		if err != nil {
			return nil, err
		}
		return []events.Record{rec}, nil
	})
	if err != nil {
		return nil, err
	}
	return next.Tasks[id], nil
}

// RemoveLink removes a directed relation edge.
func (s *Service) RemoveLink(sourceRef string, exactSource bool, linkType events.LinkType, targetRef string, exactTarget bool) (*projector.Task, error) {
	var id string
	next, err := s.mutate(func(state *projector.State) ([]events.Record, error) {
		resolved, err := ResolveID(state, sourceRef, exactSource)
		if err != nil {
			return nil, err
		}
		id = resolved
		targetID, err := ResolveID(state, targetRef, exactTarget)
		if err != nil {
			return nil, err
		}
		rec, err := s.newEvent(id, events.TypeLinkRemoved, &events.LinkRemovedPayload{Type: linkType, Target: targetID})
		if err != nil {
			return nil, err
		}
		return []events.Record{rec}, nil
	})
	if err != nil {
		return nil, err
	}
	return next.Tasks[id], nil
}

// Merge absorbs fromRef into intoRef: a task.superseded event, a
// task.status_set(closed) making the closure explicit in the log rather
// than a side effect of the supersede, and one task.noted per note carried
// over from the absorbed task so its history is not silently lost.
// Rejects a closed intoRef unless force is set.
func (s *Service) Merge(fromRef string, exactFrom bool, intoRef string, exactInto bool, force bool) (*projector.Task, error) {
	var intoID string
	next, err := s.mutate(func(state *projector.State) ([]events.Record, error) {
		fromID, fromTask, err := s.resolve(state, fromRef, exactFrom)
		if err != nil {
			return nil, err
		}
		resolvedInto, intoTask, err := s.resolve(state, intoRef, exactInto)
		if err != nil {
			return nil, err
		}
		intoID = resolvedInto
		if intoTask.Status == "closed" && !force {
			return nil, tsqerr.Newf(tsqerr.CodeInvalidTransition, "merge target %q is closed; use --force to merge into it anyway", intoID)
		}

		var recs []events.Record
		superseded, err := s.newEvent(fromID, events.TypeTaskSuperseded, &events.TaskSupersededPayload{With: intoID})
		if err != nil {
			return nil, err
		}
		recs = append(recs, superseded)

		closed, err := s.newEvent(fromID, events.TypeTaskStatusSet, &events.TaskStatusSetPayload{Status: "closed"})
		if err != nil {
			return nil, err
		}
		recs = append(recs, closed)

		for _, note := range fromTask.Notes {
			carried, err := s.newEvent(intoID, events.TypeTaskNoted, &events.TaskNotedPayload{
				Text: fmt.Sprintf("(carried from %s, originally by %s) %s", fromID, note.Actor, note.Text),
			})
			if err != nil {
				return nil, err
			}
			recs = append(recs, carried)
		}
		return recs, nil
	})
	if err != nil {
		return nil, err
	}
	return next.Tasks[intoID], nil
}
