package events

import "github.com/misty-step/tsq/internal/tsqerr"

// TaskCreatedPayload creates a new task. Defaults applied by the projector:
// kind=task, status=open, priority=1, labels=[].
type TaskCreatedPayload struct {
	Title       string   `json:"title"`
	Kind        string   `json:"kind,omitempty"`
	ParentID    string   `json:"parent_id,omitempty"`
	Priority    *int     `json:"priority,omitempty"`
	Labels      []string `json:"labels,omitempty"`
	Description string   `json:"description,omitempty"`
	Assignee    string   `json:"assignee,omitempty"`
}

func (p *TaskCreatedPayload) eventType() Type { return TypeTaskCreated }

func (p *TaskCreatedPayload) validate() error {
	if p.Title == "" {
		return tsqerr.New(tsqerr.CodeInvalidEvent, "task.created requires a non-empty title")
	}
	return nil
}

// TaskUpdatedPayload is a partial mutation. A nil pointer field (or nil
// Labels) means "leave unchanged"; a ClearX flag clears the corresponding
// optional. Combining a value with its clear flag is invalid.
type TaskUpdatedPayload struct {
	Title          *string  `json:"title,omitempty"`
	Kind           *string  `json:"kind,omitempty"`
	Priority       *int     `json:"priority,omitempty"`
	Assignee       *string  `json:"assignee,omitempty"`
	Labels         []string `json:"labels,omitempty"`
	Description    *string  `json:"description,omitempty"`
	ExternalRef    *string  `json:"external_ref,omitempty"`
	DiscoveredFrom *string  `json:"discovered_from,omitempty"`
	DuplicateOf    *string  `json:"duplicate_of,omitempty"`

	ClearAssignee       bool `json:"clear_assignee,omitempty"`
	ClearDescription    bool `json:"clear_description,omitempty"`
	ClearExternalRef    bool `json:"clear_external_ref,omitempty"`
	ClearDiscoveredFrom bool `json:"clear_discovered_from,omitempty"`
	ClearDuplicateOf    bool `json:"clear_duplicate_of,omitempty"`
}

func (p *TaskUpdatedPayload) eventType() Type { return TypeTaskUpdated }

func (p *TaskUpdatedPayload) validate() error {
	if p.Title != nil && *p.Title == "" {
		return tsqerr.New(tsqerr.CodeInvalidEvent, "task.updated title must not be empty")
	}
	pairs := []struct {
		set   bool
		clear bool
		name  string
	}{
		{p.Assignee != nil, p.ClearAssignee, "assignee"},
		{p.Description != nil, p.ClearDescription, "description"},
		{p.ExternalRef != nil, p.ClearExternalRef, "external_ref"},
		{p.DiscoveredFrom != nil, p.ClearDiscoveredFrom, "discovered_from"},
		{p.DuplicateOf != nil, p.ClearDuplicateOf, "duplicate_of"},
	}
	for _, pair := range pairs {
		if pair.set && pair.clear {
			return tsqerr.Newf(tsqerr.CodeInvalidEvent, "task.updated cannot set and clear %q in the same event", pair.name)
		}
	}
	return nil
}

// TaskStatusSetPayload is an explicit status transition.
type TaskStatusSetPayload struct {
	Status string `json:"status"`
}

func (p *TaskStatusSetPayload) eventType() Type { return TypeTaskStatusSet }

func (p *TaskStatusSetPayload) validate() error {
	if p.Status == "" {
		return tsqerr.New(tsqerr.CodeInvalidEvent, "task.status_set requires a status")
	}
	return nil
}

// TaskClaimedPayload assigns the task; assignee defaults to the event actor
// when empty.
type TaskClaimedPayload struct {
	Assignee string `json:"assignee,omitempty"`
}

func (p *TaskClaimedPayload) eventType() Type { return TypeTaskClaimed }
func (p *TaskClaimedPayload) validate() error { return nil }

// TaskNotedPayload appends an immutable note.
type TaskNotedPayload struct {
	Text string `json:"text"`
}

func (p *TaskNotedPayload) eventType() Type { return TypeTaskNoted }

func (p *TaskNotedPayload) validate() error {
	if p.Text == "" {
		return tsqerr.New(tsqerr.CodeInvalidEvent, "task.noted requires non-empty text")
	}
	return nil
}

// TaskSpecAttachedPayload records an attached markdown spec. Force
// overrides the SPEC_CONFLICT check on a fingerprint-mismatched re-attach
// (the service-level --force flag); only spec_path and spec_fingerprint
// are required.
type TaskSpecAttachedPayload struct {
	SpecPath        string `json:"spec_path"`
	SpecFingerprint string `json:"spec_fingerprint"`
	Force           bool   `json:"force,omitempty"`
}

func (p *TaskSpecAttachedPayload) eventType() Type { return TypeTaskSpecAttached }

func (p *TaskSpecAttachedPayload) validate() error {
	if p.SpecPath == "" {
		return tsqerr.New(tsqerr.CodeInvalidEvent, "task.spec_attached requires spec_path")
	}
	if p.SpecFingerprint == "" {
		return tsqerr.New(tsqerr.CodeInvalidEvent, "task.spec_attached requires spec_fingerprint")
	}
	return nil
}

// TaskSupersededPayload closes the source task and marks it superseded_by
// With.
type TaskSupersededPayload struct {
	With string `json:"with"`
}

func (p *TaskSupersededPayload) eventType() Type { return TypeTaskSuperseded }

func (p *TaskSupersededPayload) validate() error {
	if p.With == "" {
		return tsqerr.New(tsqerr.CodeInvalidEvent, "task.superseded requires \"with\"")
	}
	return nil
}

// DepAddedPayload adds a dependency edge. DepType defaults to "blocks" when
// absent. Historical journals carried a flat list of blocker IDs under a
// "blockers" key with no dep_type; that form decodes into Blockers and is
// projected as one "blocks" edge per entry. Appends always construct the
// typed single-blocker form, so Blockers never appears on newly written
// events.
type DepAddedPayload struct {
	Blocker string  `json:"blocker,omitempty"`
	DepType DepType `json:"dep_type,omitempty"`

	Blockers []string `json:"blockers,omitempty"`
}

func (p *DepAddedPayload) eventType() Type { return TypeDepAdded }

func (p *DepAddedPayload) validate() error {
	if len(p.Blockers) > 0 {
		if p.Blocker != "" {
			return tsqerr.New(tsqerr.CodeInvalidEvent, "dep.added cannot carry both blocker and blockers")
		}
		for _, b := range p.Blockers {
			if b == "" {
				return tsqerr.New(tsqerr.CodeInvalidEvent, "dep.added blockers entries must be non-empty")
			}
		}
		if p.DepType != "" && p.DepType != DepBlocks {
			return tsqerr.Newf(tsqerr.CodeInvalidEvent, "dep.added flat blocker list only supports %q edges, got %q", DepBlocks, p.DepType)
		}
		return nil
	}
	if p.Blocker == "" {
		return tsqerr.New(tsqerr.CodeInvalidEvent, "dep.added requires blocker")
	}
	if p.DepType != "" && p.DepType != DepBlocks && p.DepType != DepStartsAfter {
		return tsqerr.Newf(tsqerr.CodeInvalidEvent, "dep.added has unknown dep_type %q", p.DepType)
	}
	return nil
}

// DepRemovedPayload removes a matching dependency edge if present.
type DepRemovedPayload struct {
	Blocker string  `json:"blocker"`
	DepType DepType `json:"dep_type,omitempty"`
}

func (p *DepRemovedPayload) eventType() Type { return TypeDepRemoved }

func (p *DepRemovedPayload) validate() error {
	if p.Blocker == "" {
		return tsqerr.New(tsqerr.CodeInvalidEvent, "dep.removed requires blocker")
	}
	return nil
}

// LinkAddedPayload adds a directed relation edge.
type LinkAddedPayload struct {
	Type   LinkType `json:"type"`
	Target string   `json:"target"`
}

func (p *LinkAddedPayload) eventType() Type { return TypeLinkAdded }

func (p *LinkAddedPayload) validate() error {
	if p.Target == "" {
		return tsqerr.New(tsqerr.CodeInvalidEvent, "link.added requires target")
	}
	switch p.Type {
	case LinkRelatesTo, LinkRepliesTo, LinkDuplicates, LinkSupersedes:
	default:
		return tsqerr.Newf(tsqerr.CodeInvalidEvent, "link.added has unknown type %q", p.Type)
	}
	return nil
}

// LinkRemovedPayload removes a directed relation edge.
type LinkRemovedPayload struct {
	Type   LinkType `json:"type"`
	Target string   `json:"target"`
}

func (p *LinkRemovedPayload) eventType() Type { return TypeLinkRemoved }

func (p *LinkRemovedPayload) validate() error {
	if p.Target == "" {
		return tsqerr.New(tsqerr.CodeInvalidEvent, "link.removed requires target")
	}
	switch p.Type {
	case LinkRelatesTo, LinkRepliesTo, LinkDuplicates, LinkSupersedes:
	default:
		return tsqerr.Newf(tsqerr.CodeInvalidEvent, "link.removed has unknown type %q", p.Type)
	}
	return nil
}
