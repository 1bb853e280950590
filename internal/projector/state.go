// Package projector implements the pure event-to-state fold at the heart of
// tsq: apply(state, event) -> state'. It performs no I/O and reads no clock
// or randomness, so the same journal always yields the same state.
package projector

import (
	"time"

	"github.com/misty-step/tsq/internal/events"
)

// Note is an immutable, append-only annotation on a task.
type Note struct {
	EventID string    `json:"event_id"`
	TS      time.Time `json:"ts"`
	Actor   string    `json:"actor"`
	Text    string    `json:"text"`
}

// Task is the primary tracked entity.
type Task struct {
	ID              string     `json:"id"`
	Kind            string     `json:"kind"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	Notes           []Note     `json:"notes"`
	Status          string     `json:"status"`
	Priority        int        `json:"priority"`
	Assignee        string     `json:"assignee,omitempty"`
	ParentID        string     `json:"parent_id,omitempty"`
	Labels          []string   `json:"labels"`
	ExternalRef     string     `json:"external_ref,omitempty"`
	DiscoveredFrom  string     `json:"discovered_from,omitempty"`
	SupersededBy    string     `json:"superseded_by,omitempty"`
	DuplicateOf     string     `json:"duplicate_of,omitempty"`
	RepliesTo       string     `json:"replies_to,omitempty"`
	SpecPath        string     `json:"spec_path,omitempty"`
	SpecFingerprint string     `json:"spec_fingerprint,omitempty"`
	SpecAttachedAt  *time.Time `json:"spec_attached_at,omitempty"`
	SpecAttachedBy  string     `json:"spec_attached_by,omitempty"`
	PlanningState   string     `json:"planning_state,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	ClosedAt        *time.Time `json:"closed_at,omitempty"`
}

func (t *Task) clone() *Task {
	if t == nil {
		return nil
	}
	cp := *t
	cp.Notes = append([]Note(nil), t.Notes...)
	cp.Labels = append([]string(nil), t.Labels...)
	if t.SpecAttachedAt != nil {
		ts := *t.SpecAttachedAt
		cp.SpecAttachedAt = &ts
	}
	if t.ClosedAt != nil {
		ts := *t.ClosedAt
		cp.ClosedAt = &ts
	}
	return &cp
}

// DependencyEdge is one outgoing dependency from a task.
type DependencyEdge struct {
	Blocker string         `json:"blocker"`
	DepType events.DepType `json:"dep_type"`
}

// State is the fully derived model, always reconstructable by folding the
// journal from empty.
type State struct {
	Tasks         map[string]*Task                        `json:"tasks"`
	Deps          map[string][]DependencyEdge             `json:"deps"`
	Links         map[string]map[events.LinkType][]string `json:"links"`
	ChildCounters map[string]int                          `json:"child_counters"`
	CreatedOrder  []string                                `json:"created_order"`
	AppliedEvents int                                     `json:"applied_events"`
}

// Empty returns a freshly initialized, empty State.
func Empty() *State {
	return &State{
		Tasks:         make(map[string]*Task),
		Deps:          make(map[string][]DependencyEdge),
		Links:         make(map[string]map[events.LinkType][]string),
		ChildCounters: make(map[string]int),
		CreatedOrder:  nil,
		AppliedEvents: 0,
	}
}

// clone performs a shallow top-level copy so Apply never mutates the State
// passed to it; only the entries actually touched by the event being
// applied are deep-copied.
func (s *State) clone() *State {
	next := &State{
		Tasks:         make(map[string]*Task, len(s.Tasks)),
		Deps:          make(map[string][]DependencyEdge, len(s.Deps)),
		Links:         make(map[string]map[events.LinkType][]string, len(s.Links)),
		ChildCounters: make(map[string]int, len(s.ChildCounters)),
		CreatedOrder:  append([]string(nil), s.CreatedOrder...),
		AppliedEvents: s.AppliedEvents,
	}
	for id, t := range s.Tasks {
		next.Tasks[id] = t
	}
	for id, edges := range s.Deps {
		next.Deps[id] = edges
	}
	for id, byType := range s.Links {
		next.Links[id] = byType
	}
	for id, n := range s.ChildCounters {
		next.ChildCounters[id] = n
	}
	return next
}

func cloneLinksByType(byType map[events.LinkType][]string) map[events.LinkType][]string {
	next := make(map[events.LinkType][]string, len(byType))
	for t, targets := range byType {
		next[t] = append([]string(nil), targets...)
	}
	return next
}

func containsStr(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func removeStr(list []string, v string) []string {
	out := make([]string, 0, len(list))
	for _, x := range list {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}
