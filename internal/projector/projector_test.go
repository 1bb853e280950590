package projector

import (
	"testing"
	"time"

	"github.com/misty-step/tsq/internal/events"
)

func mustRecord(t *testing.T, id, taskID string, typ events.Type, payload events.Payload) events.Record {
	t.Helper()
	rec, err := events.New(id, time.Now().UTC(), "tester", typ, taskID, payload)
	if err != nil {
		t.Fatalf("events.New(%s) error = %v", typ, err)
	}
	return rec
}

func createTask(t *testing.T, state *State, id, title string) *State {
	t.Helper()
	rec := mustRecord(t, id+"-created", id, events.TypeTaskCreated, &events.TaskCreatedPayload{Title: title})
	next, err := Apply(state, rec)
	if err != nil {
		t.Fatalf("Apply(task.created) error = %v", err)
	}
	return next
}

func TestApplyTaskCreated(t *testing.T) {
	t.Parallel()
	state := Empty()
	state = createTask(t, state, "tsq-aaaaaaaa", "first task")

	task, ok := state.Tasks["tsq-aaaaaaaa"]
	if !ok {
		t.Fatalf("task not created")
	}
	if task.Status != "open" || task.Priority != 1 || task.Kind != "task" {
		t.Fatalf("unexpected defaults: %+v", task)
	}
	if state.AppliedEvents != 1 {
		t.Fatalf("AppliedEvents = %d, want 1", state.AppliedEvents)
	}
}

func TestApplyTaskCreatedDuplicateIDFails(t *testing.T) {
	t.Parallel()
	state := Empty()
	state = createTask(t, state, "tsq-aaaaaaaa", "first")

	rec := mustRecord(t, "dup", "tsq-aaaaaaaa", events.TypeTaskCreated, &events.TaskCreatedPayload{Title: "again"})
	if _, err := Apply(state, rec); err == nil {
		t.Fatalf("Apply() error = nil, want CodeTaskExists")
	}
}

func TestApplyDoesNotMutateInputState(t *testing.T) {
	t.Parallel()
	before := Empty()
	after := createTask(t, before, "tsq-aaaaaaaa", "first")

	if len(before.Tasks) != 0 {
		t.Fatalf("input state was mutated: %+v", before.Tasks)
	}
	if len(after.Tasks) != 1 {
		t.Fatalf("output state missing the new task")
	}
}

func TestApplyDepAddedRejectsCycle(t *testing.T) {
	t.Parallel()
	state := Empty()
	state = createTask(t, state, "tsq-aaaaaaaa", "a")
	state = createTask(t, state, "tsq-bbbbbbbb", "b")

	rec := mustRecord(t, "d1", "tsq-aaaaaaaa", events.TypeDepAdded, &events.DepAddedPayload{Blocker: "tsq-bbbbbbbb"})
	state, err := Apply(state, rec)
	if err != nil {
		t.Fatalf("Apply(dep.added) error = %v", err)
	}

	rec2 := mustRecord(t, "d2", "tsq-bbbbbbbb", events.TypeDepAdded, &events.DepAddedPayload{Blocker: "tsq-aaaaaaaa"})
	if _, err := Apply(state, rec2); err == nil {
		t.Fatalf("Apply() error = nil, want a dependency cycle rejection")
	}
}

func TestApplyDepAddedDefaultsToBlocks(t *testing.T) {
	t.Parallel()
	state := Empty()
	state = createTask(t, state, "tsq-aaaaaaaa", "a")
	state = createTask(t, state, "tsq-bbbbbbbb", "b")

	rec := mustRecord(t, "d1", "tsq-aaaaaaaa", events.TypeDepAdded, &events.DepAddedPayload{Blocker: "tsq-bbbbbbbb"})
	state, err := Apply(state, rec)
	if err != nil {
		t.Fatalf("Apply(dep.added) error = %v", err)
	}
	edges := state.Deps["tsq-aaaaaaaa"]
	if len(edges) != 1 || edges[0].DepType != events.DepBlocks {
		t.Fatalf("Deps = %+v, want a single blocks edge", edges)
	}
}

// A legacy flat blocker list expands to one "blocks" edge per entry.
func TestApplyDepAddedLegacyFlatListExpandsToBlocksEdges(t *testing.T) {
	t.Parallel()
	state := Empty()
	state = createTask(t, state, "tsq-aaaaaaaa", "a")
	state = createTask(t, state, "tsq-bbbbbbbb", "b")
	state = createTask(t, state, "tsq-cccccccc", "c")

	rec := mustRecord(t, "d1", "tsq-aaaaaaaa", events.TypeDepAdded, &events.DepAddedPayload{Blockers: []string{"tsq-bbbbbbbb", "tsq-cccccccc"}})
	state, err := Apply(state, rec)
	if err != nil {
		t.Fatalf("Apply(dep.added legacy) error = %v", err)
	}
	edges := state.Deps["tsq-aaaaaaaa"]
	if len(edges) != 2 {
		t.Fatalf("Deps = %+v, want two blocks edges", edges)
	}
	for _, e := range edges {
		if e.DepType != events.DepBlocks {
			t.Fatalf("edge %+v, want dep_type blocks", e)
		}
	}
}

// A legacy flat list containing a would-be cycle is rejected like any other
// blocks edge.
func TestApplyDepAddedLegacyFlatListRejectsCycle(t *testing.T) {
	t.Parallel()
	state := Empty()
	state = createTask(t, state, "tsq-aaaaaaaa", "a")
	state = createTask(t, state, "tsq-bbbbbbbb", "b")

	first := mustRecord(t, "d1", "tsq-aaaaaaaa", events.TypeDepAdded, &events.DepAddedPayload{Blocker: "tsq-bbbbbbbb"})
	state, err := Apply(state, first)
	if err != nil {
		t.Fatalf("Apply(dep.added) error = %v", err)
	}

	legacy := mustRecord(t, "d2", "tsq-bbbbbbbb", events.TypeDepAdded, &events.DepAddedPayload{Blockers: []string{"tsq-aaaaaaaa"}})
	if _, err := Apply(state, legacy); err == nil {
		t.Fatalf("Apply() error = nil, want a dependency cycle rejection")
	}
}

func TestApplyDepAddedSelfEdgeRejected(t *testing.T) {
	t.Parallel()
	state := Empty()
	state = createTask(t, state, "tsq-aaaaaaaa", "a")

	rec := mustRecord(t, "d1", "tsq-aaaaaaaa", events.TypeDepAdded, &events.DepAddedPayload{Blocker: "tsq-aaaaaaaa"})
	if _, err := Apply(state, rec); err == nil {
		t.Fatalf("Apply() error = nil, want self-edge rejection")
	}
}

func TestApplyLinkAddedMirrorsRelatesTo(t *testing.T) {
	t.Parallel()
	state := Empty()
	state = createTask(t, state, "tsq-aaaaaaaa", "a")
	state = createTask(t, state, "tsq-bbbbbbbb", "b")

	rec := mustRecord(t, "l1", "tsq-aaaaaaaa", events.TypeLinkAdded, &events.LinkAddedPayload{Type: events.LinkRelatesTo, Target: "tsq-bbbbbbbb"})
	state, err := Apply(state, rec)
	if err != nil {
		t.Fatalf("Apply(link.added) error = %v", err)
	}

	if got := state.Links["tsq-aaaaaaaa"][events.LinkRelatesTo]; len(got) != 1 || got[0] != "tsq-bbbbbbbb" {
		t.Fatalf("forward link missing: %+v", state.Links)
	}
	if got := state.Links["tsq-bbbbbbbb"][events.LinkRelatesTo]; len(got) != 1 || got[0] != "tsq-aaaaaaaa" {
		t.Fatalf("mirrored link missing: %+v", state.Links)
	}
}

func TestApplyLinkAddedRepliesToIsNotMirrored(t *testing.T) {
	t.Parallel()
	state := Empty()
	state = createTask(t, state, "tsq-aaaaaaaa", "a")
	state = createTask(t, state, "tsq-bbbbbbbb", "b")

	rec := mustRecord(t, "l1", "tsq-aaaaaaaa", events.TypeLinkAdded, &events.LinkAddedPayload{Type: events.LinkRepliesTo, Target: "tsq-bbbbbbbb"})
	state, err := Apply(state, rec)
	if err != nil {
		t.Fatalf("Apply(link.added) error = %v", err)
	}
	if got := state.Links["tsq-bbbbbbbb"][events.LinkRepliesTo]; len(got) != 0 {
		t.Fatalf("replies_to should not mirror, got %+v", got)
	}
}

func TestApplyLinkRemovedUnmirrors(t *testing.T) {
	t.Parallel()
	state := Empty()
	state = createTask(t, state, "tsq-aaaaaaaa", "a")
	state = createTask(t, state, "tsq-bbbbbbbb", "b")

	add := mustRecord(t, "l1", "tsq-aaaaaaaa", events.TypeLinkAdded, &events.LinkAddedPayload{Type: events.LinkRelatesTo, Target: "tsq-bbbbbbbb"})
	state, err := Apply(state, add)
	if err != nil {
		t.Fatalf("Apply(link.added) error = %v", err)
	}
	remove := mustRecord(t, "l2", "tsq-aaaaaaaa", events.TypeLinkRemoved, &events.LinkRemovedPayload{Type: events.LinkRelatesTo, Target: "tsq-bbbbbbbb"})
	state, err = Apply(state, remove)
	if err != nil {
		t.Fatalf("Apply(link.removed) error = %v", err)
	}
	if _, ok := state.Links["tsq-aaaaaaaa"]; ok {
		t.Fatalf("forward link not removed: %+v", state.Links)
	}
	if _, ok := state.Links["tsq-bbbbbbbb"]; ok {
		t.Fatalf("mirrored link not removed: %+v", state.Links)
	}
}

func TestApplyTaskUpdatedDuplicateOfRejectsSelf(t *testing.T) {
	t.Parallel()
	state := Empty()
	state = createTask(t, state, "tsq-aaaaaaaa", "a")

	self := "tsq-aaaaaaaa"
	rec := mustRecord(t, "u1", "tsq-aaaaaaaa", events.TypeTaskUpdated, &events.TaskUpdatedPayload{DuplicateOf: &self})
	if _, err := Apply(state, rec); err == nil {
		t.Fatalf("Apply() error = nil, want self duplicate_of rejection")
	}
}

func TestApplyTaskUpdatedDuplicateOfRejectsCycle(t *testing.T) {
	t.Parallel()
	state := Empty()
	state = createTask(t, state, "tsq-aaaaaaaa", "a")
	state = createTask(t, state, "tsq-bbbbbbbb", "b")

	bID := "tsq-bbbbbbbb"
	u1 := mustRecord(t, "u1", "tsq-aaaaaaaa", events.TypeTaskUpdated, &events.TaskUpdatedPayload{DuplicateOf: &bID})
	state, err := Apply(state, u1)
	if err != nil {
		t.Fatalf("Apply(task.updated) error = %v", err)
	}

	aID := "tsq-aaaaaaaa"
	u2 := mustRecord(t, "u2", "tsq-bbbbbbbb", events.TypeTaskUpdated, &events.TaskUpdatedPayload{DuplicateOf: &aID})
	if _, err := Apply(state, u2); err == nil {
		t.Fatalf("Apply() error = nil, want duplicate_of cycle rejection")
	}
}

func TestApplyTaskStatusSetForbidsReopeningTerminal(t *testing.T) {
	t.Parallel()
	state := Empty()
	state = createTask(t, state, "tsq-aaaaaaaa", "a")

	closeEvt := mustRecord(t, "s1", "tsq-aaaaaaaa", events.TypeTaskStatusSet, &events.TaskStatusSetPayload{Status: "closed"})
	state, err := Apply(state, closeEvt)
	if err != nil {
		t.Fatalf("Apply(task.status_set closed) error = %v", err)
	}

	reopen := mustRecord(t, "s2", "tsq-aaaaaaaa", events.TypeTaskStatusSet, &events.TaskStatusSetPayload{Status: "in_progress"})
	if _, err := Apply(state, reopen); err == nil {
		t.Fatalf("Apply() error = nil, want forbidden terminal->in_progress transition")
	}
}

func TestApplyTaskSpecAttachedConflictRequiresForce(t *testing.T) {
	t.Parallel()
	state := Empty()
	state = createTask(t, state, "tsq-aaaaaaaa", "a")

	first := mustRecord(t, "sp1", "tsq-aaaaaaaa", events.TypeTaskSpecAttached, &events.TaskSpecAttachedPayload{SpecPath: "p1", SpecFingerprint: "fp1"})
	state, err := Apply(state, first)
	if err != nil {
		t.Fatalf("Apply(task.spec_attached) error = %v", err)
	}

	conflict := mustRecord(t, "sp2", "tsq-aaaaaaaa", events.TypeTaskSpecAttached, &events.TaskSpecAttachedPayload{SpecPath: "p2", SpecFingerprint: "fp2"})
	if _, err := Apply(state, conflict); err == nil {
		t.Fatalf("Apply() error = nil, want spec fingerprint conflict")
	}

	forced := mustRecord(t, "sp3", "tsq-aaaaaaaa", events.TypeTaskSpecAttached, &events.TaskSpecAttachedPayload{SpecPath: "p2", SpecFingerprint: "fp2", Force: true})
	state, err = Apply(state, forced)
	if err != nil {
		t.Fatalf("Apply(task.spec_attached force) error = %v", err)
	}
	if state.Tasks["tsq-aaaaaaaa"].SpecFingerprint != "fp2" {
		t.Fatalf("force-reattach did not update fingerprint: %+v", state.Tasks["tsq-aaaaaaaa"])
	}
}

func TestApplyRejectsInvalidLabel(t *testing.T) {
	t.Parallel()
	state := Empty()
	rec := mustRecord(t, "c1", "tsq-aaaaaaaa", events.TypeTaskCreated, &events.TaskCreatedPayload{Title: "a", Labels: []string{"Not Valid!"}})
	if _, err := Apply(state, rec); err == nil {
		t.Fatalf("Apply() error = nil, want invalid label rejection")
	}
}

func TestApplyUnhandledTypeFails(t *testing.T) {
	t.Parallel()
	state := Empty()
	rec := events.Record{EventID: "x", TaskID: "tsq-aaaaaaaa", Type: events.Type("unknown.type"), Payload: nil}
	if _, err := Apply(state, rec); err == nil {
		t.Fatalf("Apply() error = nil, want unhandled event type rejection")
	}
}

func TestApplyEventsAppliesInOrder(t *testing.T) {
	t.Parallel()
	recs := []events.Record{
		mustRecord(t, "c1", "tsq-aaaaaaaa", events.TypeTaskCreated, &events.TaskCreatedPayload{Title: "a"}),
		mustRecord(t, "n1", "tsq-aaaaaaaa", events.TypeTaskNoted, &events.TaskNotedPayload{Text: "hello"}),
	}
	state, err := ApplyEvents(Empty(), recs)
	if err != nil {
		t.Fatalf("ApplyEvents() error = %v", err)
	}
	if state.AppliedEvents != 2 {
		t.Fatalf("AppliedEvents = %d, want 2", state.AppliedEvents)
	}
	if len(state.Tasks["tsq-aaaaaaaa"].Notes) != 1 {
		t.Fatalf("note not recorded: %+v", state.Tasks["tsq-aaaaaaaa"])
	}
}
