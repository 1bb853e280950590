package projector

import (
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/misty-step/tsq/internal/events"
)

// Model-checks the projector's graph invariants — "blocks" acyclicity and
// relates_to symmetry — against randomly generated add/remove sequences
// over a small fixed universe of tasks.

func taskIDOf(n int) string {
	return "tsq-rapid" + string(rune('a'+n))
}

// genOps produces a sequence of (taskA, taskB, addOrRemove) operations over a
// small fixed universe of task IDs, applied in order starting from a state
// where all tasks already exist.
func genOps(t *rapid.T, n int) []struct{ a, b int; add bool } {
	count := rapid.IntRange(1, 30).Draw(t, "opCount")
	ops := make([]struct {
		a, b int
		add  bool
	}, count)
	for i := range ops {
		ops[i].a = rapid.IntRange(0, n-1).Draw(t, "a")
		ops[i].b = rapid.IntRange(0, n-1).Draw(t, "b")
		ops[i].add = rapid.Bool().Draw(t, "add")
	}
	return ops
}

func TestRapidBlocksGraphNeverCyclic(t *testing.T) {
	const universe = 6
	rapid.Check(t, func(t *rapid.T) {
		state := Empty()
		for i := 0; i < universe; i++ {
			rec := mustRapidRecord(t, "create"+taskIDOf(i), taskIDOf(i), events.TypeTaskCreated, &events.TaskCreatedPayload{Title: taskIDOf(i)})
			next, err := Apply(state, rec)
			if err != nil {
				t.Fatalf("Apply(task.created) error = %v", err)
			}
			state = next
		}

		for _, op := range genOps(t, universe) {
			if op.a == op.b {
				continue
			}
			taskA, taskB := taskIDOf(op.a), taskIDOf(op.b)
			var rec events.Record
			var err error
			if op.add {
				rec, err = events.New("ev", time.Now().UTC(), "rapid", events.TypeDepAdded, taskA, &events.DepAddedPayload{Blocker: taskB})
			} else {
				rec, err = events.New("ev", time.Now().UTC(), "rapid", events.TypeDepRemoved, taskA, &events.DepRemovedPayload{Blocker: taskB})
			}
			if err != nil {
				t.Fatalf("events.New() error = %v", err)
			}

			next, applyErr := Apply(state, rec)
			if applyErr != nil {
				// A rejected add (e.g. would-be cycle) must leave the
				// existing graph acyclic and unchanged.
				assertAcyclic(t, state)
				continue
			}
			state = next
			assertAcyclic(t, state)
		}
	})
}

func TestRapidRelatesToAlwaysMirrored(t *testing.T) {
	const universe = 5
	rapid.Check(t, func(t *rapid.T) {
		state := Empty()
		for i := 0; i < universe; i++ {
			rec := mustRapidRecord(t, "create"+taskIDOf(i), taskIDOf(i), events.TypeTaskCreated, &events.TaskCreatedPayload{Title: taskIDOf(i)})
			next, err := Apply(state, rec)
			if err != nil {
				t.Fatalf("Apply(task.created) error = %v", err)
			}
			state = next
		}

		for _, op := range genOps(t, universe) {
			if op.a == op.b {
				continue
			}
			taskA, taskB := taskIDOf(op.a), taskIDOf(op.b)
			var rec events.Record
			var err error
			if op.add {
				rec, err = events.New("ev", time.Now().UTC(), "rapid", events.TypeLinkAdded, taskA, &events.LinkAddedPayload{Type: events.LinkRelatesTo, Target: taskB})
			} else {
				rec, err = events.New("ev", time.Now().UTC(), "rapid", events.TypeLinkRemoved, taskA, &events.LinkRemovedPayload{Type: events.LinkRelatesTo, Target: taskB})
			}
			if err != nil {
				t.Fatalf("events.New() error = %v", err)
			}
			next, applyErr := Apply(state, rec)
			if applyErr != nil {
				continue
			}
			state = next
			assertRelatesToMirrored(t, state)
		}
	})
}

func mustRapidRecord(t *rapid.T, id, taskID string, typ events.Type, payload events.Payload) events.Record {
	rec, err := events.New(id, time.Now().UTC(), "rapid", typ, taskID, payload)
	if err != nil {
		t.Fatalf("events.New() error = %v", err)
	}
	return rec
}

func assertAcyclic(t *rapid.T, state *State) {
	for id := range state.Tasks {
		if reachableFromSelf(state, id) {
			t.Fatalf("blocks graph has a cycle reachable from %s", id)
		}
	}
}

// reachableFromSelf reports whether id can reach itself by following one or
// more "blocks" edges.
func reachableFromSelf(state *State, id string) bool {
	visited := map[string]bool{}
	var stack []string
	for _, e := range state.Deps[id] {
		if e.DepType == events.DepBlocks {
			stack = append(stack, e.Blocker)
		}
	}
	for len(stack) > 0 {
		n := len(stack) - 1
		cur := stack[n]
		stack = stack[:n]
		if cur == id {
			return true
		}
		if visited[cur] {
			continue
		}
		visited[cur] = true
		for _, e := range state.Deps[cur] {
			if e.DepType == events.DepBlocks {
				stack = append(stack, e.Blocker)
			}
		}
	}
	return false
}

func assertRelatesToMirrored(t *rapid.T, state *State) {
	for source, byType := range state.Links {
		for _, target := range byType[events.LinkRelatesTo] {
			back := state.Links[target]
			if !containsStr(back[events.LinkRelatesTo], source) {
				t.Fatalf("relates_to not mirrored: %s -> %s has no reverse edge", source, target)
			}
		}
	}
}
