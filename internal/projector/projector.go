package projector

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/misty-step/tsq/internal/events"
	"github.com/misty-step/tsq/internal/tsqerr"
)

var labelPattern = regexp.MustCompile(`^[a-z0-9:_/-]{1,64}$`)

var validStatuses = map[string]bool{
	"open": true, "in_progress": true, "blocked": true,
	"closed": true, "canceled": true, "deferred": true,
}

// terminalStatus reports whether status is closed or canceled.
func terminalStatus(status string) bool {
	return status == "closed" || status == "canceled"
}

// Apply folds one event onto state, returning the next state. It never
// mutates the state argument.
func Apply(state *State, rec events.Record) (*State, error) {
	next := state.clone()
	var err error
	switch p := rec.Payload.(type) {
	case *events.TaskCreatedPayload:
		err = applyTaskCreated(next, rec, p)
	case *events.TaskUpdatedPayload:
		err = applyTaskUpdated(next, rec, p)
	case *events.TaskStatusSetPayload:
		err = applyTaskStatusSet(next, rec, p)
	case *events.TaskClaimedPayload:
		err = applyTaskClaimed(next, rec, p)
	case *events.TaskNotedPayload:
		err = applyTaskNoted(next, rec, p)
	case *events.TaskSpecAttachedPayload:
		err = applyTaskSpecAttached(next, rec, p)
	case *events.TaskSupersededPayload:
		err = applyTaskSuperseded(next, rec, p)
	case *events.DepAddedPayload:
		err = applyDepAdded(next, rec, p)
	case *events.DepRemovedPayload:
		err = applyDepRemoved(next, rec, p)
	case *events.LinkAddedPayload:
		err = applyLinkAdded(next, rec, p)
	case *events.LinkRemovedPayload:
		err = applyLinkRemoved(next, rec, p)
	default:
		err = tsqerr.Newf(tsqerr.CodeInvalidEventType, "projector: unhandled event type %q", rec.Type)
	}
	if err != nil {
		return nil, err
	}
	next.AppliedEvents++
	return next, nil
}

// ApplyEvents folds a sequence of events onto state in order.
func ApplyEvents(state *State, recs []events.Record) (*State, error) {
	cur := state
	for i, rec := range recs {
		n, err := Apply(cur, rec)
		if err != nil {
			return nil, fmt.Errorf("projector: event %d (%s): %w", i, rec.Type, err)
		}
		cur = n
	}
	return cur, nil
}

func mustExist(state *State, id, field string) error {
	if id == "" {
		return nil
	}
	if _, ok := state.Tasks[id]; !ok {
		return tsqerr.Newf(tsqerr.CodeTaskNotFound, "%s references nonexistent task %q", field, id)
	}
	return nil
}

func validateLabels(labels []string) error {
	for _, l := range labels {
		if !labelPattern.MatchString(l) {
			return tsqerr.Newf(tsqerr.CodeInvalidEvent, "label %q does not match [a-z0-9:_/-]{1,64}", l)
		}
	}
	return nil
}

func applyTaskCreated(state *State, rec events.Record, p *events.TaskCreatedPayload) error {
	if _, exists := state.Tasks[rec.TaskID]; exists {
		return tsqerr.Newf(tsqerr.CodeTaskExists, "task %q already exists", rec.TaskID)
	}
	if err := mustExist(state, p.ParentID, "parent_id"); err != nil {
		return err
	}
	if err := validateLabels(p.Labels); err != nil {
		return err
	}

	kind := p.Kind
	if kind == "" {
		kind = "task"
	}
	priority := 1
	if p.Priority != nil {
		priority = *p.Priority
	}
	labels := p.Labels
	if labels == nil {
		labels = []string{}
	}

	task := &Task{
		ID:          rec.TaskID,
		Kind:        kind,
		Title:       p.Title,
		Description: p.Description,
		Notes:       []Note{},
		Status:      "open",
		Priority:    priority,
		Assignee:    p.Assignee,
		ParentID:    p.ParentID,
		Labels:      labels,
		CreatedAt:   rec.TS,
		UpdatedAt:   rec.TS,
	}
	state.Tasks[rec.TaskID] = task
	state.CreatedOrder = append(state.CreatedOrder, rec.TaskID)

	if p.ParentID != "" {
		if n, ok := childSuffix(p.ParentID, rec.TaskID); ok && n > state.ChildCounters[p.ParentID] {
			state.ChildCounters[p.ParentID] = n
		}
	}
	return nil
}

// childSuffix reports whether childID has the form "<parentID>.<N>" for
// integer N, and if so returns N.
func childSuffix(parentID, childID string) (int, bool) {
	prefix := parentID + "."
	if !strings.HasPrefix(childID, prefix) {
		return 0, false
	}
	n, err := strconv.Atoi(childID[len(prefix):])
	if err != nil {
		return 0, false
	}
	return n, true
}

func applyTaskUpdated(state *State, rec events.Record, p *events.TaskUpdatedPayload) error {
	task, err := lookupTask(state, rec.TaskID)
	if err != nil {
		return err
	}
	if err := validateLabels(p.Labels); err != nil {
		return err
	}
	if p.DuplicateOf != nil {
		if *p.DuplicateOf == rec.TaskID {
			return tsqerr.Newf(tsqerr.CodeDuplicateCycle, "task %q cannot be its own duplicate_of", rec.TaskID)
		}
		if err := mustExist(state, *p.DuplicateOf, "duplicate_of"); err != nil {
			return err
		}
		if err := checkDuplicateChainAcyclic(state, rec.TaskID, *p.DuplicateOf); err != nil {
			return err
		}
	}

	task = task.clone()
	if p.Title != nil {
		task.Title = *p.Title
	}
	if p.Kind != nil {
		task.Kind = *p.Kind
	}
	if p.Priority != nil {
		task.Priority = *p.Priority
	}
	if p.Labels != nil {
		task.Labels = append([]string(nil), p.Labels...)
	}
	switch {
	case p.Assignee != nil:
		task.Assignee = *p.Assignee
	case p.ClearAssignee:
		task.Assignee = ""
	}
	switch {
	case p.Description != nil:
		task.Description = *p.Description
	case p.ClearDescription:
		task.Description = ""
	}
	switch {
	case p.ExternalRef != nil:
		task.ExternalRef = *p.ExternalRef
	case p.ClearExternalRef:
		task.ExternalRef = ""
	}
	switch {
	case p.DiscoveredFrom != nil:
		task.DiscoveredFrom = *p.DiscoveredFrom
	case p.ClearDiscoveredFrom:
		task.DiscoveredFrom = ""
	}
	switch {
	case p.DuplicateOf != nil:
		task.DuplicateOf = *p.DuplicateOf
	case p.ClearDuplicateOf:
		task.DuplicateOf = ""
	}
	task.UpdatedAt = rec.TS
	state.Tasks[rec.TaskID] = task
	return nil
}

// checkDuplicateChainAcyclic walks duplicate_of pointers starting from
// target as if from.DuplicateOf were already set to target, failing if the
// chain revisits from.
func checkDuplicateChainAcyclic(state *State, from, target string) error {
	seen := map[string]bool{from: true}
	cur := target
	for cur != "" {
		if seen[cur] {
			return tsqerr.Newf(tsqerr.CodeDuplicateCycle, "duplicate_of chain from %q is cyclic", from)
		}
		seen[cur] = true
		t, ok := state.Tasks[cur]
		if !ok {
			return nil
		}
		cur = t.DuplicateOf
	}
	return nil
}

func applyTaskStatusSet(state *State, rec events.Record, p *events.TaskStatusSetPayload) error {
	task, err := lookupTask(state, rec.TaskID)
	if err != nil {
		return err
	}
	if !validStatuses[p.Status] {
		return tsqerr.Newf(tsqerr.CodeInvalidStatus, "unknown status %q", p.Status)
	}
	if terminalStatus(task.Status) && p.Status == "in_progress" {
		return tsqerr.Newf(tsqerr.CodeInvalidTransition, "cannot move task %q from %q to in_progress", rec.TaskID, task.Status)
	}

	task = task.clone()
	task.Status = p.Status
	if p.Status == "closed" {
		ts := rec.TS
		task.ClosedAt = &ts
	} else {
		task.ClosedAt = nil
	}
	task.UpdatedAt = rec.TS
	state.Tasks[rec.TaskID] = task
	return nil
}

func applyTaskClaimed(state *State, rec events.Record, p *events.TaskClaimedPayload) error {
	task, err := lookupTask(state, rec.TaskID)
	if err != nil {
		return err
	}
	if terminalStatus(task.Status) {
		return tsqerr.Newf(tsqerr.CodeInvalidTransition, "cannot claim %q task %q", task.Status, rec.TaskID)
	}

	task = task.clone()
	assignee := p.Assignee
	if assignee == "" {
		assignee = rec.Actor
	}
	task.Assignee = assignee
	if task.Status == "open" {
		task.Status = "in_progress"
	}
	task.UpdatedAt = rec.TS
	state.Tasks[rec.TaskID] = task
	return nil
}

func applyTaskNoted(state *State, rec events.Record, p *events.TaskNotedPayload) error {
	task, err := lookupTask(state, rec.TaskID)
	if err != nil {
		return err
	}
	task = task.clone()
	task.Notes = append(task.Notes, Note{EventID: rec.EventID, TS: rec.TS, Actor: rec.Actor, Text: p.Text})
	task.UpdatedAt = rec.TS
	state.Tasks[rec.TaskID] = task
	return nil
}

func applyTaskSpecAttached(state *State, rec events.Record, p *events.TaskSpecAttachedPayload) error {
	task, err := lookupTask(state, rec.TaskID)
	if err != nil {
		return err
	}
	if task.SpecFingerprint != "" && task.SpecFingerprint != p.SpecFingerprint && !p.Force {
		return tsqerr.Newf(tsqerr.CodeSpecConflict, "task %q has a different spec fingerprint recorded; re-attach with force", rec.TaskID)
	}

	task = task.clone()
	task.SpecPath = p.SpecPath
	task.SpecFingerprint = p.SpecFingerprint
	ts := rec.TS
	task.SpecAttachedAt = &ts
	task.SpecAttachedBy = rec.Actor
	task.UpdatedAt = rec.TS
	state.Tasks[rec.TaskID] = task
	return nil
}

func applyTaskSuperseded(state *State, rec events.Record, p *events.TaskSupersededPayload) error {
	task, err := lookupTask(state, rec.TaskID)
	if err != nil {
		return err
	}
	if p.With == rec.TaskID {
		return tsqerr.Newf(tsqerr.CodeInvalidEvent, "task %q cannot supersede itself", rec.TaskID)
	}
	if err := mustExist(state, p.With, "with"); err != nil {
		return err
	}

	task = task.clone()
	task.SupersededBy = p.With
	task.Status = "closed"
	ts := rec.TS
	task.ClosedAt = &ts
	task.UpdatedAt = rec.TS
	state.Tasks[rec.TaskID] = task
	return nil
}

func applyDepAdded(state *State, rec events.Record, p *events.DepAddedPayload) error {
	if err := lookupExists(state, rec.TaskID); err != nil {
		return err
	}
	depType := p.DepType
	if depType == "" {
		depType = events.DepBlocks
	}
	// The legacy flat form carries several blocker IDs in one event; each
	// becomes its own "blocks" edge.
	blockers := p.Blockers
	if len(blockers) == 0 {
		blockers = []string{p.Blocker}
	}
	for _, blocker := range blockers {
		if err := addDepEdge(state, rec.TaskID, blocker, depType); err != nil {
			return err
		}
	}
	touchTask(state, rec.TaskID, rec.TS)
	return nil
}

// addDepEdge validates and inserts one dependency edge; a duplicate
// (blocker, depType) pair is silently ignored.
func addDepEdge(state *State, taskID, blocker string, depType events.DepType) error {
	if blocker == taskID {
		return tsqerr.Newf(tsqerr.CodeRelationSelfEdge, "task %q cannot depend on itself", taskID)
	}
	if err := mustExist(state, blocker, "blocker"); err != nil {
		return err
	}
	for _, e := range state.Deps[taskID] {
		if e.Blocker == blocker && e.DepType == depType {
			return nil
		}
	}
	if depType == events.DepBlocks {
		if reachableViaBlocks(state, blocker, taskID) {
			return tsqerr.Newf(tsqerr.CodeDependencyCycle, "adding blocker %q to %q would create a cycle", blocker, taskID)
		}
	}

	edges := append([]DependencyEdge(nil), state.Deps[taskID]...)
	edges = append(edges, DependencyEdge{Blocker: blocker, DepType: depType})
	state.Deps[taskID] = edges
	return nil
}

// reachableViaBlocks reports whether target is reachable from start by
// following "blocks" dependency edges (start depends on its blockers,
// transitively). Used to detect that adding rec.TaskID -> blocker would
// close a cycle, i.e. blocker already (transitively) depends on rec.TaskID.
func reachableViaBlocks(state *State, start, target string) bool {
	visited := map[string]bool{}
	stack := []string{start}
	for len(stack) > 0 {
		n := len(stack) - 1
		cur := stack[n]
		stack = stack[:n]
		if cur == target {
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

func applyDepRemoved(state *State, rec events.Record, p *events.DepRemovedPayload) error {
	if err := lookupExists(state, rec.TaskID); err != nil {
		return err
	}
	depType := p.DepType
	if depType == "" {
		depType = events.DepBlocks
	}
	edges := state.Deps[rec.TaskID]
	out := make([]DependencyEdge, 0, len(edges))
	for _, e := range edges {
		if e.Blocker == p.Blocker && e.DepType == depType {
			continue
		}
		out = append(out, e)
	}
	if len(out) > 0 {
		state.Deps[rec.TaskID] = out
	} else {
		delete(state.Deps, rec.TaskID)
	}
	touchTask(state, rec.TaskID, rec.TS)
	return nil
}

func applyLinkAdded(state *State, rec events.Record, p *events.LinkAddedPayload) error {
	if err := lookupExists(state, rec.TaskID); err != nil {
		return err
	}
	if p.Target == rec.TaskID {
		return tsqerr.Newf(tsqerr.CodeRelationSelfEdge, "task %q cannot link to itself", rec.TaskID)
	}
	if err := mustExist(state, p.Target, "target"); err != nil {
		return err
	}

	addLinkEdge(state, rec.TaskID, p.Type, p.Target)
	if p.Type == events.LinkRelatesTo {
		addLinkEdge(state, p.Target, events.LinkRelatesTo, rec.TaskID)
	}
	touchTask(state, rec.TaskID, rec.TS)
	return nil
}

func applyLinkRemoved(state *State, rec events.Record, p *events.LinkRemovedPayload) error {
	if err := lookupExists(state, rec.TaskID); err != nil {
		return err
	}
	removeLinkEdge(state, rec.TaskID, p.Type, p.Target)
	if p.Type == events.LinkRelatesTo {
		removeLinkEdge(state, p.Target, events.LinkRelatesTo, rec.TaskID)
	}
	touchTask(state, rec.TaskID, rec.TS)
	return nil
}

func addLinkEdge(state *State, source string, t events.LinkType, target string) {
	byType := state.Links[source]
	byType = cloneLinksByType(byType)
	if containsStr(byType[t], target) {
		state.Links[source] = byType
		return
	}
	byType[t] = append(byType[t], target)
	state.Links[source] = byType
}

func removeLinkEdge(state *State, source string, t events.LinkType, target string) {
	byType, ok := state.Links[source]
	if !ok {
		return
	}
	byType = cloneLinksByType(byType)
	byType[t] = removeStr(byType[t], target)
	if len(byType[t]) == 0 {
		delete(byType, t)
	}
	if len(byType) == 0 {
		delete(state.Links, source)
		return
	}
	state.Links[source] = byType
}

func touchTask(state *State, id string, ts time.Time) {
	task := lookupTaskUnsafe(state, id)
	if task == nil {
		return
	}
	task = task.clone()
	task.UpdatedAt = ts
	state.Tasks[id] = task
}

func lookupTask(state *State, id string) (*Task, error) {
	t, ok := state.Tasks[id]
	if !ok {
		return nil, tsqerr.Newf(tsqerr.CodeTaskNotFound, "task %q not found", id)
	}
	return t, nil
}

func lookupTaskUnsafe(state *State, id string) *Task {
	return state.Tasks[id]
}

func lookupExists(state *State, id string) error {
	_, err := lookupTask(state, id)
	return err
}
