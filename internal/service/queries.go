package service

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/misty-step/tsq/internal/events"
	"github.com/misty-step/tsq/internal/journal"
	"github.com/misty-step/tsq/internal/projector"
	"github.com/misty-step/tsq/internal/tsqerr"
)

const defaultMaxDepth = 10

// maxDepthOrDefault returns depth if positive, else defaultMaxDepth.
func maxDepthOrDefault(depth int) int {
	if depth > 0 {
		return depth
	}
	return defaultMaxDepth
}

var staleStatuses = map[string]bool{"open": true, "in_progress": true, "blocked": true, "deferred": true}

// Ready lists tasks eligible to be worked on: open/in_progress with every
// "blocks" blocker terminal (closed or canceled). A non-empty labelPattern
// restricts the list per LabelMatches. Iteration follows created_order for
// determinism.
func (s *Service) Ready(state *projector.State, labelPattern string) []*projector.Task {
	var out []*projector.Task
	for _, id := range state.CreatedOrder {
		task := state.Tasks[id]
		if task == nil {
			continue
		}
		if task.Status != "open" && task.Status != "in_progress" {
			continue
		}
		if isBlocked(state, id) {
			continue
		}
		if labelPattern != "" && !LabelMatches(task.Labels, labelPattern) {
			continue
		}
		out = append(out, task)
	}
	return out
}

func isBlocked(state *projector.State, id string) bool {
	for _, edge := range state.Deps[id] {
		if edge.DepType != events.DepBlocks {
			continue
		}
		blocker := state.Tasks[edge.Blocker]
		if blocker == nil {
			continue
		}
		if blocker.Status != "closed" && blocker.Status != "canceled" {
			return true
		}
	}
	return false
}

// DepEdgeView is one entry in a walked dependency tree.
type DepEdgeView struct {
	TaskID  string
	DepType events.DepType
	Depth   int
}

// DepTree walks the dependency graph from id (child -> blocker edges),
// breadth-first, bounded by maxDepth and a visited set so a defensively
// traversed cycle (which cannot legitimately exist under the acyclicity
// invariant) cannot loop forever.
func DepTree(state *projector.State, id string, maxDepth int) []DepEdgeView {
	maxDepth = maxDepthOrDefault(maxDepth)
	visited := map[string]bool{id: true}
	var out []DepEdgeView
	type queued struct {
		id    string
		depth int
	}
	queue := []queued{{id: id, depth: 0}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= maxDepth {
			continue
		}
		for _, edge := range state.Deps[cur.id] {
			out = append(out, DepEdgeView{TaskID: edge.Blocker, DepType: edge.DepType, Depth: cur.depth + 1})
			if visited[edge.Blocker] {
				continue
			}
			visited[edge.Blocker] = true
			queue = append(queue, queued{id: edge.Blocker, depth: cur.depth + 1})
		}
	}
	return out
}

// History returns journal records naming id, either as task_id or as any
// string value appearing in payload, optionally bounded by [since, until].
func (s *Service) History(id string, since, until *time.Time) ([]events.Record, error) {
	recs, _, err := journal.Read(s.Paths.EventsFile())
	if err != nil {
		return nil, err
	}
	var out []events.Record
	for _, rec := range recs {
		if since != nil && rec.TS.Before(*since) {
			continue
		}
		if until != nil && rec.TS.After(*until) {
			continue
		}
		if rec.TaskID == id || payloadMentions(rec.Payload, id) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// payloadMentions reports whether id appears as a string value anywhere in
// payload, recursively, once marshaled to its generic JSON shape.
func payloadMentions(payload events.Payload, id string) bool {
	data, err := json.Marshal(payload)
	if err != nil {
		return false
	}
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return false
	}
	return containsString(generic, id)
}

func containsString(v any, target string) bool {
	switch x := v.(type) {
	case string:
		return x == target
	case []any:
		for _, e := range x {
			if containsString(e, target) {
				return true
			}
		}
	case map[string]any:
		for _, e := range x {
			if containsString(e, target) {
				return true
			}
		}
	}
	return false
}

// Stale lists tasks whose updated_at is at or before now - days*86400s,
// restricted to statusFilter if non-empty, else any of
// {open, in_progress, blocked, deferred}.
func (s *Service) Stale(state *projector.State, days int, statusFilter string, now time.Time) []*projector.Task {
	cutoff := now.Add(-time.Duration(days) * 24 * time.Hour)
	var out []*projector.Task
	for _, id := range state.CreatedOrder {
		task := state.Tasks[id]
		if task == nil {
			continue
		}
		if statusFilter != "" {
			if task.Status != statusFilter {
				continue
			}
		} else if !staleStatuses[task.Status] {
			continue
		}
		if !task.UpdatedAt.After(cutoff) {
			out = append(out, task)
		}
	}
	return out
}

// DuplicateChain walks id's duplicate_of pointers to their root, returning
// the chain starting with id itself. The invariant that this chain is
// acyclic is enforced by the projector; a defensive visited set still
// guards the walk here.
func DuplicateChain(state *projector.State, id string) ([]string, error) {
	if _, ok := state.Tasks[id]; !ok {
		return nil, tsqerr.Newf(tsqerr.CodeTaskNotFound, "task %q not found", id)
	}
	chain := []string{id}
	seen := map[string]bool{id: true}
	cur := id
	for {
		task := state.Tasks[cur]
		if task == nil || task.DuplicateOf == "" {
			return chain, nil
		}
		if seen[task.DuplicateOf] {
			return chain, nil
		}
		seen[task.DuplicateOf] = true
		chain = append(chain, task.DuplicateOf)
		cur = task.DuplicateOf
	}
}

// LabelMatches reports whether any of labels matches pattern, where a
// pattern ending in "*" matches every label that starts with the text
// before the star (so "area:*" matches "area:backend" and "area:frontend")
// and any other pattern requires an exact match.
func LabelMatches(labels []string, pattern string) bool {
	if strings.HasSuffix(pattern, "*") {
		prefix := strings.TrimSuffix(pattern, "*")
		for _, l := range labels {
			if strings.HasPrefix(l, prefix) {
				return true
			}
		}
		return false
	}
	for _, l := range labels {
		if l == pattern {
			return true
		}
	}
	return false
}

// Search returns tasks whose title or description contains query
// (case-insensitive) and, if labelPattern is non-empty, whose labels match
// it per LabelMatches.
func (s *Service) Search(state *projector.State, query, labelPattern string) []*projector.Task {
	q := strings.ToLower(query)
	var out []*projector.Task
	for _, id := range state.CreatedOrder {
		task := state.Tasks[id]
		if task == nil {
			continue
		}
		if q != "" {
			if !strings.Contains(strings.ToLower(task.Title), q) && !strings.Contains(strings.ToLower(task.Description), q) {
				continue
			}
		}
		if labelPattern != "" && !LabelMatches(task.Labels, labelPattern) {
			continue
		}
		out = append(out, task)
	}
	return out
}
