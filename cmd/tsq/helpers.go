package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/misty-step/tsq/internal/events"
	"github.com/misty-step/tsq/internal/projector"
	"github.com/misty-step/tsq/internal/tsqerr"
)

// strPtrIfSet returns a pointer to val, or nil if the flag was never set.
func strPtrIfSet(cmd cobraFlagSet, name string, val string) *string {
	if !cmd.Changed(name) {
		return nil
	}
	return &val
}

// cobraFlagSet is the subset of *pflag.FlagSet (via cobra.Command.Flags())
// used by strPtrIfSet, kept narrow so it is trivially fakeable in tests.
type cobraFlagSet interface {
	Changed(name string) bool
}

func intPtrIfSet(cmd cobraFlagSet, name string, val int) *int {
	if !cmd.Changed(name) {
		return nil
	}
	return &val
}

func parseDepType(raw string) (events.DepType, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "blocks":
		return events.DepBlocks, nil
	case "starts_after":
		return events.DepStartsAfter, nil
	default:
		return "", tsqerr.Newf(tsqerr.CodeInvalidEvent, "unknown dep type %q", raw)
	}
}

func parseLinkType(raw string) (events.LinkType, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "relates_to":
		return events.LinkRelatesTo, nil
	case "replies_to":
		return events.LinkRepliesTo, nil
	case "duplicates":
		return events.LinkDuplicates, nil
	case "supersedes":
		return events.LinkSupersedes, nil
	default:
		return "", tsqerr.Newf(tsqerr.CodeInvalidEvent, "unknown link type %q", raw)
	}
}

// parseTimeFlag parses an RFC3339 timestamp flag; an empty string yields a
// nil bound (no restriction).
func parseTimeFlag(raw string) (*time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, tsqerr.Newf(tsqerr.CodeValidation, "invalid timestamp %q: %v", raw, err)
	}
	return &t, nil
}

func printTask(task *projector.Task) {
	if task == nil {
		fmt.Println("(no task)")
		return
	}
	fmt.Printf("%s  [%s/%s]  p%d  %s\n", task.ID, task.Kind, task.Status, task.Priority, task.Title)
	if task.Assignee != "" {
		fmt.Printf("  assignee: %s\n", task.Assignee)
	}
	if task.ParentID != "" {
		fmt.Printf("  parent: %s\n", task.ParentID)
	}
	if len(task.Labels) > 0 {
		fmt.Printf("  labels: %s\n", strings.Join(task.Labels, ", "))
	}
	if task.Description != "" {
		fmt.Printf("  description: %s\n", task.Description)
	}
	if task.SupersededBy != "" {
		fmt.Printf("  superseded_by: %s\n", task.SupersededBy)
	}
	if task.DuplicateOf != "" {
		fmt.Printf("  duplicate_of: %s\n", task.DuplicateOf)
	}
	if task.SpecPath != "" {
		fmt.Printf("  spec: %s (%s)\n", task.SpecPath, task.SpecFingerprint)
	}
	fmt.Printf("  created: %s  updated: %s\n", task.CreatedAt.Format(time.RFC3339), task.UpdatedAt.Format(time.RFC3339))
	if task.ClosedAt != nil {
		fmt.Printf("  closed: %s\n", task.ClosedAt.Format(time.RFC3339))
	}
}

func printTaskList(tasks []*projector.Task) {
	for _, t := range tasks {
		fmt.Printf("%s  [%s/%s]  p%d  %s\n", t.ID, t.Kind, t.Status, t.Priority, t.Title)
	}
	if len(tasks) == 0 {
		fmt.Println("(none)")
	}
}
