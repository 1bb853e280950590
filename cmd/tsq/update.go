package main

import (
	"github.com/misty-step/tsq/internal/projector"
	"github.com/misty-step/tsq/internal/service"
	"github.com/spf13/cobra"
)

func newUpdateCmd(opts *rootOptions) *cobra.Command {
	var (
		title               string
		kind                string
		priority            int
		assignee            string
		labels              []string
		description         string
		externalRef         string
		discoveredFrom      string
		duplicateOf         string
		status              string
		clearAssignee       bool
		clearDescription    bool
		clearExternalRef    bool
		clearDiscoveredFrom bool
		clearDuplicateOf    bool
	)

	cmd := &cobra.Command{
		Use:   "update <task>",
		Short: "Update task fields or transition its status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime(opts)
			if err != nil {
				return err
			}
			ref := args[0]
			flags := cmd.Flags()

			var task *projector.Task
			patch := service.UpdatePatch{
				Title:               strPtrIfSet(flags, "title", title),
				Kind:                strPtrIfSet(flags, "kind", kind),
				Priority:            intPtrIfSet(flags, "priority", priority),
				Assignee:            strPtrIfSet(flags, "assignee", assignee),
				Description:         strPtrIfSet(flags, "description", description),
				ExternalRef:         strPtrIfSet(flags, "external-ref", externalRef),
				DiscoveredFrom:      strPtrIfSet(flags, "discovered-from", discoveredFrom),
				DuplicateOf:         strPtrIfSet(flags, "duplicate-of", duplicateOf),
				ClearAssignee:       clearAssignee,
				ClearDescription:    clearDescription,
				ClearExternalRef:    clearExternalRef,
				ClearDiscoveredFrom: clearDiscoveredFrom,
				ClearDuplicateOf:    clearDuplicateOf,
			}
			if flags.Changed("label") {
				patch.Labels = labels
			}

			hasPatch := patch.Title != nil || patch.Kind != nil || patch.Priority != nil ||
				patch.Assignee != nil || patch.Labels != nil || patch.Description != nil ||
				patch.ExternalRef != nil || patch.DiscoveredFrom != nil || patch.DuplicateOf != nil ||
				patch.ClearAssignee || patch.ClearDescription || patch.ClearExternalRef ||
				patch.ClearDiscoveredFrom || patch.ClearDuplicateOf

			if hasPatch {
				task, err = rt.svc.Update(ref, opts.ExactID, patch)
				if err != nil {
					finish(opts, "update", nil, nil, err)
					return nil
				}
			}
			if status != "" {
				task, err = rt.svc.SetStatus(ref, opts.ExactID, status)
				if err != nil {
					finish(opts, "update", nil, nil, err)
					return nil
				}
			}
			if task == nil {
				loaded, loadErr := rt.svc.Load()
				if loadErr != nil {
					finish(opts, "update", nil, nil, loadErr)
					return nil
				}
				id, resolveErr := service.ResolveID(loaded.State, ref, opts.ExactID)
				if resolveErr != nil {
					finish(opts, "update", nil, nil, resolveErr)
					return nil
				}
				task = loaded.State.Tasks[id]
			}

			var data any
			if task != nil {
				data = task
			}
			finish(opts, "update", data, func(any) { printTask(task) }, err)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVar(&kind, "kind", "", "New kind: task|feature|epic")
	cmd.Flags().IntVar(&priority, "priority", 0, "New priority 0-3")
	cmd.Flags().StringVar(&assignee, "assignee", "", "New assignee")
	cmd.Flags().StringSliceVar(&labels, "label", nil, "Replace labels (repeatable)")
	cmd.Flags().StringVar(&description, "description", "", "New description")
	cmd.Flags().StringVar(&externalRef, "external-ref", "", "New external reference")
	cmd.Flags().StringVar(&discoveredFrom, "discovered-from", "", "Task ID this was discovered from")
	cmd.Flags().StringVar(&duplicateOf, "duplicate-of", "", "Task ID this duplicates")
	cmd.Flags().StringVar(&status, "status", "", "New status: open|in_progress|blocked|closed|canceled|deferred")
	cmd.Flags().BoolVar(&clearAssignee, "clear-assignee", false, "Clear assignee")
	cmd.Flags().BoolVar(&clearDescription, "clear-description", false, "Clear description")
	cmd.Flags().BoolVar(&clearExternalRef, "clear-external-ref", false, "Clear external reference")
	cmd.Flags().BoolVar(&clearDiscoveredFrom, "clear-discovered-from", false, "Clear discovered_from")
	cmd.Flags().BoolVar(&clearDuplicateOf, "clear-duplicate-of", false, "Clear duplicate_of")

	return cmd
}
