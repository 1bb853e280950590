package main

import (
	"strings"

	"github.com/misty-step/tsq/internal/service"
	"github.com/spf13/cobra"
)

func newCreateCmd(opts *rootOptions) *cobra.Command {
	var (
		kind        string
		parent      string
		priority    int
		labels      []string
		description string
		assignee    string
	)

	cmd := &cobra.Command{
		Use:   "create <title>",
		Short: "Create a new task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime(opts)
			if err != nil {
				return err
			}

			createOpts := service.CreateOptions{
				ParentID:    parent,
				ExactParent: opts.ExactID,
				Labels:      labels,
				Description: description,
				Assignee:    assignee,
			}
			if cmd.Flags().Changed("priority") {
				p := priority
				createOpts.Priority = &p
			}

			var task any
			t, err := rt.svc.Create(kind, strings.TrimSpace(args[0]), createOpts)
			if err == nil {
				task = t
			}
			finish(opts, "create", task, func(any) { printTask(t) }, err)
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "task", "Task kind: task|feature|epic")
	cmd.Flags().StringVar(&parent, "parent", "", "Parent task ID or prefix")
	cmd.Flags().IntVarP(&priority, "priority", "p", 1, "Priority 0-3")
	cmd.Flags().StringSliceVar(&labels, "label", nil, "Label (repeatable)")
	cmd.Flags().StringVar(&description, "description", "", "Task description")
	cmd.Flags().StringVar(&assignee, "assignee", "", "Initial assignee")

	return cmd
}
