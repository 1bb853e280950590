package main

import "github.com/spf13/cobra"

func newDepCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dep",
		Short: "Manage dependency edges between tasks",
	}
	cmd.AddCommand(newDepAddCmd(opts), newDepRemoveCmd(opts))
	return cmd
}

func newDepAddCmd(opts *rootOptions) *cobra.Command {
	var depType string
	cmd := &cobra.Command{
		Use:   "add <task> <blocker>",
		Short: "Add a dependency: task depends on (is blocked by) blocker",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime(opts)
			if err != nil {
				return err
			}
			dt, err := parseDepType(depType)
			if err != nil {
				finish(opts, "dep.add", nil, nil, err)
				return nil
			}
			task, err := rt.svc.AddDep(args[0], opts.ExactID, args[1], opts.ExactID, dt)
			var data any
			if err == nil {
				data = task
			}
			finish(opts, "dep.add", data, func(any) { printTask(task) }, err)
			return nil
		},
	}
	cmd.Flags().StringVar(&depType, "type", "blocks", "Dependency type: blocks|starts_after")
	return cmd
}

func newDepRemoveCmd(opts *rootOptions) *cobra.Command {
	var depType string
	cmd := &cobra.Command{
		Use:   "remove <task> <blocker>",
		Short: "Remove a dependency edge if present",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime(opts)
			if err != nil {
				return err
			}
			dt, err := parseDepType(depType)
			if err != nil {
				finish(opts, "dep.remove", nil, nil, err)
				return nil
			}
			task, err := rt.svc.RemoveDep(args[0], opts.ExactID, args[1], opts.ExactID, dt)
			var data any
			if err == nil {
				data = task
			}
			finish(opts, "dep.remove", data, func(any) { printTask(task) }, err)
			return nil
		},
	}
	cmd.Flags().StringVar(&depType, "type", "blocks", "Dependency type: blocks|starts_after")
	return cmd
}
