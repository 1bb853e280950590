package main

import "github.com/spf13/cobra"

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <task> <status>",
		Short: "Transition a task to a new status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime(opts)
			if err != nil {
				return err
			}
			task, err := rt.svc.SetStatus(args[0], opts.ExactID, args[1])
			var data any
			if err == nil {
				data = task
			}
			finish(opts, "status", data, func(any) { printTask(task) }, err)
			return nil
		},
	}
}
