package main

import "github.com/spf13/cobra"

func newClaimCmd(opts *rootOptions) *cobra.Command {
	var assignee string
	cmd := &cobra.Command{
		Use:   "claim <task>",
		Short: "Claim a task; an open task moves to in_progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime(opts)
			if err != nil {
				return err
			}
			task, err := rt.svc.Claim(args[0], opts.ExactID, assignee)
			var data any
			if err == nil {
				data = task
			}
			finish(opts, "claim", data, func(any) { printTask(task) }, err)
			return nil
		},
	}
	cmd.Flags().StringVar(&assignee, "assignee", "", "Assignee (defaults to the actor)")
	return cmd
}
