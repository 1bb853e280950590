package main

import "github.com/spf13/cobra"

func newStaleCmd(opts *rootOptions) *cobra.Command {
	var days int
	var status string
	cmd := &cobra.Command{
		Use:   "stale",
		Short: "List tasks not updated within the given number of days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := buildRuntime(opts)
			if err != nil {
				return err
			}
			loaded, err := rt.svc.Load()
			if err != nil {
				finish(opts, "stale", nil, nil, err)
				return nil
			}
			tasks := rt.svc.Stale(loaded.State, days, status, rt.svc.Now())
			finish(opts, "stale", tasks, func(any) { printTaskList(tasks) }, nil)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 14, "Staleness threshold in days")
	cmd.Flags().StringVar(&status, "status", "", "Restrict to a single status (default: open|in_progress|blocked|deferred)")
	return cmd
}
