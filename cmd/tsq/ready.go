package main

import "github.com/spf13/cobra"

func newReadyCmd(opts *rootOptions) *cobra.Command {
	var label string
	cmd := &cobra.Command{
		Use:   "ready",
		Short: "List tasks eligible to be worked on",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := buildRuntime(opts)
			if err != nil {
				return err
			}
			loaded, err := rt.svc.Load()
			if err != nil {
				finish(opts, "ready", nil, nil, err)
				return nil
			}
			tasks := rt.svc.Ready(loaded.State, label)
			finish(opts, "ready", tasks, func(any) { printTaskList(tasks) }, nil)
			return nil
		},
	}
	cmd.Flags().StringVar(&label, "label", "", "Filter by label; a trailing * globs a namespace prefix (e.g. area:*)")
	return cmd
}
