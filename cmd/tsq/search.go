package main

import "github.com/spf13/cobra"

func newSearchCmd(opts *rootOptions) *cobra.Command {
	var label string
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Find tasks by title/description text and label",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime(opts)
			if err != nil {
				return err
			}
			loaded, err := rt.svc.Load()
			if err != nil {
				finish(opts, "search", nil, nil, err)
				return nil
			}
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			tasks := rt.svc.Search(loaded.State, query, label)
			finish(opts, "search", tasks, func(any) { printTaskList(tasks) }, nil)
			return nil
		},
	}
	cmd.Flags().StringVar(&label, "label", "", "Filter by label; a trailing * globs a namespace prefix (e.g. area:*)")
	return cmd
}
