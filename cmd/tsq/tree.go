package main

import (
	"fmt"

	"github.com/misty-step/tsq/internal/service"
	"github.com/spf13/cobra"
)

func newTreeCmd(opts *rootOptions) *cobra.Command {
	var depth int
	cmd := &cobra.Command{
		Use:   "tree <task>",
		Short: "Walk a task's dependency tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime(opts)
			if err != nil {
				return err
			}
			loaded, err := rt.svc.Load()
			if err != nil {
				finish(opts, "tree", nil, nil, err)
				return nil
			}
			id, err := service.ResolveID(loaded.State, args[0], opts.ExactID)
			if err != nil {
				finish(opts, "tree", nil, nil, err)
				return nil
			}
			edges := service.DepTree(loaded.State, id, depth)
			finish(opts, "tree", edges, func(any) {
				for _, e := range edges {
					fmt.Printf("%*s%s (%s)\n", e.Depth*2, "", e.TaskID, e.DepType)
				}
				if len(edges) == 0 {
					fmt.Println("(no dependencies)")
				}
			}, nil)
			return nil
		},
	}
	cmd.Flags().IntVar(&depth, "depth", 10, "Maximum traversal depth")
	return cmd
}
