package main

import "github.com/spf13/cobra"

func newInitCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize a .tasque repository in the target directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := buildRuntime(opts)
			if err != nil {
				return err
			}
			err = rt.svc.Init()
			finish(opts, "init", map[string]any{"root": rt.paths.Root()}, func(any) {
				cmd.Println("initialized", rt.paths.Root())
			}, err)
			return nil
		},
	}
}
