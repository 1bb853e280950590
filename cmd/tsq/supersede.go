package main

import "github.com/spf13/cobra"

func newSupersedeCmd(opts *rootOptions) *cobra.Command {
	var with string
	cmd := &cobra.Command{
		Use:   "supersede <task>",
		Short: "Close a task and mark it superseded by another",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime(opts)
			if err != nil {
				return err
			}
			task, err := rt.svc.Supersede(args[0], opts.ExactID, with, opts.ExactID)
			var data any
			if err == nil {
				data = task
			}
			finish(opts, "supersede", data, func(any) { printTask(task) }, err)
			return nil
		},
	}
	cmd.Flags().StringVar(&with, "with", "", "Task ID that supersedes this one (required)")
	_ = cmd.MarkFlagRequired("with")
	return cmd
}

func newMergeCmd(opts *rootOptions) *cobra.Command {
	var into string
	var force bool
	cmd := &cobra.Command{
		Use:   "merge <task>",
		Short: "Merge a task into another, carrying over its notes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime(opts)
			if err != nil {
				return err
			}
			task, err := rt.svc.Merge(args[0], opts.ExactID, into, opts.ExactID, force)
			var data any
			if err == nil {
				data = task
			}
			finish(opts, "merge", data, func(any) { printTask(task) }, err)
			return nil
		},
	}
	cmd.Flags().StringVar(&into, "into", "", "Task ID to merge into (required)")
	cmd.Flags().BoolVar(&force, "force", false, "Allow merging into an already-closed target")
	_ = cmd.MarkFlagRequired("into")
	return cmd
}
