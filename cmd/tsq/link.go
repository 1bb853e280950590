package main

import "github.com/spf13/cobra"

func newLinkCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "link",
		Short: "Manage relation edges between tasks",
	}
	cmd.AddCommand(newLinkAddCmd(opts), newLinkRemoveCmd(opts))
	return cmd
}

func newLinkAddCmd(opts *rootOptions) *cobra.Command {
	var linkType string
	cmd := &cobra.Command{
		Use:   "add <source> <target>",
		Short: "Add a relation edge from source to target",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime(opts)
			if err != nil {
				return err
			}
			lt, err := parseLinkType(linkType)
			if err != nil {
				finish(opts, "link.add", nil, nil, err)
				return nil
			}
			task, err := rt.svc.AddLink(args[0], opts.ExactID, lt, args[1], opts.ExactID)
			var data any
			if err == nil {
				data = task
			}
			finish(opts, "link.add", data, func(any) { printTask(task) }, err)
			return nil
		},
	}
	cmd.Flags().StringVar(&linkType, "type", "relates_to", "Link type: relates_to|replies_to|duplicates|supersedes")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func newLinkRemoveCmd(opts *rootOptions) *cobra.Command {
	var linkType string
	cmd := &cobra.Command{
		Use:   "remove <source> <target>",
		Short: "Remove a relation edge",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime(opts)
			if err != nil {
				return err
			}
			lt, err := parseLinkType(linkType)
			if err != nil {
				finish(opts, "link.remove", nil, nil, err)
				return nil
			}
			task, err := rt.svc.RemoveLink(args[0], opts.ExactID, lt, args[1], opts.ExactID)
			var data any
			if err == nil {
				data = task
			}
			finish(opts, "link.remove", data, func(any) { printTask(task) }, err)
			return nil
		},
	}
	cmd.Flags().StringVar(&linkType, "type", "relates_to", "Link type: relates_to|replies_to|duplicates|supersedes")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}
