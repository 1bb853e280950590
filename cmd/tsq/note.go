package main

import (
	"strings"

	"github.com/spf13/cobra"
)

func newNoteCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "note <task> <text...>",
		Short: "Append an immutable note to a task",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime(opts)
			if err != nil {
				return err
			}
			text := strings.Join(args[1:], " ")
			task, err := rt.svc.Note(args[0], opts.ExactID, text)
			var data any
			if err == nil {
				data = task
			}
			finish(opts, "note", data, func(any) { printTask(task) }, err)
			return nil
		},
	}
	return cmd
}
