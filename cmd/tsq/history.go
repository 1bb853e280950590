package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var since, until string
	cmd := &cobra.Command{
		Use:   "history <task>",
		Short: "List journal events mentioning a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime(opts)
			if err != nil {
				return err
			}
			sinceT, err := parseTimeFlag(since)
			if err != nil {
				finish(opts, "history", nil, nil, err)
				return nil
			}
			untilT, err := parseTimeFlag(until)
			if err != nil {
				finish(opts, "history", nil, nil, err)
				return nil
			}
			recs, err := rt.svc.History(args[0], sinceT, untilT)
			finish(opts, "history", recs, func(any) {
				for _, r := range recs {
					fmt.Printf("%s  %s  %s  %s\n", r.TS.Format("2006-01-02T15:04:05Z"), r.Actor, r.Type, r.TaskID)
				}
				if len(recs) == 0 {
					fmt.Println("(no matching events)")
				}
			}, err)
			return nil
		},
	}
	cmd.Flags().StringVar(&since, "since", "", "Only events at or after this RFC3339 timestamp")
	cmd.Flags().StringVar(&until, "until", "", "Only events at or before this RFC3339 timestamp")
	return cmd
}
