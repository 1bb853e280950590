package main

import (
	"fmt"
	"strings"

	"github.com/misty-step/tsq/internal/service"
	"github.com/spf13/cobra"
)

type showView struct {
	Task       any      `json:"task"`
	Deps       any      `json:"deps"`
	Links      any      `json:"links"`
	Duplicates []string `json:"duplicates,omitempty"`
}

func newShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <task>",
		Short: "Show a task's full detail: fields, notes, dependencies, links",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime(opts)
			if err != nil {
				return err
			}
			loaded, err := rt.svc.Load()
			if err != nil {
				finish(opts, "show", nil, nil, err)
				return nil
			}
			id, err := service.ResolveID(loaded.State, args[0], opts.ExactID)
			if err != nil {
				finish(opts, "show", nil, nil, err)
				return nil
			}
			task := loaded.State.Tasks[id]
			chain, err := service.DuplicateChain(loaded.State, id)
			if err != nil {
				finish(opts, "show", nil, nil, err)
				return nil
			}
			view := showView{
				Task:  task,
				Deps:  loaded.State.Deps[id],
				Links: loaded.State.Links[id],
			}
			if len(chain) > 1 {
				view.Duplicates = chain
			}
			finish(opts, "show", view, func(any) {
				printTask(task)
				for _, n := range task.Notes {
					fmt.Printf("  note[%s %s]: %s\n", n.Actor, n.TS.Format("2006-01-02T15:04:05Z"), n.Text)
				}
				for _, e := range loaded.State.Deps[id] {
					fmt.Printf("  dep(%s): %s\n", e.DepType, e.Blocker)
				}
				for linkType, targets := range loaded.State.Links[id] {
					for _, t := range targets {
						fmt.Printf("  link(%s): %s\n", linkType, t)
					}
				}
				if len(chain) > 1 {
					fmt.Printf("  duplicate chain: %s\n", strings.Join(chain, " -> "))
				}
			}, nil)
			return nil
		},
	}
}
