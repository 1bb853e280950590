package main

import (
	"fmt"

	"github.com/misty-step/tsq/internal/repair"
	"github.com/misty-step/tsq/internal/service"
	"github.com/spf13/cobra"
)

func newRepairCmd(opts *rootOptions) *cobra.Command {
	var fix, forceUnlock bool
	cmd := &cobra.Command{
		Use:   "repair",
		Short: "Plan, and optionally apply, reconciliation of state against files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := buildRuntime(opts)
			if err != nil {
				return err
			}
			loaded, err := rt.svc.Load()
			if err != nil {
				finish(opts, "repair", nil, nil, err)
				return nil
			}
			plan, err := repair.BuildPlan(rt.paths, loaded.State)
			if err != nil {
				finish(opts, "repair", nil, nil, err)
				return nil
			}

			result, err := repair.Apply(rt.paths, plan, repair.Options{
				Fix:         fix,
				ForceUnlock: forceUnlock,
				Actor:       service.ActorOrEnv(opts.Actor),
				Now:         rt.svc.Now,
				LockTimeout: rt.svc.LockTimeout,
			})

			type output struct {
				Plan   repair.Plan   `json:"plan"`
				Fixed  bool          `json:"fixed"`
				Result repair.Result `json:"result"`
			}
			out := output{Plan: plan, Fixed: fix, Result: result}
			finish(opts, "repair", out, func(any) {
				printRepairPlan(plan)
				if fix {
					fmt.Printf("removed %d dep edge(s), %d link edge(s), %d temp file(s), %d excess snapshot(s); skipped %d unfixable orphan(s)\n",
						result.RemovedDeps, result.RemovedLinks, len(result.RemovedTempFiles), len(result.RemovedSnapshots), result.SkippedOrphans)
				}
			}, err)
			return nil
		},
	}
	cmd.Flags().BoolVar(&fix, "fix", false, "Apply the reconciliation plan instead of only reporting it")
	cmd.Flags().BoolVar(&forceUnlock, "force-unlock", false, "Remove the lock file before re-acquiring (operator recovery)")
	return cmd
}

func printRepairPlan(plan repair.Plan) {
	if plan.Empty() {
		fmt.Println("(nothing to repair)")
		return
	}
	for _, d := range plan.OrphanDeps {
		fmt.Printf("orphan dep: %s -> %s (%s)\n", d.TaskID, d.Blocker, d.DepType)
	}
	for _, l := range plan.OrphanLinks {
		fmt.Printf("orphan link: %s -> %s (%s)\n", l.SourceID, l.Target, l.Type)
	}
	for _, f := range plan.StaleTempFiles {
		fmt.Printf("stale temp file: %s\n", f)
	}
	if plan.LockPresent {
		fmt.Println("lock file present")
	}
	for _, s := range plan.ExcessSnapshots {
		fmt.Printf("excess snapshot: %s\n", s)
	}
}
