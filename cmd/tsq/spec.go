package main

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/misty-step/tsq/internal/service"
	"github.com/misty-step/tsq/internal/specfile"
	"github.com/misty-step/tsq/internal/tsqerr"
	"github.com/spf13/cobra"
)

// stdinTimeout bounds how long spec attach waits for piped spec content.
const stdinTimeout = 30 * time.Second

func newSpecCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spec",
		Short: "Manage attached task specs",
	}
	cmd.AddCommand(newSpecAttachCmd(opts))
	return cmd
}

func newSpecAttachCmd(opts *rootOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "attach <task> <spec.md path|->",
		Short: "Validate and attach a markdown spec to a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime(opts)
			if err != nil {
				return err
			}
			content, readErr := readSpecSource(args[1], cmd.InOrStdin())
			if readErr != nil {
				finish(opts, "spec.attach", nil, nil, readErr)
				return nil
			}
			if err := specfile.Validate(content); err != nil {
				finish(opts, "spec.attach", nil, nil, err)
				return nil
			}

			loaded, err := rt.svc.Load()
			if err != nil {
				finish(opts, "spec.attach", nil, nil, err)
				return nil
			}
			id, err := service.ResolveID(loaded.State, args[0], opts.ExactID)
			if err != nil {
				finish(opts, "spec.attach", nil, nil, err)
				return nil
			}

			destPath := rt.paths.TaskSpecFile(id)
			if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
				finish(opts, "spec.attach", nil, nil, tsqerr.Wrap(tsqerr.CodeIO, "create spec directory", err))
				return nil
			}
			if err := os.WriteFile(destPath, content, 0o644); err != nil {
				finish(opts, "spec.attach", nil, nil, tsqerr.Wrap(tsqerr.CodeIO, "write spec file", err))
				return nil
			}

			fingerprint := specfile.Fingerprint(content)
			task, err := rt.svc.AttachSpec(id, true, destPath, fingerprint, force)
			var data any
			if err == nil {
				data = task
			}
			finish(opts, "spec.attach", data, func(any) { printTask(task) }, err)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Override a fingerprint mismatch against the previously attached spec")
	return cmd
}

// readSpecSource loads the spec content either from a file or, when source
// is "-", from stdin bounded by stdinTimeout.
func readSpecSource(source string, stdin io.Reader) ([]byte, error) {
	if source != "-" {
		content, err := os.ReadFile(source)
		if err != nil {
			return nil, tsqerr.Wrap(tsqerr.CodeIO, "read spec file", err)
		}
		return content, nil
	}

	type readResult struct {
		content []byte
		err     error
	}
	done := make(chan readResult, 1)
	go func() {
		content, err := io.ReadAll(stdin)
		done <- readResult{content: content, err: err}
	}()
	select {
	case res := <-done:
		if res.err != nil {
			return nil, tsqerr.Wrap(tsqerr.CodeIO, "read spec from stdin", res.err)
		}
		return res.content, nil
	case <-time.After(stdinTimeout):
		return nil, tsqerr.New(tsqerr.CodeIO, "timed out waiting for spec content on stdin")
	}
}
