package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dabstractor/jin/internal/apply"
	"github.com/dabstractor/jin/internal/jinerr"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Compose committed layers into the workspace",
	Args:  cobra.NoArgs,
	RunE:  runApply,
}

func init() {
	applyCmd.Flags().Bool("force", false, "skip the attachment guard")
	applyCmd.Flags().Bool("dry-run", false, "report planned actions without writing")
}

func runApply(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	force, _ := cmd.Flags().GetBool("force")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	var result apply.Result
	var applyErr error
	err = e.withLock(func() error {
		result, applyErr = apply.Apply(e.store, e.ctx, e.root, e.cfg.JinDir, apply.Options{Force: force, DryRun: dryRun})
		if applyErr != nil && !errors.Is(applyErr, jinerr.ErrApplyPaused) {
			return applyErr
		}
		return nil
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if dryRun {
		for _, a := range result.Actions {
			fmt.Fprintf(out, "%s: %s\n", a.Kind, a.Path)
		}
		return nil
	}

	fmt.Fprintf(out, "Applied %d, skipped %d, conflicts %d\n", len(result.Applied), len(result.Skipped), len(result.Conflicts))
	if errors.Is(applyErr, jinerr.ErrApplyPaused) {
		fmt.Fprintln(out, "Apply paused: run 'jin resolve <path>...' to finish")
		return nil
	}
	fmt.Fprintln(out, "Apply operation completed")
	return nil
}
