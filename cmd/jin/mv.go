package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dabstractor/jin/internal/move"
	"github.com/dabstractor/jin/internal/staging"
)

var mvCmd = &cobra.Command{
	Use:   "mv <src> <dst>",
	Short: "Rename a staged path within its layer",
	Args:  cobra.ExactArgs(2),
	RunE:  runMv,
}

func init() {
	mvCmd.Flags().Bool("force", false, "also rename the workspace file")
	mvCmd.Flags().Bool("dry-run", false, "validate without renaming")
	addLayerFlags(mvCmd)
}

func runMv(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	force, _ := cmd.Flags().GetBool("force")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	target, err := resolveLayer(cmd, e)
	if err != nil {
		return err
	}

	var result move.Result
	err = e.withLock(func() error {
		idx, err := staging.Load(e.cfg.JinDir)
		if err != nil {
			return err
		}
		result = move.Move(idx, e.root, []move.Pair{{Layer: target, Src: args[0], Dst: args[1]}}, force, dryRun)
		if !dryRun {
			return idx.Save(e.cfg.JinDir)
		}
		return nil
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, r := range result.Moved {
		fmt.Fprintf(out, "Moved %s -> %s in %s layer\n", r.Pair.Src, r.Pair.Dst, r.Pair.Layer)
	}
	for _, r := range result.Failed {
		fmt.Fprintf(out, "failed: %v\n", r.Err)
	}
	if len(result.Failed) > 0 {
		return fmt.Errorf("mv failed for %d pair(s)", len(result.Failed))
	}
	return nil
}
