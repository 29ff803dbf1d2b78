package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dabstractor/jin/internal/staging"
)

var rmCmd = &cobra.Command{
	Use:   "rm <path>...",
	Short: "Stage a deletion, or drop a pending staged change",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRm,
}

func init() {
	rmCmd.Flags().Bool("cached", false, "leave the workspace file in place")
	rmCmd.Flags().Bool("unstage", false, "drop the pending staged entry instead of staging a deletion")
	addLayerFlags(rmCmd)
}

func runRm(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	cached, _ := cmd.Flags().GetBool("cached")
	unstage, _ := cmd.Flags().GetBool("unstage")

	k, err := resolveLayer(cmd, e)
	if err != nil {
		return err
	}

	idx, err := staging.Load(e.cfg.JinDir)
	if err != nil {
		return err
	}

	for _, path := range args {
		rel, err := filepath.Rel(e.root, filepath.Join(e.root, path))
		if err != nil {
			return err
		}

		if unstage {
			idx.Unstage(&k, rel)
			continue
		}

		// A tombstone entry: an empty blob hash marks the path for deletion
		// when its layer is next committed.
		if _, err := idx.Stage(k, rel, "", ""); err != nil {
			return err
		}

		if !cached {
			full := filepath.Join(e.root, rel)
			if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("remove %s: %w", path, err)
			}
		}
	}

	if err := idx.Save(e.cfg.JinDir); err != nil {
		return err
	}

	verb := "Staged deletion of"
	if unstage {
		verb = "Unstaged"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %d path(s) in %s layer\n", verb, len(args), k)
	return nil
}
