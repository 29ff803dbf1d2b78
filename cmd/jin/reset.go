package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dabstractor/jin/internal/reset"
	"github.com/dabstractor/jin/internal/staging"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Unstage or unwind layer state",
	Args:  cobra.NoArgs,
	RunE:  runReset,
}

func init() {
	resetCmd.Flags().Bool("soft", false, "leave staging and workspace untouched")
	resetCmd.Flags().Bool("mixed", false, "clear staging, leave workspace untouched (default)")
	resetCmd.Flags().Bool("hard", false, "clear staging and reapply committed layers onto the workspace")
	resetCmd.Flags().Bool("force", false, "skip the attachment guard on --hard")
	addLayerFlags(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}

	soft, _ := cmd.Flags().GetBool("soft")
	hard, _ := cmd.Flags().GetBool("hard")
	force, _ := cmd.Flags().GetBool("force")

	mode := reset.Mixed
	switch {
	case soft:
		mode = reset.Soft
	case hard:
		mode = reset.Hard
	}

	var result reset.Result
	err = e.withLock(func() error {
		idx, err := staging.Load(e.cfg.JinDir)
		if err != nil {
			return err
		}
		result, err = reset.Reset(e.store, e.ctx, idx, e.root, e.cfg.JinDir, mode, layerFlags(cmd), force)
		if err != nil {
			return err
		}
		return idx.Save(e.cfg.JinDir)
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Reset %d layer(s)\n", len(result.ClearedLayers))
	return nil
}
