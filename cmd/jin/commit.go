package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dabstractor/jin/internal/commitengine"
	"github.com/dabstractor/jin/internal/staging"
)

var commitCmd = &cobra.Command{
	Use:   "commit <message>",
	Short: "Commit staged entries into their layers atomically",
	Args:  cobra.ExactArgs(1),
	RunE:  runCommit,
}

func init() {
	commitCmd.Flags().Bool("allow-empty", false, "allow a commit with nothing staged")
}

func runCommit(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	allowEmpty, _ := cmd.Flags().GetBool("allow-empty")

	var result commitengine.Result
	err = e.withLock(func() error {
		idx, err := staging.Load(e.cfg.JinDir)
		if err != nil {
			return err
		}
		result, err = commitengine.Commit(e.store, e.ctx, idx, e.cfg, args[0], allowEmpty)
		if err != nil {
			return err
		}
		return idx.Save(e.cfg.JinDir)
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Committed %d layer(s)\n", len(result.Layers))
	for _, l := range result.Layers {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s -> %s\n", l, result.Tips[l])
	}
	return nil
}
