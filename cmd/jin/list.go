package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dabstractor/jin/internal/layer"
	"github.com/dabstractor/jin/internal/staging"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List staged entries grouped by layer",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func runList(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}

	idx, err := staging.Load(e.cfg.JinDir)
	if err != nil {
		return err
	}

	grouped := idx.ByLayer()
	if len(grouped) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "nothing staged")
		return nil
	}

	out := cmd.OutOrStdout()
	for _, k := range layer.PrecedenceAscending() {
		entries, ok := grouped[k]
		if !ok {
			continue
		}
		fmt.Fprintf(out, "%s:\n", k)
		for _, e := range entries {
			verb := "modify"
			if e.BlobHash == "" {
				verb = "delete"
			}
			fmt.Fprintf(out, "  %-6s %s\n", verb, e.Path)
		}
	}
	return nil
}
