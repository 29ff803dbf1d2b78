package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dabstractor/jin/internal/layer"
)

var layersCmd = &cobra.Command{
	Use:   "layers",
	Short: "List every layer ref currently present in the object store",
	Args:  cobra.NoArgs,
	RunE:  runLayers,
}

func runLayers(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}

	refs, err := layer.ListExisting(e.store)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, r := range refs {
		tip, ok, err := e.store.ReadRef(r.Path)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		fmt.Fprintf(out, "%-20s %s  %s\n", r.Kind, tip, r.Path)
	}
	return nil
}
