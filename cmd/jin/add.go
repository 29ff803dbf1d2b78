package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dabstractor/jin/internal/layer"
	"github.com/dabstractor/jin/internal/staging"
	"github.com/dabstractor/jin/internal/workspace"
)

var addCmd = &cobra.Command{
	Use:   "add <path>...",
	Short: "Stage workspace files into a layer",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAdd,
}

func init() {
	addLayerFlags(addCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}

	k, err := layer.Resolve(layerFlags(cmd), e.ctx)
	if err != nil {
		return err
	}

	idx, err := staging.Load(e.cfg.JinDir)
	if err != nil {
		return err
	}

	var staged int
	for _, path := range args {
		rel, err := filepath.Rel(e.root, filepath.Join(e.root, path))
		if err != nil {
			return err
		}
		full := filepath.Join(e.root, rel)

		data, err := os.ReadFile(full)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		hash, err := e.store.WriteBlob(data)
		if err != nil {
			return err
		}
		origHash, err := workspace.HashFile(full)
		if err != nil {
			return err
		}

		if _, err := idx.Stage(k, rel, hash.String(), origHash); err != nil {
			return err
		}
		staged++
	}

	if err := idx.Save(e.cfg.JinDir); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Staged %d file(s) in %s layer\n", staged, k)
	return nil
}
