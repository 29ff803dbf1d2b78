package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dabstractor/jin/internal/config"
	"github.com/dabstractor/jin/internal/jinerr"
	"github.com/dabstractor/jin/internal/objstore"
	"github.com/dabstractor/jin/internal/project"
)

var initCmd = &cobra.Command{
	Use:   "init <project-name>",
	Short: "Initialize a new jin-managed project",
	Args:  cobra.ExactArgs(1),
	RunE:  runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	root, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("%w: getwd: %v", jinerr.ErrIO, err)
	}

	if _, err := os.Stat(filepath.Join(root, ".jin")); err == nil {
		return fmt.Errorf("%w: %s", jinerr.ErrAlreadyInitialized, root)
	}

	cfg, err := config.Load(root)
	if err != nil {
		return err
	}
	if _, err := objstore.Open(cfg.JinDir); err != nil {
		return err
	}
	if _, err := project.Init(root, args[0]); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Initialized jin project %q in %s\n", args[0], cfg.JinDir)
	return nil
}
