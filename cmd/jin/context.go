package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Show the active project context",
	Args:  cobra.NoArgs,
	RunE:  runContext,
}

func runContext(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}

	mode := "(none)"
	if e.ctx.ActiveMode != nil {
		mode = *e.ctx.ActiveMode
	}
	scope := "(none)"
	if e.ctx.ActiveScope != nil {
		scope = *e.ctx.ActiveScope
	}

	fmt.Fprintf(cmd.OutOrStdout(), "project: %s\nmode:    %s\nscope:   %s\n", e.ctx.ActiveProject, mode, scope)
	return nil
}
