package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dabstractor/jin/internal/layer"
)

var scopeCmd = &cobra.Command{
	Use:   "scope",
	Short: "Manage the active scope",
}

var scopeUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Set the active scope",
	Args:  cobra.ExactArgs(1),
	RunE:  runScopeUse,
}

var scopeUnsetCmd = &cobra.Command{
	Use:   "unset",
	Short: "Clear the active scope",
	Args:  cobra.NoArgs,
	RunE:  runScopeUnset,
}

func init() {
	scopeCmd.AddCommand(scopeUseCmd, scopeUnsetCmd)
}

func runScopeUse(cmd *cobra.Command, args []string) error {
	if err := layer.ValidateScopeName(args[0]); err != nil {
		return err
	}
	e, err := openEnv()
	if err != nil {
		return err
	}
	if err := e.ctx.SetScope(e.root, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Active scope: %s\n", args[0])
	return nil
}

func runScopeUnset(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	if err := e.ctx.SetScope(e.root, ""); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Active scope cleared")
	return nil
}
