package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dabstractor/jin/internal/layer"
)

var modeCmd = &cobra.Command{
	Use:   "mode",
	Short: "Manage the active mode",
}

var modeUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Set the active mode",
	Args:  cobra.ExactArgs(1),
	RunE:  runModeUse,
}

var modeUnsetCmd = &cobra.Command{
	Use:   "unset",
	Short: "Clear the active mode",
	Args:  cobra.NoArgs,
	RunE:  runModeUnset,
}

func init() {
	modeCmd.AddCommand(modeUseCmd, modeUnsetCmd)
}

func runModeUse(cmd *cobra.Command, args []string) error {
	if err := layer.ValidateModeName(args[0]); err != nil {
		return err
	}
	e, err := openEnv()
	if err != nil {
		return err
	}
	if err := e.ctx.SetMode(e.root, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Active mode: %s\n", args[0])
	return nil
}

func runModeUnset(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	if err := e.ctx.SetMode(e.root, ""); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Active mode cleared")
	return nil
}
