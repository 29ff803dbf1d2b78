package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dabstractor/jin/internal/repair"
)

var repairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Validate and fix control-directory invariants",
	Args:  cobra.NoArgs,
	RunE:  runRepair,
}

func init() {
	repairCmd.Flags().Bool("check", false, "only check workspace attachment, report nothing else")
	repairCmd.Flags().Bool("dry-run", false, "report findings without fixing them")
}

func runRepair(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	checkOnly, _ := cmd.Flags().GetBool("check")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	var report repair.Report
	err = e.withLock(func() error {
		report, err = repair.Run(e.store, e.ctx, e.root, e.cfg.JinDir, repair.Options{CheckOnly: checkOnly, DryRun: dryRun})
		return err
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	failed := 0
	for _, c := range report.Checks {
		status := "ok"
		if !c.OK {
			status = "fail"
			if !c.Fixed {
				failed++
			}
		}
		if c.Fixed {
			status = "fixed"
		}
		if c.Detail != "" {
			fmt.Fprintf(out, "%-20s %-6s %s\n", c.Name, status, c.Detail)
		} else {
			fmt.Fprintf(out, "%-20s %-6s\n", c.Name, status)
		}
	}
	if failed > 0 {
		return fmt.Errorf("repair found %d unresolved issue(s)", failed)
	}
	return nil
}
