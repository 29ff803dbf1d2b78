package main

import (
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/dabstractor/jin/internal/pausedapply"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [path...]",
	Short: "Finish a paused apply by marking conflicted paths resolved",
	RunE:  runResolve,
}

func init() {
	resolveCmd.Flags().Bool("all", false, "resolve every currently conflicted path")
	resolveCmd.Flags().Bool("dry-run", false, "validate without writing or clearing state")
}

func runResolve(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	all, _ := cmd.Flags().GetBool("all")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	state, err := pausedapply.Load(e.cfg.JinDir)
	if err != nil {
		return err
	}

	targets := args
	if len(targets) == 0 && !all {
		targets, err = pickConflicts(state.ConflictFiles)
		if err != nil {
			return err
		}
	}

	var result pausedapply.Result
	err = e.withLock(func() error {
		result, err = pausedapply.Resolve(e.root, e.cfg.JinDir, state, targets, dryRun)
		return err
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, p := range result.Resolved {
		fmt.Fprintf(out, "resolved: %s\n", p)
	}
	if result.Completed {
		fmt.Fprintln(out, "All conflicts resolved, apply finalized")
	} else if len(result.Remaining) > 0 {
		fmt.Fprintf(out, "%d conflict(s) remaining\n", len(result.Remaining))
	}
	return nil
}

// pickConflicts drives an interactive multi-select over the currently
// conflicted paths when the caller gave neither explicit paths nor --all.
func pickConflicts(conflicts []string) ([]string, error) {
	if len(conflicts) == 0 {
		return nil, nil
	}
	options := make([]huh.Option[string], 0, len(conflicts))
	for _, p := range conflicts {
		options = append(options, huh.NewOption(p, p))
	}
	var selected []string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Select resolved paths").
				Options(options...).
				Value(&selected),
		),
	)
	if err := form.Run(); err != nil {
		return nil, err
	}
	return selected, nil
}
