package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dabstractor/jin/internal/layer"
)

var modesCmd = &cobra.Command{
	Use:   "modes",
	Short: "List every mode name with a committed layer",
	Args:  cobra.NoArgs,
	RunE:  runModes,
}

func runModes(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	refs, err := layer.ListExisting(e.store)
	if err != nil {
		return err
	}

	seen := map[string]bool{}
	for _, r := range refs {
		rest := strings.TrimPrefix(r.Path, "refs/jin/layers/mode/")
		if rest == r.Path {
			continue
		}
		name := strings.SplitN(rest, "/", 2)[0]
		seen[name] = true
	}

	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)

	out := cmd.OutOrStdout()
	for _, n := range names {
		fmt.Fprintln(out, n)
	}
	return nil
}
