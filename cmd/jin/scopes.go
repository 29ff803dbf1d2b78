package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dabstractor/jin/internal/layer"
)

var scopesCmd = &cobra.Command{
	Use:   "scopes",
	Short: "List every scope name with a committed layer",
	Args:  cobra.NoArgs,
	RunE:  runScopes,
}

func runScopes(cmd *cobra.Command, args []string) error {
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
		if rest := strings.TrimPrefix(r.Path, "refs/jin/layers/scope/"); rest != r.Path {
			seen[rest] = true
			continue
		}
		if idx := strings.Index(r.Path, "/scope/"); idx != -1 {
			rest := r.Path[idx+len("/scope/"):]
			name := strings.SplitN(rest, "/", 2)[0]
			seen[name] = true
		}
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
