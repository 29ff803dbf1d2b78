// Package gitignore maintains the fenced block of jin-managed paths
// inside a project's .gitignore, so files jin tracks in its own layer
// history never show up as untracked noise in a sibling git repository.
package gitignore

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dabstractor/jin/internal/jinerr"
)

const (
	beginMarker = "# >>> jin-managed (do not edit) >>>"
	endMarker   = "# <<< jin-managed <<<"
)

// RelPath is the project-relative location of the file Reconcile edits.
const RelPath = ".gitignore"

// Reconcile rewrites the jin-managed block inside root/.gitignore to
// contain exactly managed, sorted and deduplicated. Content outside the
// fenced block is preserved untouched. If no .gitignore exists, one is
// created containing only the managed block.
func Reconcile(root string, managed []string) error {
	path := filepath.Join(root, RelPath)

	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: read %s: %v", jinerr.ErrIO, path, err)
	}

	before, after := splitAroundBlock(string(existing))

	unique := map[string]bool{}
	for _, p := range managed {
		unique[p] = true
	}
	sorted := make([]string, 0, len(unique))
	for p := range unique {
		sorted = append(sorted, p)
	}
	sort.Strings(sorted)

	var sb strings.Builder
	sb.WriteString(before)
	sb.WriteString(beginMarker)
	sb.WriteString("\n")
	for _, p := range sorted {
		sb.WriteString(p)
		sb.WriteString("\n")
	}
	sb.WriteString(endMarker)
	sb.WriteString("\n")
	sb.WriteString(after)

	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %v", jinerr.ErrIO, path, err)
	}
	return nil
}

// splitAroundBlock returns the content before and after any existing
// jin-managed block. If no block is present, all existing content is
// returned as before, with a trailing newline added when it lacks one. If
// a block is present, before is the content up to the begin marker,
// unchanged, and after is the content past the end marker minus one
// leading newline; when the end marker is missing, everything from the
// begin marker on is dropped.
func splitAroundBlock(content string) (before, after string) {
	start := strings.Index(content, beginMarker)
	if start == -1 {
		before = content
		if before != "" && !strings.HasSuffix(before, "\n") {
			before += "\n"
		}
		return before, ""
	}

	end := strings.Index(content, endMarker)
	before = content[:start]

	if end == -1 {
		return before, ""
	}

	after = content[end+len(endMarker):]
	after = strings.TrimPrefix(after, "\n")
	return before, after
}
