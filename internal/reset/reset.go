// Package reset implements the three reset modes that clear staged work
// and, for --hard, rewrite the workspace back to what is currently
// committed.
package reset

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dabstractor/jin/internal/apply"
	"github.com/dabstractor/jin/internal/gitignore"
	"github.com/dabstractor/jin/internal/jinerr"
	"github.com/dabstractor/jin/internal/layer"
	"github.com/dabstractor/jin/internal/objstore"
	"github.com/dabstractor/jin/internal/project"
	"github.com/dabstractor/jin/internal/staging"
)

// Mode selects how much reset undoes.
type Mode int

const (
	// Soft is a no-op on workspace and staging, retained for symmetry with
	// the other two modes.
	Soft Mode = iota
	// Mixed clears staging for the targeted layers (the default).
	Mixed
	// Hard clears staging and rewrites the workspace to the composite of
	// the currently committed layers.
	Hard
)

// Result reports what reset did.
type Result struct {
	ClearedLayers []layer.Kind
	Applied       apply.Result
}

// Reset clears idx's entries for the layers resolved from targets (I7, via
// layer.Resolve) and, in Hard mode, re-applies the workspace from the
// current committed state. force bypasses the attachment guard the same
// way it does for apply.
func Reset(store objstore.Store, ctx project.Context, idx *staging.Index, root, jinDir string, mode Mode, targets layer.Flags, force bool) (Result, error) {
	k, err := layer.Resolve(targets, ctx)
	if err != nil {
		return Result{}, err
	}

	if mode == Soft {
		return Result{}, nil
	}

	idx.Clear(k)
	result := Result{ClearedLayers: []layer.Kind{k}}

	if mode == Mixed {
		return result, nil
	}

	applyResult, err := apply.Apply(store, ctx, root, jinDir, apply.Options{Force: force})
	if err != nil {
		return result, err
	}
	result.Applied = applyResult

	// Apply's own reconciliation loop only visits paths a layer currently
	// provides or Workspace Metadata already tracks (unionPaths). A file
	// that was staged and written to the workspace but never committed has
	// neither a layer ref nor a metadata entry, so Apply never touches it.
	// --hard means "workspace equals the composite of committed layers",
	// so sweep the tree for anything else the composite no longer provides.
	composite, err := apply.Composite(store, ctx, nil)
	if err != nil {
		return result, err
	}
	if err := pruneUntracked(root, jinDir, composite); err != nil {
		return result, err
	}
	return result, nil
}

// pruneUntracked removes every regular file under root that composite does
// not provide, skipping jinDir itself (the control directory is never part
// of the composite). Empty directories left behind are removed too, so a
// hard reset doesn't litter the workspace with directories nothing
// occupies anymore.
func pruneUntracked(root, jinDir string, composite map[string]string) error {
	var toRemove []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == jinDir {
			return filepath.SkipDir
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == gitignore.RelPath {
			// jin's own managed fence in .gitignore, not layer content.
			return nil
		}
		if _, ok := composite[rel]; !ok {
			toRemove = append(toRemove, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: walk workspace: %v", jinerr.ErrIO, err)
	}

	for _, path := range toRemove {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("%w: remove %s: %v", jinerr.ErrIO, path, err)
		}
		pruneEmptyDirs(root, filepath.Dir(path))
	}
	return nil
}

// pruneEmptyDirs removes dir, and then its ancestors up to (not including)
// root, as long as each is empty. Errors are ignored: a directory that
// isn't empty, or can't be removed, is simply left in place.
func pruneEmptyDirs(root, dir string) {
	for dir != root && len(dir) > len(root) {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if os.Remove(dir) != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}
