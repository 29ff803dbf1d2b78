// Package move implements mv: renaming a staged path, optionally also
// renaming its workspace file, with independent per-pair failure so one
// bad pair in a batch doesn't abort the rest.
package move

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dabstractor/jin/internal/gitignore"
	"github.com/dabstractor/jin/internal/jinerr"
	"github.com/dabstractor/jin/internal/layer"
	"github.com/dabstractor/jin/internal/staging"
)

// Pair is one requested rename within a single layer.
type Pair struct {
	Layer layer.Kind
	Src   string
	Dst   string
}

// PairResult reports the outcome of one pair.
type PairResult struct {
	Pair Pair
	Err  error
}

// Result aggregates a batch's outcome. Each pair lands in exactly one of
// Moved or Failed; a failure to reconcile .gitignore is appended to Failed
// as an entry with a zero Pair.
type Result struct {
	Moved  []PairResult
	Failed []PairResult
}

// Move applies every pair against idx, renaming the workspace file too
// when force is true (or the caller has already confirmed interactively).
// Failures are per-pair: one pair failing does not stop the rest from
// being attempted. After processing, root's .gitignore is reconciled
// against every path still staged anywhere.
func Move(idx *staging.Index, root string, pairs []Pair, force, dryRun bool) Result {
	var result Result

	for _, p := range pairs {
		if err := movePair(idx, root, p, force, dryRun); err != nil {
			result.Failed = append(result.Failed, PairResult{Pair: p, Err: err})
			continue
		}
		result.Moved = append(result.Moved, PairResult{Pair: p})
	}

	if !dryRun {
		if err := reconcileGitignore(idx, root); err != nil {
			result.Failed = append(result.Failed, PairResult{Err: err})
		}
	}

	return result
}

func movePair(idx *staging.Index, root string, p Pair, force, dryRun bool) error {
	if dryRun {
		if _, ok := idx.Get(p.Layer, p.Src); !ok {
			return fmt.Errorf("%w: %s in %s layer", jinerr.ErrPathNotStaged, p.Src, p.Layer)
		}
		if _, ok := idx.Get(p.Layer, p.Dst); ok {
			return fmt.Errorf("%w: %s in %s layer", jinerr.ErrPathAlreadyStaged, p.Dst, p.Layer)
		}
		return nil
	}

	if err := idx.Move(p.Layer, p.Src, p.Dst); err != nil {
		return err
	}

	if force {
		srcFull := filepath.Join(root, p.Src)
		dstFull := filepath.Join(root, p.Dst)
		if _, err := os.Stat(srcFull); err == nil {
			if err := os.MkdirAll(filepath.Dir(dstFull), 0o755); err != nil {
				return fmt.Errorf("%w: create dir for %s: %v", jinerr.ErrIO, p.Dst, err)
			}
			if err := os.Rename(srcFull, dstFull); err != nil {
				return fmt.Errorf("%w: rename %s to %s: %v", jinerr.ErrIO, p.Src, p.Dst, err)
			}
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("%w: stat %s: %v", jinerr.ErrIO, p.Src, err)
		}
	}
	return nil
}

func reconcileGitignore(idx *staging.Index, root string) error {
	var managed []string
	for _, entries := range idx.ByLayer() {
		for _, e := range entries {
			managed = append(managed, e.Path)
		}
	}
	return gitignore.Reconcile(root, managed)
}
