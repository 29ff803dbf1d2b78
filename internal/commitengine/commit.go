// Package commitengine transforms the Staging Index into per-layer commits
// and advances every affected layer ref in one atomic batch: either every
// touched layer advances, or none does, and the staging index is only
// cleared once the batch has actually succeeded.
package commitengine

import (
	"fmt"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"

	"github.com/dabstractor/jin/internal/config"
	"github.com/dabstractor/jin/internal/jinerr"
	"github.com/dabstractor/jin/internal/layer"
	"github.com/dabstractor/jin/internal/objstore"
	"github.com/dabstractor/jin/internal/project"
	"github.com/dabstractor/jin/internal/staging"
)

// Result reports the new tip of every layer a commit actually touched.
type Result struct {
	Tips   map[layer.Kind]plumbing.Hash
	Layers []layer.Kind
}

// Commit groups idx's entries by layer, writes one new tree+commit per
// affected layer against that layer's current tip, and advances every
// affected ref atomically. On success idx is cleared of the committed
// layers and persisted by the caller. Commit never touches workspace
// files (separation of concerns, §4.E).
func Commit(store objstore.Store, ctx project.Context, idx *staging.Index, cfg *config.Config, message string, allowEmpty bool) (Result, error) {
	grouped := idx.ByLayer()
	if len(grouped) == 0 && !allowEmpty {
		return Result{}, jinerr.ErrEmptyCommit
	}

	var updates []objstore.RefUpdate
	tips := map[layer.Kind]plumbing.Hash{}
	layers := make([]layer.Kind, 0, len(grouped))

	for _, k := range layer.PrecedenceAscending() {
		entries, ok := grouped[k]
		if !ok {
			continue
		}

		refPath, err := layer.RefPath(k, ctx)
		if err != nil {
			return Result{}, err
		}

		oldTip, exists, err := store.ReadRef(refPath)
		if err != nil {
			return Result{}, err
		}

		flat := map[string]objstore.TreeEntry{}
		var parents []plumbing.Hash
		if exists {
			parents = append(parents, oldTip)
			oldTreeHash, err := store.ReadCommitTree(oldTip)
			if err != nil {
				return Result{}, err
			}
			if err := flattenTree(store, oldTreeHash, "", flat); err != nil {
				return Result{}, err
			}
		}

		for _, e := range entries {
			// An empty BlobHash is a staged deletion: drop the path from
			// the layer's tree rather than writing a zero-hash blob entry.
			if e.BlobHash == "" {
				delete(flat, e.Path)
				continue
			}
			flat[e.Path] = objstore.TreeEntry{Name: e.Path, Mode: filemode.Regular, Hash: plumbing.NewHash(e.BlobHash)}
		}

		treeEntries := make([]objstore.TreeEntry, 0, len(flat))
		for _, te := range flat {
			treeEntries = append(treeEntries, te)
		}
		newTree, err := store.WriteTree(treeEntries)
		if err != nil {
			return Result{}, err
		}

		commitHash, err := store.WriteCommit(newTree, parents, message, cfg.AuthorName, cfg.AuthorEmail)
		if err != nil {
			return Result{}, err
		}

		updates = append(updates, objstore.RefUpdate{Name: refPath, Old: oldTip, OldExists: exists, New: commitHash})
		tips[k] = commitHash
		layers = append(layers, k)
	}

	if err := store.UpdateRefsAtomic(updates); err != nil {
		return Result{}, err
	}

	idx.Clear(layers...)
	return Result{Tips: tips, Layers: layers}, nil
}

// flattenTree recursively reads tree into flat, keyed by full slash-joined
// path, so staged insertions/deletions can be applied against it as a
// simple map before being handed back to objstore.WriteTree (which
// re-nests the paths into real tree objects).
func flattenTree(store objstore.Store, tree plumbing.Hash, prefix string, flat map[string]objstore.TreeEntry) error {
	entries, err := store.ReadTree(tree)
	if err != nil {
		return fmt.Errorf("%w: flatten tree: %v", jinerr.ErrObjectStore, err)
	}
	for _, e := range entries {
		path := e.Name
		if prefix != "" {
			path = prefix + "/" + e.Name
		}
		if e.IsDir() {
			if err := flattenTree(store, e.Hash, path, flat); err != nil {
				return err
			}
			continue
		}
		flat[path] = objstore.TreeEntry{Name: path, Mode: e.Mode, Hash: e.Hash}
	}
	return nil
}
