// Package apply implements the Apply/Merge Engine: it composes the
// selected layers' committed trees into a single winning {path → hash}
// view by precedence, then reconciles that view against the workspace's
// current files and the last-applied metadata, writing files, merging, or
// pausing for conflicts as needed.
package apply

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-git/go-git/v5/plumbing"

	"github.com/dabstractor/jin/internal/jinerr"
	"github.com/dabstractor/jin/internal/layer"
	"github.com/dabstractor/jin/internal/merge"
	"github.com/dabstractor/jin/internal/objstore"
	"github.com/dabstractor/jin/internal/pausedapply"
	"github.com/dabstractor/jin/internal/project"
	"github.com/dabstractor/jin/internal/workspace"
)

// Options configures one Apply invocation.
type Options struct {
	// Layers restricts composition to these layers. Empty means every
	// layer that currently has a ref.
	Layers []layer.Kind
	// Force skips the attachment guard (§4.F force variant).
	Force bool
	// DryRun runs the algorithm without any filesystem writes.
	DryRun bool
}

// ActionKind classifies what Apply did (or would do, under DryRun) to one
// path.
type ActionKind string

const (
	ActionWrite    ActionKind = "write"
	ActionNoop     ActionKind = "noop"
	ActionFastForward ActionKind = "fast-forward"
	ActionMerge    ActionKind = "merge"
	ActionConflict ActionKind = "conflict"
	ActionDelete   ActionKind = "delete"
)

// Action records what happened to a single path, used for both the
// dry-run report and the real result.
type Action struct {
	Path string
	Kind ActionKind
}

// Result is the outcome of an Apply call that did not pause for
// conflicts.
type Result struct {
	Actions   []Action
	Applied   []string
	Skipped   []string
	Conflicts []string
}

const mergeHeader = "# Jin merge conflict. Resolve and run 'jin resolve <file>'\n"

// Apply runs the composition-and-reconciliation algorithm against root
// (the workspace directory) using jinDir as the control directory. If any
// path conflicts, it persists Paused-Apply State and returns
// jinerr.ErrApplyPaused; the caller should report that as a non-fatal,
// user-actionable outcome rather than a failure.
func Apply(store objstore.Store, ctx project.Context, root, jinDir string, opts Options) (Result, error) {
	if pausedapply.Exists(jinDir) {
		return Result{}, jinerr.ErrApplyPaused
	}

	meta, err := workspace.Load(jinDir)
	if err != nil {
		return Result{}, err
	}

	if !opts.Force {
		status, offending, err := workspace.ValidateAttached(root, meta)
		if err != nil {
			return Result{}, err
		}
		if status == workspace.Detached {
			return Result{}, fmt.Errorf("%w: %v", jinerr.ErrWorkspaceDetached, offending)
		}
	}

	composite, err := buildComposite(store, ctx, opts.Layers)
	if err != nil {
		return Result{}, err
	}

	paths := unionPaths(composite, meta)

	result := Result{}
	appliedHashes := map[string]string{}
	var conflictFiles []string

	for _, path := range paths {
		full := filepath.Join(root, path)
		winning, inComposite := composite[path]
		priorHash, hasPrior := meta.Get(path)

		wsHash, wsExists, err := hashIfExists(full)
		if err != nil {
			return Result{}, err
		}

		switch {
		case !inComposite:
			// No layer provides this path anymore: remove it.
			result.Actions = append(result.Actions, Action{Path: path, Kind: ActionDelete})
			if !opts.DryRun {
				if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
					return Result{}, fmt.Errorf("%w: delete %s: %v", jinerr.ErrIO, path, err)
				}
				meta.Delete(path)
			}
			result.Applied = append(result.Applied, path)

		case !wsExists:
			result.Actions = append(result.Actions, Action{Path: path, Kind: ActionWrite})
			if !opts.DryRun {
				if err := writeWinning(store, full, winning.Hash); err != nil {
					return Result{}, err
				}
			}
			appliedHashes[path] = winning.HexHash
			result.Applied = append(result.Applied, path)

		case wsHash == winning.HexHash:
			result.Actions = append(result.Actions, Action{Path: path, Kind: ActionNoop})
			result.Skipped = append(result.Skipped, path)

		case hasPrior && wsHash == priorHash:
			result.Actions = append(result.Actions, Action{Path: path, Kind: ActionFastForward})
			if !opts.DryRun {
				if err := writeWinning(store, full, winning.Hash); err != nil {
					return Result{}, err
				}
			}
			appliedHashes[path] = winning.HexHash
			result.Applied = append(result.Applied, path)

		default:
			var base []byte
			if hasPrior {
				base, err = store.ReadBlob(plumbing.NewHash(priorHash))
				if err != nil {
					return Result{}, err
				}
			}
			ours, err := os.ReadFile(full)
			if err != nil {
				return Result{}, fmt.Errorf("%w: read %s: %v", jinerr.ErrIO, path, err)
			}
			theirs, err := store.ReadBlob(winning.Hash)
			if err != nil {
				return Result{}, err
			}

			merged := merge.ThreeWay(base, ours, theirs)
			if !merged.Conflict {
				result.Actions = append(result.Actions, Action{Path: path, Kind: ActionMerge})
				if !opts.DryRun {
					if err := writeFile(full, merged.Content); err != nil {
						return Result{}, err
					}
				}
				if !opts.DryRun {
					hash, err := writeBackHash(store, merged.Content)
					if err != nil {
						return Result{}, err
					}
					appliedHashes[path] = hash
				}
				result.Applied = append(result.Applied, path)
			} else {
				result.Actions = append(result.Actions, Action{Path: path, Kind: ActionConflict})
				conflictFiles = append(conflictFiles, path)
				if !opts.DryRun {
					content := append([]byte(mergeHeader), merged.Content...)
					if err := writeFile(full+".jinmerge", content); err != nil {
						return Result{}, err
					}
				}
				result.Conflicts = append(result.Conflicts, path)
			}
		}
	}

	if opts.DryRun {
		return result, nil
	}

	for path, hash := range appliedHashes {
		meta.Set(path, hash)
	}

	if len(conflictFiles) > 0 {
		sort.Strings(conflictFiles)
		layerConfig := pausedapply.LayerConfig{
			Layers:  layerNames(opts.Layers),
			Mode:    ctx.ActiveMode,
			Scope:   ctx.ActiveScope,
			Project: &ctx.ActiveProject,
		}
		state := &pausedapply.State{
			LayerConfig:   layerConfig,
			ConflictFiles: conflictFiles,
			ConflictCount: len(conflictFiles),
		}
		state.SetAppliedHashes(appliedHashes)
		if err := state.Save(jinDir); err != nil {
			return Result{}, err
		}
		return result, jinerr.ErrApplyPaused
	}

	if err := meta.Save(jinDir); err != nil {
		return Result{}, err
	}
	return result, nil
}

// winningEntry pairs a path's winning content hash with the layer it came
// from, for diagnostics.
type winningEntry struct {
	Hash    plumbing.Hash
	HexHash string
	Layer   layer.Kind
}

// Composite returns every path the selected layers currently provide,
// mapped to its winning content hash, by precedence. reset uses this to
// prune workspace files that a hard reset must discard but that Apply's
// own reconciliation loop never visits — paths staged but never committed,
// which have no layer ref and no Workspace Metadata entry either.
func Composite(store objstore.Store, ctx project.Context, layers []layer.Kind) (map[string]string, error) {
	composite, err := buildComposite(store, ctx, layers)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(composite))
	for path, w := range composite {
		out[path] = w.HexHash
	}
	return out, nil
}

func buildComposite(store objstore.Store, ctx project.Context, restrict []layer.Kind) (map[string]winningEntry, error) {
	allowed := map[layer.Kind]bool{}
	for _, k := range restrict {
		allowed[k] = true
	}

	existing, err := layer.ListExisting(store)
	if err != nil {
		return nil, err
	}
	haveRef := map[layer.Kind]bool{}
	for _, e := range existing {
		haveRef[e.Kind] = true
	}

	composite := map[string]winningEntry{}
	for _, k := range layer.PrecedenceAscending() {
		if len(allowed) > 0 && !allowed[k] {
			continue
		}
		if !haveRef[k] {
			continue
		}
		refPath, err := layer.RefPath(k, ctx)
		if err != nil {
			continue
		}
		tip, ok, err := store.ReadRef(refPath)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		treeHash, err := store.ReadCommitTree(tip)
		if err != nil {
			return nil, err
		}
		flat := map[string]objstore.TreeEntry{}
		if err := flattenInto(store, treeHash, "", flat); err != nil {
			return nil, err
		}
		for path, entry := range flat {
			composite[path] = winningEntry{Hash: entry.Hash, HexHash: entry.Hash.String(), Layer: k}
		}
	}
	return composite, nil
}

func flattenInto(store objstore.Store, tree plumbing.Hash, prefix string, flat map[string]objstore.TreeEntry) error {
	entries, err := store.ReadTree(tree)
	if err != nil {
		return err
	}
	for _, e := range entries {
		path := e.Name
		if prefix != "" {
			path = prefix + "/" + e.Name
		}
		if e.IsDir() {
			if err := flattenInto(store, e.Hash, path, flat); err != nil {
				return err
			}
			continue
		}
		flat[path] = e
	}
	return nil
}

func unionPaths(composite map[string]winningEntry, meta *workspace.Metadata) []string {
	set := map[string]bool{}
	for p := range composite {
		set[p] = true
	}
	for p := range meta.Hashes {
		set[p] = true
	}
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func hashIfExists(full string) (hash string, exists bool, err error) {
	if _, statErr := os.Stat(full); statErr != nil {
		if os.IsNotExist(statErr) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: stat %s: %v", jinerr.ErrIO, full, statErr)
	}
	h, err := workspace.HashFile(full)
	if err != nil {
		return "", false, err
	}
	return h, true, nil
}

func writeWinning(store objstore.Store, full string, hash plumbing.Hash) error {
	data, err := store.ReadBlob(hash)
	if err != nil {
		return err
	}
	return writeFile(full, data)
}

func writeBackHash(store objstore.Store, content []byte) (string, error) {
	hash, err := store.WriteBlob(content)
	if err != nil {
		return "", err
	}
	return hash.String(), nil
}

func writeFile(full string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("%w: create dir for %s: %v", jinerr.ErrIO, full, err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %v", jinerr.ErrIO, full, err)
	}
	return nil
}

func layerNames(kinds []layer.Kind) []string {
	names := make([]string, 0, len(kinds))
	for _, k := range kinds {
		names = append(names, k.String())
	}
	return names
}
