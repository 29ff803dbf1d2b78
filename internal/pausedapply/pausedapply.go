// Package pausedapply persists the in-flight state of an apply that could
// not finish cleanly because of merge conflicts, and implements the
// resolve protocol that finishes it one conflicted path at a time.
package pausedapply

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dabstractor/jin/internal/atomicfile"
	"github.com/dabstractor/jin/internal/jinerr"
	"github.com/dabstractor/jin/internal/workspace"
)

// RelPath is the control-directory-relative location of the paused-apply
// file. Exactly zero or one exists per project (I4).
const RelPath = ".paused_apply.yaml"

// Path returns the absolute paused-apply path under jinDir.
func Path(jinDir string) string {
	return filepath.Join(jinDir, RelPath)
}

// LayerConfig records which layers and context the paused apply was
// composing, so resolve can finalize it against the same selection.
type LayerConfig struct {
	Layers  []string `yaml:"layers"`
	Mode    *string  `yaml:"mode"`
	Scope   *string  `yaml:"scope"`
	Project *string  `yaml:"project"`
}

// State is the persisted shape of an in-flight paused apply.
type State struct {
	Timestamp     time.Time   `yaml:"timestamp"`
	LayerConfig   LayerConfig `yaml:"layer_config"`
	ConflictFiles []string    `yaml:"conflict_files"`
	AppliedFiles  []string    `yaml:"applied_files"`
	ConflictCount int         `yaml:"conflict_count"`

	// AppliedHashes carries the winning hash computed during apply for every
	// non-conflicted path, so a later Resolve — in the normal CLI flow, a
	// separate process from the `apply` that paused — can finalize
	// workspace metadata without re-running the composite computation. It
	// must round-trip through YAML: unexported fields are invisible to
	// yaml.v3 regardless of tag, and Load always starts from a fresh State.
	AppliedHashes map[string]string `yaml:"applied_hashes"`
}

// Exists reports whether a paused apply is currently in progress.
func Exists(jinDir string) bool {
	_, err := os.Stat(Path(jinDir))
	return err == nil
}

// Load reads the paused-apply state at jinDir. It returns
// jinerr.ErrNoPausedApply if none is in progress.
func Load(jinDir string) (*State, error) {
	data, err := os.ReadFile(Path(jinDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, jinerr.ErrNoPausedApply
		}
		return nil, fmt.Errorf("%w: read paused apply state: %v", jinerr.ErrIO, err)
	}
	var s State
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: malformed paused apply state: %v", jinerr.ErrIO, err)
	}
	return &s, nil
}

// Save atomically persists s at jinDir.
func (s *State) Save(jinDir string) error {
	buf, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("%w: encode paused apply state: %v", jinerr.ErrIO, err)
	}
	if err := atomicfile.Write(Path(jinDir), buf, 0o644); err != nil {
		return fmt.Errorf("%w: %v", jinerr.ErrIO, err)
	}
	return nil
}

// Clear removes the paused-apply file, used once every conflict drains.
func Clear(jinDir string) error {
	if err := os.Remove(Path(jinDir)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: clear paused apply state: %v", jinerr.ErrIO, err)
	}
	return nil
}

// Result reports what one Resolve call accomplished.
type Result struct {
	Resolved  []string
	Remaining []string
	Completed bool // true if this call drained the last conflict
}

// conflictMarker is the header Apply writes atop every .jinmerge file.
const conflictMarker = "# Jin merge conflict."

// Resolve marks paths as resolved by verifying their .jinmerge file no
// longer carries unresolved diff3 markers, writing its contents to the
// original path and removing the .jinmerge file, removing the path from
// conflict_files, and — once
// conflict_files drains to empty — finalizing workspace metadata for every
// path this apply touched and clearing the paused-apply state. If paths is
// empty, every currently-conflicted path is attempted ("resolve --all").
func Resolve(root, jinDir string, s *State, paths []string, dryRun bool) (Result, error) {
	targets := paths
	if len(targets) == 0 {
		targets = append([]string(nil), s.ConflictFiles...)
	}

	remaining := map[string]bool{}
	for _, p := range s.ConflictFiles {
		remaining[p] = true
	}

	var resolved []string
	for _, p := range targets {
		if !remaining[p] {
			return Result{}, fmt.Errorf("%w: %s", jinerr.ErrNotInConflict, p)
		}

		merged := filepath.Join(root, p+".jinmerge")
		data, err := os.ReadFile(merged)
		if err != nil {
			return Result{}, fmt.Errorf("%w: read %s: %v", jinerr.ErrIO, merged, err)
		}
		if containsMarkers(string(data)) {
			return Result{}, fmt.Errorf("%w: %s", jinerr.ErrUnresolvedMarkers, p)
		}

		if !dryRun {
			final := filepath.Join(root, p)
			if err := atomicfile.Write(final, data, 0o644); err != nil {
				return Result{}, fmt.Errorf("%w: write resolved %s: %v", jinerr.ErrIO, p, err)
			}
			if err := os.Remove(merged); err != nil && !os.IsNotExist(err) {
				return Result{}, fmt.Errorf("%w: remove %s: %v", jinerr.ErrIO, merged, err)
			}
		}

		delete(remaining, p)
		resolved = append(resolved, p)
	}

	if dryRun {
		return Result{Resolved: resolved, Remaining: sortedKeys(remaining)}, nil
	}

	s.ConflictFiles = sortedKeys(remaining)
	s.ConflictCount = len(s.ConflictFiles)
	s.AppliedFiles = append(s.AppliedFiles, resolved...)

	if len(s.ConflictFiles) == 0 {
		if err := finalize(root, jinDir, s); err != nil {
			return Result{}, err
		}
		if err := Clear(jinDir); err != nil {
			return Result{}, err
		}
		return Result{Resolved: resolved, Completed: true}, nil
	}

	if err := s.Save(jinDir); err != nil {
		return Result{}, err
	}
	return Result{Resolved: resolved, Remaining: s.ConflictFiles}, nil
}

// finalize records workspace metadata for every path this apply touched
// (the non-conflicted ones, recorded by apply, plus every just-resolved
// path hashed fresh) once no conflicts remain.
func finalize(root, jinDir string, s *State) error {
	meta, err := workspace.Load(jinDir)
	if err != nil {
		return err
	}
	for path, hash := range s.AppliedHashes {
		meta.Set(path, hash)
	}
	for _, path := range s.AppliedFiles {
		hash, err := workspace.HashFile(filepath.Join(root, path))
		if err != nil {
			return err
		}
		meta.Set(path, hash)
	}
	return meta.Save(jinDir)
}

// SetAppliedHashes attaches the non-conflicted winning hashes apply
// computed, so finalize can persist them without recomputation.
func (s *State) SetAppliedHashes(hashes map[string]string) {
	s.AppliedHashes = hashes
}

func containsMarkers(content string) bool {
	return strings.Contains(content, "<<<<<<<") ||
		strings.Contains(content, "=======") ||
		strings.Contains(content, ">>>>>>>")
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
