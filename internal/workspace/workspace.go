// Package workspace implements Workspace Metadata: the recorded snapshot
// of which content hash was last applied to every tracked path. Apply
// consults it to decide fast-forward vs. merge vs. no-op; attachment
// validation consults it to detect a workspace a user has edited outside
// of jin's own writes.
package workspace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-git/go-git/v5/plumbing"

	"github.com/dabstractor/jin/internal/atomicfile"
	"github.com/dabstractor/jin/internal/jinerr"
)

// RelPath is the control-directory-relative location of the metadata file.
const RelPath = "workspace_metadata.json"

// Path returns the absolute metadata path under jinDir.
func Path(jinDir string) string {
	return filepath.Join(jinDir, RelPath)
}

// Metadata maps every path jin has materialized into the workspace to the
// content hash it last wrote there.
type Metadata struct {
	Hashes map[string]string `json:"hashes"`
}

// New returns empty metadata, the state before any apply has succeeded.
func New() *Metadata {
	return &Metadata{Hashes: map[string]string{}}
}

// Load reads metadata at jinDir. A missing file yields empty metadata
// (I3: metadata exists iff at least one apply has succeeded).
func Load(jinDir string) (*Metadata, error) {
	data, err := os.ReadFile(Path(jinDir))
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, fmt.Errorf("%w: read workspace metadata: %v", jinerr.ErrIO, err)
	}
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: malformed workspace metadata: %v", jinerr.ErrIO, err)
	}
	if m.Hashes == nil {
		m.Hashes = map[string]string{}
	}
	return &m, nil
}

// Save atomically writes metadata to disk at jinDir.
func (m *Metadata) Save(jinDir string) error {
	buf, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode workspace metadata: %v", jinerr.ErrIO, err)
	}
	if err := atomicfile.Write(Path(jinDir), buf, 0o644); err != nil {
		return fmt.Errorf("%w: %v", jinerr.ErrIO, err)
	}
	return nil
}

// HashFile computes the content-addressing hash jin uses for a workspace
// file's bytes. It hashes as a git blob (plumbing.ComputeHash), the same
// scheme the object store uses, so a workspace file's hash can be compared
// directly against a layer's winning blob hash without a conversion step.
func HashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %v", jinerr.ErrIO, path, err)
	}
	return plumbing.ComputeHash(plumbing.BlobObject, data).String(), nil
}

// Status is the outcome of an attachment check.
type Status int

const (
	Attached Status = iota
	Detached
)

func (s Status) String() string {
	if s == Attached {
		return "attached"
	}
	return "detached"
}

// ValidateAttached hashes every path this metadata tracks and compares it
// to the recorded hash. A path that is missing, or whose content hash no
// longer matches, makes the workspace Detached (P7). The returned slice
// names every offending path, sorted, for reproducible reporting.
func ValidateAttached(root string, m *Metadata) (Status, []string, error) {
	var offending []string
	for path, want := range m.Hashes {
		full := filepath.Join(root, path)
		if _, err := os.Stat(full); err != nil {
			if os.IsNotExist(err) {
				offending = append(offending, path)
				continue
			}
			return Detached, nil, fmt.Errorf("%w: stat %s: %v", jinerr.ErrIO, full, err)
		}
		got, err := HashFile(full)
		if err != nil {
			return Detached, nil, err
		}
		if got != want {
			offending = append(offending, path)
		}
	}
	sort.Strings(offending)
	if len(offending) > 0 {
		return Detached, offending, nil
	}
	return Attached, nil, nil
}

// Set records path's newly-applied hash.
func (m *Metadata) Set(path, hash string) {
	m.Hashes[path] = hash
}

// Delete removes path from the tracked set (used when apply deletes a
// workspace file because no layer provides it anymore).
func (m *Metadata) Delete(path string) {
	delete(m.Hashes, path)
}

// Get returns the recorded hash for path, if tracked.
func (m *Metadata) Get(path string) (string, bool) {
	h, ok := m.Hashes[path]
	return h, ok
}
