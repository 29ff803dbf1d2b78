// Package staging implements the Staging Index: the per-layer map of
// pending path-to-blob-hash assignments that accumulates between commits.
// It is persisted as a single JSON file guarded by a checksum/version
// header, so a half-written or hand-edited file is caught on load rather
// than silently misread.
package staging

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dabstractor/jin/internal/atomicfile"
	"github.com/dabstractor/jin/internal/jinerr"
	"github.com/dabstractor/jin/internal/layer"
)

const indexVersion = 1

// RelPath is the control-directory-relative location of the index file.
const RelPath = "staging/index.json"

// Path returns the absolute index path under jinDir.
func Path(jinDir string) string {
	return filepath.Join(jinDir, RelPath)
}

// Entry is one pending path assignment within a single layer.
type Entry struct {
	Layer    layer.Kind
	Path     string
	BlobHash string
	// OrigHash is the workspace file's content hash at staging time. Empty
	// for staged deletions. Apply does not read it; its 3-way merge base
	// comes from Workspace Metadata.
	OrigHash string
	AddedAt  time.Time
}

type entryJSON struct {
	Layer    string    `json:"layer"`
	Path     string    `json:"path"`
	BlobHash string    `json:"blob_hash"`
	OrigHash string    `json:"orig_hash,omitempty"`
	AddedAt  time.Time `json:"added_at"`
}

type fileFormat struct {
	Version  int         `json:"version"`
	Checksum string      `json:"checksum"`
	Entries  []entryJSON `json:"entries"`
}

type key struct {
	layer layer.Kind
	path  string
}

// Index is the in-memory staging index for one project.
type Index struct {
	entries map[key]Entry
}

// New returns an empty index.
func New() *Index {
	return &Index{entries: map[key]Entry{}}
}

// Load reads the staging index at jinDir. A missing file is not an error;
// it yields an empty index, since an uninitialized or freshly-committed
// project has nothing staged.
func Load(jinDir string) (*Index, error) {
	data, err := os.ReadFile(Path(jinDir))
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, fmt.Errorf("%w: read staging index: %v", jinerr.ErrIO, err)
	}

	var ff fileFormat
	if err := json.Unmarshal(data, &ff); err != nil {
		return nil, fmt.Errorf("%w: malformed staging index: %v", jinerr.ErrStagingCorrupt, err)
	}
	want, err := checksum(ff.Entries)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", jinerr.ErrStagingCorrupt, err)
	}
	if want != ff.Checksum {
		return nil, fmt.Errorf("%w: checksum mismatch", jinerr.ErrStagingCorrupt)
	}

	idx := New()
	for _, e := range ff.Entries {
		k, err := layer.ByName(e.Layer)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", jinerr.ErrStagingCorrupt, err)
		}
		idx.entries[key{k, e.Path}] = Entry{
			Layer:    k,
			Path:     e.Path,
			BlobHash: e.BlobHash,
			OrigHash: e.OrigHash,
			AddedAt:  e.AddedAt,
		}
	}
	return idx, nil
}

func checksum(entries []entryJSON) (string, error) {
	sorted := append([]entryJSON(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Layer != sorted[j].Layer {
			return sorted[i].Layer < sorted[j].Layer
		}
		return sorted[i].Path < sorted[j].Path
	})
	buf, err := json.Marshal(sorted)
	if err != nil {
		return "", fmt.Errorf("encode entries for checksum: %w", err)
	}
	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:]), nil
}

// Save atomically writes the index to disk at jinDir.
func (idx *Index) Save(jinDir string) error {
	entries := make([]entryJSON, 0, len(idx.entries))
	for _, e := range idx.entries {
		entries = append(entries, entryJSON{
			Layer:    e.Layer.String(),
			Path:     e.Path,
			BlobHash: e.BlobHash,
			OrigHash: e.OrigHash,
			AddedAt:  e.AddedAt,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Layer != entries[j].Layer {
			return entries[i].Layer < entries[j].Layer
		}
		return entries[i].Path < entries[j].Path
	})

	sum, err := checksum(entries)
	if err != nil {
		return fmt.Errorf("%w: %v", jinerr.ErrIO, err)
	}
	buf, err := json.MarshalIndent(fileFormat{Version: indexVersion, Checksum: sum, Entries: entries}, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode staging index: %v", jinerr.ErrIO, err)
	}
	if err := atomicfile.Write(Path(jinDir), buf, 0o644); err != nil {
		return fmt.Errorf("%w: %v", jinerr.ErrIO, err)
	}
	return nil
}

// Stage records path as pending in layer k with the given blob hash.
// Idempotent: staging the identical (layer, path, blobHash) again is a
// no-op and returns replaced=false. workspace-active can never be staged
// into directly (I6).
func (idx *Index) Stage(k layer.Kind, path, blobHash, origHash string) (replaced bool, err error) {
	if k == layer.WorkspaceActive {
		return false, fmt.Errorf("%w: workspace-active cannot be staged into directly", jinerr.ErrUnknownLayer)
	}
	kk := key{k, path}
	existing, ok := idx.entries[kk]
	if ok && existing.BlobHash == blobHash {
		return false, nil
	}
	idx.entries[kk] = Entry{Layer: k, Path: path, BlobHash: blobHash, OrigHash: origHash, AddedAt: time.Now()}
	return ok, nil
}

// Unstage removes entries matching the given optional filters. A nil
// layer pointer matches every layer; an empty path matches every path.
func (idx *Index) Unstage(k *layer.Kind, path string) {
	for kk := range idx.entries {
		if k != nil && kk.layer != *k {
			continue
		}
		if path != "" && kk.path != path {
			continue
		}
		delete(idx.entries, kk)
	}
}

// Move renames a staged path within one layer, preserving its blob hash.
// It rejects if src is not staged in k, or dst is already staged in k.
func (idx *Index) Move(k layer.Kind, src, dst string) error {
	srcKey := key{k, src}
	entry, ok := idx.entries[srcKey]
	if !ok {
		return fmt.Errorf("%w: %s in %s layer", jinerr.ErrPathNotStaged, src, k)
	}
	dstKey := key{k, dst}
	if _, ok := idx.entries[dstKey]; ok {
		return fmt.Errorf("%w: %s in %s layer", jinerr.ErrPathAlreadyStaged, dst, k)
	}
	entry.Path = dst
	delete(idx.entries, srcKey)
	idx.entries[dstKey] = entry
	return nil
}

// ByLayer groups every staged entry by its layer, each group sorted by
// path for reproducible iteration order.
func (idx *Index) ByLayer() map[layer.Kind][]Entry {
	out := map[layer.Kind][]Entry{}
	for _, e := range idx.entries {
		out[e.Layer] = append(out[e.Layer], e)
	}
	for k := range out {
		sort.Slice(out[k], func(i, j int) bool { return out[k][i].Path < out[k][j].Path })
	}
	return out
}

// Clear removes every entry belonging to any of the given layers, used
// after a successful commit (I5).
func (idx *Index) Clear(layers ...layer.Kind) {
	set := make(map[layer.Kind]bool, len(layers))
	for _, l := range layers {
		set[l] = true
	}
	for kk := range idx.entries {
		if set[kk.layer] {
			delete(idx.entries, kk)
		}
	}
}

// IsEmpty reports whether nothing is currently staged.
func (idx *Index) IsEmpty() bool {
	return len(idx.entries) == 0
}

// Get returns the staged entry for (k, path), if any.
func (idx *Index) Get(k layer.Kind, path string) (Entry, bool) {
	e, ok := idx.entries[key{k, path}]
	return e, ok
}
