// Package objstore implements the Object Store Adapter: the thin layer
// between the engine and the underlying content-addressed object graph.
// Every layer's history is a sequence of git-shaped blob/tree/commit
// objects and refs, written with github.com/go-git/go-git/v5 rather than
// shelling out to a binary, so the engine can perform true atomic
// compare-and-swap ref updates without relying on an external process.
package objstore

import (
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
)

// TreeEntry is one entry of a tree object: either a blob (file) or a
// nested tree (directory), addressed by its content hash.
type TreeEntry struct {
	Name string
	Mode filemode.FileMode
	Hash plumbing.Hash
}

// IsDir reports whether the entry is a nested tree rather than a blob.
func (e TreeEntry) IsDir() bool {
	return e.Mode == filemode.Dir
}

// RefUpdate describes one ref's desired new target within a batch applied
// by UpdateRefsAtomic. Old and OldExists are the caller's last-observed
// state of the ref (e.g. commitengine's oldTip/exists read before it built
// New on top of it) — UpdateRefsAtomic compares them against the ref's
// actual current state and fails the whole batch with ErrCommitConflict if
// another process has since moved it, rather than silently re-reading
// "current" as if it were the expected old value.
type RefUpdate struct {
	Name      string
	Old       plumbing.Hash
	OldExists bool
	New       plumbing.Hash
}

// Store is the capability surface the rest of the engine needs from the
// object graph. commitengine, apply, and repair depend on this interface,
// never on the concrete go-git types, so the backing implementation can be
// swapped (e.g. for a test double) without touching callers.
type Store interface {
	WriteBlob(data []byte) (plumbing.Hash, error)
	ReadBlob(hash plumbing.Hash) ([]byte, error)
	WriteTree(entries []TreeEntry) (plumbing.Hash, error)
	WriteCommit(tree plumbing.Hash, parents []plumbing.Hash, message string, authorName, authorEmail string) (plumbing.Hash, error)
	ReadCommitTree(commit plumbing.Hash) (plumbing.Hash, error)
	ReadRef(name string) (plumbing.Hash, bool, error)
	UpdateRefsAtomic(batch []RefUpdate) error
	ReadTree(hash plumbing.Hash) ([]TreeEntry, error)
	ListRefs(prefix string) ([]string, error)
}
