package objstore

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/filesystem"

	"github.com/dabstractor/jin/internal/jinerr"
)

// GoGitStore is the go-git-backed Store implementation. It opens jinDir as
// a filesystem.Storage without a worktree — the engine never lets go-git
// touch working-tree files, those are owned entirely by the Apply/Merge
// Engine.
type GoGitStore struct {
	storage *filesystem.Storage
}

// Open opens (creating if absent) the object store rooted at jinDir, the
// project's control directory.
func Open(jinDir string) (*GoGitStore, error) {
	fs := osfs.New(jinDir)
	storage := filesystem.NewStorage(fs, cache.NewObjectLRUDefault())
	return &GoGitStore{storage: storage}, nil
}

func (s *GoGitStore) WriteBlob(data []byte) (plumbing.Hash, error) {
	obj := s.storage.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	obj.SetSize(int64(len(data)))

	w, err := obj.Writer()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("%w: open blob writer: %v", jinerr.ErrObjectStore, err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return plumbing.ZeroHash, fmt.Errorf("%w: write blob: %v", jinerr.ErrObjectStore, err)
	}
	if err := w.Close(); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("%w: close blob: %v", jinerr.ErrObjectStore, err)
	}

	hash, err := s.storage.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("%w: store blob: %v", jinerr.ErrObjectStore, err)
	}
	return hash, nil
}

// ReadBlob returns a blob's raw content.
func (s *GoGitStore) ReadBlob(hash plumbing.Hash) ([]byte, error) {
	obj, err := s.storage.EncodedObject(plumbing.BlobObject, hash)
	if err != nil {
		return nil, fmt.Errorf("%w: read blob %s: %v", jinerr.ErrObjectStore, hash, err)
	}
	r, err := obj.Reader()
	if err != nil {
		return nil, fmt.Errorf("%w: open blob reader %s: %v", jinerr.ErrObjectStore, hash, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: read blob contents %s: %v", jinerr.ErrObjectStore, hash, err)
	}
	return data, nil
}

// treeNode is an intermediate, path-indexed structure used to fold a flat
// list of deep TreeEntry paths into git's real nested-tree shape.
type treeNode struct {
	dirs  map[string]*treeNode
	blobs map[string]TreeEntry
}

func newTreeNode() *treeNode {
	return &treeNode{dirs: map[string]*treeNode{}, blobs: map[string]TreeEntry{}}
}

// WriteTree builds the (possibly deep) tree described by entries, writing
// one tree object per directory level, and returns the root tree's hash.
func (s *GoGitStore) WriteTree(entries []TreeEntry) (plumbing.Hash, error) {
	root := newTreeNode()
	for _, e := range entries {
		parts := strings.Split(e.Name, "/")
		node := root
		for _, p := range parts[:len(parts)-1] {
			child, ok := node.dirs[p]
			if !ok {
				child = newTreeNode()
				node.dirs[p] = child
			}
			node = child
		}
		leaf := parts[len(parts)-1]
		e.Name = leaf
		node.blobs[leaf] = e
	}
	return s.writeTreeNode(root)
}

func (s *GoGitStore) writeTreeNode(n *treeNode) (plumbing.Hash, error) {
	tree := &object.Tree{}

	for name, e := range n.blobs {
		mode := e.Mode
		if mode == 0 {
			mode = filemode.Regular
		}
		tree.Entries = append(tree.Entries, object.TreeEntry{Name: name, Mode: mode, Hash: e.Hash})
	}
	for name, child := range n.dirs {
		hash, err := s.writeTreeNode(child)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		tree.Entries = append(tree.Entries, object.TreeEntry{Name: name, Mode: filemode.Dir, Hash: hash})
	}
	sort.Slice(tree.Entries, func(i, j int) bool { return tree.Entries[i].Name < tree.Entries[j].Name })

	obj := s.storage.NewEncodedObject()
	obj.SetType(plumbing.TreeObject)
	if err := tree.Encode(obj); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("%w: encode tree: %v", jinerr.ErrObjectStore, err)
	}
	hash, err := s.storage.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("%w: store tree: %v", jinerr.ErrObjectStore, err)
	}
	return hash, nil
}

// WriteCommit writes a commit object pointing at tree, with the given
// parents (zero or more), authored and committed by authorName/authorEmail
// at the current time.
func (s *GoGitStore) WriteCommit(tree plumbing.Hash, parents []plumbing.Hash, message string, authorName, authorEmail string) (plumbing.Hash, error) {
	if authorName == "" {
		authorName = "jin"
	}
	if authorEmail == "" {
		authorEmail = "jin@localhost"
	}
	sig := object.Signature{Name: authorName, Email: authorEmail, When: time.Now()}

	commit := &object.Commit{
		Author:       sig,
		Committer:    sig,
		Message:      message,
		TreeHash:     tree,
		ParentHashes: append([]plumbing.Hash(nil), parents...),
	}

	obj := s.storage.NewEncodedObject()
	obj.SetType(plumbing.CommitObject)
	if err := commit.Encode(obj); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("%w: encode commit: %v", jinerr.ErrObjectStore, err)
	}
	hash, err := s.storage.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("%w: store commit: %v", jinerr.ErrObjectStore, err)
	}
	return hash, nil
}

// ReadCommitTree returns the tree hash a commit object points at.
func (s *GoGitStore) ReadCommitTree(hash plumbing.Hash) (plumbing.Hash, error) {
	obj, err := s.storage.EncodedObject(plumbing.CommitObject, hash)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("%w: read commit %s: %v", jinerr.ErrObjectStore, hash, err)
	}
	commit := &object.Commit{}
	if err := commit.Decode(obj); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("%w: decode commit %s: %v", jinerr.ErrObjectStore, hash, err)
	}
	return commit.TreeHash, nil
}

// ReadRef returns the current target of the named ref. The second return
// value is false if the ref does not exist (not an error).
func (s *GoGitStore) ReadRef(name string) (plumbing.Hash, bool, error) {
	ref, err := s.storage.Reference(plumbing.ReferenceName(name))
	if err != nil {
		if err == plumbing.ErrReferenceNotFound {
			return plumbing.ZeroHash, false, nil
		}
		return plumbing.ZeroHash, false, fmt.Errorf("%w: read ref %s: %v", jinerr.ErrObjectStore, name, err)
	}
	return ref.Hash(), true, nil
}

// refApplied records one successfully-applied update, enough to undo it.
type refApplied struct {
	name string
	old  *plumbing.Reference // nil if the ref did not exist before
}

// UpdateRefsAtomic applies every update in batch as a sequence of
// compare-and-swap ref writes, checked against each update's caller-supplied
// Old/OldExists rather than whatever the ref happens to read as right now —
// that is what makes this the engine's single serialization point: a ref
// that moved since the caller last read it fails the whole batch with
// ErrCommitConflict instead of silently swapping in on top of someone
// else's commit. go-git has no cross-ref transaction primitive, so on the
// first failure every ref already swapped in this batch is rolled back to
// its prior value (or removed, if it didn't exist before), leaving the
// store as if the whole batch had never been attempted. The underlying
// objects (blobs/trees/commits) written before the call are left in place
// on failure; they are unreferenced and harmless.
func (s *GoGitStore) UpdateRefsAtomic(batch []RefUpdate) error {
	var applied []refApplied

	rollback := func() {
		for i := len(applied) - 1; i >= 0; i-- {
			a := applied[i]
			name := plumbing.ReferenceName(a.name)
			if a.old == nil {
				_ = s.storage.RemoveReference(name)
				continue
			}
			current, err := s.storage.Reference(name)
			if err != nil {
				continue
			}
			_ = s.storage.CheckAndSetReference(a.old, current)
		}
	}

	for _, u := range batch {
		refName := plumbing.ReferenceName(u.Name)
		current, err := s.storage.Reference(refName)
		if err != nil {
			if err != plumbing.ErrReferenceNotFound {
				rollback()
				return fmt.Errorf("%w: read ref %s: %v", jinerr.ErrObjectStore, u.Name, err)
			}
			current = nil
		}

		if u.OldExists {
			if current == nil || current.Hash() != u.Old {
				rollback()
				return fmt.Errorf("%w: ref %s changed concurrently", jinerr.ErrCommitConflict, u.Name)
			}
		} else if current != nil {
			rollback()
			return fmt.Errorf("%w: ref %s changed concurrently", jinerr.ErrCommitConflict, u.Name)
		}

		newRef := plumbing.NewHashReference(refName, u.New)
		if err := s.storage.CheckAndSetReference(newRef, current); err != nil {
			rollback()
			return fmt.Errorf("%w: ref %s changed concurrently", jinerr.ErrCommitConflict, u.Name)
		}
		applied = append(applied, refApplied{name: u.Name, old: current})
	}
	return nil
}

// ReadTree returns the immediate entries of the tree at hash. Nested
// directories are returned as entries with IsDir() true; callers recurse
// by calling ReadTree again on their Hash.
func (s *GoGitStore) ReadTree(hash plumbing.Hash) ([]TreeEntry, error) {
	obj, err := s.storage.EncodedObject(plumbing.TreeObject, hash)
	if err != nil {
		return nil, fmt.Errorf("%w: read tree %s: %v", jinerr.ErrObjectStore, hash, err)
	}
	tree := &object.Tree{}
	if err := tree.Decode(obj); err != nil {
		return nil, fmt.Errorf("%w: decode tree %s: %v", jinerr.ErrObjectStore, hash, err)
	}

	out := make([]TreeEntry, 0, len(tree.Entries))
	for _, e := range tree.Entries {
		out = append(out, TreeEntry{Name: e.Name, Mode: e.Mode, Hash: e.Hash})
	}
	return out, nil
}

// ListRefs returns every ref whose name starts with prefix.
func (s *GoGitStore) ListRefs(prefix string) ([]string, error) {
	iter, err := s.storage.IterReferences()
	if err != nil {
		return nil, fmt.Errorf("%w: iterate refs: %v", jinerr.ErrObjectStore, err)
	}
	defer iter.Close()

	var out []string
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		name := string(ref.Name())
		if strings.HasPrefix(name, prefix) {
			out = append(out, name)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: iterate refs: %v", jinerr.ErrObjectStore, err)
	}
	return out, nil
}
