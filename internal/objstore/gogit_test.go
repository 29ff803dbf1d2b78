package objstore

import (
	"errors"
	"testing"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"

	"github.com/dabstractor/jin/internal/jinerr"
)

func openStore(t *testing.T) *GoGitStore {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func TestWriteAndReadBlob(t *testing.T) {
	s := openStore(t)
	hash, err := s.WriteBlob([]byte("hello world"))
	if err != nil {
		t.Fatalf("WriteBlob: %v", err)
	}
	got, err := s.ReadBlob(hash)
	if err != nil {
		t.Fatalf("ReadBlob: %v", err)
	}
	if string(got) != "hello world" {
		t.Errorf("content = %q, want %q", got, "hello world")
	}
}

func TestWriteBlobIsContentAddressed(t *testing.T) {
	s := openStore(t)
	a, err := s.WriteBlob([]byte("same"))
	if err != nil {
		t.Fatalf("WriteBlob: %v", err)
	}
	b, err := s.WriteBlob([]byte("same"))
	if err != nil {
		t.Fatalf("WriteBlob: %v", err)
	}
	if a != b {
		t.Errorf("identical content produced different hashes: %s vs %s", a, b)
	}
}

func TestWriteTreeNestedAndReadBack(t *testing.T) {
	s := openStore(t)
	blobHash, err := s.WriteBlob([]byte("content"))
	if err != nil {
		t.Fatalf("WriteBlob: %v", err)
	}

	treeHash, err := s.WriteTree([]TreeEntry{
		{Name: "top.txt", Mode: filemode.Regular, Hash: blobHash},
		{Name: "nested/deep/file.txt", Mode: filemode.Regular, Hash: blobHash},
	})
	if err != nil {
		t.Fatalf("WriteTree: %v", err)
	}

	entries, err := s.ReadTree(treeHash)
	if err != nil {
		t.Fatalf("ReadTree: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d root entries, want 2", len(entries))
	}

	var nested TreeEntry
	for _, e := range entries {
		if e.Name == "nested" {
			nested = e
		}
	}
	if !nested.IsDir() {
		t.Fatal("expected 'nested' entry to be a directory")
	}

	deepEntries, err := s.ReadTree(nested.Hash)
	if err != nil {
		t.Fatalf("ReadTree(nested): %v", err)
	}
	if len(deepEntries) != 1 || deepEntries[0].Name != "deep" {
		t.Fatalf("deepEntries = %+v, want single 'deep' dir entry", deepEntries)
	}
}

func TestWriteCommitAndReadCommitTree(t *testing.T) {
	s := openStore(t)
	blobHash, err := s.WriteBlob([]byte("x"))
	if err != nil {
		t.Fatalf("WriteBlob: %v", err)
	}
	treeHash, err := s.WriteTree([]TreeEntry{{Name: "a.txt", Mode: filemode.Regular, Hash: blobHash}})
	if err != nil {
		t.Fatalf("WriteTree: %v", err)
	}
	commitHash, err := s.WriteCommit(treeHash, nil, "initial", "tester", "tester@example.com")
	if err != nil {
		t.Fatalf("WriteCommit: %v", err)
	}

	gotTree, err := s.ReadCommitTree(commitHash)
	if err != nil {
		t.Fatalf("ReadCommitTree: %v", err)
	}
	if gotTree != treeHash {
		t.Errorf("ReadCommitTree = %s, want %s", gotTree, treeHash)
	}
}

func TestReadRefMissingIsNotAnError(t *testing.T) {
	s := openStore(t)
	_, ok, err := s.ReadRef("refs/jin/layers/global")
	if err != nil {
		t.Fatalf("ReadRef: %v", err)
	}
	if ok {
		t.Error("expected ok=false for a ref that was never set")
	}
}

func TestUpdateRefsAtomicAppliesBatch(t *testing.T) {
	s := openStore(t)
	blobHash, _ := s.WriteBlob([]byte("x"))
	treeHash, _ := s.WriteTree([]TreeEntry{{Name: "a.txt", Mode: filemode.Regular, Hash: blobHash}})
	commitHash, _ := s.WriteCommit(treeHash, nil, "c1", "t", "t@example.com")

	err := s.UpdateRefsAtomic([]RefUpdate{
		{Name: "refs/jin/layers/global", New: commitHash},
		{Name: "refs/jin/layers/user-local", New: commitHash},
	})
	if err != nil {
		t.Fatalf("UpdateRefsAtomic: %v", err)
	}

	for _, name := range []string{"refs/jin/layers/global", "refs/jin/layers/user-local"} {
		got, ok, err := s.ReadRef(name)
		if err != nil || !ok {
			t.Fatalf("ReadRef(%s) = %v, %v, %v", name, got, ok, err)
		}
		if got != commitHash {
			t.Errorf("ReadRef(%s) = %s, want %s", name, got, commitHash)
		}
	}
}

func TestUpdateRefsAtomicRollsBackOnFailure(t *testing.T) {
	s := openStore(t)
	blobHash, _ := s.WriteBlob([]byte("x"))
	treeHash, _ := s.WriteTree([]TreeEntry{{Name: "a.txt", Mode: filemode.Regular, Hash: blobHash}})
	first, _ := s.WriteCommit(treeHash, nil, "c1", "t", "t@example.com")

	if err := s.UpdateRefsAtomic([]RefUpdate{{Name: "refs/jin/layers/scope/vim", New: first}}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	before, _, _ := s.ReadRef("refs/jin/layers/scope/vim")

	second, _ := s.WriteCommit(treeHash, []plumbing.Hash{first}, "c2", "t", "t@example.com")

	// The first update in this batch would succeed; the second names a ref
	// path containing a NUL byte, which the filesystem backend cannot
	// create, so the first must be rolled back rather than left half-applied.
	err := s.UpdateRefsAtomic([]RefUpdate{
		{Name: "refs/jin/layers/scope/vim", Old: first, OldExists: true, New: second},
		{Name: "refs/jin/layers/\x00bad", New: second},
	})
	if err == nil {
		t.Fatal("expected an error from an invalid ref name")
	}
	if !errors.Is(err, jinerr.ErrObjectStore) && !errors.Is(err, jinerr.ErrCommitConflict) {
		t.Fatalf("unexpected error kind: %v", err)
	}

	after, ok, rerr := s.ReadRef("refs/jin/layers/scope/vim")
	if rerr != nil || !ok {
		t.Fatalf("ReadRef after rollback: %v, %v, %v", after, ok, rerr)
	}
	if after != before {
		t.Errorf("ref was not rolled back: before=%s after=%s", before, after)
	}
}

func TestUpdateRefsAtomicRejectsStaleOldValue(t *testing.T) {
	s := openStore(t)
	blobHash, _ := s.WriteBlob([]byte("x"))
	treeHash, _ := s.WriteTree([]TreeEntry{{Name: "a.txt", Mode: filemode.Regular, Hash: blobHash}})
	first, _ := s.WriteCommit(treeHash, nil, "c1", "t", "t@example.com")

	if err := s.UpdateRefsAtomic([]RefUpdate{{Name: "refs/jin/layers/scope/vim", New: first}}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// Simulate a second process advancing the ref after this caller last
	// read it.
	second, _ := s.WriteCommit(treeHash, []plumbing.Hash{first}, "c2", "t", "t@example.com")
	if err := s.UpdateRefsAtomic([]RefUpdate{{Name: "refs/jin/layers/scope/vim", Old: first, OldExists: true, New: second}}); err != nil {
		t.Fatalf("advance ref: %v", err)
	}

	// This caller still believes the ref is at "first" (its stale read from
	// before the advance above) and tries to swap in a third commit built on
	// top of that stale value. The CAS must reject it rather than silently
	// overwriting the second process's commit.
	third, _ := s.WriteCommit(treeHash, []plumbing.Hash{first}, "c3-stale", "t", "t@example.com")
	err := s.UpdateRefsAtomic([]RefUpdate{{Name: "refs/jin/layers/scope/vim", Old: first, OldExists: true, New: third}})
	if !errors.Is(err, jinerr.ErrCommitConflict) {
		t.Fatalf("err = %v, want ErrCommitConflict", err)
	}

	got, ok, rerr := s.ReadRef("refs/jin/layers/scope/vim")
	if rerr != nil || !ok {
		t.Fatalf("ReadRef: %v, %v, %v", got, ok, rerr)
	}
	if got != second {
		t.Errorf("ref = %s, want it to still be at the second process's commit %s", got, second)
	}
}

func TestUpdateRefsAtomicRejectsCreateWhenRefAlreadyExists(t *testing.T) {
	s := openStore(t)
	blobHash, _ := s.WriteBlob([]byte("x"))
	treeHash, _ := s.WriteTree([]TreeEntry{{Name: "a.txt", Mode: filemode.Regular, Hash: blobHash}})
	first, _ := s.WriteCommit(treeHash, nil, "c1", "t", "t@example.com")

	if err := s.UpdateRefsAtomic([]RefUpdate{{Name: "refs/jin/layers/scope/vim", New: first}}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	second, _ := s.WriteCommit(treeHash, nil, "c2", "t", "t@example.com")
	// OldExists defaults to false, meaning "this ref must not exist yet" —
	// since it already does, this must fail rather than clobber it.
	err := s.UpdateRefsAtomic([]RefUpdate{{Name: "refs/jin/layers/scope/vim", New: second}})
	if !errors.Is(err, jinerr.ErrCommitConflict) {
		t.Fatalf("err = %v, want ErrCommitConflict", err)
	}
}

func TestListRefsFiltersByPrefix(t *testing.T) {
	s := openStore(t)
	blobHash, _ := s.WriteBlob([]byte("x"))
	treeHash, _ := s.WriteTree([]TreeEntry{{Name: "a.txt", Mode: filemode.Regular, Hash: blobHash}})
	commitHash, _ := s.WriteCommit(treeHash, nil, "c1", "t", "t@example.com")

	if err := s.UpdateRefsAtomic([]RefUpdate{
		{Name: "refs/jin/layers/global", New: commitHash},
		{Name: "refs/jin/other/thing", New: commitHash},
	}); err != nil {
		t.Fatalf("UpdateRefsAtomic: %v", err)
	}

	refs, err := s.ListRefs("refs/jin/layers/")
	if err != nil {
		t.Fatalf("ListRefs: %v", err)
	}
	if len(refs) != 1 || refs[0] != "refs/jin/layers/global" {
		t.Fatalf("ListRefs = %v, want [refs/jin/layers/global]", refs)
	}
}
