package apply

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dabstractor/jin/internal/commitengine"
	"github.com/dabstractor/jin/internal/config"
	"github.com/dabstractor/jin/internal/jinerr"
	"github.com/dabstractor/jin/internal/layer"
	"github.com/dabstractor/jin/internal/objstore"
	"github.com/dabstractor/jin/internal/project"
	"github.com/dabstractor/jin/internal/staging"
	"github.com/dabstractor/jin/internal/workspace"
)

func setupStore(t *testing.T) (*objstore.GoGitStore, string, string) {
	t.Helper()
	root := t.TempDir()
	jinDir := filepath.Join(root, ".jin")
	if err := os.MkdirAll(jinDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	store, err := objstore.Open(jinDir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return store, root, jinDir
}

func commitOneFile(t *testing.T, store objstore.Store, ctx project.Context, k layer.Kind, path, content string) {
	t.Helper()
	idx := staging.New()
	hash, err := store.WriteBlob([]byte(content))
	if err != nil {
		t.Fatalf("WriteBlob: %v", err)
	}
	if _, err := idx.Stage(k, path, hash.String(), ""); err != nil {
		t.Fatalf("Stage: %v", err)
	}
	cfg := &config.Config{AuthorName: "test", AuthorEmail: "test@example.com"}
	if _, err := commitengine.Commit(store, ctx, idx, cfg, "msg", false); err != nil {
		t.Fatalf("Commit: %v", err)
	}
}

func TestApplyWritesNewFileFromProjectBase(t *testing.T) {
	store, root, jinDir := setupStore(t)
	ctx := project.Context{ActiveProject: "proj"}
	commitOneFile(t, store, ctx, layer.ProjectBase, "a.txt", "hello")

	result, err := Apply(store, ctx, root, jinDir, Options{})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(result.Applied) != 1 || result.Applied[0] != "a.txt" {
		t.Fatalf("Applied = %v, want [a.txt]", result.Applied)
	}

	got, err := os.ReadFile(filepath.Join(root, "a.txt"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("content = %q, want hello", got)
	}

	meta, err := workspace.Load(jinDir)
	if err != nil {
		t.Fatalf("workspace.Load: %v", err)
	}
	if _, ok := meta.Get("a.txt"); !ok {
		t.Error("expected a.txt to be tracked in workspace metadata after apply")
	}
}

func TestApplySecondRunIsNoop(t *testing.T) {
	store, root, jinDir := setupStore(t)
	ctx := project.Context{ActiveProject: "proj"}
	commitOneFile(t, store, ctx, layer.ProjectBase, "a.txt", "hello")

	if _, err := Apply(store, ctx, root, jinDir, Options{}); err != nil {
		t.Fatalf("first Apply: %v", err)
	}
	result, err := Apply(store, ctx, root, jinDir, Options{})
	if err != nil {
		t.Fatalf("second Apply: %v", err)
	}
	if len(result.Applied) != 0 {
		t.Errorf("Applied = %v, want none on a no-op re-apply", result.Applied)
	}
	if len(result.Skipped) != 1 || result.Skipped[0] != "a.txt" {
		t.Errorf("Skipped = %v, want [a.txt]", result.Skipped)
	}
}

func TestApplyHigherPrecedenceLayerWins(t *testing.T) {
	store, root, jinDir := setupStore(t)
	mode := "work"
	ctx := project.Context{ActiveProject: "proj", ActiveMode: &mode}
	commitOneFile(t, store, ctx, layer.ProjectBase, "a.txt", "base version")
	commitOneFile(t, store, ctx, layer.ModeBase, "a.txt", "mode version")

	if _, err := Apply(store, ctx, root, jinDir, Options{}); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(root, "a.txt"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	// project-base outranks mode-base in the precedence table.
	if string(got) != "base version" {
		t.Errorf("content = %q, want base version", got)
	}
}

func TestApplyFastForwardsOnUpstreamChangeAfterUnmodifiedWorkspace(t *testing.T) {
	store, root, jinDir := setupStore(t)
	ctx := project.Context{ActiveProject: "proj"}
	commitOneFile(t, store, ctx, layer.ProjectBase, "a.txt", "v1")
	if _, err := Apply(store, ctx, root, jinDir, Options{}); err != nil {
		t.Fatalf("first Apply: %v", err)
	}

	commitOneFile(t, store, ctx, layer.ProjectBase, "a.txt", "v2")
	result, err := Apply(store, ctx, root, jinDir, Options{})
	if err != nil {
		t.Fatalf("second Apply: %v", err)
	}

	found := false
	for _, a := range result.Actions {
		if a.Path == "a.txt" && a.Kind == ActionFastForward {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a fast-forward action for a.txt, got %+v", result.Actions)
	}

	got, err := os.ReadFile(filepath.Join(root, "a.txt"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "v2" {
		t.Errorf("content = %q, want v2", got)
	}
}

func TestApplyDeletesFileNoLongerProvidedByAnyLayer(t *testing.T) {
	store, root, jinDir := setupStore(t)
	ctx := project.Context{ActiveProject: "proj"}
	commitOneFile(t, store, ctx, layer.ProjectBase, "a.txt", "v1")
	if _, err := Apply(store, ctx, root, jinDir, Options{}); err != nil {
		t.Fatalf("first Apply: %v", err)
	}

	// Stage a tombstone (empty BlobHash) and commit it, removing a.txt
	// from project-base's tree.
	idx := staging.New()
	if _, err := idx.Stage(layer.ProjectBase, "a.txt", "", ""); err != nil {
		t.Fatalf("Stage tombstone: %v", err)
	}
	cfg := &config.Config{AuthorName: "t", AuthorEmail: "t@example.com"}
	if _, err := commitengine.Commit(store, ctx, idx, cfg, "rm", false); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	result, err := Apply(store, ctx, root, jinDir, Options{})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	found := false
	for _, a := range result.Actions {
		if a.Path == "a.txt" && a.Kind == ActionDelete {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a delete action for a.txt, got %+v", result.Actions)
	}
	if _, err := os.Stat(filepath.Join(root, "a.txt")); !os.IsNotExist(err) {
		t.Errorf("expected a.txt to be removed from the workspace, stat err = %v", err)
	}
}

func TestApplyConflictingEditPausesWithJinmergeFile(t *testing.T) {
	store, root, jinDir := setupStore(t)
	ctx := project.Context{ActiveProject: "proj"}
	commitOneFile(t, store, ctx, layer.ProjectBase, "a.txt", "line1\nline2\nline3")
	if _, err := Apply(store, ctx, root, jinDir, Options{}); err != nil {
		t.Fatalf("first Apply: %v", err)
	}

	// Diverge the workspace copy and the upstream layer on the same line.
	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("line1\nOURS\nline3"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	commitOneFile(t, store, ctx, layer.ProjectBase, "a.txt", "line1\nTHEIRS\nline3")

	// The edited workspace is detached, so only a forced apply reaches the
	// three-way merge.
	_, err := Apply(store, ctx, root, jinDir, Options{Force: true})
	if !errors.Is(err, jinerr.ErrApplyPaused) {
		t.Fatalf("err = %v, want ErrApplyPaused", err)
	}

	conflictPath := filepath.Join(root, "a.txt.jinmerge")
	data, readErr := os.ReadFile(conflictPath)
	if readErr != nil {
		t.Fatalf("expected a .jinmerge conflict file: %v", readErr)
	}
	if !strings.Contains(string(data), "OURS") || !strings.Contains(string(data), "THEIRS") {
		t.Errorf(".jinmerge content missing conflict markers: %q", data)
	}

	if !pausedExists(jinDir) {
		t.Error("expected paused-apply state to be persisted")
	}
}

func pausedExists(jinDir string) bool {
	_, err := os.Stat(filepath.Join(jinDir, ".paused_apply.yaml"))
	return err == nil
}

func TestApplyRejectsDetachedWorkspaceWithoutForce(t *testing.T) {
	store, root, jinDir := setupStore(t)
	ctx := project.Context{ActiveProject: "proj"}
	commitOneFile(t, store, ctx, layer.ProjectBase, "a.txt", "v1")
	if _, err := Apply(store, ctx, root, jinDir, Options{}); err != nil {
		t.Fatalf("first Apply: %v", err)
	}

	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("edited outside jin"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	commitOneFile(t, store, ctx, layer.ProjectBase, "a.txt", "v2")

	_, err := Apply(store, ctx, root, jinDir, Options{})
	if err == nil {
		t.Fatal("expected an error for a detached workspace")
	}
}

func TestApplyDryRunMakesNoChanges(t *testing.T) {
	store, root, jinDir := setupStore(t)
	ctx := project.Context{ActiveProject: "proj"}
	commitOneFile(t, store, ctx, layer.ProjectBase, "a.txt", "hello")

	result, err := Apply(store, ctx, root, jinDir, Options{DryRun: true})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(result.Applied) != 1 {
		t.Fatalf("Applied = %v, want one planned action", result.Applied)
	}
	if _, err := os.Stat(filepath.Join(root, "a.txt")); !os.IsNotExist(err) {
		t.Error("dry-run should not have written a.txt to the workspace")
	}
	if _, err := os.Stat(filepath.Join(jinDir, "workspace_metadata.json")); !os.IsNotExist(err) {
		t.Error("dry-run should not have persisted workspace metadata")
	}
}
