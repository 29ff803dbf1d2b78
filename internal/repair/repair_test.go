package repair

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dabstractor/jin/internal/objstore"
	"github.com/dabstractor/jin/internal/project"
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

func TestRunOnFreshProjectReportsEveryCheck(t *testing.T) {
	store, root, jinDir := setupStore(t)
	ctx := project.Context{ActiveProject: "proj"}

	report, err := Run(store, ctx, root, jinDir, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	names := map[string]bool{}
	for _, c := range report.Checks {
		names[c.Name] = true
	}
	for _, want := range []string{"repo-structure", "layer-refs", "staging-index", "jinmap", "workspace-metadata", "project-context", "attachment"} {
		if !names[want] {
			t.Errorf("expected a %q check in the report", want)
		}
	}
}

func TestRunCheckOnlyRunsOnlyAttachment(t *testing.T) {
	store, root, jinDir := setupStore(t)
	ctx := project.Context{ActiveProject: "proj"}

	report, err := Run(store, ctx, root, jinDir, Options{CheckOnly: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Checks) != 1 || report.Checks[0].Name != "attachment" {
		t.Fatalf("Checks = %+v, want exactly [attachment]", report.Checks)
	}
}

func TestCheckProjectContextMissingWithoutDryRunIsNotAutoCreated(t *testing.T) {
	root := t.TempDir()
	c := checkProjectContext(root, false)
	if c.OK {
		t.Error("expected missing project context to be reported not-OK")
	}
	if c.Fixed {
		t.Error("project context is never auto-created; Fixed must stay false")
	}
}

func TestCheckProjectContextPresent(t *testing.T) {
	root := t.TempDir()
	if _, err := project.Init(root, "proj"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	c := checkProjectContext(root, false)
	if !c.OK {
		t.Errorf("expected OK for an initialized project context, got %+v", c)
	}
}

func TestCheckStagingMissingReportsOK(t *testing.T) {
	jinDir := t.TempDir()
	c := checkStaging(jinDir, false)
	// A missing staging index loads as an empty index without error
	// (staging.Load treats absence as empty), so this check reports OK.
	if !c.OK {
		t.Errorf("expected OK for a missing staging index, got %+v", c)
	}
}

func TestCheckJinMapEmptyStoreIsOK(t *testing.T) {
	store, _, jinDir := setupStore(t)
	ctx := project.Context{ActiveProject: "proj"}

	c := checkJinMap(store, ctx, jinDir, false)
	if !c.OK {
		t.Errorf("expected an empty store's jinmap check to be OK (0 == 0), got %+v", c)
	}
}

func TestJinMapRebuildCountsCommittedEntries(t *testing.T) {
	store, _, jinDir := setupStore(t)
	ctx := project.Context{ActiveProject: "proj"}

	m, err := OpenJinMap(jinDir)
	if err != nil {
		t.Fatalf("OpenJinMap: %v", err)
	}
	defer m.Close()

	n, err := Rebuild(store, ctx, m)
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if n != 0 {
		t.Errorf("Rebuild count = %d, want 0 for an empty store", n)
	}

	count, err := m.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 0 {
		t.Errorf("Count = %d, want 0", count)
	}
}

func TestRunRespectsDryRunOnStaleChecks(t *testing.T) {
	store, root, jinDir := setupStore(t)
	ctx := project.Context{ActiveProject: "proj"}

	report, err := Run(store, ctx, root, jinDir, Options{DryRun: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, c := range report.Checks {
		if c.Fixed {
			t.Errorf("check %q reported Fixed=true under DryRun", c.Name)
		}
	}
}
