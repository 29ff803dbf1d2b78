// Package repair implements the Repair/Validator: a sequence of invariant
// checks over the object store, staging index, workspace metadata,
// project context, and workspace attachment, with an optional fix pass.
package repair

import (
	"fmt"

	"github.com/dabstractor/jin/internal/jinerr"
	"github.com/dabstractor/jin/internal/layer"
	"github.com/dabstractor/jin/internal/objstore"
	"github.com/dabstractor/jin/internal/project"
	"github.com/dabstractor/jin/internal/staging"
	"github.com/dabstractor/jin/internal/workspace"
)

// Options configures one repair run.
type Options struct {
	// CheckOnly runs only the workspace attachment check and returns.
	CheckOnly bool
	// DryRun reports findings without applying any fixes.
	DryRun bool
}

// CheckResult is the outcome of one named check.
type CheckResult struct {
	Name    string
	OK      bool
	Detail  string
	Fixed   bool
}

// Report aggregates every check a run performed.
type Report struct {
	Checks []CheckResult
}

// Run executes, in order: repo structure, layer ref integrity, staging
// index parse, jinmap consistency, workspace metadata presence, project
// context presence, workspace attachment. With Options.CheckOnly, only the
// last check runs. With Options.DryRun, findings are reported without
// being fixed.
func Run(store objstore.Store, ctx project.Context, root, jinDir string, opts Options) (Report, error) {
	var report Report

	if opts.CheckOnly {
		report.Checks = append(report.Checks, checkAttachment(root, jinDir))
		return report, nil
	}

	report.Checks = append(report.Checks, checkRepoStructure(jinDir))
	report.Checks = append(report.Checks, checkLayerRefs(store))
	report.Checks = append(report.Checks, checkStaging(jinDir, opts.DryRun))
	report.Checks = append(report.Checks, checkJinMap(store, ctx, jinDir, opts.DryRun))
	report.Checks = append(report.Checks, checkWorkspaceMetadata(jinDir))
	report.Checks = append(report.Checks, checkProjectContext(root, opts.DryRun))
	report.Checks = append(report.Checks, checkAttachment(root, jinDir))

	return report, nil
}

func checkRepoStructure(jinDir string) CheckResult {
	if jinDir == "" {
		return CheckResult{Name: "repo-structure", OK: false, Detail: "no control directory configured"}
	}
	return CheckResult{Name: "repo-structure", OK: true}
}

func checkLayerRefs(store objstore.Store) CheckResult {
	refs, err := layer.ListExisting(store)
	if err != nil {
		return CheckResult{Name: "layer-refs", OK: false, Detail: err.Error()}
	}
	return CheckResult{Name: "layer-refs", OK: true, Detail: fmt.Sprintf("%d layer ref(s)", len(refs))}
}

func checkStaging(jinDir string, dryRun bool) CheckResult {
	idx, err := staging.Load(jinDir)
	if err == nil {
		return CheckResult{Name: "staging-index", OK: true}
	}
	if dryRun {
		return CheckResult{Name: "staging-index", OK: false, Detail: err.Error()}
	}

	fresh := staging.New()
	if saveErr := fresh.Save(jinDir); saveErr != nil {
		return CheckResult{Name: "staging-index", OK: false, Detail: saveErr.Error()}
	}
	_ = idx
	return CheckResult{Name: "staging-index", OK: false, Detail: err.Error(), Fixed: true}
}

func checkJinMap(store objstore.Store, ctx project.Context, jinDir string, dryRun bool) CheckResult {
	m, err := OpenJinMap(jinDir)
	if err != nil {
		return CheckResult{Name: "jinmap", OK: false, Detail: err.Error()}
	}
	defer m.Close()

	cached, err := m.Count()
	if err != nil {
		return CheckResult{Name: "jinmap", OK: false, Detail: err.Error()}
	}

	want := 0
	refs, err := layer.ListExisting(store)
	if err == nil {
		for _, ref := range refs {
			tip, ok, _ := store.ReadRef(ref.Path)
			if !ok {
				continue
			}
			treeHash, err := store.ReadCommitTree(tip)
			if err != nil {
				continue
			}
			flat := map[string]objstore.TreeEntry{}
			_ = flattenTree(store, treeHash, "", flat)
			want += len(flat)
		}
	}

	if cached == want {
		return CheckResult{Name: "jinmap", OK: true, Detail: fmt.Sprintf("%d entries", cached)}
	}
	if dryRun {
		return CheckResult{Name: "jinmap", OK: false, Detail: fmt.Sprintf("stale (%d cached, %d expected)", cached, want)}
	}

	n, err := Rebuild(store, ctx, m)
	if err != nil {
		return CheckResult{Name: "jinmap", OK: false, Detail: err.Error()}
	}
	return CheckResult{Name: "jinmap", OK: false, Detail: fmt.Sprintf("rebuilt %d entries", n), Fixed: true}
}

func checkWorkspaceMetadata(jinDir string) CheckResult {
	if _, err := workspace.Load(jinDir); err != nil {
		return CheckResult{Name: "workspace-metadata", OK: false, Detail: err.Error()}
	}
	return CheckResult{Name: "workspace-metadata", OK: true}
}

func checkProjectContext(root string, dryRun bool) CheckResult {
	if _, err := project.Load(root); err == nil {
		return CheckResult{Name: "project-context", OK: true}
	}
	if dryRun {
		return CheckResult{Name: "project-context", OK: false, Detail: "missing"}
	}
	return CheckResult{Name: "project-context", OK: false, Detail: "missing (not auto-created: no project name known)"}
}

func checkAttachment(root, jinDir string) CheckResult {
	meta, err := workspace.Load(jinDir)
	if err != nil {
		return CheckResult{Name: "attachment", OK: false, Detail: err.Error()}
	}
	status, offending, err := workspace.ValidateAttached(root, meta)
	if err != nil {
		return CheckResult{Name: "attachment", OK: false, Detail: err.Error()}
	}
	if status == workspace.Attached {
		return CheckResult{Name: "attachment", OK: true}
	}
	return CheckResult{Name: "attachment", OK: false, Detail: fmt.Sprintf("%v: %v", jinerr.ErrWorkspaceDetached, offending)}
}
