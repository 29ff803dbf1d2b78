// Package layer implements the Layer Registry: the nine-variant closed
// enum of configuration layers, their precedence order, their ref-path
// computation, and the flag-combination validation rules that every
// layer-routing command (add, mv, reset) shares. All dispatch is
// table-driven — no subclassing, no per-variant switch statements spread
// across the codebase.
package layer

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dabstractor/jin/internal/jinerr"
	"github.com/dabstractor/jin/internal/project"
)

// Kind identifies one of the nine layer variants, ordered by descending
// precedence: Kind 0 wins over Kind 1, which wins over Kind 2, and so on.
// This ordering is the single source of truth consumed by apply, registry
// enumeration, and reset targeting — nothing re-derives it independently.
type Kind int

const (
	WorkspaceActive Kind = iota
	UserLocal
	ProjectBase
	ModeProject
	ModeScopeProject
	ScopeBase
	ModeScope
	ModeBase
	GlobalBase

	numKinds
)

// String returns the canonical lowercase-hyphenated name of the layer.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(descriptors) {
		return "unknown"
	}
	return descriptors[k].name
}

// descriptor captures everything table-driven dispatch needs for one
// layer variant.
type descriptor struct {
	name        string
	needsMode   bool
	needsScope  bool
	needsProj   bool
	refTemplate string // %m = mode, %s = scope, %p = project
}

// descriptors is indexed by Kind and is the single precedence table.
var descriptors = [numKinds]descriptor{
	WorkspaceActive:  {name: "workspace-active"},
	UserLocal:        {name: "user-local", refTemplate: "refs/jin/layers/user-local"},
	ProjectBase:      {name: "project-base", needsProj: true, refTemplate: "refs/jin/layers/project/%p"},
	ModeProject:      {name: "mode-project", needsMode: true, needsProj: true, refTemplate: "refs/jin/layers/mode/%m/project/%p"},
	ModeScopeProject: {name: "mode-scope-project", needsMode: true, needsScope: true, needsProj: true, refTemplate: "refs/jin/layers/mode/%m/scope/%s/project/%p"},
	ScopeBase:        {name: "scope-base", needsScope: true, refTemplate: "refs/jin/layers/scope/%s"},
	ModeScope:        {name: "mode-scope", needsMode: true, needsScope: true, refTemplate: "refs/jin/layers/mode/%m/scope/%s"},
	ModeBase:         {name: "mode-base", needsMode: true, refTemplate: "refs/jin/layers/mode/%m"},
	GlobalBase:       {name: "global-base", refTemplate: "refs/jin/layers/global"},
}

// All returns every Kind in descending-precedence order (index 0 = highest).
func All() []Kind {
	kinds := make([]Kind, 0, numKinds)
	for k := Kind(0); k < numKinds; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

// PrecedenceAscending returns every committable layer (WorkspaceActive
// excluded, it is derived, never a ref) in ascending precedence order —
// lowest wins least, highest wins most — which is the order apply must
// walk so later entries overwrite earlier ones.
func PrecedenceAscending() []Kind {
	committable := make([]Kind, 0, numKinds-1)
	for k := numKinds - 1; k >= 1; k-- {
		committable = append(committable, k)
	}
	return committable
}

// ByName resolves a layer's canonical name back to its Kind.
func ByName(name string) (Kind, error) {
	for k, d := range descriptors {
		if d.name == name {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", jinerr.ErrUnknownLayer, name)
}

var (
	nameRE  = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	scopeRE = regexp.MustCompile(`^[A-Za-z0-9_-]+(:[A-Za-z0-9_-]+)?$`)
)

// ValidateModeName validates a mode or project name per §4.B.
func ValidateModeName(name string) error {
	if !nameRE.MatchString(name) {
		return fmt.Errorf("%w: name %q must match [A-Za-z0-9_-]+", jinerr.ErrInvalidLayerFlags, name)
	}
	return nil
}

// ValidateScopeName validates a scope name, which additionally permits a
// single ':' separator (e.g. "config:vim").
func ValidateScopeName(name string) error {
	if !scopeRE.MatchString(name) {
		return fmt.Errorf("%w: scope name %q must match [A-Za-z0-9_-]+(:[A-Za-z0-9_-]+)?", jinerr.ErrInvalidLayerFlags, name)
	}
	return nil
}

// RefPath computes the ref path for k under the given active context.
func RefPath(k Kind, ctx project.Context) (string, error) {
	d := descriptors[k]
	if k == WorkspaceActive {
		return "", fmt.Errorf("%w: workspace-active is derived, it has no ref", jinerr.ErrUnknownLayer)
	}

	if d.needsMode && ctx.ActiveMode == nil {
		return "", fmt.Errorf("%w: layer %s requires an active mode", jinerr.ErrMissingMode, d.name)
	}
	if d.needsScope && ctx.ActiveScope == nil {
		return "", fmt.Errorf("%w: layer %s requires an active scope", jinerr.ErrMissingScope, d.name)
	}
	if d.needsProj && ctx.ActiveProject == "" {
		return "", fmt.Errorf("%w: layer %s requires a project name", jinerr.ErrMissingProject, d.name)
	}

	path := d.refTemplate
	if d.needsMode {
		path = strings.ReplaceAll(path, "%m", *ctx.ActiveMode)
	}
	if d.needsScope {
		path = strings.ReplaceAll(path, "%s", *ctx.ActiveScope)
	}
	if d.needsProj {
		path = strings.ReplaceAll(path, "%p", ctx.ActiveProject)
	}
	return path, nil
}

// Flags captures the raw layer-routing flags a command was invoked with.
// Exactly one resolved Kind (or an error) comes out of Resolve.
type Flags struct {
	Mode    bool
	Scope   bool
	Project bool
	Global  bool
	Local   bool
}

// Resolve implements invariant I7: --project requires an active mode;
// user-local/global-base routing forbids mode/scope/project flags; exactly
// one routing flag combination must be selected.
func Resolve(f Flags, ctx project.Context) (Kind, error) {
	set := 0
	if f.Mode {
		set++
	}
	if f.Scope {
		set++
	}
	if f.Global {
		set++
	}
	if f.Local {
		set++
	}
	if f.Global && (f.Mode || f.Scope || f.Project || f.Local) {
		return 0, fmt.Errorf("%w: --global cannot combine with --mode/--scope/--project/--local", jinerr.ErrInvalidLayerFlags)
	}
	if f.Local && (f.Mode || f.Scope || f.Project || f.Global) {
		return 0, fmt.Errorf("%w: --local cannot combine with --mode/--scope/--project/--global", jinerr.ErrInvalidLayerFlags)
	}
	// I7: --project routing requires an active mode flag alongside it; it
	// never stands alone (the no-flags-at-all default already means
	// project-base).
	if f.Project && !f.Mode {
		return 0, fmt.Errorf("%w: --project requires --mode", jinerr.ErrInvalidLayerFlags)
	}

	switch {
	case f.Global:
		return GlobalBase, nil
	case f.Local:
		return UserLocal, nil
	case f.Mode && f.Scope && f.Project:
		return ModeScopeProject, nil
	case f.Mode && f.Project:
		return ModeProject, nil
	case f.Mode && f.Scope:
		return ModeScope, nil
	case f.Mode:
		return ModeBase, nil
	case f.Scope:
		return ScopeBase, nil
	case set == 0:
		return ProjectBase, nil
	default:
		return 0, fmt.Errorf("%w: unrecognized flag combination", jinerr.ErrInvalidLayerFlags)
	}
}

// RefEnumerator is the minimal capability the Layer Registry needs from the
// Object Store Adapter to discover which layer refs currently exist.
type RefEnumerator interface {
	ListRefs(prefix string) ([]string, error)
}

// ExistingRef pairs a resolved Kind with the ref path that was found to
// exist in the object store.
type ExistingRef struct {
	Kind Kind
	Path string
}

// ListExisting enumerates every layer ref currently present in the object
// store, used by the read-only `layers`, `modes` and `scopes` commands and
// by apply and repair.
func ListExisting(store RefEnumerator) ([]ExistingRef, error) {
	refs, err := store.ListRefs("refs/jin/layers/")
	if err != nil {
		return nil, fmt.Errorf("%w: enumerate layer refs: %v", jinerr.ErrObjectStore, err)
	}

	var out []ExistingRef
	for _, r := range refs {
		k, ok := classify(r)
		if !ok {
			continue
		}
		out = append(out, ExistingRef{Kind: k, Path: r})
	}
	return out, nil
}

// classify maps a concrete ref path back to its Kind by shape, since the
// embedded mode/scope/project names make an exact-string table impossible.
// Mode/project/scope names never contain '/', so everything after the
// mode name is an unambiguous subtype marker.
func classify(ref string) (Kind, bool) {
	switch {
	case ref == "refs/jin/layers/global":
		return GlobalBase, true
	case ref == "refs/jin/layers/user-local":
		return UserLocal, true
	case strings.HasPrefix(ref, "refs/jin/layers/project/"):
		return ProjectBase, true
	case strings.HasPrefix(ref, "refs/jin/layers/scope/"):
		return ScopeBase, true
	case strings.HasPrefix(ref, "refs/jin/layers/mode/"):
		rest := strings.TrimPrefix(ref, "refs/jin/layers/mode/")
		segs := strings.SplitN(rest, "/", 2)
		if len(segs) == 1 {
			return ModeBase, true
		}
		switch {
		case strings.HasPrefix(segs[1], "scope/") && strings.Contains(segs[1], "/project/"):
			return ModeScopeProject, true
		case strings.HasPrefix(segs[1], "scope/"):
			return ModeScope, true
		case strings.HasPrefix(segs[1], "project/"):
			return ModeProject, true
		default:
			return 0, false
		}
	default:
		return 0, false
	}
}
