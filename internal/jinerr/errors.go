// Package jinerr defines the typed error taxonomy shared by every layer of
// the engine: staging, commit, apply, reset, move, and repair all wrap one
// of these sentinels rather than returning ad-hoc strings, so callers can
// classify failures with errors.Is regardless of which component raised
// them.
package jinerr

import "errors"

// Sentinel errors. Wrap with fmt.Errorf("...: %w", ErrX) to add context;
// check with errors.Is.
var (
	// ErrNotInitialized is returned when an operation requires an
	// initialized project but .jin/context could not be found.
	ErrNotInitialized = errors.New("jin: project not initialized")

	// ErrAlreadyInitialized is returned by init on a project that already
	// has a control directory.
	ErrAlreadyInitialized = errors.New("jin: project already initialized")

	// ErrMissingMode is returned when a compound layer requires an active
	// mode but none is set.
	ErrMissingMode = errors.New("jin: no active mode")

	// ErrMissingScope is returned when a compound layer requires an active
	// scope but none is set.
	ErrMissingScope = errors.New("jin: no active scope")

	// ErrMissingProject is returned when a compound layer requires a
	// project name but none is available.
	ErrMissingProject = errors.New("jin: no active project")

	// ErrInvalidLayerFlags is returned when a command's layer-routing
	// flags (--mode/--scope/--project/--global/--local) are combined in a
	// way the routing rules forbid.
	ErrInvalidLayerFlags = errors.New("jin: invalid layer flag combination")

	// ErrUnknownLayer is returned when a layer name or kind cannot be
	// resolved to one of the nine known variants.
	ErrUnknownLayer = errors.New("jin: unknown layer")

	// ErrUnknownMode is returned when a named mode does not exist.
	ErrUnknownMode = errors.New("jin: unknown mode")

	// ErrUnknownScope is returned when a named scope does not exist.
	ErrUnknownScope = errors.New("jin: unknown scope")

	// ErrPathNotFound is returned when an operation references a
	// workspace path that does not exist.
	ErrPathNotFound = errors.New("jin: path not found")

	// ErrPathNotStaged is returned when an operation requires a path to
	// already be staged (e.g. mv) but it is not.
	ErrPathNotStaged = errors.New("jin: path not staged")

	// ErrPathAlreadyStaged is returned when mv's destination is already
	// present in the staging index.
	ErrPathAlreadyStaged = errors.New("jin: destination path already staged")

	// ErrStagingCorrupt is returned when the staging index fails its
	// checksum/version check on load. Recoverable via repair.
	ErrStagingCorrupt = errors.New("jin: staging index is corrupt (run 'jin repair')")

	// ErrEmptyCommit is returned by the commit engine when staging is
	// empty and the caller did not opt into an empty commit.
	ErrEmptyCommit = errors.New("jin: nothing staged to commit")

	// ErrCommitConflict is returned when a ref's compare-and-swap lost a
	// race with a concurrent writer.
	ErrCommitConflict = errors.New("jin: commit conflict (ref changed concurrently)")

	// ErrApplyDetached names the apply-specific detached-workspace
	// condition. Apply itself reports a detached workspace with
	// ErrWorkspaceDetached, so no engine operation returns this sentinel.
	ErrApplyDetached = errors.New("jin: workspace is detached, refusing to apply")

	// ErrApplyPaused is a sentinel "success with conflicts" result: apply
	// completed everything it safely could and left the rest for resolve.
	ErrApplyPaused = errors.New("jin: apply paused with unresolved conflicts")

	// ErrNoPausedApply is returned by resolve when there is no in-flight
	// paused apply to act on.
	ErrNoPausedApply = errors.New("jin: no paused apply in progress")

	// ErrNotInConflict is returned by resolve when a requested path is
	// not among the paused apply's conflict_files.
	ErrNotInConflict = errors.New("jin: path is not in conflict")

	// ErrUnresolvedMarkers is returned by resolve when a .jinmerge file
	// still contains diff3 conflict markers.
	ErrUnresolvedMarkers = errors.New("jin: conflict markers remain unresolved")

	// ErrWorkspaceDetached is returned by apply and reset --hard (both
	// through Apply's attachment guard, which --force skips) when the
	// workspace has diverged from the recorded metadata and no force flag
	// was given.
	ErrWorkspaceDetached = errors.New("jin: workspace detached from last-applied view")

	// ErrLocked is returned when the per-project advisory lock is held
	// by another process.
	ErrLocked = errors.New("jin: project is locked by another jin process")

	// ErrIO wraps filesystem failures not otherwise classified.
	ErrIO = errors.New("jin: I/O error")

	// ErrObjectStore wraps object store failures (blob/tree/commit/ref
	// write or read failures, CAS mismatches, missing objects).
	ErrObjectStore = errors.New("jin: object store error")
)

// IsUserActionRequired reports whether err represents a condition that a
// human must resolve (conflicts, ambiguous context) rather than one the
// caller can retry or recover from automatically.
func IsUserActionRequired(err error) bool {
	switch {
	case errors.Is(err, ErrApplyPaused),
		errors.Is(err, ErrUnresolvedMarkers),
		errors.Is(err, ErrWorkspaceDetached),
		errors.Is(err, ErrNotInConflict):
		return true
	default:
		return false
	}
}

// IsRetryable reports whether err is likely transient and may succeed if
// the same operation is attempted again without any user intervention.
func IsRetryable(err error) bool {
	switch {
	case errors.Is(err, ErrCommitConflict), errors.Is(err, ErrLocked):
		return true
	default:
		return false
	}
}

// Hint returns a one-line remediation hint for user-facing error messages,
// or the empty string if none applies.
func Hint(err error) string {
	switch {
	case errors.Is(err, ErrStagingCorrupt):
		return "run 'jin repair' to rebuild the staging index"
	case errors.Is(err, ErrApplyPaused):
		return "run 'jin resolve <path>...' to finish the apply"
	case errors.Is(err, ErrWorkspaceDetached):
		return "re-run with --force to discard the detached workspace, or 'jin apply' first"
	case errors.Is(err, ErrNotInitialized):
		return "run 'jin init' first"
	case errors.Is(err, ErrCommitConflict):
		return "retry the commit; another process advanced a layer ref"
	default:
		return ""
	}
}
