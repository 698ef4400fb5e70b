package repo

import (
	"errors"
	"fmt"

	"github.com/redisun/ctx/pkg/object"
)

// The façade translates every lower-layer error into one of these
// kinds before it reaches a caller, preserving the kind so a command
// layer can decide on rebuild/retry/abort without string matching.
var (
	// ErrObjectNotFound mirrors object.ErrNotFound at the façade layer.
	ErrObjectNotFound = object.ErrNotFound
	// ErrRefNotFound marks a required ref that was absent when an
	// operation needed it to exist.
	ErrRefNotFound = errors.New("ref not found")
	// ErrLockConflict marks a failed advisory lock acquisition.
	ErrLockConflict = errors.New("repository is locked by another process")
	// ErrIndexCorrupt marks a derived index read that failed in a way
	// only a rebuild can fix; the object store remains authoritative.
	ErrIndexCorrupt = errors.New("index corrupt, rebuild required")
	// ErrNoActiveSession marks an operation that requires a session but
	// none is open.
	ErrNoActiveSession = errors.New("no active session")
	// ErrStagingConflict marks a violation of the single-active-session
	// invariant: more than one staging ref found on open, or a second
	// StartSession. The STAGE file is rewritten from the staging ref
	// and is never compared against it.
	ErrStagingConflict = errors.New("staging conflict")
	// ErrCommitOrphan marks a commit whose parent is not present in the
	// store, indicating external corruption.
	ErrCommitOrphan = errors.New("commit parent missing")
	// ErrPathIgnored marks a path an observation entry point refused
	// because it matched a configured ingestion.ignore_globs pattern.
	ErrPathIgnored = errors.New("path is ignored by ingestion.ignore_globs")
)

// InvalidStateTransitionError wraps staging.ErrInvalidStateTransition
// with the façade-level operation name, so callers see which entry
// point rejected the transition.
type InvalidStateTransitionError struct {
	Op  string
	Err error
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *InvalidStateTransitionError) Unwrap() error { return e.Err }

// BudgetExceededError wraps a step-budget rejection (edge count, file
// count, byte count) with the op name and the configured cap.
type BudgetExceededError struct {
	Op  string
	Cap int
	Err error
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("%s: budget exceeded (cap %d): %v", e.Op, e.Cap, e.Err)
}

func (e *BudgetExceededError) Unwrap() error { return e.Err }
