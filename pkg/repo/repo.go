// Package repo implements the repository façade: opening and
// initializing the on-disk layout, wiring the object store, refs,
// index, and staging packages together, and exposing the session
// lifecycle and observation entry points the command layer drives.
package repo

import (
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/redisun/ctx/pkg/config"
	"github.com/redisun/ctx/pkg/index"
	"github.com/redisun/ctx/pkg/object"
	"github.com/redisun/ctx/pkg/refs"
	"github.com/redisun/ctx/pkg/staging"
)

// layoutDirName is the repository metadata directory's fixed name,
// analogous to ".git" or ".got".
const layoutDirName = ".ctx"

// Repo is an opened repository: the object store, refs, derived
// index, configuration, and (at most one) active session. Every
// mutating method requires the repository-wide advisory lock, which
// Open and Init hold for the lifetime of the handle.
type Repo struct {
	rootDir string
	ctxDir  string

	Objects *object.Store
	Refs    *refs.Store
	Index   *index.Index
	Config  config.Config
	Logger  *zap.Logger

	lock *refs.Lock

	session          *staging.Session
	lastRecovery     staging.RecoveryOutcome
	pendingStaleIdle int64

	ignore *ignoreMatcher
}

// RootDir returns the directory holding .ctx/: the path Init was
// given, or the directory Open found it in.
func (r *Repo) RootDir() string { return r.rootDir }

// CtxDir returns the repository metadata directory (<root>/.ctx).
func (r *Repo) CtxDir() string { return r.ctxDir }

func ctxPath(root string) string { return filepath.Join(root, layoutDirName) }

// ActiveSession returns the currently open session, or nil.
func (r *Repo) ActiveSession() *staging.Session { return r.session }

// LastRecovery reports what session recovery decided when this handle
// was opened.
func (r *Repo) LastRecovery() staging.RecoveryOutcome { return r.lastRecovery }

// Close releases the repository-wide advisory lock. A Repo must not be
// used after Close.
func (r *Repo) Close() error {
	if r.Index != nil {
		if err := r.Index.Close(); err != nil {
			r.lock.Release()
			return fmt.Errorf("close index: %w", err)
		}
	}
	r.lock.Release()
	return nil
}

// narrativeRoles are the fixed subdirectories under narrative/, one
// per NarrativeRef.Role, created at Init so the human-editable tree
// has a predictable shape from the start.
var narrativeRoles = []string{"overview", "decision", "log", "task", "work"}
