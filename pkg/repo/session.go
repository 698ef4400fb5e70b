package repo

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/redisun/ctx/pkg/object"
	"github.com/redisun/ctx/pkg/refs"
	"github.com/redisun/ctx/pkg/staging"
)

// stageFileName is the repository-root convenience pointer mirroring
// the sole active session's staging ref. The source this core was
// distilled from shows both a dedicated STAGE file and a ref under
// refs/; this implementation keeps refs/stage/<id> as the ref-layer
// mechanism (reused unmodified from pkg/staging, which already
// generalizes to more than one concurrently tracked chain) but
// enforces "exactly one active session" at the façade layer and keeps
// a literal <ctx>/STAGE file in lockstep with it, satisfying the
// bit-exact on-disk layout without a second ref-resolution path.
const stageFileName = "STAGE"

func stagePath(ctxDir string) string { return filepath.Join(ctxDir, stageFileName) }

func writeStageFile(ctxDir string, id object.ID) error {
	p := stagePath(ctxDir)
	tmp, err := os.CreateTemp(ctxDir, ".stage-tmp-*")
	if err != nil {
		return fmt.Errorf("write STAGE: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(string(id) + "\n"); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write STAGE: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write STAGE: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write STAGE: close: %w", err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write STAGE: rename: %w", err)
	}
	return nil
}

func removeStageFile(ctxDir string) error {
	err := os.Remove(stagePath(ctxDir))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove STAGE: %w", err)
	}
	return nil
}

var slugPattern = regexp.MustCompile(`[^a-zA-Z0-9]+`)

func newSessionID(task string) (string, error) {
	var suffix [4]byte
	if _, err := rand.Read(suffix[:]); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	slug := strings.Trim(slugPattern.ReplaceAllString(task, "-"), "-")
	if slug == "" {
		slug = "session"
	}
	if len(slug) > 40 {
		slug = slug[:40]
	}
	return fmt.Sprintf("%s-%s", slug, hex.EncodeToString(suffix[:])), nil
}

// recoverSession is called once from Open. Exactly one stage/<id> ref
// is expected; more than one means a previous façade version or a
// concurrent process violated the single-active-session invariant.
func (r *Repo) recoverSession() error {
	pointers, err := r.Refs.List(staging.RefPrefix())
	if err != nil {
		return err
	}
	if len(pointers) == 0 {
		r.lastRecovery = staging.RecoveryNone
		return removeStageFile(r.ctxDir)
	}
	if len(pointers) > 1 {
		return ErrStagingConflict
	}

	var sessionID string
	for name := range pointers {
		sessionID = strings.TrimPrefix(name, staging.RefPrefix())
	}

	canonicalHead, err := r.Refs.Get(refs.HeadRef)
	if err != nil {
		return err
	}
	outcome, err := staging.Recover(r.Objects, r.Refs, sessionID, canonicalHead)
	if err != nil {
		return err
	}
	r.lastRecovery = outcome

	switch outcome {
	case staging.RecoveryNone:
		return removeStageFile(r.ctxDir)
	case staging.RecoveryReset:
		return removeStageFile(r.ctxDir)
	case staging.RecoveryOK:
		session, err := staging.Open(r.Objects, r.Refs, sessionID, canonicalHead)
		if err != nil {
			return err
		}
		r.session = session
		if session.Head() != "" {
			if err := writeStageFile(r.ctxDir, session.Head()); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("recover session: unknown outcome %v", outcome)
	}
}

// StartSession opens a new session against the current canonical
// head. Only one session may be active at a time; starting a second
// one before the first compacts or aborts fails with
// ErrStagingConflict.
func (r *Repo) StartSession(task string) (*staging.Session, error) {
	if r.session != nil {
		return nil, ErrStagingConflict
	}
	canonicalHead, err := r.Refs.Get(refs.HeadRef)
	if err != nil {
		return nil, err
	}
	sessionID, err := newSessionID(task)
	if err != nil {
		return nil, err
	}
	session, err := staging.Open(r.Objects, r.Refs, sessionID, canonicalHead)
	if err != nil {
		return nil, err
	}
	r.session = session
	return session, nil
}

// SetState applies a session-state transition to the active session's
// in-memory state. The transition is only durable once
// FlushActiveSession is called.
func (r *Repo) SetState(event staging.Event, payload staging.State) error {
	if r.session == nil {
		return ErrNoActiveSession
	}
	if err := r.session.ApplyEvent(event, payload); err != nil {
		return &InvalidStateTransitionError{Op: "set_state", Err: err}
	}
	return nil
}

// FlushActiveSession writes one work-commit from the session's
// buffered artifacts and advances the staging pointer and its STAGE
// mirror. Flushing with an empty buffer and unchanged state is a
// no-op.
func (r *Repo) FlushActiveSession(stepKind string, now int64) (object.ID, error) {
	if r.session == nil {
		return "", ErrNoActiveSession
	}
	head, err := r.session.Flush(stepKind, now)
	if err != nil {
		return "", err
	}
	if head == "" {
		return head, nil
	}
	if err := writeStageFile(r.ctxDir, head); err != nil {
		return "", err
	}
	return head, nil
}

// AbortSession transitions the active session to Aborted and flushes
// it, leaving it ready for CompactSession to fold into canonical
// history with commit_type Abandoned.
func (r *Repo) AbortSession(reason string, now int64) (object.ID, error) {
	if r.session == nil {
		return "", ErrNoActiveSession
	}
	head, err := r.session.Abort(reason, now)
	if err != nil {
		return "", &InvalidStateTransitionError{Op: "abort_session", Err: err}
	}
	if err := writeStageFile(r.ctxDir, head); err != nil {
		return "", err
	}
	return head, nil
}

// CheckStaleSession compares the active session's idle time against
// the configured thresholds. When the idle time has crossed the
// auto-compact threshold, it force-aborts and compacts the session
// before returning, tagging the resulting commit
// commit_type = StaleAutoCompact{idle_secs}, matching "auto-compact
// before any further operation."
func (r *Repo) CheckStaleSession(now int64) (staging.StaleSessionStatus, error) {
	if r.session == nil {
		return staging.StaleSessionStatus{Kind: 0}, ErrNoActiveSession
	}
	askSecs, autoSecs := r.Config.StaleSession()
	policy := staging.StaleSessionPolicy{AskThresholdSecs: askSecs, AutoCompactThresholdSecs: autoSecs}

	lastActivity := r.lastSessionActivity()
	idle := now - lastActivity
	if idle < 0 {
		idle = 0
	}
	status := policy.Evaluate(r.session.ID(), idle)

	if status.Kind != staging.StaleShouldAutoCompact {
		return status, nil
	}

	if !r.session.State().Terminal() {
		if err := r.session.ApplyEvent(staging.EventAbort, staging.State{
			Reason: fmt.Sprintf("auto-compacted after %ds idle", idle),
		}); err != nil {
			return status, &InvalidStateTransitionError{Op: "check_stale_session", Err: err}
		}
	}
	if _, err := r.session.Flush("stale-auto-compact", now); err != nil {
		return status, err
	}
	r.pendingStaleIdle = idle
	if _, err := r.CompactSession("auto-compacted: session idle past threshold", now); err != nil {
		return status, err
	}
	return status, nil
}

// CleanupReport summarizes a CleanupStaleSessions sweep.
type CleanupReport struct {
	SessionsCompacted int
	CompactedTasks    []string
}

// CleanupStaleSessions force-compacts the active session if it has
// been idle longer than maxAgeSecs, tagging the resulting commit
// commit_type = StaleAutoCompact the same way CheckStaleSession's
// threshold-driven path does. Unlike CheckStaleSession, which judges
// idle time against the configured ask/auto-compact thresholds, this
// is a direct maintenance sweep against a caller-supplied age, for a
// periodic janitor process rather than an interactive session check.
// A handle holds at most one active session, so SessionsCompacted is
// always 0 or 1; the field stays plural to match the swept-fleet shape
// a multi-session host would report.
func (r *Repo) CleanupStaleSessions(maxAgeSecs int64, now int64) (*CleanupReport, error) {
	report := &CleanupReport{}
	if r.session == nil {
		return report, nil
	}

	idle := now - r.lastSessionActivity()
	if idle < 0 {
		idle = 0
	}
	if idle <= maxAgeSecs {
		return report, nil
	}

	sessionID := r.session.ID()
	if !r.session.State().Terminal() {
		if err := r.session.ApplyEvent(staging.EventAbort, staging.State{
			Reason: fmt.Sprintf("auto-saved stale session (idle for %ds)", idle),
		}); err != nil {
			return report, &InvalidStateTransitionError{Op: "cleanup_stale_sessions", Err: err}
		}
	}
	if _, err := r.session.Flush("stale-auto-compact", now); err != nil {
		return report, err
	}
	r.pendingStaleIdle = idle
	if _, err := r.CompactSession(fmt.Sprintf("auto-saved stale session (idle for %ds): %s", idle, sessionID), now); err != nil {
		return report, err
	}

	report.SessionsCompacted = 1
	report.CompactedTasks = append(report.CompactedTasks, sessionID)
	return report, nil
}

// lastSessionActivity returns the active session's most recent
// flushed work-commit's CreatedAt, or the session's base commit's
// timestamp if nothing has been flushed yet.
func (r *Repo) lastSessionActivity() int64 {
	if r.session.Head() != "" {
		wc, err := staging.GetWorkCommit(r.Objects, r.session.Head())
		if err == nil {
			return wc.CreatedAt
		}
	}
	base, err := r.Objects.GetCommit(r.session.Base())
	if err == nil {
		return base.Timestamp
	}
	return 0
}
