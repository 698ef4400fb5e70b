package staging

import (
	"fmt"

	"github.com/redisun/ctx/pkg/object"
	"github.com/redisun/ctx/pkg/refs"
)

// refPrefix names the flat namespace of per-session staging pointers:
// refs/stage/<session-id>.
const refPrefix = "stage/"

func refName(sessionID string) string { return refPrefix + sessionID }

// Session manages one session's in-memory observation buffer and its
// on-disk work-commit chain. A session has exactly one active staging
// chain at a time; RefName identifies its tip.
type Session struct {
	objects          *object.Store
	refs             *refs.Store
	id               string
	base             object.ID
	head             object.ID
	state            State
	lastFlushedState State

	buffer          []object.ID
	narrativeBuffer []object.NarrativeRef

	stepFiles int
	stepBytes int64
}

// Open loads or starts a session's staging chain. If a staging pointer
// already exists for sessionID, its tip is read back to recover the
// buffer-less state (a freshly opened session always starts with an
// empty buffer; unflushed observations do not survive a process
// restart, matching "crash after any step leaves a valid chain").
func Open(objects *object.Store, refStore *refs.Store, sessionID string, base object.ID) (*Session, error) {
	s := &Session{
		objects: objects,
		refs:    refStore,
		id:      sessionID,
		base:    base,
		state:   Running(),
	}
	s.lastFlushedState = s.state

	head, err := refStore.Get(refName(sessionID))
	if err != nil {
		return nil, fmt.Errorf("open session %q: %w", sessionID, err)
	}
	if head == "" {
		return s, nil
	}

	tip, err := GetWorkCommit(objects, head)
	if err != nil {
		return nil, fmt.Errorf("open session %q: read tip %s: %w", sessionID, head, err)
	}
	s.head = head
	s.state = tip.State
	s.lastFlushedState = tip.State
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Base returns the canonical commit this session started from.
func (s *Session) Base() object.ID { return s.base }

// Head returns the current staging chain tip, or "" if nothing has
// been flushed yet.
func (s *Session) Head() object.ID { return s.head }

// State returns the session's current (possibly unflushed) state.
func (s *Session) State() State { return s.state }

// Buffer appends artifact ids (blobs, FileVersions, EdgeBatches) to
// the in-memory step buffer. Observation entry points in the façade
// call this once per artifact they write to the object store.
func (s *Session) Buffer(ids ...object.ID) {
	s.buffer = append(s.buffer, ids...)
}

// BufferNarrativeRef records a narrative snapshot touched this step.
func (s *Session) BufferNarrativeRef(nr object.NarrativeRef) {
	s.narrativeBuffer = append(s.narrativeBuffer, nr)
}

// RecordFileObservation accounts one more file and its byte count
// against the current step's ingestion budgets. The façade calls this
// once per file-shaped observation (write or content-bearing read)
// after its budget check has compared StepBudgetUsage, plus the new
// file, against the configured caps.
func (s *Session) RecordFileObservation(size int64) {
	s.stepFiles++
	s.stepBytes += size
}

// StepBudgetUsage returns how many files and bytes have been recorded
// against the current, not-yet-flushed step.
func (s *Session) StepBudgetUsage() (files int, bytes int64) {
	return s.stepFiles, s.stepBytes
}

// ApplyEvent transitions the session's in-memory state. The
// transition is only durable once Flush is called.
func (s *Session) ApplyEvent(event Event, payload State) error {
	next, err := Transition(s.state, event, payload)
	if err != nil {
		return err
	}
	s.state = next
	return nil
}

// Flush creates one new work-commit from the buffered artifacts and
// the current state, and atomically advances the staging pointer.
// Flushing an empty buffer with an unchanged state is a no-op, so
// callers may flush liberally without growing the chain - including
// a freshly opened session's very first flush, before anything has
// been buffered at all.
func (s *Session) Flush(stepKind string, now int64) (object.ID, error) {
	if len(s.buffer) == 0 && len(s.narrativeBuffer) == 0 && s.state == s.lastFlushedState {
		return s.head, nil
	}

	parent := s.head
	if parent == "" {
		parent = s.base
	}

	wc := &WorkCommit{
		Parent:        parent,
		Base:          s.base,
		SessionID:     s.id,
		CreatedAt:     now,
		StepKind:      stepKind,
		Payload:       s.buffer,
		NarrativeRefs: s.narrativeBuffer,
		State:         s.state,
	}

	newID, err := PutWorkCommit(s.objects, wc)
	if err != nil {
		return "", fmt.Errorf("flush session %q: %w", s.id, err)
	}

	if err := s.refs.CAS(refName(s.id), s.head, newID); err != nil {
		return "", fmt.Errorf("flush session %q: advance staging pointer: %w", s.id, err)
	}

	s.head = newID
	s.lastFlushedState = s.state
	s.buffer = nil
	s.narrativeBuffer = nil
	s.stepFiles = 0
	s.stepBytes = 0
	return newID, nil
}

// Abort transitions to Aborted and flushes it, making the session
// eligible for compaction.
func (s *Session) Abort(reason string, now int64) (object.ID, error) {
	if err := s.ApplyEvent(EventAbort, State{Reason: reason}); err != nil {
		return "", err
	}
	return s.Flush("abort", now)
}

// ClearPointer removes the staging ref, matching compaction's
// "resets to the new head or is deleted" step.
func (s *Session) ClearPointer() error {
	return s.refs.Delete(refName(s.id))
}

// RefName exposes the staging ref name for a session id, so the
// façade's GC and recovery code can enumerate sessions via refs.List.
func RefName(sessionID string) string { return refName(sessionID) }

// RefPrefix is the namespace every session pointer lives under.
func RefPrefix() string { return refPrefix }
