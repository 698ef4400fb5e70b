package repo

import (
	"fmt"
	"time"

	"github.com/redisun/ctx/pkg/index"
	"github.com/redisun/ctx/pkg/object"
	"github.com/redisun/ctx/pkg/refs"
)

// RebuildMode selects the scope of a RebuildIndex call. Incremental and
// FullTextOnly currently alias to Full: the derived index has no
// per-commit bookkeeping to resume from and no full-text table of its
// own, so anything short of a full walk would under-cover.
type RebuildMode int

const (
	RebuildFull RebuildMode = iota
	RebuildIncremental
	RebuildSccOnly
	RebuildFullTextOnly
)

// RebuildIndex repopulates the derived index from the object store and
// refs, the only source of truth it is ever built from.
func (r *Repo) RebuildIndex(mode RebuildMode) error {
	switch mode {
	case RebuildSccOnly:
		return index.RebuildSccOnly(r.Index, r.Objects, r.Refs)
	default:
		return index.Rebuild(r.Index, r.Objects, r.Refs)
	}
}

// GCOptions controls a GC pass. DryRun reports what would be deleted
// without deleting anything.
type GCOptions struct {
	DryRun bool
}

// GCReport summarizes one GC pass.
type GCReport struct {
	Scanned     int
	Unreachable int
	Deleted     int
	KeptInGrace int
	BytesFreed  int64
}

// GC deletes objects unreachable from canonical HEAD or the active
// session's staging chain, honoring Config.GC.GracePeriodDays: an
// unreachable object younger than the grace period survives the pass,
// giving a session that's mid-flush (object written, ref not yet
// advanced) a window before it can be swept.
func (r *Repo) GC(opts GCOptions) (*GCReport, error) {
	roots, err := r.gcRoots()
	if err != nil {
		return nil, fmt.Errorf("gc: collect roots: %w", err)
	}
	reachable, err := r.Objects.ReachableSet(roots)
	if err != nil {
		return nil, fmt.Errorf("gc: compute reachable set: %w", err)
	}

	grace := time.Duration(r.Config.GC.GracePeriodDays) * 24 * time.Hour
	cutoff := time.Now().Add(-grace)

	report := &GCReport{}
	var toDelete []object.ID
	err = r.Objects.IterIDs(func(id object.ID) error {
		report.Scanned++
		if _, ok := reachable[id]; ok {
			return nil
		}
		report.Unreachable++
		modTime, err := r.Objects.ModTime(id)
		if err != nil {
			return err
		}
		if modTime.After(cutoff) {
			report.KeptInGrace++
			return nil
		}
		toDelete = append(toDelete, id)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("gc: scan objects: %w", err)
	}

	if opts.DryRun {
		report.Deleted = len(toDelete)
		for _, id := range toDelete {
			if size, err := r.Objects.Size(id); err == nil {
				report.BytesFreed += size
			}
		}
		return report, nil
	}

	for _, id := range toDelete {
		size, sizeErr := r.Objects.Size(id)
		if err := r.Objects.Delete(id); err != nil {
			return report, fmt.Errorf("gc: delete %s: %w", id, err)
		}
		report.Deleted++
		if sizeErr == nil {
			report.BytesFreed += size
		}
	}
	return report, nil
}

func (r *Repo) gcRoots() ([]object.ID, error) {
	head, err := r.Refs.Get(refs.HeadRef)
	if err != nil {
		return nil, err
	}
	roots := []object.ID{head}
	if r.session != nil && r.session.Head() != "" {
		roots = append(roots, r.session.Head())
	}
	return roots, nil
}

// Verify re-hashes every stored object's envelope and reports any whose
// bytes don't match their ID, without attempting repair. Typed
// payloads are not deserialized.
func (r *Repo) Verify() (*object.VerifyReport, error) {
	return r.Objects.Verify()
}

// ExportedSession is the self-contained payload ExportSession produces:
// every object reachable from a session's staging chain back to (but
// excluding) its base, suitable for replay into another store via
// ImportSession.
type ExportedSession struct {
	SessionID string
	Base      object.ID
	Head      object.ID
	Envelopes []ExportedEnvelope
}

// ExportedEnvelope is one (kind, payload) pair, unchanged from what the
// source store holds.
type ExportedEnvelope struct {
	Kind    object.Kind
	Payload []byte
}

// ExportSession walks the active session's reachable object set minus
// the set reachable from its base commit, so only objects the session
// itself produced are exported.
func (r *Repo) ExportSession() (*ExportedSession, error) {
	if r.session == nil {
		return nil, ErrNoActiveSession
	}
	base := r.session.Base()
	head := r.session.Head()
	if head == "" {
		return &ExportedSession{SessionID: r.session.ID(), Base: base, Head: head}, nil
	}

	sessionReachable, err := r.Objects.ReachableSet([]object.ID{head})
	if err != nil {
		return nil, fmt.Errorf("export session: %w", err)
	}
	baseReachable, err := r.Objects.ReachableSet([]object.ID{base})
	if err != nil {
		return nil, fmt.Errorf("export session: %w", err)
	}

	exported := &ExportedSession{SessionID: r.session.ID(), Base: base, Head: head}
	for id := range sessionReachable {
		if _, ok := baseReachable[id]; ok {
			continue
		}
		kind, payload, err := r.Objects.GetRawEnvelope(id)
		if err != nil {
			return nil, fmt.Errorf("export session: read %s: %w", id, err)
		}
		exported.Envelopes = append(exported.Envelopes, ExportedEnvelope{Kind: kind, Payload: payload})
	}
	return exported, nil
}

// ImportSession replays an exported session's objects into this
// repository's store verbatim, without touching refs: it exists so a
// session started against one store's history can be relocated to
// another store sharing the same base commit.
func (r *Repo) ImportSession(exported *ExportedSession) error {
	for _, env := range exported.Envelopes {
		if _, err := r.Objects.PutRawEnvelope(env.Kind, env.Payload); err != nil {
			return fmt.Errorf("import session: %w", err)
		}
	}
	return nil
}
