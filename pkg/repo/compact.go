package repo

import (
	"fmt"
	"sort"

	"github.com/redisun/ctx/pkg/index"
	"github.com/redisun/ctx/pkg/object"
	"github.com/redisun/ctx/pkg/refs"
	"github.com/redisun/ctx/pkg/staging"
)

// CompactSession folds the active session's staging chain into one
// new canonical commit, advances HEAD, and clears the session. The
// session must be in a terminal state (Complete or Aborted); compacting
// an empty chain (nothing ever flushed) is a no-op that just clears
// the session.
func (r *Repo) CompactSession(message string, now int64) (object.ID, error) {
	if r.session == nil {
		return "", ErrNoActiveSession
	}
	if !r.session.State().Terminal() {
		return "", &InvalidStateTransitionError{
			Op:  "compact_session",
			Err: fmt.Errorf("%w: session is %s, not Complete or Aborted", staging.ErrInvalidStateTransition, r.session.State().Kind),
		}
	}

	base := r.session.Base()
	head := r.session.Head()
	if head == "" {
		return r.clearSession(base)
	}

	result, err := staging.Compact(r.Objects, head)
	if err != nil {
		return "", fmt.Errorf("compact session: %w", err)
	}

	commitType := object.CommitNormal
	idleSecs := int64(0)
	if result.FinalState.Kind == staging.StateAborted {
		commitType = object.CommitAbandoned
		if r.pendingStaleIdle > 0 {
			commitType = object.CommitStaleAutoCompact
			idleSecs = r.pendingStaleIdle
		}
	}
	r.pendingStaleIdle = 0

	newTree, err := r.buildCompactedTree(base, result.FileVersions)
	if err != nil {
		return "", fmt.Errorf("compact session: build tree: %w", err)
	}

	narrativeRefs := result.NarrativeRefs
	if message != "" {
		summaryBlob, err := r.Objects.PutBlob([]byte(message))
		if err != nil {
			return "", fmt.Errorf("compact session: write summary blob: %w", err)
		}
		narrativeRefs = append(narrativeRefs, object.NarrativeRef{
			Path:   "log/" + r.session.ID() + ".md",
			Stream: r.session.ID(),
			Role:   object.NarrativeLog,
			BlobID: summaryBlob,
		})
	}

	var edgeBatches []object.ID
	if result.EdgeBatch != "" {
		edgeBatches = append(edgeBatches, result.EdgeBatch)
	}

	newCommit := &object.Commit{
		Parents:       []object.ID{base},
		Timestamp:     now,
		Message:       message,
		RootTree:      newTree,
		EdgeBatches:   edgeBatches,
		NarrativeRefs: narrativeRefs,
		Type:          commitType,
		IdleSecs:      idleSecs,
	}
	newHead, err := r.Objects.PutCommit(newCommit)
	if err != nil {
		return "", fmt.Errorf("compact session: write commit: %w", err)
	}

	if err := r.Refs.CAS(refs.HeadRef, base, newHead); err != nil {
		return "", fmt.Errorf("compact session: advance HEAD: %w", err)
	}
	if err := index.Rebuild(r.Index, r.Objects, r.Refs); err != nil {
		return "", fmt.Errorf("compact session: rebuild index: %w", err)
	}

	return r.clearSession(newHead)
}

// clearSession removes the session's staging ref and STAGE mirror,
// detaches it from the Repo, and returns resultHead for the caller's
// convenience.
func (r *Repo) clearSession(resultHead object.ID) (object.ID, error) {
	if err := r.session.ClearPointer(); err != nil {
		return "", fmt.Errorf("compact session: clear staging pointer: %w", err)
	}
	if err := removeStageFile(r.ctxDir); err != nil {
		return "", err
	}
	r.session = nil
	return resultHead, nil
}

// buildCompactedTree starts from base's root tree (flat, one level)
// and overlays each deduplicated file version, last-write-wins.
func (r *Repo) buildCompactedTree(base object.ID, fileVersions map[string]object.ID) (object.ID, error) {
	entries := make(map[string]object.ID)

	if base != "" {
		baseCommit, err := r.Objects.GetCommit(base)
		if err != nil {
			return "", err
		}
		if baseCommit.RootTree != "" {
			baseTree, err := r.Objects.GetTree(baseCommit.RootTree)
			if err != nil {
				return "", err
			}
			for _, e := range baseTree.Entries {
				entries[e.Name] = e.ID
			}
		}
	}

	for fileID, fvID := range fileVersions {
		fv, err := r.Objects.GetFileVersion(fvID)
		if err != nil {
			return "", err
		}
		entries[fileID] = fv.BlobID
	}

	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	tree := &object.Tree{Entries: make([]object.TreeEntry, 0, len(names))}
	for _, name := range names {
		tree.Entries = append(tree.Entries, object.TreeEntry{
			Name: name,
			Kind: object.TreeEntryBlob,
			ID:   entries[name],
		})
	}
	return r.Objects.PutTree(tree)
}
