package staging

import (
	"github.com/redisun/ctx/pkg/object"
	"github.com/redisun/ctx/pkg/refs"
)

// RecoveryOutcome reports what Recover decided.
type RecoveryOutcome uint8

const (
	// RecoveryOK means the existing staging pointer is reconstructable
	// and was left untouched.
	RecoveryOK RecoveryOutcome = iota + 1
	// RecoveryReset means the pointer was stale or unreadable and has
	// been deleted, leaving no staging head over canonicalHead.
	RecoveryReset
	// RecoveryNone means there was no staging pointer to recover.
	RecoveryNone
)

// isAncestor reports whether candidate is canonicalHead or one of its
// ancestors, by walking Commit.Parents. Used to validate a session's
// recorded base against the current canonical head.
func isAncestor(objects *object.Store, canonicalHead, candidate object.ID) (bool, error) {
	if candidate == canonicalHead {
		return true, nil
	}
	visited := make(map[object.ID]bool)
	frontier := []object.ID{canonicalHead}
	for len(frontier) > 0 {
		id := frontier[len(frontier)-1]
		frontier = frontier[:len(frontier)-1]
		if id == "" || visited[id] {
			continue
		}
		visited[id] = true
		if id == candidate {
			return true, nil
		}
		c, err := objects.GetCommit(id)
		if err != nil {
			return false, err
		}
		frontier = append(frontier, c.Parents...)
	}
	return false, nil
}

// Recover validates an existing session pointer against the current
// canonical head on repository open. A session is reconstructable when
// its recorded base equals the canonical head or is one of its
// ancestors; otherwise the pointer is deleted.
func Recover(objects *object.Store, refStore *refs.Store, sessionID string, canonicalHead object.ID) (RecoveryOutcome, error) {
	head, err := refStore.Get(RefName(sessionID))
	if err != nil {
		return RecoveryNone, err
	}
	if head == "" {
		return RecoveryNone, nil
	}

	tip, err := GetWorkCommit(objects, head)
	if err != nil {
		if err := refStore.Delete(RefName(sessionID)); err != nil {
			return RecoveryReset, err
		}
		return RecoveryReset, nil
	}

	ok, err := isAncestor(objects, canonicalHead, tip.Base)
	if err != nil || !ok {
		if delErr := refStore.Delete(RefName(sessionID)); delErr != nil {
			return RecoveryReset, delErr
		}
		return RecoveryReset, nil
	}
	return RecoveryOK, nil
}
