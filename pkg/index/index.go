package index

import (
	"fmt"

	"github.com/redisun/ctx/pkg/graph"
	"github.com/redisun/ctx/pkg/object"
)

// PutPath records the FileId a normalized repository-relative path
// currently resolves to.
func (ix *Index) PutPath(path, fileID string) error {
	v, err := encodeString(fileID)
	if err != nil {
		return err
	}
	return ix.set(pathKey(path), v)
}

// GetPath resolves a normalized path to its FileId.
func (ix *Index) GetPath(path string) (string, bool, error) {
	v, ok, err := ix.get(pathKey(path))
	if err != nil || !ok {
		return "", ok, err
	}
	s, err := decodeString(v)
	return s, true, err
}

// AppendName appends id to the ordered list registered under
// (namespace, name), skipping it if already present.
func (ix *Index) AppendName(namespace, name string, id object.ID) error {
	key := nameKey(namespace, name)
	existing, ok, err := ix.get(key)
	var ids []object.ID
	if ok {
		ids, err = decodeIDList(existing)
		if err != nil {
			return err
		}
	}
	for _, have := range ids {
		if have == id {
			return nil
		}
	}
	ids = append(ids, id)
	v, err := encodeIDList(ids)
	if err != nil {
		return err
	}
	return ix.set(key, v)
}

// GetName returns the ordered list of ObjectIds registered under
// (namespace, name).
func (ix *Index) GetName(namespace, name string) ([]object.ID, error) {
	v, ok, err := ix.get(nameKey(namespace, name))
	if err != nil || !ok {
		return nil, err
	}
	return decodeIDList(v)
}

// PutStableKey records the ItemId a fully-qualified stable key
// resolves to.
func (ix *Index) PutStableKey(key, itemID string) error {
	v, err := encodeString(itemID)
	if err != nil {
		return err
	}
	return ix.set(stableKeyKey(key), v)
}

// GetStableKey resolves a fully-qualified stable key to its ItemId.
func (ix *Index) GetStableKey(key string) (string, bool, error) {
	v, ok, err := ix.get(stableKeyKey(key))
	if err != nil || !ok {
		return "", ok, err
	}
	s, err := decodeString(v)
	return s, true, err
}

// PutSnapshotPointers records a commit's root tree and optional
// analyzer snapshot ids.
func (ix *Index) PutSnapshotPointers(commitID object.ID, p SnapshotPointers) error {
	v, err := encodeSnapshotPointers(p)
	if err != nil {
		return err
	}
	return ix.set(snapshotKey(commitID), v)
}

// GetSnapshotPointers looks up a commit's snapshot pointers.
func (ix *Index) GetSnapshotPointers(commitID object.ID) (SnapshotPointers, bool, error) {
	v, ok, err := ix.get(snapshotKey(commitID))
	if err != nil || !ok {
		return SnapshotPointers{}, ok, err
	}
	p, err := decodeSnapshotPointers(v)
	return p, true, err
}

// PutAdjacency overwrites the ordered target list for (dir, node, label).
func (ix *Index) PutAdjacency(dir Direction, node graph.NodeId, label graph.Label, targets []graph.NodeId) error {
	v, err := encodeNodeIDList(targets)
	if err != nil {
		return err
	}
	return ix.set(adjacencyKey(dir, node, label), v)
}

// GetAdjacency returns the target list for (dir, node, label).
func (ix *Index) GetAdjacency(dir Direction, node graph.NodeId, label graph.Label) ([]graph.NodeId, error) {
	v, ok, err := ix.get(adjacencyKey(dir, node, label))
	if err != nil || !ok {
		return nil, err
	}
	return decodeNodeIDList(v)
}

// PutEdgeBatchOfCommit records the commit that introduced an edge
// batch — the reverse index that resolves provenance without edges
// ever carrying a forward reference to their own containing commit.
func (ix *Index) PutEdgeBatchOfCommit(edgeBatchID, commitID object.ID) error {
	return ix.set(edgeBatchOfCommitKey(edgeBatchID), []byte(commitID))
}

// GetEdgeBatchOfCommit resolves an edge batch to the commit it was
// introduced in.
func (ix *Index) GetEdgeBatchOfCommit(edgeBatchID object.ID) (object.ID, bool, error) {
	v, ok, err := ix.get(edgeBatchOfCommitKey(edgeBatchID))
	if err != nil || !ok {
		return "", ok, err
	}
	return object.ID(v), true, nil
}

// PutSccView stores the finalized SCC quotient graph as a single
// opaque value; it is recomputed wholesale on every rebuild rather
// than incrementally maintained.
func (ix *Index) PutSccView(view *graph.SccView) error {
	v, err := graph.MarshalSccView(view)
	if err != nil {
		return fmt.Errorf("index: marshal scc view: %w", err)
	}
	return ix.set([]byte(keySccView), v)
}

// GetSccView loads the last finalized SCC quotient graph, if any.
func (ix *Index) GetSccView() (*graph.SccView, bool, error) {
	v, ok, err := ix.get([]byte(keySccView))
	if err != nil || !ok {
		return nil, ok, err
	}
	view, err := graph.UnmarshalSccView(v)
	if err != nil {
		return nil, false, fmt.Errorf("index: unmarshal scc view: %w", err)
	}
	return view, true, nil
}
