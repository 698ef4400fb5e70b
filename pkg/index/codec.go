package index

import (
	"github.com/redisun/ctx/pkg/graph"
	"github.com/redisun/ctx/pkg/object"
)

// SnapshotPointers is the value stored per canonical commit: its root
// tree plus whichever optional analyzer snapshots were captured.
type SnapshotPointers struct {
	RootTree              object.ID
	BuildGraphSnapshot    object.ID
	SemanticGraphSnapshot object.ID
	DiagnosticsSnapshot   object.ID
}

func encodeSnapshotPointers(p SnapshotPointers) ([]byte, error) {
	w := object.NewWriter()
	for _, id := range []object.ID{p.RootTree, p.BuildGraphSnapshot, p.SemanticGraphSnapshot, p.DiagnosticsSnapshot} {
		if err := w.WriteID(id); err != nil {
			return nil, err
		}
	}
	return w.Bytes(), nil
}

func decodeSnapshotPointers(data []byte) (SnapshotPointers, error) {
	r := object.NewReader(data)
	var p SnapshotPointers
	var err error
	if p.RootTree, err = r.ReadID(); err != nil {
		return p, err
	}
	if p.BuildGraphSnapshot, err = r.ReadID(); err != nil {
		return p, err
	}
	if p.SemanticGraphSnapshot, err = r.ReadID(); err != nil {
		return p, err
	}
	if p.DiagnosticsSnapshot, err = r.ReadID(); err != nil {
		return p, err
	}
	return p, nil
}

func encodeIDList(ids []object.ID) ([]byte, error) {
	ss := make([]string, len(ids))
	for i, id := range ids {
		ss[i] = string(id)
	}
	w := object.NewWriter()
	if err := w.WriteStringList(ss); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func decodeIDList(data []byte) ([]object.ID, error) {
	ss, err := object.NewReader(data).ReadStringList()
	if err != nil {
		return nil, err
	}
	ids := make([]object.ID, len(ss))
	for i, s := range ss {
		ids[i] = object.ID(s)
	}
	return ids, nil
}

func encodeNodeIDList(nodes []graph.NodeId) ([]byte, error) {
	w := object.NewWriter()
	w.WriteU64(uint64(len(nodes)))
	for _, n := range nodes {
		w.WriteU8(uint8(n.Kind))
		if err := w.WriteString(n.Key); err != nil {
			return nil, err
		}
	}
	return w.Bytes(), nil
}

func decodeNodeIDList(data []byte) ([]graph.NodeId, error) {
	r := object.NewReader(data)
	n, err := r.ReadU64()
	if err != nil {
		return nil, err
	}
	out := make([]graph.NodeId, 0, n)
	for i := uint64(0); i < n; i++ {
		kind, err := r.ReadU8()
		if err != nil {
			return nil, err
		}
		key, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		out = append(out, graph.NodeId{Kind: graph.NodeKind(kind), Key: key})
	}
	return out, nil
}

func encodeString(s string) ([]byte, error) {
	w := object.NewWriter()
	if err := w.WriteString(s); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func decodeString(data []byte) (string, error) {
	return object.NewReader(data).ReadString()
}
