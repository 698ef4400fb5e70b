package graph

import (
	"fmt"
	"sort"

	"github.com/redisun/ctx/pkg/object"
)

// MarshalSccView serializes an SccView for storage under
// object.TypeSccView.
func MarshalSccView(v *SccView) ([]byte, error) {
	w := object.NewWriter()

	w.WriteU64(uint64(len(v.SCCs)))
	for _, scc := range v.SCCs {
		w.WriteU64(uint64(len(scc)))
		for _, n := range scc {
			if err := writeNodeID(w, n); err != nil {
				return nil, err
			}
		}
	}

	dagFrom := make([]int, 0, len(v.DAGEdges))
	for from := range v.DAGEdges {
		dagFrom = append(dagFrom, from)
	}
	sort.Ints(dagFrom)
	w.WriteU64(uint64(len(dagFrom)))
	for _, from := range dagFrom {
		w.WriteU64(uint64(from))
		targets := v.DAGEdges[from]
		w.WriteU64(uint64(len(targets)))
		for _, to := range targets {
			w.WriteU64(uint64(to))
		}
	}

	return w.Bytes(), nil
}

// UnmarshalSccView parses an SccView from its serialized form.
func UnmarshalSccView(data []byte) (*SccView, error) {
	r := object.NewReader(data)
	v := &SccView{NodeToSCC: make(map[NodeId]int), DAGEdges: make(map[int][]int)}

	nSCCs, err := r.ReadU64()
	if err != nil {
		return nil, err
	}
	v.SCCs = make([][]NodeId, 0, nSCCs)
	for i := uint64(0); i < nSCCs; i++ {
		n, err := r.ReadU64()
		if err != nil {
			return nil, err
		}
		scc := make([]NodeId, 0, n)
		for j := uint64(0); j < n; j++ {
			node, err := readNodeID(r)
			if err != nil {
				return nil, err
			}
			scc = append(scc, node)
			v.NodeToSCC[node] = int(i)
		}
		v.SCCs = append(v.SCCs, scc)
	}

	nEdges, err := r.ReadU64()
	if err != nil {
		return nil, err
	}
	for i := uint64(0); i < nEdges; i++ {
		from, err := r.ReadU64()
		if err != nil {
			return nil, err
		}
		nTargets, err := r.ReadU64()
		if err != nil {
			return nil, err
		}
		targets := make([]int, 0, nTargets)
		for j := uint64(0); j < nTargets; j++ {
			to, err := r.ReadU64()
			if err != nil {
				return nil, err
			}
			targets = append(targets, int(to))
		}
		v.DAGEdges[int(from)] = targets
	}

	return v, nil
}

func init() {
	object.RegisterTypedRefExtractor(object.TypeSccView, func(body []byte) ([]object.ID, error) {
		if _, err := UnmarshalSccView(body); err != nil {
			return nil, fmt.Errorf("scc view ref extraction: %w", err)
		}
		return nil, nil
	})
}

// PutSccView serializes and stores an SccView.
func PutSccView(s *object.Store, v *SccView) (object.ID, error) {
	enc, err := MarshalSccView(v)
	if err != nil {
		return "", err
	}
	return s.PutTyped(object.TypeSccView, enc)
}

// GetSccView reads and deserializes an SccView.
func GetSccView(s *object.Store, id object.ID) (*SccView, error) {
	tag, body, err := s.GetTyped(id)
	if err != nil {
		return nil, err
	}
	if tag != object.TypeSccView {
		return nil, &object.TypeMismatchError{ID: id, Want: object.TypeSccView, Got: tag}
	}
	return UnmarshalSccView(body)
}
