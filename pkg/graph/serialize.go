package graph

import (
	"fmt"

	"github.com/redisun/ctx/pkg/object"
)

func writeNodeID(w *object.Writer, n NodeId) error {
	w.WriteU8(uint8(n.Kind))
	return w.WriteString(n.Key)
}

func readNodeID(r *object.Reader) (NodeId, error) {
	kind, err := r.ReadU8()
	if err != nil {
		return NodeId{}, err
	}
	key, err := r.ReadString()
	if err != nil {
		return NodeId{}, err
	}
	return NodeId{Kind: NodeKind(kind), Key: key}, nil
}

func writeEvidence(w *object.Writer, e Evidence) error {
	if err := w.WriteID(e.CommitID); err != nil {
		return err
	}
	if err := w.WriteString(e.Span); err != nil {
		return err
	}
	if err := w.WriteID(e.BlobID); err != nil {
		return err
	}
	if err := w.WriteString(e.Tool); err != nil {
		return err
	}
	w.WriteU8(uint8(e.Confidence))
	return nil
}

func readEvidence(r *object.Reader) (Evidence, error) {
	var e Evidence
	var err error
	if e.CommitID, err = r.ReadID(); err != nil {
		return e, err
	}
	if e.Span, err = r.ReadString(); err != nil {
		return e, err
	}
	if e.BlobID, err = r.ReadID(); err != nil {
		return e, err
	}
	if e.Tool, err = r.ReadString(); err != nil {
		return e, err
	}
	conf, err := r.ReadU8()
	if err != nil {
		return e, err
	}
	e.Confidence = Confidence(conf)
	return e, nil
}

// MarshalEdgeBatch serializes an EdgeBatch for storage under
// object.TypeEdgeBatch.
func MarshalEdgeBatch(b *EdgeBatch) ([]byte, error) {
	w := object.NewWriter()
	w.WriteI64(b.CreatedAt)
	w.WriteU64(uint64(len(b.Edges)))
	for _, e := range b.Edges {
		if err := writeNodeID(w, e.From); err != nil {
			return nil, err
		}
		if err := writeNodeID(w, e.To); err != nil {
			return nil, err
		}
		w.WriteU8(uint8(e.Label))
		w.WriteBool(e.HasWeight)
		if err := w.WriteF64(e.Weight); err != nil {
			return nil, err
		}
		if err := writeEvidence(w, e.Evidence); err != nil {
			return nil, err
		}
	}
	return w.Bytes(), nil
}

// UnmarshalEdgeBatch parses an EdgeBatch from its serialized form.
func UnmarshalEdgeBatch(data []byte) (*EdgeBatch, error) {
	r := object.NewReader(data)
	b := &EdgeBatch{}
	var err error
	if b.CreatedAt, err = r.ReadI64(); err != nil {
		return nil, err
	}
	n, err := r.ReadU64()
	if err != nil {
		return nil, err
	}
	b.Edges = make([]Edge, 0, n)
	for i := uint64(0); i < n; i++ {
		var e Edge
		if e.From, err = readNodeID(r); err != nil {
			return nil, err
		}
		if e.To, err = readNodeID(r); err != nil {
			return nil, err
		}
		label, err := r.ReadU8()
		if err != nil {
			return nil, err
		}
		e.Label = Label(label)
		if e.HasWeight, err = r.ReadBool(); err != nil {
			return nil, err
		}
		if e.Weight, err = r.ReadF64(); err != nil {
			return nil, err
		}
		if e.Evidence, err = readEvidence(r); err != nil {
			return nil, err
		}
		b.Edges = append(b.Edges, e)
	}
	return b, nil
}

func init() {
	object.RegisterTypedRefExtractor(object.TypeEdgeBatch, func(body []byte) ([]object.ID, error) {
		b, err := UnmarshalEdgeBatch(body)
		if err != nil {
			return nil, fmt.Errorf("edge batch ref extraction: %w", err)
		}
		var refs []object.ID
		for _, e := range b.Edges {
			if e.Evidence.BlobID != "" {
				refs = append(refs, e.Evidence.BlobID)
			}
		}
		return refs, nil
	})
}

// PutEdgeBatch serializes and stores an EdgeBatch.
func PutEdgeBatch(s *object.Store, b *EdgeBatch) (object.ID, error) {
	enc, err := MarshalEdgeBatch(b)
	if err != nil {
		return "", err
	}
	return s.PutTyped(object.TypeEdgeBatch, enc)
}

// GetEdgeBatch reads and deserializes an EdgeBatch.
func GetEdgeBatch(s *object.Store, id object.ID) (*EdgeBatch, error) {
	tag, body, err := s.GetTyped(id)
	if err != nil {
		return nil, err
	}
	if tag != object.TypeEdgeBatch {
		return nil, &object.TypeMismatchError{ID: id, Want: object.TypeEdgeBatch, Got: tag}
	}
	return UnmarshalEdgeBatch(body)
}
