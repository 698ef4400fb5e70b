package staging

import (
	"fmt"

	"github.com/redisun/ctx/pkg/object"
)

// WorkCommit is one node in a session's staging chain. Its Parent
// points at the previous work-commit, or at Base for the first
// work-commit in a session; Base is identical across the whole chain
// and names the canonical commit the session started from.
type WorkCommit struct {
	Parent    object.ID
	Base      object.ID
	SessionID string
	CreatedAt int64
	StepKind  string
	Payload   []object.ID

	NarrativeRefs []object.NarrativeRef

	State State
}

func writeState(w *object.Writer, s State) error {
	w.WriteU8(uint8(s.Kind))
	if err := w.WriteString(s.Question); err != nil {
		return err
	}
	w.WriteI64(s.AskedAt)
	if err := w.WriteString(s.UserMessage); err != nil {
		return err
	}
	if err := w.WriteString(s.Summary); err != nil {
		return err
	}
	return w.WriteString(s.Reason)
}

func readState(r *object.Reader) (State, error) {
	var s State
	kind, err := r.ReadU8()
	if err != nil {
		return s, err
	}
	s.Kind = StateKind(kind)
	if s.Question, err = r.ReadString(); err != nil {
		return s, err
	}
	if s.AskedAt, err = r.ReadI64(); err != nil {
		return s, err
	}
	if s.UserMessage, err = r.ReadString(); err != nil {
		return s, err
	}
	if s.Summary, err = r.ReadString(); err != nil {
		return s, err
	}
	if s.Reason, err = r.ReadString(); err != nil {
		return s, err
	}
	return s, nil
}

func writeNarrativeRef(w *object.Writer, nr object.NarrativeRef) error {
	if err := w.WriteString(nr.Path); err != nil {
		return err
	}
	if err := w.WriteString(nr.Stream); err != nil {
		return err
	}
	w.WriteU8(uint8(nr.Role))
	return w.WriteID(nr.BlobID)
}

func readNarrativeRef(r *object.Reader) (object.NarrativeRef, error) {
	var nr object.NarrativeRef
	var err error
	if nr.Path, err = r.ReadString(); err != nil {
		return nr, err
	}
	if nr.Stream, err = r.ReadString(); err != nil {
		return nr, err
	}
	role, err := r.ReadU8()
	if err != nil {
		return nr, err
	}
	nr.Role = object.NarrativeRole(role)
	if nr.BlobID, err = r.ReadID(); err != nil {
		return nr, err
	}
	return nr, nil
}

// MarshalWorkCommit serializes a WorkCommit for storage under
// object.TypeWorkCommit.
func MarshalWorkCommit(c *WorkCommit) ([]byte, error) {
	w := object.NewWriter()
	if err := w.WriteID(c.Parent); err != nil {
		return nil, err
	}
	if err := w.WriteID(c.Base); err != nil {
		return nil, err
	}
	if err := w.WriteString(c.SessionID); err != nil {
		return nil, err
	}
	w.WriteI64(c.CreatedAt)
	if err := w.WriteString(c.StepKind); err != nil {
		return nil, err
	}
	if err := w.WriteIDList(c.Payload); err != nil {
		return nil, err
	}

	w.WriteU64(uint64(len(c.NarrativeRefs)))
	for _, nr := range c.NarrativeRefs {
		if err := writeNarrativeRef(w, nr); err != nil {
			return nil, err
		}
	}

	if err := writeState(w, c.State); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// UnmarshalWorkCommit parses a WorkCommit from its serialized form.
func UnmarshalWorkCommit(data []byte) (*WorkCommit, error) {
	r := object.NewReader(data)
	c := &WorkCommit{}
	var err error

	if c.Parent, err = r.ReadID(); err != nil {
		return nil, err
	}
	if c.Base, err = r.ReadID(); err != nil {
		return nil, err
	}
	if c.SessionID, err = r.ReadString(); err != nil {
		return nil, err
	}
	if c.CreatedAt, err = r.ReadI64(); err != nil {
		return nil, err
	}
	if c.StepKind, err = r.ReadString(); err != nil {
		return nil, err
	}
	if c.Payload, err = r.ReadIDList(); err != nil {
		return nil, err
	}

	n, err := r.ReadU64()
	if err != nil {
		return nil, err
	}
	c.NarrativeRefs = make([]object.NarrativeRef, 0, n)
	for i := uint64(0); i < n; i++ {
		nr, err := readNarrativeRef(r)
		if err != nil {
			return nil, err
		}
		c.NarrativeRefs = append(c.NarrativeRefs, nr)
	}

	if c.State, err = readState(r); err != nil {
		return nil, err
	}
	return c, nil
}

func init() {
	object.RegisterTypedRefExtractor(object.TypeWorkCommit, func(body []byte) ([]object.ID, error) {
		wc, err := UnmarshalWorkCommit(body)
		if err != nil {
			return nil, fmt.Errorf("work commit ref extraction: %w", err)
		}
		refs := make([]object.ID, 0, 2+len(wc.Payload)+len(wc.NarrativeRefs))
		refs = append(refs, wc.Parent, wc.Base)
		refs = append(refs, wc.Payload...)
		for _, nr := range wc.NarrativeRefs {
			refs = append(refs, nr.BlobID)
		}
		return refs, nil
	})
}

// PutWorkCommit serializes and stores a WorkCommit.
func PutWorkCommit(s *object.Store, c *WorkCommit) (object.ID, error) {
	enc, err := MarshalWorkCommit(c)
	if err != nil {
		return "", err
	}
	return s.PutTyped(object.TypeWorkCommit, enc)
}

// GetWorkCommit reads and deserializes a WorkCommit.
func GetWorkCommit(s *object.Store, id object.ID) (*WorkCommit, error) {
	tag, body, err := s.GetTyped(id)
	if err != nil {
		return nil, err
	}
	if tag != object.TypeWorkCommit {
		return nil, &object.TypeMismatchError{ID: id, Want: object.TypeWorkCommit, Got: tag}
	}
	return UnmarshalWorkCommit(body)
}
