package object

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Binary encoding primitives
//
// One deterministic TLV-ish encoder shared by every typed object in the
// core: fixed field order, length-prefixed strings/bytes, explicit
// counts before repeated fields, and sorted-by-key associative
// containers. No type in this package or in pkg/graph/pkg/staging
// rolls its own byte layout on top of this.
// ---------------------------------------------------------------------------

// Writer appends fields to a growing byte buffer in the canonical,
// deterministic encoding. A Writer never fails on write; encode-time
// invariants (no NaN, valid UTF-8) are checked per-call and reported by
// the corresponding Write* method so callers can fail fast.
type Writer struct {
	buf []byte
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer { return &Writer{} }

// Bytes returns the encoded payload built so far.
func (w *Writer) Bytes() []byte { return w.buf }

func (w *Writer) WriteU8(v uint8) { w.buf = append(w.buf, v) }

func (w *Writer) WriteBool(v bool) {
	if v {
		w.WriteU8(1)
	} else {
		w.WriteU8(0)
	}
}

func (w *Writer) WriteU64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) WriteI64(v int64) { w.WriteU64(uint64(v)) }

// WriteF64 rejects NaN per the core's "no IEEE-754 NaN" invariant.
func (w *Writer) WriteF64(v float64) error {
	if math.IsNaN(v) {
		return fmt.Errorf("encode float: NaN not permitted")
	}
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
	w.buf = append(w.buf, b[:]...)
	return nil
}

// WriteBytes writes a u64 length prefix followed by the raw bytes.
func (w *Writer) WriteBytes(b []byte) {
	w.WriteU64(uint64(len(b)))
	w.buf = append(w.buf, b...)
}

// WriteString validates s is well-formed UTF-8, then writes it like
// WriteBytes.
func (w *Writer) WriteString(s string) error {
	if !utf8.ValidString(s) {
		return fmt.Errorf("encode string: invalid UTF-8")
	}
	w.WriteBytes([]byte(s))
	return nil
}

// WriteID writes a 32-byte object ID (decoded from hex).
func (w *Writer) WriteID(id ID) error {
	if id == "" {
		w.buf = append(w.buf, make([]byte, 32)...)
		return nil
	}
	b, err := hex.DecodeString(string(id))
	if err != nil || len(b) != 32 {
		return fmt.Errorf("encode id %q: not a 32-byte hex id", id)
	}
	w.buf = append(w.buf, b...)
	return nil
}

// WriteIDList writes a count followed by each ID.
func (w *Writer) WriteIDList(ids []ID) error {
	w.WriteU64(uint64(len(ids)))
	for _, id := range ids {
		if err := w.WriteID(id); err != nil {
			return err
		}
	}
	return nil
}

// WriteStringList writes a count followed by each length-prefixed string.
func (w *Writer) WriteStringList(ss []string) error {
	w.WriteU64(uint64(len(ss)))
	for _, s := range ss {
		if err := w.WriteString(s); err != nil {
			return err
		}
	}
	return nil
}

// SortedStringMap returns m's keys in sorted order. Associative
// containers are always serialized in this order, never map iteration
// order, so encode(x) is a pure function of x.
func SortedStringMap[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Reader consumes fields from an encoded byte buffer in the same order
// they were written.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps buf for sequential decoding.
func NewReader(buf []byte) *Reader { return &Reader{buf: buf} }

// Remaining reports whether any unconsumed bytes remain.
func (r *Reader) Remaining() int { return len(r.buf) - r.pos }

func (r *Reader) need(n int) error {
	if r.Remaining() < n {
		return fmt.Errorf("decode: unexpected end of buffer (need %d, have %d)", n, r.Remaining())
	}
	return nil
}

func (r *Reader) ReadU8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *Reader) ReadBool() (bool, error) {
	v, err := r.ReadU8()
	return v != 0, err
}

func (r *Reader) ReadU64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.buf[r.pos : r.pos+8])
	r.pos += 8
	return v, nil
}

func (r *Reader) ReadI64() (int64, error) {
	v, err := r.ReadU64()
	return int64(v), err
}

func (r *Reader) ReadF64() (float64, error) {
	v, err := r.ReadU64()
	if err != nil {
		return 0, err
	}
	f := math.Float64frombits(v)
	if math.IsNaN(f) {
		return 0, fmt.Errorf("decode float: NaN in stream")
	}
	return f, nil
}

func (r *Reader) ReadBytes() ([]byte, error) {
	n, err := r.ReadU64()
	if err != nil {
		return nil, err
	}
	if err := r.need(int(n)); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, r.buf[r.pos:r.pos+int(n)])
	r.pos += int(n)
	return out, nil
}

func (r *Reader) ReadString() (string, error) {
	b, err := r.ReadBytes()
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("decode string: invalid UTF-8")
	}
	return string(b), nil
}

func (r *Reader) ReadID() (ID, error) {
	if err := r.need(32); err != nil {
		return "", err
	}
	b := r.buf[r.pos : r.pos+32]
	r.pos += 32
	for _, c := range b {
		if c != 0 {
			return ID(hex.EncodeToString(b)), nil
		}
	}
	return "", nil
}

func (r *Reader) ReadIDList() ([]ID, error) {
	n, err := r.ReadU64()
	if err != nil {
		return nil, err
	}
	out := make([]ID, 0, n)
	for i := uint64(0); i < n; i++ {
		id, err := r.ReadID()
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

func (r *Reader) ReadStringList() ([]string, error) {
	n, err := r.ReadU64()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, n)
	for i := uint64(0); i < n; i++ {
		s, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Blob
// ---------------------------------------------------------------------------

// MarshalBlob serializes a Blob to raw bytes (identity).
func MarshalBlob(b *Blob) []byte {
	out := make([]byte, len(b.Data))
	copy(out, b.Data)
	return out
}

// UnmarshalBlob deserializes raw bytes into a Blob.
func UnmarshalBlob(data []byte) (*Blob, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return &Blob{Data: out}, nil
}

// ---------------------------------------------------------------------------
// Tree
// ---------------------------------------------------------------------------

// MarshalTree serializes a Tree. Entries are sorted by Name before
// encoding, satisfying the canonical law independent of construction
// order.
func MarshalTree(tr *Tree) ([]byte, error) {
	sorted := make([]TreeEntry, len(tr.Entries))
	copy(sorted, tr.Entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	w := NewWriter()
	w.WriteU64(uint64(len(sorted)))
	for _, e := range sorted {
		if err := w.WriteString(e.Name); err != nil {
			return nil, err
		}
		w.WriteU8(uint8(e.Kind))
		if err := w.WriteID(e.ID); err != nil {
			return nil, err
		}
	}
	return w.Bytes(), nil
}

// UnmarshalTree parses a Tree from its serialized form.
func UnmarshalTree(data []byte) (*Tree, error) {
	r := NewReader(data)
	n, err := r.ReadU64()
	if err != nil {
		return nil, err
	}
	tr := &Tree{Entries: make([]TreeEntry, 0, n)}
	for i := uint64(0); i < n; i++ {
		name, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		kind, err := r.ReadU8()
		if err != nil {
			return nil, err
		}
		id, err := r.ReadID()
		if err != nil {
			return nil, err
		}
		tr.Entries = append(tr.Entries, TreeEntry{Name: name, Kind: TreeEntryKind(kind), ID: id})
	}
	return tr, nil
}

// ---------------------------------------------------------------------------
// FileVersion
// ---------------------------------------------------------------------------

// MarshalFileVersion serializes a FileVersion.
func MarshalFileVersion(fv *FileVersion) ([]byte, error) {
	w := NewWriter()
	if err := w.WriteString(fv.FileID); err != nil {
		return nil, err
	}
	if err := w.WriteID(fv.BlobID); err != nil {
		return nil, err
	}
	w.WriteI64(fv.ByteCount)
	w.WriteI64(fv.LineCount)
	return w.Bytes(), nil
}

// UnmarshalFileVersion parses a FileVersion from its serialized form.
func UnmarshalFileVersion(data []byte) (*FileVersion, error) {
	r := NewReader(data)
	fv := &FileVersion{}
	var err error
	if fv.FileID, err = r.ReadString(); err != nil {
		return nil, err
	}
	if fv.BlobID, err = r.ReadID(); err != nil {
		return nil, err
	}
	if fv.ByteCount, err = r.ReadI64(); err != nil {
		return nil, err
	}
	if fv.LineCount, err = r.ReadI64(); err != nil {
		return nil, err
	}
	return fv, nil
}

// ---------------------------------------------------------------------------
// Commit
// ---------------------------------------------------------------------------

// MarshalCommit serializes a Commit.
func MarshalCommit(c *Commit) ([]byte, error) {
	w := NewWriter()
	if err := w.WriteIDList(c.Parents); err != nil {
		return nil, err
	}
	w.WriteI64(c.Timestamp)
	if err := w.WriteString(c.Message); err != nil {
		return nil, err
	}
	if err := w.WriteID(c.RootTree); err != nil {
		return nil, err
	}
	if err := w.WriteIDList(c.EdgeBatches); err != nil {
		return nil, err
	}

	w.WriteU64(uint64(len(c.NarrativeRefs)))
	for _, nr := range c.NarrativeRefs {
		if err := w.WriteString(nr.Path); err != nil {
			return nil, err
		}
		if err := w.WriteString(nr.Stream); err != nil {
			return nil, err
		}
		w.WriteU8(uint8(nr.Role))
		if err := w.WriteID(nr.BlobID); err != nil {
			return nil, err
		}
	}

	for _, id := range []ID{c.BuildGraphSnapshot, c.SemanticGraphSnapshot, c.DiagnosticsSnapshot} {
		if err := w.WriteID(id); err != nil {
			return nil, err
		}
	}

	w.WriteU8(uint8(c.Type))
	w.WriteI64(c.IdleSecs)
	if err := w.WriteString(c.InterruptSummary); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// UnmarshalCommit parses a Commit from its serialized form.
func UnmarshalCommit(data []byte) (*Commit, error) {
	r := NewReader(data)
	c := &Commit{}

	var err error
	if c.Parents, err = r.ReadIDList(); err != nil {
		return nil, err
	}
	if c.Timestamp, err = r.ReadI64(); err != nil {
		return nil, err
	}
	if c.Message, err = r.ReadString(); err != nil {
		return nil, err
	}
	if c.RootTree, err = r.ReadID(); err != nil {
		return nil, err
	}
	if c.EdgeBatches, err = r.ReadIDList(); err != nil {
		return nil, err
	}

	n, err := r.ReadU64()
	if err != nil {
		return nil, err
	}
	c.NarrativeRefs = make([]NarrativeRef, 0, n)
	for i := uint64(0); i < n; i++ {
		var nr NarrativeRef
		if nr.Path, err = r.ReadString(); err != nil {
			return nil, err
		}
		if nr.Stream, err = r.ReadString(); err != nil {
			return nil, err
		}
		role, err := r.ReadU8()
		if err != nil {
			return nil, err
		}
		nr.Role = NarrativeRole(role)
		if nr.BlobID, err = r.ReadID(); err != nil {
			return nil, err
		}
		c.NarrativeRefs = append(c.NarrativeRefs, nr)
	}

	if c.BuildGraphSnapshot, err = r.ReadID(); err != nil {
		return nil, err
	}
	if c.SemanticGraphSnapshot, err = r.ReadID(); err != nil {
		return nil, err
	}
	if c.DiagnosticsSnapshot, err = r.ReadID(); err != nil {
		return nil, err
	}

	typ, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	c.Type = CommitType(typ)
	if c.IdleSecs, err = r.ReadI64(); err != nil {
		return nil, err
	}
	if c.InterruptSummary, err = r.ReadString(); err != nil {
		return nil, err
	}
	return c, nil
}
