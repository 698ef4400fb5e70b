package object

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	w := NewWriter()
	w.WriteU8(7)
	w.WriteBool(true)
	w.WriteU64(1 << 40)
	w.WriteI64(-12345)
	if err := w.WriteF64(3.5); err != nil {
		t.Fatalf("WriteF64: %v", err)
	}
	w.WriteBytes([]byte("hello"))
	if err := w.WriteString("héllo"); err != nil {
		t.Fatalf("WriteString: %v", err)
	}
	if err := w.WriteIDList([]ID{"", "a1"}); err == nil {
		t.Fatalf("expected error writing malformed id")
	}

	r := NewReader(w.Bytes())
	if v, err := r.ReadU8(); err != nil || v != 7 {
		t.Fatalf("ReadU8: got %v, %v", v, err)
	}
	if v, err := r.ReadBool(); err != nil || v != true {
		t.Fatalf("ReadBool: got %v, %v", v, err)
	}
	if v, err := r.ReadU64(); err != nil || v != 1<<40 {
		t.Fatalf("ReadU64: got %v, %v", v, err)
	}
	if v, err := r.ReadI64(); err != nil || v != -12345 {
		t.Fatalf("ReadI64: got %v, %v", v, err)
	}
	if v, err := r.ReadF64(); err != nil || v != 3.5 {
		t.Fatalf("ReadF64: got %v, %v", v, err)
	}
	if v, err := r.ReadBytes(); err != nil || string(v) != "hello" {
		t.Fatalf("ReadBytes: got %q, %v", v, err)
	}
	if v, err := r.ReadString(); err != nil || v != "héllo" {
		t.Fatalf("ReadString: got %q, %v", v, err)
	}
}

func TestWriteF64RejectsNaN(t *testing.T) {
	w := NewWriter()
	if err := w.WriteF64(math.NaN()); err == nil {
		t.Fatal("expected error encoding NaN")
	}
}

func TestWriteStringRejectsInvalidUTF8(t *testing.T) {
	w := NewWriter()
	if err := w.WriteString(string([]byte{0xff, 0xfe})); err == nil {
		t.Fatal("expected error encoding invalid UTF-8")
	}
}

func TestTreeRoundTripAndCanonicalOrdering(t *testing.T) {
	id1 := ID("1100000000000000000000000000000000000000000000000000000000000000"[:64])
	id2 := ID("2200000000000000000000000000000000000000000000000000000000000000"[:64])

	unordered := &Tree{Entries: []TreeEntry{
		{Name: "zeta.go", Kind: TreeEntryBlob, ID: id2},
		{Name: "alpha.go", Kind: TreeEntryBlob, ID: id1},
	}}
	reordered := &Tree{Entries: []TreeEntry{
		{Name: "alpha.go", Kind: TreeEntryBlob, ID: id1},
		{Name: "zeta.go", Kind: TreeEntryBlob, ID: id2},
	}}

	a, err := MarshalTree(unordered)
	if err != nil {
		t.Fatalf("MarshalTree: %v", err)
	}
	b, err := MarshalTree(reordered)
	if err != nil {
		t.Fatalf("MarshalTree: %v", err)
	}
	if !cmp.Equal(a, b) {
		t.Fatalf("tree encoding depends on construction order, not sorted Name")
	}

	got, err := UnmarshalTree(a)
	if err != nil {
		t.Fatalf("UnmarshalTree: %v", err)
	}
	if diff := cmp.Diff(reordered, got); diff != "" {
		t.Fatalf("tree round-trip mismatch (-want +got):\n%s", diff)
	}
}

func TestCommitRoundTrip(t *testing.T) {
	c := &Commit{
		Parents:   []ID{},
		Timestamp: 1700000000,
		Message:   "observed file write",
		RootTree:  "",
		Type:      CommitStaleAutoCompact,
		IdleSecs:  604800,
		NarrativeRefs: []NarrativeRef{
			{Path: "notes/overview.md", Stream: "main", Role: NarrativeOverview, BlobID: ""},
		},
	}
	enc, err := MarshalCommit(c)
	if err != nil {
		t.Fatalf("MarshalCommit: %v", err)
	}
	got, err := UnmarshalCommit(enc)
	if err != nil {
		t.Fatalf("UnmarshalCommit: %v", err)
	}
	if diff := cmp.Diff(c, got, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("commit round-trip mismatch (-want +got):\n%s", diff)
	}

	enc2, err := MarshalCommit(c)
	if err != nil {
		t.Fatalf("MarshalCommit (2nd): %v", err)
	}
	if !cmp.Equal(enc, enc2) {
		t.Fatal("MarshalCommit is not a pure function of its input")
	}
}
