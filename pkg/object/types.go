// Package object implements the content-addressed, write-once object
// store: the canonical envelope, BLAKE3 hashing, zstd compression, and
// atomic-write discipline described in the core's storage contract.
package object

// ID is a 64-character lowercase hex-encoded BLAKE3 digest identifying
// an object by its canonical envelope bytes.
type ID string

// Kind discriminates the two envelope payload shapes: raw bytes, or a
// deterministically-encoded typed value.
type Kind uint8

const (
	// KindBlob marks raw, uninterpreted bytes (file content, markdown
	// snapshots, command output).
	KindBlob Kind = 1
	// KindTyped marks a deterministically-encoded typed object (tree,
	// commit, work-commit, edge batch, SCC view, ...).
	KindTyped Kind = 2
)

func (k Kind) String() string {
	switch k {
	case KindBlob:
		return "blob"
	case KindTyped:
		return "typed"
	default:
		return "unknown"
	}
}

// TypeTag identifies the concrete typed payload stored under KindTyped,
// so Store.GetTyped can refuse a type mismatch without guessing.
type TypeTag string

const (
	TypeTree        TypeTag = "tree"
	TypeCommit      TypeTag = "commit"
	TypeWorkCommit  TypeTag = "workcommit"
	TypeEdgeBatch   TypeTag = "edgebatch"
	TypeSccView     TypeTag = "sccview"
	TypeFileVersion TypeTag = "fileversion"
)

// Blob holds raw object bytes. MarshalBlob/UnmarshalBlob are the
// identity function; Blob exists so the store's typed convenience
// methods have a uniform shape across blob and typed objects.
type Blob struct {
	Data []byte
}

// TreeEntryKind distinguishes directory entries from leaf entries in a
// Tree snapshot.
type TreeEntryKind uint8

const (
	TreeEntryBlob TreeEntryKind = 1
	TreeEntryTree TreeEntryKind = 2
)

// TreeEntry is one entry in a Tree object, ordered by Name.
type TreeEntry struct {
	Name string
	Kind TreeEntryKind
	ID   ID
}

// Tree is a directory-like snapshot: an ordered list of (name, kind, id).
type Tree struct {
	Entries []TreeEntry
}

// CommitType distinguishes ordinary canonical commits from ones
// produced automatically by the stale-session or interruption policy.
type CommitType uint8

const (
	CommitNormal CommitType = iota
	CommitAbandoned
	CommitStaleAutoCompact
	CommitInterruptedByNewTask
)

// NarrativeRole classifies a NarrativeRef's place in the human-editable
// markdown tree.
type NarrativeRole uint8

const (
	NarrativeOverview NarrativeRole = iota
	NarrativeDecision
	NarrativeLog
	NarrativeTask
	NarrativeWork
)

// NarrativeRef names a Markdown snapshot captured inside a commit.
type NarrativeRef struct {
	Path   string
	Stream string
	Role   NarrativeRole
	BlobID ID
}

// FileVersion binds a logical file (identified by its normalized
// repository-relative path, the File node's stable key) to one
// content snapshot. LineCount is optional; -1 means "not computed"
// (binary content, for instance).
type FileVersion struct {
	FileID    string
	BlobID    ID
	ByteCount int64
	LineCount int64
}

// Commit is a canonical history node.
type Commit struct {
	Parents     []ID
	Timestamp   int64
	Message     string
	RootTree    ID
	EdgeBatches []ID

	NarrativeRefs []NarrativeRef

	// Optional snapshots; empty ID means "not captured this commit".
	BuildGraphSnapshot    ID
	SemanticGraphSnapshot ID
	DiagnosticsSnapshot   ID

	Type CommitType
	// IdleSecs is populated only when Type == CommitStaleAutoCompact.
	IdleSecs int64
	// InterruptSummary is populated only when Type == CommitInterruptedByNewTask.
	InterruptSummary string
}
