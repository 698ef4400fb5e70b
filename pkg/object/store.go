package object

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
)

// Store is a content-addressed, write-once object store with a
// 2-character fan-out directory layout: objects/ab/cdef0123... Every
// object file holds a zstd-compressed canonical envelope; the ID under
// which it is filed is always the hash of the uncompressed envelope.
type Store struct {
	root         string
	encoderLevel zstd.EncoderLevel
}

// NewStore creates a Store rooted at the given directory, compressing
// at zstd's default level until SetCompressionLevel is called. The
// objects/ subdirectory is created lazily on first write.
func NewStore(root string) *Store {
	return &Store{root: root, encoderLevel: defaultEncoderLevel}
}

// SetCompressionLevel applies the repository's configured
// storage.compression_level to every subsequent write. It has no
// effect on objects already written: compression level is a property
// of how a given envelope's bytes were produced, not of the store.
func (s *Store) SetCompressionLevel(level int) {
	s.encoderLevel = levelFromConfig(level)
}

// Root returns the store's root directory.
func (s *Store) Root() string { return s.root }

func (s *Store) objectPath(id ID) string {
	h := string(id)
	if len(h) < 2 {
		return filepath.Join(s.root, "objects", h)
	}
	return filepath.Join(s.root, "objects", h[:2], h[2:])
}

// Has reports whether the store contains an object with the given ID.
func (s *Store) Has(id ID) bool {
	_, err := os.Stat(s.objectPath(id))
	return err == nil
}

// typeCode maps a TypeTag to the single byte stored ahead of a typed
// payload, so a typed object's tag survives the kind/payload split in
// the canonical envelope.
var typeCode = map[TypeTag]byte{
	TypeTree:        1,
	TypeCommit:      2,
	TypeWorkCommit:  3,
	TypeEdgeBatch:   4,
	TypeSccView:     5,
	TypeFileVersion: 6,
}

var codeType = func() map[byte]TypeTag {
	m := make(map[byte]TypeTag, len(typeCode))
	for tag, code := range typeCode {
		m[code] = tag
	}
	return m
}()

func (s *Store) writeEnvelope(id ID, kind Kind, payload []byte) error {
	if s.Has(id) {
		return nil
	}
	dir := filepath.Dir(s.objectPath(id))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("object write mkdir: %w", err)
	}

	raw := envelope(kind, payload)
	compressed, err := compressZstd(raw, s.encoderLevel)
	if err != nil {
		return fmt.Errorf("object write compress: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("object write tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(compressed); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("object write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("object write fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("object write close: %w", err)
	}

	if err := os.Rename(tmpName, s.objectPath(id)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("object write rename: %w", err)
	}
	if dirf, err := os.Open(dir); err == nil {
		_ = dirf.Sync()
		_ = dirf.Close()
	}
	return nil
}

func (s *Store) readEnvelope(id ID) (Kind, []byte, error) {
	compressed, err := os.ReadFile(s.objectPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil, ErrNotFound
		}
		return 0, nil, fmt.Errorf("object read %s: %w", id, err)
	}
	raw, err := decompressZstd(compressed)
	if err != nil {
		return 0, nil, fmt.Errorf("object read %s: %w", id, err)
	}
	kind, payload, err := parseEnvelope(raw)
	if err != nil {
		return 0, nil, fmt.Errorf("object read %s: %w", id, err)
	}
	got := HashEnvelope(kind, payload)
	if got != id {
		return 0, nil, &HashMismatchError{Want: id, Got: got}
	}
	return kind, payload, nil
}

// ---------------------------------------------------------------------------
// Blobs
// ---------------------------------------------------------------------------

// PutBlob stores raw bytes as a Blob and returns its ID.
func (s *Store) PutBlob(data []byte) (ID, error) {
	payload := MarshalBlob(&Blob{Data: data})
	id := HashEnvelope(KindBlob, payload)
	if err := s.writeEnvelope(id, KindBlob, payload); err != nil {
		return "", err
	}
	return id, nil
}

// GetBlob reads and deserializes a Blob.
func (s *Store) GetBlob(id ID) (*Blob, error) {
	kind, payload, err := s.readEnvelope(id)
	if err != nil {
		return nil, err
	}
	if kind != KindBlob {
		return nil, &TypeMismatchError{ID: id, Want: "blob", Got: TypeTag(kind.String())}
	}
	b, err := UnmarshalBlob(payload)
	if err != nil {
		return nil, &DeserializationError{Type: "blob", ID: id, Err: err}
	}
	return b, nil
}

// ---------------------------------------------------------------------------
// Typed objects
// ---------------------------------------------------------------------------

// PutTyped stores an already-encoded typed payload under tag and
// returns its ID. Callers are the per-type Marshal functions in this
// package and in pkg/graph/pkg/staging.
func (s *Store) PutTyped(tag TypeTag, encoded []byte) (ID, error) {
	code, ok := typeCode[tag]
	if !ok {
		return "", fmt.Errorf("put typed: unknown type tag %q", tag)
	}
	payload := make([]byte, 0, 1+len(encoded))
	payload = append(payload, code)
	payload = append(payload, encoded...)
	id := HashEnvelope(KindTyped, payload)
	if err := s.writeEnvelope(id, KindTyped, payload); err != nil {
		return "", err
	}
	return id, nil
}

// GetTyped reads a typed object, returning its tag and encoded body
// (the bytes a per-type Unmarshal function consumes).
func (s *Store) GetTyped(id ID) (TypeTag, []byte, error) {
	kind, payload, err := s.readEnvelope(id)
	if err != nil {
		return "", nil, err
	}
	if kind != KindTyped {
		return "", nil, fmt.Errorf("object %s: not a typed object", id)
	}
	if len(payload) < 1 {
		return "", nil, &DeserializationError{ID: id, Err: fmt.Errorf("empty typed payload")}
	}
	tag, ok := codeType[payload[0]]
	if !ok {
		return "", nil, &DeserializationError{ID: id, Err: fmt.Errorf("unknown type code %d", payload[0])}
	}
	return tag, payload[1:], nil
}

// requireTag reads a typed object and errors if its tag doesn't match want.
func (s *Store) requireTag(id ID, want TypeTag) ([]byte, error) {
	tag, body, err := s.GetTyped(id)
	if err != nil {
		return nil, err
	}
	if tag != want {
		return nil, &TypeMismatchError{ID: id, Want: want, Got: tag}
	}
	return body, nil
}

// PutTree serializes and stores a Tree.
func (s *Store) PutTree(tr *Tree) (ID, error) {
	enc, err := MarshalTree(tr)
	if err != nil {
		return "", err
	}
	return s.PutTyped(TypeTree, enc)
}

// GetTree reads and deserializes a Tree.
func (s *Store) GetTree(id ID) (*Tree, error) {
	body, err := s.requireTag(id, TypeTree)
	if err != nil {
		return nil, err
	}
	tr, err := UnmarshalTree(body)
	if err != nil {
		return nil, &DeserializationError{Type: TypeTree, ID: id, Err: err}
	}
	return tr, nil
}

// PutCommit serializes and stores a Commit.
func (s *Store) PutCommit(c *Commit) (ID, error) {
	enc, err := MarshalCommit(c)
	if err != nil {
		return "", err
	}
	return s.PutTyped(TypeCommit, enc)
}

// GetCommit reads and deserializes a Commit.
func (s *Store) GetCommit(id ID) (*Commit, error) {
	body, err := s.requireTag(id, TypeCommit)
	if err != nil {
		return nil, err
	}
	c, err := UnmarshalCommit(body)
	if err != nil {
		return nil, &DeserializationError{Type: TypeCommit, ID: id, Err: err}
	}
	return c, nil
}

// PutFileVersion serializes and stores a FileVersion.
func (s *Store) PutFileVersion(fv *FileVersion) (ID, error) {
	enc, err := MarshalFileVersion(fv)
	if err != nil {
		return "", err
	}
	return s.PutTyped(TypeFileVersion, enc)
}

// GetFileVersion reads and deserializes a FileVersion.
func (s *Store) GetFileVersion(id ID) (*FileVersion, error) {
	body, err := s.requireTag(id, TypeFileVersion)
	if err != nil {
		return nil, err
	}
	fv, err := UnmarshalFileVersion(body)
	if err != nil {
		return nil, &DeserializationError{Type: TypeFileVersion, ID: id, Err: err}
	}
	return fv, nil
}

// IterIDs walks every object file currently on disk, calling fn with
// each ID. Used by GC's mark-and-sweep and by verify. IDs come in
// ascending order, since os.ReadDir returns both the fan-out
// directories and their files sorted by name.
func (s *Store) IterIDs(fn func(ID) error) error {
	objectsDir := filepath.Join(s.root, "objects")
	entries, err := os.ReadDir(objectsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("iter objects: %w", err)
	}
	for _, shard := range entries {
		if !shard.IsDir() {
			continue
		}
		shardPath := filepath.Join(objectsDir, shard.Name())
		files, err := os.ReadDir(shardPath)
		if err != nil {
			return fmt.Errorf("iter objects shard %s: %w", shard.Name(), err)
		}
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			id := ID(shard.Name() + f.Name())
			if err := fn(id); err != nil {
				return err
			}
		}
	}
	return nil
}

// Delete removes an object's file. Used only by GC after a grace
// period has elapsed for objects found unreachable.
func (s *Store) Delete(id ID) error {
	err := os.Remove(s.objectPath(id))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete object %s: %w", id, err)
	}
	return nil
}

// Size reports the on-disk (compressed) size of an object, or an error
// if it doesn't exist.
func (s *Store) Size(id ID) (int64, error) {
	fi, err := os.Stat(s.objectPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return fi.Size(), nil
}

// ModTime reports an object file's last-modified time, used by GC to
// honor the grace period before deleting an unreachable object.
func (s *Store) ModTime(id ID) (time.Time, error) {
	fi, err := os.Stat(s.objectPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return time.Time{}, ErrNotFound
		}
		return time.Time{}, err
	}
	return fi.ModTime(), nil
}

// GetRawEnvelope reads an object's kind and payload without requiring a
// particular typed tag, for callers (export) that just want to move
// bytes between stores unchanged.
func (s *Store) GetRawEnvelope(id ID) (Kind, []byte, error) {
	return s.readEnvelope(id)
}

// PutRawEnvelope writes an already-encoded (kind, payload) pair,
// computing its id the same way the typed Put* helpers do. Used by
// session import to replay another store's objects verbatim.
func (s *Store) PutRawEnvelope(kind Kind, payload []byte) (ID, error) {
	id := HashEnvelope(kind, payload)
	if err := s.writeEnvelope(id, kind, payload); err != nil {
		return "", err
	}
	return id, nil
}
