// Package index implements the rebuildable key-value lookup structures
// the retrieval pipeline reads: path/name/stable-key resolution, the
// per-commit snapshot pointer table, adjacency, and the edge-batch to
// containing-commit reverse index. Every table here is purely derived
// from the object store; deleting the index directory and rebuilding
// must reproduce byte-identical table contents.
package index

import (
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
)

// Config configures the embedded key-value backend.
type Config struct {
	// Path is the directory holding the index's database files.
	Path string
	// InMemory runs the index without touching disk, for tests.
	InMemory bool
	// SyncWrites forces fsync on every commit. Defaults to true for a
	// persistent index; the repository's own write-ahead guarantees
	// come from the object store and refs, not the index, so this
	// mostly protects against losing rebuild work on crash.
	SyncWrites bool
}

// DefaultConfig returns production defaults for a persistent index
// rooted at path.
func DefaultConfig(path string) Config {
	return Config{Path: path, SyncWrites: true}
}

// Index wraps an embedded key-value database with the table-specific
// accessors the façade and retrieval pipeline use.
type Index struct {
	db   *badger.DB
	path string
}

// Open opens (creating if absent) the index database at cfg.Path, or
// an in-memory one if cfg.InMemory is set.
func Open(cfg Config) (*Index, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, fmt.Errorf("index: path required for persistent database")
		}
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("index: create directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("index: open: %w", err)
	}
	return &Index{db: db, path: cfg.Path}, nil
}

// Close releases the database handle.
func (ix *Index) Close() error {
	return ix.db.Close()
}

// Path returns the on-disk directory, or "" for an in-memory index.
func (ix *Index) Path() string { return ix.path }

func (ix *Index) set(key, value []byte) error {
	return ix.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

func (ix *Index) get(key []byte) ([]byte, bool, error) {
	var out []byte
	err := ix.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			out = append([]byte(nil), val...)
			return nil
		})
	})
	if err != nil {
		return nil, false, err
	}
	return out, out != nil, nil
}

func (ix *Index) delete(key []byte) error {
	return ix.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(key)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		return err
	})
}

// scanPrefix invokes fn for every key with the given prefix, in
// Badger's default (lexicographic) key order.
func (ix *Index) scanPrefix(prefix []byte, fn func(key, value []byte) error) error {
	return ix.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := append([]byte(nil), item.Key()...)
			if err := item.Value(func(val []byte) error {
				return fn(key, val)
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// dropAll removes every key, used by Rebuild before repopulating.
func (ix *Index) dropAll() error {
	return ix.db.DropAll()
}
