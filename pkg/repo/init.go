package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/redisun/ctx/pkg/config"
	"github.com/redisun/ctx/pkg/index"
	"github.com/redisun/ctx/pkg/object"
	"github.com/redisun/ctx/pkg/refs"
)

// Init creates a repository at path: the .ctx/ directory tree,
// a default configuration, an empty root tree, and an initial
// canonical commit that canonical head is set to.
func Init(path string, cfg config.Config) (*Repo, error) {
	ctxDir := ctxPath(path)
	if _, err := os.Stat(ctxDir); err == nil {
		return nil, fmt.Errorf("init: repository already exists at %s", ctxDir)
	}

	dirs := []string{
		filepath.Join(ctxDir, "objects"),
		filepath.Join(ctxDir, "refs"),
		filepath.Join(ctxDir, "index"),
		filepath.Join(ctxDir, "DERIVED"),
	}
	for _, role := range narrativeRoles {
		dirs = append(dirs, filepath.Join(ctxDir, "narrative", role))
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("init: mkdir %s: %w", d, err)
		}
	}

	if err := config.Save(ctxDir, cfg); err != nil {
		return nil, fmt.Errorf("init: write config: %w", err)
	}

	objects := object.NewStore(ctxDir)
	objects.SetCompressionLevel(cfg.Storage.CompressionLevel)
	refStore := refs.NewStore(filepath.Join(ctxDir, "refs"), filepath.Join(ctxDir, "LOCK"))

	emptyTreeID, err := objects.PutTree(&object.Tree{})
	if err != nil {
		return nil, fmt.Errorf("init: write empty tree: %w", err)
	}
	commitID, err := objects.PutCommit(&object.Commit{
		Timestamp: time.Now().Unix(),
		Message:   "repository initialized",
		RootTree:  emptyTreeID,
		Type:      object.CommitNormal,
	})
	if err != nil {
		return nil, fmt.Errorf("init: write initial commit: %w", err)
	}
	if err := refStore.Set(refs.HeadRef, commitID); err != nil {
		return nil, fmt.Errorf("init: set HEAD: %w", err)
	}

	ix, err := index.Open(index.DefaultConfig(filepath.Join(ctxDir, "index")))
	if err != nil {
		return nil, fmt.Errorf("init: open index: %w", err)
	}
	if err := index.Rebuild(ix, objects, refStore); err != nil {
		ix.Close()
		return nil, fmt.Errorf("init: build initial index: %w", err)
	}

	lock, err := refStore.AcquireLock()
	if err != nil {
		ix.Close()
		return nil, translateLockErr(err)
	}

	return &Repo{
		rootDir: path,
		ctxDir:  ctxDir,
		Objects: objects,
		Refs:    refStore,
		Index:   ix,
		Config:  cfg,
		Logger:  zap.NewNop(),
		lock:    lock,
		ignore:  newIgnoreMatcher(cfg.Ingestion.IgnoreGlobs),
	}, nil
}

// Open opens an existing repository rooted at path, searching upward
// through parent directories for a .ctx/ layout. It acquires the
// repository-wide advisory lock for the lifetime of the returned
// handle, lazily rebuilds the index if missing, and recovers any
// session pointer left over from a previous process.
func Open(path string) (*Repo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("open: abs path: %w", err)
	}

	cur := abs
	var ctxDir string
	for {
		candidate := ctxPath(cur)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			ctxDir = candidate
			break
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return nil, fmt.Errorf("open: not a repository (or any parent up to /): %s", abs)
		}
		cur = parent
	}

	objects := object.NewStore(ctxDir)
	refStore := refs.NewStore(filepath.Join(ctxDir, "refs"), filepath.Join(ctxDir, "LOCK"))

	lock, err := refStore.AcquireLock()
	if err != nil {
		return nil, translateLockErr(err)
	}

	cfg, err := config.Load(ctxDir)
	if err != nil {
		lock.Release()
		return nil, fmt.Errorf("open: load config: %w", err)
	}
	objects.SetCompressionLevel(cfg.Storage.CompressionLevel)

	indexDir := filepath.Join(ctxDir, "index")
	rebuildNeeded := indexIsEmpty(indexDir)
	ix, err := index.Open(index.DefaultConfig(indexDir))
	if err != nil {
		lock.Release()
		return nil, fmt.Errorf("open: open index: %w", err)
	}
	if rebuildNeeded {
		if err := index.Rebuild(ix, objects, refStore); err != nil {
			ix.Close()
			lock.Release()
			return nil, fmt.Errorf("open: rebuild missing index: %w", err)
		}
	}

	r := &Repo{
		rootDir: cur,
		ctxDir:  ctxDir,
		Objects: objects,
		Refs:    refStore,
		Index:   ix,
		Config:  cfg,
		Logger:  zap.NewNop(),
		lock:    lock,
		ignore:  newIgnoreMatcher(cfg.Ingestion.IgnoreGlobs),
	}

	if err := r.recoverSession(); err != nil {
		ix.Close()
		lock.Release()
		return nil, fmt.Errorf("open: recover session: %w", err)
	}

	return r, nil
}

func translateLockErr(err error) error {
	if err == refs.ErrLockHeld {
		return ErrLockConflict
	}
	return fmt.Errorf("acquire lock: %w", err)
}

func indexIsEmpty(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return true
	}
	return len(entries) == 0
}
