package repo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/redisun/ctx/pkg/config"
	"github.com/redisun/ctx/pkg/graph"
	"github.com/redisun/ctx/pkg/object"
	"github.com/redisun/ctx/pkg/refs"
	"github.com/redisun/ctx/pkg/staging"
)

func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	dir := t.TempDir()
	r, err := Init(dir, config.Default())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestInitCreatesLayout(t *testing.T) {
	r := newTestRepo(t)

	for _, sub := range []string{"objects", "refs", "index", "DERIVED"} {
		if info, err := os.Stat(filepath.Join(r.CtxDir(), sub)); err != nil || !info.IsDir() {
			t.Errorf("expected directory %s to exist: %v", sub, err)
		}
	}
	for _, role := range narrativeRoles {
		if info, err := os.Stat(filepath.Join(r.CtxDir(), "narrative", role)); err != nil || !info.IsDir() {
			t.Errorf("expected narrative/%s to exist: %v", role, err)
		}
	}

	head, err := r.Refs.Get(refs.HeadRef)
	if err != nil {
		t.Fatalf("Get HEAD: %v", err)
	}
	if head == "" {
		t.Fatal("expected HEAD to be set after Init")
	}
	commit, err := r.Objects.GetCommit(head)
	if err != nil {
		t.Fatalf("GetCommit: %v", err)
	}
	if len(commit.Parents) != 0 {
		t.Errorf("expected initial commit to have no parents, got %v", commit.Parents)
	}
}

func TestInitTwiceFails(t *testing.T) {
	dir := t.TempDir()
	r, err := Init(dir, config.Default())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	r.Close()

	if _, err := Init(dir, config.Default()); err == nil {
		t.Fatal("expected second Init on the same path to fail")
	}
}

func TestOpenFindsRepositoryInParentDirectory(t *testing.T) {
	dir := t.TempDir()
	r, err := Init(dir, config.Default())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	r.Close()

	nested := filepath.Join(dir, "a", "b", "c")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	r2, err := Open(nested)
	if err != nil {
		t.Fatalf("Open from nested dir: %v", err)
	}
	defer r2.Close()

	if r2.LastRecovery() != staging.RecoveryNone {
		t.Errorf("expected RecoveryNone on a repo with no session, got %v", r2.LastRecovery())
	}
}

func TestOpenWhileLockedFails(t *testing.T) {
	dir := t.TempDir()
	r, err := Init(dir, config.Default())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer r.Close()

	if _, err := Open(dir); err != ErrLockConflict {
		t.Fatalf("expected ErrLockConflict, got %v", err)
	}
}

func TestSessionLifecycleFlushAndCompact(t *testing.T) {
	r := newTestRepo(t)

	if _, err := r.StartSession("write the readme"); err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	if _, err := r.ObserveFileWrite("README.md", []byte("hello\nworld\n"), 100); err != nil {
		t.Fatalf("ObserveFileWrite: %v", err)
	}
	if _, err := r.FlushActiveSession("edit", 100); err != nil {
		t.Fatalf("FlushActiveSession: %v", err)
	}

	if _, err := os.Stat(stagePath(r.CtxDir())); err != nil {
		t.Errorf("expected STAGE file after flush: %v", err)
	}

	if err := r.SetState(staging.EventFinish, staging.State{Summary: "done"}); err != nil {
		t.Fatalf("SetState finish: %v", err)
	}
	if err := r.SetState(staging.EventConfirm, staging.State{}); err != nil {
		t.Fatalf("SetState confirm: %v", err)
	}
	if _, err := r.FlushActiveSession("confirm", 101); err != nil {
		t.Fatalf("FlushActiveSession: %v", err)
	}

	oldHead, err := r.Refs.Get(refs.HeadRef)
	if err != nil {
		t.Fatalf("Get HEAD: %v", err)
	}

	newHead, err := r.CompactSession("wrote the readme", 102)
	if err != nil {
		t.Fatalf("CompactSession: %v", err)
	}
	if newHead == oldHead {
		t.Fatal("expected HEAD to advance after compaction")
	}
	if r.ActiveSession() != nil {
		t.Fatal("expected no active session after compaction")
	}
	if _, err := os.Stat(stagePath(r.CtxDir())); !os.IsNotExist(err) {
		t.Errorf("expected STAGE file to be removed after compaction, got err=%v", err)
	}

	commit, err := r.Objects.GetCommit(newHead)
	if err != nil {
		t.Fatalf("GetCommit: %v", err)
	}
	if commit.Type != object.CommitNormal {
		t.Errorf("expected CommitNormal, got %v", commit.Type)
	}
	tree, err := r.Objects.GetTree(commit.RootTree)
	if err != nil {
		t.Fatalf("GetTree: %v", err)
	}
	found := false
	for _, e := range tree.Entries {
		if e.Name == "README.md" {
			found = true
		}
	}
	if !found {
		t.Error("expected compacted tree to contain README.md")
	}
}

func TestStartSessionWhileOneActiveFails(t *testing.T) {
	r := newTestRepo(t)

	if _, err := r.StartSession("first task"); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if _, err := r.StartSession("second task"); err != ErrStagingConflict {
		t.Fatalf("expected ErrStagingConflict, got %v", err)
	}
}

func TestObserveWithoutSessionFails(t *testing.T) {
	r := newTestRepo(t)

	if _, err := r.ObserveFileWrite("a.txt", []byte("x"), 1); err != ErrNoActiveSession {
		t.Fatalf("expected ErrNoActiveSession, got %v", err)
	}
	if _, err := r.ObserveNote("note", 1); err != ErrNoActiveSession {
		t.Fatalf("expected ErrNoActiveSession, got %v", err)
	}
}

func TestCompactSessionRejectsNonTerminalState(t *testing.T) {
	r := newTestRepo(t)

	if _, err := r.StartSession("still running"); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if _, err := r.FlushActiveSession("step", 1); err != nil {
		t.Fatalf("FlushActiveSession: %v", err)
	}
	if _, err := r.CompactSession("too early", 2); err == nil {
		t.Fatal("expected CompactSession to reject a session still Running")
	}
}

func TestFileWriteDedupsIdenticalContentAcrossSessions(t *testing.T) {
	r := newTestRepo(t)

	if _, err := r.StartSession("first"); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	fv1, err := r.ObserveFileWrite("main.go", []byte("package main\n"), 1)
	if err != nil {
		t.Fatalf("ObserveFileWrite: %v", err)
	}
	if _, err := r.FlushActiveSession("edit", 1); err != nil {
		t.Fatalf("FlushActiveSession: %v", err)
	}
	if err := r.SetState(staging.EventFinish, staging.State{}); err != nil {
		t.Fatalf("SetState: %v", err)
	}
	if err := r.SetState(staging.EventConfirm, staging.State{}); err != nil {
		t.Fatalf("SetState: %v", err)
	}
	if _, err := r.FlushActiveSession("confirm", 1); err != nil {
		t.Fatalf("FlushActiveSession: %v", err)
	}
	if _, err := r.CompactSession("first commit", 2); err != nil {
		t.Fatalf("CompactSession: %v", err)
	}

	if _, err := r.StartSession("second"); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	fv2, err := r.ObserveFileWrite("main.go", []byte("package main\n"), 3)
	if err != nil {
		t.Fatalf("ObserveFileWrite: %v", err)
	}

	v1, err := r.Objects.GetFileVersion(fv1)
	if err != nil {
		t.Fatalf("GetFileVersion: %v", err)
	}
	v2, err := r.Objects.GetFileVersion(fv2)
	if err != nil {
		t.Fatalf("GetFileVersion: %v", err)
	}
	if v1.BlobID != v2.BlobID {
		t.Errorf("expected identical content to dedup to the same blob, got %s and %s", v1.BlobID, v2.BlobID)
	}
}

func TestCheckStaleSessionAutoCompacts(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Session.AskThresholdSecs = 10
	cfg.Session.AutoCompactThresholdSecs = 20
	r, err := Init(dir, cfg)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer r.Close()

	if _, err := r.StartSession("idle task"); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if _, err := r.ObserveNote("working on it", 0); err != nil {
		t.Fatalf("ObserveNote: %v", err)
	}
	if _, err := r.FlushActiveSession("note", 0); err != nil {
		t.Fatalf("FlushActiveSession: %v", err)
	}

	status, err := r.CheckStaleSession(100)
	if err != nil {
		t.Fatalf("CheckStaleSession: %v", err)
	}
	if status.Kind != staging.StaleShouldAutoCompact {
		t.Fatalf("expected StaleShouldAutoCompact, got %v", status.Kind)
	}
	if r.ActiveSession() != nil {
		t.Fatal("expected session to be cleared after auto-compaction")
	}

	head, err := r.Refs.Get(refs.HeadRef)
	if err != nil {
		t.Fatalf("Get HEAD: %v", err)
	}
	commit, err := r.Objects.GetCommit(head)
	if err != nil {
		t.Fatalf("GetCommit: %v", err)
	}
	if commit.Type != object.CommitStaleAutoCompact {
		t.Errorf("expected CommitStaleAutoCompact, got %v", commit.Type)
	}
	if commit.IdleSecs != 100 {
		t.Errorf("expected IdleSecs=100, got %d", commit.IdleSecs)
	}
}

func TestObserveRelationsAppliesEdgeBudget(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Ingestion.MaxEdgesPerStep = 1
	r, err := Init(dir, cfg)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer r.Close()

	if _, err := r.StartSession("ingest"); err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	edges := []graph.Edge{
		{
			From:     graph.NodeId{Kind: graph.NodeFile, Key: "a.go"},
			To:       graph.NodeId{Kind: graph.NodeFile, Key: "b.go"},
			Label:    graph.LabelImports,
			Evidence: graph.Evidence{Tool: "analyzer", Confidence: graph.ConfidenceHigh},
		},
		{
			From:     graph.NodeId{Kind: graph.NodeFile, Key: "a.go"},
			To:       graph.NodeId{Kind: graph.NodeFile, Key: "c.go"},
			Label:    graph.LabelImports,
			Evidence: graph.Evidence{Tool: "analyzer", Confidence: graph.ConfidenceHigh},
		},
	}

	if _, err := r.ObserveRelations(edges, 1); err == nil {
		t.Fatal("expected budget-exceeded error for two edges against a cap of one")
	} else if _, ok := err.(*BudgetExceededError); !ok {
		t.Fatalf("expected *BudgetExceededError, got %T: %v", err, err)
	}
}

func TestRebuildIndexIsIdempotent(t *testing.T) {
	r := newTestRepo(t)

	if _, err := r.StartSession("work"); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if _, err := r.ObserveFileWrite("a.go", []byte("package a\n"), 1); err != nil {
		t.Fatalf("ObserveFileWrite: %v", err)
	}
	if _, err := r.FlushActiveSession("edit", 1); err != nil {
		t.Fatalf("FlushActiveSession: %v", err)
	}
	if err := r.SetState(staging.EventFinish, staging.State{}); err != nil {
		t.Fatalf("SetState: %v", err)
	}
	if err := r.SetState(staging.EventConfirm, staging.State{}); err != nil {
		t.Fatalf("SetState: %v", err)
	}
	if _, err := r.FlushActiveSession("confirm", 1); err != nil {
		t.Fatalf("FlushActiveSession: %v", err)
	}
	if _, err := r.CompactSession("added a.go", 2); err != nil {
		t.Fatalf("CompactSession: %v", err)
	}

	if err := r.RebuildIndex(RebuildFull); err != nil {
		t.Fatalf("RebuildIndex: %v", err)
	}
	path, ok, err := r.Index.GetPath("a.go")
	if err != nil {
		t.Fatalf("GetPath: %v", err)
	}
	if !ok || path != "a.go" {
		t.Errorf("expected index to resolve a.go after rebuild, got %q ok=%v", path, ok)
	}

	if err := r.RebuildIndex(RebuildSccOnly); err != nil {
		t.Fatalf("RebuildIndex(SccOnly): %v", err)
	}
}

func TestGCKeepsUnreachableObjectsWithinGracePeriod(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.GC.GracePeriodDays = 7
	r, err := Init(dir, cfg)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer r.Close()

	if _, err := r.Objects.PutBlob([]byte("orphaned")); err != nil {
		t.Fatalf("PutBlob: %v", err)
	}

	report, err := r.GC(GCOptions{})
	if err != nil {
		t.Fatalf("GC: %v", err)
	}
	if report.Unreachable == 0 {
		t.Error("expected at least one unreachable object")
	}
	if report.Deleted != 0 {
		t.Errorf("expected nothing deleted within the grace period, deleted %d", report.Deleted)
	}
	if report.KeptInGrace == 0 {
		t.Error("expected the orphaned blob to be counted as kept in grace")
	}
}

func TestGCReportsBytesFreed(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.GC.GracePeriodDays = 0
	r, err := Init(dir, cfg)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer r.Close()

	if _, err := r.Objects.PutBlob([]byte("orphaned and unreachable")); err != nil {
		t.Fatalf("PutBlob: %v", err)
	}

	report, err := r.GC(GCOptions{})
	if err != nil {
		t.Fatalf("GC: %v", err)
	}
	if report.Deleted == 0 {
		t.Fatal("expected the orphaned blob to be deleted outside the grace period")
	}
	if report.BytesFreed == 0 {
		t.Error("expected BytesFreed to account for the deleted object's size")
	}
}

func TestCleanupStaleSessionsCompactsPastMaxAge(t *testing.T) {
	r := newTestRepo(t)

	if _, err := r.StartSession("long-running task"); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if _, err := r.ObserveFileWrite("a.go", []byte("package a"), 0); err != nil {
		t.Fatalf("ObserveFileWrite: %v", err)
	}
	if _, err := r.FlushActiveSession("edit", 0); err != nil {
		t.Fatalf("FlushActiveSession: %v", err)
	}

	report, err := r.CleanupStaleSessions(3600, 7200)
	if err != nil {
		t.Fatalf("CleanupStaleSessions: %v", err)
	}
	if report.SessionsCompacted != 1 {
		t.Fatalf("expected 1 session compacted, got %d", report.SessionsCompacted)
	}
	if len(report.CompactedTasks) != 1 {
		t.Fatalf("expected 1 compacted task entry, got %v", report.CompactedTasks)
	}
	if r.ActiveSession() != nil {
		t.Error("expected compaction to clear the active session")
	}
}

func TestCleanupStaleSessionsNoopBelowMaxAge(t *testing.T) {
	r := newTestRepo(t)

	if _, err := r.StartSession("fresh task"); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if _, err := r.ObserveFileWrite("a.go", []byte("package a"), 0); err != nil {
		t.Fatalf("ObserveFileWrite: %v", err)
	}
	if _, err := r.FlushActiveSession("edit", 0); err != nil {
		t.Fatalf("FlushActiveSession: %v", err)
	}

	report, err := r.CleanupStaleSessions(3600, 100)
	if err != nil {
		t.Fatalf("CleanupStaleSessions: %v", err)
	}
	if report.SessionsCompacted != 0 {
		t.Fatalf("expected no sessions compacted below max age, got %d", report.SessionsCompacted)
	}
	if r.ActiveSession() == nil {
		t.Error("expected the session to remain active")
	}
}
