package staging

import (
	"testing"

	"github.com/redisun/ctx/pkg/graph"
	"github.com/redisun/ctx/pkg/object"
	"github.com/redisun/ctx/pkg/refs"
)

func newTestEnv(t *testing.T) (*object.Store, *refs.Store) {
	t.Helper()
	dir := t.TempDir()
	objects := object.NewStore(dir)
	refStore := refs.NewStore(dir+"/refs", dir+"/LOCK")
	return objects, refStore
}

func baseCommit(t *testing.T, objects *object.Store) object.ID {
	t.Helper()
	id, err := objects.PutCommit(&object.Commit{Timestamp: 1, Message: "init"})
	if err != nil {
		t.Fatalf("PutCommit: %v", err)
	}
	return id
}

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		from  StateKind
		event Event
		wantOK bool
	}{
		{StateRunning, EventAsk, true},
		{StateRunning, EventRespond, false},
		{StateAwaitingUser, EventRespond, true},
		{StateRunning, EventInterrupt, true},
		{StateInterrupted, EventResume, true},
		{StateRunning, EventFinish, true},
		{StatePendingComplete, EventConfirm, true},
		{StatePendingComplete, EventModify, true},
		{StateRunning, EventAbort, true},
		{StateAwaitingUser, EventAbort, true},
		{StatePendingComplete, EventAbort, true},
		{StateInterrupted, EventAbort, false},
		{StateComplete, EventAbort, false},
		{StateComplete, EventFinish, false},
	}
	for _, c := range cases {
		_, err := Transition(State{Kind: c.from}, c.event, State{})
		if c.wantOK && err != nil {
			t.Errorf("%s --%s--> expected ok, got %v", c.from, c.event, err)
		}
		if !c.wantOK && err == nil {
			t.Errorf("%s --%s--> expected error, got none", c.from, c.event)
		}
	}
}

func TestSessionFlushIsIdempotentOnEmptyBuffer(t *testing.T) {
	objects, refStore := newTestEnv(t)
	base := baseCommit(t, objects)

	s, err := Open(objects, refStore, "sess-1", base)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	blobID, err := objects.PutBlob([]byte("observed"))
	if err != nil {
		t.Fatalf("PutBlob: %v", err)
	}
	s.Buffer(blobID)
	head1, err := s.Flush("observe", 100)
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}

	head2, err := s.Flush("observe", 200)
	if err != nil {
		t.Fatalf("Flush (no-op): %v", err)
	}
	if head1 != head2 {
		t.Fatalf("expected idempotent flush on empty buffer, got new head %s != %s", head2, head1)
	}
}

func TestSessionFirstFlushOnEmptyBufferIsNoOp(t *testing.T) {
	objects, refStore := newTestEnv(t)
	base := baseCommit(t, objects)

	s, err := Open(objects, refStore, "sess-fresh", base)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	head, err := s.Flush("observe", 100)
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if head != "" {
		t.Fatalf("expected no work-commit from a fresh session's first empty flush, got %s", head)
	}
	if s.Head() != "" {
		t.Fatalf("expected staging chain to stay empty, got head %s", s.Head())
	}

	reopened, err := Open(objects, refStore, "sess-fresh", base)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reopened.Head() != "" {
		t.Fatalf("expected no staging ref to have been written, got head %s", reopened.Head())
	}
}

func TestStepBudgetResetsOnFlush(t *testing.T) {
	objects, refStore := newTestEnv(t)
	base := baseCommit(t, objects)

	s, err := Open(objects, refStore, "sess-budget", base)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	s.RecordFileObservation(100)
	s.RecordFileObservation(50)
	if files, bytes := s.StepBudgetUsage(); files != 2 || bytes != 150 {
		t.Fatalf("expected 2 files/150 bytes recorded, got %d/%d", files, bytes)
	}

	blobID, err := objects.PutBlob([]byte("artifact"))
	if err != nil {
		t.Fatalf("PutBlob: %v", err)
	}
	s.Buffer(blobID)
	if _, err := s.Flush("observe", 100); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	if files, bytes := s.StepBudgetUsage(); files != 0 || bytes != 0 {
		t.Fatalf("expected step budget counters to reset after Flush, got %d/%d", files, bytes)
	}
}

func TestSessionChainWalksBackToBase(t *testing.T) {
	objects, refStore := newTestEnv(t)
	base := baseCommit(t, objects)

	s, err := Open(objects, refStore, "sess-2", base)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	id1, _ := objects.PutBlob([]byte("one"))
	s.Buffer(id1)
	if _, err := s.Flush("step1", 1); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	id2, _ := objects.PutBlob([]byte("two"))
	s.Buffer(id2)
	head, err := s.Flush("step2", 2)
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}

	first, err := GetWorkCommit(objects, head)
	if err != nil {
		t.Fatalf("GetWorkCommit: %v", err)
	}
	second, err := GetWorkCommit(objects, first.Parent)
	if err != nil {
		t.Fatalf("GetWorkCommit parent: %v", err)
	}
	if second.Parent != base {
		t.Fatalf("expected first work-commit's parent to be base, got %s want %s", second.Parent, base)
	}
}

func TestCompactMergesEdgeBatchesAndDedupsFileVersions(t *testing.T) {
	objects, refStore := newTestEnv(t)
	base := baseCommit(t, objects)

	s, err := Open(objects, refStore, "sess-3", base)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	blob1, _ := objects.PutBlob([]byte("v1"))
	fv1, _ := objects.PutFileVersion(&object.FileVersion{FileID: "main.go", BlobID: blob1, ByteCount: 2})
	s.Buffer(fv1)
	eb1, _ := graph.PutEdgeBatch(objects, &graph.EdgeBatch{Edges: []graph.Edge{
		{From: graph.NodeId{Kind: graph.NodeItem, Key: "a"}, To: graph.NodeId{Kind: graph.NodeItem, Key: "b"}, Label: graph.LabelCalls, Evidence: graph.Evidence{Tool: "t", Confidence: graph.ConfidenceHigh}},
	}})
	s.Buffer(eb1)
	if _, err := s.Flush("step1", 1); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	blob2, _ := objects.PutBlob([]byte("v2, longer"))
	fv2, _ := objects.PutFileVersion(&object.FileVersion{FileID: "main.go", BlobID: blob2, ByteCount: 10})
	s.Buffer(fv2)
	head, err := s.Flush("step2", 2)
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}

	result, err := Compact(objects, head)
	if err != nil {
		t.Fatalf("Compact: %v", err)
	}
	if result.FileVersions["main.go"] != fv2 {
		t.Fatalf("expected last-write-wins fileversion %s, got %s", fv2, result.FileVersions["main.go"])
	}
	if result.EdgeBatch == "" {
		t.Fatal("expected a merged edge batch")
	}
	merged, err := graph.GetEdgeBatch(objects, result.EdgeBatch)
	if err != nil {
		t.Fatalf("GetEdgeBatch: %v", err)
	}
	if len(merged.Edges) != 1 {
		t.Fatalf("expected 1 merged edge, got %d", len(merged.Edges))
	}
}

func TestRecoveryResetsPointerWhenBaseNotAncestor(t *testing.T) {
	objects, refStore := newTestEnv(t)
	base := baseCommit(t, objects)

	s, err := Open(objects, refStore, "sess-4", base)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	id, _ := objects.PutBlob([]byte("x"))
	s.Buffer(id)
	if _, err := s.Flush("step", 1); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	otherHead, err := objects.PutCommit(&object.Commit{Timestamp: 99, Message: "unrelated"})
	if err != nil {
		t.Fatalf("PutCommit: %v", err)
	}

	outcome, err := Recover(objects, refStore, "sess-4", otherHead)
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if outcome != RecoveryReset {
		t.Fatalf("expected RecoveryReset, got %v", outcome)
	}

	remaining, err := refStore.Get(RefName("sess-4"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if remaining != "" {
		t.Fatal("expected staging pointer to be cleared after reset")
	}
}

func TestStaleSessionPolicyThresholds(t *testing.T) {
	p := DefaultStaleSessionPolicy
	if got := p.Evaluate("t", 60).Kind; got != StaleFresh {
		t.Errorf("expected Fresh, got %v", got)
	}
	if got := p.Evaluate("t", 25*60*60).Kind; got != StaleShouldAsk {
		t.Errorf("expected ShouldAsk, got %v", got)
	}
	if got := p.Evaluate("t", 8*24*60*60).Kind; got != StaleShouldAutoCompact {
		t.Errorf("expected ShouldAutoCompact, got %v", got)
	}
}
