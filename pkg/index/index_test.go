package index

import (
	"testing"

	"github.com/redisun/ctx/pkg/graph"
	"github.com/redisun/ctx/pkg/object"
	"github.com/redisun/ctx/pkg/refs"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	ix, err := Open(Config{InMemory: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { ix.Close() })
	return ix
}

func TestPathRoundTrip(t *testing.T) {
	ix := newTestIndex(t)
	if err := ix.PutPath("src/main.go", "src/main.go"); err != nil {
		t.Fatalf("PutPath: %v", err)
	}
	got, ok, err := ix.GetPath("src/main.go")
	if err != nil || !ok {
		t.Fatalf("GetPath: got=%v ok=%v err=%v", got, ok, err)
	}
	if got != "src/main.go" {
		t.Fatalf("expected src/main.go, got %s", got)
	}
	if _, ok, err := ix.GetPath("missing.go"); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
}

func TestNameAppendIsSetLike(t *testing.T) {
	ix := newTestIndex(t)
	if err := ix.AppendName("file", "main.go", object.ID("a")); err != nil {
		t.Fatalf("AppendName: %v", err)
	}
	if err := ix.AppendName("file", "main.go", object.ID("b")); err != nil {
		t.Fatalf("AppendName: %v", err)
	}
	if err := ix.AppendName("file", "main.go", object.ID("a")); err != nil {
		t.Fatalf("AppendName dup: %v", err)
	}
	ids, err := ix.GetName("file", "main.go")
	if err != nil {
		t.Fatalf("GetName: %v", err)
	}
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Fatalf("expected [a b], got %v", ids)
	}
}

func TestSnapshotPointersRoundTrip(t *testing.T) {
	ix := newTestIndex(t)
	commitID := object.ID("")
	p := SnapshotPointers{RootTree: object.ID("")}
	if err := ix.PutSnapshotPointers(commitID, p); err != nil {
		t.Fatalf("PutSnapshotPointers: %v", err)
	}
	got, ok, err := ix.GetSnapshotPointers(commitID)
	if err != nil || !ok {
		t.Fatalf("GetSnapshotPointers: ok=%v err=%v", ok, err)
	}
	if got != p {
		t.Fatalf("expected %+v, got %+v", p, got)
	}
}

func TestAdjacencyRoundTrip(t *testing.T) {
	ix := newTestIndex(t)
	a := graph.NodeId{Kind: graph.NodeItem, Key: "pkg.A"}
	b := graph.NodeId{Kind: graph.NodeItem, Key: "pkg.B"}
	targets := []graph.NodeId{b}
	if err := ix.PutAdjacency(Fwd, a, graph.LabelCalls, targets); err != nil {
		t.Fatalf("PutAdjacency: %v", err)
	}
	got, err := ix.GetAdjacency(Fwd, a, graph.LabelCalls)
	if err != nil {
		t.Fatalf("GetAdjacency: %v", err)
	}
	if len(got) != 1 || got[0] != b {
		t.Fatalf("expected [%v], got %v", b, got)
	}
}

func TestEdgeBatchOfCommitRoundTrip(t *testing.T) {
	ix := newTestIndex(t)
	if err := ix.PutEdgeBatchOfCommit("eb1", "commit1"); err != nil {
		t.Fatalf("PutEdgeBatchOfCommit: %v", err)
	}
	got, ok, err := ix.GetEdgeBatchOfCommit("eb1")
	if err != nil || !ok || got != "commit1" {
		t.Fatalf("expected commit1, got %s ok=%v err=%v", got, ok, err)
	}
}

func newTestRebuildEnv(t *testing.T) (*object.Store, *refs.Store) {
	t.Helper()
	dir := t.TempDir()
	objects := object.NewStore(dir)
	refStore := refs.NewStore(dir+"/refs", dir+"/LOCK")
	return objects, refStore
}

func TestRebuildIsDeterministic(t *testing.T) {
	objects, refStore := newTestRebuildEnv(t)

	blobID, err := objects.PutBlob([]byte("package main"))
	if err != nil {
		t.Fatalf("PutBlob: %v", err)
	}
	treeID, err := objects.PutTree(&object.Tree{Entries: []object.TreeEntry{
		{Name: "main.go", Kind: object.TreeEntryBlob, ID: blobID},
	}})
	if err != nil {
		t.Fatalf("PutTree: %v", err)
	}
	eb, err := graph.PutEdgeBatch(objects, &graph.EdgeBatch{Edges: []graph.Edge{
		{
			From:     graph.NodeId{Kind: graph.NodeFile, Key: "main.go"},
			To:       graph.NodeId{Kind: graph.NodeItem, Key: "main.main"},
			Label:    graph.LabelDefines,
			Evidence: graph.Evidence{Tool: "analyzer", Confidence: graph.ConfidenceHigh},
		},
	}})
	if err != nil {
		t.Fatalf("PutEdgeBatch: %v", err)
	}
	commitID, err := objects.PutCommit(&object.Commit{
		Timestamp:   1,
		Message:     "initial",
		RootTree:    treeID,
		EdgeBatches: []object.ID{eb},
	})
	if err != nil {
		t.Fatalf("PutCommit: %v", err)
	}
	if err := refStore.Set(refs.HeadRef, commitID); err != nil {
		t.Fatalf("Set HEAD: %v", err)
	}

	ix1 := newTestIndex(t)
	if err := Rebuild(ix1, objects, refStore); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	fileID, ok, err := ix1.GetPath("main.go")
	if err != nil || !ok || fileID != "main.go" {
		t.Fatalf("expected main.go indexed, got %s ok=%v err=%v", fileID, ok, err)
	}
	commitOf, ok, err := ix1.GetEdgeBatchOfCommit(eb)
	if err != nil || !ok || commitOf != commitID {
		t.Fatalf("expected edge batch attributed to %s, got %s", commitID, commitOf)
	}
	view1, ok, err := ix1.GetSccView()
	if err != nil || !ok {
		t.Fatalf("GetSccView: ok=%v err=%v", ok, err)
	}

	ix2 := newTestIndex(t)
	if err := Rebuild(ix2, objects, refStore); err != nil {
		t.Fatalf("Rebuild again: %v", err)
	}
	view2, ok, err := ix2.GetSccView()
	if err != nil || !ok {
		t.Fatalf("GetSccView (2nd): ok=%v err=%v", ok, err)
	}
	if len(view1.SCCs) != len(view2.SCCs) {
		t.Fatalf("rebuild not deterministic: %d vs %d components", len(view1.SCCs), len(view2.SCCs))
	}
}
