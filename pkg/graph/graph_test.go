package graph

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/redisun/ctx/pkg/object"
)

func mkEdge(from, to string, label Label) Edge {
	return Edge{
		From:  NodeId{Kind: NodeItem, Key: from},
		To:    NodeId{Kind: NodeItem, Key: to},
		Label: label,
		Evidence: Evidence{
			Tool:       "test-analyzer",
			Confidence: ConfidenceHigh,
		},
	}
}

func TestEdgeBatchRoundTrip(t *testing.T) {
	batch := &EdgeBatch{
		CreatedAt: 100,
		Edges: []Edge{
			mkEdge("a", "b", LabelCalls),
			mkEdge("b", "c", LabelImports),
		},
	}
	enc, err := MarshalEdgeBatch(batch)
	if err != nil {
		t.Fatalf("MarshalEdgeBatch: %v", err)
	}
	got, err := UnmarshalEdgeBatch(enc)
	if err != nil {
		t.Fatalf("UnmarshalEdgeBatch: %v", err)
	}
	if diff := cmp.Diff(batch, got); diff != "" {
		t.Fatalf("round-trip mismatch (-want +got):\n%s", diff)
	}
}

func TestPolicyDropsLowConfidenceUnlessReferenced(t *testing.T) {
	low := mkEdge("a", "b", LabelCalls)
	low.Evidence.Confidence = ConfidenceLow

	kept, err := DefaultPolicy.Apply([]Edge{low}, nil)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(kept) != 0 {
		t.Fatalf("expected low-confidence edge dropped, got %d", len(kept))
	}

	kept, err = DefaultPolicy.Apply([]Edge{low}, func(Edge) bool { return true })
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(kept) != 1 {
		t.Fatalf("expected referenced low-confidence edge kept, got %d", len(kept))
	}
}

func TestPolicyEnforcesBudget(t *testing.T) {
	p := Policy{MinConfidence: ConfidenceLow, MaxEdgesPerStep: 1}
	edges := []Edge{mkEdge("a", "b", LabelCalls), mkEdge("b", "c", LabelCalls)}
	if _, err := p.Apply(edges, nil); err == nil {
		t.Fatal("expected budget exceeded error")
	}
}

func TestAdjacencyIsASetNotLastWriterWins(t *testing.T) {
	adj := NewAdjacency([]*EdgeBatch{
		{Edges: []Edge{mkEdge("a", "b", LabelCalls)}},
		{Edges: []Edge{mkEdge("a", "b", LabelCalls)}},
		{Edges: []Edge{mkEdge("a", "c", LabelCalls)}},
	})
	targets := adj.Forward(NodeId{Kind: NodeItem, Key: "a"}, LabelCalls)
	if len(targets) != 2 {
		t.Fatalf("expected 2 distinct targets, got %d: %+v", len(targets), targets)
	}
}

func TestSccViewDetectsCycle(t *testing.T) {
	adj := NewAdjacency([]*EdgeBatch{
		{Edges: []Edge{
			mkEdge("a", "b", LabelCalls),
			mkEdge("b", "a", LabelCalls),
			mkEdge("b", "c", LabelCalls),
		}},
	})
	view := BuildSccView(adj)

	a := NodeId{Kind: NodeItem, Key: "a"}
	b := NodeId{Kind: NodeItem, Key: "b"}
	c := NodeId{Kind: NodeItem, Key: "c"}

	if view.NodeToSCC[a] != view.NodeToSCC[b] {
		t.Fatal("a and b should be in the same SCC (mutual cycle)")
	}
	if view.NodeToSCC[a] == view.NodeToSCC[c] {
		t.Fatal("c should be in a different SCC from a/b")
	}

	fromSCC := view.NodeToSCC[a]
	toSCC := view.NodeToSCC[c]
	found := false
	for _, t2 := range view.DAGEdges[fromSCC] {
		if t2 == toSCC {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a DAG edge from a/b's SCC to c's SCC")
	}
}

func TestSccViewStoreRoundTrip(t *testing.T) {
	s := object.NewStore(t.TempDir())
	adj := NewAdjacency([]*EdgeBatch{{Edges: []Edge{mkEdge("a", "b", LabelCalls)}}})
	view := BuildSccView(adj)

	id, err := PutSccView(s, view)
	if err != nil {
		t.Fatalf("PutSccView: %v", err)
	}
	got, err := GetSccView(s, id)
	if err != nil {
		t.Fatalf("GetSccView: %v", err)
	}
	if diff := cmp.Diff(view, got); diff != "" {
		t.Fatalf("scc view round-trip mismatch (-want +got):\n%s", diff)
	}
}
