package index

import (
	"fmt"
	"path"
	"strings"

	"github.com/redisun/ctx/pkg/graph"
	"github.com/redisun/ctx/pkg/object"
	"github.com/redisun/ctx/pkg/refs"
)

// Rebuild deletes every existing table and repopulates the index from
// scratch by walking every commit reachable from refs, ancestor-first.
// It is purely a function of the object store: two rebuilds of the
// same store produce byte-identical table contents.
func Rebuild(ix *Index, objects *object.Store, refStore *refs.Store) error {
	if err := ix.dropAll(); err != nil {
		return fmt.Errorf("rebuild: clear index: %w", err)
	}

	head, err := refStore.Get(refs.HeadRef)
	if err != nil {
		return fmt.Errorf("rebuild: read HEAD: %w", err)
	}
	if head == "" {
		return nil
	}

	order, err := ancestorFirstOrder(objects, head)
	if err != nil {
		return fmt.Errorf("rebuild: order commits: %w", err)
	}

	var allBatches []*graph.EdgeBatch
	for _, commitID := range order {
		commit, err := objects.GetCommit(commitID)
		if err != nil {
			return fmt.Errorf("rebuild: read commit %s: %w", commitID, err)
		}

		if err := indexTree(ix, objects, commit.RootTree); err != nil {
			return fmt.Errorf("rebuild: index tree of commit %s: %w", commitID, err)
		}

		if err := ix.PutSnapshotPointers(commitID, SnapshotPointers{
			RootTree:              commit.RootTree,
			BuildGraphSnapshot:    commit.BuildGraphSnapshot,
			SemanticGraphSnapshot: commit.SemanticGraphSnapshot,
			DiagnosticsSnapshot:   commit.DiagnosticsSnapshot,
		}); err != nil {
			return fmt.Errorf("rebuild: snapshot pointers for %s: %w", commitID, err)
		}

		for _, ebID := range commit.EdgeBatches {
			batch, err := graph.GetEdgeBatch(objects, ebID)
			if err != nil {
				return fmt.Errorf("rebuild: read edge batch %s: %w", ebID, err)
			}
			allBatches = append(allBatches, batch)
			if err := ix.PutEdgeBatchOfCommit(ebID, commitID); err != nil {
				return fmt.Errorf("rebuild: edge batch provenance %s: %w", ebID, err)
			}
			if err := indexEdgeBatchKeys(ix, batch); err != nil {
				return fmt.Errorf("rebuild: index edge batch %s: %w", ebID, err)
			}
		}
	}

	adj := graph.NewAdjacency(allBatches)
	if err := indexAdjacency(ix, adj); err != nil {
		return fmt.Errorf("rebuild: index adjacency: %w", err)
	}
	if err := ix.PutSccView(graph.BuildSccView(adj)); err != nil {
		return fmt.Errorf("rebuild: finalize scc view: %w", err)
	}

	return nil
}

// RebuildSccOnly recomputes the adjacency and SCC-view tables from
// every edge batch reachable from HEAD, leaving the path, name, and
// snapshot-pointer tables untouched. It's cheaper than Rebuild when
// only the relationship graph's derived views are suspected stale,
// e.g. after a Policy change that shouldn't have touched tree
// indexing at all.
func RebuildSccOnly(ix *Index, objects *object.Store, refStore *refs.Store) error {
	head, err := refStore.Get(refs.HeadRef)
	if err != nil {
		return fmt.Errorf("rebuild scc: read HEAD: %w", err)
	}
	if head == "" {
		return nil
	}

	order, err := ancestorFirstOrder(objects, head)
	if err != nil {
		return fmt.Errorf("rebuild scc: order commits: %w", err)
	}

	var allBatches []*graph.EdgeBatch
	for _, commitID := range order {
		commit, err := objects.GetCommit(commitID)
		if err != nil {
			return fmt.Errorf("rebuild scc: read commit %s: %w", commitID, err)
		}
		for _, ebID := range commit.EdgeBatches {
			batch, err := graph.GetEdgeBatch(objects, ebID)
			if err != nil {
				return fmt.Errorf("rebuild scc: read edge batch %s: %w", ebID, err)
			}
			allBatches = append(allBatches, batch)
		}
	}

	adj := graph.NewAdjacency(allBatches)
	if err := indexAdjacency(ix, adj); err != nil {
		return fmt.Errorf("rebuild scc: index adjacency: %w", err)
	}
	if err := ix.PutSccView(graph.BuildSccView(adj)); err != nil {
		return fmt.Errorf("rebuild scc: finalize scc view: %w", err)
	}
	return nil
}

// ancestorFirstOrder returns every commit reachable from head, oldest
// (no-parents) first, via a post-order walk of Commit.Parents.
func ancestorFirstOrder(objects *object.Store, head object.ID) ([]object.ID, error) {
	visited := make(map[object.ID]bool)
	var order []object.ID

	var visit func(id object.ID) error
	visit = func(id object.ID) error {
		if id == "" || visited[id] {
			return nil
		}
		visited[id] = true
		commit, err := objects.GetCommit(id)
		if err != nil {
			return err
		}
		for _, parent := range commit.Parents {
			if err := visit(parent); err != nil {
				return err
			}
		}
		order = append(order, id)
		return nil
	}

	if err := visit(head); err != nil {
		return nil, err
	}
	return order, nil
}

// indexTree walks a flat root tree's entries and records each file's
// Path -> FileId mapping plus a Name -> ObjectId entry keyed by the
// entry's base name, so both exact-path and by-name lookups work.
func indexTree(ix *Index, objects *object.Store, treeID object.ID) error {
	if treeID == "" {
		return nil
	}
	tree, err := objects.GetTree(treeID)
	if err != nil {
		return err
	}
	for _, entry := range tree.Entries {
		if entry.Kind == object.TreeEntryTree {
			if err := indexTree(ix, objects, entry.ID); err != nil {
				return err
			}
			continue
		}
		if err := ix.PutPath(entry.Name, entry.Name); err != nil {
			return err
		}
		base := path.Base(entry.Name)
		if err := ix.AppendName("file", base, entry.ID); err != nil {
			return err
		}
	}
	return nil
}

// indexEdgeBatchKeys registers every non-file node an edge batch
// mentions under the Name and StableKey tables, so retrieval's query
// resolution step can find item/package/module nodes by name.
func indexEdgeBatchKeys(ix *Index, batch *graph.EdgeBatch) error {
	seen := make(map[graph.NodeId]bool)
	for _, e := range batch.Edges {
		for _, n := range [2]graph.NodeId{e.From, e.To} {
			if seen[n] {
				continue
			}
			seen[n] = true
			if err := indexNode(ix, n); err != nil {
				return err
			}
		}
	}
	return nil
}

func indexNode(ix *Index, n graph.NodeId) error {
	if n.Kind == graph.NodeFile {
		return nil
	}
	if n.Kind == graph.NodeItem {
		if err := ix.PutStableKey(n.Key, n.Key); err != nil {
			return err
		}
	}
	name := n.Key
	if idx := strings.LastIndexAny(n.Key, ".::/"); idx >= 0 && idx+1 < len(n.Key) {
		name = n.Key[idx+1:]
	}
	return ix.AppendName(n.Kind.String(), name, object.ID(n.Key))
}

// indexAdjacency flattens an Adjacency into the Adjacency table's
// (direction, node, label) -> ordered target list rows.
func indexAdjacency(ix *Index, adj *graph.Adjacency) error {
	for _, node := range adj.Nodes() {
		for _, label := range allLabels {
			if targets := adj.Forward(node, label); len(targets) > 0 {
				if err := ix.PutAdjacency(Fwd, node, label, targets); err != nil {
					return err
				}
			}
			if targets := adj.Reverse(node, label); len(targets) > 0 {
				if err := ix.PutAdjacency(Bwd, node, label, targets); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

var allLabels = []graph.Label{
	graph.LabelContains, graph.LabelDefines, graph.LabelHasVersion,
	graph.LabelDependsOn, graph.LabelTargetOf, graph.LabelCrateFromTarget,
	graph.LabelImports, graph.LabelReferences, graph.LabelCalls,
	graph.LabelImplements, graph.LabelUsesType,
	graph.LabelMentions, graph.LabelUpdatedIn, graph.LabelDerivedFrom,
}
