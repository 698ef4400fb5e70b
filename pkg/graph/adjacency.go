package graph

import "sort"

// Adjacency is the reconstructed forward/reverse relationship graph
// for a canonical head: the union of every reachable EdgeBatch's
// edges, keyed by (from, label) and (to, label). Edges are a set —
// re-observing the same (from, to, label) triple never overwrites
// anything, it just coalesces.
type Adjacency struct {
	forward map[NodeId]map[Label]map[NodeId]struct{}
	reverse map[NodeId]map[Label]map[NodeId]struct{}
	nodes   map[NodeId]struct{}
}

// NewAdjacency builds an Adjacency by unioning every batch's edges.
func NewAdjacency(batches []*EdgeBatch) *Adjacency {
	a := &Adjacency{
		forward: make(map[NodeId]map[Label]map[NodeId]struct{}),
		reverse: make(map[NodeId]map[Label]map[NodeId]struct{}),
		nodes:   make(map[NodeId]struct{}),
	}
	for _, b := range batches {
		for _, e := range b.Edges {
			a.add(e)
		}
	}
	return a
}

func (a *Adjacency) add(e Edge) {
	a.nodes[e.From] = struct{}{}
	a.nodes[e.To] = struct{}{}

	fwd, ok := a.forward[e.From]
	if !ok {
		fwd = make(map[Label]map[NodeId]struct{})
		a.forward[e.From] = fwd
	}
	if fwd[e.Label] == nil {
		fwd[e.Label] = make(map[NodeId]struct{})
	}
	fwd[e.Label][e.To] = struct{}{}

	rev, ok := a.reverse[e.To]
	if !ok {
		rev = make(map[Label]map[NodeId]struct{})
		a.reverse[e.To] = rev
	}
	if rev[e.Label] == nil {
		rev[e.Label] = make(map[NodeId]struct{})
	}
	rev[e.Label][e.From] = struct{}{}
}

func sortedNodeIDs(set map[NodeId]struct{}) []NodeId {
	out := make([]NodeId, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// Forward returns the sorted, deduplicated set of nodes reachable from
// from via an edge with the given label.
func (a *Adjacency) Forward(from NodeId, label Label) []NodeId {
	byLabel, ok := a.forward[from]
	if !ok {
		return nil
	}
	return sortedNodeIDs(byLabel[label])
}

// Reverse returns the sorted, deduplicated set of nodes with an edge
// labeled label pointing at to.
func (a *Adjacency) Reverse(to NodeId, label Label) []NodeId {
	byLabel, ok := a.reverse[to]
	if !ok {
		return nil
	}
	return sortedNodeIDs(byLabel[label])
}

// AllForward returns every node from's outgoing edges reach,
// regardless of label, sorted and deduplicated. Used by SCC
// computation, which ignores labels per spec.
func (a *Adjacency) AllForward(from NodeId) []NodeId {
	byLabel, ok := a.forward[from]
	if !ok {
		return nil
	}
	set := make(map[NodeId]struct{})
	for _, targets := range byLabel {
		for n := range targets {
			set[n] = struct{}{}
		}
	}
	return sortedNodeIDs(set)
}

// Nodes returns every node that appears in at least one edge, sorted.
func (a *Adjacency) Nodes() []NodeId {
	return sortedNodeIDs(a.nodes)
}
