package graph

import "sort"

// SccView is the derived strongly-connected-components quotient graph
// over the label-ignoring directed graph. The index stores one after
// each rebuild. Retrieval's bounded expansion does not read it: it
// walks the per-label forward adjacency table of the raw node graph.
type SccView struct {
	// NodeToSCC maps every node that appears in the adjacency to the
	// index of its component in SCCs.
	NodeToSCC map[NodeId]int
	// SCCs holds each component's members, sorted, in the order
	// Tarjan's algorithm discovers them (reverse topological order).
	SCCs [][]NodeId
	// DAGEdges maps a component index to the sorted, deduplicated set
	// of component indices it has at least one edge into.
	DAGEdges map[int][]int
}

// tarjanState holds one run's DFS bookkeeping. Grounded on the
// classic index/lowlink/onStack/stack formulation: iterative
// discovery order is fixed by walking Adjacency.Nodes() (already
// sorted), which is what makes the resulting SCCs reproducible.
type tarjanState struct {
	adj       *Adjacency
	index     int
	nodeIndex map[NodeId]int
	lowlink   map[NodeId]int
	onStack   map[NodeId]bool
	stack     []NodeId
	sccs      [][]NodeId
}

// BuildSccView computes the strongly connected components of adj's
// underlying directed graph (labels ignored) via Tarjan's algorithm.
func BuildSccView(adj *Adjacency) *SccView {
	state := &tarjanState{
		adj:       adj,
		nodeIndex: make(map[NodeId]int),
		lowlink:   make(map[NodeId]int),
		onStack:   make(map[NodeId]bool),
	}

	for _, n := range adj.Nodes() {
		if _, visited := state.nodeIndex[n]; !visited {
			strongConnect(state, n)
		}
	}

	view := &SccView{
		NodeToSCC: make(map[NodeId]int, len(state.nodeIndex)),
		SCCs:      state.sccs,
		DAGEdges:  make(map[int][]int),
	}
	for i, scc := range state.sccs {
		for _, n := range scc {
			view.NodeToSCC[n] = i
		}
	}

	dagSets := make(map[int]map[int]struct{})
	for _, from := range adj.Nodes() {
		fromSCC := view.NodeToSCC[from]
		for _, to := range adj.AllForward(from) {
			toSCC := view.NodeToSCC[to]
			if toSCC == fromSCC {
				continue
			}
			if dagSets[fromSCC] == nil {
				dagSets[fromSCC] = make(map[int]struct{})
			}
			dagSets[fromSCC][toSCC] = struct{}{}
		}
	}
	for from, set := range dagSets {
		targets := make([]int, 0, len(set))
		for to := range set {
			targets = append(targets, to)
		}
		sort.Ints(targets)
		view.DAGEdges[from] = targets
	}

	return view
}

func strongConnect(state *tarjanState, v NodeId) {
	state.nodeIndex[v] = state.index
	state.lowlink[v] = state.index
	state.index++
	state.stack = append(state.stack, v)
	state.onStack[v] = true

	for _, w := range state.adj.AllForward(v) {
		if _, visited := state.nodeIndex[w]; !visited {
			strongConnect(state, w)
			if state.lowlink[w] < state.lowlink[v] {
				state.lowlink[v] = state.lowlink[w]
			}
		} else if state.onStack[w] {
			if state.nodeIndex[w] < state.lowlink[v] {
				state.lowlink[v] = state.nodeIndex[w]
			}
		}
	}

	if state.lowlink[v] == state.nodeIndex[v] {
		var scc []NodeId
		for {
			n := len(state.stack) - 1
			w := state.stack[n]
			state.stack = state.stack[:n]
			state.onStack[w] = false
			scc = append(scc, w)
			if w == v {
				break
			}
		}
		sort.Slice(scc, func(i, j int) bool { return scc[i].Less(scc[j]) })
		state.sccs = append(state.sccs, scc)
	}
}
