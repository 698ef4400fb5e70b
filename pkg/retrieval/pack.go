package retrieval

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/redisun/ctx/pkg/graph"
	"github.com/redisun/ctx/pkg/index"
	"github.com/redisun/ctx/pkg/object"
	"github.com/redisun/ctx/pkg/refs"
	"github.com/redisun/ctx/pkg/staging"
)

// secondsPerDay is used to turn narrative_days into a timestamp window.
const secondsPerDay = 86400

// candidateDest distinguishes the two output buckets a scored
// candidate can settle into once the greedy fill decides it fits.
type candidateDest uint8

const (
	destRetrieved candidateDest = iota
	destNarrative
)

// candidate is one scored, not-yet-budgeted chunk.
type candidate struct {
	item RetrievedItem
	dest candidateDest
}

// Build runs the full build_pack pipeline against the repository state
// named by objects/ix/refStore, optionally seeded by an active
// session, and returns the resulting pack. It is a pure function of
// the object store, index, and the active session's ID and flushed
// staging chain: the same canonical head, config, and query always produce
// byte-identical output.
func Build(objects *object.Store, ix *index.Index, refStore *refs.Store, session *staging.Session, task, query string, cfg Config) (*PromptPack, error) {
	cfg = cfg.resolve()

	headID, err := refStore.Get(refs.HeadRef)
	if err != nil {
		return nil, fmt.Errorf("build pack: read head: %w", err)
	}

	pack := &PromptPack{
		Task:       task,
		HeadCommit: headID,
		Retrieved:  []RetrievedItem{},
		GraphContext: GraphContext{
			SeedNodes:     []string{},
			ExpandedNodes: []string{},
		},
		RecentNarrative: []RetrievedItem{},
		TokenBudget:     TokenBudget{Total: cfg.TokenBudget - cfg.ReservedForResponse},
	}
	if headID == "" {
		return pack, nil
	}
	headCommit, err := objects.GetCommit(headID)
	if err != nil {
		return nil, fmt.Errorf("build pack: read head commit: %w", err)
	}

	b := &builder{objects: objects, ix: ix, session: session, cfg: cfg, head: headCommit, headID: headID}

	seeds := b.seedNodes(query)
	pack.GraphContext.SeedNodes = nodeIDStrings(seeds)

	expanded := b.expand(seeds)
	pack.GraphContext.ExpandedNodes = expandedNodeStrings(expanded)

	queryTokens := tokenize(query)

	var candidates []candidate
	seen := make(map[graph.NodeId]bool, len(seeds)+len(expanded))
	for _, s := range seeds {
		if c, ok := b.retrieveNode(s, 0, queryTokens); ok && !seen[s] {
			seen[s] = true
			candidates = append(candidates, c)
		}
	}
	for _, e := range expanded {
		if seen[e.node] {
			continue
		}
		seen[e.node] = true
		if c, ok := b.retrieveNode(e.node, e.depth, queryTokens); ok {
			candidates = append(candidates, c)
		}
	}
	candidates = append(candidates, b.narrativeWindow(queryTokens)...)

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].item.RelevanceScore != candidates[j].item.RelevanceScore {
			return candidates[i].item.RelevanceScore > candidates[j].item.RelevanceScore
		}
		return candidates[i].item.ObjectID < candidates[j].item.ObjectID
	})

	budget := cfg.TokenBudget - cfg.ReservedForResponse
	used := 0
	for _, c := range candidates {
		cost := tokenCount(c.item.Snippet)
		if used+cost > budget {
			continue
		}
		used += cost
		switch c.dest {
		case destRetrieved:
			pack.Retrieved = append(pack.Retrieved, c.item)
		case destNarrative:
			pack.RecentNarrative = append(pack.RecentNarrative, c.item)
		}
	}
	pack.TokenBudget.Used = used

	return pack, nil
}

// builder carries the read-only state one Build call threads through
// its pipeline stages.
type builder struct {
	objects *object.Store
	ix      *index.Index
	session *staging.Session
	cfg     Config
	head    *object.Commit
	headID  object.ID
}

var tokenPattern = regexp.MustCompile(`[A-Za-z0-9_][A-Za-z0-9_./:-]*`)

// tokenize extracts the distinct, order-preserved tokens from a query
// string. Paths and stable keys use '.', '/', ':', '-', '_' so those
// are kept as part of a token rather than treated as delimiters.
func tokenize(query string) []string {
	raw := tokenPattern.FindAllString(query, -1)
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, t := range raw {
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// tokenCount approximates a chunk's size in model tokens at roughly
// four bytes per token, the same rule of thumb the budget step uses
// for every chunk kind.
func tokenCount(s string) int {
	if s == "" {
		return 0
	}
	return (len(s) + 3) / 4
}

func textOverlap(queryTokens []string, content string) float64 {
	if len(queryTokens) == 0 {
		return 0
	}
	lower := strings.ToLower(content)
	hits := 0
	for _, t := range queryTokens {
		if strings.Contains(lower, strings.ToLower(t)) {
			hits++
		}
	}
	return float64(hits) / float64(len(queryTokens))
}

var nameNamespaces = []graph.NodeKind{
	graph.NodeModule, graph.NodeItem, graph.NodePackage,
	graph.NodeTarget, graph.NodeCrate, graph.NodeTask,
	graph.NodeNote, graph.NodeDecision, graph.NodeDiagnostic,
}

// seedNodes implements the Seed stage: query token resolution via the
// Path/Name/StableKey indexes, the active task node, the file
// versions touched by the session's most recent work-commits, and
// anything left over is simply not resolvable and is dropped rather
// than guessed at.
func (b *builder) seedNodes(query string) []graph.NodeId {
	var seeds []graph.NodeId
	add := func(n graph.NodeId) { seeds = append(seeds, n) }

	for _, tok := range tokenize(query) {
		if fileID, ok, err := b.ix.GetPath(tok); err == nil && ok {
			add(graph.NodeId{Kind: graph.NodeFile, Key: fileID})
		}
		if itemID, ok, err := b.ix.GetStableKey(tok); err == nil && ok {
			add(graph.NodeId{Kind: graph.NodeItem, Key: itemID})
		}
		for _, kind := range nameNamespaces {
			ids, err := b.ix.GetName(kind.String(), tok)
			if err != nil {
				continue
			}
			for _, id := range ids {
				add(graph.NodeId{Kind: kind, Key: string(id)})
			}
		}
	}

	if b.session != nil {
		add(graph.NodeId{Kind: graph.NodeTask, Key: b.session.ID()})
		for _, fv := range b.recentSessionFileVersions() {
			add(graph.NodeId{Kind: graph.NodeFile, Key: fv.FileID})
		}
	}

	return dedupNodes(seeds)
}

// recentSessionFileVersions walks the active session's staging chain
// backward from its head, collecting the file versions buffered in
// the last RecentWorkCommits work-commits.
func (b *builder) recentSessionFileVersions() []*object.FileVersion {
	if b.session.Head() == "" {
		return nil
	}
	var out []*object.FileVersion
	cur := b.session.Head()
	for i := 0; i < b.cfg.RecentWorkCommits && cur != ""; i++ {
		wc, err := staging.GetWorkCommit(b.objects, cur)
		if err != nil {
			break
		}
		for _, payloadID := range wc.Payload {
			if fv, err := b.objects.GetFileVersion(payloadID); err == nil {
				out = append(out, fv)
			}
		}
		if wc.Parent == wc.Base {
			break
		}
		cur = wc.Parent
	}
	return out
}

// expandedNode is one node the BFS added, tagged with the depth it
// was first reached at.
type expandedNode struct {
	node  graph.NodeId
	depth int
}

// expand implements the Expand stage: a breadth-first walk of the
// forward adjacency table bounded by MaxDepth and MaxExpandedNodes,
// breaking ties deterministically by (depth, label order, target id).
func (b *builder) expand(seeds []graph.NodeId) []expandedNode {
	visited := make(map[graph.NodeId]bool, len(seeds))
	for _, s := range seeds {
		visited[s] = true
	}

	type queued struct {
		node  graph.NodeId
		depth int
	}
	queue := make([]queued, 0, len(seeds))
	for _, s := range seeds {
		queue = append(queue, queued{s, 0})
	}

	var out []expandedNode
	for len(queue) > 0 && len(out) < b.cfg.MaxExpandedNodes {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= b.cfg.MaxDepth {
			continue
		}

		type pair struct {
			labelIdx int
			target   graph.NodeId
		}
		var next []pair
		for labelIdx, label := range b.cfg.ExpandLabels {
			targets, err := b.ix.GetAdjacency(index.Fwd, cur.node, label)
			if err != nil {
				continue
			}
			for _, t := range targets {
				next = append(next, pair{labelIdx, t})
			}
		}
		sort.Slice(next, func(i, j int) bool {
			if next[i].labelIdx != next[j].labelIdx {
				return next[i].labelIdx < next[j].labelIdx
			}
			return next[i].target.String() < next[j].target.String()
		})

		for _, p := range next {
			if visited[p.target] {
				continue
			}
			visited[p.target] = true
			out = append(out, expandedNode{node: p.target, depth: cur.depth + 1})
			queue = append(queue, queued{p.target, cur.depth + 1})
			if len(out) >= b.cfg.MaxExpandedNodes {
				break
			}
		}
	}
	return out
}

// retrieveNode implements the node-resolution half of the Retrieve
// stage: find a content source for n, score it, and report whether
// one was found at all (nodes with no resolvable source, e.g. a
// decision or diagnostic node with no wired provenance yet, are
// simply absent from the candidate set).
func (b *builder) retrieveNode(n graph.NodeId, depth int, queryTokens []string) (candidate, bool) {
	var (
		objID   object.ID
		snippet string
		title   string
		kind    ChunkKind
		ok      bool
	)

	switch n.Kind {
	case graph.NodeFile:
		objID, snippet, ok = b.resolveFile(n.Key)
		title = n.Key
		kind = ChunkFileContent
	case graph.NodeItem, graph.NodeModule, graph.NodePackage, graph.NodeTarget, graph.NodeCrate:
		objID, snippet, ok = b.resolveViaDefiningFile(n)
		title = n.Key
		kind = ChunkSymbolDefinition
	case graph.NodeTask:
		objID, snippet, ok = b.resolveNarrativeStream(n.Key)
		title = n.Key
		kind = ChunkNarrativeExcerpt
	default:
		// NodeNote, NodeDecision, NodeDiagnostic: no analyzer in this
		// implementation emits a provenance link from these kinds back
		// to a blob, so there is nothing to retrieve.
		ok = false
	}
	if !ok {
		return candidate{}, false
	}

	seedDistance := 1.0 / float64(1+depth)
	overlap := textOverlap(queryTokens, snippet)
	score := 0.6*seedDistance + 0.4*overlap

	return candidate{
		dest: destRetrieved,
		item: RetrievedItem{
			Title:          title,
			ObjectID:       objID,
			Snippet:        snippet,
			RelevanceScore: score,
			ChunkKind:      kind,
		},
	}, true
}

// resolveFile finds path's blob in the canonical head's flat root
// tree.
func (b *builder) resolveFile(filePath string) (object.ID, string, bool) {
	if b.head.RootTree == "" {
		return "", "", false
	}
	tree, err := b.objects.GetTree(b.head.RootTree)
	if err != nil {
		return "", "", false
	}
	for _, e := range tree.Entries {
		if e.Name != filePath {
			continue
		}
		blob, err := b.objects.GetBlob(e.ID)
		if err != nil {
			return "", "", false
		}
		return e.ID, string(blob.Data), true
	}
	return "", "", false
}

// resolveViaDefiningFile follows the reverse Defines edge from an
// item/module/package/target/crate node back to the file that defines
// it, and uses that file's content as the symbol's source.
func (b *builder) resolveViaDefiningFile(n graph.NodeId) (object.ID, string, bool) {
	targets, err := b.ix.GetAdjacency(index.Bwd, n, graph.LabelDefines)
	if err != nil || len(targets) == 0 {
		return "", "", false
	}
	for _, t := range targets {
		if t.Kind != graph.NodeFile {
			continue
		}
		if id, snippet, ok := b.resolveFile(t.Key); ok {
			return id, snippet, true
		}
	}
	return "", "", false
}

// resolveNarrativeStream finds the most recent narrative ref for a
// stream (a session id, for task nodes) by walking commits
// ancestor-first and keeping the last match.
func (b *builder) resolveNarrativeStream(stream string) (object.ID, string, bool) {
	order, err := b.ancestorFirstOrder()
	if err != nil {
		return "", "", false
	}
	var best *object.NarrativeRef
	for _, commitID := range order {
		c, err := b.objects.GetCommit(commitID)
		if err != nil {
			continue
		}
		for i := range c.NarrativeRefs {
			if c.NarrativeRefs[i].Stream == stream {
				best = &c.NarrativeRefs[i]
			}
		}
	}
	if best == nil {
		return "", "", false
	}
	blob, err := b.objects.GetBlob(best.BlobID)
	if err != nil {
		return "", "", false
	}
	return best.BlobID, string(blob.Data), true
}

// narrativeWindow implements the Narrative window stage: every
// narrative ref attached to a commit within narrative_days of the
// canonical head's timestamp.
func (b *builder) narrativeWindow(queryTokens []string) []candidate {
	if b.cfg.NarrativeDays <= 0 {
		return nil
	}
	order, err := b.ancestorFirstOrder()
	if err != nil {
		return nil
	}
	windowSecs := int64(b.cfg.NarrativeDays) * secondsPerDay
	headTS := b.head.Timestamp

	var out []candidate
	for _, commitID := range order {
		c, err := b.objects.GetCommit(commitID)
		if err != nil {
			continue
		}
		age := headTS - c.Timestamp
		if age < 0 {
			age = 0
		}
		if age > windowSecs {
			continue
		}
		recency := 1.0 - float64(age)/float64(windowSecs+1)

		for _, ref := range c.NarrativeRefs {
			blob, err := b.objects.GetBlob(ref.BlobID)
			if err != nil {
				continue
			}
			content := string(blob.Data)
			overlap := textOverlap(queryTokens, content)
			kind := ChunkNarrativeExcerpt
			if ref.Role == object.NarrativeDecision {
				kind = ChunkDecision
			}
			out = append(out, candidate{
				dest: destNarrative,
				item: RetrievedItem{
					Title:          ref.Path,
					ObjectID:       ref.BlobID,
					Snippet:        content,
					RelevanceScore: 0.5*recency + 0.5*overlap,
					ChunkKind:      kind,
				},
			})
		}
	}
	return out
}

// ancestorFirstOrder returns every commit reachable from the
// canonical head, oldest first.
func (b *builder) ancestorFirstOrder() ([]object.ID, error) {
	visited := make(map[object.ID]bool)
	var order []object.ID
	var visit func(id object.ID) error
	visit = func(id object.ID) error {
		if id == "" || visited[id] {
			return nil
		}
		visited[id] = true
		c, err := b.objects.GetCommit(id)
		if err != nil {
			return err
		}
		for _, p := range c.Parents {
			if err := visit(p); err != nil {
				return err
			}
		}
		order = append(order, id)
		return nil
	}
	if err := visit(b.headID); err != nil {
		return nil, err
	}
	return order, nil
}

func dedupNodes(nodes []graph.NodeId) []graph.NodeId {
	seen := make(map[graph.NodeId]bool, len(nodes))
	out := make([]graph.NodeId, 0, len(nodes))
	for _, n := range nodes {
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

func nodeIDStrings(nodes []graph.NodeId) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.String()
	}
	return out
}

func expandedNodeStrings(nodes []expandedNode) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.node.String()
	}
	return out
}
