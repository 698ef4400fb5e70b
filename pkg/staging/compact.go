package staging

import (
	"fmt"
	"sort"

	"github.com/redisun/ctx/pkg/graph"
	"github.com/redisun/ctx/pkg/object"
)

// CompactionResult is everything Compact derives from a staging
// chain; the façade turns it into a canonical Commit, since building
// the commit's root tree requires the base commit's tree, which lives
// in pkg/repo's view of the object store.
type CompactionResult struct {
	// FileVersions maps a file's stable key to the winning FileVersion
	// id for that file (last write wins by chain order).
	FileVersions map[string]object.ID
	// OtherArtifacts holds every buffered id that wasn't a
	// FileVersion or an EdgeBatch (notes, plan blobs, diagnostics...),
	// deduplicated by content id and in first-seen order.
	OtherArtifacts []object.ID
	// EdgeBatch is the single curated batch merging every edge
	// observed across the chain, or "" if none were.
	EdgeBatch object.ID
	// NarrativeRefs is the last-wins-per-(path,stream) merge of every
	// narrative snapshot touched across the chain.
	NarrativeRefs []object.NarrativeRef
	// FinalState is the terminal state (Complete or Aborted) recorded
	// on the chain's head.
	FinalState State
	// WorkCommitIDs lists every work-commit walked, oldest first; once
	// compaction succeeds these become GC candidates.
	WorkCommitIDs []object.ID
}

// Compact walks a session's staging chain from head back to base,
// collecting and deduplicating its artifacts. It does not itself
// write a canonical Commit or touch refs; the façade does that with
// the base tree available.
func Compact(objects *object.Store, head object.ID) (*CompactionResult, error) {
	if head == "" {
		return nil, fmt.Errorf("compact: empty staging head")
	}

	var chain []*WorkCommit
	var chainIDs []object.ID
	cur := head
	for {
		wc, err := GetWorkCommit(objects, cur)
		if err != nil {
			return nil, fmt.Errorf("compact: read %s: %w", cur, err)
		}
		chain = append(chain, wc)
		chainIDs = append(chainIDs, cur)
		if wc.Parent == wc.Base {
			// wc is the first work-commit in the chain: its parent is
			// the canonical base commit, not another work-commit.
			break
		}
		cur = wc.Parent
	}

	// Reverse into oldest-first order.
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
		chainIDs[i], chainIDs[j] = chainIDs[j], chainIDs[i]
	}

	result := &CompactionResult{
		FileVersions:  make(map[string]object.ID),
		WorkCommitIDs: chainIDs,
		FinalState:    chain[len(chain)-1].State,
	}

	seenOther := make(map[object.ID]struct{})
	var edgeBatches []*graph.EdgeBatch
	narrativeIndex := make(map[string]object.NarrativeRef)

	for _, wc := range chain {
		for _, id := range wc.Payload {
			tag, body, err := objects.GetTyped(id)
			if err != nil {
				// Not a typed object: treat as an opaque blob artifact.
				if _, ok := seenOther[id]; !ok {
					seenOther[id] = struct{}{}
					result.OtherArtifacts = append(result.OtherArtifacts, id)
				}
				continue
			}
			switch tag {
			case object.TypeFileVersion:
				fv, err := object.UnmarshalFileVersion(body)
				if err != nil {
					return nil, fmt.Errorf("compact: decode file version %s: %w", id, err)
				}
				result.FileVersions[fv.FileID] = id
			case object.TypeEdgeBatch:
				eb, err := graph.UnmarshalEdgeBatch(body)
				if err != nil {
					return nil, fmt.Errorf("compact: decode edge batch %s: %w", id, err)
				}
				edgeBatches = append(edgeBatches, eb)
			default:
				if _, ok := seenOther[id]; !ok {
					seenOther[id] = struct{}{}
					result.OtherArtifacts = append(result.OtherArtifacts, id)
				}
			}
		}
		for _, nr := range wc.NarrativeRefs {
			narrativeIndex[nr.Path+"\x00"+nr.Stream] = nr
		}
	}

	if len(edgeBatches) > 0 {
		merged := mergeEdgeBatches(edgeBatches)
		id, err := graph.PutEdgeBatch(objects, merged)
		if err != nil {
			return nil, fmt.Errorf("compact: write merged edge batch: %w", err)
		}
		result.EdgeBatch = id
	}

	keys := make([]string, 0, len(narrativeIndex))
	for k := range narrativeIndex {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		result.NarrativeRefs = append(result.NarrativeRefs, narrativeIndex[k])
	}

	return result, nil
}

func mergeEdgeBatches(batches []*graph.EdgeBatch) *graph.EdgeBatch {
	type key struct {
		from, to, label string
	}
	seen := make(map[key]graph.Edge)
	var latest int64
	for _, b := range batches {
		if b.CreatedAt > latest {
			latest = b.CreatedAt
		}
		for _, e := range b.Edges {
			k := key{from: e.From.String(), to: e.To.String(), label: e.Label.String()}
			seen[k] = e
		}
	}
	keys := make([]key, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].from != keys[j].from {
			return keys[i].from < keys[j].from
		}
		if keys[i].to != keys[j].to {
			return keys[i].to < keys[j].to
		}
		return keys[i].label < keys[j].label
	})
	edges := make([]graph.Edge, 0, len(keys))
	for _, k := range keys {
		edges = append(edges, seen[k])
	}
	return &graph.EdgeBatch{Edges: edges, CreatedAt: latest}
}
