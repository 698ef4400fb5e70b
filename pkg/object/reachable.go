package object

import (
	"fmt"
	"sort"
)

// TypedRefExtractor returns the IDs a typed object's encoded body
// refers to, so ReachableSet can walk through object kinds this
// package doesn't itself define (WorkCommit, EdgeBatch, SccView live in
// pkg/staging and pkg/graph). Each of those packages registers its
// extractor in an init() the way database/sql drivers register
// themselves.
type TypedRefExtractor func(body []byte) ([]ID, error)

var typedRefExtractors = map[TypeTag]TypedRefExtractor{}

// RegisterTypedRefExtractor installs the reference-extraction function
// for a typed object tag defined outside this package. Panics on a
// duplicate registration for the same tag, matching the stdlib's
// registry packages.
func RegisterTypedRefExtractor(tag TypeTag, fn TypedRefExtractor) {
	if _, exists := typedRefExtractors[tag]; exists {
		panic(fmt.Sprintf("object: duplicate ref extractor for tag %q", tag))
	}
	typedRefExtractors[tag] = fn
}

// ReachableSet returns every object ID reachable from roots by
// following object references (tree entries, commit parents/trees/
// edge-batches/narrative blobs, and whatever registered typed kinds
// add). Missing roots are ignored rather than treated as an error, so
// a partially-GC'd store can still be walked.
func (s *Store) ReachableSet(roots []ID) (map[ID]struct{}, error) {
	roots = uniqueSortedIDs(roots)
	out := make(map[ID]struct{}, len(roots))
	if len(roots) == 0 {
		return out, nil
	}

	stack := make([]ID, 0, len(roots))
	stack = append(stack, roots...)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id == "" {
			continue
		}
		if _, ok := out[id]; ok {
			continue
		}
		if !s.Has(id) {
			continue
		}

		kind, payload, err := s.readEnvelope(id)
		if err != nil {
			return nil, fmt.Errorf("reachable set read %s: %w", id, err)
		}
		out[id] = struct{}{}

		refs, err := s.referencedIDs(kind, payload)
		if err != nil {
			return nil, fmt.Errorf("reachable set parse %s: %w", id, err)
		}
		stack = append(stack, refs...)
	}

	return out, nil
}

func (s *Store) referencedIDs(kind Kind, payload []byte) ([]ID, error) {
	if kind == KindBlob {
		return nil, nil
	}
	if len(payload) < 1 {
		return nil, fmt.Errorf("empty typed payload")
	}
	tag, ok := codeType[payload[0]]
	if !ok {
		return nil, fmt.Errorf("unknown type code %d", payload[0])
	}
	body := payload[1:]

	switch tag {
	case TypeTree:
		tr, err := UnmarshalTree(body)
		if err != nil {
			return nil, err
		}
		refs := make([]ID, 0, len(tr.Entries))
		for _, e := range tr.Entries {
			refs = append(refs, e.ID)
		}
		return refs, nil
	case TypeFileVersion:
		fv, err := UnmarshalFileVersion(body)
		if err != nil {
			return nil, err
		}
		return []ID{fv.BlobID}, nil
	case TypeCommit:
		c, err := UnmarshalCommit(body)
		if err != nil {
			return nil, err
		}
		refs := make([]ID, 0, 4+len(c.Parents)+len(c.EdgeBatches)+len(c.NarrativeRefs))
		refs = append(refs, c.Parents...)
		refs = append(refs, c.RootTree)
		refs = append(refs, c.EdgeBatches...)
		refs = append(refs, c.BuildGraphSnapshot, c.SemanticGraphSnapshot, c.DiagnosticsSnapshot)
		for _, nr := range c.NarrativeRefs {
			refs = append(refs, nr.BlobID)
		}
		return refs, nil
	default:
		fn, ok := typedRefExtractors[tag]
		if !ok {
			return nil, fmt.Errorf("no ref extractor registered for type tag %q", tag)
		}
		return fn(body)
	}
}

func uniqueSortedIDs(in []ID) []ID {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[ID]struct{}, len(in))
	out := make([]ID, 0, len(in))
	for _, id := range in {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
