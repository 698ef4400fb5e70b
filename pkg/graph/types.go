// Package graph implements the relationship graph over immutable edge
// batches: the closed label vocabulary, adjacency reconstruction from
// the commit chain, and the Tarjan strongly-connected-components view
// the index stores after each rebuild.
package graph

import (
	"fmt"

	"github.com/redisun/ctx/pkg/object"
)

// NodeKind classifies a NodeId's logical identity.
type NodeKind uint8

const (
	NodeFile NodeKind = iota + 1
	NodeModule
	NodeItem
	NodePackage
	NodeTarget
	NodeCrate
	NodeTask
	NodeNote
	NodeDecision
	NodeDiagnostic
)

func (k NodeKind) String() string {
	switch k {
	case NodeFile:
		return "file"
	case NodeModule:
		return "module"
	case NodeItem:
		return "item"
	case NodePackage:
		return "package"
	case NodeTarget:
		return "target"
	case NodeCrate:
		return "crate"
	case NodeTask:
		return "task"
	case NodeNote:
		return "note"
	case NodeDecision:
		return "decision"
	case NodeDiagnostic:
		return "diagnostic"
	default:
		return "unknown"
	}
}

// NodeId is a logical identity that survives content changes: a kind
// plus a stable key, not a content hash. Files use their normalized
// repository-relative path; code items use a stable
// (package, module path, kind, name) key produced by the analyzer that
// observed them.
type NodeId struct {
	Kind NodeKind
	Key  string
}

func (n NodeId) String() string { return fmt.Sprintf("%s:%s", n.Kind, n.Key) }

// Less gives NodeId a total order for deterministic sorting.
func (n NodeId) Less(other NodeId) bool {
	if n.Kind != other.Kind {
		return n.Kind < other.Kind
	}
	return n.Key < other.Key
}

// Label is a closed vocabulary of relationship kinds. New labels
// require a coordinated append here, never ad hoc strings elsewhere.
type Label uint8

const (
	// structural
	LabelContains Label = iota + 1
	LabelDefines
	LabelHasVersion
	// build
	LabelDependsOn
	LabelTargetOf
	LabelCrateFromTarget
	// semantic
	LabelImports
	LabelReferences
	LabelCalls
	LabelImplements
	LabelUsesType
	// narrative
	LabelMentions
	LabelUpdatedIn
	LabelDerivedFrom
)

var labelNames = map[Label]string{
	LabelContains:        "Contains",
	LabelDefines:         "Defines",
	LabelHasVersion:      "HasVersion",
	LabelDependsOn:       "DependsOn",
	LabelTargetOf:        "TargetOf",
	LabelCrateFromTarget: "CrateFromTarget",
	LabelImports:         "Imports",
	LabelReferences:      "References",
	LabelCalls:           "Calls",
	LabelImplements:      "Implements",
	LabelUsesType:        "UsesType",
	LabelMentions:        "Mentions",
	LabelUpdatedIn:       "UpdatedIn",
	LabelDerivedFrom:     "DerivedFrom",
}

func (l Label) String() string {
	if s, ok := labelNames[l]; ok {
		return s
	}
	return "Unknown"
}

// ExpandLabels is the default set of labels the retrieval pipeline's
// bounded BFS follows.
var ExpandLabels = []Label{LabelImports, LabelReferences, LabelDependsOn, LabelCalls, LabelDefines}

// Confidence rates how strongly an analyzer stands behind an edge.
type Confidence uint8

const (
	ConfidenceLow Confidence = iota + 1
	ConfidenceMedium
	ConfidenceHigh
)

func (c Confidence) String() string {
	switch c {
	case ConfidenceLow:
		return "Low"
	case ConfidenceMedium:
		return "Medium"
	case ConfidenceHigh:
		return "High"
	default:
		return "Unknown"
	}
}

// Evidence records why an edge exists. CommitID is populated by the
// analyzer at write time but is informational only: edges are written
// before the commit that contains them, so it can never be
// authoritative. EdgeBatchOfCommit in the index is the sole source of
// provenance truth.
type Evidence struct {
	CommitID   object.ID
	Span       string
	BlobID     object.ID
	Tool       string
	Confidence Confidence
}

// Edge is one directed, labeled relationship between two NodeIds.
type Edge struct {
	From      NodeId
	To        NodeId
	Label     Label
	Weight    float64
	HasWeight bool
	Evidence  Evidence
}

// EdgeBatch is an immutable set of edges produced by a single
// analyzer run or observation step.
type EdgeBatch struct {
	Edges     []Edge
	CreatedAt int64
}
