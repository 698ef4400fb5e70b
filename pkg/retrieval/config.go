// Package retrieval implements build_pack: the bounded, deterministic
// pipeline that turns a query and a canonical head into a PromptPack
// an agent can load into its context window.
package retrieval

import "github.com/redisun/ctx/pkg/graph"

// Config tunes one build_pack call. The zero value is not meaningful
// on its own; DefaultConfig fills in every field the caller leaves at
// zero.
type Config struct {
	// TokenBudget is the total chunk budget for the pack, in the
	// approximate token units tokenCount uses.
	TokenBudget int
	// ReservedForResponse is subtracted from TokenBudget before the
	// greedy fill runs, leaving headroom for the model's own reply.
	ReservedForResponse int
	// MaxDepth caps how many hops the expansion BFS follows past the
	// seed set.
	MaxDepth int
	// ExpandLabels is the ordered label set the expansion follows;
	// order matters for the deterministic tie-break.
	ExpandLabels []graph.Label
	// MaxExpandedNodes caps the total number of nodes the expansion
	// adds beyond the seed set.
	MaxExpandedNodes int
	// NarrativeDays is the width of the recency window around the
	// canonical head that narrative entries are drawn from. -1
	// disables the narrative window entirely; 0 means "unset, use the
	// default".
	NarrativeDays int
	// MinEdgeConfidence is resolved to its default like the other
	// fields, but expansion does not consult it: the adjacency it walks
	// carries no per-edge evidence.
	MinEdgeConfidence graph.Confidence
	// RecentWorkCommits bounds how many of the active session's most
	// recent work-commits contribute file versions to the seed set.
	RecentWorkCommits int
}

// DefaultConfig mirrors the core's built-in retrieval defaults.
func DefaultConfig() Config {
	return Config{
		TokenBudget:         8000,
		ReservedForResponse: 1000,
		MaxDepth:            2,
		ExpandLabels:        graph.ExpandLabels,
		MaxExpandedNodes:    50,
		NarrativeDays:       7,
		MinEdgeConfidence:   graph.ConfidenceMedium,
		RecentWorkCommits:   3,
	}
}

// resolve fills any zero field in cfg with its DefaultConfig value.
// NarrativeDays is the one field where zero and "unset" differ: -1
// explicitly disables the narrative window, 0 falls back to the
// default.
func (cfg Config) resolve() Config {
	def := DefaultConfig()
	if cfg.TokenBudget <= 0 {
		cfg.TokenBudget = def.TokenBudget
	}
	if cfg.ReservedForResponse <= 0 {
		cfg.ReservedForResponse = def.ReservedForResponse
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = def.MaxDepth
	}
	if len(cfg.ExpandLabels) == 0 {
		cfg.ExpandLabels = def.ExpandLabels
	}
	if cfg.MaxExpandedNodes <= 0 {
		cfg.MaxExpandedNodes = def.MaxExpandedNodes
	}
	if cfg.NarrativeDays == 0 {
		cfg.NarrativeDays = def.NarrativeDays
	} else if cfg.NarrativeDays < 0 {
		cfg.NarrativeDays = 0
	}
	if cfg.MinEdgeConfidence == 0 {
		cfg.MinEdgeConfidence = def.MinEdgeConfidence
	}
	if cfg.RecentWorkCommits <= 0 {
		cfg.RecentWorkCommits = def.RecentWorkCommits
	}
	return cfg
}
