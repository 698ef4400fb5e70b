package retrieval

import "github.com/redisun/ctx/pkg/object"

// ChunkKind classifies the shape of one retrieved item's content.
type ChunkKind string

const (
	ChunkFileContent      ChunkKind = "FileContent"
	ChunkNarrativeExcerpt ChunkKind = "NarrativeExcerpt"
	ChunkDecision         ChunkKind = "Decision"
	ChunkDiagnosticOutput ChunkKind = "DiagnosticOutput"
	ChunkSymbolDefinition ChunkKind = "SymbolDefinition"
)

// RetrievedItem is one piece of content selected into a prompt pack.
type RetrievedItem struct {
	Title          string    `json:"title"`
	ObjectID       object.ID `json:"object_id"`
	Snippet        string    `json:"snippet"`
	RelevanceScore float64   `json:"relevance_score"`
	ChunkKind      ChunkKind `json:"chunk_kind"`
}

// GraphContext reports which nodes the seed and expansion steps
// touched, independent of whether they made it into Retrieved under
// the token budget.
type GraphContext struct {
	SeedNodes     []string `json:"seed_nodes"`
	ExpandedNodes []string `json:"expanded_nodes"`
}

// TokenBudget reports the configured ceiling and how much of it the
// greedy fill actually spent.
type TokenBudget struct {
	Total int `json:"total"`
	Used  int `json:"used"`
}

// PromptPack is build_pack's output.
type PromptPack struct {
	Task            string          `json:"task"`
	HeadCommit      object.ID       `json:"head_commit"`
	Retrieved       []RetrievedItem `json:"retrieved"`
	GraphContext    GraphContext    `json:"graph_context"`
	RecentNarrative []RetrievedItem `json:"recent_narrative"`
	TokenBudget     TokenBudget     `json:"token_budget"`
}
