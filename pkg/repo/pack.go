package repo

import "github.com/redisun/ctx/pkg/retrieval"

// BuildPack runs the retrieval pipeline over the current canonical
// head, folding in the repository's configured retrieval defaults and
// (if one is active) the current session's task and recent file
// versions.
func (r *Repo) BuildPack(task, query string, cfg retrieval.Config) (*retrieval.PromptPack, error) {
	if cfg.TokenBudget <= 0 && r.Config.Retrieval.DefaultBudget > 0 {
		cfg.TokenBudget = r.Config.Retrieval.DefaultBudget
	}
	if cfg.MaxDepth <= 0 && r.Config.Retrieval.DefaultDepth > 0 {
		cfg.MaxDepth = r.Config.Retrieval.DefaultDepth
	}
	if cfg.NarrativeDays == 0 && !r.Config.Retrieval.IncludeNarrative {
		cfg.NarrativeDays = -1
	}
	return retrieval.Build(r.Objects, r.Index, r.Refs, r.session, task, query, cfg)
}
