package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/redisun/ctx/pkg/repo"
	"github.com/redisun/ctx/pkg/retrieval"
)

func newPackCmd() *cobra.Command {
	var task string
	var budget, depth, maxExpandedNodes, narrativeDays, recentWorkCommits, reserved int
	cmd := &cobra.Command{
		Use:   "pack <query>",
		Short: "Build a prompt pack from the canonical head and print it as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			defer r.Close()

			cfg := retrieval.Config{
				TokenBudget:         budget,
				ReservedForResponse: reserved,
				MaxDepth:            depth,
				MaxExpandedNodes:    maxExpandedNodes,
				NarrativeDays:       narrativeDays,
				RecentWorkCommits:   recentWorkCommits,
			}
			pack, err := r.BuildPack(task, args[0], cfg)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(pack)
		},
	}
	cmd.Flags().StringVar(&task, "task", "", "the active task's description, recorded on the pack")
	cmd.Flags().IntVar(&budget, "budget", 0, "token budget (0 uses the repository's configured default)")
	cmd.Flags().IntVar(&reserved, "reserved", 0, "tokens reserved for the model's response (0 uses the default)")
	cmd.Flags().IntVar(&depth, "depth", 0, "maximum expansion depth (0 uses the repository's configured default)")
	cmd.Flags().IntVar(&maxExpandedNodes, "max-expanded-nodes", 0, "cap on expanded nodes (0 uses the default)")
	cmd.Flags().IntVar(&narrativeDays, "narrative-days", 0, "narrative window width in days; -1 disables it, 0 uses the default")
	cmd.Flags().IntVar(&recentWorkCommits, "recent-work-commits", 0, "how many of the active session's recent work-commits seed the pack (0 uses the default)")
	return cmd
}
