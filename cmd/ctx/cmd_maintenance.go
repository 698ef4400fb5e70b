package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/redisun/ctx/pkg/repo"
)

var rebuildModes = map[string]repo.RebuildMode{
	"full":           repo.RebuildFull,
	"incremental":    repo.RebuildIncremental,
	"scc-only":       repo.RebuildSccOnly,
	"full-text-only": repo.RebuildFullTextOnly,
}

func newRebuildIndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild-index [mode]",
		Short: "Repopulate the derived index from the object store (mode: full, incremental, scc-only, full-text-only)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			modeName := "full"
			if len(args) > 0 {
				modeName = args[0]
			}
			mode, ok := rebuildModes[modeName]
			if !ok {
				return fmt.Errorf("unknown rebuild mode %q", modeName)
			}

			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			defer r.Close()

			if err := r.RebuildIndex(mode); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "index rebuilt")
			return nil
		},
	}
}

func newGCCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Delete objects unreachable from canonical HEAD or the active session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			defer r.Close()

			report, err := r.GC(repo.GCOptions{DryRun: dryRun})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "scanned %d, unreachable %d, kept in grace %d, deleted %d, bytes freed %d\n",
				report.Scanned, report.Unreachable, report.KeptInGrace, report.Deleted, report.BytesFreed)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would be deleted without deleting anything")
	return cmd
}

func newCleanupCmd() *cobra.Command {
	var maxAgeSecs int64
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Force-compact the active session if it has been idle past a maximum age",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			defer r.Close()

			report, err := r.CleanupStaleSessions(maxAgeSecs, time.Now().Unix())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sessions compacted: %d\n", report.SessionsCompacted)
			for _, task := range report.CompactedTasks {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", task)
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&maxAgeSecs, "max-age-secs", 7*24*60*60, "idle threshold in seconds beyond which the active session is force-compacted")
	return cmd
}

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Re-hash every stored object and report any corruption",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			defer r.Close()

			report, err := r.Verify()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "scanned %d objects, %d corrupt\n", report.Scanned, len(report.Corrupt))
			for _, c := range report.Corrupt {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s: %v\n", c.ID, c.Err)
			}
			if len(report.Corrupt) > 0 {
				return fmt.Errorf("verify: %d corrupt object(s)", len(report.Corrupt))
			}
			return nil
		},
	}
}
