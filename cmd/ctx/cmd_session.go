package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/redisun/ctx/pkg/repo"
	"github.com/redisun/ctx/pkg/staging"
)

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage the repository's single active session",
	}
	cmd.AddCommand(newSessionStartCmd())
	cmd.AddCommand(newSessionStatusCmd())
	cmd.AddCommand(newSessionEventCmd())
	cmd.AddCommand(newSessionFlushCmd())
	cmd.AddCommand(newSessionCompactCmd())
	cmd.AddCommand(newSessionAbortCmd())
	cmd.AddCommand(newSessionCheckStaleCmd())
	return cmd
}

func newSessionStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start <task>",
		Short: "Start a session against the current canonical head",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			defer r.Close()

			session, err := r.StartSession(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "started session %s from %s\n", session.ID(), session.Base())
			return nil
		},
	}
}

func newSessionStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report the active session's state, or that none is open",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			defer r.Close()

			session := r.ActiveSession()
			if session == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "no active session")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "session %s: state=%s head=%s base=%s\n",
				session.ID(), session.State().Kind, session.Head(), session.Base())
			return nil
		},
	}
}

var sessionEvents = map[string]staging.Event{
	"ask":       staging.EventAsk,
	"respond":   staging.EventRespond,
	"interrupt": staging.EventInterrupt,
	"resume":    staging.EventResume,
	"finish":    staging.EventFinish,
	"confirm":   staging.EventConfirm,
	"modify":    staging.EventModify,
}

func newSessionEventCmd() *cobra.Command {
	var question, userMessage, summary string
	cmd := &cobra.Command{
		Use:   "state <event>",
		Short: "Apply a state-machine event to the active session (ask, respond, interrupt, resume, finish, confirm, modify)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			event, ok := sessionEvents[args[0]]
			if !ok {
				return fmt.Errorf("unknown session event %q", args[0])
			}
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			defer r.Close()

			payload := staging.State{Question: question, UserMessage: userMessage, Summary: summary}
			if err := r.SetState(event, payload); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %s; state is now %s\n", args[0], r.ActiveSession().State().Kind)
			return nil
		},
	}
	cmd.Flags().StringVar(&question, "question", "", "question text, for the ask event")
	cmd.Flags().StringVar(&userMessage, "message", "", "user message, for the interrupt event")
	cmd.Flags().StringVar(&summary, "summary", "", "summary text, for the finish event")
	return cmd
}

func newSessionFlushCmd() *cobra.Command {
	var stepKind string
	cmd := &cobra.Command{
		Use:   "flush",
		Short: "Write a work-commit from the session's buffered artifacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			defer r.Close()

			head, err := r.FlushActiveSession(stepKind, time.Now().Unix())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), head)
			return nil
		},
	}
	cmd.Flags().StringVar(&stepKind, "kind", "step", "the step's kind label, recorded on the work-commit")
	return cmd
}

func newSessionCompactCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compact <message>",
		Short: "Fold the active session's staging chain into one canonical commit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			defer r.Close()

			head, err := r.CompactSession(args[0], time.Now().Unix())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), head)
			return nil
		},
	}
}

func newSessionAbortCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "abort <reason>",
		Short: "Abort the active session and flush it, ready for compaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			defer r.Close()

			head, err := r.AbortSession(args[0], time.Now().Unix())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), head)
			return nil
		},
	}
}

func newSessionCheckStaleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-stale",
		Short: "Compare the active session's idle time against the configured thresholds, auto-compacting if it's crossed the auto-compact threshold",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			defer r.Close()

			status, err := r.CheckStaleSession(time.Now().Unix())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (idle %ds)\n", status.Kind, status.IdleSecs)
			return nil
		},
	}
}
