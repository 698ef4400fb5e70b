package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/redisun/ctx/pkg/graph"
	"github.com/redisun/ctx/pkg/repo"
)

func newObserveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "observe",
		Short: "Record an observation into the active session's buffer",
	}
	cmd.AddCommand(newObserveReadCmd())
	cmd.AddCommand(newObserveReadContentCmd())
	cmd.AddCommand(newObserveWriteCmd())
	cmd.AddCommand(newObserveNoteCmd())
	cmd.AddCommand(newObservePlanCmd())
	cmd.AddCommand(newObserveCommandCmd())
	cmd.AddCommand(newObserveRelateCmd())
	return cmd
}

func newObserveReadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "read <path>",
		Short: "Record that a file was read, without capturing its content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			defer r.Close()

			id, err := r.ObserveFileRead(args[0], time.Now().Unix())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
}

func newObserveReadContentCmd() *cobra.Command {
	var contentFile string
	cmd := &cobra.Command{
		Use:   "read-content <path>",
		Short: "Record that a file was read, capturing the exact content seen",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readContent(contentFile, cmd.InOrStdin())
			if err != nil {
				return err
			}
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			defer r.Close()

			id, err := r.ObserveFileReadWithContent(args[0], content, time.Now().Unix())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	cmd.Flags().StringVar(&contentFile, "file", "", "read content from this file instead of stdin")
	return cmd
}

func newObserveWriteCmd() *cobra.Command {
	var contentFile string
	cmd := &cobra.Command{
		Use:   "write <path>",
		Short: "Record a file's content as a new version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readContent(contentFile, cmd.InOrStdin())
			if err != nil {
				return err
			}
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			defer r.Close()

			id, err := r.ObserveFileWrite(args[0], content, time.Now().Unix())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	cmd.Flags().StringVar(&contentFile, "file", "", "read content from this file instead of stdin")
	return cmd
}

func readContent(path string, stdin io.Reader) ([]byte, error) {
	if path == "" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

func newObserveNoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "note <text>",
		Short: "Record a freeform note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			defer r.Close()

			id, err := r.ObserveNote(args[0], time.Now().Unix())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
}

func newObservePlanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plan <text>",
		Short: "Record a plan, filed under the task narrative role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			defer r.Close()

			id, err := r.ObservePlan(args[0], time.Now().Unix())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
}

func newObserveCommandCmd() *cobra.Command {
	var exitCode int
	cmd := &cobra.Command{
		Use:   "command <cmd>",
		Short: "Record a shell command's output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("read command output: %w", err)
			}
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			defer r.Close()

			id, err := r.ObserveCommand(args[0], output, exitCode, time.Now().Unix())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	cmd.Flags().IntVar(&exitCode, "exit-code", 0, "the command's exit code")
	return cmd
}

var nodeKindNames = map[string]graph.NodeKind{
	"file": graph.NodeFile, "module": graph.NodeModule, "item": graph.NodeItem,
	"package": graph.NodePackage, "target": graph.NodeTarget, "crate": graph.NodeCrate,
	"task": graph.NodeTask, "note": graph.NodeNote, "decision": graph.NodeDecision,
	"diagnostic": graph.NodeDiagnostic,
}

var labelNames = map[string]graph.Label{
	"Contains": graph.LabelContains, "Defines": graph.LabelDefines, "HasVersion": graph.LabelHasVersion,
	"DependsOn": graph.LabelDependsOn, "TargetOf": graph.LabelTargetOf, "CrateFromTarget": graph.LabelCrateFromTarget,
	"Imports": graph.LabelImports, "References": graph.LabelReferences, "Calls": graph.LabelCalls,
	"Implements": graph.LabelImplements, "UsesType": graph.LabelUsesType,
	"Mentions": graph.LabelMentions, "UpdatedIn": graph.LabelUpdatedIn, "DerivedFrom": graph.LabelDerivedFrom,
}

var confidenceNames = map[string]graph.Confidence{
	"Low": graph.ConfidenceLow, "Medium": graph.ConfidenceMedium, "High": graph.ConfidenceHigh,
}

// parseNode parses a "kind:key" string into a NodeId.
func parseNode(s string) (graph.NodeId, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return graph.NodeId{}, fmt.Errorf("node %q must be kind:key", s)
	}
	kind, ok := nodeKindNames[parts[0]]
	if !ok {
		return graph.NodeId{}, fmt.Errorf("unknown node kind %q", parts[0])
	}
	return graph.NodeId{Kind: kind, Key: parts[1]}, nil
}

func newObserveRelateCmd() *cobra.Command {
	var from, to, label, confidence, tool, weightStr string
	cmd := &cobra.Command{
		Use:   "relate",
		Short: "Record one directed, labeled relationship between two nodes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fromNode, err := parseNode(from)
			if err != nil {
				return err
			}
			toNode, err := parseNode(to)
			if err != nil {
				return err
			}
			lbl, ok := labelNames[label]
			if !ok {
				return fmt.Errorf("unknown label %q", label)
			}
			conf, ok := confidenceNames[confidence]
			if !ok {
				return fmt.Errorf("unknown confidence %q", confidence)
			}

			edge := graph.Edge{
				From:  fromNode,
				To:    toNode,
				Label: lbl,
				Evidence: graph.Evidence{
					Tool:       tool,
					Confidence: conf,
				},
			}
			if weightStr != "" {
				w, err := strconv.ParseFloat(weightStr, 64)
				if err != nil {
					return fmt.Errorf("parse weight: %w", err)
				}
				edge.Weight, edge.HasWeight = w, true
			}

			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			defer r.Close()

			id, err := r.ObserveRelations([]graph.Edge{edge}, time.Now().Unix())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "source node as kind:key")
	cmd.Flags().StringVar(&to, "to", "", "target node as kind:key")
	cmd.Flags().StringVar(&label, "label", "", "relationship label")
	cmd.Flags().StringVar(&confidence, "confidence", "Medium", "evidence confidence (Low, Medium, High)")
	cmd.Flags().StringVar(&tool, "tool", "", "the analyzer or tool that produced this edge")
	cmd.Flags().StringVar(&weightStr, "weight", "", "optional numeric edge weight")
	cmd.MarkFlagRequired("from")
	cmd.MarkFlagRequired("to")
	cmd.MarkFlagRequired("label")
	return cmd
}
