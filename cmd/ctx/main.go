package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "ctx",
		Short: "Durable, queryable memory for coding agents",
	}

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd())
	root.AddCommand(newSessionCmd())
	root.AddCommand(newObserveCmd())
	root.AddCommand(newPackCmd())
	root.AddCommand(newRebuildIndexCmd())
	root.AddCommand(newGCCmd())
	root.AddCommand(newVerifyCmd())
	root.AddCommand(newCleanupCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "ctx 0.1.0-dev")
		},
	}
}
