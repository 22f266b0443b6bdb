package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for authcrawl.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "authcrawl",
		Short: "Authenticated crawler speaking raw HTTP/1.1",
		Long: `authcrawl logs in to a web application through its CSRF protected login
form and crawls it breadth-first over a persistent HTTP/1.1 connection,
collecting the text of marked elements until enough results are found.

Runs are recorded in a local SQLite database; use 'authcrawl history'
to inspect them.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
