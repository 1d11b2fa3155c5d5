package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bedel",
		Short: "Bedel — university helpdesk chatbot",
		Long:  "Bedel answers student questions and files support tickets over Discord or Slack.",
	}

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newBotCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newDBCmd())
	cmd.AddCommand(newFAQCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "bedel %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
