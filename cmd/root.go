// Package cmd contains the docent command-line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "docent",
	Short: "docent - knowledge-base assistant",
	Long: `docent answers questions from an indexed document collection.

Running docent without a subcommand starts an interactive chat session.
Use "docent ingest" to index documents first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd, args)
	},
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}
