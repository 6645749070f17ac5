// Package cmd contains all the CLI commands for the application,
// built using the Cobra library.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "github-taskmail",
	Short: "Emails each assignee the problems found on their open GitHub issues and pull requests.",
	Long: `github-taskmail scans the open issues and pull requests of the configured repositories,
applies the configured task rules to each of them and sends every assignee one email
listing the items they still have to take care of.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	// Add a persistent flag for verbose output, available to all commands.
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose/debug logging")
	rootCmd.PersistentFlags().StringP("config", "c", "taskmail.yaml", "Path to the configuration file")
}
