package cmd

import (
	"fmt"

	"github.com/naka-gawa/github-taskmail/internal/task"
	"github.com/spf13/cobra"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Lists the built-in rules usable in the tasks section of the configuration",
	Run: func(cmd *cobra.Command, args []string) {
		for _, name := range task.BuiltinNames() {
			fmt.Println(name)
		}
	},
}

func init() {
	rootCmd.AddCommand(rulesCmd)
}
