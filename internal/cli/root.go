package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "patina",
	Short: "Temporal reputation staking for slow content",
	Long:  "Patina scores content by how interactions age and lets users stake reputation on what will still matter later. Single Go binary, SQLite storage.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(ingestCmd)
}
