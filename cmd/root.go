package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd is the base command. Running it without a subcommand drops
// straight into the interactive mod list.
var rootCmd = &cobra.Command{
	Use:   "nexus-mod-manager",
	Short: "Manage game mods from Nexus Mods",
	Long: `nexus-mod-manager keeps a local catalog of games and mod archives,
links unpacked mod files into game directories and talks to the
Nexus Mods API for discovery, tracking and update checks.`,
	SilenceUsage: true,
	Run: func(_ *cobra.Command, _ []string) {
		runGUI()
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
