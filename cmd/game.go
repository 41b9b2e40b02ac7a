package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"nexus-mod-manager/dispatcher"
	"nexus-mod-manager/engine"
	"nexus-mod-manager/ui"
)

var gameCmd = &cobra.Command{
	Use:   "game",
	Short: "Manage registered games",
}

var gameAddNexusID string

var gameAddCmd = &cobra.Command{
	Use:   "add <name> <path>",
	Short: "Register a game installation",
	Long: `Register a game by name and install path. The game receives a stable
code used to address it and a Nexus domain guessed from the name;
pass --nexus-id when the guess would be wrong.`,
	Args: cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		app := bootstrap()
		defer app.Shutdown()

		path, err := filepath.Abs(args[1])
		if err != nil {
			return fmt.Errorf("could not resolve %q: %w", args[1], err)
		}

		payload := dispatcher.Payload{
			dispatcher.KeyName: args[0],
			dispatcher.KeyPath: path,
		}
		if gameAddNexusID != "" {
			payload[dispatcher.KeyNexusID] = gameAddNexusID
		}

		g := app.requestGame(dispatcher.EventRequestInsertGame, payload)
		if g == nil {
			return fmt.Errorf("could not register %q, see the log for details", args[0])
		}

		fmt.Println(ui.Success(fmt.Sprintf("Registered %s (code %s, nexus domain %s)", g.Name, g.Code, g.NexusID)))
		if engine.IsUnrealGame(g.Path) {
			fmt.Println(ui.Subtle("Unreal Engine layout detected, mods will default to " + engine.UnrealModsDir(g.Path)))
		}
		return nil
	},
}

var gameListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered games",
	RunE: func(_ *cobra.Command, _ []string) error {
		app := bootstrap()
		defer app.Shutdown()

		games := app.requestGames(dispatcher.EventRequestGetAllGames, nil)
		if len(games) == 0 {
			fmt.Println("No games registered yet. Add one with: nexus-mod-manager game add <name> <path>")
			return nil
		}

		fmt.Println(ui.Heading(fmt.Sprintf("%-4s %-26s %-14s %-16s %s", "ID", "Name", "Code", "Nexus Domain", "Path")))
		for _, g := range games {
			fmt.Printf("%-4d %-26s %-14s %-16s %s\n",
				g.ID, truncate(g.Name, 24), g.Code, g.NexusID, g.Path)
		}
		return nil
	},
}

var (
	gameSearchName    string
	gameSearchPath    string
	gameSearchCode    string
	gameSearchNexusID string
)

var gameSearchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search registered games by exact field values",
	RunE: func(_ *cobra.Command, _ []string) error {
		app := bootstrap()
		defer app.Shutdown()

		payload := dispatcher.Payload{}
		if gameSearchName != "" {
			payload[dispatcher.KeyName] = gameSearchName
		}
		if gameSearchPath != "" {
			payload[dispatcher.KeyPath] = gameSearchPath
		}
		if gameSearchCode != "" {
			payload[dispatcher.KeyGameCode] = gameSearchCode
		}
		if gameSearchNexusID != "" {
			payload[dispatcher.KeyNexusID] = gameSearchNexusID
		}

		games := app.requestGames(dispatcher.EventRequestSearchGames, payload)
		if len(games) == 0 {
			fmt.Println("No games match.")
			return nil
		}
		for _, g := range games {
			fmt.Printf("%d  %s  (code %s, nexus domain %s)\n  %s\n", g.ID, g.Name, g.Code, g.NexusID, g.Path)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(gameCmd)
	gameCmd.AddCommand(gameAddCmd)
	gameCmd.AddCommand(gameListCmd)
	gameCmd.AddCommand(gameSearchCmd)

	gameAddCmd.Flags().StringVar(&gameAddNexusID, "nexus-id", "", "Nexus Mods domain for the game (e.g. skyrimspecialedition)")

	gameSearchCmd.Flags().StringVar(&gameSearchName, "name", "", "Match the game name")
	gameSearchCmd.Flags().StringVar(&gameSearchPath, "path", "", "Match the install path")
	gameSearchCmd.Flags().StringVar(&gameSearchCode, "code", "", "Match the game code")
	gameSearchCmd.Flags().StringVar(&gameSearchNexusID, "nexus-id", "", "Match the Nexus domain")
}
