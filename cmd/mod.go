package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"nexus-mod-manager/db"
	"nexus-mod-manager/dispatcher"
	"nexus-mod-manager/engine"
	"nexus-mod-manager/ui"
)

var modCmd = &cobra.Command{
	Use:   "mod",
	Short: "Manage registered mods",
}

var (
	modAddTarget  string
	modAddVersion string
	modAddNexusID string
)

var modAddCmd = &cobra.Command{
	Use:   "add <game> <name> <archive>",
	Short: "Register a mod archive for a game",
	Long: `Register a mod from a local archive. The archive is unpacked into a
staging area on install and its files linked into the target
directory. Without --target the files land in the game's install
path, or in Content/Paks/~mods when the game is an Unreal Engine
build.`,
	Args: cobra.ExactArgs(3),
	RunE: func(_ *cobra.Command, args []string) error {
		app := bootstrap()
		defer app.Shutdown()

		game, err := app.resolveGameArg(args[0])
		if err != nil {
			return err
		}

		archive, err := filepath.Abs(args[2])
		if err != nil {
			return fmt.Errorf("could not resolve %q: %w", args[2], err)
		}
		if _, err := os.Stat(archive); err != nil {
			return fmt.Errorf("archive %s is not readable: %w", archive, err)
		}

		target := modAddTarget
		if target == "" {
			target = game.Path
			if engine.IsUnrealGame(game.Path) {
				target, err = engine.EnsureUnrealModsDir(game.Path)
				if err != nil {
					return fmt.Errorf("could not prepare the ~mods directory: %w", err)
				}
			}
		}

		payload := dispatcher.Payload{
			dispatcher.KeyGameID:        game.ID,
			dispatcher.KeyName:          args[1],
			dispatcher.KeyPath:          archive,
			dispatcher.KeySymlinkTarget: target,
		}
		if modAddVersion != "" {
			payload[dispatcher.KeyVersion] = modAddVersion
		}
		if modAddNexusID != "" {
			payload[dispatcher.KeyNexusID] = modAddNexusID
		}

		m := app.requestMod(dispatcher.EventRequestInsertMod, payload)
		if m == nil {
			return fmt.Errorf("could not register %q, see the log for details", args[1])
		}

		fmt.Println(ui.Success(fmt.Sprintf("Registered %s (code %s) for %s", m.Name, m.Code, game.Name)))
		fmt.Println(ui.Subtle("Install it with: nexus-mod-manager install " + m.Code))
		return nil
	},
}

var modListCmd = &cobra.Command{
	Use:   "list [game]",
	Short: "List registered mods, optionally for a single game",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		app := bootstrap()
		defer app.Shutdown()

		var mods []db.Mod
		if len(args) == 1 {
			game, err := app.resolveGameArg(args[0])
			if err != nil {
				return err
			}
			mods = app.requestMods(dispatcher.EventRequestGetModsForGame,
				dispatcher.Payload{dispatcher.KeyGameID: game.ID})
		} else {
			mods = app.requestMods(dispatcher.EventRequestGetAllMods, nil)
		}

		if len(mods) == 0 {
			fmt.Println("No mods registered yet. Add one with: nexus-mod-manager mod add <game> <name> <archive>")
			return nil
		}

		fmt.Println(ui.Heading(fmt.Sprintf("%-4s %-30s %-12s %-10s %-12s %s", "ID", "Name", "Game", "Version", "Status", "Code")))
		for _, m := range mods {
			fmt.Printf("%-4d %-30s %-12s %-10s %-12s %s\n",
				m.ID, truncate(m.Name, 28), m.GameCode, truncate(m.Version, 8),
				ui.StatusBadge(m.Installed), m.Code)
		}
		return nil
	},
}

var (
	modSearchName    string
	modSearchGame    string
	modSearchNexusID string
	modSearchVersion string
	modSearchState   bool
)

var modSearchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search registered mods by exact field values",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app := bootstrap()
		defer app.Shutdown()

		payload := dispatcher.Payload{}
		if modSearchName != "" {
			payload[dispatcher.KeyName] = modSearchName
		}
		if modSearchGame != "" {
			game, err := app.resolveGameArg(modSearchGame)
			if err != nil {
				return err
			}
			payload[dispatcher.KeyGameID] = game.ID
		}
		if modSearchNexusID != "" {
			payload[dispatcher.KeyNexusID] = modSearchNexusID
		}
		if modSearchVersion != "" {
			payload[dispatcher.KeyVersion] = modSearchVersion
		}
		// Only constrain on the flag when it was given; a false value
		// matches every row, which is the storage layer's contract for
		// zero values rather than a bug to paper over here.
		if cmd.Flags().Changed("installed") {
			payload[dispatcher.KeyInstalled] = modSearchState
		}

		mods := app.requestMods(dispatcher.EventRequestSearchMods, payload)
		if len(mods) == 0 {
			fmt.Println("No mods match.")
			return nil
		}
		for _, m := range mods {
			fmt.Printf("%d  %s %s  (game %s, code %s)\n", m.ID, m.Name, ui.StatusBadge(m.Installed), m.GameCode, m.Code)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modCmd)
	modCmd.AddCommand(modAddCmd)
	modCmd.AddCommand(modListCmd)
	modCmd.AddCommand(modSearchCmd)

	modAddCmd.Flags().StringVar(&modAddTarget, "target", "", "Directory the mod's files are linked into")
	modAddCmd.Flags().StringVar(&modAddVersion, "version", "", "Mod version, used by update checks")
	modAddCmd.Flags().StringVar(&modAddNexusID, "nexus-id", "", "Numeric mod id on Nexus Mods")

	modSearchCmd.Flags().StringVar(&modSearchName, "name", "", "Match the mod name")
	modSearchCmd.Flags().StringVar(&modSearchGame, "game", "", "Restrict to one game (id, code or name)")
	modSearchCmd.Flags().StringVar(&modSearchNexusID, "nexus-id", "", "Match the Nexus mod id")
	modSearchCmd.Flags().StringVar(&modSearchVersion, "version", "", "Match the version")
	modSearchCmd.Flags().BoolVar(&modSearchState, "installed", false, "Match the installed state")
}
