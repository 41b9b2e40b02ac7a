package cmd

import (
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"nexus-mod-manager/db"
	"nexus-mod-manager/dispatcher"
	"nexus-mod-manager/logger"
	"nexus-mod-manager/nexus"
	"nexus-mod-manager/ui"
)

// checkCmd represents the nexus check command
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check registered mods against Nexus Mods for newer files",
	Long: `Check every registered mod that carries a Nexus id and version
against the mod's file list on Nexus Mods. Mods whose newest file
advertises a different version are reported; nothing is downloaded.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		app := bootstrap()
		defer app.Shutdown()

		p := tea.NewProgram(initialCheckModel(app))
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("could not run the check view: %w", err)
		}
		return nil
	},
}

func init() {
	nexusCmd.AddCommand(checkCmd)
}

// runCheck fans one goroutine out per eligible mod and streams progress
// into the channel. The channel is closed by the caller when runCheck
// returns.
func runCheck(app *App, progress chan<- CheckProgressMsg) {
	mods := app.requestMods(dispatcher.EventRequestGetAllMods, nil)
	games := app.requestGames(dispatcher.EventRequestGetAllGames, nil)

	domains := make(map[string]string, len(games)) // game code -> nexus domain
	for _, g := range games {
		domains[g.Code] = g.NexusID
	}

	var candidates []db.Mod
	for _, m := range mods {
		if m.NexusID == "" || m.Version == "" || domains[m.GameCode] == "" {
			continue
		}
		candidates = append(candidates, m)
	}

	progress <- CheckProgressMsg{
		Type:    "status",
		Message: fmt.Sprintf("Checking %d of %d registered mods...", len(candidates), len(mods)),
	}
	if len(candidates) == 0 {
		progress <- CheckProgressMsg{
			Type:    "summary",
			Message: "Nothing to check. Mods need a nexus id and a version to be checkable.",
		}
		return
	}

	var checked atomic.Int64
	var stale atomic.Int64
	var failed atomic.Int64
	var wg sync.WaitGroup

	for _, mod := range candidates {
		wg.Add(1)
		go func(m db.Mod) {
			defer wg.Done()

			goroutineLogger := logger.Log.With(
				zap.String("mod", m.Name), zap.String("nexus_id", m.NexusID))

			modID, err := strconv.Atoi(m.NexusID)
			if err != nil {
				goroutineLogger.Warnw("Mod has a non-numeric nexus id", zap.Error(err))
				failed.Add(1)
				progress <- CheckProgressMsg{Type: "error", ModName: m.Name, Message: "non-numeric nexus id"}
				return
			}

			progress <- CheckProgressMsg{Type: "check", ModName: m.Name}
			files, err := app.Nexus.GetModFiles(domains[m.GameCode], modID)
			if err != nil {
				goroutineLogger.Errorw("Failed to fetch the file list", zap.Error(err))
				failed.Add(1)
				progress <- CheckProgressMsg{Type: "error", ModName: m.Name, Message: err.Error()}
				return
			}
			checked.Add(1)

			latest := latestFileVersion(files)
			if latest == "" || latest == m.Version {
				goroutineLogger.Infow("Mod is current", zap.String("version", m.Version))
				return
			}

			stale.Add(1)
			goroutineLogger.Info(ui.Colorize(
				fmt.Sprintf("Update available: %s -> %s", m.Version, latest), 0xFFAF00))
			progress <- CheckProgressMsg{
				Type:    "stale",
				ModName: m.Name,
				Current: m.Version,
				Latest:  latest,
			}
		}(mod)
	}
	wg.Wait()

	progress <- CheckProgressMsg{
		Type: "summary",
		Message: fmt.Sprintf("Checked %d mods: %d updates available, %d failed",
			checked.Load(), stale.Load(), failed.Load()),
	}
}

// latestFileVersion picks the version of the newest uploaded file that
// is still current. Superseded, archived and removed uploads keep their
// slots in the listing and must not win.
func latestFileVersion(files *nexus.ModFiles) string {
	var best *nexus.ModFile
	for i := range files.Files {
		f := &files.Files[i]
		switch f.CategoryName {
		case "OLD_VERSION", "ARCHIVED", "DELETED":
			continue
		}
		if best == nil || f.UploadedTimestamp > best.UploadedTimestamp {
			best = f
		}
	}
	if best == nil {
		return ""
	}
	if best.Version != "" {
		return best.Version
	}
	return best.ModVersion
}
