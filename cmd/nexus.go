package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"nexus-mod-manager/config"
	"nexus-mod-manager/db"
	"nexus-mod-manager/dispatcher"
	"nexus-mod-manager/engine"
	"nexus-mod-manager/logger"
	"nexus-mod-manager/nexus"
	"nexus-mod-manager/ui"
)

var nexusCmd = &cobra.Command{
	Use:   "nexus",
	Short: "Talk to the Nexus Mods API",
}

// nexusDomain resolves an argument to a Nexus game domain. A registered
// game's id, code or name wins so local shorthand keeps working; raw
// domains pass through unchanged.
func (a *App) nexusDomain(arg string) string {
	if g, err := a.resolveGameArg(arg); err == nil && g.NexusID != "" {
		return g.NexusID
	}
	return arg
}

var nexusValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configured API key against the account endpoint",
	RunE: func(_ *cobra.Command, _ []string) error {
		app := bootstrap()
		defer app.Shutdown()

		user, err := app.Nexus.ValidateAPIKey()
		if err != nil {
			return fmt.Errorf("key validation failed: %w", err)
		}
		tier := "free"
		if user.IsPremium {
			tier = "premium"
		}
		fmt.Println(ui.Success(fmt.Sprintf("Key belongs to %s (user %d, %s account)", user.Name, user.UserID, tier)))
		return nil
	},
}

var nexusGamesAll bool

var nexusGamesCmd = &cobra.Command{
	Use:   "games",
	Short: "List games known to Nexus Mods, busiest first",
	RunE: func(_ *cobra.Command, _ []string) error {
		app := bootstrap()
		defer app.Shutdown()

		games, err := app.Nexus.GetGames()
		if err != nil {
			return err
		}
		sort.Slice(games, func(i, j int) bool { return games[i].Mods > games[j].Mods })

		shown := games
		if !nexusGamesAll && len(shown) > 30 {
			shown = shown[:30]
		}
		fmt.Println(ui.Heading(fmt.Sprintf("%-30s %-34s %s", "Domain", "Name", "Mods")))
		for _, g := range shown {
			fmt.Printf("%-30s %-34s %d\n", g.DomainName, truncate(g.Name, 32), g.Mods)
		}
		if len(shown) < len(games) {
			fmt.Println(ui.Subtle(fmt.Sprintf("%d more, pass --all to see them", len(games)-len(shown))))
		}
		return nil
	},
}

var nexusGameCmd = &cobra.Command{
	Use:   "game <domain>",
	Short: "Show one game from the Nexus catalog",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		app := bootstrap()
		defer app.Shutdown()

		info, err := app.Nexus.GetGame(app.nexusDomain(args[0]))
		if err != nil {
			return err
		}
		fmt.Println(ui.Heading(info.Name))
		fmt.Printf("  domain:    %s\n  genre:     %s\n  mods:      %d\n  downloads: %d\n",
			info.DomainName, info.Genre, info.Mods, info.Downloads)
		return nil
	},
}

var nexusLatestUpdated bool

var nexusLatestCmd = &cobra.Command{
	Use:   "latest <game>",
	Short: "Show the latest mods added for a game",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		app := bootstrap()
		defer app.Shutdown()

		domain := app.nexusDomain(args[0])
		var mods []nexus.ModInfo
		var err error
		if nexusLatestUpdated {
			mods, err = app.Nexus.GetLatestUpdatedMods(domain)
		} else {
			mods, err = app.Nexus.GetLatestAddedMods(domain)
		}
		if err != nil {
			return err
		}
		printModInfos(mods)
		return nil
	},
}

var nexusTrendingCmd = &cobra.Command{
	Use:   "trending <game>",
	Short: "Show the mods trending for a game",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		app := bootstrap()
		defer app.Shutdown()

		mods, err := app.Nexus.GetTrendingMods(app.nexusDomain(args[0]))
		if err != nil {
			return err
		}
		printModInfos(mods)
		return nil
	},
}

// printModInfos renders a mod listing from the API. Hidden and removed
// mods still appear in the feeds; skip them.
func printModInfos(mods []nexus.ModInfo) {
	for _, m := range mods {
		if !m.Available {
			continue
		}
		fmt.Printf("%-8d %-42s %-12s by %s\n", m.ModID, truncate(m.Name, 40), m.Version, m.Author)
	}
}

var nexusTrackCmd = &cobra.Command{
	Use:   "track <game> <mod-id>",
	Short: "Add a mod to the account's tracking list",
	Args:  cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		app := bootstrap()
		defer app.Shutdown()

		modID, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("mod id must be numeric, got %q", args[1])
		}
		domain := app.nexusDomain(args[0])
		if err := app.Nexus.TrackMod(domain, modID); err != nil {
			return err
		}
		fmt.Println(ui.Success(fmt.Sprintf("Tracking mod %d on %s", modID, domain)))
		return nil
	},
}

var nexusUntrackCmd = &cobra.Command{
	Use:   "untrack <game> <mod-id>",
	Short: "Remove a mod from the account's tracking list",
	Args:  cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		app := bootstrap()
		defer app.Shutdown()

		modID, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("mod id must be numeric, got %q", args[1])
		}
		domain := app.nexusDomain(args[0])
		if err := app.Nexus.UntrackMod(domain, modID); err != nil {
			return err
		}
		fmt.Println(ui.Success(fmt.Sprintf("Stopped tracking mod %d on %s", modID, domain)))
		return nil
	},
}

var nexusTrackedCmd = &cobra.Command{
	Use:   "tracked",
	Short: "List the mods the account is tracking",
	RunE: func(_ *cobra.Command, _ []string) error {
		app := bootstrap()
		defer app.Shutdown()

		tracked, err := app.Nexus.GetTrackedMods()
		if err != nil {
			return err
		}
		if len(tracked) == 0 {
			fmt.Println("Not tracking anything.")
			return nil
		}
		sort.Slice(tracked, func(i, j int) bool {
			if tracked[i].DomainName != tracked[j].DomainName {
				return tracked[i].DomainName < tracked[j].DomainName
			}
			return tracked[i].ModID < tracked[j].ModID
		})
		for _, tm := range tracked {
			fmt.Printf("%-30s %d\n", tm.DomainName, tm.ModID)
		}
		return nil
	},
}

var (
	nexusEndorseVersion string
	nexusEndorseAbstain bool
)

var nexusEndorseCmd = &cobra.Command{
	Use:   "endorse <game> <mod-id>",
	Short: "Endorse a mod, or take the endorsement back with --abstain",
	Args:  cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		app := bootstrap()
		defer app.Shutdown()

		modID, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("mod id must be numeric, got %q", args[1])
		}
		domain := app.nexusDomain(args[0])

		if nexusEndorseAbstain {
			if err := app.Nexus.AbstainEndorsement(domain, modID, nexusEndorseVersion); err != nil {
				return err
			}
			fmt.Println(ui.Success(fmt.Sprintf("Abstained from endorsing mod %d on %s", modID, domain)))
			return nil
		}
		if err := app.Nexus.EndorseMod(domain, modID, nexusEndorseVersion); err != nil {
			return err
		}
		fmt.Println(ui.Success(fmt.Sprintf("Endorsed mod %d on %s", modID, domain)))
		return nil
	},
}

var nexusChangelogCmd = &cobra.Command{
	Use:   "changelog <game> <mod-id>",
	Short: "Show a mod's changelogs by version",
	Args:  cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		app := bootstrap()
		defer app.Shutdown()

		modID, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("mod id must be numeric, got %q", args[1])
		}
		changes, err := app.Nexus.GetModChangelogs(app.nexusDomain(args[0]), modID)
		if err != nil {
			return err
		}
		if len(changes) == 0 {
			fmt.Println("No changelogs published.")
			return nil
		}

		versions := make([]string, 0, len(changes))
		for v := range changes {
			versions = append(versions, v)
		}
		sort.Strings(versions)
		for _, v := range versions {
			fmt.Println(ui.Heading(v))
			for _, line := range changes[v] {
				fmt.Printf("  • %s\n", line)
			}
		}
		return nil
	},
}

var nexusDownloadRegister string

var nexusDownloadCmd = &cobra.Command{
	Use:   "download <game> <mod-id> <file-id>",
	Short: "Download a mod file from Nexus Mods",
	Long: `Download one file of a mod into the download directory. The download
link endpoint needs a premium account. With --register the archive
is stashed into the game's archive area and registered as a mod,
ready to install.`,
	Args: cobra.ExactArgs(3),
	RunE: func(_ *cobra.Command, args []string) error {
		app := bootstrap()
		defer app.Shutdown()

		modID, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("mod id must be numeric, got %q", args[1])
		}
		fileID, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("file id must be numeric, got %q", args[2])
		}

		var game *db.Game
		if nexusDownloadRegister != "" {
			if game, err = app.resolveGameArg(nexusDownloadRegister); err != nil {
				return err
			}
		}

		domain := app.nexusDomain(args[0])
		info, err := app.Nexus.GetMod(domain, modID)
		if err != nil {
			return fmt.Errorf("could not look up mod %d on %s: %w", modID, domain, err)
		}
		file, err := app.Nexus.GetModFile(domain, modID, fileID)
		if err != nil {
			return fmt.Errorf("could not look up file %d: %w", fileID, err)
		}

		links, err := app.Nexus.GetDownloadLinks(domain, modID, fileID)
		if err != nil {
			return err
		}
		if len(links) == 0 {
			return fmt.Errorf("no download locations offered for %s", file.FileName)
		}

		fmt.Printf("Downloading %s (%s) from %s...\n", file.FileName, file.Version, links[0].ShortName)
		path, err := app.Nexus.DownloadArchive(links[0].URI, app.Config.DownloadDir, printProgress)
		if err != nil {
			return fmt.Errorf("download failed: %w", err)
		}
		fmt.Println()
		fmt.Println(ui.Success("Saved " + path))

		if game == nil {
			return nil
		}
		return registerArchive(app, game, path, info.Name, strconv.Itoa(modID), file.Version)
	},
}

// printProgress is a ProgressCallback writing a crude one-line meter.
func printProgress(complete, total int64, percentage int) {
	if total > 0 {
		fmt.Printf("\r  %3d%% (%d/%d bytes)", percentage, complete, total)
	}
}

var nexusIdentifyRegister bool

var nexusIdentifyCmd = &cobra.Command{
	Use:   "identify <game> <archive-or-dir>",
	Short: "Match local archives against Nexus Mods by checksum",
	Long: `Hash an archive (or every archive directly inside a directory) and
look it up on Nexus Mods. With --register each match is stashed into
the game's archive area and registered as a mod carrying its Nexus
id and version, so update checks work for it.`,
	Args: cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		app := bootstrap()
		defer app.Shutdown()

		game, err := app.resolveGameArg(args[0])
		if err != nil {
			return err
		}
		if game.NexusID == "" {
			return fmt.Errorf("%s has no nexus domain, set one with 'game search' and the API", game.Name)
		}

		root, err := filepath.Abs(args[1])
		if err != nil {
			return fmt.Errorf("could not resolve %q: %w", args[1], err)
		}
		archives, err := collectArchives(root)
		if err != nil {
			return err
		}
		if len(archives) == 0 {
			fmt.Println("Nothing to identify, no archives found.")
			return nil
		}

		// Skip archives already registered so reruns stay cheap.
		known := map[string]bool{}
		for _, m := range app.requestMods(dispatcher.EventRequestGetAllMods, nil) {
			known[filepath.Base(m.ArchivePath)] = true
		}

		matched := 0
		for _, archive := range archives {
			base := filepath.Base(archive)
			if known[base] {
				fmt.Println(ui.Subtle(base + " is already registered, skipping"))
				continue
			}

			hash, err := nexus.FileMD5(archive)
			if err != nil {
				logger.Log.Warnw("Could not hash archive", zap.String("file", archive), zap.Error(err))
				continue
			}
			results, err := app.Nexus.MD5Search(game.NexusID, hash)
			if err != nil || len(results) == 0 {
				fmt.Println(ui.Subtle("No match for " + base))
				continue
			}

			hit := results[0]
			matched++
			fmt.Printf("%s -> %s %s (mod %d, file %s)\n",
				base, hit.Mod.Name, hit.FileDetails.Version, hit.Mod.ModID, hit.FileDetails.FileName)

			if nexusIdentifyRegister {
				if err := registerArchive(app, game, archive, hit.Mod.Name,
					strconv.Itoa(hit.Mod.ModID), hit.FileDetails.Version); err != nil {
					logger.Log.Warnw("Could not register identified archive",
						zap.String("file", archive), zap.Error(err))
				}
			}
		}
		fmt.Printf("Identified %d of %d archives.\n", matched, len(archives))
		return nil
	},
}

// collectArchives returns path itself when it is a file, otherwise every
// archive directly inside the directory. Download folders are flat, so
// nothing recurses.
func collectArchives(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var archives []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".zip", ".7z", ".rar":
			archives = append(archives, filepath.Join(path, entry.Name()))
		}
	}
	return archives, nil
}

// registerArchive stashes an archive into the game's staging area and
// registers it as a mod over the bus.
func registerArchive(app *App, game *db.Game, archive, name, nexusID, version string) error {
	stashed, err := stashArchive(app.Config, game, archive)
	if err != nil {
		return fmt.Errorf("could not move %s into the archive area: %w", archive, err)
	}

	target := game.Path
	if engine.IsUnrealGame(game.Path) {
		if target, err = engine.EnsureUnrealModsDir(game.Path); err != nil {
			return fmt.Errorf("could not prepare the ~mods directory: %w", err)
		}
	}

	payload := dispatcher.Payload{
		dispatcher.KeyGameID:        game.ID,
		dispatcher.KeyName:          name,
		dispatcher.KeyPath:          stashed,
		dispatcher.KeySymlinkTarget: target,
		dispatcher.KeyNexusID:       nexusID,
	}
	if version != "" {
		payload[dispatcher.KeyVersion] = version
	}

	m := app.requestMod(dispatcher.EventRequestInsertMod, payload)
	if m == nil {
		return fmt.Errorf("could not register %q, see the log for details", name)
	}
	fmt.Println(ui.Success(fmt.Sprintf("Registered %s (code %s) for %s", m.Name, m.Code, game.Name)))
	return nil
}

// stashArchive moves an archive into the game's archive staging area.
// KEEP_DOWNLOADS leaves the original behind and copies instead.
func stashArchive(cfg config.Config, game *db.Game, src string) (string, error) {
	destDir := game.ModArchiveDir
	if destDir == "" {
		destDir = filepath.Join(cfg.ModArchivesPath, game.Code)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", err
	}
	dest := filepath.Join(destDir, filepath.Base(src))

	if cfg.KeepDownloads {
		if err := copyArchive(src, dest); err != nil {
			return "", err
		}
		return dest, nil
	}
	if err := os.Rename(src, dest); err != nil {
		// Rename does not cross filesystems; copy and remove instead.
		if err := copyArchive(src, dest); err != nil {
			return "", err
		}
		if err := os.Remove(src); err != nil {
			return "", err
		}
	}
	return dest, nil
}

func copyArchive(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func init() {
	rootCmd.AddCommand(nexusCmd)
	nexusCmd.AddCommand(nexusValidateCmd)
	nexusCmd.AddCommand(nexusGamesCmd)
	nexusCmd.AddCommand(nexusGameCmd)
	nexusCmd.AddCommand(nexusLatestCmd)
	nexusCmd.AddCommand(nexusTrendingCmd)
	nexusCmd.AddCommand(nexusTrackCmd)
	nexusCmd.AddCommand(nexusUntrackCmd)
	nexusCmd.AddCommand(nexusTrackedCmd)
	nexusCmd.AddCommand(nexusEndorseCmd)
	nexusCmd.AddCommand(nexusChangelogCmd)
	nexusCmd.AddCommand(nexusDownloadCmd)
	nexusCmd.AddCommand(nexusIdentifyCmd)

	nexusGamesCmd.Flags().BoolVar(&nexusGamesAll, "all", false, "Show every game instead of the top 30")
	nexusLatestCmd.Flags().BoolVar(&nexusLatestUpdated, "updated", false, "Latest updated instead of latest added")
	nexusEndorseCmd.Flags().StringVar(&nexusEndorseVersion, "version", "", "Mod version the endorsement refers to")
	nexusEndorseCmd.Flags().BoolVar(&nexusEndorseAbstain, "abstain", false, "Withdraw instead of endorse")
	nexusDownloadCmd.Flags().StringVar(&nexusDownloadRegister, "register", "", "Also register the archive as a mod of this game")
	nexusIdentifyCmd.Flags().BoolVar(&nexusIdentifyRegister, "register", false, "Register every match as a mod")
}
