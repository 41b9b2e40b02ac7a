// Package installer moves mods between their unpack directory and the
// game tree. Installing unpacks a mod's archive into its staging
// directory and mirrors every staged file into the game via links;
// uninstalling removes exactly the links that were recorded. The
// installer resolves games and persists link records through dispatcher
// requests only, so the database service is the other side of every
// conversation it has.
package installer

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"nexus-mod-manager/db"
	"nexus-mod-manager/dispatcher"
	"nexus-mod-manager/service"
)

type Installer struct {
	bus *dispatcher.Dispatcher
	log *zap.SugaredLogger
}

func New(bus *dispatcher.Dispatcher, log *zap.SugaredLogger) *Installer {
	return &Installer{bus: bus, log: log}
}

// Install unpacks the mod's archive and links every staged regular file
// into the mod's symlink target, preserving the relative layout. The
// resulting link map is persisted on the mod row and refreshed into the
// given record. Links created before a failure stay on disk; there is
// no rollback. The installed flag is the caller's to manage.
func (i *Installer) Install(mod *db.Mod) bool {
	game := i.resolveGame(mod.GameID)
	if game == nil {
		i.log.Warnw("Install aborted, owning game not found",
			zap.String("mod", mod.Name), zap.Uint("game_id", mod.GameID))
		return false
	}

	if _, err := os.Stat(mod.ArchivePath); err != nil {
		i.log.Warnw("Install aborted, archive missing",
			zap.String("mod", mod.Name), zap.String("archive", mod.ArchivePath))
		return false
	}

	if err := i.place(mod); err != nil {
		i.log.Errorw("Install failed", zap.String("mod", mod.Name), zap.Error(err))
		i.broadcast(dispatcher.EventBroadcastModInstallFailed, game, mod)
		return false
	}

	i.log.Infow("Mod installed",
		zap.String("mod", mod.Name), zap.String("game", game.Name))
	i.broadcast(dispatcher.EventBroadcastModInstallSuccess, game, mod)
	return true
}

// Uninstall removes every link recorded on the mod, then the staging
// directory itself. The recorded map is the authoritative list; nothing
// is rediscovered by walking the game tree.
func (i *Installer) Uninstall(mod *db.Mod) bool {
	game := i.resolveGame(mod.GameID)
	if game == nil {
		i.log.Warnw("Uninstall aborted, owning game not found",
			zap.String("mod", mod.Name), zap.Uint("game_id", mod.GameID))
		return false
	}

	if _, err := os.Stat(mod.InstallDir); err != nil {
		i.log.Warnw("Uninstall aborted, staging directory missing",
			zap.String("mod", mod.Name), zap.String("dir", mod.InstallDir))
		return false
	}

	for _, link := range mod.LinkMap() {
		if err := removeLink(link); err != nil {
			i.log.Errorw("Uninstall failed removing link",
				zap.String("mod", mod.Name), zap.String("link", link), zap.Error(err))
			return false
		}
	}
	if err := os.RemoveAll(mod.InstallDir); err != nil {
		i.log.Errorw("Uninstall failed removing staging directory",
			zap.String("mod", mod.Name), zap.String("dir", mod.InstallDir), zap.Error(err))
		return false
	}

	i.log.Infow("Mod uninstalled",
		zap.String("mod", mod.Name), zap.String("game", game.Name))
	i.broadcast(dispatcher.EventBroadcastModUninstalled, game, mod)
	return true
}

// Update reinstalls the mod from its current archive: a full uninstall
// followed by a fresh install. Not atomic; when the uninstall fails the
// install is never attempted.
func (i *Installer) Update(mod *db.Mod) bool {
	if !i.Uninstall(mod) {
		return false
	}
	return i.Install(mod)
}

func (i *Installer) place(mod *db.Mod) error {
	if err := extractArchive(mod.ArchivePath, mod.InstallDir); err != nil {
		return err
	}

	links, err := i.linkTree(mod.InstallDir, mod.SymlinkTarget)
	if err != nil {
		return err
	}

	results := i.bus.Dispatch(dispatcher.EventRequestUpdateMod,
		dispatcher.NamespaceGlobal, dispatcher.Payload{
			dispatcher.KeyModID:         mod.ID,
			dispatcher.KeySymlinkTarget: mod.SymlinkTarget,
			dispatcher.KeySymlinks:      links,
		})
	updated, ok := results[service.ResultKey].(*db.Mod)
	if !ok || updated == nil {
		return errors.New("link record was not persisted")
	}
	*mod = *updated
	return nil
}

// linkTree links every regular file under stagingDir into targetDir and
// returns staged path -> link path for everything it created.
func (i *Installer) linkTree(stagingDir, targetDir string) (map[string]string, error) {
	links := map[string]string{}
	err := filepath.WalkDir(stagingDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(stagingDir, path)
		if err != nil {
			return err
		}
		dst := filepath.Join(targetDir, rel)
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		if err := linkFile(path, dst); err != nil {
			return err
		}
		links[path] = dst
		return nil
	})
	if err != nil {
		return nil, err
	}
	return links, nil
}

func (i *Installer) resolveGame(id uint) *db.Game {
	results := i.bus.Dispatch(dispatcher.EventRequestGetGameByID,
		dispatcher.NamespaceGlobal, dispatcher.Payload{dispatcher.KeyGameID: id})
	g, ok := results[service.ResultKey].(*db.Game)
	if !ok {
		return nil
	}
	return g
}

func (i *Installer) broadcast(event string, game *db.Game, mod *db.Mod) {
	i.bus.Dispatch(event, dispatcher.NamespaceGlobal, dispatcher.Payload{
		dispatcher.KeyGame: game,
		dispatcher.KeyMod:  mod,
	})
}
