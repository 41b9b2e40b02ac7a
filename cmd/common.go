package cmd

import (
	"fmt"
	"strconv"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"nexus-mod-manager/config"
	"nexus-mod-manager/db"
	"nexus-mod-manager/dispatcher"
	"nexus-mod-manager/installer"
	"nexus-mod-manager/logger"
	"nexus-mod-manager/nexus"
	"nexus-mod-manager/service"
	"nexus-mod-manager/ui"
)

// App bundles the wired-up components every command works against.
// Commands never touch the database directly; rows travel over the
// event bus and come back under the service's result key.
type App struct {
	Config    config.Config
	DB        *gorm.DB
	Bus       *dispatcher.Dispatcher
	Service   *service.Service
	Installer *installer.Installer
	Nexus     *nexus.Client
}

// bootstrap handles shared initialization logic for commands: load the
// configuration, open the database, wire the bus, subscribe the
// database service and announce the startup.
func bootstrap() *App {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Log.Fatalw("Failed to load configuration", zap.Error(err))
	}

	gdb, err := db.Open(cfg.DatabasePath)
	if err != nil {
		logger.Log.Fatalw("Failed to open database", zap.String("path", cfg.DatabasePath), zap.Error(err))
	}
	logger.Log.Infow("Database initialized", zap.String("path", cfg.DatabasePath))

	store := db.NewStore(gdb, logger.Log, cfg.ModArchivesPath, cfg.ModInstalledPath)
	bus := dispatcher.New(logger.Log)
	svc := service.New(bus, store, logger.Log)
	svc.Subscribe()

	client, err := nexus.NewClient(cfg)
	if err != nil {
		logger.Log.Fatalw("Failed to create Nexus client", zap.Error(err))
	}

	app := &App{
		Config:    cfg,
		DB:        gdb,
		Bus:       bus,
		Service:   svc,
		Installer: installer.New(bus, logger.Log),
		Nexus:     client,
	}
	app.Bus.Dispatch(dispatcher.EventBroadcastApplicationStartup, dispatcher.NamespaceGlobal, nil)
	return app
}

// Shutdown broadcasts the application shutdown and closes the database.
// The database service releases its subscriptions on the broadcast.
func (a *App) Shutdown() {
	a.Bus.Dispatch(dispatcher.EventBroadcastApplicationShutdown, dispatcher.NamespaceGlobal, nil)
	if err := db.Close(a.DB); err != nil {
		logger.Log.Warnw("Failed to close database", zap.Error(err))
	}
}

// requestGame dispatches a request and unwraps the service's answer.
// nil means the service had nothing for it.
func (a *App) requestGame(event string, payload dispatcher.Payload) *db.Game {
	g, _ := a.Bus.Dispatch(event, dispatcher.NamespaceGlobal, payload)[service.ResultKey].(*db.Game)
	return g
}

func (a *App) requestGames(event string, payload dispatcher.Payload) []db.Game {
	games, _ := a.Bus.Dispatch(event, dispatcher.NamespaceGlobal, payload)[service.ResultKey].([]db.Game)
	return games
}

func (a *App) requestMod(event string, payload dispatcher.Payload) *db.Mod {
	m, _ := a.Bus.Dispatch(event, dispatcher.NamespaceGlobal, payload)[service.ResultKey].(*db.Mod)
	return m
}

func (a *App) requestMods(event string, payload dispatcher.Payload) []db.Mod {
	mods, _ := a.Bus.Dispatch(event, dispatcher.NamespaceGlobal, payload)[service.ResultKey].([]db.Mod)
	return mods
}

// resolveGameArg turns a command line argument into a game row. A
// numeric argument is tried as an id first, everything else as a code
// and then as an exact name.
func (a *App) resolveGameArg(arg string) (*db.Game, error) {
	if id, err := strconv.ParseUint(arg, 10, 32); err == nil {
		if g := a.requestGame(dispatcher.EventRequestGetGameByID,
			dispatcher.Payload{dispatcher.KeyGameID: uint(id)}); g != nil {
			return g, nil
		}
	}
	if g := a.requestGame(dispatcher.EventRequestGetGameByCode,
		dispatcher.Payload{dispatcher.KeyGameCode: arg}); g != nil {
		return g, nil
	}
	games := a.requestGames(dispatcher.EventRequestSearchGames,
		dispatcher.Payload{dispatcher.KeyName: arg})
	if len(games) == 1 {
		return &games[0], nil
	}
	return nil, fmt.Errorf("no game matches %q, try the id or code from 'game list'", arg)
}

// resolveModArg is the mod flavor of resolveGameArg.
func (a *App) resolveModArg(arg string) (*db.Mod, error) {
	if id, err := strconv.ParseUint(arg, 10, 32); err == nil {
		if m := a.requestMod(dispatcher.EventRequestGetModByID,
			dispatcher.Payload{dispatcher.KeyModID: uint(id)}); m != nil {
			return m, nil
		}
	}
	if m := a.requestMod(dispatcher.EventRequestGetModByCode,
		dispatcher.Payload{dispatcher.KeyModCode: arg}); m != nil {
		return m, nil
	}
	mods := a.requestMods(dispatcher.EventRequestSearchMods,
		dispatcher.Payload{dispatcher.KeyName: arg})
	if len(mods) == 1 {
		return &mods[0], nil
	}
	return nil, fmt.Errorf("no mod matches %q, try the id or code from 'mod list'", arg)
}

// watchOutcome registers a one-shot subscription for each given
// broadcast, printing it as a status line and collecting its name. The
// subscriptions are consumed by the first dispatch, so a command sees
// each outcome exactly once.
func watchOutcome(bus *dispatcher.Dispatcher, events ...string) *[]string {
	seen := &[]string{}
	for _, event := range events {
		bus.Register(dispatcher.Subscription{
			Event:     event,
			Namespace: dispatcher.NamespaceGlobal,
			Label:     "cli",
			Handler: func(ev dispatcher.Event) (any, error) {
				*seen = append(*seen, ev.Name)
				if m, ok := ev.Payload[dispatcher.KeyMod].(*db.Mod); ok {
					fmt.Println(describeBroadcast(ev.Name, m))
				}
				return nil, nil
			},
		})
	}
	return seen
}

// describeBroadcast renders an installer broadcast as a one-liner.
func describeBroadcast(event string, mod *db.Mod) string {
	switch event {
	case dispatcher.EventBroadcastModInstallSuccess:
		return ui.Success(fmt.Sprintf("✓ %s installed into %s", mod.Name, mod.SymlinkTarget))
	case dispatcher.EventBroadcastModInstallFailed:
		return ui.Failure(fmt.Sprintf("✗ %s failed to install", mod.Name))
	case dispatcher.EventBroadcastModUninstalled:
		return ui.Success(fmt.Sprintf("✓ %s uninstalled", mod.Name))
	}
	return event
}

// markInstalled flips the installed flag over the event bus. The
// installer never touches the flag itself. Clearing it also clears the
// recorded link map; the links are already gone from disk by then.
func (a *App) markInstalled(modID uint, installed bool) *db.Mod {
	payload := dispatcher.Payload{
		dispatcher.KeyModID:     modID,
		dispatcher.KeyInstalled: installed,
	}
	if !installed {
		payload[dispatcher.KeySymlinks] = map[string]string{}
	}
	return a.requestMod(dispatcher.EventRequestUpdateMod, payload)
}

// truncate shortens s to maxLen runes of display, marking the cut.
func truncate(s string, maxLen int) string {
	if len(s) > maxLen {
		return s[:maxLen-3] + "..."
	}
	return s
}
