package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"nexus-mod-manager/config"
	"nexus-mod-manager/db"
	"nexus-mod-manager/dispatcher"
	"nexus-mod-manager/installer"
	"nexus-mod-manager/service"
)

// newTestApp wires a full App against a throwaway database, skipping
// the config file and the global logger that bootstrap would pull in.
func newTestApp(t *testing.T) *App {
	t.Helper()

	dir := t.TempDir()
	gdb, err := db.Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(gdb) })

	log := zap.NewNop().Sugar()
	store := db.NewStore(gdb, log, filepath.Join(dir, "archives"), filepath.Join(dir, "installed"))
	bus := dispatcher.New(log)
	svc := service.New(bus, store, log)
	svc.Subscribe()

	return &App{
		Config:    config.Config{ModArchivesPath: filepath.Join(dir, "archives")},
		DB:        gdb,
		Bus:       bus,
		Service:   svc,
		Installer: installer.New(bus, log),
	}
}

func addTestGame(t *testing.T, app *App, name string) *db.Game {
	t.Helper()
	g := app.requestGame(dispatcher.EventRequestInsertGame, dispatcher.Payload{
		dispatcher.KeyName: name,
		dispatcher.KeyPath: filepath.Join(t.TempDir(), name),
	})
	if g == nil {
		t.Fatalf("inserting game %q failed", name)
	}
	return g
}

func addTestMod(t *testing.T, app *App, game *db.Game, name string) *db.Mod {
	t.Helper()
	m := app.requestMod(dispatcher.EventRequestInsertMod, dispatcher.Payload{
		dispatcher.KeyGameID: game.ID,
		dispatcher.KeyName:   name,
		dispatcher.KeyPath:   filepath.Join(t.TempDir(), name+".zip"),
	})
	if m == nil {
		t.Fatalf("inserting mod %q failed", name)
	}
	return m
}

func TestResolveGameArg(t *testing.T) {
	app := newTestApp(t)
	first := addTestGame(t, app, "Palworld")
	addTestGame(t, app, "Stardew Valley")

	t.Run("by id", func(t *testing.T) {
		g, err := app.resolveGameArg("1")
		if err != nil {
			t.Fatalf("resolveGameArg(1): %v", err)
		}
		if g.ID != first.ID {
			t.Errorf("resolved game %d, want %d", g.ID, first.ID)
		}
	})

	t.Run("by code", func(t *testing.T) {
		g, err := app.resolveGameArg(first.Code)
		if err != nil {
			t.Fatalf("resolveGameArg(%s): %v", first.Code, err)
		}
		if g.ID != first.ID {
			t.Errorf("resolved game %d, want %d", g.ID, first.ID)
		}
	})

	t.Run("by exact name", func(t *testing.T) {
		g, err := app.resolveGameArg("Stardew Valley")
		if err != nil {
			t.Fatalf("resolveGameArg by name: %v", err)
		}
		if g.Name != "Stardew Valley" {
			t.Errorf("resolved %q, want Stardew Valley", g.Name)
		}
	})

	t.Run("unknown argument", func(t *testing.T) {
		if _, err := app.resolveGameArg("no-such-game"); err == nil {
			t.Error("expected an error for an unknown game")
		}
	})
}

func TestResolveModArg(t *testing.T) {
	app := newTestApp(t)
	game := addTestGame(t, app, "Palworld")
	mod := addTestMod(t, app, game, "Better UI")

	t.Run("by id", func(t *testing.T) {
		m, err := app.resolveModArg("1")
		if err != nil {
			t.Fatalf("resolveModArg(1): %v", err)
		}
		if m.ID != mod.ID {
			t.Errorf("resolved mod %d, want %d", m.ID, mod.ID)
		}
	})

	t.Run("by code", func(t *testing.T) {
		m, err := app.resolveModArg(mod.Code)
		if err != nil {
			t.Fatalf("resolveModArg(%s): %v", mod.Code, err)
		}
		if m.ID != mod.ID {
			t.Errorf("resolved mod %d, want %d", m.ID, mod.ID)
		}
	})

	t.Run("by exact name", func(t *testing.T) {
		m, err := app.resolveModArg("Better UI")
		if err != nil {
			t.Fatalf("resolveModArg by name: %v", err)
		}
		if m.ID != mod.ID {
			t.Errorf("resolved mod %d, want %d", m.ID, mod.ID)
		}
	})

	t.Run("unknown argument", func(t *testing.T) {
		if _, err := app.resolveModArg("no-such-mod"); err == nil {
			t.Error("expected an error for an unknown mod")
		}
	})
}

func TestMarkInstalled(t *testing.T) {
	app := newTestApp(t)
	game := addTestGame(t, app, "Palworld")
	mod := addTestMod(t, app, game, "Better UI")

	// Seed a link map the way an install would
	app.requestMod(dispatcher.EventRequestUpdateMod, dispatcher.Payload{
		dispatcher.KeyModID:    mod.ID,
		dispatcher.KeySymlinks: map[string]string{"staged": "linked"},
	})

	marked := app.markInstalled(mod.ID, true)
	if marked == nil || !marked.Installed {
		t.Fatal("markInstalled(true) did not flip the flag")
	}
	if len(marked.LinkMap()) != 1 {
		t.Errorf("marking installed must not touch the link map, got %d entries", len(marked.LinkMap()))
	}

	cleared := app.markInstalled(mod.ID, false)
	if cleared == nil || cleared.Installed {
		t.Fatal("markInstalled(false) did not clear the flag")
	}
	if len(cleared.LinkMap()) != 0 {
		t.Errorf("clearing the flag must clear the link map, got %d entries", len(cleared.LinkMap()))
	}
}

func TestWatchOutcomeIsOneShot(t *testing.T) {
	app := newTestApp(t)

	seen := watchOutcome(app.Bus, dispatcher.EventBroadcastModInstallSuccess)

	app.Bus.Dispatch(dispatcher.EventBroadcastModInstallSuccess, dispatcher.NamespaceGlobal, nil)
	app.Bus.Dispatch(dispatcher.EventBroadcastModInstallSuccess, dispatcher.NamespaceGlobal, nil)

	if len(*seen) != 1 {
		t.Fatalf("one-shot subscription observed %d dispatches, want 1", len(*seen))
	}
	if (*seen)[0] != dispatcher.EventBroadcastModInstallSuccess {
		t.Errorf("observed %q", (*seen)[0])
	}
	if app.Bus.HasSubscribers(dispatcher.EventBroadcastModInstallSuccess, dispatcher.NamespaceGlobal) {
		t.Error("subscription should be gone after the first dispatch")
	}
}

func TestDescribeBroadcast(t *testing.T) {
	mod := &db.Mod{Name: "Better UI", SymlinkTarget: "/games/palworld"}

	tests := []struct {
		event string
		want  string
	}{
		{dispatcher.EventBroadcastModInstallSuccess, "installed into"},
		{dispatcher.EventBroadcastModInstallFailed, "failed to install"},
		{dispatcher.EventBroadcastModUninstalled, "uninstalled"},
	}
	for _, tt := range tests {
		got := describeBroadcast(tt.event, mod)
		if !strings.Contains(got, mod.Name) || !strings.Contains(got, tt.want) {
			t.Errorf("describeBroadcast(%s) = %q, want it to mention %q and %q", tt.event, got, mod.Name, tt.want)
		}
	}
}

func TestStashArchive(t *testing.T) {
	writeArchive := func(t *testing.T) string {
		t.Helper()
		src := filepath.Join(t.TempDir(), "mod-1.zip")
		if err := os.WriteFile(src, []byte("archive-bytes"), 0o644); err != nil {
			t.Fatalf("writing archive: %v", err)
		}
		return src
	}

	t.Run("keep downloads copies", func(t *testing.T) {
		cfg := config.Config{ModArchivesPath: t.TempDir(), KeepDownloads: true}
		game := &db.Game{Code: "abc123"}
		src := writeArchive(t)

		dest, err := stashArchive(cfg, game, src)
		if err != nil {
			t.Fatalf("stashArchive: %v", err)
		}
		if _, err := os.Stat(src); err != nil {
			t.Error("the original download should survive with KEEP_DOWNLOADS")
		}
		data, err := os.ReadFile(dest)
		if err != nil || string(data) != "archive-bytes" {
			t.Errorf("stashed copy unreadable or wrong: %v", err)
		}
		if !strings.Contains(dest, game.Code) {
			t.Errorf("stash path %q should live under the game's code", dest)
		}
	})

	t.Run("without keep the original moves", func(t *testing.T) {
		cfg := config.Config{ModArchivesPath: t.TempDir(), KeepDownloads: false}
		game := &db.Game{Code: "abc123"}
		src := writeArchive(t)

		dest, err := stashArchive(cfg, game, src)
		if err != nil {
			t.Fatalf("stashArchive: %v", err)
		}
		if _, err := os.Stat(src); !os.IsNotExist(err) {
			t.Error("the original download should be gone without KEEP_DOWNLOADS")
		}
		if _, err := os.Stat(dest); err != nil {
			t.Errorf("stashed archive missing: %v", err)
		}
	})

	t.Run("game archive dir wins", func(t *testing.T) {
		gameDir := t.TempDir()
		cfg := config.Config{ModArchivesPath: t.TempDir(), KeepDownloads: true}
		game := &db.Game{Code: "abc123", ModArchiveDir: gameDir}
		src := writeArchive(t)

		dest, err := stashArchive(cfg, game, src)
		if err != nil {
			t.Fatalf("stashArchive: %v", err)
		}
		if filepath.Dir(dest) != gameDir {
			t.Errorf("stashed into %q, want the game's own archive dir %q", filepath.Dir(dest), gameDir)
		}
	})
}

func TestCollectArchives(t *testing.T) {
	t.Run("directory is filtered", func(t *testing.T) {
		dir := t.TempDir()
		for _, name := range []string{"a.zip", "b.7z", "c.RAR", "notes.txt"} {
			if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
				t.Fatalf("writing %s: %v", name, err)
			}
		}
		if err := os.Mkdir(filepath.Join(dir, "nested"), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}

		archives, err := collectArchives(dir)
		if err != nil {
			t.Fatalf("collectArchives: %v", err)
		}
		if len(archives) != 3 {
			t.Errorf("collected %d archives, want 3: %v", len(archives), archives)
		}
	})

	t.Run("single file passes through", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "only.zip")
		if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
			t.Fatalf("writing archive: %v", err)
		}
		archives, err := collectArchives(file)
		if err != nil {
			t.Fatalf("collectArchives: %v", err)
		}
		if len(archives) != 1 || archives[0] != file {
			t.Errorf("collectArchives(file) = %v, want just the file", archives)
		}
	})

	t.Run("missing path errors", func(t *testing.T) {
		if _, err := collectArchives(filepath.Join(t.TempDir(), "gone")); err == nil {
			t.Error("expected an error for a missing path")
		}
	})
}
