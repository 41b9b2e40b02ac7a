package service

import (
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"nexus-mod-manager/db"
	"nexus-mod-manager/dispatcher"
)

func newTestService(t *testing.T) *dispatcher.Dispatcher {
	t.Helper()
	dir := t.TempDir()
	gdb, err := db.Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(gdb) })

	log := zap.NewNop().Sugar()
	store := db.NewStore(gdb, log,
		filepath.Join(dir, "archives"), filepath.Join(dir, "installed"))
	bus := dispatcher.New(log)
	New(bus, store, log).Subscribe()
	return bus
}

func request(bus *dispatcher.Dispatcher, event string, payload dispatcher.Payload) any {
	return bus.Dispatch(event, dispatcher.NamespaceGlobal, payload)[ResultKey]
}

func insertGame(t *testing.T, bus *dispatcher.Dispatcher, name, path string) *db.Game {
	t.Helper()
	g, ok := request(bus, dispatcher.EventRequestInsertGame, dispatcher.Payload{
		dispatcher.KeyName: name,
		dispatcher.KeyPath: path,
	}).(*db.Game)
	if !ok || g == nil {
		t.Fatalf("Inserting game %q did not answer a record", name)
	}
	return g
}

func insertMod(t *testing.T, bus *dispatcher.Dispatcher, gameID uint, name, archive string) *db.Mod {
	t.Helper()
	m, ok := request(bus, dispatcher.EventRequestInsertMod, dispatcher.Payload{
		dispatcher.KeyGameID: gameID,
		dispatcher.KeyName:   name,
		dispatcher.KeyPath:   archive,
	}).(*db.Mod)
	if !ok || m == nil {
		t.Fatalf("Inserting mod %q did not answer a record", name)
	}
	return m
}

func TestGameRoundTripOverEvents(t *testing.T) {
	bus := newTestService(t)

	g := insertGame(t, bus, "Skyrim", "/games/skyrim")
	if len(g.Code) != 32 {
		t.Errorf("Expected a 32 char code, got %q", g.Code)
	}

	byID, _ := request(bus, dispatcher.EventRequestGetGameByID, dispatcher.Payload{
		dispatcher.KeyGameID: g.ID,
	}).(*db.Game)
	if byID == nil || byID.Name != "Skyrim" {
		t.Errorf("Get by id answered %+v", byID)
	}

	byCode, _ := request(bus, dispatcher.EventRequestGetGameByCode, dispatcher.Payload{
		dispatcher.KeyGameCode: g.Code,
	}).(*db.Game)
	if byCode == nil || byCode.ID != g.ID {
		t.Errorf("Get by code answered %+v", byCode)
	}

	all, _ := request(bus, dispatcher.EventRequestGetAllGames, nil).([]db.Game)
	if len(all) != 1 {
		t.Errorf("Get all answered %d games", len(all))
	}
}

func TestAnswerLandsAtResultKey(t *testing.T) {
	bus := newTestService(t)

	results := bus.Dispatch(dispatcher.EventRequestGetAllGames, dispatcher.NamespaceGlobal, nil)
	if len(results) != 1 {
		t.Fatalf("Expected exactly one answer, got %v", results)
	}
	if _, ok := results[ResultKey]; !ok {
		t.Errorf("Answer not stored under %q: %v", ResultKey, results)
	}
}

func TestLookupFailuresAnswerNil(t *testing.T) {
	bus := newTestService(t)
	insertGame(t, bus, "Skyrim", "/games/skyrim")

	cases := []struct {
		name    string
		event   string
		payload dispatcher.Payload
	}{
		{"unknown game id", dispatcher.EventRequestGetGameByID,
			dispatcher.Payload{dispatcher.KeyGameID: uint(999)}},
		{"missing game id key", dispatcher.EventRequestGetGameByID, nil},
		{"mistyped game id", dispatcher.EventRequestGetGameByID,
			dispatcher.Payload{dispatcher.KeyGameID: "not a number"}},
		{"unknown mod code", dispatcher.EventRequestGetModByCode,
			dispatcher.Payload{dispatcher.KeyModCode: "nope"}},
		{"unknown game for update", dispatcher.EventRequestUpdateGame,
			dispatcher.Payload{dispatcher.KeyGameID: uint(999), dispatcher.KeyName: "X"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			results := bus.Dispatch(tc.event, dispatcher.NamespaceGlobal, tc.payload)
			v, ok := results[ResultKey]
			if !ok {
				t.Fatal("Expected an answer entry even on failure")
			}
			if v != nil {
				t.Errorf("Expected a nil answer, got %v", v)
			}
		})
	}
}

func TestInsertGameExplicitNexusID(t *testing.T) {
	bus := newTestService(t)

	g, _ := request(bus, dispatcher.EventRequestInsertGame, dispatcher.Payload{
		dispatcher.KeyName:    "Skyrim Special Edition",
		dispatcher.KeyPath:    "/games/skyrimse",
		dispatcher.KeyNexusID: "skyrimspecialedition",
	}).(*db.Game)
	if g == nil || g.NexusID != "skyrimspecialedition" {
		t.Errorf("Explicit nexus id not applied: %+v", g)
	}
}

func TestInsertGameDuplicateAnswersNil(t *testing.T) {
	bus := newTestService(t)
	insertGame(t, bus, "Skyrim", "/games/skyrim")

	dup := request(bus, dispatcher.EventRequestInsertGame, dispatcher.Payload{
		dispatcher.KeyName: "Skyrim",
		dispatcher.KeyPath: "/games/elsewhere",
	})
	if dup != nil {
		t.Errorf("Duplicate insert should answer nil, got %v", dup)
	}

	all, _ := request(bus, dispatcher.EventRequestGetAllGames, nil).([]db.Game)
	if len(all) != 1 {
		t.Errorf("Duplicate insert changed the table: %d games", len(all))
	}
}

func TestGameUpdateOverEvents(t *testing.T) {
	bus := newTestService(t)
	g := insertGame(t, bus, "Skyrim", "/games/skyrim")

	updated, _ := request(bus, dispatcher.EventRequestUpdateGame, dispatcher.Payload{
		dispatcher.KeyGameID: g.ID,
		dispatcher.KeyName:   "Skyrim SE",
	}).(*db.Game)
	if updated == nil || updated.Name != "Skyrim SE" {
		t.Fatalf("Update answered %+v", updated)
	}
	if updated.Path != "/games/skyrim" {
		t.Errorf("Path should be untouched: %q", updated.Path)
	}

	// An update with nothing to change fails internally but still
	// answers the current row.
	current, _ := request(bus, dispatcher.EventRequestUpdateGame, dispatcher.Payload{
		dispatcher.KeyGameID: g.ID,
	}).(*db.Game)
	if current == nil || current.Name != "Skyrim SE" {
		t.Errorf("Empty update answered %+v", current)
	}
}

func TestModLifecycleOverEvents(t *testing.T) {
	bus := newTestService(t)
	g := insertGame(t, bus, "Skyrim", "/games/skyrim")

	m, _ := request(bus, dispatcher.EventRequestInsertMod, dispatcher.Payload{
		dispatcher.KeyGameID:  g.ID,
		dispatcher.KeyName:    "Alpha",
		dispatcher.KeyPath:    "/downloads/alpha.zip",
		dispatcher.KeyVersion: "1.0",
	}).(*db.Mod)
	if m == nil {
		t.Fatal("Mod insert answered nil")
	}
	if m.GameID != g.ID || m.GameCode != g.Code {
		t.Errorf("Ownership fields wrong: %+v", m)
	}
	if m.Installed || m.Version != "1.0" {
		t.Errorf("Unexpected new mod state: %+v", m)
	}

	forGame, _ := request(bus, dispatcher.EventRequestGetModsForGame, dispatcher.Payload{
		dispatcher.KeyGameID: g.ID,
	}).([]db.Mod)
	if len(forGame) != 1 || forGame[0].ID != m.ID {
		t.Errorf("Mods for game answered %+v", forGame)
	}

	links := map[string]string{"/staging/a.esp": "/games/skyrim/a.esp"}
	updated, _ := request(bus, dispatcher.EventRequestUpdateMod, dispatcher.Payload{
		dispatcher.KeyModID:         m.ID,
		dispatcher.KeyInstalled:     true,
		dispatcher.KeySymlinkTarget: "/games/skyrim",
		dispatcher.KeySymlinks:      links,
	}).(*db.Mod)
	if updated == nil || !updated.Installed {
		t.Fatalf("Mod update answered %+v", updated)
	}
	if updated.LinkMap()["/staging/a.esp"] != "/games/skyrim/a.esp" {
		t.Errorf("Link map not persisted: %v", updated.LinkMap())
	}

	gone := request(bus, dispatcher.EventRequestUpdateMod, dispatcher.Payload{
		dispatcher.KeyModID:     uint(999),
		dispatcher.KeyInstalled: false,
	})
	if gone != nil {
		t.Errorf("Updating an unknown mod should answer nil, got %v", gone)
	}
}

func TestInsertModUnknownGame(t *testing.T) {
	bus := newTestService(t)

	m := request(bus, dispatcher.EventRequestInsertMod, dispatcher.Payload{
		dispatcher.KeyGameID: uint(42),
		dispatcher.KeyName:   "Orphan",
		dispatcher.KeyPath:   "/downloads/orphan.zip",
	})
	if m != nil {
		t.Errorf("Insert for unknown game should answer nil, got %v", m)
	}
}

func TestBatchLookupsOverEvents(t *testing.T) {
	bus := newTestService(t)
	a := insertGame(t, bus, "Skyrim", "/games/skyrim")
	b := insertGame(t, bus, "Oblivion", "/games/oblivion")

	games, _ := request(bus, dispatcher.EventRequestGetGamesByIDs, dispatcher.Payload{
		dispatcher.KeyGameIDs: []uint{a.ID, 999},
	}).([]db.Game)
	if len(games) != 1 || games[0].ID != a.ID {
		t.Errorf("Games by ids answered %+v", games)
	}

	games, _ = request(bus, dispatcher.EventRequestGetGamesByCodes, dispatcher.Payload{
		dispatcher.KeyGameCodes: []string{a.Code, b.Code},
	}).([]db.Game)
	if len(games) != 2 {
		t.Errorf("Games by codes answered %+v", games)
	}

	m := insertMod(t, bus, a.ID, "Alpha", "/downloads/alpha.zip")
	mods, _ := request(bus, dispatcher.EventRequestGetModsByCodes, dispatcher.Payload{
		dispatcher.KeyModCodes: []string{m.Code, "nope"},
	}).([]db.Mod)
	if len(mods) != 1 || mods[0].ID != m.ID {
		t.Errorf("Mods by codes answered %+v", mods)
	}
}

func TestSearchOverEvents(t *testing.T) {
	bus := newTestService(t)
	g := insertGame(t, bus, "Skyrim", "/games/skyrim")
	insertGame(t, bus, "Oblivion", "/games/oblivion")

	games, _ := request(bus, dispatcher.EventRequestSearchGames, dispatcher.Payload{
		dispatcher.KeyName: "Skyrim",
	}).([]db.Game)
	if len(games) != 1 || games[0].Name != "Skyrim" {
		t.Errorf("Game search answered %+v", games)
	}

	// No filters matches everything.
	games, _ = request(bus, dispatcher.EventRequestSearchGames, nil).([]db.Game)
	if len(games) != 2 {
		t.Errorf("Unfiltered search answered %d games", len(games))
	}

	alpha := insertMod(t, bus, g.ID, "Alpha", "/downloads/alpha.zip")
	insertMod(t, bus, g.ID, "Beta", "/downloads/beta.zip")
	request(bus, dispatcher.EventRequestUpdateMod, dispatcher.Payload{
		dispatcher.KeyModID:     alpha.ID,
		dispatcher.KeyInstalled: true,
	})

	mods, _ := request(bus, dispatcher.EventRequestSearchMods, dispatcher.Payload{
		dispatcher.KeyInstalled: true,
	}).([]db.Mod)
	if len(mods) != 1 || mods[0].Name != "Alpha" {
		t.Errorf("Installed search answered %+v", mods)
	}

	// installed=false is a zero value and therefore no constraint.
	mods, _ = request(bus, dispatcher.EventRequestSearchMods, dispatcher.Payload{
		dispatcher.KeyInstalled: false,
	}).([]db.Mod)
	if len(mods) != 2 {
		t.Errorf("Zero-valued filter should match everything, answered %d", len(mods))
	}
}

func TestShutdownBroadcastUnsubscribes(t *testing.T) {
	bus := newTestService(t)

	before := bus.Count()
	if before == 0 {
		t.Fatal("Expected live subscriptions after Subscribe")
	}

	bus.Dispatch(dispatcher.EventBroadcastApplicationShutdown, dispatcher.NamespaceGlobal, nil)

	if n := bus.Count(); n != 0 {
		t.Errorf("Expected the shutdown dispatch to remove every handler, %d left", n)
	}
	results := bus.Dispatch(dispatcher.EventRequestGetAllGames, dispatcher.NamespaceGlobal, nil)
	if len(results) != 0 {
		t.Errorf("Requests after shutdown should go unanswered, got %v", results)
	}
}
