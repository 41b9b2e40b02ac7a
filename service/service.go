// Package service answers the catalog's REQUEST_* events with database
// operations. It is the only subscriber that touches the Store; every
// other component reads and writes rows by dispatching events and
// picking the answer out of the results under ResultKey.
package service

import (
	"go.uber.org/zap"

	"nexus-mod-manager/db"
	"nexus-mod-manager/dispatcher"
)

// ResultKey is the label every service subscription registers under.
// Callers find the database answer at this fixed key regardless of
// which request they dispatched.
const ResultKey = "database"

// Service owns the request handlers and the ids of its live
// registrations. Failures never cross the event boundary: a handler
// logs and answers nil (or an empty slice) instead of returning an
// error.
type Service struct {
	bus   *dispatcher.Dispatcher
	store *db.Store
	log   *zap.SugaredLogger
	ids   []string
}

func New(bus *dispatcher.Dispatcher, store *db.Store, log *zap.SugaredLogger) *Service {
	return &Service{bus: bus, store: store, log: log}
}

// Subscribe registers one persistent handler per catalog request event,
// plus a shutdown hook that tears all of them down again. Every
// subscription carries the shared ResultKey label.
func (s *Service) Subscribe() {
	subs := []dispatcher.Subscription{
		{Event: dispatcher.EventRequestGetAllGames, Handler: s.onGetAllGames},
		{Event: dispatcher.EventRequestGetGameByID, Handler: s.onGetGameByID},
		{Event: dispatcher.EventRequestGetGameByCode, Handler: s.onGetGameByCode},
		{Event: dispatcher.EventRequestGetGamesByIDs, Handler: s.onGetGamesByIDs},
		{Event: dispatcher.EventRequestGetGamesByCodes, Handler: s.onGetGamesByCodes},
		{Event: dispatcher.EventRequestInsertGame, Handler: s.onInsertGame},
		{Event: dispatcher.EventRequestUpdateGame, Handler: s.onUpdateGame},
		{Event: dispatcher.EventRequestSearchGames, Handler: s.onSearchGames},

		{Event: dispatcher.EventRequestGetAllMods, Handler: s.onGetAllMods},
		{Event: dispatcher.EventRequestGetModByID, Handler: s.onGetModByID},
		{Event: dispatcher.EventRequestGetModByCode, Handler: s.onGetModByCode},
		{Event: dispatcher.EventRequestGetModsByIDs, Handler: s.onGetModsByIDs},
		{Event: dispatcher.EventRequestGetModsByCodes, Handler: s.onGetModsByCodes},
		{Event: dispatcher.EventRequestGetModsForGame, Handler: s.onGetModsForGame},
		{Event: dispatcher.EventRequestInsertMod, Handler: s.onInsertMod},
		{Event: dispatcher.EventRequestUpdateMod, Handler: s.onUpdateMod},
		{Event: dispatcher.EventRequestSearchMods, Handler: s.onSearchMods},

		{Event: dispatcher.EventBroadcastApplicationShutdown, Handler: s.onShutdown},
	}
	for i := range subs {
		subs[i].Namespace = dispatcher.NamespaceGlobal
		subs[i].Label = ResultKey
		subs[i].Persistent = true
	}
	s.ids = s.bus.RegisterAll(subs)
	s.log.Infow("Database service subscribed", zap.Int("handlers", len(s.ids)))
}

// Unsubscribe removes every live registration. Safe to call from inside
// a dispatch; the dispatcher fans out over a snapshot.
func (s *Service) Unsubscribe() {
	removed := s.bus.UnregisterAll(s.ids)
	s.ids = nil
	s.log.Infow("Database service unsubscribed", zap.Int("handlers", removed))
}

func (s *Service) onShutdown(dispatcher.Event) (any, error) {
	s.log.Info("Shutdown broadcast received, releasing database handlers")
	s.Unsubscribe()
	return nil, nil
}

// --- Game requests ---

func (s *Service) onGetAllGames(dispatcher.Event) (any, error) {
	games, err := s.store.AllGames()
	if err != nil {
		s.log.Errorw("Fetching all games failed", zap.Error(err))
		return []db.Game{}, nil
	}
	return games, nil
}

func (s *Service) onGetGameByID(ev dispatcher.Event) (any, error) {
	id, ok := ev.Payload.Uint(dispatcher.KeyGameID)
	if !ok {
		s.log.Warnw("Game lookup without usable game_id", zap.String("event", ev.Name))
		return nil, nil
	}
	g, err := s.store.GameByID(id)
	if err != nil {
		s.log.Warnw("Game lookup failed", zap.Uint("game_id", id), zap.Error(err))
		return nil, nil
	}
	return g, nil
}

func (s *Service) onGetGameByCode(ev dispatcher.Event) (any, error) {
	code, ok := ev.Payload.String(dispatcher.KeyGameCode)
	if !ok {
		s.log.Warnw("Game lookup without usable game_code", zap.String("event", ev.Name))
		return nil, nil
	}
	g, err := s.store.GameByCode(code)
	if err != nil {
		s.log.Warnw("Game lookup failed", zap.String("game_code", code), zap.Error(err))
		return nil, nil
	}
	return g, nil
}

func (s *Service) onGetGamesByIDs(ev dispatcher.Event) (any, error) {
	ids, ok := ev.Payload.Uints(dispatcher.KeyGameIDs)
	if !ok {
		s.log.Warnw("Game lookup without usable game_ids", zap.String("event", ev.Name))
		return []db.Game{}, nil
	}
	games, err := s.store.GamesByIDs(ids)
	if err != nil {
		s.log.Errorw("Fetching games by ids failed", zap.Error(err))
		return []db.Game{}, nil
	}
	return games, nil
}

func (s *Service) onGetGamesByCodes(ev dispatcher.Event) (any, error) {
	codes, ok := ev.Payload.Strings(dispatcher.KeyGameCodes)
	if !ok {
		s.log.Warnw("Game lookup without usable game_codes", zap.String("event", ev.Name))
		return []db.Game{}, nil
	}
	games, err := s.store.GamesByCodes(codes)
	if err != nil {
		s.log.Errorw("Fetching games by codes failed", zap.Error(err))
		return []db.Game{}, nil
	}
	return games, nil
}

func (s *Service) onInsertGame(ev dispatcher.Event) (any, error) {
	name, nameOK := ev.Payload.String(dispatcher.KeyName)
	path, pathOK := ev.Payload.String(dispatcher.KeyPath)
	if !nameOK || !pathOK {
		s.log.Warnw("Game insert needs name and path", zap.String("event", ev.Name))
		return nil, nil
	}

	g, err := s.store.InsertGame(name, path)
	if err != nil {
		s.log.Errorw("Game insert failed", zap.String("name", name), zap.Error(err))
		return nil, nil
	}

	// The store guesses the nexus domain from the name; an explicit one
	// in the payload wins.
	if nid, ok := ev.Payload.String(dispatcher.KeyNexusID); ok && nid != "" {
		if err := s.store.UpdateGame(g.ID, db.GameUpdate{NexusID: &nid}); err != nil {
			s.log.Warnw("Could not apply nexus id to new game",
				zap.Uint("game_id", g.ID), zap.Error(err))
		}
		if fresh, err := s.store.GameByID(g.ID); err == nil {
			return fresh, nil
		}
	}
	return g, nil
}

func (s *Service) onUpdateGame(ev dispatcher.Event) (any, error) {
	id, ok := ev.Payload.Uint(dispatcher.KeyGameID)
	if !ok {
		s.log.Warnw("Game update without usable game_id", zap.String("event", ev.Name))
		return nil, nil
	}

	upd := db.GameUpdate{}
	if v, ok := ev.Payload.String(dispatcher.KeyName); ok {
		upd.Name = &v
	}
	if v, ok := ev.Payload.String(dispatcher.KeyPath); ok {
		upd.Path = &v
	}
	if v, ok := ev.Payload.String(dispatcher.KeyModArchiveDir); ok {
		upd.ModArchiveDir = &v
	}
	if v, ok := ev.Payload.String(dispatcher.KeyModInstallDir); ok {
		upd.ModInstallDir = &v
	}
	if v, ok := ev.Payload.String(dispatcher.KeyNexusID); ok {
		upd.NexusID = &v
	}
	if v, ok := ev.Payload.Time(dispatcher.KeyLastLoadedAt); ok {
		upd.LastLoadedAt = &v
	}

	if err := s.store.UpdateGame(id, upd); err != nil {
		s.log.Warnw("Game update failed", zap.Uint("game_id", id), zap.Error(err))
	}

	// Answer with the current row either way; nil when it never existed.
	g, err := s.store.GameByID(id)
	if err != nil {
		return nil, nil
	}
	return g, nil
}

func (s *Service) onSearchGames(ev dispatcher.Event) (any, error) {
	f := db.GameFilter{}
	if v, ok := ev.Payload.Uint(dispatcher.KeyGameID); ok {
		f.ID = v
	}
	if v, ok := ev.Payload.String(dispatcher.KeyGameCode); ok {
		f.Code = v
	}
	if v, ok := ev.Payload.String(dispatcher.KeyName); ok {
		f.Name = v
	}
	if v, ok := ev.Payload.String(dispatcher.KeyPath); ok {
		f.Path = v
	}
	if v, ok := ev.Payload.String(dispatcher.KeyNexusID); ok {
		f.NexusID = v
	}

	games, err := s.store.SearchGames(f)
	if err != nil {
		s.log.Errorw("Game search failed", zap.Error(err))
		return []db.Game{}, nil
	}
	return games, nil
}

// --- Mod requests ---

func (s *Service) onGetAllMods(dispatcher.Event) (any, error) {
	mods, err := s.store.AllMods()
	if err != nil {
		s.log.Errorw("Fetching all mods failed", zap.Error(err))
		return []db.Mod{}, nil
	}
	return mods, nil
}

func (s *Service) onGetModByID(ev dispatcher.Event) (any, error) {
	id, ok := ev.Payload.Uint(dispatcher.KeyModID)
	if !ok {
		s.log.Warnw("Mod lookup without usable mod_id", zap.String("event", ev.Name))
		return nil, nil
	}
	m, err := s.store.ModByID(id)
	if err != nil {
		s.log.Warnw("Mod lookup failed", zap.Uint("mod_id", id), zap.Error(err))
		return nil, nil
	}
	return m, nil
}

func (s *Service) onGetModByCode(ev dispatcher.Event) (any, error) {
	code, ok := ev.Payload.String(dispatcher.KeyModCode)
	if !ok {
		s.log.Warnw("Mod lookup without usable mod_code", zap.String("event", ev.Name))
		return nil, nil
	}
	m, err := s.store.ModByCode(code)
	if err != nil {
		s.log.Warnw("Mod lookup failed", zap.String("mod_code", code), zap.Error(err))
		return nil, nil
	}
	return m, nil
}

func (s *Service) onGetModsByIDs(ev dispatcher.Event) (any, error) {
	ids, ok := ev.Payload.Uints(dispatcher.KeyModIDs)
	if !ok {
		s.log.Warnw("Mod lookup without usable mod_ids", zap.String("event", ev.Name))
		return []db.Mod{}, nil
	}
	mods, err := s.store.ModsByIDs(ids)
	if err != nil {
		s.log.Errorw("Fetching mods by ids failed", zap.Error(err))
		return []db.Mod{}, nil
	}
	return mods, nil
}

func (s *Service) onGetModsByCodes(ev dispatcher.Event) (any, error) {
	codes, ok := ev.Payload.Strings(dispatcher.KeyModCodes)
	if !ok {
		s.log.Warnw("Mod lookup without usable mod_codes", zap.String("event", ev.Name))
		return []db.Mod{}, nil
	}
	mods, err := s.store.ModsByCodes(codes)
	if err != nil {
		s.log.Errorw("Fetching mods by codes failed", zap.Error(err))
		return []db.Mod{}, nil
	}
	return mods, nil
}

func (s *Service) onGetModsForGame(ev dispatcher.Event) (any, error) {
	gameID, ok := ev.Payload.Uint(dispatcher.KeyGameID)
	if !ok {
		s.log.Warnw("Mod listing without usable game_id", zap.String("event", ev.Name))
		return []db.Mod{}, nil
	}
	mods, err := s.store.ModsForGame(gameID)
	if err != nil {
		s.log.Errorw("Fetching mods for game failed",
			zap.Uint("game_id", gameID), zap.Error(err))
		return []db.Mod{}, nil
	}
	return mods, nil
}

func (s *Service) onInsertMod(ev dispatcher.Event) (any, error) {
	gameID, idOK := ev.Payload.Uint(dispatcher.KeyGameID)
	name, nameOK := ev.Payload.String(dispatcher.KeyName)
	archive, archiveOK := ev.Payload.String(dispatcher.KeyPath)
	if !idOK || !nameOK || !archiveOK {
		s.log.Warnw("Mod insert needs game_id, name and path", zap.String("event", ev.Name))
		return nil, nil
	}

	// Resolve the owning game rather than trusting a payload game_code;
	// the denormalized code must match the foreign key.
	g, err := s.store.GameByID(gameID)
	if err != nil {
		s.log.Warnw("Mod insert for unknown game",
			zap.Uint("game_id", gameID), zap.Error(err))
		return nil, nil
	}

	n := db.NewMod{
		GameID:      g.ID,
		GameCode:    g.Code,
		Name:        name,
		ArchivePath: archive,
	}
	if v, ok := ev.Payload.String(dispatcher.KeyNexusID); ok {
		n.NexusID = v
	}
	if v, ok := ev.Payload.String(dispatcher.KeyVersion); ok {
		n.Version = v
	}
	if v, ok := ev.Payload.String(dispatcher.KeySymlinkTarget); ok {
		n.SymlinkTarget = v
	}

	m, err := s.store.InsertMod(n)
	if err != nil {
		s.log.Errorw("Mod insert failed", zap.String("name", name), zap.Error(err))
		return nil, nil
	}
	return m, nil
}

func (s *Service) onUpdateMod(ev dispatcher.Event) (any, error) {
	id, ok := ev.Payload.Uint(dispatcher.KeyModID)
	if !ok {
		s.log.Warnw("Mod update without usable mod_id", zap.String("event", ev.Name))
		return nil, nil
	}

	upd := db.ModUpdate{}
	if v, ok := ev.Payload.String(dispatcher.KeyName); ok {
		upd.Name = &v
	}
	if v, ok := ev.Payload.Bool(dispatcher.KeyInstalled); ok {
		upd.Installed = &v
	}
	if v, ok := ev.Payload.String(dispatcher.KeyPath); ok {
		upd.ArchivePath = &v
	}
	if v, ok := ev.Payload.String(dispatcher.KeyInstallDir); ok {
		upd.InstallDir = &v
	}
	if v, ok := ev.Payload.String(dispatcher.KeyNexusID); ok {
		upd.NexusID = &v
	}
	if v, ok := ev.Payload.String(dispatcher.KeyVersion); ok {
		upd.Version = &v
	}
	if v, ok := ev.Payload.String(dispatcher.KeySymlinkTarget); ok {
		upd.SymlinkTarget = &v
	}
	if v, ok := ev.Payload.StringMap(dispatcher.KeySymlinks); ok {
		upd.Symlinks = &v
	}

	if err := s.store.UpdateMod(id, upd); err != nil {
		s.log.Warnw("Mod update failed", zap.Uint("mod_id", id), zap.Error(err))
	}

	m, err := s.store.ModByID(id)
	if err != nil {
		return nil, nil
	}
	return m, nil
}

func (s *Service) onSearchMods(ev dispatcher.Event) (any, error) {
	f := db.ModFilter{}
	if v, ok := ev.Payload.Uint(dispatcher.KeyModID); ok {
		f.ID = v
	}
	if v, ok := ev.Payload.String(dispatcher.KeyModCode); ok {
		f.Code = v
	}
	if v, ok := ev.Payload.Uint(dispatcher.KeyGameID); ok {
		f.GameID = v
	}
	if v, ok := ev.Payload.String(dispatcher.KeyGameCode); ok {
		f.GameCode = v
	}
	if v, ok := ev.Payload.String(dispatcher.KeyName); ok {
		f.Name = v
	}
	if v, ok := ev.Payload.String(dispatcher.KeyNexusID); ok {
		f.NexusID = v
	}
	if v, ok := ev.Payload.String(dispatcher.KeyVersion); ok {
		f.Version = v
	}
	if v, ok := ev.Payload.Bool(dispatcher.KeyInstalled); ok {
		f.Installed = v
	}

	mods, err := s.store.SearchMods(f)
	if err != nil {
		s.log.Errorw("Mod search failed", zap.Error(err))
		return []db.Mod{}, nil
	}
	return mods, nil
}
