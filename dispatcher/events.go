package dispatcher

// Namespaces partition subscribers of the same event name into
// independent groups.
const (
	NamespaceGlobal = "global"
	NamespaceCore   = "core"
)

// Catalog of event names understood by the application. The REQUEST_*
// events are answered by the database service, the BROADCAST_* events
// are lifecycle and installer notifications.
const (
	EventRequestGetAllGames     = "REQUEST_GET_ALL_GAMES"
	EventRequestGetGameByID     = "REQUEST_GET_GAME_BY_ID"
	EventRequestGetGameByCode   = "REQUEST_GET_GAME_BY_CODE"
	EventRequestGetGamesByIDs   = "REQUEST_GET_GAMES_BY_IDS"
	EventRequestGetGamesByCodes = "REQUEST_GET_GAMES_BY_CODES"
	EventRequestInsertGame      = "REQUEST_INSERT_GAME"
	EventRequestUpdateGame      = "REQUEST_UPDATE_GAME"
	EventRequestSearchGames     = "REQUEST_SEARCH_GAMES"

	EventRequestGetAllMods     = "REQUEST_GET_ALL_MODS"
	EventRequestGetModByID     = "REQUEST_GET_MOD_BY_ID"
	EventRequestGetModByCode   = "REQUEST_GET_MOD_BY_CODE"
	EventRequestGetModsByIDs   = "REQUEST_GET_MODS_BY_IDS"
	EventRequestGetModsByCodes = "REQUEST_GET_MODS_BY_CODES"
	EventRequestGetModsForGame = "REQUEST_GET_MODS_FOR_GAME"
	EventRequestInsertMod      = "REQUEST_INSERT_MOD"
	EventRequestUpdateMod      = "REQUEST_UPDATE_MOD"
	EventRequestSearchMods     = "REQUEST_SEARCH_MODS"

	EventBroadcastApplicationStartup  = "BROADCAST_APPLICATION_STARTUP"
	EventBroadcastApplicationShutdown = "BROADCAST_APPLICATION_SHUTDOWN"
	EventBroadcastModInstallSuccess   = "BROADCAST_MOD_INSTALL_SUCCESS"
	EventBroadcastModInstallFailed    = "BROADCAST_MOD_INSTALL_FAILED"
	EventBroadcastModUninstalled      = "BROADCAST_MOD_UNINSTALLED"

	// Emitted by the mod list UI. Nothing subscribes to these yet, so
	// dispatching them is a silent no-op.
	EventActivateMod   = "ACTIVATE_MOD"
	EventDeactivateMod = "DEACTIVATE_MOD"
	EventDeleteMod     = "DELETE_MOD"
)

// Payload keys understood by the catalog events. Publishers and the
// database service must agree on these exactly, so they live next to the
// event names instead of being retyped per package.
const (
	KeyGameID        = "game_id"
	KeyGameCode      = "game_code"
	KeyGameIDs       = "game_ids"
	KeyGameCodes     = "game_codes"
	KeyModID         = "mod_id"
	KeyModCode       = "mod_code"
	KeyModIDs        = "mod_ids"
	KeyModCodes      = "mod_codes"
	KeyName          = "name"
	KeyPath          = "path"
	KeyInstalled     = "installed"
	KeyNexusID       = "nexus_id"
	KeyVersion       = "version"
	KeySymlinkTarget = "symlink_target"
	KeySymlinks      = "symlinks"
	KeyInstallDir    = "install_dir"
	KeyModArchiveDir = "mod_archive_dir"
	KeyModInstallDir = "mod_install_dir"
	KeyLastLoadedAt  = "last_loaded_at"

	// Broadcast payloads carry the full records under these keys.
	KeyGame = "game"
	KeyMod  = "mod"
)
