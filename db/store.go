package db

import (
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a lookup or update targets a row that
	// does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrNoFields is returned by updates called with nothing to change.
	ErrNoFields = errors.New("no fields to update")
)

// Store wraps all Game and Mod persistence. Staging directories for new
// rows are derived under the two roots it is constructed with.
type Store struct {
	db            *gorm.DB
	log           *zap.SugaredLogger
	archivesRoot  string
	installedRoot string
}

func NewStore(gdb *gorm.DB, log *zap.SugaredLogger, archivesRoot, installedRoot string) *Store {
	return &Store{
		db:            gdb,
		log:           log,
		archivesRoot:  archivesRoot,
		installedRoot: installedRoot,
	}
}

// newCode generates the opaque identity token used by both entities:
// 32 hex characters, random, never reused.
func newCode() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}

// --- Games ---

func (s *Store) AllGames() ([]Game, error) {
	var games []Game
	if err := s.db.Order("id").Find(&games).Error; err != nil {
		return nil, fmt.Errorf("fetch all games: %w", err)
	}
	return games, nil
}

func (s *Store) GameByID(id uint) (*Game, error) {
	var g Game
	err := s.db.First(&g, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch game %d: %w", id, err)
	}
	return &g, nil
}

func (s *Store) GameByCode(code string) (*Game, error) {
	var g Game
	err := s.db.Where("code = ?", code).First(&g).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch game %q: %w", code, err)
	}
	return &g, nil
}

// GamesByIDs returns the games that exist among ids; missing members are
// skipped silently.
func (s *Store) GamesByIDs(ids []uint) ([]Game, error) {
	games := []Game{}
	if len(ids) == 0 {
		return games, nil
	}
	if err := s.db.Where("id IN ?", ids).Order("id").Find(&games).Error; err != nil {
		return nil, fmt.Errorf("fetch games by ids: %w", err)
	}
	return games, nil
}

func (s *Store) GamesByCodes(codes []string) ([]Game, error) {
	games := []Game{}
	if len(codes) == 0 {
		return games, nil
	}
	if err := s.db.Where("code IN ?", codes).Order("id").Find(&games).Error; err != nil {
		return nil, fmt.Errorf("fetch games by codes: %w", err)
	}
	return games, nil
}

// InsertGame registers a game and returns the stored row, re-fetched by
// its new id. The code, staging directories, nexus domain guess and both
// timestamps are filled in here; callers only choose name and path.
func (s *Store) InsertGame(name, path string) (*Game, error) {
	now := time.Now()
	code := newCode()
	g := Game{
		Code:          code,
		Name:          name,
		Path:          filepath.ToSlash(path),
		ModArchiveDir: filepath.ToSlash(filepath.Join(s.archivesRoot, code)),
		ModInstallDir: filepath.ToSlash(filepath.Join(s.installedRoot, code)),
		NexusID:       strings.ToLower(strings.ReplaceAll(name, " ", "_")),
		LastLoadedAt:  now,
		RegisteredAt:  now,
	}
	if err := s.db.Create(&g).Error; err != nil {
		return nil, fmt.Errorf("insert game %q: %w", name, err)
	}
	return s.GameByID(g.ID)
}

// GameUpdate names the fields UpdateGame may change; nil means "leave
// as is". Code and RegisteredAt are immutable and have no field here.
type GameUpdate struct {
	Name          *string
	Path          *string
	ModArchiveDir *string
	ModInstallDir *string
	NexusID       *string
	LastLoadedAt  *time.Time
}

func (u GameUpdate) values() map[string]any {
	vals := map[string]any{}
	if u.Name != nil {
		vals["name"] = *u.Name
	}
	if u.Path != nil {
		vals["path"] = *u.Path
	}
	if u.ModArchiveDir != nil {
		vals["mod_archive_dir"] = *u.ModArchiveDir
	}
	if u.ModInstallDir != nil {
		vals["mod_install_dir"] = *u.ModInstallDir
	}
	if u.NexusID != nil {
		vals["nexus_id"] = *u.NexusID
	}
	if u.LastLoadedAt != nil {
		vals["last_loaded_at"] = *u.LastLoadedAt
	}
	return vals
}

// UpdateGame applies the supplied fields to one row. An empty update is
// ErrNoFields; a missing row is ErrNotFound, checked before anything is
// written.
func (s *Store) UpdateGame(id uint, upd GameUpdate) error {
	values := upd.values()
	if len(values) == 0 {
		s.log.Warnw("Game update called with no fields", zap.Uint("id", id))
		return ErrNoFields
	}

	var g Game
	err := s.db.First(&g, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.log.Warnw("Game to update does not exist", zap.Uint("id", id))
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("fetch game %d for update: %w", id, err)
	}

	if err := s.db.Model(&g).Updates(values).Error; err != nil {
		return fmt.Errorf("update game %d: %w", id, err)
	}
	return nil
}

// GameFilter is a search condition: non-zero fields are ANDed together
// as exact matches, zero-valued fields impose no constraint. That means
// an empty string or zero id cannot be searched for explicitly.
type GameFilter struct {
	ID      uint
	Code    string
	Name    string
	Path    string
	NexusID string
}

func (s *Store) SearchGames(f GameFilter) ([]Game, error) {
	games := []Game{}
	cond := Game{
		ID:      f.ID,
		Code:    f.Code,
		Name:    f.Name,
		Path:    f.Path,
		NexusID: f.NexusID,
	}
	if err := s.db.Where(&cond).Order("id").Find(&games).Error; err != nil {
		return nil, fmt.Errorf("search games: %w", err)
	}
	return games, nil
}

// --- Mods ---

func (s *Store) AllMods() ([]Mod, error) {
	var mods []Mod
	if err := s.db.Order("id").Find(&mods).Error; err != nil {
		return nil, fmt.Errorf("fetch all mods: %w", err)
	}
	return mods, nil
}

func (s *Store) ModByID(id uint) (*Mod, error) {
	var m Mod
	err := s.db.First(&m, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch mod %d: %w", id, err)
	}
	return &m, nil
}

func (s *Store) ModByCode(code string) (*Mod, error) {
	var m Mod
	err := s.db.Where("code = ?", code).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch mod %q: %w", code, err)
	}
	return &m, nil
}

func (s *Store) ModsByIDs(ids []uint) ([]Mod, error) {
	mods := []Mod{}
	if len(ids) == 0 {
		return mods, nil
	}
	if err := s.db.Where("id IN ?", ids).Order("id").Find(&mods).Error; err != nil {
		return nil, fmt.Errorf("fetch mods by ids: %w", err)
	}
	return mods, nil
}

func (s *Store) ModsByCodes(codes []string) ([]Mod, error) {
	mods := []Mod{}
	if len(codes) == 0 {
		return mods, nil
	}
	if err := s.db.Where("code IN ?", codes).Order("id").Find(&mods).Error; err != nil {
		return nil, fmt.Errorf("fetch mods by codes: %w", err)
	}
	return mods, nil
}

func (s *Store) ModsForGame(gameID uint) ([]Mod, error) {
	mods := []Mod{}
	if err := s.db.Where("game_id = ?", gameID).Order("id").Find(&mods).Error; err != nil {
		return nil, fmt.Errorf("fetch mods for game %d: %w", gameID, err)
	}
	return mods, nil
}

// NewMod carries the caller-supplied part of a mod registration.
type NewMod struct {
	GameID        uint
	GameCode      string
	Name          string
	ArchivePath   string
	NexusID       string
	Version       string
	SymlinkTarget string
}

// InsertMod registers a mod and returns the stored row, re-fetched by
// its new id. The unpack directory is derived from the owning game's
// code and the fresh mod code; the mod starts not installed with an
// empty link map.
func (s *Store) InsertMod(n NewMod) (*Mod, error) {
	code := newCode()
	m := Mod{
		Code:          code,
		GameID:        n.GameID,
		GameCode:      n.GameCode,
		Installed:     false,
		ArchivePath:   filepath.ToSlash(n.ArchivePath),
		InstallDir:    filepath.ToSlash(filepath.Join(s.installedRoot, n.GameCode, code)),
		Name:          n.Name,
		NexusID:       n.NexusID,
		Version:       n.Version,
		SymlinkTarget: filepath.ToSlash(n.SymlinkTarget),
		Symlinks:      datatypes.NewJSONType(map[string]string{}),
		RegisteredAt:  time.Now(),
	}
	if err := s.db.Omit("Game").Create(&m).Error; err != nil {
		return nil, fmt.Errorf("insert mod %q: %w", n.Name, err)
	}
	return s.ModByID(m.ID)
}

// ModUpdate names the fields UpdateMod may change; nil means "leave as
// is".
type ModUpdate struct {
	Name          *string
	Installed     *bool
	ArchivePath   *string
	InstallDir    *string
	NexusID       *string
	Version       *string
	SymlinkTarget *string
	Symlinks      *map[string]string
}

func (u ModUpdate) values() map[string]any {
	vals := map[string]any{}
	if u.Name != nil {
		vals["name"] = *u.Name
	}
	if u.Installed != nil {
		vals["installed"] = *u.Installed
	}
	if u.ArchivePath != nil {
		vals["archive_path"] = *u.ArchivePath
	}
	if u.InstallDir != nil {
		vals["install_dir"] = *u.InstallDir
	}
	if u.NexusID != nil {
		vals["nexus_id"] = *u.NexusID
	}
	if u.Version != nil {
		vals["version"] = *u.Version
	}
	if u.SymlinkTarget != nil {
		vals["symlink_target"] = *u.SymlinkTarget
	}
	if u.Symlinks != nil {
		vals["symlinks"] = datatypes.NewJSONType(*u.Symlinks)
	}
	return vals
}

// UpdateMod applies the supplied fields to one row with the same
// semantics as UpdateGame.
func (s *Store) UpdateMod(id uint, upd ModUpdate) error {
	values := upd.values()
	if len(values) == 0 {
		s.log.Warnw("Mod update called with no fields", zap.Uint("id", id))
		return ErrNoFields
	}

	var m Mod
	err := s.db.First(&m, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.log.Warnw("Mod to update does not exist", zap.Uint("id", id))
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("fetch mod %d for update: %w", id, err)
	}

	if err := s.db.Model(&m).Updates(values).Error; err != nil {
		return fmt.Errorf("update mod %d: %w", id, err)
	}
	return nil
}

// ModFilter is the search condition for mods; same zero-value semantics
// as GameFilter, so Installed=false means "any install state".
type ModFilter struct {
	ID        uint
	Code      string
	GameID    uint
	GameCode  string
	Name      string
	NexusID   string
	Version   string
	Installed bool
}

func (s *Store) SearchMods(f ModFilter) ([]Mod, error) {
	mods := []Mod{}
	cond := Mod{
		ID:        f.ID,
		Code:      f.Code,
		GameID:    f.GameID,
		GameCode:  f.GameCode,
		Name:      f.Name,
		NexusID:   f.NexusID,
		Version:   f.Version,
		Installed: f.Installed,
	}
	if err := s.db.Where(&cond).Order("id").Find(&mods).Error; err != nil {
		return nil, fmt.Errorf("search mods: %w", err)
	}
	return mods, nil
}
