package db

import (
	"time"

	"gorm.io/datatypes"
)

// Game represents a managed game installation
type Game struct {
	ID            uint   `gorm:"primaryKey"`
	Code          string `gorm:"uniqueIndex"` // Opaque token assigned at registration, never reassigned
	Name          string `gorm:"uniqueIndex"`
	Path          string `gorm:"uniqueIndex"` // Game install root
	ModArchiveDir string // Archive staging area for this game
	ModInstallDir string // Unpack staging area for this game
	NexusID       string // Game domain on nexusmods.com, defaulted from the name
	LastLoadedAt  time.Time
	RegisteredAt  time.Time
}

// Mod represents a single mod registration and its install state for one Game
type Mod struct {
	ID            uint   `gorm:"primaryKey"` // Autoincrement keeps ids monotonic
	Code          string `gorm:"uniqueIndex"`
	GameID        uint   `gorm:"index"`
	Game          Game   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	GameCode      string // Denormalized from the owning Game
	Installed     bool
	ArchivePath   string // Archive the mod was registered from
	InstallDir    string // Where the archive is unpacked before linking
	Name          string `gorm:"uniqueIndex"`
	NexusID       string
	Version       string
	SymlinkTarget string                                // Root the installed files appear under
	Symlinks      datatypes.JSONType[map[string]string] // Extracted file -> created link, authoritative
	RegisteredAt  time.Time
}

// LinkMap returns the recorded symlink map, never nil.
func (m *Mod) LinkMap() map[string]string {
	links := m.Symlinks.Data()
	if links == nil {
		return map[string]string{}
	}
	return links
}
