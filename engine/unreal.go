// Package engine recognizes game engine directory layouts. Knowing the
// engine lets mod registration pick a sensible link target, like the
// ~mods pak directory Unreal titles load from.
package engine

import (
	"os"
	"path/filepath"
)

// IsUnrealGame reports whether path looks like a packaged Unreal Engine
// game: the Engine, Content and Binaries trio at the top, the usual
// Engine subtree, a Content/Paks directory, and a Windows platform
// directory under Binaries.
func IsUnrealGame(path string) bool {
	if !dirExists(path) {
		return false
	}
	for _, top := range []string{"Engine", "Content", "Binaries"} {
		if !dirExists(filepath.Join(path, top)) {
			return false
		}
	}
	for _, sub := range []string{"Binaries", "Config", "Content", "Plugins"} {
		if !dirExists(filepath.Join(path, "Engine", sub)) {
			return false
		}
	}
	if !dirExists(filepath.Join(path, "Content", "Paks")) {
		return false
	}
	return dirExists(filepath.Join(path, "Binaries", "Win64")) ||
		dirExists(filepath.Join(path, "Binaries", "Win32"))
}

// UnrealModsDir returns the ~mods pak directory for a game root. Files
// placed there are loaded after the base paks, which is what makes them
// override game content.
func UnrealModsDir(path string) string {
	return filepath.Join(path, "Content", "Paks", "~mods")
}

// EnsureUnrealModsDir creates the ~mods directory if needed and returns
// its path.
func EnsureUnrealModsDir(path string) (string, error) {
	dir := UnrealModsDir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
