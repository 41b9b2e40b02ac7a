package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

func TestLoadConfigDefaults(t *testing.T) {
	viper.Reset()
	tmpDir := t.TempDir()
	t.Setenv("DATA_DIR", "")
	t.Setenv("DOWNLOAD_DIR", "")
	t.Setenv("USERAGENT", "")
	t.Setenv("KEEP_DOWNLOADS", "")
	t.Setenv("NEXUS_BASE_URL", "")

	cfg, err := LoadConfig(tmpDir)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cfg.DataDir != filepath.Join(tmpDir, "data") {
		t.Errorf("Expected DataDir under %s, got %s", tmpDir, cfg.DataDir)
	}
	if cfg.DatabasePath != filepath.Join(cfg.DataDir, "db.db") {
		t.Errorf("Unexpected DatabasePath: %s", cfg.DatabasePath)
	}
	if cfg.ModArchivesPath != filepath.Join(cfg.DataDir, "mods", "archives") {
		t.Errorf("Unexpected ModArchivesPath: %s", cfg.ModArchivesPath)
	}
	if cfg.ModInstalledPath != filepath.Join(cfg.DataDir, "mods", "installed") {
		t.Errorf("Unexpected ModInstalledPath: %s", cfg.ModInstalledPath)
	}
	if cfg.NexusBaseURL != "https://api.nexusmods.com" {
		t.Errorf("Expected default NexusBaseURL, got %s", cfg.NexusBaseURL)
	}
	if cfg.UserAgent == "" {
		t.Error("Expected UserAgent to have a default value")
	}
	if !cfg.KeepDownloads {
		t.Error("Expected KeepDownloads to default to true")
	}
}

func TestLoadConfigCreatesStagingDirs(t *testing.T) {
	viper.Reset()
	tmpDir := t.TempDir()
	t.Setenv("DATA_DIR", filepath.Join(tmpDir, "state"))

	cfg, err := LoadConfig(tmpDir)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	for _, dir := range []string{cfg.DataDir, cfg.ModArchivesPath, cfg.ModInstalledPath} {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			t.Errorf("Directory %s was not created", dir)
		}
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	viper.Reset()
	tmpDir := t.TempDir()
	t.Setenv("DATA_DIR", filepath.Join(tmpDir, "custom"))
	t.Setenv("DOWNLOAD_DIR", filepath.Join(tmpDir, "dl"))
	t.Setenv("NEXUS_API_KEY", "abc123")
	t.Setenv("USERAGENT", "custom-agent")
	t.Setenv("KEEP_DOWNLOADS", "false")

	cfg, err := LoadConfig(tmpDir)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cfg.DataDir != filepath.Join(tmpDir, "custom") {
		t.Errorf("Expected DataDir override, got %s", cfg.DataDir)
	}
	if cfg.DownloadDir != filepath.Join(tmpDir, "dl") {
		t.Errorf("Expected DownloadDir override, got %s", cfg.DownloadDir)
	}
	if cfg.NexusAPIKey != "abc123" {
		t.Errorf("Expected NexusAPIKey abc123, got %s", cfg.NexusAPIKey)
	}
	if cfg.UserAgent != "custom-agent" {
		t.Errorf("Expected UserAgent to stay custom-agent, got %s", cfg.UserAgent)
	}
	if cfg.KeepDownloads {
		t.Error("Expected KeepDownloads false")
	}
}

func TestLoadConfigKeepDownloadsExplicitTrue(t *testing.T) {
	viper.Reset()
	tmpDir := t.TempDir()
	t.Setenv("DATA_DIR", filepath.Join(tmpDir, "data"))
	t.Setenv("KEEP_DOWNLOADS", "true")

	cfg, err := LoadConfig(tmpDir)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !cfg.KeepDownloads {
		t.Error("Expected KeepDownloads true")
	}
}
