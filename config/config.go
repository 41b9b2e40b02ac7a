package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// Values are loaded by Viper from a config file and/or environment variables.
type Config struct {
	DataDir       string `mapstructure:"DATA_DIR"`       // Root for the database and staging areas
	DownloadDir   string `mapstructure:"DOWNLOAD_DIR"`   // Where the browser/downloader drops archives
	NexusAPIKey   string `mapstructure:"NEXUS_API_KEY"`  // Personal API key from nexusmods.com
	NexusBaseURL  string `mapstructure:"NEXUS_BASE_URL"` // Overridable for testing
	UserAgent     string `mapstructure:"USERAGENT"`
	KeepDownloads bool   `mapstructure:"KEEP_DOWNLOADS"` // Keep archives in DownloadDir after registering

	// Derived, not from env
	DatabasePath     string `mapstructure:"-"`
	ModArchivesPath  string `mapstructure:"-"` // Per-game archive staging lives under here
	ModInstalledPath string `mapstructure:"-"` // Per-mod unpack staging lives under here
}

// LoadConfig reads configuration from file and environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)   // Path to look for the config file in
	viper.SetConfigName(".env") // Name of config file (without extension)
	viper.SetConfigType("env")  // REQUIRED if the config file does not have the extension in the name

	vip_err := viper.ReadInConfig()
	if _, ok := vip_err.(viper.ConfigFileNotFoundError); ok {
		slog.Info("Config file (.env) not found, relying on environment variables.")
	} else if vip_err != nil {
		return Config{}, fmt.Errorf("fatal error config file: %w", vip_err)
	}

	// Bind environment variables automatically.
	// Viper will check for an environment variable matching the key name (e.g., NEXUS_API_KEY)
	viper.AutomaticEnv()

	vip_err = viper.BindEnv("data_dir", "DATA_DIR")
	if vip_err != nil {
		slog.Warn("Unable to bind DATA_DIR env var", "error", vip_err)
	}
	vip_err = viper.BindEnv("download_dir", "DOWNLOAD_DIR")
	if vip_err != nil {
		slog.Warn("Unable to bind DOWNLOAD_DIR env var", "error", vip_err)
	}
	vip_err = viper.BindEnv("nexus_api_key", "NEXUS_API_KEY")
	if vip_err != nil {
		slog.Warn("Unable to bind NEXUS_API_KEY env var", "error", vip_err)
	}
	vip_err = viper.BindEnv("nexus_base_url", "NEXUS_BASE_URL")
	if vip_err != nil {
		slog.Warn("Unable to bind NEXUS_BASE_URL env var", "error", vip_err)
	}
	vip_err = viper.BindEnv("useragent", "USERAGENT")
	if vip_err != nil {
		slog.Warn("Unable to bind USERAGENT env var", "error", vip_err)
	}
	vip_err = viper.BindEnv("keep_downloads", "KEEP_DOWNLOADS")
	if vip_err != nil {
		slog.Warn("Unable to bind KEEP_DOWNLOADS env var", "error", vip_err)
	}

	// Unmarshal the config
	vip_err = viper.Unmarshal(&config)
	if vip_err != nil {
		return Config{}, fmt.Errorf("unable to decode into struct, %w", vip_err)
	}

	// --- Post-unmarshal processing and defaults ---

	if config.DataDir == "" {
		config.DataDir = filepath.Join(path, "data")
	}
	if config.DownloadDir == "" {
		home, homeErr := os.UserHomeDir()
		if homeErr != nil {
			slog.Warn("Could not resolve home directory for DOWNLOAD_DIR default", "error", homeErr)
			home = "."
		}
		config.DownloadDir = filepath.Join(home, "Downloads")
	}
	if config.NexusBaseURL == "" {
		config.NexusBaseURL = "https://api.nexusmods.com"
	}
	if config.UserAgent == "" {
		config.UserAgent = "nexus-mod-manager/1.0 (unknown-user)"
		slog.Warn("USERAGENT not set in config or environment, using default.")
	}

	// Default KeepDownloads if not explicitly set (Viper doesn't handle bool defaults from env well without explicit SetDefault)
	// We check the string value from Viper directly before unmarshal might coerce it.
	keepStr := viper.GetString("KEEP_DOWNLOADS")
	if keepStr == "" {
		config.KeepDownloads = true // Default to true, deleting a user's download is the surprising choice
	} else {
		keep, err := strconv.ParseBool(keepStr)
		if err != nil {
			slog.Warn("Invalid value for KEEP_DOWNLOADS ('"+keepStr+"'), defaulting to true. Error:", "error", err)
			config.KeepDownloads = true
		} else {
			config.KeepDownloads = keep
		}
	}

	// Derive the storage layout under DataDir
	config.DatabasePath = filepath.Join(config.DataDir, "db.db")
	config.ModArchivesPath = filepath.Join(config.DataDir, "mods", "archives")
	config.ModInstalledPath = filepath.Join(config.DataDir, "mods", "installed")

	// Ensure the data directory and both staging roots exist
	for _, dir := range []string{config.DataDir, config.ModArchivesPath, config.ModInstalledPath} {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			slog.Info("Creating directory", "path", dir)
			if err := os.MkdirAll(dir, 0755); err != nil {
				slog.Error("Failed to create directory", "path", dir, "error", err)
				return Config{}, err
			}
		} else if err != nil {
			slog.Error("Failed to check directory", "path", dir, "error", err)
			return Config{}, err
		}
	}

	return config, nil
}
