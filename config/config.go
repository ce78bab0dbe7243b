package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"modstacker/logger"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	BackendSQLite = "sqlite"
	BackendJSON   = "json"

	defaultUserAgent       = "ModStacker/1.0 (local dev)"
	defaultLoader          = "fabric"
	defaultListenAddr      = "127.0.0.1:5000"
	defaultTargetVersions  = "1.21.1,1.21.4"
	defaultAPIDelayMS      = 200
	defaultMetadataDelayMS = 150
	defaultImportDelayMS   = 300
	defaultSearchLimit     = 10
)

// Config holds all configuration for the application.
// Values are loaded by Viper from a config file and/or environment variables.
type Config struct {
	DataDir               string `mapstructure:"MODSTACKER_DATA_DIR"`
	StorageBackend        string `mapstructure:"STORAGE_BACKEND"`
	ModrinthAPIKey        string `mapstructure:"MODRINTH_API_KEY"`
	UserAgent             string `mapstructure:"USERAGENT"`
	MinecraftLoader       string `mapstructure:"MINECRAFT_LOADER"`
	APIDelayMS            int    `mapstructure:"-"`
	MetadataDelayMS       int    `mapstructure:"-"`
	ImportDelayMS         int    `mapstructure:"-"`
	SearchLimit           int    `mapstructure:"-"`
	ListenAddr            string `mapstructure:"LISTEN_ADDR"`
	DefaultTargetVersions string `mapstructure:"DEFAULT_TARGET_VERSIONS"`
	DatabasePath          string `mapstructure:"-"` // derived
	CollectionFilePath    string `mapstructure:"-"` // derived
}

var envKeys = []string{
	"MODSTACKER_DATA_DIR",
	"STORAGE_BACKEND",
	"MODRINTH_API_KEY",
	"USERAGENT",
	"MINECRAFT_LOADER",
	"API_DELAY_MS",
	"METADATA_DELAY_MS",
	"IMPORT_DELAY_MS",
	"SEARCH_LIMIT",
	"LISTEN_ADDR",
	"DEFAULT_TARGET_VERSIONS",
}

// LoadConfig reads configuration from a .env file in path and the environment.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	vipErr := viper.ReadInConfig()
	if _, ok := vipErr.(viper.ConfigFileNotFoundError); ok {
		logger.Log.Info("Config file (.env) not found, relying on environment variables.")
	} else if vipErr != nil {
		return Config{}, fmt.Errorf("fatal error config file: %w", vipErr)
	}

	viper.AutomaticEnv()
	for _, key := range envKeys {
		if err := viper.BindEnv(strings.ToLower(key), key); err != nil {
			logger.Log.Warnw("Unable to bind env var", zap.String("key", key), zap.Error(err))
		}
	}

	if err := viper.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("unable to decode into struct, %w", err)
	}

	processConfigDefaults(&config)

	if err := validateAndEnsureDirectories(&config); err != nil {
		return Config{}, err
	}
	return config, nil
}

// processConfigDefaults fills empty fields and parses the numeric settings.
// Unparseable numbers fall back to their defaults.
func processConfigDefaults(config *Config) {
	if config.DataDir == "" {
		config.DataDir = "."
	}
	config.StorageBackend = strings.ToLower(strings.TrimSpace(config.StorageBackend))
	if config.StorageBackend == "" {
		config.StorageBackend = BackendSQLite
	}
	if config.UserAgent == "" {
		config.UserAgent = defaultUserAgent
		logger.Log.Warn("USERAGENT not set in config or environment, using default.")
	}
	if config.MinecraftLoader == "" {
		config.MinecraftLoader = defaultLoader
	}
	if config.ListenAddr == "" {
		config.ListenAddr = defaultListenAddr
	}
	if config.DefaultTargetVersions == "" {
		config.DefaultTargetVersions = defaultTargetVersions
	}

	config.APIDelayMS = intSetting("API_DELAY_MS", defaultAPIDelayMS)
	config.MetadataDelayMS = intSetting("METADATA_DELAY_MS", defaultMetadataDelayMS)
	config.ImportDelayMS = intSetting("IMPORT_DELAY_MS", defaultImportDelayMS)
	config.SearchLimit = intSetting("SEARCH_LIMIT", defaultSearchLimit)
	if config.SearchLimit <= 0 {
		config.SearchLimit = defaultSearchLimit
	}
}

func intSetting(key string, def int) int {
	raw := strings.TrimSpace(viper.GetString(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		logger.Log.Warnw("Invalid numeric setting, using default",
			zap.String("key", key), zap.String("value", raw), zap.Int("default", def))
		return def
	}
	return n
}

// validateAndEnsureDirectories checks the backend and creates the data directory.
func validateAndEnsureDirectories(config *Config) error {
	switch config.StorageBackend {
	case BackendSQLite, BackendJSON:
	default:
		return fmt.Errorf("STORAGE_BACKEND must be %q or %q, got %q", BackendSQLite, BackendJSON, config.StorageBackend)
	}
	if config.DataDir == "" {
		return fmt.Errorf("MODSTACKER_DATA_DIR is required")
	}

	if _, err := os.Stat(config.DataDir); os.IsNotExist(err) {
		logger.Log.Infow("Data directory does not exist, creating it", zap.String("path", config.DataDir))
		if err := os.MkdirAll(config.DataDir, 0755); err != nil {
			return fmt.Errorf("failed to create data directory '%s': %w", config.DataDir, err)
		}
	} else if err != nil {
		return fmt.Errorf("failed to check data directory '%s': %w", config.DataDir, err)
	}

	config.DatabasePath = filepath.Join(config.DataDir, "modstacker.db")
	config.CollectionFilePath = filepath.Join(config.DataDir, "mods.json")
	return nil
}

// TargetVersions splits DEFAULT_TARGET_VERSIONS on commas.
func (c Config) TargetVersions() []string {
	var out []string
	for _, v := range strings.Split(c.DefaultTargetVersions, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func (c Config) APIDelay() time.Duration      { return time.Duration(c.APIDelayMS) * time.Millisecond }
func (c Config) MetadataDelay() time.Duration { return time.Duration(c.MetadataDelayMS) * time.Millisecond }
func (c Config) ImportDelay() time.Duration   { return time.Duration(c.ImportDelayMS) * time.Millisecond }
