package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/setu-dav/setu/internal/vault"
)

const (
	DefaultSyncIntervalSecs = 900
	DefaultServerPort       = 5232
)

// Config is the persisted daemon configuration, stored as JSON in the data
// directory. Secrets never live here; a google_client_secret found in an old
// config file is moved into the vault by LoadAndMigrate.
type Config struct {
	GoogleClientID     string `json:"google_client_id"`
	GoogleClientSecret string `json:"google_client_secret,omitempty"`
	SyncIntervalSecs   int64  `json:"sync_interval_secs"`
	ServerPort         uint16 `json:"server_port"`
	UseTLS             bool   `json:"use_tls"`
}

func Default() *Config {
	return &Config{
		SyncIntervalSecs: DefaultSyncIntervalSecs,
		ServerPort:       DefaultServerPort,
	}
}

// DataDir returns the per-user data directory, creating it if needed.
func DataDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	dir := filepath.Join(base, "setu")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create data dir: %w", err)
	}
	return dir, nil
}

func Path() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// DBPath returns the contact database path inside the data directory.
func DBPath() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "setu.db"), nil
}

// TokenFilePath returns the OAuth token cache file path.
func TokenFilePath() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "oauth_token.json"), nil
}

// LogFilePath returns the daemon log file path.
func LogFilePath() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "setu.log"), nil
}

// LoadFile reads the config at path, filling defaults for absent fields.
// A missing file yields the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.SyncIntervalSecs <= 0 {
		cfg.SyncIntervalSecs = DefaultSyncIntervalSecs
	}
	if cfg.ServerPort == 0 {
		cfg.ServerPort = DefaultServerPort
	}
	return cfg, nil
}

// SaveFile writes the config as pretty-printed JSON.
func SaveFile(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// LoadAndMigrate loads the config and moves a legacy in-file client secret
// into the vault, rewriting the file without it.
func LoadAndMigrate(path string, v vault.Vault, logger zerolog.Logger) (*Config, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	if cfg.GoogleClientSecret != "" {
		if err := v.Set(vault.KeyGoogleClientSecret, cfg.GoogleClientSecret); err != nil {
			return nil, fmt.Errorf("store client secret: %w", err)
		}
		cfg.GoogleClientSecret = ""
		if err := SaveFile(path, cfg); err != nil {
			return nil, err
		}
		logger.Info().Msg("moved google client secret from config file into vault")
	}
	return cfg, nil
}

// legacy data-dir files from before the product rename
var legacyFiles = [][2]string{
	{"config.json", "config.json"},
	{"wincard.db", "setu.db"},
	{"oauth_token.json", "oauth_token.json"},
}

// MigrateLegacyDataDir copies files from an old "wincard" data directory into
// the current one. Files already present are not overwritten. Idempotent.
func MigrateLegacyDataDir(logger zerolog.Logger) {
	base, err := os.UserConfigDir()
	if err != nil {
		return
	}
	oldDir := filepath.Join(base, "wincard")
	if _, err := os.Stat(oldDir); err != nil {
		return
	}
	newDir, err := DataDir()
	if err != nil {
		return
	}
	for _, pair := range legacyFiles {
		src := filepath.Join(oldDir, pair[0])
		dst := filepath.Join(newDir, pair[1])
		if _, err := os.Stat(dst); err == nil {
			continue
		}
		data, err := os.ReadFile(src)
		if err != nil {
			continue
		}
		if err := os.WriteFile(dst, data, 0o600); err != nil {
			logger.Warn().Err(err).Str("file", pair[1]).Msg("failed to migrate legacy data file")
			continue
		}
		logger.Info().Str("file", pair[1]).Msg("migrated data file from wincard directory")
	}
}
