// Package config stores the runner's settings in config.json.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

const fileName = "config.json"

// GetConfigPath returns config.json inside the user configuration directory.
func GetConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to find config directory: %w", err)
	}
	return filepath.Join(dir, "ezx48", fileName), nil
}

// LoadConfig loads the configuration from path.
// If the file doesn't exist, it returns default configuration.
// If the file is corrupted, it returns an error.
func LoadConfig(fs afero.Fs, path string) (*Config, error) {
	// Check if file exists
	if _, err := fs.Stat(path); errors.Is(err, os.ErrNotExist) {
		// File doesn't exist, return defaults
		return DefaultConfig(), nil
	}

	// Load and parse the file
	config := &Config{}
	if err := ReadJSON(fs, path, config); err != nil {
		return nil, err
	}

	// Apply any migration for older config versions
	config = migrateConfig(config)
	config.Clamp()

	return config, nil
}

// SaveConfig saves the configuration to path atomically
func SaveConfig(fs afero.Fs, path string, config *Config) error {
	return AtomicWriteJSON(fs, path, config)
}

// CreateConfigIfMissing creates a default config.json if it doesn't exist
func CreateConfigIfMissing(fs afero.Fs, path string) error {
	// Check if file exists
	if _, err := fs.Stat(path); errors.Is(err, os.ErrNotExist) {
		// Create default config
		return SaveConfig(fs, path, DefaultConfig())
	}

	return nil
}

// migrateConfig handles any necessary migrations from older config versions
func migrateConfig(config *Config) *Config {
	// Version 0 files predate the emulation and ui sections
	if config.Version == 0 {
		config.Version = currentVersion
		config.Emulation.FullSpeed = true
		config.UI.ShowStats = true
	}

	// Ensure defaults for any missing fields
	if config.ROM == "" {
		config.ROM = DefaultROM
	}
	if config.Video.Scale == 0 {
		config.Video.Scale = DefaultScale
	}
	if config.Emulation.RefreshRate == 0 {
		config.Emulation.RefreshRate = MinRefreshRate
	}

	return config
}

// ReadJSON decodes the JSON file at path into v.
func ReadJSON(fs afero.Fs, path string, v any) error {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// AtomicWriteJSON writes v as indented JSON to a temporary file and
// renames it over path.
func AtomicWriteJSON(fs afero.Fs, path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}

	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := afero.WriteFile(fs, tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmpPath, err)
	}
	if err := fs.Rename(tmpPath, path); err != nil {
		fs.Remove(tmpPath)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
