package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// Dirs holds the resolved directory layout for a run.
type Dirs struct {
	// Config holds config.toml/config.yaml and the machine identity file.
	Config string
	// Data holds the hoards store, the operation log and the log file.
	Data string
}

// Hoards returns the directory holding the stored file copies.
func (d Dirs) Hoards() string { return filepath.Join(d.Data, "hoards") }

// History returns the root of the per-machine operation log.
func (d Dirs) History() string { return filepath.Join(d.Data, "history") }

// Log returns the directory for the application log file.
func (d Dirs) Log() string { return filepath.Join(d.Data, "log") }

// DefaultDirs resolves the config and data directories, checking environment
// variables first.
// Environment variables:
//   - HOARD_CONFIG_DIR: config directory (default: ~/.config/hoard)
//   - HOARD_DATA_DIR: data directory (default: ~/.local/share/hoard)
func DefaultDirs() (Dirs, error) {
	configDir, err := getConfigDir()
	if err != nil {
		return Dirs{}, err
	}
	dataDir, err := getDataDir()
	if err != nil {
		return Dirs{}, err
	}
	return Dirs{Config: configDir, Data: dataDir}, nil
}

func getConfigDir() (string, error) {
	if path := os.Getenv("HOARD_CONFIG_DIR"); path != "" {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "hoard"), nil
}

func getDataDir() (string, error) {
	if path := os.Getenv("HOARD_DATA_DIR"); path != "" {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "hoard"), nil
}
