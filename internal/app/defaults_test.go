package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultDirs(t *testing.T) {
	t.Run("uses env vars when set", func(t *testing.T) {
		t.Setenv("HOARD_CONFIG_DIR", "/custom/config")
		t.Setenv("HOARD_DATA_DIR", "/custom/data")

		dirs, err := DefaultDirs()
		if err != nil {
			t.Fatalf("DefaultDirs() error = %v", err)
		}

		if dirs.Config != "/custom/config" {
			t.Errorf("Config = %q, want %q", dirs.Config, "/custom/config")
		}
		if dirs.Data != "/custom/data" {
			t.Errorf("Data = %q, want %q", dirs.Data, "/custom/data")
		}
		if got, want := dirs.Log(), "/custom/data/log"; got != want {
			t.Errorf("Log() = %q, want %q", got, want)
		}
		if got, want := dirs.Hoards(), "/custom/data/hoards"; got != want {
			t.Errorf("Hoards() = %q, want %q", got, want)
		}
		if got, want := dirs.History(), "/custom/data/history"; got != want {
			t.Errorf("History() = %q, want %q", got, want)
		}
	})

	t.Run("falls back to home dir defaults", func(t *testing.T) {
		t.Setenv("HOARD_CONFIG_DIR", "")
		t.Setenv("HOARD_DATA_DIR", "")

		dirs, err := DefaultDirs()
		if err != nil {
			t.Fatalf("DefaultDirs() error = %v", err)
		}

		homeDir, _ := os.UserHomeDir()

		wantConfig := filepath.Join(homeDir, ".config", "hoard")
		if dirs.Config != wantConfig {
			t.Errorf("Config = %q, want %q", dirs.Config, wantConfig)
		}

		wantData := filepath.Join(homeDir, ".local", "share", "hoard")
		if dirs.Data != wantData {
			t.Errorf("Data = %q, want %q", dirs.Data, wantData)
		}
	})
}
