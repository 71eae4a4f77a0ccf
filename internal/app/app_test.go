package app_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"hoard-go/internal/app"
)

// newTestApp builds a working layout: a config dir with a single anonymous
// hoard pointing at a file inside the temp dir, plus an empty data dir.
func newTestApp(t *testing.T, operation string) (*app.App, string) {
	t.Helper()

	root := t.TempDir()
	configDir := filepath.Join(root, "config")
	dataDir := filepath.Join(root, "data")
	systemFile := filepath.Join(root, "home", "testrc")

	if err := os.MkdirAll(filepath.Dir(systemFile), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(systemFile, []byte("set nocompatible\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		t.Fatal(err)
	}
	cfg := "[hoards.testrc]\npath = \"" + systemFile + "\"\n"
	if err := os.WriteFile(filepath.Join(configDir, "config.toml"), []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}

	a, err := app.NewWithDirs(app.Dirs{Config: configDir, Data: dataDir}, operation)
	if err != nil {
		t.Fatalf("NewWithDirs: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a, systemFile
}

func TestAppBackupAndStatus(t *testing.T) {
	a, _ := newTestApp(t, "backup")

	if err := a.Backup(nil, false); err != nil {
		t.Fatalf("Backup: %v", err)
	}

	var buf bytes.Buffer
	if err := a.Status(&buf, nil); err != nil {
		t.Fatalf("Status: %v", err)
	}
	if got, want := buf.String(), "testrc: up to date\n"; got != want {
		t.Errorf("status = %q, want %q", got, want)
	}
}

func TestAppDiffAfterLocalEdit(t *testing.T) {
	a, systemFile := newTestApp(t, "diff")

	if err := a.Backup(nil, false); err != nil {
		t.Fatalf("Backup: %v", err)
	}
	if err := os.WriteFile(systemFile, []byte("set compatible\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := a.Diff(&buf, "testrc", false); err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if !strings.Contains(buf.String(), "changed locally") {
		t.Errorf("diff output = %q, want a locally-changed line", buf.String())
	}
	if strings.Contains(buf.String(), "-set nocompatible") {
		t.Errorf("non-verbose diff includes a unified diff body: %q", buf.String())
	}

	// Verbose emits the unified diff regardless of where the output goes.
	buf.Reset()
	if err := a.Diff(&buf, "testrc", true); err != nil {
		t.Fatalf("Diff verbose: %v", err)
	}
	for _, want := range []string{"-set nocompatible", "+set compatible"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("verbose diff missing %q:\n%s", want, buf.String())
		}
	}
}

func TestAppList(t *testing.T) {
	a, _ := newTestApp(t, "list")

	var buf bytes.Buffer
	if err := a.List(&buf); err != nil {
		t.Fatalf("List: %v", err)
	}
	if got, want := buf.String(), "testrc\n"; got != want {
		t.Errorf("list = %q, want %q", got, want)
	}
}

func TestAppValidate(t *testing.T) {
	a, _ := newTestApp(t, "validate")
	if err := a.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestAppUnknownHoard(t *testing.T) {
	a, _ := newTestApp(t, "backup")
	if err := a.Backup([]string{"nope"}, false); err == nil {
		t.Fatal("expected an error for an unconfigured hoard")
	}
}
