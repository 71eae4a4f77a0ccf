// Package app is the wiring layer between the CLI and the engine. It resolves
// directories, loads configuration, establishes the machine identity and
// constructs a fully wired engine.
package app

import (
	"fmt"
	"io"
	"os"
	"time"

	"hoard-go/internal/config"
	"hoard-go/internal/engine"
	"hoard-go/internal/history"
	"hoard-go/internal/hoard"
)

// App is the application layer between the CLI and the Engine. It constructs
// all dependencies from config and owns the log file lifecycle.
type App struct {
	cfg     *config.Config
	engine  *engine.Engine
	logFile *os.File
}

// New creates a fully wired App. operation identifies the CLI command being
// run (e.g. "backup", "status") and tags every log line of this process.
// The caller must call Close when done.
func New(operation string) (*App, error) {
	dirs, err := DefaultDirs()
	if err != nil {
		return nil, err
	}
	return NewWithDirs(dirs, operation)
}

// NewWithDirs is New with an explicit directory layout, for tests.
func NewWithDirs(dirs Dirs, operation string) (*App, error) {
	cfg, err := config.Load(dirs.Config)
	if err != nil {
		return nil, err
	}

	opID := time.Now().UTC().Format("20060102T150405Z") + "-" + operation
	logger, logFile, err := newLogger(dirs.Log(), opID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	machineID, replaced, err := history.MachineID(dirs.Config)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("resolving machine identity: %w", err)
	}
	if replaced {
		logger.Warn("machine identity file was unreadable and has been regenerated",
			"machine_id", machineID)
	}

	store := history.NewStore(dirs.History())
	eng := engine.New(store, dirs.Hoards(), machineID, &slogAdapter{l: logger}, engine.RealClock{})

	return &App{cfg: cfg, engine: eng, logFile: logFile}, nil
}

// Hoards resolves the named hoards from config, or every configured hoard
// when names is empty.
func (a *App) Hoards(names []string) ([]*hoard.Hoard, error) {
	if len(names) == 0 {
		return a.cfg.ResolveAll()
	}
	hoards := make([]*hoard.Hoard, 0, len(names))
	for _, name := range names {
		h, err := a.cfg.Resolve(name)
		if err != nil {
			return nil, err
		}
		hoards = append(hoards, h)
	}
	return hoards, nil
}

// Backup backs up the named hoards, or all configured hoards.
func (a *App) Backup(names []string, force bool) error {
	hoards, err := a.Hoards(names)
	if err != nil {
		return err
	}
	return a.engine.Backup(hoards, force)
}

// Restore restores the named hoards, or all configured hoards.
func (a *App) Restore(names []string, force bool) error {
	hoards, err := a.Hoards(names)
	if err != nil {
		return err
	}
	return a.engine.Restore(hoards, force)
}

// Diff writes the per-file divergence report for one hoard to w.
func (a *App) Diff(w io.Writer, name string, verbose bool) error {
	h, err := a.cfg.Resolve(name)
	if err != nil {
		return err
	}
	return a.engine.Diff(w, h, verbose)
}

// Status writes the one-line judgment for the named hoards, or all of them.
func (a *App) Status(w io.Writer, names []string) error {
	hoards, err := a.Hoards(names)
	if err != nil {
		return err
	}
	return a.engine.Status(w, hoards)
}

// Cleanup prunes superseded operation records and returns how many were removed.
func (a *App) Cleanup() (int, error) {
	return a.engine.Cleanup()
}

// Upgrade converts legacy operation records and returns how many were converted.
func (a *App) Upgrade() (int, error) {
	return a.engine.Upgrade()
}

// List writes the configured hoard names to w, sorted, one per line.
func (a *App) List(w io.Writer) error {
	for _, name := range a.cfg.Names() {
		if _, err := fmt.Fprintln(w, name); err != nil {
			return err
		}
	}
	return nil
}

// Validate resolves every configured hoard without touching any files and
// returns the first problem found.
func (a *App) Validate() error {
	_, err := a.cfg.ResolveAll()
	return err
}

// Close releases resources held by the App.
func (a *App) Close() error {
	if a.logFile != nil {
		return a.logFile.Close()
	}
	return nil
}
