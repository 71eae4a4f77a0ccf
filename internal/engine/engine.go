// Package engine is the orchestration layer that coordinates the checksum,
// history and diff components to perform the high-level operations needed by
// the CLI: backup, restore, diff, status, cleanup and upgrade.
package engine

import (
	"time"

	"hoard-go/internal/diff"
	"hoard-go/internal/history"
)

// Logger provides structured logging for the engine.
// The args follow slog conventions: alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NopLogger is a Logger that discards all output. Use in tests.
type NopLogger struct{}

func NewNopLogger() *NopLogger { return &NopLogger{} }

func (*NopLogger) Debug(string, ...any) {}
func (*NopLogger) Info(string, ...any)  {}
func (*NopLogger) Warn(string, ...any)  {}
func (*NopLogger) Error(string, ...any) {}

// Clock abstracts time retrieval so record timestamps are deterministic in tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// Engine performs hoard operations for one machine identity against a shared
// hoards directory and its operation log.
type Engine struct {
	store      *history.Store
	hoardsRoot string
	machineID  string
	logger     Logger
	clock      Clock
}

// New creates an Engine with the provided dependencies.
func New(store *history.Store, hoardsRoot, machineID string, logger Logger, clock Clock) *Engine {
	return &Engine{
		store:      store,
		hoardsRoot: hoardsRoot,
		machineID:  machineID,
		logger:     logger,
		clock:      clock,
	}
}

func (e *Engine) classifier() *diff.Classifier {
	return &diff.Classifier{
		Store:      e.store,
		MachineID:  e.machineID,
		HoardsRoot: e.hoardsRoot,
	}
}

// Cleanup prunes operation records that no longer affect conflict detection.
func (e *Engine) Cleanup() (int, error) {
	removed, err := e.store.Cleanup()
	if err != nil {
		return removed, err
	}
	e.logger.Info("cleanup complete", "removed", removed)
	return removed, nil
}

// Upgrade converts legacy operation records to the current schema.
func (e *Engine) Upgrade() (int, error) {
	converted, err := e.store.Upgrade()
	if err != nil {
		return converted, err
	}
	e.logger.Info("upgrade complete", "converted", converted)
	return converted, nil
}
