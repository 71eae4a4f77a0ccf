package engine

import (
	"errors"
	"fmt"

	"hoard-go/internal/history"
	"hoard-go/internal/hoard"
)

// ErrStaleConflict marks an operation blocked because it is based on stale
// knowledge: another machine wrote the hoard more recently and the state here
// no longer matches what that machine recorded. Forcing the operation makes
// the resulting record supersede the prior one.
var ErrStaleConflict = errors.New("conflicting changes from another machine")

// ErrPathsChanged marks an operation whose pile paths differ from the
// previous run on this machine. Forcing accepts the new paths.
var ErrPathsChanged = errors.New("paths used in current hoard operation do not match previous run")

func staleError(direction hoard.Direction) error {
	if direction == hoard.Backup {
		return fmt.Errorf("%w: found unapplied remote changes - restore this hoard to apply changes or force a backup with --force", ErrStaleConflict)
	}
	return fmt.Errorf("%w: found unsaved local changes - backup this hoard to save changes or force a restore with --force", ErrStaleConflict)
}

// checkConflict decides whether the pending operation may proceed. The
// pending record carries the current checksums of the side the operation
// reads from, so it is exactly the state this machine is about to commit.
//
// The newest record across every machine decides. No record at all, or a
// record this machine wrote itself, permits the operation. A record from
// another machine permits it only when the pending state matches that record
// file for file: the comparison is content-based rather than identity-based,
// so a machine whose identity file was regenerated is still recognized by its
// unchanged checksums. At most one machine's divergent, unforced write can
// win a given hoard state.
func (e *Engine) checkConflict(h *hoard.Hoard, pending *history.Record, direction hoard.Direction) error {
	latest, err := e.store.Latest(h.Name)
	if err != nil {
		return err
	}
	if latest == nil {
		// First-ever operation on this hoard.
		return nil
	}
	if latest.MachineID == e.machineID {
		// Continuing this machine's own chain.
		return nil
	}
	if disagreement := pending.SameFiles(latest.Record); len(disagreement) > 0 {
		e.logger.Debug("conflict with latest record",
			"hoard", h.Name, "machine", latest.MachineID, "files", len(disagreement))
		return staleError(direction)
	}
	return nil
}

// checkLastPaths blocks the operation when the hoard's pile paths moved since
// the previous run on this machine.
func (e *Engine) checkLastPaths(h *hoard.Hoard) error {
	lp, err := e.store.ReadLastPaths(e.machineID)
	if err != nil {
		return err
	}
	previous, ok := lp[h.Name]
	if !ok {
		return nil
	}

	current := make(map[hoard.PileName]string, len(h.Piles))
	for _, p := range h.Piles {
		current[p.Name] = p.SystemPath
	}
	if len(current) != len(previous.Piles) {
		return ErrPathsChanged
	}
	for name, path := range current {
		if previous.Piles[name] != path {
			return ErrPathsChanged
		}
	}
	return nil
}
