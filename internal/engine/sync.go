package engine

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"hoard-go/internal/checksum"
	"hoard-go/internal/diff"
	"hoard-go/internal/history"
	"hoard-go/internal/hoard"
)

// ErrSourceMissing marks a pile whose source side (the system tree for a
// backup, the stored copy for a restore) does not exist even though the other
// side or the newest record says the pile has content. The pile fails as a
// unit; sibling piles still complete.
var ErrSourceMissing = errors.New("source path does not exist")

type action int

const (
	actionNothing action = iota
	actionCreate
	actionModify
	actionDelete
	actionMissing
)

type plannedFile struct {
	pile    hoard.PileName
	relPath string
	system  string
	store   string
	alg     checksum.Algorithm
	act     action
}

// Backup copies changed files from the system into the hoards directory and
// records the operation. Hoards fail independently: a blocked or failed hoard
// does not prevent the others from completing.
func (e *Engine) Backup(hoards []*hoard.Hoard, force bool) error {
	return e.sync(hoards, hoard.Backup, force)
}

// Restore copies stored files back onto the system and records the operation.
func (e *Engine) Restore(hoards []*hoard.Hoard, force bool) error {
	return e.sync(hoards, hoard.Restore, force)
}

func (e *Engine) sync(hoards []*hoard.Hoard, direction hoard.Direction, force bool) error {
	var errs []error
	for _, h := range hoards {
		if err := e.syncHoard(h, direction, force); err != nil {
			e.logger.Error("hoard operation failed",
				"hoard", h.Name, "direction", direction, "error", err)
			errs = append(errs, fmt.Errorf("hoard %s: %w", h.Name, err))
			continue
		}
		e.logger.Info("hoard operation complete", "hoard", h.Name, "direction", direction)
	}
	return errors.Join(errs...)
}

func (e *Engine) syncHoard(h *hoard.Hoard, direction hoard.Direction, force bool) error {
	failedPiles, err := e.missingSources(h, direction)
	if err != nil {
		return err
	}

	diffs, err := e.classifier().HoardDiffs(h)
	if err != nil {
		return err
	}
	plan := planFiles(diffs, direction)
	if len(failedPiles) > 0 {
		kept := plan[:0]
		for _, pf := range plan {
			if _, bad := failedPiles[pf.pile]; !bad {
				kept = append(kept, pf)
			}
		}
		plan = kept
	}

	// The record is built from the source side before anything is copied, so
	// it describes exactly the state this operation commits.
	rec, err := e.buildRecord(h, plan, direction)
	if err != nil {
		return err
	}
	for name := range failedPiles {
		delete(rec.Piles, name)
	}
	if len(rec.Piles) == 0 {
		return pileErrors(failedPiles)
	}

	if force {
		if err := e.checkConflict(h, rec, direction); err != nil {
			e.logger.Warn("ignoring conflict because of --force", "hoard", h.Name, "conflict", err)
		}
	} else {
		if err := e.checkConflict(h, rec, direction); err != nil {
			return err
		}
		if err := e.checkLastPaths(h); err != nil {
			return err
		}
	}

	for name, ferr := range e.applyPlan(plan, direction) {
		failedPiles[name] = ferr
		// Drop the failed pile from the record so the log never claims state
		// that was not committed.
		delete(rec.Piles, name)
	}
	if len(rec.Piles) == 0 {
		return pileErrors(failedPiles)
	}

	if err := e.store.Append(e.machineID, rec); err != nil {
		return err
	}
	if err := e.store.SetLastPaths(e.machineID, h, rec.Timestamp); err != nil {
		return err
	}

	return pileErrors(failedPiles)
}

// missingSources flags piles whose source side is absent while the other side
// or the newest record still lists content. Without this check a vanished
// system tree (an unmounted drive, say) would read as a mass deletion.
func (e *Engine) missingSources(h *hoard.Hoard, direction hoard.Direction) (map[hoard.PileName]error, error) {
	latest, err := e.store.Latest(h.Name)
	if err != nil {
		return nil, err
	}

	failed := make(map[hoard.PileName]error)
	for i := range h.Piles {
		p := &h.Piles[i]
		src := p.SystemPath
		other := p.StorePath(e.hoardsRoot, h.Name)
		if direction == hoard.Restore {
			src, other = other, src
		}

		if _, err := os.Lstat(src); err == nil {
			continue
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("stat %s: %w", src, err)
		}

		otherExists := false
		if _, err := os.Lstat(other); err == nil {
			otherExists = true
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("stat %s: %w", other, err)
		}
		if otherExists || recordLists(latest, p.Name) {
			failed[p.Name] = fmt.Errorf("%w: %s", ErrSourceMissing, src)
			e.logger.Error("source path missing", "pile", string(p.Name), "path", src)
		}
	}
	return failed, nil
}

// recordLists reports whether the record holds a checksum for any file of the
// named pile.
func recordLists(entry *history.Entry, name hoard.PileName) bool {
	if entry == nil {
		return false
	}
	for _, f := range entry.Record.AllFiles() {
		if f.Pile == name {
			return true
		}
	}
	return false
}

// pileErrors joins per-pile failures, or returns nil when there are none.
func pileErrors(failed map[hoard.PileName]error) error {
	errs := make([]error, 0, len(failed))
	for name, ferr := range failed {
		errs = append(errs, fmt.Errorf("pile %q: %w", name, ferr))
	}
	return errors.Join(errs...)
}

// planFiles maps the per-file diff classification to concrete actions for
// the given direction. Mixed changes count as both local and remote, and
// out-of-band changes count as remote: backing up overwrites them, restoring
// keeps them.
func planFiles(diffs []diff.FileDiff, direction hoard.Direction) []plannedFile {
	plan := make([]plannedFile, 0, len(diffs))
	for _, d := range diffs {
		pf := plannedFile{
			pile:    d.Pile,
			relPath: d.RelPath,
			system:  d.SystemPath,
			store:   d.StorePath,
			alg:     d.Algorithm,
			act:     actionNothing,
		}
		local := d.Source == diff.SourceLocal
		switch d.Kind {
		case diff.KindModified, diff.KindPermissions:
			pf.act = actionModify
		case diff.KindCreated, diff.KindRecreated:
			switch {
			case d.Source == diff.SourceMixed:
				pf.act = actionCreate
			case (direction == hoard.Backup) == local:
				pf.act = actionCreate
			default:
				pf.act = actionDelete
			}
		case diff.KindDeleted:
			switch {
			case d.Source == diff.SourceMixed:
				pf.act = actionDelete
			case (direction == hoard.Backup) == local:
				pf.act = actionDelete
			default:
				pf.act = actionCreate
			}
		case diff.KindNonexistent:
			pf.act = actionMissing
		}
		plan = append(plan, pf)
	}
	return plan
}

// buildRecord computes the operation record for the plan. File checksums
// come from the side the operation reads from: the system for backups, the
// stored copies for restores.
func (e *Engine) buildRecord(h *hoard.Hoard, plan []plannedFile, direction hoard.Direction) (*history.Record, error) {
	piles := make(map[hoard.PileName]*history.PileChanges)
	changesFor := func(name hoard.PileName) *history.PileChanges {
		p, ok := piles[name]
		if !ok {
			p = history.NewPileChanges()
			piles[name] = p
		}
		return p
	}
	// Every pile gets an entry, even an all-quiet one.
	for _, p := range h.Piles {
		changesFor(p.Name)
	}

	for _, pf := range plan {
		if pf.act == actionMissing {
			continue
		}
		changes := changesFor(pf.pile)
		if pf.act == actionDelete {
			changes.Deleted = append(changes.Deleted, pf.relPath)
			continue
		}

		src := pf.system
		if direction == hoard.Restore {
			src = pf.store
		}
		if pf.act == actionNothing {
			// Unchanged files keep whichever copy exists.
			if _, err := os.Lstat(src); err != nil {
				if direction == hoard.Restore {
					src = pf.system
				} else {
					src = pf.store
				}
			}
		}
		sum, err := checksum.File(src, pf.alg)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, err
		}
		switch pf.act {
		case actionCreate:
			changes.Created[pf.relPath] = sum
		case actionModify:
			changes.Modified[pf.relPath] = sum
		default:
			changes.Unmodified[pf.relPath] = sum
		}
	}

	return &history.Record{
		Timestamp: e.clock.Now().UTC(),
		Direction: direction,
		Hoard:     h.Name,
		Anonymous: h.Anonymous(),
		Piles:     piles,
	}, nil
}

// applyPlan copies and deletes files per the plan. A failing pile is skipped
// as a unit and reported in the returned map; other piles keep going.
// Completed work is never rolled back.
func (e *Engine) applyPlan(plan []plannedFile, direction hoard.Direction) map[hoard.PileName]error {
	failed := make(map[hoard.PileName]error)
	for _, pf := range plan {
		if _, bad := failed[pf.pile]; bad {
			continue
		}

		src, dst := pf.system, pf.store
		if direction == hoard.Restore {
			src, dst = pf.store, pf.system
		}

		var err error
		switch pf.act {
		case actionCreate, actionModify:
			err = copyFile(src, dst)
			if errors.Is(err, os.ErrNotExist) {
				err = fmt.Errorf("%w: %s", ErrSourceMissing, src)
			}
		case actionDelete:
			err = os.Remove(dst)
			if errors.Is(err, os.ErrNotExist) {
				err = nil
			}
		}
		if err != nil {
			e.logger.Error("file operation failed", "pile", string(pf.pile), "path", dst, "error", err)
			failed[pf.pile] = err
			continue
		}
		if pf.act == actionCreate || pf.act == actionModify || pf.act == actionDelete {
			e.logger.Debug("file synchronized", "action", pf.act.String(), "path", dst)
		}
	}
	return failed
}

func (a action) String() string {
	switch a {
	case actionNothing:
		return "nothing"
	case actionCreate:
		return "create"
	case actionModify:
		return "modify"
	case actionDelete:
		return "delete"
	case actionMissing:
		return "missing"
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// copyFile copies src to dst through a temp file in dst's directory, fsyncing
// before the rename and preserving src's permission bits.
func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	info, err := os.Lstat(src)
	if err != nil {
		return err
	}

	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dst)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, info.Mode().Perm()&fs.ModePerm); err != nil {
		return fmt.Errorf("setting mode on %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return fmt.Errorf("renaming %s to %s: %w", tmpName, dst, err)
	}
	return nil
}
