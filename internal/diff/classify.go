package diff

import (
	"errors"
	"fmt"
	"os"

	"hoard-go/internal/checksum"
	"hoard-go/internal/history"
	"hoard-go/internal/hoard"
)

// Classifier derives per-file diffs for a hoard from the operation log, the
// stored copies and the live filesystem.
type Classifier struct {
	Store      *history.Store
	MachineID  string
	HoardsRoot string
}

// op mirrors history.Op with an explicit "no change" state.
type op int

const (
	opNone op = iota
	opCreate
	opModify
	opDelete
)

func fromHistoryOp(o history.Op) op {
	switch o {
	case history.OpCreate:
		return opCreate
	case history.OpModify:
		return opModify
	default:
		return opDelete
	}
}

// HoardDiffs classifies every managed file of the hoard. Results are sorted
// by pile then relative path. Legacy records in the log surface as
// history.ErrUpgradeRequired.
func (c *Classifier) HoardDiffs(h *hoard.Hoard) ([]FileDiff, error) {
	local, err := c.Store.LatestLocal(c.MachineID, h.Name)
	if err != nil {
		return nil, err
	}
	remote, err := c.Store.LatestRemoteBackup(c.MachineID, h.Name)
	if err != nil {
		return nil, err
	}

	localIsLatest := local != nil &&
		(remote == nil || local.Record.Timestamp.After(remote.Record.Timestamp))
	latest := remote
	if localIsLatest {
		latest = local
	}

	items, err := h.Items(c.HoardsRoot)
	if err != nil {
		return nil, err
	}

	diffs := make([]FileDiff, 0, len(items))
	for _, item := range items {
		d, err := c.classifyItem(item, local, remote, latest, localIsLatest)
		if err != nil {
			return nil, fmt.Errorf("classifying %s: %w", item.SystemPath, err)
		}
		diffs = append(diffs, d)
	}
	return diffs, nil
}

func (c *Classifier) classifyItem(item hoard.Item, local, remote, latest *history.Entry, localIsLatest bool) (FileDiff, error) {
	d := FileDiff{
		Pile:       item.Pile,
		RelPath:    item.RelPath,
		SystemPath: item.SystemPath,
		StorePath:  item.StorePath,
		Algorithm:  item.Algorithm,
	}

	var expectedStore checksum.Checksum
	expectedStoreOK := false
	if latest != nil {
		expectedStore, expectedStoreOK = latest.Record.ChecksumFor(item.Pile, item.RelPath)
	}

	storeAlg := item.Algorithm
	if expectedStoreOK {
		storeAlg = expectedStore.Algorithm
	}
	storeSum, storeOK, err := fileChecksum(item.StorePath, storeAlg)
	if err != nil {
		return d, err
	}

	expectedSystem, expectedSystemOK := expectedStore, expectedStoreOK
	if !localIsLatest {
		expectedSystemOK = false
		if local != nil {
			expectedSystem, expectedSystemOK = local.Record.ChecksumFor(item.Pile, item.RelPath)
		}
	}
	systemAlg := item.Algorithm
	if expectedSystemOK {
		systemAlg = expectedSystem.Algorithm
	}
	systemSum, systemOK, err := fileChecksum(item.SystemPath, systemAlg)
	if err != nil {
		return d, err
	}

	localOp := opNone
	switch {
	case !expectedSystemOK && systemOK:
		localOp = opCreate
	case expectedSystemOK && !systemOK:
		localOp = opDelete
	case expectedSystemOK && systemOK && systemSum != expectedSystem:
		localOp = opModify
	}

	remoteOp := opNone
	if !localIsLatest && remote != nil {
		recorded, ok, err := remote.Record.FileOperation(item.Pile, item.RelPath)
		if err != nil {
			return d, err
		}
		if ok {
			remoteOp = fromHistoryOp(recorded)
		}
	}

	unexpectedOp := opNone
	switch {
	case storeOK && !expectedStoreOK:
		unexpectedOp = opCreate
	case !storeOK && expectedStoreOK:
		unexpectedOp = opDelete
	case storeOK && expectedStoreOK && storeSum != expectedStore:
		unexpectedOp = opModify
	}

	cmp, err := compareFiles(item.StorePath, item.SystemPath)
	if err != nil {
		return d, err
	}
	d.Binary = !cmp.text
	d.UnifiedDiff = cmp.unified
	d.StoreMode = cmp.storeMode
	d.SystemMode = cmp.systemMode

	d.Kind, d.Source = classify(localOp, remoteOp, unexpectedOp, cmp, storeOK || systemOK)
	if d.Kind == KindCreated && (wasDeleted(latest, item) || wasDeleted(local, item)) {
		d.Kind = KindRecreated
	}
	return d, nil
}

// classify resolves the three change observations into a single judgment.
// An out-of-band store change trumps everything else, since neither log can
// explain it.
func classify(localOp, remoteOp, unexpectedOp op, cmp comparison, exists bool) (Kind, Source) {
	if unexpectedOp != opNone {
		return kindFor(unexpectedOp), SourceUnknown
	}

	switch {
	case localOp == opNone && remoteOp == opNone:
		if cmp.kind == contentPermissions {
			return KindPermissions, SourceLocal
		}
		if !exists {
			return KindNonexistent, SourceLocal
		}
		return KindUnchanged, SourceLocal
	case remoteOp == opNone:
		return kindFor(localOp), SourceLocal
	case localOp == opNone:
		if remoteOp == opDelete {
			return KindDeleted, SourceRemote
		}
		// A remote create of a file that also exists here reads as a
		// modification from this machine's point of view.
		if cmp.kind == contentSystemMissing {
			return KindCreated, SourceRemote
		}
		return KindModified, SourceRemote
	}

	// Both sides changed.
	switch {
	case localOp == opDelete && remoteOp == opDelete:
		return KindDeleted, SourceMixed
	case localOp == opCreate && remoteOp == opDelete:
		// The remote deletion already agrees with the state the local
		// creation started from.
		return KindCreated, SourceLocal
	case localOp == opDelete:
		return KindDeleted, SourceLocal
	case remoteOp == opDelete:
		return KindDeleted, SourceRemote
	case localOp == opCreate:
		return KindCreated, SourceMixed
	default:
		return KindModified, SourceMixed
	}
}

func kindFor(o op) Kind {
	switch o {
	case opCreate:
		return KindCreated
	case opDelete:
		return KindDeleted
	default:
		return KindModified
	}
}

// wasDeleted reports whether the entry's record explicitly lists the file as
// deleted, which turns a plain creation into a recreation.
func wasDeleted(entry *history.Entry, item hoard.Item) bool {
	if entry == nil {
		return false
	}
	p, ok := entry.Record.Pile(item.Pile)
	if !ok {
		return false
	}
	o, ok := p.Operation(item.RelPath)
	return ok && o == history.OpDelete
}

func fileChecksum(path string, alg checksum.Algorithm) (checksum.Checksum, bool, error) {
	sum, err := checksum.File(path, alg)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return checksum.Checksum{}, false, nil
		}
		return checksum.Checksum{}, false, err
	}
	return sum, true, nil
}
