package history

import (
	"encoding/json"
	"fmt"
	"sort"

	"hoard-go/internal/checksum"
	"hoard-go/internal/hoard"
)

// Upgrade rewrites legacy records into the bucketed schema and returns how
// many records were converted.
//
// Classification needs the state a record was written against, so records for
// each hoard are replayed oldest to newest across every machine while an
// accumulated view of file checksums is maintained. A file absent from the
// accumulated view is created; present with a different checksum, modified;
// present with the same checksum, unmodified; and files the accumulated view
// knows but the record omits are deleted. Converted records are written back
// to their original paths; a second run finds nothing left to convert.
func (s *Store) Upgrade() (int, error) {
	machines, err := s.Machines()
	if err != nil {
		return 0, err
	}

	hoardNames := make(map[string]bool)
	for _, machineID := range machines {
		names, err := s.Hoards(machineID)
		if err != nil {
			return 0, err
		}
		for _, n := range names {
			hoardNames[n] = true
		}
	}

	converted := 0
	for hoardName := range hoardNames {
		n, err := s.upgradeHoard(machines, hoardName)
		converted += n
		if err != nil {
			return converted, err
		}
	}
	return converted, nil
}

func (s *Store) upgradeHoard(machines []string, hoardName string) (int, error) {
	var entries []*Entry
	for _, machineID := range machines {
		paths, err := s.recordPaths(machineID, hoardName)
		if err != nil {
			return 0, err
		}
		for _, path := range paths {
			rec, err := ReadRecord(path)
			if err != nil {
				return 0, err
			}
			entries = append(entries, &Entry{MachineID: machineID, Path: path, Record: rec})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		ti, tj := entries[i].Record.Timestamp, entries[j].Record.Timestamp
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return entries[i].Path < entries[j].Path
	})

	converted := 0
	state := make(map[hoard.PileName]map[string]checksum.Checksum)
	for _, entry := range entries {
		rec := entry.Record
		if rec.Legacy {
			convertLegacy(rec, state)
			data, err := json.Marshal(rec)
			if err != nil {
				return converted, fmt.Errorf("encoding upgraded record %s: %w", entry.Path, err)
			}
			if err := atomicWriteFile(entry.Path, data); err != nil {
				return converted, fmt.Errorf("rewriting %s: %w", entry.Path, err)
			}
			converted++
		}
		applyRecord(rec, state)
	}
	return converted, nil
}

// convertLegacy rebuckets a legacy record in place against the accumulated
// file state. Legacy flat maps live in the Unmodified bucket as a container.
func convertLegacy(rec *Record, state map[hoard.PileName]map[string]checksum.Checksum) {
	for name, p := range rec.Piles {
		flat := p.Unmodified
		known := state[name]

		next := NewPileChanges()
		for rel, sum := range flat {
			prev, seen := known[rel]
			switch {
			case !seen:
				next.Created[rel] = sum
			case prev != sum:
				next.Modified[rel] = sum
			default:
				next.Unmodified[rel] = sum
			}
		}
		for rel := range known {
			if _, ok := flat[rel]; !ok {
				next.Deleted = append(next.Deleted, rel)
			}
		}
		sort.Strings(next.Deleted)
		rec.Piles[name] = next
	}
	rec.Legacy = false
}

// applyRecord folds a record's file outcomes into the accumulated state.
func applyRecord(rec *Record, state map[hoard.PileName]map[string]checksum.Checksum) {
	for name, p := range rec.Piles {
		known := state[name]
		if known == nil {
			known = make(map[string]checksum.Checksum)
			state[name] = known
		}
		for rel, sum := range p.Created {
			known[rel] = sum
		}
		for rel, sum := range p.Modified {
			known[rel] = sum
		}
		for rel, sum := range p.Unmodified {
			known[rel] = sum
		}
		for _, rel := range p.Deleted {
			delete(known, rel)
		}
	}
}
