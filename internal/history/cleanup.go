package history

import (
	"fmt"
	"os"

	"hoard-go/internal/hoard"
)

// Cleanup bounds log growth and returns how many record files were deleted.
//
// For every machine/hoard pair, records are walked in chronological order and
// each run of same-direction operations collapses to its most recent member.
// Direction-change boundaries are preserved, so the newest backup and the
// newest restore per machine always survive, and so does enough history to
// reconstruct the last operation of either direction. Running cleanup twice
// with no new operations in between deletes nothing the second time. The
// last-paths slot is not history and is never touched.
func (s *Store) Cleanup() (int, error) {
	machines, err := s.Machines()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, machineID := range machines {
		hoards, err := s.Hoards(machineID)
		if err != nil {
			return removed, err
		}
		for _, hoardName := range hoards {
			n, err := s.cleanupHoard(machineID, hoardName)
			removed += n
			if err != nil {
				return removed, err
			}
		}
	}
	return removed, nil
}

func (s *Store) cleanupHoard(machineID, hoardName string) (int, error) {
	paths, err := s.recordPaths(machineID, hoardName)
	if err != nil || len(paths) == 0 {
		return 0, err
	}

	directions := make([]hoard.Direction, len(paths))
	for i, path := range paths {
		rec, err := ReadRecord(path)
		if err != nil {
			return 0, err
		}
		directions[i] = rec.Direction
	}

	removed := 0
	for i := 0; i < len(paths)-1; i++ {
		if directions[i] != directions[i+1] {
			// Direction-change boundary: this record is the last of its run.
			continue
		}
		if err := os.Remove(paths[i]); err != nil {
			return removed, fmt.Errorf("removing %s: %w", paths[i], err)
		}
		removed++
	}
	return removed, nil
}
