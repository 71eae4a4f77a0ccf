package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"hoard-go/internal/hoard"
)

const lastPathsFileName = "last_paths.json"

// HoardPaths remembers where a hoard's piles lived on disk the last time a
// machine synchronized it. Anonymous piles use the empty pile name as key.
type HoardPaths struct {
	Timestamp time.Time                 `json:"timestamp"`
	Piles     map[hoard.PileName]string `json:"piles"`
}

// LastPaths maps hoard names to the pile paths of the machine's most recent
// operation. Unlike operation records this file is overwritten in place: only
// the latest value matters, and it is advisory rather than source of truth.
type LastPaths map[string]HoardPaths

func (s *Store) lastPathsFile(machineID string) string {
	return filepath.Join(s.machineDir(machineID), lastPathsFileName)
}

// ReadLastPaths loads the machine's last-paths slot, returning an empty map
// when the machine has never written one.
func (s *Store) ReadLastPaths(machineID string) (LastPaths, error) {
	path := s.lastPathsFile(machineID)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return LastPaths{}, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var lp LastPaths
	if err := json.Unmarshal(data, &lp); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if lp == nil {
		lp = LastPaths{}
	}
	return lp, nil
}

// SetLastPaths records the pile paths used by an operation on the given
// hoard, overwriting any previous entry for that hoard.
func (s *Store) SetLastPaths(machineID string, h *hoard.Hoard, at time.Time) error {
	lp, err := s.ReadLastPaths(machineID)
	if err != nil {
		return err
	}
	piles := make(map[hoard.PileName]string, len(h.Piles))
	for _, p := range h.Piles {
		piles[p.Name] = p.SystemPath
	}
	lp[h.Name] = HoardPaths{Timestamp: at.UTC(), Piles: piles}

	data, err := json.MarshalIndent(lp, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding last paths: %w", err)
	}
	if err := atomicWriteFile(s.lastPathsFile(machineID), data); err != nil {
		return fmt.Errorf("writing last paths: %w", err)
	}
	return nil
}
