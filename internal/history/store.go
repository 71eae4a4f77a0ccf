package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/google/uuid"

	"hoard-go/internal/hoard"
)

// logFileRe matches operation record filenames:
// zero-padded year_month_day-hour_minute_second.microseconds.log.
var logFileRe = regexp.MustCompile(`^[0-9]{4}(_[0-9]{2}){2}-([0-9]{2}_){2}[0-9]{2}\.[0-9]{6}\.log$`)

// recordFilename derives a record's filename from its timestamp. The format
// sorts lexically in chronological order and carries microseconds so two
// operations on the same machine never collide in practice.
func recordFilename(t time.Time) string {
	return t.UTC().Format("2006_01_02-15_04_05.000000") + ".log"
}

// Store reads and writes operation records under a history root directory.
// There is no in-memory log: "latest" is always re-derived from a directory
// listing, because other machines append to the same store out of band.
type Store struct {
	root string
}

// NewStore creates a store rooted at <data-dir>/history (the directory need
// not exist yet).
func NewStore(root string) *Store {
	return &Store{root: root}
}

// Root returns the history root directory.
func (s *Store) Root() string { return s.root }

func (s *Store) machineDir(machineID string) string {
	return filepath.Join(s.root, machineID)
}

func (s *Store) hoardDir(machineID, hoardName string) string {
	return filepath.Join(s.machineDir(machineID), hoardName)
}

// Entry is a record together with where it came from.
type Entry struct {
	MachineID string
	Path      string
	Record    *Record
}

// Append writes a new immutable record for the given machine and hoard,
// creating directories as needed. Existing records are never touched.
func (s *Store) Append(machineID string, rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding operation record: %w", err)
	}
	path := filepath.Join(s.hoardDir(machineID, rec.Hoard), recordFilename(rec.Timestamp))
	if err := atomicWriteFile(path, data); err != nil {
		return fmt.Errorf("writing operation record: %w", err)
	}
	return nil
}

// Machines lists every machine identity that has written to this store.
func (s *Store) Machines() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing history root: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := uuid.Parse(e.Name()); err != nil {
			continue
		}
		ids = append(ids, e.Name())
	}
	sort.Strings(ids)
	return ids, nil
}

// Hoards lists the hoard names a machine has recorded operations for.
func (s *Store) Hoards(machineID string) ([]string, error) {
	entries, err := os.ReadDir(s.machineDir(machineID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing history for machine %s: %w", machineID, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// recordPaths returns the record files for one machine/hoard in lexical
// (chronological) order.
func (s *Store) recordPaths(machineID, hoardName string) ([]string, error) {
	dir := s.hoardDir(machineID, hoardName)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !logFileRe.MatchString(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// ReadRecord parses the record at path. Failures wrap ErrCorruptRecord.
func ReadRecord(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptRecord, path, err)
	}
	return &rec, nil
}

// latestIn returns the newest matching record for one machine/hoard, or nil.
// Ties on timestamp go to the lexically greatest filename; paths are walked
// newest-first so the first match wins.
func (s *Store) latestIn(machineID, hoardName string, backupsOnly bool) (*Entry, error) {
	paths, err := s.recordPaths(machineID, hoardName)
	if err != nil {
		return nil, err
	}
	for i := len(paths) - 1; i >= 0; i-- {
		rec, err := ReadRecord(paths[i])
		if err != nil {
			return nil, err
		}
		if backupsOnly && rec.Direction != hoard.Backup {
			continue
		}
		return &Entry{MachineID: machineID, Path: paths[i], Record: rec}, nil
	}
	return nil, nil
}

// LatestLocal returns the most recent record this machine wrote for the
// hoard, regardless of direction.
func (s *Store) LatestLocal(machineID, hoardName string) (*Entry, error) {
	return s.latestIn(machineID, hoardName, false)
}

// LatestRemoteBackup returns the most recent backup-direction record written
// by any machine other than machineID.
func (s *Store) LatestRemoteBackup(machineID, hoardName string) (*Entry, error) {
	machines, err := s.Machines()
	if err != nil {
		return nil, err
	}
	var newest *Entry
	for _, id := range machines {
		if id == machineID {
			continue
		}
		entry, err := s.latestIn(id, hoardName, true)
		if err != nil {
			return nil, err
		}
		newest = newerEntry(newest, entry)
	}
	return newest, nil
}

// Latest returns the most recent record for the hoard across every machine
// identity that has ever written to the store.
func (s *Store) Latest(hoardName string) (*Entry, error) {
	machines, err := s.Machines()
	if err != nil {
		return nil, err
	}
	var newest *Entry
	for _, id := range machines {
		entry, err := s.latestIn(id, hoardName, false)
		if err != nil {
			return nil, err
		}
		newest = newerEntry(newest, entry)
	}
	return newest, nil
}

// newerEntry picks the newer of two entries by timestamp, breaking exact
// ties by the lexically greater record filename.
func newerEntry(a, b *Entry) *Entry {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case a.Record.Timestamp.After(b.Record.Timestamp):
		return a
	case b.Record.Timestamp.After(a.Record.Timestamp):
		return b
	case filepath.Base(a.Path) >= filepath.Base(b.Path):
		return a
	default:
		return b
	}
}
