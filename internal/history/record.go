package history

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"hoard-go/internal/checksum"
	"hoard-go/internal/hoard"
)

// Op classifies what happened to a single file in an operation.
type Op int

const (
	// OpCreate means the file did not exist in the last known state.
	OpCreate Op = iota
	// OpModify means the content differs from the last known state.
	OpModify
	// OpDelete means the file existed before and is now absent.
	OpDelete
)

func (o Op) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpModify:
		return "modify"
	case OpDelete:
		return "delete"
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// PileChanges holds the per-pile file-change map of a record. Each relative
// path appears in at most one bucket.
type PileChanges struct {
	Created    map[string]checksum.Checksum `json:"created"`
	Modified   map[string]checksum.Checksum `json:"modified"`
	Deleted    []string                     `json:"deleted"`
	Unmodified map[string]checksum.Checksum `json:"unmodified"`
}

// NewPileChanges returns an empty change set with all buckets allocated.
func NewPileChanges() *PileChanges {
	return &PileChanges{
		Created:    make(map[string]checksum.Checksum),
		Modified:   make(map[string]checksum.Checksum),
		Unmodified: make(map[string]checksum.Checksum),
	}
}

// ChecksumFor returns the recorded checksum for rel, or false if the file is
// absent from the record or listed as deleted.
func (p *PileChanges) ChecksumFor(rel string) (checksum.Checksum, bool) {
	if c, ok := p.Created[rel]; ok {
		return c, true
	}
	if c, ok := p.Modified[rel]; ok {
		return c, true
	}
	if c, ok := p.Unmodified[rel]; ok {
		return c, true
	}
	return checksum.Checksum{}, false
}

// Operation returns the operation recorded for rel, if any. Unmodified files
// have no operation.
func (p *PileChanges) Operation(rel string) (Op, bool) {
	if _, ok := p.Created[rel]; ok {
		return OpCreate, true
	}
	if _, ok := p.Modified[rel]; ok {
		return OpModify, true
	}
	for _, d := range p.Deleted {
		if d == rel {
			return OpDelete, true
		}
	}
	return 0, false
}

func (p *PileChanges) empty() bool {
	return len(p.Created) == 0 && len(p.Modified) == 0 && len(p.Deleted) == 0 && len(p.Unmodified) == 0
}

// FileInfo is one file mentioned by a record. Checksum is zero for deleted files.
type FileInfo struct {
	Pile     hoard.PileName
	RelPath  string
	Checksum checksum.Checksum
}

// Record is one immutable operation log entry: the file-level outcome of a
// single backup or restore of one hoard.
//
// Legacy records (schema v1) carry only flat path→checksum maps; their files
// are exposed through ChecksumFor/AllFiles, but change classification is
// unavailable until the log is upgraded.
type Record struct {
	Timestamp time.Time
	Direction hoard.Direction
	Hoard     string
	Anonymous bool
	Piles     map[hoard.PileName]*PileChanges

	// Legacy marks a record decoded from the v1 schema. Its flat file maps
	// are stored in the Unmodified buckets purely as a container; the bucket
	// choice carries no meaning until Upgrade rewrites the record.
	Legacy bool
}

// Pile returns the change set for the named pile.
func (r *Record) Pile(name hoard.PileName) (*PileChanges, bool) {
	p, ok := r.Piles[name]
	return p, ok
}

// ChecksumFor returns the checksum the record holds for the given file.
func (r *Record) ChecksumFor(pile hoard.PileName, rel string) (checksum.Checksum, bool) {
	p, ok := r.Piles[pile]
	if !ok {
		return checksum.Checksum{}, false
	}
	return p.ChecksumFor(rel)
}

// FileOperation returns the change recorded for the given file. It fails
// with ErrUpgradeRequired for legacy records, which cannot classify changes.
func (r *Record) FileOperation(pile hoard.PileName, rel string) (Op, bool, error) {
	if r.Legacy {
		return 0, false, ErrUpgradeRequired
	}
	p, ok := r.Piles[pile]
	if !ok {
		return 0, false, nil
	}
	op, ok := p.Operation(rel)
	return op, ok, nil
}

// AllFiles returns every file the record knows a checksum for, sorted by
// pile then path. Deleted files are not included.
func (r *Record) AllFiles() []FileInfo {
	var files []FileInfo
	for name, p := range r.Piles {
		for _, m := range []map[string]checksum.Checksum{p.Created, p.Modified, p.Unmodified} {
			for rel, sum := range m {
				files = append(files, FileInfo{Pile: name, RelPath: rel, Checksum: sum})
			}
		}
	}
	sort.Slice(files, func(i, j int) bool {
		if files[i].Pile != files[j].Pile {
			return files[i].Pile < files[j].Pile
		}
		return files[i].RelPath < files[j].RelPath
	})
	return files
}

// SameFiles reports whether two records describe the identical set of files
// and checksums, and if not, returns the files of r that other does not
// agree on.
func (r *Record) SameFiles(other *Record) (diff []FileInfo) {
	mine := r.AllFiles()
	theirs := other.AllFiles()

	index := make(map[string]checksum.Checksum, len(theirs))
	for _, f := range theirs {
		index[string(f.Pile)+"\x00"+f.RelPath] = f.Checksum
	}
	for _, f := range mine {
		if got, ok := index[string(f.Pile)+"\x00"+f.RelPath]; !ok || got != f.Checksum {
			diff = append(diff, f)
		}
		delete(index, string(f.Pile)+"\x00"+f.RelPath)
	}
	for _, f := range theirs {
		if _, stillThere := index[string(f.Pile)+"\x00"+f.RelPath]; stillThere {
			diff = append(diff, f)
		}
	}
	return diff
}

// recordJSON is the current (v2) wire schema.
type recordJSON struct {
	Timestamp time.Time       `json:"timestamp"`
	Direction hoard.Direction `json:"direction"`
	Hoard     string          `json:"hoard"`
	Files     json.RawMessage `json:"files"`
}

// legacyRecordJSON is the v1 wire schema: flat path→checksum maps with no
// change classification.
type legacyRecordJSON struct {
	Timestamp time.Time       `json:"timestamp"`
	IsBackup  bool            `json:"is_backup"`
	HoardName string          `json:"hoard_name"`
	Hoard     json.RawMessage `json:"hoard"`
}

// pileChangesJSON mirrors PileChanges with deterministic deleted ordering.
type pileChangesJSON struct {
	Created    map[string]checksum.Checksum `json:"created"`
	Modified   map[string]checksum.Checksum `json:"modified"`
	Deleted    []string                     `json:"deleted"`
	Unmodified map[string]checksum.Checksum `json:"unmodified"`
}

func (p *PileChanges) toJSON() pileChangesJSON {
	deleted := append([]string(nil), p.Deleted...)
	sort.Strings(deleted)
	if deleted == nil {
		deleted = []string{}
	}
	out := pileChangesJSON{
		Created:    p.Created,
		Modified:   p.Modified,
		Deleted:    deleted,
		Unmodified: p.Unmodified,
	}
	if out.Created == nil {
		out.Created = map[string]checksum.Checksum{}
	}
	if out.Modified == nil {
		out.Modified = map[string]checksum.Checksum{}
	}
	if out.Unmodified == nil {
		out.Unmodified = map[string]checksum.Checksum{}
	}
	return out
}

// MarshalJSON always writes the current schema. Legacy records are never
// re-serialized without going through Upgrade first.
func (r *Record) MarshalJSON() ([]byte, error) {
	if r.Legacy {
		return nil, fmt.Errorf("refusing to serialize un-upgraded legacy record for hoard %q", r.Hoard)
	}
	var files any
	if r.Anonymous {
		p, ok := r.Piles[hoard.AnonymousPile]
		if !ok {
			p = NewPileChanges()
		}
		files = p.toJSON()
	} else {
		named := make(map[hoard.PileName]pileChangesJSON, len(r.Piles))
		for name, p := range r.Piles {
			if name == hoard.AnonymousPile {
				return nil, fmt.Errorf("record for hoard %q mixes anonymous and named piles", r.Hoard)
			}
			named[name] = p.toJSON()
		}
		files = named
	}
	raw, err := json.Marshal(files)
	if err != nil {
		return nil, err
	}
	return json.Marshal(recordJSON{
		Timestamp: r.Timestamp.UTC(),
		Direction: r.Direction,
		Hoard:     r.Hoard,
		Files:     raw,
	})
}

// UnmarshalJSON accepts both the current and the legacy schema. Anything
// else is an error: an unreadable record must surface, not be skipped.
func (r *Record) UnmarshalJSON(data []byte) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("decoding record: %w", err)
	}

	if _, ok := probe["direction"]; ok {
		return r.unmarshalCurrent(data)
	}
	if _, ok := probe["is_backup"]; ok {
		return r.unmarshalLegacy(data)
	}
	return fmt.Errorf("record matches no known operation log schema")
}

func (r *Record) unmarshalCurrent(data []byte) error {
	var raw recordJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decoding record: %w", err)
	}
	if !raw.Direction.Valid() {
		return fmt.Errorf("unknown direction %q", raw.Direction)
	}

	r.Timestamp = raw.Timestamp
	r.Direction = raw.Direction
	r.Hoard = raw.Hoard
	r.Legacy = false
	r.Piles = make(map[hoard.PileName]*PileChanges)

	// An anonymous hoard stores a single pile object; a named hoard stores a
	// map of pile name to pile object. Telling them apart means attempting a
	// strict decode of the bucket shape first.
	if anon, ok := decodePileChanges(raw.Files); ok {
		r.Anonymous = true
		r.Piles[hoard.AnonymousPile] = anon
		return r.checkDisjoint()
	}

	var named map[hoard.PileName]json.RawMessage
	if err := json.Unmarshal(raw.Files, &named); err != nil {
		return fmt.Errorf("decoding record files: %w", err)
	}
	r.Anonymous = false
	for name, rawPile := range named {
		if name == hoard.AnonymousPile {
			return fmt.Errorf("record mixes anonymous and named piles")
		}
		p, ok := decodePileChanges(rawPile)
		if !ok {
			return fmt.Errorf("decoding changes for pile %q", name)
		}
		r.Piles[name] = p
	}
	return r.checkDisjoint()
}

func (r *Record) unmarshalLegacy(data []byte) error {
	var raw legacyRecordJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decoding legacy record: %w", err)
	}

	r.Timestamp = raw.Timestamp
	r.Hoard = raw.HoardName
	r.Legacy = true
	r.Direction = hoard.Restore
	if raw.IsBackup {
		r.Direction = hoard.Backup
	}
	r.Piles = make(map[hoard.PileName]*PileChanges)

	// Anonymous form first: a flat rel→checksum map.
	var flat map[string]checksum.Checksum
	if err := strictUnmarshal(raw.Hoard, &flat); err == nil {
		r.Anonymous = true
		p := NewPileChanges()
		p.Unmodified = flat
		if p.Unmodified == nil {
			p.Unmodified = map[string]checksum.Checksum{}
		}
		r.Piles[hoard.AnonymousPile] = p
		return nil
	}

	var named map[hoard.PileName]map[string]checksum.Checksum
	if err := strictUnmarshal(raw.Hoard, &named); err != nil {
		return fmt.Errorf("decoding legacy record files: %w", err)
	}
	r.Anonymous = false
	for name, files := range named {
		if name == hoard.AnonymousPile {
			return fmt.Errorf("legacy record mixes anonymous and named piles")
		}
		p := NewPileChanges()
		p.Unmodified = files
		r.Piles[name] = p
	}
	return nil
}

// checkDisjoint enforces the bucket invariant: a path appears in at most one
// bucket per pile.
func (r *Record) checkDisjoint() error {
	for name, p := range r.Piles {
		seen := make(map[string]int)
		for rel := range p.Created {
			seen[rel]++
		}
		for rel := range p.Modified {
			seen[rel]++
		}
		for rel := range p.Unmodified {
			seen[rel]++
		}
		for _, rel := range p.Deleted {
			seen[rel]++
		}
		for rel, n := range seen {
			if n > 1 {
				return fmt.Errorf("pile %q: path %q appears in %d buckets", name, rel, n)
			}
		}
	}
	return nil
}

// decodePileChanges strictly decodes a single pile's bucket object.
func decodePileChanges(raw json.RawMessage) (*PileChanges, bool) {
	var pj pileChangesJSON
	if err := strictUnmarshal(raw, &pj); err != nil {
		return nil, false
	}
	p := &PileChanges{
		Created:    pj.Created,
		Modified:   pj.Modified,
		Deleted:    pj.Deleted,
		Unmodified: pj.Unmodified,
	}
	if p.Created == nil {
		p.Created = map[string]checksum.Checksum{}
	}
	if p.Modified == nil {
		p.Modified = map[string]checksum.Checksum{}
	}
	if p.Unmodified == nil {
		p.Unmodified = map[string]checksum.Checksum{}
	}
	return p, true
}

func strictUnmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
