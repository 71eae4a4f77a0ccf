// Package diff compares three views of a hoard's files: the stored copy, the
// live filesystem, and the last recorded state across machines. The result is
// a per-file classification that both the diff and status commands and the
// backup/restore planner consume. Nothing in this package mutates state.
package diff

import (
	"fmt"
	"io/fs"

	"hoard-go/internal/checksum"
	"hoard-go/internal/hoard"
)

// Source indicates where a change originated.
type Source int

const (
	// SourceLocal means the live filesystem diverged from the stored copy.
	SourceLocal Source = iota
	// SourceRemote means another machine's last recorded operation diverged.
	SourceRemote
	// SourceMixed means both sides diverged from the last common record.
	SourceMixed
	// SourceUnknown means the stored copy was altered without a recorded
	// operation, or a record never got synced.
	SourceUnknown
)

func (s Source) String() string {
	switch s {
	case SourceLocal:
		return "locally"
	case SourceRemote:
		return "remotely"
	case SourceMixed:
		return "locally and remotely"
	case SourceUnknown:
		return "out-of-band"
	}
	return fmt.Sprintf("Source(%d)", int(s))
}

// Kind is the per-file classification.
type Kind int

const (
	KindUnchanged Kind = iota
	KindCreated
	KindRecreated
	KindModified
	KindDeleted
	KindPermissions
	// KindNonexistent marks a configured path that exists nowhere.
	KindNonexistent
)

func (k Kind) String() string {
	switch k {
	case KindUnchanged:
		return "unchanged"
	case KindCreated:
		return "created"
	case KindRecreated:
		return "recreated"
	case KindModified:
		return "modified"
	case KindDeleted:
		return "deleted"
	case KindPermissions:
		return "permissions"
	case KindNonexistent:
		return "nonexistent"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// FileDiff is the classification of a single managed file.
type FileDiff struct {
	Pile       hoard.PileName
	RelPath    string
	SystemPath string
	StorePath  string
	Algorithm  checksum.Algorithm

	Kind   Kind
	Source Source

	// Binary is set on modifications where at least one side is not valid
	// UTF-8. Binary files never get a unified diff.
	Binary bool

	// UnifiedDiff is the textual diff between the stored copy and the system
	// file, when both are text and differ.
	UnifiedDiff string

	StoreMode  fs.FileMode
	SystemMode fs.FileMode
}

// Changed reports whether the diff represents an actual divergence.
func (d FileDiff) Changed() bool {
	return d.Kind != KindUnchanged && d.Kind != KindNonexistent
}
