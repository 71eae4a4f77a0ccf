// Package hoard defines the entities being synchronized: a Hoard is a named
// backup unit made up of one or more Piles, and a Pile maps a single file or
// a directory tree between this machine and the shared store.
package hoard

import (
	"fmt"
	"path/filepath"

	"hoard-go/internal/checksum"
)

// Direction indicates which way files are being copied.
type Direction string

const (
	// Backup copies from the system to the store.
	Backup Direction = "backup"
	// Restore copies from the store to the system.
	Restore Direction = "restore"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool { return d == Backup || d == Restore }

// PileName identifies a pile within a hoard. The empty name is reserved for
// the single pile of an anonymous hoard.
type PileName string

// AnonymousPile is the name of the sole pile in an anonymous hoard.
const AnonymousPile PileName = ""

// Pile maps one source path on the system to one destination inside the store.
// Whether it is a single file or a directory tree is decided by what exists on
// disk, not by configuration.
type Pile struct {
	Name       PileName
	SystemPath string // absolute
	Checksum   checksum.Algorithm
	Ignore     *IgnoreMatcher
}

// Hoard is a named backup unit.
//
// An anonymous hoard has exactly one pile with the empty name. A named hoard
// has one or more uniquely named piles; insertion order is irrelevant, so
// Piles is kept sorted by name.
type Hoard struct {
	Name  string
	Piles []Pile
}

// Anonymous reports whether the hoard consists of a single unnamed pile.
func (h *Hoard) Anonymous() bool {
	return len(h.Piles) == 1 && h.Piles[0].Name == AnonymousPile
}

// Pile returns the pile with the given name.
func (h *Hoard) Pile(name PileName) (*Pile, bool) {
	for i := range h.Piles {
		if h.Piles[i].Name == name {
			return &h.Piles[i], true
		}
	}
	return nil, false
}

// Validate checks structural invariants: at least one pile, unique pile
// names, the anonymous pile only by itself, and absolute system paths.
func (h *Hoard) Validate() error {
	if h.Name == "" {
		return fmt.Errorf("hoard has no name")
	}
	if len(h.Piles) == 0 {
		return fmt.Errorf("hoard %q has no piles", h.Name)
	}
	seen := make(map[PileName]bool, len(h.Piles))
	for _, p := range h.Piles {
		if seen[p.Name] {
			return fmt.Errorf("hoard %q: duplicate pile name %q", h.Name, p.Name)
		}
		seen[p.Name] = true
		if p.Name == AnonymousPile && len(h.Piles) > 1 {
			return fmt.Errorf("hoard %q mixes anonymous and named piles", h.Name)
		}
		if !filepath.IsAbs(p.SystemPath) {
			return fmt.Errorf("hoard %q pile %q: path %q is not absolute", h.Name, p.Name, p.SystemPath)
		}
	}
	return nil
}

// StorePath returns the directory (or file path, for single-file piles)
// inside the store where the pile's contents live.
func (p *Pile) StorePath(hoardsRoot, hoardName string) string {
	if p.Name == AnonymousPile {
		return filepath.Join(hoardsRoot, hoardName)
	}
	return filepath.Join(hoardsRoot, hoardName, string(p.Name))
}
