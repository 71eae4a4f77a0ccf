package hoard

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"hoard-go/internal/checksum"
)

// Item is a single file tracked by a pile, addressed by its path relative to
// the pile root. For single-file piles the relative path is empty and the
// item's paths are the pile's own paths.
type Item struct {
	Pile       PileName
	RelPath    string
	SystemPath string
	StorePath  string
	Algorithm  checksum.Algorithm
}

// Items enumerates every file the hoard tracks: the union of regular files
// found under each pile's system path and its store path, minus ignored
// paths. A pile whose system path and store path are both absent yields a
// single placeholder item so callers can report it as nonexistent.
func (h *Hoard) Items(hoardsRoot string) ([]Item, error) {
	var items []Item
	for i := range h.Piles {
		pile := &h.Piles[i]
		pileItems, err := pile.items(hoardsRoot, h.Name)
		if err != nil {
			return nil, fmt.Errorf("pile %q: %w", pile.Name, err)
		}
		items = append(items, pileItems...)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Pile != items[j].Pile {
			return items[i].Pile < items[j].Pile
		}
		return items[i].RelPath < items[j].RelPath
	})
	return items, nil
}

func (p *Pile) items(hoardsRoot, hoardName string) ([]Item, error) {
	storeRoot := p.StorePath(hoardsRoot, hoardName)

	sysInfo, sysErr := os.Stat(p.SystemPath)
	if sysErr != nil && !os.IsNotExist(sysErr) {
		return nil, fmt.Errorf("stat %s: %w", p.SystemPath, sysErr)
	}
	storeInfo, storeErr := os.Stat(storeRoot)
	if storeErr != nil && !os.IsNotExist(storeErr) {
		return nil, fmt.Errorf("stat %s: %w", storeRoot, storeErr)
	}

	isDir := (sysErr == nil && sysInfo.IsDir()) || (storeErr == nil && storeInfo.IsDir())
	if !isDir {
		// Single-file pile, possibly absent on both sides.
		return []Item{{
			Pile:       p.Name,
			RelPath:    "",
			SystemPath: p.SystemPath,
			StorePath:  storeRoot,
			Algorithm:  p.Algorithm(),
		}}, nil
	}

	rels := make(map[string]bool)
	if err := collectRelPaths(p.SystemPath, rels); err != nil {
		return nil, err
	}
	if err := collectRelPaths(storeRoot, rels); err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(rels))
	for rel := range rels {
		if p.Ignore.Match(rel) {
			continue
		}
		items = append(items, Item{
			Pile:       p.Name,
			RelPath:    rel,
			SystemPath: filepath.Join(p.SystemPath, rel),
			StorePath:  filepath.Join(storeRoot, rel),
			Algorithm:  p.Algorithm(),
		})
	}
	return items, nil
}

// Algorithm returns the pile's configured checksum algorithm, defaulting when unset.
func (p *Pile) Algorithm() checksum.Algorithm {
	if p.Checksum == "" {
		return checksum.DefaultAlgorithm
	}
	return p.Checksum
}

// collectRelPaths walks root and records the relative path of every regular
// file. Symlinks, devices, and other special files are skipped: they cannot
// be synchronized safely. A missing root contributes nothing.
func collectRelPaths(root string, into map[string]bool) error {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == root {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("relative path for %s: %w", path, err)
		}
		into[rel] = true
		return nil
	})
	if err != nil {
		return fmt.Errorf("walking %s: %w", root, err)
	}
	return nil
}
