package diff

import (
	"fmt"
	"io"
	"io/fs"
	"runtime"
)

// Print writes one line per changed file, with unified diffs appended in
// verbose mode. Unchanged and nonexistent entries produce no output.
func Print(w io.Writer, diffs []FileDiff, verbose bool) error {
	for _, d := range diffs {
		if !d.Changed() {
			continue
		}
		var err error
		switch d.Kind {
		case KindModified:
			if d.Binary {
				_, err = fmt.Fprintf(w, "%s: binary file changed %s\n", d.SystemPath, d.Source)
			} else {
				_, err = fmt.Fprintf(w, "%s: text file changed %s\n", d.SystemPath, d.Source)
				if err == nil && verbose && d.UnifiedDiff != "" {
					_, err = io.WriteString(w, d.UnifiedDiff)
				}
			}
		case KindCreated, KindRecreated:
			verb := "created"
			if d.Kind == KindRecreated {
				verb = "recreated"
			}
			_, err = fmt.Fprintf(w, "%s: %s %s\n", d.SystemPath, verb, d.Source)
			if err == nil && verbose && d.UnifiedDiff != "" {
				_, err = io.WriteString(w, d.UnifiedDiff)
			}
		case KindDeleted:
			_, err = fmt.Fprintf(w, "%s: deleted %s\n", d.SystemPath, d.Source)
		case KindPermissions:
			_, err = fmt.Fprintf(w, "%s: permissions changed: hoard (%s), system (%s)\n",
				d.SystemPath, renderMode(d.StoreMode), renderMode(d.SystemMode))
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// renderMode shows the octal permission bits where they exist; Windows only
// distinguishes readonly from writable.
func renderMode(mode fs.FileMode) string {
	if runtime.GOOS == "windows" {
		if mode.Perm()&0o200 == 0 {
			return "readonly"
		}
		return "writable"
	}
	return fmt.Sprintf("%o", mode.Perm())
}

// Reduce folds per-file sources into one judgment for the hoard. The second
// return is false when nothing changed. An out-of-band change dominates, and
// disagreeing sources collapse to mixed.
func Reduce(diffs []FileDiff) (Source, bool) {
	var agg Source
	found := false
	for _, d := range diffs {
		if !d.Changed() || d.Kind == KindPermissions {
			continue
		}
		if !found {
			agg, found = d.Source, true
			continue
		}
		switch {
		case agg == SourceUnknown || d.Source == SourceUnknown:
			agg = SourceUnknown
		case agg != d.Source:
			agg = SourceMixed
		}
	}
	return agg, found
}

// PrintStatus writes the one-line aggregate judgment for a hoard.
func PrintStatus(w io.Writer, hoardName string, diffs []FileDiff) error {
	source, changed := Reduce(diffs)
	var line string
	switch {
	case !changed:
		line = fmt.Sprintf("%s: up to date", hoardName)
	case source == SourceLocal:
		line = fmt.Sprintf("%s: modified %s -- sync with `hoard backup %s`", hoardName, source, hoardName)
	case source == SourceRemote:
		line = fmt.Sprintf("%s: modified %s -- sync with `hoard restore %s`", hoardName, source, hoardName)
	case source == SourceMixed:
		line = fmt.Sprintf("%s: mixed changes -- manual intervention recommended (see `hoard diff %s`)", hoardName, hoardName)
	default:
		line = fmt.Sprintf("%s: unexpected changes -- manual intervention recommended (see `hoard diff %s`)", hoardName, hoardName)
	}
	_, err := io.WriteString(w, line+"\n")
	return err
}
