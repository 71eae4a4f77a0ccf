package diff

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"unicode/utf8"

	"github.com/pmezard/go-difflib/difflib"
)

const contextLines = 5

type contentKind int

const (
	contentSame contentKind = iota
	contentText
	contentBinary
	contentPermissions
	contentStoreMissing
	contentSystemMissing
	contentBothMissing
)

// comparison is the raw content-level difference between the stored copy and
// the system file, before any log state is consulted.
type comparison struct {
	kind       contentKind
	unified    string
	text       bool
	storeMode  fs.FileMode
	systemMode fs.FileMode
}

func readContent(path string) (data []byte, mode fs.FileMode, exists bool, err error) {
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, false, nil
		}
		return nil, 0, false, fmt.Errorf("inspecting %s: %w", path, err)
	}
	data, err = os.ReadFile(path)
	if err != nil {
		return nil, 0, false, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, info.Mode(), true, nil
}

// compareFiles diffs the stored copy against the system file. Permissions
// only count as a difference when the contents are identical; following Git,
// non-UTF-8 content can only be reported as differing, never line-diffed.
func compareFiles(storePath, systemPath string) (comparison, error) {
	storeData, storeMode, storeOK, err := readContent(storePath)
	if err != nil {
		return comparison{}, err
	}
	systemData, systemMode, systemOK, err := readContent(systemPath)
	if err != nil {
		return comparison{}, err
	}

	cmp := comparison{
		storeMode:  storeMode,
		systemMode: systemMode,
		text:       utf8.Valid(storeData) && utf8.Valid(systemData),
	}
	switch {
	case !storeOK && !systemOK:
		cmp.kind = contentBothMissing
		return cmp, nil
	case !storeOK:
		cmp.text = utf8.Valid(systemData)
		cmp.kind = contentStoreMissing
		return cmp, nil
	case !systemOK:
		cmp.text = utf8.Valid(storeData)
		cmp.kind = contentSystemMissing
		return cmp, nil
	}

	if bytes.Equal(storeData, systemData) {
		if storeMode.Perm() != systemMode.Perm() {
			cmp.kind = contentPermissions
		}
		return cmp, nil
	}
	if !cmp.text {
		cmp.kind = contentBinary
		return cmp, nil
	}

	unified, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(storeData)),
		B:        difflib.SplitLines(string(systemData)),
		FromFile: storePath,
		ToFile:   systemPath,
		Context:  contextLines,
	})
	if err != nil {
		return comparison{}, fmt.Errorf("diffing %s against %s: %w", storePath, systemPath, err)
	}
	cmp.kind = contentText
	cmp.unified = unified
	return cmp, nil
}
