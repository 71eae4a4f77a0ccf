package history

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const identityFileName = "uuid"

// MachineID returns this machine's persistent identity, generating and
// persisting a new one if the identity file is missing. If the file exists
// but cannot be parsed it is overwritten with a fresh identity; replaced is
// true in that case so the caller can emit a diagnostic.
//
// The identity is a labeling optimization, not the source of truth: conflict
// detection falls back to checksum comparison when identities change.
func MachineID(configDir string) (id string, replaced bool, err error) {
	path := filepath.Join(configDir, identityFileName)

	data, readErr := os.ReadFile(path)
	switch {
	case readErr == nil:
		raw := strings.TrimSpace(string(data))
		if parsed, parseErr := uuid.Parse(raw); parseErr == nil {
			return parsed.String(), false, nil
		}
		replaced = true
	case os.IsNotExist(readErr):
		// First use on this machine.
	default:
		return "", false, fmt.Errorf("reading machine identity file: %w", readErr)
	}

	fresh := uuid.New().String()
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return "", false, fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(fresh), 0o644); err != nil {
		return "", false, fmt.Errorf("writing machine identity file: %w", err)
	}
	return fresh, replaced, nil
}
