package engine

import (
	"fmt"
	"io"

	"hoard-go/internal/diff"
	"hoard-go/internal/hoard"
)

// Diff writes the per-file divergence report for one hoard. Verbose mode
// includes unified diffs for text files.
func (e *Engine) Diff(w io.Writer, h *hoard.Hoard, verbose bool) error {
	diffs, err := e.classifier().HoardDiffs(h)
	if err != nil {
		return fmt.Errorf("hoard %s: %w", h.Name, err)
	}
	return diff.Print(w, diffs, verbose)
}

// Status writes the one-line aggregate judgment for each hoard. A hoard that
// cannot be classified reports its error and does not stop the others.
func (e *Engine) Status(w io.Writer, hoards []*hoard.Hoard) error {
	var firstErr error
	for _, h := range hoards {
		diffs, err := e.classifier().HoardDiffs(h)
		if err != nil {
			e.logger.Error("status failed", "hoard", h.Name, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("hoard %s: %w", h.Name, err)
			}
			continue
		}
		if err := diff.PrintStatus(w, h.Name, diffs); err != nil {
			return err
		}
	}
	return firstErr
}
