// Package history keeps the per-machine, per-hoard operation log: an
// append-only set of immutable JSON records plus a single mutable last-paths
// slot. The log is the source of truth for conflict detection across
// machines, so readers never skip records they cannot parse.
//
// On-disk layout, rooted at <data-dir>/history:
//
//	<machine-uuid>/
//	  last_paths.json
//	  <hoard-name>/
//	    2024_01_15-10_30_00.000000.log
//	    ...
//
// Record filenames are derived from UTC timestamps with microsecond
// precision so that lexical order equals chronological order.
package history

import "errors"

var (
	// ErrUpgradeRequired is returned when an operation needs change
	// classification but the record predates the bucketed schema.
	ErrUpgradeRequired = errors.New("operation log format has changed: run `hoard upgrade`")

	// ErrCorruptRecord wraps parse failures. An unreadable record aborts the
	// operation being evaluated rather than being skipped, because a skipped
	// record could mask a real conflict.
	ErrCorruptRecord = errors.New("corrupt operation log record")
)
