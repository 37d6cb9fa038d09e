package linker

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/snaplink/snaplink/pkg/inodemap"
)

// Stats accumulates the work done by one Deduplicate run. Counters only ever
// increase.
type Stats struct {
	// Comparisons is the number of full-content comparisons performed,
	// whatever their outcome.
	Comparisons uint64

	// Merges is the number of candidate inodes relinked onto a keep inode.
	Merges uint64

	// ReclaimedBytes is disk space freed, computed from each merged
	// inode's allocated block count rather than its logical size.
	ReclaimedBytes uint64

	// SkippedPaths counts candidate paths left in place because their
	// directory entry could not be removed.
	SkippedPaths uint64
}

// Engine replaces candidate files with hard links into the keep set.
type Engine struct {
	// OnMerge, when set, is called after each successful merge with the
	// keep record and the consumed candidate record.
	OnMerge func(target *inodemap.InodeRecord, source *inodemap.InodeRecord)

	// OnSkip, when set, is called for each candidate path left in place
	// because its directory entry could not be removed.
	OnSkip func(target *inodemap.InodeRecord, source *inodemap.InodeRecord, path string)

	dryRun bool
	log    *logrus.Entry
	stats  Stats
}

// RelinkError is the one fatal condition of a run: a candidate path was
// unlinked but the replacement hard link could not be created, so the path
// no longer resolves. Remaining merge work must stop.
type RelinkError struct {
	// Path is the directory entry that was removed and now refers to
	// nothing.
	Path string

	// Target is the keep-set path the link should have pointed at. Its
	// content is known to be identical to what Path held.
	Target string

	Err error
}

func (e *RelinkError) Error() string {
	return fmt.Sprintf("relink %q -> %q: %v (entry was removed; identical content remains at %q)",
		e.Path, e.Target, e.Err, e.Target)
}

func (e *RelinkError) Unwrap() error {
	return e.Err
}
