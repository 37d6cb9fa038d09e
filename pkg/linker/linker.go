package linker

import (
	"os"

	"github.com/snaplink/snaplink/pkg/compare"
	"github.com/snaplink/snaplink/pkg/inodemap"
	"github.com/snaplink/snaplink/pkg/logger"
)

func New(dryRun bool) *Engine {
	return &Engine{
		dryRun: dryRun,
		log:    logger.GetLogger("linker"),
	}
}

// Deduplicate relinks every candidate inode that is provably identical to a
// keep-set inode. Keep-set paths are never mutated. The returned Stats
// reflect all work completed, including work done before a fatal
// RelinkError.
func (e *Engine) Deduplicate(keep *inodemap.InodeMap, candidates *inodemap.InodeMap) (Stats, error) {
	targets := newKeyMap(keep.Records())
	e.log.Debugf("Bucketed keep set into %d comparison keys", targets.Length())

	for _, source := range candidates.Records() {
		for _, target := range targets.lookup(source.Key) {
			if !e.canLink(target, source) {
				continue
			}

			// first match wins
			if err := e.merge(target, source); err != nil {
				return e.stats, err
			}
			break
		}
	}

	return e.stats, nil
}

// canLink reports whether source may be merged onto target. Key mismatches,
// zero-byte files and self-merges are rejected outright; everything else
// costs exactly one full-content comparison.
func (e *Engine) canLink(target *inodemap.InodeRecord, source *inodemap.InodeRecord) bool {
	if target.Key != source.Key {
		return false
	}

	// zero-byte files carry no reclaimable content and are ambiguous as
	// link targets
	if target.Size == 0 || source.Size == 0 {
		return false
	}

	if target.Identity == source.Identity {
		return false
	}

	a := target.RepresentativePath()
	b := source.RepresentativePath()

	e.stats.Comparisons++
	e.log.Debugf("Comparing %q against %q", b, a)

	equal, err := compare.FilesEqual(a, b)
	if err != nil {
		e.log.WithError(err).Warnf("Failed comparing %q against %q, treating as different", b, a)
		return false
	}

	return equal
}

// merge migrates every path of source onto target's inode via unlink+link.
// A failed unlink skips that single path. A failed link after a successful
// unlink is fatal: the entry is gone and must be reported, not papered over.
func (e *Engine) merge(target *inodemap.InodeRecord, source *inodemap.InodeRecord) error {
	linkTarget := target.RepresentativePath()

	migrated := 0

	for _, path := range source.Paths {
		e.log.Infof("Linking %q -> %q", path, linkTarget)

		if e.dryRun {
			e.log.Debug("Dry-run enabled, skipping relink...")
			migrated++
			continue
		}

		if err := os.Remove(path); err != nil {
			e.log.WithError(err).Warnf("Failed removing %q, leaving it in place", path)
			e.stats.SkippedPaths++

			if e.OnSkip != nil {
				e.OnSkip(target, source, path)
			}
			continue
		}

		if err := os.Link(linkTarget, path); err != nil {
			return &RelinkError{
				Path:   path,
				Target: linkTarget,
				Err:    err,
			}
		}

		migrated++
	}

	// if every path was skipped the source inode keeps all its links and
	// nothing was reclaimed
	if migrated == 0 {
		return nil
	}

	e.stats.Merges++
	e.stats.ReclaimedBytes += source.AllocatedBytes()

	if e.OnMerge != nil {
		e.OnMerge(target, source)
	}

	return nil
}
