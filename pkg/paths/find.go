package paths

import (
	"io/fs"
	"path/filepath"
	"sync"

	"github.com/charlievieth/fastwalk"
	"github.com/scylladb/go-set/strset"

	"github.com/snaplink/snaplink/pkg/logger"
)

/* Types */

// WarnFunc is invoked for every recoverable traversal error. The walk
// itself never stops because of one.
type WarnFunc func(path string, err error)

// AcceptFunc decides whether a discovered regular file is kept. A nil
// AcceptFunc keeps everything.
type AcceptFunc func(path string, info fs.FileInfo) bool

/* Vars */

var log = logger.GetLogger("paths")

/* Public */

// Collect walks the given root directories and returns the set of absolute
// paths to all regular files underneath them. Symlinks and special files are
// excluded. Per-entry errors are passed to warn and the affected subtree is
// skipped.
func Collect(roots []string, ignores *IgnoreList, acceptFn AcceptFunc, warn WarnFunc) *strset.Set {
	found := strset.New()

	var mutex sync.Mutex

	conf := &fastwalk.Config{
		Follow: false,
	}

	for _, root := range roots {
		absRoot, err := filepath.Abs(root)
		if err != nil {
			warn(root, err)
			continue
		}

		err = fastwalk.Walk(conf, absRoot, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				warn(path, err)
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			if !d.Type().IsRegular() {
				if !d.IsDir() {
					log.Tracef("Skipping non-regular entry: %q", path)
				}
				return nil
			}

			if ignores.Match(path) {
				log.Tracef("Skipping ignored path: %q", path)
				return nil
			}

			if acceptFn != nil {
				info, err := d.Info()
				if err != nil {
					warn(path, err)
					return nil
				}

				if !acceptFn(path, info) {
					log.Tracef("Skipping rejected path: %q", path)
					return nil
				}
			}

			mutex.Lock()
			found.Add(path)
			mutex.Unlock()
			return nil
		})

		if err != nil {
			warn(absRoot, err)
		}
	}

	return found
}
