package inodemap

import (
	"sort"

	"github.com/scylladb/go-set/strset"

	"github.com/snaplink/snaplink/pkg/logger"
)

func New(opts Options) *InodeMap {
	return &InodeMap{
		records: make(map[FileIdentity]*InodeRecord),
		opts:    opts,
		log:     logger.GetLogger("inodemap"),
	}
}

// AddSet adds every path in the set, warning and skipping paths that cannot
// be inspected.
func (m *InodeMap) AddSet(paths *strset.Set) {
	paths.Each(func(path string) bool {
		m.AddPath(path)
		return true
	})
}

// AddPath stats path without following symlinks and files it under its
// FileIdentity. Non-regular entries are discarded. The first path seen for
// an identity supplies the record's metadata; later paths are hard links of
// the same inode and therefore metadata-identical.
func (m *InodeMap) AddPath(path string) {
	snap, err := statSnapshot(path)
	if err != nil {
		m.log.WithError(err).Warnf("Failed to stat %q, skipping", path)
		return
	}

	if !snap.regular {
		m.log.Tracef("Skipping non-regular file: %q", path)
		return
	}

	if rec, exists := m.records[snap.identity]; exists {
		for _, existing := range rec.Paths {
			if existing == path {
				return
			}
		}
		rec.Paths = append(rec.Paths, path)
		return
	}

	m.records[snap.identity] = &InodeRecord{
		Identity: snap.identity,
		Size:     snap.size,
		ModTime:  snap.modTime,
		Mode:     snap.mode,
		UID:      snap.uid,
		GID:      snap.gid,
		Blocks:   snap.blocks,
		Nlink:    snap.nlink,
		Paths:    []string{path},
		Key:      deriveKey(snap, m.opts),
	}
}

// Get returns the record for an identity, or nil.
func (m *InodeMap) Get(id FileIdentity) *InodeRecord {
	return m.records[id]
}

// Records returns all records ordered by their first path, so that runs over
// identical inputs behave identically.
func (m *InodeMap) Records() []*InodeRecord {
	out := make([]*InodeRecord, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, rec)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Paths[0] < out[j].Paths[0]
	})

	return out
}

func (m *InodeMap) Length() int {
	return len(m.records)
}

func deriveKey(snap *fileStat, opts Options) ComparisonKey {
	key := ComparisonKey{
		Size: snap.size,
		Dev:  snap.identity.Dev,
	}

	if opts.MatchTime {
		key.ModTime = snap.modTime.UnixNano()
	}
	if opts.MatchMode {
		key.Mode = snap.mode
	}
	if opts.MatchOwner {
		key.UID = snap.uid
		key.GID = snap.gid
	}

	return key
}
