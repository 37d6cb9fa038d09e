package linker

import (
	"github.com/snaplink/snaplink/pkg/inodemap"
)

// keyMap buckets keep-set inode records by ComparisonKey. Bucket order
// follows the order records were added in, which callers keep deterministic.
type keyMap struct {
	buckets map[inodemap.ComparisonKey][]*inodemap.InodeRecord
}

func newKeyMap(records []*inodemap.InodeRecord) *keyMap {
	m := &keyMap{
		buckets: make(map[inodemap.ComparisonKey][]*inodemap.InodeRecord),
	}

	for _, rec := range records {
		m.add(rec)
	}

	return m
}

func (m *keyMap) add(rec *inodemap.InodeRecord) {
	m.buckets[rec.Key] = append(m.buckets[rec.Key], rec)
}

// lookup returns the merge candidates for key, possibly none.
func (m *keyMap) lookup(key inodemap.ComparisonKey) []*inodemap.InodeRecord {
	return m.buckets[key]
}

func (m *keyMap) Length() int {
	return len(m.buckets)
}
