package inodemap

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// FileIdentity identifies one physical file on a single filesystem
// (device ID + inode number).
type FileIdentity struct {
	Dev uint64
	Ino uint64
}

// String returns a string representation of the FileIdentity.
func (f FileIdentity) String() string {
	return fmt.Sprintf("%d:%d", f.Dev, f.Ino)
}

// ComparisonKey is the cheap fingerprint used to bucket inodes before the
// expensive full-content comparison. Size and Dev are always set; the other
// components are zero when the corresponding strictness option is relaxed.
// Equal keys are necessary but never sufficient for linking.
type ComparisonKey struct {
	Size    int64
	Dev     uint64
	ModTime int64 // unix nanos
	Mode    uint32
	UID     uint32
	GID     uint32
}

// Options selects which optional components take part in the ComparisonKey.
type Options struct {
	MatchTime  bool
	MatchMode  bool
	MatchOwner bool
}

// DefaultOptions requires modification time, mode and owner to match.
func DefaultOptions() Options {
	return Options{
		MatchTime:  true,
		MatchMode:  true,
		MatchOwner: true,
	}
}

// InodeRecord represents one physical file: its captured stat snapshot and
// every discovered path referring to it. Paths is never empty while the
// record is live.
type InodeRecord struct {
	Identity FileIdentity
	Size     int64
	ModTime  time.Time
	Mode     uint32
	UID      uint32
	GID      uint32
	Blocks   int64 // allocated 512-byte blocks
	Nlink    uint64
	Paths    []string
	Key      ComparisonKey
}

// RepresentativePath returns one member of the path set. All paths of a
// record are hard links of each other, so any member serves for reads.
func (r *InodeRecord) RepresentativePath() string {
	return r.Paths[0]
}

// AllocatedBytes is the on-disk footprint of the inode, which is what a
// merge actually reclaims (sparse files allocate less than their size).
func (r *InodeRecord) AllocatedBytes() uint64 {
	return uint64(r.Blocks) * 512
}

// InodeMap groups discovered paths by physical identity.
type InodeMap struct {
	records map[FileIdentity]*InodeRecord
	opts    Options
	log     *logrus.Entry
}

// fileStat is the platform-independent stat snapshot produced by the
// per-platform statSnapshot implementations.
type fileStat struct {
	identity FileIdentity
	size     int64
	modTime  time.Time
	mode     uint32
	uid      uint32
	gid      uint32
	blocks   int64
	nlink    uint64
	regular  bool
}
