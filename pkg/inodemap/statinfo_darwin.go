package inodemap

import (
	"syscall"
	"time"

	"github.com/pkg/errors"
)

// statSnapshot captures the stat metadata for path without following
// symlinks.
func statSnapshot(path string) (*fileStat, error) {
	var stat syscall.Stat_t
	if err := syscall.Lstat(path, &stat); err != nil {
		return nil, errors.Wrap(err, "lstat file")
	}

	return &fileStat{
		identity: FileIdentity{Dev: uint64(stat.Dev), Ino: stat.Ino},
		size:     stat.Size,
		modTime:  time.Unix(stat.Mtimespec.Unix()),
		mode:     uint32(stat.Mode),
		uid:      stat.Uid,
		gid:      stat.Gid,
		blocks:   stat.Blocks,
		nlink:    uint64(stat.Nlink),
		regular:  stat.Mode&syscall.S_IFMT == syscall.S_IFREG,
	}, nil
}
