package compare

import (
	"os"

	"github.com/hlubek/readercomp"
	"github.com/pkg/errors"
)

const bufferSize = 64 * 1024

// FilesEqual performs a full, non-shallow byte-for-byte comparison of the
// two files' contents.
func FilesEqual(a string, b string) (bool, error) {
	fa, err := os.Open(a)
	if err != nil {
		return false, errors.Wrapf(err, "open %q", a)
	}
	defer fa.Close()

	fb, err := os.Open(b)
	if err != nil {
		return false, errors.Wrapf(err, "open %q", b)
	}
	defer fb.Close()

	equal, err := readercomp.Equal(fa, fb, bufferSize)
	if err != nil {
		return false, errors.Wrapf(err, "compare %q against %q", a, b)
	}

	return equal, nil
}
