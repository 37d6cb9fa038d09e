package paths

import (
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string, content []byte) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, content, 0o644))
}

func noopWarn(string, error) {}

func TestCollect_FindsRegularFilesRecursively(t *testing.T) {
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, "a.txt"), []byte("a"))
	writeFile(t, filepath.Join(dir, "sub", "deeper", "b.txt"), []byte("b"))
	require.NoError(t, os.Symlink(filepath.Join(dir, "a.txt"), filepath.Join(dir, "a.link")))

	found := Collect([]string{dir}, nil, nil, noopWarn)

	assert.Equal(t, 2, found.Size())
	assert.True(t, found.Has(filepath.Join(dir, "a.txt")))
	assert.True(t, found.Has(filepath.Join(dir, "sub", "deeper", "b.txt")))
	assert.False(t, found.Has(filepath.Join(dir, "a.link")))
}

func TestCollect_MultipleRootsDeduplicated(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), []byte("a"))

	// same root twice must not yield duplicates
	found := Collect([]string{dir, dir}, nil, nil, noopWarn)
	assert.Equal(t, 1, found.Size())
}

func TestCollect_IgnorePatterns(t *testing.T) {
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, "keep.txt"), []byte("x"))
	writeFile(t, filepath.Join(dir, "skip.nfo"), []byte("x"))

	ignores, err := CompileIgnores([]string{`\.nfo$`})
	require.NoError(t, err)

	found := Collect([]string{dir}, ignores, nil, noopWarn)

	assert.Equal(t, 1, found.Size())
	assert.True(t, found.Has(filepath.Join(dir, "keep.txt")))
}

func TestCollect_AcceptFunc(t *testing.T) {
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, "small"), []byte("x"))
	writeFile(t, filepath.Join(dir, "large"), make([]byte, 4096))

	acceptFn := func(path string, info fs.FileInfo) bool {
		return info.Size() >= 4096
	}

	found := Collect([]string{dir}, nil, acceptFn, noopWarn)

	assert.Equal(t, 1, found.Size())
	assert.True(t, found.Has(filepath.Join(dir, "large")))
}

func TestCollect_WarnsOnMissingRoot(t *testing.T) {
	var (
		mu       sync.Mutex
		warnings int
	)

	warn := func(path string, err error) {
		mu.Lock()
		warnings++
		mu.Unlock()
	}

	found := Collect([]string{filepath.Join(t.TempDir(), "nope")}, nil, nil, warn)

	assert.Equal(t, 0, found.Size())
	assert.GreaterOrEqual(t, warnings, 1)
}

func TestIgnoreList_NilMatchesNothing(t *testing.T) {
	var list *IgnoreList
	assert.False(t, list.Match("/anything"))
}

func TestCompileIgnores_InvalidPattern(t *testing.T) {
	_, err := CompileIgnores([]string{"("})
	assert.Error(t, err)
}
