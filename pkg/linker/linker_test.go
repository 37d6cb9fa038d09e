package linker

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snaplink/snaplink/pkg/inodemap"
)

func writeFile(t *testing.T, path string, content []byte, mtime time.Time) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, content, 0o644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func buildMap(t *testing.T, opts inodemap.Options, paths ...string) *inodemap.InodeMap {
	t.Helper()

	m := inodemap.New(opts)
	for _, p := range paths {
		m.AddPath(p)
	}
	return m
}

func sameFile(t *testing.T, a string, b string) bool {
	t.Helper()

	fa, err := os.Stat(a)
	require.NoError(t, err)
	fb, err := os.Stat(b)
	require.NoError(t, err)
	return os.SameFile(fa, fb)
}

func TestDeduplicate_MergesIdenticalFiles(t *testing.T) {
	dir := t.TempDir()
	mtime := time.Now().Add(-time.Hour)
	content := bytes.Repeat([]byte("A"), 100)

	kx := filepath.Join(dir, "keep", "x")
	uy := filepath.Join(dir, "cand", "y")
	writeFile(t, kx, content, mtime)
	writeFile(t, uy, content, mtime)

	opts := inodemap.DefaultOptions()
	keep := buildMap(t, opts, kx)
	cand := buildMap(t, opts, uy)

	require.Equal(t, 1, cand.Length())
	wantReclaimed := cand.Records()[0].AllocatedBytes()

	engine := New(false)
	stats, err := engine.Deduplicate(keep, cand)
	require.NoError(t, err)

	assert.Equal(t, uint64(1), stats.Comparisons)
	assert.Equal(t, uint64(1), stats.Merges)
	assert.Equal(t, wantReclaimed, stats.ReclaimedBytes)
	assert.True(t, sameFile(t, kx, uy), "candidate must share the keep inode")

	got, err := os.ReadFile(uy)
	require.NoError(t, err)
	assert.Equal(t, content, got, "content must survive the merge")
}

func TestDeduplicate_SameSizeDifferentContent(t *testing.T) {
	dir := t.TempDir()
	mtime := time.Now().Add(-time.Hour)

	kx := filepath.Join(dir, "keep", "x")
	uy := filepath.Join(dir, "cand", "y")
	writeFile(t, kx, bytes.Repeat([]byte("A"), 100), mtime)
	writeFile(t, uy, bytes.Repeat([]byte("B"), 100), mtime)

	opts := inodemap.DefaultOptions()
	engine := New(false)
	stats, err := engine.Deduplicate(buildMap(t, opts, kx), buildMap(t, opts, uy))
	require.NoError(t, err)

	assert.Equal(t, uint64(1), stats.Comparisons, "key collision still costs one comparison")
	assert.Zero(t, stats.Merges)
	assert.Zero(t, stats.ReclaimedBytes)
	assert.False(t, sameFile(t, kx, uy))
}

func TestDeduplicate_HardlinkedCandidatesMergeOnce(t *testing.T) {
	dir := t.TempDir()
	mtime := time.Now().Add(-time.Hour)
	content := []byte("identical payload")

	kx := filepath.Join(dir, "keep", "x")
	u1 := filepath.Join(dir, "cand", "one")
	u2 := filepath.Join(dir, "cand", "two")
	writeFile(t, kx, content, mtime)
	writeFile(t, u1, content, mtime)
	require.NoError(t, os.Link(u1, u2))

	opts := inodemap.DefaultOptions()
	cand := buildMap(t, opts, u1, u2)
	require.Equal(t, 1, cand.Length(), "hardlinked paths share one record")

	engine := New(false)
	stats, err := engine.Deduplicate(buildMap(t, opts, kx), cand)
	require.NoError(t, err)

	assert.Equal(t, uint64(1), stats.Comparisons)
	assert.Equal(t, uint64(1), stats.Merges)
	assert.True(t, sameFile(t, kx, u1))
	assert.True(t, sameFile(t, kx, u2))
}

func TestDeduplicate_ModTimeStrictness(t *testing.T) {
	dir := t.TempDir()
	content := []byte("same bytes, different mtime")

	kx := filepath.Join(dir, "keep", "x")
	uy := filepath.Join(dir, "cand", "y")
	writeFile(t, kx, content, time.Now().Add(-2*time.Hour))
	writeFile(t, uy, content, time.Now().Add(-1*time.Hour))

	// default: mtime is a key component, the pair never reaches comparison
	strict := inodemap.DefaultOptions()
	engine := New(false)
	stats, err := engine.Deduplicate(buildMap(t, strict, kx), buildMap(t, strict, uy))
	require.NoError(t, err)
	assert.Zero(t, stats.Comparisons)
	assert.Zero(t, stats.Merges)
	assert.False(t, sameFile(t, kx, uy))

	// relaxed: the pair is compared and merged
	relaxed := inodemap.Options{MatchTime: false, MatchMode: true, MatchOwner: true}
	engine = New(false)
	stats, err = engine.Deduplicate(buildMap(t, relaxed, kx), buildMap(t, relaxed, uy))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats.Comparisons)
	assert.Equal(t, uint64(1), stats.Merges)
	assert.True(t, sameFile(t, kx, uy))
}

func TestDeduplicate_ZeroSizeNeverMerged(t *testing.T) {
	dir := t.TempDir()
	mtime := time.Now().Add(-time.Hour)

	kx := filepath.Join(dir, "keep", "x")
	uy := filepath.Join(dir, "cand", "y")
	writeFile(t, kx, nil, mtime)
	writeFile(t, uy, nil, mtime)

	opts := inodemap.DefaultOptions()
	engine := New(false)
	stats, err := engine.Deduplicate(buildMap(t, opts, kx), buildMap(t, opts, uy))
	require.NoError(t, err)

	assert.Zero(t, stats.Comparisons, "zero-byte files are rejected before comparison")
	assert.Zero(t, stats.Merges)
	assert.False(t, sameFile(t, kx, uy))
}

func TestDeduplicate_Idempotent(t *testing.T) {
	dir := t.TempDir()
	mtime := time.Now().Add(-time.Hour)
	content := bytes.Repeat([]byte("Z"), 512)

	kx := filepath.Join(dir, "keep", "x")
	uy := filepath.Join(dir, "cand", "y")
	writeFile(t, kx, content, mtime)
	writeFile(t, uy, content, mtime)

	opts := inodemap.DefaultOptions()

	engine := New(false)
	stats, err := engine.Deduplicate(buildMap(t, opts, kx), buildMap(t, opts, uy))
	require.NoError(t, err)
	require.Equal(t, uint64(1), stats.Merges)

	// rebuild from the mutated filesystem; everything is already merged and
	// the self-merge guard rejects each pair without comparing
	engine = New(false)
	stats, err = engine.Deduplicate(buildMap(t, opts, kx), buildMap(t, opts, uy))
	require.NoError(t, err)

	assert.Zero(t, stats.Comparisons)
	assert.Zero(t, stats.Merges)
	assert.Zero(t, stats.ReclaimedBytes)
}

func TestDeduplicate_DryRunParity(t *testing.T) {
	dir := t.TempDir()
	mtime := time.Now().Add(-time.Hour)
	content := bytes.Repeat([]byte("D"), 2048)

	kx := filepath.Join(dir, "keep", "x")
	uy := filepath.Join(dir, "cand", "y")
	writeFile(t, kx, content, mtime)
	writeFile(t, uy, content, mtime)

	opts := inodemap.DefaultOptions()

	dry := New(true)
	dryStats, err := dry.Deduplicate(buildMap(t, opts, kx), buildMap(t, opts, uy))
	require.NoError(t, err)

	assert.False(t, sameFile(t, kx, uy), "dry run must not mutate the filesystem")

	normal := New(false)
	realStats, err := normal.Deduplicate(buildMap(t, opts, kx), buildMap(t, opts, uy))
	require.NoError(t, err)

	assert.Equal(t, realStats.Comparisons, dryStats.Comparisons)
	assert.Equal(t, realStats.Merges, dryStats.Merges)
	assert.Equal(t, realStats.ReclaimedBytes, dryStats.ReclaimedBytes)
	assert.True(t, sameFile(t, kx, uy))
}

func TestDeduplicate_FirstMatchDeterministic(t *testing.T) {
	dir := t.TempDir()
	mtime := time.Now().Add(-time.Hour)
	content := []byte("duplicated across the keep set")

	k1 := filepath.Join(dir, "keep", "a")
	k2 := filepath.Join(dir, "keep", "b")
	uy := filepath.Join(dir, "cand", "y")
	writeFile(t, k1, content, mtime)
	writeFile(t, k2, content, mtime)
	writeFile(t, uy, content, mtime)

	opts := inodemap.DefaultOptions()
	engine := New(false)
	stats, err := engine.Deduplicate(buildMap(t, opts, k1, k2), buildMap(t, opts, uy))
	require.NoError(t, err)

	// keep records are ordered by first path, so "a" wins
	assert.Equal(t, uint64(1), stats.Comparisons)
	assert.Equal(t, uint64(1), stats.Merges)
	assert.True(t, sameFile(t, k1, uy))
	assert.False(t, sameFile(t, k2, uy))
}

func TestCanLink_RejectsKeyMismatchAndCrossDevice(t *testing.T) {
	engine := New(false)

	a := &inodemap.InodeRecord{
		Identity: inodemap.FileIdentity{Dev: 1, Ino: 10},
		Size:     100,
		Key:      inodemap.ComparisonKey{Size: 100, Dev: 1},
		Paths:    []string{"/keep/a"},
	}
	b := &inodemap.InodeRecord{
		Identity: inodemap.FileIdentity{Dev: 2, Ino: 10},
		Size:     100,
		Key:      inodemap.ComparisonKey{Size: 100, Dev: 2},
		Paths:    []string{"/cand/b"},
	}

	assert.False(t, engine.canLink(a, b), "records on different devices never link")
	assert.Zero(t, engine.stats.Comparisons)
}

func TestCanLink_RejectsSelfMerge(t *testing.T) {
	engine := New(false)

	rec := &inodemap.InodeRecord{
		Identity: inodemap.FileIdentity{Dev: 1, Ino: 10},
		Size:     100,
		Key:      inodemap.ComparisonKey{Size: 100, Dev: 1},
		Paths:    []string{"/keep/a"},
	}
	other := &inodemap.InodeRecord{
		Identity: inodemap.FileIdentity{Dev: 1, Ino: 10},
		Size:     100,
		Key:      inodemap.ComparisonKey{Size: 100, Dev: 1},
		Paths:    []string{"/cand/b"},
	}

	assert.False(t, engine.canLink(rec, other))
	assert.Zero(t, engine.stats.Comparisons)
}

func TestCanLink_ComparisonErrorIsNotLinkable(t *testing.T) {
	dir := t.TempDir()
	mtime := time.Now().Add(-time.Hour)

	kx := filepath.Join(dir, "keep", "x")
	writeFile(t, kx, []byte("abcd"), mtime)

	engine := New(false)

	a := &inodemap.InodeRecord{
		Identity: inodemap.FileIdentity{Dev: 1, Ino: 10},
		Size:     4,
		Key:      inodemap.ComparisonKey{Size: 4, Dev: 1},
		Paths:    []string{kx},
	}
	// path vanished between stat and read
	b := &inodemap.InodeRecord{
		Identity: inodemap.FileIdentity{Dev: 1, Ino: 11},
		Size:     4,
		Key:      inodemap.ComparisonKey{Size: 4, Dev: 1},
		Paths:    []string{filepath.Join(dir, "cand", "gone")},
	}

	assert.False(t, engine.canLink(a, b))
	assert.Equal(t, uint64(1), engine.stats.Comparisons, "a failed comparison still counts")
}

func TestMerge_UnlinkFailureSkipsPath(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("directory permissions do not bind root")
	}

	dir := t.TempDir()
	mtime := time.Now().Add(-time.Hour)
	content := []byte("payload")

	kx := filepath.Join(dir, "keep", "x")
	uy := filepath.Join(dir, "cand", "y")
	writeFile(t, kx, content, mtime)
	writeFile(t, uy, content, mtime)

	candDir := filepath.Join(dir, "cand")
	require.NoError(t, os.Chmod(candDir, 0o555))
	t.Cleanup(func() { _ = os.Chmod(candDir, 0o755) })

	var skipped []string

	opts := inodemap.DefaultOptions()
	engine := New(false)
	engine.OnSkip = func(target, source *inodemap.InodeRecord, path string) {
		skipped = append(skipped, path)
	}

	stats, err := engine.Deduplicate(buildMap(t, opts, kx), buildMap(t, opts, uy))
	require.NoError(t, err, "a failed unlink is recoverable")

	assert.Equal(t, uint64(1), stats.SkippedPaths)
	assert.Equal(t, []string{uy}, skipped)
	assert.False(t, sameFile(t, kx, uy), "skipped path stays a distinct file")

	// nothing was migrated, so nothing was reclaimed
	assert.Zero(t, stats.Merges)
	assert.Zero(t, stats.ReclaimedBytes)
}

func TestMerge_LinkFailureAfterUnlinkIsFatal(t *testing.T) {
	dir := t.TempDir()
	mtime := time.Now().Add(-time.Hour)
	content := bytes.Repeat([]byte("F"), 256)

	kx := filepath.Join(dir, "keep", "x")
	uy := filepath.Join(dir, "cand", "y")
	writeFile(t, kx, content, mtime)
	writeFile(t, uy, content, mtime)

	opts := inodemap.DefaultOptions()
	keep := buildMap(t, opts, kx)
	cand := buildMap(t, opts, uy)

	target := keep.Records()[0]
	source := cand.Records()[0]

	engine := New(false)
	require.True(t, engine.canLink(target, source))

	// the keep entry vanishes between the comparison and the relink, so the
	// unlink succeeds but creating the replacement link cannot
	require.NoError(t, os.Remove(kx))

	err := engine.merge(target, source)

	var relinkErr *RelinkError
	require.ErrorAs(t, err, &relinkErr)
	assert.Equal(t, uy, relinkErr.Path)
	assert.Equal(t, kx, relinkErr.Target)

	// the candidate entry is gone; the error carries both the lost path and
	// the intended link target
	_, statErr := os.Lstat(uy)
	assert.True(t, os.IsNotExist(statErr))

	// partial stats survive the abort
	assert.Equal(t, uint64(1), engine.stats.Comparisons)
	assert.Zero(t, engine.stats.Merges)
	assert.Zero(t, engine.stats.ReclaimedBytes)
}

func TestRelinkError_Message(t *testing.T) {
	err := &RelinkError{
		Path:   "/cand/y",
		Target: "/keep/x",
		Err:    os.ErrPermission,
	}

	assert.Contains(t, err.Error(), "/cand/y")
	assert.Contains(t, err.Error(), "/keep/x")
	assert.ErrorIs(t, err, os.ErrPermission)
}

func TestOnMergeHook(t *testing.T) {
	dir := t.TempDir()
	mtime := time.Now().Add(-time.Hour)
	content := []byte("hooked")

	kx := filepath.Join(dir, "keep", "x")
	uy := filepath.Join(dir, "cand", "y")
	writeFile(t, kx, content, mtime)
	writeFile(t, uy, content, mtime)

	var merged []string

	opts := inodemap.DefaultOptions()
	engine := New(false)
	engine.OnMerge = func(target, source *inodemap.InodeRecord) {
		merged = append(merged, source.RepresentativePath())
	}

	_, err := engine.Deduplicate(buildMap(t, opts, kx), buildMap(t, opts, uy))
	require.NoError(t, err)

	assert.Equal(t, []string{uy}, merged)
}
