package duplicate

import (
	"hash/fnv"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/omnisearch/omni/index"
	"github.com/ZanzyTHEbar/omnisearch/omni/winfs"
)

func writeFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

// storeFor publishes an index over real files on disk so the engine's
// metadata sweep and hashing stages run against the filesystem.
func storeFor(t *testing.T, paths []string) *index.Store {
	t.Helper()
	files := make([]index.IndexedFile, 0, len(paths))
	for i, path := range paths {
		name := filepath.Base(path)
		files = append(files, index.IndexedFile{
			FRN:       uint64(i + 1),
			Name:      name,
			Path:      path,
			Extension: index.ExtractExtension(name),
		})
	}
	store := index.NewStore()
	store.BeginIndexing(false, false)
	store.PublishFilesOnly(files)
	return store
}

func newTestEngine(store *index.Store) *Engine {
	return NewEngine(store, winfs.Stat, &Status{}, 2, 1)
}

func repeat(b byte, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}

var groupIDPattern = regexp.MustCompile(`^[0-9a-f]{16}-[0-9a-f]{16}-[0-9a-f]{8}$`)

func TestFNV1aOffsetBasis(t *testing.T) {
	// Hash of the empty input is the published offset basis.
	assert.Equal(t, uint64(0xcbf29ce484222325), fnv.New64a().Sum64())
}

func TestRun_GroupsIdenticalFiles(t *testing.T) {
	dir := t.TempDir()
	content := repeat('x', 4096)
	a := writeFile(t, dir, "a.bin", content)
	b := writeFile(t, dir, "b.bin", content)
	c := writeFile(t, dir, "c.bin", repeat('y', 4096))

	engine := newTestEngine(storeFor(t, []string{a, b, c}))
	groups := engine.Run(1, 100, 10)

	require.Len(t, groups, 1)
	g := groups[0]
	assert.Regexp(t, groupIDPattern, g.ID)
	assert.Equal(t, uint64(4096), g.Size)
	assert.Equal(t, 2, g.FileCount)
	assert.Equal(t, uint64(8192), g.TotalBytes)
	require.Len(t, g.Files, 2)

	members := map[string]bool{g.Files[0].Path: true, g.Files[1].Path: true}
	assert.True(t, members[a])
	assert.True(t, members[b])
}

func TestRun_MinSizeBoundary(t *testing.T) {
	dir := t.TempDir()
	content := repeat('q', 100)
	a := writeFile(t, dir, "a.bin", content)
	b := writeFile(t, dir, "b.bin", content)
	store := storeFor(t, []string{a, b})

	// A file exactly at the minimum is included.
	groups := newTestEngine(store).Run(100, 100, 10)
	assert.Len(t, groups, 1)

	// One byte below the minimum is excluded.
	groups = newTestEngine(store).Run(101, 100, 10)
	assert.Empty(t, groups)
}

func TestRun_QuickCollisionFullHashDiffers(t *testing.T) {
	// Identical first and last 64 KiB, one distinguishing byte in the
	// middle: quick signatures collide, full hashes tell them apart.
	dir := t.TempDir()
	size := 192 * 1024
	mid := size / 2

	base := repeat(0, size)
	one := repeat(0, size)
	one[mid] = 1
	two := repeat(0, size)
	two[mid] = 2

	a := writeFile(t, dir, "a.bin", base)
	b := writeFile(t, dir, "b.bin", one)
	c := writeFile(t, dir, "c.bin", two)

	engine := newTestEngine(storeFor(t, []string{a, b, c}))

	bufs := &workerBuffers{}
	row := func(path string) FileRow { return FileRow{Path: path, Size: uint64(size)} }
	sigA, okA := engine.quickSignature(bufs, row(a))
	sigB, okB := engine.quickSignature(bufs, row(b))
	require.True(t, okA)
	require.True(t, okB)
	assert.Equal(t, sigA, sigB, "quick signatures must collide")

	fullA, okA := engine.fullHash(bufs, row(a))
	fullB, okB := engine.fullHash(bufs, row(b))
	require.True(t, okA)
	require.True(t, okB)
	assert.NotEqual(t, fullA, fullB)

	groups := engine.Run(1, 100, 10)
	assert.Empty(t, groups)
}

func TestRun_SmallFileQuickSignatureIsHeadOnly(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.bin", repeat('z', 1000))
	engine := newTestEngine(storeFor(t, []string{a}))

	// The file fits in the first chunk; the signature is size plus one
	// read, no tail pass.
	sig, ok := engine.quickSignature(&workerBuffers{}, FileRow{Path: a, Size: 1000})
	require.True(t, ok)

	h := fnv.New64a()
	h.Write([]byte{0xE8, 0x03, 0, 0, 0, 0, 0, 0}) // 1000 little-endian
	h.Write(repeat('z', 1000))
	assert.Equal(t, h.Sum64(), sig)
}

func TestCollectGroups_ZeroSizeBucketNeedsNoReads(t *testing.T) {
	engine := newTestEngine(index.NewStore())

	// Paths that do not exist prove no I/O happens for the zero bucket.
	buckets := map[uint64][]FileRow{
		0: {
			{Name: "a", Path: `C:\missing\a`},
			{Name: "b", Path: `C:\missing\b`},
		},
	}
	groups := engine.collectGroups(buckets, 100, 10)

	require.Len(t, groups, 1)
	assert.Equal(t, uint64(0), groups[0].Size)
	assert.Equal(t, uint64(0), groups[0].TotalBytes)
	assert.Equal(t, 2, groups[0].FileCount)
}

func TestRun_SortsByReclaimableBytesThenCount(t *testing.T) {
	dir := t.TempDir()
	// Group A: two identical 2048-byte files, reclaimable 2048.
	a1 := writeFile(t, dir, "a1.bin", repeat('a', 2048))
	a2 := writeFile(t, dir, "a2.bin", repeat('a', 2048))
	// Group B: three identical 1024-byte files, reclaimable 2048 as well;
	// the higher file count breaks the tie.
	b1 := writeFile(t, dir, "b1.bin", repeat('b', 1024))
	b2 := writeFile(t, dir, "b2.bin", repeat('b', 1024))
	b3 := writeFile(t, dir, "b3.bin", repeat('b', 1024))

	engine := newTestEngine(storeFor(t, []string{a1, a2, b1, b2, b3}))
	groups := engine.Run(1, 100, 10)

	require.Len(t, groups, 2)
	assert.Equal(t, 3, groups[0].FileCount)
	assert.Equal(t, uint64(1024), groups[0].Size)
	assert.Equal(t, 2, groups[1].FileCount)
}

func TestRun_DeterministicAcrossRuns(t *testing.T) {
	dir := t.TempDir()
	a1 := writeFile(t, dir, "a1.bin", repeat('a', 2048))
	a2 := writeFile(t, dir, "a2.bin", repeat('a', 2048))
	b1 := writeFile(t, dir, "b1.bin", repeat('b', 1024))
	b2 := writeFile(t, dir, "b2.bin", repeat('b', 1024))
	b3 := writeFile(t, dir, "b3.bin", repeat('b', 1024))
	store := storeFor(t, []string{a1, a2, b1, b2, b3})

	first := newTestEngine(store).Run(1, 100, 10)
	second := newTestEngine(store).Run(1, 100, 10)
	require.Equal(t, len(first), len(second))

	for i := range first {
		assert.Equal(t, first[i].Size, second[i].Size)
		assert.Equal(t, first[i].FileCount, second[i].FileCount)
		// Group IDs may differ only in the trailing serial field.
		assert.Equal(t, first[i].ID[:33], second[i].ID[:33])
	}
}

func TestRun_MaxFilesPerGroupTruncates(t *testing.T) {
	dir := t.TempDir()
	content := repeat('m', 512)
	var all []string
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		all = append(all, writeFile(t, dir, name+".bin", content))
	}

	engine := newTestEngine(storeFor(t, all))
	groups := engine.Run(1, 100, 2)

	require.Len(t, groups, 1)
	assert.Equal(t, 5, groups[0].FileCount)
	assert.Len(t, groups[0].Files, 2)
	assert.Equal(t, uint64(512*5), groups[0].TotalBytes)
}

func TestRun_MaxGroupsShortCircuits(t *testing.T) {
	dir := t.TempDir()
	a1 := writeFile(t, dir, "a1.bin", repeat('a', 256))
	a2 := writeFile(t, dir, "a2.bin", repeat('a', 256))
	b1 := writeFile(t, dir, "b1.bin", repeat('b', 512))
	b2 := writeFile(t, dir, "b2.bin", repeat('b', 512))

	engine := newTestEngine(storeFor(t, []string{a1, a2, b1, b2}))
	groups := engine.Run(1, 1, 10)

	assert.Len(t, groups, 1)
}

func TestRun_CancelledReturnsNothing(t *testing.T) {
	dir := t.TempDir()
	content := repeat('c', 128)
	a := writeFile(t, dir, "a.bin", content)
	b := writeFile(t, dir, "b.bin", content)

	engine := newTestEngine(storeFor(t, []string{a, b}))
	engine.Status().RequestCancel()

	groups := engine.Run(1, 100, 10)
	assert.Nil(t, groups)
}

func TestRun_ProgressSnapsToTotal(t *testing.T) {
	dir := t.TempDir()
	content := repeat('p', 300)
	a := writeFile(t, dir, "a.bin", content)
	b := writeFile(t, dir, "b.bin", content)

	engine := newTestEngine(storeFor(t, []string{a, b}))
	engine.Run(1, 100, 10)

	view := engine.Status().View()
	assert.Equal(t, view.TotalFiles, view.ScannedFiles)
	assert.Equal(t, 100.0, view.ProgressPercent)
	assert.Equal(t, uint64(1), view.GroupsFound)
}

func TestClampGroupLimits(t *testing.T) {
	maxGroups, maxFiles := ClampGroupLimits(0, 0)
	assert.Equal(t, 1, maxGroups)
	assert.Equal(t, 2, maxFiles)

	maxGroups, maxFiles = ClampGroupLimits(5000, 5000)
	assert.Equal(t, 1000, maxGroups)
	assert.Equal(t, 400, maxFiles)
}

func TestRun_UnreadableFileDropped(t *testing.T) {
	dir := t.TempDir()
	content := repeat('u', 2048)
	a := writeFile(t, dir, "a.bin", content)
	b := writeFile(t, dir, "b.bin", content)
	ghost := filepath.Join(dir, "ghost.bin")

	engine := newTestEngine(storeFor(t, []string{a, b, ghost}))
	groups := engine.Run(1, 100, 10)

	// The missing file drops out in the metadata sweep; the scan
	// continues and still pairs the readable twins.
	require.Len(t, groups, 1)
	assert.Equal(t, 2, groups[0].FileCount)
}
