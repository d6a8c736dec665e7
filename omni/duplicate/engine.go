// Package duplicate groups byte-identical files from the indexed view with
// a staged pipeline: metadata sweep, size buckets, quick signature, full
// hash, byte-exact verification. The hashes are FNV-1a-64 and deliberately
// non-cryptographic; the verification stage is what makes the report safe.
package duplicate

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"io"
	"log/slog"
	"os"
	"runtime"
	"sort"
	"sync/atomic"

	"github.com/sourcegraph/conc/pool"

	internal "github.com/ZanzyTHEbar/omnisearch/omni"
	"github.com/ZanzyTHEbar/omnisearch/omni/index"
	"github.com/ZanzyTHEbar/omnisearch/omni/winfs"
)

const (
	// DefaultMinFileSize applies when the caller passes zero.
	DefaultMinFileSize = 1 * 1024 * 1024

	quickChunkSize = internal.DefaultChunkBufferSize
	blockSize      = internal.DefaultSequentialBufferSize
)

// FileRow is one member of a duplicate group.
type FileRow struct {
	Name         string
	Path         string
	Size         uint64
	CreatedUnix  int64
	ModifiedUnix int64
}

// Group is one verified set of byte-identical files.
type Group struct {
	ID         string
	Size       uint64
	TotalBytes uint64
	FileCount  int
	Files      []FileRow
}

// Engine runs duplicate scans over the store's indexed view.
type Engine struct {
	store         *index.Store
	stat          winfs.StatFn
	status        *Status
	maxWorkers    int
	reservedCores int
}

// NewEngine builds an engine over the store. A nil stat selects winfs.Stat;
// maxWorkers zero derives the worker count from the CPU count minus a small
// reserve.
func NewEngine(store *index.Store, stat winfs.StatFn, status *Status, maxWorkers, reservedCores int) *Engine {
	if stat == nil {
		stat = winfs.Stat
	}
	if status == nil {
		status = &Status{}
	}
	if reservedCores <= 0 {
		reservedCores = 2
	}
	return &Engine{
		store:         store,
		stat:          stat,
		status:        status,
		maxWorkers:    maxWorkers,
		reservedCores: reservedCores,
	}
}

// Status returns the engine's live counters.
func (e *Engine) Status() *Status { return e.status }

// ClampGroupLimits applies the documented bounds: group count in [1, 1000],
// files rendered per group in [2, 400].
func ClampGroupLimits(maxGroups, maxFilesPerGroup int) (int, int) {
	if maxGroups < 1 {
		maxGroups = 1
	}
	if maxGroups > 1000 {
		maxGroups = 1000
	}
	if maxFilesPerGroup < 2 {
		maxFilesPerGroup = 2
	}
	if maxFilesPerGroup > 400 {
		maxFilesPerGroup = 400
	}
	return maxGroups, maxFilesPerGroup
}

// Run executes one scan synchronously and returns the sorted groups, or
// nil when cancelled. Progress counters must have been Reset by the caller;
// the running/cancel flags are owned by the caller too.
func (e *Engine) Run(minSize uint64, maxGroups, maxFilesPerGroup int) []Group {
	if minSize == 0 {
		minSize = DefaultMinFileSize
	}
	maxGroups, maxFilesPerGroup = ClampGroupLimits(maxGroups, maxFilesPerGroup)

	snapshot := e.store.SnapshotFiles()
	e.status.addTotal(uint64(len(snapshot)))

	rows := e.metadataSweep(snapshot, minSize)
	if e.status.Cancelled() {
		return e.finalize(nil)
	}

	sizeBuckets := make(map[uint64][]FileRow, len(rows)/4+1)
	for _, row := range rows {
		sizeBuckets[row.Size] = append(sizeBuckets[row.Size], row)
	}

	groups := e.collectGroups(sizeBuckets, maxGroups, maxFilesPerGroup)
	return e.finalize(groups)
}

func (e *Engine) finalize(groups []Group) []Group {
	if e.status.Cancelled() {
		return nil
	}
	e.status.snapDone()

	sort.Slice(groups, func(i, j int) bool {
		left := reclaimable(groups[i])
		right := reclaimable(groups[j])
		if left != right {
			return left > right
		}
		return groups[i].FileCount > groups[j].FileCount
	})
	return groups
}

func reclaimable(g Group) uint64 {
	if g.FileCount == 0 {
		return 0
	}
	return g.Size * uint64(g.FileCount-1)
}

// metadataSweep stats every indexed entry in parallel, discarding
// directories, unreadable files, and files below the minimum size. One
// progress unit is charged per entry regardless of outcome.
func (e *Engine) metadataSweep(snapshot []index.IndexedFile, minSize uint64) []FileRow {
	type result struct {
		row FileRow
		ok  bool
	}
	results := make([]result, len(snapshot))

	e.runWorkers(len(snapshot), func(_ *workerBuffers, i int) {
		defer e.status.addDone(1)
		file := &snapshot[i]
		if file.IsDirectory {
			return
		}
		md, err := e.stat(file.Path)
		if err != nil || md.Size < minSize {
			return
		}
		results[i] = result{
			row: FileRow{
				Name:         file.Name,
				Path:         file.Path,
				Size:         md.Size,
				CreatedUnix:  md.CreatedUnix,
				ModifiedUnix: md.ModifiedUnix,
			},
			ok: true,
		}
	})

	rows := make([]FileRow, 0, len(snapshot)/4+1)
	for i := range results {
		if results[i].ok {
			rows = append(rows, results[i].row)
		}
	}
	return rows
}

// collectGroups runs stages 1-4 over the size buckets, returning early when
// cancelled or when the group cap is reached.
func (e *Engine) collectGroups(sizeBuckets map[uint64][]FileRow, maxGroups, maxFilesPerGroup int) []Group {
	groups := make([]Group, 0, 128)
	var serial uint32

	emit := func(size, hash uint64, members []FileRow) bool {
		g := Group{
			ID:         groupID(size, hash, serial),
			Size:       size,
			TotalBytes: size * uint64(len(members)),
			FileCount:  len(members),
		}
		serial++
		renderCount := len(members)
		if renderCount > maxFilesPerGroup {
			renderCount = maxFilesPerGroup
		}
		g.Files = append(g.Files, members[:renderCount]...)
		groups = append(groups, g)
		e.status.setGroups(uint64(len(groups)))
		return len(groups) < maxGroups
	}

	for size, files := range sizeBuckets {
		if e.status.Cancelled() {
			return groups
		}
		if len(files) < 2 {
			continue
		}

		// Empty files have the same content by definition; group them
		// without any disk reads.
		if size == 0 {
			if !emit(0, 0, files) {
				return groups
			}
			continue
		}

		// Stage 2: quick signature over size, head, and tail.
		e.status.addTotal(uint64(len(files)))
		quickSigs, quickOK := e.hashParallel(files, (*Engine).quickSignature)
		if e.status.Cancelled() {
			return groups
		}

		quickBuckets := make(map[uint64][]int, len(files))
		for i := range files {
			if quickOK[i] {
				quickBuckets[quickSigs[i]] = append(quickBuckets[quickSigs[i]], i)
			}
		}

		for _, quickIndices := range quickBuckets {
			if len(quickIndices) < 2 {
				continue
			}
			candidates := make([]FileRow, 0, len(quickIndices))
			for _, i := range quickIndices {
				candidates = append(candidates, files[i])
			}

			// Stage 3: full-file hash only for quick-signature collisions.
			e.status.addTotal(uint64(len(candidates)))
			fullHashes, fullOK := e.hashParallel(candidates, (*Engine).fullHash)
			if e.status.Cancelled() {
				return groups
			}

			fullBuckets := make(map[uint64][]int, len(candidates))
			for i := range candidates {
				if fullOK[i] {
					fullBuckets[fullHashes[i]] = append(fullBuckets[fullHashes[i]], i)
				}
			}

			for hash, candidateIndices := range fullBuckets {
				if len(candidateIndices) < 2 {
					continue
				}

				// Stage 4: byte-exact verification against a cluster
				// representative defends against hash collisions.
				clusters := e.verifyClusters(candidates, candidateIndices)
				for _, cluster := range clusters {
					if len(cluster) < 2 {
						continue
					}
					members := make([]FileRow, 0, len(cluster))
					for _, i := range cluster {
						members = append(members, candidates[i])
					}
					if !emit(size, hash, members) {
						return groups
					}
				}
			}
		}
	}
	return groups
}

func (e *Engine) verifyClusters(candidates []FileRow, indices []int) [][]int {
	left := make([]byte, blockSize)
	right := make([]byte, blockSize)
	clusters := make([][]int, 0, len(indices))

	for _, i := range indices {
		matched := false
		for c := range clusters {
			representative := clusters[c][0]
			if e.filesByteEqual(candidates[i].Path, candidates[representative].Path, left, right) {
				clusters[c] = append(clusters[c], i)
				matched = true
				break
			}
		}
		if !matched {
			clusters = append(clusters, []int{i})
		}
	}
	return clusters
}

// workerBuffers are per-worker scratch buffers reused across the files a
// worker handles.
type workerBuffers struct {
	chunk []byte // random reads (quick signature)
	block []byte // sequential reads (full hash)
}

// runWorkers fans item indices out over a bounded pool. Each worker owns
// its buffers and pulls the next index from a shared atomic counter,
// checking cancellation before every item.
func (e *Engine) runWorkers(itemCount int, fn func(buf *workerBuffers, i int)) {
	if itemCount == 0 {
		return
	}
	workers := e.workerCount(itemCount)
	var next atomic.Int64

	p := pool.New().WithMaxGoroutines(workers)
	for w := 0; w < workers; w++ {
		p.Go(func() {
			buf := &workerBuffers{}
			for {
				if e.status.Cancelled() {
					return
				}
				i := int(next.Add(1)) - 1
				if i >= itemCount {
					return
				}
				fn(buf, i)
			}
		})
	}
	p.Wait()
}

func (e *Engine) workerCount(itemCount int) int {
	if e.maxWorkers > 0 {
		if e.maxWorkers < itemCount {
			return e.maxWorkers
		}
		if itemCount < 1 {
			return 1
		}
		return itemCount
	}
	workers := runtime.NumCPU()
	if workers == 0 {
		workers = 4
	}
	reserved := 1
	if workers > 4 {
		reserved = e.reservedCores
	}
	if workers > reserved {
		workers -= reserved
	} else {
		workers = 1
	}
	if workers > itemCount {
		workers = itemCount
	}
	if workers < 1 {
		workers = 1
	}
	return workers
}

type hashFn func(*Engine, *workerBuffers, FileRow) (uint64, bool)

// hashParallel computes fn for every file, tracking one progress unit per
// file. Failed files carry ok=false and drop out of duplicate
// consideration; the scan continues.
func (e *Engine) hashParallel(files []FileRow, fn hashFn) ([]uint64, []bool) {
	hashes := make([]uint64, len(files))
	ok := make([]bool, len(files))
	e.runWorkers(len(files), func(buf *workerBuffers, i int) {
		defer e.status.addDone(1)
		h, hashed := fn(e, buf, files[i])
		if hashed {
			hashes[i] = h
			ok[i] = true
		}
	})
	return hashes, ok
}

// quickSignature fingerprints a file from its size, first 64 KiB, and last
// 64 KiB. Files no longer than the chunk are covered by the first read and
// no tail read happens; head and tail reads overlap for files longer than
// one chunk but shorter than two.
func (e *Engine) quickSignature(buf *workerBuffers, file FileRow) (uint64, bool) {
	if e.status.Cancelled() {
		return 0, false
	}

	h := fnv.New64a()
	var sizeBytes [8]byte
	binary.LittleEndian.PutUint64(sizeBytes[:], file.Size)
	h.Write(sizeBytes[:])
	if file.Size == 0 {
		return h.Sum64(), true
	}

	f, err := os.Open(file.Path)
	if err != nil {
		return 0, false
	}
	defer f.Close()

	if buf.chunk == nil {
		buf.chunk = make([]byte, quickChunkSize)
	}

	first := uint64(quickChunkSize)
	if file.Size < first {
		first = file.Size
	}
	if _, err := io.ReadFull(f, buf.chunk[:first]); err != nil {
		return 0, false
	}
	h.Write(buf.chunk[:first])

	if file.Size > first {
		if e.status.Cancelled() {
			return 0, false
		}
		tail := uint64(quickChunkSize)
		if file.Size < tail {
			tail = file.Size
		}
		if _, err := f.Seek(int64(file.Size-tail), io.SeekStart); err != nil {
			return 0, false
		}
		if _, err := io.ReadFull(f, buf.chunk[:tail]); err != nil {
			return 0, false
		}
		h.Write(buf.chunk[:tail])
	}

	return h.Sum64(), true
}

// fullHash streams the whole file through FNV-1a-64.
func (e *Engine) fullHash(buf *workerBuffers, file FileRow) (uint64, bool) {
	if e.status.Cancelled() {
		return 0, false
	}

	f, err := os.Open(file.Path)
	if err != nil {
		return 0, false
	}
	defer f.Close()

	if buf.block == nil {
		buf.block = make([]byte, blockSize)
	}

	h := fnv.New64a()
	for {
		if e.status.Cancelled() {
			return 0, false
		}
		n, err := f.Read(buf.block)
		if n > 0 {
			h.Write(buf.block[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			slog.Debug("full hash read failed", "path", file.Path, "error", err)
			return 0, false
		}
	}
	return h.Sum64(), true
}

// filesByteEqual compares two files chunk by chunk.
func (e *Engine) filesByteEqual(leftPath, rightPath string, left, right []byte) bool {
	if e.status.Cancelled() {
		return false
	}

	lf, err := os.Open(leftPath)
	if err != nil {
		return false
	}
	defer lf.Close()
	rf, err := os.Open(rightPath)
	if err != nil {
		return false
	}
	defer rf.Close()

	for {
		if e.status.Cancelled() {
			return false
		}
		ln, lerr := io.ReadFull(lf, left)
		rn, rerr := io.ReadFull(rf, right)
		if ln != rn {
			return false
		}
		if lerr != nil && lerr != io.EOF && lerr != io.ErrUnexpectedEOF {
			return false
		}
		if rerr != nil && rerr != io.EOF && rerr != io.ErrUnexpectedEOF {
			return false
		}
		if ln == 0 {
			return true
		}
		if !bytes.Equal(left[:ln], right[:rn]) {
			return false
		}
	}
}

// groupID renders the deterministic group identifier: size, hash, and a
// per-run serial, each in lowercase hex.
func groupID(size, hash uint64, serial uint32) string {
	return fmt.Sprintf("%016x-%016x-%08x", size, hash, serial)
}
