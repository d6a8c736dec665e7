package index

import (
	"context"
	"sync"
	"sync/atomic"

	assert "github.com/ZanzyTHEbar/assert-lib"

	"github.com/ZanzyTHEbar/omnisearch/omni/volume"
)

// Store is the process-wide index. One reader-writer lock guards the node
// table, the indexed-file view, and the root identity; atomics carry the
// flags and tokens shared between the enumeration goroutine, the watcher
// goroutine, and search/duplicate callers.
//
// Writers are the enumeration publish and the watcher batch application;
// readers are searches and the snapshot copy at the start of a duplicate
// scan. Readers see either the old or the new snapshot, never a mix.
type Store struct {
	mu       sync.RWMutex
	files    *FileList
	nodes    NodeTable
	rootFRN  volume.FRN
	rootPath string
	ignore   PathMatcher

	indexing     atomic.Bool
	ready        atomic.Bool
	indexedCount atomic.Uint64
	includeDirs  atomic.Bool
	allDrives    atomic.Bool

	// requestToken supersedes in-flight enumerations; watcherToken
	// supersedes the live watcher. Both only ever move forward.
	requestToken atomic.Uint64
	watcherToken atomic.Uint64

	errMu     sync.Mutex
	lastError string

	asserts *assert.AssertHandler
}

// NewStore creates an empty index store.
func NewStore() *Store {
	return &Store{
		files:   NewFileList(nil),
		nodes:   make(NodeTable),
		asserts: assert.NewAssertHandler(),
	}
}

// SetIgnoreMatcher installs the projection-time exclusion matcher. Pass nil
// to index everything.
func (s *Store) SetIgnoreMatcher(m PathMatcher) {
	s.mu.Lock()
	s.ignore = m
	s.mu.Unlock()
}

// IgnoreMatcher returns the installed projection exclusion matcher, nil
// when everything is indexed.
func (s *Store) IgnoreMatcher() PathMatcher {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ignore
}

// BeginIndexing bumps the indexing request token, supersedes any running
// watcher, and resets the observable state for a fresh enumeration. The
// returned token must be checked by the driver after every chunk.
func (s *Store) BeginIndexing(includeDirs, allDrives bool) uint64 {
	token := s.requestToken.Add(1)
	s.indexing.Store(true)
	s.ready.Store(false)
	s.indexedCount.Store(0)
	s.SetLastError("")
	s.StopWatcher()
	s.includeDirs.Store(includeDirs)
	s.allDrives.Store(allDrives)
	return token
}

// Cancelled reports whether the enumeration identified by token has been
// superseded. Token zero is the one-shot scan path and never cancels.
func (s *Store) Cancelled(token uint64) bool {
	if token == 0 {
		return false
	}
	return s.requestToken.Load() != token
}

// FinishIndexing drops the indexing flag unless a newer request took over.
func (s *Store) FinishIndexing(token uint64) {
	if !s.Cancelled(token) {
		s.indexing.Store(false)
	}
}

// NextWatcherToken bumps the live-watcher token and returns the new value
// for a starting watcher to carry.
func (s *Store) NextWatcherToken() uint64 {
	return s.watcherToken.Add(1)
}

// StopWatcher invalidates the current watcher; it exits on its next check.
func (s *Store) StopWatcher() {
	s.watcherToken.Add(1)
}

// WatcherCancelled reports whether the watcher carrying token has been
// superseded.
func (s *Store) WatcherCancelled(token uint64) bool {
	return s.watcherToken.Load() != token
}

// PublishSnapshot replaces the whole index with the result of a successful
// single-volume enumeration.
func (s *Store) PublishSnapshot(snap *Snapshot) {
	s.mu.Lock()
	s.files.Reset(snap.Files)
	s.nodes = snap.Nodes
	s.rootFRN = snap.RootFRN
	s.rootPath = snap.RootPath
	s.verifyLocked()
	count := uint64(s.files.Len())
	s.mu.Unlock()

	s.indexedCount.Store(count)
	s.ready.Store(true)
	s.SetLastError("")
}

// PublishFilesOnly replaces the index with a bare file sequence and no node
// table. Used after an all-drives scan, where live updates cannot apply
// coherently to a concatenation of volumes.
func (s *Store) PublishFilesOnly(files []IndexedFile) {
	s.mu.Lock()
	s.files.Reset(files)
	s.nodes = make(NodeTable)
	s.rootFRN = 0
	s.rootPath = ""
	s.verifyLocked()
	count := uint64(s.files.Len())
	s.mu.Unlock()

	s.indexedCount.Store(count)
	s.ready.Store(true)
	s.SetLastError("")
}

// FailIndexing records a failed enumeration outcome.
func (s *Store) FailIndexing(message string) {
	s.ready.Store(false)
	s.indexedCount.Store(0)
	s.SetLastError(message)
}

// ApplyBatch applies one journal read's records to the node table and the
// indexed view as a single exclusive-lock batch. Rules:
//
//   - the first half of a rename (old name, no delete, no new name) is
//     skipped; the paired record follows
//   - a delete removes node and view entry; deleting a directory schedules
//     a full view rebuild, which is cheaper than tracking descendants
//   - everything else upserts the node; a directory whose identity changed
//     schedules a rebuild because descendants' paths changed; files are
//     resolved against a batch-local memo and upserted in place
func (s *Store) ApplyBatch(records []volume.ChangeRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rootFRN == 0 || s.rootPath == "" || len(records) == 0 {
		return
	}

	includeDirs := s.includeDirs.Load()
	rebuild := false
	resolver := NewResolver(s.nodes, s.rootFRN, s.rootPath)

	for _, rec := range records {
		if rec.FRN == 0 || rec.Name == "" {
			continue
		}
		isDelete := rec.Reason&volume.ReasonFileDelete != 0
		oldNameOnly := rec.Reason&volume.ReasonRenameOldName != 0 &&
			rec.Reason&volume.ReasonRenameNewName == 0 && !isDelete
		if oldNameOnly {
			continue
		}

		oldNode, hadOld := s.nodes[rec.FRN]

		if isDelete {
			if hadOld && oldNode.IsDirectory {
				rebuild = true
			}
			delete(s.nodes, rec.FRN)
			s.files.Remove(rec.FRN)
			continue
		}

		s.nodes[rec.FRN] = Node{ParentFRN: rec.ParentFRN, Name: rec.Name, IsDirectory: rec.IsDirectory}

		if rec.IsDirectory {
			if !hadOld || !oldNode.IsDirectory ||
				oldNode.ParentFRN != rec.ParentFRN || oldNode.Name != rec.Name {
				rebuild = true
			}
			if !includeDirs {
				s.files.Remove(rec.FRN)
				continue
			}
		}

		path, ok := resolver.Resolve(rec.FRN)
		if !ok || path == "" || (s.ignore != nil && s.ignore.MatchesPath(path)) {
			s.files.Remove(rec.FRN)
			continue
		}
		ext := ""
		if !rec.IsDirectory {
			ext = ExtractExtension(rec.Name)
		}
		s.files.Upsert(IndexedFile{
			FRN:         rec.FRN,
			Name:        rec.Name,
			Path:        path,
			Extension:   ext,
			IsDirectory: rec.IsDirectory,
		})
	}

	if rebuild {
		s.rebuildLocked()
	}
	s.indexedCount.Store(uint64(s.files.Len()))
}

func (s *Store) rebuildLocked() {
	if s.rootFRN == 0 || s.rootPath == "" || len(s.nodes) == 0 {
		s.files.Reset(nil)
		return
	}
	files, _ := Project(s.nodes, s.rootFRN, s.rootPath, s.includeDirs.Load(), s.ignore, nil)
	s.files.Reset(files)
	s.verifyLocked()
}

// verifyLocked asserts the position-map invariants after a wholesale view
// replacement: exactly one map entry per file, each pointing back at its
// own index.
func (s *Store) verifyLocked() {
	ctx := context.Background()
	s.asserts.Assert(ctx, len(s.files.positions) == s.files.Len(),
		"file position lookup must be dense")
	for i := range s.files.files {
		pos, ok := s.files.positions[s.files.files[i].FRN]
		if !ok || pos != i {
			s.asserts.Assert(ctx, false, "file position lookup must be exact")
			return
		}
	}
}

// ReadView runs fn over the indexed view under the shared lock.
func (s *Store) ReadView(fn func(view *FileList)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.files)
}

// SnapshotFiles copies the indexed-file sequence under the shared lock.
func (s *Store) SnapshotFiles() []IndexedFile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.files.Copy()
}

// PublishProgressCount publishes an imprecise in-flight discovery counter.
func (s *Store) PublishProgressCount(n uint64) {
	s.indexedCount.Store(n)
}

// IsIndexing reports whether an enumeration is running.
func (s *Store) IsIndexing() bool { return s.indexing.Load() }

// IsReady reports whether a published index is available.
func (s *Store) IsReady() bool { return s.ready.Load() }

// IndexedCount returns the published entry count.
func (s *Store) IndexedCount() uint64 { return s.indexedCount.Load() }

// IncludeDirectories reports the current projection configuration.
func (s *Store) IncludeDirectories() bool { return s.includeDirs.Load() }

// AllDrivesMode reports whether the most recent enumeration was an
// all-drives scan.
func (s *Store) AllDrivesMode() bool { return s.allDrives.Load() }

// SetLastError replaces the user-visible error text.
func (s *Store) SetLastError(message string) {
	s.errMu.Lock()
	s.lastError = message
	s.errMu.Unlock()
}

// LastError returns the user-visible error text, empty when none.
func (s *Store) LastError() string {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.lastError
}
