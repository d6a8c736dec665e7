// Package core exposes the flat procedural surface the host process
// consumes: indexing control, search, duplicate scanning, and drive
// listing, all over one process-wide index. The foreign-function layer
// that marshals these results across the C ABI lives in the host; core
// returns Go strings holding the exact JSON bytes it specifies.
package core

import (
	"sync"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/ZanzyTHEbar/omnisearch/omni/config"
	"github.com/ZanzyTHEbar/omnisearch/omni/duplicate"
	"github.com/ZanzyTHEbar/omnisearch/omni/index"
	"github.com/ZanzyTHEbar/omnisearch/omni/scanner"
	"github.com/ZanzyTHEbar/omnisearch/omni/search"
	"github.com/ZanzyTHEbar/omnisearch/omni/winfs"
)

// IndexStatus aggregates the indexing observables for hosts that poll.
type IndexStatus struct {
	Indexing     bool
	Ready        bool
	IndexedCount uint64
	LastError    string
}

// Core is the singleton facade over the index store, the enumeration
// driver, the search evaluator, and the duplicate engine. The single live
// index, single watcher, and single duplicate scan reflect the UI use
// case: one user, one machine, one index at a time.
type Core struct {
	store  *index.Store
	driver *scanner.Driver
	eval   *search.Evaluator
	engine *duplicate.Engine
	drives scanner.DriveLister
}

// Option customises Core construction; tests use these to substitute
// fakes for the OS-facing collaborators.
type Option func(*options)

type options struct {
	open   scanner.DeviceOpener
	drives scanner.DriveLister
	stat   winfs.StatFn
	cfg    *config.Config
}

// WithDeviceOpener substitutes the volume device opener.
func WithDeviceOpener(open scanner.DeviceOpener) Option {
	return func(o *options) { o.open = open }
}

// WithDriveLister substitutes the logical drive lister.
func WithDriveLister(drives scanner.DriveLister) Option {
	return func(o *options) { o.drives = drives }
}

// WithStat substitutes the per-file metadata loader.
func WithStat(stat winfs.StatFn) Option {
	return func(o *options) { o.stat = stat }
}

// WithConfig applies a loaded configuration.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// New builds a Core. Without options it wires the real platform
// collaborators and default tuning.
func New(opts ...Option) *Core {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	store := index.NewStore()

	driverOpts := scanner.Options{}
	engineWorkers, engineReserved := 0, 0
	if o.cfg != nil {
		driverOpts = scanner.Options{
			EnumBufferSize:         o.cfg.Indexer.EnumBufferSize,
			WatchBufferSize:        o.cfg.Watcher.ReadBufferSize,
			ProgressStride:         o.cfg.Indexer.ProgressStride,
			JournalMaxSize:         o.cfg.Watcher.JournalMaxSize,
			JournalAllocationDelta: o.cfg.Watcher.JournalAllocationDelta,
		}
		engineWorkers = o.cfg.Duplicate.MaxWorkers
		engineReserved = o.cfg.Duplicate.ReservedCores
		if len(o.cfg.Indexer.IgnorePatterns) > 0 {
			store.SetIgnoreMatcher(ignore.CompileIgnoreLines(o.cfg.Indexer.IgnorePatterns...))
		}
	}

	driver := scanner.NewDriver(store, o.open, o.drives, driverOpts)
	if o.cfg != nil {
		driver.Watcher().SetPollInterval(o.cfg.Watcher.PollInterval)
	}
	c := &Core{
		store:  store,
		driver: driver,
		eval:   search.NewEvaluator(store, o.stat),
		engine: duplicate.NewEngine(store, o.stat, nil, engineWorkers, engineReserved),
		drives: o.drives,
	}
	if c.drives == nil {
		c.drives = winfs.ListDrives
	}
	return c
}

var (
	defaultOnce sync.Once
	defaultCore *Core
)

// Default returns the process-wide Core instance.
func Default() *Core {
	defaultOnce.Do(func() {
		defaultCore = New()
	})
	return defaultCore
}

// StartIndexing bumps the indexing token and starts a background
// enumeration of the given drive (or of every NTFS volume when
// scanAllDrives is set). It returns immediately; a newer request silently
// supersedes any in-flight enumeration and any live watcher.
func (c *Core) StartIndexing(drive string, includeDirectories, scanAllDrives bool) bool {
	letter := scanner.NormalizeDriveLetter(drive)
	token := c.store.BeginIndexing(includeDirectories, scanAllDrives)
	go c.driver.Run(token, letter, includeDirectories, scanAllDrives)
	return true
}

// IsIndexing reports whether an enumeration is running.
func (c *Core) IsIndexing() bool { return c.store.IsIndexing() }

// IsIndexReady reports whether a published index is available.
func (c *Core) IsIndexReady() bool { return c.store.IsReady() }

// IndexedFileCount returns the published entry count.
func (c *Core) IndexedFileCount() uint64 { return c.store.IndexedCount() }

// LastError returns the user-visible error text, empty when none.
func (c *Core) LastError() string { return c.store.LastError() }

// Status samples all indexing observables at once.
func (c *Core) Status() IndexStatus {
	return IndexStatus{
		Indexing:     c.store.IsIndexing(),
		Ready:        c.store.IsReady(),
		IndexedCount: c.store.IndexedCount(),
		LastError:    c.store.LastError(),
	}
}

// ListDrivesJSON returns the logical drive listing.
func (c *Core) ListDrivesJSON() string {
	rows, err := c.drives()
	if err != nil {
		c.store.SetLastError("Failed to enumerate drives: " + err.Error())
		return "[]"
	}
	return drivesJSON(rows)
}

// SearchFilesJSON evaluates a query against the index. Sentinels: zero
// minSize, MaxUint64 maxSize, MinInt64 minCreated, MaxInt64 maxCreated
// mean "no bound"; limit zero means 200.
func (c *Core) SearchFilesJSON(query, extension string, minSize, maxSize uint64, minCreated, maxCreated int64, limit int) string {
	rows := c.eval.Run(search.Query{
		Text:       query,
		Extension:  extension,
		MinSize:    minSize,
		MaxSize:    maxSize,
		MinCreated: minCreated,
		MaxCreated: maxCreated,
		Limit:      limit,
	})
	return searchRowsJSON(rows)
}

// FindDuplicatesJSON runs a duplicate scan synchronously on the caller's
// goroutine; it may take minutes. It reports ok=false with the reason in
// LastError when the index is not ready, a scan is already running, or the
// scan was cancelled.
func (c *Core) FindDuplicatesJSON(minSize uint64, maxGroups, maxFilesPerGroup int) (string, bool) {
	if !c.store.IsReady() {
		c.store.SetLastError("Index is not ready yet. Wait for indexing to finish.")
		return "", false
	}

	status := c.engine.Status()
	if !status.TryStart() {
		c.store.SetLastError("Duplicate scan is already running.")
		return "", false
	}

	status.ClearCancel()
	status.Reset()
	groups := c.engine.Run(minSize, maxGroups, maxFilesPerGroup)
	cancelled := status.Cancelled()
	status.Stop()

	if cancelled {
		status.ClearCancel()
		c.store.SetLastError("Duplicate scan cancelled.")
		return "", false
	}

	out := duplicateGroupsJSON(groups)
	status.ClearCancel()
	return out, true
}

// CancelDuplicateScan flags the running scan. It reports whether a scan
// was running.
func (c *Core) CancelDuplicateScan() bool {
	status := c.engine.Status()
	if !status.Running() {
		return false
	}
	status.RequestCancel()
	return true
}

// DuplicateScanStatusJSON samples the duplicate scan counters.
func (c *Core) DuplicateScanStatusJSON() string {
	return duplicateStatusJSON(c.engine.Status().View())
}

// ScanMFTJSON performs a one-shot synchronous scan of a single volume and
// returns the basic file listing. It bypasses the live index entirely.
func (c *Core) ScanMFTJSON(drive string) (string, bool) {
	letter := scanner.NormalizeDriveLetter(drive)
	snap, err := c.driver.ScanVolume(letter, false, 0)
	if err != nil {
		message := err.Error()
		if message == "" {
			message = "scan_mft failed."
		}
		c.store.SetLastError(message)
		return "", false
	}
	return basicFilesJSON(snap.Files), true
}
