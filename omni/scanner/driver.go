// Package scanner drives full-volume MFT enumeration and keeps the index
// live by replaying the NTFS update journal.
package scanner

import (
	"log/slog"
	"math"
	"strings"

	"github.com/google/uuid"

	internal "github.com/ZanzyTHEbar/omnisearch/omni"
	"github.com/ZanzyTHEbar/omnisearch/omni/index"
	"github.com/ZanzyTHEbar/omnisearch/omni/volume"
	"github.com/ZanzyTHEbar/omnisearch/omni/winfs"
)

// DeviceOpener opens the raw volume device for a drive letter.
type DeviceOpener func(letter string) (volume.Device, error)

// DriveLister enumerates logical drives for all-drives scans.
type DriveLister func() ([]winfs.Drive, error)

// Options tunes the enumeration driver and the watcher it starts.
type Options struct {
	EnumBufferSize         int
	WatchBufferSize        int
	ProgressStride         uint64
	JournalMaxSize         uint64
	JournalAllocationDelta uint64
}

func (o Options) withDefaults() Options {
	if o.EnumBufferSize <= 0 {
		o.EnumBufferSize = internal.DefaultEnumBufferSize
	}
	if o.WatchBufferSize <= 0 {
		o.WatchBufferSize = internal.DefaultWatchBufferSize
	}
	if o.ProgressStride == 0 {
		o.ProgressStride = 16384
	}
	if o.JournalMaxSize == 0 {
		o.JournalMaxSize = 32 * 1024 * 1024
	}
	if o.JournalAllocationDelta == 0 {
		o.JournalAllocationDelta = 8 * 1024 * 1024
	}
	return o
}

// Driver performs enumeration passes and publishes their results into the
// store.
type Driver struct {
	store   *index.Store
	open    DeviceOpener
	drives  DriveLister
	opts    Options
	watcher *Watcher
}

// NewDriver wires a driver to the store. Passing nil for open or drives
// selects the real platform implementations.
func NewDriver(store *index.Store, open DeviceOpener, drives DriveLister, opts Options) *Driver {
	if open == nil {
		open = volume.OpenDevice
	}
	if drives == nil {
		drives = winfs.ListDrives
	}
	opts = opts.withDefaults()
	d := &Driver{store: store, open: open, drives: drives, opts: opts}
	d.watcher = NewWatcher(store, open, opts)
	return d
}

// Watcher returns the live watcher owned by this driver.
func (d *Driver) Watcher() *Watcher { return d.watcher }

// NormalizeDriveLetter reduces caller input to a single uppercase letter,
// falling back to the default drive.
func NormalizeDriveLetter(drive string) string {
	drive = strings.TrimSpace(drive)
	if drive == "" {
		return internal.DefaultDrive
	}
	c := drive[0]
	if c >= 'a' && c <= 'z' {
		c -= 'a' - 'A'
	}
	if c < 'A' || c > 'Z' {
		return internal.DefaultDrive
	}
	return string(rune(c))
}

// Run executes one enumeration request on the caller's goroutine. The token
// comes from Store.BeginIndexing; a mismatch observed at any chunk boundary
// abandons the pass without publishing partial state.
func (d *Driver) Run(token uint64, drive string, includeDirs, allDrives bool) {
	runID := uuid.NewString()
	log := slog.With("run", runID, "drive", drive, "allDrives", allDrives)
	log.Info("enumeration started", "includeDirectories", includeDirs)

	if allDrives {
		d.runAllDrives(token, drive, includeDirs, log)
	} else {
		d.runSingle(token, drive, includeDirs, log)
	}
	d.store.FinishIndexing(token)
}

func (d *Driver) runSingle(token uint64, drive string, includeDirs bool, log *slog.Logger) {
	snap, err := d.ScanVolume(drive, includeDirs, token)
	if d.store.Cancelled(token) {
		log.Info("enumeration superseded")
		return
	}
	if err != nil {
		message := err.Error()
		if message == "" {
			message = "Unknown indexing error."
		}
		d.store.FailIndexing(message)
		log.Error("enumeration failed", "error", err)
		return
	}

	d.store.PublishSnapshot(snap)
	log.Info("enumeration published", "files", len(snap.Files), "liveUpdates", snap.LiveUpdates)
	if snap.LiveUpdates {
		d.watcher.Start(drive, snap.JournalID, snap.NextUSN)
	}
}

func (d *Driver) runAllDrives(token uint64, preferred string, includeDirs bool, log *slog.Logger) {
	targets := d.resolveTargets(preferred)

	var merged []index.IndexedFile
	var combined strings.Builder
	succeeded := false

	for _, target := range targets {
		if d.store.Cancelled(token) {
			log.Info("enumeration superseded")
			return
		}
		snap, err := d.ScanVolume(target, includeDirs, token)
		if d.store.Cancelled(token) {
			log.Info("enumeration superseded")
			return
		}
		if err != nil {
			// Partial failure across volumes is tolerated; the pass
			// succeeds if at least one volume produced results.
			if combined.Len() > 0 {
				combined.WriteString(" | ")
			}
			combined.WriteString(target)
			combined.WriteString(": ")
			combined.WriteString(err.Error())
			log.Warn("volume skipped", "volume", target, "error", err)
			continue
		}
		succeeded = true
		merged = append(merged, snap.Files...)
		d.store.PublishProgressCount(uint64(len(merged)))
	}

	if d.store.Cancelled(token) {
		return
	}
	if !succeeded {
		message := combined.String()
		if message == "" {
			message = "Unknown indexing error."
		}
		d.store.FailIndexing(message)
		log.Error("enumeration failed on every volume", "error", message)
		return
	}

	// Live updates cannot apply coherently to a concatenation of volumes,
	// so an all-drives result stands alone without a node table.
	d.store.PublishFilesOnly(merged)
	log.Info("enumeration published", "files", len(merged))
}

func (d *Driver) resolveTargets(preferred string) []string {
	rows, err := d.drives()
	if err != nil {
		slog.Warn("drive enumeration failed", "error", err)
	}
	var targets []string
	for _, row := range rows {
		if !row.IsNtfs || !row.CanOpenVolume {
			continue
		}
		targets = append(targets, row.Letter)
	}
	if len(targets) == 0 {
		targets = append(targets, preferred)
	}
	return targets
}

// ScanVolume performs the full enumeration pass for one volume: drain the
// MFT, build the node table, then project it into the indexed-file view.
func (d *Driver) ScanVolume(drive string, includeDirs bool, token uint64) (*index.Snapshot, error) {
	rootPath := drive + `:\`

	dev, err := d.open(drive)
	if err != nil {
		return nil, err
	}
	defer dev.Close()

	rootFRN, err := dev.RootFRN()
	if err != nil {
		return nil, err
	}

	journal, hasJournal, err := d.queryOrCreateJournal(dev)
	if err != nil {
		return nil, err
	}

	highUSN := volume.USN(math.MaxInt64)
	if hasJournal {
		highUSN = journal.NextUSN
	}

	buf := make([]byte, d.opts.EnumBufferSize)
	nodes := make(index.NodeTable, 1<<18)
	var startFRN volume.FRN
	var discovered uint64

	for {
		if d.store.Cancelled(token) {
			return nil, volume.ErrCancelled
		}

		n, err := dev.EnumerateMFT(startFRN, highUSN, buf)
		if err != nil {
			if volume.IsEndOfFile(volume.ErrorCode(err)) {
				break
			}
			return nil, err
		}
		if n <= 8 {
			break
		}

		continuation, records, ok := volume.ParseBatch(buf[:n])
		if !ok {
			break
		}
		startFRN = continuation

		for _, rec := range records {
			nodes[rec.FRN] = index.Node{
				ParentFRN:   rec.ParentFRN,
				Name:        rec.Name,
				IsDirectory: rec.IsDirectory,
			}
			if !rec.IsDirectory {
				discovered++
				// Imprecise progress signal; precise publication happens
				// at the end of the pass. The one-shot scan (token zero)
				// leaves the store's count alone.
				if token != 0 && discovered%d.opts.ProgressStride == 0 {
					d.store.PublishProgressCount(discovered)
				}
			}
		}
	}

	if d.store.Cancelled(token) {
		return nil, volume.ErrCancelled
	}

	// Terminator for the path resolver: the root is its own parent.
	nodes[rootFRN] = index.Node{ParentFRN: rootFRN, Name: "", IsDirectory: true}

	files, ok := index.Project(nodes, rootFRN, rootPath, includeDirs, d.store.IgnoreMatcher(), func() bool {
		return d.store.Cancelled(token)
	})
	if !ok {
		return nil, volume.ErrCancelled
	}

	snap := &index.Snapshot{
		Files:       files,
		Nodes:       nodes,
		RootFRN:     rootFRN,
		RootPath:    rootPath,
		LiveUpdates: hasJournal,
	}
	if hasJournal {
		snap.JournalID = journal.ID
		snap.NextUSN = journal.NextUSN
	}
	return snap, nil
}

// queryOrCreateJournal queries the update journal, creating one when the
// volume has none. Enumeration continues without live-update support when
// the journal stays unavailable; only unexpected query failures are fatal.
func (d *Driver) queryOrCreateJournal(dev volume.Device) (volume.JournalInfo, bool, error) {
	journal, err := dev.QueryJournal()
	if err == nil {
		return journal, true, nil
	}
	if !volume.IsJournalMissing(volume.ErrorCode(err)) {
		return volume.JournalInfo{}, false, err
	}

	if createErr := dev.CreateJournal(d.opts.JournalMaxSize, d.opts.JournalAllocationDelta); createErr != nil {
		slog.Warn("journal create failed", "error", createErr)
	}
	journal, err = dev.QueryJournal()
	if err != nil {
		slog.Warn("journal unavailable, live updates disabled", "error", err)
		return volume.JournalInfo{}, false, nil
	}
	return journal, true, nil
}
