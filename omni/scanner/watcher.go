package scanner

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ZanzyTHEbar/omnisearch/omni/index"
	"github.com/ZanzyTHEbar/omnisearch/omni/volume"
)

const defaultPollInterval = 120 * time.Millisecond

// Watcher replays the NTFS update journal into the index on a background
// goroutine. It is started once per successful single-volume enumeration
// and exits when the store's live-watcher token moves.
type Watcher struct {
	store        *index.Store
	open         DeviceOpener
	bufferSize   int
	pollInterval time.Duration
}

// NewWatcher builds a watcher bound to the store.
func NewWatcher(store *index.Store, open DeviceOpener, opts Options) *Watcher {
	if open == nil {
		open = volume.OpenDevice
	}
	opts = opts.withDefaults()
	return &Watcher{
		store:        store,
		open:         open,
		bufferSize:   opts.WatchBufferSize,
		pollInterval: defaultPollInterval,
	}
}

// SetPollInterval overrides the idle sleep between journal reads.
func (w *Watcher) SetPollInterval(d time.Duration) {
	if d > 0 {
		w.pollInterval = d
	}
}

// Start launches the watcher goroutine reading from the captured next-USN
// watermark. A zero journal identifier or non-positive start USN means the
// enumeration ran without journal support, so there is nothing to watch.
func (w *Watcher) Start(drive string, journalID uint64, startUSN volume.USN) {
	if journalID == 0 || startUSN <= 0 {
		return
	}
	token := w.store.NextWatcherToken()
	go w.run(token, drive, journalID, startUSN)
}

func (w *Watcher) run(token uint64, drive string, journalID uint64, startUSN volume.USN) {
	log := slog.With("drive", drive, "journalID", journalID)

	dev, err := w.open(drive)
	if err != nil {
		if !w.store.WatcherCancelled(token) {
			w.store.SetLastError(fmt.Sprintf("Live updates could not start (unable to open volume): %v", err))
		}
		return
	}
	defer dev.Close()

	buf := make([]byte, w.bufferSize)
	log.Info("live watcher started", "startUSN", startUSN)

	for !w.store.WatcherCancelled(token) {
		n, err := dev.ReadJournal(journalID, startUSN, buf)
		if err != nil {
			if w.store.WatcherCancelled(token) {
				break
			}
			code := volume.ErrorCode(err)
			if volume.IsEndOfFile(code) {
				time.Sleep(w.pollInterval)
				continue
			}
			if volume.IsJournalLost(code) {
				w.store.SetLastError("Live updates paused because the USN journal changed. Click Reindex.")
				log.Warn("journal lost, watcher terminated", "code", code)
				break
			}
			w.store.SetLastError(fmt.Sprintf("Live updates paused because USN monitoring failed: %v", err))
			log.Error("journal read failed, watcher terminated", "error", err)
			break
		}

		if n < 8 {
			time.Sleep(w.pollInterval)
			continue
		}

		nextUSN, records, ok := volume.ParseBatch(buf[:n])
		if !ok {
			time.Sleep(w.pollInterval)
			continue
		}
		startUSN = volume.USN(nextUSN)
		if n == 8 {
			// Only the continuation prefix came back; nothing changed yet.
			time.Sleep(w.pollInterval)
			continue
		}

		if len(records) == 0 || w.store.WatcherCancelled(token) {
			continue
		}
		w.store.ApplyBatch(records)
	}

	log.Info("live watcher stopped")
}
