package duplicate

import "sync/atomic"

// Status holds the live counters of the duplicate scan. All fields are
// atomic so worker goroutines write and the status call reads without
// locks.
type Status struct {
	running         atomic.Bool
	cancelRequested atomic.Bool
	done            atomic.Uint64
	total           atomic.Uint64
	groupsFound     atomic.Uint64
}

// StatusView is one consistent-enough sample of the counters.
type StatusView struct {
	Running         bool
	CancelRequested bool
	ScannedFiles    uint64
	TotalFiles      uint64
	GroupsFound     uint64
	ProgressPercent float64
}

// View samples the counters. The percentage is clamped to [0, 100].
func (s *Status) View() StatusView {
	done := s.done.Load()
	total := s.total.Load()
	percent := 0.0
	if total > 0 {
		percent = float64(done) * 100.0 / float64(total)
		if percent > 100.0 {
			percent = 100.0
		}
	}
	return StatusView{
		Running:         s.running.Load(),
		CancelRequested: s.cancelRequested.Load(),
		ScannedFiles:    done,
		TotalFiles:      total,
		GroupsFound:     s.groupsFound.Load(),
		ProgressPercent: percent,
	}
}

// TryStart flips the running flag; it reports false when a scan is already
// running.
func (s *Status) TryStart() bool {
	return s.running.CompareAndSwap(false, true)
}

// Stop drops the running flag.
func (s *Status) Stop() { s.running.Store(false) }

// Running reports whether a scan is in flight.
func (s *Status) Running() bool { return s.running.Load() }

// RequestCancel flags the running scan; the engine returns at its next
// check.
func (s *Status) RequestCancel() { s.cancelRequested.Store(true) }

// ClearCancel resets the flag after the scan call returns.
func (s *Status) ClearCancel() { s.cancelRequested.Store(false) }

// Cancelled reports whether cancellation was requested.
func (s *Status) Cancelled() bool { return s.cancelRequested.Load() }

// Reset zeroes the progress counters at the start of a scan.
func (s *Status) Reset() {
	s.done.Store(0)
	s.total.Store(0)
	s.groupsFound.Store(0)
}

func (s *Status) addTotal(units uint64) {
	if units > 0 {
		s.total.Add(units)
	}
}

func (s *Status) addDone(units uint64) {
	if units > 0 {
		s.done.Add(units)
	}
}

func (s *Status) setGroups(n uint64) { s.groupsFound.Store(n) }

// snapDone jumps the done counter to the total at finalisation so the scan
// always reports 100 % even when earlier stages skipped files without
// explicit progress.
func (s *Status) snapDone() { s.done.Store(s.total.Load()) }
