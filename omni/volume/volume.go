// Package volume provides raw access to NTFS volumes: opening the volume
// device, draining the Master File Table, and reading the update journal.
// Record parsing is pure and shared between the full enumeration and the
// live watcher.
package volume

// FRN is a file reference number: the 64-bit identifier NTFS assigns to a
// file or directory within a volume. Stable across renames but not across
// volumes.
type FRN = uint64

// USN is a position within the NTFS update journal.
type USN = int64

// Change reason bits carried by journal records. Only the rename and delete
// bits influence index maintenance; everything else is treated as an upsert.
const (
	ReasonFileDelete    uint32 = 0x00000200
	ReasonRenameOldName uint32 = 0x00001000
	ReasonRenameNewName uint32 = 0x00002000
)

// ChangeRecord is one decoded journal entry, uniform across the V2 and V3
// wire layouts.
type ChangeRecord struct {
	FRN         FRN
	ParentFRN   FRN
	Name        string
	IsDirectory bool
	Reason      uint32
}

// JournalInfo describes the state of a volume's update journal at query time.
type JournalInfo struct {
	ID      uint64
	NextUSN USN
}

// Device is a raw volume handle. The enumeration driver and the live watcher
// consume this interface; the Windows implementation issues the real control
// operations, tests substitute fakes.
type Device interface {
	// RootFRN returns the file reference number of the volume root
	// directory.
	RootFRN() (FRN, error)

	// QueryJournal queries the update journal. A missing journal surfaces
	// as a *DeviceError whose code satisfies IsJournalMissing.
	QueryJournal() (JournalInfo, error)

	// CreateJournal creates an update journal with the given maximum size
	// and allocation delta.
	CreateJournal(maxSize, allocationDelta uint64) error

	// EnumerateMFT issues one enumerate control call starting at startFRN,
	// bounded above by highUSN. The reply placed in buf is the next
	// continuation FRN (8 bytes) followed by packed records; n is the
	// number of valid bytes. The end of the table surfaces as a
	// *DeviceError whose code satisfies IsEndOfFile.
	EnumerateMFT(startFRN FRN, highUSN USN, buf []byte) (n int, err error)

	// ReadJournal issues one journal read starting at startUSN with an
	// unbounded reason mask and zero wait bytes. The reply placed in buf
	// is the next USN (8 bytes) followed by packed records.
	ReadJournal(journalID uint64, startUSN USN, buf []byte) (n int, err error)

	Close() error
}
