// Package winfs wraps the per-file and per-drive OS queries the core needs:
// file metadata (size, creation and modification times) and logical drive
// enumeration.
package winfs

import "github.com/ZanzyTHEbar/omnisearch/omni/volume"

// Metadata is the stat result the search evaluator and duplicate engine
// consume. Times are seconds since the Unix epoch; values predating the
// epoch are reported as zero.
type Metadata struct {
	Size         uint64
	CreatedUnix  int64
	ModifiedUnix int64
}

// StatFn loads metadata for an absolute path. The default is Stat; tests
// substitute fakes.
type StatFn func(path string) (Metadata, error)

// IsPathMissing reports whether a stat failure means the indexed entry is
// stale (deleted, moved, bad name, or an unreachable share). Such entries
// are dropped silently.
func IsPathMissing(err error) bool {
	if err == nil {
		return false
	}
	return volume.IsPathMissing(volume.ErrorCode(err))
}

// Drive describes one logical drive for the host UI.
type Drive struct {
	Letter        string
	Path          string
	Filesystem    string
	DriveType     string
	IsNtfs        bool
	CanOpenVolume bool
}

// Logical drive type names, shared with the host UI.
const (
	DriveTypeFixed     = "fixed"
	DriveTypeRemovable = "removable"
	DriveTypeNetwork   = "network"
	DriveTypeCdrom     = "cdrom"
	DriveTypeRamdisk   = "ramdisk"
	DriveTypeNoRoot    = "no-root"
	DriveTypeUnknown   = "unknown"
)

// driveTypeText maps the OS drive type numbering (shared by GetDriveType
// and Win32_LogicalDisk) to the UI spelling.
func driveTypeText(driveType uint32) string {
	switch driveType {
	case 3:
		return DriveTypeFixed
	case 2:
		return DriveTypeRemovable
	case 4:
		return DriveTypeNetwork
	case 5:
		return DriveTypeCdrom
	case 6:
		return DriveTypeRamdisk
	case 1:
		return DriveTypeNoRoot
	default:
		return DriveTypeUnknown
	}
}
