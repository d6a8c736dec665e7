//go:build windows

package winfs

import (
	"strings"

	"github.com/yusufpapurcu/wmi"

	"github.com/ZanzyTHEbar/omnisearch/omni/volume"
)

// win32LogicalDisk is the subset of Win32_LogicalDisk the core consumes.
type win32LogicalDisk struct {
	DeviceID   string
	DriveType  uint32
	FileSystem *string
}

// ListDrives enumerates logical drives with filesystem type and raw-volume
// accessibility. The volume open probe runs only for NTFS drives; it is the
// expensive part and meaningless elsewhere.
func ListDrives() ([]Drive, error) {
	var disks []win32LogicalDisk
	if err := wmi.Query("SELECT DeviceID, DriveType, FileSystem FROM Win32_LogicalDisk", &disks); err != nil {
		return nil, err
	}

	rows := make([]Drive, 0, len(disks))
	for _, disk := range disks {
		if len(disk.DeviceID) < 2 || disk.DeviceID[1] != ':' {
			continue
		}
		letter := strings.ToUpper(disk.DeviceID[:1])
		if letter[0] < 'A' || letter[0] > 'Z' {
			continue
		}

		filesystem := ""
		if disk.FileSystem != nil {
			filesystem = *disk.FileSystem
		}
		isNtfs := strings.EqualFold(filesystem, "ntfs")
		canOpen := false
		if isNtfs {
			canOpen = volume.CanOpen(letter)
		}

		rows = append(rows, Drive{
			Letter:        letter,
			Path:          letter + `:\`,
			Filesystem:    filesystem,
			DriveType:     driveTypeText(disk.DriveType),
			IsNtfs:        isNtfs,
			CanOpenVolume: canOpen,
		})
	}
	return rows, nil
}
