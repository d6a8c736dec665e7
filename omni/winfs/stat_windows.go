//go:build windows

package winfs

import (
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/ZanzyTHEbar/omnisearch/omni/volume"
)

// Windows file times are 100 ns ticks since 1601-01-01.
const (
	ticksPerSecond      = 10_000_000
	unixEpochInWinTicks = 11_644_473_600 * ticksPerSecond
)

// Stat loads file metadata without opening the file.
func Stat(path string) (Metadata, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return Metadata{}, volume.NewDeviceError("Failed to read file metadata.", 0, err.Error())
	}
	var data windows.Win32FileAttributeData
	if err := windows.GetFileAttributesEx(p, windows.GetFileExInfoStandard, (*byte)(unsafe.Pointer(&data))); err != nil {
		code := uint32(0)
		message := err.Error()
		if errno, ok := err.(windows.Errno); ok {
			code = uint32(errno)
		}
		return Metadata{}, volume.NewDeviceError("Failed to read file metadata.", code, message)
	}
	return Metadata{
		Size:         uint64(data.FileSizeHigh)<<32 | uint64(data.FileSizeLow),
		CreatedUnix:  filetimeToUnix(data.CreationTime),
		ModifiedUnix: filetimeToUnix(data.LastWriteTime),
	}, nil
}

func filetimeToUnix(ft windows.Filetime) int64 {
	ticks := uint64(ft.HighDateTime)<<32 | uint64(ft.LowDateTime)
	if ticks < unixEpochInWinTicks {
		return 0
	}
	return int64((ticks - unixEpochInWinTicks) / ticksPerSecond)
}
