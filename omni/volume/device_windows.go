//go:build windows

package volume

import (
	"encoding/binary"

	"golang.org/x/sys/windows"
)

// Volume filesystem control codes. Not exposed by x/sys/windows.
const (
	fsctlEnumUsnData      = 0x000900B3
	fsctlReadUsnJournal   = 0x000900BB
	fsctlCreateUsnJournal = 0x000900E7
	fsctlQueryUsnJournal  = 0x000900F4
)

type windowsDevice struct {
	handle windows.Handle
	letter string
}

// OpenDevice opens the raw volume device for a drive letter with read
// access and full sharing. Requires administrator privileges and an NTFS
// filesystem.
func OpenDevice(letter string) (Device, error) {
	path, err := windows.UTF16PtrFromString(`\\.\` + letter + `:`)
	if err != nil {
		return nil, err
	}
	handle, err := windows.CreateFile(
		path,
		windows.GENERIC_READ,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE|windows.FILE_SHARE_DELETE,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_ATTRIBUTE_NORMAL,
		0,
	)
	if err != nil {
		return nil, deviceError(
			"Unable to open volume. Run as administrator and ensure the target drive is NTFS.", err)
	}
	return &windowsDevice{handle: handle, letter: letter}, nil
}

// CanOpen probes whether the raw volume device for a drive letter can be
// opened at all.
func CanOpen(letter string) bool {
	dev, err := OpenDevice(letter)
	if err != nil {
		return false
	}
	dev.Close()
	return true
}

func (d *windowsDevice) RootFRN() (FRN, error) {
	path, err := windows.UTF16PtrFromString(d.letter + `:\`)
	if err != nil {
		return 0, err
	}
	root, err := windows.CreateFile(
		path,
		windows.FILE_READ_ATTRIBUTES,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE|windows.FILE_SHARE_DELETE,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_FLAG_BACKUP_SEMANTICS,
		0,
	)
	if err != nil {
		return 0, deviceError("Failed to open drive root handle.", err)
	}
	defer windows.CloseHandle(root)

	var info windows.ByHandleFileInformation
	if err := windows.GetFileInformationByHandle(root, &info); err != nil {
		return 0, deviceError("Failed to read root file reference number.", err)
	}
	return uint64(info.FileIndexHigh)<<32 | uint64(info.FileIndexLow), nil
}

func (d *windowsDevice) QueryJournal() (JournalInfo, error) {
	// USN_JOURNAL_DATA_V0: UsnJournalID, FirstUsn, NextUsn, LowestValidUsn,
	// MaxUsn, MaximumSize, AllocationDelta.
	var out [56]byte
	var returned uint32
	err := windows.DeviceIoControl(
		d.handle, fsctlQueryUsnJournal,
		nil, 0,
		&out[0], uint32(len(out)),
		&returned, nil,
	)
	if err != nil {
		return JournalInfo{}, deviceError("Failed to query USN journal.", err)
	}
	return JournalInfo{
		ID:      binary.LittleEndian.Uint64(out[0:8]),
		NextUSN: int64(binary.LittleEndian.Uint64(out[16:24])),
	}, nil
}

func (d *windowsDevice) CreateJournal(maxSize, allocationDelta uint64) error {
	// CREATE_USN_JOURNAL_DATA: MaximumSize, AllocationDelta.
	var in [16]byte
	binary.LittleEndian.PutUint64(in[0:8], maxSize)
	binary.LittleEndian.PutUint64(in[8:16], allocationDelta)
	var returned uint32
	err := windows.DeviceIoControl(
		d.handle, fsctlCreateUsnJournal,
		&in[0], uint32(len(in)),
		nil, 0,
		&returned, nil,
	)
	if err != nil {
		return deviceError("Failed to create USN journal.", err)
	}
	return nil
}

func (d *windowsDevice) EnumerateMFT(startFRN FRN, highUSN USN, buf []byte) (int, error) {
	// MFT_ENUM_DATA_V0: StartFileReferenceNumber, LowUsn, HighUsn.
	var in [24]byte
	binary.LittleEndian.PutUint64(in[0:8], startFRN)
	binary.LittleEndian.PutUint64(in[8:16], 0)
	binary.LittleEndian.PutUint64(in[16:24], uint64(highUSN))
	var returned uint32
	err := windows.DeviceIoControl(
		d.handle, fsctlEnumUsnData,
		&in[0], uint32(len(in)),
		&buf[0], uint32(len(buf)),
		&returned, nil,
	)
	if err != nil {
		return 0, deviceError("MFT enumeration failed during DeviceIoControl call.", err)
	}
	return int(returned), nil
}

func (d *windowsDevice) ReadJournal(journalID uint64, startUSN USN, buf []byte) (int, error) {
	// READ_USN_JOURNAL_DATA_V0: StartUsn, ReasonMask, ReturnOnlyOnClose,
	// Timeout, BytesToWaitFor, UsnJournalID. Zero wait bytes so the call
	// returns promptly instead of blocking on journal growth.
	var in [40]byte
	binary.LittleEndian.PutUint64(in[0:8], uint64(startUSN))
	binary.LittleEndian.PutUint32(in[8:12], 0xFFFFFFFF)
	binary.LittleEndian.PutUint32(in[12:16], 0)
	binary.LittleEndian.PutUint64(in[16:24], 0)
	binary.LittleEndian.PutUint64(in[24:32], 0)
	binary.LittleEndian.PutUint64(in[32:40], journalID)
	var returned uint32
	err := windows.DeviceIoControl(
		d.handle, fsctlReadUsnJournal,
		&in[0], uint32(len(in)),
		&buf[0], uint32(len(buf)),
		&returned, nil,
	)
	if err != nil {
		return 0, deviceError("Journal read failed during DeviceIoControl call.", err)
	}
	return int(returned), nil
}

func (d *windowsDevice) Close() error {
	if d.handle == windows.InvalidHandle {
		return nil
	}
	err := windows.CloseHandle(d.handle)
	d.handle = windows.InvalidHandle
	return err
}

// deviceError wraps a Win32 failure with its numeric code and system
// message.
func deviceError(context string, err error) *DeviceError {
	if errno, ok := err.(windows.Errno); ok {
		return NewDeviceError(context, uint32(errno), errno.Error())
	}
	return NewDeviceError(context, 0, err.Error())
}
