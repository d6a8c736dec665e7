// Package volumetest provides a fake volume device and journal record
// encoders for tests of the enumeration driver, the live watcher, and the
// record parser.
package volumetest

import (
	"encoding/binary"
	"sync"
	"unicode/utf16"

	"github.com/ZanzyTHEbar/omnisearch/omni/volume"
)

// Record is the test-side description of one journal record.
type Record struct {
	FRN         uint64
	ParentFRN   uint64
	Name        string
	IsDirectory bool
	Reason      uint32
}

const attrDirectory = 0x00000010

// EncodeV2 renders a record in the 64-bit-FRN wire layout.
func EncodeV2(rec Record) []byte {
	name := encodeWide(rec.Name)
	length := pad8(0x3C + len(name))
	raw := make([]byte, length)
	binary.LittleEndian.PutUint32(raw[0x00:], uint32(length))
	binary.LittleEndian.PutUint16(raw[0x04:], 2)
	binary.LittleEndian.PutUint64(raw[0x08:], rec.FRN)
	binary.LittleEndian.PutUint64(raw[0x10:], rec.ParentFRN)
	binary.LittleEndian.PutUint32(raw[0x28:], rec.Reason)
	binary.LittleEndian.PutUint32(raw[0x34:], attributes(rec))
	binary.LittleEndian.PutUint16(raw[0x38:], uint16(len(name)))
	binary.LittleEndian.PutUint16(raw[0x3A:], 0x3C)
	copy(raw[0x3C:], name)
	return raw
}

// EncodeV3 renders a record in the 128-bit-FRN wire layout. The upper
// halves of both identifiers are filled with a marker so tests catch any
// parser that reads past the low eight bytes.
func EncodeV3(rec Record) []byte {
	name := encodeWide(rec.Name)
	length := pad8(0x4C + len(name))
	raw := make([]byte, length)
	binary.LittleEndian.PutUint32(raw[0x00:], uint32(length))
	binary.LittleEndian.PutUint16(raw[0x04:], 3)
	binary.LittleEndian.PutUint64(raw[0x08:], rec.FRN)
	binary.LittleEndian.PutUint64(raw[0x10:], 0xDEADBEEFDEADBEEF)
	binary.LittleEndian.PutUint64(raw[0x18:], rec.ParentFRN)
	binary.LittleEndian.PutUint64(raw[0x20:], 0xDEADBEEFDEADBEEF)
	binary.LittleEndian.PutUint32(raw[0x38:], rec.Reason)
	binary.LittleEndian.PutUint32(raw[0x44:], attributes(rec))
	binary.LittleEndian.PutUint16(raw[0x48:], uint16(len(name)))
	binary.LittleEndian.PutUint16(raw[0x4A:], 0x4C)
	copy(raw[0x4C:], name)
	return raw
}

// BuildBatch concatenates records behind the 8-byte continuation prefix,
// exactly as the control calls reply.
func BuildBatch(continuation uint64, records ...Record) []byte {
	out := make([]byte, 8)
	binary.LittleEndian.PutUint64(out, continuation)
	for _, rec := range records {
		out = append(out, EncodeV2(rec)...)
	}
	return out
}

func attributes(rec Record) uint32 {
	if rec.IsDirectory {
		return attrDirectory
	}
	return 0x80 // FILE_ATTRIBUTE_NORMAL
}

func encodeWide(s string) []byte {
	units := utf16.Encode([]rune(s))
	out := make([]byte, len(units)*2)
	for i, u := range units {
		binary.LittleEndian.PutUint16(out[i*2:], u)
	}
	return out
}

func pad8(n int) int {
	if n%8 == 0 {
		return n
	}
	return n + 8 - n%8
}

// FakeDevice replays scripted enumeration and journal replies.
type FakeDevice struct {
	mu sync.Mutex

	Root uint64

	// Journal scripting: QueryErrCodes are consumed first, one per query;
	// afterwards Journal is returned. CreateErr fails CreateJournal.
	Journal       volume.JournalInfo
	QueryErrCodes []uint32
	CreateErr     error
	CreateCalls   int

	// EnumBatches are returned in order; exhaustion yields end-of-handle.
	EnumBatches [][]byte
	enumCalls   int

	// JournalBatches are returned in order by ReadJournal; exhaustion
	// yields ReadErrCode (default end-of-handle).
	JournalBatches [][]byte
	ReadErrCode    uint32
	readCalls      int

	Closed bool
}

var _ volume.Device = (*FakeDevice)(nil)

func (d *FakeDevice) RootFRN() (volume.FRN, error) {
	return d.Root, nil
}

func (d *FakeDevice) QueryJournal() (volume.JournalInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.QueryErrCodes) > 0 {
		code := d.QueryErrCodes[0]
		d.QueryErrCodes = d.QueryErrCodes[1:]
		return volume.JournalInfo{}, volume.NewDeviceError("Failed to query USN journal.", code, "")
	}
	return d.Journal, nil
}

func (d *FakeDevice) CreateJournal(maxSize, allocationDelta uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.CreateCalls++
	return d.CreateErr
}

func (d *FakeDevice) EnumerateMFT(startFRN volume.FRN, highUSN volume.USN, buf []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.enumCalls >= len(d.EnumBatches) {
		return 0, volume.NewDeviceError("MFT enumeration failed during DeviceIoControl call.", 38, "end of file")
	}
	batch := d.EnumBatches[d.enumCalls]
	d.enumCalls++
	return copy(buf, batch), nil
}

func (d *FakeDevice) ReadJournal(journalID uint64, startUSN volume.USN, buf []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.readCalls >= len(d.JournalBatches) {
		code := d.ReadErrCode
		if code == 0 {
			code = 38
		}
		return 0, volume.NewDeviceError("Journal read failed during DeviceIoControl call.", code, "")
	}
	batch := d.JournalBatches[d.readCalls]
	d.readCalls++
	return copy(buf, batch), nil
}

func (d *FakeDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Closed = true
	return nil
}
