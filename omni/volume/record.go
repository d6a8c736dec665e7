package volume

import (
	"encoding/binary"
	"unicode/utf16"
)

// On-disk journal record layouts. Offsets are fixed by the filesystem and
// always little-endian.
//
// V2 (64-bit file references):
//
//	0x00 u32 RecordLength
//	0x04 u16 MajorVersion (= 2)
//	0x08 u64 FileReferenceNumber
//	0x10 u64 ParentFileReferenceNumber
//	0x28 u32 Reason
//	0x34 u32 FileAttributes
//	0x38 u16 FileNameLength (bytes)
//	0x3A u16 FileNameOffset
//
// V3 (128-bit file references; the low 8 bytes carry the 64-bit identifier
// the core uses):
//
//	0x00 u32 RecordLength
//	0x04 u16 MajorVersion (= 3)
//	0x08 16B FileReferenceNumber
//	0x18 16B ParentFileReferenceNumber
//	0x38 u32 Reason
//	0x44 u32 FileAttributes
//	0x48 u16 FileNameLength (bytes)
//	0x4A u16 FileNameOffset
const (
	recordV2MinLength = 64
	recordV3MinLength = 80

	attrDirectory = 0x00000010
)

// ParseRecord decodes a single journal record. It reports false for any
// record it cannot accept: unknown major version, truncated header, or a
// name that does not fit within the declared record length. Rejected
// records are skipped by callers, never fatal.
func ParseRecord(raw []byte) (ChangeRecord, bool) {
	if len(raw) < recordV2MinLength {
		return ChangeRecord{}, false
	}

	recordLength := binary.LittleEndian.Uint32(raw[0:4])
	major := binary.LittleEndian.Uint16(raw[4:6])

	switch major {
	case 2:
		nameLength := binary.LittleEndian.Uint16(raw[0x38:0x3A])
		nameOffset := binary.LittleEndian.Uint16(raw[0x3A:0x3C])
		if uint32(nameOffset)+uint32(nameLength) > recordLength {
			return ChangeRecord{}, false
		}
		if int(nameOffset)+int(nameLength) > len(raw) {
			return ChangeRecord{}, false
		}
		return ChangeRecord{
			FRN:         binary.LittleEndian.Uint64(raw[0x08:0x10]),
			ParentFRN:   binary.LittleEndian.Uint64(raw[0x10:0x18]),
			Name:        decodeWideName(raw[nameOffset : int(nameOffset)+int(nameLength)]),
			IsDirectory: binary.LittleEndian.Uint32(raw[0x34:0x38])&attrDirectory != 0,
			Reason:      binary.LittleEndian.Uint32(raw[0x28:0x2C]),
		}, true

	case 3:
		if len(raw) < recordV3MinLength {
			return ChangeRecord{}, false
		}
		nameLength := binary.LittleEndian.Uint16(raw[0x48:0x4A])
		nameOffset := binary.LittleEndian.Uint16(raw[0x4A:0x4C])
		if uint32(nameOffset)+uint32(nameLength) > recordLength {
			return ChangeRecord{}, false
		}
		if int(nameOffset)+int(nameLength) > len(raw) {
			return ChangeRecord{}, false
		}
		return ChangeRecord{
			// First eight bytes of the 128-bit identifier.
			FRN:         binary.LittleEndian.Uint64(raw[0x08:0x10]),
			ParentFRN:   binary.LittleEndian.Uint64(raw[0x18:0x20]),
			Name:        decodeWideName(raw[nameOffset : int(nameOffset)+int(nameLength)]),
			IsDirectory: binary.LittleEndian.Uint32(raw[0x44:0x48])&attrDirectory != 0,
			Reason:      binary.LittleEndian.Uint32(raw[0x38:0x3C]),
		}, true
	}

	return ChangeRecord{}, false
}

// ParseBatch walks a reply buffer of packed records prefixed by an 8-byte
// continuation value (the next start FRN for enumeration replies, the next
// USN for journal replies). It returns the prefix, the records that parsed
// and carry a non-empty name, and ok=false when the reply is too short to
// hold the prefix.
func ParseBatch(buf []byte) (continuation uint64, records []ChangeRecord, ok bool) {
	if len(buf) < 8 {
		return 0, nil, false
	}
	continuation = binary.LittleEndian.Uint64(buf[0:8])

	offset := 8
	for offset+4 <= len(buf) {
		recordLength := int(binary.LittleEndian.Uint32(buf[offset : offset+4]))
		if recordLength == 0 || offset+recordLength > len(buf) {
			break
		}
		if rec, accepted := ParseRecord(buf[offset : offset+recordLength]); accepted && rec.Name != "" {
			records = append(records, rec)
		}
		offset += recordLength
	}
	return continuation, records, true
}

// decodeWideName converts the raw UTF-16LE name bytes of a record. The name
// is taken at its declared length and not validated further.
func decodeWideName(raw []byte) string {
	units := make([]uint16, len(raw)/2)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(raw[i*2 : i*2+2])
	}
	return string(utf16.Decode(units))
}
