package ntfs

import (
	"encoding/binary"
	"unicode/utf16"
)

const (
	recordMagic = "FILE"

	attrTypeFileName = 0x30
	attrTypeData     = 0x80
	attrTypeEnd      = 0xFFFFFFFF

	recordFlagInUse     = 0x0001
	recordFlagDirectory = 0x0002

	namespaceDOS = 2
)

// recordHeader is the fixed portion of an MFT record.
type recordHeader struct {
	Magic         [4]byte
	AttrsOffset   uint16
	Flags         uint16
	BytesUsed     uint32
	BytesAllocated uint32
	RecordNumber  uint16
}

func parseRecordHeader(b []byte) (recordHeader, bool) {
	var h recordHeader
	if len(b) < 46 {
		return h, false
	}
	copy(h.Magic[:], b[0:4])
	if string(h.Magic[:]) != recordMagic {
		return h, false
	}
	le := binary.LittleEndian
	h.AttrsOffset = le.Uint16(b[20:22])
	h.Flags = le.Uint16(b[22:24])
	h.BytesUsed = le.Uint32(b[24:28])
	h.BytesAllocated = le.Uint32(b[28:32])
	h.RecordNumber = le.Uint16(b[42:44])
	return h, true
}

func (h recordHeader) inUse() bool     { return h.Flags&recordFlagInUse != 0 }
func (h recordHeader) isDirectory() bool { return h.Flags&recordFlagDirectory != 0 }

// attribute is one parsed attribute header within a record.
type attribute struct {
	Type         uint32
	Length       uint32
	NonResident  bool
	NameLength   uint8
	ResidentValueOffset uint16
	ResidentValueLength uint32
	MappingPairsOffset  uint16
	DataSize            uint64
	offset              int // offset of this attribute within the record buffer
}

// walkAttributes calls fn for each attribute in record, stopping at the
// terminator (type 0xFFFFFFFF or length 0) or the end of bytesUsed.
func walkAttributes(record []byte, attrsOffset uint16, bytesUsed uint32, fn func(attribute) bool) {
	le := binary.LittleEndian
	pos := int(attrsOffset)
	end := int(bytesUsed)
	if end > len(record) {
		end = len(record)
	}

	for pos+16 <= end {
		typ := le.Uint32(record[pos : pos+4])
		length := le.Uint32(record[pos+4 : pos+8])
		if typ == attrTypeEnd || length == 0 {
			return
		}
		if pos+int(length) > len(record) {
			return
		}

		a := attribute{
			Type:        typ,
			Length:      length,
			NonResident: record[pos+8] != 0,
			NameLength:  record[pos+9],
			offset:      pos,
		}
		if a.NonResident {
			a.MappingPairsOffset = le.Uint16(record[pos+32 : pos+34])
			a.DataSize = le.Uint64(record[pos+48 : pos+56])
		} else {
			a.ResidentValueLength = le.Uint32(record[pos+16 : pos+20])
			a.ResidentValueOffset = le.Uint16(record[pos+20 : pos+22])
		}

		if !fn(a) {
			return
		}
		pos += int(length)
	}
}

// fileNameAttr is the parsed $FILE_NAME attribute value.
type fileNameAttr struct {
	ParentRef uint64
	Name      string
	Namespace uint8
}

func parseFileNameAttr(value []byte) (fileNameAttr, bool) {
	if len(value) < 66 {
		return fileNameAttr{}, false
	}
	le := binary.LittleEndian
	parentRef := le.Uint64(value[0:8]) & 0xFFFFFFFFFFFF
	nameLen := int(value[64])
	ns := value[65]

	nameBytesNeeded := 66 + nameLen*2
	if nameBytesNeeded > len(value) {
		return fileNameAttr{}, false
	}

	units := make([]uint16, nameLen)
	for i := 0; i < nameLen; i++ {
		units[i] = le.Uint16(value[66+i*2 : 68+i*2])
	}
	name := string(utf16.Decode(units))

	return fileNameAttr{ParentRef: parentRef, Name: name, Namespace: ns}, true
}

// fileInfo is what the extractor needs to know about a record to place it
// in the output tree.
type fileInfo struct {
	Name        string
	ParentRef   uint64
	IsDirectory bool
	RecordNum   uint64
	Valid       bool
}

// extractFileInfo walks a record's attributes and returns its primary
// (non-DOS-namespace) $FILE_NAME attribute, if any.
func extractFileInfo(record []byte) fileInfo {
	h, ok := parseRecordHeader(record)
	if !ok || !h.inUse() {
		return fileInfo{}
	}

	info := fileInfo{
		IsDirectory: h.isDirectory(),
		RecordNum:   uint64(h.RecordNumber),
	}

	walkAttributes(record, h.AttrsOffset, h.BytesUsed, func(a attribute) bool {
		if a.Type != attrTypeFileName || a.NonResident {
			return true
		}
		start := a.offset + int(a.ResidentValueOffset)
		end := start + int(a.ResidentValueLength)
		if end > len(record) {
			return true
		}
		fn, ok := parseFileNameAttr(record[start:end])
		if !ok || fn.Namespace == namespaceDOS {
			return true
		}
		info.Name = fn.Name
		info.ParentRef = fn.ParentRef
		info.Valid = true
		return false
	})

	return info
}

// dataAttribute describes the unnamed $DATA attribute of a record.
type dataAttribute struct {
	Found       bool
	NonResident bool
	ResidentData []byte
	MappingPairs []byte
	DataSize    uint64
}

func extractDataAttribute(record []byte) dataAttribute {
	h, ok := parseRecordHeader(record)
	if !ok {
		return dataAttribute{}
	}

	var out dataAttribute
	walkAttributes(record, h.AttrsOffset, h.BytesUsed, func(a attribute) bool {
		if a.Type != attrTypeData || a.NameLength != 0 {
			return true
		}
		out.Found = true
		out.NonResident = a.NonResident
		if a.NonResident {
			start := a.offset + int(a.MappingPairsOffset)
			if start < len(record) {
				out.MappingPairs = record[start:]
			}
			out.DataSize = a.DataSize
		} else {
			start := a.offset + int(a.ResidentValueOffset)
			end := start + int(a.ResidentValueLength)
			if end <= len(record) {
				out.ResidentData = record[start:end]
			}
		}
		return false
	})
	return out
}
