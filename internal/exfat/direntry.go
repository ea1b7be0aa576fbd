package exfat

import (
	"encoding/binary"
	"unicode/utf16"
)

const (
	entrySize = 32

	entryEOD      = 0x00
	entryFile     = 0x85
	entryStream   = 0xC0
	entryFileName = 0xC1

	attrDirectory = 0x10
)

// dirEntrySet is a parsed File/Stream/Name entry group describing one
// directory member.
type dirEntrySet struct {
	Name        string
	FirstCluster uint32
	DataLength  uint64
	IsDirectory bool

	entryCount int // total 32-byte slots consumed (file + stream + name entries)
}

// parseDirEntrySet parses the File entry at the start of buf (which must
// have at least entrySize*2 bytes available) along with its following
// Stream and Name entries. It returns ok=false if buf does not begin with a
// well-formed File entry set.
func parseDirEntrySet(buf []byte) (dirEntrySet, bool) {
	if len(buf) < entrySize*2 || buf[0] != entryFile {
		return dirEntrySet{}, false
	}
	fileAttrs := binary.LittleEndian.Uint16(buf[4:6])

	stream := buf[entrySize : entrySize*2]
	if stream[0] != entryStream {
		return dirEntrySet{}, false
	}
	nameLength := int(stream[3])
	firstCluster := binary.LittleEndian.Uint32(stream[20:24])
	dataLength := binary.LittleEndian.Uint64(stream[24:32])

	numNameEntries := (nameLength + 14) / 15
	needed := entrySize * (2 + numNameEntries)
	if len(buf) < needed {
		return dirEntrySet{}, false
	}

	units := make([]uint16, 0, nameLength)
	for k := 0; k < numNameEntries; k++ {
		nameEntry := buf[entrySize*(2+k) : entrySize*(2+k)+entrySize]
		if nameEntry[0] != entryFileName {
			return dirEntrySet{}, false
		}
		charsInEntry := nameLength - k*15
		if charsInEntry > 15 {
			charsInEntry = 15
		}
		for j := 0; j < charsInEntry; j++ {
			units = append(units, binary.LittleEndian.Uint16(nameEntry[2+j*2:4+j*2]))
		}
	}

	return dirEntrySet{
		Name:         string(utf16.Decode(units)),
		FirstCluster: firstCluster,
		DataLength:   dataLength,
		IsDirectory:  fileAttrs&attrDirectory != 0,
		entryCount:   2 + numNameEntries,
	}, true
}
