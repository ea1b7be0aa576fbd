// Package container parses the 96-byte boot container descriptor that
// precedes every payload and derives the decrypted output filename from it.
package container

import (
	"encoding/binary"
	"fmt"
)

// Size is the fixed on-disk length of a container header.
const Size = 96

// Type classifies a container.
type Type uint8

const (
	TypeOS     Type = 0x00
	TypeAPP    Type = 0x01
	TypeOption Type = 0x02
)

func (t Type) String() string {
	switch t {
	case TypeOS:
		return "OS"
	case TypeAPP:
		return "APP"
	case TypeOption:
		return "OPTION"
	default:
		return fmt.Sprintf("unknown(0x%02x)", uint8(t))
	}
}

// Timestamp is the on-disk 8-byte timestamp used for both the target and
// source fields.
type Timestamp struct {
	Year   uint16
	Month  uint8
	Day    uint8
	Hour   uint8
	Minute uint8
	Second uint8
	unk1   uint8
}

// Format renders the timestamp the way the output filename expects it:
// YYYYMMDDhhmmss.
func (ts Timestamp) Format() string {
	return fmt.Sprintf("%04d%02d%02d%02d%02d%02d", ts.Year, ts.Month, ts.Day, ts.Hour, ts.Minute, ts.Second)
}

// Version is a release/minor/major triple. For OPTION containers the same
// 4 bytes are instead an ASCII option code; see Header.TargetOption.
type Version struct {
	Release uint8
	Minor   uint8
	Major   uint16
}

// Header is the parsed, decrypted 96-byte container descriptor.
type Header struct {
	CRC32            uint32
	Length           uint32
	Signature        [4]byte
	ContainerType    Type
	SequenceNumber   uint8
	UseCustomIV      bool
	GameID           [4]byte
	TargetTimestamp  Timestamp
	TargetVersion    Version
	TargetOption     [4]byte
	BlockCount       uint64
	BlockSize        uint64
	HeaderBlockCount uint64
	OSID             [3]byte
	OSGeneration     uint8
	SourceTimestamp  Timestamp
	SourceVersion    Version
	OSVersion        Version
}

// Parse decodes a decrypted 96-byte header. It rejects container types
// outside {OS, APP, OPTION} and headers where header_block_count exceeds
// block_count.
func Parse(data []byte) (*Header, error) {
	if len(data) != Size {
		return nil, fmt.Errorf("container: header must be %d bytes, got %d", Size, len(data))
	}

	le := binary.LittleEndian
	h := &Header{
		CRC32:          le.Uint32(data[0:4]),
		Length:         le.Uint32(data[4:8]),
		ContainerType:  Type(data[13]),
		SequenceNumber: data[14],
		UseCustomIV:    data[15] != 0,
	}
	copy(h.Signature[:], data[8:12])
	copy(h.GameID[:], data[16:20])

	h.TargetTimestamp = parseTimestamp(data[20:28])
	h.TargetVersion = parseVersion(data[28:32])
	copy(h.TargetOption[:], data[28:32])

	h.BlockCount = le.Uint64(data[32:40])
	h.BlockSize = le.Uint64(data[40:48])
	h.HeaderBlockCount = le.Uint64(data[48:56])
	// data[56:64] is an unused reserved field.

	copy(h.OSID[:], data[64:67])
	h.OSGeneration = data[67]
	h.SourceTimestamp = parseTimestamp(data[68:76])
	h.SourceVersion = parseVersion(data[76:80])
	h.OSVersion = parseVersion(data[80:84])
	// data[84:96] is reserved padding.

	switch h.ContainerType {
	case TypeOS, TypeAPP, TypeOption:
	default:
		return nil, fmt.Errorf("container: unknown container type 0x%02x", uint8(h.ContainerType))
	}

	if h.HeaderBlockCount > h.BlockCount {
		return nil, fmt.Errorf("container: header_block_count %d exceeds block_count %d", h.HeaderBlockCount, h.BlockCount)
	}

	return h, nil
}

func parseTimestamp(b []byte) Timestamp {
	return Timestamp{
		Year:   binary.LittleEndian.Uint16(b[0:2]),
		Month:  b[2],
		Day:    b[3],
		Hour:   b[4],
		Minute: b[5],
		Second: b[6],
		unk1:   b[7],
	}
}

func parseVersion(b []byte) Version {
	return Version{
		Release: b[0],
		Minor:   b[1],
		Major:   binary.LittleEndian.Uint16(b[2:4]),
	}
}

// DataOffset returns the byte offset, within the container file, at which
// the encrypted payload begins.
func (h *Header) DataOffset() uint64 {
	return h.HeaderBlockCount * h.BlockSize
}

// PayloadLength returns the total length, in bytes, of the encrypted
// payload.
func (h *Header) PayloadLength() uint64 {
	return (h.BlockCount - h.HeaderBlockCount) * h.BlockSize
}

// ID returns the lookup id used against the key resolver: the OS id for OS
// containers, the game id otherwise.
func (h *Header) ID() string {
	if h.ContainerType == TypeOS {
		return trimNUL(h.OSID[:])
	}
	return trimNUL(h.GameID[:])
}

func trimNUL(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// OutputFilename composes the decrypted volume image's filename per the
// four container-type patterns.
func (h *Header) OutputFilename() string {
	ts := h.TargetTimestamp.Format()
	switch h.ContainerType {
	case TypeOS:
		return fmt.Sprintf("%s_%04d%02d%d_%s_%d.ntfs",
			trimNUL(h.OSID[:]), h.OSVersion.Major, h.OSVersion.Minor, h.OSVersion.Release, ts, h.SequenceNumber)
	case TypeAPP:
		gameID := trimNUL(h.GameID[:])
		if h.SequenceNumber > 0 {
			return fmt.Sprintf("%s_%d%02d%02d_%s_%d_%d%02d%02d.ntfs",
				gameID, h.TargetVersion.Major, h.TargetVersion.Minor, h.TargetVersion.Release, ts, h.SequenceNumber,
				h.SourceVersion.Major, h.SourceVersion.Minor, h.SourceVersion.Release)
		}
		return fmt.Sprintf("%s_%d%02d%02d_%s_%d.ntfs",
			gameID, h.TargetVersion.Major, h.TargetVersion.Minor, h.TargetVersion.Release, ts, h.SequenceNumber)
	case TypeOption:
		return fmt.Sprintf("%s_%s_%s_%d.exfat",
			trimNUL(h.GameID[:]), trimNUL(h.TargetOption[:]), ts, h.SequenceNumber)
	default:
		return fmt.Sprintf("unknown_%d", h.SequenceNumber)
	}
}
