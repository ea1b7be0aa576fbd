// Package ntfs extracts files and directories from an NTFS volume image,
// addressed either directly or through a VHD device.
package ntfs

import (
	"encoding/binary"
	"fmt"
)

// signature is the fixed "NTFS    " OEM id at boot sector offset 3.
const signature = "NTFS    "

// BootSector holds the fields of the NTFS boot sector the extractor needs
// to locate the MFT and compute cluster geometry.
type BootSector struct {
	BytesPerSector     uint16
	SectorsPerCluster  uint8
	TotalSectors       uint64
	MFTCluster         uint64
	MFTMirrorCluster   uint64
	ClustersPerRecord  int8
	VolumeSerialNumber uint64
}

// ParseBootSector decodes an NTFS boot sector from its first bytes.
func ParseBootSector(b []byte) (*BootSector, error) {
	if len(b) < 84 {
		return nil, fmt.Errorf("ntfs: boot sector too short")
	}
	if b[0] != 0xEB || b[1] != 0x52 || b[2] != 0x90 {
		return nil, fmt.Errorf("ntfs: missing jump instruction")
	}
	if string(b[3:11]) != signature {
		return nil, fmt.Errorf("ntfs: missing NTFS signature")
	}

	le := binary.LittleEndian
	bs := &BootSector{
		BytesPerSector:     le.Uint16(b[11:13]),
		SectorsPerCluster:  b[13],
		TotalSectors:       le.Uint64(b[40:48]),
		MFTCluster:         le.Uint64(b[48:56]),
		MFTMirrorCluster:   le.Uint64(b[56:64]),
		ClustersPerRecord:  int8(b[64]),
		VolumeSerialNumber: le.Uint64(b[72:80]),
	}
	return bs, nil
}

// BytesPerCluster returns the cluster size in bytes.
func (bs *BootSector) BytesPerCluster() uint32 {
	return uint32(bs.BytesPerSector) * uint32(bs.SectorsPerCluster)
}

// RecordSize returns the size of one MFT record in bytes. A positive
// ClustersPerRecord multiplies the cluster size; a negative value, as
// commonly used, is a power-of-two byte count encoded as its negated
// base-2 exponent.
func (bs *BootSector) RecordSize() uint32 {
	if bs.ClustersPerRecord > 0 {
		return uint32(bs.ClustersPerRecord) * bs.BytesPerCluster()
	}
	return 1 << uint(-bs.ClustersPerRecord)
}

// LooksLikeNTFS reports whether b (at least 11 bytes) begins with the NTFS
// jump instruction and OEM id, without fully parsing the boot sector.
func LooksLikeNTFS(b []byte) bool {
	return len(b) >= 11 && b[0] == 0xEB && b[1] == 0x52 && b[2] == 0x90 && string(b[3:11]) == signature
}
