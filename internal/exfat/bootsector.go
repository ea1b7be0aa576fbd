// Package exfat extracts files and directories from an exFAT volume image.
package exfat

import (
	"encoding/binary"
	"fmt"
)

// BootSector holds the exFAT boot sector fields the extractor needs to
// locate the FAT, the cluster heap, and the root directory.
type BootSector struct {
	PartitionOffset        uint64
	VolumeLength           uint64
	FATOffset              uint32
	FATLength              uint32
	ClusterHeapOffset      uint32
	ClusterCount           uint32
	FirstClusterOfRootDir  uint32
	VolumeSerialNumber     uint32
	BytesPerSectorShift    uint8
	SectorsPerClusterShift uint8
	NumberOfFATs           uint8
}

const bootSectorSize = 512

// ParseBootSector decodes an exFAT boot sector.
func ParseBootSector(b []byte) (*BootSector, error) {
	if len(b) < bootSectorSize {
		return nil, fmt.Errorf("exfat: boot sector too short")
	}
	if string(b[3:11]) != "EXFAT   " {
		return nil, fmt.Errorf("exfat: missing EXFAT signature")
	}

	le := binary.LittleEndian
	bs := &BootSector{
		PartitionOffset:       le.Uint64(b[64:72]),
		VolumeLength:          le.Uint64(b[72:80]),
		FATOffset:             le.Uint32(b[80:84]),
		FATLength:             le.Uint32(b[84:88]),
		ClusterHeapOffset:     le.Uint32(b[88:92]),
		ClusterCount:          le.Uint32(b[92:96]),
		FirstClusterOfRootDir: le.Uint32(b[96:100]),
		VolumeSerialNumber:    le.Uint32(b[100:104]),
		BytesPerSectorShift:   b[108],
		SectorsPerClusterShift: b[109],
		NumberOfFATs:          b[110],
	}
	return bs, nil
}

// LooksLikeExFAT reports whether b begins with the exFAT OEM name, without
// fully parsing the boot sector.
func LooksLikeExFAT(b []byte) bool {
	return len(b) >= 11 && string(b[3:11]) == "EXFAT   "
}
