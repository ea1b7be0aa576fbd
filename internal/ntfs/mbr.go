package ntfs

import "encoding/binary"

// ntfsPartitionType is the MBR partition type byte used by NTFS, HPFS,
// exFAT, and QNX volumes.
const ntfsPartitionType = 0x07

// findNTFSPartitionLBA scans a 512-byte MBR sector for a partition entry of
// type 0x07 and returns its starting LBA. It returns ok=false if the sector
// is not a valid MBR or carries no such partition.
func findNTFSPartitionLBA(sector []byte) (lba uint32, ok bool) {
	if len(sector) < 512 || sector[0x1FE] != 0x55 || sector[0x1FF] != 0xAA {
		return 0, false
	}
	for i := 0; i < 4; i++ {
		entry := sector[0x1BE+i*16 : 0x1BE+i*16+16]
		if entry[4] == ntfsPartitionType {
			return binary.LittleEndian.Uint32(entry[8:12]), true
		}
	}
	return 0, false
}
