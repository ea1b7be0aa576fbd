package exfat

import (
	"encoding/binary"
	"fmt"
	"io"
)

const endOfChainMin = 0xFFFFFFF8

// clusterHeap resolves exFAT clusters to byte offsets in the underlying
// device and walks the FAT cluster chain, including the exFAT-specific
// shortcut where a zero FAT entry means "the next cluster, heap is
// contiguous here" rather than end-of-chain.
type clusterHeap struct {
	dev               io.ReaderAt
	bytesPerCluster   uint32
	heapOffsetBytes   uint64
	fat               []uint32
}

func newClusterHeap(dev io.ReaderAt, boot *BootSector) (*clusterHeap, error) {
	bytesPerSector := uint32(1) << boot.BytesPerSectorShift
	bytesPerCluster := bytesPerSector * (uint32(1) << boot.SectorsPerClusterShift)

	fatOffsetBytes := uint64(boot.FATOffset) * uint64(bytesPerSector)
	fatLengthBytes := uint64(boot.FATLength) * uint64(bytesPerSector)

	raw := make([]byte, fatLengthBytes)
	if _, err := dev.ReadAt(raw, int64(fatOffsetBytes)); err != nil {
		return nil, fmt.Errorf("exfat: reading FAT: %w", err)
	}

	fat := make([]uint32, len(raw)/4)
	for i := range fat {
		fat[i] = binary.LittleEndian.Uint32(raw[i*4 : i*4+4])
	}

	return &clusterHeap{
		dev:             dev,
		bytesPerCluster: bytesPerCluster,
		heapOffsetBytes: uint64(boot.ClusterHeapOffset) * uint64(bytesPerSector),
		fat:             fat,
	}, nil
}

func (h *clusterHeap) clusterOffset(cluster uint32) int64 {
	return int64(h.heapOffsetBytes) + int64(cluster-2)*int64(h.bytesPerCluster)
}

func (h *clusterHeap) readCluster(cluster uint32, buf []byte) error {
	_, err := h.dev.ReadAt(buf[:h.bytesPerCluster], h.clusterOffset(cluster))
	return err
}

// nextCluster follows the FAT chain from cluster, returning 0 at
// end-of-chain. A zero entry is not end-of-chain: it means the cluster heap
// is contiguous at this point, so the next cluster is simply cluster+1.
func (h *clusterHeap) nextCluster(cluster uint32) uint32 {
	if int(cluster) >= len(h.fat) {
		return 0
	}
	next := h.fat[cluster]
	if next >= endOfChainMin {
		return 0
	}
	if next == 0 {
		return cluster + 1
	}
	return next
}
