package ntfs

// DataRun is one (cluster_offset, length) pair in a $DATA attribute's
// mapping-pairs stream, with the offset already resolved to an absolute
// cluster number.
type DataRun struct {
	Offset int64
	Length uint64
}

// ParseDataRuns decodes a mapping-pairs stream into absolute-offset runs.
// Each run is a header byte (low nibble = length field width, high nibble =
// offset field width) followed by a little-endian length and a little-endian
// two's-complement offset delta. Offsets are cumulative across runs; a
// header byte of 0 (or a zero length field width) ends the list.
func ParseDataRuns(runList []byte) []DataRun {
	var runs []DataRun
	var offsetBase int64

	pos := 0
	for pos < len(runList) {
		header := runList[pos]
		if header == 0 {
			break
		}
		pos++

		lengthSize := int(header & 0x0F)
		offsetSize := int(header >> 4)
		if lengthSize == 0 {
			break
		}
		if pos+lengthSize+offsetSize > len(runList) {
			break
		}

		var length uint64
		for i := 0; i < lengthSize; i++ {
			length |= uint64(runList[pos+i]) << (8 * i)
		}
		pos += lengthSize

		var offset int64
		if offsetSize > 0 {
			var u uint64
			for i := 0; i < offsetSize; i++ {
				u |= uint64(runList[pos+i]) << (8 * i)
			}
			pos += offsetSize

			signBit := uint64(1) << uint(offsetSize*8-1)
			if u&signBit != 0 {
				u |= ^(signBit<<1 - 1)
			}
			offset = int64(u)
		}

		offsetBase += offset
		runs = append(runs, DataRun{Offset: offsetBase, Length: length})
	}
	return runs
}
