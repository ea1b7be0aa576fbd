// Package vhd implements read-only access to Virtual Hard Disk images:
// fixed-size disks are a linear byte stream, dynamic disks are addressed
// through a Block Allocation Table with zero-fill for unallocated blocks.
package vhd

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	footerSize       = 512
	sectorSize       = 512
	batEntryUnused   = 0xFFFFFFFF
	maxBATSize       = 1 << 30
	cookie           = "conectix"
	dynamicCookie    = "cxsparse"
	diskTypeFixed    = 2
	diskTypeDynamic  = 3
	dynHeaderMinSize = 40
)

// Footer is the subset of the 512-byte VHD footer the reader needs. All
// multi-byte fields are big-endian on disk.
type Footer struct {
	DataOffset   uint64
	DiskType     uint32
	CurrentSize  uint64
	OriginalSize uint64
}

// DynamicHeader is the subset of the dynamic disk header the reader needs.
type DynamicHeader struct {
	DataOffset     uint64
	BATOffset      uint64
	MaxBATEntries  uint32
	BlockSize      uint32
}

// Disk is an io.ReaderAt over a VHD image's logical contents: for a fixed
// disk this is the file body; for a dynamic disk reads are resolved through
// the Block Allocation Table with unallocated blocks read as zero.
type Disk struct {
	r      io.ReaderAt
	footer Footer
	dyn    DynamicHeader
	bat    []uint32

	sectorBitmapSize int64
}

// Open parses the VHD footer (and, for dynamic disks, the dynamic header and
// BAT) from r, which must expose the full raw VHD file.
func Open(r io.ReaderAt, size int64) (*Disk, error) {
	if size < footerSize {
		return nil, fmt.Errorf("vhd: file too small to contain a footer")
	}

	raw := make([]byte, footerSize)
	if _, err := r.ReadAt(raw, size-footerSize); err != nil {
		return nil, fmt.Errorf("vhd: reading footer: %w", err)
	}
	if string(raw[0:8]) != cookie {
		return nil, fmt.Errorf("vhd: invalid footer cookie")
	}

	be := binary.BigEndian
	footer := Footer{
		DataOffset:   be.Uint64(raw[16:24]),
		CurrentSize:  be.Uint64(raw[48:56]),
		OriginalSize: be.Uint64(raw[40:48]),
		DiskType:     be.Uint32(raw[60:64]),
	}

	d := &Disk{r: r, footer: footer}

	switch footer.DiskType {
	case diskTypeFixed:
		return d, nil
	case diskTypeDynamic:
		if err := d.loadDynamicHeader(); err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, fmt.Errorf("vhd: unsupported disk type %d", footer.DiskType)
	}
}

func (d *Disk) loadDynamicHeader() error {
	hdr := make([]byte, dynHeaderMinSize)
	if _, err := d.r.ReadAt(hdr, int64(d.footer.DataOffset)); err != nil {
		return fmt.Errorf("vhd: reading dynamic header: %w", err)
	}
	if string(hdr[0:8]) != dynamicCookie {
		return fmt.Errorf("vhd: invalid dynamic header cookie")
	}

	be := binary.BigEndian
	d.dyn = DynamicHeader{
		DataOffset:    be.Uint64(hdr[8:16]),
		BATOffset:     be.Uint64(hdr[16:24]),
		MaxBATEntries: be.Uint32(hdr[28:32]),
		BlockSize:     be.Uint32(hdr[32:36]),
	}

	batSize := int64(d.dyn.MaxBATEntries) * 4
	if batSize == 0 || batSize > maxBATSize {
		return fmt.Errorf("vhd: invalid BAT size %d", batSize)
	}

	raw := make([]byte, batSize)
	if _, err := d.r.ReadAt(raw, int64(d.dyn.BATOffset)); err != nil {
		return fmt.Errorf("vhd: reading BAT: %w", err)
	}

	d.bat = make([]uint32, d.dyn.MaxBATEntries)
	for i := range d.bat {
		d.bat[i] = be.Uint32(raw[i*4 : i*4+4])
	}

	d.sectorBitmapSize = (int64(d.dyn.BlockSize)/sectorSize + 7) / 8
	return nil
}

// Size returns the disk's logical size in bytes.
func (d *Disk) Size() int64 {
	return int64(d.footer.CurrentSize)
}

// ReadAt implements io.ReaderAt over the disk's logical contents.
func (d *Disk) ReadAt(p []byte, off int64) (int, error) {
	switch d.footer.DiskType {
	case diskTypeFixed:
		return d.r.ReadAt(p, off)
	case diskTypeDynamic:
		return d.readDynamic(p, off)
	default:
		return 0, errors.New("vhd: disk not initialized")
	}
}

func (d *Disk) readDynamic(p []byte, off int64) (int, error) {
	blockSize := int64(d.dyn.BlockSize)
	total := 0

	for len(p) > 0 {
		blockIdx := off / blockSize
		blockOffset := off % blockSize

		if blockIdx >= int64(len(d.bat)) {
			return total, io.EOF
		}

		chunk := blockSize - blockOffset
		if chunk > int64(len(p)) {
			chunk = int64(len(p))
		}

		entry := d.bat[blockIdx]
		if entry == batEntryUnused {
			for i := int64(0); i < chunk; i++ {
				p[i] = 0
			}
		} else {
			sectorOffset := int64(entry)*sectorSize + d.sectorBitmapSize
			if _, err := d.r.ReadAt(p[:chunk], sectorOffset+blockOffset); err != nil {
				return total, fmt.Errorf("vhd: reading block %d: %w", blockIdx, err)
			}
		}

		p = p[chunk:]
		off += chunk
		total += int(chunk)
	}
	return total, nil
}
