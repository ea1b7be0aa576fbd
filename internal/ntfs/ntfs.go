package ntfs

import (
	"fmt"
	"io"

	"github.com/vaultimg/vaultimg/internal/hostfs"
	"github.com/vaultimg/vaultimg/internal/logger"
	"github.com/vaultimg/vaultimg/internal/manifest"
	"github.com/vaultimg/vaultimg/internal/vhd"
)

const vhdFooterCookie = "conectix"

// Extractor walks an NTFS volume's Master File Table and recreates its
// files and directories under an extraction root on the host filesystem.
type Extractor struct {
	dev io.ReaderAt

	boot             *BootSector
	dataStartOffset  int64
	bytesPerCluster  uint32
	mftOffset        int64
	mftRecordSize    uint32
	totalMFTRecords  uint64

	basePath string
	cache    *dirCache
	log      *logger.Logger

	// Manifest, when non-nil, receives one entry per extracted file or
	// directory with its volume-image byte ranges.
	Manifest *manifest.Document
}

// Open locates and initializes an NTFS volume backed by r (a raw device,
// plain volume image, or VHD), extracting to extractPath.
func Open(r io.ReaderAt, size int64, extractPath string, log *logger.Logger) (*Extractor, error) {
	e := &Extractor{
		basePath: extractPath,
		cache:    newDirCache(),
		log:      log,
	}

	dev, dataOffset, err := locateVolume(r, size, log)
	if err != nil {
		return nil, err
	}
	e.dev = dev
	e.dataStartOffset = dataOffset

	bootSector := make([]byte, 512)
	if _, err := e.dev.ReadAt(bootSector, e.dataStartOffset); err != nil {
		return nil, fmt.Errorf("ntfs: reading boot sector: %w", err)
	}
	boot, err := ParseBootSector(bootSector)
	if err != nil {
		return nil, err
	}
	e.boot = boot
	e.bytesPerCluster = boot.BytesPerCluster()
	e.mftOffset = e.dataStartOffset + int64(boot.MFTCluster)*int64(e.bytesPerCluster)
	e.mftRecordSize = boot.RecordSize()

	record0 := make([]byte, e.mftRecordSize)
	if _, err := e.dev.ReadAt(record0, e.mftOffset); err != nil {
		return nil, fmt.Errorf("ntfs: reading MFT record 0: %w", err)
	}
	data := extractDataAttribute(record0)
	if !data.Found || !data.NonResident {
		return nil, fmt.Errorf("ntfs: MFT record 0 has no non-resident $DATA attribute")
	}
	e.totalMFTRecords = data.DataSize / uint64(e.mftRecordSize)

	return e, nil
}

// locateVolume figures out whether r is a raw NTFS volume, a VHD containing
// one, or a VHD whose MBR points at an NTFS partition, and returns a device
// to read from plus the byte offset of the NTFS boot sector within it.
func locateVolume(r io.ReaderAt, size int64, log *logger.Logger) (io.ReaderAt, int64, error) {
	footer := make([]byte, 8)
	if size >= 512 {
		if _, err := r.ReadAt(footer, size-512); err == nil && string(footer) == vhdFooterCookie {
			disk, err := vhd.Open(r, size)
			if err != nil {
				return nil, 0, fmt.Errorf("ntfs: opening VHD: %w", err)
			}
			offset, err := locateNTFSInVHD(disk)
			if err != nil {
				return nil, 0, err
			}
			return disk, offset, nil
		}
	}

	boot := make([]byte, 512)
	if _, err := r.ReadAt(boot, 0); err == nil && LooksLikeNTFS(boot) {
		return r, 0, nil
	}

	return nil, 0, fmt.Errorf("ntfs: no NTFS filesystem found")
}

// vhdOffsetLadder is tried, in order, when the VHD has no MBR pointing at
// an NTFS partition: some containers place the filesystem at a fixed offset
// instead.
var vhdOffsetLadder = []int64{0, 0x100000, 0x200000, 0x400000, 0x800000}

func locateNTFSInVHD(disk *vhd.Disk) (int64, error) {
	sector := make([]byte, 512)
	if _, err := disk.ReadAt(sector, 0); err == nil {
		if lba, ok := findNTFSPartitionLBA(sector); ok {
			offset := int64(lba) * 512
			candidate := make([]byte, 512)
			if _, err := disk.ReadAt(candidate, offset); err == nil && LooksLikeNTFS(candidate) {
				return offset, nil
			}
		}
	}

	for _, offset := range vhdOffsetLadder {
		candidate := make([]byte, 512)
		if _, err := disk.ReadAt(candidate, offset); err == nil && LooksLikeNTFS(candidate) {
			return offset, nil
		}
	}

	return 0, fmt.Errorf("ntfs: no NTFS filesystem found in VHD")
}

// ExtractAll walks every in-use MFT record and recreates directories and
// files under the extraction root.
func (e *Extractor) ExtractAll() error {
	if err := hostfs.EnsureDir(e.basePath); err != nil {
		return fmt.Errorf("ntfs: creating output directory: %w", err)
	}

	record := make([]byte, e.mftRecordSize)
	offset := e.mftOffset

	for i := uint64(0); i < e.totalMFTRecords; i++ {
		if _, err := e.dev.ReadAt(record, offset); err != nil {
			return fmt.Errorf("ntfs: reading MFT record at 0x%x: %w", offset, err)
		}
		if err := e.processRecord(record); err != nil {
			e.log.Warnf("ntfs: skipping record %d: %v", i, err)
		}
		offset += int64(e.mftRecordSize)
	}
	return nil
}

func (e *Extractor) processRecord(record []byte) error {
	h, ok := parseRecordHeader(record)
	if !ok || !h.inUse() {
		return nil
	}

	info := extractFileInfo(record)
	if !info.Valid || len(info.Name) == 0 || info.Name[0] == '$' {
		return nil
	}

	relPath := e.fullPath(info.ParentRef, info.Name)

	if info.IsDirectory {
		full, err := hostfs.SafeJoin(e.basePath, relPath)
		if err != nil {
			return err
		}
		if err := hostfs.EnsureDir(full); err != nil {
			return err
		}
		e.cache.put(uint64(h.RecordNumber), relPath)
		if e.Manifest != nil {
			e.Manifest.AddDirectory(relPath)
		}
		return nil
	}

	return e.extractFile(record, relPath)
}

func (e *Extractor) extractFile(record []byte, relPath string) error {
	fullPath, err := hostfs.SafeJoin(e.basePath, relPath)
	if err != nil {
		return err
	}

	data := extractDataAttribute(record)
	if !data.Found {
		return fmt.Errorf("no $DATA attribute")
	}

	out, err := hostfs.CreateFile(fullPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", fullPath, err)
	}
	defer out.Close()

	if !data.NonResident {
		if _, err := out.Write(data.ResidentData); err != nil {
			return err
		}
		if e.Manifest != nil {
			e.Manifest.AddFile(relPath, uint64(len(data.ResidentData)), nil)
		}
		return nil
	}

	runs := ParseDataRuns(data.MappingPairs)
	byteRuns, err := e.copyRuns(out, runs, data.DataSize)
	if err != nil {
		return err
	}
	if e.Manifest != nil {
		e.Manifest.AddFile(relPath, data.DataSize, byteRuns)
	}
	return nil
}

const copyBufferSize = 64 * 1024

// copyRuns streams the cluster runs making up a non-resident $DATA
// attribute to w and returns the manifest byte ranges they occupied in the
// volume image.
func (e *Extractor) copyRuns(w io.Writer, runs []DataRun, dataSize uint64) ([]manifest.ByteRun, error) {
	buf := make([]byte, copyBufferSize)
	var written uint64
	var byteRuns []manifest.ByteRun

	for _, run := range runs {
		if written >= dataSize {
			break
		}
		clusterOffset := e.dataStartOffset + run.Offset*int64(e.bytesPerCluster)
		length := run.Length * uint64(e.bytesPerCluster)
		if length > dataSize-written {
			length = dataSize - written
		}
		byteRuns = append(byteRuns, manifest.ByteRun{
			Offset:      written,
			ImageOffset: uint64(clusterOffset),
			Length:      length,
		})

		remaining := length
		for remaining > 0 {
			chunk := uint64(len(buf))
			if chunk > remaining {
				chunk = remaining
			}
			if _, err := e.dev.ReadAt(buf[:chunk], clusterOffset); err != nil {
				return nil, fmt.Errorf("reading cluster run: %w", err)
			}
			if _, err := w.Write(buf[:chunk]); err != nil {
				return nil, err
			}
			clusterOffset += int64(chunk)
			remaining -= chunk
			written += chunk
		}
	}
	return byteRuns, nil
}

func (e *Extractor) readFileInfo(ref uint64) fileInfo {
	offset := e.mftOffset + int64(ref)*int64(e.mftRecordSize)
	record := make([]byte, e.mftRecordSize)
	if _, err := e.dev.ReadAt(record, offset); err != nil {
		return fileInfo{}
	}
	return extractFileInfo(record)
}
