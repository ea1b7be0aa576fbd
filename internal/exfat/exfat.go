package exfat

import (
	"fmt"
	"io"

	"github.com/vaultimg/vaultimg/internal/hostfs"
	"github.com/vaultimg/vaultimg/internal/logger"
	"github.com/vaultimg/vaultimg/internal/manifest"
)

// Extractor walks an exFAT volume's directory tree and recreates its files
// and directories under an extraction root on the host filesystem.
type Extractor struct {
	heap *clusterHeap
	boot *BootSector
	log  *logger.Logger

	// Manifest, when non-nil, receives one entry per extracted file or
	// directory with its volume-image byte ranges.
	Manifest *manifest.Document
}

// Open parses the boot sector and FAT of an exFAT volume backed by dev.
func Open(dev io.ReaderAt, log *logger.Logger) (*Extractor, error) {
	raw := make([]byte, bootSectorSize)
	if _, err := dev.ReadAt(raw, 0); err != nil {
		return nil, fmt.Errorf("exfat: reading boot sector: %w", err)
	}
	boot, err := ParseBootSector(raw)
	if err != nil {
		return nil, err
	}

	heap, err := newClusterHeap(dev, boot)
	if err != nil {
		return nil, err
	}

	return &Extractor{heap: heap, boot: boot, log: log}, nil
}

// ExtractAll recreates every file and directory, starting from the root
// directory, under extractPath.
func (e *Extractor) ExtractAll(extractPath string) error {
	if err := hostfs.EnsureDir(extractPath); err != nil {
		return fmt.Errorf("exfat: creating output directory: %w", err)
	}
	return e.processDirectory(e.boot.FirstClusterOfRootDir, extractPath, "")
}

func (e *Extractor) processDirectory(startCluster uint32, outputDir, relDir string) error {
	buf := make([]byte, e.heap.bytesPerCluster)
	cluster := startCluster

	for cluster != 0 {
		if err := e.heap.readCluster(cluster, buf); err != nil {
			return fmt.Errorf("exfat: reading directory cluster %d: %w", cluster, err)
		}

		entriesPerCluster := int(e.heap.bytesPerCluster) / entrySize
		finished := false

		for i := 0; i < entriesPerCluster; {
			entryOffset := i * entrySize
			switch buf[entryOffset] {
			case entryEOD:
				finished = true
			case entryFile:
				remaining := buf[entryOffset:]
				set, ok := parseDirEntrySet(remaining)
				if !ok {
					i++
					continue
				}

				if err := e.handleEntry(set, outputDir, relDir); err != nil {
					e.log.Warnf("exfat: skipping %q: %v", set.Name, err)
				}

				i += set.entryCount
				continue
			default:
				i++
				continue
			}
			if finished {
				break
			}
		}

		if finished {
			return nil
		}
		cluster = e.heap.nextCluster(cluster)
	}
	return nil
}

func (e *Extractor) handleEntry(set dirEntrySet, outputDir, relDir string) error {
	fullPath, err := hostfs.SafeJoin(outputDir, set.Name)
	if err != nil {
		return err
	}
	relPath := set.Name
	if relDir != "" {
		relPath = relDir + "/" + set.Name
	}

	if set.IsDirectory {
		if err := hostfs.EnsureDir(fullPath); err != nil {
			return err
		}
		if e.Manifest != nil {
			e.Manifest.AddDirectory(relPath)
		}
		return e.processDirectory(set.FirstCluster, fullPath, relPath)
	}
	return e.extractFile(set, fullPath, relPath)
}

func (e *Extractor) extractFile(set dirEntrySet, outputPath, relPath string) error {
	out, err := hostfs.CreateFile(outputPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", outputPath, err)
	}
	defer out.Close()

	buf := make([]byte, e.heap.bytesPerCluster)
	remaining := set.DataLength
	cluster := set.FirstCluster

	var byteRuns []manifest.ByteRun
	var written uint64

	for remaining > 0 && cluster != 0 {
		if err := e.heap.readCluster(cluster, buf); err != nil {
			return fmt.Errorf("reading cluster %d: %w", cluster, err)
		}

		writeSize := uint64(len(buf))
		if remaining < writeSize {
			writeSize = remaining
		}
		if _, err := out.Write(buf[:writeSize]); err != nil {
			return err
		}

		imageOffset := uint64(e.heap.clusterOffset(cluster))
		byteRuns = appendOrExtendRun(byteRuns, written, imageOffset, writeSize)

		written += writeSize
		remaining -= writeSize
		cluster = e.heap.nextCluster(cluster)
	}

	if e.Manifest != nil {
		e.Manifest.AddFile(relPath, set.DataLength, byteRuns)
	}
	return nil
}

// appendOrExtendRun extends the last byte run if this chunk is contiguous
// with it in both the logical file and the volume image, or appends a new
// run otherwise.
func appendOrExtendRun(runs []manifest.ByteRun, logicalOffset, imageOffset, length uint64) []manifest.ByteRun {
	if n := len(runs); n > 0 {
		last := &runs[n-1]
		if last.Offset+last.Length == logicalOffset && last.ImageOffset+last.Length == imageOffset {
			last.Length += length
			return runs
		}
	}
	return append(runs, manifest.ByteRun{Offset: logicalOffset, ImageOffset: imageOffset, Length: length})
}
