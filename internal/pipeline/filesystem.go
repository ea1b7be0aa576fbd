package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vaultimg/vaultimg/internal/exfat"
	"github.com/vaultimg/vaultimg/internal/hostfs"
	"github.com/vaultimg/vaultimg/internal/logger"
	"github.com/vaultimg/vaultimg/internal/manifest"
	"github.com/vaultimg/vaultimg/internal/ntfs"
)

// maxInternalVHDs bounds the internal_<N>.vhd scan, mirroring the original
// extractor's fixed 0..9 search range.
const maxInternalVHDs = 10

// manifestFilename is the sidecar file `vaultimg mount` reads to locate an
// extracted entry's bytes within its volume image.
const manifestFilename = "manifest.xml"

// ExtractFilesystem opens the decrypted volume image at res.OutputPath and
// recreates its contents under a sibling directory. For NTFS volumes it
// additionally looks for a nested internal_<N>.vhd sibling produced by some
// OS containers and extracts it into a "contents" subdirectory, stopping at
// the first higher-numbered internal_<N>.vhd it finds (that one belongs to
// a separate, still-encrypted container and is left alone).
func ExtractFilesystem(res Result, log *logger.Logger) error {
	ext := strings.ToLower(filepath.Ext(res.OutputPath))
	outputDir := strings.TrimSuffix(res.OutputPath, filepath.Ext(res.OutputPath))

	switch ext {
	case ".exfat":
		return extractExFAT(res.OutputPath, outputDir, log)
	case ".ntfs":
		return extractNTFSAndNested(res.OutputPath, outputDir, log)
	default:
		return fmt.Errorf("pipeline: unknown filesystem type for %s", res.OutputPath)
	}
}

func extractExFAT(volumePath, outputDir string, log *logger.Logger) error {
	f, err := hostfs.Open(volumePath)
	if err != nil {
		return err
	}
	defer f.Close()

	size, err := hostfs.Size(f)
	if err != nil {
		return fmt.Errorf("pipeline: sizing %s: %w", volumePath, err)
	}

	ex, err := exfat.Open(f, log)
	if err != nil {
		return fmt.Errorf("pipeline: opening exFAT volume: %w", err)
	}

	doc := manifest.NewDocument(filepath.Base(volumePath), uint64(size))
	ex.Manifest = doc

	if err := ex.ExtractAll(outputDir); err != nil {
		return fmt.Errorf("pipeline: extracting exFAT volume: %w", err)
	}
	if err := writeManifest(outputDir, doc); err != nil {
		log.Warnf("could not write manifest for %s: %v", outputDir, err)
	}

	log.Info("exFAT extraction completed successfully")
	return nil
}

func extractNTFSAndNested(volumePath, outputDir string, log *logger.Logger) error {
	if err := extractNTFSVolume(volumePath, outputDir, log); err != nil {
		return err
	}
	log.Info("NTFS extraction completed successfully")

	for n := 0; n < maxInternalVHDs; n++ {
		vhdPath := filepath.Join(outputDir, fmt.Sprintf("internal_%d.vhd", n))
		if _, err := os.Stat(vhdPath); err != nil {
			continue
		}

		if n > 0 {
			log.Info("child internal VHD identified, finalizing process")
			break
		}

		vhdOutputDir := filepath.Join(outputDir, "contents")
		if err := extractNTFSVolume(vhdPath, vhdOutputDir, log); err != nil {
			log.Warnf("failed to extract internal VHD %s: %v", vhdPath, err)
		} else {
			log.Info("internal VHD extraction completed successfully")
		}
		break
	}

	return nil
}

func extractNTFSVolume(volumePath, outputDir string, log *logger.Logger) error {
	f, err := hostfs.Open(volumePath)
	if err != nil {
		return err
	}
	defer f.Close()

	size, err := hostfs.Size(f)
	if err != nil {
		return fmt.Errorf("pipeline: sizing %s: %w", volumePath, err)
	}

	nt, err := ntfs.Open(f, size, outputDir, log)
	if err != nil {
		return fmt.Errorf("pipeline: opening NTFS volume: %w", err)
	}

	doc := manifest.NewDocument(filepath.Base(volumePath), uint64(size))
	nt.Manifest = doc

	if err := nt.ExtractAll(); err != nil {
		return err
	}
	if err := writeManifest(outputDir, doc); err != nil {
		log.Warnf("could not write manifest for %s: %v", outputDir, err)
	}
	return nil
}

func writeManifest(outputDir string, doc *manifest.Document) error {
	path := filepath.Join(outputDir, manifestFilename)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w, err := manifest.NewWriter(f, doc)
	if err != nil {
		return err
	}
	for _, e := range doc.Entries {
		if err := w.WriteEntry(e); err != nil {
			return err
		}
	}
	return w.Close()
}
