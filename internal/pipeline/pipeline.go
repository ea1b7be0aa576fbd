// Package pipeline drives the end-to-end container decryption flow: read
// and decrypt the boot header, classify the container, resolve the AES key
// (recovering the file IV from known plaintext when the key table carries
// none), then stream-decrypt the payload page by page into an output
// volume image.
package pipeline

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/vaultimg/vaultimg/internal/container"
	"github.com/vaultimg/vaultimg/internal/cryptoutil"
	"github.com/vaultimg/vaultimg/internal/keystore"
	"github.com/vaultimg/vaultimg/internal/logger"
	"github.com/vaultimg/vaultimg/pkg/pbar"
	"github.com/vaultimg/vaultimg/pkg/reader"
)

// Result describes a successfully decrypted container.
type Result struct {
	OutputPath    string
	ContainerType container.Type
}

// DecryptFile reads the boot container at inputPath, decrypts its payload,
// and writes the resulting volume image alongside it. keys resolves the
// per-id AES key; log receives progress and warnings.
func DecryptFile(inputPath string, keys *keystore.Dir, log *logger.Logger) (Result, error) {
	f, err := os.Open(inputPath)
	if err != nil {
		return Result{}, fmt.Errorf("pipeline: opening %s: %w", inputPath, err)
	}
	defer f.Close()

	rawHeader := make([]byte, container.Size)
	if _, err := io.ReadFull(f, rawHeader); err != nil {
		return Result{}, fmt.Errorf("pipeline: reading boot header: %w", err)
	}

	decryptedHeader, err := cryptoutil.DecryptNoPadding(cryptoutil.BootIDKey[:], cryptoutil.BootIDIV[:], rawHeader)
	if err != nil {
		return Result{}, fmt.Errorf("pipeline: decrypting boot header: %w", err)
	}

	hdr, err := container.Parse(decryptedHeader)
	if err != nil {
		return Result{}, err
	}

	key, fileIV, err := resolveKeyAndIV(f, hdr, keys)
	if err != nil {
		return Result{}, err
	}

	outputDir := filepath.Dir(inputPath)
	outputPath := filepath.Join(outputDir, hdr.OutputFilename())

	if err := streamDecrypt(f, outputPath, hdr, key, fileIV, log); err != nil {
		return Result{}, err
	}

	log.Infof("decryption finalized: %s", outputPath)
	return Result{OutputPath: outputPath, ContainerType: hdr.ContainerType}, nil
}

// resolveKeyAndIV resolves the AES key for hdr and, when the key table
// carries no fixed IV (or the container forces a custom one), recovers the
// file IV from the first payload page's known plaintext filesystem header.
func resolveKeyAndIV(f *os.File, hdr *container.Header, keys *keystore.Dir) (key [16]byte, fileIV [16]byte, err error) {
	var entry keystore.Entry
	if hdr.ContainerType == container.TypeOption {
		entry = keystore.Option()
	} else {
		entry, err = keys.Resolve(hdr.ID())
		if err != nil {
			return key, fileIV, err
		}
	}
	key = entry.Key

	if !hdr.UseCustomIV && entry.HasIV {
		return key, entry.IV, nil
	}

	dataOffset := int64(hdr.DataOffset())
	firstPage := make([]byte, cryptoutil.PageSize)
	if _, err := f.ReadAt(firstPage, dataOffset); err != nil {
		return key, fileIV, fmt.Errorf("pipeline: reading first payload page: %w", err)
	}

	expectedHeader := cryptoutil.NTFSHeader
	if hdr.ContainerType == container.TypeOption {
		expectedHeader = cryptoutil.ExFATHeader
	}

	fileIV, err = cryptoutil.RecoverFileIV(key, expectedHeader, firstPage)
	if err != nil {
		return key, fileIV, fmt.Errorf("pipeline: recovering file IV: %w", err)
	}
	return key, fileIV, nil
}

const chunkSize = cryptoutil.PageSize * cryptoutil.StreamChunkPages

// streamDecrypt reads the container payload in fixed-size chunks, decrypting
// each PageSize-sized block with its own page IV, and writes the result to
// outputPath.
func streamDecrypt(f *os.File, outputPath string, hdr *container.Header, key, fileIV [16]byte, log *logger.Logger) error {
	dataOffset := int64(hdr.DataOffset())
	if _, err := f.Seek(dataOffset, io.SeekStart); err != nil {
		return fmt.Errorf("pipeline: seeking to payload: %w", err)
	}
	src := reader.NewPayloadReader(f, chunkSize)

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("pipeline: creating %s: %w", outputPath, err)
	}
	defer out.Close()

	payloadLength := hdr.PayloadLength()
	bar := pbar.NewProgressBarState(int64(payloadLength))

	buf := make([]byte, chunkSize)
	var totalRead uint64

	for totalRead < payloadLength {
		remaining := payloadLength - totalRead
		want := uint64(len(buf))
		if remaining < want {
			want = remaining
		}

		n, err := io.ReadFull(src, buf[:want])
		if err != nil && err != io.ErrUnexpectedEOF {
			return fmt.Errorf("pipeline: reading payload chunk: %w", err)
		}
		if uint64(n) != want {
			return fmt.Errorf("pipeline: short read decrypting payload: got %d, want %d", n, want)
		}

		if err := decryptChunk(buf[:n], totalRead, key, fileIV); err != nil {
			return err
		}

		if _, err := out.Write(buf[:n]); err != nil {
			return fmt.Errorf("pipeline: writing output: %w", err)
		}

		totalRead += uint64(n)
		bar.ProcessedBytes = int64(totalRead)
		bar.Render(false)
	}
	bar.Render(true)
	bar.Finish()

	return nil
}

// decryptChunk decrypts one buffered read in place, one PageSize block at a
// time, each block keyed by the page IV derived from its absolute file
// offset.
func decryptChunk(buf []byte, baseOffset uint64, key, fileIV [16]byte) error {
	for off := 0; off < len(buf); off += cryptoutil.PageSize {
		end := off + cryptoutil.PageSize
		if end > len(buf) {
			end = len(buf)
		}

		pageIV := cryptoutil.PageIV(baseOffset+uint64(off), fileIV)
		decrypted, err := cryptoutil.DecryptNoPadding(key[:], pageIV[:], buf[off:end])
		if err != nil {
			return fmt.Errorf("pipeline: decrypting page at offset %d: %w", baseOffset+uint64(off), err)
		}
		copy(buf[off:end], decrypted)
	}
	return nil
}
