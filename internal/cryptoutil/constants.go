// Package cryptoutil implements the AES-128-CBC primitives used to open a
// boot container: header decryption, the per-page IV derivation, and file IV
// recovery from a known-plaintext first page.
package cryptoutil

// BootIDKey decrypts the 96-byte BootId header that precedes every
// container. It is fixed for all containers regardless of OS or game id.
var BootIDKey = [16]byte{
	0x09, 0xCA, 0x5E, 0xFD, 0x30, 0xC9, 0xAA, 0xEF,
	0x38, 0x04, 0xD0, 0xA7, 0xE3, 0xFA, 0x71, 0x20,
}

// BootIDIV is the fixed IV paired with BootIDKey.
var BootIDIV = [16]byte{
	0xB1, 0x55, 0xC2, 0x2C, 0x2E, 0x7F, 0x04, 0x91,
	0xFA, 0x7F, 0x0F, 0xDC, 0x21, 0x7A, 0xFF, 0x90,
}

// NTFSHeader is the first 16 bytes of any NTFS boot sector, used as the
// known-plaintext target when recovering a file IV for OS/APP containers.
var NTFSHeader = [16]byte{
	0xeb, 0x52, 0x90, 0x4e, 0x54, 0x46, 0x53, 0x20,
	0x20, 0x20, 0x20, 0x00, 0x10, 0x01, 0x00, 0x00,
}

// ExFATHeader is the first 16 bytes of any exFAT boot sector, used as the
// known-plaintext target when recovering a file IV for OPTION containers.
var ExFATHeader = [16]byte{
	0xeb, 0x76, 0x90, 0x45, 0x58, 0x46, 0x41, 0x54,
	0x20, 0x20, 0x20, 0x00, 0x00, 0x00, 0x00, 0x00,
}

// OptionKey is the fixed key for OPTION containers (no per-id lookup).
var OptionKey = [16]byte{
	0x5c, 0x84, 0xa9, 0xe7, 0x26, 0xea, 0xa5, 0xdd,
	0x35, 0x1f, 0x2b, 0x07, 0x50, 0xc2, 0x36, 0x97,
}

// OptionIV is the fixed IV for OPTION containers.
var OptionIV = [16]byte{
	0xc0, 0x63, 0xbf, 0x6f, 0x56, 0x2d, 0x08, 0x4d,
	0x79, 0x63, 0xc9, 0x87, 0xf5, 0x28, 0x17, 0x61,
}

// PageSize is the granularity at which page IVs change; every PageSize
// bytes of payload are decrypted with their own derived IV.
const PageSize = 4096

// StreamChunkPages bounds how many pages the pipeline reads and decrypts in
// one buffered chunk.
const StreamChunkPages = 256
