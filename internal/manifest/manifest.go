// Package manifest records, for every entry an extractor writes to the
// host filesystem, the byte ranges it occupies in the decrypted volume
// image. It is built up in memory as extraction runs, written out once the
// extraction finishes, and lets `vaultimg mount` serve
// those entries directly from the volume image without a second copy.
package manifest

import (
	"encoding/xml"
	"os"
	"os/user"
	"runtime"
	"strconv"
	"time"

	"github.com/vaultimg/vaultimg/internal/buildinfo"
	"github.com/vaultimg/vaultimg/pkg/sysinfo"
)

// Version is the manifest document schema version.
const Version = "1.0"

// Document is the root element of a manifest file.
type Document struct {
	XMLName xml.Name `xml:"vaultimg-manifest"`
	Version string   `xml:"version,attr"`
	Creator Creator  `xml:"creator"`
	Source  Source   `xml:"source"`
	Entries []Entry  `xml:"entry"`
}

// Creator records the tool version and execution environment that
// produced the manifest.
type Creator struct {
	Package string  `xml:"package"`
	Version string  `xml:"version"`
	Env     ExecEnv `xml:"execution_environment"`
}

// ExecEnv mirrors the execution-environment fields the teacher's DFXML
// writer records, trimmed to what a manifest reader needs.
type ExecEnv struct {
	OS      string `xml:"os_sysname"`
	Release string `xml:"os_release"`
	Version string `xml:"os_version"`
	Host    string `xml:"host"`
	Arch    string `xml:"arch"`
	UID     int    `xml:"uid"`
	Start   string `xml:"start_time"`
}

// Source describes the decrypted volume image the entries' byte ranges
// are relative to.
type Source struct {
	ImageFilename string `xml:"image_filename"`
	ImageSize     uint64 `xml:"image_size"`
}

// Entry is one extracted file or directory.
type Entry struct {
	Path        string     `xml:"path"`
	IsDirectory bool       `xml:"is_directory"`
	Size        uint64     `xml:"size"`
	Runs        []ByteRun  `xml:"byte_run"`
}

// ByteRun is one contiguous extent of an entry's data within the volume
// image: byte [ImageOffset, ImageOffset+Length) holds logical bytes
// [Offset, Offset+Length) of the entry.
type ByteRun struct {
	Offset      uint64 `xml:"offset,attr"`
	ImageOffset uint64 `xml:"img_offset,attr"`
	Length      uint64 `xml:"len,attr"`
}

// NewDocument builds a manifest header for imageName/imageSize, stamping
// the current execution environment as creator.
func NewDocument(imageName string, imageSize uint64) *Document {
	return &Document{
		Version: Version,
		Creator: Creator{
			Package: buildinfo.AppName,
			Version: buildinfo.Version,
			Env:     currentExecEnv(),
		},
		Source: Source{
			ImageFilename: imageName,
			ImageSize:     imageSize,
		},
	}
}

func currentExecEnv() ExecEnv {
	sinfo, err := sysinfo.Stat()
	if err != nil {
		sinfo = &sysinfo.SysUnknown
	}

	host, err := os.Hostname()
	if err != nil {
		host = "unknown_host"
	}

	uid := 0
	if currentUser, err := user.Current(); err == nil {
		if parsed, err := strconv.Atoi(currentUser.Uid); err == nil {
			uid = parsed
		}
	}

	return ExecEnv{
		OS:      sinfo.Name,
		Release: sinfo.Release,
		Version: sinfo.Version,
		Host:    host,
		Arch:    runtime.GOARCH,
		UID:     uid,
		Start:   time.Now().UTC().Format("2006-01-02T15:04:05Z"),
	}
}

// AddFile appends a single-entry file record with one or more byte runs.
func (d *Document) AddFile(path string, size uint64, runs []ByteRun) {
	d.Entries = append(d.Entries, Entry{Path: path, Size: size, Runs: runs})
}

// AddDirectory appends a directory record (no byte runs).
func (d *Document) AddDirectory(path string) {
	d.Entries = append(d.Entries, Entry{Path: path, IsDirectory: true})
}
