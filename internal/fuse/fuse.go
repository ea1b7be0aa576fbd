//go:build linux

package fuse

import (
	"context"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"
)

// VolumeFS serves a flat directory of manifest entries read directly out of
// a decrypted volume image, without copying their bytes to the mountpoint.
type VolumeFS struct {
	image io.ReaderAt

	mtx     sync.RWMutex
	entries map[string]Entry
}

// NewVolumeFS builds a FUSE filesystem over image, serving the given
// entries by name.
func NewVolumeFS(image io.ReaderAt, entries []Entry) *VolumeFS {
	byName := make(map[string]Entry, len(entries))
	for _, e := range entries {
		byName[e.Name] = e
	}
	return &VolumeFS{image: image, entries: byName}
}

func (v *VolumeFS) Root() (fs.Node, error) {
	return &dir{fs: v}, nil
}

// dir implements both fs.Node and fs.HandleReadDirAller for the single
// flat directory of extracted files a manifest describes.
type dir struct {
	fs *VolumeFS
}

func (*dir) Attr(ctx context.Context, a *fuse.Attr) error {
	a.Mode = os.ModeDir | 0555
	return nil
}

func (d *dir) Lookup(ctx context.Context, name string) (fs.Node, error) {
	d.fs.mtx.RLock()
	defer d.fs.mtx.RUnlock()

	e, ok := d.fs.entries[name]
	if !ok {
		return nil, fuse.ENOENT
	}
	return &file{image: d.fs.image, entry: e}, nil
}

func (d *dir) ReadDirAll(ctx context.Context) ([]fuse.Dirent, error) {
	d.fs.mtx.RLock()
	defer d.fs.mtx.RUnlock()

	dirents := make([]fuse.Dirent, 0, len(d.fs.entries))
	for name := range d.fs.entries {
		dirents = append(dirents, fuse.Dirent{Name: name, Type: fuse.DT_File})
	}
	sort.Slice(dirents, func(i, j int) bool { return dirents[i].Name < dirents[j].Name })
	for i := range dirents {
		dirents[i].Inode = uint64(i)
	}
	return dirents, nil
}

// file implements both fs.Node and fs.HandleReader, serving reads by
// translating a logical file offset into the matching byte run's image
// offset.
type file struct {
	image io.ReaderAt
	entry Entry
}

func (f *file) Attr(ctx context.Context, a *fuse.Attr) error {
	a.Mode = 0444
	a.Size = f.entry.Size
	a.Mtime = time.Now()
	return nil
}

func (f *file) Read(ctx context.Context, req *fuse.ReadRequest, resp *fuse.ReadResponse) error {
	size := req.Size
	offset := uint64(req.Offset)

	if offset >= f.entry.Size {
		resp.Data = []byte{}
		return nil
	}
	if offset+uint64(size) > f.entry.Size {
		size = int(f.entry.Size - offset)
	}

	out := make([]byte, 0, size)
	for _, run := range f.entry.Runs {
		if offset >= run.LogicalOffset+run.Length || offset+uint64(size) <= run.LogicalOffset {
			continue
		}

		readStart := offset
		if readStart < run.LogicalOffset {
			readStart = run.LogicalOffset
		}
		readEnd := offset + uint64(size)
		if readEnd > run.LogicalOffset+run.Length {
			readEnd = run.LogicalOffset + run.Length
		}

		buf := make([]byte, readEnd-readStart)
		imageOffset := run.ImageOffset + (readStart - run.LogicalOffset)
		n, err := f.image.ReadAt(buf, int64(imageOffset))
		if err != nil && err != io.EOF {
			return err
		}
		out = append(out, buf[:n]...)
	}

	resp.Data = out
	return nil
}
