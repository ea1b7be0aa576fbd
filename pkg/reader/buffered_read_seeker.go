// Copyright (c) 2025 Stefano Scafiti
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
package reader

import (
	"io"
)

// PayloadReader buffers reads off a container's encrypted payload stream.
// The payload is always consumed front-to-back in page-sized chunks during
// decryption, never seeked or peeked, so unlike a general-purpose buffered
// reader this one only batches forward reads to cut down on the number of
// underlying Read calls against the source file.
type PayloadReader struct {
	src io.Reader
	buf []byte
	off int // read offset in buffer
	size int // number of valid bytes in buffer
}

// NewPayloadReader wraps src with a read-ahead buffer of bufSize bytes,
// sized to match the pipeline's streaming chunk size.
func NewPayloadReader(src io.Reader, bufSize int) *PayloadReader {
	return &PayloadReader{
		src: src,
		buf: make([]byte, bufSize),
	}
}

func (b *PayloadReader) fillBuffer() error {
	n, err := b.src.Read(b.buf)
	if err != nil && err != io.EOF {
		return err
	}
	b.size = n
	b.off = 0
	return nil
}

func (b *PayloadReader) Read(p []byte) (int, error) {
	readBytes := 0
	for readBytes < len(p) {
		if b.off >= b.size {
			if err := b.fillBuffer(); err != nil {
				return 0, err
			}
			if b.size == 0 {
				return readBytes, io.EOF
			}
		}
		n := copy(p[readBytes:], b.buf[b.off:b.size])
		b.off += n
		readBytes += n
	}
	return readBytes, nil
}
