// Package archive tees raw vendor record buffers to a compressed,
// length-framed file so a run can be replayed through the same
// parse/route/write path without the vendor.
package archive

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
)

// Frames larger than this are corrupt; the biggest record kind is
// around 103 KB.
const maxFrame = 1 << 20

// Writer appends length-framed records to a zstd stream.
type Writer struct {
	f  *os.File
	zw *zstd.Encoder
	n  int
}

func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	zw, err := zstd.NewWriter(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &Writer{f: f, zw: zw}, nil
}

// Append writes one record frame. The buffer may be reused by the
// caller after Append returns.
func (w *Writer) Append(record []byte) error {
	if len(record) > maxFrame {
		return fmt.Errorf("archive: record of %d bytes exceeds frame limit", len(record))
	}
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(record)))
	if _, err := w.zw.Write(hdr[:]); err != nil {
		return err
	}
	if _, err := w.zw.Write(record); err != nil {
		return err
	}
	w.n++
	return nil
}

// Count returns records appended so far.
func (w *Writer) Count() int { return w.n }

func (w *Writer) Close() error {
	if err := w.zw.Close(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}

// Replay streams every record in the archive to fn, in append order.
// Returns the number of records delivered.
func Replay(path string, fn func(record []byte) error) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return 0, err
	}
	defer zr.Close()

	var hdr [4]byte
	buf := make([]byte, 64*1024)
	n := 0
	for {
		if _, err := io.ReadFull(zr, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return n, nil
			}
			return n, fmt.Errorf("archive: reading frame header: %w", err)
		}
		size := binary.LittleEndian.Uint32(hdr[:])
		if size > maxFrame {
			return n, fmt.Errorf("archive: frame of %d bytes exceeds limit, archive corrupt", size)
		}
		if int(size) > len(buf) {
			buf = make([]byte, size)
		}
		if _, err := io.ReadFull(zr, buf[:size]); err != nil {
			return n, fmt.Errorf("archive: reading %d-byte frame: %w", size, err)
		}
		if err := fn(buf[:size]); err != nil {
			return n, err
		}
		n++
	}
}
