package gpt

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
)

// diskFile lets the go-diskfs table code read and write an in-memory disk
type diskFile struct {
	*bytes.Reader
	buf []byte
}

func newDiskFile(buf []byte) *diskFile {
	return &diskFile{Reader: bytes.NewReader(buf), buf: buf}
}

func (f *diskFile) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > int64(len(f.buf)) {
		return 0, io.ErrShortWrite
	}
	return copy(f.buf[off:], p), nil
}

func (f *diskFile) Stat() (fs.FileInfo, error) {
	return nil, errors.New("in-memory disk has no file info")
}

func (f *diskFile) Close() error {
	return nil
}

// backupFile presents the backup header at the last sector as if it were
// the primary one at LBA 1
type backupFile struct {
	*diskFile
}

func (f backupFile) ReadAt(p []byte, off int64) (int, error) {
	n, err := f.diskFile.ReadAt(p, off)
	end := off + int64(len(p))
	if off >= 2*SectorSize || end <= SectorSize {
		return n, err
	}
	last := int64(len(f.buf)) - SectorSize
	lo, hi := max(off, SectorSize), min(end, 2*SectorSize)
	copy(p[lo-off:hi-off], f.buf[last+lo-SectorSize:last+hi-SectorSize])
	return n, err
}
