package esio

import (
	"io"
	"os"

	"github.com/pkg/errors"
)

// FileReader adapts *os.File to ByteReader.
type FileReader struct {
	f    *os.File
	size int64
}

func NewFileReader(f *os.File) (*FileReader, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, errors.Wrapf(err, "esio: stat")
	}
	return &FileReader{f: f, size: info.Size()}, nil
}

func (r *FileReader) Read(buf []byte) (int, error) { return r.f.Read(buf) }

func (r *FileReader) Position() (int64, error) { return r.f.Seek(0, io.SeekCurrent) }

func (r *FileReader) Seek(offset int64, whence Whence) (int64, error) {
	return r.f.Seek(offset, int(whence))
}

func (r *FileReader) Size() (int64, error) { return r.size, nil }

func (r *FileReader) IsEOF() (bool, error) {
	pos, err := r.Position()
	if err != nil {
		return false, err
	}
	return pos >= r.size, nil
}

// MemReader adapts an in-memory byte slice to ByteReader, used by tests
// that synthesize a small Annex-B or AC-4 stream inline.
type MemReader struct {
	buf []byte
	pos int64
}

func NewMemReader(buf []byte) *MemReader { return &MemReader{buf: buf} }

func (r *MemReader) Read(buf []byte) (int, error) {
	if r.pos >= int64(len(r.buf)) {
		return 0, io.EOF
	}
	n := copy(buf, r.buf[r.pos:])
	r.pos += int64(n)
	return n, nil
}

func (r *MemReader) Position() (int64, error) { return r.pos, nil }

func (r *MemReader) Seek(offset int64, whence Whence) (int64, error) {
	var base int64
	switch whence {
	case SeekSet:
		base = 0
	case SeekCur:
		base = r.pos
	case SeekEnd:
		base = int64(len(r.buf))
	}
	np := base + offset
	if np < 0 || np > int64(len(r.buf)) {
		return r.pos, errors.Errorf("esio: seek out of range")
	}
	r.pos = np
	return r.pos, nil
}

func (r *MemReader) Size() (int64, error) { return int64(len(r.buf)), nil }

func (r *MemReader) IsEOF() (bool, error) { return r.pos >= int64(len(r.buf)), nil }
