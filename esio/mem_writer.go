package esio

import (
	"bytes"

	"github.com/streamcore/esparser/bits"
)

// MemWriter is a growable in-memory ByteWriter, the one esio.ByteWriter
// implementation the core itself provides (for DSI emission ahead of an
// external box writer being wired in).
type MemWriter struct {
	buf *bytes.Buffer
	bw  *bits.Writer
}

func NewMemWriter() *MemWriter {
	return &MemWriter{buf: &bytes.Buffer{}, bw: bits.NewWriter()}
}

func (w *MemWriter) WriteU8(v uint8) error {
	w.buf.WriteByte(v)
	return nil
}

func (w *MemWriter) WriteU16(v uint16) error {
	var b [2]byte
	bits.PutU16BE(b[:], v)
	w.buf.Write(b[:])
	return nil
}

func (w *MemWriter) WriteU24(v uint32) error {
	var b [3]byte
	bits.PutU24BE(b[:], v)
	w.buf.Write(b[:])
	return nil
}

func (w *MemWriter) WriteU32(v uint32) error {
	var b [4]byte
	bits.PutU32BE(b[:], v)
	w.buf.Write(b[:])
	return nil
}

func (w *MemWriter) WriteU64(v uint64) error {
	w.buf.Write([]byte{
		byte(v >> 56), byte(v >> 48), byte(v >> 40), byte(v >> 32),
		byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v),
	})
	return nil
}

func (w *MemWriter) WriteBytes(b []byte) error {
	w.buf.Write(b)
	return nil
}

func (w *MemWriter) WriteBits(n int, v uint32) error {
	w.bw.WriteBits(n, v)
	return nil
}

func (w *MemWriter) FlushBits() error {
	w.buf.Write(w.bw.Bytes())
	w.bw.Reset()
	return nil
}

func (w *MemWriter) Position() (int64, error) { return int64(w.buf.Len()), nil }

func (w *MemWriter) Seek(offset int64, whence Whence) (int64, error) {
	// MemWriter only ever appends; DSI/SEI emission here is always
	// sequential, so Seek is unsupported rather than faked.
	return 0, errNotSeekable
}

func (w *MemWriter) Bytes() []byte {
	w.FlushBits()
	return w.buf.Bytes()
}

var errNotSeekable = seekErr{}

type seekErr struct{}

func (seekErr) Error() string { return "esio: MemWriter is append-only" }
