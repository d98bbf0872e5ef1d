// Package ac4 implements the AC-4 (ETSI TS 103 190) elementary-stream
// parser: raw-frame sync/length framing, TOC decode, the
// presentation/substream-group graph, channel-mask derivation, and dac4
// synthesis.
package ac4

import (
	"github.com/streamcore/esparser/bits"
	"github.com/streamcore/esparser/common/errs"
)

// Sync words (ETSI TS 103 190-1 §5.2). 0xAC41 carries a CRC on
// raw_frame() immediately before the next sync word.
const (
	SyncWord      = 0xac40
	SyncWordCRC   = 0xac41
	EscapeLength  = 0xffff
)

// Frame is one parsed ac4_frame() shell: the sync-delimited byte range
// plus the raw TOC bytes, before TOC field decode.
type Frame struct {
	FileOffset int64 // offset of the sync word
	HeaderSize int    // bytes from sync word through the length field
	TOCBytes   []byte
	HasCRC     bool
}

// ParseFrameHeader reads the sync word and frame_size field starting at
// buf[0], returning the frame's total byte length (including the sync
// word and any CRC) and whether a CRC trailer is present. buf must
// contain at least 4 bytes (sync(2) + frame_size(2)), or 7 when
// frame_size is the 0xFFFF escape followed by a 24-bit size.
func ParseFrameHeader(buf []byte) (totalLen int, hasCRC bool, tocOffset int, err error) {
	if len(buf) < 4 {
		return 0, false, 0, errs.New(errs.KindEndOfStream, "ac4: frame header truncated")
	}
	sync := bits.U16BE(buf[0:2])
	switch sync {
	case SyncWord:
		hasCRC = false
	case SyncWordCRC:
		hasCRC = true
	default:
		return 0, false, 0, errs.New(errs.KindSyntaxError, "ac4: bad sync word")
	}

	frameSize := int(bits.U16BE(buf[2:4]))
	off := 4
	if frameSize == EscapeLength {
		if len(buf) < 7 {
			return 0, false, 0, errs.New(errs.KindEndOfStream, "ac4: frame header truncated")
		}
		frameSize = int(bits.U24BE(buf[4:7]))
		off = 7
	}
	if frameSize == 0 {
		return 0, false, 0, errs.New(errs.KindSyntaxError, "ac4: zero-length frame")
	}

	total := off + frameSize
	if hasCRC {
		total += 2
	}
	return total, hasCRC, off, nil
}
