// Package nal implements the NAL segmenter: it finds Annex-B start codes
// in a byte-oriented reader and yields one NAL at a time, deferring full
// buffering of large bodies until a caller actually needs them.
package nal

import (
	"github.com/streamcore/esparser/bits"
	"github.com/streamcore/esparser/common/errs"
	"github.com/streamcore/esparser/esio"
)

const (
	windowSize     = 4 << 10 // rolling byte window
	incompleteMark = 2 << 10 // minimum buffered body before returning incomplete
)

// Unit is one NAL: a start-code-delimited chunk of an Annex-B elementary
// stream, with its body materialised into Body. Incomplete is set when
// the segmenter had to stop scanning for the next start code early
// within the rolling byte window — callers needing the full body should
// call Segmenter.Fetch again and append, which this package's caller
// (the codec parsers) does by re-driving Fetch across boundaries.
type Unit struct {
	FileOffset    int64
	StartCodeSize int
	Body          []byte
	Complete      bool
}

// Segmenter owns a rolling read window over a single esio.ByteReader.
type Segmenter struct {
	r          esio.ByteReader
	window     []byte
	windowBase int64 // file offset of window[0]
	cursor     int    // index into window of the current NAL's start code
	atEOF      bool
}

func NewSegmenter(r esio.ByteReader) *Segmenter {
	return &Segmenter{r: r}
}

func (s *Segmenter) refill() error {
	if s.atEOF {
		return nil
	}
	buf := make([]byte, windowSize)
	n, err := s.r.Read(buf)
	if n > 0 {
		s.window = append(s.window, buf[:n]...)
	}
	if err != nil || n == 0 {
		eof, eerr := s.r.IsEOF()
		if eerr == nil && eof {
			s.atEOF = true
			return nil
		}
		if err != nil {
			return errs.Wrapf(err, "nal: refill")
		}
	}
	return nil
}

// findStartCode scans window[from:] for 0x000001, returning the offset of
// the first 0x00 of the start code and its size (3 or 4), or (-1,0).
func findStartCode(window []byte, from int) (int, int) {
	for i := from; i+2 < len(window); i++ {
		if window[i] == 0 && window[i+1] == 0 && window[i+2] == 1 {
			if i > from && window[i-1] == 0 {
				return i - 1, 4
			}
			return i, 3
		}
	}
	return -1, 0
}

// Fetch returns the next NAL, or (nil, errs.ErrEndOfStream) once the
// reader is exhausted and no unreported byte remains.
func (s *Segmenter) Fetch() (*Unit, error) {
	for {
		if len(s.window)-s.cursor < windowSize && !s.atEOF {
			if err := s.refill(); err != nil {
				return nil, err
			}
		}

		scOff, scSize := findStartCode(s.window, s.cursor)
		if scOff < 0 {
			if s.atEOF {
				break
			}
			// Not enough window to find our own start code yet; keep
			// refilling before giving up.
			before := len(s.window)
			if err := s.refill(); err != nil {
				return nil, err
			}
			if len(s.window) == before { // refill made no progress
				break
			}
			continue
		}

		nextOff, _ := findStartCode(s.window, scOff+scSize)
		if nextOff >= 0 {
			body := s.window[scOff+scSize : nextOff]
			u := &Unit{
				FileOffset:    s.windowBase + int64(scOff),
				StartCodeSize: scSize,
				Body:          append([]byte(nil), body...),
				Complete:      true,
			}
			s.advance(nextOff)
			return u, nil
		}

		if s.atEOF {
			body := s.window[scOff+scSize:]
			u := &Unit{
				FileOffset:    s.windowBase + int64(scOff),
				StartCodeSize: scSize,
				Body:          append([]byte(nil), body...),
				Complete:      true,
			}
			s.advance(len(s.window))
			return u, nil
		}

		if len(s.window)-(scOff+scSize) >= incompleteMark {
			body := s.window[scOff+scSize:]
			u := &Unit{
				FileOffset:    s.windowBase + int64(scOff),
				StartCodeSize: scSize,
				Body:          append([]byte(nil), body...),
				Complete:      false,
			}
			s.advance(len(s.window))
			return u, nil
		}

		// Less than 2KiB buffered past this start code and not at EOF:
		// compact the window so the unread tail starts at index 0, then
		// refill and retry from the same start code.
		s.compact(scOff)
		if err := s.refill(); err != nil {
			return nil, err
		}
	}
	return nil, errs.ErrEndOfStream
}

func (s *Segmenter) advance(newCursor int) {
	s.cursor = newCursor
}

// compact discards everything before keepFrom, rebasing windowBase.
func (s *Segmenter) compact(keepFrom int) {
	s.windowBase += int64(keepFrom)
	s.window = append([]byte(nil), s.window[keepFrom:]...)
	s.cursor = 0
}

// RemoveEmulation is a convenience re-export so codec parsers don't need
// to import bits separately just to de-escape a fetched NAL body.
func RemoveEmulation(body []byte) []byte { return bits.RemoveEmulationPrevention(body) }
