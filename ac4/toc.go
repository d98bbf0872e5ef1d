package ac4

import (
	"github.com/streamcore/esparser/bits"
	"github.com/streamcore/esparser/common/errs"
)

// frameRateTable is Table E.1 (ETSI TS 103 190-1 Annex E), indexed by
// frame_rate_index. Values are frames per second *1000; a value of 0
// marks a reserved index.
var frameRateTable = [16]uint32{
	23976, 24000, 25000, 29970, 30000, 47950, 48000, 50000,
	59940, 60000, 100000, 119880, 120000, 0, 0, 0,
}

// fsTable is the sampling-frequency table selected by fs_index.
var fsTable = [2]uint32{44100, 48000}

// TOC is the decoded ac4_toc() of one raw_frame().
type TOC struct {
	BitstreamVersion uint32
	SequenceCounter  uint32
	FsIndex          uint8
	FrameRateIndex   int
	SampleRate       uint32
	FrameRateMilliHz uint32
	// PayloadBase is payload_base_minus1+1 (with its variable_bits(3)
	// extension when the minus1 field saturates at 0x1f), the byte offset
	// ac4_substream_data() measures raw_frame payload sizes from. Zero
	// means b_payload_base was absent.
	PayloadBase   uint32
	// BitRateMode is ac4_bitrate_dsi's bit_rate_mode, derived from the
	// wait_frames field when b_wait_frames is set (0 when absent, i.e.
	// CBR/mode unknown).
	BitRateMode   uint8
	Presentations []Presentation
}

// ParseTOC decodes ac4_toc() from the RBSP bytes immediately following
// the frame-length field (ETSI TS 103 190-1 §4.3.2). Only
// bitstream_version > 1 is supported; versions 0 and 1 used an
// incompatible, deprecated TOC layout this core does not decode.
func ParseTOC(toc []byte) (*TOC, error) {
	r := bits.NewReader(toc)
	t := &TOC{}

	t.BitstreamVersion = r.ReadBits(2)
	if t.BitstreamVersion == 3 {
		t.BitstreamVersion += r.ReadVariableBits(2)
	}

	t.SequenceCounter = r.ReadBits(10)

	if r.ReadFlag() { // b_wait_frames
		waitFrames := r.ReadBits(3)
		switch {
		case waitFrames == 0:
			t.BitRateMode = 1
		case waitFrames < 7:
			t.BitRateMode = 2
		default:
			t.BitRateMode = 3
		}
		if waitFrames > 0 {
			r.ReadBits(2) // br_code
		}
	}

	t.FsIndex = uint8(r.ReadBits(1))
	t.SampleRate = fsTable[t.FsIndex]

	t.FrameRateIndex = int(r.ReadBits(4))
	t.FrameRateMilliHz = frameRateTable[t.FrameRateIndex]

	r.ReadFlag() // b_iframe_global, unused downstream

	var nPresentations int
	if r.ReadFlag() { // b_single_presentation
		nPresentations = 1
	} else if r.ReadFlag() { // b_more_presentations
		nPresentations = int(r.ReadVariableBits(2)) + 2
	}

	if r.ReadFlag() { // b_payload_base
		pb := r.ReadBits(5) + 1
		if pb == 0x20 {
			pb += r.ReadVariableBits(3)
		}
		t.PayloadBase = pb
	}

	if t.BitstreamVersion <= 1 {
		return nil, errs.New(errs.KindNotSupported, "ac4: bitstream_version <= 1 unsupported")
	}

	if r.ReadFlag() { // b_program_id
		r.ReadBits(16) // short_program_id
		if r.ReadFlag() { // b_program_uuid_present
			for i := 0; i < 8; i++ {
				r.ReadBits(16) // program_uuid, opaque passthrough
			}
		}
	}

	t.Presentations = make([]Presentation, 0, nPresentations)
	for i := 0; i < nPresentations; i++ {
		p, err := parsePresentation(r, t.BitstreamVersion)
		if err != nil {
			return nil, err
		}
		t.Presentations = append(t.Presentations, p)
	}

	return t, nil
}
