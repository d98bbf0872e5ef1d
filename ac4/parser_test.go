package ac4

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/streamcore/esparser/bits"
	"github.com/streamcore/esparser/common/errs"
	"github.com/streamcore/esparser/es"
	"github.com/streamcore/esparser/esio"
)

// writeVariableBits encodes the inverse of bits.Reader.ReadVariableBits
// for test fixtures, for the single-chunk case (value < 1<<nBits, no
// continuation) which is all that's exercised here.
func writeVariableBits(w *bits.Writer, nBits int, value uint32) {
	w.WriteBits(nBits, value)
	w.WriteFlag(false)
}

func buildPresentationBitsVersion(w *bits.Writer, version int) {
	for i := 0; i < version; i++ {
		w.WriteFlag(true) // presentation_version unary 1-bits
	}
	w.WriteFlag(false) // unary terminator
	w.WriteBits(8, 0)  // presentation_id
	w.WriteFlag(false) // skip_presentation_byte
	w.WriteFlag(false) // b_add_emdf_substreams
	w.WriteBits(2, 0)  // presentation_config
	w.WriteFlag(false) // b_presentation_id
	w.WriteBits(5, 2)  // pres_ch_mode + 1 (stereo, chanMode=1)
	w.WriteBits(2, 0)  // dsi flag bundle
	w.WriteFlag(false) // b_is_atmos
	w.WriteFlag(true)  // b_top_level_mix_present
	w.WriteBits(3, 0)  // n_substream_groups - 1 (one group)
	w.WriteFlag(true)  // channel_coded
	w.WriteBits(5, 1)  // chan_mode (stereo)
}

func buildPresentationBits(w *bits.Writer) {
	buildPresentationBitsVersion(w, 0)
}

// buildTOCBytes only supports nPresentations of 0, 1, or 2..5 (the
// single-chunk range writeVariableBits can encode).
func buildTOCBytes(nPresentations int) []byte {
	w := bits.NewWriter()
	w.WriteBits(2, 2)  // bitstream_version
	w.WriteBits(10, 7) // sequence_counter
	w.WriteFlag(false) // b_wait_frames
	w.WriteBits(1, 1)  // fs_index (48kHz)
	w.WriteBits(4, 4)  // frame_rate_index (30fps)
	w.WriteFlag(false) // b_iframe_global

	switch {
	case nPresentations == 1:
		w.WriteFlag(true) // b_single_presentation
	case nPresentations == 0:
		w.WriteFlag(false) // b_single_presentation
		w.WriteFlag(false) // b_more_presentations
	default:
		w.WriteFlag(false) // b_single_presentation
		w.WriteFlag(true)  // b_more_presentations
		writeVariableBits(w, 2, uint32(nPresentations-2))
	}

	w.WriteFlag(false) // b_payload_base
	w.WriteFlag(false) // b_program_id
	for i := 0; i < nPresentations; i++ {
		buildPresentationBits(w)
	}
	return w.Bytes()
}

func buildRawFrame(toc []byte) []byte {
	frameSize := len(toc)
	buf := []byte{0xac, 0x40, byte(frameSize >> 8), byte(frameSize)}
	return append(buf, toc...)
}

func TestParserDecodesFrames(t *testing.T) {
	toc := buildTOCBytes(1)
	frame := buildRawFrame(toc)
	stream := append(append([]byte{}, frame...), frame...)

	r := esio.NewMemReader(stream)
	p := &Parser{}
	require.NoError(t, p.Init(r, 1, es.ExternalTiming{}))

	s1, err := p.GetSample()
	require.NoError(t, err)
	require.NotNil(t, s1)
	require.True(t, s1.Flags&es.FlagSync != 0)
	require.EqualValues(t, len(frame), s1.Size)

	s2, err := p.GetSample()
	require.NoError(t, err)
	require.NotNil(t, s2)
	require.True(t, s2.DTS > s1.DTS)

	_, err = p.GetSample()
	require.True(t, errs.Is(err, errs.KindEndOfStream))

	cfg, err := p.GetCfg()
	require.NoError(t, err)
	require.NotEmpty(t, cfg)

	rate, err := p.GetParam(es.ParamTimeScale)
	require.NoError(t, err)
	require.EqualValues(t, 48000, rate)
}

func TestParsePresentationVersionIsUnaryCoded(t *testing.T) {
	w := bits.NewWriter()
	w.WriteBits(2, 2)  // bitstream_version
	w.WriteBits(10, 7) // sequence_counter
	w.WriteFlag(false) // b_wait_frames
	w.WriteBits(1, 1)  // fs_index
	w.WriteBits(4, 4)  // frame_rate_index
	w.WriteFlag(false) // b_iframe_global
	w.WriteFlag(true)  // b_single_presentation
	w.WriteFlag(false) // b_payload_base
	w.WriteFlag(false) // b_program_id
	buildPresentationBitsVersion(w, 2)

	toc, err := ParseTOC(w.Bytes())
	require.NoError(t, err)
	require.Len(t, toc.Presentations, 1)
	require.EqualValues(t, 2, toc.Presentations[0].PresentationVersion)
}

func TestCopySampleWritesFrameBytes(t *testing.T) {
	toc := buildTOCBytes(1)
	frame := buildRawFrame(toc)

	r := esio.NewMemReader(append([]byte{}, frame...))
	p := &Parser{}
	require.NoError(t, p.Init(r, 1, es.ExternalTiming{}))

	_, err := p.GetSample()
	require.NoError(t, err)

	out := esio.NewMemWriter()
	require.NoError(t, p.CopySample(out, 0))
	require.NotEmpty(t, out.Bytes())
}

func TestParseTOCRejectsOldBitstreamVersion(t *testing.T) {
	w := bits.NewWriter()
	w.WriteBits(2, 1)  // bitstream_version <= 1, deprecated
	w.WriteBits(10, 0) // sequence_counter
	w.WriteFlag(false) // b_wait_frames
	w.WriteBits(1, 1)  // fs_index
	w.WriteBits(4, 4)  // frame_rate_index
	w.WriteFlag(false) // b_iframe_global
	w.WriteFlag(false) // b_single_presentation
	w.WriteFlag(false) // b_more_presentations
	w.WriteFlag(false) // b_payload_base
	_, err := ParseTOC(w.Bytes())
	require.True(t, errs.Is(err, errs.KindNotSupported))
}
