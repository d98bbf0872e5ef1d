package aac

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/streamcore/esparser/common/errs"
	"github.com/streamcore/esparser/es"
	"github.com/streamcore/esparser/esio"
)

func buildADTSFrame(payloadLen int) []byte {
	frameLen := 7 + payloadLen
	h := make([]byte, 7+payloadLen)
	h[0] = 0xff
	h[1] = 0xf1 // MPEG-4, no CRC
	h[2] = (1 << 6) | (3 << 2) | (1 >> 2)
	h[3] = (1 << 6) | byte(frameLen>>11)
	h[4] = byte(frameLen >> 3)
	h[5] = byte(frameLen<<5) | 0x1f
	h[6] = 0xfc
	return h
}

// buildADTSFrameWithCRC builds a CRC-protected ADTS frame (protection_absent=0):
// a 7-byte fixed+variable header, a 2-byte crc_check, then payloadLen bytes.
func buildADTSFrameWithCRC(payloadLen int) []byte {
	frameLen := 9 + payloadLen
	h := make([]byte, 9+payloadLen)
	h[0] = 0xff
	h[1] = 0xf0 // MPEG-4, CRC present (protection_absent=0)
	h[2] = (1 << 6) | (3 << 2) | (1 >> 2)
	h[3] = (1 << 6) | byte(frameLen>>11)
	h[4] = byte(frameLen >> 3)
	h[5] = byte(frameLen<<5) | 0x1f
	h[6] = 0xfc
	return h
}

func TestParserSkipsADTSCRCBytes(t *testing.T) {
	f1 := buildADTSFrameWithCRC(10)
	f2 := buildADTSFrameWithCRC(10)
	stream := append(append([]byte{}, f1...), f2...)

	r := esio.NewMemReader(stream)
	p := &Parser{}
	require.NoError(t, p.Init(r, 0, es.ExternalTiming{}))

	s1, err := p.GetSample()
	require.NoError(t, err)
	require.EqualValues(t, len(f1), s1.Size)

	s2, err := p.GetSample()
	require.NoError(t, err)
	require.EqualValues(t, len(f2), s2.Size)

	_, err = p.GetSample()
	require.True(t, errs.Is(err, errs.KindEndOfStream))
}

func TestParserDecodesADTSFrames(t *testing.T) {
	f1 := buildADTSFrame(10)
	f2 := buildADTSFrame(10)
	stream := append(append([]byte{}, f1...), f2...)

	r := esio.NewMemReader(stream)
	p := &Parser{}
	require.NoError(t, p.Init(r, 0, es.ExternalTiming{}))

	s1, err := p.GetSample()
	require.NoError(t, err)
	require.EqualValues(t, len(f1), s1.Size)

	s2, err := p.GetSample()
	require.NoError(t, err)
	require.True(t, s2.DTS > s1.DTS)

	_, err = p.GetSample()
	require.True(t, errs.Is(err, errs.KindEndOfStream))

	cfg, err := p.GetCfg()
	require.NoError(t, err)
	require.NotEmpty(t, cfg)
}

func TestCopySampleWritesADTSFrame(t *testing.T) {
	f1 := buildADTSFrame(10)
	stream := append([]byte{}, f1...)

	r := esio.NewMemReader(stream)
	p := &Parser{}
	require.NoError(t, p.Init(r, 0, es.ExternalTiming{}))

	_, err := p.GetSample()
	require.NoError(t, err)

	out := esio.NewMemWriter()
	require.NoError(t, p.CopySample(out, 0))
	require.NotEmpty(t, out.Bytes())

	ref, err := p.GetSubSample(0, 0)
	require.NoError(t, err)
	require.EqualValues(t, len(f1), ref.Size)

	_, err = p.GetSubSample(0, 1)
	require.True(t, errs.Is(err, errs.KindSyntaxError))
}
