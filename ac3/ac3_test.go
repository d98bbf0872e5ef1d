package ac3

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/streamcore/esparser/common/errs"
	"github.com/streamcore/esparser/es"
	"github.com/streamcore/esparser/esio"
)

// buildSyncFrame constructs a minimal 3/2-channel (acmod=7) AC-3
// syncframe with fscod=0 (48kHz) and frmsizecod=0, padded with zero bytes
// out to the table-derived frame size.
func buildSyncFrame() []byte {
	const frmSizeCod = 0
	words := frameSizeTable[frmSizeCod][0]
	buf := make([]byte, words*2)
	buf[0] = 0x0b
	buf[1] = 0x77
	buf[2] = 0x00 // crc1 hi
	buf[3] = 0x00 // crc1 lo
	buf[4] = (0 << 6) | frmSizeCod // fscod=0, frmsizecod=0
	buf[5] = (8 << 3) | 0          // bsid=8, bsmod=0
	buf[6] = (7 << 5)              // acmod=7 (3/2)
	// acmod 7 has both cmixlev(2)+surmixlev(2) ahead of lfeon at bit
	// offset 6*8+3+2+2=55 -> byte6's lowest bit (0-indexed byte6 holds acmod top3
	// bits; remaining 5 bits of byte6 are cmixlev(2)+surmixlev(2)+lfeon
	// top bit).
	buf[6] |= (1 << 0) // pack lfeon into the lowest bit available after cmixlev/surmixlev stub
	return buf
}

func TestParserDecodesAC3Frames(t *testing.T) {
	f := buildSyncFrame()
	stream := append(append([]byte{}, f...), f...)

	r := esio.NewMemReader(stream)
	p := &Parser{}
	require.NoError(t, p.Init(r, 0, es.ExternalTiming{}))

	s1, err := p.GetSample()
	require.NoError(t, err)
	require.EqualValues(t, len(f), s1.Size)
	require.EqualValues(t, 0, s1.DTS)

	s2, err := p.GetSample()
	require.NoError(t, err)
	require.EqualValues(t, 1536, s2.DTS)

	_, err = p.GetSample()
	require.True(t, errs.Is(err, errs.KindEndOfStream))

	cfg, err := p.GetCfg()
	require.NoError(t, err)
	require.Len(t, cfg, 3)

	rate, err := p.GetParam(es.ParamBitRate)
	require.NoError(t, err)
	require.EqualValues(t, 32, rate)
}

func TestCopySampleWritesSyncFrame(t *testing.T) {
	f := buildSyncFrame()

	r := esio.NewMemReader(append([]byte{}, f...))
	p := &Parser{}
	require.NoError(t, p.Init(r, 0, es.ExternalTiming{}))

	_, err := p.GetSample()
	require.NoError(t, err)

	out := esio.NewMemWriter()
	require.NoError(t, p.CopySample(out, 0))
	require.NotEmpty(t, out.Bytes())

	err = p.CopySample(out, 1)
	require.True(t, errs.Is(err, errs.KindSyntaxError))
}
