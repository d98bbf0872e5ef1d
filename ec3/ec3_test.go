package ec3

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/streamcore/esparser/common/errs"
	"github.com/streamcore/esparser/es"
	"github.com/streamcore/esparser/esio"
)

func buildIndependentFrame(words int) []byte {
	buf := make([]byte, words*2)
	buf[0] = 0x0b
	buf[1] = 0x77
	buf[2] = byte((0 << 6) | (0 << 3) | ((words - 1) >> 8)) // strmtyp=0, substreamid=0
	buf[3] = byte((words - 1) & 0xff)
	buf[4] = (0 << 6) | (1 << 4) | (7 << 1) | 1 // fscod=0(48k), numblkcod=1, acmod=7, lfeon=1
	buf[5] = (16 << 3)                          // bsid=16
	return buf
}

func buildDependentFrame(words int) []byte {
	buf := make([]byte, words*2)
	buf[0] = 0x0b
	buf[1] = 0x77
	buf[2] = byte((1 << 6) | (0 << 3) | ((words - 1) >> 8)) // strmtyp=1 (dependent), substreamid=0
	buf[3] = byte((words - 1) & 0xff)
	buf[4] = (0 << 6) | (1 << 4) | (7 << 1) | 1
	buf[5] = (16 << 3)
	return buf
}

func TestCopySampleWritesEveryFoldedSubstream(t *testing.T) {
	ind := buildIndependentFrame(10)
	dep := buildDependentFrame(8)
	nextInd := buildIndependentFrame(10)
	stream := append(append(append([]byte{}, ind...), dep...), nextInd...)

	r := esio.NewMemReader(stream)
	p := &Parser{}
	require.NoError(t, p.Init(r, 1, es.ExternalTiming{}))

	s1, err := p.GetSample()
	require.NoError(t, err)
	require.Len(t, s1.NALs, 2, "independent substream folds its trailing dependent substream")

	out := esio.NewMemWriter()
	require.NoError(t, p.CopySample(out, 0))
	require.NotEmpty(t, out.Bytes())

	dep0, err := p.GetSubSample(0, 0)
	require.NoError(t, err)
	require.EqualValues(t, len(ind), dep0.Size)

	dep1, err := p.GetSubSample(0, 1)
	require.NoError(t, err)
	require.EqualValues(t, len(dep), dep1.Size)
}

func TestParserSplitsIndependentSubstreamsIntoSeparateSamples(t *testing.T) {
	f1 := buildIndependentFrame(10)
	f2 := buildIndependentFrame(10)
	stream := append(append([]byte{}, f1...), f2...)

	r := esio.NewMemReader(stream)
	p := &Parser{}
	require.NoError(t, p.Init(r, 1, es.ExternalTiming{}))

	s1, err := p.GetSample()
	require.NoError(t, err)
	require.Len(t, s1.NALs, 1)
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
