package ac4

import (
	"github.com/rs/zerolog/log"

	"github.com/streamcore/esparser/common/errs"
	"github.com/streamcore/esparser/es"
	"github.com/streamcore/esparser/esio"
)

func init() {
	es.Register("ac4", func(dsiType es.DSICodec) es.Parser {
		return &Parser{}
	})
}

// Parser implements es.Parser for raw AC-4 (ETSI TS 103 190) streams.
// Every raw_frame() is one independently decodable access unit, so there
// is no reorder buffer or AU-boundary heuristic to run — framing alone
// produces the sample sequence.
type Parser struct {
	r       esio.ByteReader
	esIdx   int
	ext     es.ExternalTiming
	doc     int
	lastTOC *TOC
	samples []*es.Sample
	eof     bool
}

func (p *Parser) Init(r esio.ByteReader, esIdx int, timing es.ExternalTiming) error {
	p.r = r
	p.esIdx = esIdx
	p.ext = timing
	return nil
}

// GetSample reads one raw_frame(), decodes its TOC far enough to derive
// timing and DSI state, and returns it as a single-NAL sample.
func (p *Parser) GetSample() (*es.Sample, error) {
	if p.eof {
		return nil, errs.New(errs.KindEndOfStream, "ac4: end of stream")
	}

	off, err := p.r.Position()
	if err != nil {
		return nil, err
	}

	head := make([]byte, 4)
	n, _ := p.r.Read(head)
	if n < 4 {
		p.eof = true
		return nil, errs.New(errs.KindEndOfStream, "ac4: end of stream")
	}

	// frame_size == 0xffff escapes to a 24-bit length in the next 3
	// bytes; read those before the header can be fully parsed.
	full := head
	if head[2] == 0xff && head[3] == 0xff {
		ext := make([]byte, 3)
		if _, err := readFull(p.r, ext); err != nil {
			return nil, err
		}
		full = append(full, ext...)
	}

	total, hasCRC, tocOff, err := ParseFrameHeader(full)
	if err != nil {
		return nil, err
	}

	rest := make([]byte, total-len(full))
	if len(rest) > 0 {
		if _, err := readFull(p.r, rest); err != nil {
			return nil, err
		}
	}
	frame := append(append([]byte{}, full...), rest...)

	tocEnd := len(frame)
	if hasCRC {
		tocEnd -= 2
	}
	toc, err := ParseTOC(frame[tocOff:tocEnd])
	if err != nil {
		if errs.Is(err, errs.KindNotSupported) {
			return nil, err
		}
		log.Debug().Err(err).Msg("ac4: dropping frame with unparsable TOC")
	} else {
		p.lastTOC = toc
	}

	doc := p.doc
	p.doc++

	sample := &es.Sample{
		DTS:   p.dtsFor(doc),
		Flags: es.FlagSync,
		Size:  int64(len(frame)),
		NALs: []es.NALRef{{
			FileOffset: off,
			Size:       len(frame),
		}},
		SampleDependsOn:     2,
		SampleIsDependedOn:  2,
		SampleHasRedundancy: 2,
		PictureType:         es.PictureTypeI,
		FrameType:           es.FrameTypeI,
	}
	sample.CTS = sample.DTS
	p.samples = append(p.samples, sample)
	return sample, nil
}

// dtsFor derives a sample's decode time, in units of its own
// sampling-rate timescale. The external NumUnitsInTick is used whenever
// OverrideFlag is set; otherwise the frame duration comes from the most
// recent TOC's sample rate and frame rate, or is 1024 when no TOC has
// been decoded or its frame_rate_index is reserved.
func (p *Parser) dtsFor(doc int) int64 {
	ticks := int64(1024) // one AC-4 frame at 48kHz covers 1024 samples nominally
	if p.ext.OverrideFlag {
		ticks = int64(p.ext.NumUnitsInTick)
	} else if p.lastTOC != nil && p.lastTOC.FrameRateMilliHz > 0 {
		ticks = int64(p.lastTOC.SampleRate) * 1000 / int64(p.lastTOC.FrameRateMilliHz)
	}
	return int64(doc) * ticks
}

// GetSubSample returns the single NAL of a previously-returned sample by
// position; a raw_frame() has no sub-sample structure, so subIdx must be 0.
func (p *Parser) GetSubSample(samplePos, subIdx int) (es.NALRef, error) {
	if samplePos < 0 || samplePos >= len(p.samples) {
		return es.NALRef{}, errs.New(errs.KindSyntaxError, "sample position out of range")
	}
	s := p.samples[samplePos]
	if subIdx < 0 || subIdx >= len(s.NALs) {
		return es.NALRef{}, errs.New(errs.KindSyntaxError, "sub-sample index out of range")
	}
	return s.NALs[subIdx], nil
}

// CopySample writes samplePos's raw_frame() to w as a length-prefixed
// blob, matching CopySample's contract across every registered codec.
func (p *Parser) CopySample(w esio.ByteWriter, samplePos int) error {
	if samplePos < 0 || samplePos >= len(p.samples) {
		return errs.New(errs.KindSyntaxError, "sample position out of range")
	}
	s := p.samples[samplePos]
	for _, n := range s.NALs {
		body := n.Embedded
		if body == nil {
			buf := make([]byte, n.Size)
			if _, err := p.r.Seek(n.FileOffset, esio.SeekSet); err != nil {
				return errs.Wrapf(err, "ac4: CopySample seek")
			}
			if _, err := p.r.Read(buf); err != nil {
				return errs.Wrapf(err, "ac4: CopySample read")
			}
			body = buf
		}
		if err := w.WriteU32(uint32(len(body))); err != nil {
			return err
		}
		if err := w.WriteBytes(body); err != nil {
			return err
		}
	}
	return nil
}

func (p *Parser) GetCfg() ([]byte, error) {
	if p.lastTOC == nil {
		return nil, errs.New(errs.KindNoConfig, "ac4: no TOC observed yet")
	}
	return BuildDAC4(p.lastTOC, p.ext.AC4Bitrate, p.ext.AC4BitratePrecision), nil
}

func (p *Parser) GetParam(id es.ParamID) (uint32, error) {
	if p.lastTOC == nil {
		return 0, errs.New(errs.KindNoConfig, "ac4: no TOC observed yet")
	}
	switch id {
	case es.ParamTimeScale:
		return p.lastTOC.SampleRate, nil
	case es.ParamAC4Bitrate:
		return p.ext.AC4Bitrate, nil
	case es.ParamAC4BitratePrecision:
		return p.ext.AC4BitratePrecision, nil
	default:
		return 0, errs.New(errs.KindNotSupported, "ac4: param not available")
	}
}

func (p *Parser) Destroy() {}

// readFull repeats Read until buf is filled, since esio.ByteReader (like
// io.Reader) permits short reads on a single call.
func readFull(r esio.ByteReader, buf []byte) (int, error) {
	got := 0
	for got < len(buf) {
		n, err := r.Read(buf[got:])
		got += n
		if err != nil {
			if got == len(buf) {
				return got, nil
			}
			return got, errs.New(errs.KindEndOfStream, "ac4: short read")
		}
		if n == 0 {
			return got, errs.New(errs.KindEndOfStream, "ac4: short read")
		}
	}
	return got, nil
}
