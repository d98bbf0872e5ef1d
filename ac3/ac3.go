// Package ac3 implements syncframe framing and dac3 synthesis for raw
// AC-3 (Dolby Digital, ATSC A/52) elementary streams.
package ac3

import (
	"github.com/streamcore/esparser/common/errs"
	"github.com/streamcore/esparser/es"
	"github.com/streamcore/esparser/esio"
)

// frameSizeTable is ATSC A/52 Table 5.18, indexed [frmsizecod][fscod];
// only frmsizecod 0..18 are covered.
// Values are the 16-bit-word frame size at 48/44.1/32 kHz; the odd
// frmsizecod adds one extra word for the 44.1kHz column only.
var frameSizeTable = [19][3]int{
	{64, 69, 96}, {64, 70, 96}, {80, 87, 120}, {80, 88, 120},
	{96, 104, 144}, {96, 105, 144}, {112, 121, 168}, {112, 122, 168},
	{128, 139, 192}, {128, 140, 192}, {160, 174, 240}, {160, 175, 240},
	{192, 208, 288}, {192, 209, 288}, {224, 243, 336}, {224, 244, 336},
	{256, 278, 384}, {256, 279, 384}, {320, 348, 480},
}

var bitRateTable = [19]uint32{
	32, 32, 40, 40, 48, 48, 56, 56, 64, 64, 80, 80, 96, 96, 112, 112, 128, 128, 160,
}

// SyncInfo is bsi()'s leading fields needed for framing + dac3.
type SyncInfo struct {
	FscodIdx    uint8
	FrmSizeCod  uint8
	BSID        uint8
	BSMod       uint8
	AcMod       uint8
	LFEOn       bool
	FrameSizeWords int
}

var sampleRateTable = [3]uint32{48000, 44100, 32000}

// BitRateKbps looks up the nominal bit rate of the syncframe from
// frmsizecod (ATSC A/52 Table 5.18).
func (s SyncInfo) BitRateKbps() uint32 { return bitRateTable[s.FrmSizeCod] }

// ParseSyncInfo decodes syncinfo()+bsi() far enough for framing and dac3:
// buf must hold at least the first 8 bytes of the syncframe.
func ParseSyncInfo(buf []byte) (SyncInfo, error) {
	var s SyncInfo
	if len(buf) < 8 {
		return s, errs.New(errs.KindEndOfStream, "ac3: syncframe header truncated")
	}
	if buf[0] != 0x0b || buf[1] != 0x77 {
		return s, errs.New(errs.KindSyntaxError, "ac3: bad sync word")
	}
	s.FscodIdx = (buf[4] >> 6) & 0x03
	if s.FscodIdx == 3 {
		return s, errs.New(errs.KindSyntaxError, "ac3: reserved fscod")
	}
	s.FrmSizeCod = buf[4] & 0x3f
	if int(s.FrmSizeCod) >= len(frameSizeTable) {
		return s, errs.New(errs.KindSyntaxError, "ac3: reserved frmsizecod")
	}
	s.FrameSizeWords = frameSizeTable[s.FrmSizeCod][s.FscodIdx]

	s.BSID = (buf[5] >> 3) & 0x1f
	s.BSMod = buf[5] & 0x07
	s.AcMod = (buf[6] >> 5) & 0x07

	// Skip cmixlev/surmixlev when present, then dsurmod if 2/0 stereo
	// (acmod==2), to reach lfeon. LFE presence is all dac3 needs from this
	// region, so nothing else of bsi() is decoded; at most 4 bits sit
	// between acmod and lfeon (ATSC A/52 §5.3.2).
	bitOff := 6*8 + 3 // byte6 bit3 is first bit after acmod
	switch s.AcMod {
	case 0: // 1+1 (dual mono): lfeon follows acmod directly
		bitOff += 0
	case 1: // 1/0
		bitOff += 0
	default:
		if s.AcMod&0x01 != 0 && s.AcMod != 1 { // 3 front channels
			bitOff += 2 // cmixlev
		}
		if s.AcMod&0x04 != 0 { // surround channel present
			bitOff += 2 // surmixlev
		}
		if s.AcMod == 2 {
			bitOff += 2 // dsurmod
		}
	}
	bytePos := bitOff / 8
	bitInByte := bitOff % 8
	if bytePos >= len(buf) {
		s.LFEOn = false
	} else {
		s.LFEOn = (buf[bytePos]>>(7-bitInByte))&1 != 0
	}
	return s, nil
}

// BuildDAC3 serializes an AC3SpecificBox (dac3, ETSI TS 102 366 Annex F):
// a 24-bit word of fscod(2) bsid(5) bsmod(3) acmod(3) lfeon(1)
// bit_rate_code(5) reserved(5).
func BuildDAC3(s SyncInfo) []byte {
	v := uint32(s.FscodIdx) << 22
	v |= uint32(s.BSID) << 17
	v |= uint32(s.BSMod) << 14
	v |= uint32(s.AcMod) << 11
	if s.LFEOn {
		v |= 1 << 10
	}
	v |= uint32(s.FrmSizeCod>>1) << 5 // bit_rate_code
	return []byte{byte(v >> 16), byte(v >> 8), byte(v)}
}

func init() {
	es.Register("ac3", func(dsiType es.DSICodec) es.Parser {
		return &Parser{}
	})
}

// Parser implements es.Parser for raw AC-3 syncframe streams.
type Parser struct {
	r       esio.ByteReader
	esIdx   int
	ext     es.ExternalTiming
	doc     int
	lastSI  *SyncInfo
	samples []*es.Sample
	eof     bool
}

func (p *Parser) Init(r esio.ByteReader, esIdx int, timing es.ExternalTiming) error {
	p.r = r
	p.esIdx = esIdx
	p.ext = timing
	return nil
}

func (p *Parser) GetSample() (*es.Sample, error) {
	if p.eof {
		return nil, errs.New(errs.KindEndOfStream, "ac3: end of stream")
	}
	off, err := p.r.Position()
	if err != nil {
		return nil, err
	}
	head := make([]byte, 8)
	n, _ := p.r.Read(head)
	if n < 8 {
		p.eof = true
		return nil, errs.New(errs.KindEndOfStream, "ac3: end of stream")
	}
	si, err := ParseSyncInfo(head)
	if err != nil {
		return nil, err
	}
	p.lastSI = &si

	frameBytes := si.FrameSizeWords * 2
	remaining := frameBytes - 8
	if remaining > 0 {
		skip := make([]byte, remaining)
		if _, err := p.r.Read(skip); err != nil {
			return nil, err
		}
	}

	doc := p.doc
	p.doc++
	sample := &es.Sample{
		DTS:   int64(doc) * 1536, // AC-3 syncframe is always 1536 samples
		Flags: es.FlagSync,
		Size:  int64(frameBytes),
		NALs: []es.NALRef{{
			FileOffset: off,
			Size:       frameBytes,
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

// GetSubSample returns the single NAL of a previously-returned sample by
// position; an AC-3 syncframe has no sub-sample structure, so subIdx must
// be 0.
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

// CopySample writes samplePos's syncframe to w as a length-prefixed blob,
// matching CopySample's contract across every registered codec.
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
				return errs.Wrapf(err, "ac3: CopySample seek")
			}
			if _, err := p.r.Read(buf); err != nil {
				return errs.Wrapf(err, "ac3: CopySample read")
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
	if p.lastSI == nil {
		return nil, errs.New(errs.KindNoConfig, "ac3: no frame observed yet")
	}
	return BuildDAC3(*p.lastSI), nil
}

func (p *Parser) GetParam(id es.ParamID) (uint32, error) {
	if p.lastSI == nil {
		return 0, errs.New(errs.KindNoConfig, "ac3: no frame observed yet")
	}
	switch id {
	case es.ParamTimeScale:
		return sampleRateTable[p.lastSI.FscodIdx], nil
	case es.ParamBitRate:
		return p.lastSI.BitRateKbps(), nil
	default:
		return 0, errs.New(errs.KindNotSupported, "ac3: param not available")
	}
}

func (p *Parser) Destroy() {}
