// Package ec3 implements syncframe framing and dec3 synthesis for raw
// Enhanced AC-3 (Dolby Digital Plus, ETSI TS 102 366 Annex E) elementary
// streams.
package ec3

import (
	"github.com/streamcore/esparser/bits"
	"github.com/streamcore/esparser/common/errs"
	"github.com/streamcore/esparser/es"
	"github.com/streamcore/esparser/esio"
)

// StreamType is bsi.strmtyp (Annex E Table E2.1).
type StreamType uint8

const (
	StreamTypeIndependent StreamType = iota
	StreamTypeDependent
	StreamTypeACMOD2Reserved // reserved value that still frames correctly
)

// SyncInfo is bsi()'s leading fields needed for framing and dec3.
type SyncInfo struct {
	StrmType   StreamType
	SubstreamID uint8
	FrameSizeWords int // total syncframe length in 16-bit words
	FscodIdx   uint8 // 3 == use fscod2 (reduced sample rate)
	Fscod2Idx  uint8
	NumBlkCod  uint8
	AcMod      uint8
	LFEOn      bool
	BSID       uint8
}

var sampleRateTable = [3]uint32{48000, 44100, 32000}
var reducedSampleRateTable = [3]uint32{24000, 22050, 16000}
var numBlocksTable = [4]int{1, 2, 3, 6}

// ParseSyncInfo decodes the EC-3 bsi() fields framing and dec3 need. buf
// must hold at least the first 8 bytes of the syncframe.
func ParseSyncInfo(buf []byte) (SyncInfo, error) {
	var s SyncInfo
	if len(buf) < 8 {
		return s, errs.New(errs.KindEndOfStream, "ec3: syncframe header truncated")
	}
	if buf[0] != 0x0b || buf[1] != 0x77 {
		return s, errs.New(errs.KindSyntaxError, "ec3: bad sync word")
	}

	s.StrmType = StreamType((buf[2] >> 6) & 0x03)
	s.SubstreamID = (buf[2] >> 3) & 0x07
	frameSizeWords := (int(buf[2]&0x07)<<8 | int(buf[3])) + 1
	s.FrameSizeWords = frameSizeWords

	s.FscodIdx = (buf[4] >> 6) & 0x03
	if s.FscodIdx == 3 {
		s.Fscod2Idx = (buf[4] >> 4) & 0x03
		if s.Fscod2Idx == 3 {
			return s, errs.New(errs.KindSyntaxError, "ec3: reserved fscod2")
		}
		s.NumBlkCod = 3 // fscod==3 always codes 6 blocks per syncframe
	} else {
		s.NumBlkCod = (buf[4] >> 4) & 0x03
	}
	s.AcMod = (buf[4] >> 1) & 0x07
	s.LFEOn = buf[4]&0x01 != 0
	s.BSID = (buf[5] >> 3) & 0x1f

	return s, nil
}

// SampleRate resolves the syncframe's audio sample rate, honoring the
// reduced-sample-rate fscod2 path.
func (s SyncInfo) SampleRate() uint32 {
	if s.FscodIdx == 3 {
		return reducedSampleRateTable[s.Fscod2Idx]
	}
	return sampleRateTable[s.FscodIdx]
}

// NumBlocks is the number of 256-sample audio blocks carried in this
// syncframe (Annex E Table E2.6).
func (s SyncInfo) NumBlocks() int {
	if s.FscodIdx == 3 {
		return 6
	}
	return numBlocksTable[s.NumBlkCod]
}

// Substream accumulates the independent/dependent substream fields a
// dec3 box needs, one per elementary substream observed in the TOC chain
// leading up to the next independent substream.
type Substream struct {
	Fscod    uint8
	BSID     uint8
	BSMod    uint8
	AcMod    uint8
	LFEOn    bool
	NumDepSub uint8
	ChanLoc  uint16 // chan_loc of the dependent substreams folded into this one
}

// BuildDEC3 serializes an EC3SpecificBox (dec3, ETSI TS 102 366 Annex F.6):
// a 13-bit data_rate/num_ind_sub header followed by one descriptor per
// independent substream. Dependent-substream association (chan_loc
// folding) is supplied by the caller, since it spans multiple syncframes
// the per-frame SyncInfo above does not track.
func BuildDEC3(dataRateKbps uint16, subs []Substream) []byte {
	buf := make([]byte, 2, 2+3*len(subs))
	v := uint16(dataRateKbps&0x1fff) << 3
	v |= uint16(len(subs)-1) & 0x07
	bits.PutU16BE(buf[0:2], v)

	for _, sub := range subs {
		b := make([]byte, 3)
		b[0] = (sub.Fscod&0x03)<<6 | (sub.BSID&0x1f)<<1
		acmodByte := uint16(sub.BSMod&0x07)<<13 | uint16(sub.AcMod&0x07)<<10
		if sub.LFEOn {
			acmodByte |= 1 << 9
		}
		acmodByte |= uint16(0) << 5 // num_dep_sub high bits placeholder, filled below
		acmodByte |= uint16(sub.NumDepSub&0x0f) << 5
		if sub.NumDepSub > 0 {
			acmodByte |= 1 << 4 // chan_loc presence implied by num_dep_sub > 0
		}
		bits.PutU16BE(b[1:3], acmodByte)
		if sub.NumDepSub > 0 {
			var loc [2]byte
			bits.PutU16BE(loc[:], sub.ChanLoc)
			b = append(b, loc[:]...)
		}
		buf = append(buf, b...)
	}
	return buf
}

func init() {
	es.Register("ec3", func(dsiType es.DSICodec) es.Parser {
		return &Parser{}
	})
}

// Parser implements es.Parser for raw EC-3 syncframe streams. Dependent
// substreams that follow an independent substream are folded into the
// same access unit, matching how a decoder consumes one EC-3 "AU" as the
// independent substream plus every dependent substream addressed to it
// before the next independent substream begins.
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
		return nil, errs.New(errs.KindEndOfStream, "ec3: end of stream")
	}

	var nals []es.NALRef
	var first SyncInfo
	haveFirst := false
	totalBytes := int64(0)

	for {
		head := make([]byte, 8)
		n, _ := p.r.Read(head)
		if n < 8 {
			if !haveFirst {
				p.eof = true
				return nil, errs.New(errs.KindEndOfStream, "ec3: end of stream")
			}
			// Trailing partial read after at least one syncframe: emit
			// what was accumulated and surface EOF on the next call.
			p.eof = true
			break
		}
		si, err := ParseSyncInfo(head)
		if err != nil {
			return nil, err
		}
		if !haveFirst {
			first = si
			haveFirst = true
		} else if si.StrmType == StreamTypeIndependent {
			// Next AU begins; rewind so the next GetSample call re-reads
			// this syncframe's header.
			if _, err := p.r.Seek(-8, esio.SeekCur); err != nil {
				return nil, err
			}
			break
		}

		frameBytes := si.FrameSizeWords * 2
		nalOff, _ := p.r.Position()
		nalOff -= 8
		remaining := frameBytes - 8
		if remaining > 0 {
			skip := make([]byte, remaining)
			if _, err := p.r.Read(skip); err != nil {
				return nil, err
			}
		}
		nals = append(nals, es.NALRef{FileOffset: nalOff, Size: frameBytes})
		totalBytes += int64(frameBytes)
		p.lastSI = &si
	}

	doc := p.doc
	p.doc++
	sample := &es.Sample{
		DTS:                 int64(doc) * int64(first.NumBlocks()*256),
		Flags:               es.FlagSync,
		Size:                totalBytes,
		NALs:                nals,
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

// GetSubSample returns one constituent syncframe (independent substream,
// or one of the dependent substreams folded into it) of a
// previously-returned sample by position. Unlike AVC/AAC/AC-3, an EC-3
// sample can legitimately hold more than one NAL, since a decoder-facing
// access unit is the independent substream plus every dependent
// substream addressed to it.
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

// CopySample writes every substream syncframe of samplePos to w as a
// length-prefixed sequence, independent substream first followed by its
// folded dependent substreams in bitstream order.
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
				return errs.Wrapf(err, "ec3: CopySample seek")
			}
			if _, err := p.r.Read(buf); err != nil {
				return errs.Wrapf(err, "ec3: CopySample read")
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
		return nil, errs.New(errs.KindNoConfig, "ec3: no frame observed yet")
	}
	sub := Substream{
		Fscod: p.lastSI.FscodIdx,
		BSID:  p.lastSI.BSID,
		AcMod: p.lastSI.AcMod,
		LFEOn: p.lastSI.LFEOn,
	}
	// data_rate is nominally derived from average syncframe size over a
	// window of frames, which a single-frame view cannot supply; emit 0
	// (unknown/VBR) rather than guess from one frame's size.
	return BuildDEC3(0, []Substream{sub}), nil
}

func (p *Parser) GetParam(id es.ParamID) (uint32, error) {
	if p.lastSI == nil {
		return 0, errs.New(errs.KindNoConfig, "ec3: no frame observed yet")
	}
	switch id {
	case es.ParamTimeScale:
		return p.lastSI.SampleRate(), nil
	default:
		return 0, errs.New(errs.KindNotSupported, "ec3: param not available")
	}
}

func (p *Parser) Destroy() {}
