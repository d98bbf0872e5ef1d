// Package aac implements ADTS framing and esds/AudioSpecificConfig
// synthesis for raw AAC elementary streams.
package aac

import (
	"github.com/streamcore/esparser/common/errs"
	"github.com/streamcore/esparser/es"
	"github.com/streamcore/esparser/esio"
)

// samplingFreqTable is the ADTS sampling_frequency_index table
// (ISO/IEC 13818-7 Table 35).
var samplingFreqTable = [16]uint32{
	96000, 88200, 64000, 48000, 44100, 32000,
	24000, 22050, 16000, 12000, 11025, 8000, 7350,
	0, 0, 0,
}

// ADTSHeader is one decoded adts_fixed_header()+adts_variable_header().
type ADTSHeader struct {
	ProfileObjectType   uint8 // MPEG-4 audio object type minus 1 (aac_main=0, aac_lc=1, ...)
	SamplingFreqIndex   uint8
	ChannelConfig       uint8
	FrameLength         int // whole ADTS frame including the 7 (or 9 with CRC) byte header
	ProtectionAbsent    bool
}

// ParseADTSHeader decodes the fixed 7-byte ADTS header from buf[0:7].
func ParseADTSHeader(buf []byte) (ADTSHeader, error) {
	var h ADTSHeader
	if len(buf) < 7 {
		return h, errs.New(errs.KindEndOfStream, "aac: adts header truncated")
	}
	if buf[0] != 0xff || buf[1]&0xf0 != 0xf0 {
		return h, errs.New(errs.KindSyntaxError, "aac: bad adts sync word")
	}
	h.ProtectionAbsent = buf[1]&0x01 != 0
	h.ProfileObjectType = (buf[2] >> 6) & 0x03
	h.SamplingFreqIndex = (buf[2] >> 2) & 0x0f
	h.ChannelConfig = ((buf[2] & 0x01) << 2) | ((buf[3] >> 6) & 0x03)
	frameLen := (int(buf[3]&0x03) << 11) | (int(buf[4]) << 3) | (int(buf[5]) >> 5)
	h.FrameLength = frameLen
	if h.SamplingFreqIndex >= 13 {
		return h, errs.New(errs.KindSyntaxError, "aac: reserved sampling_frequency_index")
	}
	return h, nil
}

// HeaderSize is 7 bytes without a CRC, 9 with.
func (h ADTSHeader) HeaderSize() int {
	if h.ProtectionAbsent {
		return 7
	}
	return 9
}

// BuildAudioSpecificConfig synthesizes the 2-byte MPEG-4
// AudioSpecificConfig carried inside the esds box's decoder-specific-info
// (ISO/IEC 14496-3 §1.6.2.1): audioObjectType(5) + samplingFrequencyIndex(4)
// + channelConfiguration(4), padded to a byte boundary.
func BuildAudioSpecificConfig(h ADTSHeader) []byte {
	audioObjectType := uint16(h.ProfileObjectType) + 1
	v := (audioObjectType&0x1f)<<11 | uint16(h.SamplingFreqIndex&0x0f)<<7 | uint16(h.ChannelConfig&0x0f)<<3
	return []byte{byte(v >> 8), byte(v)}
}

// BuildESDS wraps an AudioSpecificConfig in the minimal MPEG-4
// ES_Descriptor/DecoderConfigDescriptor/DecoderSpecificInfo chain an esds
// box needs (ISO/IEC 14496-1 §7.2.6.5): just enough for a player to
// recover object type, sample rate and channel count.
func BuildESDS(h ADTSHeader) []byte {
	asc := BuildAudioSpecificConfig(h)

	dsi := append([]byte{0x05, byte(len(asc))}, asc...)

	decCfg := append([]byte{
		0x04, byte(13 + len(dsi)),
		0x40,       // objectTypeIndication: MPEG-4 Audio
		0x15,       // streamType(6)=AudioStream, upStream=0, reserved=1
		0, 0, 0,    // bufferSizeDB
		0, 0, 0, 0, // maxBitrate
		0, 0, 0, 0, // avgBitrate
	}, dsi...)

	// ES_ID(2) + flags(1), the DecoderConfigDescriptor, then the 3-byte
	// SLConfigDescriptor.
	esDesc := append([]byte{0x03, byte(3 + len(decCfg) + 3)}, 0, 0, 0)
	esDesc = append(esDesc, decCfg...)
	esDesc = append(esDesc, 0x06, 0x01, 0x02) // SLConfigDescriptor, predefined=MP4

	return esDesc
}

func init() {
	es.Register("aac", func(dsiType es.DSICodec) es.Parser {
		return &Parser{}
	})
}

// Parser implements es.Parser for raw ADTS-framed AAC streams. Each ADTS
// frame is one independently decodable access unit.
type Parser struct {
	r       esio.ByteReader
	esIdx   int
	ext     es.ExternalTiming
	doc     int
	lastHdr *ADTSHeader
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
		return nil, errs.New(errs.KindEndOfStream, "aac: end of stream")
	}
	off, err := p.r.Position()
	if err != nil {
		return nil, err
	}
	head := make([]byte, 7)
	n, _ := p.r.Read(head)
	if n < 7 {
		p.eof = true
		return nil, errs.New(errs.KindEndOfStream, "aac: end of stream")
	}
	hdr, err := ParseADTSHeader(head)
	if err != nil {
		return nil, err
	}
	p.lastHdr = &hdr

	hdrSize := hdr.HeaderSize()
	if hdrSize > 7 {
		crc := make([]byte, hdrSize-7)
		if _, err := p.r.Read(crc); err != nil {
			return nil, err
		}
	}

	remaining := hdr.FrameLength - hdrSize
	if remaining > 0 {
		skip := make([]byte, remaining)
		if _, err := p.r.Read(skip); err != nil {
			return nil, err
		}
	}

	ticks := int64(1024)
	doc := p.doc
	p.doc++

	sample := &es.Sample{
		DTS:   int64(doc) * ticks,
		Flags: es.FlagSync,
		Size:  int64(hdr.FrameLength),
		NALs: []es.NALRef{{
			FileOffset: off,
			Size:       hdr.FrameLength,
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
// position; ADTS frames have no sub-sample structure, so subIdx must be 0.
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

// CopySample writes samplePos's ADTS frame (header and payload, as framed
// on the wire) to w as a length-prefixed blob, matching CopySample's
// contract across every registered codec.
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
				return errs.Wrapf(err, "aac: CopySample seek")
			}
			if _, err := p.r.Read(buf); err != nil {
				return errs.Wrapf(err, "aac: CopySample read")
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
	if p.lastHdr == nil {
		return nil, errs.New(errs.KindNoConfig, "aac: no frame observed yet")
	}
	return BuildESDS(*p.lastHdr), nil
}

func (p *Parser) GetParam(id es.ParamID) (uint32, error) {
	if p.lastHdr == nil {
		return 0, errs.New(errs.KindNoConfig, "aac: no frame observed yet")
	}
	switch id {
	case es.ParamTimeScale:
		return samplingFreqTable[p.lastHdr.SamplingFreqIndex], nil
	default:
		return 0, errs.New(errs.KindNotSupported, "aac: param not available")
	}
}

func (p *Parser) Destroy() {}
