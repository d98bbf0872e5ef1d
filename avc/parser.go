package avc

import (
	"github.com/rs/zerolog/log"

	"github.com/streamcore/esparser/bits"
	"github.com/streamcore/esparser/common/errs"
	"github.com/streamcore/esparser/es"
	"github.com/streamcore/esparser/esio"
	"github.com/streamcore/esparser/nal"
	"github.com/streamcore/esparser/poc"
)

func init() {
	es.Register("avc", func(dsiType es.DSICodec) es.Parser {
		return &Parser{dsiType: dsiType}
	})
}

// auBuilder accumulates the NAL units and derived metadata of one
// in-progress access unit.
type auBuilder struct {
	nals            []es.NALRef
	firstSlice      *SliceHeader
	pictureOrderCnt int32
	redundant       bool
	picTiming       *PicTiming
	newSD           bool
	dsiGeneration   int
}

// Parser implements es.Parser for Annex-B AVC/H.264 elementary streams.
type Parser struct {
	r       esio.ByteReader
	seg     *nal.Segmenter
	esIdx   int
	ext     es.ExternalTiming
	dsiType es.DSICodec

	store  *paramSetStore
	timing *Timing

	pocState *PicOrderCntType0State
	doc      int

	lastSlice *SliceHeader
	prefixBuf []es.NALRef
	cur       *auBuilder

	pendingPicTiming *PicTiming

	// pendingNewSD is set when a parameter-set collision clones a new DSI
	// generation, and carried onto the next access unit to start so its
	// sample picks up FlagNewSampleDescription.
	pendingNewSD bool

	samples []*es.Sample
	eof     bool
}

// Init binds the parser to r.
func (p *Parser) Init(r esio.ByteReader, esIdx int, timing es.ExternalTiming) error {
	p.r = r
	p.seg = nal.NewSegmenter(r)
	p.esIdx = esIdx
	p.ext = timing
	p.store = newParamSetStore(timing.SingleSampleDescription)
	p.pocState = &PicOrderCntType0State{}
	log.Trace().Int("es_idx", esIdx).Msg("avc: parser initialised")
	return nil
}

func (p *Parser) maxPicOrderCntLsb(sps *SPS) uint32 {
	return 1 << (sps.Log2MaxPicOrderCntLsbMinus4 + 4)
}

func (p *Parser) reorderCapacity(sps *SPS) int {
	if sps.VUIParametersPresentFlag && sps.VUI.BitstreamRestrictionFlag {
		return int(sps.VUI.MaxNumReorderFrames) + 1
	}
	return int(sps.MaxNumRefFrames) + 1
}

func (p *Parser) ensureTiming(sps *SPS) {
	if p.timing != nil {
		return
	}
	p.timing = NewTiming(sps, p.ext, p.reorderCapacity(sps))
}

// GetSample returns the next access unit, using a one-NAL look-ahead to
// detect the AU boundary.
func (p *Parser) GetSample() (*es.Sample, error) {
	if p.eof && p.cur == nil {
		return nil, errs.ErrEndOfStream
	}

	for {
		unit, err := p.seg.Fetch()
		if err != nil {
			if errs.Is(err, errs.KindEndOfStream) {
				p.eof = true
				if p.timing != nil {
					p.timing.FlushPictures()
				}
				if p.cur != nil {
					s := p.finishAU()
					return s, nil
				}
				return nil, errs.ErrEndOfStream
			}
			return nil, err
		}
		if len(unit.Body) == 0 {
			continue
		}

		hdr := ParseHeader(unit.Body[0])
		ref := es.NALRef{FileOffset: unit.FileOffset, Size: len(unit.Body), StartCodeSize: unit.StartCodeSize}

		switch {
		case hdr.Type == NaluSPS:
			sps, perr := ParseSPS(unit.Body)
			if perr != nil {
				return nil, perr
			}
			collided, cerr := p.store.PutSPS(sps)
			if cerr != nil {
				return nil, cerr
			}
			p.pendingNewSD = p.pendingNewSD || collided
			p.ensureTiming(sps)
			p.prefixBuf = append(p.prefixBuf, ref)

		case hdr.Type == NaluPPS:
			pps, perr := ParsePPS(unit.Body)
			if perr != nil {
				return nil, perr
			}
			collided, cerr := p.store.PutPPS(pps)
			if cerr != nil {
				return nil, cerr
			}
			p.pendingNewSD = p.pendingNewSD || collided
			p.prefixBuf = append(p.prefixBuf, ref)

		case hdr.Type == NaluSPSExt:
			ext, perr := ParseSPSExt(unit.Body)
			if perr != nil {
				return nil, perr
			}
			collided, cerr := p.store.PutSPSExt(ext)
			if cerr != nil {
				return nil, cerr
			}
			p.pendingNewSD = p.pendingNewSD || collided
			p.prefixBuf = append(p.prefixBuf, ref)

		case hdr.Type == NaluSEI:
			p.capturePicTiming(unit.Body)
			p.prefixBuf = append(p.prefixBuf, p.rewriteSEI(unit.Body, ref))

		case hdr.Type == NaluAUD || hdr.Type == NaluFillerData:
			if p.ext.KeepAllNALUs {
				p.prefixBuf = append(p.prefixBuf, ref)
			}

		case hdr.Type == NaluEndOfSeq || hdr.Type == NaluEndOfStream:
			p.prefixBuf = append(p.prefixBuf, ref)
			if p.timing != nil {
				p.timing.FlushPictures()
			}
			if p.cur != nil {
				return p.finishAU(), nil
			}

		case IsVCL(hdr.Type):
			sample, isNewAU, serr := p.consumeVCL(unit, hdr, ref)
			if serr != nil {
				if errs.Is(serr, errs.KindNoConfig) {
					log.Debug().Msg("avc: VCL NAL before SPS/PPS, dropping")
					continue
				}
				return nil, serr
			}
			if isNewAU && sample != nil {
				return sample, nil
			}

		default:
			// Unrecognised NAL type: pass through unexamined.
			p.prefixBuf = append(p.prefixBuf, ref)
		}
	}
}

// consumeVCL parses one VCL NAL's slice header, decides whether it
// starts a new access unit, and returns the finished previous sample
// when it does.
func (p *Parser) consumeVCL(unit *nal.Unit, hdr Header, ref es.NALRef) (*es.Sample, bool, error) {
	ppsID, err := peekPPSID(unit.Body)
	if err != nil {
		return nil, false, err
	}
	pps, ok := p.store.PPS(ppsID)
	if !ok {
		return nil, false, errs.New(errs.KindNoConfig, "VCL NAL references unknown PPS")
	}
	sps, ok := p.store.SPS(pps.SPSID)
	if !ok {
		return nil, false, errs.New(errs.KindNoConfig, "VCL NAL references unknown SPS")
	}
	p.ensureTiming(sps)

	sh, err := ParseSliceHeader(unit.Body, hdr, sps, pps)
	if err != nil {
		return nil, false, err
	}

	newAU := IsNewAccessUnit(p.lastSlice, sh)
	p.lastSlice = sh

	var finished *es.Sample
	if newAU {
		if p.cur != nil {
			finished = p.finishAU()
		}
		p.cur = &auBuilder{firstSlice: sh}
		p.cur.nals = append(p.cur.nals, p.prefixBuf...)
		p.prefixBuf = nil
		p.cur.picTiming = p.pendingPicTiming
		p.pendingPicTiming = nil
		p.cur.newSD = p.pendingNewSD
		p.pendingNewSD = false
		p.cur.dsiGeneration = p.store.Generation()

		if sps.PicOrderCntType == 0 {
			p.cur.pictureOrderCnt = p.pocState.Derive(sh, p.maxPicOrderCntLsb(sps))
		}
	}
	p.cur.nals = append(p.cur.nals, ref)
	if sh.RedundantPicCnt > 0 {
		p.cur.redundant = true
	}

	return finished, newAU, nil
}

// peekPPSID reads just enough of slice_header() to recover
// pic_parameter_set_id, which is needed before the rest of the header
// can be parsed (it selects the SPS/PPS the remaining fields depend on).
func peekPPSID(nalBody []byte) (uint32, error) {
	rbsp := bits.RemoveEmulationPrevention(nalBody)
	if len(rbsp) < 2 {
		return 0, errs.New(errs.KindSyntaxError, "slice NAL too short")
	}
	r := bits.NewReader(rbsp[1:])
	r.ReadUE() // first_mb_in_slice
	r.ReadUE() // slice_type
	return r.ReadUE(), nil
}

// capturePicTiming decodes a pic_timing SEI message ahead of its AU's
// first VCL NAL, when HRD-based timing is active for the current SPS.
// The AVC bitstream always places pic_timing SEIs before the slice data
// of the picture they describe, so the result is stashed until
// consumeVCL starts the next access unit.
func (p *Parser) capturePicTiming(body []byte) {
	if p.timing == nil || p.timing.Mode() != TimingHRD {
		return
	}
	msgs, err := ParseSEI(body)
	if err != nil {
		return
	}
	for _, m := range msgs {
		if m.PayloadType == SEIPicTiming {
			pt := ParsePicTimingSEI(m.Payload, p.timing.HRDParams())
			p.pendingPicTiming = &pt
			return
		}
	}
}

func (p *Parser) rewriteSEI(body []byte, ref es.NALRef) es.NALRef {
	if p.ext.KeepAllNALUs {
		return ref
	}
	keep := func(payloadType int) bool {
		return !(payloadType == SEIPicTiming && p.ext.OverrideFlag)
	}
	rewritten, err := FilterSEI(body, keep)
	if err != nil {
		log.Debug().Err(err).Msg("avc: SEI rewrite failed, passing through")
		return ref
	}
	if len(rewritten) == len(body) {
		return ref
	}
	return es.NALRef{Embedded: rewritten, Size: len(rewritten), StartCodeSize: 4}
}

func (p *Parser) finishAU() *es.Sample {
	b := p.cur
	p.cur = nil
	doc := p.doc
	p.doc++

	if p.timing != nil {
		p.timing.AddPicture(doc, b.pictureOrderCnt, b.firstSlice.IsIDR)
	}

	var size int64
	for _, n := range b.nals {
		size += int64(n.Size)
	}

	flags := es.Flags(0)
	if b.firstSlice.IsIDR {
		flags |= es.FlagSync
	}
	if b.newSD {
		flags |= es.FlagNewSampleDescription
	}

	pictureType := es.PictureTypeOther
	switch {
	case b.firstSlice.IsIDR:
		pictureType = es.PictureTypeIDRNoLeading
	case b.firstSlice.SliceType == SliceI:
		pictureType = es.PictureTypeI
	}

	frameType := es.FrameTypeOther
	switch b.firstSlice.SliceType {
	case SliceI, SliceSI:
		frameType = es.FrameTypeI
	case SliceP, SliceSP:
		frameType = es.FrameTypeP
	case SliceB:
		frameType = es.FrameTypeB
	}

	sampleDependsOn := 1
	if b.firstSlice.IsIDR {
		sampleDependsOn = 2
	}
	sampleIsDependedOn := 1
	if b.firstSlice.NalRefIdc == 0 {
		sampleIsDependedOn = 2
	}
	sampleHasRedundancy := 2
	if b.redundant {
		sampleHasRedundancy = 1
	}

	s := &es.Sample{
		DTS:                 p.timing.DTS(doc),
		Size:                size,
		Flags:               flags,
		NALs:                b.nals,
		SampleDependsOn:     sampleDependsOn,
		SampleIsDependedOn:  sampleIsDependedOn,
		SampleHasRedundancy: sampleHasRedundancy,
		PictureType:         pictureType,
		FrameType:           frameType,
		DSIGeneration:       b.dsiGeneration,
	}
	switch {
	case p.timing.Mode() == TimingHRD && b.picTiming != nil:
		s.CTS = p.timing.CTSFromHRD(doc, *b.picTiming)
	case p.timing.CTSFromPOC(doc) != int64(poc.NotReady):
		s.CTS = p.timing.CTSFromPOC(doc)
	default:
		s.CTS = s.DTS
	}

	p.samples = append(p.samples, s)
	if len(p.samples) > 1 {
		prev := p.samples[len(p.samples)-2]
		prev.Duration = s.DTS - prev.DTS
	}
	return s
}

// GetSubSample returns one constituent NAL of a previously-returned
// sample by position.
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

// CopySample writes every NAL of samplePos to w as a length-prefixed
// sequence (4-byte lengths, matching the avcC lengthSizeMinusOne this
// core always emits).
func (p *Parser) CopySample(w esio.ByteWriter, samplePos int) error {
	if samplePos < 0 || samplePos >= len(p.samples) {
		return errs.New(errs.KindSyntaxError, "sample position out of range")
	}
	s := p.samples[samplePos]
	for _, n := range s.NALs {
		var body []byte
		if n.Embedded != nil {
			body = n.Embedded
		} else {
			buf := make([]byte, n.Size)
			if _, err := p.r.Seek(n.FileOffset+int64(n.StartCodeSize), esio.SeekSet); err != nil {
				return errs.Wrapf(err, "avc: CopySample seek")
			}
			if _, err := p.r.Read(buf); err != nil {
				return errs.Wrapf(err, "avc: CopySample read")
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

// GetCfg returns the current avcC record.
func (p *Parser) GetCfg() ([]byte, error) {
	return p.store.BuildAVCC(3)
}

// GetCfgForSample returns the avcC record that was active when the
// access unit of samplePos began, recovered from the DSI list even if a
// later parameter-set collision has since moved the live generation on.
func (p *Parser) GetCfgForSample(samplePos int) ([]byte, error) {
	if samplePos < 0 || samplePos >= len(p.samples) {
		return nil, errs.New(errs.KindSyntaxError, "sample position out of range")
	}
	return p.store.BuildAVCCForGeneration(p.samples[samplePos].DSIGeneration, 3)
}

// GetParam answers an opaque parameter query against the stored SPS with
// the highest seq_parameter_set_id.
func (p *Parser) GetParam(id es.ParamID) (uint32, error) {
	spsList := p.store.ActiveSPSSorted()
	if len(spsList) == 0 {
		return 0, errs.New(errs.KindNoConfig, "no active SPS")
	}
	sps := spsList[len(spsList)-1]

	switch id {
	case es.ParamTimeScale:
		if p.timing != nil {
			return p.timing.TimeScale(), nil
		}
		return sps.VUI.TimeScale, nil
	case es.ParamNumUnitsInTick:
		return sps.VUI.NumUnitsInTick, nil
	case es.ParamProfile:
		return uint32(sps.ProfileIDC), nil
	case es.ParamLevel:
		return uint32(sps.LevelIDC), nil
	case es.ParamWidth:
		return sps.Width, nil
	case es.ParamHeight:
		return sps.Height, nil
	case es.ParamChromaFormat:
		return uint32(sps.ChromaFormatIDC), nil
	case es.ParamBitDepthLuma:
		return uint32(sps.BitDepthLumaMinus8) + 8, nil
	case es.ParamBitDepthChroma:
		return uint32(sps.BitDepthChromaMinus8) + 8, nil
	case es.ParamSARWidth:
		return uint32(sps.VUI.SARWidth), nil
	case es.ParamSARHeight:
		return uint32(sps.VUI.SARHeight), nil
	case es.ParamCPBSize:
		if p.timing == nil || p.timing.Mode() != TimingHRD {
			return 0, errs.New(errs.KindNotSupported, "avc: no HRD cpb size signalled")
		}
		hrd := p.timing.HRDParams()
		if len(hrd.CPBSizeValueMinus1) == 0 {
			return 0, errs.New(errs.KindNotSupported, "avc: no HRD cpb size signalled")
		}
		// CpbSize = (cpb_size_value_minus1[0]+1) << (cpb_size_scale+4) bits.
		return (hrd.CPBSizeValueMinus1[0] + 1) << (hrd.CPBSizeScale + 4), nil
	case es.ParamMinCTS:
		if p.timing == nil {
			return 0, errs.New(errs.KindNoConfig, "avc: no active timing yet")
		}
		cts, ok := p.timing.MinCTS()
		if !ok {
			return 0, errs.New(errs.KindNoConfig, "avc: reorder buffer has not resolved any AU yet")
		}
		return uint32(cts), nil
	default:
		return 0, errs.New(errs.KindNotSupported, "param not available for avc")
	}
}

// Destroy releases parser-owned resources. The AVC parser holds none
// beyond Go-GC'd memory; present to satisfy es.Parser.
func (p *Parser) Destroy() {}
