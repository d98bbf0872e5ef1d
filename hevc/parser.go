package hevc

import (
	"github.com/rs/zerolog/log"

	"github.com/streamcore/esparser/bits"
	"github.com/streamcore/esparser/common/errs"
	"github.com/streamcore/esparser/es"
	"github.com/streamcore/esparser/esio"
	"github.com/streamcore/esparser/nal"
	"github.com/streamcore/esparser/poc"
)

// peekSlicePPSID reads just enough of slice_segment_header() to recover
// slice_pic_parameter_set_id, which is needed before the rest of the
// header (which depends on the referenced PPS/SPS) can be parsed.
func peekSlicePPSID(nalBody []byte, nalType uint8) (uint32, error) {
	rbsp := bits.RemoveEmulationPrevention(nalBody)
	if len(rbsp) < 3 {
		return 0, errs.New(errs.KindSyntaxError, "slice NAL too short")
	}
	r := bits.NewReader(rbsp[2:])
	r.ReadFlag() // first_slice_segment_in_pic_flag
	if IsIRAP(nalType) {
		r.ReadFlag() // no_output_of_prior_pics_flag
	}
	return r.ReadUE(), nil
}

func init() {
	es.Register("hevc", func(dsiType es.DSICodec) es.Parser {
		return &Parser{dsiType: dsiType}
	})
}

type auBuilder struct {
	nals            []es.NALRef
	firstSlice      *SliceHeader
	nalType         uint8
	pictureOrderCnt int32
	dovi            DoViNALs
	newSD           bool
	dsiGeneration   int
}

// Parser implements es.Parser for Annex-B HEVC/H.265 elementary streams.
type Parser struct {
	r       esio.ByteReader
	seg     *nal.Segmenter
	esIdx   int
	ext     es.ExternalTiming
	dsiType es.DSICodec

	store  *paramSetStore
	timing *Timing

	pocState *POCState
	doc      int

	cur           *auBuilder
	pendingPrefix []es.NALRef

	// pendingNewSD is set when a parameter-set collision clones a new DSI
	// generation, and carried onto the next access unit to start so its
	// sample picks up FlagNewSampleDescription.
	pendingNewSD bool

	samples []*es.Sample
	eof     bool

	doviSeen  DoViNALs
	blPresent bool
}

func (p *Parser) Init(r esio.ByteReader, esIdx int, timing es.ExternalTiming) error {
	p.r = r
	p.seg = nal.NewSegmenter(r)
	p.esIdx = esIdx
	p.ext = timing
	p.store = newParamSetStore(timing.SingleSampleDescription)
	p.pocState = &POCState{}
	log.Trace().Int("es_idx", esIdx).Msg("hevc: parser initialised")
	return nil
}

func (p *Parser) reorderCapacity(sps *SPS) int {
	return int(sps.MaxDecPicBufferingMinus1) + 1
}

func (p *Parser) ensureTiming(sps *SPS) {
	if p.timing != nil {
		return
	}
	p.timing = NewTiming(sps, p.ext.NumUnitsInTick, p.ext.TimeScale, p.ext.OverrideFlag, p.reorderCapacity(sps))
}

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
					return p.finishAU(), nil
				}
				return nil, errs.ErrEndOfStream
			}
			return nil, err
		}
		if len(unit.Body) < 2 {
			continue
		}

		hdr := ParseHeader(unit.Body[0], unit.Body[1])
		ref := es.NALRef{FileOffset: unit.FileOffset, Size: len(unit.Body), StartCodeSize: unit.StartCodeSize}

		switch {
		case hdr.Type == NaluVPS:
			v, perr := ParseVPS(unit.Body)
			if perr != nil {
				return nil, perr
			}
			collided, cerr := p.store.PutVPS(v)
			if cerr != nil {
				return nil, cerr
			}
			p.pendingNewSD = p.pendingNewSD || collided
			p.appendPrefix(ref)

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
			p.appendPrefix(ref)

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
			p.appendPrefix(ref)

		case hdr.Type == NaluRPU || hdr.Type == NaluDVEL:
			if p.cur == nil {
				p.startAU(nil, hdr.Type)
			}
			p.cur.dovi.Observe(hdr.Type)
			p.cur.nals = append(p.cur.nals, ref)

		case hdr.Type == NaluAUD || hdr.Type == NaluFillerData:
			if p.ext.KeepAllNALUs {
				p.appendPrefix(ref)
			}

		case hdr.Type == NaluEOS || hdr.Type == NaluEOB:
			p.appendPrefix(ref)
			if p.timing != nil {
				p.timing.FlushPictures()
			}
			if p.cur != nil {
				return p.finishAU(), nil
			}

		case IsVCL(hdr.Type):
			p.blPresent = true
			sample, started, serr := p.consumeVCL(unit, hdr, ref)
			if serr != nil {
				if errs.Is(serr, errs.KindNoConfig) {
					log.Debug().Msg("hevc: VCL NAL before SPS/PPS, dropping")
					continue
				}
				return nil, serr
			}
			if started && sample != nil {
				return sample, nil
			}

		default:
			p.appendPrefix(ref)
		}
	}
}

func (p *Parser) appendPrefix(ref es.NALRef) {
	if p.cur == nil {
		p.pendingPrefix = append(p.pendingPrefix, ref)
		return
	}
	p.cur.nals = append(p.cur.nals, ref)
}

func (p *Parser) startAU(sh *SliceHeader, nalType uint8) {
	p.cur = &auBuilder{firstSlice: sh, nalType: nalType}
	p.cur.nals = append(p.cur.nals, p.pendingPrefix...)
	p.pendingPrefix = nil
	p.cur.newSD = p.pendingNewSD
	p.pendingNewSD = false
	p.cur.dsiGeneration = p.store.Generation()
}

func (p *Parser) consumeVCL(unit *nal.Unit, hdr Header, ref es.NALRef) (*es.Sample, bool, error) {
	ppsID, sps, err := p.peekSliceConfig(unit.Body, hdr.Type)
	if err != nil {
		return nil, false, err
	}
	pps, ok := p.store.PPS(ppsID)
	if !ok {
		return nil, false, errs.New(errs.KindNoConfig, "VCL NAL references unknown PPS")
	}

	sh, err := ParseSliceHeader(unit.Body, hdr.Type, sps, pps)
	if err != nil {
		return nil, false, err
	}

	started := false
	var finished *es.Sample
	if sh.FirstSliceSegmentInPicFlag {
		started = true
		if p.cur != nil {
			finished = p.finishAU()
		}
		p.startAU(sh, hdr.Type)

		maxPocLsb := uint32(1) << (sps.Log2MaxPicOrderCntLsbMinus4 + 4)
		p.cur.pictureOrderCnt = p.pocState.Derive(hdr.Type, hdr.TemporalIDPlus1-1, sh.PicOrderCntLsb, maxPocLsb)
	}
	p.cur.nals = append(p.cur.nals, ref)

	return finished, started, nil
}

// peekSliceConfig resolves the PPS id a VCL NAL's slice segment header
// references, and the SPS it in turn depends on, without requiring the
// full slice header to already be known.
func (p *Parser) peekSliceConfig(nalBody []byte, nalType uint8) (uint32, *SPS, error) {
	ppsID, err := peekSlicePPSID(nalBody, nalType)
	if err != nil {
		return 0, nil, err
	}
	pps, ok := p.store.PPS(ppsID)
	if !ok {
		return ppsID, nil, errs.New(errs.KindNoConfig, "VCL NAL references unknown PPS")
	}
	sps, ok := p.store.SPS(pps.SPSID)
	if !ok {
		return ppsID, nil, errs.New(errs.KindNoConfig, "VCL NAL references unknown SPS")
	}
	p.ensureTiming(sps)
	return ppsID, sps, nil
}

func (p *Parser) finishAU() *es.Sample {
	b := p.cur
	p.cur = nil
	doc := p.doc
	p.doc++

	if b.dovi.HasRPU {
		p.doviSeen.HasRPU = true
	}
	if b.dovi.HasEL {
		p.doviSeen.HasEL = true
	}

	isIDR := IsIDR(b.nalType)
	if p.timing != nil {
		p.timing.AddPicture(doc, b.pictureOrderCnt, isIDR)
	}

	var size int64
	for _, n := range b.nals {
		size += int64(n.Size)
	}

	flags := es.Flags(0)
	if isIDR || IsBLA(b.nalType) {
		flags |= es.FlagSync
	}
	if b.newSD {
		flags |= es.FlagNewSampleDescription
	}

	pictureType := es.PictureTypeOther
	switch {
	case b.nalType == NaluIDRWRADL:
		pictureType = es.PictureTypeIDRWLeading
	case b.nalType == NaluIDRNLP:
		pictureType = es.PictureTypeIDRNoLeading
	case b.firstSlice != nil && b.firstSlice.SliceType == SliceI:
		pictureType = es.PictureTypeI
	}

	frameType := es.FrameTypeOther
	if b.firstSlice != nil {
		switch b.firstSlice.SliceType {
		case SliceI:
			frameType = es.FrameTypeI
		case SliceP:
			frameType = es.FrameTypeP
		case SliceB:
			frameType = es.FrameTypeB
		}
	}

	sampleDependsOn := 1
	if isIDR {
		sampleDependsOn = 2
	}
	sampleIsDependedOn := 1
	if IsSubLayerNonRef(b.nalType) {
		sampleIsDependedOn = 2
	}

	s := &es.Sample{
		DTS:                 p.timing.DTS(doc),
		Size:                size,
		Flags:               flags,
		NALs:                b.nals,
		SampleDependsOn:     sampleDependsOn,
		SampleIsDependedOn:  sampleIsDependedOn,
		SampleHasRedundancy: 2,
		PictureType:         pictureType,
		FrameType:           frameType,
		DSIGeneration:       b.dsiGeneration,
	}
	if cts := p.timing.CTSFromPOC(doc); cts != int64(poc.NotReady) {
		s.CTS = cts
	} else {
		s.CTS = s.DTS
	}

	p.samples = append(p.samples, s)
	if len(p.samples) > 1 {
		prev := p.samples[len(p.samples)-2]
		prev.Duration = s.DTS - prev.DTS
	}
	return s
}

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
				return errs.Wrapf(err, "hevc: CopySample seek")
			}
			if _, err := p.r.Read(buf); err != nil {
				return errs.Wrapf(err, "hevc: CopySample read")
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
	return p.store.BuildHVCC(3)
}

// GetCfgForSample returns the hvcC record that was active when the
// access unit of samplePos began, recovered from the DSI list even if a
// later parameter-set collision has since moved the live generation on.
func (p *Parser) GetCfgForSample(samplePos int) ([]byte, error) {
	if samplePos < 0 || samplePos >= len(p.samples) {
		return nil, errs.New(errs.KindSyntaxError, "sample position out of range")
	}
	return p.store.BuildHVCCForGeneration(p.samples[samplePos].DSIGeneration, 3)
}

// GetDVCC returns the dvcC (DOVIDecoderConfigurationRecord) bytes if any
// Dolby Vision RPU or enhancement-layer NAL has been observed so far, or
// ok=false if this stream carries no Dolby Vision side data.
func (p *Parser) GetDVCC() (cfg []byte, ok bool) {
	if !p.doviSeen.HasRPU && !p.doviSeen.HasEL {
		return nil, false
	}
	return BuildDVCC(p.ext, p.blPresent, p.doviSeen), true
}

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
		return 0, nil
	case es.ParamProfile:
		return uint32(sps.PTL.GeneralProfileIDC), nil
	case es.ParamLevel:
		return uint32(sps.PTL.GeneralLevelIDC), nil
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
	case es.ParamMinCTS:
		if p.timing == nil {
			return 0, errs.New(errs.KindNoConfig, "hevc: no active timing yet")
		}
		cts, ok := p.timing.MinCTS()
		if !ok {
			return 0, errs.New(errs.KindNoConfig, "hevc: reorder buffer has not resolved any AU yet")
		}
		return uint32(cts), nil
	default:
		return 0, errs.New(errs.KindNotSupported, "param not available for hevc")
	}
}

func (p *Parser) Destroy() {}
