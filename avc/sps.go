package avc

import (
	"github.com/streamcore/esparser/bits"
)

// HRDParameters carries the hrd_parameters() syntax needed to derive
// cpb_removal_delay/dpb_output_delay timing.
type HRDParameters struct {
	CPBCntMinus1                     uint32
	BitRateScale                     uint8
	CPBSizeScale                     uint8
	CPBSizeValueMinus1               []uint32
	CBRFlag                          []bool
	InitialCPBRemovalDelayLengthMinus1 uint8
	CPBRemovalDelayLengthMinus1      uint8
	DPBOutputDelayLengthMinus1       uint8
	TimeOffsetLength                uint8
}

// VUI is the subset of vui_parameters() the core consumes: timing info
// for POC-based DTS, SAR for get_param queries, and the HRD blocks that
// gate HRD-based DTS / pic_struct_present_flag.
type VUI struct {
	AspectRatioInfoPresentFlag bool
	SARWidth, SARHeight        uint16

	TimingInfoPresentFlag bool
	NumUnitsInTick        uint32
	TimeScale             uint32
	FixedFrameRateFlag    bool

	NALHRDParametersPresentFlag bool
	NALHRD                      HRDParameters
	VCLHRDParametersPresentFlag bool
	VCLHRD                      HRDParameters
	LowDelayHRDFlag             bool

	PicStructPresentFlag bool

	BitstreamRestrictionFlag   bool
	MaxNumReorderFrames        uint32
	MaxDecFrameBuffering       uint32
}

// SPS is the subset of seq_parameter_set_rbsp() the core needs: enough
// to build avcC, drive POC derivation and HRD timing, and detect
// parameter-set collisions that force a new sample description.
type SPS struct {
	ID uint32

	ProfileIDC         uint8
	ConstraintFlags    uint8 // constraint_set0..5_flag packed, + 2 reserved bits, as stored in avcC profile_compatibility
	LevelIDC           uint8

	ChromaFormatIDC      uint8
	SeparateColourPlane  bool
	BitDepthLumaMinus8   uint8
	BitDepthChromaMinus8 uint8

	Log2MaxFrameNumMinus4 uint32

	PicOrderCntType                  uint32
	Log2MaxPicOrderCntLsbMinus4      uint32
	DeltaPicOrderAlwaysZeroFlag      bool
	OffsetForNonRefPic               int32
	OffsetForTopToBottomField        int32
	NumRefFramesInPicOrderCntCycle   uint32
	OffsetForRefFrame                []int32

	MaxNumRefFrames                uint32
	GapsInFrameNumValueAllowedFlag bool

	PicWidthInMbsMinus1       uint32
	PicHeightInMapUnitsMinus1 uint32
	FrameMbsOnlyFlag          bool
	MBAdaptiveFrameFieldFlag  bool
	Direct8x8InferenceFlag    bool

	FrameCroppingFlag                                      bool
	CropLeft, CropRight, CropTop, CropBottom                uint32

	Width, Height uint32

	VUIParametersPresentFlag bool
	VUI                      VUI

	body []byte // raw RBSP (escaped), for byte-identical storage/dedup
}

// ParseSPS decodes an SPS NAL body (NAL header byte still present,
// emulation-prevention bytes still present — ParseSPS de-escapes).
func ParseSPS(nalBody []byte) (*SPS, error) {
	rbsp := bits.RemoveEmulationPrevention(nalBody)
	r := bits.NewReader(rbsp[1:]) // skip the 1-byte NAL header
	sps := &SPS{body: append([]byte(nil), nalBody...)}

	sps.ProfileIDC = uint8(r.ReadBits(8))
	sps.ConstraintFlags = uint8(r.ReadBits(8))
	sps.LevelIDC = uint8(r.ReadBits(8))
	sps.ID = r.ReadUE()

	switch sps.ProfileIDC {
	case 100, 110, 122, 244, 44, 83, 86, 118, 128, 138, 139, 134, 135:
		sps.ChromaFormatIDC = uint8(r.ReadUE())
		if sps.ChromaFormatIDC == 3 {
			sps.SeparateColourPlane = r.ReadFlag()
		}
		sps.BitDepthLumaMinus8 = uint8(r.ReadUE())
		sps.BitDepthChromaMinus8 = uint8(r.ReadUE())
		r.ReadFlag() // qpprime_y_zero_transform_bypass_flag
		if r.ReadFlag() {
			// seq_scaling_matrix_present_flag: scaling lists aren't
			// needed for any DSI/timing field this core emits; skip by
			// consuming their syntax without storing values.
			skipScalingMatrix(r, sps.ChromaFormatIDC)
		}
	default:
		sps.ChromaFormatIDC = 1
	}

	sps.Log2MaxFrameNumMinus4 = r.ReadUE()
	sps.PicOrderCntType = r.ReadUE()
	switch sps.PicOrderCntType {
	case 0:
		sps.Log2MaxPicOrderCntLsbMinus4 = r.ReadUE()
	case 1:
		sps.DeltaPicOrderAlwaysZeroFlag = r.ReadFlag()
		sps.OffsetForNonRefPic = r.ReadSE()
		sps.OffsetForTopToBottomField = r.ReadSE()
		sps.NumRefFramesInPicOrderCntCycle = r.ReadUE()
		sps.OffsetForRefFrame = make([]int32, sps.NumRefFramesInPicOrderCntCycle)
		for i := range sps.OffsetForRefFrame {
			sps.OffsetForRefFrame[i] = r.ReadSE()
		}
	}

	sps.MaxNumRefFrames = r.ReadUE()
	sps.GapsInFrameNumValueAllowedFlag = r.ReadFlag()
	sps.PicWidthInMbsMinus1 = r.ReadUE()
	sps.PicHeightInMapUnitsMinus1 = r.ReadUE()
	sps.FrameMbsOnlyFlag = r.ReadFlag()
	if !sps.FrameMbsOnlyFlag {
		sps.MBAdaptiveFrameFieldFlag = r.ReadFlag()
	}
	sps.Direct8x8InferenceFlag = r.ReadFlag()
	sps.FrameCroppingFlag = r.ReadFlag()
	if sps.FrameCroppingFlag {
		sps.CropLeft = r.ReadUE()
		sps.CropRight = r.ReadUE()
		sps.CropTop = r.ReadUE()
		sps.CropBottom = r.ReadUE()
	}

	frameMbsOnlyFactor := uint32(2)
	if sps.FrameMbsOnlyFlag {
		frameMbsOnlyFactor = 1
	}
	cropUnitX, cropUnitY := chromaCropUnits(sps.ChromaFormatIDC, sps.SeparateColourPlane, sps.FrameMbsOnlyFlag)
	sps.Width = (sps.PicWidthInMbsMinus1+1)*16 - cropUnitX*(sps.CropLeft+sps.CropRight)
	sps.Height = frameMbsOnlyFactor*(sps.PicHeightInMapUnitsMinus1+1)*16 - cropUnitY*(sps.CropTop+sps.CropBottom)

	sps.VUIParametersPresentFlag = r.ReadFlag()
	if sps.VUIParametersPresentFlag {
		parseVUI(r, &sps.VUI)
	}

	return sps, nil
}

func chromaCropUnits(chromaFormatIDC uint8, separateColourPlane, frameMbsOnly bool) (uint32, uint32) {
	if chromaFormatIDC == 0 || separateColourPlane {
		return 1, 2 - b2u32(frameMbsOnly)
	}
	subWidthC, subHeightC := uint32(2), uint32(2)
	if chromaFormatIDC == 3 {
		subWidthC = 1
	}
	if chromaFormatIDC == 1 {
		subHeightC = 2
	}
	return subWidthC, subHeightC * (2 - b2u32(frameMbsOnly))
}

func b2u32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

func skipScalingMatrix(r *bits.Reader, chromaFormatIDC uint8) {
	n := 8
	if chromaFormatIDC == 3 {
		n = 12
	}
	for i := 0; i < n; i++ {
		if r.ReadFlag() {
			size := 16
			if i >= 6 {
				size = 64
			}
			skipScalingList(r, size)
		}
	}
}

func skipScalingList(r *bits.Reader, size int) {
	lastScale, nextScale := int32(8), int32(8)
	for j := 0; j < size; j++ {
		if nextScale != 0 {
			delta := r.ReadSE()
			nextScale = (lastScale + delta + 256) % 256
		}
		if nextScale != 0 {
			lastScale = nextScale
		}
	}
}

func parseVUI(r *bits.Reader, v *VUI) {
	v.AspectRatioInfoPresentFlag = r.ReadFlag()
	if v.AspectRatioInfoPresentFlag {
		idc := r.ReadBits(8)
		if idc == 255 {
			v.SARWidth = uint16(r.ReadBits(16))
			v.SARHeight = uint16(r.ReadBits(16))
		}
	}
	if r.ReadFlag() { // overscan_info_present_flag
		r.ReadFlag()
	}
	if r.ReadFlag() { // video_signal_type_present_flag
		r.ReadBits(3)
		r.ReadFlag()
		if r.ReadFlag() { // colour_description_present_flag
			r.ReadBits(8)
			r.ReadBits(8)
			r.ReadBits(8)
		}
	}
	if r.ReadFlag() { // chroma_loc_info_present_flag
		r.ReadUE()
		r.ReadUE()
	}
	v.TimingInfoPresentFlag = r.ReadFlag()
	if v.TimingInfoPresentFlag {
		v.NumUnitsInTick = r.ReadBits(32)
		v.TimeScale = r.ReadBits(32)
		v.FixedFrameRateFlag = r.ReadFlag()
	}
	v.NALHRDParametersPresentFlag = r.ReadFlag()
	if v.NALHRDParametersPresentFlag {
		v.NALHRD = parseHRD(r)
	}
	v.VCLHRDParametersPresentFlag = r.ReadFlag()
	if v.VCLHRDParametersPresentFlag {
		v.VCLHRD = parseHRD(r)
	}
	if v.NALHRDParametersPresentFlag || v.VCLHRDParametersPresentFlag {
		v.LowDelayHRDFlag = r.ReadFlag()
	}
	v.PicStructPresentFlag = r.ReadFlag()
	v.BitstreamRestrictionFlag = r.ReadFlag()
	if v.BitstreamRestrictionFlag {
		r.ReadFlag() // motion_vectors_over_pic_boundaries_flag
		r.ReadUE()   // max_bytes_per_pic_denom
		r.ReadUE()   // max_bits_per_mb_denom
		r.ReadUE()   // log2_max_mv_length_horizontal
		r.ReadUE()   // log2_max_mv_length_vertical
		v.MaxNumReorderFrames = r.ReadUE()
		v.MaxDecFrameBuffering = r.ReadUE()
	}
}

func parseHRD(r *bits.Reader) HRDParameters {
	var h HRDParameters
	h.CPBCntMinus1 = r.ReadUE()
	h.BitRateScale = uint8(r.ReadBits(4))
	h.CPBSizeScale = uint8(r.ReadBits(4))
	n := int(h.CPBCntMinus1) + 1
	h.CPBSizeValueMinus1 = make([]uint32, n)
	h.CBRFlag = make([]bool, n)
	for i := 0; i < n; i++ {
		r.ReadUE() // bit_rate_value_minus1
		h.CPBSizeValueMinus1[i] = r.ReadUE()
		h.CBRFlag[i] = r.ReadFlag()
	}
	h.InitialCPBRemovalDelayLengthMinus1 = uint8(r.ReadBits(5))
	h.CPBRemovalDelayLengthMinus1 = uint8(r.ReadBits(5))
	h.DPBOutputDelayLengthMinus1 = uint8(r.ReadBits(5))
	h.TimeOffsetLength = uint8(r.ReadBits(5))
	return h
}

// Body returns the raw (escaped) NAL body this SPS was parsed from, used
// by the parameter-set store for byte-identical dedup comparisons.
func (s *SPS) Body() []byte { return s.body }
