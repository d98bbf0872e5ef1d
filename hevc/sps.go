package hevc

import "github.com/streamcore/esparser/bits"

// SPS is the subset of seq_parameter_set_rbsp() the core needs for
// hvcC, POC derivation, and RPS-driven reorder capacity.
type SPS struct {
	ID                  uint32
	VPSID               uint32
	MaxSubLayersMinus1  uint32
	TemporalIDNesting   bool
	PTL                 ProfileTierLevel

	ChromaFormatIDC     uint8
	SeparateColourPlane bool
	Width, Height       uint32

	BitDepthLumaMinus8   uint8
	BitDepthChromaMinus8 uint8

	Log2MaxPicOrderCntLsbMinus4 uint32

	MaxDecPicBufferingMinus1 uint32
	MaxNumReorderPics        uint32
	MaxLatencyIncreasePlus1  uint32

	ShortTermRPSList []ShortTermRPS

	TemporalMVPEnabled bool

	body []byte
}

// ParseSPS decodes an HEVC SPS NAL (2-byte NAL header still present,
// emulation prevention still present).
func ParseSPS(nalBody []byte) (*SPS, error) {
	rbsp := bits.RemoveEmulationPrevention(nalBody)
	r := bits.NewReader(rbsp[2:])
	sps := &SPS{body: append([]byte(nil), nalBody...)}

	sps.VPSID = r.ReadBits(4)
	sps.MaxSubLayersMinus1 = r.ReadBits(3)
	sps.TemporalIDNesting = r.ReadFlag()
	sps.PTL = parseProfileTierLevel(r, true, sps.MaxSubLayersMinus1)
	sps.ID = r.ReadUE()

	sps.ChromaFormatIDC = uint8(r.ReadUE())
	if sps.ChromaFormatIDC == 3 {
		sps.SeparateColourPlane = r.ReadFlag()
	}
	sps.Width = r.ReadUE()
	sps.Height = r.ReadUE()
	if r.ReadFlag() { // conformance_window_flag
		r.ReadUE() // conf_win_left_offset
		r.ReadUE() // conf_win_right_offset
		r.ReadUE() // conf_win_top_offset
		r.ReadUE() // conf_win_bottom_offset
	}
	sps.BitDepthLumaMinus8 = uint8(r.ReadUE())
	sps.BitDepthChromaMinus8 = uint8(r.ReadUE())
	sps.Log2MaxPicOrderCntLsbMinus4 = r.ReadUE()

	subLayerOrderingInfoPresent := r.ReadFlag()
	start := sps.MaxSubLayersMinus1
	if subLayerOrderingInfoPresent {
		start = 0
	}
	for i := start; i <= sps.MaxSubLayersMinus1; i++ {
		maxDecPicBufferingMinus1 := r.ReadUE()
		maxNumReorderPics := r.ReadUE()
		maxLatencyIncreasePlus1 := r.ReadUE()
		if i == sps.MaxSubLayersMinus1 {
			sps.MaxDecPicBufferingMinus1 = maxDecPicBufferingMinus1
			sps.MaxNumReorderPics = maxNumReorderPics
			sps.MaxLatencyIncreasePlus1 = maxLatencyIncreasePlus1
		}
	}

	r.ReadUE() // log2_min_luma_coding_block_size_minus3
	r.ReadUE() // log2_diff_max_min_luma_coding_block_size
	r.ReadUE() // log2_min_luma_transform_block_size_minus2
	r.ReadUE() // log2_diff_max_min_luma_transform_block_size
	r.ReadUE() // max_transform_hierarchy_depth_inter
	r.ReadUE() // max_transform_hierarchy_depth_intra

	if r.ReadFlag() { // scaling_list_enabled_flag
		if r.ReadFlag() { // sps_scaling_list_data_present_flag
			skipScalingListData(r)
		}
	}

	r.ReadFlag() // amp_enabled_flag
	r.ReadFlag() // sample_adaptive_offset_enabled_flag
	if r.ReadFlag() { // pcm_enabled_flag
		r.ReadBits(4) // pcm_sample_bit_depth_luma_minus1
		r.ReadBits(4) // pcm_sample_bit_depth_chroma_minus1
		r.ReadUE()    // log2_min_pcm_luma_coding_block_size_minus3
		r.ReadUE()    // log2_diff_max_min_pcm_luma_coding_block_size
		r.ReadFlag()  // pcm_loop_filter_disabled_flag
	}

	numShortTermRefPicSets := int(r.ReadUE())
	sps.ShortTermRPSList = make([]ShortTermRPS, numShortTermRefPicSets)
	for i := 0; i < numShortTermRefPicSets; i++ {
		sps.ShortTermRPSList[i] = parseShortTermRPS(r, i, sps.ShortTermRPSList[:i])
	}

	if r.ReadFlag() { // long_term_ref_pics_present_flag
		numLongTermRefPicsSps := int(r.ReadUE())
		for i := 0; i < numLongTermRefPicsSps; i++ {
			r.ReadBits(int(sps.Log2MaxPicOrderCntLsbMinus4) + 4) // lt_ref_pic_poc_lsb_sps
			r.ReadFlag()                                         // used_by_curr_pic_lt_sps_flag
		}
	}

	sps.TemporalMVPEnabled = r.ReadFlag()
	r.ReadFlag() // strong_intra_smoothing_enabled_flag

	if r.ReadFlag() { // vui_parameters_present_flag
		// VUI/HRD decode is out of scope for HEVC timing: this core
		// derives HEVC CTS from RPS/POC only, never from an HRD model,
		// so the remaining VUI bits are never consulted. Stop here
		// rather than walk syntax nothing downstream reads.
	}

	return sps, nil
}

func skipScalingListData(r *bits.Reader) {
	for sizeID := 0; sizeID < 4; sizeID++ {
		step := 1
		if sizeID == 3 {
			step = 3
		}
		for matrixID := 0; matrixID < 6; matrixID += step {
			if !r.ReadFlag() { // scaling_list_pred_mode_flag
				r.ReadUE() // scaling_list_pred_matrix_id_delta
				continue
			}
			coefNum := 64
			if sizeID == 0 {
				coefNum = 16
			}
			if sizeID > 1 {
				r.ReadSE() // scaling_list_dc_coef_minus8
			}
			for i := 0; i < coefNum; i++ {
				r.ReadSE() // scaling_list_delta_coef
			}
		}
	}
}

func (s *SPS) Body() []byte { return s.body }
