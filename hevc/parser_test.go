package hevc

import (
	stdbits "math/bits"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/streamcore/esparser/bits"
	"github.com/streamcore/esparser/common/errs"
	"github.com/streamcore/esparser/es"
	"github.com/streamcore/esparser/esio"
)

func writeUE(w *bits.Writer, codeNum uint32) {
	v := codeNum + 1
	n := stdbits.Len32(v)
	w.WriteBits(n-1, 0)
	w.WriteBits(n, v)
}

func buildNAL2(nalType uint8, rbsp []byte) []byte {
	b0 := nalType << 1
	b1 := byte(1) // layer 0, temporal_id_plus1 = 1
	body := append([]byte{b0, b1}, rbsp...)
	return bits.AddEmulationPrevention(body)
}

func annexB2(nals ...[]byte) []byte {
	var out []byte
	for _, n := range nals {
		out = append(out, 0, 0, 0, 1)
		out = append(out, n...)
	}
	return out
}

func buildVPSRBSP() []byte {
	w := bits.NewWriter()
	w.WriteBits(4, 0) // vps_video_parameter_set_id
	w.WriteFlag(true)
	return w.Bytes()
}

func buildSPSRBSP() []byte {
	w := bits.NewWriter()
	w.WriteBits(4, 0) // sps_video_parameter_set_id
	w.WriteBits(3, 0) // sps_max_sub_layers_minus1
	w.WriteFlag(true) // sps_temporal_id_nesting_flag

	// profile_tier_level(1, 0)
	w.WriteBits(2, 0) // general_profile_space
	w.WriteFlag(false) // general_tier_flag
	w.WriteBits(5, 1)  // general_profile_idc (Main)
	w.WriteBits(32, 0x60000000)
	w.WriteFlag(true)  // general_progressive_source_flag
	w.WriteFlag(false) // general_interlaced_source_flag
	w.WriteFlag(true)  // general_non_packed_constraint_flag
	w.WriteFlag(true)  // general_frame_only_constraint_flag
	w.WriteBits(32, 0) // upper 32 of the 43 reserved bits
	w.WriteBits(11, 0) // lower 11 of the 43 reserved bits
	w.WriteFlag(false) // general_inbld_flag
	w.WriteBits(8, 93) // general_level_idc

	writeUE(w, 0)   // sps_seq_parameter_set_id
	writeUE(w, 1)   // chroma_format_idc (4:2:0)
	writeUE(w, 176) // pic_width_in_luma_samples
	writeUE(w, 144) // pic_height_in_luma_samples
	w.WriteFlag(false) // conformance_window_flag
	writeUE(w, 0)   // bit_depth_luma_minus8
	writeUE(w, 0)   // bit_depth_chroma_minus8
	writeUE(w, 0)   // log2_max_pic_order_cnt_lsb_minus4

	w.WriteFlag(true) // sps_sub_layer_ordering_info_present_flag
	writeUE(w, 1)     // sps_max_dec_pic_buffering_minus1[0]
	writeUE(w, 0)     // sps_max_num_reorder_pics[0]
	writeUE(w, 0)     // sps_max_latency_increase_plus1[0]

	writeUE(w, 0) // log2_min_luma_coding_block_size_minus3
	writeUE(w, 2) // log2_diff_max_min_luma_coding_block_size
	writeUE(w, 0) // log2_min_luma_transform_block_size_minus2
	writeUE(w, 3) // log2_diff_max_min_luma_transform_block_size
	writeUE(w, 0) // max_transform_hierarchy_depth_inter
	writeUE(w, 0) // max_transform_hierarchy_depth_intra

	w.WriteFlag(false) // scaling_list_enabled_flag
	w.WriteFlag(false) // amp_enabled_flag
	w.WriteFlag(false) // sample_adaptive_offset_enabled_flag
	w.WriteFlag(false) // pcm_enabled_flag

	writeUE(w, 0) // num_short_term_ref_pic_sets

	w.WriteFlag(false) // long_term_ref_pics_present_flag
	w.WriteFlag(false) // sps_temporal_mvp_enabled_flag
	w.WriteFlag(false) // strong_intra_smoothing_enabled_flag
	w.WriteFlag(false) // vui_parameters_present_flag
	w.WriteFlag(true)  // rbsp_stop_one_bit
	return w.Bytes()
}

func buildPPSRBSP() []byte {
	w := bits.NewWriter()
	writeUE(w, 0) // pps_pic_parameter_set_id
	writeUE(w, 0) // pps_seq_parameter_set_id
	w.WriteFlag(false) // dependent_slice_segments_enabled_flag
	w.WriteFlag(false) // output_flag_present_flag
	w.WriteBits(3, 0)  // num_extra_slice_header_bits
	w.WriteFlag(false) // sign_data_hiding_enabled_flag
	w.WriteFlag(false) // cabac_init_present_flag
	w.WriteFlag(true)
	return w.Bytes()
}

func buildIDRSliceRBSP() []byte {
	w := bits.NewWriter()
	w.WriteFlag(true)  // first_slice_segment_in_pic_flag
	w.WriteFlag(false) // no_output_of_prior_pics_flag
	writeUE(w, 0)       // slice_pic_parameter_set_id
	writeUE(w, 2)       // slice_type = I
	w.WriteFlag(true)
	return w.Bytes()
}

func buildTrailSliceRBSP(pocLsb uint32) []byte {
	w := bits.NewWriter()
	w.WriteFlag(true) // first_slice_segment_in_pic_flag
	writeUE(w, 0)      // slice_pic_parameter_set_id
	writeUE(w, 1)      // slice_type = P
	w.WriteBits(4, pocLsb)
	w.WriteFlag(false) // short_term_ref_pic_set_sps_flag
	writeUE(w, 0)       // num_negative_pics
	writeUE(w, 0)       // num_positive_pics
	w.WriteFlag(true)
	return w.Bytes()
}

func TestParserSplitsAccessUnits(t *testing.T) {
	vps := buildNAL2(NaluVPS, buildVPSRBSP())
	sps := buildNAL2(NaluSPS, buildSPSRBSP())
	pps := buildNAL2(NaluPPS, buildPPSRBSP())
	idr := buildNAL2(NaluIDRWRADL, buildIDRSliceRBSP())
	trail := buildNAL2(NaluTrailR, buildTrailSliceRBSP(1))

	stream := annexB2(vps, sps, pps, idr, trail)
	r := esio.NewMemReader(stream)

	p := &Parser{dsiType: es.DSIHVCC}
	require.NoError(t, p.Init(r, 0, es.ExternalTiming{}))

	s1, err := p.GetSample()
	require.NoError(t, err)
	require.NotNil(t, s1)
	require.True(t, s1.Flags&es.FlagSync != 0)
	require.Equal(t, es.PictureTypeIDRWLeading, s1.PictureType)

	s2, err := p.GetSample()
	require.NoError(t, err)
	require.NotNil(t, s2)
	require.Equal(t, es.FrameTypeP, s2.FrameType)

	_, err = p.GetSample()
	require.True(t, errs.Is(err, errs.KindEndOfStream))

	cfg, err := p.GetCfg()
	require.NoError(t, err)
	require.Equal(t, uint8(1), cfg[0]) // configurationVersion

	minCTS, err := p.GetParam(es.ParamMinCTS)
	require.NoError(t, err)
	require.EqualValues(t, s1.CTS, minCTS)
}

// buildSPSRBSPVariant mirrors buildSPSRBSP but with a different
// general_level_idc, producing an SPS that collides on id (0) with a
// byte-different body.
func buildSPSRBSPVariant() []byte {
	w := bits.NewWriter()
	w.WriteBits(4, 0)
	w.WriteBits(3, 0)
	w.WriteFlag(true)

	w.WriteBits(2, 0)
	w.WriteFlag(false)
	w.WriteBits(5, 1)
	w.WriteBits(32, 0x60000000)
	w.WriteFlag(true)
	w.WriteFlag(false)
	w.WriteFlag(true)
	w.WriteFlag(true)
	w.WriteBits(32, 0)
	w.WriteBits(11, 0)
	w.WriteFlag(false)
	w.WriteBits(8, 150) // general_level_idc, different from buildSPSRBSP's 93

	writeUE(w, 0)
	writeUE(w, 1)
	writeUE(w, 176)
	writeUE(w, 144)
	w.WriteFlag(false)
	writeUE(w, 0)
	writeUE(w, 0)
	writeUE(w, 0)

	w.WriteFlag(true)
	writeUE(w, 1)
	writeUE(w, 0)
	writeUE(w, 0)

	writeUE(w, 0)
	writeUE(w, 2)
	writeUE(w, 0)
	writeUE(w, 3)
	writeUE(w, 0)
	writeUE(w, 0)

	w.WriteFlag(false)
	w.WriteFlag(false)
	w.WriteFlag(false)
	w.WriteFlag(false)

	writeUE(w, 0)

	w.WriteFlag(false)
	w.WriteFlag(false)
	w.WriteFlag(false)
	w.WriteFlag(false)
	w.WriteFlag(true)
	return w.Bytes()
}

func TestParamSetCollisionMarksNewSampleDescriptionAndKeepsOldDSI(t *testing.T) {
	vps := buildNAL2(NaluVPS, buildVPSRBSP())
	sps1 := buildNAL2(NaluSPS, buildSPSRBSP())
	pps := buildNAL2(NaluPPS, buildPPSRBSP())
	idr := buildNAL2(NaluIDRWRADL, buildIDRSliceRBSP())
	sps2 := buildNAL2(NaluSPS, buildSPSRBSPVariant())
	trail := buildNAL2(NaluTrailR, buildTrailSliceRBSP(1))

	stream := annexB2(vps, sps1, pps, idr, sps2, trail)
	r := esio.NewMemReader(stream)

	p := &Parser{dsiType: es.DSIHVCC}
	require.NoError(t, p.Init(r, 0, es.ExternalTiming{}))

	s1, err := p.GetSample()
	require.NoError(t, err)
	require.Zero(t, s1.Flags&es.FlagNewSampleDescription)
	require.Equal(t, 0, s1.DSIGeneration)

	s2, err := p.GetSample()
	require.NoError(t, err)
	require.NotZero(t, s2.Flags&es.FlagNewSampleDescription, "first sample after the SPS collision must carry NEW_SAMPLE_DESCRIPTION")
	require.Equal(t, 1, s2.DSIGeneration)

	_, err = p.GetSample()
	require.True(t, errs.Is(err, errs.KindEndOfStream))

	cfgNow, err := p.GetCfg()
	require.NoError(t, err)
	require.Equal(t, uint8(150), cfgNow[12], "live hvcC reflects the post-collision SPS")

	cfgOld, err := p.GetCfgForSample(0)
	require.NoError(t, err)
	require.Equal(t, uint8(93), cfgOld[12], "GetCfgForSample recovers the DSI active before the collision")
}

func TestParserTracksDolbyVisionSideNALs(t *testing.T) {
	vps := buildNAL2(NaluVPS, buildVPSRBSP())
	sps := buildNAL2(NaluSPS, buildSPSRBSP())
	pps := buildNAL2(NaluPPS, buildPPSRBSP())
	idr := buildNAL2(NaluIDRWRADL, buildIDRSliceRBSP())
	rpu := buildNAL2(NaluRPU, []byte{0xAA, 0xBB})

	stream := annexB2(vps, sps, pps, idr, rpu)
	r := esio.NewMemReader(stream)

	p := &Parser{dsiType: es.DSIHVCC}
	require.NoError(t, p.Init(r, 0, es.ExternalTiming{DVProfile: 5, DVBLCompatID: 1}))

	_, err := p.GetSample()
	require.NoError(t, err)
	_, err = p.GetSample()
	require.True(t, errs.Is(err, errs.KindEndOfStream))

	dvcc, ok := p.GetDVCC()
	require.True(t, ok)
	require.Equal(t, uint8(1), dvcc[0])      // dv_version_major
	require.Equal(t, uint8(5<<1), dvcc[2]) // dv_profile packed into high bits
	require.NotZero(t, dvcc[4]&(1<<7))     // rpu_present_flag
	require.NotZero(t, dvcc[4]&(1<<5))     // bl_present_flag
}
