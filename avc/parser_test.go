package avc

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

func writeSE(w *bits.Writer, v int32) {
	var codeNum uint32
	if v <= 0 {
		codeNum = uint32(-2 * v)
	} else {
		codeNum = uint32(2*v - 1)
	}
	writeUE(w, codeNum)
}

func buildNAL(header byte, rbsp []byte) []byte {
	body := append([]byte{header}, rbsp...)
	return bits.AddEmulationPrevention(body)
}

func annexB(nals ...[]byte) []byte {
	var out []byte
	for _, n := range nals {
		out = append(out, 0, 0, 0, 1)
		out = append(out, n...)
	}
	return out
}

func buildSPSRBSP() []byte {
	w := bits.NewWriter()
	w.WriteBits(8, 66) // profile_idc: baseline
	w.WriteBits(8, 0xc0)
	w.WriteBits(8, 30) // level_idc 3.0
	writeUE(w, 0)      // seq_parameter_set_id
	writeUE(w, 0)      // log2_max_frame_num_minus4
	writeUE(w, 2)      // pic_order_cnt_type = 2
	writeUE(w, 1)      // max_num_ref_frames
	w.WriteFlag(false) // gaps_in_frame_num_value_allowed_flag
	writeUE(w, 10)     // pic_width_in_mbs_minus1 (176)
	writeUE(w, 8)      // pic_height_in_map_units_minus1 (144)
	w.WriteFlag(true)  // frame_mbs_only_flag
	w.WriteFlag(true)  // direct_8x8_inference_flag
	w.WriteFlag(false) // frame_cropping_flag
	w.WriteFlag(false) // vui_parameters_present_flag
	w.WriteFlag(true)  // rbsp_stop_one_bit
	return w.Bytes()
}

func buildPPSRBSP() []byte {
	w := bits.NewWriter()
	writeUE(w, 0) // pic_parameter_set_id
	writeUE(w, 0) // seq_parameter_set_id
	w.WriteFlag(false)
	w.WriteFlag(false)
	writeUE(w, 0) // num_slice_groups_minus1
	writeUE(w, 0) // num_ref_idx_l0_default_active_minus1
	writeUE(w, 0) // num_ref_idx_l1_default_active_minus1
	w.WriteFlag(false)
	w.WriteBits(2, 0)
	writeSE(w, 0) // pic_init_qp_minus26
	writeSE(w, 0) // pic_init_qs_minus26
	writeSE(w, 0) // chroma_qp_index_offset
	w.WriteFlag(false)
	w.WriteFlag(false)
	w.WriteFlag(false) // redundant_pic_cnt_present_flag
	w.WriteFlag(true)
	return w.Bytes()
}

func buildSliceRBSP(isIDR bool, frameNum uint32) []byte {
	w := bits.NewWriter()
	writeUE(w, 0) // first_mb_in_slice
	if isIDR {
		writeUE(w, 2) // slice_type I
	} else {
		writeUE(w, 0) // slice_type P
	}
	writeUE(w, 0) // pic_parameter_set_id
	w.WriteBits(4, frameNum)
	if isIDR {
		writeUE(w, 0) // idr_pic_id
	}
	w.WriteFlag(true)
	return w.Bytes()
}

func TestParserSplitsAccessUnits(t *testing.T) {
	sps := buildNAL(0x67, buildSPSRBSP())
	pps := buildNAL(0x68, buildPPSRBSP())
	idrSlice := buildNAL(0x65, buildSliceRBSP(true, 0))
	pSlice := buildNAL(0x21, buildSliceRBSP(false, 1))

	stream := annexB(sps, pps, idrSlice, pSlice)
	r := esio.NewMemReader(stream)

	p := &Parser{dsiType: es.DSIAVCC}
	require.NoError(t, p.Init(r, 0, es.ExternalTiming{}))

	s1, err := p.GetSample()
	require.NoError(t, err)
	require.NotNil(t, s1)
	require.True(t, s1.Flags&es.FlagSync != 0)
	require.Equal(t, es.PictureTypeIDRNoLeading, s1.PictureType)

	s2, err := p.GetSample()
	require.NoError(t, err)
	require.NotNil(t, s2)
	require.Equal(t, es.FrameTypeP, s2.FrameType)

	_, err = p.GetSample()
	require.True(t, errs.Is(err, errs.KindEndOfStream))

	cfg, err := p.GetCfg()
	require.NoError(t, err)
	require.Equal(t, uint8(1), cfg[0]) // configurationVersion
	require.Equal(t, uint8(66), cfg[1])
}

// buildSPSRBSPWithHRD mirrors buildSPSRBSP but signals a VUI with NAL HRD
// parameters and pic_struct_present_flag set, which switches Timing into
// TimingHRD mode. cpb_removal_delay_length_minus1 and
// dpb_output_delay_length_minus1 are both fixed at 3 (4-bit fields) so
// the companion pic_timing SEI payload is exactly one byte.
func buildSPSRBSPWithHRD() []byte {
	w := bits.NewWriter()
	w.WriteBits(8, 66) // profile_idc: baseline
	w.WriteBits(8, 0xc0)
	w.WriteBits(8, 30) // level_idc 3.0
	writeUE(w, 0)      // seq_parameter_set_id
	writeUE(w, 0)      // log2_max_frame_num_minus4
	writeUE(w, 2)      // pic_order_cnt_type = 2
	writeUE(w, 1)      // max_num_ref_frames
	w.WriteFlag(false) // gaps_in_frame_num_value_allowed_flag
	writeUE(w, 10)     // pic_width_in_mbs_minus1 (176)
	writeUE(w, 8)      // pic_height_in_map_units_minus1 (144)
	w.WriteFlag(true)  // frame_mbs_only_flag
	w.WriteFlag(true)  // direct_8x8_inference_flag
	w.WriteFlag(false) // frame_cropping_flag
	w.WriteFlag(true)  // vui_parameters_present_flag

	w.WriteFlag(false) // aspect_ratio_info_present_flag
	w.WriteFlag(false) // overscan_info_present_flag
	w.WriteFlag(false) // video_signal_type_present_flag
	w.WriteFlag(false) // chroma_loc_info_present_flag
	w.WriteFlag(false) // timing_info_present_flag

	w.WriteFlag(true) // nal_hrd_parameters_present_flag
	writeUE(w, 0)      // cpb_cnt_minus1
	w.WriteBits(4, 0)  // bit_rate_scale
	w.WriteBits(4, 0)  // cpb_size_scale
	writeUE(w, 0)      // bit_rate_value_minus1[0]
	writeUE(w, 0)      // cpb_size_value_minus1[0]
	w.WriteFlag(false) // cbr_flag[0]
	w.WriteBits(5, 0)  // initial_cpb_removal_delay_length_minus1
	w.WriteBits(5, 3)  // cpb_removal_delay_length_minus1
	w.WriteBits(5, 3)  // dpb_output_delay_length_minus1
	w.WriteBits(5, 0)  // time_offset_length

	w.WriteFlag(false) // vcl_hrd_parameters_present_flag
	w.WriteFlag(false) // low_delay_hrd_flag
	w.WriteFlag(true)  // pic_struct_present_flag
	w.WriteFlag(false) // bitstream_restriction_flag

	w.WriteFlag(true) // rbsp_stop_one_bit
	return w.Bytes()
}

// buildPicTimingSEI packs a pic_timing() payload (cpb_removal_delay,
// dpb_output_delay, each a 4-bit field per buildSPSRBSPWithHRD) into a
// full sei_message() NAL body: NAL header, payloadType=1, payloadSize,
// payload bytes, rbsp_trailing_bits.
func buildPicTimingSEI(cpbDelay, dpbDelay uint32) []byte {
	pw := bits.NewWriter()
	pw.WriteBits(4, cpbDelay)
	pw.WriteBits(4, dpbDelay)
	payload := pw.Bytes()

	body := []byte{0x06, byte(SEIPicTiming), byte(len(payload))}
	body = append(body, payload...)
	body = append(body, 0x80) // rbsp_trailing_bits
	return bits.AddEmulationPrevention(body)
}

func TestParserDerivesCTSFromHRDPicTiming(t *testing.T) {
	sps := buildNAL(0x67, buildSPSRBSPWithHRD())
	pps := buildNAL(0x68, buildPPSRBSP())
	sei := buildPicTimingSEI(0, 2)
	idrSlice := buildNAL(0x65, buildSliceRBSP(true, 0))

	stream := annexB(sps, pps, sei, idrSlice)
	r := esio.NewMemReader(stream)

	p := &Parser{dsiType: es.DSIAVCC}
	require.NoError(t, p.Init(r, 0, es.ExternalTiming{}))

	s, err := p.GetSample()
	require.NoError(t, err)
	require.NotNil(t, s)
	require.Equal(t, TimingHRD, p.timing.Mode())
	require.Equal(t, s.DTS+2*p.timing.auTicks, s.CTS)

	cpbSize, err := p.GetParam(es.ParamCPBSize)
	require.NoError(t, err)
	require.Equal(t, uint32(16), cpbSize) // (cpb_size_value_minus1[0]+1) << (cpb_size_scale+4)
}

func TestParserCopySampleAndGetSubSample(t *testing.T) {
	sps := buildNAL(0x67, buildSPSRBSP())
	pps := buildNAL(0x68, buildPPSRBSP())
	idrSlice := buildNAL(0x65, buildSliceRBSP(true, 0))
	pSlice := buildNAL(0x21, buildSliceRBSP(false, 1))

	stream := annexB(sps, pps, idrSlice, pSlice)
	r := esio.NewMemReader(stream)

	p := &Parser{dsiType: es.DSIAVCC}
	require.NoError(t, p.Init(r, 0, es.ExternalTiming{}))

	s0, err := p.GetSample()
	require.NoError(t, err)
	_, err = p.GetSample()
	require.NoError(t, err)

	ref, err := p.GetSubSample(0, 0)
	require.NoError(t, err)
	require.Greater(t, ref.Size, 0)

	w := esio.NewMemWriter()
	require.NoError(t, p.CopySample(w, 0))
	out := w.Bytes()
	require.EqualValues(t, ref.Size, bits.U32BE(out[0:4]))
	require.Len(t, out, int(s0.Size)+4*len(s0.NALs)) // SPS, PPS and IDR slice, each length-prefixed
}

func TestParserReportsMinCTS(t *testing.T) {
	sps := buildNAL(0x67, buildSPSRBSP())
	pps := buildNAL(0x68, buildPPSRBSP())
	idrSlice := buildNAL(0x65, buildSliceRBSP(true, 0))
	p1Slice := buildNAL(0x21, buildSliceRBSP(false, 1))
	p2Slice := buildNAL(0x21, buildSliceRBSP(false, 2))

	stream := annexB(sps, pps, idrSlice, p1Slice, p2Slice)
	r := esio.NewMemReader(stream)

	p := &Parser{dsiType: es.DSIAVCC}
	require.NoError(t, p.Init(r, 0, es.ExternalTiming{}))

	s1, err := p.GetSample()
	require.NoError(t, err)

	_, err = p.GetSample()
	require.NoError(t, err)

	// max_num_ref_frames=1 gives a reorder capacity of 2, so the ring never
	// exceeds capacity here: doc0's output index is resolved by the
	// end-of-stream flush this third call triggers, just before the third
	// AU is added.
	_, err = p.GetSample()
	require.NoError(t, err)

	_, err = p.GetSample()
	require.True(t, errs.Is(err, errs.KindEndOfStream))

	minCTS, err := p.GetParam(es.ParamMinCTS)
	require.NoError(t, err)
	require.EqualValues(t, s1.CTS, minCTS)
}

func TestParserMultiSdForbiddenOnSPSCollision(t *testing.T) {
	sps1 := buildNAL(0x67, buildSPSRBSP())

	w := bits.NewWriter()
	w.WriteBits(8, 77) // different profile_idc -> byte-different SPS, same id
	w.WriteBits(8, 0xc0)
	w.WriteBits(8, 30)
	writeUE(w, 0)
	writeUE(w, 0)
	writeUE(w, 2)
	writeUE(w, 1)
	w.WriteFlag(false)
	writeUE(w, 10)
	writeUE(w, 8)
	w.WriteFlag(true)
	w.WriteFlag(true)
	w.WriteFlag(false)
	w.WriteFlag(false)
	w.WriteFlag(true)
	sps2 := buildNAL(0x67, w.Bytes())

	stream := annexB(sps1, sps2)
	r := esio.NewMemReader(stream)

	p := &Parser{dsiType: es.DSIAVCC}
	require.NoError(t, p.Init(r, 0, es.ExternalTiming{SingleSampleDescription: true}))

	_, err := p.GetSample()
	require.True(t, errs.Is(err, errs.KindMultiSdForbidden))
}

// buildSPSRBSPVariant mirrors buildSPSRBSP but with a different
// profile_idc, producing an SPS that collides on id (0) with a
// byte-different body.
func buildSPSRBSPVariant() []byte {
	w := bits.NewWriter()
	w.WriteBits(8, 77) // different profile_idc
	w.WriteBits(8, 0xc0)
	w.WriteBits(8, 30)
	writeUE(w, 0)
	writeUE(w, 0)
	writeUE(w, 2)
	writeUE(w, 1)
	w.WriteFlag(false)
	writeUE(w, 10)
	writeUE(w, 8)
	w.WriteFlag(true)
	w.WriteFlag(true)
	w.WriteFlag(false)
	w.WriteFlag(false)
	w.WriteFlag(true)
	return w.Bytes()
}

func TestParamSetCollisionMarksNewSampleDescriptionAndKeepsOldDSI(t *testing.T) {
	sps1 := buildNAL(0x67, buildSPSRBSP())
	pps := buildNAL(0x68, buildPPSRBSP())
	idrSlice := buildNAL(0x65, buildSliceRBSP(true, 0))
	sps2 := buildNAL(0x67, buildSPSRBSPVariant())
	pSlice := buildNAL(0x21, buildSliceRBSP(false, 1))

	stream := annexB(sps1, pps, idrSlice, sps2, pSlice)
	r := esio.NewMemReader(stream)

	p := &Parser{dsiType: es.DSIAVCC}
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
	require.Equal(t, uint8(77), cfgNow[1], "live avcC reflects the post-collision SPS")

	cfgOld, err := p.GetCfgForSample(0)
	require.NoError(t, err)
	require.Equal(t, uint8(66), cfgOld[1], "GetCfgForSample recovers the DSI active before the collision")
}
