package avc

import "github.com/streamcore/esparser/bits"

// PPS is the subset of pic_parameter_set_rbsp() the AU-boundary detector
// and slice-header parser need: the SPS back-reference, the fields that
// feed first_mb_in_slice comparison, and redundant_pic_cnt_present_flag
// (needed for SampleHasRedundancy, spec DATA MODEL §3).
type PPS struct {
	ID    uint32
	SPSID uint32

	EntropyCodingModeFlag            bool
	BottomFieldPicOrderInFramePresent bool
	NumSliceGroupsMinus1              uint32

	NumRefIdxL0DefaultActiveMinus1 uint32
	NumRefIdxL1DefaultActiveMinus1 uint32

	WeightedPredFlag  bool
	WeightedBipredIDC uint8

	RedundantPicCntPresentFlag bool

	body []byte
}

// ParsePPS decodes a PPS RBSP (NAL header byte still present, emulation
// prevention still present).
func ParsePPS(nalBody []byte) (*PPS, error) {
	rbsp := bits.RemoveEmulationPrevention(nalBody)
	r := bits.NewReader(rbsp[1:])
	pps := &PPS{body: append([]byte(nil), nalBody...)}

	pps.ID = r.ReadUE()
	pps.SPSID = r.ReadUE()
	pps.EntropyCodingModeFlag = r.ReadFlag()
	pps.BottomFieldPicOrderInFramePresent = r.ReadFlag()
	pps.NumSliceGroupsMinus1 = r.ReadUE()
	if pps.NumSliceGroupsMinus1 > 0 {
		// slice_group_map_type and friends: not needed for AU-boundary
		// detection or DSI, and FMO is obsolete in practice. Parsing
		// would require the full slice_group_map_type switch; since no
		// downstream field depends on it, stop here rather than guess.
		return pps, nil
	}
	pps.NumRefIdxL0DefaultActiveMinus1 = r.ReadUE()
	pps.NumRefIdxL1DefaultActiveMinus1 = r.ReadUE()
	pps.WeightedPredFlag = r.ReadFlag()
	pps.WeightedBipredIDC = uint8(r.ReadBits(2))
	r.ReadSE() // pic_init_qp_minus26
	r.ReadSE() // pic_init_qs_minus26
	r.ReadSE() // chroma_qp_index_offset
	r.ReadFlag() // deblocking_filter_control_present_flag
	r.ReadFlag() // constrained_intra_pred_flag
	pps.RedundantPicCntPresentFlag = r.ReadFlag()

	return pps, nil
}

// Body returns the raw (escaped) NAL body, for parameter-set dedup.
func (p *PPS) Body() []byte { return p.body }
