package hevc

import "github.com/streamcore/esparser/bits"

// PPS is the subset of pic_parameter_set_rbsp() needed to parse
// slice_segment_header(): the three fields that gate early
// slice-header syntax elements this core's AU-boundary/POC logic reads.
type PPS struct {
	ID    uint32
	SPSID uint32

	DependentSliceSegmentsEnabledFlag bool
	OutputFlagPresentFlag             bool
	NumExtraSliceHeaderBits           uint8
	CabacInitPresentFlag              bool

	body []byte
}

// ParsePPS decodes an HEVC PPS NAL (2-byte NAL header present).
func ParsePPS(nalBody []byte) (*PPS, error) {
	rbsp := bits.RemoveEmulationPrevention(nalBody)
	r := bits.NewReader(rbsp[2:])
	pps := &PPS{body: append([]byte(nil), nalBody...)}

	pps.ID = r.ReadUE()
	pps.SPSID = r.ReadUE()
	pps.DependentSliceSegmentsEnabledFlag = r.ReadFlag()
	pps.OutputFlagPresentFlag = r.ReadFlag()
	pps.NumExtraSliceHeaderBits = uint8(r.ReadBits(3))
	r.ReadFlag() // sign_data_hiding_enabled_flag
	pps.CabacInitPresentFlag = r.ReadFlag()

	return pps, nil
}

func (p *PPS) Body() []byte { return p.body }
