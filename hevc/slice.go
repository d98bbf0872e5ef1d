package hevc

import (
	stdbits "math/bits"

	"github.com/streamcore/esparser/bits"
)

// Slice types (H.265 Table 7-7).
const (
	SliceB = 0
	SliceP = 1
	SliceI = 2
)

// SliceHeader is the subset of slice_segment_header() needed for
// POC derivation and coarse type classification. Parsing stops once
// these are known; deblocking/SAO/weighted-prediction fields are never
// read since nothing downstream consumes them.
type SliceHeader struct {
	FirstSliceSegmentInPicFlag bool
	PPSID                      uint32
	SliceType                  uint32
	PicOrderCntLsb             uint32
	RPS                        ShortTermRPS
}

// ParseSliceHeader decodes the first slice segment of a picture (the
// only one this core inspects — trailing dependent segments of the same
// picture carry no new AU-boundary or POC information).
func ParseSliceHeader(nalBody []byte, nalType uint8, sps *SPS, pps *PPS) (*SliceHeader, error) {
	rbsp := bits.RemoveEmulationPrevention(nalBody)
	r := bits.NewReader(rbsp[2:])

	sh := &SliceHeader{}
	sh.FirstSliceSegmentInPicFlag = r.ReadFlag()
	if IsIRAP(nalType) {
		r.ReadFlag() // no_output_of_prior_pics_flag
	}
	sh.PPSID = r.ReadUE()
	if !sh.FirstSliceSegmentInPicFlag {
		return sh, nil
	}

	for i := uint8(0); i < pps.NumExtraSliceHeaderBits; i++ {
		r.ReadFlag()
	}
	sh.SliceType = r.ReadUE()
	if pps.OutputFlagPresentFlag {
		r.ReadFlag()
	}
	if sps.SeparateColourPlane {
		r.ReadBits(2)
	}

	if !IsIDR(nalType) {
		maxPocLsb := uint32(1) << (sps.Log2MaxPicOrderCntLsbMinus4 + 4)
		sh.PicOrderCntLsb = r.ReadBits(int(sps.Log2MaxPicOrderCntLsbMinus4) + 4)
		_ = maxPocLsb
		shortTermRPSSPSFlag := r.ReadFlag()
		if !shortTermRPSSPSFlag {
			sh.RPS = parseShortTermRPS(r, len(sps.ShortTermRPSList), sps.ShortTermRPSList)
		} else if len(sps.ShortTermRPSList) > 1 {
			nbits := ceilLog2(len(sps.ShortTermRPSList))
			idx := r.ReadBits(nbits)
			sh.RPS = sps.ShortTermRPSList[idx]
		} else if len(sps.ShortTermRPSList) == 1 {
			sh.RPS = sps.ShortTermRPSList[0]
		}
	}

	return sh, nil
}

func ceilLog2(n int) int {
	if n <= 1 {
		return 0
	}
	return stdbits.Len(uint(n - 1))
}
