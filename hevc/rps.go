package hevc

import "github.com/streamcore/esparser/bits"

// ShortTermRPS is a decoded short_term_ref_pic_set() (H.265 §7.3.7):
// the negative- and positive-delta-POC reference picture lists used to
// derive both the decoded picture buffer's marking state and this
// core's RPS-driven CTS ordering.
type ShortTermRPS struct {
	NumNegativePics int
	NumPositivePics int
	DeltaPocS0      []int32
	UsedByCurrPicS0 []bool
	DeltaPocS1      []int32
	UsedByCurrPicS1 []bool
}

// parseShortTermRPS decodes the stRpsIdx-th short_term_ref_pic_set(),
// with sets holding the candidates decoded before it. For stRpsIdx > 0
// inter_ref_pic_set_prediction_flag selects the inter-RPS-prediction form
// over the direct form; delta_idx_minus1 is read only when stRpsIdx ==
// len(sets) (the slice-header case, which may reference any earlier SPS
// candidate), otherwise prediction is from the immediately preceding set.
func parseShortTermRPS(r *bits.Reader, stRpsIdx int, sets []ShortTermRPS) ShortTermRPS {
	var interRPSPredictionFlag bool
	if stRpsIdx != 0 {
		interRPSPredictionFlag = r.ReadFlag()
	}

	if interRPSPredictionFlag {
		var deltaIdxMinus1 uint32
		if stRpsIdx == len(sets) {
			deltaIdxMinus1 = r.ReadUE()
		}
		refIdx := stRpsIdx - 1 - int(deltaIdxMinus1)
		deltaRPSSign := r.ReadFlag()
		absDeltaRPSMinus1 := r.ReadUE()
		deltaRPS := int32(absDeltaRPSMinus1) + 1
		if deltaRPSSign {
			deltaRPS = -deltaRPS
		}

		ref := sets[refIdx]
		numRefDeltaPocs := ref.NumNegativePics + ref.NumPositivePics
		usedByCurrPicFlag := make([]bool, numRefDeltaPocs+1)
		useDeltaFlag := make([]bool, numRefDeltaPocs+1)
		for j := 0; j <= numRefDeltaPocs; j++ {
			usedByCurrPicFlag[j] = r.ReadFlag()
			useDeltaFlag[j] = true
			if !usedByCurrPicFlag[j] {
				useDeltaFlag[j] = r.ReadFlag()
			}
		}
		return deriveInterRPS(ref, deltaRPS, usedByCurrPicFlag, useDeltaFlag)
	}

	var s ShortTermRPS
	s.NumNegativePics = int(r.ReadUE())
	s.NumPositivePics = int(r.ReadUE())
	s.DeltaPocS0 = make([]int32, s.NumNegativePics)
	s.UsedByCurrPicS0 = make([]bool, s.NumNegativePics)
	prev := int32(0)
	for i := 0; i < s.NumNegativePics; i++ {
		deltaPocS0Minus1 := r.ReadUE()
		prev -= int32(deltaPocS0Minus1) + 1
		s.DeltaPocS0[i] = prev
		s.UsedByCurrPicS0[i] = r.ReadFlag()
	}
	s.DeltaPocS1 = make([]int32, s.NumPositivePics)
	s.UsedByCurrPicS1 = make([]bool, s.NumPositivePics)
	prev = 0
	for i := 0; i < s.NumPositivePics; i++ {
		deltaPocS1Minus1 := r.ReadUE()
		prev += int32(deltaPocS1Minus1) + 1
		s.DeltaPocS1[i] = prev
		s.UsedByCurrPicS1[i] = r.ReadFlag()
	}
	return s
}

// deriveInterRPS implements the H.265 §7.4.8 derivation process for a
// short-term RPS predicted from a reference set.
func deriveInterRPS(ref ShortTermRPS, deltaRPS int32, usedByCurrPicFlag, useDeltaFlag []bool) ShortTermRPS {
	var s ShortTermRPS

	for j := ref.NumPositivePics - 1; j >= 0; j-- {
		dPoc := ref.DeltaPocS1[j] + deltaRPS
		idx := ref.NumNegativePics + j
		if dPoc < 0 && useDeltaFlag[idx] {
			s.DeltaPocS0 = append(s.DeltaPocS0, dPoc)
			s.UsedByCurrPicS0 = append(s.UsedByCurrPicS0, usedByCurrPicFlag[idx])
		}
	}
	if deltaRPS < 0 && useDeltaFlag[len(ref.DeltaPocS0)+len(ref.DeltaPocS1)] {
		s.DeltaPocS0 = append(s.DeltaPocS0, deltaRPS)
		s.UsedByCurrPicS0 = append(s.UsedByCurrPicS0, usedByCurrPicFlag[len(ref.DeltaPocS0)+len(ref.DeltaPocS1)])
	}
	for j := 0; j < ref.NumNegativePics; j++ {
		dPoc := ref.DeltaPocS0[j] + deltaRPS
		if dPoc < 0 && useDeltaFlag[j] {
			s.DeltaPocS0 = append(s.DeltaPocS0, dPoc)
			s.UsedByCurrPicS0 = append(s.UsedByCurrPicS0, usedByCurrPicFlag[j])
		}
	}
	s.NumNegativePics = len(s.DeltaPocS0)

	for j := ref.NumNegativePics - 1; j >= 0; j-- {
		dPoc := ref.DeltaPocS0[j] + deltaRPS
		if dPoc > 0 && useDeltaFlag[j] {
			s.DeltaPocS1 = append(s.DeltaPocS1, dPoc)
			s.UsedByCurrPicS1 = append(s.UsedByCurrPicS1, usedByCurrPicFlag[j])
		}
	}
	if deltaRPS > 0 && useDeltaFlag[len(ref.DeltaPocS0)+len(ref.DeltaPocS1)] {
		s.DeltaPocS1 = append(s.DeltaPocS1, deltaRPS)
		s.UsedByCurrPicS1 = append(s.UsedByCurrPicS1, usedByCurrPicFlag[len(ref.DeltaPocS0)+len(ref.DeltaPocS1)])
	}
	for j := 0; j < ref.NumPositivePics; j++ {
		dPoc := ref.DeltaPocS1[j] + deltaRPS
		idx := ref.NumNegativePics + j
		if dPoc > 0 && useDeltaFlag[idx] {
			s.DeltaPocS1 = append(s.DeltaPocS1, dPoc)
			s.UsedByCurrPicS1 = append(s.UsedByCurrPicS1, usedByCurrPicFlag[idx])
		}
	}
	s.NumPositivePics = len(s.DeltaPocS1)

	return s
}
