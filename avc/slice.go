package avc

import "github.com/streamcore/esparser/bits"

// SliceType values (spec_type % 5): 0=P, 1=B, 2=I, 3=SP, 4=SI.
const (
	SliceP  = 0
	SliceB  = 1
	SliceI  = 2
	SliceSP = 3
	SliceSI = 4
)

// SliceHeader is the subset of slice_header() needed for AU-boundary
// detection and POC derivation; macroblock prediction/reference-list
// fields are out of scope since no downstream consumer needs them.
type SliceHeader struct {
	FirstMbInSlice uint32
	SliceType      uint32
	PPSID          uint32

	FrameNum uint32

	FieldPicFlag    bool
	BottomFieldFlag bool

	IDRPicID uint32 // only valid when IsIDR

	PicOrderCntLsb        uint32
	DeltaPicOrderCntBottom int32
	DeltaPicOrderCnt0      int32
	DeltaPicOrderCnt1      int32

	RedundantPicCnt uint32

	NalRefIdc uint8
	IsIDR     bool
}

// ParseSliceHeader decodes slice_header() from a VCL NAL body (header
// byte included, emulation prevention still present). sps/pps must be
// the ones the slice's pic_parameter_set_id resolves to.
func ParseSliceHeader(nalBody []byte, nalHeader Header, sps *SPS, pps *PPS) (*SliceHeader, error) {
	rbsp := bits.RemoveEmulationPrevention(nalBody)
	r := bits.NewReader(rbsp[1:])

	sh := &SliceHeader{
		NalRefIdc: nalHeader.RefIDC,
		IsIDR:     IsIDR(nalHeader.Type),
	}

	sh.FirstMbInSlice = r.ReadUE()
	sh.SliceType = r.ReadUE() % 5
	sh.PPSID = r.ReadUE()
	if sps.SeparateColourPlane {
		r.ReadBits(2) // colour_plane_id
	}
	sh.FrameNum = r.ReadBits(int(sps.Log2MaxFrameNumMinus4) + 4)
	if !sps.FrameMbsOnlyFlag {
		sh.FieldPicFlag = r.ReadFlag()
		if sh.FieldPicFlag {
			sh.BottomFieldFlag = r.ReadFlag()
		}
	}
	if sh.IsIDR {
		sh.IDRPicID = r.ReadUE()
	}
	if sps.PicOrderCntType == 0 {
		sh.PicOrderCntLsb = r.ReadBits(int(sps.Log2MaxPicOrderCntLsbMinus4) + 4)
		if pps.BottomFieldPicOrderInFramePresent && !sh.FieldPicFlag {
			sh.DeltaPicOrderCntBottom = r.ReadSE()
		}
	} else if sps.PicOrderCntType == 1 && !sps.DeltaPicOrderAlwaysZeroFlag {
		sh.DeltaPicOrderCnt0 = r.ReadSE()
		if pps.BottomFieldPicOrderInFramePresent && !sh.FieldPicFlag {
			sh.DeltaPicOrderCnt1 = r.ReadSE()
		}
	}
	if pps.RedundantPicCntPresentFlag {
		sh.RedundantPicCnt = r.ReadUE()
	}

	return sh, nil
}

// IsNewAccessUnit implements the first-VCL-NAL-of-a-primary-coded-
// picture test (ITU-T H.264 §7.4.1.2.4): any of these fields differing
// between two consecutive VCL NALs means they belong to different
// access units.
func IsNewAccessUnit(prev, cur *SliceHeader) bool {
	if prev == nil {
		return true
	}
	if cur.FrameNum != prev.FrameNum {
		return true
	}
	if cur.PPSID != prev.PPSID {
		return true
	}
	if cur.FieldPicFlag != prev.FieldPicFlag {
		return true
	}
	if cur.FieldPicFlag && cur.BottomFieldFlag != prev.BottomFieldFlag {
		return true
	}
	if (cur.NalRefIdc == 0) != (prev.NalRefIdc == 0) {
		return true
	}
	if cur.IsIDR != prev.IsIDR {
		return true
	}
	if cur.IsIDR && cur.IDRPicID != prev.IDRPicID {
		return true
	}
	if cur.PicOrderCntLsb != prev.PicOrderCntLsb || cur.DeltaPicOrderCntBottom != prev.DeltaPicOrderCntBottom {
		return true
	}
	if cur.DeltaPicOrderCnt0 != prev.DeltaPicOrderCnt0 || cur.DeltaPicOrderCnt1 != prev.DeltaPicOrderCnt1 {
		return true
	}
	return false
}

// PicOrderCntType0State derives POC for pic_order_cnt_type==0 (ITU-T H.264
// §8.2.1.1), tracking the running max-POC-LSB/MSB state across pictures.
type PicOrderCntType0State struct {
	prevPicOrderCntMsb int32
	prevPicOrderCntLsb uint32
}

// Derive returns the picture order count for the current slice header
// and updates the running state. maxPicOrderCntLsb is 1<<(log2_max_pic_order_cnt_lsb_minus4+4).
func (st *PicOrderCntType0State) Derive(sh *SliceHeader, maxPicOrderCntLsb uint32) int32 {
	if sh.IsIDR {
		st.prevPicOrderCntMsb = 0
		st.prevPicOrderCntLsb = 0
	}

	var picOrderCntMsb int32
	half := int32(maxPicOrderCntLsb / 2)
	switch {
	case sh.PicOrderCntLsb < st.prevPicOrderCntLsb && st.prevPicOrderCntLsb-sh.PicOrderCntLsb >= uint32(half):
		picOrderCntMsb = st.prevPicOrderCntMsb + int32(maxPicOrderCntLsb)
	case int32(sh.PicOrderCntLsb) > int32(st.prevPicOrderCntLsb) && int32(sh.PicOrderCntLsb)-int32(st.prevPicOrderCntLsb) > half:
		picOrderCntMsb = st.prevPicOrderCntMsb - int32(maxPicOrderCntLsb)
	default:
		picOrderCntMsb = st.prevPicOrderCntMsb
	}

	poc := picOrderCntMsb + int32(sh.PicOrderCntLsb)

	if sh.NalRefIdc != 0 {
		st.prevPicOrderCntMsb = picOrderCntMsb
		st.prevPicOrderCntLsb = sh.PicOrderCntLsb
	}

	return poc
}
