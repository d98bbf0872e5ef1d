package hevc

// POCState tracks the running prevTid0POC state needed to derive each
// picture's POC (H.265 §8.3.1), with MSB rollover relative to the
// previous TemporalId==0 reference picture.
type POCState struct {
	prevPicOrderCntLsb uint32
	prevPicOrderCntMsb int32
	have               bool
}

// Derive returns the picture order count for a slice segment given its
// decoded slice_pic_order_cnt_lsb, and updates the running state when
// the picture is a reference at TemporalId 0 (sub-layer non-reference
// pictures never update prevTid0POC, per the standard).
func (st *POCState) Derive(nalType uint8, temporalID uint8, picOrderCntLsb uint32, maxPicOrderCntLsb uint32) int32 {
	if IsIDR(nalType) {
		st.prevPicOrderCntLsb = 0
		st.prevPicOrderCntMsb = 0
		st.have = true
		return 0
	}

	if IsBLA(nalType) || !st.have {
		st.have = true
		if temporalID == 0 && !IsRASL(nalType) && !IsSubLayerNonRef(nalType) {
			st.prevPicOrderCntLsb = picOrderCntLsb
			st.prevPicOrderCntMsb = 0
		}
		return int32(picOrderCntLsb)
	}

	half := int32(maxPicOrderCntLsb / 2)
	var picOrderCntMsb int32
	switch {
	case int32(picOrderCntLsb) < int32(st.prevPicOrderCntLsb) && int32(st.prevPicOrderCntLsb)-int32(picOrderCntLsb) >= half:
		picOrderCntMsb = st.prevPicOrderCntMsb + int32(maxPicOrderCntLsb)
	case int32(picOrderCntLsb) > int32(st.prevPicOrderCntLsb) && int32(picOrderCntLsb)-int32(st.prevPicOrderCntLsb) > half:
		picOrderCntMsb = st.prevPicOrderCntMsb - int32(maxPicOrderCntLsb)
	default:
		picOrderCntMsb = st.prevPicOrderCntMsb
	}

	poc := picOrderCntMsb + int32(picOrderCntLsb)

	if temporalID == 0 && !IsRASL(nalType) && !IsSubLayerNonRef(nalType) {
		st.prevPicOrderCntLsb = picOrderCntLsb
		st.prevPicOrderCntMsb = picOrderCntMsb
	}

	return poc
}
