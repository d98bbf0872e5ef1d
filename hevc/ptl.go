package hevc

import "github.com/streamcore/esparser/bits"

// ProfileTierLevel is the general_profile_* subset of profile_tier_level()
// hvcC needs (ISO/IEC 14496-15 §8.3.3.1); sub-layer profile/level data is
// consumed bit-for-bit to keep the reader aligned but not retained.
type ProfileTierLevel struct {
	GeneralProfileSpace              uint8
	GeneralTierFlag                  bool
	GeneralProfileIDC                uint8
	GeneralProfileCompatibilityFlags uint32
	GeneralConstraintIndicatorFlags  uint64 // 48 bits
	GeneralLevelIDC                  uint8
}

func parseProfileTierLevel(r *bits.Reader, profilePresentFlag bool, maxNumSubLayersMinus1 uint32) ProfileTierLevel {
	var ptl ProfileTierLevel
	if profilePresentFlag {
		ptl.GeneralProfileSpace = uint8(r.ReadBits(2))
		ptl.GeneralTierFlag = r.ReadFlag()
		ptl.GeneralProfileIDC = uint8(r.ReadBits(5))
		ptl.GeneralProfileCompatibilityFlags = r.ReadBits(32)
		// general_progressive_source_flag, general_interlaced_source_flag,
		// general_non_packed_constraint_flag, general_frame_only_constraint_flag
		flags := uint64(r.ReadBits(4))
		hi := uint64(r.ReadBits(32))
		lo := uint64(r.ReadBits(11))
		inbld := uint64(r.ReadBits(1)) // general_inbld_flag / reserved
		ptl.GeneralConstraintIndicatorFlags = flags<<44 | hi<<12 | lo<<1 | inbld
	}
	ptl.GeneralLevelIDC = uint8(r.ReadBits(8))

	subLayerProfilePresent := make([]bool, maxNumSubLayersMinus1)
	subLayerLevelPresent := make([]bool, maxNumSubLayersMinus1)
	for i := uint32(0); i < maxNumSubLayersMinus1; i++ {
		subLayerProfilePresent[i] = r.ReadFlag()
		subLayerLevelPresent[i] = r.ReadFlag()
	}
	if maxNumSubLayersMinus1 > 0 {
		for i := maxNumSubLayersMinus1; i < 8; i++ {
			r.ReadBits(2) // reserved_zero_2bits
		}
	}
	for i := uint32(0); i < maxNumSubLayersMinus1; i++ {
		if subLayerProfilePresent[i] {
			r.ReadBits(32) // profile_space/tier/idc/compat flags (first 38 bits) ...
			r.ReadBits(32)
			r.ReadBits(24) // remaining bits of the 88-bit sub-layer profile block
		}
		if subLayerLevelPresent[i] {
			r.ReadBits(8)
		}
	}
	return ptl
}
