// Package hevc implements the HEVC/H.265 elementary-stream parser:
// VPS/SPS/PPS decode, RPS-based POC derivation, AU-boundary detection,
// Dolby Vision side-NAL passthrough, and hvcC synthesis.
package hevc

// NAL unit types (ITU-T H.265 Table 7-1), the subset this core inspects.
const (
	NaluTrailN    = 0
	NaluTrailR    = 1
	NaluTSAN      = 2
	NaluTSAR      = 3
	NaluSTSAN     = 4
	NaluSTSAR     = 5
	NaluRADLN     = 6
	NaluRADLR     = 7
	NaluRASLN     = 8
	NaluRASLR     = 9
	NaluBLAWLP    = 16
	NaluBLAWRADL  = 17
	NaluBLANLP    = 18
	NaluIDRWRADL  = 19
	NaluIDRNLP    = 20
	NaluCRANUT    = 21
	NaluVPS       = 32
	NaluSPS       = 33
	NaluPPS       = 34
	NaluAUD       = 35
	NaluEOS       = 36
	NaluEOB       = 37
	NaluFillerData = 38
	NaluPrefixSEI  = 39
	NaluSuffixSEI  = 40
	NaluRPU        = 62 // Dolby Vision RPU (profile-dependent, side NAL)
	NaluDVEL       = 63 // Dolby Vision enhancement-layer container
)

// Header is the two-byte HEVC NAL header.
type Header struct {
	Type       uint8
	LayerID    uint8
	TemporalIDPlus1 uint8
}

func ParseHeader(b0, b1 byte) Header {
	return Header{
		Type:            (b0 >> 1) & 0x3f,
		LayerID:         ((b0 & 0x1) << 5) | (b1 >> 3),
		TemporalIDPlus1: b1 & 0x7,
	}
}

// IsVCL reports whether nalType carries slice segment data.
func IsVCL(nalType uint8) bool { return nalType <= 31 }

// IsIRAP reports whether nalType is an intra random access point
// (BLA/IDR/CRA, H.265 §7.4.2.2).
func IsIRAP(nalType uint8) bool { return nalType >= NaluBLAWLP && nalType <= 23 }

// IsIDR reports whether nalType is a coded slice segment of an IDR
// picture.
func IsIDR(nalType uint8) bool { return nalType == NaluIDRWRADL || nalType == NaluIDRNLP }

// IsBLA reports whether nalType is a broken-link-access picture.
func IsBLA(nalType uint8) bool { return nalType >= NaluBLAWLP && nalType <= NaluBLANLP }

// IsRASL reports whether nalType is a random-access skipped-leading
// picture (must be discarded when the preceding IRAP is a BLA/CRA).
func IsRASL(nalType uint8) bool { return nalType == NaluRASLN || nalType == NaluRASLR }

// IsSubLayerNonRef reports whether nalType carries a sub-layer
// non-reference picture (the "_N" suffix types).
func IsSubLayerNonRef(nalType uint8) bool {
	switch nalType {
	case NaluTrailN, NaluTSAN, NaluSTSAN, NaluRADLN, NaluRASLN:
		return true
	default:
		return false
	}
}
