package hevc

import "github.com/streamcore/esparser/es"

// DoViNALs classifies the Dolby Vision side-NALs of an access unit: the
// RPU metadata NAL (type 62) is always carried verbatim; the
// enhancement-layer container (type 63) wraps an inner 2-byte NAL header
// the core never needs to interpret, so both are passed through
// unexamined rather than rewritten.
type DoViNALs struct {
	HasRPU bool
	HasEL  bool
}

// Observe records the presence of a DoVi side-NAL type seen in the
// current access unit.
func (d *DoViNALs) Observe(nalType uint8) {
	switch nalType {
	case NaluRPU:
		d.HasRPU = true
	case NaluDVEL:
		d.HasEL = true
	}
}

// BuildDVCC serializes a DOVIDecoderConfigurationRecord (dvcC) from the
// externally supplied profile/compatibility-id — a Dolby Vision profile
// cannot be recovered from the RPU bitstream alone without a full RPU
// syntax parse, which is out of scope here — and the side-NAL presence
// observed this AU.
func BuildDVCC(ext es.ExternalTiming, blPresent bool, dovi DoViNALs) []byte {
	buf := make([]byte, 24)
	buf[0] = 1 // dv_version_major
	buf[1] = 0 // dv_version_minor
	buf[2] = (ext.DVProfile & 0x7f) << 1
	if dovi.HasRPU {
		buf[2] |= 0 // rpu's level byte continues below; profile occupies high 7 bits of buf[2]
	}
	buf[3] = 0 // dv_level (unknown without RPU parse)
	flags := uint8(0)
	if dovi.HasRPU {
		flags |= 1 << 7
	}
	if dovi.HasEL {
		flags |= 1 << 6
	}
	if blPresent {
		flags |= 1 << 5
	}
	flags |= (ext.DVBLCompatID & 0xf) << 1
	buf[4] = flags
	return buf
}
