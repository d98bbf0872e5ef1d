package hevc

import (
	"bytes"

	"github.com/streamcore/esparser/bits"
	"github.com/streamcore/esparser/common/errs"
)

// nalArray is one hvcC "array" entry: a NAL type plus its NAL unit list.
type nalArray struct {
	nalUnitType uint8
	nalus       [][]byte
}

// BuildHVCC serializes an HEVCDecoderConfigurationRecord (hvcC, ISO/IEC
// 14496-15 §8.3.3.1) from the store's currently active parameter sets.
func (s *paramSetStore) BuildHVCC(lengthSizeMinusOne uint8) ([]byte, error) {
	return buildHVCC(s.ActiveVPSSorted(), s.ActiveSPSSorted(), s.ActivePPSSorted(), lengthSizeMinusOne)
}

// BuildHVCCForGeneration rebuilds the hvcC that was active under an
// earlier DSI-list generation, recovered from the clone a parameter-set
// collision pushes onto history.
func (s *paramSetStore) BuildHVCCForGeneration(gen int, lengthSizeMinusOne uint8) ([]byte, error) {
	if gen == s.Generation() {
		return s.BuildHVCC(lengthSizeMinusOne)
	}
	if gen < 0 || gen >= len(s.history) {
		return nil, errs.New(errs.KindNoConfig, "hvcC: no DSI recorded for that sample description generation")
	}
	snap := s.history[gen]
	return buildHVCC(sortedVPS(snap.vps), sortedSPSMap(snap.sps), sortedPPSMap(snap.pps), lengthSizeMinusOne)
}

func buildHVCC(vpsList []*VPS, spsList []*SPS, ppsList []*PPS, lengthSizeMinusOne uint8) ([]byte, error) {
	if len(spsList) == 0 {
		return nil, errs.New(errs.KindNoConfig, "hvcC: no active SPS")
	}
	sps := spsList[0]

	var buf bytes.Buffer
	buf.WriteByte(1) // configurationVersion
	buf.WriteByte(sps.PTL.GeneralProfileSpace<<6 | b2u8(sps.PTL.GeneralTierFlag)<<5 | sps.PTL.GeneralProfileIDC)
	put32(&buf, sps.PTL.GeneralProfileCompatibilityFlags)
	put48(&buf, sps.PTL.GeneralConstraintIndicatorFlags)
	buf.WriteByte(sps.PTL.GeneralLevelIDC)
	put16(&buf, 0xf000) // reserved(4)='1111' + min_spatial_segmentation_idc=0
	buf.WriteByte(0xfc) // reserved(6)+parallelismType=0
	buf.WriteByte(0xfc | (sps.ChromaFormatIDC & 0x3))
	buf.WriteByte(0xf8 | (sps.BitDepthLumaMinus8 & 0x7))
	buf.WriteByte(0xf8 | (sps.BitDepthChromaMinus8 & 0x7))
	put16(&buf, 0) // avgFrameRate: unknown/unconstrained
	numTemporalLayers := sps.MaxSubLayersMinus1 + 1
	constantFrameRate := uint8(0)
	temporalIDNested := b2u8(sps.TemporalIDNesting)
	buf.WriteByte(constantFrameRate<<6 | uint8(numTemporalLayers&0x7)<<3 | temporalIDNested<<2 | (lengthSizeMinusOne & 0x3))

	arrays := []nalArray{
		{nalUnitType: NaluVPS, nalus: bodiesOf(vpsList)},
		{nalUnitType: NaluSPS, nalus: spsBodies(spsList)},
		{nalUnitType: NaluPPS, nalus: ppsBodies(ppsList)},
	}
	var nonEmpty []nalArray
	for _, a := range arrays {
		if len(a.nalus) > 0 {
			nonEmpty = append(nonEmpty, a)
		}
	}

	buf.WriteByte(uint8(len(nonEmpty)))
	for _, a := range nonEmpty {
		buf.WriteByte(0x80 | a.nalUnitType) // array_completeness=1, reserved=0
		put16(&buf, uint16(len(a.nalus)))
		for _, n := range a.nalus {
			put16(&buf, uint16(len(n)))
			buf.Write(n)
		}
	}

	return buf.Bytes(), nil
}

func bodiesOf(v []*VPS) [][]byte {
	out := make([][]byte, len(v))
	for i, x := range v {
		out[i] = x.Body()
	}
	return out
}

func spsBodies(v []*SPS) [][]byte {
	out := make([][]byte, len(v))
	for i, x := range v {
		out[i] = x.Body()
	}
	return out
}

func ppsBodies(v []*PPS) [][]byte {
	out := make([][]byte, len(v))
	for i, x := range v {
		out[i] = x.Body()
	}
	return out
}

func b2u8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

func put16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	bits.PutU16BE(b[:], v)
	buf.Write(b[:])
}

func put32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	bits.PutU32BE(b[:], v)
	buf.Write(b[:])
}

func put48(buf *bytes.Buffer, v uint64) {
	for i := 5; i >= 0; i-- {
		buf.WriteByte(byte(v >> (8 * uint(i))))
	}
}
