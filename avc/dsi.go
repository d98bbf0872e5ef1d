package avc

import (
	"bytes"

	"github.com/streamcore/esparser/bits"
	"github.com/streamcore/esparser/common/errs"
)

// highProfiles lists the AVCProfileIndication values whose avcC carries
// the optional chroma/bit-depth/SPS-ext tail (ISO/IEC 14496-15 §5.3.3.1.2).
var highProfiles = map[uint8]bool{
	100: true, 110: true, 122: true, 244: true,
	44: true, 83: true, 86: true, 118: true,
	128: true, 138: true, 139: true, 134: true, 135: true,
}

// BuildAVCC serializes an AVCDecoderConfigurationRecord (avcC, ISO/IEC
// 14496-15 §5.3.3.1) from the store's currently active parameter sets.
// lengthSizeMinusOne is normally 3 (4-byte NAL length prefixes), matching
// the core's AU-boundary NAL-length framing.
func (s *paramSetStore) BuildAVCC(lengthSizeMinusOne uint8) ([]byte, error) {
	return buildAVCC(s.ActiveSPSSorted(), s.ActivePPSSorted(), s.ActiveSPSExtSorted(), lengthSizeMinusOne)
}

// BuildAVCCForGeneration rebuilds the avcC that was active under an
// earlier DSI-list generation, recovered from the clone a parameter-set
// collision pushes onto history. gen==s.Generation() is the live maps;
// any earlier gen is read back out of history.
func (s *paramSetStore) BuildAVCCForGeneration(gen int, lengthSizeMinusOne uint8) ([]byte, error) {
	if gen == s.Generation() {
		return s.BuildAVCC(lengthSizeMinusOne)
	}
	if gen < 0 || gen >= len(s.history) {
		return nil, errs.New(errs.KindNoConfig, "avcC: no DSI recorded for that sample description generation")
	}
	snap := s.history[gen]
	return buildAVCC(snap.sortedSPS(), snap.sortedPPS(), snap.sortedSPSExt(), lengthSizeMinusOne)
}

func buildAVCC(spsList []*SPS, ppsList []*PPS, extList []*SPSExt, lengthSizeMinusOne uint8) ([]byte, error) {
	if len(spsList) == 0 {
		return nil, errs.New(errs.KindNoConfig, "avcC: no active SPS")
	}

	var buf bytes.Buffer
	first := spsList[0]
	buf.WriteByte(1) // configurationVersion
	buf.WriteByte(first.ProfileIDC)
	buf.WriteByte(first.ConstraintFlags)
	buf.WriteByte(first.LevelIDC)
	buf.WriteByte(0xfc | (lengthSizeMinusOne & 0x3))

	if len(spsList) > 31 {
		return nil, errs.Newf(errs.KindNotSupported, "avcC: %d active SPS exceeds the 31 the 5-bit count field can hold", len(spsList))
	}
	buf.WriteByte(0xe0 | uint8(len(spsList)))
	for _, sps := range spsList {
		writeNALWithLength(&buf, sps.Body())
	}

	if len(ppsList) > 255 {
		return nil, errs.Newf(errs.KindNotSupported, "avcC: %d active PPS exceeds the 8-bit count field's range", len(ppsList))
	}
	buf.WriteByte(uint8(len(ppsList)))
	for _, pps := range ppsList {
		writeNALWithLength(&buf, pps.Body())
	}

	if highProfiles[first.ProfileIDC] {
		buf.WriteByte(0xfc | (first.ChromaFormatIDC & 0x3))
		buf.WriteByte(0xf8 | (first.BitDepthLumaMinus8 & 0x7))
		buf.WriteByte(0xf8 | (first.BitDepthChromaMinus8 & 0x7))

		if len(extList) > 255 {
			return nil, errs.Newf(errs.KindNotSupported, "avcC: %d active SPS-ext exceeds the 8-bit count field's range", len(extList))
		}
		buf.WriteByte(uint8(len(extList)))
		for _, ext := range extList {
			writeNALWithLength(&buf, ext.Body())
		}
	}

	return buf.Bytes(), nil
}

func writeNALWithLength(buf *bytes.Buffer, nal []byte) {
	var l [2]byte
	bits.PutU16BE(l[:], uint16(len(nal)))
	buf.Write(l[:])
	buf.Write(nal)
}
