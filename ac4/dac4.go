package ac4

import "github.com/streamcore/esparser/bits"

// BuildDAC4 serializes an AC4SpecificBox (dac4, ETSI TS 103 190-1 Annex
// E.13) from a decoded TOC plus the bitrate pair external timing
// supplies for ac4_bitrate_dsi (the TOC alone carries bit_rate_mode, not
// the bitrate/precision values themselves).
//
// ac4_dsi_v1() is bit-packed, so each presentation_v1_info() is built in
// two passes: first measuring its bit length with a scratch Writer, then
// emitting presentation_version, a length byte (or an 0xFF escape plus a
// 16-bit remainder when the body reaches 255 bytes or more), and the
// body itself. A presentation whose presentation_version is 2 (IMS) is
// followed by a second, duplicate descriptor: presentation_version
// hardcoded to 1 and the same body re-emitted with b_pre_virtualized
// set, so players that only understand the legacy presentation table
// shape still find a renderable entry.
func BuildDAC4(t *TOC, bitrate, bitratePrecision uint32) []byte {
	w := bits.NewWriter()

	w.WriteBits(3, 1) // ac4_dsi_version field, fixed '001'
	w.WriteBits(7, clampU32(t.BitstreamVersion, 127))
	w.WriteBits(1, uint32(t.FsIndex))
	w.WriteBits(4, uint32(t.FrameRateIndex))

	imsCount := 0
	for _, p := range t.Presentations {
		if p.PresentationVersion == 2 {
			imsCount++
		}
	}
	w.WriteBits(9, uint32(len(t.Presentations)+imsCount))

	payloadBits := 24 // the five fields written above sum to 24 bits

	if t.BitstreamVersion > 1 {
		w.WriteFlag(false) // b_program_id, not round-tripped into the box
		payloadBits++
	}

	w.WriteBits(2, uint32(t.BitRateMode))
	w.WriteBits(32, bitrate)
	w.WriteBits(32, bitratePrecision)
	payloadBits += 66

	if rem := payloadBits % 8; rem != 0 {
		w.WriteBits(8-rem, 0)
	}

	for _, p := range t.Presentations {
		emitPresentationEntry(w, p, false)
		if p.PresentationVersion == 2 {
			emitPresentationEntry(w, p, true)
		}
	}

	return w.Bytes()
}

// emitPresentationEntry writes one presentation_version+length+body
// table entry. duplicate marks the IMS-duplicate emission: its
// presentation_version byte is hardcoded to 1 regardless of p's own
// version, and its body carries b_pre_virtualized set.
func emitPresentationEntry(w *bits.Writer, p Presentation, duplicate bool) {
	pw := bits.NewWriter()
	ims := p.PresentationVersion == 2
	emitPresentationBody(pw, p, ims, duplicate)
	body := pw.Bytes()

	version := p.PresentationVersion
	if duplicate {
		version = 1
	}
	w.WriteBits(8, version)

	if len(body) >= 255 {
		w.WriteBits(8, 0xff)
		w.WriteBits(16, uint32(len(body)-255))
	} else {
		w.WriteBits(8, uint32(len(body)))
	}
	for _, b := range body {
		w.WriteBits(8, uint32(b))
	}
}

// emitPresentationBody writes presentation_v1_dsi()'s reduced field set
// plus the ims/b_pre_virtualized flags that drive IMS-duplicate
// synthesis; both flags are threaded through every presentation's body
// so the primary and duplicate emissions of a given presentation always
// measure to the same byte length.
func emitPresentationBody(pw *bits.Writer, p Presentation, ims, preVirtualized bool) {
	mode := p.EffectiveChanMode()
	pw.WriteBits(8, p.PresentationID)
	pw.WriteBits(5, uint32(mode+1)) // +1: 0 is reserved for "unsignalled"
	pw.WriteFlag(p.IsAtmos)
	pw.WriteFlag(p.TopLevelMixPresent)
	mask := ChannelMask(mode, len(p.SubstreamGroups) >= 4)
	pw.WriteBits(16, mask)
	pw.WriteBits(4, uint32(len(p.SubstreamGroups)))
	pw.WriteFlag(ims)
	pw.WriteFlag(preVirtualized)
}

func clampU32(v uint32, max uint32) uint32 {
	if v > max {
		return max
	}
	return v
}
