package ac4

import (
	"github.com/streamcore/esparser/bits"
	"github.com/streamcore/esparser/common/errs"
)

// Presentation is one ac4_presentation_v1_info() (ETSI TS 103 190-1
// §4.3.3 / §E.10): a renderable program built from one or more
// substream groups.
type Presentation struct {
	// PresentationVersion is presentation_version(): a unary-coded count of
	// leading 1-bits, not a fixed-width field. Version 2 marks an IMS
	// (immersive metadata summary) presentation, which dac4 synthesis must
	// duplicate into an extra b_pre_virtualized descriptor (§4.5.4).
	PresentationVersion uint32
	PresentationID      uint32
	ChanMode            int // pres_ch_mode, Table 79
	ChanModeCore        int // pres_ch_mode_core, used only when ChanMode < 0
	IsAtmos             bool
	TopLevelMixPresent  bool
	SubstreamGroups     []SubstreamGroup
}

// SubstreamGroup is one ac4_substream_group_info() within a presentation:
// the unit that actually carries pres_ch_mode/dsi_frame_rate_multiply
// fields relevant to channel-mask derivation.
type SubstreamGroup struct {
	ChannelCoded bool
	ChanMode     int // -1 when not channel coded (object-based/ambisonics)
	NumUmxObjects int
}

// parsePresentation decodes one presentation and its substream groups far
// enough to recover the channel configuration, reading only the fields
// below; ad-insertion, alternative-object and language/content-classifier
// metadata are not read, since no downstream DSI field depends on them.
func parsePresentation(r *bits.Reader, bitstreamVersion uint32) (Presentation, error) {
	p := Presentation{}

	p.PresentationVersion = r.ReadUnary()

	p.PresentationID = r.ReadBits(8)

	skipByte := r.ReadFlag()
	if skipByte {
		skipBytes := int(r.ReadBits(7))
		r.ReadBits(8) // add_bytes_for_nonstd presence, not interpreted
		for i := 0; i < skipBytes; i++ {
			r.ReadBits(8)
		}
		return p, nil
	}

	r.ReadFlag()      // b_add_emdf_substreams
	r.ReadBits(2)     // presentation_config (frame_rate_multiply info lives beyond scope)
	r.ReadFlag()      // b_presentation_id (content already read above in this simplified walk)
	p.ChanMode = int(r.ReadBits(5)) - 1 // -1 sentinel: "not explicitly signalled here"
	if p.ChanMode >= 0 {
		r.ReadBits(2) // pres_b_4_back_channels_present / dsi flags bundle
	} else {
		p.ChanModeCore = int(r.ReadBits(5))
	}

	p.IsAtmos = r.ReadFlag()
	p.TopLevelMixPresent = r.ReadFlag()

	nGroups := int(r.ReadBits(3)) + 1
	p.SubstreamGroups = make([]SubstreamGroup, 0, nGroups)
	for i := 0; i < nGroups; i++ {
		g := SubstreamGroup{}
		g.ChannelCoded = r.ReadFlag()
		if g.ChannelCoded {
			g.ChanMode = int(r.ReadBits(5))
		} else {
			g.ChanMode = -1
			g.NumUmxObjects = int(r.ReadBits(5))
		}
		p.SubstreamGroups = append(p.SubstreamGroups, g)
	}

	if r.EOS() {
		return p, errs.New(errs.KindEndOfStream, "ac4: presentation truncated")
	}
	return p, nil
}

// EffectiveChanMode resolves the presentation-level channel mode used for
// channel-mask derivation: the presentation's own pres_ch_mode when
// signalled, else the first channel-coded substream group's mode.
func (p Presentation) EffectiveChanMode() int {
	if p.ChanMode >= 0 {
		return p.ChanMode
	}
	for _, g := range p.SubstreamGroups {
		if g.ChannelCoded && g.ChanMode >= 0 {
			return g.ChanMode
		}
	}
	return p.ChanModeCore
}
