package avc

import (
	"github.com/streamcore/esparser/bits"
	"github.com/streamcore/esparser/poc"
)

// TimingMode selects how DTS/CTS are derived.
type TimingMode int

const (
	// TimingPOC derives DTS from decoding order and CTS from the POC
	// reorder buffer's output index — the default when no HRD is
	// signalled, or pic_struct_present_flag is false.
	TimingPOC TimingMode = iota
	// TimingHRD derives CTS from the pic_timing SEI's dpb_output_delay,
	// added to a DTS that is still decoding order times auTicks;
	// cpb_removal_delay is parsed but does not feed DTS. Only engaged
	// when an HRD is present in the VUI and pic_struct_present_flag is
	// set.
	TimingHRD
)

// Timing derives per-AU DTS/CTS in timescale units, switching between
// POC-based and HRD-based derivation per active SPS.
type Timing struct {
	mode      TimingMode
	timeScale uint32
	auTicks   int64 // timescale units per access unit at the nominal frame rate

	pocBuf *poc.Buffer

	hrd        HRDParameters
	hrdPresent bool
}

// NewTiming builds a Timing for the given active SPS and override
// config. reorderCapacity is the POC buffer depth (max_num_reorder_frames+1
// when the VUI carries bitstream_restriction, else max_num_ref_frames+1).
func NewTiming(sps *SPS, ext ExternalTiming, reorderCapacity int) *Timing {
	t := &Timing{pocBuf: poc.NewBuffer(reorderCapacity)}

	switch {
	case ext.OverrideFlag:
		t.timeScale = ext.TimeScale
		t.auTicks = int64(ext.NumUnitsInTick)
	case sps.VUIParametersPresentFlag && sps.VUI.TimingInfoPresentFlag:
		t.timeScale = sps.VUI.TimeScale
		t.auTicks = int64(sps.VUI.NumUnitsInTick) * 2
	default:
		t.timeScale = 90000
		t.auTicks = 3000 // 30fps fallback in 90kHz ticks
	}

	if sps.VUIParametersPresentFlag && (sps.VUI.NALHRDParametersPresentFlag || sps.VUI.VCLHRDParametersPresentFlag) && sps.VUI.PicStructPresentFlag {
		t.mode = TimingHRD
		t.hrdPresent = true
		if sps.VUI.NALHRDParametersPresentFlag {
			t.hrd = sps.VUI.NALHRD
		} else {
			t.hrd = sps.VUI.VCLHRD
		}
	} else {
		t.mode = TimingPOC
	}

	return t
}

// Mode reports which derivation strategy is active.
func (t *Timing) Mode() TimingMode { return t.mode }

// HRDParams returns the active NAL/VCL HRD parameters, valid only when
// Mode() == TimingHRD.
func (t *Timing) HRDParams() HRDParameters { return t.hrd }

// TimeScale is the output timescale DTS/CTS are expressed in.
func (t *Timing) TimeScale() uint32 { return t.timeScale }

// AddPicture feeds a decoded picture's POC into the reorder buffer. Only
// meaningful in TimingPOC mode.
func (t *Timing) AddPicture(doc int, pictureOrderCnt int32, isIDR bool) {
	t.pocBuf.Add(doc, pictureOrderCnt, isIDR)
}

// FlushPictures drains the POC reorder buffer (sequence end).
func (t *Timing) FlushPictures() { t.pocBuf.Flush() }

// DTS returns the decode timestamp for the AU at decoding-order index doc.
func (t *Timing) DTS(doc int) int64 {
	return int64(doc) * t.auTicks
}

// CTSFromPOC returns the composition timestamp for doc in TimingPOC mode,
// or poc.NotReady if the reorder buffer hasn't resolved doc yet.
func (t *Timing) CTSFromPOC(doc int) int64 {
	n := t.pocBuf.ReorderNum(doc)
	if n == poc.NotReady {
		return int64(poc.NotReady)
	}
	return t.DTS(doc) + int64(n)*t.auTicks
}

// MinCTS returns the smallest CTS (in timescale units) across every AU the
// POC reorder buffer has resolved so far, or ok=false until at least one
// AU has been resolved. Only meaningful in TimingPOC mode.
func (t *Timing) MinCTS() (cts int64, ok bool) {
	m := t.pocBuf.MinCTS()
	if m == poc.NotReady {
		return 0, false
	}
	return t.DTS(m), true
}

// PicTiming is the subset of pic_timing() SEI payload fields the HRD
// timing path consumes.
type PicTiming struct {
	CPBRemovalDelay uint32
	DPBOutputDelay  uint32
}

// ParsePicTimingSEI decodes a pic_timing SEI payload given the HRD
// parameters that size its fields. CpbDpbDelaysPresentFlag is implied by
// hrdPresent; pic_struct and the timing_info-derived clock_timestamp
// list are not needed for DTS/CTS and are left unparsed.
func ParsePicTimingSEI(payload []byte, hrd HRDParameters) PicTiming {
	r := bits.NewReader(payload)
	var pt PicTiming
	pt.CPBRemovalDelay = r.ReadBits(int(hrd.CPBRemovalDelayLengthMinus1) + 1)
	pt.DPBOutputDelay = r.ReadBits(int(hrd.DPBOutputDelayLengthMinus1) + 1)
	return pt
}

// CTSFromHRD converts a pic_timing SEI's dpb_output_delay into an offset
// added to DTS.
func (t *Timing) CTSFromHRD(doc int, pt PicTiming) int64 {
	return t.DTS(doc) + int64(pt.DPBOutputDelay)*t.auTicks
}
