package hevc

import "github.com/streamcore/esparser/poc"

// Timing derives per-AU DTS/CTS from decoding order and the POC reorder
// buffer. HEVC HRD-based timing is out of scope; see DESIGN.md for the
// POC-only rationale.
type Timing struct {
	timeScale uint32
	auTicks   int64
	pocBuf    *poc.Buffer
}

func NewTiming(sps *SPS, numUnitsInTick, timeScale uint32, overrideFlag bool, reorderCapacity int) *Timing {
	t := &Timing{pocBuf: poc.NewBuffer(reorderCapacity)}
	switch {
	case overrideFlag:
		t.timeScale = timeScale
		t.auTicks = int64(numUnitsInTick)
	default:
		t.timeScale = 90000
		t.auTicks = 3000
	}
	return t
}

func (t *Timing) TimeScale() uint32 { return t.timeScale }

func (t *Timing) AddPicture(doc int, pictureOrderCnt int32, isIDR bool) {
	t.pocBuf.Add(doc, pictureOrderCnt, isIDR)
}

func (t *Timing) FlushPictures() { t.pocBuf.Flush() }

func (t *Timing) DTS(doc int) int64 { return int64(doc) * t.auTicks }

func (t *Timing) CTSFromPOC(doc int) int64 {
	n := t.pocBuf.ReorderNum(doc)
	if n == poc.NotReady {
		return int64(poc.NotReady)
	}
	return t.DTS(doc) + int64(n)*t.auTicks
}

// MinCTS returns the smallest CTS (in timescale units) across every AU the
// POC reorder buffer has resolved so far, or ok=false until at least one
// AU has been resolved.
func (t *Timing) MinCTS() (cts int64, ok bool) {
	m := t.pocBuf.MinCTS()
	if m == poc.NotReady {
		return 0, false
	}
	return t.DTS(m), true
}
