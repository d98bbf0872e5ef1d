package avc

import (
	"bytes"

	"github.com/streamcore/esparser/common/errs"
)

// dsiSnapshot is a deep copy of the three parameter-set maps taken at the
// moment a collision forces a new sample description. It is the DSI that
// was active for every sample emitted before the clone, recoverable
// afterwards by generation number.
type dsiSnapshot struct {
	sps    map[uint32]*SPS
	pps    map[uint32]*PPS
	spsExt map[uint32]*SPSExt
}

func (d *dsiSnapshot) sortedSPS() []*SPS {
	out := make([]*SPS, 0, len(d.sps))
	for _, v := range d.sps {
		out = append(out, v)
	}
	sortSPS(out)
	return out
}

func (d *dsiSnapshot) sortedPPS() []*PPS {
	out := make([]*PPS, 0, len(d.pps))
	for _, v := range d.pps {
		out = append(out, v)
	}
	sortPPS(out)
	return out
}

func (d *dsiSnapshot) sortedSPSExt() []*SPSExt {
	out := make([]*SPSExt, 0, len(d.spsExt))
	for _, v := range d.spsExt {
		out = append(out, v)
	}
	sortSPSExt(out)
	return out
}

// paramSetStore deduplicates SPS/PPS/SPS-ext NALs by id and detects the
// byte-for-byte collisions that force a new sample description. A
// collision is two NALs sharing an id whose RBSP bytes differ; this is a
// mid-stream parameter-set change and requires either rejecting the
// stream (MultiSdForbidden, when ExternalTiming.SingleSampleDescription
// is set) or cloning the active DSI so the new sample description can
// diverge from the old one while sharing history before the collision.
//
// The DSI list is modelled as history (every past generation's snapshot,
// oldest first) plus the live maps (the current generation). Generation
// 0 is the live maps before any collision; generation N (N == len(history))
// is also the live maps once N collisions have happened; generations
// 0..N-1 are recovered from history[gen].
type paramSetStore struct {
	sps    map[uint32]*SPS
	pps    map[uint32]*PPS
	spsExt map[uint32]*SPSExt

	singleSampleDescription bool

	// history holds one cloned snapshot per collision, taken just before
	// the live maps are mutated to the new generation.
	history []*dsiSnapshot
}

func newParamSetStore(singleSampleDescription bool) *paramSetStore {
	return &paramSetStore{
		sps:                     map[uint32]*SPS{},
		pps:                     map[uint32]*PPS{},
		spsExt:                  map[uint32]*SPSExt{},
		singleSampleDescription: singleSampleDescription,
	}
}

// Generation returns the current DSI generation: 0 until the first
// collision, incrementing by one per collision thereafter.
func (s *paramSetStore) Generation() int {
	return len(s.history)
}

func (s *paramSetStore) snapshot() *dsiSnapshot {
	sps := make(map[uint32]*SPS, len(s.sps))
	for k, v := range s.sps {
		sps[k] = v
	}
	pps := make(map[uint32]*PPS, len(s.pps))
	for k, v := range s.pps {
		pps[k] = v
	}
	spsExt := make(map[uint32]*SPSExt, len(s.spsExt))
	for k, v := range s.spsExt {
		spsExt[k] = v
	}
	return &dsiSnapshot{sps: sps, pps: pps, spsExt: spsExt}
}

// clone pushes the current generation onto history before a collision
// mutates the live maps, giving the DSI list one more descriptor.
func (s *paramSetStore) clone() {
	s.history = append(s.history, s.snapshot())
}

// PutSPS stores sps, returning true if this is a collision (same id,
// different bytes) against an already-stored SPS.
func (s *paramSetStore) PutSPS(sps *SPS) (collided bool, err error) {
	if existing, ok := s.sps[sps.ID]; ok && !bytes.Equal(existing.Body(), sps.Body()) {
		if s.singleSampleDescription {
			return false, errs.New(errs.KindMultiSdForbidden, "SPS id collision with single sample description policy")
		}
		s.clone()
		s.sps[sps.ID] = sps
		return true, nil
	}
	s.sps[sps.ID] = sps
	return false, nil
}

// PutPPS stores pps, returning true if this is a collision.
func (s *paramSetStore) PutPPS(pps *PPS) (collided bool, err error) {
	if existing, ok := s.pps[pps.ID]; ok && !bytes.Equal(existing.Body(), pps.Body()) {
		if s.singleSampleDescription {
			return false, errs.New(errs.KindMultiSdForbidden, "PPS id collision with single sample description policy")
		}
		s.clone()
		s.pps[pps.ID] = pps
		return true, nil
	}
	s.pps[pps.ID] = pps
	return false, nil
}

// PutSPSExt stores an SPS-extension NAL; collisions follow the same
// policy as SPS/PPS.
func (s *paramSetStore) PutSPSExt(ext *SPSExt) (collided bool, err error) {
	if existing, ok := s.spsExt[ext.SPSID]; ok && !bytes.Equal(existing.Body(), ext.Body()) {
		if s.singleSampleDescription {
			return false, errs.New(errs.KindMultiSdForbidden, "SPS-ext id collision with single sample description policy")
		}
		s.clone()
		s.spsExt[ext.SPSID] = ext
		return true, nil
	}
	s.spsExt[ext.SPSID] = ext
	return false, nil
}

func (s *paramSetStore) SPS(id uint32) (*SPS, bool) {
	v, ok := s.sps[id]
	return v, ok
}

func (s *paramSetStore) PPS(id uint32) (*PPS, bool) {
	v, ok := s.pps[id]
	return v, ok
}

// ActiveSPSSorted returns every currently active SPS ordered by id, for
// deterministic avcC serialization.
func (s *paramSetStore) ActiveSPSSorted() []*SPS {
	out := make([]*SPS, 0, len(s.sps))
	for _, v := range s.sps {
		out = append(out, v)
	}
	sortSPS(out)
	return out
}

// ActivePPSSorted returns every currently active PPS ordered by id.
func (s *paramSetStore) ActivePPSSorted() []*PPS {
	out := make([]*PPS, 0, len(s.pps))
	for _, v := range s.pps {
		out = append(out, v)
	}
	sortPPS(out)
	return out
}

// ActiveSPSExtSorted returns every currently active SPS-ext ordered by
// the id of the SPS it extends.
func (s *paramSetStore) ActiveSPSExtSorted() []*SPSExt {
	out := make([]*SPSExt, 0, len(s.spsExt))
	for _, v := range s.spsExt {
		out = append(out, v)
	}
	sortSPSExt(out)
	return out
}

func sortSPS(v []*SPS) {
	for i := 1; i < len(v); i++ {
		for j := i; j > 0 && v[j-1].ID > v[j].ID; j-- {
			v[j-1], v[j] = v[j], v[j-1]
		}
	}
}

func sortPPS(v []*PPS) {
	for i := 1; i < len(v); i++ {
		for j := i; j > 0 && v[j-1].ID > v[j].ID; j-- {
			v[j-1], v[j] = v[j], v[j-1]
		}
	}
}

func sortSPSExt(v []*SPSExt) {
	for i := 1; i < len(v); i++ {
		for j := i; j > 0 && v[j-1].SPSID > v[j].SPSID; j-- {
			v[j-1], v[j] = v[j], v[j-1]
		}
	}
}
