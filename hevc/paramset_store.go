package hevc

import (
	"bytes"

	"github.com/streamcore/esparser/common/errs"
)

// dsiSnapshot is a deep copy of the VPS/SPS/PPS maps taken at the moment
// a collision forces a new sample description, recoverable afterwards by
// generation number.
type dsiSnapshot struct {
	vps map[uint32]*VPS
	sps map[uint32]*SPS
	pps map[uint32]*PPS
}

func sortedVPS(m map[uint32]*VPS) []*VPS {
	out := make([]*VPS, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1].ID > out[j].ID; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

func sortedSPSMap(m map[uint32]*SPS) []*SPS {
	out := make([]*SPS, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1].ID > out[j].ID; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

func sortedPPSMap(m map[uint32]*PPS) []*PPS {
	out := make([]*PPS, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1].ID > out[j].ID; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// paramSetStore mirrors the AVC parameter-set store (collision-triggers
// a new sample description, or MultiSdForbidden under a single-sample-
// description policy), extended with VPS.
type paramSetStore struct {
	vps map[uint32]*VPS
	sps map[uint32]*SPS
	pps map[uint32]*PPS

	singleSampleDescription bool

	// history holds one cloned snapshot per collision, taken just before
	// the live maps are mutated to the new generation.
	history []*dsiSnapshot
}

func newParamSetStore(singleSampleDescription bool) *paramSetStore {
	return &paramSetStore{
		vps:                     map[uint32]*VPS{},
		sps:                     map[uint32]*SPS{},
		pps:                     map[uint32]*PPS{},
		singleSampleDescription: singleSampleDescription,
	}
}

// Generation returns the current DSI generation: 0 until the first
// collision, incrementing by one per collision thereafter.
func (s *paramSetStore) Generation() int {
	return len(s.history)
}

func (s *paramSetStore) snapshot() *dsiSnapshot {
	vps := make(map[uint32]*VPS, len(s.vps))
	for k, v := range s.vps {
		vps[k] = v
	}
	sps := make(map[uint32]*SPS, len(s.sps))
	for k, v := range s.sps {
		sps[k] = v
	}
	pps := make(map[uint32]*PPS, len(s.pps))
	for k, v := range s.pps {
		pps[k] = v
	}
	return &dsiSnapshot{vps: vps, sps: sps, pps: pps}
}

func (s *paramSetStore) clone() {
	s.history = append(s.history, s.snapshot())
}

func (s *paramSetStore) PutVPS(v *VPS) (bool, error) {
	if existing, ok := s.vps[v.ID]; ok && !bytes.Equal(existing.Body(), v.Body()) {
		if s.singleSampleDescription {
			return false, errs.New(errs.KindMultiSdForbidden, "VPS id collision with single sample description policy")
		}
		s.clone()
		s.vps[v.ID] = v
		return true, nil
	}
	s.vps[v.ID] = v
	return false, nil
}

func (s *paramSetStore) PutSPS(v *SPS) (bool, error) {
	if existing, ok := s.sps[v.ID]; ok && !bytes.Equal(existing.Body(), v.Body()) {
		if s.singleSampleDescription {
			return false, errs.New(errs.KindMultiSdForbidden, "SPS id collision with single sample description policy")
		}
		s.clone()
		s.sps[v.ID] = v
		return true, nil
	}
	s.sps[v.ID] = v
	return false, nil
}

func (s *paramSetStore) PutPPS(v *PPS) (bool, error) {
	if existing, ok := s.pps[v.ID]; ok && !bytes.Equal(existing.Body(), v.Body()) {
		if s.singleSampleDescription {
			return false, errs.New(errs.KindMultiSdForbidden, "PPS id collision with single sample description policy")
		}
		s.clone()
		s.pps[v.ID] = v
		return true, nil
	}
	s.pps[v.ID] = v
	return false, nil
}

func (s *paramSetStore) SPS(id uint32) (*SPS, bool) { v, ok := s.sps[id]; return v, ok }
func (s *paramSetStore) PPS(id uint32) (*PPS, bool) { v, ok := s.pps[id]; return v, ok }

func (s *paramSetStore) ActiveVPSSorted() []*VPS { return sortedVPS(s.vps) }
func (s *paramSetStore) ActiveSPSSorted() []*SPS { return sortedSPSMap(s.sps) }
func (s *paramSetStore) ActivePPSSorted() []*PPS { return sortedPPSMap(s.pps) }
