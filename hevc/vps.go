package hevc

import "github.com/streamcore/esparser/bits"

// VPS is video_parameter_set_rbsp(): the core only needs its id for
// dedup and its raw bytes for hvcC's VPS NAL array.
type VPS struct {
	ID   uint32
	body []byte
}

// ParseVPS extracts vps_video_parameter_set_id (first 4 bits after the
// 2-byte NAL header) from a VPS NAL.
func ParseVPS(nalBody []byte) (*VPS, error) {
	rbsp := bits.RemoveEmulationPrevention(nalBody)
	r := bits.NewReader(rbsp[2:]) // skip 2-byte NAL header
	return &VPS{
		ID:   r.ReadBits(4),
		body: append([]byte(nil), nalBody...),
	}, nil
}

func (v *VPS) Body() []byte { return v.body }
