package avc

import "github.com/streamcore/esparser/bits"

// SPSExt is seq_parameter_set_extension_rbsp(): only ever needed verbatim
// for avcC's optional extension list, never interpreted by timing or POC
// logic.
type SPSExt struct {
	SPSID uint32
	body  []byte
}

// ParseSPSExt extracts just the seq_parameter_set_id so the extension can
// be associated with its parent SPS; the remaining aux-format fields are
// stored opaquely in body and carried through to the DSI unparsed.
func ParseSPSExt(nalBody []byte) (*SPSExt, error) {
	rbsp := bits.RemoveEmulationPrevention(nalBody)
	r := bits.NewReader(rbsp[1:])
	return &SPSExt{
		SPSID: r.ReadUE(),
		body:  append([]byte(nil), nalBody...),
	}, nil
}

func (e *SPSExt) Body() []byte { return e.body }
