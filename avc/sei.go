package avc

import "github.com/streamcore/esparser/bits"

// SEI payload types this core has any use for (ITU-T H.264 Annex D).
const (
	SEIBufferingPeriod  = 0
	SEIPicTiming        = 1
	SEIUserDataUnreg    = 5
	SEIRecoveryPoint     = 6
)

// SEIMessage is one sei_message() entry: a payload type, its raw
// (unescaped) payload bytes, and enough to re-serialize the ff-byte
// extension encoding of payloadType/payloadSize.
type SEIMessage struct {
	PayloadType int
	Payload     []byte
}

// ParseSEI splits an SEI NAL's RBSP into its constituent messages. NAL
// header byte still present; emulation prevention still present.
func ParseSEI(nalBody []byte) ([]SEIMessage, error) {
	rbsp := bits.RemoveEmulationPrevention(nalBody)
	buf := rbsp[1:] // skip NAL header byte
	var msgs []SEIMessage
	pos := 0
	for pos < len(buf) {
		if buf[pos] == 0x80 {
			break // rbsp_trailing_bits
		}
		payloadType := 0
		for pos < len(buf) && buf[pos] == 0xff {
			payloadType += 255
			pos++
		}
		if pos >= len(buf) {
			break
		}
		payloadType += int(buf[pos])
		pos++

		payloadSize := 0
		for pos < len(buf) && buf[pos] == 0xff {
			payloadSize += 255
			pos++
		}
		if pos >= len(buf) {
			break
		}
		payloadSize += int(buf[pos])
		pos++

		if pos+payloadSize > len(buf) {
			payloadSize = len(buf) - pos
		}
		payload := append([]byte(nil), buf[pos:pos+payloadSize]...)
		pos += payloadSize

		msgs = append(msgs, SEIMessage{PayloadType: payloadType, Payload: payload})
	}
	return msgs, nil
}

// FilterSEI drops messages for which keep returns false and re-encodes
// the remaining messages plus rbsp_trailing_bits into a fresh NAL body
// with emulation prevention re-applied — the only NAL type this core
// ever re-serializes rather than passing through. The 1-byte NAL header
// from the original body is preserved verbatim.
func FilterSEI(nalBody []byte, keep func(payloadType int) bool) ([]byte, error) {
	msgs, err := ParseSEI(nalBody)
	if err != nil {
		return nil, err
	}

	var kept []SEIMessage
	for _, m := range msgs {
		if keep(m.PayloadType) {
			kept = append(kept, m)
		}
	}

	w := bits.NewWriter()
	w.WriteBits(8, uint32(nalBody[0]))
	for _, m := range kept {
		encodeFFExtension(w, m.PayloadType)
		encodeFFExtension(w, len(m.Payload))
		for _, b := range m.Payload {
			w.WriteBits(8, uint32(b))
		}
	}
	w.WriteFlag(true) // rbsp_stop_one_bit
	w.FlushBits()     // rbsp_alignment_zero_bit padding

	return bits.AddEmulationPrevention(w.Bytes()), nil
}

func encodeFFExtension(w *bits.Writer, v int) {
	for v >= 255 {
		w.WriteBits(8, 0xff)
		v -= 255
	}
	w.WriteBits(8, uint32(v))
}
