package ac4

// Channel position bits, matching the CEA-861/WAVEFORMATEXTENSIBLE
// speaker-mask convention dec_cfg.dac4 expects downstream.
const (
	ChFL = 1 << iota
	ChFR
	ChFC
	ChLFE
	ChBL
	ChBR
	ChFLC
	ChFRC
	ChBC
	ChSL
	ChSR
	ChTFL
	ChTFR
	ChTBL
	ChTBR
	ChTC
)

// chanModeMaskTable is Table 81 (ETSI TS 103 190-1 §G.3): the nominal
// channel mask for each pres_ch_mode value 0..15.
var chanModeMaskTable = [16]uint32{
	0:  ChFC,
	1:  ChFL | ChFR,
	2:  ChFL | ChFR | ChLFE,
	3:  ChFL | ChFR | ChFC,
	4:  ChFL | ChFR | ChFC | ChLFE,
	5:  ChFL | ChFR | ChBL | ChBR,
	6:  ChFL | ChFR | ChLFE | ChBL | ChBR,
	7:  ChFL | ChFR | ChFC | ChBL | ChBR,
	8:  ChFL | ChFR | ChFC | ChLFE | ChBL | ChBR,
	9:  ChFL | ChFR | ChFC | ChLFE | ChBL | ChBR | ChSL | ChSR,
	10: ChFL | ChFR | ChFC | ChLFE | ChBL | ChBR | ChBC,
	11: ChFL | ChFR | ChFC | ChLFE | ChBL | ChBR | ChTFL | ChTFR,
	12: ChFL | ChFR | ChFC | ChLFE | ChBL | ChBR | ChTFL | ChTFR | ChTBL | ChTBR,
	13: ChFL | ChFR | ChFC | ChLFE | ChBL | ChBR | ChSL | ChSR | ChTFL | ChTFR,
	14: ChFL | ChFR | ChFC | ChLFE | ChBL | ChBR | ChSL | ChSR | ChTFL | ChTFR | ChTBL | ChTBR,
	15: ChFL | ChFR | ChFC | ChLFE | ChBL | ChBR | ChFLC | ChFRC,
}

// heightCorrection is Annex G.3.1's override: for the height-channel
// presentation modes (11-14, carrying top-front/back pairs), b_4_back_
// channels_present toggles between a 2-channel and 4-channel height bed,
// which the nominal table above cannot express with a single bit.
func heightCorrection(chanMode int, fourBackChannels bool) uint32 {
	base := chanModeMaskTable[chanMode]
	switch chanMode {
	case 11, 13:
		if fourBackChannels {
			return base | ChTBL | ChTBR
		}
	case 12, 14:
		if !fourBackChannels {
			return base &^ (ChTBL | ChTBR)
		}
	}
	return base
}

// ChannelMask derives the real_channel_mask emitted into dac4 for a
// presentation's effective channel mode, applying the Annex G.3.1
// height-channel correction only for modes 11-14 (TS 103 190-1 §G.3.1 —
// "only certain pres_ch_mode values require the override").
func ChannelMask(chanMode int, fourBackChannels bool) uint32 {
	if chanMode < 0 || chanMode > 15 {
		return 0
	}
	switch chanMode {
	case 11, 12, 13, 14:
		return heightCorrection(chanMode, fourBackChannels)
	default:
		return chanModeMaskTable[chanMode]
	}
}
