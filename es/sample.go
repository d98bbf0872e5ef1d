// Package es defines the parser-facing contract every codec parser
// implements: the Sample/NAL-ref/DSI types the caller sees, the Flags
// bits, and the Parser interface itself. Individual codec packages (avc,
// hevc, ac4, aac, ac3, ec3) register constructors with the factory in
// this package; callers never import a codec package directly.
package es

import "github.com/streamcore/esparser/esio"

// Flags are bit flags set on a Sample.
type Flags uint32

const (
	// FlagSync marks a sync sample (IDR / random-access point).
	FlagSync Flags = 1 << iota
	// FlagNewSampleDescription marks the first sample after a
	// parameter-set collision forced a new DSI record.
	FlagNewSampleDescription
)

// PictureType classifies an AVC/HEVC access unit.
type PictureType int

const (
	PictureTypeOther PictureType = iota
	PictureTypeI
	PictureTypeIDRNoLeading
	PictureTypeIDRWLeading
)

// FrameType is the coarse I/P/B classification.
type FrameType int

const (
	FrameTypeOther FrameType = iota
	FrameTypeI
	FrameTypeP
	FrameTypeB
)

// NALRef points at one constituent NAL of a Sample, either by file offset
// (NAL still lives in the source ES and will be copied out on demand) or
// by an already-materialised in-memory buffer (e.g. a rewritten SEI).
type NALRef struct {
	FileOffset    int64
	Embedded      []byte
	Size          int
	StartCodeSize int
}

// Sample is one access unit, emitted by Parser.GetSample.
type Sample struct {
	DTS      int64
	CTS      int64
	Duration int64
	Size     int64
	Flags    Flags

	NALs []NALRef

	SampleDependsOn      int // 2 iff IDR, else 1
	SampleIsDependedOn   int // 2 iff nal_ref_idc==0, else 1
	SampleHasRedundancy  int // 1 iff redundant_pic_cnt>0, else 2
	PictureType          PictureType
	FrameType            FrameType

	// DSIGeneration identifies which entry of the codec's DSI list was
	// active when this sample's access unit began. It only advances on a
	// parameter-set collision; GetCfgForSample (where a Parser implements
	// it) recovers the DSI bytes for a generation older than the current
	// one.
	DSIGeneration int
}

// ExternalTiming is supplied at Init: overrides and auxiliary parameters
// the core cannot recover from the bitstream alone.
type ExternalTiming struct {
	NumUnitsInTick      uint32
	TimeScale           uint32
	OverrideFlag        bool
	DVProfile           uint8
	DVBLCompatID        uint8
	AC4Bitrate          uint32
	AC4BitratePrecision uint32
	// KeepAllNALUs disables the SEI-drop and parameter-set-dedup
	// in-band suppression the parsers otherwise apply.
	KeepAllNALUs bool
	// SingleSampleDescription forces MultiSdForbidden on any
	// parameter-set collision instead of cloning a new DSI record.
	SingleSampleDescription bool
}

// ParamID is the opaque query key for Parser.GetParam.
type ParamID int

const (
	ParamTimeScale ParamID = iota
	ParamNumUnitsInTick
	ParamProfile
	ParamLevel
	ParamWidth
	ParamHeight
	ParamChromaFormat
	ParamBitDepthLuma
	ParamBitDepthChroma
	ParamSARWidth
	ParamSARHeight
	ParamAC4Bitrate
	ParamAC4BitratePrecision
	ParamCPBSize
	// ParamBitRate is the nominal bit rate in kbps, where a codec's
	// framing signals one directly (e.g. AC-3's frmsizecod).
	ParamBitRate
	// ParamMinCTS is the smallest CTS (in timescale units) seen across
	// every AU resolved by the POC reorder buffer so far, letting a
	// caller shift an edit list so composition time never goes negative.
	ParamMinCTS
)

// DSICodec names the canonical DSI record family a Parser emits.
type DSICodec string

const (
	DSIAVCC DSICodec = "avcC"
	DSIHVCC DSICodec = "hvcC"
	DSIDAC4 DSICodec = "dac4"
	DSIESDS DSICodec = "esds"
	DSIDAC3 DSICodec = "dac3"
	DSIDEC3 DSICodec = "dec3"
)

// Parser is the capability set every codec variant implements. One Parser
// instance is bound to one input stream.
type Parser interface {
	// Init binds the parser to r and records external timing overrides.
	Init(r esio.ByteReader, esIdx int, timing ExternalTiming) error
	// GetSample returns the next access unit in decoding order, or
	// errs.ErrEndOfStream.
	GetSample() (*Sample, error)
	// GetSubSample randomly accesses one constituent NAL of a
	// previously-returned sample, identified by its position among
	// GetSample's return sequence.
	GetSubSample(samplePos, subIdx int) (NALRef, error)
	// CopySample materialises samplePos by writing length-prefixed NAL
	// units to w.
	CopySample(w esio.ByteWriter, samplePos int) error
	// GetCfg returns the current DSI record bytes (avcC/hvcC/dac4/esds).
	GetCfg() ([]byte, error)
	// GetParam answers an opaque parameter query.
	GetParam(id ParamID) (uint32, error)
	// Destroy releases parser-owned resources.
	Destroy()
}
