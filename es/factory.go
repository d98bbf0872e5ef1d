package es

import (
	"github.com/pkg/errors"
)

// Constructor builds a fresh, uninitialised Parser for one codec.
type Constructor func(dsiType DSICodec) Parser

var registry = map[string]Constructor{}

// Register associates a codec name with its Parser constructor. Codec
// packages call this from an init() func so the factory never imports
// avc/hevc/ac4/aac/ac3/ec3 directly — each constructor is held behind a
// factory keyed by codec name instead.
func Register(codecName string, ctor Constructor) {
	registry[codecName] = ctor
}

// CreateParser looks up the registered constructor for codecName and
// returns a fresh Parser bound to dsiType. codecName is one of "avc",
// "hevc", "ac4", "aac", "ac3", "ec3".
func CreateParser(codecName string, dsiType DSICodec) (Parser, error) {
	ctor, ok := registry[codecName]
	if !ok {
		return nil, errors.Errorf("es: unknown codec %q", codecName)
	}
	return ctor(dsiType), nil
}
