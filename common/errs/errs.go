package errs

import (
	"github.com/pkg/errors"
)

// Kind is the parser error taxonomy. Every error the core surfaces to a
// caller is either one of these or wraps one via Wrapf.
type Kind int32

const (
	// KindEndOfStream: reader drained mid-NAL or before first sync. Normal
	// terminator, not logged as a failure.
	KindEndOfStream Kind = iota + 1
	// KindSyntaxError: bit pattern violates the codec spec (forbidden zero
	// bit, reserved value, impossible id).
	KindSyntaxError
	// KindNotSupported: a syntactically valid bitstream construct that
	// falls outside this parser's scope, e.g. AC-4 bitstream_version <= 1.
	KindNotSupported
	// KindMultiSdForbidden: parameter-set collision while the caller set a
	// single-sample-description policy.
	KindMultiSdForbidden
	// KindNoMemory: scratch allocation failure.
	KindNoMemory
	// KindNoConfig: video payload encountered before its SPS/PPS. Reported
	// but the parser continues in best-effort mode.
	KindNoConfig
	// KindInternal: postcondition violation; indicates a parser bug.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindEndOfStream:
		return "end_of_stream"
	case KindSyntaxError:
		return "syntax_error"
	case KindNotSupported:
		return "not_supported"
	case KindMultiSdForbidden:
		return "multi_sd_forbidden"
	case KindNoMemory:
		return "no_memory"
	case KindNoConfig:
		return "no_config"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is the parser's typed error value: a fixed Kind enum paired with
// a human-readable message, instead of an open set of integer codes.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	return e.Kind.String() + ": " + e.Msg
}

func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

func Newf(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Msg: errors.Errorf(format, args...).Error()}
}

// Is reports whether err is (or wraps) a *Error of the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// KindOf extracts the Kind carried by err, or KindInternal if err does not
// carry one — an untagged error reaching the caller is itself a bug.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if err == nil {
		return 0
	}
	return KindInternal
}

// Wrapf attaches a stack trace and context message to err, preserving its
// Kind for KindOf/Is.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

var (
	// ErrEndOfStream is returned by Parser.GetSample once the underlying
	// reader is exhausted and no partial AU remains to flush.
	ErrEndOfStream = New(KindEndOfStream, "end of stream")
)
