// Package enginerr defines the error taxonomy the engine's control-path API
// returns. Control-path operations that can fail (on Mixer, Source,
// recorder, backends and decoders) return an *Error of one of these kinds,
// built with New from a message and an optional wrapped cause, instead of
// a bespoke error type per package.
package enginerr

import "errors"

// Kind identifies which taxonomy bucket an error belongs to.
type Kind int

const (
	// ConfigurationError covers invalid sample rate, channels, buffer size,
	// or out-of-range volume/tempo/pitch.
	ConfigurationError Kind = iota
	// BackendError covers device open/start/stop failure or disconnection.
	BackendError
	// DecodingError covers a decoder returning an error; terminal for that source.
	DecodingError
	// SeekError covers a seek outside [0, duration] or on a non-seekable stream.
	SeekError
	// ResourceExhaustion covers the source-count limit being exceeded.
	ResourceExhaustion
	// InvalidState covers an operation invalid for the current state, e.g.
	// add_source after dispose.
	InvalidState
)

func (k Kind) String() string {
	switch k {
	case ConfigurationError:
		return "ConfigurationError"
	case BackendError:
		return "BackendError"
	case DecodingError:
		return "DecodingError"
	case SeekError:
		return "SeekError"
	case ResourceExhaustion:
		return "ResourceExhaustion"
	case InvalidState:
		return "InvalidState"
	default:
		return "UnknownError"
	}
}

// Error is a taxonomy-tagged error. Callers distinguish kinds with errors.Is
// against the sentinel values below, or by calling errors.As to recover the
// *Error and read Kind directly.
type Error struct {
	Kind Kind
	Msg  string
	Err  error // wrapped cause, may be nil
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Kind.String() + ": " + e.Msg + ": " + e.Err.Error()
	}
	return e.Kind.String() + ": " + e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is a sentinel for the same Kind, so callers can
// write errors.Is(err, enginerr.ErrResourceExhaustion).
func (e *Error) Is(target error) bool {
	var sentinel *Error
	if errors.As(target, &sentinel) {
		return sentinel.Kind == e.Kind
	}
	return false
}

// New constructs an *Error of the given kind with a message and optional
// wrapped cause.
func New(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

// Sentinels usable with errors.Is. They carry no message/cause of their own;
// Is() compares only on Kind.
var (
	ErrConfiguration      = &Error{Kind: ConfigurationError}
	ErrBackend            = &Error{Kind: BackendError}
	ErrDecoding           = &Error{Kind: DecodingError}
	ErrSeek               = &Error{Kind: SeekError}
	ErrResourceExhaustion = &Error{Kind: ResourceExhaustion}
	ErrInvalidState       = &Error{Kind: InvalidState}
)
