// Package sfzerr defines the error taxonomy shared across the engine:
// config errors, file errors, parse warnings, buffer underruns, and fatal
// internal invariant breaches. The audio thread never returns these — it
// degrades (silence, dropped note, stopped voice) — but the control thread
// surfaces them by value to the host.
package sfzerr

import "fmt"

// Kind classifies an error without committing to a concrete type per error
// site, so callers can switch on the Kind field rather than type-asserting.
type Kind int

const (
	// KindConfig covers invalid sample rate, block size, voice count, or
	// oversampling factor, reported synchronously with no state change.
	KindConfig Kind = iota
	// KindFile covers a missing or undecodable sample file.
	KindFile
	// KindParseWarning covers unknown opcodes or out-of-range values that
	// do not fail the load.
	KindParseWarning
	// KindBufferUnderrun covers a streaming ring that emptied while a voice
	// still expected data.
	KindBufferUnderrun
	// KindFatalInternal covers an invariant breach; in debug builds this is
	// expected to accompany a panic, in release builds the caller resets
	// the offending voice and continues.
	KindFatalInternal
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindFile:
		return "file"
	case KindParseWarning:
		return "parse_warning"
	case KindBufferUnderrun:
		return "buffer_underrun"
	case KindFatalInternal:
		return "fatal_internal"
	default:
		return "unknown"
	}
}

// Error is the concrete error type carried across the engine's control-plane
// APIs (LoadSFZFile, SetSampleRate, ...). The audio-rendering path never
// constructs or returns one.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error wrapping cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// LoadResult mirrors the taxonomy §6 assigns to LoadSFZFile specifically:
// not_found, parse_error, empty_instrument, ok.
type LoadResult int

const (
	LoadOK LoadResult = iota
	LoadNotFound
	LoadParseError
	LoadEmptyInstrument
)

func (r LoadResult) String() string {
	switch r {
	case LoadOK:
		return "ok"
	case LoadNotFound:
		return "not_found"
	case LoadParseError:
		return "parse_error"
	case LoadEmptyInstrument:
		return "empty_instrument"
	default:
		return "unknown"
	}
}
