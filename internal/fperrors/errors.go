// Package fperrors defines the error kinds from spec §7 and wraps them
// with github.com/mdobak/go-xerrors so every returned error carries a
// stack trace, the same pattern the teacher's fileformat package uses
// for I/O failures.
package fperrors

import (
	"errors"
	"fmt"

	"github.com/mdobak/go-xerrors"
)

// Kind identifies one of the error categories spec §7 names.
type Kind int

const (
	// KindShortSignal: input too short for one STFT frame.
	KindShortSignal Kind = iota
	// KindParamDigestMismatch: index built with different Config.
	KindParamDigestMismatch
	// KindCorruptIndex: CRC or magic check failed on open.
	KindCorruptIndex
	// KindIoError: underlying storage failure.
	KindIoError
	// KindCancelled: caller-requested cancellation observed at a
	// coarse-grained checkpoint.
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindShortSignal:
		return "short_signal"
	case KindParamDigestMismatch:
		return "param_digest_mismatch"
	case KindCorruptIndex:
		return "corrupt_index"
	case KindIoError:
		return "io_error"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Error is the concrete error type returned across package boundaries.
// It satisfies errors.Is against the sentinel Kind values below via Unwrap.
type Error struct {
	Kind Kind
	Msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.err }

// Is reports whether target is one of the package sentinels for the
// same Kind, so callers can write errors.Is(err, fperrors.ErrCorruptIndex).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels usable with errors.Is.
var (
	ErrShortSignal          = &Error{Kind: KindShortSignal, Msg: "short signal"}
	ErrParamDigestMismatch  = &Error{Kind: KindParamDigestMismatch, Msg: "parameter digest mismatch"}
	ErrCorruptIndex         = &Error{Kind: KindCorruptIndex, Msg: "corrupt index"}
	ErrIoError              = &Error{Kind: KindIoError, Msg: "io error"}
	ErrCancelled            = &Error{Kind: KindCancelled, Msg: "cancelled"}
)

// New builds a Kind-tagged error. The returned value supports errors.Is
// against the sentinels above; use WithStack at the point an error is
// about to be logged (not returned) to attach a stack trace, matching
// how the teacher's fileformat package uses go-xerrors only at the
// logging boundary rather than throughout control flow.
func New(kind Kind, msg string, cause error) error {
	return &Error{Kind: kind, Msg: msg, err: cause}
}

// WithStack annotates err with a go-xerrors stack trace for logging.
// Call this immediately before slog'ing an error, not when returning it,
// so downstream errors.Is/errors.As checks keep working against the
// plain *Error chain.
func WithStack(err error) error {
	if err == nil {
		return nil
	}
	return xerrors.New(err)
}

// ShortSignal builds a KindShortSignal error.
func ShortSignal(msg string) error { return New(KindShortSignal, msg, nil) }

// ParamDigestMismatch builds a KindParamDigestMismatch error.
func ParamDigestMismatch(msg string) error { return New(KindParamDigestMismatch, msg, nil) }

// CorruptIndex builds a KindCorruptIndex error, wrapping cause if present.
func CorruptIndex(msg string, cause error) error { return New(KindCorruptIndex, msg, cause) }

// IoError builds a KindIoError error, wrapping cause.
func IoError(msg string, cause error) error { return New(KindIoError, msg, cause) }

// Cancelled builds a KindCancelled error.
func Cancelled(msg string) error { return New(KindCancelled, msg, nil) }

// Is is a small convenience wrapper over errors.Is against the *Error
// sentinels, matching the call sites that don't want to import "errors".
func Is(err error, sentinel error) bool {
	return errors.Is(err, sentinel)
}
