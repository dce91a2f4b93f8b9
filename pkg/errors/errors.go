package errors

import (
	"errors"
	"fmt"
)

// Kind classifies a failure on the prediction path so callers can decide
// how to surface it without string matching.
type Kind int

const (
	// KindInternal is anything not covered by a more specific kind
	KindInternal Kind = iota
	// KindValidation marks malformed or missing request fields (client error)
	KindValidation
	// KindModelFetch marks a failure to download or mirror the model artifact
	KindModelFetch
	// KindModelFormat marks a structurally invalid model artifact
	KindModelFormat
	// KindInputShape marks a feature vector that does not match the model input
	KindInputShape
	// KindTelemetry marks an analytics write failure (never surfaced to clients)
	KindTelemetry
)

// String returns the kind name used in logs and metrics labels
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindModelFetch:
		return "model_fetch"
	case KindModelFormat:
		return "model_format"
	case KindInputShape:
		return "input_shape"
	case KindTelemetry:
		return "telemetry"
	default:
		return "internal"
	}
}

// Sentinel values, one per kind. errors.Is(err, ErrValidation) holds for any
// *Error of KindValidation anywhere in the chain.
var (
	ErrInternal    = errors.New("internal error")
	ErrValidation  = errors.New("validation error")
	ErrModelFetch  = errors.New("model fetch error")
	ErrModelFormat = errors.New("model format error")
	ErrInputShape  = errors.New("input shape error")
	ErrTelemetry   = errors.New("telemetry error")
)

func (k Kind) sentinel() error {
	switch k {
	case KindValidation:
		return ErrValidation
	case KindModelFetch:
		return ErrModelFetch
	case KindModelFormat:
		return ErrModelFormat
	case KindInputShape:
		return ErrInputShape
	case KindTelemetry:
		return ErrTelemetry
	default:
		return ErrInternal
	}
}

// Error carries a failure kind together with the operation and, for
// validation failures, the offending field
type Error struct {
	Kind  Kind
	Op    string
	Field string
	Err   error
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := e.Kind.sentinel().Error()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Field != "" {
		msg += ": field '" + e.Field + "'"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel of this error's kind
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// E builds an *Error of the given kind
func E(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Validation builds a KindValidation error for a single request field
func Validation(field, format string, args ...interface{}) *Error {
	return &Error{
		Kind:  KindValidation,
		Op:    "encode",
		Field: field,
		Err:   fmt.Errorf(format, args...),
	}
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindInternal when there is none
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is checks if err is or wraps target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target type
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New returns a plain error
func New(message string) error {
	return errors.New(message)
}

// Wrap wraps an error with context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
