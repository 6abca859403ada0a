package model

import (
	"errors"
	"fmt"
)

// ErrorCode classifies externally visible failures.
type ErrorCode string

const (
	CodeLoad             ErrorCode = "LOAD"                       // source unreadable or unsupported
	CodeExtraction       ErrorCode = "EXTRACTION"                 // filters matched no data
	CodeUnknownMethod    ErrorCode = "UNKNOWN_METHOD"             // unregistered method or component name
	CodeNonConvergence   ErrorCode = "FITTING_NON_CONVERGENCE"    // recorded on peaks, never fatal
	CodeConfigValidation ErrorCode = "CONFIG_VALIDATION"          // payload rejected before processing
	CodeNotInitialized   ErrorCode = "CONTROLLER_NOT_INITIALIZED" // controller used before Init
	CodeInvalidInput     ErrorCode = "INVALID_INPUT"              // malformed curve or container
	CodeCanceled         ErrorCode = "CANCELED"                   // work abandoned between tasks
)

// Error is a structured failure with a code, a human-readable message and
// details for programmatic handling (method name, file identity, field).
type Error struct {
	Code    ErrorCode
	Message string
	Details map[string]any
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error { return e.Err }

// NewLoad reports an unreadable or unsupported source.
func NewLoad(source string, err error) *Error {
	return &Error{
		Code:    CodeLoad,
		Message: fmt.Sprintf("failed to load %q", source),
		Details: map[string]any{"source": source},
		Err:     err,
	}
}

// NewExtraction reports that an extraction produced no data.
func NewExtraction(extractor string, filter Filter) *Error {
	return &Error{
		Code:    CodeExtraction,
		Message: "no curve data found",
		Details: map[string]any{
			"extractor": extractor,
			"mz_range":  filter.MZ.String(),
			"rt_range":  filter.RT.String(),
			"ms_level":  filter.MSLevel,
		},
	}
}

// NewUnknownMethod reports a method or component name that is not
// registered for kind (e.g. "fitting_method").
func NewUnknownMethod(kind, name string) *Error {
	return &Error{
		Code:    CodeUnknownMethod,
		Message: fmt.Sprintf("unknown %s %q", kind, name),
		Details: map[string]any{"kind": kind, "name": name},
	}
}

// NewNonConvergence describes a fit that did not converge. It is stored in
// peak metadata rather than returned.
func NewNonConvergence(method string, iterations int) *Error {
	return &Error{
		Code:    CodeNonConvergence,
		Message: fmt.Sprintf("%s did not converge after %d iterations", method, iterations),
		Details: map[string]any{"method": method, "iterations": iterations},
	}
}

// NewConfigValidation reports a rejected configuration field.
func NewConfigValidation(field, msg string) *Error {
	return &Error{
		Code:    CodeConfigValidation,
		Message: fmt.Sprintf("invalid %s: %s", field, msg),
		Details: map[string]any{"field": field},
	}
}

// NewNotInitialized reports use of the controller before Init.
func NewNotInitialized(op string) *Error {
	return &Error{
		Code:    CodeNotInitialized,
		Message: fmt.Sprintf("controller not initialized (operation %s)", op),
		Details: map[string]any{"operation": op},
	}
}

// NewInvalidInput reports a malformed curve, container or argument.
func NewInvalidInput(msg string) *Error {
	return &Error{Code: CodeInvalidInput, Message: msg}
}

// NewCanceled wraps a context error observed between units of work.
func NewCanceled(err error) *Error {
	return &Error{Code: CodeCanceled, Message: "processing canceled", Err: err}
}

// WithDetail returns e with an additional detail entry.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any, 1)
	}
	e.Details[key] = value
	return e
}

// IsCode reports whether err, or any error it wraps, is an *Error with code.
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
