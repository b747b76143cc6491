// Package errors provides the typed error taxonomy for the dues engine.
package errors

import (
	"errors"
	"fmt"
)

// Type identifies the category of error
type Type string

const (
	// TypeValidation indicates a malformed or out-of-range request field.
	// Always caller-attributable and never fatal.
	TypeValidation Type = "VALIDATION_ERROR"

	// TypeNotFound indicates no schedule exists for the requested port,
	// date, or version pin.
	TypeNotFound Type = "NOT_FOUND"

	// TypeAmbiguousTier indicates two rate tiers matched the same vessel.
	// This is a data-integrity fault in the published schedule, never a
	// request defect, and is never resolved by an arbitrary tie-break.
	TypeAmbiguousTier Type = "AMBIGUOUS_TIER"

	// TypeCalculation indicates a formula could not be evaluated, e.g. a
	// conditional fee referencing an operational flag the vessel lacks.
	TypeCalculation Type = "CALCULATION_ERROR"

	// TypeExplanation indicates the explanation reference source was
	// unavailable. Soft failure: the calculation result is still returned.
	TypeExplanation Type = "EXPLANATION_UNAVAILABLE"

	// TypeConfig indicates a configuration error
	TypeConfig Type = "CONFIG_ERROR"

	// TypeInternal indicates an internal error
	TypeInternal Type = "INTERNAL_ERROR"
)

// Error is a domain error with a type, message, optional cause, and
// string context (field names, rule ids, schedule versions).
type Error struct {
	Type    Type              `json:"type"`
	Message string            `json:"message"`
	Cause   error             `json:"-"`
	Context map[string]string `json:"context,omitempty"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithContext attaches a key/value pair to the error
func (e *Error) WithContext(key, value string) *Error {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// CallerFacing reports whether the error detail may be shown to the caller.
// Ambiguous-tier and calculation errors indicate data defects, not request
// defects, and are surfaced opaquely.
func (e *Error) CallerFacing() bool {
	return e.Type == TypeValidation || e.Type == TypeNotFound
}

// New creates a new error
func New(errType Type, message string) *Error {
	return &Error{Type: errType, Message: message}
}

// Newf creates a new formatted error
func Newf(errType Type, format string, args ...interface{}) *Error {
	return &Error{Type: errType, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an error with context
func Wrap(errType Type, message string, cause error) *Error {
	return &Error{Type: errType, Message: message, Cause: cause}
}

// AsDomain extracts a domain error from an error chain
func AsDomain(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsType checks if an error (or anything it wraps) is of a specific type
func IsType(err error, t Type) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Type == t
	}
	return false
}

// Validation creates a validation error naming the offending field and the
// violated constraint.
func Validation(field, constraint string) *Error {
	return Newf(TypeValidation, "field %q: %s", field, constraint).
		WithContext("field", field)
}

// NotFound creates a not-found error
func NotFound(resourceType, identifier string) *Error {
	return Newf(TypeNotFound, "%s not found: %s", resourceType, identifier).
		WithContext(resourceType, identifier)
}

// AmbiguousTier creates an ambiguous-tier error for a due type
func AmbiguousTier(dueType string, ruleIDs []string) *Error {
	return Newf(TypeAmbiguousTier, "multiple tiers match due type %q: %v", dueType, ruleIDs).
		WithContext("due_type", dueType)
}

// Calculation creates a calculation error naming the offending rule
func Calculation(ruleID, message string) *Error {
	return Newf(TypeCalculation, "rule %s: %s", ruleID, message).
		WithContext("rule_id", ruleID)
}

// Internal creates an internal error
func Internal(message string, cause error) *Error {
	return Wrap(TypeInternal, message, cause)
}
