package common

import (
	"errors"
	"fmt"
	"strings"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
	ErrDatabase     = errors.New("database error")
)

// Pipeline error kinds. Match with errors.Is; read detail with errors.As(*DomainError).
var (
	ErrUnreadableDocument     = errors.New("unreadable document")
	ErrInferenceUnavailable   = errors.New("inference unavailable")
	ErrMalformedModelOutput   = errors.New("malformed model output")
	ErrIncompleteExtraction   = errors.New("incomplete extraction")
	ErrUnknownEntityReference = errors.New("unknown entity reference")
	ErrConstraintViolation    = errors.New("constraint violation")
	ErrInvalidRequestShape    = errors.New("invalid request shape")
)

var kindCodes = []struct {
	kind error
	code string
}{
	{ErrUnreadableDocument, "UNREADABLE_DOCUMENT"},
	{ErrInferenceUnavailable, "INFERENCE_UNAVAILABLE"},
	{ErrMalformedModelOutput, "MALFORMED_MODEL_OUTPUT"},
	{ErrIncompleteExtraction, "INCOMPLETE_EXTRACTION"},
	{ErrUnknownEntityReference, "UNKNOWN_ENTITY_REFERENCE"},
	{ErrConstraintViolation, "CONSTRAINT_VIOLATION"},
	{ErrInvalidRequestShape, "INVALID_REQUEST_SHAPE"},
}

// MaxExcerptBytes bounds the model output carried by a MalformedModelOutput error.
const MaxExcerptBytes = 500

// DomainError carries a pipeline error kind, a user-facing message and the
// structured detail of that kind. The internal cause is reachable through
// errors.As but never part of Error().
type DomainError struct {
	Kind    error
	Message string

	Chars      int      // UnreadableDocument
	Excerpt    string   // MalformedModelOutput
	Path       string   // IncompleteExtraction
	Entity     string   // UnknownEntityReference
	MissingIDs []int    // UnknownEntityReference
	Fields     []string // InvalidRequestShape

	cause error
}

func (e *DomainError) Error() string {
	return e.Message
}

func (e *DomainError) Unwrap() []error {
	if e.cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.cause}
}

// WithCause attaches an internal cause and returns e.
func (e *DomainError) WithCause(cause error) *DomainError {
	e.cause = cause
	return e
}

// Code returns the stable code of the error kind.
func (e *DomainError) Code() string {
	for _, kc := range kindCodes {
		if e.Kind == kc.kind {
			return kc.code
		}
	}
	return "INTERNAL"
}

// Kind returns the stable code for err, or "" when err carries no known kind.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, kc := range kindCodes {
		if errors.Is(err, kc.kind) {
			return kc.code
		}
	}
	return ""
}

// UnreadableDocument reports that acquisition produced fewer than the minimum characters.
func UnreadableDocument(chars int) *DomainError {
	return &DomainError{
		Kind:    ErrUnreadableDocument,
		Message: fmt.Sprintf("PDF appears to be empty or unreadable even with OCR. Extracted %d characters.", chars),
		Chars:   chars,
	}
}

// InferenceUnavailable reports an unreachable backend or a missing model.
func InferenceUnavailable(message string, cause error) *DomainError {
	return &DomainError{Kind: ErrInferenceUnavailable, Message: message, cause: cause}
}

// MalformedModelOutput keeps only a bounded prefix of the offending text.
func MalformedModelOutput(reason string, output string, cause error) *DomainError {
	excerpt := Truncate(output, MaxExcerptBytes)
	return &DomainError{
		Kind:    ErrMalformedModelOutput,
		Message: fmt.Sprintf("model output is malformed: %s. Output: %s", reason, excerpt),
		Excerpt: excerpt,
		cause:   cause,
	}
}

// IncompleteExtraction names the missing field path, e.g. "patient.last_name".
func IncompleteExtraction(path string) *DomainError {
	return &DomainError{
		Kind:    ErrIncompleteExtraction,
		Message: fmt.Sprintf("extraction is missing required field %s", path),
		Path:    path,
	}
}

// UnknownEntityReference lists every id of entity that does not exist.
func UnknownEntityReference(entity string, ids []int) *DomainError {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return &DomainError{
		Kind:       ErrUnknownEntityReference,
		Message:    fmt.Sprintf("%s with ids [%s] do not exist", entity, strings.Join(parts, ", ")),
		Entity:     entity,
		MissingIDs: ids,
	}
}

// ConstraintViolation hides the storage cause behind a domain message.
func ConstraintViolation(message string, cause error) *DomainError {
	return &DomainError{
		Kind:    ErrConstraintViolation,
		Message: "Failed to create order: database integrity constraint violated. " + message,
		cause:   cause,
	}
}

// InvalidRequestShape reports a caller error naming the offending fields.
func InvalidRequestShape(message string, fields ...string) *DomainError {
	return &DomainError{Kind: ErrInvalidRequestShape, Message: message, Fields: fields}
}

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Truncate cuts s to at most max bytes without splitting a UTF-8 sequence.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
