package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a conversion error code.
type ErrorCode string

const (
	ErrTemplateLoad          ErrorCode = "TEMPLATE_LOAD"          // malformed or missing skeleton
	ErrMissingField          ErrorCode = "MISSING_FIELD"          // required header absent
	ErrXMLStructure          ErrorCode = "XML_STRUCTURE"          // malformed or unexpected nesting
	ErrUnknownColumn         ErrorCode = "UNKNOWN_COLUMN"         // flagged parameter not in registry
	ErrUnsupportedConversion ErrorCode = "UNSUPPORTED_CONVERSION" // no path between formats
	ErrGEFSyntax             ErrorCode = "GEF_SYNTAX"             // unreadable GEF input
	ErrInvalidRequest        ErrorCode = "INVALID_REQUEST"
	ErrFileNotFound          ErrorCode = "FILE_NOT_FOUND"
	ErrCancelled             ErrorCode = "CANCELLED"
	ErrInternal              ErrorCode = "INTERNAL"
)

// ConvError represents a structured error with code and details.
type ConvError struct {
	Code    ErrorCode
	Message string
	Details map[string]any
	cause   error
}

// Error implements the error interface.
func (e *ConvError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *ConvError) Unwrap() error {
	return e.cause
}

// NewTemplateLoad creates an error for a skeleton that cannot be loaded.
func NewTemplateLoad(err error) *ConvError {
	return &ConvError{
		Code:    ErrTemplateLoad,
		Message: fmt.Sprintf("cannot load skeleton template: %v", err),
		cause:   err,
	}
}

// NewMissingField creates an error for a required field absent from the source.
func NewMissingField(field string) *ConvError {
	return &ConvError{
		Code:    ErrMissingField,
		Message: fmt.Sprintf("required field missing: %s", field),
		Details: map[string]any{"field": field},
	}
}

// NewXMLStructure creates an error for malformed or unexpected XML nesting at path.
func NewXMLStructure(path, msg string) *ConvError {
	return &ConvError{
		Code:    ErrXMLStructure,
		Message: fmt.Sprintf("%s: %s", path, msg),
		Details: map[string]any{"path": path},
	}
}

// NewUnknownColumn creates an error for a flagged parameter with no registry entry.
func NewUnknownColumn(parameter string) *ConvError {
	return &ConvError{
		Code:    ErrUnknownColumn,
		Message: fmt.Sprintf("parameter %q has no known column definition", parameter),
		Details: map[string]any{"parameter": parameter},
	}
}

// NewUnsupportedConversion creates an error for a format pair with no conversion path.
func NewUnsupportedConversion(source, target string) *ConvError {
	return &ConvError{
		Code:    ErrUnsupportedConversion,
		Message: fmt.Sprintf("cannot convert from %q to %q", source, target),
		Details: map[string]any{"source": source, "target": target},
	}
}

// NewGEFSyntax creates an error for GEF input that cannot be read. line is 1-based, 0 if unknown.
func NewGEFSyntax(line int, msg string) *ConvError {
	e := &ConvError{
		Code:    ErrGEFSyntax,
		Message: msg,
	}
	if line > 0 {
		e.Message = fmt.Sprintf("line %d: %s", line, msg)
		e.Details = map[string]any{"line": line}
	}
	return e
}

// NewInvalidRequest creates an error for invalid request parameters.
func NewInvalidRequest(msg string) *ConvError {
	return &ConvError{
		Code:    ErrInvalidRequest,
		Message: msg,
	}
}

// NewFileNotFound creates an error for a missing input file.
func NewFileNotFound(path string) *ConvError {
	return &ConvError{
		Code:    ErrFileNotFound,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewCancelled creates an error for an operation stopped by its context.
func NewCancelled(op string) *ConvError {
	return &ConvError{
		Code:    ErrCancelled,
		Message: fmt.Sprintf("%s cancelled", op),
	}
}

// NewInternal creates an error for unexpected internal failures.
// The message stays generic; the cause is kept in Details for logging.
func NewInternal(err error) *ConvError {
	details := map[string]any{}
	if err != nil {
		details["internal_error"] = err.Error()
	}
	return &ConvError{
		Code:    ErrInternal,
		Message: "an internal error occurred",
		Details: details,
		cause:   err,
	}
}

// Is checks if err, or any error it wraps, is a ConvError with the given code.
func Is(err error, code ErrorCode) bool {
	var cErr *ConvError
	if stderrors.As(err, &cErr) {
		return cErr.Code == code
	}
	return false
}

// As returns the ConvError in err's chain, if any.
func As(err error) (*ConvError, bool) {
	var cErr *ConvError
	ok := stderrors.As(err, &cErr)
	return cErr, ok
}
