package parser

import (
	"errors"
	"fmt"
)

// ErrorCode is a stable machine-readable failure code surfaced to the API layer.
type ErrorCode string

const (
	CodeInvalidZip       ErrorCode = "INVALID_ZIP"
	CodeNoReportFound    ErrorCode = "NO_REPORT_FOUND"
	CodeNoEmbeddedReport ErrorCode = "NO_EMBEDDED_REPORT"
	CodeDecodeError      ErrorCode = "DECODE_ERROR"
	CodeValidationError  ErrorCode = "VALIDATION_ERROR"
)

// ProcessingError is a fatal report-processing failure. Partial failures
// (a single malformed fragment among many) are logged and skipped instead.
type ProcessingError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *ProcessingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// NewProcessingError creates a ProcessingError with the given code.
func NewProcessingError(code ErrorCode, message string, err error) *ProcessingError {
	return &ProcessingError{Code: code, Message: message, Err: err}
}

// CodeOf extracts the error code from err, or an empty code when err is
// not a ProcessingError.
func CodeOf(err error) ErrorCode {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// IsCode reports whether err is a ProcessingError carrying the given code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
