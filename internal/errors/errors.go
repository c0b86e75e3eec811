package errors

import (
	"fmt"
)

// AppError represents a structured application error
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an AppError carrying the same code, so the
// sentinel kinds below work with the standard errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code != "" && t.Code == e.Code
}

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with additional context, keeping the code of the cause
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return &AppError{
			Code:    appErr.Code,
			Message: message,
			Cause:   appErr,
		}
	}
	return &AppError{
		Code:    CodeInternalError,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with formatted additional context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WithCode adds an error code to an existing error
func WithCode(code string, err error) error {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return &AppError{
			Code:    code,
			Message: appErr.Message,
			Cause:   appErr.Cause,
		}
	}
	return &AppError{
		Code:    code,
		Message: err.Error(),
		Cause:   err,
	}
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	_, ok := err.(*AppError)
	return ok
}

// GetCode returns the error code if it's an AppError, otherwise returns "UNKNOWN"
func GetCode(err error) string {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return "UNKNOWN"
}

// Predefined error codes
const (
	CodeConfigInvalid  = "CONFIG_INVALID"
	CodeNotFound       = "NOT_FOUND"
	CodeInternalError  = "INTERNAL_ERROR"
	CodeInvalidInput   = "INVALID_INPUT"
	CodeSheetNotFound  = "SHEET_NOT_FOUND"
	CodeParseError     = "PARSE_ERROR"
	CodeColumnNotFound = "COLUMN_NOT_FOUND"
)

// Sentinel kinds for errors.Is checks.
var (
	ErrSheetNotFound  = New(CodeSheetNotFound, "sheet not found")
	ErrParse          = New(CodeParseError, "parse error")
	ErrColumnNotFound = New(CodeColumnNotFound, "column not found")
	ErrInvalidInput   = New(CodeInvalidInput, "invalid input")
	ErrNotFound       = New(CodeNotFound, "not found")
)

// Common error constructors
func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

func NotFound(resource string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource))
}

func InternalError(message string) *AppError {
	return New(CodeInternalError, message)
}

func InvalidInput(message string) *AppError {
	return New(CodeInvalidInput, message)
}

// SheetNotFound reports a sheet name absent from the workbook's sheet index.
func SheetNotFound(sheet string, available []string) *AppError {
	return New(CodeSheetNotFound, fmt.Sprintf("sheet %q not found (available: %v)", sheet, available))
}

// ParseError reports malformed workbook bytes or an invalid load parameter.
func ParseError(message string, cause error) *AppError {
	return &AppError{
		Code:    CodeParseError,
		Message: message,
		Cause:   cause,
	}
}

// ColumnNotFound is the soft warning for a required column missing after load.
func ColumnNotFound(column string) *AppError {
	return New(CodeColumnNotFound, fmt.Sprintf("column %q not found", column))
}
