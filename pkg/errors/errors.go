package errors

import (
	"context"
	"errors"
	"fmt"
)

// ReportError is returned by the loader, renderer and archive. Metric
// extraction itself never fails; a missing field is not an error.
type ReportError struct {
	Code    string
	Message string
	Cause   error
	Path    string
}

func (e *ReportError) Error() string {
	msg := e.Message
	if e.Path != "" {
		msg = fmt.Sprintf("%s (%s)", e.Message, e.Path)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *ReportError) Unwrap() error { return e.Cause }

const (
	ErrCodeReportUnreadable = "REPORT_UNREADABLE"
	ErrCodeInvalidSuite     = "INVALID_SUITE"
	ErrCodeRenderFailed     = "RENDER_FAILED"
	ErrCodeArchiveFailed    = "ARCHIVE_FAILED"
	ErrCodeCancelled        = "CANCELLED"
)

func ErrReportUnreadable(path string, cause error) *ReportError {
	return &ReportError{
		Code:    ErrCodeReportUnreadable,
		Message: "cannot read report",
		Cause:   cause,
		Path:    path,
	}
}

func ErrInvalidSuite(msg string, cause error) *ReportError {
	return &ReportError{
		Code:    ErrCodeInvalidSuite,
		Message: msg,
		Cause:   cause,
	}
}

func ErrRenderFailed(msg string, cause error) *ReportError {
	return &ReportError{
		Code:    ErrCodeRenderFailed,
		Message: msg,
		Cause:   cause,
	}
}

func ErrArchiveFailed(msg string, cause error) *ReportError {
	return &ReportError{
		Code:    ErrCodeArchiveFailed,
		Message: msg,
		Cause:   cause,
	}
}

func ErrCancelled(cause error) *ReportError {
	return &ReportError{
		Code:    ErrCodeCancelled,
		Message: "operation cancelled",
		Cause:   cause,
	}
}

// HasCode reports whether err wraps a ReportError with the given code.
func HasCode(err error, code string) bool {
	var re *ReportError
	return errors.As(err, &re) && re.Code == code
}

func IsContextError(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
