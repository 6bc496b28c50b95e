package models

import (
	"errors"
	"fmt"
)

// Error codes used in API responses, batch results and internal error handling.
const (
	ErrCodeConfiguration     = "CONFIGURATION_ERROR"
	ErrCodeInvalidURL        = "INVALID_URL"
	ErrCodeNavigationTimeout = "NAVIGATION_TIMEOUT"
	ErrCodeFetchFailed       = "FETCH_FAILED"
	ErrCodeBrowserCrash      = "BROWSER_CRASH"
	ErrCodeMissingID         = "MISSING_ID"
	ErrCodePersistence       = "PERSISTENCE_FAILED"
	ErrCodeInvalidInput      = "INVALID_INPUT"
	ErrCodeRateLimited       = "RATE_LIMITED"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

// ErrorDetail is the structured error in API responses and batch results.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ScrapeError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type ScrapeError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// NewScrapeError creates a new ScrapeError.
func NewScrapeError(code, message string, err error) *ScrapeError {
	return &ScrapeError{Code: code, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *ScrapeError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}

// AsScrapeError finds the first ScrapeError in err's chain. Untyped errors
// are wrapped as INTERNAL_ERROR.
func AsScrapeError(err error) *ScrapeError {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se
	}
	return NewScrapeError(ErrCodeInternal, err.Error(), err)
}

// CodeOf returns the error code carried by err, or "" for nil.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	return AsScrapeError(err).Code
}

// DetailOf converts any error into an ErrorDetail.
func DetailOf(err error) *ErrorDetail {
	if err == nil {
		return nil
	}
	return AsScrapeError(err).ToDetail()
}
