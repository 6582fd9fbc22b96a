package cdpcontrol

import (
	"context"
	"errors"
	"fmt"
)

const (
	CodeValidation        = "VALIDATION"
	CodeNavigationFailed  = "NAVIGATION_FAILED"
	CodeElementNotFound   = "ELEMENT_NOT_FOUND"
	CodeElementNotVisible = "ELEMENT_NOT_VISIBLE"
	CodeTimeout           = "TIMEOUT"
	CodeEvalFailure       = "EVAL_FAILURE"
	CodeCDPUnavailable    = "CDP_UNAVAILABLE"
)

// CodedError is a typed error used for stable API mapping.
type CodedError struct {
	Code    string
	Message string
	Cause   error
}

func (e *CodedError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
}

func (e *CodedError) Unwrap() error { return e.Cause }

func newError(code, msg string, cause error) error {
	return &CodedError{Code: code, Message: msg, Cause: cause}
}

// NewError builds a CodedError for callers outside the package.
func NewError(code, msg string, cause error) error {
	return newError(code, msg, cause)
}

// ErrorCode extracts the code of a CodedError anywhere in err's chain.
// Context errors report CodeTimeout; other uncoded errors CodeEvalFailure.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return CodeTimeout
	}
	return CodeEvalFailure
}

// Viewport is the emulated window size of a page.
type Viewport struct {
	Width  int64 `json:"width"`
	Height int64 `json:"height"`
}

// NavigationResult describes the main document response of a navigation.
type NavigationResult struct {
	URL        string `json:"url"`
	StatusCode int64  `json:"status_code"`
	MimeType   string `json:"mime_type,omitempty"`
}

// probeResult is the payload of the locator probe script.
type probeResult struct {
	Count   int  `json:"count"`
	Visible bool `json:"visible"`
}
