package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorType represents the category of a failure
type ErrorType string

const (
	ErrorTypeConfig      ErrorType = "config"
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeClientError ErrorType = "client_error"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeParsing     ErrorType = "parsing"
	ErrorTypeValidation  ErrorType = "validation"
	ErrorTypeSink        ErrorType = "sink"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// Sentinel errors for configuration problems detected before any network activity.
var (
	ErrInvalidDateFormat = stderrors.New("invalid date format, expected YYYY-MM-DD")
	ErrInvalidRange      = stderrors.New("start date is after end date")
	ErrUnknownSource     = stderrors.New("unknown source")
	ErrEmptyCompany      = stderrors.New("company name is empty")
)

// Error is a typed failure carrying enough context to decide whether to retry.
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	// Source is the review platform the failure relates to, if any
	Source string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Source != "" {
		msg = e.Source + ": " + msg
	}
	if e.Code != 0 {
		msg = fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, msg)
	} else {
		msg = fmt.Sprintf("%s error: %s", e.Type, msg)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a typed error
func New(t ErrorType, message string) *Error {
	return &Error{Type: t, Message: message}
}

// Wrap creates a typed error around an underlying cause
func Wrap(t ErrorType, err error, message string) *Error {
	return &Error{Type: t, Message: message, Err: err}
}

// Config returns a configuration error wrapping one of the sentinel errors.
func Config(sentinel error, detail string) *Error {
	return &Error{Type: ErrorTypeConfig, Message: detail, Err: sentinel}
}

// Parse returns a parsing error for a page the adapter could not interpret.
func Parse(source string, page int, detail string) *Error {
	return &Error{
		Type:    ErrorTypeParsing,
		Message: fmt.Sprintf("page %d: %s", page, detail),
		Source:  source,
	}
}

// TypeOf reports the ErrorType of err, or ErrorTypeUnknown if it is untyped.
func TypeOf(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// IsType reports whether err is a typed error of the given type
func IsType(err error, t ErrorType) bool {
	return err != nil && TypeOf(err) == t
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError:
		return true
	default:
		return false
	}
}

// IsTransient reports whether a retry of the same request might succeed.
// A typed error decides by its type, so a client timeout wrapped as a
// network error stays transient even though it unwraps to a deadline.
// Bare context cancellation is never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var e *Error
	if stderrors.As(err, &e) {
		return IsRetryable(e.Type)
	}
	if IsCancelled(err) {
		return false
	}
	var netErr net.Error
	return stderrors.As(err, &netErr)
}

// IsPermanent reports whether err is a failure that retrying will not fix.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	var e *Error
	if stderrors.As(err, &e) {
		return !IsRetryable(e.Type)
	}
	if IsCancelled(err) {
		return false
	}
	return !IsTransient(err)
}

// IsCancelled reports whether err is a bare context cancellation or deadline.
// Typed errors are failures of their own kind even when they wrap a deadline.
func IsCancelled(err error) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return false
	}
	return stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded)
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	return IsRetryable(ClassifyStatus(statusCode))
}

// ClassifyStatus maps an HTTP status code to an error type. 2xx codes map to
// ErrorTypeUnknown since they are not failures.
func ClassifyStatus(statusCode int) ErrorType {
	switch {
	case statusCode == 0:
		return ErrorTypeNetwork
	case statusCode == http.StatusTooManyRequests:
		return ErrorTypeRateLimit
	case statusCode == http.StatusRequestTimeout:
		return ErrorTypeNetwork
	case statusCode == http.StatusNotFound || statusCode == http.StatusGone:
		return ErrorTypeNotFound
	case statusCode >= 500:
		return ErrorTypeServerError
	case statusCode >= 400:
		return ErrorTypeClientError
	default:
		return ErrorTypeUnknown
	}
}

// FromStatus builds a typed error for a non-success HTTP response.
func FromStatus(statusCode int, source, url string) *Error {
	t := ClassifyStatus(statusCode)
	var msg string
	switch t {
	case ErrorTypeRateLimit:
		msg = "rate limited by upstream"
	case ErrorTypeServerError:
		msg = "upstream server error"
	case ErrorTypeNotFound:
		msg = "page not found"
	default:
		msg = "unexpected status"
	}
	return &Error{
		Type:    t,
		Message: fmt.Sprintf("%s (%s)", msg, url),
		Code:    statusCode,
		Source:  source,
	}
}
