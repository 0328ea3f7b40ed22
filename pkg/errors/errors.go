package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the class of failure encountered while crawling
type ErrorType string

const (
	// Run-level conditions, resolved by the operator
	ErrorTypeConfigMissing ErrorType = "config_missing"
	ErrorTypeEntryNotFound ErrorType = "entry_not_found"
	ErrorTypeInvalidEntry  ErrorType = "invalid_entry"

	// Entry-level conditions, terminate the entry's traversal
	ErrorTypeFetch          ErrorType = "fetch"
	ErrorTypeExtractionMiss ErrorType = "extraction_miss"
	ErrorTypeWrite          ErrorType = "write"

	// Transport causes, used to decide whether a fetch is worth repeating
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// Error carries a typed crawl failure along with where it happened
type Error struct {
	Type    ErrorType
	Entry   string
	URL     string
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	msg := string(e.Type)
	if e.Entry != "" {
		msg = e.Entry + ": " + msg
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.URL != "" {
		msg += " (" + e.URL + ")"
	}
	if e.Code != 0 {
		msg += fmt.Sprintf(" [status %d]", e.Code)
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

// Wrap attaches a type to an underlying error
func Wrap(t ErrorType, err error, message string) *Error {
	return &Error{Type: t, Message: message, Err: err}
}

// WithEntry returns a copy of the error tagged with the entry name
func (e *Error) WithEntry(entry string) *Error {
	cp := *e
	cp.Entry = entry
	return &cp
}

// WithURL returns a copy of the error tagged with the URL being processed
func (e *Error) WithURL(url string) *Error {
	cp := *e
	cp.URL = url
	return &cp
}

// TypeOf returns the type of the outermost *Error in the chain, or ErrorTypeUnknown
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// Is reports whether any *Error in err's chain has the given type
func Is(err error, t ErrorType) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Type == t {
			return true
		}
		err = e.Err
	}
	return false
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

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0, 429:
		return true
	case 401, 403, 404:
		return false
	default:
		return statusCode >= 500
	}
}

// ClassifyStatus maps an HTTP status code to a transport error type
func ClassifyStatus(statusCode int) ErrorType {
	switch {
	case statusCode == 0:
		return ErrorTypeNetwork
	case statusCode == 429:
		return ErrorTypeRateLimit
	case statusCode == 404 || statusCode == 410:
		return ErrorTypeNotFound
	case statusCode >= 500:
		return ErrorTypeServerError
	default:
		return ErrorTypeUnknown
	}
}
