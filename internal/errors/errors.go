// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrNoData              = errors.New("no data")
	ErrTickerNotFound      = errors.New("ticker not found")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrRateLimited         = errors.New("rate limited")
	ErrTimeout             = errors.New("operation timed out")
	ErrConfigInvalid       = errors.New("invalid configuration")
	ErrMalformedRow        = errors.New("malformed row")
	ErrMissingColumn       = errors.New("missing required column")
	ErrDatabaseError       = errors.New("database error")
	ErrCacheMiss           = errors.New("cache miss")
)

// Kind classifies how a degraded value came to be.
type Kind string

const (
	// KindParse is a malformed numeric or date string replaced by a default.
	KindParse Kind = "parse"
	// KindLookup is a missing price or fundamentals value.
	KindLookup Kind = "lookup"
	// KindDivision is a guarded division by zero.
	KindDivision Kind = "division"
	// KindStructural is a missing column, empty input or unusable row.
	KindStructural Kind = "structural"
)

// Warning records that a default was substituted for missing or bad data.
// Operations return warnings alongside their results instead of failing.
type Warning struct {
	Kind    Kind   `json:"kind"`
	Ticker  string `json:"ticker,omitempty"`
	Field   string `json:"field,omitempty"`
	Row     int    `json:"row,omitempty"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	switch {
	case w.Ticker != "" && w.Field != "":
		return fmt.Sprintf("[%s] %s %s: %s", w.Kind, w.Ticker, w.Field, w.Message)
	case w.Ticker != "":
		return fmt.Sprintf("[%s] %s: %s", w.Kind, w.Ticker, w.Message)
	case w.Row > 0:
		return fmt.Sprintf("[%s] row %d %s: %s", w.Kind, w.Row, w.Field, w.Message)
	default:
		return fmt.Sprintf("[%s] %s", w.Kind, w.Message)
	}
}

// DataError represents a data-related error.
type DataError struct {
	DataType string
	Ticker   string
	Message  string
	Err      error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data error [%s] %s: %s: %v", e.DataType, e.Ticker, e.Message, e.Err)
	}
	return fmt.Sprintf("data error [%s] %s: %s", e.DataType, e.Ticker, e.Message)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// NewDataError creates a new DataError.
func NewDataError(dataType, ticker, message string, err error) *DataError {
	return &DataError{
		DataType: dataType,
		Ticker:   ticker,
		Message:  message,
		Err:      err,
	}
}

// LookupError is returned by external providers.
type LookupError struct {
	Provider string
	Ticker   string
	Err      error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("lookup error [%s] %s: %v", e.Provider, e.Ticker, e.Err)
}

func (e *LookupError) Unwrap() error {
	return e.Err
}

// NewLookupError creates a new LookupError.
func NewLookupError(provider, ticker string, err error) *LookupError {
	return &LookupError{
		Provider: provider,
		Ticker:   ticker,
		Err:      err,
	}
}

// HTTPError is a non-2xx response from an upstream service.
type HTTPError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

// Unwrap maps well-known status codes onto sentinels.
func (e *HTTPError) Unwrap() error {
	switch e.StatusCode {
	case 404:
		return ErrTickerNotFound
	case 429:
		return ErrRateLimited
	}
	if e.StatusCode >= 500 {
		return ErrProviderUnavailable
	}
	return nil
}

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrConfigInvalid
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// IsRetryable reports whether a provider error is worth retrying.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrProviderUnavailable) ||
		errors.Is(err, ErrTimeout)
}
